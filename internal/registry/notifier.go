package registry

import (
	"sync"

	"github.com/cidvault/cidvault/pkg/types"
)

// Notifier fans ledger notifications out to subscribers. Events are
// published after the transaction that produced them has committed, so a
// subscriber never observes a notification for state that was rolled back.
// Delivery is non-blocking: a subscriber that does not drain its channel
// loses events rather than stalling the ledger.
type Notifier struct {
	mu   sync.RWMutex
	subs map[int]chan types.Event
	next int
}

func NewNotifier() *Notifier {
	return &Notifier{subs: make(map[int]chan types.Event)}
}

// Subscribe registers a new subscriber with the given channel buffer.
// The returned cancel func unregisters it and closes the channel.
func (n *Notifier) Subscribe(buffer int) (<-chan types.Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan types.Event, buffer)

	n.mu.Lock()
	id := n.next
	n.next++
	n.subs[id] = ch
	n.mu.Unlock()

	cancel := func() {
		n.mu.Lock()
		if sub, ok := n.subs[id]; ok {
			delete(n.subs, id)
			close(sub)
		}
		n.mu.Unlock()
	}
	return ch, cancel
}

func (n *Notifier) publish(ev types.Event) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	for _, ch := range n.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
