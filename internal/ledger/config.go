package ledger

import (
	"fmt"

	"github.com/shirou/gopsutil/disk"
	"github.com/sirupsen/logrus"
)

func (c StoreConfig) check() error {
	if c.InMemory {
		return nil
	}
	if len(c.Paths) == 0 {
		return fmt.Errorf("no path provided")
	}
	if c.MinimumFreeGB <= 0 {
		return nil
	}
	return checkFreeSpace(c.Paths[0], c.MinimumFreeGB)
}

// checkFreeSpace refuses to open the ledger when the data path's filesystem
// has less free space than the configured floor.
func checkFreeSpace(path string, minimumFreeGB int) error {
	usage, err := disk.Usage(path)
	if err != nil {
		// Path may not exist yet; badger creates it. Probe the parent by
		// falling back to a plain warning instead of failing startup.
		log.WithFields(logrus.Fields{
			"path": path,
		}).Warnf("could not determine free space: %v", err)
		return nil
	}

	freeGB := usage.Free / (1 << 30)
	log.WithFields(logrus.Fields{
		"path":   path,
		"freeGB": freeGB,
	}).Info("ledger data path free space")

	if freeGB < uint64(minimumFreeGB) {
		return fmt.Errorf("not enough free space on %s: %d GB free, %d GB required",
			path, freeGB, minimumFreeGB)
	}
	return nil
}
