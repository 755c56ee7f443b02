package apiserver

import (
	"bytes"
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"

	"github.com/cidvault/cidvault/internal/identity"
	"github.com/cidvault/cidvault/pkg/types"
)

const maxBodyBytes = 16 << 20

// authedHandler receives the authenticated caller and the request body.
type authedHandler func(w http.ResponseWriter, r *http.Request, caller types.Identity, body []byte)

// authed verifies the request signature and derives the caller identity.
// The caller presents its Ed25519 public key and a signature over
// method, path, and body; the identity is the address derived from the
// key, so a caller cannot speak for anyone else.
func (s *Server) authed(route string, h authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, body, err := authenticate(r)
		if err != nil {
			s.log.Debug("rejected request", "path", r.URL.Path, "error", err)
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		timer := startRequestTimer(route)
		h(sw, r, caller, body)
		timer.observe(sw.status)
	}
}

func authenticate(r *http.Request) (types.Identity, []byte, error) {
	keyB64 := r.Header.Get("X-Identity-Key")
	sigB64 := r.Header.Get("X-Signature")
	if keyB64 == "" || sigB64 == "" {
		return "", nil, fmt.Errorf("missing authentication headers")
	}

	pub, err := base64.StdEncoding.DecodeString(keyB64)
	if err != nil {
		return "", nil, fmt.Errorf("invalid X-Identity-Key: %w", err)
	}
	if len(pub) != ed25519.PublicKeySize {
		return "", nil, fmt.Errorf("invalid key length: expected %d bytes, got %d", ed25519.PublicKeySize, len(pub))
	}
	sig, err := base64.StdEncoding.DecodeString(sigB64)
	if err != nil {
		return "", nil, fmt.Errorf("invalid X-Signature: %w", err)
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return "", nil, fmt.Errorf("read body: %w", err)
	}

	msg := SigningMessage(r.Method, r.URL.Path, body)
	if !identity.Verify(pub, msg, sig) {
		return "", nil, fmt.Errorf("signature verification failed")
	}

	return identity.AddressOf(pub), body, nil
}

// SigningMessage is the byte string clients sign: method, path, and body
// joined by newlines.
func SigningMessage(method, path string, body []byte) []byte {
	var buf bytes.Buffer
	buf.WriteString(method)
	buf.WriteByte('\n')
	buf.WriteString(path)
	buf.WriteByte('\n')
	buf.Write(body)
	return buf.Bytes()
}

// SignRequest attaches authentication headers to an outgoing request.
// Used by clients and tests.
func SignRequest(r *http.Request, kp *identity.KeyPair, body []byte) {
	pub := kp.SigningKey.Public().(ed25519.PublicKey)
	sig := kp.Sign(SigningMessage(r.Method, r.URL.Path, body))
	r.Header.Set("X-Identity-Key", base64.StdEncoding.EncodeToString(pub))
	r.Header.Set("X-Signature", base64.StdEncoding.EncodeToString(sig))
}
