// Package apiserver exposes the vault's ledger operations over an HTTP
// JSON API. Mutating routes and caller-scoped reads require a signed
// request; plain reads are open.
package apiserver

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	cidvault "github.com/cidvault/cidvault"
)

type Server struct {
	mux   *http.ServeMux
	vault *cidvault.Vault
	log   *slog.Logger
}

type Option func(*Server)

// WithLogger overrides the server's logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Server) { s.log = log }
}

func New(vault *cidvault.Vault, opts ...Option) *Server {
	s := &Server{
		mux:   http.NewServeMux(),
		vault: vault,
		log:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	// Mutations: the caller identity comes from the request signature.
	s.mux.HandleFunc("POST /v1/resources", s.authed("store_resource", s.handleStoreResource))
	s.mux.HandleFunc("DELETE /v1/resources/{cid}", s.authed("delete_resource", s.handleDeleteResource))
	s.mux.HandleFunc("POST /v1/resources/{cid}/rename", s.authed("update_resource", s.handleUpdateResource))
	s.mux.HandleFunc("PUT /v1/resources/{cid}/key", s.authed("set_owner_encrypted_key", s.handleSetOwnerEncryptedKey))
	s.mux.HandleFunc("POST /v1/grants", s.authed("grant", s.handleGrant))
	s.mux.HandleFunc("DELETE /v1/grants/{cid}/{grantee}", s.authed("revoke", s.handleRevoke))
	s.mux.HandleFunc("PUT /v1/grants/{cid}/{grantee}/key", s.authed("set_encrypted_key", s.handleSetEncryptedKey))
	s.mux.HandleFunc("PUT /v1/directory", s.authed("set_public_key", s.handleSetPublicKey))

	// Caller-scoped reads.
	s.mux.HandleFunc("GET /v1/keys/{owner}/{cid}", s.authed("get_encrypted_key", s.handleEncryptedKey))
	s.mux.HandleFunc("GET /v1/shared", s.authed("list_shared", s.handleListShared))

	// Open reads.
	s.mux.HandleFunc("GET /v1/resources", s.instrumented("list_owned", s.handleListOwned))
	s.mux.HandleFunc("GET /v1/resources/count", s.instrumented("count_owned", s.handleCountOwned))
	s.mux.HandleFunc("GET /v1/access", s.instrumented("has_access", s.handleHasAccess))
	s.mux.HandleFunc("GET /v1/accessors/{owner}/{cid}", s.instrumented("list_accessors", s.handleListAccessors))
	s.mux.HandleFunc("GET /v1/directory/{identity}", s.instrumented("get_public_key", s.handlePublicKey))

	s.mux.Handle("GET /metrics", promhttp.Handler())
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}
