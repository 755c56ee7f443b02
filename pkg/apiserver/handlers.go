package apiserver

import (
	"encoding/json"
	"errors"
	"net/http"

	cidvault "github.com/cidvault/cidvault"
	"github.com/cidvault/cidvault/pkg/types"
)

type storeResourceReq struct {
	CID string `json:"cid"`
}

type renameResourceReq struct {
	NewCID string `json:"newCid"`
}

type grantReq struct {
	CID      string         `json:"cid"`
	Grantee  types.Identity `json:"grantee"`
	Envelope []byte         `json:"envelope,omitempty"`
}

type envelopeReq struct {
	Envelope []byte `json:"envelope"`
}

type publicKeyReq struct {
	Key []byte `json:"key"`
}

func (s *Server) handleStoreResource(w http.ResponseWriter, r *http.Request, caller types.Identity, body []byte) {
	var req storeResourceReq
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}
	s.respond(w, s.vault.StoreResource(caller, req.CID), nil)
}

func (s *Server) handleDeleteResource(w http.ResponseWriter, r *http.Request, caller types.Identity, _ []byte) {
	s.respond(w, s.vault.DeleteResource(caller, r.PathValue("cid")), nil)
}

func (s *Server) handleUpdateResource(w http.ResponseWriter, r *http.Request, caller types.Identity, body []byte) {
	var req renameResourceReq
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}
	s.respond(w, s.vault.UpdateResource(caller, r.PathValue("cid"), req.NewCID), nil)
}

func (s *Server) handleSetOwnerEncryptedKey(w http.ResponseWriter, r *http.Request, caller types.Identity, body []byte) {
	var req envelopeReq
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}
	s.respond(w, s.vault.SetOwnerEncryptedKey(caller, r.PathValue("cid"), req.Envelope), nil)
}

func (s *Server) handleGrant(w http.ResponseWriter, r *http.Request, caller types.Identity, body []byte) {
	var req grantReq
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}
	var err error
	if len(req.Envelope) > 0 {
		err = s.vault.GrantWithKey(caller, req.CID, req.Grantee, req.Envelope)
	} else {
		err = s.vault.Grant(caller, req.CID, req.Grantee)
	}
	s.respond(w, err, nil)
}

func (s *Server) handleRevoke(w http.ResponseWriter, r *http.Request, caller types.Identity, _ []byte) {
	s.respond(w, s.vault.Revoke(caller, r.PathValue("cid"), types.Identity(r.PathValue("grantee"))), nil)
}

func (s *Server) handleSetEncryptedKey(w http.ResponseWriter, r *http.Request, caller types.Identity, body []byte) {
	var req envelopeReq
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}
	s.respond(w, s.vault.SetEncryptedKey(caller, r.PathValue("cid"), types.Identity(r.PathValue("grantee")), req.Envelope), nil)
}

func (s *Server) handleSetPublicKey(w http.ResponseWriter, r *http.Request, caller types.Identity, body []byte) {
	var req publicKeyReq
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}
	s.respond(w, s.vault.SetPublicKey(caller, req.Key), nil)
}

func (s *Server) handleEncryptedKey(w http.ResponseWriter, r *http.Request, caller types.Identity, _ []byte) {
	envelope, err := s.vault.EncryptedKey(types.Identity(r.PathValue("owner")), r.PathValue("cid"), caller)
	s.respond(w, err, map[string]any{"envelope": []byte(envelope)})
}

func (s *Server) handleListShared(w http.ResponseWriter, r *http.Request, caller types.Identity, _ []byte) {
	shared, err := s.vault.ListAccessibleResources(caller)
	s.respond(w, err, map[string]any{"resources": shared})
}

func (s *Server) handleListOwned(w http.ResponseWriter, r *http.Request) {
	owned, err := s.vault.ListOwned(types.Identity(r.URL.Query().Get("owner")))
	s.respond(w, err, map[string]any{"resources": owned})
}

func (s *Server) handleCountOwned(w http.ResponseWriter, r *http.Request) {
	count, err := s.vault.CountOwned(types.Identity(r.URL.Query().Get("owner")))
	s.respond(w, err, map[string]any{"count": count})
}

func (s *Server) handleHasAccess(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	has, err := s.vault.HasAccess(types.Identity(q.Get("owner")), q.Get("cid"), types.Identity(q.Get("identity")))
	s.respond(w, err, map[string]any{"hasAccess": has})
}

func (s *Server) handleListAccessors(w http.ResponseWriter, r *http.Request) {
	accessors, err := s.vault.ListAccessors(types.Identity(r.PathValue("owner")), r.PathValue("cid"))
	s.respond(w, err, map[string]any{"accessors": accessors})
}

func (s *Server) handlePublicKey(w http.ResponseWriter, r *http.Request) {
	key, set, err := s.vault.PublicKey(types.Identity(r.PathValue("identity")))
	s.respond(w, err, map[string]any{"key": []byte(key), "set": set})
}

// respond maps registry failures onto HTTP status codes and writes the
// JSON payload on success.
func (s *Server) respond(w http.ResponseWriter, err error, payload map[string]any) {
	if err != nil {
		http.Error(w, err.Error(), statusOf(err))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if payload == nil {
		payload = map[string]any{"ok": true}
	}
	if encErr := json.NewEncoder(w).Encode(payload); encErr != nil {
		s.log.Warn("failed to write response", "error", encErr)
	}
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, cidvault.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, cidvault.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, cidvault.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, cidvault.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, cidvault.ErrNotStarted), errors.Is(err, cidvault.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
