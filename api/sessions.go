package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/openclaw/qrkit/session"
)

type uriRequest struct {
	URI string `json:"uri"`
}

type connectRequest struct {
	Address string `json:"address"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req uriRequest
	// An empty body creates a session that waits for its URI.
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sess, err := s.Sessions.Create(r.Context(), req.URI)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	status := session.Status(r.URL.Query().Get("status"))
	switch status {
	case "", session.StatusWaiting, session.StatusConnected, session.StatusExpired:
	default:
		writeError(w, http.StatusBadRequest, "status must be waiting, connected or expired")
		return
	}

	sessions, err := s.Sessions.List(r.Context(), status, queryInt(r, "limit", 50))
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"sessions": sessions})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.Sessions.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleSetSessionURI(w http.ResponseWriter, r *http.Request) {
	var req uriRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.URI == "" {
		writeError(w, http.StatusBadRequest, "uri is required")
		return
	}

	sess, err := s.Sessions.SetURI(r.Context(), chi.URLParam(r, "id"), req.URI)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleConnectSession(w http.ResponseWriter, r *http.Request) {
	var req connectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Address == "" {
		writeError(w, http.StatusBadRequest, "address is required")
		return
	}

	sess, err := s.Sessions.Connect(r.Context(), chi.URLParam(r, "id"), req.Address)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.Sessions.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func writeSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, session.ErrExpired):
		writeError(w, http.StatusGone, err.Error())
	case errors.Is(err, session.ErrAlreadyConnected):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, session.ErrInvalidAddress):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
