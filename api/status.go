package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/openclaw/qrkit/session"
)

type statusResponse struct {
	Status     string `json:"status"`
	SessionID  string `json:"session_id,omitempty"`
	Network    string `json:"network,omitempty"`
	Uptime     string `json:"uptime"`
	Version    string `json:"version"`
	MemoHits   uint64 `json:"memo_hits"`
	MemoMisses uint64 `json:"memo_misses"`
}

// handleStatus reports "waiting" while a pairing session is open and "idle"
// otherwise.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Status:  "idle",
		Network: s.Network,
		Uptime:  time.Since(s.StartTime).Truncate(time.Second).String(),
		Version: s.Version,
	}
	if s.Registry != nil {
		resp.Network = s.Registry.Selected()
	}

	sess, err := s.Sessions.Current(r.Context())
	switch {
	case err == nil:
		resp.Status = string(sess.Status)
		resp.SessionID = sess.ID
	case !errors.Is(err, session.ErrNotFound):
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp.MemoHits, resp.MemoMisses = s.Renderer.MemoStats()
	writeJSON(w, http.StatusOK, resp)
}
