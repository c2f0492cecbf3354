package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/openclaw/qrkit/wallet"
)

// endpointRedialer is implemented by balance fetchers that follow the
// registry's selected endpoint.
type endpointRedialer interface {
	Redial(reg *wallet.Registry) error
}

type rpcURLRequest struct {
	URL string `json:"url"`
}

type selectNetworkRequest struct {
	Network string `json:"network"`
}

type networkResponse struct {
	Network string   `json:"network"`
	URLs    []string `json:"urls"`
}

// registry writes a 503 and returns false when RPC management is disabled.
func (s *Server) registry(w http.ResponseWriter) bool {
	if s.Registry == nil {
		writeError(w, http.StatusServiceUnavailable, "rpc endpoints are not managed by this server")
		return false
	}
	return true
}

func (s *Server) handleListRPC(w http.ResponseWriter, r *http.Request) {
	if !s.registry(w) {
		return
	}
	networks := make(map[string][]string)
	for _, n := range s.Registry.Networks() {
		urls, err := s.Registry.URLs(n)
		if err != nil {
			continue
		}
		networks[n] = urls
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"selected": s.Registry.Selected(),
		"networks": networks,
	})
}

func (s *Server) handleGetRPC(w http.ResponseWriter, r *http.Request) {
	if !s.registry(w) {
		return
	}
	s.writeNetwork(w, chi.URLParam(r, "network"))
}

func (s *Server) handleAddRPC(w http.ResponseWriter, r *http.Request) {
	if !s.registry(w) {
		return
	}
	var req rpcURLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}
	network := chi.URLParam(r, "network")
	if err := s.Registry.Add(network, req.URL); err != nil {
		writeRPCError(w, err)
		return
	}
	s.Log.Info("rpc url added", "network", network, "url", req.URL)
	s.redial()
	s.writeNetwork(w, network)
}

// handleRemoveRPC drops ?url= from a network. Removing its last url restores
// the network defaults.
func (s *Server) handleRemoveRPC(w http.ResponseWriter, r *http.Request) {
	if !s.registry(w) {
		return
	}
	rawURL := r.URL.Query().Get("url")
	if rawURL == "" {
		writeError(w, http.StatusBadRequest, "url query parameter is required")
		return
	}
	network := chi.URLParam(r, "network")
	if err := s.Registry.Remove(network, rawURL); err != nil {
		writeRPCError(w, err)
		return
	}
	s.Log.Info("rpc url removed", "network", network, "url", rawURL)
	s.redial()
	s.writeNetwork(w, network)
}

func (s *Server) handleSelectNetwork(w http.ResponseWriter, r *http.Request) {
	if !s.registry(w) {
		return
	}
	var req selectNetworkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Network == "" {
		writeError(w, http.StatusBadRequest, "network is required")
		return
	}
	if err := s.Registry.Select(req.Network); err != nil {
		writeRPCError(w, err)
		return
	}
	s.Log.Info("rpc network selected", "network", s.Registry.Selected())
	s.redial()
	s.writeNetwork(w, s.Registry.Selected())
}

// redial moves balance lookups to the selected endpoint. On failure the
// fetcher keeps its previous client.
func (s *Server) redial() {
	rd, ok := s.Balances.(endpointRedialer)
	if !ok {
		return
	}
	if err := rd.Redial(s.Registry); err != nil {
		s.Log.Warn("balance lookups keep previous rpc endpoint", "network", s.Registry.Selected(), "error", err)
	}
}

func (s *Server) writeNetwork(w http.ResponseWriter, network string) {
	urls, err := s.Registry.URLs(network)
	if err != nil {
		writeRPCError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, networkResponse{Network: network, URLs: urls})
}

func writeRPCError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, wallet.ErrUnknownNetwork):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, wallet.ErrInvalidURL):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
