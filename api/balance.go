package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gagliardetto/solana-go/rpc"
	"github.com/go-chi/chi/v5"

	"github.com/openclaw/qrkit/wallet"
)

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	if s.Balances == nil {
		writeError(w, http.StatusServiceUnavailable, "balance lookups are not configured")
		return
	}

	address := chi.URLParam(r, "address")
	mint := r.URL.Query().Get("mint")

	ctx := r.Context()
	if s.BalanceTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.BalanceTimeout)
		defer cancel()
	}

	bal, err := s.Balances.Fetch(ctx, address, mint)
	switch {
	case errors.Is(err, wallet.ErrInvalidAddress):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, rpc.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		s.Log.Warn("balance lookup timed out", "address", address, "mint", mint, "timeout", s.BalanceTimeout)
		writeError(w, http.StatusGatewayTimeout, err.Error())
	case err != nil:
		s.Log.Warn("balance lookup failed", "address", address, "mint", mint, "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		writeJSON(w, http.StatusOK, bal)
	}
}
