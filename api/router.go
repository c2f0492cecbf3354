package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/openclaw/qrkit/qr"
	"github.com/openclaw/qrkit/session"
	"github.com/openclaw/qrkit/wallet"
)

// BalanceFetcher reads wallet balances. *wallet.Fetcher implements it.
type BalanceFetcher interface {
	Fetch(ctx context.Context, address, mint string) (wallet.Balance, error)
}

// QRDefaults are applied to render requests that leave a parameter unset.
type QRDefaults struct {
	Size        float64
	Level       qr.Level
	ClearArea   bool
	OverlaySize float64
	Padding     float64
	Foreground  string
	Background  string
	// MaxSize caps size and padding from the query; zero means DefaultMaxSize.
	MaxSize float64
}

// DefaultMaxSize is the largest symbol or padding a request may ask for.
const DefaultMaxSize = 4096

// Server holds the dependencies for all HTTP handlers.
type Server struct {
	Renderer  *qr.Renderer
	Sessions  *session.Manager
	Balances  BalanceFetcher   // nil disables /balance
	Registry  *wallet.Registry // nil disables /rpc
	Defaults  QRDefaults
	Network   string
	Log       *slog.Logger
	Version   string
	StartTime time.Time

	// BalanceTimeout bounds each /balance lookup. Zero means no deadline.
	BalanceTimeout time.Duration
}

// NewRouter returns a fully configured chi router with all API routes.
func NewRouter(s *Server) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(corsMiddleware)
	r.Use(requestLogger(s.Log))

	r.Get("/status", s.handleStatus)

	// QR web UI
	r.Get("/qr", s.handleQRPage)
	r.Get("/qr/data", s.handleQRData)

	// Rendering
	r.Get("/qr.svg", s.handleQRSVG)
	r.Get("/qr.png", s.handleQRPNG)
	r.Get("/qr/layout", s.handleQRLayout)

	// Pairing sessions
	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", s.handleCreateSession)
		r.Get("/", s.handleListSessions)
		r.Get("/{id}", s.handleGetSession)
		r.Put("/{id}/uri", s.handleSetSessionURI)
		r.Post("/{id}/connect", s.handleConnectSession)
		r.Delete("/{id}", s.handleDeleteSession)
	})

	r.Get("/balance/{address}", s.handleBalance)

	// RPC endpoints
	r.Route("/rpc", func(r chi.Router) {
		r.Get("/", s.handleListRPC)
		r.Put("/selected", s.handleSelectNetwork)
		r.Get("/{network}", s.handleGetRPC)
		r.Post("/{network}", s.handleAddRPC)
		r.Delete("/{network}", s.handleRemoveRPC)
	})

	return r
}

// --- helpers ----------------------------------------------------------------

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func queryInt(r *http.Request, key string, defaultVal int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return defaultVal
	}
	return n
}

func queryBool(r *http.Request, key string, defaultVal bool) bool {
	v := r.URL.Query().Get(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

// --- middleware --------------------------------------------------------------

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Debug("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start),
				"remote", r.RemoteAddr)
		})
	}
}
