// Package session tracks wallet pairing sessions: the connect URI a QR code
// encodes, its waiting/connected/expired lifecycle and the notifications sent
// when that lifecycle changes.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"

	"github.com/openclaw/qrkit/store"
)

// Status represents the pairing state of a session.
type Status string

const (
	StatusWaiting   Status = "waiting"
	StatusConnected Status = "connected"
	StatusExpired   Status = "expired"
)

var (
	ErrNotFound         = errors.New("session: not found")
	ErrExpired          = errors.New("session: expired")
	ErrAlreadyConnected = errors.New("session: already connected")
	ErrInvalidAddress   = errors.New("session: invalid wallet address")
)

// Session is the public view of a pairing session.
type Session struct {
	ID             string     `json:"id"`
	URI            string     `json:"uri"`
	Status         Status     `json:"status"`
	Network        string     `json:"network,omitempty"`
	Address        string     `json:"address,omitempty"`
	DisplayAddress string     `json:"display_address,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	ExpiresAt      time.Time  `json:"expires_at"`
	ConnectedAt    *time.Time `json:"connected_at,omitempty"`
}

// Store is the persistence the manager needs. *store.SessionStore
// implements it.
type Store interface {
	Save(ctx context.Context, sess *store.Session) error
	Get(ctx context.Context, id string) (*store.Session, error)
	List(ctx context.Context, status string, limit int) ([]store.Session, error)
	UpdateStatus(ctx context.Context, id, status, address string, at time.Time) error
	Delete(ctx context.Context, id string) error
	ExpireBefore(ctx context.Context, cutoff time.Time) ([]string, error)
}

// Notifier receives lifecycle events. *WebhookSender implements it.
type Notifier interface {
	Notify(ctx context.Context, evt Event) error
}

// Manager owns session lifecycle transitions. Transitions are serialised so
// that a session cannot be connected and expired at the same time.
type Manager struct {
	store    Store
	notifier Notifier
	ttl      time.Duration
	network  string
	now      func() time.Time
	log      *slog.Logger

	mu      sync.RWMutex
	current string
}

// Option configures a Manager.
type Option func(*Manager)

// WithNotifier sets the lifecycle event receiver.
func WithNotifier(n Notifier) Option {
	return func(m *Manager) { m.notifier = n }
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithNetwork sets the network recorded on new sessions.
func WithNetwork(network string) Option {
	return func(m *Manager) { m.network = network }
}

// NewManager creates a Manager. Sessions stay connectable for ttl after
// creation.
func NewManager(st Store, ttl time.Duration, log *slog.Logger, opts ...Option) *Manager {
	m := &Manager{
		store: st,
		ttl:   ttl,
		now:   time.Now,
		log:   log,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create starts a new waiting session. The URI may be empty while the wallet
// connector is still producing it; the QR surface shows a placeholder until
// SetURI is called.
func (m *Manager) Create(ctx context.Context, uri string) (*Session, error) {
	now := m.now()
	row := &store.Session{
		ID:        uuid.NewString(),
		URI:       uri,
		Status:    string(StatusWaiting),
		Network:   m.network,
		CreatedAt: now.Unix(),
		UpdatedAt: now.Unix(),
		ExpiresAt: now.Add(m.ttl).Unix(),
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.Save(ctx, row); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	m.current = row.ID
	m.log.Info("session created", "id", row.ID, "has_uri", uri != "")
	return fromRow(row), nil
}

// SetURI replaces the connect URI of a waiting session.
func (m *Manager) SetURI(ctx context.Context, id, uri string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	row, err := m.waitingLocked(ctx, id)
	if err != nil {
		return nil, err
	}
	row.URI = uri
	row.UpdatedAt = m.now().Unix()
	if err := m.store.Save(ctx, row); err != nil {
		return nil, fmt.Errorf("set session uri: %w", err)
	}
	m.log.Debug("session uri updated", "id", id)
	return fromRow(row), nil
}

// Connect marks a waiting session as connected by the given wallet address.
func (m *Manager) Connect(ctx context.Context, id, address string) (*Session, error) {
	if _, err := solana.PublicKeyFromBase58(address); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}

	m.mu.Lock()
	row, err := m.waitingLocked(ctx, id)
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}

	now := m.now()
	if err := m.store.UpdateStatus(ctx, id, string(StatusConnected), address, now); err != nil {
		m.mu.Unlock()
		return nil, fmt.Errorf("connect session: %w", mapStoreErr(err))
	}
	if m.current == id {
		m.current = ""
	}
	m.mu.Unlock()

	row.Status = string(StatusConnected)
	row.Address = address
	row.UpdatedAt = now.Unix()
	row.ConnectedAt = now.Unix()
	sess := fromRow(row)

	m.log.Info("session connected", "id", id, "address", sess.DisplayAddress)
	m.notify(ctx, Event{Type: EventConnected, Session: *sess, Timestamp: now.Unix()})
	return sess, nil
}

// Get returns a session. A waiting session past its expiry is reported (and
// stored) as expired.
func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	row, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", mapStoreErr(err))
	}
	if !m.expirable(row) {
		return fromRow(row), nil
	}

	// The row may have been connected since it was read; reload it under the
	// lock before expiring.
	m.mu.Lock()
	defer m.mu.Unlock()
	row, err = m.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", mapStoreErr(err))
	}
	if m.expirable(row) {
		if err := m.expire(ctx, row); err != nil {
			return nil, err
		}
		if m.current == id {
			m.current = ""
		}
	}
	return fromRow(row), nil
}

func (m *Manager) expirable(row *store.Session) bool {
	return Status(row.Status) == StatusWaiting && m.now().Unix() > row.ExpiresAt
}

// Current returns the most recently created session that is still waiting,
// or ErrNotFound.
func (m *Manager) Current(ctx context.Context) (*Session, error) {
	m.mu.RLock()
	id := m.current
	m.mu.RUnlock()

	if id == "" {
		return nil, ErrNotFound
	}
	sess, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.Status != StatusWaiting {
		return nil, ErrNotFound
	}
	return sess, nil
}

// List returns up to limit sessions, newest first, optionally filtered by status.
func (m *Manager) List(ctx context.Context, status Status, limit int) ([]Session, error) {
	rows, err := m.store.List(ctx, string(status), limit)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	out := make([]Session, 0, len(rows))
	for i := range rows {
		out = append(out, *fromRow(&rows[i]))
	}
	return out, nil
}

// Delete removes a session.
func (m *Manager) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete session: %w", mapStoreErr(err))
	}
	if m.current == id {
		m.current = ""
	}
	m.log.Info("session deleted", "id", id)
	return nil
}

// Sweep expires every waiting session past its expiry and returns how many
// were expired.
func (m *Manager) Sweep(ctx context.Context) (int, error) {
	now := m.now()

	m.mu.Lock()
	ids, err := m.store.ExpireBefore(ctx, now)
	if err == nil {
		for _, id := range ids {
			if m.current == id {
				m.current = ""
			}
		}
	}
	m.mu.Unlock()
	if err != nil {
		return 0, fmt.Errorf("sweep sessions: %w", err)
	}

	for _, id := range ids {
		m.notify(ctx, Event{
			Type:      EventExpired,
			Session:   Session{ID: id, Status: StatusExpired},
			Timestamp: now.Unix(),
		})
	}
	if len(ids) > 0 {
		m.log.Info("expired sessions", "count", len(ids))
	}
	return len(ids), nil
}

// waitingLocked loads a session and checks that it can still change. The
// caller MUST hold m.mu.
func (m *Manager) waitingLocked(ctx context.Context, id string) (*store.Session, error) {
	row, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", mapStoreErr(err))
	}
	switch Status(row.Status) {
	case StatusConnected:
		return nil, ErrAlreadyConnected
	case StatusExpired:
		return nil, ErrExpired
	}
	if m.expirable(row) {
		if err := m.expire(ctx, row); err != nil {
			return nil, err
		}
		return nil, ErrExpired
	}
	return row, nil
}

func (m *Manager) expire(ctx context.Context, row *store.Session) error {
	now := m.now()
	if err := m.store.UpdateStatus(ctx, row.ID, string(StatusExpired), "", now); err != nil {
		return fmt.Errorf("expire session: %w", mapStoreErr(err))
	}
	row.Status = string(StatusExpired)
	row.UpdatedAt = now.Unix()
	m.log.Info("session expired", "id", row.ID)
	return nil
}

func (m *Manager) notify(ctx context.Context, evt Event) {
	if m.notifier == nil {
		return
	}
	if err := m.notifier.Notify(ctx, evt); err != nil {
		m.log.Warn("session notification failed", "error", err, "event", evt.Type, "id", evt.Session.ID)
	}
}

func mapStoreErr(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

func fromRow(row *store.Session) *Session {
	s := &Session{
		ID:             row.ID,
		URI:            row.URI,
		Status:         Status(row.Status),
		Network:        row.Network,
		Address:        row.Address,
		DisplayAddress: ShortAddress(row.Address),
		CreatedAt:      time.Unix(row.CreatedAt, 0).UTC(),
		ExpiresAt:      time.Unix(row.ExpiresAt, 0).UTC(),
	}
	if row.ConnectedAt != 0 {
		t := time.Unix(row.ConnectedAt, 0).UTC()
		s.ConnectedAt = &t
	}
	return s
}

// ShortAddress abbreviates a wallet address to its first and last four
// characters, e.g. "7xKX...gAsU". Short inputs are returned unchanged.
func ShortAddress(address string) string {
	address = strings.TrimSpace(address)
	if len(address) <= 11 {
		return address
	}
	return address[:4] + "..." + address[len(address)-4:]
}
