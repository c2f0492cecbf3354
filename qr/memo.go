package qr

import "sync"

type memoKey struct {
	payload string
	level   Level
}

// Memo caches matrices by (payload, level) so that re-rendering the same
// payload at a different size or with a different clear area skips
// encoding. It holds at most capacity entries and evicts the oldest first.
// A Memo is safe for concurrent use.
type Memo struct {
	encoder  Encoder
	capacity int

	mu      sync.Mutex
	entries map[memoKey]Matrix
	order   []memoKey
	hits    uint64
	misses  uint64
}

// NewMemo wraps encoder with a cache of the given capacity. A capacity below
// one is treated as one, which recomputes only when the input changes.
func NewMemo(encoder Encoder, capacity int) *Memo {
	if encoder == nil {
		encoder = GoQRCodeEncoder{}
	}
	if capacity < 1 {
		capacity = 1
	}
	return &Memo{
		encoder:  encoder,
		capacity: capacity,
		entries:  make(map[memoKey]Matrix, capacity),
	}
}

// Matrix returns the matrix for payload at level, encoding it on a miss.
// Errors are not cached.
func (m *Memo) Matrix(payload string, level Level) (Matrix, error) {
	key := memoKey{payload: payload, level: level}

	m.mu.Lock()
	if cached, ok := m.entries[key]; ok {
		m.hits++
		m.mu.Unlock()
		return cached, nil
	}
	m.misses++
	m.mu.Unlock()

	matrix, err := m.encoder.Encode(payload, level)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[key]; !ok {
		if len(m.order) >= m.capacity {
			oldest := m.order[0]
			m.order = m.order[1:]
			delete(m.entries, oldest)
		}
		m.entries[key] = matrix
		m.order = append(m.order, key)
	}
	return matrix, nil
}

// Stats returns the number of cache hits and misses so far.
func (m *Memo) Stats() (hits, misses uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hits, m.misses
}
