// Package wallet reads wallet balances from a Solana JSON-RPC endpoint and
// keeps the per-network list of RPC endpoints.
package wallet

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"sort"
	"strings"
	"sync"
)

var (
	ErrUnknownNetwork = errors.New("wallet: unknown network")
	ErrNoRPCURL       = errors.New("wallet: no rpc url configured")
	ErrInvalidURL     = errors.New("wallet: invalid rpc url")
)

const (
	Mainnet  = "mainnet"
	Devnet   = "devnet"
	Testnet  = "testnet"
	Localnet = "localnet"
)

// DefaultRPCs are the endpoints a network falls back to when none are configured.
var DefaultRPCs = map[string][]string{
	Mainnet:  {"https://api.mainnet.solana.com"},
	Devnet:   {"https://api.devnet.solana.com"},
	Testnet:  {"https://api.testnet.solana.com"},
	Localnet: {"http://localhost:8899"},
}

// Registry holds the RPC endpoints of each network and the selected network.
// It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	urls     map[string][]string
	selected string
}

// NewRegistry builds a registry from the defaults. Networks present in custom
// replace the default list; networks absent from DefaultRPCs are added.
func NewRegistry(selected string, custom map[string][]string) (*Registry, error) {
	r := &Registry{urls: make(map[string][]string)}
	for n, urls := range DefaultRPCs {
		r.urls[n] = slices.Clone(urls)
	}
	for n, urls := range custom {
		n = normalizeNetwork(n)
		var list []string
		for _, u := range urls {
			u, err := checkURL(u)
			if err != nil {
				return nil, fmt.Errorf("network %s: %w", n, err)
			}
			if !slices.Contains(list, u) {
				list = append(list, u)
			}
		}
		if len(list) > 0 {
			r.urls[n] = list
		}
	}
	if err := r.Select(selected); err != nil {
		return nil, err
	}
	return r, nil
}

// Networks returns the known network names in sorted order.
func (r *Registry) Networks() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.urls))
	for n := range r.urls {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// URLs returns a copy of the endpoints configured for network.
func (r *Registry) URLs(network string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	urls, ok := r.urls[normalizeNetwork(network)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownNetwork, network)
	}
	return slices.Clone(urls), nil
}

// Add appends rawURL to network's endpoints unless it is already present.
// Unknown networks are created.
func (r *Registry) Add(network, rawURL string) error {
	u, err := checkURL(rawURL)
	if err != nil {
		return err
	}
	network = normalizeNetwork(network)
	if network == "" {
		return fmt.Errorf("%w: empty name", ErrUnknownNetwork)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if !slices.Contains(r.urls[network], u) {
		r.urls[network] = append(r.urls[network], u)
	}
	return nil
}

// Remove drops rawURL from network's endpoints. Removing the last endpoint
// of a network with defaults restores those defaults.
func (r *Registry) Remove(network, rawURL string) error {
	network = normalizeNetwork(network)
	u := strings.TrimSpace(rawURL)

	r.mu.Lock()
	defer r.mu.Unlock()
	urls, ok := r.urls[network]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownNetwork, network)
	}
	urls = slices.DeleteFunc(slices.Clone(urls), func(s string) bool { return s == u })
	if len(urls) == 0 {
		urls = slices.Clone(DefaultRPCs[network])
	}
	r.urls[network] = urls
	return nil
}

// Select makes network the one Endpoint resolves against.
func (r *Registry) Select(network string) error {
	network = normalizeNetwork(network)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.urls[network]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownNetwork, network)
	}
	r.selected = network
	return nil
}

// Selected returns the selected network name.
func (r *Registry) Selected() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.selected
}

// Endpoint returns the first endpoint of the selected network.
func (r *Registry) Endpoint() (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	urls := r.urls[r.selected]
	if len(urls) == 0 {
		return "", fmt.Errorf("%w for %s", ErrNoRPCURL, r.selected)
	}
	return urls[0], nil
}

func normalizeNetwork(n string) string {
	n = strings.ToLower(strings.TrimSpace(n))
	if n == "mainnet-beta" {
		return Mainnet
	}
	return n
}

func checkURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	u, err := url.ParseRequestURI(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidURL, raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidURL, raw)
	}
	return raw, nil
}
