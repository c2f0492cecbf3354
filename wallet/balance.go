package wallet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"golang.org/x/sync/singleflight"
)

var ErrInvalidAddress = errors.New("wallet: invalid address")

const (
	// maxRPCAttempts bounds how often a failing RPC call is retried.
	maxRPCAttempts = 3

	DefaultTimeout = 15 * time.Second
)

// RPC is the subset of the Solana JSON-RPC API used for balances.
// *rpc.Client implements it.
type RPC interface {
	GetBalance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetBalanceResult, error)
	GetAccountInfo(ctx context.Context, account solana.PublicKey) (*rpc.GetAccountInfoResult, error)
	GetTokenAccountBalance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetTokenAccountBalanceResult, error)
}

// Balance is a wallet balance of native SOL (Mint empty) or of an SPL token.
type Balance struct {
	Address string  `json:"address"`
	Mint    string  `json:"mint,omitempty"`
	Amount  float64 `json:"amount"`
	Display string  `json:"display"`
}

// Fetcher reads balances. Concurrent requests for the same address and mint
// share one RPC round trip; a caller giving up does not cancel the others.
type Fetcher struct {
	mu       sync.RWMutex
	rpc      RPC
	endpoint string

	commitment rpc.CommitmentType
	retryDelay time.Duration
	timeout    time.Duration
	group      singleflight.Group
	log        *slog.Logger
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithRetryDelay sets the base delay between RPC attempts.
func WithRetryDelay(d time.Duration) FetcherOption {
	return func(f *Fetcher) { f.retryDelay = d }
}

// WithCommitment sets the commitment level used for balance queries.
func WithCommitment(c rpc.CommitmentType) FetcherOption {
	return func(f *Fetcher) { f.commitment = c }
}

// WithTimeout bounds a shared lookup, which outlives the context of the
// caller that started it.
func WithTimeout(d time.Duration) FetcherOption {
	return func(f *Fetcher) { f.timeout = d }
}

// NewFetcher creates a Fetcher on top of client.
func NewFetcher(client RPC, log *slog.Logger, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		rpc:        client,
		commitment: rpc.CommitmentConfirmed,
		retryDelay: 250 * time.Millisecond,
		timeout:    DefaultTimeout,
		log:        log,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Dial returns a Fetcher talking to the selected endpoint of reg.
func Dial(reg *Registry, log *slog.Logger, opts ...FetcherOption) (*Fetcher, error) {
	endpoint, err := reg.Endpoint()
	if err != nil {
		return nil, err
	}
	log.Debug("using rpc endpoint", "network", reg.Selected(), "url", endpoint)
	f := NewFetcher(rpc.New(endpoint), log, opts...)
	f.endpoint = endpoint
	return f, nil
}

// Redial points f at the selected endpoint of reg if it changed. Lookups
// already in flight finish on the old client.
func (f *Fetcher) Redial(reg *Registry) error {
	endpoint, err := reg.Endpoint()
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if endpoint == f.endpoint {
		return nil
	}
	f.rpc = rpc.New(endpoint)
	f.endpoint = endpoint
	f.log.Info("rpc endpoint changed", "network", reg.Selected(), "url", endpoint)
	return nil
}

// Endpoint returns the URL f talks to, or "" when it was built on a bare
// client.
func (f *Fetcher) Endpoint() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.endpoint
}

func (f *Fetcher) client() RPC {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.rpc
}

// Fetch returns the SOL balance of address, or its balance of mint when mint
// is non-empty.
func (f *Fetcher) Fetch(ctx context.Context, address, mint string) (Balance, error) {
	owner, err := parseKey(address)
	if err != nil {
		return Balance{}, err
	}
	var mintKey solana.PublicKey
	if mint != "" {
		if mintKey, err = parseKey(mint); err != nil {
			return Balance{}, err
		}
	}

	key := address + "/" + mint
	ch := f.group.DoChan(key, func() (interface{}, error) {
		flightCtx := context.WithoutCancel(ctx)
		if f.timeout > 0 {
			var cancel context.CancelFunc
			flightCtx, cancel = context.WithTimeout(flightCtx, f.timeout)
			defer cancel()
		}
		if mint == "" {
			return f.SOLBalance(flightCtx, owner)
		}
		return f.TokenBalance(flightCtx, owner, mintKey)
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return Balance{}, ctx.Err()
	case res = <-ch:
	}
	if res.Shared {
		f.log.Debug("balance fetch shared", "key", key)
	}
	if res.Err != nil {
		return Balance{}, res.Err
	}

	amount := res.Val.(float64)
	return Balance{
		Address: address,
		Mint:    mint,
		Amount:  amount,
		Display: FormatAmount(amount),
	}, nil
}

// SOLBalance returns the native balance of owner in SOL.
func (f *Fetcher) SOLBalance(ctx context.Context, owner solana.PublicKey) (float64, error) {
	client := f.client()
	var lamports uint64
	err := f.retry(ctx, "getBalance", func() error {
		res, err := client.GetBalance(ctx, owner, f.commitment)
		if err != nil {
			return err
		}
		lamports = res.Value
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("get sol balance: %w", err)
	}
	return float64(lamports) / float64(solana.LAMPORTS_PER_SOL), nil
}

// TokenBalance returns owner's balance of mint, read from the associated
// token account under the mint's owning token program. A missing token
// account is a zero balance.
func (f *Fetcher) TokenBalance(ctx context.Context, owner, mint solana.PublicKey) (float64, error) {
	client := f.client()
	var program solana.PublicKey
	err := f.retry(ctx, "getAccountInfo", func() error {
		info, err := client.GetAccountInfo(ctx, mint)
		if err != nil {
			return err
		}
		if info == nil || info.Value == nil {
			return rpc.ErrNotFound
		}
		program = info.Value.Owner
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("get mint account: %w", err)
	}

	ata, err := AssociatedTokenAddress(owner, program, mint)
	if err != nil {
		return 0, err
	}

	var amount string
	err = f.retry(ctx, "getTokenAccountBalance", func() error {
		res, err := client.GetTokenAccountBalance(ctx, ata, f.commitment)
		if err != nil {
			return err
		}
		if res == nil || res.Value == nil {
			return rpc.ErrNotFound
		}
		amount = res.Value.UiAmountString
		return nil
	})
	if err != nil {
		if _, infoErr := client.GetAccountInfo(ctx, ata); errors.Is(infoErr, rpc.ErrNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("get token balance: %w", err)
	}

	v, err := strconv.ParseFloat(amount, 64)
	if err != nil {
		return 0, fmt.Errorf("parse token amount %q: %w", amount, err)
	}
	return v, nil
}

// AssociatedTokenAddress derives the associated token account of wallet for
// mint under tokenProgram (classic SPL Token or Token-2022).
func AssociatedTokenAddress(wallet, tokenProgram, mint solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress(
		[][]byte{wallet[:], tokenProgram[:], mint[:]},
		solana.SPLAssociatedTokenAccountProgramID,
	)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("derive associated token address: %w", err)
	}
	return addr, nil
}

// FormatAmount renders a balance with four decimals.
func FormatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}

// retry runs fn up to maxRPCAttempts times. Not-found results are final.
func (f *Fetcher) retry(ctx context.Context, method string, fn func() error) error {
	var err error
	for attempt := 1; attempt <= maxRPCAttempts; attempt++ {
		if err = fn(); err == nil || errors.Is(err, rpc.ErrNotFound) {
			return err
		}
		if attempt == maxRPCAttempts {
			break
		}
		f.log.Debug("rpc call failed, retrying", "method", method, "attempt", attempt, "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(f.retryDelay * time.Duration(attempt)):
		}
	}
	return err
}

func parseKey(s string) (solana.PublicKey, error) {
	pk, err := solana.PublicKeyFromBase58(s)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	return pk, nil
}
