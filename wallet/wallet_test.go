package wallet_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openclaw/qrkit/wallet"
)

var (
	owner = solana.MustPublicKeyFromBase58("9hFtYBYmBJCVguRYs9pBTWKYAFoKfjYR7zBPpEkVsmD")
	mint  = solana.MustPublicKeyFromBase58("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")
)

type fakeRPC struct {
	mu           sync.Mutex
	lamports     uint64
	mintOwner    *solana.PublicKey
	tokenAmount  string
	balanceErrs  int // fail this many GetBalance calls first
	tokenErr     error
	balanceCalls atomic.Int32
	queried      []solana.PublicKey
	block        chan struct{}
	entered      chan struct{}
}

func (f *fakeRPC) GetBalance(_ context.Context, _ solana.PublicKey, _ rpc.CommitmentType) (*rpc.GetBalanceResult, error) {
	n := f.balanceCalls.Add(1)
	if f.entered != nil && n == 1 {
		close(f.entered)
	}
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.balanceErrs > 0 {
		f.balanceErrs--
		return nil, errors.New("connection reset")
	}
	return &rpc.GetBalanceResult{Value: f.lamports}, nil
}

func (f *fakeRPC) GetAccountInfo(_ context.Context, account solana.PublicKey) (*rpc.GetAccountInfoResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queried = append(f.queried, account)
	if account.Equals(mint) && f.mintOwner != nil {
		return &rpc.GetAccountInfoResult{Value: &rpc.Account{Owner: *f.mintOwner}}, nil
	}
	return nil, rpc.ErrNotFound
}

func (f *fakeRPC) GetTokenAccountBalance(_ context.Context, account solana.PublicKey, _ rpc.CommitmentType) (*rpc.GetTokenAccountBalanceResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queried = append(f.queried, account)
	if f.tokenErr != nil {
		return nil, f.tokenErr
	}
	return &rpc.GetTokenAccountBalanceResult{Value: &rpc.UiTokenAmount{UiAmountString: f.tokenAmount}}, nil
}

func newFetcher(f *fakeRPC) *wallet.Fetcher {
	return wallet.NewFetcher(f, slog.New(slog.NewTextHandler(io.Discard, nil)), wallet.WithRetryDelay(time.Millisecond))
}

func TestFetch_SOL(t *testing.T) {
	t.Parallel()
	f := &fakeRPC{lamports: 1_234_567_890}

	b, err := newFetcher(f).Fetch(context.Background(), owner.String(), "")
	require.NoError(t, err)
	assert.InDelta(t, 1.23456789, b.Amount, 1e-12)
	assert.Equal(t, "1.2346", b.Display)
	assert.Empty(t, b.Mint)
}

func TestFetch_RetriesTransientErrors(t *testing.T) {
	t.Parallel()
	f := &fakeRPC{lamports: solana.LAMPORTS_PER_SOL, balanceErrs: 2}

	b, err := newFetcher(f).Fetch(context.Background(), owner.String(), "")
	require.NoError(t, err)
	assert.Equal(t, 1.0, b.Amount)
	assert.Equal(t, int32(3), f.balanceCalls.Load())

	f = &fakeRPC{balanceErrs: 5}
	_, err = newFetcher(f).Fetch(context.Background(), owner.String(), "")
	require.Error(t, err)
	assert.Equal(t, int32(3), f.balanceCalls.Load())
}

func TestFetch_InvalidAddress(t *testing.T) {
	t.Parallel()
	f := &fakeRPC{}

	_, err := newFetcher(f).Fetch(context.Background(), "nope", "")
	require.ErrorIs(t, err, wallet.ErrInvalidAddress)
	_, err = newFetcher(f).Fetch(context.Background(), owner.String(), "0OIl")
	require.ErrorIs(t, err, wallet.ErrInvalidAddress)
	assert.Zero(t, f.balanceCalls.Load())
}

func TestFetch_Token(t *testing.T) {
	t.Parallel()
	program := solana.TokenProgramID
	f := &fakeRPC{mintOwner: &program, tokenAmount: "42.5"}

	b, err := newFetcher(f).Fetch(context.Background(), owner.String(), mint.String())
	require.NoError(t, err)
	assert.Equal(t, 42.5, b.Amount)
	assert.Equal(t, "42.5000", b.Display)
	assert.Equal(t, mint.String(), b.Mint)

	want, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	require.NoError(t, err)
	require.Len(t, f.queried, 2)
	assert.Equal(t, mint, f.queried[0])
	assert.Equal(t, want, f.queried[1], "token balance read from the associated token account")
}

func TestFetch_TokenAccountMissingIsZero(t *testing.T) {
	t.Parallel()
	program := solana.Token2022ProgramID
	f := &fakeRPC{mintOwner: &program, tokenErr: errors.New("could not find account")}

	b, err := newFetcher(f).Fetch(context.Background(), owner.String(), mint.String())
	require.NoError(t, err)
	assert.Zero(t, b.Amount)
	assert.Equal(t, "0.0000", b.Display)
}

func TestFetch_UnknownMint(t *testing.T) {
	t.Parallel()
	f := &fakeRPC{}

	_, err := newFetcher(f).Fetch(context.Background(), owner.String(), mint.String())
	require.ErrorIs(t, err, rpc.ErrNotFound)
}

func TestFetch_SharesInFlightCalls(t *testing.T) {
	t.Parallel()
	f := &fakeRPC{
		lamports: 5 * solana.LAMPORTS_PER_SOL,
		block:    make(chan struct{}),
		entered:  make(chan struct{}),
	}
	fetcher := newFetcher(f)

	const callers = 8
	var wg sync.WaitGroup
	results := make([]wallet.Balance, callers)
	errs := make([]error, callers)

	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], errs[0] = fetcher.Fetch(context.Background(), owner.String(), "")
	}()
	<-f.entered

	for i := 1; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = fetcher.Fetch(context.Background(), owner.String(), "")
		}(i)
	}
	time.Sleep(100 * time.Millisecond)
	close(f.block)
	wg.Wait()

	for i := range callers {
		require.NoError(t, errs[i])
		assert.Equal(t, 5.0, results[i].Amount)
	}
	assert.Equal(t, int32(1), f.balanceCalls.Load())
}

func TestFetch_CancelledCallerDoesNotFailOthers(t *testing.T) {
	t.Parallel()
	f := &fakeRPC{
		lamports: 2 * solana.LAMPORTS_PER_SOL,
		block:    make(chan struct{}),
		entered:  make(chan struct{}),
	}
	fetcher := newFetcher(f)

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := fetcher.Fetch(ctx, owner.String(), "")
		first <- err
	}()
	<-f.entered

	type result struct {
		bal wallet.Balance
		err error
	}
	second := make(chan result, 1)
	go func() {
		b, err := fetcher.Fetch(context.Background(), owner.String(), "")
		second <- result{b, err}
	}()
	time.Sleep(50 * time.Millisecond)

	cancel()
	require.ErrorIs(t, <-first, context.Canceled)

	close(f.block)
	res := <-second
	require.NoError(t, res.err)
	assert.Equal(t, 2.0, res.bal.Amount)
	assert.Equal(t, int32(1), f.balanceCalls.Load())
}

func TestFetch_SharedLookupTimesOut(t *testing.T) {
	t.Parallel()
	f := &fakeRPC{balanceErrs: 10}
	fetcher := wallet.NewFetcher(f, slog.New(slog.NewTextHandler(io.Discard, nil)),
		wallet.WithRetryDelay(time.Second),
		wallet.WithTimeout(20*time.Millisecond),
	)

	start := time.Now()
	_, err := fetcher.Fetch(context.Background(), owner.String(), "")
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestFetcher_Redial(t *testing.T) {
	t.Parallel()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	reg, err := wallet.NewRegistry("devnet", nil)
	require.NoError(t, err)
	fetcher, err := wallet.Dial(reg, log)
	require.NoError(t, err)
	assert.Equal(t, "https://api.devnet.solana.com", fetcher.Endpoint())

	require.NoError(t, reg.Select("testnet"))
	require.NoError(t, fetcher.Redial(reg))
	assert.Equal(t, "https://api.testnet.solana.com", fetcher.Endpoint())

	require.NoError(t, reg.Add("custom", "https://rpc.example.com"))
	require.NoError(t, reg.Select("custom"))
	require.NoError(t, reg.Remove("custom", "https://rpc.example.com"))
	require.ErrorIs(t, fetcher.Redial(reg), wallet.ErrNoRPCURL)
	assert.Equal(t, "https://api.testnet.solana.com", fetcher.Endpoint(), "failed redial keeps the old client")
}

func TestAssociatedTokenAddress_MatchesLibrary(t *testing.T) {
	t.Parallel()
	got, err := wallet.AssociatedTokenAddress(owner, solana.TokenProgramID, mint)
	require.NoError(t, err)

	want, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	other, err := wallet.AssociatedTokenAddress(owner, solana.Token2022ProgramID, mint)
	require.NoError(t, err)
	assert.NotEqual(t, want, other)
}

func TestFormatAmount(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "0.0000", wallet.FormatAmount(0))
	assert.Equal(t, "0.1235", wallet.FormatAmount(0.123456))
	assert.Equal(t, "12.0000", wallet.FormatAmount(12))
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	r, err := wallet.NewRegistry("devnet", map[string][]string{
		"devnet": {"https://a.example.com", "https://a.example.com", "https://b.example.com"},
	})
	require.NoError(t, err)
	assert.Equal(t, "devnet", r.Selected())

	urls, err := r.URLs("devnet")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, urls, "duplicates dropped")

	ep, err := r.Endpoint()
	require.NoError(t, err)
	assert.Equal(t, "https://a.example.com", ep)

	require.NoError(t, r.Add("devnet", "https://b.example.com"))
	urls, _ = r.URLs("devnet")
	assert.Len(t, urls, 2)

	require.NoError(t, r.Remove("devnet", "https://a.example.com"))
	require.NoError(t, r.Remove("devnet", "https://b.example.com"))
	urls, _ = r.URLs("devnet")
	assert.Equal(t, wallet.DefaultRPCs[wallet.Devnet], urls, "removing the last url restores defaults")

	require.NoError(t, r.Select("mainnet-beta"))
	ep, err = r.Endpoint()
	require.NoError(t, err)
	assert.Equal(t, "https://api.mainnet.solana.com", ep)

	assert.Equal(t, []string{"devnet", "localnet", "mainnet", "testnet"}, r.Networks())
}

func TestRegistry_Errors(t *testing.T) {
	t.Parallel()

	_, err := wallet.NewRegistry("moon", nil)
	require.ErrorIs(t, err, wallet.ErrUnknownNetwork)

	_, err = wallet.NewRegistry("devnet", map[string][]string{"devnet": {"ftp://x"}})
	require.ErrorIs(t, err, wallet.ErrInvalidURL)

	r, err := wallet.NewRegistry("mainnet", nil)
	require.NoError(t, err)
	require.ErrorIs(t, r.Add("devnet", "not a url"), wallet.ErrInvalidURL)
	require.ErrorIs(t, r.Remove("moon", "https://x"), wallet.ErrUnknownNetwork)
	_, err = r.URLs("moon")
	require.ErrorIs(t, err, wallet.ErrUnknownNetwork)

	require.NoError(t, r.Add("custom", "https://custom.example.com"))
	require.NoError(t, r.Select("custom"))
	require.NoError(t, r.Remove("custom", "https://custom.example.com"))
	_, err = r.Endpoint()
	require.ErrorIs(t, err, wallet.ErrNoRPCURL)
}
