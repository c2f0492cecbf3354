package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gagliardetto/solana-go/rpc"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/openclaw/qrkit/api"
	"github.com/openclaw/qrkit/config"
	"github.com/openclaw/qrkit/qr"
	"github.com/openclaw/qrkit/render"
	"github.com/openclaw/qrkit/session"
	"github.com/openclaw/qrkit/store"
	"github.com/openclaw/qrkit/wallet"
)

var version = "v0.1.0"

func main() {
	root := &cobra.Command{
		Use:   "qrkit",
		Short: "Wallet-connect QR rendering and pairing service",
	}

	var configPath string
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "Path to config file")

	// --- serve command -------------------------------------------------------
	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configPath)
		},
	})

	// --- render command ------------------------------------------------------
	var ro renderFlags
	renderCmd := &cobra.Command{
		Use:   "render [payload]",
		Short: "Render a QR code as svg, png or terminal text",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := ""
			if len(args) == 1 {
				payload = args[0]
			}
			return runRender(configPath, payload, ro, cmd)
		},
	}
	renderCmd.Flags().StringVarP(&ro.format, "format", "f", "term", "Output format: svg, png or term")
	renderCmd.Flags().StringVarP(&ro.out, "out", "o", "", "Output file (default stdout)")
	renderCmd.Flags().StringVar(&ro.level, "ecl", "", "Error correction level: L, M, Q or H")
	renderCmd.Flags().Float64Var(&ro.size, "size", 0, "Symbol size in pixels")
	renderCmd.Flags().BoolVar(&ro.clear, "clear", false, "Keep the centre free for a logo")
	renderCmd.Flags().BoolVar(&ro.frame, "frame", false, "Draw the viewfinder frame (svg)")
	root.AddCommand(renderCmd)

	// --- status command ------------------------------------------------------
	var statusAddr string
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Check the service status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(statusAddr)
		},
	}
	statusCmd.Flags().StringVar(&statusAddr, "addr", "http://localhost:8570", "Service HTTP address")
	root.AddCommand(statusCmd)

	// --- balance command -----------------------------------------------------
	var mint, network string
	balanceCmd := &cobra.Command{
		Use:   "balance [address]",
		Short: "Print the SOL or token balance of a wallet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBalance(cmd.Context(), configPath, network, args[0], mint)
		},
	}
	balanceCmd.Flags().StringVar(&mint, "mint", "", "Token mint address (default native SOL)")
	balanceCmd.Flags().StringVar(&network, "network", "", "Network to query (default from config)")
	root.AddCommand(balanceCmd)

	// --- version command -----------------------------------------------------
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("qrkit %s\n", version)
		},
	})

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(w io.Writer, level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: logLevel}))
}

// qrDefaults converts the qr config section, validating the level.
func qrDefaults(cfg *config.Config) (api.QRDefaults, error) {
	level, err := qr.ParseLevel(cfg.QR.Level)
	if err != nil {
		return api.QRDefaults{}, fmt.Errorf("qr.level: %w", err)
	}
	return api.QRDefaults{
		Size:        cfg.QR.Size,
		Level:       level,
		ClearArea:   cfg.QR.ClearArea,
		OverlaySize: cfg.QR.OverlaySize,
		Padding:     cfg.QR.Padding,
		Foreground:  cfg.QR.Foreground,
		Background:  cfg.QR.Background,
		MaxSize:     cfg.QR.MaxSize,
	}, nil
}

// newFetcher connects to rpc_url when set, otherwise to the first endpoint of
// the selected network. The registry is nil when rpc_url pins the endpoint.
func newFetcher(cfg *config.Config, network string, log *slog.Logger) (*wallet.Fetcher, *wallet.Registry, error) {
	timeout := wallet.WithTimeout(cfg.RPCTimeout.Duration)
	if cfg.RPCURL != "" {
		return wallet.NewFetcher(rpc.New(cfg.RPCURL), log, timeout), nil, nil
	}
	if network == "" {
		network = cfg.Network
	}
	reg, err := wallet.NewRegistry(network, cfg.RPC)
	if err != nil {
		return nil, nil, err
	}
	fetcher, err := wallet.Dial(reg, log, timeout)
	if err != nil {
		return nil, nil, err
	}
	return fetcher, reg, nil
}

// runServe is the main service entrypoint that wires all components together.
func runServe(configPath string) error {
	// 1. Load config
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := cfg.EnsureDataDir(); err != nil {
		return fmt.Errorf("ensure data dir: %w", err)
	}

	// 2. Setup logger
	log := newLogger(os.Stdout, cfg.LogLevel)
	slog.SetDefault(log)

	log.Info("starting qrkit", "version", version, "port", cfg.Port, "data_dir", cfg.DataDir)

	defaults, err := qrDefaults(cfg)
	if err != nil {
		return err
	}

	// 3. Open session store
	sessionStore, err := store.NewSessionStore(cfg.DBPath())
	if err != nil {
		return fmt.Errorf("open session store: %w", err)
	}
	defer sessionStore.Close()

	// 4. Renderer, sessions, balances
	encoder, err := qr.NewEncoder(cfg.Encoder)
	if err != nil {
		return fmt.Errorf("select encoder: %w", err)
	}
	renderer := qr.NewRenderer(encoder, cfg.QR.MemoSize, log)

	webhook := session.NewWebhookSender(cfg.WebhookURL, log)
	manager := session.NewManager(sessionStore, cfg.SessionTTL.Duration, log,
		session.WithNotifier(webhook),
		session.WithNetwork(cfg.Network),
	)

	server := &api.Server{
		Renderer:       renderer,
		Sessions:       manager,
		Defaults:       defaults,
		Network:        cfg.Network,
		Log:            log,
		Version:        version,
		StartTime:      time.Now(),
		BalanceTimeout: cfg.RPCTimeout.Duration,
	}
	if fetcher, reg, err := newFetcher(cfg, "", log); err != nil {
		log.Warn("balance lookups disabled", "error", err)
	} else {
		server.Balances = fetcher
		server.Registry = reg
		if reg == nil {
			log.Info("rpc endpoint pinned by rpc_url", "url", cfg.RPCURL)
		}
	}

	// 5. Run HTTP server and expiry loop until a shutdown signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      api.NewRouter(server),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("HTTP server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return session.RunExpiryLoop(ctx, manager, cfg.SweepInterval.Duration, log)
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown: %w", err)
		}
		return nil
	})

	log.Info("qrkit is running", "qr_url", fmt.Sprintf("http://localhost:%d/qr", cfg.Port))

	if err := g.Wait(); err != nil {
		log.Error("service stopped with error", "error", err)
		return err
	}
	log.Info("goodbye")
	return nil
}

type renderFlags struct {
	format string
	out    string
	level  string
	size   float64
	clear  bool
	frame  bool
}

// runRender renders payload once and writes it to a file or stdout. An empty
// payload renders the loading placeholder.
func runRender(configPath, payload string, f renderFlags, cmd *cobra.Command) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := newLogger(os.Stderr, cfg.LogLevel)

	defaults, err := qrDefaults(cfg)
	if err != nil {
		return err
	}
	opts := qr.Options{
		Payload:     payload,
		Level:       defaults.Level,
		Size:        defaults.Size,
		ClearArea:   defaults.ClearArea || f.clear,
		OverlaySize: defaults.OverlaySize,
		Foreground:  defaults.Foreground,
		Background:  defaults.Background,
	}
	if f.level != "" {
		if opts.Level, err = qr.ParseLevel(f.level); err != nil {
			return err
		}
	}
	if cmd.Flags().Changed("size") {
		opts.Size = f.size
	}

	encoder, err := qr.NewEncoder(cfg.Encoder)
	if err != nil {
		return fmt.Errorf("select encoder: %w", err)
	}
	scene, err := qr.NewRenderer(encoder, 1, log).Render(opts)
	if err != nil {
		return fmt.Errorf("render: %w", err)
	}

	var w io.Writer = os.Stdout
	if f.out != "" {
		file, err := os.Create(f.out)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer file.Close()
		w = file
	}

	switch f.format {
	case "svg":
		return render.WriteSVG(w, scene, render.SVGOptions{Padding: defaults.Padding, Frame: f.frame})
	case "png":
		return render.WritePNG(w, scene, defaults.Padding)
	case "term", "terminal":
		_, err := io.WriteString(w, render.Terminal(scene))
		return err
	default:
		return fmt.Errorf("unknown format %q (want svg, png or term)", f.format)
	}
}

// runStatus queries the service HTTP status endpoint.
func runStatus(addr string) error {
	resp, err := http.Get(addr + "/status")
	if err != nil {
		return fmt.Errorf("failed to reach qrkit at %s: %w", addr, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return fmt.Errorf("read status: %w", err)
	}
	fmt.Println(string(body))
	return nil
}

// runBalance prints a wallet balance with four decimals.
func runBalance(ctx context.Context, configPath, network, address, mint string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := newLogger(os.Stderr, cfg.LogLevel)

	fetcher, _, err := newFetcher(cfg, network, log)
	if err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, cfg.RPCTimeout.Duration)
	defer cancel()

	bal, err := fetcher.Fetch(ctx, address, mint)
	if err != nil {
		return err
	}
	unit := "SOL"
	if mint != "" {
		unit = session.ShortAddress(mint)
	}
	fmt.Printf("%s %s %s\n", session.ShortAddress(address), bal.Display, unit)
	return nil
}
