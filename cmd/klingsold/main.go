// Package main provides the klingsold daemon - a Solana wallet with a local JSON-RPC API.
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/Klingon-tech/klingsol/internal/backend"
	"github.com/Klingon-tech/klingsol/internal/chain"
	"github.com/Klingon-tech/klingsol/internal/config"
	"github.com/Klingon-tech/klingsol/internal/price"
	"github.com/Klingon-tech/klingsol/internal/rpc"
	"github.com/Klingon-tech/klingsol/internal/storage"
	"github.com/Klingon-tech/klingsol/internal/swap"
	"github.com/Klingon-tech/klingsol/internal/sync"
	"github.com/Klingon-tech/klingsol/internal/wallet"
	"github.com/Klingon-tech/klingsol/pkg/logging"
)

var (
	version = "0.1.0-dev"
	commit  = "unknown"
)

var errExternalMismatch = errors.New("external keypair file does not match external address")

func main() {
	// Parse flags
	var (
		dataDir     = flag.String("data-dir", config.DefaultDataDir, "Data directory")
		configDir   = flag.String("config-dir", "", "Directory holding config.yaml (default: data-dir)")
		apiAddr     = flag.String("api", "", "JSON-RPC API address, overrides config")
		network     = flag.String("network", "", "Solana cluster (mainnet, devnet, testnet, localnet), overrides config")
		rpcURL      = flag.String("rpc-url", "", "Solana RPC endpoint, overrides config")
		logLevel    = flag.String("log-level", "", "Log level (debug, info, warn, error), overrides config")
		showVersion = flag.Bool("version", false, "Show version and exit")
	)
	flag.Parse()

	// Set up logging (initial, may be overridden by config)
	log := logging.New(&logging.Config{
		Level:      "info",
		TimeFormat: time.TimeOnly,
	})
	logging.SetDefault(log)

	if *showVersion {
		log.Infof("klingsold %s (commit: %s)", version, commit)
		os.Exit(0)
	}

	// Load or create config file
	cfgDir := *dataDir
	if *configDir != "" {
		cfgDir = *configDir
	}
	cfg, err := config.LoadConfig(config.ExpandPath(cfgDir))
	if err != nil {
		log.Fatal("Failed to load config", "error", err)
	}
	if flagSet("data-dir") {
		cfg.Storage.DataDir = *dataDir
	}

	// Apply CLI overrides (CLI flags take precedence over config file)
	if *network != "" {
		n, err := chain.ParseNetwork(*network)
		if err != nil {
			log.Fatal("Invalid network", "error", err)
		}
		cfg.Network = n
	}
	if *apiAddr != "" {
		cfg.API.Listen = *apiAddr
	}
	if *rpcURL != "" {
		cfg.RPC.URL = *rpcURL
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}

	// Update logging with config level
	log = logging.New(&logging.Config{
		Level:      cfg.Logging.Level,
		TimeFormat: time.TimeOnly,
	})
	logging.SetDefault(log)

	log.Info("Config loaded", "path", config.ConfigPath(config.ExpandPath(cfgDir)))

	params, err := cfg.Params()
	if err != nil {
		log.Fatal("Invalid network", "error", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Each cluster keeps its own keystore and database
	dataPath := filepath.Join(config.ExpandPath(cfg.Storage.DataDir), string(params.Network))
	store, err := storage.New(&storage.Config{DataDir: dataPath})
	if err != nil {
		log.Fatal("Failed to initialize storage", "error", err)
	}
	defer store.Close()
	log.Info("Storage initialized", "path", dataPath)

	// Solana RPC backend
	client, err := backend.NewSolanaRPC(&backend.Config{
		URL:        cfg.RPCURL(),
		Commitment: cfg.RPC.Commitment,
		Timeout:    cfg.RPC.Timeout,
	})
	if err != nil {
		log.Fatal("Failed to create RPC backend", "error", err)
	}
	defer client.Close()

	connectCtx, connectCancel := context.WithTimeout(ctx, 10*time.Second)
	if err := client.Connect(connectCtx); err != nil {
		log.Warn("RPC endpoint not reachable, continuing offline", "url", client.URL(), "error", err)
	} else {
		log.Info("Connected to cluster", "network", params.Network, "url", client.URL())
	}
	connectCancel()

	// Optional price feed and swap provider
	var prices price.Source
	if cfg.Price.Enabled {
		prices = price.New(&price.Config{URL: cfg.Price.URL, CacheTTL: cfg.Price.CacheTTL})
	}
	var swapper swap.Provider
	if params.Network == chain.Mainnet {
		swapper = swap.NewJupiter(&swap.Config{QuoteURL: cfg.Swap.QuoteURL, SwapURL: cfg.Swap.SwapURL})
	}

	external, err := loadExternal(cfg.External)
	if err != nil {
		log.Fatal("Invalid external wallet", "error", err)
	}

	decimals := cfg.Token.Decimals
	walletService, err := wallet.NewService(&wallet.ServiceConfig{
		DataDir:     dataPath,
		Network:     params.Network,
		Backend:     client,
		Storage:     store,
		Prices:      prices,
		Swapper:     swapper,
		SlippageBps: cfg.Swap.SlippageBps,
		External:    external,
		TokenDefaults: &wallet.MintRequest{
			Name:        cfg.Token.Name,
			Symbol:      cfg.Token.Symbol,
			URI:         cfg.Token.URI,
			Description: cfg.Token.Description,
			Decimals:    &decimals,
			Amount:      cfg.Token.Amount,
		},
		ConfirmTimeout: cfg.RPC.ConfirmTimeout,
		Logger:         log,
	})
	if err != nil {
		log.Fatal("Failed to initialize wallet service", "error", err)
	}
	log.Info("Wallet service initialized", "network", params.Network, "accounts", len(walletService.Accounts()))

	// Start RPC server and route wallet events to WebSocket clients
	rpcServer := rpc.NewServer(walletService)
	rpcServer.SetAllowedOrigins(cfg.API.AllowedOrigins)
	walletService.SetEvents(rpcServer.WSHub())
	if err := rpcServer.Start(cfg.API.Listen); err != nil {
		log.Fatal("Failed to start RPC server", "error", err)
	}

	// Background workers
	tracker := sync.NewConfirmTracker(client, store, rpcServer.WSHub(), sync.ConfirmTrackerConfig{
		PollInterval:  cfg.Sync.ConfirmInterval,
		PendingExpiry: cfg.Sync.PendingExpiry,
	})
	tracker.Start()

	balanceSync, err := sync.NewBalanceSync(walletService, cfg.Sync.BalanceSchedule, cfg.RPC.Timeout)
	if err != nil {
		log.Fatal("Failed to schedule balance sync", "error", err)
	}
	balanceSync.Start()
	go func() {
		if err := balanceSync.RunNow(); err == nil {
			log.Info("Balances synced", "accounts", len(walletService.Accounts()))
		}
	}()

	printBanner(log, params, cfg, rpcServer.Addr(), dataPath, external)

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	<-sigCh
	log.Info("Shutting down...")

	// Graceful shutdown
	cancel()

	balanceSync.Stop()
	tracker.Stop()

	if err := rpcServer.Stop(); err != nil {
		log.Error("Error stopping RPC server", "error", err)
	}
	walletService.Lock()

	log.Info("Goodbye!")
}

// loadExternal resolves the external wallet from config. A keypair file
// makes deposits signable here; its address must match Address when both
// are set.
func loadExternal(cfg config.ExternalConfig) (wallet.ExternalWallet, error) {
	var ext wallet.ExternalWallet

	if cfg.Address != "" {
		addr, err := solana.PublicKeyFromBase58(cfg.Address)
		if err != nil {
			return ext, err
		}
		ext.Address = addr
	}

	if cfg.KeypairFile != "" {
		key, err := wallet.LoadKeypairFile(config.ExpandPath(cfg.KeypairFile))
		if err != nil {
			return ext, err
		}
		if !ext.Address.IsZero() && !ext.Address.Equals(key.PublicKey()) {
			return ext, errExternalMismatch
		}
		ext.Address = key.PublicKey()
		ext.Signer = key
	}

	return ext, nil
}

func flagSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

func printBanner(log *logging.Logger, params *chain.Params, cfg *config.Config, apiAddr, dataPath string, external wallet.ExternalWallet) {
	log.Info("")
	log.Info("=================================================")
	log.Infof("  klingsol wallet daemon (%s)", params.Name)
	log.Infof("  Version: %s", version)
	log.Info("=================================================")
	log.Info("")
	log.Infof("  Cluster RPC: %s", cfg.RPCURL())
	log.Infof("  API: http://%s", apiAddr)
	log.Infof("  WS:  ws://%s/ws", apiAddr)
	log.Info("")
	if !external.Address.IsZero() {
		log.Infof("  External wallet: %s (signer: %v)", external.Address, external.Signer != nil)
	}
	log.Infof("  Airdrop: %v | Swaps: %v", params.AirdropEnabled, params.Network == chain.Mainnet)
	log.Infof("  Data dir: %s", dataPath)
	log.Info("")
	log.Info("=================================================")
	log.Info("")
}
