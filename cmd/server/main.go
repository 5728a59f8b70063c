// cmd/server/main.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/ombima56/TranspaCharity/internal/broadcast"
	"github.com/ombima56/TranspaCharity/internal/chains"
	"github.com/ombima56/TranspaCharity/internal/chains/ethereum"
	"github.com/ombima56/TranspaCharity/internal/config"
	"github.com/ombima56/TranspaCharity/internal/domain"
	"github.com/ombima56/TranspaCharity/internal/handler"
	"github.com/ombima56/TranspaCharity/internal/history"
	"github.com/ombima56/TranspaCharity/internal/metrics"
	"github.com/ombima56/TranspaCharity/internal/server"
	"github.com/ombima56/TranspaCharity/internal/statemirror"
	"github.com/ombima56/TranspaCharity/internal/usecase"
	"github.com/ombima56/TranspaCharity/internal/wallet"
)

func main() {
	// Load .env
	_ = godotenv.Load()

	logger, _ := zap.NewProduction()
	if os.Getenv("APP_ENV") == "development" {
		logger, _ = zap.NewDevelopment()
	}
	defer logger.Sync()

	// Load config
	cfg, err := config.Load(logger)
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ============================================================================
	// Metrics
	// ============================================================================
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// ============================================================================
	// Networks
	// ============================================================================
	registry := chains.NewRegistry()
	registry.Register(cfg.Ethereum.Network())

	// ============================================================================
	// Wallet provider
	// ============================================================================
	var provider domain.Provider
	rpcProvider, err := ethereum.NewRPCProvider(ctx, cfg.Ethereum.RPCURL, cfg.Ethereum.PollInterval, logger)
	if err != nil {
		// Run without a wallet; initialize reports the provider as unavailable.
		logger.Warn("Wallet provider unavailable", zap.String("rpc_url", cfg.Ethereum.RPCURL), zap.Error(err))
	} else {
		defer rpcProvider.Close()
		rpcProvider.StartWatcher(ctx)
		provider = rpcProvider
	}

	// ============================================================================
	// Session and usecase
	// ============================================================================
	var uc *usecase.DonationUsecase
	session := wallet.NewSession(
		provider,
		registry,
		broadcast.New(domain.DisconnectedState()),
		wallet.Options{
			Gateway: ethereum.Options{
				ReceiptPollInterval: cfg.Ethereum.ReceiptPollInterval,
				ReceiptTimeout:      cfg.Ethereum.ReceiptTimeout,
			},
			Reload: func(chainID int64) { uc.Reload(chainID) },
		},
		logger,
		m,
	)
	defer session.Close()

	reader := history.NewReader(history.Limits{
		MaxRecords:       cfg.History.MaxRecords,
		FailureThreshold: cfg.History.FailureThreshold,
	}, logger, m)
	uc = usecase.NewDonationUsecase(session, reader, logger)

	// ============================================================================
	// State fan-out
	// ============================================================================
	hub := handler.NewHub(logger, m)
	go hub.Run(ctx)
	defer uc.Subscribe(hub.WalletListener(uc.Status))()
	uc.OnReload(hub.PublishReload)

	if cfg.Redis.Enabled {
		rdb, err := statemirror.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
		if err != nil {
			logger.Warn("Redis unavailable, wallet state mirror disabled", zap.Error(err))
		} else {
			defer rdb.Close()
			mirror := statemirror.NewMirror(rdb, cfg.Redis.StateKey, cfg.Redis.StateChannel, logger)
			go mirror.Run(ctx)
			defer uc.Subscribe(mirror.Enqueue)()
		}
	}

	if _, err := uc.Initialize(ctx); err != nil {
		logger.Warn("Wallet not initialized at startup", zap.Error(err))
	}

	// ============================================================================
	// HTTP
	// ============================================================================
	srv := server.NewServer(
		cfg.App.HTTPPort,
		handler.NewDonationHandler(uc, logger),
		hub,
		reg,
		cfg.CORS.AllowedOrigins,
		logger,
	)
	if err := srv.Run(ctx); err != nil {
		logger.Error("HTTP server stopped with error", zap.Error(err))
	}
	logger.Info("Donation client stopped")
}
