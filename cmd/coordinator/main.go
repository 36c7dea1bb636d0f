package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	apperrors "github.com/chainflux/tokenbridge/pkg/app/errors"
	"github.com/chainflux/tokenbridge/pkg/bridge"
	"github.com/chainflux/tokenbridge/pkg/chain"
	"github.com/chainflux/tokenbridge/pkg/chain/evm"
	"github.com/chainflux/tokenbridge/pkg/chain/solana"
	"github.com/chainflux/tokenbridge/pkg/chain/tron"
	"github.com/chainflux/tokenbridge/pkg/config"
	"github.com/chainflux/tokenbridge/pkg/pgutil"
	"github.com/chainflux/tokenbridge/pkg/relayer"
	"github.com/chainflux/tokenbridge/pkg/transferstore"
)

var configPath = flag.String("config", "config.yaml", "Path to configuration file")

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting bridge coordinator")

	db, err := pgutil.ConnectDB(&cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	store := transferstore.NewStore(db)

	adapters, thresholds := buildAdapters(cfg, logger)
	if len(adapters) == 0 {
		logger.Warn("No chain adapters configured; every bridge request will be rejected")
	}
	logger.Info("Chain adapters configured", zap.Strings("chains", adapters.Names()))

	service := bridge.NewService(adapters, store, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rel := relayer.New(adapters, store, thresholds, cfg.Relayer.SweepInterval, logger)
	go rel.Run(ctx)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Health check endpoint (liveness)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Readiness endpoint - the coordinator is ready once the database answers
	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("NOT_READY"))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("READY"))
	})

	if cfg.Monitoring.Enabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/transfers/{id}", handleGetTransfer(service, logger))
	})

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("address", serverAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutdown signal received, gracefully shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", zap.Error(err))
	}

	logger.Info("Coordinator stopped")
}

// buildAdapters constructs the adapter registry and per-chain confirmation
// thresholds. A chain whose configuration is absent or unusable simply yields
// no adapter; requests for it fail later as "unsupported chain".
func buildAdapters(cfg *config.Config, logger *zap.Logger) (chain.Registry, map[string]uint64) {
	adapters := make(chain.Registry)
	thresholds := make(map[string]uint64)

	evmConfigs := append([]config.EVMChainConfig{cfg.Ethereum}, cfg.EVMNetworks...)
	for _, networkCfg := range evmConfigs {
		if !networkCfg.Enabled() {
			continue
		}
		adapter, err := evm.New(networkCfg, logger)
		if err != nil {
			logger.Warn("Skipping EVM network",
				zap.String("chain", networkCfg.Name),
				zap.Error(err))
			continue
		}
		adapters[adapter.Name()] = adapter
		thresholds[adapter.Name()] = networkCfg.Confirmations
	}

	if cfg.Solana.Enabled() {
		adapter, err := solana.New(cfg.Solana, logger)
		if err != nil {
			logger.Warn("Skipping Solana", zap.Error(err))
		} else {
			adapters[adapter.Name()] = adapter
			thresholds[adapter.Name()] = cfg.Solana.Confirmations
		}
	}

	if cfg.Tron.Enabled() {
		adapter, err := tron.New(cfg.Tron, logger)
		if err != nil {
			logger.Warn("Skipping Tron", zap.Error(err))
		} else {
			adapters[adapter.Name()] = adapter
			thresholds[adapter.Name()] = cfg.Tron.Confirmations
		}
	}

	return adapters, thresholds
}

func handleGetTransfer(service bridge.Service, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		status, err := service.GetBridgeStatus(r.Context(), id)
		if err != nil {
			logger.Error("Failed to get transfer", zap.Error(err), zap.String("id", id))
			code := http.StatusInternalServerError
			var svcErr *apperrors.ServiceError
			if errors.As(err, &svcErr) {
				code = svcErr.StatusCode()
			}
			w.WriteHeader(code)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(status); err != nil {
			logger.Error("Failed to encode response", zap.Error(err))
		}
	}
}
