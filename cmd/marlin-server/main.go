package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"marlin/internal/backtest"
	"marlin/internal/config"
	"marlin/internal/httpapi"
	"marlin/internal/marketdata"
	"marlin/internal/store"
	"marlin/internal/strategy/builtins"
	"marlin/internal/util"
)

func main() {
	cfgPath := "config/marlin.yaml"
	if p := os.Getenv("MARLIN_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.NewLogger(cfg.Logging.Level)
	slog.SetDefault(logger)

	var src marketdata.PriceSource
	switch cfg.Backtest.Source {
	case "store":
		src = marketdata.NewStoreSource(store.NewParquetStore(cfg.Storage.DataDir))
	default:
		src = marketdata.NewAlpacaSource(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret,
			cfg.Alpaca.DataURL, cfg.Alpaca.RateLimitPerMin)
	}

	runs, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
	if err != nil {
		log.Fatalf("opening run store: %v", err)
	}
	defer runs.Close()

	registry := builtins.NewRegistry()
	engine := backtest.NewEngine(src, registry, logger)
	api := httpapi.NewServer(engine, registry, runs, logger)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go func() {
		logger.Info("marlin-server listening", "addr", addr, "source", cfg.Backtest.Source)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	logger.Info("marlin-server stopped")
}
