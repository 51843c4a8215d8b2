package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"marlin/internal/config"
	"marlin/internal/marketdata"
	"marlin/internal/store"
	"marlin/internal/util"
)

// marlin-fetch backfills daily bars from Alpaca into the local Parquet
// store, so backtests can run offline with source "store".
func main() {
	var (
		symbols = flag.String("symbols", "", "comma-separated symbols (defaults to backtest.symbols from config)")
		start   = flag.String("start", "", "start date YYYY-MM-DD")
		end     = flag.String("end", time.Now().UTC().Format("2006-01-02"), "end date YYYY-MM-DD")
	)
	flag.Parse()

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

	syms := cfg.Backtest.Symbols
	if *symbols != "" {
		syms = strings.Split(*symbols, ",")
	}
	if len(syms) == 0 {
		log.Fatalf("no symbols: pass -symbols or set backtest.symbols in config")
	}

	startDate, err := time.Parse("2006-01-02", *start)
	if err != nil {
		log.Fatalf("invalid start date %q: %v", *start, err)
	}
	endDate, err := time.Parse("2006-01-02", *end)
	if err != nil {
		log.Fatalf("invalid end date %q: %v", *end, err)
	}

	src := marketdata.NewAlpacaSource(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret,
		cfg.Alpaca.DataURL, cfg.Alpaca.RateLimitPerMin)
	pstore := store.NewParquetStore(cfg.Storage.DataDir)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("fetching bars", "symbols", len(syms), "start", *start, "end", *end)
	bars, err := marketdata.Load(ctx, src, syms, startDate, endDate)
	if err != nil {
		log.Fatalf("fetching bars: %v", err)
	}

	var total int
	for sym, series := range bars {
		if err := pstore.WriteBars(ctx, series); err != nil {
			log.Fatalf("writing bars for %s: %v", sym, err)
		}
		total += len(series)
	}
	logger.Info("fetch complete", "symbols", len(bars), "bars", total, "dataDir", cfg.Storage.DataDir)
}
