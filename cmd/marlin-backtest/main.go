package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"marlin/internal/backtest"
	"marlin/internal/config"
	"marlin/internal/marketdata"
	"marlin/internal/report"
	"marlin/internal/store"
	"marlin/internal/strategy/builtins"
	"marlin/internal/util"
)

func main() {
	var (
		symbols   = flag.String("symbols", "", "comma-separated symbols (overrides config)")
		strat     = flag.String("strategy", "", "strategy name (overrides config)")
		start     = flag.String("start", "", "start date YYYY-MM-DD (overrides config)")
		end       = flag.String("end", "", "end date YYYY-MM-DD (overrides config)")
		capital   = flag.Float64("capital", 0, "initial capital (overrides config)")
		source    = flag.String("source", "", "price source: alpaca or store (overrides config)")
		tradesCSV = flag.String("trades-csv", "", "write the trade log to this CSV file")
		chartCSV  = flag.String("chart-csv", "", "write the chart series to this CSV file")
		noSave    = flag.Bool("no-save", false, "do not persist the run to the run store")
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

	bt := cfg.Backtest
	if *symbols != "" {
		bt.Symbols = strings.Split(*symbols, ",")
	}
	if *strat != "" {
		bt.Strategy = *strat
	}
	if *start != "" {
		bt.StartDate = *start
	}
	if *end != "" {
		bt.EndDate = *end
	}
	if *capital > 0 {
		bt.InitialCapital = *capital
	}
	if *source != "" {
		bt.Source = *source
	}

	runCfg, err := toRunConfig(bt)
	if err != nil {
		log.Fatalf("invalid backtest config: %v", err)
	}

	logger := util.NewLogger(cfg.Logging.Level)
	slog.SetDefault(logger)

	src, err := newSource(cfg, bt.Source)
	if err != nil {
		log.Fatalf("configuring price source: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	engine := backtest.NewEngine(src, builtins.NewRegistry(), logger)
	result, err := engine.Run(ctx, runCfg)
	if err != nil {
		log.Fatalf("backtest failed: %v", err)
	}

	if !*noSave {
		runs, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
		if err != nil {
			log.Fatalf("opening run store: %v", err)
		}
		defer runs.Close()
		if err := runs.SaveRun(ctx, result); err != nil {
			log.Fatalf("saving run: %v", err)
		}
	}

	if err := report.WriteSummary(os.Stdout, result); err != nil {
		log.Fatalf("writing summary: %v", err)
	}

	if *tradesCSV != "" {
		if err := writeFile(*tradesCSV, func(f *os.File) error {
			return report.WriteTradesCSV(f, result.Trades)
		}); err != nil {
			log.Fatalf("writing trades csv: %v", err)
		}
		fmt.Printf("\ntrade log written to %s\n", *tradesCSV)
	}
	if *chartCSV != "" {
		if err := writeFile(*chartCSV, func(f *os.File) error {
			return report.WriteChartCSV(f, result.Chart)
		}); err != nil {
			log.Fatalf("writing chart csv: %v", err)
		}
		fmt.Printf("chart series written to %s\n", *chartCSV)
	}
}

func toRunConfig(bt config.BacktestConfig) (backtest.Config, error) {
	var cfg backtest.Config

	start, err := time.Parse("2006-01-02", bt.StartDate)
	if err != nil {
		return cfg, fmt.Errorf("invalid start date %q: %w", bt.StartDate, err)
	}
	end, err := time.Parse("2006-01-02", bt.EndDate)
	if err != nil {
		return cfg, fmt.Errorf("invalid end date %q: %w", bt.EndDate, err)
	}

	return backtest.Config{
		Symbols:        bt.Symbols,
		Start:          start,
		End:            end,
		InitialCapital: decimal.NewFromFloat(bt.InitialCapital),
		Strategy:       bt.Strategy,
		Risk: backtest.RiskLimits{
			MaxDrawdownPct:   bt.Risk.MaxDrawdownPct,
			VolatilityCapPct: bt.Risk.VolatilityCapPct,
			StopLossPct:      bt.Risk.StopLossPct,
		},
	}, nil
}

func newSource(cfg *config.Config, kind string) (marketdata.PriceSource, error) {
	switch kind {
	case "alpaca":
		return marketdata.NewAlpacaSource(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret,
			cfg.Alpaca.DataURL, cfg.Alpaca.RateLimitPerMin), nil
	case "store":
		return marketdata.NewStoreSource(store.NewParquetStore(cfg.Storage.DataDir)), nil
	default:
		return nil, fmt.Errorf("unknown source %q (want alpaca or store)", kind)
	}
}

func writeFile(path string, write func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
