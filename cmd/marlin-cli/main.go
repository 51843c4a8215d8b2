package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"marlin/pkg/marlin"
)

const version = "0.1.0"

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: marlin-cli [-server URL] <command> [options]\n\n")
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  version      Print the CLI version\n")
		fmt.Fprintf(os.Stderr, "  strategies   List available strategies\n")
		fmt.Fprintf(os.Stderr, "  runs         List stored backtest runs\n")
		fmt.Fprintf(os.Stderr, "  show <id>    Show one stored run\n")
		fmt.Fprintf(os.Stderr, "\n")
	}

	server := flag.String("server", envOr("MARLIN_SERVER", "http://localhost:8080"), "marlin-server base URL")
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}

	client := marlin.NewClient(*server)
	ctx := context.Background()

	switch flag.Arg(0) {
	case "version":
		fmt.Printf("marlin-cli %s\n", version)

	case "strategies":
		strategies, err := client.Strategies(ctx)
		if err != nil {
			fatal("listing strategies: %v", err)
		}
		for _, s := range strategies {
			fmt.Println(s)
		}

	case "runs":
		runs, err := client.ListBacktests(ctx)
		if err != nil {
			fatal("listing runs: %v", err)
		}
		if len(runs) == 0 {
			fmt.Println("no stored runs")
			return
		}
		fmt.Printf("%-36s  %-16s  %-19s  %12s  %8s  %6s\n",
			"ID", "STRATEGY", "RAN AT", "FINAL", "RETURN", "TRADES")
		for _, r := range runs {
			fmt.Printf("%-36s  %-16s  %-19s  %12.2f  %7.2f%%  %6d\n",
				r.ID, r.Strategy, r.RanAt.Format(time.DateTime),
				r.FinalValue, r.TotalReturn*100, r.TotalTrades)
		}

	case "show":
		if flag.NArg() < 2 {
			fatal("show requires a run ID")
		}
		run, err := client.GetBacktest(ctx, flag.Arg(1))
		if err != nil {
			fatal("fetching run: %v", err)
		}
		printRun(run)

	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", flag.Arg(0))
		flag.Usage()
		os.Exit(1)
	}
}

func printRun(r *marlin.Backtest) {
	fmt.Printf("Backtest %s\n", r.ID)
	fmt.Printf("  Strategy:      %s\n", r.Strategy)
	fmt.Printf("  Symbols:       %s\n", strings.Join(r.Symbols, ", "))
	fmt.Printf("  Period:        %s to %s\n", r.StartDate, r.EndDate)
	fmt.Printf("  Initial:       %.2f\n", r.Initial)
	fmt.Printf("  Final:         %.2f\n", r.FinalValue)
	fmt.Printf("  Total return:  %.2f%%\n", r.Metrics.TotalReturn*100)
	fmt.Printf("  Sharpe ratio:  %.2f\n", r.Metrics.SharpeRatio)
	fmt.Printf("  Max drawdown:  %.2f%%\n", r.Metrics.MaxDrawdown*100)
	fmt.Printf("  Win rate:      %.2f%%\n", r.Metrics.WinRate*100)
	fmt.Printf("  Trades:        %d\n", r.Metrics.TotalTrades)

	if len(r.Trades) > 0 {
		fmt.Println("\n  Trades:")
		for _, t := range r.Trades {
			fmt.Printf("    %s  %-4s %-6s %6d @ %10.2f  %s\n",
				t.Date, t.Side, t.Symbol, t.Quantity, t.Price, t.Reason)
		}
	}
	if len(r.RiskEvents) > 0 {
		fmt.Println("\n  Risk events:")
		for _, e := range r.RiskEvents {
			fmt.Printf("    %s  %s at %.2f\n", e.Date, e.Reason, e.Value)
		}
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
