package report

import (
	"fmt"
	"io"
	"strings"

	"marlin/internal/backtest"
)

// WriteSummary writes a human-readable text summary of a completed run.
func WriteSummary(w io.Writer, r *backtest.Result) error {
	var b strings.Builder

	fmt.Fprintf(&b, "Backtest %s\n", r.ID)
	fmt.Fprintf(&b, "  Strategy:       %s\n", r.Config.Strategy)
	fmt.Fprintf(&b, "  Symbols:        %s\n", strings.Join(r.Config.Symbols, ", "))
	fmt.Fprintf(&b, "  Period:         %s to %s\n",
		r.Config.Start.Format("2006-01-02"), r.Config.End.Format("2006-01-02"))
	fmt.Fprintf(&b, "  Initial:        %s\n", FormatUSD(r.Config.InitialCapital))
	fmt.Fprintf(&b, "  Final:          %s\n", FormatUSD(r.FinalValue))
	fmt.Fprintf(&b, "  Cash:           %s\n", FormatUSD(r.Cash))
	b.WriteString("\n")

	m := r.Metrics
	fmt.Fprintf(&b, "  Total return:   %s\n", FormatPct(m.TotalReturn))
	fmt.Fprintf(&b, "  Sharpe ratio:   %s\n", FormatRatio(m.SharpeRatio))
	fmt.Fprintf(&b, "  Max drawdown:   %s\n", FormatPct(m.MaxDrawdown))
	fmt.Fprintf(&b, "  Volatility:     %s\n", FormatPct(m.Volatility))
	fmt.Fprintf(&b, "  Win rate:       %s\n", FormatPct(m.WinRate))
	fmt.Fprintf(&b, "  Trades:         %s\n", FormatInt(int64(m.TotalTrades)))

	if len(r.Positions) > 0 {
		b.WriteString("\n  Open positions:\n")
		for _, sym := range r.Config.Symbols {
			if qty, ok := r.Positions[sym]; ok {
				fmt.Fprintf(&b, "    %-6s %s shares\n", sym, FormatInt(qty))
			}
		}
	}

	if len(r.RiskEvents) > 0 {
		b.WriteString("\n  Risk events:\n")
		for _, ev := range r.RiskEvents {
			fmt.Fprintf(&b, "    %s  %s at %s\n",
				ev.Date.Format("2006-01-02"), ev.Reason, FormatUSD(ev.Value))
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}
