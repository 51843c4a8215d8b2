// Package report renders completed simulation runs for humans: text
// summaries for the CLI and CSV exports of the trade log and chart series.
package report

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// FormatInt formats an integer with comma separators.
func FormatInt(n int64) string {
	s := fmt.Sprintf("%d", n)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	if len(s) > 3 {
		var b strings.Builder
		start := len(s) % 3
		if start > 0 {
			b.WriteString(s[:start])
		}
		for i := start; i < len(s); i += 3 {
			if b.Len() > 0 {
				b.WriteByte(',')
			}
			b.WriteString(s[i : i+3])
		}
		s = b.String()
	}
	if neg {
		return "-" + s
	}
	return s
}

// FormatUSD formats a dollar amount as $X,XXX.XX.
func FormatUSD(v decimal.Decimal) string {
	s := v.StringFixed(2)
	whole, frac, _ := strings.Cut(s, ".")
	neg := strings.HasPrefix(whole, "-")
	if neg {
		whole = whole[1:]
	}
	n, err := decimal.NewFromString(whole)
	if err == nil {
		whole = FormatInt(n.IntPart())
	}
	out := "$" + whole + "." + frac
	if neg {
		return "-" + out
	}
	return out
}

// FormatPct formats a fractional value as a signed percentage, e.g. 0.0351
// renders as "+3.51%".
func FormatPct(f float64) string {
	return fmt.Sprintf("%+.2f%%", f*100)
}

// FormatRatio formats a unitless statistic such as a Sharpe ratio.
func FormatRatio(f float64) string {
	return fmt.Sprintf("%.2f", f)
}
