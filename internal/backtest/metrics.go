package backtest

import (
	"math"

	"github.com/shopspring/decimal"

	"marlin/internal/domain"
)

// tradingDaysPerYear is the annualization factor for daily return series.
const tradingDaysPerYear = 252

// Placeholder benchmark statistics. The engine does not regress against a
// real benchmark series; these named defaults keep the metric surface
// stable so a future benchmark-covariance implementation is a strict
// extension.
const (
	DefaultAlpha        = 0.02
	DefaultBeta         = 1.1
	DefaultRiskFreeRate = 0.02 // annual
)

// Metrics holds the summary performance statistics of a completed run. All
// fields are derived from the ledger history and trade log, exactly once.
type Metrics struct {
	TotalReturn float64 `json:"total_return"`
	SharpeRatio float64 `json:"sharpe_ratio"`
	MaxDrawdown float64 `json:"max_drawdown"`
	WinRate     float64 `json:"win_rate"`
	Volatility  float64 `json:"volatility"`
	Alpha       float64 `json:"alpha"`
	Beta        float64 `json:"beta"`
	TotalTrades int     `json:"total_trades"`
}

// MetricsCalculator computes Metrics from a finished ledger. The exported
// fields override the placeholder constants when a caller supplies real
// benchmark statistics.
type MetricsCalculator struct {
	RiskFreeRate float64
	Alpha        float64
	Beta         float64
}

// NewMetricsCalculator returns a calculator with the default placeholder
// statistics.
func NewMetricsCalculator() *MetricsCalculator {
	return &MetricsCalculator{
		RiskFreeRate: DefaultRiskFreeRate,
		Alpha:        DefaultAlpha,
		Beta:         DefaultBeta,
	}
}

// Compute derives the full metric set from the ledger's valuation history,
// daily returns, and the trade log.
func (c *MetricsCalculator) Compute(ledger *Ledger, trades []domain.Trade) Metrics {
	initial := ledger.InitialCapital()
	valuations := ledger.Valuations()
	final := valuations[len(valuations)-1].Value
	returns := ledger.Returns()

	totalReturn, _ := final.Sub(initial).Div(initial).Float64()

	dailyVol := populationStddev(returns)
	volatility := dailyVol * math.Sqrt(tradingDaysPerYear)

	var sharpe float64
	if len(returns) > 0 && dailyVol > 0 {
		dailyRiskFree := c.RiskFreeRate / tradingDaysPerYear
		sharpe = (mean(returns) - dailyRiskFree) / dailyVol
	}

	return Metrics{
		TotalReturn: totalReturn,
		SharpeRatio: sharpe,
		MaxDrawdown: maxDrawdown(valuations),
		WinRate:     winRate(trades),
		Volatility:  volatility,
		Alpha:       c.Alpha,
		Beta:        c.Beta,
		TotalTrades: len(trades),
	}
}

// maxDrawdown returns the largest fractional decline from a running peak
// over the full valuation history, seed entry included.
func maxDrawdown(valuations []ValuationPoint) float64 {
	var worst float64
	peak := decimal.Zero
	for _, v := range valuations {
		if v.Value.GreaterThan(peak) {
			peak = v.Value
		}
		if peak.IsPositive() {
			dd, _ := peak.Sub(v.Value).Div(peak).Float64()
			if dd > worst {
				worst = dd
			}
		}
	}
	return worst
}

// winRate returns the fraction of SELL trades whose price exceeds the price
// of the earliest prior BUY for the same symbol. This is a deliberate
// approximation, not FIFO lot accounting: the matched BUY is the first one
// dated strictly before the SELL, regardless of intervening round trips. A
// SELL with no prior BUY counts as a loss.
func winRate(trades []domain.Trade) float64 {
	var sells, wins int
	for _, sell := range trades {
		if sell.Side != domain.SideSell {
			continue
		}
		sells++

		for _, buy := range trades {
			if buy.Side != domain.SideBuy || buy.Symbol != sell.Symbol {
				continue
			}
			if !buy.Date.Before(sell.Date) {
				continue
			}
			if sell.Price.GreaterThan(buy.Price) {
				wins++
			}
			break
		}
	}

	if sells == 0 {
		return 0
	}
	return float64(wins) / float64(sells)
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// populationStddev is the population (not sample) standard deviation.
func populationStddev(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	m := mean(xs)
	var sq float64
	for _, x := range xs {
		d := x - m
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(xs)))
}
