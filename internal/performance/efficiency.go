// Package performance computes win rate, profit factor and drawdown over the
// signal history.
package performance

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/newthinker/signalwatch/internal/core"
)

// Efficiency is the realized percent move of sig relative to its entry midpoint.
//
// Closed signals report the fixed percentage of the most significant hit,
// falling back to the last price. Open signals report the live move, except
// that a take-profit already hit is locked in once price drops back below it.
func Efficiency(sig core.Signal) float64 {
	if sig.EntryPrice() == 0 {
		return 0
	}
	live := sig.PercentFromEntry(sig.CurrentPrice)

	if sig.Status == core.StatusClosed {
		switch {
		case sig.TP3HitAt != nil:
			return sig.TP3Pct
		case sig.TP2HitAt != nil:
			return sig.TP2Pct
		case sig.TP1HitAt != nil:
			return sig.TP1Pct
		case sig.SLHitAt != nil:
			return sig.StopLossPct
		}
		return live
	}

	switch {
	case sig.TP3HitAt != nil && sig.CurrentPrice < sig.TP3Price:
		return sig.TP3Pct
	case sig.TP2HitAt != nil && sig.CurrentPrice < sig.TP2Price:
		return sig.TP2Pct
	case sig.TP1HitAt != nil && sig.CurrentPrice < sig.TP1Price:
		return sig.TP1Pct
	}
	return live
}

// round2 rounds half away from zero to two decimals and maps NaN/Inf to 0.
func round2(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

func sum(values []float64) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(decimal.NewFromFloat(v))
	}
	return total
}
