// Package lifecycle advances signals through their state machine as quotes arrive.
package lifecycle

import (
	"time"

	"github.com/newthinker/signalwatch/internal/core"
)

// DefaultGracePeriod suppresses threshold checks right after a signal is issued.
const DefaultGracePeriod = 60 * time.Hour

// Result is the outcome of evaluating one signal against one quote.
type Result struct {
	Signal  core.Signal
	Events  []core.HitEvent
	Changed bool
}

// Evaluator applies quotes to signals. It holds no state besides its settings.
type Evaluator struct {
	GracePeriod time.Duration

	// For testing: allow time advancement
	Now func() time.Time
}

// NewEvaluator creates an evaluator with the default grace period.
func NewEvaluator() *Evaluator {
	return &Evaluator{
		GracePeriod: DefaultGracePeriod,
		Now:         time.Now,
	}
}

func (e *Evaluator) now() time.Time {
	if e.Now == nil {
		return time.Now()
	}
	return e.Now()
}

// Evaluate refreshes sig with quote and fires any thresholds crossed.
// An unusable quote or an already closed signal leaves sig untouched.
func (e *Evaluator) Evaluate(sig core.Signal, quote core.Quote, marketOpen bool) Result {
	if !quote.Valid() || sig.Status == core.StatusClosed {
		return Result{Signal: sig}
	}

	now := e.now()
	sig.CurrentPrice = quote.Price
	sig.CurrentChangePercent = quote.ChangePercent
	if quote.Price > sig.HighestPrice {
		sig.HighestPrice = quote.Price
	}
	sig.UpdatedAt = now

	if sig.Status == core.StatusPending {
		sig.Status = core.StatusActive
	}

	res := Result{Signal: sig, Changed: true}

	if now.Sub(sig.SignalDate) < e.GracePeriod {
		return res
	}
	if !marketOpen {
		return res
	}

	price := quote.Price
	fire := func(kind core.EventKind) {
		res.Events = append(res.Events, core.HitEvent{
			SignalID:      sig.ID,
			Symbol:        sig.Symbol,
			Exchange:      sig.Exchange,
			Kind:          kind,
			Price:         price,
			ChangePercent: sig.PercentFromEntry(price),
			At:            now,
		})
	}

	if sig.TP1HitAt == nil && reached(price, sig.TP1Price) {
		sig.TP1HitAt = timePtr(now)
		fire(core.EventTP1)
	}
	if sig.TP2HitAt == nil && reached(price, sig.TP2Price) {
		sig.TP2HitAt = timePtr(now)
		fire(core.EventTP2)
	}
	if sig.TP3HitAt == nil && reached(price, sig.TP3Price) {
		sig.TP3HitAt = timePtr(now)
		closeSignal(&sig, now)
		fire(core.EventTP3)
	}
	if sig.Status != core.StatusClosed && sig.SLHitAt == nil &&
		sig.StopLossPrice > 0 && price <= sig.StopLossPrice {
		sig.SLHitAt = timePtr(now)
		closeSignal(&sig, now)
		fire(core.EventSL)
	}

	if sig.Status != core.StatusClosed && deadlinePassed(sig, now) {
		sig.IsExpired = true
		closeSignal(&sig, now)
		fire(core.EventExpired)
	}

	res.Signal = sig
	return res
}

// reached treats a non-positive target as unset.
func reached(price, target float64) bool {
	return target > 0 && price >= target
}

func deadlinePassed(sig core.Signal, now time.Time) bool {
	return !sig.HoldingPeriod.IsZero() && now.After(sig.HoldingPeriod)
}

func closeSignal(sig *core.Signal, now time.Time) {
	sig.Status = core.StatusClosed
	if sig.ClosedAt == nil {
		sig.ClosedAt = timePtr(now)
	}
}

func timePtr(t time.Time) *time.Time {
	return &t
}
