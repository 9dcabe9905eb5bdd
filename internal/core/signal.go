package core

import (
	"fmt"
	"math"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// DefaultHoldingDays is applied when a signal is created without a holding deadline.
const DefaultHoldingDays = 10

// Signal is one tracked buy recommendation.
type Signal struct {
	ID       string `json:"id"`
	Symbol   string `json:"symbol"`
	Exchange string `json:"exchange"`

	EntryPriceMin float64 `json:"entry_price_min"`
	EntryPriceMax float64 `json:"entry_price_max"`
	StopLossPrice float64 `json:"stop_loss_price"`
	TP1Price      float64 `json:"tp1_price"`
	TP2Price      float64 `json:"tp2_price"`
	TP3Price      float64 `json:"tp3_price"`
	StopLossPct   float64 `json:"stop_loss_pct"`
	TP1Pct        float64 `json:"tp1_pct"`
	TP2Pct        float64 `json:"tp2_pct"`
	TP3Pct        float64 `json:"tp3_pct"`

	SignalDate    time.Time `json:"signal_date"`
	HoldingPeriod time.Time `json:"holding_period"`

	CurrentPrice         float64   `json:"current_price"`
	CurrentChangePercent float64   `json:"current_change_percent"`
	HighestPrice         float64   `json:"highest_price"`
	UpdatedAt            time.Time `json:"updated_at"`

	Status     Status     `json:"status"`
	TP1HitAt   *time.Time `json:"tp1_hit_at"`
	TP2HitAt   *time.Time `json:"tp2_hit_at"`
	TP3HitAt   *time.Time `json:"tp3_hit_at"`
	SLHitAt    *time.Time `json:"sl_hit_at"`
	ClosedAt   *time.Time `json:"closed_at"`
	IsExpired  bool       `json:"is_expired"`
	IsNotified bool       `json:"is_notified"`

	CreatedAt time.Time `json:"created_at"`
}

// EntryPrice returns the entry-zone midpoint, the reference for all percentage math.
func (s Signal) EntryPrice() float64 {
	hi := s.EntryPriceMax
	if hi == 0 {
		hi = s.EntryPriceMin
	}
	return decimal.NewFromFloat(s.EntryPriceMin).
		Add(decimal.NewFromFloat(hi)).
		Div(decimal.NewFromInt(2)).
		InexactFloat64()
}

// PercentFromEntry returns the percent move from the entry midpoint to price.
func (s Signal) PercentFromEntry(price float64) float64 {
	entry := s.EntryPrice()
	if entry == 0 {
		return 0
	}
	e := decimal.NewFromFloat(entry)
	return decimal.NewFromFloat(price).Sub(e).Div(e).Mul(decimal.NewFromInt(100)).InexactFloat64()
}

// IsOpen reports whether the signal can still be mutated by the evaluator.
func (s Signal) IsOpen() bool {
	return s.Status.IsOpen()
}

// HitAt returns the hit timestamp recorded for kind, or nil.
func (s Signal) HitAt(kind EventKind) *time.Time {
	switch kind {
	case EventTP1:
		return s.TP1HitAt
	case EventTP2:
		return s.TP2HitAt
	case EventTP3:
		return s.TP3HitAt
	case EventSL:
		return s.SLHitAt
	}
	return nil
}

// LastHit returns the most significant hit already recorded, or "".
func (s Signal) LastHit() EventKind {
	switch {
	case s.SLHitAt != nil:
		return EventSL
	case s.TP3HitAt != nil:
		return EventTP3
	case s.TP2HitAt != nil:
		return EventTP2
	case s.TP1HitAt != nil:
		return EventTP1
	}
	return ""
}

// DisplayStatus derives the reader-facing status code.
func (s Signal) DisplayStatus() DisplayStatus {
	switch s.LastHit() {
	case EventSL:
		return DisplayStopLoss
	case EventTP3:
		return DisplayTakeProfit3
	case EventTP2:
		return DisplayTakeProfit2
	case EventTP1:
		return DisplayTakeProfit1
	}
	hi := s.EntryPriceMax
	if hi == 0 {
		hi = s.EntryPriceMin
	}
	if s.CurrentPrice >= s.EntryPriceMin && s.CurrentPrice <= hi && s.CurrentPrice > 0 {
		return DisplayBuyZone
	}
	return DisplayNoZone
}

// ExpectedProfit is the percent move from entry to the final target.
func (s Signal) ExpectedProfit() float64 {
	if s.TP3Price <= 0 {
		return 0
	}
	return s.PercentFromEntry(s.TP3Price)
}

// HoldingDays is the planned holding time in whole days, rounded up.
func (s Signal) HoldingDays() int {
	if s.HoldingPeriod.IsZero() || s.SignalDate.IsZero() {
		return 0
	}
	return int(math.Ceil(s.HoldingPeriod.Sub(s.SignalDate).Hours() / 24))
}

// NewSignalParams are the inputs for creating a signal.
type NewSignalParams struct {
	Symbol        string    `validate:"required,max=10"`
	Exchange      string    `validate:"required,max=10"`
	EntryPriceMin float64   `validate:"gt=0"`
	EntryPriceMax float64   `validate:"gte=0"`
	StopLossPrice float64   `validate:"gt=0"`
	TP1Price      float64   `validate:"gt=0"`
	TP2Price      float64   `validate:"gte=0"`
	TP3Price      float64   `validate:"gte=0"`
	SignalDate    time.Time `validate:"required"`
	HoldingPeriod time.Time
}

var validate = validator.New()

// NewSignal validates the levels and fills the derived percentage fields.
func NewSignal(p NewSignalParams) (Signal, error) {
	if err := validate.Struct(p); err != nil {
		return Signal{}, WrapError(ErrInvalidSignal, err)
	}
	if p.EntryPriceMax == 0 {
		p.EntryPriceMax = p.EntryPriceMin
	}
	if p.EntryPriceMax < p.EntryPriceMin {
		return Signal{}, WrapError(ErrInvalidSignal,
			fmt.Errorf("entry max %.2f below entry min %.2f", p.EntryPriceMax, p.EntryPriceMin))
	}
	if p.StopLossPrice >= p.EntryPriceMin {
		return Signal{}, WrapError(ErrInvalidSignal,
			fmt.Errorf("stop loss %.2f must be below entry zone", p.StopLossPrice))
	}
	if p.TP1Price <= p.EntryPriceMax {
		return Signal{}, WrapError(ErrInvalidSignal,
			fmt.Errorf("tp1 %.2f must be above entry zone", p.TP1Price))
	}
	if p.TP2Price > 0 && p.TP2Price <= p.TP1Price {
		return Signal{}, WrapError(ErrInvalidSignal, fmt.Errorf("tp2 must be above tp1"))
	}
	if p.TP3Price > 0 && p.TP3Price <= max(p.TP1Price, p.TP2Price) {
		return Signal{}, WrapError(ErrInvalidSignal, fmt.Errorf("tp3 must be above tp2"))
	}

	holding := p.HoldingPeriod
	if holding.IsZero() {
		holding = p.SignalDate.AddDate(0, 0, DefaultHoldingDays)
	}

	s := Signal{
		Symbol:        p.Symbol,
		Exchange:      p.Exchange,
		EntryPriceMin: p.EntryPriceMin,
		EntryPriceMax: p.EntryPriceMax,
		StopLossPrice: p.StopLossPrice,
		TP1Price:      p.TP1Price,
		TP2Price:      p.TP2Price,
		TP3Price:      p.TP3Price,
		SignalDate:    p.SignalDate,
		HoldingPeriod: holding,
		Status:        StatusActive,
	}
	s.StopLossPct = round2(s.PercentFromEntry(s.StopLossPrice))
	s.TP1Pct = round2(s.PercentFromEntry(s.TP1Price))
	if s.TP2Price > 0 {
		s.TP2Pct = round2(s.PercentFromEntry(s.TP2Price))
	}
	if s.TP3Price > 0 {
		s.TP3Pct = round2(s.PercentFromEntry(s.TP3Price))
	}
	return s, nil
}

func round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
