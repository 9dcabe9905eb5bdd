package performance

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/newthinker/signalwatch/internal/core"
	"github.com/newthinker/signalwatch/internal/storage/signal"
)

// TradingMetrics aggregates signal outcomes over a signal-date range.
type TradingMetrics struct {
	WinRate        float64 `json:"win_rate"`
	AvgProfit      float64 `json:"avg_profit"`
	TotalSignals   int     `json:"total_signals"`
	ClosedSignals  int     `json:"closed_signals"`
	AvgHoldingDays int     `json:"avg_holding_time"`
	MaxDrawdown    float64 `json:"max_drawdown"`
	MaxProfit      float64 `json:"max_profit"`
	MinProfit      float64 `json:"min_profit"`
}

// MonthlyProfitFactor is one calendar month of closed-signal outcomes.
type MonthlyProfitFactor struct {
	Month        string  `json:"month"`
	ProfitFactor float64 `json:"profit_factor"`
	GrossProfit  float64 `json:"gross_profit"`
	GrossLoss    float64 `json:"gross_loss"`
	Signals      int     `json:"signals"`
}

// ProfitFactorReport holds twelve monthly buckets and the headline figure
// from the latest month with data.
type ProfitFactorReport struct {
	Year         int                   `json:"year"`
	ProfitFactor float64               `json:"profit_factor"`
	Monthly      []MonthlyProfitFactor `json:"monthly_data"`
}

// Engine computes metrics from the signal store.
type Engine struct {
	store signal.Store
	loc   *time.Location
	now   func() time.Time
}

// NewEngine creates an engine. Month boundaries are taken in loc.
func NewEngine(store signal.Store, loc *time.Location) *Engine {
	if loc == nil {
		loc = time.UTC
	}
	return &Engine{store: store, loc: loc, now: time.Now}
}

// TradingMetrics computes win rate, average profit, drawdown and holding time
// for signals issued between from and to (either may be nil).
func (e *Engine) TradingMetrics(ctx context.Context, from, to *time.Time) (TradingMetrics, error) {
	filter := signal.ListFilter{}
	if from != nil {
		filter.From = *from
	}
	if to != nil {
		filter.To = *to
	}

	signals, err := e.store.List(ctx, filter)
	if err != nil {
		return TradingMetrics{}, fmt.Errorf("listing signals: %w", err)
	}
	return ComputeTradingMetrics(signals), nil
}

// ComputeTradingMetrics is the pure form of Engine.TradingMetrics.
func ComputeTradingMetrics(signals []core.Signal) TradingMetrics {
	if len(signals) == 0 {
		return TradingMetrics{}
	}

	var effs []float64
	wins := 0
	for _, s := range signals {
		if s.Status != core.StatusClosed {
			continue
		}
		effs = append(effs, Efficiency(s))
		if s.TP1HitAt != nil {
			wins++
		}
	}

	holding := 0
	for _, s := range signals {
		holding += s.HoldingDays()
	}

	m := TradingMetrics{
		TotalSignals:   len(signals),
		ClosedSignals:  len(effs),
		AvgHoldingDays: int(math.Round(float64(holding) / float64(len(signals)))),
	}
	if len(effs) == 0 {
		return m
	}

	closed := decimal.NewFromInt(int64(len(effs)))
	m.WinRate = decimal.NewFromInt(int64(wins)).Div(closed).Mul(decimal.NewFromInt(100)).Round(2).InexactFloat64()
	m.AvgProfit = sum(effs).Div(closed).Round(2).InexactFloat64()

	maxP, minP := effs[0], effs[0]
	for _, v := range effs[1:] {
		maxP = math.Max(maxP, v)
		minP = math.Min(minP, v)
	}
	m.MaxProfit = round2(maxP)
	m.MinProfit = round2(minP)
	m.MaxDrawdown = round2(math.Min(minP, 0))
	return m
}

// ProfitFactor buckets closed signals of year by signal-date month. A year of
// 0 means the current year.
func (e *Engine) ProfitFactor(ctx context.Context, year int) (ProfitFactorReport, error) {
	if year == 0 {
		year = e.now().In(e.loc).Year()
	}
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, e.loc)
	end := start.AddDate(1, 0, 0).Add(-time.Nanosecond)

	signals, err := e.store.List(ctx, signal.ListFilter{
		Statuses: []core.Status{core.StatusClosed},
		From:     start,
		To:       end,
	})
	if err != nil {
		return ProfitFactorReport{}, fmt.Errorf("listing signals: %w", err)
	}
	return ComputeProfitFactor(signals, year, e.loc), nil
}

// ComputeProfitFactor is the pure form of Engine.ProfitFactor.
func ComputeProfitFactor(signals []core.Signal, year int, loc *time.Location) ProfitFactorReport {
	if loc == nil {
		loc = time.UTC
	}
	buckets := make([][]float64, 12)
	for _, s := range signals {
		if s.Status != core.StatusClosed {
			continue
		}
		d := s.SignalDate.In(loc)
		if d.Year() != year {
			continue
		}
		buckets[d.Month()-1] = append(buckets[d.Month()-1], Efficiency(s))
	}

	report := ProfitFactorReport{Year: year, Monthly: make([]MonthlyProfitFactor, 12)}
	for i, effs := range buckets {
		month := monthFactor(effs)
		month.Month = fmt.Sprintf("%02d-%d", i+1, year)
		report.Monthly[i] = month
		if month.Signals > 0 {
			report.ProfitFactor = month.ProfitFactor
		}
	}
	return report
}

func monthFactor(effs []float64) MonthlyProfitFactor {
	gp, gl := decimal.Zero, decimal.Zero
	for _, v := range effs {
		d := decimal.NewFromFloat(v)
		switch {
		case v > 0:
			gp = gp.Add(d)
		case v < 0:
			gl = gl.Add(d.Abs())
		}
	}

	pf := decimal.Zero
	switch {
	case gl.IsPositive():
		pf = gp.Div(gl)
	case gp.IsPositive():
		pf = gp
	}

	return MonthlyProfitFactor{
		ProfitFactor: pf.Round(2).InexactFloat64(),
		GrossProfit:  gp.Round(2).InexactFloat64(),
		GrossLoss:    gl.Round(2).InexactFloat64(),
		Signals:      len(effs),
	}
}
