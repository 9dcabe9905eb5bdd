package performance

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/newthinker/signalwatch/internal/core"
)

// SummaryLine is one signal's row in the daily summary.
type SummaryLine struct {
	SignalID   string  `json:"signal_id"`
	Symbol     string  `json:"symbol"`
	Outcome    string  `json:"outcome"`
	Efficiency float64 `json:"efficiency"`
}

// DailySummary is the end-of-session profit/loss report.
type DailySummary struct {
	Date        string        `json:"date"`
	Closed      []SummaryLine `json:"closed"`
	Open        []SummaryLine `json:"open"`
	AvgClosed   float64       `json:"avg_closed"`
	AvgOpen     float64       `json:"avg_open"`
	Commentary  string        `json:"commentary,omitempty"`
	GeneratedAt time.Time     `json:"generated_at"`
}

// Summarize builds the daily report from signals closed today and still open.
func Summarize(date time.Time, closed, open []core.Signal) DailySummary {
	s := DailySummary{
		Date:        date.Format("2006-01-02"),
		Closed:      lines(closed),
		Open:        lines(open),
		GeneratedAt: time.Now(),
	}
	s.AvgClosed = average(s.Closed)
	s.AvgOpen = average(s.Open)
	return s
}

func lines(signals []core.Signal) []SummaryLine {
	out := make([]SummaryLine, 0, len(signals))
	for _, sig := range signals {
		out = append(out, SummaryLine{
			SignalID:   sig.ID,
			Symbol:     sig.Symbol,
			Outcome:    outcome(sig),
			Efficiency: round2(Efficiency(sig)),
		})
	}
	return out
}

func outcome(sig core.Signal) string {
	if sig.Status == core.StatusClosed && sig.IsExpired && sig.LastHit() == "" {
		return string(core.EventExpired)
	}
	if hit := sig.LastHit(); hit != "" {
		return string(hit)
	}
	return string(sig.Status)
}

func average(rows []SummaryLine) float64 {
	if len(rows) == 0 {
		return 0
	}
	total := decimal.Zero
	for _, r := range rows {
		total = total.Add(decimal.NewFromFloat(r.Efficiency))
	}
	return total.Div(decimal.NewFromInt(int64(len(rows)))).Round(2).InexactFloat64()
}

// Text renders the summary as a plain-text message.
func (s DailySummary) Text() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Daily summary %s\n", s.Date)

	fmt.Fprintf(&sb, "\nClosed today: %d\n", len(s.Closed))
	for _, l := range s.Closed {
		fmt.Fprintf(&sb, "%s %s (%+.2f%%)\n", l.Symbol, l.Outcome, l.Efficiency)
	}
	if len(s.Closed) > 0 {
		fmt.Fprintf(&sb, "Average: %+.2f%%\n", s.AvgClosed)
	}

	fmt.Fprintf(&sb, "\nOpen: %d\n", len(s.Open))
	for _, l := range s.Open {
		fmt.Fprintf(&sb, "%s %s (%+.2f%%)\n", l.Symbol, l.Outcome, l.Efficiency)
	}
	if len(s.Open) > 0 {
		fmt.Fprintf(&sb, "Average: %+.2f%%\n", s.AvgOpen)
	}

	if s.Commentary != "" {
		fmt.Fprintf(&sb, "\n%s\n", s.Commentary)
	}
	return strings.TrimRight(sb.String(), "\n")
}
