package app

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/newthinker/signalwatch/internal/core"
	"github.com/newthinker/signalwatch/internal/llm"
	"github.com/newthinker/signalwatch/internal/performance"
	"github.com/newthinker/signalwatch/internal/storage/archive"
	"github.com/newthinker/signalwatch/internal/storage/signal"
)

// RunPriceUpdate polls quotes for every symbol with an open signal and
// advances those signals.
func (a *App) RunPriceUpdate(ctx context.Context) JobReport {
	return a.guarded(ctx, JobPriceUpdate, a.priceUpdate)
}

// RunAnnounce broadcasts signals that have not been announced yet.
func (a *App) RunAnnounce(ctx context.Context) JobReport {
	return a.guarded(ctx, JobAnnounce, a.announce)
}

// RunExpirySweep closes signals whose holding period has ended.
func (a *App) RunExpirySweep(ctx context.Context) JobReport {
	return a.guarded(ctx, JobExpirySweep, a.expirySweep)
}

// RunDailySummary sends and archives the end-of-session report.
func (a *App) RunDailySummary(ctx context.Context) JobReport {
	return a.guarded(ctx, JobDailySummary, a.dailySummary)
}

// tally accumulates per-symbol outcomes from concurrent workers.
type tally struct {
	mu      sync.Mutex
	quotes  int
	updated int
	events  int
	stale   int
	failed  int
}

func (t *tally) add(fn func(t *tally)) {
	t.mu.Lock()
	fn(t)
	t.mu.Unlock()
}

func (a *App) priceUpdate(ctx context.Context, rep *JobReport) error {
	now := a.now()
	gate := a.deps.Gate

	if !gate.IsPollingWindow(now) {
		rep.Reason = "outside polling window"
		return nil
	}

	symbols, err := a.deps.Store.OpenSymbols(ctx)
	if err != nil {
		return err
	}
	a.deps.Metrics.SetOpenSymbols(len(symbols))
	rep.Symbols = len(symbols)
	if len(symbols) == 0 {
		rep.Reason = "no open signals"
		return nil
	}

	// An auth failure aborts the whole tick.
	if _, err := a.deps.Feed.Token(ctx); err != nil {
		return err
	}

	trading, err := gate.IsTradingDay(ctx, a.deps.Feed, symbols[0], now)
	if err != nil {
		return err
	}
	if !trading {
		rep.Reason = "no market data for session"
		return nil
	}

	date := gate.SessionDate(now)
	marketOpen := gate.IsMarketOpen(now)
	size := a.cfg.BatchSize
	t := &tally{}
	defer func() {
		rep.Quotes = t.quotes
		rep.Updated = t.updated
		rep.Events = t.events
		rep.Stale = t.stale
		rep.Failed = t.failed
	}()

	for start := 0; start < len(symbols); start += size {
		if start > 0 {
			if err := a.sleep(ctx, a.cfg.BatchPause); err != nil {
				return err
			}
		}
		end := min(start+size, len(symbols))

		var g errgroup.Group
		g.SetLimit(size)
		for _, sym := range symbols[start:end] {
			g.Go(func() error {
				a.processSymbol(ctx, sym, date, marketOpen, t)
				return nil
			})
		}
		_ = g.Wait()
	}

	a.logger.Info("price update complete",
		zap.Int("symbols", rep.Symbols),
		zap.Int("updated", t.updated),
		zap.Int("events", t.events),
		zap.Int("failed", t.failed),
		zap.Bool("market_open", marketOpen),
	)
	return nil
}

// processSymbol fetches one quote and applies it to every open signal on
// the symbol. Failures are logged and confined to this symbol.
func (a *App) processSymbol(ctx context.Context, symbol string, date time.Time, marketOpen bool, t *tally) {
	log := a.logger.With(zap.String("symbol", symbol))

	quote, err := a.deps.Feed.FetchQuote(ctx, symbol, date)
	if err != nil {
		if errors.Is(err, core.ErrEmptyMarketData) {
			a.deps.Metrics.RecordQuote("empty")
			log.Debug("no market data", zap.Error(err))
		} else {
			a.deps.Metrics.RecordQuote("error")
			log.Warn("quote fetch failed", zap.Error(err))
		}
		t.add(func(t *tally) { t.failed++ })
		return
	}
	a.deps.Metrics.RecordQuote("ok")
	t.add(func(t *tally) { t.quotes++ })

	signals, err := a.deps.Store.ListBySymbol(ctx, symbol)
	if err != nil {
		log.Error("listing signals failed", zap.Error(err))
		t.add(func(t *tally) { t.failed++ })
		return
	}

	for _, sig := range signals {
		res := a.deps.Evaluator.Evaluate(sig, *quote, marketOpen)
		if !res.Changed {
			continue
		}

		if err := a.deps.Store.ApplyUpdate(ctx, res.Signal); err != nil {
			if errors.Is(err, core.ErrStaleSignal) {
				log.Debug("signal closed concurrently", zap.String("signal_id", sig.ID))
				t.add(func(t *tally) { t.stale++ })
				continue
			}
			log.Error("signal update failed", zap.String("signal_id", sig.ID), zap.Error(err))
			t.add(func(t *tally) { t.failed++ })
			continue
		}
		t.add(func(t *tally) { t.updated++ })

		if len(res.Events) > 0 {
			a.deps.Router.Dispatch(ctx, res.Signal, res.Events)
			t.add(func(t *tally) { t.events += len(res.Events) })
		}
	}
}

func (a *App) announce(ctx context.Context, rep *JobReport) error {
	signals, err := a.deps.Store.ListUnannounced(ctx, a.cfg.AnnounceBatch)
	if err != nil {
		return err
	}

	for i, sig := range signals {
		if i > 0 {
			if err := a.sleep(ctx, a.cfg.AnnouncePacing); err != nil {
				return err
			}
		}
		log := a.logger.With(zap.String("signal_id", sig.ID), zap.String("symbol", sig.Symbol))

		// left unflagged on failure so a later tick retries it
		if err := a.deps.Router.Announce(ctx, sig); err != nil {
			log.Warn("announce failed", zap.Error(err))
			rep.Failed++
			continue
		}
		if err := a.deps.Store.MarkNotified(ctx, sig.ID); err != nil {
			log.Error("mark notified failed", zap.Error(err))
			rep.Failed++
			continue
		}
		rep.Announced++
	}
	return nil
}

func (a *App) expirySweep(ctx context.Context, rep *JobReport) error {
	n, err := a.deps.Store.ExpireDue(ctx, a.now())
	if err != nil {
		return err
	}
	rep.Expired = n
	a.deps.Metrics.AddExpired(n)
	if n > 0 {
		a.logger.Info("signals expired", zap.Int64("count", n))
	}
	return nil
}

func (a *App) dailySummary(ctx context.Context, rep *JobReport) error {
	now := a.now()
	if !a.deps.Gate.IsWeekday(now) {
		rep.Reason = "not a trading weekday"
		return nil
	}
	date := a.deps.Gate.SessionDate(now)

	closed, err := a.deps.Store.List(ctx, signal.ListFilter{
		Statuses:   []core.Status{core.StatusClosed},
		ClosedFrom: date,
		ClosedTo:   date.AddDate(0, 0, 1).Add(-time.Nanosecond),
	})
	if err != nil {
		return err
	}
	open, err := a.deps.Store.List(ctx, signal.ListFilter{Statuses: core.OpenStatuses})
	if err != nil {
		return err
	}

	summary := performance.Summarize(date, closed, open)
	rep.Symbols = len(closed) + len(open)

	if a.deps.LLM != nil {
		cctx, cancel := context.WithTimeout(ctx, a.deps.LLMTimeout)
		text, err := llm.Commentary(cctx, a.deps.LLM, summary.Text())
		cancel()
		if err != nil {
			a.logger.Warn("summary commentary failed", zap.String("provider", a.deps.LLM.Name()), zap.Error(err))
		} else {
			summary.Commentary = text
		}
	}

	if err := a.deps.Router.Summary(ctx, summary.Text()); err != nil {
		a.logger.Warn("summary broadcast failed", zap.Error(err))
		rep.Failed++
	}

	if a.deps.Archive != nil {
		path := archive.SummaryPath(date)
		if err := archive.WriteJSON(ctx, a.deps.Archive, path, summary); err != nil {
			return err
		}
		textPath := strings.TrimSuffix(path, ".json") + ".txt"
		if err := a.deps.Archive.Write(ctx, textPath, []byte(summary.Text())); err != nil {
			return err
		}
		rep.Archived = path
	}
	return nil
}
