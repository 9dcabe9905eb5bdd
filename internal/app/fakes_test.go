package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/newthinker/signalwatch/internal/calendar"
	"github.com/newthinker/signalwatch/internal/config"
	"github.com/newthinker/signalwatch/internal/core"
	"github.com/newthinker/signalwatch/internal/lifecycle"
	"github.com/newthinker/signalwatch/internal/llm"
	"github.com/newthinker/signalwatch/internal/notifier"
	"github.com/newthinker/signalwatch/internal/router"
	"github.com/newthinker/signalwatch/internal/storage/signal"
)

type fakeFeed struct {
	mu       sync.Mutex
	prices   map[string]float64
	errs     map[string]error
	tokenErr error
	noData   bool
	probeErr error

	fetched []string
	probes  int

	// when set, Token signals entered and blocks until release is closed
	entered chan struct{}
	release chan struct{}
}

func (f *fakeFeed) Name() string { return "fake" }

func (f *fakeFeed) Token(ctx context.Context) (string, error) {
	if f.entered != nil {
		f.entered <- struct{}{}
		<-f.release
	}
	if f.tokenErr != nil {
		return "", f.tokenErr
	}
	return "tok", nil
}

func (f *fakeFeed) FetchQuote(ctx context.Context, symbol string, date time.Time) (*core.Quote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetched = append(f.fetched, symbol)
	if err := f.errs[symbol]; err != nil {
		return nil, err
	}
	price, ok := f.prices[symbol]
	if !ok {
		return nil, core.ErrEmptyMarketData
	}
	return &core.Quote{Symbol: symbol, Price: price, TradingDate: date, Source: "fake"}, nil
}

func (f *fakeFeed) ProbeHasData(ctx context.Context, symbol string, date time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.probes++
	if f.probeErr != nil {
		return false, f.probeErr
	}
	return !f.noData, nil
}

func (f *fakeFeed) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.fetched)
}

type mockNotifier struct {
	name       string
	mu         sync.Mutex
	hits       []core.HitEvent
	announced  []string
	summaries  []string
	shouldFail bool
}

func (m *mockNotifier) Name() string                   { return m.name }
func (m *mockNotifier) Init(cfg notifier.Config) error { return nil }

func (m *mockNotifier) SendHit(ctx context.Context, ev core.HitEvent, sig core.Signal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.shouldFail {
		return errors.New("send failed")
	}
	m.hits = append(m.hits, ev)
	return nil
}

func (m *mockNotifier) SendNewSignal(ctx context.Context, sig core.Signal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.shouldFail {
		return errors.New("send failed")
	}
	m.announced = append(m.announced, sig.ID)
	return nil
}

func (m *mockNotifier) SendSummary(ctx context.Context, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.shouldFail {
		return errors.New("send failed")
	}
	m.summaries = append(m.summaries, text)
	return nil
}

func (m *mockNotifier) hitCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.hits)
}

// staleStore reports every update as lost to a concurrent writer.
type staleStore struct {
	signal.Store
}

func (staleStore) ApplyUpdate(ctx context.Context, sig core.Signal) error {
	return core.ErrStaleSignal
}

type fakeLLM struct {
	text string
	err  error
}

func (f fakeLLM) Name() string { return "fake" }

func (f fakeLLM) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &llm.ChatResponse{Content: f.text}, nil
}

var ict = time.FixedZone("ICT", 7*3600)

// monday10 is Monday 2024-01-15 10:00 in Ho Chi Minh, inside a trading session.
var monday10 = time.Date(2024, 1, 15, 10, 0, 0, 0, ict)

type harness struct {
	app      *App
	store    *signal.MemoryStore
	feed     *fakeFeed
	notifier *mockNotifier
	sleeps   []time.Duration
}

func newHarness(t *testing.T, now time.Time, mutate ...func(cfg *config.SchedulerConfig, deps *Deps)) *harness {
	t.Helper()

	gate, err := calendar.New(calendar.DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("calendar.New: %v", err)
	}

	h := &harness{
		store:    signal.NewMemoryStore(),
		feed:     &fakeFeed{prices: map[string]float64{}, errs: map[string]error{}},
		notifier: &mockNotifier{name: "mock"},
	}
	reg := notifier.NewRegistry()
	if err := reg.Register(h.notifier); err != nil {
		t.Fatalf("Register: %v", err)
	}

	clock := func() time.Time { return now }
	cfg := config.Defaults().Scheduler
	deps := Deps{
		Feed:      h.feed,
		Gate:      gate,
		Store:     h.store,
		Evaluator: &lifecycle.Evaluator{GracePeriod: lifecycle.DefaultGracePeriod, Now: clock},
		Router:    router.New(router.DefaultConfig(), reg, nil, nil),
	}
	for _, m := range mutate {
		m(&cfg, &deps)
	}

	h.app = New(cfg, deps, nil)
	h.app.now = clock
	h.app.sleep = func(ctx context.Context, d time.Duration) error {
		h.sleeps = append(h.sleeps, d)
		return nil
	}
	return h
}

// addSignal stores an ACTIVE signal issued five days before monday10.
func (h *harness) addSignal(t *testing.T, symbol string) core.Signal {
	t.Helper()
	sig, err := core.NewSignal(core.NewSignalParams{
		Symbol:        symbol,
		Exchange:      "HOSE",
		EntryPriceMin: 38.50,
		EntryPriceMax: 39.00,
		StopLossPrice: 37.00,
		TP1Price:      39.50,
		TP2Price:      41.00,
		TP3Price:      43.00,
		SignalDate:    time.Date(2024, 1, 10, 9, 0, 0, 0, ict),
	})
	if err != nil {
		t.Fatalf("NewSignal: %v", err)
	}
	if err := h.store.Save(context.Background(), &sig); err != nil {
		t.Fatalf("Save: %v", err)
	}
	return sig
}

func (h *harness) get(t *testing.T, id string) core.Signal {
	t.Helper()
	sig, err := h.store.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	return *sig
}
