package router

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/newthinker/signalwatch/internal/core"
	"github.com/newthinker/signalwatch/internal/metrics"
	"github.com/newthinker/signalwatch/internal/notifier"
)

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
	m.hits = append(m.hits, ev)
	if m.shouldFail {
		return errors.New("send failed")
	}
	return nil
}

func (m *mockNotifier) SendNewSignal(ctx context.Context, sig core.Signal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.announced = append(m.announced, sig.ID)
	if m.shouldFail {
		return errors.New("send failed")
	}
	return nil
}

func (m *mockNotifier) SendSummary(ctx context.Context, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.summaries = append(m.summaries, text)
	if m.shouldFail {
		return errors.New("send failed")
	}
	return nil
}

func newRouter(t *testing.T, notifiers ...notifier.Notifier) *Router {
	t.Helper()
	reg := notifier.NewRegistry()
	for _, n := range notifiers {
		if err := reg.Register(n); err != nil {
			t.Fatalf("register: %v", err)
		}
	}
	return New(DefaultConfig(), reg, metrics.NewRegistry(), nil)
}

func TestRouter_Dispatch(t *testing.T) {
	mock := &mockNotifier{name: "mock"}
	r := newRouter(t, mock)

	sig := core.Signal{ID: "sig-1", Symbol: "HPG"}
	r.Dispatch(context.Background(), sig, []core.HitEvent{
		{SignalID: "sig-1", Kind: core.EventTP1},
		{SignalID: "sig-1", Kind: core.EventTP2},
	})

	if len(mock.hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(mock.hits))
	}
	if mock.hits[0].Kind != core.EventTP1 || mock.hits[1].Kind != core.EventTP2 {
		t.Errorf("events out of order: %+v", mock.hits)
	}
}

func TestRouter_Dispatch_FiltersExpired(t *testing.T) {
	mock := &mockNotifier{name: "mock"}
	r := newRouter(t, mock)

	r.Dispatch(context.Background(), core.Signal{ID: "sig-1"}, []core.HitEvent{
		{Kind: core.EventTP1},
		{Kind: core.EventExpired},
	})

	if len(mock.hits) != 1 {
		t.Errorf("expected EXPIRED to be suppressed, got %d hits", len(mock.hits))
	}
}

func TestRouter_Dispatch_EnabledEvents(t *testing.T) {
	mock := &mockNotifier{name: "mock"}
	reg := notifier.NewRegistry()
	reg.Register(mock)
	r := New(Config{EnabledEvents: []core.EventKind{core.EventSL}}, reg, nil, nil)

	r.Dispatch(context.Background(), core.Signal{}, []core.HitEvent{{Kind: core.EventTP1}, {Kind: core.EventSL}})

	if len(mock.hits) != 1 || mock.hits[0].Kind != core.EventSL {
		t.Errorf("expected only SL, got %+v", mock.hits)
	}
}

func TestRouter_Dispatch_FailureIsolated(t *testing.T) {
	bad := &mockNotifier{name: "bad", shouldFail: true}
	good := &mockNotifier{name: "good"}
	r := newRouter(t, bad, good)

	r.Dispatch(context.Background(), core.Signal{}, []core.HitEvent{{Kind: core.EventTP1}})

	if len(good.hits) != 1 {
		t.Error("a failing notifier must not block the others")
	}
}

func TestRouter_Announce(t *testing.T) {
	bad := &mockNotifier{name: "bad", shouldFail: true}
	good := &mockNotifier{name: "good"}
	r := newRouter(t, bad, good)

	if err := r.Announce(context.Background(), core.Signal{ID: "sig-1"}); err != nil {
		t.Errorf("partial failure should succeed, got %v", err)
	}

	r = newRouter(t, &mockNotifier{name: "bad", shouldFail: true})
	err := r.Announce(context.Background(), core.Signal{ID: "sig-1"})
	if !errors.Is(err, core.ErrNotifierFailed) {
		t.Errorf("expected ErrNotifierFailed, got %v", err)
	}
}

func TestRouter_NoNotifiers(t *testing.T) {
	r := New(DefaultConfig(), nil, nil, nil)

	r.Dispatch(context.Background(), core.Signal{}, []core.HitEvent{{Kind: core.EventTP1}})
	if err := r.Announce(context.Background(), core.Signal{}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := r.Summary(context.Background(), "x"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestRouter_Summary(t *testing.T) {
	mock := &mockNotifier{name: "mock"}
	r := newRouter(t, mock)

	if err := r.Summary(context.Background(), "daily report"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(mock.summaries) != 1 || mock.summaries[0] != "daily report" {
		t.Errorf("unexpected summaries %v", mock.summaries)
	}
}

func TestRouter_ConcurrentDispatch(t *testing.T) {
	mock := &mockNotifier{name: "mock"}
	r := newRouter(t, mock)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Dispatch(context.Background(), core.Signal{}, []core.HitEvent{{Kind: core.EventTP1}})
		}()
	}
	wg.Wait()

	if len(mock.hits) != 20 {
		t.Errorf("expected 20 hits, got %d", len(mock.hits))
	}
}
