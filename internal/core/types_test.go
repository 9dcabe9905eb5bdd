package core

import (
	"math"
	"testing"
	"time"
)

func TestQuote_Valid(t *testing.T) {
	tests := []struct {
		name  string
		quote Quote
		want  bool
	}{
		{"valid", Quote{Symbol: "HPG", Price: 27.35, TradingDate: time.Now()}, true},
		{"no symbol", Quote{Price: 27.35}, false},
		{"zero price", Quote{Symbol: "HPG"}, false},
		{"negative price", Quote{Symbol: "HPG", Price: -1}, false},
		{"nan", Quote{Symbol: "HPG", Price: math.NaN()}, false},
		{"inf", Quote{Symbol: "HPG", Price: math.Inf(1)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.quote.Valid(); got != tt.want {
				t.Errorf("Valid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStatus_IsOpen(t *testing.T) {
	if !StatusActive.IsOpen() || !StatusPending.IsOpen() {
		t.Error("ACTIVE and PENDING should be open")
	}
	if StatusClosed.IsOpen() {
		t.Error("CLOSED should not be open")
	}
}

func TestEventKind_Closing(t *testing.T) {
	closing := map[EventKind]bool{
		EventTP1:     false,
		EventTP2:     false,
		EventTP3:     true,
		EventSL:      true,
		EventExpired: true,
	}
	for kind, want := range closing {
		if got := kind.Closing(); got != want {
			t.Errorf("%s.Closing() = %v, want %v", kind, got, want)
		}
	}
}

func TestDisplayStatus_String(t *testing.T) {
	if DisplayStopLoss.String() != "STOP_LOSS" {
		t.Errorf("got %s", DisplayStopLoss)
	}
	if DisplayStatus(99).String() != "NO_ZONE" {
		t.Errorf("unknown code should render NO_ZONE")
	}
}
