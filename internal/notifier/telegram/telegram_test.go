package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/newthinker/signalwatch/internal/core"
	"github.com/newthinker/signalwatch/internal/notifier"
)

func TestTelegram_ImplementsNotifier(t *testing.T) {
	var _ notifier.Notifier = (*Telegram)(nil)
}

func TestTelegram_Name(t *testing.T) {
	tg := New("token", "chatid")
	if tg.Name() != "telegram" {
		t.Errorf("expected 'telegram', got '%s'", tg.Name())
	}
}

func TestTelegram_Init(t *testing.T) {
	tg := &Telegram{}

	cfg := notifier.Config{
		Params: map[string]any{
			"bot_token":     "test-token",
			"chat_id":       "test-chat",
			"price_divisor": 1000,
		},
	}

	if err := tg.Init(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if tg.botToken != "test-token" {
		t.Errorf("expected bot_token 'test-token', got '%s'", tg.botToken)
	}
	if tg.chatID != "test-chat" {
		t.Errorf("expected chat_id 'test-chat', got '%s'", tg.chatID)
	}
	if tg.apiURL != defaultAPIURL {
		t.Errorf("expected default api url, got '%s'", tg.apiURL)
	}
	if tg.priceDivisor != 1000 {
		t.Errorf("expected divisor 1000, got %v", tg.priceDivisor)
	}
}

func TestTelegram_Init_MissingToken(t *testing.T) {
	tg := &Telegram{}

	err := tg.Init(notifier.Config{Params: map[string]any{"chat_id": "test-chat"}})
	if err == nil {
		t.Error("expected error for missing bot_token")
	}
}

func TestTelegram_Init_MissingChatID(t *testing.T) {
	tg := &Telegram{}

	err := tg.Init(notifier.Config{Params: map[string]any{"bot_token": "test-token"}})
	if err == nil {
		t.Error("expected error for missing chat_id")
	}
}

func TestFormatHit(t *testing.T) {
	tests := []struct {
		ev   core.HitEvent
		want string
	}{
		{core.HitEvent{Symbol: "HPG", Kind: core.EventTP1, ChangePercent: 1.9234}, "HPG Done TP1 (+1.92%)✅✅✅"},
		{core.HitEvent{Symbol: "FPT", Kind: core.EventSL, ChangePercent: -4.5161}, "FPT Done SL (-4.52%)🛑🛑🛑"},
	}

	for _, tt := range tests {
		if got := formatHit(tt.ev); got != tt.want {
			t.Errorf("formatHit() = %q, want %q", got, tt.want)
		}
	}
}

func TestTelegram_FormatNewSignal(t *testing.T) {
	tg := New("token", "chat")

	sig := core.Signal{
		Symbol:        "HPG",
		Exchange:      "HOSE",
		EntryPriceMin: 38.50,
		EntryPriceMax: 39.00,
		StopLossPrice: 37.00,
		TP1Price:      39.50,
		TP2Price:      41.00,
		TP3Price:      43.00,
		SignalDate:    time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC),
		CreatedAt:     time.Date(2024, 3, 4, 8, 30, 0, 0, time.UTC),
	}

	formatted := tg.formatNewSignal(sig)

	for _, want := range []string{
		"<b>Signal date:</b> 2024-03-04",
		"<b>Time:</b> 08:30",
		"<b>HPG</b> (HOSE)",
		"<b>Entry:</b> 38.50 - 39.00",
		"<b>SL:</b> 37.00 (-4.52%)",
		"<b>TP1:</b> 39.50 (+1.94%)",
		"<b>TP3:</b> 43.00 (+10.97%)",
	} {
		if !strings.Contains(formatted, want) {
			t.Errorf("formatted message missing %q:\n%s", want, formatted)
		}
	}

	sig.EntryPriceMax = sig.EntryPriceMin
	if !strings.Contains(tg.formatNewSignal(sig), "<b>Entry:</b> 38.50\n") {
		t.Error("single-price entry should not render a range")
	}
}

func TestTelegram_SendHit(t *testing.T) {
	var receivedPayload map[string]any
	var path string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		json.NewDecoder(r.Body).Decode(&receivedPayload)
		json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer server.Close()

	tg := &Telegram{}
	err := tg.Init(notifier.Config{Params: map[string]any{
		"bot_token": "test-token",
		"chat_id":   "test-chat",
		"api_url":   server.URL,
	}})
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	ev := core.HitEvent{Symbol: "HPG", Kind: core.EventTP2, ChangePercent: 5.81}
	if err := tg.SendHit(context.Background(), ev, core.Signal{}); err != nil {
		t.Fatalf("SendHit failed: %v", err)
	}

	if path != "/bottest-token/sendMessage" {
		t.Errorf("unexpected path %s", path)
	}
	if receivedPayload["chat_id"] != "test-chat" {
		t.Errorf("unexpected chat_id %v", receivedPayload["chat_id"])
	}
	if receivedPayload["text"] != "HPG Done TP2 (+5.81%)✅✅✅" {
		t.Errorf("unexpected text %v", receivedPayload["text"])
	}
	if _, ok := receivedPayload["parse_mode"]; ok {
		t.Error("hit messages are plain text")
	}
}

func TestTelegram_SendNewSignal_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{"ok": false, "description": "chat not found"})
	}))
	defer server.Close()

	tg := New("token", "chat")
	tg.apiURL = server.URL

	if err := tg.SendNewSignal(context.Background(), core.Signal{Symbol: "HPG"}); err == nil {
		t.Error("expected error on API failure")
	}
}
