// Package webhook implements an HTTP webhook notifier
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/newthinker/signalwatch/internal/core"
	"github.com/newthinker/signalwatch/internal/notifier"
)

// Webhook implements the Notifier interface for HTTP webhooks
type Webhook struct {
	url     string
	headers map[string]string
	client  *http.Client
}

// New creates a new Webhook notifier
func New(url string, headers map[string]string) *Webhook {
	return &Webhook{
		url:     url,
		headers: headers,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (w *Webhook) Name() string { return "webhook" }

func (w *Webhook) Init(cfg notifier.Config) error {
	if url := cfg.StringParam("url"); url != "" {
		w.url = url
	}
	if headers := cfg.StringMapParam("headers"); headers != nil {
		w.headers = headers
	}

	if w.url == "" {
		return fmt.Errorf("webhook: url is required")
	}

	if w.client == nil {
		w.client = &http.Client{Timeout: 30 * time.Second}
	}

	return nil
}

func (w *Webhook) SendHit(ctx context.Context, ev core.HitEvent, sig core.Signal) error {
	return w.post(ctx, map[string]any{
		"type":           "hit",
		"signal_id":      ev.SignalID,
		"symbol":         ev.Symbol,
		"exchange":       ev.Exchange,
		"event":          ev.Kind,
		"price":          ev.Price,
		"change_percent": ev.ChangePercent,
		"at":             ev.At.Format(time.RFC3339),
	})
}

func (w *Webhook) SendNewSignal(ctx context.Context, sig core.Signal) error {
	return w.post(ctx, map[string]any{
		"type":            "signal",
		"signal_id":       sig.ID,
		"symbol":          sig.Symbol,
		"exchange":        sig.Exchange,
		"entry_price_min": sig.EntryPriceMin,
		"entry_price_max": sig.EntryPriceMax,
		"stop_loss_price": sig.StopLossPrice,
		"tp1_price":       sig.TP1Price,
		"tp2_price":       sig.TP2Price,
		"tp3_price":       sig.TP3Price,
		"expected_profit": sig.ExpectedProfit(),
		"signal_date":     sig.SignalDate.Format("2006-01-02"),
		"holding_period":  sig.HoldingPeriod.Format("2006-01-02"),
	})
}

func (w *Webhook) SendSummary(ctx context.Context, text string) error {
	return w.post(ctx, map[string]any{
		"type": "summary",
		"text": text,
	})
}

func (w *Webhook) post(ctx context.Context, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("webhook: failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	for k, v := range w.headers {
		req.Header.Set(k, v)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook: server returned %d", resp.StatusCode)
	}

	return nil
}
