package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"strings"
	"time"

	"github.com/newthinker/signalwatch/internal/core"
	"github.com/newthinker/signalwatch/internal/notifier"
)

const defaultAPIURL = "https://api.telegram.org"

// Telegram implements the Notifier interface for Telegram Bot API
type Telegram struct {
	botToken     string
	chatID       string
	apiURL       string
	priceDivisor float64
	client       *http.Client
}

// New creates a new Telegram notifier
func New(botToken, chatID string) *Telegram {
	return &Telegram{
		botToken:     botToken,
		chatID:       chatID,
		apiURL:       defaultAPIURL,
		priceDivisor: 1,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (t *Telegram) Name() string {
	return "telegram"
}

func (t *Telegram) Init(cfg notifier.Config) error {
	if token := cfg.StringParam("bot_token"); token != "" {
		t.botToken = token
	}
	if chatID := cfg.StringParam("chat_id"); chatID != "" {
		t.chatID = chatID
	}
	if apiURL := cfg.StringParam("api_url"); apiURL != "" {
		t.apiURL = strings.TrimRight(apiURL, "/")
	}
	if d := cfg.IntParam("price_divisor"); d > 0 {
		t.priceDivisor = float64(d)
	}
	if t.apiURL == "" {
		t.apiURL = defaultAPIURL
	}
	if t.priceDivisor <= 0 {
		t.priceDivisor = 1
	}
	if t.client == nil {
		t.client = &http.Client{Timeout: 30 * time.Second}
	}

	if t.botToken == "" {
		return fmt.Errorf("telegram: bot_token is required")
	}
	if t.chatID == "" {
		return fmt.Errorf("telegram: chat_id is required")
	}

	return nil
}

func (t *Telegram) SendHit(ctx context.Context, ev core.HitEvent, sig core.Signal) error {
	return t.sendMessage(ctx, formatHit(ev), "")
}

func (t *Telegram) SendNewSignal(ctx context.Context, sig core.Signal) error {
	return t.sendMessage(ctx, t.formatNewSignal(sig), "HTML")
}

func (t *Telegram) SendSummary(ctx context.Context, text string) error {
	return t.sendMessage(ctx, text, "")
}

// formatHit renders e.g. "HPG Done TP1 (+1.92%)✅✅✅".
func formatHit(ev core.HitEvent) string {
	icon := "🛑🛑🛑"
	sign := ""
	if ev.ChangePercent > 0 {
		icon = "✅✅✅"
		sign = "+"
	}
	return fmt.Sprintf("%s Done %s (%s%.2f%%)%s", ev.Symbol, ev.Kind, sign, ev.ChangePercent, icon)
}

func (t *Telegram) formatNewSignal(sig core.Signal) string {
	entry := t.price(sig.EntryPriceMin)
	if sig.EntryPriceMax > 0 && sig.EntryPriceMax != sig.EntryPriceMin {
		entry = fmt.Sprintf("%s - %s", t.price(sig.EntryPriceMin), t.price(sig.EntryPriceMax))
	}

	lines := []string{
		fmt.Sprintf("<b>Signal date:</b> %s", sig.SignalDate.Format("2006-01-02")),
		fmt.Sprintf("<b>Time:</b> %s", sig.CreatedAt.Format("15:04")),
		fmt.Sprintf("<b>%s</b> (%s)", html.EscapeString(sig.Symbol), html.EscapeString(sig.Exchange)),
		fmt.Sprintf("<b>Entry:</b> %s", entry),
		fmt.Sprintf("<b>SL:</b> %s (%s)", t.price(sig.StopLossPrice), pct(sig, sig.StopLossPrice)),
		fmt.Sprintf("<b>TP1:</b> %s (%s)", t.price(sig.TP1Price), pct(sig, sig.TP1Price)),
		fmt.Sprintf("<b>TP2:</b> %s (%s)", t.price(sig.TP2Price), pct(sig, sig.TP2Price)),
		fmt.Sprintf("<b>TP3:</b> %s (%s)", t.price(sig.TP3Price), pct(sig, sig.TP3Price)),
	}
	return strings.Join(lines, "\n")
}

func (t *Telegram) price(v float64) string {
	return fmt.Sprintf("%.2f", v/t.priceDivisor)
}

func pct(sig core.Signal, target float64) string {
	if target <= 0 {
		return "0.00%"
	}
	p := sig.PercentFromEntry(target)
	sign := ""
	if p > 0 {
		sign = "+"
	}
	return fmt.Sprintf("%s%.2f%%", sign, p)
}

func (t *Telegram) sendMessage(ctx context.Context, text, parseMode string) error {
	url := fmt.Sprintf("%s/bot%s/sendMessage", t.apiURL, t.botToken)

	payload := map[string]any{
		"chat_id": t.chatID,
		"text":    text,
	}
	if parseMode != "" {
		payload["parse_mode"] = parseMode
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("telegram: failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram: failed to send message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var result map[string]any
		json.NewDecoder(resp.Body).Decode(&result)
		return fmt.Errorf("telegram: API error (status %d): %v", resp.StatusCode, result)
	}

	return nil
}
