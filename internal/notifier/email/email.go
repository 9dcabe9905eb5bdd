// Package email implements an SMTP-based email notifier
package email

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/newthinker/signalwatch/internal/core"
	"github.com/newthinker/signalwatch/internal/notifier"
)

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Email implements the Notifier interface for SMTP email
type Email struct {
	host     string
	port     int
	username string
	password string
	from     string
	to       []string
	send     sendFunc
}

// New creates a new Email notifier
func New(host string, port int, username, password, from string, to []string) *Email {
	return &Email{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
		to:       to,
		send:     smtp.SendMail,
	}
}

func (e *Email) Name() string { return "email" }

func (e *Email) Init(cfg notifier.Config) error {
	if host := cfg.StringParam("host"); host != "" {
		e.host = host
	}
	if port := cfg.IntParam("port"); port > 0 {
		e.port = port
	}
	if username := cfg.StringParam("username"); username != "" {
		e.username = username
	}
	if password := cfg.StringParam("password"); password != "" {
		e.password = password
	}
	if from := cfg.StringParam("from"); from != "" {
		e.from = from
	}
	if to := cfg.StringsParam("to"); len(to) > 0 {
		e.to = to
	}
	if e.port == 0 {
		e.port = 587
	}
	if e.send == nil {
		e.send = smtp.SendMail
	}

	if e.host == "" || e.from == "" || len(e.to) == 0 {
		return fmt.Errorf("email: host, from, and to are required")
	}
	return nil
}

func (e *Email) SendHit(ctx context.Context, ev core.HitEvent, sig core.Signal) error {
	subject := fmt.Sprintf("%s hit %s", ev.Symbol, ev.Kind)
	return e.sendEmail(ctx, subject, formatHit(ev, sig))
}

func (e *Email) SendNewSignal(ctx context.Context, sig core.Signal) error {
	subject := fmt.Sprintf("New signal: %s (%s)", sig.Symbol, sig.Exchange)
	return e.sendEmail(ctx, subject, formatSignal(sig))
}

func (e *Email) SendSummary(ctx context.Context, text string) error {
	return e.sendEmail(ctx, "Daily signal summary", text)
}

func formatHit(ev core.HitEvent, sig core.Signal) string {
	return fmt.Sprintf(`
Symbol: %s (%s)
Event: %s
Price: %.2f
Change from entry: %+.2f%%
Entry zone: %.2f - %.2f
Time: %s
`,
		ev.Symbol, ev.Exchange,
		ev.Kind,
		ev.Price,
		ev.ChangePercent,
		sig.EntryPriceMin, sig.EntryPriceMax,
		ev.At.Format("2006-01-02 15:04:05"),
	)
}

func formatSignal(sig core.Signal) string {
	return fmt.Sprintf(`
Symbol: %s (%s)
Signal date: %s
Entry: %.2f - %.2f
Stop loss: %.2f (%+.2f%%)
TP1: %.2f (%+.2f%%)
TP2: %.2f (%+.2f%%)
TP3: %.2f (%+.2f%%)
Hold until: %s
`,
		sig.Symbol, sig.Exchange,
		sig.SignalDate.Format("2006-01-02"),
		sig.EntryPriceMin, sig.EntryPriceMax,
		sig.StopLossPrice, sig.StopLossPct,
		sig.TP1Price, sig.TP1Pct,
		sig.TP2Price, sig.TP2Pct,
		sig.TP3Price, sig.TP3Pct,
		sig.HoldingPeriod.Format("2006-01-02"),
	)
}

func (e *Email) sendEmail(ctx context.Context, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	addr := fmt.Sprintf("%s:%d", e.host, e.port)

	var auth smtp.Auth
	if e.username != "" {
		auth = smtp.PlainAuth("", e.username, e.password, e.host)
	}

	msg := fmt.Sprintf("From: %s\r\n"+
		"To: %s\r\n"+
		"Subject: %s\r\n"+
		"MIME-Version: 1.0\r\n"+
		"Content-Type: text/plain; charset=UTF-8\r\n"+
		"\r\n"+
		"%s",
		e.from,
		strings.Join(e.to, ","),
		subject,
		body,
	)

	return e.send(addr, auth, e.from, e.to, []byte(msg))
}
