package notifier

import (
	"context"

	"github.com/newthinker/signalwatch/internal/core"
)

// Config holds notifier configuration
type Config struct {
	Type   string         `mapstructure:"type"`
	Params map[string]any `mapstructure:"params"`
}

// Notifier delivers signal broadcasts to one outbound channel.
type Notifier interface {
	// Name returns the unique identifier for this notifier
	Name() string

	// Init initializes the notifier with configuration
	Init(cfg Config) error

	// SendHit announces a threshold crossing
	SendHit(ctx context.Context, ev core.HitEvent, sig core.Signal) error

	// SendNewSignal announces a freshly issued signal
	SendNewSignal(ctx context.Context, sig core.Signal) error

	// SendSummary delivers a free-form text report
	SendSummary(ctx context.Context, text string) error
}

// StringParam reads a string param.
func (c Config) StringParam(key string) string {
	if v, ok := c.Params[key].(string); ok {
		return v
	}
	return ""
}

// IntParam reads an int param; viper may decode YAML numbers as int or float64.
func (c Config) IntParam(key string) int {
	switch v := c.Params[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

// StringsParam reads a list of strings.
func (c Config) StringsParam(key string) []string {
	switch v := c.Params[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		if v != "" {
			return []string{v}
		}
	}
	return nil
}

// StringMapParam reads a map of strings.
func (c Config) StringMapParam(key string) map[string]string {
	switch v := c.Params[key].(type) {
	case map[string]string:
		return v
	case map[string]any:
		out := make(map[string]string, len(v))
		for k, item := range v {
			if s, ok := item.(string); ok {
				out[k] = s
			}
		}
		return out
	}
	return nil
}
