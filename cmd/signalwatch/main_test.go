package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/newthinker/signalwatch/internal/app"
	"github.com/newthinker/signalwatch/internal/config"
)

func TestResolveJob(t *testing.T) {
	tests := map[string]string{
		"price-update":  app.JobPriceUpdate,
		"announce":      app.JobAnnounce,
		"expiry":        app.JobExpirySweep,
		"summary":       app.JobDailySummary,
		"daily_summary": app.JobDailySummary,
	}
	for in, want := range tests {
		got, err := resolveJob(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	_, err := resolveJob("backfill")
	assert.Error(t, err)
}

func TestBuildNotifiers(t *testing.T) {
	reg, err := buildNotifiers(map[string]config.NotifierConfig{
		"telegram": {Enabled: true, Params: map[string]any{"bot_token": "t", "chat_id": "1"}},
		"ops": {Enabled: true, Type: "webhook", Params: map[string]any{
			"url":     "http://hooks.local/signal",
			"headers": map[string]any{"X-Token": "abc"},
		}},
		"email": {Enabled: false},
	}, zap.NewNop())
	require.NoError(t, err)

	var names []string
	for _, n := range reg.GetAll() {
		names = append(names, n.Name())
	}
	assert.Equal(t, []string{"telegram", "webhook"}, names)
}

func TestBuildNotifiers_InvalidParams(t *testing.T) {
	_, err := buildNotifiers(map[string]config.NotifierConfig{
		"telegram": {Enabled: true},
	}, zap.NewNop())
	assert.ErrorContains(t, err, "bot_token")

	_, err = buildNotifiers(map[string]config.NotifierConfig{
		"pager": {Enabled: true},
	}, zap.NewNop())
	assert.ErrorContains(t, err, "unknown type")
}

func TestOpenStore_Memory(t *testing.T) {
	store, closeStore, err := openStore(config.DatabaseConfig{Driver: "memory"}, zap.NewNop())
	require.NoError(t, err)
	defer closeStore()
	assert.NotNil(t, store)
}
