package api

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newthinker/signalwatch/internal/app"
)

type stubStats struct{ stats app.Stats }

func (s stubStats) GetStats() app.Stats { return s.stats }

func TestJobsHandler_Stats(t *testing.T) {
	stub := stubStats{stats: app.Stats{
		Running: true,
		Jobs: map[string]app.JobStats{
			app.JobPriceUpdate: {Schedule: "0 * * * * *", Skipped: 2},
		},
	}}
	handler := NewJobsHandler(stub)

	w := serve(handler.Stats, "GET /api/v1/jobs", "/api/v1/jobs")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Data app.Stats `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Data.Running)
	assert.EqualValues(t, 2, body.Data.Jobs[app.JobPriceUpdate].Skipped)
}

func TestJobsHandler_NoScheduler(t *testing.T) {
	w := serve(NewJobsHandler(nil).Stats, "GET /api/v1/jobs", "/api/v1/jobs")
	assert.Equal(t, http.StatusOK, w.Code)
}
