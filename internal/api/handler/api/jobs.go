package api

import (
	"net/http"

	"github.com/newthinker/signalwatch/internal/api/response"
	"github.com/newthinker/signalwatch/internal/app"
)

// StatsProvider reports scheduler state.
type StatsProvider interface {
	GetStats() app.Stats
}

// JobsHandler exposes scheduler stats.
type JobsHandler struct {
	scheduler StatsProvider
}

// NewJobsHandler creates a jobs handler.
func NewJobsHandler(scheduler StatsProvider) *JobsHandler {
	return &JobsHandler{scheduler: scheduler}
}

// Stats returns running state and the last report of each job.
func (h *JobsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	if h.scheduler == nil {
		response.JSON(w, http.StatusOK, app.Stats{Jobs: map[string]app.JobStats{}})
		return
	}
	response.JSON(w, http.StatusOK, h.scheduler.GetStats())
}
