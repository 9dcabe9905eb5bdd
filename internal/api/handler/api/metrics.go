package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/newthinker/signalwatch/internal/api/response"
	"github.com/newthinker/signalwatch/internal/core"
	"github.com/newthinker/signalwatch/internal/performance"
)

// MetricsHandler serves performance analytics.
type MetricsHandler struct {
	engine *performance.Engine
	loc    *time.Location
}

// NewMetricsHandler creates a metrics handler.
func NewMetricsHandler(engine *performance.Engine, loc *time.Location) *MetricsHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &MetricsHandler{engine: engine, loc: loc}
}

// Trading returns win rate, average profit and drawdown for signals issued
// between start and end.
func (h *MetricsHandler) Trading(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, to, err := parseRange(q.Get("start"), q.Get("end"), h.loc)
	if err != nil {
		response.Fail(w, err)
		return
	}

	m, err := h.engine.TradingMetrics(r.Context(), from, to)
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, m)
}

// ProfitFactor returns the monthly profit factor table for a year.
func (h *MetricsHandler) ProfitFactor(w http.ResponseWriter, r *http.Request) {
	year := 0
	if y := r.URL.Query().Get("year"); y != "" {
		n, err := strconv.Atoi(y)
		if err != nil || n < 1970 || n > 9999 {
			response.Fail(w, core.WrapError(core.ErrInvalidRequest, fmt.Errorf("year %q", y)))
			return
		}
		year = n
	}

	report, err := h.engine.ProfitFactor(r.Context(), year)
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, report)
}
