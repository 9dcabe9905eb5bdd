package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/newthinker/signalwatch/internal/api/response"
	"github.com/newthinker/signalwatch/internal/core"
	"github.com/newthinker/signalwatch/internal/performance"
	"github.com/newthinker/signalwatch/internal/storage/signal"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

// SignalView is a signal with the derived fields clients display.
type SignalView struct {
	core.Signal
	EntryPrice        float64 `json:"entry_price"`
	Efficiency        float64 `json:"efficiency"`
	DisplayStatus     string  `json:"display_status"`
	DisplayStatusCode int     `json:"display_status_code"`
	ExpectedProfit    float64 `json:"expected_profit"`
	HoldingDays       int     `json:"holding_days"`
}

// NewSignalView derives the display fields of sig.
func NewSignalView(sig core.Signal) SignalView {
	ds := sig.DisplayStatus()
	return SignalView{
		Signal:            sig,
		EntryPrice:        sig.EntryPrice(),
		Efficiency:        performance.Efficiency(sig),
		DisplayStatus:     ds.String(),
		DisplayStatusCode: int(ds),
		ExpectedProfit:    sig.ExpectedProfit(),
		HoldingDays:       sig.HoldingDays(),
	}
}

// SignalsHandler handles signal-related API requests.
type SignalsHandler struct {
	store signal.Store
	loc   *time.Location
}

// NewSignalsHandler creates a new signals handler. Dates in queries are
// read in loc.
func NewSignalsHandler(store signal.Store, loc *time.Location) *SignalsHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &SignalsHandler{store: store, loc: loc}
}

// List returns signals matching query parameters.
func (h *SignalsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := signal.ListFilter{
		Symbol: strings.ToUpper(q.Get("symbol")),
		Limit:  defaultLimit,
	}

	if status := q.Get("status"); status != "" {
		for _, s := range strings.Split(status, ",") {
			st := core.Status(strings.ToUpper(strings.TrimSpace(s)))
			switch st {
			case core.StatusPending, core.StatusActive, core.StatusClosed:
				filter.Statuses = append(filter.Statuses, st)
			default:
				response.Fail(w, core.WrapError(core.ErrInvalidRequest, fmt.Errorf("unknown status %q", s)))
				return
			}
		}
	}

	from, to, err := parseRange(q.Get("from"), q.Get("to"), h.loc)
	if err != nil {
		response.Fail(w, err)
		return
	}
	if from != nil {
		filter.From = *from
	}
	if to != nil {
		filter.To = *to
	}

	if limit := q.Get("limit"); limit != "" {
		if n, err := strconv.Atoi(limit); err == nil && n > 0 {
			filter.Limit = min(n, maxLimit)
		}
	}
	if offset := q.Get("offset"); offset != "" {
		if n, err := strconv.Atoi(offset); err == nil && n >= 0 {
			filter.Offset = n
		}
	}

	signals, err := h.store.List(r.Context(), filter)
	if err != nil {
		response.Fail(w, err)
		return
	}

	total, err := h.store.Count(r.Context(), filter)
	if err != nil {
		response.Fail(w, err)
		return
	}

	views := make([]SignalView, len(signals))
	for i, sig := range signals {
		views[i] = NewSignalView(sig)
	}
	response.Page(w, views, total, filter.Limit, filter.Offset)
}

// GetByID returns a single signal by ID.
func (h *SignalsHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	sig, err := h.store.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, NewSignalView(*sig))
}

// parseRange reads optional YYYY-MM-DD bounds. The end date is inclusive.
func parseRange(start, end string, loc *time.Location) (*time.Time, *time.Time, error) {
	var from, to *time.Time
	if start != "" {
		t, err := time.ParseInLocation("2006-01-02", start, loc)
		if err != nil {
			return nil, nil, core.WrapError(core.ErrInvalidRequest, fmt.Errorf("start date %q: want YYYY-MM-DD", start))
		}
		from = &t
	}
	if end != "" {
		t, err := time.ParseInLocation("2006-01-02", end, loc)
		if err != nil {
			return nil, nil, core.WrapError(core.ErrInvalidRequest, fmt.Errorf("end date %q: want YYYY-MM-DD", end))
		}
		t = t.AddDate(0, 0, 1).Add(-time.Nanosecond)
		to = &t
	}
	if from != nil && to != nil && to.Before(*from) {
		return nil, nil, core.WrapError(core.ErrInvalidRequest, fmt.Errorf("end date before start date"))
	}
	return from, to, nil
}
