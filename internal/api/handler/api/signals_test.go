package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newthinker/signalwatch/internal/core"
	"github.com/newthinker/signalwatch/internal/storage/signal"
)

type listBody struct {
	Data []SignalView `json:"data"`
	Meta struct {
		Total  int `json:"total"`
		Limit  int `json:"limit"`
		Offset int `json:"offset"`
	} `json:"meta"`
}

var ict = time.FixedZone("ICT", 7*3600)

func seed(t *testing.T, store *signal.MemoryStore, symbol string, day int) core.Signal {
	t.Helper()
	sig, err := core.NewSignal(core.NewSignalParams{
		Symbol:        symbol,
		Exchange:      "HOSE",
		EntryPriceMin: 38.50,
		EntryPriceMax: 39.00,
		StopLossPrice: 37.00,
		TP1Price:      39.50,
		TP2Price:      41.00,
		TP3Price:      43.00,
		SignalDate:    time.Date(2024, 1, day, 9, 0, 0, 0, ict),
	})
	require.NoError(t, err)
	sig.CurrentPrice = 38.80
	require.NoError(t, store.Save(context.Background(), &sig))
	return sig
}

func serve(h http.HandlerFunc, pattern, target string) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	mux.HandleFunc(pattern, h)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest("GET", target, nil))
	return w
}

func TestSignalsHandler_List(t *testing.T) {
	store := signal.NewMemoryStore()
	seed(t, store, "HPG", 10)
	handler := NewSignalsHandler(store, ict)

	w := serve(handler.List, "GET /api/v1/signals", "/api/v1/signals")
	require.Equal(t, http.StatusOK, w.Code)

	var body listBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Data, 1)
	v := body.Data[0]
	assert.Equal(t, "HPG", v.Symbol)
	assert.Equal(t, 38.75, v.EntryPrice)
	assert.Equal(t, "BUY_ZONE", v.DisplayStatus)
	assert.Equal(t, 1, v.DisplayStatusCode)
	assert.Equal(t, 10, v.HoldingDays)
	assert.Greater(t, v.ExpectedProfit, 0.0)
	assert.Equal(t, 1, body.Meta.Total)
	assert.Equal(t, defaultLimit, body.Meta.Limit)
}

func TestSignalsHandler_ListWithFilters(t *testing.T) {
	store := signal.NewMemoryStore()
	seed(t, store, "HPG", 10)
	seed(t, store, "FPT", 11)
	seed(t, store, "VNM", 20)
	handler := NewSignalsHandler(store, ict)

	tests := []struct {
		name   string
		target string
		want   []string
	}{
		{"symbol", "/api/v1/signals?symbol=hpg", []string{"HPG"}},
		{"date range inclusive end", "/api/v1/signals?from=2024-01-10&to=2024-01-11", []string{"FPT", "HPG"}},
		{"status", "/api/v1/signals?status=active", []string{"VNM", "FPT", "HPG"}},
		{"closed", "/api/v1/signals?status=CLOSED", []string{}},
		{"paging", "/api/v1/signals?limit=1&offset=1", []string{"FPT"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(handler.List, "GET /api/v1/signals", tt.target)
			require.Equal(t, http.StatusOK, w.Code)

			var body listBody
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			got := make([]string, 0, len(body.Data))
			for _, v := range body.Data {
				got = append(got, v.Symbol)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSignalsHandler_ListBadRequest(t *testing.T) {
	handler := NewSignalsHandler(signal.NewMemoryStore(), ict)

	for _, target := range []string{
		"/api/v1/signals?status=OPEN",
		"/api/v1/signals?from=10-01-2024",
		"/api/v1/signals?from=2024-02-01&to=2024-01-01",
	} {
		w := serve(handler.List, "GET /api/v1/signals", target)
		assert.Equal(t, http.StatusBadRequest, w.Code, target)
		assert.Contains(t, w.Body.String(), "INVALID_REQUEST", target)
	}
}

func TestSignalsHandler_GetByID(t *testing.T) {
	store := signal.NewMemoryStore()
	sig := seed(t, store, "HPG", 10)
	handler := NewSignalsHandler(store, ict)

	w := serve(handler.GetByID, "GET /api/v1/signals/{id}", "/api/v1/signals/"+sig.ID)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Data SignalView `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, sig.ID, body.Data.ID)
	assert.Equal(t, "BUY_ZONE", body.Data.DisplayStatus)
}

func TestSignalsHandler_GetByID_NotFound(t *testing.T) {
	handler := NewSignalsHandler(signal.NewMemoryStore(), ict)

	w := serve(handler.GetByID, "GET /api/v1/signals/{id}", "/api/v1/signals/nonexistent")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "SIGNAL_NOT_FOUND")
}
