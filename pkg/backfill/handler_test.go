package backfill

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ecotrack-io/wastetrack/pkg/event"
	"github.com/ecotrack-io/wastetrack/pkg/httpx"
)

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	engine, _ := newTestEngine(t)
	return NewHandler(engine)
}

func postJSON(t *testing.T, handler http.HandlerFunc, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/backfill/month", bytes.NewReader([]byte(body)))
	rr := httptest.NewRecorder()
	handler(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) httpx.ErrorResponse {
	t.Helper()
	var resp httpx.ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp
}

func TestZeroBasedMonth(t *testing.T) {
	require.Equal(t, time.January, ZeroBasedMonth(0).Month())
	require.Equal(t, time.December, ZeroBasedMonth(11).Month())
	require.True(t, ZeroBasedMonth(0).Valid())
	require.True(t, ZeroBasedMonth(11).Valid())
	require.False(t, ZeroBasedMonth(-1).Valid())
	require.False(t, ZeroBasedMonth(12).Valid())
}

func TestHandleRecomputeMonthZeroBased(t *testing.T) {
	h := newTestHandler(t)

	// month 0 is January.
	rr := postJSON(t, h.HandleRecomputeMonth, `{"client_id":"c1","year":2024,"month":0}`)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp RecomputeResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.True(t, resp.Success)
	require.Contains(t, resp.Message, "2024-01")
}

func TestHandleRecomputeMonthMissingMonth(t *testing.T) {
	h := newTestHandler(t)

	// Absent month must not decode as January.
	rr := postJSON(t, h.HandleRecomputeMonth, `{"client_id":"c1","year":2024}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, httpx.CodeInvalidArgument, decodeError(t, rr).Code)
}

func TestHandleRecomputeMonthValidation(t *testing.T) {
	h := newTestHandler(t)

	tests := []struct {
		name string
		body string
	}{
		{"malformed JSON", `{`},
		{"missing client", `{"year":2024,"month":3}`},
		{"month too large", `{"client_id":"c1","year":2024,"month":12}`},
		{"month negative", `{"client_id":"c1","year":2024,"month":-1}`},
		{"year out of range", `{"client_id":"c1","year":1905,"month":3}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := postJSON(t, h.HandleRecomputeMonth, tt.body)
			require.Equal(t, http.StatusBadRequest, rr.Code)
			require.Equal(t, httpx.CodeInvalidArgument, decodeError(t, rr).Code)
		})
	}
}

func TestHandleRecomputeDay(t *testing.T) {
	engine, s := newTestEngine(t)
	h := NewHandler(engine)

	putEvent(t, s, "e1", time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC), 10, "Organic")

	rr := postJSON(t, h.HandleRecomputeDay, `{"client_id":"c1","date":"2024-03-15"}`)
	require.Equal(t, http.StatusOK, rr.Code)

	daily, err := s.GetDaily(context.Background(), "c1", event.DayID("2024-03-15"))
	require.NoError(t, err)
	require.Equal(t, 10.0, daily.TotalKg)
}

func TestHandleRecomputeDayValidation(t *testing.T) {
	h := newTestHandler(t)

	tests := []struct {
		name string
		body string
	}{
		{"missing client", `{"date":"2024-03-15"}`},
		{"bad date", `{"client_id":"c1","date":"15/03/2024"}`},
		{"missing date", `{"client_id":"c1"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := postJSON(t, h.HandleRecomputeDay, tt.body)
			require.Equal(t, http.StatusBadRequest, rr.Code)
			require.Equal(t, httpx.CodeInvalidArgument, decodeError(t, rr).Code)
		})
	}
}
