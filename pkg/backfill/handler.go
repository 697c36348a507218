package backfill

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ecotrack-io/wastetrack/pkg/config"
	"github.com/ecotrack-io/wastetrack/pkg/event"
	"github.com/ecotrack-io/wastetrack/pkg/httpx"
)

// ZeroBasedMonth is the month convention of the operator API: 0 = January,
// 11 = December. The zero base is carried over from the original callable
// interface the dashboards were built against; the typed field keeps the
// convention explicit instead of a bare integer.
type ZeroBasedMonth int

// Month converts to a one-based time.Month.
func (m ZeroBasedMonth) Month() time.Month { return time.Month(int(m) + 1) }

// Valid reports whether the value is inside [0, 11].
func (m ZeroBasedMonth) Valid() bool { return m >= 0 && m <= 11 }

// Handler exposes the operator recompute operations over HTTP. Routes are
// expected to be wrapped with the admin-role middleware; authorization is
// rejected there, before any request body is even decoded.
type Handler struct {
	engine *Engine
}

// NewHandler creates the operator API handler.
func NewHandler(engine *Engine) *Handler {
	return &Handler{engine: engine}
}

// RecomputeDayRequest is the payload for POST /v1/backfill/day.
type RecomputeDayRequest struct {
	ClientID string `json:"client_id"`
	Date     string `json:"date"` // YYYY-MM-DD
}

// RecomputeMonthRequest is the payload for POST /v1/backfill/month
// and /v1/backfill/month/from-events.
type RecomputeMonthRequest struct {
	ClientID string          `json:"client_id"`
	Year     int             `json:"year"`
	Month    *ZeroBasedMonth `json:"month"` // zero-based: 0=January .. 11=December
}

// RecomputeResponse is the operator API response envelope.
type RecomputeResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// HandleRecomputeDay rebuilds one daily aggregate (and its month) from raw
// records. Malformed input is rejected before any store read.
func (h *Handler) HandleRecomputeDay(w http.ResponseWriter, r *http.Request) {
	var req RecomputeDayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.RespondCode(w, httpx.CodeInvalidArgument, fmt.Sprintf("invalid JSON: %v", err))
		return
	}
	if req.ClientID == "" {
		httpx.RespondCode(w, httpx.CodeInvalidArgument, "client_id is required")
		return
	}
	day, err := event.ParseDayID(req.Date)
	if err != nil {
		httpx.RespondCode(w, httpx.CodeInvalidArgument, err.Error())
		return
	}

	if err := h.engine.RecomputeDay(r.Context(), req.ClientID, day); err != nil {
		httpx.RespondCode(w, httpx.CodeInternal, fmt.Sprintf("recompute failed: %v", err))
		return
	}

	httpx.RespondJSON(w, http.StatusOK, RecomputeResponse{
		Success: true,
		Message: fmt.Sprintf("recomputed %s for client %s", day, req.ClientID),
	})
}

// HandleRecomputeMonth rebuilds one monthly aggregate by summing its daily
// documents.
func (h *Handler) HandleRecomputeMonth(w http.ResponseWriter, r *http.Request) {
	req, month, ok := h.decodeMonthRequest(w, r)
	if !ok {
		return
	}

	if err := h.engine.RecomputeMonth(r.Context(), req.ClientID, month); err != nil {
		httpx.RespondCode(w, httpx.CodeInternal, fmt.Sprintf("recompute failed: %v", err))
		return
	}

	httpx.RespondJSON(w, http.StatusOK, RecomputeResponse{
		Success: true,
		Message: fmt.Sprintf("recomputed %s for client %s", month, req.ClientID),
	})
}

// HandleRecomputeMonthFromEvents rebuilds every day of the month from raw
// records, then the monthly document.
func (h *Handler) HandleRecomputeMonthFromEvents(w http.ResponseWriter, r *http.Request) {
	req, month, ok := h.decodeMonthRequest(w, r)
	if !ok {
		return
	}

	if err := h.engine.RecomputeMonthFromEvents(r.Context(), req.ClientID, month); err != nil {
		httpx.RespondCode(w, httpx.CodeInternal, fmt.Sprintf("recompute failed: %v", err))
		return
	}

	httpx.RespondJSON(w, http.StatusOK, RecomputeResponse{
		Success: true,
		Message: fmt.Sprintf("recomputed %s from raw records for client %s", month, req.ClientID),
	})
}

// decodeMonthRequest validates the shared month payload before any read.
func (h *Handler) decodeMonthRequest(w http.ResponseWriter, r *http.Request) (RecomputeMonthRequest, event.MonthID, bool) {
	var req RecomputeMonthRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.RespondCode(w, httpx.CodeInvalidArgument, fmt.Sprintf("invalid JSON: %v", err))
		return req, "", false
	}
	if req.ClientID == "" {
		httpx.RespondCode(w, httpx.CodeInvalidArgument, "client_id is required")
		return req, "", false
	}
	if req.Year < config.BackfillMinYear || req.Year > config.BackfillMaxYear {
		httpx.RespondCode(w, httpx.CodeInvalidArgument, fmt.Sprintf("year %d out of range", req.Year))
		return req, "", false
	}
	if req.Month == nil {
		httpx.RespondCode(w, httpx.CodeInvalidArgument, "month is required (zero-based, 0-11)")
		return req, "", false
	}
	if !req.Month.Valid() {
		httpx.RespondCode(w, httpx.CodeInvalidArgument, fmt.Sprintf("month %d out of range (zero-based, 0-11)", *req.Month))
		return req, "", false
	}
	return req, event.MonthIDOf(req.Year, req.Month.Month()), true
}
