// Package query is the dashboard read surface: point and range reads over
// the daily and monthly aggregate documents, raw record listing, and the
// tenant / collector-company configuration endpoints.
package query

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/ecotrack-io/wastetrack/pkg/aggregate"
	"github.com/ecotrack-io/wastetrack/pkg/config"
	"github.com/ecotrack-io/wastetrack/pkg/event"
	"github.com/ecotrack-io/wastetrack/pkg/httpx"
	"github.com/ecotrack-io/wastetrack/pkg/store"
)

// Handler serves dashboard reads.
type Handler struct {
	store store.Store
}

// NewHandler creates a query handler.
func NewHandler(s store.Store) *Handler {
	return &Handler{store: s}
}

// HandleGetDaily handles GET /v1/aggregates/{clientId}/daily/{date}.
// A day with no activity reads as a zero-valued aggregate, not 404.
func (h *Handler) HandleGetDaily(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	clientID := vars["clientId"]

	day, err := event.ParseDayID(vars["date"])
	if err != nil {
		httpx.RespondErrorString(w, http.StatusBadRequest, fmt.Sprintf("invalid date: %v", err))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), config.QueryTimeout)
	defer cancel()

	agg, err := h.store.GetDaily(ctx, clientID, day)
	if err != nil {
		httpx.RespondError(w, http.StatusInternalServerError, err)
		return
	}
	if agg == nil {
		agg = aggregate.New()
	}
	httpx.RespondJSON(w, http.StatusOK, agg)
}

// HandleGetMonthly handles GET /v1/aggregates/{clientId}/monthly/{month}.
func (h *Handler) HandleGetMonthly(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	clientID := vars["clientId"]

	month, err := event.ParseMonthID(vars["month"])
	if err != nil {
		httpx.RespondErrorString(w, http.StatusBadRequest, fmt.Sprintf("invalid month: %v", err))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), config.QueryTimeout)
	defer cancel()

	agg, err := h.store.GetMonthly(ctx, clientID, month)
	if err != nil {
		httpx.RespondError(w, http.StatusInternalServerError, err)
		return
	}
	if agg == nil {
		agg = aggregate.New()
	}
	httpx.RespondJSON(w, http.StatusOK, agg)
}

// DailySeriesResponse is one month of daily aggregates, days sorted.
type DailySeriesResponse struct {
	ClientID string                          `json:"clientId"`
	Month    string                          `json:"month"`
	Days     []string                        `json:"days"`
	Series   map[string]*aggregate.Aggregate `json:"series"`
}

// HandleListDaily handles GET /v1/aggregates/{clientId}/daily?month=YYYY-MM:
// every existing daily document of the month. Days without activity are
// simply absent from the series.
func (h *Handler) HandleListDaily(w http.ResponseWriter, r *http.Request) {
	clientID := mux.Vars(r)["clientId"]

	month, err := event.ParseMonthID(r.URL.Query().Get("month"))
	if err != nil {
		httpx.RespondErrorString(w, http.StatusBadRequest, fmt.Sprintf("invalid month: %v", err))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), config.QueryTimeout)
	defer cancel()

	days, err := h.store.ListDailyForMonth(ctx, clientID, month)
	if err != nil {
		httpx.RespondError(w, http.StatusInternalServerError, err)
		return
	}

	resp := DailySeriesResponse{
		ClientID: clientID,
		Month:    string(month),
		Days:     make([]string, 0, len(days)),
		Series:   make(map[string]*aggregate.Aggregate, len(days)),
	}
	for day, agg := range days {
		resp.Days = append(resp.Days, string(day))
		resp.Series[string(day)] = agg
	}
	sort.Strings(resp.Days)

	httpx.RespondJSON(w, http.StatusOK, resp)
}

// MonthlySeriesResponse is one year of monthly aggregates, months sorted.
type MonthlySeriesResponse struct {
	ClientID string                          `json:"clientId"`
	Year     int                             `json:"year"`
	Months   []string                        `json:"months"`
	Series   map[string]*aggregate.Aggregate `json:"series"`
}

// HandleListMonthly handles GET /v1/aggregates/{clientId}/monthly?year=YYYY.
func (h *Handler) HandleListMonthly(w http.ResponseWriter, r *http.Request) {
	clientID := mux.Vars(r)["clientId"]

	year, err := strconv.Atoi(r.URL.Query().Get("year"))
	if err != nil || year < config.BackfillMinYear || year > config.BackfillMaxYear {
		httpx.RespondErrorString(w, http.StatusBadRequest, "invalid year")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), config.QueryTimeout)
	defer cancel()

	months, err := h.store.ListMonthlyForYear(ctx, clientID, year)
	if err != nil {
		httpx.RespondError(w, http.StatusInternalServerError, err)
		return
	}

	resp := MonthlySeriesResponse{
		ClientID: clientID,
		Year:     year,
		Months:   make([]string, 0, len(months)),
		Series:   make(map[string]*aggregate.Aggregate, len(months)),
	}
	for month, agg := range months {
		resp.Months = append(resp.Months, string(month))
		resp.Series[string(month)] = agg
	}
	sort.Strings(resp.Months)

	httpx.RespondJSON(w, http.StatusOK, resp)
}

// RecordsResponse is a raw record listing.
type RecordsResponse struct {
	ClientID string         `json:"clientId"`
	Count    int            `json:"count"`
	Records  []*event.Event `json:"records"`
}

// HandleListRecords handles GET /v1/records?client_id=X&from=ms&to=ms:
// raw records in the half-open window [from, to), timestamp order.
func (h *Handler) HandleListRecords(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	clientID := q.Get("client_id")
	if clientID == "" {
		httpx.RespondErrorString(w, http.StatusBadRequest, "client_id parameter required")
		return
	}
	from, err := strconv.ParseInt(q.Get("from"), 10, 64)
	if err != nil {
		httpx.RespondErrorString(w, http.StatusBadRequest, "invalid from timestamp")
		return
	}
	to, err := strconv.ParseInt(q.Get("to"), 10, 64)
	if err != nil || to <= from {
		httpx.RespondErrorString(w, http.StatusBadRequest, "invalid to timestamp")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), config.IngestLookupTimeout)
	defer cancel()

	records, err := h.store.ScanRange(ctx, clientID, from, to)
	if err != nil {
		httpx.RespondError(w, http.StatusInternalServerError, err)
		return
	}

	httpx.RespondJSON(w, http.StatusOK, RecordsResponse{
		ClientID: clientID,
		Count:    len(records),
		Records:  records,
	})
}

// HandleGetClientConfig handles GET /v1/config/clients/{clientId}.
func (h *Handler) HandleGetClientConfig(w http.ResponseWriter, r *http.Request) {
	clientID := mux.Vars(r)["clientId"]

	ctx, cancel := context.WithTimeout(r.Context(), config.QueryTimeout)
	defer cancel()

	cfg, err := h.store.GetClient(ctx, clientID)
	if err != nil {
		httpx.RespondError(w, http.StatusInternalServerError, err)
		return
	}
	if cfg == nil {
		httpx.RespondErrorString(w, http.StatusNotFound, fmt.Sprintf("client %s not found", clientID))
		return
	}
	httpx.RespondJSON(w, http.StatusOK, cfg)
}

// HandlePutClientConfig handles PUT /v1/config/clients/{clientId}.
func (h *Handler) HandlePutClientConfig(w http.ResponseWriter, r *http.Request) {
	clientID := mux.Vars(r)["clientId"]

	var cfg store.ClientConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		httpx.RespondErrorString(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}
	cfg.ClientID = clientID

	ctx, cancel := context.WithTimeout(r.Context(), config.QueryTimeout)
	defer cancel()

	if err := h.store.PutClient(ctx, &cfg); err != nil {
		httpx.RespondError(w, http.StatusInternalServerError, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, cfg)
}

// HandleListClients handles GET /v1/config/clients.
func (h *Handler) HandleListClients(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), config.QueryTimeout)
	defer cancel()

	clients, err := h.store.ListClients(ctx)
	if err != nil {
		httpx.RespondError(w, http.StatusInternalServerError, err)
		return
	}
	sort.Slice(clients, func(i, j int) bool { return clients[i].ClientID < clients[j].ClientID })

	httpx.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"count":   len(clients),
		"clients": clients,
	})
}

// HandleGetCompanyConfig handles GET /v1/config/companies/{companyId}.
func (h *Handler) HandleGetCompanyConfig(w http.ResponseWriter, r *http.Request) {
	companyID := mux.Vars(r)["companyId"]

	ctx, cancel := context.WithTimeout(r.Context(), config.QueryTimeout)
	defer cancel()

	cfg, err := h.store.GetCompany(ctx, companyID)
	if err != nil {
		httpx.RespondError(w, http.StatusInternalServerError, err)
		return
	}
	if cfg == nil {
		httpx.RespondErrorString(w, http.StatusNotFound, fmt.Sprintf("company %s not found", companyID))
		return
	}
	httpx.RespondJSON(w, http.StatusOK, cfg)
}

// HandlePutCompanyConfig handles PUT /v1/config/companies/{companyId}.
func (h *Handler) HandlePutCompanyConfig(w http.ResponseWriter, r *http.Request) {
	companyID := mux.Vars(r)["companyId"]

	var cfg store.CompanyConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		httpx.RespondErrorString(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}
	cfg.CompanyID = companyID

	ctx, cancel := context.WithTimeout(r.Context(), config.QueryTimeout)
	defer cancel()

	if err := h.store.PutCompany(ctx, &cfg); err != nil {
		httpx.RespondError(w, http.StatusInternalServerError, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, cfg)
}
