package query

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"

	"github.com/ecotrack-io/wastetrack/pkg/aggregate"
	"github.com/ecotrack-io/wastetrack/pkg/event"
	"github.com/ecotrack-io/wastetrack/pkg/store"
	"github.com/ecotrack-io/wastetrack/pkg/store/memory"
)

func newTestHandler(t *testing.T) (*Handler, *memory.Store) {
	t.Helper()
	s := memory.New()
	return NewHandler(s), s
}

func get(t *testing.T, handler http.HandlerFunc, target string, vars map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest(http.MethodGet, target, nil)
	if vars != nil {
		r = mux.SetURLVars(r, vars)
	}
	rr := httptest.NewRecorder()
	handler(rr, r)
	return rr
}

func TestHandleGetDaily(t *testing.T) {
	h, s := newTestHandler(t)

	agg := aggregate.New()
	agg.TotalKg = 15
	agg.EntryCount = 2
	require.NoError(t, s.OverwriteDaily(context.Background(), "c1", "2024-03-15", agg))

	rr := get(t, h.HandleGetDaily, "/v1/aggregates/c1/daily/2024-03-15",
		map[string]string{"clientId": "c1", "date": "2024-03-15"})
	require.Equal(t, http.StatusOK, rr.Code)

	var got aggregate.Aggregate
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	require.Equal(t, 15.0, got.TotalKg)
}

func TestHandleGetDailyMissingIsZero(t *testing.T) {
	h, _ := newTestHandler(t)

	// A day with no activity reads as a zero document, never 404.
	rr := get(t, h.HandleGetDaily, "/v1/aggregates/c1/daily/2024-03-15",
		map[string]string{"clientId": "c1", "date": "2024-03-15"})
	require.Equal(t, http.StatusOK, rr.Code)

	var got aggregate.Aggregate
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	require.Equal(t, 0.0, got.TotalKg)
	require.Equal(t, int64(0), got.EntryCount)
}

func TestHandleGetDailyInvalidDate(t *testing.T) {
	h, _ := newTestHandler(t)
	rr := get(t, h.HandleGetDaily, "/v1/aggregates/c1/daily/yesterday",
		map[string]string{"clientId": "c1", "date": "yesterday"})
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandleGetMonthly(t *testing.T) {
	h, s := newTestHandler(t)

	agg := aggregate.New()
	agg.TotalKg = 100
	require.NoError(t, s.OverwriteMonthly(context.Background(), "c1", "2024-03", agg))

	rr := get(t, h.HandleGetMonthly, "/v1/aggregates/c1/monthly/2024-03",
		map[string]string{"clientId": "c1", "month": "2024-03"})
	require.Equal(t, http.StatusOK, rr.Code)

	var got aggregate.Aggregate
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	require.Equal(t, 100.0, got.TotalKg)
}

func TestHandleListDaily(t *testing.T) {
	h, s := newTestHandler(t)
	ctx := context.Background()

	agg := aggregate.New()
	agg.TotalKg = 1
	require.NoError(t, s.OverwriteDaily(ctx, "c1", "2024-03-02", agg))
	require.NoError(t, s.OverwriteDaily(ctx, "c1", "2024-03-01", agg))

	rr := get(t, h.HandleListDaily, "/v1/aggregates/c1/daily?month=2024-03",
		map[string]string{"clientId": "c1"})
	require.Equal(t, http.StatusOK, rr.Code)

	var resp DailySeriesResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, []string{"2024-03-01", "2024-03-02"}, resp.Days)
	require.Len(t, resp.Series, 2)
}

func TestHandleListMonthly(t *testing.T) {
	h, s := newTestHandler(t)
	ctx := context.Background()

	agg := aggregate.New()
	agg.TotalKg = 1
	require.NoError(t, s.OverwriteMonthly(ctx, "c1", "2024-01", agg))
	require.NoError(t, s.OverwriteMonthly(ctx, "c1", "2024-06", agg))

	rr := get(t, h.HandleListMonthly, "/v1/aggregates/c1/monthly?year=2024",
		map[string]string{"clientId": "c1"})
	require.Equal(t, http.StatusOK, rr.Code)

	var resp MonthlySeriesResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, []string{"2024-01", "2024-06"}, resp.Months)

	rr = get(t, h.HandleListMonthly, "/v1/aggregates/c1/monthly?year=banana",
		map[string]string{"clientId": "c1"})
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandleListRecords(t *testing.T) {
	h, s := newTestHandler(t)
	ctx := context.Background()

	for i, ts := range []int64{100, 200, 300} {
		require.NoError(t, s.Put(ctx, &event.Event{
			ID:           string(rune('a' + i)),
			ClientID:     "c1",
			Timestamp:    ts,
			WeightKg:     1,
			WasteType:    "Organic",
			AreaOfOrigin: "Kitchen",
		}))
	}

	rr := get(t, h.HandleListRecords, "/v1/records?client_id=c1&from=100&to=300", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp RecordsResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, 2, resp.Count)

	rr = get(t, h.HandleListRecords, "/v1/records?from=100&to=300", nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = get(t, h.HandleListRecords, "/v1/records?client_id=c1&from=300&to=100", nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestClientConfigEndpoints(t *testing.T) {
	h, _ := newTestHandler(t)

	cfg := store.ClientConfig{Timezone: "Asia/Tokyo", WasteTypes: []string{"Organic"}}
	body, err := json.Marshal(cfg)
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodPut, "/v1/config/clients/c1", bytes.NewReader(body))
	r = mux.SetURLVars(r, map[string]string{"clientId": "c1"})
	rr := httptest.NewRecorder()
	h.HandlePutClientConfig(rr, r)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = get(t, h.HandleGetClientConfig, "/v1/config/clients/c1",
		map[string]string{"clientId": "c1"})
	require.Equal(t, http.StatusOK, rr.Code)

	var got store.ClientConfig
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	require.Equal(t, "c1", got.ClientID, "path id wins over payload")
	require.Equal(t, "Asia/Tokyo", got.Timezone)

	rr = get(t, h.HandleGetClientConfig, "/v1/config/clients/ghost",
		map[string]string{"clientId": "ghost"})
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCompanyConfigEndpoints(t *testing.T) {
	h, _ := newTestHandler(t)

	cfg := store.CompanyConfig{Destinations: map[string][]string{"Organic": {"Compost"}}}
	body, err := json.Marshal(cfg)
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodPut, "/v1/config/companies/co1", bytes.NewReader(body))
	r = mux.SetURLVars(r, map[string]string{"companyId": "co1"})
	rr := httptest.NewRecorder()
	h.HandlePutCompanyConfig(rr, r)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = get(t, h.HandleGetCompanyConfig, "/v1/config/companies/co1",
		map[string]string{"companyId": "co1"})
	require.Equal(t, http.StatusOK, rr.Code)

	var got store.CompanyConfig
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	require.Equal(t, []string{"Compost"}, got.Destinations["Organic"])
}

func TestHandleListClients(t *testing.T) {
	h, s := newTestHandler(t)
	ctx := context.Background()

	require.NoError(t, s.PutClient(ctx, &store.ClientConfig{ClientID: "c2"}))
	require.NoError(t, s.PutClient(ctx, &store.ClientConfig{ClientID: "c1"}))

	rr := get(t, h.HandleListClients, "/v1/config/clients", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Count   int                   `json:"count"`
		Clients []*store.ClientConfig `json:"clients"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, 2, resp.Count)
	require.Equal(t, "c1", resp.Clients[0].ClientID)
}
