// Package ingest is the record intake API: the mutation source that drives
// the aggregation reactor. Every create/update/delete is persisted to the
// record store and handed to the reactor as a {before, after} pair.
package ingest

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/ecotrack-io/wastetrack/pkg/event"
	"github.com/ecotrack-io/wastetrack/pkg/httpx"
	"github.com/ecotrack-io/wastetrack/pkg/reactor"
	"github.com/ecotrack-io/wastetrack/pkg/store"
)

// Handler handles record intake.
type Handler struct {
	events   store.EventStore
	reactor  *reactor.Reactor
	guard    *DimensionGuard
	validate *validator.Validate
	hub      *DashboardHub
}

// NewHandler creates an intake handler. hub may be nil when live
// dashboard updates are disabled.
func NewHandler(events store.EventStore, r *reactor.Reactor, hub *DashboardHub) *Handler {
	return &Handler{
		events:   events,
		reactor:  r,
		guard:    NewDimensionGuard(),
		validate: validator.New(),
		hub:      hub,
	}
}

// IngestRequest is the payload for POST /v1/records.
type IngestRequest struct {
	Records []event.Event `json:"records"`
}

// IngestResponse reports how many records were stored.
type IngestResponse struct {
	Status string   `json:"status"`
	Count  int      `json:"count"`
	IDs    []string `json:"ids,omitempty"`
}

// HandleCreate handles POST /v1/records: persist each record and apply its
// +1 delta. Records the delta builder considers invalid are still stored —
// the record store is the source of truth, data-quality skips happen at
// aggregation time.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.RespondErrorString(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}
	if len(req.Records) == 0 {
		httpx.RespondErrorString(w, http.StatusBadRequest, "no records in request")
		return
	}
	if len(req.Records) > MaxRecordsPerRequest {
		httpx.RespondErrorString(w, http.StatusBadRequest, ErrTooManyRecords.Error())
		return
	}

	ids := make([]string, 0, len(req.Records))
	for i := range req.Records {
		rec := req.Records[i]
		if err := h.admit(&rec); err != nil {
			httpx.RespondErrorString(w, http.StatusBadRequest, fmt.Sprintf("invalid record: %v", err))
			return
		}
		if rec.ID == "" {
			rec.ID = uuid.NewString()
		}

		if err := h.events.Put(r.Context(), &rec); err != nil {
			httpx.RespondError(w, http.StatusInternalServerError, err)
			return
		}
		if err := h.reactor.OnCreate(r.Context(), mark(), &rec); err != nil {
			// Record is stored; the aggregate increment failed after
			// bounded retries. Surface it so the caller redelivers.
			httpx.RespondError(w, http.StatusInternalServerError, err)
			return
		}
		ids = append(ids, rec.ID)
		h.notify(&rec)
	}

	httpx.RespondJSON(w, http.StatusOK, IngestResponse{
		Status: "success",
		Count:  len(ids),
		IDs:    ids,
	})
}

// HandleUpdate handles PUT /v1/records/{id}: retract the old snapshot and
// apply the new one. The record may move to a different day or month.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	before, err := h.events.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, http.StatusInternalServerError, err)
		return
	}
	if before == nil {
		httpx.RespondErrorString(w, http.StatusNotFound, fmt.Sprintf("record %s not found", id))
		return
	}

	var after event.Event
	if err := json.NewDecoder(r.Body).Decode(&after); err != nil {
		httpx.RespondErrorString(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}
	after.ID = id
	if err := h.admit(&after); err != nil {
		httpx.RespondErrorString(w, http.StatusBadRequest, fmt.Sprintf("invalid record: %v", err))
		return
	}

	if err := h.events.Put(r.Context(), &after); err != nil {
		httpx.RespondError(w, http.StatusInternalServerError, err)
		return
	}
	if err := h.reactor.OnUpdate(r.Context(), mark(), before, &after); err != nil {
		httpx.RespondError(w, http.StatusInternalServerError, err)
		return
	}
	h.notify(before, &after)

	httpx.RespondJSON(w, http.StatusOK, IngestResponse{Status: "success", Count: 1, IDs: []string{id}})
}

// HandleDelete handles DELETE /v1/records/{id}: remove the record and
// retract its contribution.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	before, err := h.events.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, http.StatusInternalServerError, err)
		return
	}
	if before == nil {
		httpx.RespondErrorString(w, http.StatusNotFound, fmt.Sprintf("record %s not found", id))
		return
	}

	if err := h.events.Delete(r.Context(), before); err != nil {
		httpx.RespondError(w, http.StatusInternalServerError, err)
		return
	}
	if err := h.reactor.OnDelete(r.Context(), mark(), before); err != nil {
		httpx.RespondError(w, http.StatusInternalServerError, err)
		return
	}
	h.notify(before)

	httpx.RespondJSON(w, http.StatusOK, IngestResponse{Status: "success", Count: 1, IDs: []string{id}})
}

// admit runs boundary validation: routable fields present, dimension
// budget respected. Aggregation-level validity (weight, waste type, area)
// is deliberately NOT checked here — malformed records are stored and
// skipped by the delta builder.
func (h *Handler) admit(rec *event.Event) error {
	if err := h.validate.Struct(rec); err != nil {
		return err
	}
	for _, f := range []string{rec.WasteType, rec.WasteSubType, rec.AreaOfOrigin, rec.CollectorCompanyRef} {
		if len(f) > MaxFieldLength {
			return ErrFieldTooLong
		}
	}
	return h.guard.Check(rec.ClientID, event.CollapseWasteType(rec.WasteType), rec.AreaOfOrigin)
}

// notify pushes a change notification for the buckets the mutation
// touched. Buckets are computed in UTC here; dashboards refetch through
// the query API, which buckets in the tenant's reporting timezone.
func (h *Handler) notify(recs ...*event.Event) {
	if h.hub == nil || !h.hub.HasClients() {
		return
	}
	update := AggregateUpdate{At: time.Now().UnixMilli()}
	seenDay := map[string]bool{}
	seenMonth := map[string]bool{}
	for _, rec := range recs {
		update.ClientID = rec.ClientID
		day := string(event.DayOf(rec.Timestamp, time.UTC))
		month := string(event.MonthOf(rec.Timestamp, time.UTC))
		if !seenDay[day] {
			seenDay[day] = true
			update.Days = append(update.Days, day)
		}
		if !seenMonth[month] {
			seenMonth[month] = true
			update.Months = append(update.Months, month)
		}
	}
	if err := h.hub.Broadcast(update); err != nil {
		log.Printf("dashboard broadcast failed: %v", err)
	}
}

// mark mints the idempotency mark for one mutation notification. Each
// intake call is one delivery; redeliveries reuse the client-supplied id
// when the pipeline in front of us provides one.
func mark() store.Mark {
	return store.Mark{MutationID: uuid.NewString()}
}
