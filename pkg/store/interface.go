package store

import (
	"context"
	"time"

	"github.com/ecotrack-io/wastetrack/pkg/aggregate"
	"github.com/ecotrack-io/wastetrack/pkg/event"
)

// EventStore holds the raw waste measurement records: the source of truth
// that aggregates are derived from.
type EventStore interface {
	// Put stores (or replaces) a record.
	Put(ctx context.Context, e *event.Event) error

	// Get retrieves a record by id. Returns (nil, nil) when absent.
	Get(ctx context.Context, id string) (*event.Event, error)

	// Delete removes a record. Deleting an absent record is a no-op.
	Delete(ctx context.Context, e *event.Event) error

	// ScanRange returns every record for the client whose timestamp falls
	// in the half-open window [fromMillis, toMillis), ordered by timestamp.
	ScanRange(ctx context.Context, clientID string, fromMillis, toMillis int64) ([]*event.Event, error)
}

// Mark identifies one mutation notification for idempotency. The store
// records it in the same transaction as the increments, so redelivering the
// same notification nets to a no-op instead of double counting.
// A zero Mark disables marking (used by overwrite-style writes, which are
// idempotent on their own).
type Mark struct {
	MutationID string
}

// AggregateStore holds the daily and monthly rollup documents.
//
// Missing documents read as (nil, nil): a day or month with no aggregate is
// "zero activity", never an error.
type AggregateStore interface {
	GetDaily(ctx context.Context, clientID string, day event.DayID) (*aggregate.Aggregate, error)
	GetMonthly(ctx context.Context, clientID string, month event.MonthID) (*aggregate.Aggregate, error)

	// ApplyDeltas applies every delta to its daily and monthly documents in
	// ONE atomic read-branch-write transaction: each target document is
	// created with the delta as initial values when absent, or incremented
	// in place when present. Write conflicts under concurrent application
	// are retried a bounded number of times by the implementation.
	//
	// When mark is non-zero and was already recorded, the call is a no-op.
	ApplyDeltas(ctx context.Context, mark Mark, deltas []*aggregate.Delta) error

	// OverwriteDaily / OverwriteMonthly fully replace a document ("set",
	// not merge). Used by backfill, which rebuilds from scratch.
	OverwriteDaily(ctx context.Context, clientID string, day event.DayID, agg *aggregate.Aggregate) error
	OverwriteMonthly(ctx context.Context, clientID string, month event.MonthID, agg *aggregate.Aggregate) error

	DeleteDaily(ctx context.Context, clientID string, day event.DayID) error
	DeleteMonthly(ctx context.Context, clientID string, month event.MonthID) error

	// ListDailyForMonth returns every existing daily document of the month.
	ListDailyForMonth(ctx context.Context, clientID string, month event.MonthID) (map[event.DayID]*aggregate.Aggregate, error)

	// ListMonthlyForYear returns every existing monthly document of the year.
	ListMonthlyForYear(ctx context.Context, clientID string, year int) (map[event.MonthID]*aggregate.Aggregate, error)
}

// ClientConfig is the per-tenant configuration document.
type ClientConfig struct {
	ClientID               string             `json:"clientId"`
	Name                   string             `json:"name,omitempty"`
	Timezone               string             `json:"timezone,omitempty"` // IANA name; empty means UTC
	AreasOfOrigin          []string           `json:"areasOfOrigin,omitempty"`
	WasteTypes             []string           `json:"wasteTypes,omitempty"`
	GravimetricComposition map[string]float64 `json:"gravimetricComposition,omitempty"`
}

// Location resolves the tenant's reporting timezone, falling back to UTC
// when unset or unparseable.
func (c *ClientConfig) Location() *time.Location {
	if c == nil || c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// CompanyConfig is the per-collector-company configuration document.
// Destinations maps a main waste type to its configured destination labels,
// first entry wins.
type CompanyConfig struct {
	CompanyID    string              `json:"companyId"`
	Name         string              `json:"name,omitempty"`
	Destinations map[string][]string `json:"destinations,omitempty"`
}

// ConfigStore holds tenant and collector-company configuration.
// Missing documents read as (nil, nil).
type ConfigStore interface {
	GetClient(ctx context.Context, clientID string) (*ClientConfig, error)
	PutClient(ctx context.Context, cfg *ClientConfig) error
	ListClients(ctx context.Context) ([]*ClientConfig, error)

	GetCompany(ctx context.Context, companyID string) (*CompanyConfig, error)
	PutCompany(ctx context.Context, cfg *CompanyConfig) error
}

// Stats provides storage health and usage info.
type Stats struct {
	TotalEvents      uint64 `json:"total_events"`
	TotalDailyDocs   uint64 `json:"total_daily_docs"`
	TotalMonthlyDocs uint64 `json:"total_monthly_docs"`
	SizeBytes        uint64 `json:"size_bytes"`
}

// Store bundles every collection behind one backend.
// Implementations: memory (testing), badger (production).
type Store interface {
	EventStore
	AggregateStore
	ConfigStore

	Stats(ctx context.Context) (*Stats, error)
	Close() error
}
