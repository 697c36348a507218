// Package reactor is the trigger layer: it converts each record-store
// mutation (create/update/delete) into signed deltas and applies them
// transactionally to the daily and monthly aggregates.
package reactor

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ecotrack-io/wastetrack/pkg/aggregate"
	"github.com/ecotrack-io/wastetrack/pkg/destination"
	"github.com/ecotrack-io/wastetrack/pkg/event"
	"github.com/ecotrack-io/wastetrack/pkg/logging"
	"github.com/ecotrack-io/wastetrack/pkg/metrics"
	"github.com/ecotrack-io/wastetrack/pkg/store"
)

// Reactor applies record mutations to the aggregate store.
//
// Each mutation becomes one or two deltas, and every delta's four possible
// targets (old day, old month, new day, new month) are applied inside one
// store transaction: either the retraction and the application both commit,
// or neither does. Partial application would break the
// monthly-equals-sum-of-daily invariant.
type Reactor struct {
	aggregates store.AggregateStore
	configs    store.ConfigStore
	resolver   *destination.Resolver
}

// New creates a reactor.
func New(aggregates store.AggregateStore, configs store.ConfigStore, resolver *destination.Resolver) *Reactor {
	return &Reactor{
		aggregates: aggregates,
		configs:    configs,
		resolver:   resolver,
	}
}

// React dispatches a mutation notification by shape: create has only After,
// delete has only Before, update carries both. The mark makes redelivery of
// the same notification a no-op.
func (r *Reactor) React(ctx context.Context, mark store.Mark, m *event.Mutation) error {
	switch {
	case m == nil || (m.Before == nil && m.After == nil):
		return nil
	case m.Before == nil:
		return r.OnCreate(ctx, mark, m.After)
	case m.After == nil:
		return r.OnDelete(ctx, mark, m.Before)
	default:
		return r.OnUpdate(ctx, mark, m.Before, m.After)
	}
}

// OnCreate applies a newly created record: buildDelta(after, +1).
func (r *Reactor) OnCreate(ctx context.Context, mark store.Mark, after *event.Event) error {
	d, ok := r.buildDelta(ctx, after, aggregate.SignApply)
	if !ok {
		return nil // invalid record: skipped, not an error
	}
	if err := r.apply(ctx, mark, d); err != nil {
		return err
	}
	metrics.MutationsApplied.WithLabelValues("create").Inc()
	return nil
}

// OnDelete retracts a deleted record: buildDelta(before, -1). The resulting
// document may go negative or to exactly zero under pathological concurrent
// delete ordering; that is an accepted input-pipeline property, so no
// clamping happens here.
func (r *Reactor) OnDelete(ctx context.Context, mark store.Mark, before *event.Event) error {
	d, ok := r.buildDelta(ctx, before, aggregate.SignRetract)
	if !ok {
		return nil
	}
	if err := r.apply(ctx, mark, d); err != nil {
		return err
	}
	metrics.MutationsApplied.WithLabelValues("delete").Inc()
	return nil
}

// OnUpdate treats an update as "retract old, apply new". The timestamp may
// have changed, moving the record to a different day or month, so the two
// deltas can target different documents — they still commit in one
// transaction scope.
func (r *Reactor) OnUpdate(ctx context.Context, mark store.Mark, before, after *event.Event) error {
	oldDelta, oldOK := r.buildDelta(ctx, before, aggregate.SignRetract)
	newDelta, newOK := r.buildDelta(ctx, after, aggregate.SignApply)
	if !oldOK && !newOK {
		return nil // neither side contributes, nothing to do
	}

	var deltas []*aggregate.Delta
	if oldOK {
		deltas = append(deltas, oldDelta)
	}
	if newOK {
		deltas = append(deltas, newDelta)
	}
	if err := r.aggregates.ApplyDeltas(ctx, mark, deltas); err != nil {
		metrics.ReactorFailures.Inc()
		return fmt.Errorf("failed to apply update deltas: %w", err)
	}
	metrics.MutationsApplied.WithLabelValues("update").Inc()
	return nil
}

func (r *Reactor) apply(ctx context.Context, mark store.Mark, d *aggregate.Delta) error {
	if err := r.aggregates.ApplyDeltas(ctx, mark, []*aggregate.Delta{d}); err != nil {
		metrics.ReactorFailures.Inc()
		return fmt.Errorf("failed to apply delta for client %s day %s: %w", d.ClientID, d.Day, err)
	}
	return nil
}

// buildDelta resolves the tenant timezone and destination, then builds the
// signed delta. Invalid records log a data-quality skip and return false.
func (r *Reactor) buildDelta(ctx context.Context, e *event.Event, sign aggregate.Sign) (*aggregate.Delta, bool) {
	if e == nil {
		return nil, false
	}
	if !e.Valid() {
		metrics.EventsSkipped.Inc()
		logging.SkippedEvent(e.ClientID, e.ID, "missing required field or non-numeric weight")
		return nil, false
	}

	dest := r.resolver.Resolve(ctx, e.ClientID, e.CollectorCompanyRef, e.WasteType)
	d, ok := aggregate.Build(e, sign, dest, r.location(ctx, e.ClientID))
	if !ok {
		// Build re-checks validity; unreachable after the check above, but
		// a false here must still be a no-op for the caller.
		return nil, false
	}
	return d, true
}

// location resolves the tenant reporting timezone; any failure degrades to
// UTC rather than blocking the mutation.
func (r *Reactor) location(ctx context.Context, clientID string) *time.Location {
	cfg, err := r.configs.GetClient(ctx, clientID)
	if err != nil {
		logging.Logger().WithFields(logrus.Fields{
			"client_id": clientID,
		}).WithError(err).Warn("client config lookup failed, bucketing in UTC")
		return time.UTC
	}
	return cfg.Location()
}
