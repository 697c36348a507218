// Package backfill recomputes aggregates from scratch: a full day from raw
// records, a month from its daily documents, or a whole month from raw
// records. Recompute is pure overwrite, so a failed run is repaired by
// simply running it again.
package backfill

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ecotrack-io/wastetrack/pkg/aggregate"
	"github.com/ecotrack-io/wastetrack/pkg/destination"
	"github.com/ecotrack-io/wastetrack/pkg/event"
	"github.com/ecotrack-io/wastetrack/pkg/logging"
	"github.com/ecotrack-io/wastetrack/pkg/metrics"
	"github.com/ecotrack-io/wastetrack/pkg/store"
)

// Engine rebuilds aggregate documents from the record store.
type Engine struct {
	events     store.EventStore
	aggregates store.AggregateStore
	configs    store.ConfigStore
	resolver   *destination.Resolver
}

// New creates a backfill engine.
func New(events store.EventStore, aggregates store.AggregateStore, configs store.ConfigStore, resolver *destination.Resolver) *Engine {
	return &Engine{
		events:     events,
		aggregates: aggregates,
		configs:    configs,
		resolver:   resolver,
	}
}

// RecomputeDay rebuilds one daily aggregate directly from raw records,
// accumulating in memory from a zero-valued aggregate (never adjusting the
// stored one), then fully overwrites the document and recomputes the
// containing month.
//
// A day that folds to zero activity has its document deleted instead of
// overwritten with zeros, so empty days never hold a month's document
// hostage (see RecomputeMonth's empty-month rule).
func (e *Engine) RecomputeDay(ctx context.Context, clientID string, day event.DayID) error {
	if clientID == "" {
		return fmt.Errorf("client id is required")
	}
	start := time.Now()

	loc, err := e.location(ctx, clientID)
	if err != nil {
		return e.fail("day", err)
	}
	fromMillis, toMillis, err := day.Bounds(loc)
	if err != nil {
		return e.fail("day", err)
	}

	records, err := e.events.ScanRange(ctx, clientID, fromMillis, toMillis)
	if err != nil {
		return e.fail("day", fmt.Errorf("failed to scan records for %s/%s: %w", clientID, day, err))
	}

	agg, skipped := e.fold(ctx, records, loc)
	if agg.IsZero() {
		if err := e.aggregates.DeleteDaily(ctx, clientID, day); err != nil {
			return e.fail("day", fmt.Errorf("failed to delete empty daily %s/%s: %w", clientID, day, err))
		}
	} else {
		agg.UpdatedAt = time.Now().UTC()
		if err := e.aggregates.OverwriteDaily(ctx, clientID, day, agg); err != nil {
			return e.fail("day", fmt.Errorf("failed to overwrite daily %s/%s: %w", clientID, day, err))
		}
	}

	logging.Logger().WithFields(logrus.Fields{
		"client_id": clientID,
		"day":       day,
		"records":   len(records),
		"skipped":   skipped,
		"total_kg":  agg.TotalKg,
	}).Info("recomputed daily aggregate")

	if err := e.RecomputeMonth(ctx, clientID, day.Month()); err != nil {
		return e.fail("day", err)
	}

	metrics.BackfillRuns.WithLabelValues("day", "ok").Inc()
	metrics.BackfillDuration.WithLabelValues("day").Observe(time.Since(start).Seconds())
	return nil
}

// RecomputeMonth rebuilds one monthly aggregate by deep-summing its daily
// documents. A month with zero daily documents has its monthly document
// deleted — stale non-zero totals must not survive.
func (e *Engine) RecomputeMonth(ctx context.Context, clientID string, month event.MonthID) error {
	if clientID == "" {
		return fmt.Errorf("client id is required")
	}
	start := time.Now()

	days, err := e.aggregates.ListDailyForMonth(ctx, clientID, month)
	if err != nil {
		return e.fail("month", fmt.Errorf("failed to list daily aggregates for %s/%s: %w", clientID, month, err))
	}

	if len(days) == 0 {
		if err := e.aggregates.DeleteMonthly(ctx, clientID, month); err != nil {
			return e.fail("month", fmt.Errorf("failed to delete monthly %s/%s: %w", clientID, month, err))
		}
		logging.Logger().WithFields(logrus.Fields{
			"client_id": clientID,
			"month":     month,
		}).Info("deleted monthly aggregate (no daily data)")
		metrics.BackfillRuns.WithLabelValues("month", "ok").Inc()
		return nil
	}

	// Sum in day order so repeated recomputes accumulate floats in the
	// same sequence and produce byte-identical documents.
	ordered := make([]event.DayID, 0, len(days))
	for day := range days {
		ordered = append(ordered, day)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i] < ordered[j] })

	sum := aggregate.New()
	for _, day := range ordered {
		sum.Add(days[day])
	}
	sum.UpdatedAt = time.Now().UTC()

	if err := e.aggregates.OverwriteMonthly(ctx, clientID, month, sum); err != nil {
		return e.fail("month", fmt.Errorf("failed to overwrite monthly %s/%s: %w", clientID, month, err))
	}

	logging.Logger().WithFields(logrus.Fields{
		"client_id": clientID,
		"month":     month,
		"days":      len(days),
		"total_kg":  sum.TotalKg,
	}).Info("recomputed monthly aggregate")

	metrics.BackfillRuns.WithLabelValues("month", "ok").Inc()
	metrics.BackfillDuration.WithLabelValues("month").Observe(time.Since(start).Seconds())
	return nil
}

// RecomputeMonthFromEvents rebuilds every daily aggregate of the month
// directly from raw records — grouping them by the tenant's
// reporting-timezone calendar day, the same rule the live reactor uses —
// overwrites each touched day, deletes days that no longer have activity,
// then recomputes the monthly document.
func (e *Engine) RecomputeMonthFromEvents(ctx context.Context, clientID string, month event.MonthID) error {
	if clientID == "" {
		return fmt.Errorf("client id is required")
	}
	start := time.Now()

	loc, err := e.location(ctx, clientID)
	if err != nil {
		return e.fail("month_from_events", err)
	}
	fromMillis, toMillis, err := month.Bounds(loc)
	if err != nil {
		return e.fail("month_from_events", err)
	}

	records, err := e.events.ScanRange(ctx, clientID, fromMillis, toMillis)
	if err != nil {
		return e.fail("month_from_events", fmt.Errorf("failed to scan records for %s/%s: %w", clientID, month, err))
	}

	// Build each day independently, from scratch.
	byDay := make(map[event.DayID][]*event.Event)
	for _, rec := range records {
		day := event.DayOf(rec.Timestamp, loc)
		byDay[day] = append(byDay[day], rec)
	}

	// Existing daily documents that fold to nothing are stale and must go.
	existing, err := e.aggregates.ListDailyForMonth(ctx, clientID, month)
	if err != nil {
		return e.fail("month_from_events", fmt.Errorf("failed to list daily aggregates for %s/%s: %w", clientID, month, err))
	}

	now := time.Now().UTC()
	var rebuilt, removed int
	days, err := month.Days()
	if err != nil {
		return e.fail("month_from_events", err)
	}
	for _, day := range days {
		agg, _ := e.fold(ctx, byDay[day], loc)
		switch {
		case !agg.IsZero():
			agg.UpdatedAt = now
			if err := e.aggregates.OverwriteDaily(ctx, clientID, day, agg); err != nil {
				return e.fail("month_from_events", fmt.Errorf("failed to overwrite daily %s/%s: %w", clientID, day, err))
			}
			rebuilt++
		case existing[day] != nil:
			if err := e.aggregates.DeleteDaily(ctx, clientID, day); err != nil {
				return e.fail("month_from_events", fmt.Errorf("failed to delete stale daily %s/%s: %w", clientID, day, err))
			}
			removed++
		}
	}

	logging.Logger().WithFields(logrus.Fields{
		"client_id": clientID,
		"month":     month,
		"records":   len(records),
		"rebuilt":   rebuilt,
		"removed":   removed,
	}).Info("recomputed month from raw records")

	if err := e.RecomputeMonth(ctx, clientID, month); err != nil {
		return e.fail("month_from_events", err)
	}

	metrics.BackfillRuns.WithLabelValues("month_from_events", "ok").Inc()
	metrics.BackfillDuration.WithLabelValues("month_from_events").Observe(time.Since(start).Seconds())
	return nil
}

// fold accumulates records into one fresh aggregate, skipping invalid ones.
func (e *Engine) fold(ctx context.Context, records []*event.Event, loc *time.Location) (*aggregate.Aggregate, int) {
	agg := aggregate.New()
	var skipped int
	for _, rec := range records {
		dest := e.resolver.Resolve(ctx, rec.ClientID, rec.CollectorCompanyRef, rec.WasteType)
		d, ok := aggregate.Build(rec, aggregate.SignApply, dest, loc)
		if !ok {
			skipped++
			metrics.EventsSkipped.Inc()
			logging.SkippedEvent(rec.ClientID, rec.ID, "missing required field or non-numeric weight")
			continue
		}
		agg.Apply(d)
	}
	return agg, skipped
}

func (e *Engine) location(ctx context.Context, clientID string) (*time.Location, error) {
	cfg, err := e.configs.GetClient(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to load client config for %s: %w", clientID, err)
	}
	return cfg.Location(), nil
}

func (e *Engine) fail(op string, err error) error {
	metrics.BackfillRuns.WithLabelValues(op, "error").Inc()
	return err
}
