package backfill

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ecotrack-io/wastetrack/pkg/aggregate"
	"github.com/ecotrack-io/wastetrack/pkg/event"
	"github.com/ecotrack-io/wastetrack/pkg/logging"
	"github.com/ecotrack-io/wastetrack/pkg/metrics"
)

// driftEpsilon absorbs float accumulation-order noise when comparing a
// stored monthly total against the sum of its daily documents.
const driftEpsilon = 1e-6

// Auditor verifies that every monthly aggregate equals the deep sum of its
// daily aggregates, and repairs drifted months by recomputing them.
type Auditor struct {
	engine *Engine
}

// NewAuditor creates an auditor over the given engine.
func NewAuditor(engine *Engine) *Auditor {
	return &Auditor{engine: engine}
}

// Run audits the current and previous calendar year for every known
// tenant. Returns the number of drifted months it found and repaired.
func (a *Auditor) Run(ctx context.Context) (int, error) {
	clients, err := a.engine.configs.ListClients(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list clients for audit: %w", err)
	}

	now := time.Now().UTC()
	var drifted int
	for _, client := range clients {
		for _, year := range []int{now.Year() - 1, now.Year()} {
			n, err := a.auditYear(ctx, client.ClientID, year)
			if err != nil {
				return drifted, err
			}
			drifted += n
		}
	}
	return drifted, nil
}

// auditYear checks every month of the year for one tenant. Months past
// the current one are skipped once the listings run dry.
func (a *Auditor) auditYear(ctx context.Context, clientID string, year int) (int, error) {
	var drifted int
	for m := time.January; m <= time.December; m++ {
		if ctx.Err() != nil {
			return drifted, ctx.Err()
		}
		month := event.MonthIDOf(year, m)

		days, err := a.engine.aggregates.ListDailyForMonth(ctx, clientID, month)
		if err != nil {
			return drifted, fmt.Errorf("failed to list daily aggregates for %s/%s: %w", clientID, month, err)
		}
		monthly, err := a.engine.aggregates.GetMonthly(ctx, clientID, month)
		if err != nil {
			return drifted, fmt.Errorf("failed to read monthly %s/%s: %w", clientID, month, err)
		}
		if len(days) == 0 && monthly == nil {
			continue
		}

		if inSync(monthly, days) {
			continue
		}

		drifted++
		metrics.AuditDrift.Inc()
		logging.Logger().WithFields(logrus.Fields{
			"client_id": clientID,
			"month":     month,
			"days":      len(days),
		}).Warn("monthly aggregate drifted from daily sum, recomputing")

		if err := a.engine.RecomputeMonth(ctx, clientID, month); err != nil {
			return drifted, err
		}
	}
	return drifted, nil
}

// inSync reports whether the stored monthly document matches the deep sum
// of the daily documents within float tolerance.
func inSync(monthly *aggregate.Aggregate, days map[event.DayID]*aggregate.Aggregate) bool {
	if len(days) == 0 {
		// A monthly document with no daily documents is stale.
		return monthly == nil
	}
	if monthly == nil {
		return false
	}

	sum := aggregate.New()
	for _, day := range days {
		sum.Add(day)
	}
	return equalWithin(sum, monthly)
}

// equalWithin compares two aggregates on every nested leaf. A month that
// drifted only in a sub-type, area, or destination breakdown still counts
// as out of sync.
func equalWithin(a, b *aggregate.Aggregate) bool {
	if a.EntryCount != b.EntryCount {
		return false
	}
	if math.Abs(a.TotalKg-b.TotalKg) > driftEpsilon {
		return false
	}

	if len(a.ByWasteType) != len(b.ByWasteType) {
		return false
	}
	for wt, entry := range a.ByWasteType {
		got, ok := b.ByWasteType[wt]
		if !ok || math.Abs(entry.TotalKg-got.TotalKg) > driftEpsilon {
			return false
		}
		if !leavesEqual(entry.BySubType, got.BySubType) {
			return false
		}
	}

	if len(a.ByArea) != len(b.ByArea) {
		return false
	}
	for area, entry := range a.ByArea {
		got, ok := b.ByArea[area]
		if !ok || entry.EntryCount != got.EntryCount {
			return false
		}
		if math.Abs(entry.TotalKg-got.TotalKg) > driftEpsilon {
			return false
		}
		if !leavesEqual(entry.ByWasteType, got.ByWasteType) {
			return false
		}
	}

	if len(a.ByDestination) != len(b.ByDestination) {
		return false
	}
	for dest, entry := range a.ByDestination {
		got, ok := b.ByDestination[dest]
		if !ok || math.Abs(entry.TotalKg-got.TotalKg) > driftEpsilon {
			return false
		}
		if !leavesEqual(entry.ByWasteType, got.ByWasteType) {
			return false
		}
	}
	return true
}

func leavesEqual(a, b map[string]*aggregate.SubTotal) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		got, ok := b[k]
		if !ok || math.Abs(v.TotalKg-got.TotalKg) > driftEpsilon {
			return false
		}
	}
	return true
}
