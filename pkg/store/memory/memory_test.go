package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ecotrack-io/wastetrack/pkg/aggregate"
	"github.com/ecotrack-io/wastetrack/pkg/event"
	"github.com/ecotrack-io/wastetrack/pkg/store"
)

func testEvent(id string, ts int64) *event.Event {
	return &event.Event{
		ID:           id,
		ClientID:     "c1",
		Timestamp:    ts,
		WeightKg:     10,
		WasteType:    "Organic",
		AreaOfOrigin: "Kitchen",
	}
}

func testDelta(t *testing.T, e *event.Event) *aggregate.Delta {
	t.Helper()
	d, ok := aggregate.Build(e, aggregate.SignApply, "Compost", time.UTC)
	require.True(t, ok)
	return d
}

func TestEventRoundTrip(t *testing.T) {
	s := New()
	ctx := context.Background()

	e := testEvent("e1", 1700000000000)
	require.NoError(t, s.Put(ctx, e))

	got, err := s.Get(ctx, "e1")
	require.NoError(t, err)
	require.Equal(t, e.ClientID, got.ClientID)

	// Absent id reads as (nil, nil).
	got, err = s.Get(ctx, "missing")
	require.NoError(t, err)
	require.Nil(t, got)

	require.NoError(t, s.Delete(ctx, e))
	got, err = s.Get(ctx, "e1")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestScanRangeHalfOpen(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, testEvent("e1", 100)))
	require.NoError(t, s.Put(ctx, testEvent("e2", 200)))
	require.NoError(t, s.Put(ctx, testEvent("e3", 300)))

	other := testEvent("e4", 200)
	other.ClientID = "c2"
	require.NoError(t, s.Put(ctx, other))

	got, err := s.ScanRange(ctx, "c1", 100, 300)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "e1", got[0].ID)
	require.Equal(t, "e2", got[1].ID)
}

func TestApplyDeltasCreatesAndIncrements(t *testing.T) {
	s := New()
	ctx := context.Background()

	d := testDelta(t, testEvent("e1", time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC).UnixMilli()))

	require.NoError(t, s.ApplyDeltas(ctx, store.Mark{MutationID: "m1"}, []*aggregate.Delta{d}))
	require.NoError(t, s.ApplyDeltas(ctx, store.Mark{MutationID: "m2"}, []*aggregate.Delta{d}))

	daily, err := s.GetDaily(ctx, "c1", "2024-03-15")
	require.NoError(t, err)
	require.Equal(t, 20.0, daily.TotalKg)
	require.Equal(t, int64(2), daily.EntryCount)

	monthly, err := s.GetMonthly(ctx, "c1", "2024-03")
	require.NoError(t, err)
	require.Equal(t, 20.0, monthly.TotalKg)
}

func TestApplyDeltasMarkIdempotent(t *testing.T) {
	s := New()
	ctx := context.Background()

	d := testDelta(t, testEvent("e1", time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC).UnixMilli()))
	mark := store.Mark{MutationID: "delivery-1"}

	// Redelivery of the same notification must not double count.
	require.NoError(t, s.ApplyDeltas(ctx, mark, []*aggregate.Delta{d}))
	require.NoError(t, s.ApplyDeltas(ctx, mark, []*aggregate.Delta{d}))

	daily, err := s.GetDaily(ctx, "c1", "2024-03-15")
	require.NoError(t, err)
	require.Equal(t, 10.0, daily.TotalKg)
	require.Equal(t, int64(1), daily.EntryCount)
}

func TestOverwriteAndDelete(t *testing.T) {
	s := New()
	ctx := context.Background()

	agg := aggregate.New()
	agg.TotalKg = 42
	agg.EntryCount = 3

	require.NoError(t, s.OverwriteDaily(ctx, "c1", "2024-03-15", agg))
	got, err := s.GetDaily(ctx, "c1", "2024-03-15")
	require.NoError(t, err)
	require.Equal(t, 42.0, got.TotalKg)

	require.NoError(t, s.DeleteDaily(ctx, "c1", "2024-03-15"))
	got, err = s.GetDaily(ctx, "c1", "2024-03-15")
	require.NoError(t, err)
	require.Nil(t, got)

	require.NoError(t, s.OverwriteMonthly(ctx, "c1", "2024-03", agg))
	require.NoError(t, s.DeleteMonthly(ctx, "c1", "2024-03"))
	gotM, err := s.GetMonthly(ctx, "c1", "2024-03")
	require.NoError(t, err)
	require.Nil(t, gotM)
}

func TestListDailyForMonth(t *testing.T) {
	s := New()
	ctx := context.Background()

	agg := aggregate.New()
	agg.TotalKg = 1
	require.NoError(t, s.OverwriteDaily(ctx, "c1", "2024-03-01", agg))
	require.NoError(t, s.OverwriteDaily(ctx, "c1", "2024-03-31", agg))
	require.NoError(t, s.OverwriteDaily(ctx, "c1", "2024-04-01", agg))

	days, err := s.ListDailyForMonth(ctx, "c1", "2024-03")
	require.NoError(t, err)
	require.Len(t, days, 2)
	require.Contains(t, days, event.DayID("2024-03-01"))
	require.Contains(t, days, event.DayID("2024-03-31"))
}

func TestListMonthlyForYear(t *testing.T) {
	s := New()
	ctx := context.Background()

	agg := aggregate.New()
	agg.TotalKg = 1
	require.NoError(t, s.OverwriteMonthly(ctx, "c1", "2024-01", agg))
	require.NoError(t, s.OverwriteMonthly(ctx, "c1", "2024-12", agg))
	require.NoError(t, s.OverwriteMonthly(ctx, "c1", "2023-12", agg))

	months, err := s.ListMonthlyForYear(ctx, "c1", 2024)
	require.NoError(t, err)
	require.Len(t, months, 2)
}

func TestConfigRoundTrip(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.PutClient(ctx, &store.ClientConfig{ClientID: "c1", Timezone: "Asia/Tokyo"}))
	cfg, err := s.GetClient(ctx, "c1")
	require.NoError(t, err)
	require.Equal(t, "Asia/Tokyo", cfg.Timezone)

	missing, err := s.GetClient(ctx, "nope")
	require.NoError(t, err)
	require.Nil(t, missing)

	require.NoError(t, s.PutCompany(ctx, &store.CompanyConfig{
		CompanyID:    "co1",
		Destinations: map[string][]string{"Organic": {"Compost"}},
	}))
	company, err := s.GetCompany(ctx, "co1")
	require.NoError(t, err)
	require.Equal(t, []string{"Compost"}, company.Destinations["Organic"])

	clients, err := s.ListClients(ctx)
	require.NoError(t, err)
	require.Len(t, clients, 1)
}

func TestStats(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, testEvent("e1", 100)))
	agg := aggregate.New()
	require.NoError(t, s.OverwriteDaily(ctx, "c1", "2024-03-15", agg))

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(1), stats.TotalEvents)
	require.Equal(t, uint64(1), stats.TotalDailyDocs)
}
