package reactor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ecotrack-io/wastetrack/pkg/destination"
	"github.com/ecotrack-io/wastetrack/pkg/event"
	"github.com/ecotrack-io/wastetrack/pkg/store"
	"github.com/ecotrack-io/wastetrack/pkg/store/memory"
)

func newTestReactor(t *testing.T) (*Reactor, *memory.Store) {
	t.Helper()
	s := memory.New()
	return New(s, s, destination.NewResolver(s)), s
}

func organicEvent(id string) *event.Event {
	return &event.Event{
		ID:           id,
		ClientID:     "c1",
		Timestamp:    time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC).UnixMilli(),
		WeightKg:     10,
		WasteType:    "Organic",
		AreaOfOrigin: "Kitchen",
	}
}

func mark(id string) store.Mark { return store.Mark{MutationID: id} }

func TestOnCreate(t *testing.T) {
	r, s := newTestReactor(t)
	ctx := context.Background()

	require.NoError(t, r.OnCreate(ctx, mark("m1"), organicEvent("e1")))

	daily, err := s.GetDaily(ctx, "c1", "2024-03-15")
	require.NoError(t, err)
	require.Equal(t, 10.0, daily.TotalKg)
	require.Equal(t, int64(1), daily.EntryCount)
	require.Equal(t, 10.0, daily.ByWasteType["Organic"].TotalKg)
	require.Equal(t, 10.0, daily.ByDestination[destination.Unspecified].TotalKg)

	monthly, err := s.GetMonthly(ctx, "c1", "2024-03")
	require.NoError(t, err)
	require.Equal(t, daily.TotalKg, monthly.TotalKg)
}

func TestOnCreateIncrementsExisting(t *testing.T) {
	r, s := newTestReactor(t)
	ctx := context.Background()

	require.NoError(t, r.OnCreate(ctx, mark("m1"), organicEvent("e1")))
	require.NoError(t, r.OnCreate(ctx, mark("m2"), organicEvent("e2")))

	daily, err := s.GetDaily(ctx, "c1", "2024-03-15")
	require.NoError(t, err)
	require.Equal(t, 20.0, daily.TotalKg)
	require.Equal(t, int64(2), daily.EntryCount)
}

func TestOnCreateSkipsInvalid(t *testing.T) {
	r, s := newTestReactor(t)
	ctx := context.Background()

	e := organicEvent("e1")
	e.AreaOfOrigin = ""
	require.NoError(t, r.OnCreate(ctx, mark("m1"), e), "invalid record is skipped, not an error")

	daily, err := s.GetDaily(ctx, "c1", "2024-03-15")
	require.NoError(t, err)
	require.Nil(t, daily, "skipped record must not create a document")
}

func TestOnDeleteRetracts(t *testing.T) {
	r, s := newTestReactor(t)
	ctx := context.Background()

	require.NoError(t, r.OnCreate(ctx, mark("m1"), organicEvent("e1")))
	require.NoError(t, r.OnDelete(ctx, mark("m2"), organicEvent("e1")))

	daily, err := s.GetDaily(ctx, "c1", "2024-03-15")
	require.NoError(t, err)
	require.True(t, daily.IsZero())

	monthly, err := s.GetMonthly(ctx, "c1", "2024-03")
	require.NoError(t, err)
	require.True(t, monthly.IsZero())
}

func TestOnUpdateSameDay(t *testing.T) {
	r, s := newTestReactor(t)
	ctx := context.Background()

	before := organicEvent("e1")
	require.NoError(t, r.OnCreate(ctx, mark("m1"), before))

	after := organicEvent("e1")
	after.WeightKg = 25
	require.NoError(t, r.OnUpdate(ctx, mark("m2"), before, after))

	daily, err := s.GetDaily(ctx, "c1", "2024-03-15")
	require.NoError(t, err)
	require.Equal(t, 25.0, daily.TotalKg)
	require.Equal(t, int64(1), daily.EntryCount, "update must not change entry count")
}

func TestOnUpdateMovesAcrossMonths(t *testing.T) {
	r, s := newTestReactor(t)
	ctx := context.Background()

	before := organicEvent("e1")
	require.NoError(t, r.OnCreate(ctx, mark("m1"), before))

	after := organicEvent("e1")
	after.Timestamp = time.Date(2024, 4, 2, 10, 0, 0, 0, time.UTC).UnixMilli()
	require.NoError(t, r.OnUpdate(ctx, mark("m2"), before, after))

	oldDaily, err := s.GetDaily(ctx, "c1", "2024-03-15")
	require.NoError(t, err)
	require.True(t, oldDaily.IsZero())
	oldMonthly, err := s.GetMonthly(ctx, "c1", "2024-03")
	require.NoError(t, err)
	require.True(t, oldMonthly.IsZero())

	newDaily, err := s.GetDaily(ctx, "c1", "2024-04-02")
	require.NoError(t, err)
	require.Equal(t, 10.0, newDaily.TotalKg)
	newMonthly, err := s.GetMonthly(ctx, "c1", "2024-04")
	require.NoError(t, err)
	require.Equal(t, 10.0, newMonthly.TotalKg)
}

func TestOnUpdateInvalidBefore(t *testing.T) {
	r, s := newTestReactor(t)
	ctx := context.Background()

	// A record that was stored malformed and later corrected: only the
	// +1 side applies, there is nothing to retract.
	before := organicEvent("e1")
	before.WasteType = ""
	after := organicEvent("e1")

	require.NoError(t, r.OnUpdate(ctx, mark("m1"), before, after))

	daily, err := s.GetDaily(ctx, "c1", "2024-03-15")
	require.NoError(t, err)
	require.Equal(t, 10.0, daily.TotalKg)
	require.Equal(t, int64(1), daily.EntryCount)
}

func TestMarkRedeliveryNoOp(t *testing.T) {
	r, s := newTestReactor(t)
	ctx := context.Background()

	m := mark("delivery-1")
	require.NoError(t, r.OnCreate(ctx, m, organicEvent("e1")))
	require.NoError(t, r.OnCreate(ctx, m, organicEvent("e1")))

	daily, err := s.GetDaily(ctx, "c1", "2024-03-15")
	require.NoError(t, err)
	require.Equal(t, 10.0, daily.TotalKg, "redelivery must net to a no-op")
}

func TestReactDispatch(t *testing.T) {
	r, s := newTestReactor(t)
	ctx := context.Background()

	e := organicEvent("e1")
	require.NoError(t, r.React(ctx, mark("m1"), &event.Mutation{After: e}))
	require.NoError(t, r.React(ctx, mark("m2"), &event.Mutation{Before: e}))
	require.NoError(t, r.React(ctx, mark("m3"), nil))
	require.NoError(t, r.React(ctx, mark("m4"), &event.Mutation{}))

	daily, err := s.GetDaily(ctx, "c1", "2024-03-15")
	require.NoError(t, err)
	require.True(t, daily.IsZero())
}

func TestTenantTimezoneBucketing(t *testing.T) {
	r, s := newTestReactor(t)
	ctx := context.Background()

	require.NoError(t, s.PutClient(ctx, &store.ClientConfig{ClientID: "c1", Timezone: "Asia/Tokyo"}))

	// 22:00 UTC on March 15 is already March 16 in Tokyo.
	e := organicEvent("e1")
	e.Timestamp = time.Date(2024, 3, 15, 22, 0, 0, 0, time.UTC).UnixMilli()
	require.NoError(t, r.OnCreate(ctx, mark("m1"), e))

	daily, err := s.GetDaily(ctx, "c1", "2024-03-16")
	require.NoError(t, err)
	require.NotNil(t, daily)
	require.Equal(t, 10.0, daily.TotalKg)
}

func TestDestinationResolution(t *testing.T) {
	r, s := newTestReactor(t)
	ctx := context.Background()

	require.NoError(t, s.PutCompany(ctx, &store.CompanyConfig{
		CompanyID:    "co1",
		Destinations: map[string][]string{"Organic": {"Compost"}},
	}))

	e := organicEvent("e1")
	e.CollectorCompanyRef = "co1"
	require.NoError(t, r.OnCreate(ctx, mark("m1"), e))

	daily, err := s.GetDaily(ctx, "c1", "2024-03-15")
	require.NoError(t, err)
	require.Equal(t, 10.0, daily.ByDestination["Compost"].TotalKg)
}
