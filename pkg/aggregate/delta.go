package aggregate

import (
	"time"

	"github.com/ecotrack-io/wastetrack/pkg/event"
)

// Sign is the direction of a delta: apply a new event or retract an old one.
type Sign int

const (
	SignApply   Sign = 1
	SignRetract Sign = -1
)

// Delta is one event's sparse, signed contribution to a daily aggregate
// and to its monthly aggregate. It is ephemeral: built, applied, discarded.
//
// Build is deterministic — the same event and sign always produce the same
// keys and values, which is what makes retry and retraction exact inverses.
type Delta struct {
	ClientID string
	Day      event.DayID
	Month    event.MonthID

	WeightKg float64 // signed: weight * sign
	Entries  int64   // signed: 1 * sign

	WasteType   string // collapsed main type
	SubType     string
	Area        string
	Destination string
}

// Build produces the delta for one event in one direction, or (nil, false)
// when the event fails the validity invariant. A nil delta is a no-op for
// the caller, never an error: data-quality problems must not break the
// aggregation pipeline.
//
// destination comes from the destination resolver; loc is the tenant's
// reporting timezone, used for day/month bucketing.
func Build(e *event.Event, sign Sign, destination string, loc *time.Location) (*Delta, bool) {
	if !e.Valid() {
		return nil, false
	}
	if loc == nil {
		loc = time.UTC
	}

	return &Delta{
		ClientID:    e.ClientID,
		Day:         event.DayOf(e.Timestamp, loc),
		Month:       event.MonthOf(e.Timestamp, loc),
		WeightKg:    float64(e.WeightKg) * float64(sign),
		Entries:     int64(sign),
		WasteType:   e.MainWasteType(),
		SubType:     e.SubType(),
		Area:        e.AreaOfOrigin,
		Destination: destination,
	}, true
}
