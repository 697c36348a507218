package aggregate

import (
	"math"
	"testing"
	"time"

	"github.com/ecotrack-io/wastetrack/pkg/event"
)

func TestBuildValidEvent(t *testing.T) {
	e := organicEvent()
	d, ok := Build(e, SignApply, "Compost", time.UTC)
	if !ok {
		t.Fatal("expected delta for valid event")
	}
	if d.ClientID != "c1" || d.Day != "2024-03-15" || d.Month != "2024-03" {
		t.Errorf("unexpected routing: %s/%s/%s", d.ClientID, d.Day, d.Month)
	}
	if d.WeightKg != 10 || d.Entries != 1 {
		t.Errorf("unexpected values: weight=%v entries=%d", d.WeightKg, d.Entries)
	}
	if d.WasteType != "Organic" || d.SubType != "General" || d.Area != "Kitchen" || d.Destination != "Compost" {
		t.Errorf("unexpected keys: %+v", d)
	}
}

func TestBuildRetract(t *testing.T) {
	d, ok := Build(organicEvent(), SignRetract, "Compost", time.UTC)
	if !ok {
		t.Fatal("expected delta")
	}
	if d.WeightKg != -10 || d.Entries != -1 {
		t.Errorf("retract delta not negated: weight=%v entries=%d", d.WeightKg, d.Entries)
	}
}

func TestBuildSkipsInvalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*event.Event)
	}{
		{"missing waste type", func(e *event.Event) { e.WasteType = "" }},
		{"missing area", func(e *event.Event) { e.AreaOfOrigin = "" }},
		{"missing client", func(e *event.Event) { e.ClientID = "" }},
		{"zero timestamp", func(e *event.Event) { e.Timestamp = 0 }},
		{"NaN weight", func(e *event.Event) { e.WeightKg = event.Kilograms(math.NaN()) }},
		{"negative weight", func(e *event.Event) { e.WeightKg = -5 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := organicEvent()
			tt.mutate(e)
			if d, ok := Build(e, SignApply, "Compost", time.UTC); ok || d != nil {
				t.Errorf("expected (nil, false), got (%+v, %v)", d, ok)
			}
		})
	}
}

func TestBuildTimezoneBucketing(t *testing.T) {
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}

	e := organicEvent()
	e.Timestamp = time.Date(2024, 3, 15, 22, 0, 0, 0, time.UTC).UnixMilli()

	d, ok := Build(e, SignApply, "Compost", tokyo)
	if !ok {
		t.Fatal("expected delta")
	}
	if d.Day != "2024-03-16" {
		t.Errorf("day = %s, want 2024-03-16 (Tokyo local date)", d.Day)
	}
}

func TestBuildNilLocationDefaultsUTC(t *testing.T) {
	d, ok := Build(organicEvent(), SignApply, "Compost", nil)
	if !ok {
		t.Fatal("expected delta")
	}
	if d.Day != "2024-03-15" {
		t.Errorf("day = %s, want UTC bucketing", d.Day)
	}
}
