package event

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// Main waste type prefixes. Free-form values like "Recyclable (Paper)" or
// "Organic - Food Scraps" collapse to the canonical prefix; anything else is
// kept as the literal value.
const (
	MainTypeRecyclable = "Recyclable"
	MainTypeOrganic    = "Organic"
)

// DefaultSubType is used when a record carries no sub type.
const DefaultSubType = "General"

// Kilograms is a defensively-decoded weight. Client payloads have been seen
// carrying weights as JSON numbers AND as quoted numeric strings; anything
// unparseable decodes to NaN so a single bad record never fails a whole
// batch decode. Validity is checked later via IsValid().
type Kilograms float64

// UnmarshalJSON accepts a JSON number, a numeric string, or null.
func (k *Kilograms) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		*k = Kilograms(math.NaN())
		return nil
	}
	s = strings.Trim(s, `"`)
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		*k = Kilograms(math.NaN())
		return nil
	}
	*k = Kilograms(v)
	return nil
}

// MarshalJSON emits null for NaN/Inf values, which encoding/json would
// otherwise refuse to encode.
func (k Kilograms) MarshalJSON() ([]byte, error) {
	v := float64(k)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(v)
}

// IsValid reports whether the weight is a finite, non-negative number.
func (k Kilograms) IsValid() bool {
	v := float64(k)
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}

// Event is one raw waste measurement recorded by a client.
type Event struct {
	ID                  string    `json:"id,omitempty"`
	ClientID            string    `json:"clientId" validate:"required"`
	Timestamp           int64     `json:"timestamp" validate:"required,gt=0"` // milliseconds since epoch
	WeightKg            Kilograms `json:"weightKg"`
	WasteType           string    `json:"wasteType,omitempty"`
	WasteSubType        string    `json:"wasteSubType,omitempty"`
	AreaOfOrigin        string    `json:"areaOfOrigin,omitempty"`
	CollectorCompanyRef string    `json:"collectorCompanyRef,omitempty"`
}

// UnmarshalJSON decodes an event with the weight pre-seeded to NaN, so a
// payload that omits weightKg entirely is indistinguishable from one that
// carries an unparseable value: neither contributes to aggregation.
func (e *Event) UnmarshalJSON(data []byte) error {
	type plain Event
	p := plain{WeightKg: Kilograms(math.NaN())}
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*e = Event(p)
	return nil
}

// Valid reports whether the event contributes to aggregation: client id,
// timestamp, waste type and area must be present and the weight must be a
// real number. Malformed events are skipped silently, never treated as
// errors.
func (e *Event) Valid() bool {
	if e == nil {
		return false
	}
	if e.ClientID == "" || e.Timestamp <= 0 || e.WasteType == "" || e.AreaOfOrigin == "" {
		return false
	}
	return e.WeightKg.IsValid()
}

// MainWasteType collapses the free-form waste type to its canonical main type.
func (e *Event) MainWasteType() string {
	return CollapseWasteType(e.WasteType)
}

// CollapseWasteType maps "Recyclable*" -> "Recyclable", "Organic*" -> "Organic",
// and leaves every other value untouched.
func CollapseWasteType(wasteType string) string {
	if strings.HasPrefix(wasteType, MainTypeRecyclable) {
		return MainTypeRecyclable
	}
	if strings.HasPrefix(wasteType, MainTypeOrganic) {
		return MainTypeOrganic
	}
	return wasteType
}

// SubType returns the waste sub type, defaulting to "General".
func (e *Event) SubType() string {
	if e.WasteSubType == "" {
		return DefaultSubType
	}
	return e.WasteSubType
}

// Time returns the event time as a time.Time.
func (e *Event) Time() time.Time {
	return time.UnixMilli(e.Timestamp)
}

// Mutation is a record-store change notification: {before, after} snapshots.
// Create has only After, delete has only Before, update carries both.
type Mutation struct {
	Before *Event `json:"before,omitempty"`
	After  *Event `json:"after,omitempty"`
}

// compile-time check that Kilograms round-trips through JSON
var _ json.Unmarshaler = (*Kilograms)(nil)
