package aggregate

import (
	"time"
)

// Aggregate is one per-tenant rollup document, keyed by calendar day or
// month. Every nesting level is an explicit typed struct so the shape is
// enforced by the type system rather than by convention.
//
// Daily and monthly documents share this shape; a monthly document is the
// deep sum of its daily documents (see Add).
type Aggregate struct {
	TotalKg       float64               `json:"totalKg"`
	EntryCount    int64                 `json:"entryCount"`
	ByWasteType   map[string]*TypeEntry `json:"byWasteType,omitempty"`
	ByArea        map[string]*AreaEntry `json:"byArea,omitempty"`
	ByDestination map[string]*DestEntry `json:"byDestination,omitempty"`
	UpdatedAt     time.Time             `json:"updatedAt"`
}

// TypeEntry is the per-main-waste-type breakdown.
type TypeEntry struct {
	TotalKg   float64              `json:"totalKg"`
	BySubType map[string]*SubTotal `json:"byWasteSubType,omitempty"`
}

// AreaEntry is the per-area-of-origin breakdown.
type AreaEntry struct {
	TotalKg     float64              `json:"totalKg"`
	EntryCount  int64                `json:"entryCount"`
	ByWasteType map[string]*SubTotal `json:"byWasteType,omitempty"`
}

// DestEntry is the per-destination breakdown.
type DestEntry struct {
	TotalKg     float64              `json:"totalKg"`
	ByWasteType map[string]*SubTotal `json:"byWasteType,omitempty"`
}

// SubTotal is a leaf counter.
type SubTotal struct {
	TotalKg float64 `json:"totalKg"`
}

// New returns a zero-valued aggregate.
func New() *Aggregate {
	return &Aggregate{
		ByWasteType:   make(map[string]*TypeEntry),
		ByArea:        make(map[string]*AreaEntry),
		ByDestination: make(map[string]*DestEntry),
	}
}

// Apply adds one signed delta to the aggregate, creating missing nested
// keys on demand. Applying +1 then -1 for the same event nets every touched
// counter back to exactly zero (float64 addition and subtraction of the
// same value is exact).
func (a *Aggregate) Apply(d *Delta) {
	if d == nil {
		return
	}

	a.TotalKg += d.WeightKg
	a.EntryCount += d.Entries

	wt := a.wasteType(d.WasteType)
	wt.TotalKg += d.WeightKg
	if wt.BySubType == nil {
		wt.BySubType = make(map[string]*SubTotal)
	}
	sub := wt.BySubType[d.SubType]
	if sub == nil {
		sub = &SubTotal{}
		wt.BySubType[d.SubType] = sub
	}
	sub.TotalKg += d.WeightKg

	area := a.area(d.Area)
	area.TotalKg += d.WeightKg
	area.EntryCount += d.Entries
	if area.ByWasteType == nil {
		area.ByWasteType = make(map[string]*SubTotal)
	}
	at := area.ByWasteType[d.WasteType]
	if at == nil {
		at = &SubTotal{}
		area.ByWasteType[d.WasteType] = at
	}
	at.TotalKg += d.WeightKg

	dest := a.destination(d.Destination)
	dest.TotalKg += d.WeightKg
	if dest.ByWasteType == nil {
		dest.ByWasteType = make(map[string]*SubTotal)
	}
	dt := dest.ByWasteType[d.WasteType]
	if dt == nil {
		dt = &SubTotal{}
		dest.ByWasteType[d.WasteType] = dt
	}
	dt.TotalKg += d.WeightKg
}

// Add deep-accumulates another aggregate into this one. Uninitialized
// nested keys are created with value 0 before adding, so summing daily
// documents into a monthly document preserves every leaf.
func (a *Aggregate) Add(o *Aggregate) {
	if o == nil {
		return
	}

	a.TotalKg += o.TotalKg
	a.EntryCount += o.EntryCount

	for name, src := range o.ByWasteType {
		dst := a.wasteType(name)
		dst.TotalKg += src.TotalKg
		for subName, s := range src.BySubType {
			if dst.BySubType == nil {
				dst.BySubType = make(map[string]*SubTotal)
			}
			d := dst.BySubType[subName]
			if d == nil {
				d = &SubTotal{}
				dst.BySubType[subName] = d
			}
			d.TotalKg += s.TotalKg
		}
	}

	for name, src := range o.ByArea {
		dst := a.area(name)
		dst.TotalKg += src.TotalKg
		dst.EntryCount += src.EntryCount
		for typeName, s := range src.ByWasteType {
			if dst.ByWasteType == nil {
				dst.ByWasteType = make(map[string]*SubTotal)
			}
			d := dst.ByWasteType[typeName]
			if d == nil {
				d = &SubTotal{}
				dst.ByWasteType[typeName] = d
			}
			d.TotalKg += s.TotalKg
		}
	}

	for name, src := range o.ByDestination {
		dst := a.destination(name)
		dst.TotalKg += src.TotalKg
		for typeName, s := range src.ByWasteType {
			if dst.ByWasteType == nil {
				dst.ByWasteType = make(map[string]*SubTotal)
			}
			d := dst.ByWasteType[typeName]
			if d == nil {
				d = &SubTotal{}
				dst.ByWasteType[typeName] = d
			}
			d.TotalKg += s.TotalKg
		}
	}
}

// IsZero reports whether every counter in the document is exactly zero.
// Used to decide whether a recomputed aggregate holds any activity at all.
func (a *Aggregate) IsZero() bool {
	if a == nil {
		return true
	}
	if a.TotalKg != 0 || a.EntryCount != 0 {
		return false
	}
	for _, wt := range a.ByWasteType {
		if wt.TotalKg != 0 {
			return false
		}
		for _, s := range wt.BySubType {
			if s.TotalKg != 0 {
				return false
			}
		}
	}
	for _, area := range a.ByArea {
		if area.TotalKg != 0 || area.EntryCount != 0 {
			return false
		}
		for _, s := range area.ByWasteType {
			if s.TotalKg != 0 {
				return false
			}
		}
	}
	for _, dest := range a.ByDestination {
		if dest.TotalKg != 0 {
			return false
		}
		for _, s := range dest.ByWasteType {
			if s.TotalKg != 0 {
				return false
			}
		}
	}
	return true
}

// Clone returns a deep copy. Stores hand out clones so callers can never
// alias a document another goroutine is mutating.
func (a *Aggregate) Clone() *Aggregate {
	if a == nil {
		return nil
	}
	c := &Aggregate{
		TotalKg:    a.TotalKg,
		EntryCount: a.EntryCount,
		UpdatedAt:  a.UpdatedAt,
	}
	if a.ByWasteType != nil {
		c.ByWasteType = make(map[string]*TypeEntry, len(a.ByWasteType))
		for k, v := range a.ByWasteType {
			e := &TypeEntry{TotalKg: v.TotalKg}
			if v.BySubType != nil {
				e.BySubType = make(map[string]*SubTotal, len(v.BySubType))
				for sk, sv := range v.BySubType {
					e.BySubType[sk] = &SubTotal{TotalKg: sv.TotalKg}
				}
			}
			c.ByWasteType[k] = e
		}
	}
	if a.ByArea != nil {
		c.ByArea = make(map[string]*AreaEntry, len(a.ByArea))
		for k, v := range a.ByArea {
			e := &AreaEntry{TotalKg: v.TotalKg, EntryCount: v.EntryCount}
			if v.ByWasteType != nil {
				e.ByWasteType = make(map[string]*SubTotal, len(v.ByWasteType))
				for sk, sv := range v.ByWasteType {
					e.ByWasteType[sk] = &SubTotal{TotalKg: sv.TotalKg}
				}
			}
			c.ByArea[k] = e
		}
	}
	if a.ByDestination != nil {
		c.ByDestination = make(map[string]*DestEntry, len(a.ByDestination))
		for k, v := range a.ByDestination {
			e := &DestEntry{TotalKg: v.TotalKg}
			if v.ByWasteType != nil {
				e.ByWasteType = make(map[string]*SubTotal, len(v.ByWasteType))
				for sk, sv := range v.ByWasteType {
					e.ByWasteType[sk] = &SubTotal{TotalKg: sv.TotalKg}
				}
			}
			c.ByDestination[k] = e
		}
	}
	return c
}

func (a *Aggregate) wasteType(name string) *TypeEntry {
	if a.ByWasteType == nil {
		a.ByWasteType = make(map[string]*TypeEntry)
	}
	e := a.ByWasteType[name]
	if e == nil {
		e = &TypeEntry{}
		a.ByWasteType[name] = e
	}
	return e
}

func (a *Aggregate) area(name string) *AreaEntry {
	if a.ByArea == nil {
		a.ByArea = make(map[string]*AreaEntry)
	}
	e := a.ByArea[name]
	if e == nil {
		e = &AreaEntry{}
		a.ByArea[name] = e
	}
	return e
}

func (a *Aggregate) destination(name string) *DestEntry {
	if a.ByDestination == nil {
		a.ByDestination = make(map[string]*DestEntry)
	}
	e := a.ByDestination[name]
	if e == nil {
		e = &DestEntry{}
		a.ByDestination[name] = e
	}
	return e
}
