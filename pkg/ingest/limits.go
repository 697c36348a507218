package ingest

import (
	"fmt"
	"sync"
)

// Intake limits. The aggregate documents key their breakdowns by free-form
// strings (waste type, area), so unchecked values would grow every daily
// document without bound. The guard caps distinct dimension values per
// tenant.
const (
	MaxRecordsPerRequest   = 1000
	MaxFieldLength         = 256
	MaxWasteTypesPerClient = 200
	MaxAreasPerClient      = 200
)

var (
	// ErrTooManyRecords is returned when an intake request is oversized.
	ErrTooManyRecords = fmt.Errorf("too many records in request (max %d)", MaxRecordsPerRequest)

	// ErrFieldTooLong is returned when a dimension value is oversized.
	ErrFieldTooLong = fmt.Errorf("field too long (max %d chars)", MaxFieldLength)

	// ErrWasteTypeCardinality is returned when a tenant exceeds its
	// distinct waste type budget.
	ErrWasteTypeCardinality = fmt.Errorf("waste type cardinality limit exceeded (max %d per client)", MaxWasteTypesPerClient)

	// ErrAreaCardinality is returned when a tenant exceeds its distinct
	// area budget.
	ErrAreaCardinality = fmt.Errorf("area cardinality limit exceeded (max %d per client)", MaxAreasPerClient)
)

// DimensionGuard tracks distinct waste types and areas per tenant so a
// misbehaving integration cannot explode aggregate document size.
type DimensionGuard struct {
	mu         sync.Mutex
	wasteTypes map[string]map[string]struct{} // client -> set of main types
	areas      map[string]map[string]struct{} // client -> set of areas
}

// NewDimensionGuard creates an empty guard.
func NewDimensionGuard() *DimensionGuard {
	return &DimensionGuard{
		wasteTypes: make(map[string]map[string]struct{}),
		areas:      make(map[string]map[string]struct{}),
	}
}

// Check validates dimension values and reserves them for the tenant.
// Known values always pass; new values pass while the budget lasts.
func (g *DimensionGuard) Check(clientID, mainType, area string) error {
	if len(mainType) > MaxFieldLength || len(area) > MaxFieldLength {
		return ErrFieldTooLong
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if mainType != "" {
		set := g.wasteTypes[clientID]
		if set == nil {
			set = make(map[string]struct{})
			g.wasteTypes[clientID] = set
		}
		if _, seen := set[mainType]; !seen {
			if len(set) >= MaxWasteTypesPerClient {
				return ErrWasteTypeCardinality
			}
			set[mainType] = struct{}{}
		}
	}

	if area != "" {
		set := g.areas[clientID]
		if set == nil {
			set = make(map[string]struct{})
			g.areas[clientID] = set
		}
		if _, seen := set[area]; !seen {
			if len(set) >= MaxAreasPerClient {
				return ErrAreaCardinality
			}
			set[area] = struct{}{}
		}
	}

	return nil
}
