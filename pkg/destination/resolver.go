// Package destination maps a client's collector company and a main waste
// type to the canonical destination bucket (recycling, landfill, ...).
// Destination is enrichment for aggregation keys, not structural data:
// every lookup failure degrades to Unspecified and never blocks the
// aggregation pipeline.
package destination

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/ecotrack-io/wastetrack/pkg/event"
	"github.com/ecotrack-io/wastetrack/pkg/logging"
	"github.com/ecotrack-io/wastetrack/pkg/store"
)

// Unspecified is the sentinel destination when the company, its
// configuration, or the type's mapping is absent.
const Unspecified = "Unspecified"

// Resolver resolves destinations from collector-company configuration.
type Resolver struct {
	configs store.ConfigStore
}

// NewResolver creates a resolver backed by the given config store.
func NewResolver(configs store.ConfigStore) *Resolver {
	return &Resolver{configs: configs}
}

// Resolve returns the first configured destination for the event's main
// waste type, or Unspecified when any link in the chain is missing.
func (r *Resolver) Resolve(ctx context.Context, clientID, collectorCompanyRef, wasteType string) string {
	if collectorCompanyRef == "" {
		return Unspecified
	}

	cfg, err := r.configs.GetCompany(ctx, collectorCompanyRef)
	if err != nil {
		// Lookup failure must not block aggregation; log and degrade.
		logging.Logger().WithFields(logrus.Fields{
			"client_id":  clientID,
			"company_id": collectorCompanyRef,
		}).WithError(err).Debug("destination lookup failed, using Unspecified")
		return Unspecified
	}
	if cfg == nil || len(cfg.Destinations) == 0 {
		return Unspecified
	}

	mainType := event.CollapseWasteType(wasteType)
	destinations := cfg.Destinations[mainType]
	if len(destinations) == 0 || destinations[0] == "" {
		return Unspecified
	}
	return destinations[0]
}
