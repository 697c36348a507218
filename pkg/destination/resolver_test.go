package destination

import (
	"context"
	"testing"

	"github.com/ecotrack-io/wastetrack/pkg/store"
	"github.com/ecotrack-io/wastetrack/pkg/store/memory"
)

func TestResolve(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	if err := s.PutCompany(ctx, &store.CompanyConfig{
		CompanyID: "co1",
		Destinations: map[string][]string{
			"Organic":    {"Compost", "Landfill"},
			"Recyclable": {"Recycling"},
		},
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.PutCompany(ctx, &store.CompanyConfig{CompanyID: "co2"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	r := NewResolver(s)

	tests := []struct {
		name      string
		company   string
		wasteType string
		want      string
	}{
		{"first entry wins", "co1", "Organic", "Compost"},
		{"free-form type collapses before lookup", "co1", "Recyclable (Paper)", "Recycling"},
		{"unmapped type", "co1", "Hazardous", Unspecified},
		{"no company ref", "", "Organic", Unspecified},
		{"unknown company", "ghost", "Organic", Unspecified},
		{"company without destinations", "co2", "Organic", Unspecified},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.Resolve(ctx, "c1", tt.company, tt.wasteType)
			if got != tt.want {
				t.Errorf("Resolve() = %q, want %q", got, tt.want)
			}
		})
	}
}
