package ingest

import (
	"fmt"
	"strings"
	"testing"
)

func TestDimensionGuardBudget(t *testing.T) {
	g := NewDimensionGuard()

	for i := 0; i < MaxWasteTypesPerClient; i++ {
		if err := g.Check("c1", fmt.Sprintf("type-%d", i), "Kitchen"); err != nil {
			t.Fatalf("unexpected error at %d: %v", i, err)
		}
	}

	// Known values still pass after the budget is exhausted.
	if err := g.Check("c1", "type-0", "Kitchen"); err != nil {
		t.Errorf("known value rejected: %v", err)
	}

	if err := g.Check("c1", "one-too-many", "Kitchen"); err != ErrWasteTypeCardinality {
		t.Errorf("got %v, want ErrWasteTypeCardinality", err)
	}

	// Budgets are per tenant.
	if err := g.Check("c2", "one-too-many", "Kitchen"); err != nil {
		t.Errorf("other tenant affected: %v", err)
	}
}

func TestDimensionGuardAreaBudget(t *testing.T) {
	g := NewDimensionGuard()

	for i := 0; i < MaxAreasPerClient; i++ {
		if err := g.Check("c1", "Organic", fmt.Sprintf("area-%d", i)); err != nil {
			t.Fatalf("unexpected error at %d: %v", i, err)
		}
	}
	if err := g.Check("c1", "Organic", "one-too-many"); err != ErrAreaCardinality {
		t.Errorf("got %v, want ErrAreaCardinality", err)
	}
}

func TestDimensionGuardFieldLength(t *testing.T) {
	g := NewDimensionGuard()
	long := strings.Repeat("x", MaxFieldLength+1)

	if err := g.Check("c1", long, "Kitchen"); err != ErrFieldTooLong {
		t.Errorf("got %v, want ErrFieldTooLong", err)
	}
	if err := g.Check("c1", "Organic", long); err != ErrFieldTooLong {
		t.Errorf("got %v, want ErrFieldTooLong", err)
	}
}

func TestDimensionGuardEmptyValues(t *testing.T) {
	g := NewDimensionGuard()
	// Empty dimensions are not reserved; validity is enforced elsewhere.
	if err := g.Check("c1", "", ""); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
