package plan

import (
	"testing"

	"fretecalc/internal/model"
)

func TestIdealForPicksSmallestFitting(t *testing.T) {
	pool := NewFleetPool(testFleet())
	cases := []struct {
		weight float64
		want   string
	}{
		{100, "Van"},
		{1800, "Van"},
		{1801, "3/4"},
		{4000, "3/4"},
		{13000, "Truck"},
		{49000, "Rodotrem"},
	}
	for _, c := range cases {
		got, ok := pool.IdealFor(c.weight)
		if !ok || got.Type != c.want {
			t.Fatalf("IdealFor(%f) = %s ok=%v, want %s", c.weight, got.Type, ok, c.want)
		}
	}
}

func TestIdealForOverweightFallsBackToLargest(t *testing.T) {
	pool := NewFleetPool(testFleet())
	got, ok := pool.IdealFor(60000)
	if !ok || got.Type != "Rodotrem" {
		t.Fatalf("got %s ok=%v, want largest class", got.Type, ok)
	}
}

func TestIdealForSkipsUnavailable(t *testing.T) {
	fleet := testFleet()
	fleet[0].Available = 0 // Van
	pool := NewFleetPool(fleet)
	got, ok := pool.IdealFor(100)
	if !ok || got.Type != "3/4" {
		t.Fatalf("got %s ok=%v, want 3/4", got.Type, ok)
	}
}

func TestIdealForEmptyPool(t *testing.T) {
	pool := NewFleetPool([]model.VehicleClass{{Type: "Van", CapacityKg: 1800, Available: 0}})
	if _, ok := pool.IdealFor(100); ok {
		t.Fatal("expected ok=false with no availability")
	}
}

func TestIdealForMonotonic(t *testing.T) {
	pool := NewFleetPool(testFleet())
	prev := 0.0
	for w := 100.0; w <= 55000; w += 500 {
		got, ok := pool.IdealFor(w)
		if !ok {
			t.Fatalf("IdealFor(%f): no vehicle", w)
		}
		if got.CapacityKg < prev {
			t.Fatalf("capacity decreased at weight %f: %f < %f", w, got.CapacityKg, prev)
		}
		prev = got.CapacityKg
	}
}

func TestTakeDecrements(t *testing.T) {
	pool := NewFleetPool(testFleet())
	before := pool.Classes()[0].Available
	v := pool.Take(0)
	if v.Available != before-1 {
		t.Fatalf("Take snapshot: got %d, want %d", v.Available, before-1)
	}
	if pool.Classes()[0].Available != before-1 {
		t.Fatalf("pool state: got %d, want %d", pool.Classes()[0].Available, before-1)
	}
}

func TestNewFleetPoolCopies(t *testing.T) {
	fleet := testFleet()
	pool := NewFleetPool(fleet)
	pool.Take(0)
	if fleet[0].Available != 5 {
		t.Fatalf("pool mutated the source fleet: %d", fleet[0].Available)
	}
}
