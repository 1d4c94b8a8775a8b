package plan

import (
	"testing"

	"fretecalc/internal/model"
)

func TestImproveStopsShortSequencesUntouched(t *testing.T) {
	origin := model.Coordinates{}
	stops := []*model.Order{
		{ID: "a", Coordinates: coord(1, 0)},
		{ID: "b", Coordinates: coord(2, 0)},
	}
	got := improveStops(origin, stops, 10)
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "b" {
		t.Fatalf("short sequence changed: %v", got)
	}
}

func TestImproveStopsUnlocatedUntouched(t *testing.T) {
	origin := model.Coordinates{}
	stops := []*model.Order{
		{ID: "a", Coordinates: coord(3, 0)},
		{ID: "b"},
		{ID: "c", Coordinates: coord(1, 0)},
	}
	got := improveStops(origin, stops, 10)
	for i, s := range stops {
		if got[i].ID != s.ID {
			t.Fatalf("sequence with unlocated stop changed at %d", i)
		}
	}
}

func TestImproveStopsNeverWorsens(t *testing.T) {
	origin := model.Coordinates{}
	stops := []*model.Order{
		{ID: "a", Coordinates: coord(1, 1)},
		{ID: "b", Coordinates: coord(0.5, 2)},
		{ID: "c", Coordinates: coord(2, 0.5)},
		{ID: "d", Coordinates: coord(1.5, 1.5)},
		{ID: "e", Coordinates: coord(0.2, 0.9)},
	}
	before := stopPathKm(origin, stops)
	got := improveStops(origin, stops, 10)
	after := stopPathKm(origin, got)
	if after > before {
		t.Fatalf("2-opt worsened the path: %f > %f", after, before)
	}
	if len(got) != len(stops) {
		t.Fatalf("stop count changed: %d", len(got))
	}
}

func TestTwoOptSwapReversesSegment(t *testing.T) {
	stops := []*model.Order{{ID: "a"}, {ID: "b"}, {ID: "c"}, {ID: "d"}}
	got := twoOptSwap(stops, 1, 2)
	want := []string{"a", "c", "b", "d"}
	for i, id := range want {
		if got[i].ID != id {
			t.Fatalf("position %d: got %s want %s", i, got[i].ID, id)
		}
	}
}
