package routing

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"fretecalc/internal/model"
)

func TestClientTrip(t *testing.T) {
	var gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"trips":[{"distance":84215.3,"geometry":{"type":"LineString","coordinates":[]}}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	waypoints := []model.Coordinates{
		{Lat: -23.5505, Lon: -46.6333},
		{Lat: -22.9099, Lon: -47.0626},
	}
	got, err := c.Trip(context.Background(), waypoints)
	if err != nil {
		t.Fatalf("trip: %v", err)
	}
	if got.DistanceKm != 84.2153 {
		t.Fatalf("distance: %f", got.DistanceKm)
	}
	if len(got.Geometry) == 0 {
		t.Fatal("missing geometry")
	}
	// lon,lat pair order, first waypoint first
	if !strings.HasPrefix(gotPath, "/trip/v1/driving/-46.633300,-23.550500;") {
		t.Fatalf("path: %q", gotPath)
	}
	for _, param := range []string{"source=first", "roundtrip=false", "overview=full", "geometries=geojson"} {
		if !strings.Contains(gotQuery, param) {
			t.Fatalf("query %q missing %q", gotQuery, param)
		}
	}
}

func TestClientTripEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"trips":[]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	_, err := c.Trip(context.Background(), []model.Coordinates{{Lat: 1}, {Lat: 2}})
	if !errors.Is(err, ErrNoRoute) {
		t.Fatalf("got %v, want ErrNoRoute", err)
	}
}

func TestClientTripTooFewWaypoints(t *testing.T) {
	c := NewClient("http://unused.test")
	if _, err := c.Trip(context.Background(), []model.Coordinates{{Lat: 1}}); !errors.Is(err, ErrNoRoute) {
		t.Fatalf("got %v, want ErrNoRoute", err)
	}
}

func TestClientTripServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	if _, err := c.Trip(context.Background(), []model.Coordinates{{Lat: 1}, {Lat: 2}}); err == nil {
		t.Fatal("expected error on 500")
	}
}
