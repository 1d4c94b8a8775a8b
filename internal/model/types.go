package model

import (
	"encoding/json"
	"time"
)

// Core domain types for freight consolidation planning.

// Coordinates is a WGS84 point.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Order is one geocoded delivery. Identity fields are immutable after
// ingestion; Coordinates is set once by the geocoding resolver.
type Order struct {
	ID           string       `json:"id"`
	Client       string       `json:"client"`
	City         string       `json:"city"`
	Region       string       `json:"region,omitempty"`
	Neighborhood string       `json:"neighborhood,omitempty"`
	Address      string       `json:"address,omitempty"`
	WeightKg     float64      `json:"weightKg"`
	Status       string       `json:"status,omitempty"`
	Scheduled    bool         `json:"scheduled,omitempty"`
	Coordinates  *Coordinates `json:"coordinates"`
}

// Located reports whether the order has been geocoded.
func (o *Order) Located() bool { return o != nil && o.Coordinates != nil }

// VehicleClass describes one class of the fleet. Available is the mutable
// session pool; vehicles are single-use and never return to the pool.
type VehicleClass struct {
	Type       string  `json:"type" yaml:"type"`
	CapacityKg float64 `json:"capacityKg" yaml:"capacityKg"`
	Available  int     `json:"available" yaml:"available"`
	MaxStops   int     `json:"maxStops" yaml:"maxStops"`
	KmPerLiter float64 `json:"kmPerLiter" yaml:"kmPerLiter"`
	Axles      int     `json:"axles" yaml:"axles"`
	FixedCost  float64 `json:"fixedCost" yaml:"fixedCost"`
}

// Origin is the depot every trip starts from.
type Origin struct {
	Name        string      `json:"name,omitempty"`
	Coordinates Coordinates `json:"coordinates"`
}

// Trip is one vehicle's planned stop sequence.
type Trip struct {
	ID            string       `json:"id"`
	Vehicle       VehicleClass `json:"vehicle"` // snapshot at assignment time
	Origin        Origin       `json:"origin"`
	Stops         []*Order     `json:"stops"`
	TotalWeightKg float64      `json:"totalWeightKg"`
	OccupancyPct  float64      `json:"occupancyPct"`
	Route         *RouteResult `json:"route,omitempty"`
}

// Backlog reason codes.
const (
	ReasonUnlocated = "unlocated"
	ReasonNoVehicle = "no compatible vehicle"
	ReasonRemoved   = "manually removed"
)

// BacklogEntry is an order not assigned to any trip.
type BacklogEntry struct {
	Order  *Order `json:"order"`
	Reason string `json:"reason"`
}

// RouteResult carries the externally computed route and the derived costs.
// Owned by its trip; recomputed wholesale on any stop-set change.
type RouteResult struct {
	Geometry   json.RawMessage `json:"geometry,omitempty"`
	DistanceKm float64         `json:"distanceKm"`
	CostTotal  float64         `json:"costTotal"`
	DieselCost float64         `json:"dieselCost"`
	Liters     float64         `json:"liters"`
	TravelTime string          `json:"travelTime,omitempty"`
}

// PreferenceRecord is one learned vehicle-type observation for a
// (origin, client, city) key. The log is append-only; latest wins.
type PreferenceRecord struct {
	VehicleType string    `json:"vehicleType"`
	Reason      string    `json:"reason,omitempty"`
	At          time.Time `json:"at"`
}

// SavedOrigin is a named depot stored per team.
type SavedOrigin struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Coordinates Coordinates `json:"coordinates"`
}

// Params are the planning tunables.
type Params struct {
	RadiusKm    float64 `json:"radiusKm" yaml:"radiusKm"`
	DieselPrice float64 `json:"dieselPrice" yaml:"dieselPrice"`
	RoundTrip   bool    `json:"roundtrip" yaml:"roundtrip"`
}

// Defaults mirror the stock configuration shipped with the app.
const (
	DefaultRadiusKm    = 150.0
	DefaultDieselPrice = 6.0
)

// WithDefaults fills zero-valued tunables.
func (p Params) WithDefaults() Params {
	if p.RadiusKm <= 0 {
		p.RadiusKm = DefaultRadiusKm
	}
	if p.DieselPrice <= 0 {
		p.DieselPrice = DefaultDieselPrice
	}
	return p
}
