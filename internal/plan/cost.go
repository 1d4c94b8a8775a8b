package plan

import (
	"context"
	"fmt"
	"math"

	"fretecalc/internal/model"
	"fretecalc/internal/routing"
)

// tollFactor converts km*axles into a per-distance operating charge.
const tollFactor = 1.15

// fallbackKmPerLiter covers vehicle classes configured without consumption.
const fallbackKmPerLiter = 4.0

// Estimator turns a trip into a costed RouteResult via the external
// routing collaborator.
type Estimator struct {
	Router routing.Router
}

// EstimateRoute asks the router for depot→stops (→depot when round-trip)
// and derives operating cost from the returned distance. Any routing
// failure degrades to a zeroed result instead of an error: display shows
// "0", the workflow never blocks on the routing API.
func (e *Estimator) EstimateRoute(ctx context.Context, trip *model.Trip, params model.Params) *model.RouteResult {
	params = params.WithDefaults()
	waypoints := make([]model.Coordinates, 0, len(trip.Stops)+2)
	waypoints = append(waypoints, trip.Origin.Coordinates)
	for _, s := range trip.Stops {
		if s.Located() {
			waypoints = append(waypoints, *s.Coordinates)
		}
	}
	if params.RoundTrip {
		waypoints = append(waypoints, trip.Origin.Coordinates)
	}

	if e.Router == nil {
		return &model.RouteResult{}
	}
	rt, err := e.Router.Trip(ctx, waypoints)
	if err != nil {
		return &model.RouteResult{}
	}
	return e.cost(trip.Vehicle, rt, params)
}

func (e *Estimator) cost(v model.VehicleClass, rt routing.TripResult, params model.Params) *model.RouteResult {
	kmPerLiter := v.KmPerLiter
	if kmPerLiter <= 0 {
		kmPerLiter = fallbackKmPerLiter
	}
	liters := rt.DistanceKm / kmPerLiter
	diesel := liters * params.DieselPrice
	perKm := rt.DistanceKm * float64(v.Axles) * tollFactor
	return &model.RouteResult{
		Geometry:   rt.Geometry,
		DistanceKm: rt.DistanceKm,
		DieselCost: diesel,
		Liters:     liters,
		CostTotal:  perKm + v.FixedCost + diesel,
		TravelTime: travelTime(rt.DistanceKm),
	}
}

// travelTime formats an estimate assuming 60 km/h average speed.
func travelTime(distKm float64) string {
	return fmt.Sprintf("%dh %dm", int(distKm/60), int(math.Mod(distKm, 60)))
}
