package plan

import (
	"context"
	"errors"

	"fretecalc/internal/metrics"
	"fretecalc/internal/model"
)

var (
	// ErrInvalidTarget reports a user-specified trip index or id that does
	// not exist; the result is left untouched.
	ErrInvalidTarget = errors.New("invalid trip target")
	// ErrOrderNotFound reports an order id absent from the addressed
	// container.
	ErrOrderNotFound = errors.New("order not found")
)

// Engine applies manual edits to a Result without a full rebuild. It
// assumes exclusive access to the result (one writer per session);
// concurrency control lives at the session boundary.
type Engine struct {
	Pool      *FleetPool
	Prefs     *PreferenceMemory
	Estimator *Estimator
	Params    model.Params
}

func (e *Engine) tripByID(res *Result, tripID string) (int, *model.Trip) {
	for i, t := range res.Trips {
		if t.ID == tripID {
			return i, t
		}
	}
	return -1, nil
}

// RemoveStop detaches an order from a trip into the backlog, right-sizes
// the vehicle for the lighter load, and re-estimates the route. A trip
// left with no stops is deleted outright.
func (e *Engine) RemoveStop(ctx context.Context, res *Result, tripID, orderID string) error {
	ti, trip := e.tripByID(res, tripID)
	if trip == nil {
		return ErrInvalidTarget
	}
	si := -1
	for i, s := range trip.Stops {
		if s.ID == orderID {
			si = i
			break
		}
	}
	if si == -1 {
		return ErrOrderNotFound
	}
	order := trip.Stops[si]
	trip.Stops = append(trip.Stops[:si], trip.Stops[si+1:]...)
	trip.TotalWeightKg -= order.WeightKg
	res.Backlog = append(res.Backlog, model.BacklogEntry{Order: order, Reason: model.ReasonRemoved})
	metrics.BacklogOrders.WithLabelValues(model.ReasonRemoved).Inc()

	if len(trip.Stops) == 0 {
		res.Trips = append(res.Trips[:ti], res.Trips[ti+1:]...)
		return nil
	}
	e.autoResize(trip)
	e.reestimate(ctx, trip)
	return nil
}

// ReorderStops moves the stop at from to position to. Weight and vehicle
// are unchanged; only the route needs recomputing.
func (e *Engine) ReorderStops(ctx context.Context, res *Result, tripID string, from, to int) error {
	_, trip := e.tripByID(res, tripID)
	if trip == nil {
		return ErrInvalidTarget
	}
	if from < 0 || from >= len(trip.Stops) || to < 0 || to >= len(trip.Stops) {
		return ErrInvalidTarget
	}
	moved := trip.Stops[from]
	trip.Stops = append(trip.Stops[:from], trip.Stops[from+1:]...)
	trip.Stops = append(trip.Stops[:to], append([]*model.Order{moved}, trip.Stops[to:]...)...)
	e.reestimate(ctx, trip)
	return nil
}

// AssignFromBacklog moves a backlog order into the trip at the given
// 1-based position. Capacity and stop-count limits are deliberately not
// enforced here; over-capacity is surfaced by occupancy, not rejected.
func (e *Engine) AssignFromBacklog(ctx context.Context, res *Result, orderID string, tripNumber int) error {
	if tripNumber < 1 || tripNumber > len(res.Trips) {
		return ErrInvalidTarget
	}
	bi := -1
	for i, b := range res.Backlog {
		if b.Order.ID == orderID {
			bi = i
			break
		}
	}
	if bi == -1 {
		return ErrOrderNotFound
	}
	order := res.Backlog[bi].Order
	res.Backlog = append(res.Backlog[:bi], res.Backlog[bi+1:]...)

	trip := res.Trips[tripNumber-1]
	trip.Stops = append(trip.Stops, order)
	trip.TotalWeightKg += order.WeightKg
	e.autoResize(trip)
	e.reestimate(ctx, trip)
	return nil
}

// OverrideVehicle swaps a trip's vehicle class on user request. When
// learnReason is non-empty the preference memory records the choice for
// every stop currently on the trip.
func (e *Engine) OverrideVehicle(ctx context.Context, res *Result, tripID, vehicleType, learnReason string) error {
	_, trip := e.tripByID(res, tripID)
	if trip == nil {
		return ErrInvalidTarget
	}
	var class *model.VehicleClass
	for _, v := range e.Pool.Classes() {
		if v.Type == vehicleType {
			vv := v
			class = &vv
			break
		}
	}
	if class == nil {
		return ErrInvalidTarget
	}
	if trip.Vehicle.Type == class.Type {
		return nil
	}
	trip.Vehicle = *class
	trip.OccupancyPct = trip.TotalWeightKg / trip.Vehicle.CapacityKg * 100
	e.reestimate(ctx, trip)
	if learnReason != "" && e.Prefs != nil {
		for _, s := range trip.Stops {
			e.Prefs.Learn(trip.Origin.Coordinates, s, vehicleType, learnReason)
		}
	}
	return nil
}

// ImproveStopOrder runs the local 2-opt pass over a trip's stop sequence
// and re-estimates its route.
func (e *Engine) ImproveStopOrder(ctx context.Context, res *Result, tripID string) error {
	_, trip := e.tripByID(res, tripID)
	if trip == nil {
		return ErrInvalidTarget
	}
	trip.Stops = improveStops(trip.Origin.Coordinates, trip.Stops, 10)
	e.reestimate(ctx, trip)
	return nil
}

func (e *Engine) autoResize(trip *model.Trip) {
	if ideal, ok := e.Pool.IdealFor(trip.TotalWeightKg); ok && ideal.Type != trip.Vehicle.Type {
		trip.Vehicle = ideal
	}
	trip.OccupancyPct = trip.TotalWeightKg / trip.Vehicle.CapacityKg * 100
}

// reestimate refreshes the trip's route. Estimation failures surface as a
// zeroed result, never as a mutation error.
func (e *Engine) reestimate(ctx context.Context, trip *model.Trip) {
	if e.Estimator == nil {
		trip.Route = &model.RouteResult{}
		return
	}
	trip.Route = e.Estimator.EstimateRoute(ctx, trip, e.Params)
}
