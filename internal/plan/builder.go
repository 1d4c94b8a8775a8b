package plan

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"fretecalc/internal/geo"
	"fretecalc/internal/metrics"
	"fretecalc/internal/model"
)

// Progress receives a completion percentage during long runs.
type Progress func(pct int)

// Result is a plan: trips plus the orders that could not be routed.
type Result struct {
	Trips   []*model.Trip        `json:"trips"`
	Backlog []model.BacklogEntry `json:"backlog"`
}

// Builder turns a flat order list into a Result. Kept as an interface so
// alternative clustering strategies can replace the greedy one without
// touching the mutation engine.
type Builder interface {
	Build(ctx context.Context, origin model.Origin, orders []*model.Order, pool *FleetPool, prefs *PreferenceMemory, params model.Params, progress Progress) (*Result, error)
}

// progressEvery bounds how often the build loop reports and checks for
// cancellation.
const progressEvery = 50

// GreedyBuilder is the production heuristic: consolidate farthest orders
// first, greedily appending to the newest trip while orders stay within
// the compactness radius of that trip's first stop, then fill each new
// trip by nearest neighbor from its last stop. It is deliberately not an
// exact VRP solver.
type GreedyBuilder struct{}

type candidate struct {
	order   *model.Order
	distKm  float64 // from origin
	visited bool
}

func (GreedyBuilder) Build(ctx context.Context, origin model.Origin, orders []*model.Order, pool *FleetPool, prefs *PreferenceMemory, params model.Params, progress Progress) (*Result, error) {
	params = params.WithDefaults()
	res := &Result{Trips: []*model.Trip{}, Backlog: []model.BacklogEntry{}}

	cands := make([]*candidate, 0, len(orders))
	for _, o := range orders {
		if !o.Located() {
			res.Backlog = append(res.Backlog, model.BacklogEntry{Order: o, Reason: model.ReasonUnlocated})
			metrics.BacklogOrders.WithLabelValues(model.ReasonUnlocated).Inc()
			continue
		}
		cands = append(cands, &candidate{order: o, distKm: geo.DistanceKm(origin.Coordinates, *o.Coordinates)})
	}

	// Farthest first: remote single deliveries are the hardest to combine
	// later, so they seed trips before nearby leftovers fill them.
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].distKm > cands[j].distKm })

	total := len(cands)
	for i, c := range cands {
		if i%progressEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if progress != nil && total > 0 {
				progress(i * 100 / total)
			}
		}
		if c.visited {
			continue
		}
		p := c.order

		// Fast path: tail-append to the newest trip when capacity, stop
		// slots, and the radius from that trip's first stop all allow it.
		if n := len(res.Trips); n > 0 {
			last := res.Trips[n-1]
			v := last.Vehicle
			first := last.Stops[0]
			if last.TotalWeightKg+p.WeightKg <= v.CapacityKg && len(last.Stops) < v.MaxStops &&
				geo.DistanceKm(*first.Coordinates, *p.Coordinates) < params.RadiusKm {
				last.Stops = append(last.Stops, p)
				last.TotalWeightKg += p.WeightKg
				last.OccupancyPct = last.TotalWeightKg / v.CapacityKg * 100
				c.visited = true
				continue
			}
		}

		// Pick a vehicle class: fit score plus a decisive bonus when the
		// preference memory names the class for this client/destination.
		// First class reaching the max wins ties.
		bestIdx := -1
		bestScore := 0.0
		for vi, v := range pool.Classes() {
			if v.Available <= 0 || p.WeightKg > v.CapacityKg {
				continue
			}
			score := p.WeightKg / v.CapacityKg * 100
			if prefs != nil && prefs.Consult(origin.Coordinates, p) == v.Type {
				score += 500
			}
			if bestIdx == -1 || score > bestScore {
				bestIdx = vi
				bestScore = score
			}
		}
		if bestIdx == -1 {
			res.Backlog = append(res.Backlog, model.BacklogEntry{Order: p, Reason: model.ReasonNoVehicle})
			metrics.BacklogOrders.WithLabelValues(model.ReasonNoVehicle).Inc()
			continue
		}

		vehicle := pool.Take(bestIdx)
		c.visited = true
		trip := &model.Trip{
			ID:            uuid.New().String(),
			Vehicle:       vehicle,
			Origin:        origin,
			Stops:         []*model.Order{p},
			TotalWeightKg: p.WeightKg,
		}

		// Radial nearest-neighbor fill: nearest to the current last stop,
		// admitted only within the radius of the trip's FIRST stop. The
		// first-stop anchor is intentional; see Builder.
		for {
			var next *candidate
			minDist := 0.0
			lastStop := trip.Stops[len(trip.Stops)-1]
			anchor := trip.Stops[0]
			for _, cand := range cands {
				if cand.visited || trip.TotalWeightKg+cand.order.WeightKg > trip.Vehicle.CapacityKg ||
					len(trip.Stops) >= trip.Vehicle.MaxStops {
					continue
				}
				if geo.DistanceKm(*anchor.Coordinates, *cand.order.Coordinates) >= params.RadiusKm {
					continue
				}
				d := geo.DistanceKm(*lastStop.Coordinates, *cand.order.Coordinates)
				if next == nil || d < minDist {
					next = cand
					minDist = d
				}
			}
			if next == nil {
				break
			}
			trip.Stops = append(trip.Stops, next.order)
			trip.TotalWeightKg += next.order.WeightKg
			next.visited = true
		}

		trip.OccupancyPct = trip.TotalWeightKg / trip.Vehicle.CapacityKg * 100
		res.Trips = append(res.Trips, trip)
		metrics.TripsBuilt.Inc()
	}

	if progress != nil {
		progress(100)
	}
	return res, nil
}

var _ Builder = GreedyBuilder{}
