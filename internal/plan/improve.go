package plan

import (
	"fretecalc/internal/geo"
	"fretecalc/internal/model"
)

// improveStops applies a bounded 2-opt pass to a stop sequence, with the
// depot as the fixed starting point. Stops without coordinates keep the
// sequence untouched.
func improveStops(origin model.Coordinates, stops []*model.Order, iterations int) []*model.Order {
	if len(stops) < 3 {
		return stops
	}
	for _, s := range stops {
		if !s.Located() {
			return stops
		}
	}
	if iterations <= 0 {
		iterations = 1
	}
	best := append([]*model.Order(nil), stops...)
	bestDist := stopPathKm(origin, best)
	n := len(best)
	for it := 0; it < iterations; it++ {
		improved := false
		for i := 0; i < n-2; i++ {
			for k := i + 1; k < n-1; k++ {
				cand := twoOptSwap(best, i, k)
				if d := stopPathKm(origin, cand); d+1e-6 < bestDist {
					best = cand
					bestDist = d
					improved = true
				}
			}
		}
		if !improved {
			break
		}
	}
	return best
}

func twoOptSwap(stops []*model.Order, i, k int) []*model.Order {
	out := make([]*model.Order, len(stops))
	copy(out, stops[:i])
	// reverse i..k
	pos := i
	for j := k; j >= i; j-- {
		out[pos] = stops[j]
		pos++
	}
	copy(out[pos:], stops[k+1:])
	return out
}

func stopPathKm(origin model.Coordinates, stops []*model.Order) float64 {
	total := 0.0
	prev := origin
	for _, s := range stops {
		total += geo.DistanceKm(prev, *s.Coordinates)
		prev = *s.Coordinates
	}
	return total
}
