package plan

import (
	"sort"

	"fretecalc/internal/model"
)

// FleetPool is the session's mutable vehicle availability. Vehicles are
// single-use: Take decrements and nothing ever increments.
type FleetPool struct {
	classes []model.VehicleClass
}

// NewFleetPool copies the configured classes so the session can consume
// availability without touching the team's stored fleet.
func NewFleetPool(classes []model.VehicleClass) *FleetPool {
	cp := make([]model.VehicleClass, len(classes))
	copy(cp, classes)
	return &FleetPool{classes: cp}
}

// Classes exposes the pool in configuration order for scoring.
func (f *FleetPool) Classes() []model.VehicleClass { return f.classes }

// Take decrements availability for the class at index i and returns a
// snapshot of its post-decrement state.
func (f *FleetPool) Take(i int) model.VehicleClass {
	f.classes[i].Available--
	return f.classes[i]
}

// IdealFor returns the right-sized class for the given payload: the
// smallest available class whose capacity fits, else the largest available
// class (over-capacity is flagged downstream, not rejected here). ok is
// false only when no class has availability left.
func (f *FleetPool) IdealFor(totalWeightKg float64) (model.VehicleClass, bool) {
	avail := make([]model.VehicleClass, 0, len(f.classes))
	for _, v := range f.classes {
		if v.Available > 0 {
			avail = append(avail, v)
		}
	}
	if len(avail) == 0 {
		return model.VehicleClass{}, false
	}
	sort.SliceStable(avail, func(i, j int) bool { return avail[i].CapacityKg < avail[j].CapacityKg })
	for _, v := range avail {
		if v.CapacityKg >= totalWeightKg {
			return v, true
		}
	}
	return avail[len(avail)-1], true
}
