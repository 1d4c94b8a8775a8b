// Package plan holds the consolidation heuristic, the cost and vehicle-fit
// models, and the incremental mutation engine.
package plan

import (
	"strconv"
	"sync"
	"time"

	"fretecalc/internal/model"
)

// PreferenceMemory is the append-only log of vehicle-type choices per
// (origin, client, city). The most recent record fully decides; there is
// no expiry or confidence weighting.
type PreferenceMemory struct {
	mu      sync.Mutex
	records map[string][]model.PreferenceRecord
}

func NewPreferenceMemory() *PreferenceMemory {
	return &PreferenceMemory{records: map[string][]model.PreferenceRecord{}}
}

// PreferenceKey builds the log key. Full float formatting keeps keys
// stable across save/load round trips.
func PreferenceKey(origin model.Coordinates, client, city string) string {
	return strconv.FormatFloat(origin.Lat, 'f', -1, 64) + "," +
		strconv.FormatFloat(origin.Lon, 'f', -1, 64) + "|" + client + "|" + city
}

// Learn appends a timestamped record. A zero origin cannot key the log and
// is ignored.
func (m *PreferenceMemory) Learn(origin model.Coordinates, order *model.Order, vehicleType, reason string) {
	if origin == (model.Coordinates{}) {
		return
	}
	k := PreferenceKey(origin, order.Client, order.City)
	m.mu.Lock()
	m.records[k] = append(m.records[k], model.PreferenceRecord{VehicleType: vehicleType, Reason: reason, At: time.Now().UTC()})
	m.mu.Unlock()
}

// Consult returns the most recently learned vehicle type for the order's
// key, or "" when nothing was learned or the origin has no coordinates.
func (m *PreferenceMemory) Consult(origin model.Coordinates, order *model.Order) string {
	if origin == (model.Coordinates{}) {
		return ""
	}
	k := PreferenceKey(origin, order.Client, order.City)
	m.mu.Lock()
	defer m.mu.Unlock()
	recs := m.records[k]
	if len(recs) == 0 {
		return ""
	}
	return recs[len(recs)-1].VehicleType
}

// Seed preloads records, typically from the team's durable store.
func (m *PreferenceMemory) Seed(records map[string][]model.PreferenceRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, recs := range records {
		m.records[k] = append(m.records[k], recs...)
	}
}

// Snapshot returns a copy of the log for persistence.
func (m *PreferenceMemory) Snapshot() map[string][]model.PreferenceRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string][]model.PreferenceRecord, len(m.records))
	for k, recs := range m.records {
		out[k] = append([]model.PreferenceRecord(nil), recs...)
	}
	return out
}
