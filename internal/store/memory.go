package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"fretecalc/internal/model"
)

// Memory is a simple in-memory store used when no DATABASE_URL is set.
type Memory struct {
	mu      sync.Mutex
	fleet   map[string][]model.VehicleClass           // team -> fleet
	params  map[string]model.Params                   // team -> tunables
	origins map[string][]model.SavedOrigin            // team -> depots
	prefs   map[string]map[string][]model.PreferenceRecord // team -> key -> log
	geo     map[string]map[string]model.Coordinates   // team -> query -> coords
	subs    map[string][]Subscription                 // team -> subscriptions
	// Webhook queue state
	deliveries map[string]*memDelivery // id -> delivery state
}

func NewMemory() *Memory {
	return &Memory{
		fleet:      map[string][]model.VehicleClass{},
		params:     map[string]model.Params{},
		origins:    map[string][]model.SavedOrigin{},
		prefs:      map[string]map[string][]model.PreferenceRecord{},
		geo:        map[string]map[string]model.Coordinates{},
		subs:       map[string][]Subscription{},
		deliveries: map[string]*memDelivery{},
	}
}

// memDelivery augments WebhookDelivery with scheduling state
type memDelivery struct {
	WebhookDelivery
	NextAttemptAt time.Time
	LastError     string
	ResponseCode  int
	LatencyMs     int
}

func (m *Memory) GetFleet(ctx context.Context, teamID string) ([]model.VehicleClass, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fleet, ok := m.fleet[teamID]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]model.VehicleClass(nil), fleet...), nil
}

func (m *Memory) SaveFleet(ctx context.Context, teamID string, fleet []model.VehicleClass) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fleet[teamID] = append([]model.VehicleClass(nil), fleet...)
	return nil
}

func (m *Memory) GetParams(ctx context.Context, teamID string) (model.Params, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.params[teamID]
	if !ok {
		return model.Params{}, ErrNotFound
	}
	return p, nil
}

func (m *Memory) SaveParams(ctx context.Context, teamID string, params model.Params) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.params[teamID] = params
	return nil
}

func (m *Memory) ListOrigins(ctx context.Context, teamID string) ([]model.SavedOrigin, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.SavedOrigin(nil), m.origins[teamID]...), nil
}

func (m *Memory) AddOrigin(ctx context.Context, teamID, name string, c model.Coordinates) (model.SavedOrigin, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o := model.SavedOrigin{ID: uuid.New().String(), Name: name, Coordinates: c}
	m.origins[teamID] = append(m.origins[teamID], o)
	return o, nil
}

func (m *Memory) DeleteOrigin(ctx context.Context, teamID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.origins[teamID]
	for i, o := range list {
		if o.ID == id {
			m.origins[teamID] = append(list[:i], list[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (m *Memory) AppendPreference(ctx context.Context, teamID, key string, rec model.PreferenceRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.prefs[teamID] == nil {
		m.prefs[teamID] = map[string][]model.PreferenceRecord{}
	}
	m.prefs[teamID][key] = append(m.prefs[teamID][key], rec)
	return nil
}

func (m *Memory) ListPreferences(ctx context.Context, teamID string) (map[string][]model.PreferenceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string][]model.PreferenceRecord{}
	for k, recs := range m.prefs[teamID] {
		out[k] = append([]model.PreferenceRecord(nil), recs...)
	}
	return out, nil
}

func (m *Memory) MergeGeoCache(ctx context.Context, teamID string, entries map[string]model.Coordinates) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.geo[teamID] == nil {
		m.geo[teamID] = map[string]model.Coordinates{}
	}
	for k, v := range entries {
		m.geo[teamID][k] = v
	}
	return nil
}

func (m *Memory) GetGeoCache(ctx context.Context, teamID string) (map[string]model.Coordinates, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]model.Coordinates{}
	for k, v := range m.geo[teamID] {
		out[k] = v
	}
	return out, nil
}

func (m *Memory) CreateSubscription(ctx context.Context, teamID, url string, events []string, secret string) (Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := Subscription{ID: uuid.New().String(), TeamID: teamID, URL: url, Events: events, Secret: secret}
	m.subs[teamID] = append(m.subs[teamID], s)
	return s, nil
}

func (m *Memory) ListSubscriptions(ctx context.Context, teamID string) ([]Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Subscription(nil), m.subs[teamID]...), nil
}

func (m *Memory) DeleteSubscription(ctx context.Context, teamID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.subs[teamID]
	for i, s := range list {
		if s.ID == id {
			m.subs[teamID] = append(list[:i], list[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (m *Memory) SubscriptionsForEvent(ctx context.Context, teamID, eventType string) ([]Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Subscription{}
	for _, s := range m.subs[teamID] {
		for _, e := range s.Events {
			if e == eventType {
				out = append(out, s)
				break
			}
		}
	}
	return out, nil
}

func (m *Memory) EnqueueWebhook(ctx context.Context, teamID, subscriptionID, eventType, url, secret string, payload []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New().String()
	m.deliveries[id] = &memDelivery{
		WebhookDelivery: WebhookDelivery{ID: id, TeamID: teamID, SubscriptionID: subscriptionID, EventType: eventType, URL: url, Secret: secret, Payload: payload, Status: "pending"},
		NextAttemptAt:   time.Now(),
	}
	return id, nil
}

func (m *Memory) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	out := []WebhookDelivery{}
	for _, d := range m.deliveries {
		if len(out) >= limit {
			break
		}
		if (d.Status == "pending" || d.Status == "retry") && !d.NextAttemptAt.After(now) {
			out = append(out, d.WebhookDelivery)
		}
	}
	return out, nil
}

func (m *Memory) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode, latencyMs int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.deliveries[id]
	if !ok {
		return ErrNotFound
	}
	d.ResponseCode = responseCode
	d.LatencyMs = latencyMs
	if success {
		d.Status = "delivered"
		return nil
	}
	d.Attempts++
	d.Status = "retry"
	d.LastError = lastError
	if nextAttemptAt != nil {
		d.NextAttemptAt = *nextAttemptAt
	}
	return nil
}

func (m *Memory) FailWebhookDelivery(ctx context.Context, id, lastError string, responseCode, latencyMs int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.deliveries[id]
	if !ok {
		return ErrNotFound
	}
	d.Status = "failed"
	d.LastError = lastError
	d.ResponseCode = responseCode
	d.LatencyMs = latencyMs
	return nil
}
