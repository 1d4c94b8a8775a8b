package store

import (
	"context"
	"errors"
	"time"

	"fretecalc/internal/model"
)

// Store is the durable persistence interface, keyed by team. Sessions are
// in-memory; everything a team accumulates over time (fleet configuration,
// planning tunables, saved depots, the preference log, the geo cache, and
// webhook state) goes through here.
type Store interface {
	// Fleet configuration
	GetFleet(ctx context.Context, teamID string) ([]model.VehicleClass, error)
	SaveFleet(ctx context.Context, teamID string, fleet []model.VehicleClass) error

	// Planning tunables
	GetParams(ctx context.Context, teamID string) (model.Params, error)
	SaveParams(ctx context.Context, teamID string, params model.Params) error

	// Saved depots
	ListOrigins(ctx context.Context, teamID string) ([]model.SavedOrigin, error)
	AddOrigin(ctx context.Context, teamID, name string, c model.Coordinates) (model.SavedOrigin, error)
	DeleteOrigin(ctx context.Context, teamID, id string) error

	// Preference log (append-only)
	AppendPreference(ctx context.Context, teamID, key string, rec model.PreferenceRecord) error
	ListPreferences(ctx context.Context, teamID string) (map[string][]model.PreferenceRecord, error)

	// Geo cache (append/overwrite, no domain-level TTL)
	MergeGeoCache(ctx context.Context, teamID string, entries map[string]model.Coordinates) error
	GetGeoCache(ctx context.Context, teamID string) (map[string]model.Coordinates, error)

	// Webhook subscriptions
	CreateSubscription(ctx context.Context, teamID, url string, events []string, secret string) (Subscription, error)
	ListSubscriptions(ctx context.Context, teamID string) ([]Subscription, error)
	DeleteSubscription(ctx context.Context, teamID, id string) error
	SubscriptionsForEvent(ctx context.Context, teamID, eventType string) ([]Subscription, error)

	// Webhook delivery queue
	EnqueueWebhook(ctx context.Context, teamID, subscriptionID, eventType, url, secret string, payload []byte) (string, error)
	FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error)
	MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode, latencyMs int) error
	FailWebhookDelivery(ctx context.Context, id, lastError string, responseCode, latencyMs int) error
}

var ErrNotFound = errors.New("not found")
