package webhooks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"fretecalc/internal/store"
)

// Event types emitted by the planner.
const (
	EventPlanCompleted = "plan.completed"
	EventTripUpdated   = "trip.updated"
)

type Publisher struct {
	Store store.Store
}

func NewPublisher(s store.Store) *Publisher {
	return &Publisher{Store: s}
}

// Emit enqueues an event for every subscription the team has for this
// event type.
func (p *Publisher) Emit(ctx context.Context, teamID, eventType string, data any) {
	subs, err := p.Store.SubscriptionsForEvent(ctx, teamID, eventType)
	if err != nil || len(subs) == 0 {
		return
	}
	payload := map[string]any{
		"id":     fmt.Sprintf("evt_%d", time.Now().UnixNano()),
		"type":   eventType,
		"teamId": teamID,
		"ts":     time.Now().UTC().Format(time.RFC3339),
		"data":   data,
	}
	body, _ := json.Marshal(payload)
	for _, s := range subs {
		_, _ = p.Store.EnqueueWebhook(ctx, teamID, s.ID, eventType, s.URL, s.Secret, body)
	}
}
