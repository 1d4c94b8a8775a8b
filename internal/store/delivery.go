package store

// Subscription registers a callback URL for plan events on a team.
type Subscription struct {
	ID     string   `json:"id"`
	TeamID string   `json:"teamId"`
	URL    string   `json:"url"`
	Events []string `json:"events"`
	Secret string   `json:"secret,omitempty"`
}

// WebhookDelivery is one queued outbound notification.
type WebhookDelivery struct {
	ID             string
	TeamID         string
	SubscriptionID string
	EventType      string
	URL            string
	Secret         string
	Payload        []byte
	Status         string
	Attempts       int
}
