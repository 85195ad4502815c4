package domain

import "time"

// ============================================================
// Webhooks & domain events
// ============================================================

// Event names carried in WebhookEvent.Event.
const (
	EventDealCreated     = "deal.created"
	EventDealUpdated     = "deal.updated"
	EventDealWon         = "deal.won"
	EventDealHealthAlert = "deal.health_alert"
	EventDealDeleted     = "deal.deleted"
)

// Alert levels for EventDealHealthAlert.
const (
	AlertCritical = "critical"
	AlertWarning  = "warning"
)

// WebhookRequest is the signed body accepted by the inbound automation hooks.
type WebhookRequest struct {
	TenantID string `json:"tenant_id"`
	DealID   string `json:"deal_id"`
}

// WebhookContact is the customer contact attached to deal.won payloads.
type WebhookContact struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// WebhookEvent is the payload returned by the webhook endpoints and
// published on the events channel.
type WebhookEvent struct {
	Event     string    `json:"event"`
	Deal      *Deal     `json:"deal,omitempty"`
	DealID    string    `json:"deal_id,omitempty"`
	TenantID  string    `json:"tenant_id"`
	Timestamp time.Time `json:"timestamp"`

	// deal.won
	Value   *Money          `json:"value,omitempty"`
	Company string          `json:"company,omitempty"`
	Contact *WebhookContact `json:"contact,omitempty"`

	// deal.health_alert
	HealthScore        *int     `json:"health_score,omitempty"`
	AlertLevel         string   `json:"alert_level,omitempty"`
	RecommendedActions []string `json:"recommended_actions,omitempty"`
}

// WebhookTestResponse is returned by GET /v1/webhooks/test.
type WebhookTestResponse struct {
	Status            string   `json:"status"`
	Message           string   `json:"message"`
	AvailableWebhooks []string `json:"available_webhooks"`
}
