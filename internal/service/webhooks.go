package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/AnsKM/dealflow-crm/internal/domain"
	"github.com/AnsKM/dealflow-crm/internal/infra/observability"
	"github.com/AnsKM/dealflow-crm/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var webhookTracer = otel.Tracer("service/webhooks")

// SignatureHeader carries the hex HMAC-SHA256 of the raw request body.
const SignatureHeader = "X-Webhook-Signature"

// Scores strictly below criticalHealthBelow raise a critical alert.
const criticalHealthBelow = 30

// HealthAlertActions are attached to every deal.health_alert payload.
var HealthAlertActions = []string{
	"Schedule immediate follow-up call",
	"Review deal status with team",
	"Update deal notes with current situation",
}

// Webhook names as they appear in the URL, mapped to the event they emit.
var webhookEvents = map[string]string{
	"deal-updated": domain.EventDealUpdated,
	"deal-won":     domain.EventDealWon,
	"health-alert": domain.EventDealHealthAlert,
}

// AvailableWebhooks lists the inbound hook paths.
var AvailableWebhooks = []string{
	"/v1/webhooks/deal-updated",
	"/v1/webhooks/deal-won",
	"/v1/webhooks/health-alert",
}

// ============================================================
// Payload builders
// ============================================================

// DealEvent builds the base payload {event, deal, tenant_id, timestamp}.
func DealEvent(event string, d *domain.Deal, now time.Time) *domain.WebhookEvent {
	snapshot := *d
	snapshot.NextActions = nil
	return &domain.WebhookEvent{
		Event:     event,
		Deal:      &snapshot,
		DealID:    d.ID,
		TenantID:  d.TenantID,
		Timestamp: now.UTC(),
	}
}

// DealWonEvent adds the commercial summary automation tools need for onboarding.
func DealWonEvent(d *domain.Deal, now time.Time) *domain.WebhookEvent {
	ev := DealEvent(domain.EventDealWon, d, now)
	value := d.Value
	ev.Value = &value
	ev.Company = d.CompanyName
	ev.Contact = &domain.WebhookContact{
		Name:  d.ContactPerson,
		Email: d.ContactEmail,
		Phone: d.ContactPhone,
	}
	return ev
}

// HealthAlertEvent flags a deal with a low score. Scores below 30 are critical.
func HealthAlertEvent(d *domain.Deal, now time.Time) *domain.WebhookEvent {
	ev := DealEvent(domain.EventDealHealthAlert, d, now)
	score := d.HealthScore
	ev.HealthScore = &score
	ev.AlertLevel = domain.AlertWarning
	if score < criticalHealthBelow {
		ev.AlertLevel = domain.AlertCritical
	}
	ev.RecommendedActions = append([]string(nil), HealthAlertActions...)
	return ev
}

func buildEvent(event string, d *domain.Deal, now time.Time) *domain.WebhookEvent {
	switch event {
	case domain.EventDealWon:
		return DealWonEvent(d, now)
	case domain.EventDealHealthAlert:
		return HealthAlertEvent(d, now)
	default:
		return DealEvent(event, d, now)
	}
}

// ============================================================
// WebhookService: inbound automation hooks
// ============================================================

// WebhookService answers signed automation calls (Zapier, Make, n8n) with
// deal payloads.
type WebhookService struct {
	deals   port.DealStore
	secret  []byte
	metrics *observability.Metrics
	now     func() time.Time
	logger  *zap.Logger
}

// NewWebhookService creates the service. An empty secret rejects every call.
func NewWebhookService(deals port.DealStore, secret string, metrics *observability.Metrics, logger *zap.Logger, opts ...Option) *WebhookService {
	return &WebhookService{
		deals:   deals,
		secret:  []byte(secret),
		metrics: metrics,
		now:     buildOptions(opts).now,
		logger:  logger,
	}
}

// Sign returns the hex signature of body. Callers of the hooks compute the same.
func Sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks signature against the HMAC of body in constant time.
func (s *WebhookService) VerifySignature(body []byte, signature string) error {
	signature = strings.TrimPrefix(strings.TrimSpace(signature), "sha256=")
	if len(s.secret) == 0 || signature == "" {
		return &domain.ErrUnauthorized{Message: "missing webhook signature"}
	}
	got, err := hex.DecodeString(signature)
	if err != nil {
		return &domain.ErrUnauthorized{Message: "invalid webhook signature"}
	}
	mac := hmac.New(sha256.New, s.secret)
	mac.Write(body)
	if !hmac.Equal(got, mac.Sum(nil)) {
		return &domain.ErrUnauthorized{Message: "invalid webhook signature"}
	}
	return nil
}

// Handle verifies the call, loads the deal and builds the payload for hook.
// hook is the URL name ("deal-updated", "deal-won" or "health-alert").
func (s *WebhookService) Handle(ctx context.Context, hook string, body []byte, signature string) (*domain.WebhookEvent, error) {
	ctx, span := webhookTracer.Start(ctx, "WebhookService.Handle")
	defer span.End()
	span.SetAttributes(attribute.String("webhook", hook))

	event, ok := webhookEvents[hook]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "webhook", ID: hook}
	}

	if err := s.VerifySignature(body, signature); err != nil {
		s.metrics.IncrWebhook(event, "unauthorized")
		s.logger.Warn("webhook: signature rejected", zap.String("webhook", hook))
		return nil, err
	}

	var req domain.WebhookRequest
	if err := json.Unmarshal(body, &req); err != nil {
		s.metrics.IncrWebhook(event, "invalid")
		return nil, &domain.ErrValidation{Field: "body", Message: "invalid JSON"}
	}
	if req.TenantID == "" {
		s.metrics.IncrWebhook(event, "invalid")
		return nil, &domain.ErrValidation{Field: "tenant_id", Message: "required"}
	}
	if req.DealID == "" {
		s.metrics.IncrWebhook(event, "invalid")
		return nil, &domain.ErrValidation{Field: "deal_id", Message: "required"}
	}
	span.SetAttributes(attribute.String("tenant.id", req.TenantID), attribute.String("deal.id", req.DealID))

	deal, err := s.deals.GetDeal(ctx, req.TenantID, req.DealID)
	if err != nil {
		s.metrics.IncrWebhook(event, "error")
		return nil, fmt.Errorf("get deal: %w", err)
	}

	s.metrics.IncrWebhook(event, "ok")
	s.logger.Info("webhook served",
		zap.String("event", event),
		zap.String("tenant_id", req.TenantID),
		zap.String("deal_id", req.DealID),
	)
	return buildEvent(event, deal, s.now()), nil
}

// Test describes the available hooks.
func (s *WebhookService) Test() *domain.WebhookTestResponse {
	return &domain.WebhookTestResponse{
		Status:            "ok",
		Message:           "Webhook endpoint is working",
		AvailableWebhooks: append([]string(nil), AvailableWebhooks...),
	}
}
