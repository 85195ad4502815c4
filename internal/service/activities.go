package service

import (
	"context"
	"fmt"
	"time"

	"github.com/AnsKM/dealflow-crm/internal/domain"
	"github.com/AnsKM/dealflow-crm/internal/infra/observability"
	"github.com/AnsKM/dealflow-crm/internal/port"
	"github.com/AnsKM/dealflow-crm/internal/scoring"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ActivityService records the deal timeline.
type ActivityService struct {
	store   port.DealStore
	metrics *observability.Metrics
	now     func() time.Time
	logger  *zap.Logger
}

// NewActivityService creates the activity service.
func NewActivityService(store port.DealStore, metrics *observability.Metrics, logger *zap.Logger, opts ...Option) *ActivityService {
	return &ActivityService{
		store:   store,
		metrics: metrics,
		now:     buildOptions(opts).now,
		logger:  logger,
	}
}

// Log appends an activity to a deal of the tenant. Logging counts as a
// contact, so the deal's last_contact_at and score move in the same transaction.
func (s *ActivityService) Log(ctx context.Context, p domain.Principal, req *domain.CreateActivityRequest) (*domain.Activity, error) {
	ctx, span := tracer.Start(ctx, "ActivityService.Log")
	defer span.End()
	span.SetAttributes(attribute.String("tenant.id", p.TenantID), attribute.String("deal.id", req.DealID))

	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := s.now()
	activity := domain.Activity{
		ID:           uuid.NewString(),
		DealID:       req.DealID,
		UserID:       p.UserID,
		ActivityType: req.ActivityType,
		Title:        req.Title,
		Description:  req.Description,
		CreatedAt:    now,
	}

	_, err := s.store.UpdateDeals(ctx, p.TenantID, []string{req.DealID}, func(d *domain.Deal) ([]domain.Activity, error) {
		contact := now
		d.LastContactAt = &contact
		d.UpdatedAt = now
		d.HealthScore = scoring.Score(d, now)
		s.metrics.ObserveHealthScore(d.HealthScore)
		return []domain.Activity{activity}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("log activity: %w", err)
	}

	s.logger.Info("activity logged",
		zap.String("tenant_id", p.TenantID),
		zap.String("deal_id", req.DealID),
		zap.String("type", string(req.ActivityType)),
	)
	return &activity, nil
}

// ListForDeal returns the deal's timeline, newest first.
func (s *ActivityService) ListForDeal(ctx context.Context, p domain.Principal, dealID string) ([]domain.Activity, error) {
	ctx, span := tracer.Start(ctx, "ActivityService.ListForDeal")
	defer span.End()
	span.SetAttributes(attribute.String("tenant.id", p.TenantID), attribute.String("deal.id", dealID))

	activities, err := s.store.ListActivities(ctx, p.TenantID, dealID)
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	if activities == nil {
		activities = []domain.Activity{}
	}
	return activities, nil
}
