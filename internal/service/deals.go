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
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("service/deals")

// Listing bounds for GET /v1/deals.
const (
	DefaultListLimit = 100
	MaxListLimit     = 100
)

// DealConfig tunes DealService.
type DealConfig struct {
	// HealthAlertThreshold publishes deal.health_alert when an updated deal
	// scores strictly below it.
	HealthAlertThreshold int
	// EnrichConcurrency caps parallel next-action lookups on list reads.
	EnrichConcurrency int
}

// DefaultDealConfig returns the standard settings.
func DefaultDealConfig() DealConfig {
	return DealConfig{HealthAlertThreshold: 40, EnrichConcurrency: 8}
}

// DealService owns the deal lifecycle: create, read, update, delete and the
// bulk variants. Every write recomputes the health score.
type DealService struct {
	store   port.DealStore
	recs    *Recommendations
	events  port.EventPublisher
	cfg     DealConfig
	metrics *observability.Metrics
	now     func() time.Time
	logger  *zap.Logger
}

// NewDealService creates the deal service with all dependencies injected.
func NewDealService(
	store port.DealStore,
	recs *Recommendations,
	events port.EventPublisher,
	cfg DealConfig,
	metrics *observability.Metrics,
	logger *zap.Logger,
	opts ...Option,
) *DealService {
	if cfg.EnrichConcurrency < 1 {
		cfg.EnrichConcurrency = 1
	}
	return &DealService{
		store:   store,
		recs:    recs,
		events:  events,
		cfg:     cfg,
		metrics: metrics,
		now:     buildOptions(opts).now,
		logger:  logger,
	}
}

// ============================================================
// Create: POST /v1/deals
// ============================================================

// Create validates and persists a new deal with its "Deal created" activity.
func (s *DealService) Create(ctx context.Context, p domain.Principal, req *domain.CreateDealRequest) (*domain.Deal, error) {
	ctx, span := tracer.Start(ctx, "DealService.Create")
	defer span.End()
	span.SetAttributes(attribute.String("tenant.id", p.TenantID))

	start := time.Now()
	defer func() { s.metrics.RecordRequestDuration("deals.create", time.Since(start)) }()

	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := s.now()
	deal, activity := s.newDeal(p, req, now)
	if err := s.store.CreateDeals(ctx, []domain.Deal{deal}, []domain.Activity{activity}); err != nil {
		return nil, fmt.Errorf("create deal: %w", err)
	}
	s.metrics.AddDealsMutated("create", 1)

	s.logger.Info("deal created",
		zap.String("tenant_id", p.TenantID),
		zap.String("deal_id", deal.ID),
		zap.String("stage", string(deal.Stage)),
		zap.Int("health_score", deal.HealthScore),
	)
	s.publish(ctx, DealEvent(domain.EventDealCreated, &deal, now))

	deal.NextActions = s.recs.NextActions(ctx, &deal)
	return &deal, nil
}

// newDeal builds a scored deal and its creation activity.
func (s *DealService) newDeal(p domain.Principal, req *domain.CreateDealRequest, now time.Time) (domain.Deal, domain.Activity) {
	deal := domain.Deal{
		ID:                uuid.NewString(),
		TenantID:          p.TenantID,
		Title:             req.Title,
		CompanyName:       req.CompanyName,
		ContactPerson:     req.ContactPerson,
		ContactEmail:      req.ContactEmail,
		ContactPhone:      req.ContactPhone,
		Value:             req.Value,
		Stage:             req.Stage,
		ExpectedCloseDate: domain.UTCPtr(req.ExpectedCloseDate.Value),
		Notes:             req.Notes,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	deal.HealthScore = scoring.Score(&deal, now)
	s.metrics.ObserveHealthScore(deal.HealthScore)

	activity := domain.Activity{
		ID:           uuid.NewString(),
		DealID:       deal.ID,
		UserID:       p.UserID,
		ActivityType: domain.ActivitySystem,
		Title:        "Deal created",
		Description:  fmt.Sprintf("Deal '%s' was created", deal.Title),
		CreatedAt:    now,
	}
	return deal, activity
}

// ============================================================
// Read: GET /v1/deals, GET /v1/deals/{dealId}
// ============================================================

// Get returns one deal of the tenant with its next actions.
func (s *DealService) Get(ctx context.Context, p domain.Principal, dealID string) (*domain.Deal, error) {
	ctx, span := tracer.Start(ctx, "DealService.Get")
	defer span.End()
	span.SetAttributes(attribute.String("tenant.id", p.TenantID), attribute.String("deal.id", dealID))

	deal, err := s.store.GetDeal(ctx, p.TenantID, dealID)
	if err != nil {
		return nil, fmt.Errorf("get deal: %w", err)
	}
	deal.NextActions = s.recs.NextActions(ctx, deal)
	return deal, nil
}

// List returns a page of the tenant's deals, most recently updated first.
func (s *DealService) List(ctx context.Context, p domain.Principal, filter domain.DealFilter) (*domain.DealListResponse, error) {
	ctx, span := tracer.Start(ctx, "DealService.List")
	defer span.End()
	span.SetAttributes(attribute.String("tenant.id", p.TenantID))

	start := time.Now()
	defer func() { s.metrics.RecordRequestDuration("deals.list", time.Since(start)) }()

	if filter.Limit < 1 || filter.Limit > MaxListLimit {
		return nil, &domain.ErrValidation{Field: "limit", Message: fmt.Sprintf("must be between 1 and %d", MaxListLimit)}
	}
	if filter.Skip < 0 {
		return nil, &domain.ErrValidation{Field: "skip", Message: "must not be negative"}
	}
	if filter.Stage != "" && !filter.Stage.Valid() {
		return nil, &domain.ErrValidation{Field: "stage", Message: fmt.Sprintf("unknown stage %q", filter.Stage)}
	}

	deals, total, err := s.store.ListDeals(ctx, p.TenantID, filter)
	if err != nil {
		return nil, fmt.Errorf("list deals: %w", err)
	}
	if deals == nil {
		deals = []domain.Deal{}
	}

	s.enrich(ctx, deals)
	span.SetAttributes(attribute.Int("deals.count", len(deals)))
	return &domain.DealListResponse{Deals: deals, Total: total}, nil
}

// enrich fills NextActions concurrently. Recommendations never fail, so
// the group only bounds parallelism.
func (s *DealService) enrich(ctx context.Context, deals []domain.Deal) {
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.EnrichConcurrency)
	for i := range deals {
		d := &deals[i]
		g.Go(func() error {
			d.NextActions = s.recs.NextActions(gCtx, d)
			return nil
		})
	}
	_ = g.Wait()
}

// ============================================================
// Update: PATCH /v1/deals/{dealId}
// ============================================================

// Update applies a partial update. Any update counts as a contact: the
// deal's last_contact_at moves to now and its score is recomputed.
func (s *DealService) Update(ctx context.Context, p domain.Principal, dealID string, req *domain.UpdateDealRequest) (*domain.Deal, error) {
	ctx, span := tracer.Start(ctx, "DealService.Update")
	defer span.End()
	span.SetAttributes(attribute.String("tenant.id", p.TenantID), attribute.String("deal.id", dealID))

	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := s.now()
	var prev domain.Stage
	updated, err := s.store.UpdateDeals(ctx, p.TenantID, []string{dealID}, func(d *domain.Deal) ([]domain.Activity, error) {
		prev = d.Stage
		req.Apply(d)
		return s.touch(d, p.UserID, prev, now), nil
	})
	if err != nil {
		return nil, fmt.Errorf("update deal: %w", err)
	}
	s.metrics.AddDealsMutated("update", 1)

	deal := updated[0]
	s.logger.Info("deal updated",
		zap.String("tenant_id", p.TenantID),
		zap.String("deal_id", deal.ID),
		zap.String("stage", string(deal.Stage)),
		zap.Int("health_score", deal.HealthScore),
	)
	s.publishUpdate(ctx, &deal, prev, now)

	deal.NextActions = s.recs.NextActions(ctx, &deal)
	return &deal, nil
}

// touch marks d as contacted at now, rescoring it, and returns the
// stage_change activity when its stage moved away from prev.
func (s *DealService) touch(d *domain.Deal, userID string, prev domain.Stage, now time.Time) []domain.Activity {
	contact := now
	d.LastContactAt = &contact
	d.UpdatedAt = now
	d.HealthScore = scoring.Score(d, now)
	s.metrics.ObserveHealthScore(d.HealthScore)

	if d.Stage == prev {
		return nil
	}
	return []domain.Activity{{
		ID:           uuid.NewString(),
		DealID:       d.ID,
		UserID:       userID,
		ActivityType: domain.ActivityStageChange,
		Title:        "Stage changed",
		Description:  fmt.Sprintf("Stage changed from '%s' to '%s'", prev, d.Stage),
		Metadata:     map[string]any{"from": string(prev), "to": string(d.Stage)},
		CreatedAt:    now,
	}}
}

// ============================================================
// Delete: DELETE /v1/deals/{dealId}
// ============================================================

// Delete removes the deal and its timeline.
func (s *DealService) Delete(ctx context.Context, p domain.Principal, dealID string) error {
	ctx, span := tracer.Start(ctx, "DealService.Delete")
	defer span.End()
	span.SetAttributes(attribute.String("tenant.id", p.TenantID), attribute.String("deal.id", dealID))

	n, err := s.store.DeleteDeals(ctx, p.TenantID, []string{dealID})
	if err != nil {
		return fmt.Errorf("delete deal: %w", err)
	}
	if n == 0 {
		return &domain.ErrNotFound{Resource: "deal", ID: dealID}
	}
	s.metrics.AddDealsMutated("delete", 1)

	s.logger.Info("deal deleted", zap.String("tenant_id", p.TenantID), zap.String("deal_id", dealID))
	s.publish(ctx, &domain.WebhookEvent{
		Event:     domain.EventDealDeleted,
		DealID:    dealID,
		TenantID:  p.TenantID,
		Timestamp: s.now(),
	})
	return nil
}

// ============================================================
// Events
// ============================================================

// publishUpdate emits deal.updated, plus deal.won when d just entered
// closed_won and deal.health_alert when its score is below the threshold.
func (s *DealService) publishUpdate(ctx context.Context, d *domain.Deal, prev domain.Stage, now time.Time) {
	s.publish(ctx, DealEvent(domain.EventDealUpdated, d, now))
	if d.Stage == domain.StageClosedWon && prev != domain.StageClosedWon {
		s.publish(ctx, DealWonEvent(d, now))
	}
	if d.HealthScore < s.cfg.HealthAlertThreshold {
		s.publish(ctx, HealthAlertEvent(d, now))
	}
}

// publish is best effort: the write already committed.
func (s *DealService) publish(ctx context.Context, ev *domain.WebhookEvent) {
	if err := s.events.Publish(ctx, ev); err != nil {
		s.logger.Warn("event publish failed",
			zap.String("event", ev.Event),
			zap.String("deal_id", ev.DealID),
			zap.Error(err),
		)
	}
}
