package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/AnsKM/dealflow-crm/internal/domain"
	"github.com/AnsKM/dealflow-crm/internal/infra/sheet"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Bulk: /v1/deals/bulk
// ============================================================

// BulkCreate validates every row before writing anything. The deals and
// their creation activities are inserted in one transaction.
func (s *DealService) BulkCreate(ctx context.Context, p domain.Principal, reqs []domain.CreateDealRequest) (*domain.BulkResult, error) {
	ctx, span := tracer.Start(ctx, "DealService.BulkCreate")
	defer span.End()
	span.SetAttributes(attribute.String("tenant.id", p.TenantID), attribute.Int("deals.count", len(reqs)))

	if err := checkBulkSize("deals", len(reqs)); err != nil {
		return nil, err
	}
	for i := range reqs {
		if err := reqs[i].Validate(); err != nil {
			return nil, rowError("deals", i, err)
		}
	}

	deals, err := s.createMany(ctx, p, reqs, "bulk_create")
	if err != nil {
		return nil, err
	}
	return &domain.BulkResult{Count: len(deals), Deals: deals}, nil
}

// BulkUpdateStage moves every listed deal to stage in one transaction.
// A deal outside the tenant aborts the whole batch with not found.
func (s *DealService) BulkUpdateStage(ctx context.Context, p domain.Principal, req *domain.BulkStageRequest) (*domain.BulkResult, error) {
	ctx, span := tracer.Start(ctx, "DealService.BulkUpdateStage")
	defer span.End()
	span.SetAttributes(attribute.String("tenant.id", p.TenantID), attribute.Int("deals.count", len(req.DealIDs)))

	if err := checkBulkSize("deal_ids", len(req.DealIDs)); err != nil {
		return nil, err
	}
	if !req.Stage.Valid() {
		return nil, &domain.ErrValidation{Field: "stage", Message: fmt.Sprintf("unknown stage %q", req.Stage)}
	}

	now := s.now()
	prev := make(map[string]domain.Stage, len(req.DealIDs))
	updated, err := s.store.UpdateDeals(ctx, p.TenantID, req.DealIDs, func(d *domain.Deal) ([]domain.Activity, error) {
		prev[d.ID] = d.Stage
		d.Stage = req.Stage
		return s.touch(d, p.UserID, prev[d.ID], now), nil
	})
	if err != nil {
		return nil, fmt.Errorf("bulk update stage: %w", err)
	}
	s.metrics.AddDealsMutated("bulk_stage", len(updated))

	s.logger.Info("deals moved",
		zap.String("tenant_id", p.TenantID),
		zap.String("stage", string(req.Stage)),
		zap.Int("count", len(updated)),
	)
	for i := range updated {
		s.publishUpdate(ctx, &updated[i], prev[updated[i].ID], now)
	}
	return &domain.BulkResult{Count: len(updated), Deals: updated}, nil
}

// BulkDelete removes the tenant's deals among ids. Ids of other tenants or
// unknown ids are ignored; Count says how many were removed.
func (s *DealService) BulkDelete(ctx context.Context, p domain.Principal, req *domain.BulkDeleteRequest) (*domain.BulkResult, error) {
	ctx, span := tracer.Start(ctx, "DealService.BulkDelete")
	defer span.End()
	span.SetAttributes(attribute.String("tenant.id", p.TenantID), attribute.Int("deals.count", len(req.DealIDs)))

	if err := checkBulkSize("deal_ids", len(req.DealIDs)); err != nil {
		return nil, err
	}

	n, err := s.store.DeleteDeals(ctx, p.TenantID, req.DealIDs)
	if err != nil {
		return nil, fmt.Errorf("bulk delete: %w", err)
	}
	s.metrics.AddDealsMutated("bulk_delete", int(n))

	s.logger.Info("deals deleted",
		zap.String("tenant_id", p.TenantID),
		zap.Int("requested", len(req.DealIDs)),
		zap.Int64("deleted", n),
	)
	return &domain.BulkResult{Count: int(n)}, nil
}

// ============================================================
// Spreadsheets: /v1/deals/import, /v1/deals/export
// ============================================================

// Import creates a deal for every valid row of the spreadsheet and reports
// the rejected rows by line number. format is "xlsx" or "csv".
func (s *DealService) Import(ctx context.Context, p domain.Principal, r io.Reader, format string) (*domain.ImportResult, error) {
	ctx, span := tracer.Start(ctx, "DealService.Import")
	defer span.End()
	span.SetAttributes(attribute.String("tenant.id", p.TenantID), attribute.String("format", format))

	rows, err := sheet.Parse(format, r)
	if err != nil {
		if errors.Is(err, sheet.ErrUnsupportedFormat) {
			return nil, &domain.ErrValidation{Field: "file", Message: err.Error()}
		}
		return nil, fmt.Errorf("parse spreadsheet: %w", err)
	}

	result := &domain.ImportResult{Errors: []domain.ImportError{}}
	valid := make([]domain.CreateDealRequest, 0, len(rows))
	for _, row := range rows {
		req, err := sheet.ToCreateRequest(row)
		if err != nil {
			result.Errors = append(result.Errors, domain.ImportError{Row: row.Line, Message: err.Error()})
			continue
		}
		valid = append(valid, req)
	}

	if len(valid) > 0 {
		deals, err := s.createMany(ctx, p, valid, "import")
		if err != nil {
			return nil, err
		}
		result.Created = len(deals)
	}

	s.logger.Info("deals imported",
		zap.String("tenant_id", p.TenantID),
		zap.Int("rows", len(rows)),
		zap.Int("created", result.Created),
		zap.Int("rejected", len(result.Errors)),
	)
	return result, nil
}

// Export renders every deal of the tenant as an xlsx workbook.
func (s *DealService) Export(ctx context.Context, p domain.Principal) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "DealService.Export")
	defer span.End()
	span.SetAttributes(attribute.String("tenant.id", p.TenantID))

	deals, err := s.store.ListAllDeals(ctx, p.TenantID)
	if err != nil {
		return nil, fmt.Errorf("list deals: %w", err)
	}
	out, err := sheet.ExportXLSX(deals)
	if err != nil {
		return nil, fmt.Errorf("export deals: %w", err)
	}
	span.SetAttributes(attribute.Int("deals.count", len(deals)))
	return out, nil
}

// ============================================================
// Internal helpers
// ============================================================

// createMany persists already validated requests in one transaction.
func (s *DealService) createMany(ctx context.Context, p domain.Principal, reqs []domain.CreateDealRequest, operation string) ([]domain.Deal, error) {
	start := time.Now()
	defer func() { s.metrics.RecordRequestDuration("deals."+operation, time.Since(start)) }()

	now := s.now()
	deals := make([]domain.Deal, len(reqs))
	activities := make([]domain.Activity, len(reqs))
	for i := range reqs {
		deals[i], activities[i] = s.newDeal(p, &reqs[i], now)
	}

	if err := s.store.CreateDeals(ctx, deals, activities); err != nil {
		return nil, fmt.Errorf("create deals: %w", err)
	}
	s.metrics.AddDealsMutated(operation, len(deals))

	for i := range deals {
		s.publish(ctx, DealEvent(domain.EventDealCreated, &deals[i], now))
	}
	return deals, nil
}

func checkBulkSize(field string, n int) error {
	if n == 0 {
		return &domain.ErrValidation{Field: field, Message: "must not be empty"}
	}
	if n > domain.MaxBulkItems {
		return &domain.ErrValidation{Field: field, Message: fmt.Sprintf("at most %d items per request", domain.MaxBulkItems)}
	}
	return nil
}

// rowError prefixes a validation error with the offending row index.
func rowError(field string, i int, err error) error {
	var verr *domain.ErrValidation
	if errors.As(err, &verr) {
		return &domain.ErrValidation{Field: fmt.Sprintf("%s[%d].%s", field, i, verr.Field), Message: verr.Message}
	}
	return fmt.Errorf("%s[%d]: %w", field, i, err)
}
