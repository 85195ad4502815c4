package store

import (
	"context"
	"fmt"

	"github.com/AnsKM/dealflow-crm/internal/domain"
	"github.com/AnsKM/dealflow-crm/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var tracer = otel.Tracer("store")

// ============================================================
// Deals
// ============================================================

// CreateDeals inserts deals and their activities in one transaction.
func (s *Store) CreateDeals(ctx context.Context, deals []domain.Deal, activities []domain.Activity) error {
	ctx, span := tracer.Start(ctx, "Store.CreateDeals")
	defer span.End()
	span.SetAttributes(attribute.Int("deals.count", len(deals)))

	if len(deals) == 0 {
		return nil
	}

	dealRows := make([]dealModel, len(deals))
	for i := range deals {
		dealRows[i] = toDealModel(&deals[i])
	}
	activityRows := make([]activityModel, len(activities))
	for i := range activities {
		activityRows[i] = toActivityModel(&activities[i])
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.CreateInBatches(dealRows, 100).Error; err != nil {
			return fmt.Errorf("insert deals: %w", err)
		}
		if len(activityRows) > 0 {
			if err := tx.CreateInBatches(activityRows, 100).Error; err != nil {
				return fmt.Errorf("insert activities: %w", err)
			}
		}
		return nil
	})
}

// GetDeal returns one deal of the tenant.
func (s *Store) GetDeal(ctx context.Context, tenantID, dealID string) (*domain.Deal, error) {
	ctx, span := tracer.Start(ctx, "Store.GetDeal")
	defer span.End()

	if !validIDs(tenantID, dealID) {
		return nil, &domain.ErrNotFound{Resource: "deal", ID: dealID}
	}

	var m dealModel
	err := s.db.WithContext(ctx).
		Where("id = ? AND tenant_id = ?", dealID, tenantID).
		First(&m).Error
	if err != nil {
		return nil, notFound(err, "deal", dealID)
	}
	d := m.toDomain()
	return &d, nil
}

// ListDeals returns one page of the tenant's deals, most recently updated
// first, and the total matching the filter.
func (s *Store) ListDeals(ctx context.Context, tenantID string, filter domain.DealFilter) ([]domain.Deal, int64, error) {
	ctx, span := tracer.Start(ctx, "Store.ListDeals")
	defer span.End()

	if !validIDs(tenantID) {
		return toDeals(nil), 0, nil
	}

	q := s.db.WithContext(ctx).Model(&dealModel{}).Where("tenant_id = ?", tenantID)
	if filter.Stage != "" {
		q = q.Where("stage = ?", string(filter.Stage))
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count deals: %w", err)
	}

	var rows []dealModel
	err := q.Order("updated_at DESC").Order("id").
		Offset(filter.Skip).
		Limit(filter.Limit).
		Find(&rows).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list deals: %w", err)
	}
	return toDeals(rows), total, nil
}

// ListAllDeals returns every deal of the tenant.
func (s *Store) ListAllDeals(ctx context.Context, tenantID string) ([]domain.Deal, error) {
	ctx, span := tracer.Start(ctx, "Store.ListAllDeals")
	defer span.End()

	if !validIDs(tenantID) {
		return toDeals(nil), nil
	}

	var rows []dealModel
	if err := s.db.WithContext(ctx).Where("tenant_id = ?", tenantID).Order("created_at").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list all deals: %w", err)
	}
	return toDeals(rows), nil
}

// UpdateDeals locks the tenant's deals, applies mutate to each and writes
// them back with the produced activities. A missing id aborts the batch.
func (s *Store) UpdateDeals(ctx context.Context, tenantID string, dealIDs []string, mutate port.DealMutation) ([]domain.Deal, error) {
	ctx, span := tracer.Start(ctx, "Store.UpdateDeals")
	defer span.End()
	span.SetAttributes(attribute.Int("deals.count", len(dealIDs)))

	ids := unique(dealIDs)
	for _, id := range ids {
		if !validIDs(tenantID, id) {
			return nil, &domain.ErrNotFound{Resource: "deal", ID: id}
		}
	}
	var updated []domain.Deal

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rows []dealModel
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("tenant_id = ? AND id IN ?", tenantID, ids).
			Find(&rows).Error
		if err != nil {
			return fmt.Errorf("lock deals: %w", err)
		}
		if missing := missingID(ids, rows); missing != "" {
			return &domain.ErrNotFound{Resource: "deal", ID: missing}
		}

		byID := make(map[string]*dealModel, len(rows))
		for i := range rows {
			byID[rows[i].ID] = &rows[i]
		}

		updated = make([]domain.Deal, 0, len(ids))
		var activities []activityModel
		for _, id := range ids {
			d := byID[id].toDomain()
			acts, err := mutate(&d)
			if err != nil {
				return err
			}

			m := toDealModel(&d)
			m.ID, m.TenantID, m.CreatedAt = id, tenantID, byID[id].CreatedAt
			err = tx.Model(&dealModel{}).
				Where("id = ? AND tenant_id = ?", id, tenantID).
				UpdateColumns(m.columns()).Error
			if err != nil {
				return fmt.Errorf("save deal %s: %w", id, err)
			}
			for i := range acts {
				activities = append(activities, toActivityModel(&acts[i]))
			}
			updated = append(updated, m.toDomain())
		}

		if len(activities) > 0 {
			if err := tx.CreateInBatches(activities, 100).Error; err != nil {
				return fmt.Errorf("insert activities: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteDeals removes the tenant's deals with the given ids and their activities.
func (s *Store) DeleteDeals(ctx context.Context, tenantID string, dealIDs []string) (int64, error) {
	ctx, span := tracer.Start(ctx, "Store.DeleteDeals")
	defer span.End()

	ids := wellFormed(unique(dealIDs))
	if !validIDs(tenantID) || len(ids) == 0 {
		return 0, nil
	}

	var deleted int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var owned []string
		err := tx.Model(&dealModel{}).
			Where("tenant_id = ? AND id IN ?", tenantID, ids).
			Pluck("id", &owned).Error
		if err != nil {
			return fmt.Errorf("find deals: %w", err)
		}
		if len(owned) == 0 {
			return nil
		}

		if err := tx.Where("deal_id IN ?", owned).Delete(&activityModel{}).Error; err != nil {
			return fmt.Errorf("delete activities: %w", err)
		}
		res := tx.Where("tenant_id = ? AND id IN ?", tenantID, owned).Delete(&dealModel{})
		if res.Error != nil {
			return fmt.Errorf("delete deals: %w", res.Error)
		}
		deleted = res.RowsAffected
		return nil
	})
	return deleted, err
}

// ============================================================
// Activities
// ============================================================

// ListActivities returns a deal's timeline, newest first.
// It fails with ErrNotFound when the deal is not the tenant's.
func (s *Store) ListActivities(ctx context.Context, tenantID, dealID string) ([]domain.Activity, error) {
	ctx, span := tracer.Start(ctx, "Store.ListActivities")
	defer span.End()

	if _, err := s.GetDeal(ctx, tenantID, dealID); err != nil {
		return nil, err
	}

	var rows []activityModel
	err := s.db.WithContext(ctx).
		Where("deal_id = ?", dealID).
		Order("created_at DESC").Order("id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}

	out := make([]domain.Activity, len(rows))
	for i := range rows {
		out[i] = rows[i].toDomain()
	}
	return out, nil
}

func toDeals(rows []dealModel) []domain.Deal {
	out := make([]domain.Deal, len(rows))
	for i := range rows {
		out[i] = rows[i].toDomain()
	}
	return out
}

func unique(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// wellFormed drops ids that cannot match any row.
func wellFormed(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if validIDs(id) {
			out = append(out, id)
		}
	}
	return out
}

func missingID(ids []string, rows []dealModel) string {
	found := make(map[string]struct{}, len(rows))
	for _, r := range rows {
		found[r.ID] = struct{}{}
	}
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			return id
		}
	}
	return ""
}
