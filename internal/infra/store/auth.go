package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/AnsKM/dealflow-crm/internal/domain"

	"gorm.io/gorm"
)

// ============================================================
// Tenants & Users
// ============================================================

// CreateTenantWithAdmin inserts a tenant and its first user atomically.
func (s *Store) CreateTenantWithAdmin(ctx context.Context, tenant *domain.Tenant, user *domain.User) error {
	ctx, span := tracer.Start(ctx, "Store.CreateTenantWithAdmin")
	defer span.End()

	t := toTenantModel(tenant)
	u := toUserModel(user)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&t).Error; err != nil {
			return fmt.Errorf("insert tenant: %w", err)
		}
		if err := tx.Create(&u).Error; err != nil {
			return fmt.Errorf("insert user: %w", err)
		}
		return nil
	})
	if uniqueViolation(err) {
		return &domain.ErrConflict{Message: "tenant or user already exists"}
	}
	if err != nil {
		return err
	}

	*tenant = *t.toDomain()
	*user = *u.toDomain()
	return nil
}

// SubdomainExists reports whether a tenant already uses subdomain.
func (s *Store) SubdomainExists(ctx context.Context, subdomain string) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&tenantModel{}).Where("subdomain = ?", subdomain).Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("check subdomain: %w", err)
	}
	return n > 0, nil
}

// GetUserByEmail returns nil, nil when no user has the email.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	ctx, span := tracer.Start(ctx, "Store.GetUserByEmail")
	defer span.End()

	var m userModel
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return m.toDomain(), nil
}

// GetUserByID returns the user or ErrNotFound.
func (s *Store) GetUserByID(ctx context.Context, userID string) (*domain.User, error) {
	var m userModel
	if err := s.db.WithContext(ctx).Where("id = ?", userID).First(&m).Error; err != nil {
		return nil, notFound(err, "user", userID)
	}
	return m.toDomain(), nil
}

// GetTenant returns the tenant or ErrNotFound.
func (s *Store) GetTenant(ctx context.Context, tenantID string) (*domain.Tenant, error) {
	var m tenantModel
	if err := s.db.WithContext(ctx).Where("id = ?", tenantID).First(&m).Error; err != nil {
		return nil, notFound(err, "tenant", tenantID)
	}
	return m.toDomain(), nil
}
