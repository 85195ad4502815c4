package store

import (
	"time"

	"github.com/AnsKM/dealflow-crm/internal/domain"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type tenantModel struct {
	ID        string `gorm:"type:uuid;primaryKey"`
	Name      string `gorm:"size:255;not null"`
	Subdomain string `gorm:"size:100;not null;uniqueIndex"`
	IsActive  bool   `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (tenantModel) TableName() string { return "tenants" }

type userModel struct {
	ID             string `gorm:"type:uuid;primaryKey"`
	TenantID       string `gorm:"type:uuid;not null;index"`
	Email          string `gorm:"size:255;not null;uniqueIndex"`
	HashedPassword string `gorm:"size:255;not null"`
	FullName       string `gorm:"size:255;not null"`
	IsActive       bool   `gorm:"not null"`
	IsAdmin        bool   `gorm:"not null"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (userModel) TableName() string { return "users" }

type dealModel struct {
	ID                string          `gorm:"type:uuid;primaryKey"`
	TenantID          string          `gorm:"type:uuid;not null;index:idx_deals_tenant_stage,priority:1"`
	Title             string          `gorm:"size:255;not null"`
	CompanyName       string          `gorm:"size:255;not null"`
	ContactPerson     string          `gorm:"size:255"`
	ContactEmail      string          `gorm:"size:255"`
	ContactPhone      string          `gorm:"size:50"`
	Value             decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Stage             string          `gorm:"size:32;not null;index:idx_deals_tenant_stage,priority:2"`
	HealthScore       int             `gorm:"not null"`
	LastContactAt     *time.Time
	ExpectedCloseDate *time.Time
	Notes             string `gorm:"size:2000"`
	CreatedAt         time.Time
	UpdatedAt         time.Time `gorm:"index"`
}

func (dealModel) TableName() string { return "deals" }

// columns lists the mutable columns written on update.
func (m *dealModel) columns() map[string]any {
	return map[string]any{
		"title":               m.Title,
		"company_name":        m.CompanyName,
		"contact_person":      m.ContactPerson,
		"contact_email":       m.ContactEmail,
		"contact_phone":       m.ContactPhone,
		"value":               m.Value,
		"stage":               m.Stage,
		"health_score":        m.HealthScore,
		"last_contact_at":     m.LastContactAt,
		"expected_close_date": m.ExpectedCloseDate,
		"notes":               m.Notes,
		"updated_at":          m.UpdatedAt,
	}
}

type activityModel struct {
	ID           string            `gorm:"type:uuid;primaryKey"`
	DealID       string            `gorm:"type:uuid;not null;index"`
	UserID       string            `gorm:"type:uuid;index"`
	ActivityType string            `gorm:"size:32;not null"`
	Title        string            `gorm:"size:255;not null"`
	Description  string            `gorm:"size:2000"`
	Metadata     datatypes.JSONMap
	CreatedAt    time.Time         `gorm:"index"`
}

func (activityModel) TableName() string { return "activities" }

// ============================================================
// Mapping
// ============================================================

func toDealModel(d *domain.Deal) dealModel {
	return dealModel{
		ID:                d.ID,
		TenantID:          d.TenantID,
		Title:             d.Title,
		CompanyName:       d.CompanyName,
		ContactPerson:     d.ContactPerson,
		ContactEmail:      d.ContactEmail,
		ContactPhone:      d.ContactPhone,
		Value:             d.Value.Decimal,
		Stage:             string(d.Stage),
		HealthScore:       d.HealthScore,
		LastContactAt:     domain.UTCPtr(d.LastContactAt),
		ExpectedCloseDate: domain.UTCPtr(d.ExpectedCloseDate),
		Notes:             d.Notes,
		CreatedAt:         d.CreatedAt.UTC(),
		UpdatedAt:         d.UpdatedAt.UTC(),
	}
}

func (m *dealModel) toDomain() domain.Deal {
	return domain.Deal{
		ID:                m.ID,
		TenantID:          m.TenantID,
		Title:             m.Title,
		CompanyName:       m.CompanyName,
		ContactPerson:     m.ContactPerson,
		ContactEmail:      m.ContactEmail,
		ContactPhone:      m.ContactPhone,
		Value:             domain.NewMoney(m.Value),
		Stage:             domain.Stage(m.Stage),
		HealthScore:       m.HealthScore,
		LastContactAt:     domain.UTCPtr(m.LastContactAt),
		ExpectedCloseDate: domain.UTCPtr(m.ExpectedCloseDate),
		Notes:             m.Notes,
		CreatedAt:         m.CreatedAt.UTC(),
		UpdatedAt:         m.UpdatedAt.UTC(),
	}
}

func toActivityModel(a *domain.Activity) activityModel {
	m := activityModel{
		ID:           a.ID,
		DealID:       a.DealID,
		UserID:       a.UserID,
		ActivityType: string(a.ActivityType),
		Title:        a.Title,
		Description:  a.Description,
		CreatedAt:    a.CreatedAt.UTC(),
	}
	if len(a.Metadata) > 0 {
		m.Metadata = datatypes.JSONMap(a.Metadata)
	}
	return m
}

func (m *activityModel) toDomain() domain.Activity {
	a := domain.Activity{
		ID:           m.ID,
		DealID:       m.DealID,
		UserID:       m.UserID,
		ActivityType: domain.ActivityType(m.ActivityType),
		Title:        m.Title,
		Description:  m.Description,
		CreatedAt:    m.CreatedAt.UTC(),
	}
	if len(m.Metadata) > 0 {
		a.Metadata = map[string]any(m.Metadata)
	}
	return a
}

func toTenantModel(t *domain.Tenant) tenantModel {
	return tenantModel{
		ID:        t.ID,
		Name:      t.Name,
		Subdomain: t.Subdomain,
		IsActive:  t.IsActive,
		CreatedAt: t.CreatedAt.UTC(),
		UpdatedAt: t.UpdatedAt.UTC(),
	}
}

func (m *tenantModel) toDomain() *domain.Tenant {
	return &domain.Tenant{
		ID:        m.ID,
		Name:      m.Name,
		Subdomain: m.Subdomain,
		IsActive:  m.IsActive,
		CreatedAt: m.CreatedAt.UTC(),
		UpdatedAt: m.UpdatedAt.UTC(),
	}
}

func toUserModel(u *domain.User) userModel {
	return userModel{
		ID:             u.ID,
		TenantID:       u.TenantID,
		Email:          u.Email,
		HashedPassword: u.HashedPassword,
		FullName:       u.FullName,
		IsActive:       u.IsActive,
		IsAdmin:        u.IsAdmin,
		CreatedAt:      u.CreatedAt.UTC(),
		UpdatedAt:      u.UpdatedAt.UTC(),
	}
}

func (m *userModel) toDomain() *domain.User {
	return &domain.User{
		ID:             m.ID,
		TenantID:       m.TenantID,
		Email:          m.Email,
		HashedPassword: m.HashedPassword,
		FullName:       m.FullName,
		IsActive:       m.IsActive,
		IsAdmin:        m.IsAdmin,
		CreatedAt:      m.CreatedAt.UTC(),
		UpdatedAt:      m.UpdatedAt.UTC(),
	}
}
