// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"

	"github.com/AnsKM/dealflow-crm/internal/domain"
)

// DealMutation edits a deal loaded inside a store transaction and returns
// the activities to insert alongside the write.
type DealMutation func(d *domain.Deal) ([]domain.Activity, error)

// DealLister reads every deal of a tenant.
type DealLister interface {
	ListAllDeals(ctx context.Context, tenantID string) ([]domain.Deal, error)
}

// DealStore persists deals and their activities. Every method is scoped by tenant.
type DealStore interface {
	DealLister

	// CreateDeals inserts deals and activities in one transaction.
	CreateDeals(ctx context.Context, deals []domain.Deal, activities []domain.Activity) error
	GetDeal(ctx context.Context, tenantID, dealID string) (*domain.Deal, error)
	ListDeals(ctx context.Context, tenantID string, filter domain.DealFilter) ([]domain.Deal, int64, error)
	// UpdateDeals locks the given deals, applies mutate to each and saves the
	// results with the returned activities in one transaction. A missing deal
	// aborts the whole batch with domain.ErrNotFound.
	UpdateDeals(ctx context.Context, tenantID string, dealIDs []string, mutate DealMutation) ([]domain.Deal, error)
	// DeleteDeals removes deals and their activities, returning the number of deals removed.
	DeleteDeals(ctx context.Context, tenantID string, dealIDs []string) (int64, error)
	ListActivities(ctx context.Context, tenantID, dealID string) ([]domain.Activity, error)
}

// AuthStore persists tenants and users.
type AuthStore interface {
	CreateTenantWithAdmin(ctx context.Context, tenant *domain.Tenant, user *domain.User) error
	SubdomainExists(ctx context.Context, subdomain string) (bool, error)
	// GetUserByEmail returns nil, nil when no user matches.
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	GetUserByID(ctx context.Context, userID string) (*domain.User, error)
	GetTenant(ctx context.Context, tenantID string) (*domain.Tenant, error)
}

// Recommender produces free-form text from a prompt (the LLM).
type Recommender interface {
	Generate(ctx context.Context, prompt string) (*domain.Completion, error)
}

// EventPublisher fans out deal events to automation consumers.
type EventPublisher interface {
	Publish(ctx context.Context, event *domain.WebhookEvent) error
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(ctx context.Context, key string) (T, bool)
	Set(ctx context.Context, key string, value T)
	Delete(ctx context.Context, key string)
}

// Pinger reports the reachability of a backing service.
type Pinger interface {
	Name() string
	Ping(ctx context.Context) error
}
