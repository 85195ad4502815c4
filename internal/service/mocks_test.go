package service_test

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/AnsKM/dealflow-crm/internal/domain"
	"github.com/AnsKM/dealflow-crm/internal/port"
)

const (
	tenantA = "tenant-a"
	tenantB = "tenant-b"
	userA   = "user-a"
)

var now = time.Date(2025, 6, 2, 9, 30, 0, 0, time.UTC)

func clock() time.Time { return now }

func days(n int) time.Duration { return time.Duration(n) * 24 * time.Hour }

func principal() domain.Principal {
	return domain.Principal{UserID: userA, TenantID: tenantA}
}

// --- Mocks ---

// mockDealStore keeps deals in memory and mirrors the transactional
// contract of the real store: UpdateDeals is all-or-nothing.
type mockDealStore struct {
	mu         sync.Mutex
	deals      map[string]domain.Deal
	activities []domain.Activity
	err        error
}

func newMockDealStore(deals ...domain.Deal) *mockDealStore {
	m := &mockDealStore{deals: make(map[string]domain.Deal)}
	for _, d := range deals {
		m.deals[d.ID] = d
	}
	return m
}

func (m *mockDealStore) CreateDeals(_ context.Context, deals []domain.Deal, activities []domain.Activity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	for _, d := range deals {
		m.deals[d.ID] = d
	}
	m.activities = append(m.activities, activities...)
	return nil
}

func (m *mockDealStore) GetDeal(_ context.Context, tenantID, dealID string) (*domain.Deal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	d, ok := m.deals[dealID]
	if !ok || d.TenantID != tenantID {
		return nil, &domain.ErrNotFound{Resource: "deal", ID: dealID}
	}
	return &d, nil
}

func (m *mockDealStore) ListDeals(_ context.Context, tenantID string, filter domain.DealFilter) ([]domain.Deal, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, 0, m.err
	}
	var out []domain.Deal
	for _, d := range m.deals {
		if d.TenantID == tenantID && (filter.Stage == "" || d.Stage == filter.Stage) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})
	total := int64(len(out))
	if filter.Skip >= len(out) {
		return nil, total, nil
	}
	out = out[filter.Skip:]
	if len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, total, nil
}

func (m *mockDealStore) ListAllDeals(_ context.Context, tenantID string) ([]domain.Deal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	var out []domain.Deal
	for _, d := range m.deals {
		if d.TenantID == tenantID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockDealStore) UpdateDeals(_ context.Context, tenantID string, dealIDs []string, mutate port.DealMutation) ([]domain.Deal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}

	seen := make(map[string]bool)
	var updated []domain.Deal
	var activities []domain.Activity
	for _, id := range dealIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		d, ok := m.deals[id]
		if !ok || d.TenantID != tenantID {
			return nil, &domain.ErrNotFound{Resource: "deal", ID: id}
		}
		acts, err := mutate(&d)
		if err != nil {
			return nil, err
		}
		updated = append(updated, d)
		activities = append(activities, acts...)
	}

	for _, d := range updated {
		m.deals[d.ID] = d
	}
	m.activities = append(m.activities, activities...)
	return updated, nil
}

func (m *mockDealStore) DeleteDeals(_ context.Context, tenantID string, dealIDs []string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	var n int64
	for _, id := range dealIDs {
		if d, ok := m.deals[id]; ok && d.TenantID == tenantID {
			delete(m.deals, id)
			n++
		}
	}
	return n, nil
}

func (m *mockDealStore) ListActivities(_ context.Context, tenantID, dealID string) ([]domain.Activity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.deals[dealID]; !ok || d.TenantID != tenantID {
		return nil, &domain.ErrNotFound{Resource: "deal", ID: dealID}
	}
	var out []domain.Activity
	for _, a := range m.activities {
		if a.DealID == dealID {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *mockDealStore) deal(id string) domain.Deal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deals[id]
}

func (m *mockDealStore) activitiesOf(dealID string) []domain.Activity {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Activity
	for _, a := range m.activities {
		if a.DealID == dealID {
			out = append(out, a)
		}
	}
	return out
}

type mockLLM struct {
	mu      sync.Mutex
	text    string
	err     error
	calls   int
	prompts []string
}

func (m *mockLLM) Generate(_ context.Context, prompt string) (*domain.Completion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.prompts = append(m.prompts, prompt)
	if m.err != nil {
		return nil, m.err
	}
	return &domain.Completion{Text: m.text, PromptTokens: 10, CompletionTokens: 5}, nil
}

func (m *mockLLM) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type mockPublisher struct {
	mu     sync.Mutex
	events []domain.WebhookEvent
	err    error
}

func (m *mockPublisher) Publish(_ context.Context, ev *domain.WebhookEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, *ev)
	return m.err
}

func (m *mockPublisher) names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.events))
	for i, ev := range m.events {
		out[i] = ev.Event
	}
	return out
}

func (m *mockPublisher) find(event string) *domain.WebhookEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.events {
		if m.events[i].Event == event {
			ev := m.events[i]
			return &ev
		}
	}
	return nil
}

type mockAuthStore struct {
	mu         sync.Mutex
	tenants    map[string]*domain.Tenant
	users      map[string]*domain.User
	subdomains map[string]bool
	err        error
}

func newMockAuthStore() *mockAuthStore {
	return &mockAuthStore{
		tenants:    make(map[string]*domain.Tenant),
		users:      make(map[string]*domain.User),
		subdomains: make(map[string]bool),
	}
}

func (m *mockAuthStore) CreateTenantWithAdmin(_ context.Context, tenant *domain.Tenant, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	t, u := *tenant, *user
	m.tenants[t.ID] = &t
	m.users[u.ID] = &u
	m.subdomains[t.Subdomain] = true
	return nil
}

func (m *mockAuthStore) SubdomainExists(_ context.Context, subdomain string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.subdomains[subdomain], m.err
}

func (m *mockAuthStore) GetUserByEmail(_ context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	for _, u := range m.users {
		if u.Email == email {
			c := *u
			return &c, nil
		}
	}
	return nil, nil
}

func (m *mockAuthStore) GetUserByID(_ context.Context, userID string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "user", ID: userID}
	}
	c := *u
	return &c, nil
}

func (m *mockAuthStore) GetTenant(_ context.Context, tenantID string) (*domain.Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tenants[tenantID]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "tenant", ID: tenantID}
	}
	c := *t
	return &c, nil
}
