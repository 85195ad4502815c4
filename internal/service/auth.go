// Package service holds the use cases of the CRM: tenancy and auth, deals,
// activities, recommendations and the automation webhooks.
package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/AnsKM/dealflow-crm/internal/domain"
	"github.com/AnsKM/dealflow-crm/internal/port"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var authTracer = otel.Tracer("service/auth")

const (
	bcryptCost         = 12
	maxSubdomainProbes = 5
)

// AuthService orchestrates registration, login and token validation.
type AuthService struct {
	store     port.AuthStore
	jwtSecret []byte
	accessTTL time.Duration
	now       func() time.Time
	logger    *zap.Logger
}

// NewAuthService creates a new auth service.
func NewAuthService(store port.AuthStore, jwtSecret string, accessTTL time.Duration, logger *zap.Logger, opts ...Option) *AuthService {
	return &AuthService{
		store:     store,
		jwtSecret: []byte(jwtSecret),
		accessTTL: accessTTL,
		now:       buildOptions(opts).now,
		logger:    logger,
	}
}

// ============================================================
// Register: POST /v1/auth/register
// ============================================================

// Register creates a tenant and its first (admin) user and logs them in.
func (s *AuthService) Register(ctx context.Context, req *domain.RegisterRequest) (*domain.TokenResponse, error) {
	ctx, span := authTracer.Start(ctx, "AuthService.Register")
	defer span.End()

	if err := req.Validate(); err != nil {
		return nil, err
	}

	existing, err := s.store.GetUserByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("check existing user: %w", err)
	}
	if existing != nil {
		return nil, &domain.ErrConflict{Message: "email already registered"}
	}

	subdomain, err := s.uniqueSubdomain(ctx, req.TenantName)
	if err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	tenant := &domain.Tenant{
		ID:        uuid.NewString(),
		Name:      req.TenantName,
		Subdomain: subdomain,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	user := &domain.User{
		ID:             uuid.NewString(),
		TenantID:       tenant.ID,
		Email:          req.Email,
		HashedPassword: string(hash),
		FullName:       req.FullName,
		IsActive:       true,
		IsAdmin:        true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.store.CreateTenantWithAdmin(ctx, tenant, user); err != nil {
		return nil, fmt.Errorf("create tenant: %w", err)
	}

	s.logger.Info("user registered",
		zap.String("user_id", user.ID),
		zap.String("tenant_id", tenant.ID),
		zap.String("subdomain", tenant.Subdomain),
	)

	return s.issue(user)
}

// ============================================================
// Login: POST /v1/auth/login
// ============================================================

// Login checks the credentials and returns a fresh access token.
func (s *AuthService) Login(ctx context.Context, req *domain.LoginRequest) (*domain.TokenResponse, error) {
	ctx, span := authTracer.Start(ctx, "AuthService.Login")
	defer span.End()

	email := strings.ToLower(strings.TrimSpace(req.Email))
	span.SetAttributes(attribute.String("email", email))

	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return nil, &domain.ErrUnauthorized{Message: "incorrect email or password"}
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(req.Password)); err != nil {
		s.logger.Warn("login: wrong password", zap.String("user_id", user.ID))
		return nil, &domain.ErrUnauthorized{Message: "incorrect email or password"}
	}

	if !user.IsActive {
		return nil, &domain.ErrForbidden{Action: "user account is inactive"}
	}
	tenant, err := s.store.GetTenant(ctx, user.TenantID)
	if err != nil {
		return nil, fmt.Errorf("get tenant: %w", err)
	}
	if !tenant.IsActive {
		return nil, &domain.ErrForbidden{Action: "tenant is inactive"}
	}

	s.logger.Info("user logged in", zap.String("user_id", user.ID), zap.String("tenant_id", user.TenantID))
	return s.issue(user)
}

// ============================================================
// Me: GET /v1/auth/me
// ============================================================

// Me returns the authenticated user.
func (s *AuthService) Me(ctx context.Context, userID string) (*domain.User, error) {
	ctx, span := authTracer.Start(ctx, "AuthService.Me")
	defer span.End()

	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// ============================================================
// Internal helpers
// ============================================================

func (s *AuthService) issue(user *domain.User) (*domain.TokenResponse, error) {
	token, err := s.signAccessToken(user.ID, user.TenantID)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}
	return &domain.TokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int(s.accessTTL.Seconds()),
		User:        user,
	}, nil
}

// uniqueSubdomain slugs name and appends a short random suffix while the
// slug is taken.
func (s *AuthService) uniqueSubdomain(ctx context.Context, name string) (string, error) {
	base := Slugify(name)
	candidate := base
	for i := 0; i < maxSubdomainProbes; i++ {
		taken, err := s.store.SubdomainExists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("check subdomain: %w", err)
		}
		if !taken {
			return candidate, nil
		}
		candidate = base + "-" + uuid.NewString()[:6]
	}
	return "", &domain.ErrConflict{Message: fmt.Sprintf("subdomain %q is taken", base)}
}

// Slugify lowercases name and joins its words with "-".
// Characters other than letters and digits are dropped.
func Slugify(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			dash = false
		case unicode.IsSpace(r) || r == '-' || r == '_':
			if b.Len() > 0 && !dash {
				b.WriteByte('-')
				dash = true
			}
		}
	}
	slug := strings.TrimSuffix(b.String(), "-")
	if slug == "" {
		return "tenant"
	}
	return slug
}
