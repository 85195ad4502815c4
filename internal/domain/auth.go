package domain

import (
	"net/mail"
	"strings"
	"time"
)

// ============================================================
// Tenants & Users
// ============================================================

// Tenant is an isolated customer account. Every deal belongs to one tenant.
type Tenant struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Subdomain string    `json:"subdomain"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// User is a member of a tenant.
type User struct {
	ID             string    `json:"id"`
	TenantID       string    `json:"tenant_id"`
	Email          string    `json:"email"`
	HashedPassword string    `json:"-"`
	FullName       string    `json:"full_name"`
	IsActive       bool      `json:"is_active"`
	IsAdmin        bool      `json:"is_admin"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// ============================================================
// Auth: Request / Response types
// ============================================================

const minPasswordLength = 8

// RegisterRequest is the body for POST /v1/auth/register.
type RegisterRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	FullName   string `json:"full_name"`
	TenantName string `json:"tenant_name"`
}

// Validate normalises the email and checks required fields.
func (r *RegisterRequest) Validate() error {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.FullName = strings.TrimSpace(r.FullName)
	r.TenantName = strings.TrimSpace(r.TenantName)

	if _, err := mail.ParseAddress(r.Email); err != nil {
		return &ErrValidation{Field: "email", Message: "invalid email address"}
	}
	if len(r.Password) < minPasswordLength {
		return &ErrValidation{Field: "password", Message: "must be at least 8 characters"}
	}
	if err := requiredText("full_name", r.FullName, maxShortText); err != nil {
		return err
	}
	return requiredText("tenant_name", r.TenantName, maxShortText)
}

// LoginRequest is the body for POST /v1/auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenResponse is returned by register and login.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	User        *User  `json:"user"`
}

// Principal identifies the caller of an authenticated request.
type Principal struct {
	UserID   string
	TenantID string
}
