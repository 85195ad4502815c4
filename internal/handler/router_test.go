package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/AnsKM/dealflow-crm/internal/domain"
	"github.com/AnsKM/dealflow-crm/internal/handler"
	"github.com/AnsKM/dealflow-crm/internal/infra/observability"
	"github.com/AnsKM/dealflow-crm/internal/port"
	"github.com/AnsKM/dealflow-crm/internal/service"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

type fakePinger struct {
	name string
	err  error
}

func (p fakePinger) Name() string                 { return p.name }
func (p fakePinger) Ping(_ context.Context) error { return p.err }

func TestHealthz(t *testing.T) {
	router := handler.NewRouter(handler.Services{}, observability.NewMetrics(), zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestHealthz_SnakeCaseFields(t *testing.T) {
	router := handler.NewRouter(handler.Services{
		Pingers: []port.Pinger{fakePinger{name: "postgres"}},
	}, observability.NewMetrics(), zap.NewNop())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	var body struct {
		Services []map[string]any `json:"services"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Services) != 2 {
		t.Fatalf("expected 2 services, got %d", len(body.Services))
	}
	for _, svc := range body.Services {
		for _, key := range []string{"latency_ms", "last_checked"} {
			if _, ok := svc[key]; !ok {
				t.Errorf("%v: missing %q", svc["name"], key)
			}
		}
		for _, key := range []string{"latencyMs", "lastChecked"} {
			if _, ok := svc[key]; ok {
				t.Errorf("%v: unexpected %q", svc["name"], key)
			}
		}
	}
}

func TestHealthz_DegradedWhenDependencyFails(t *testing.T) {
	router := handler.NewRouter(handler.Services{
		Pingers: []port.Pinger{
			fakePinger{name: "postgres"},
			fakePinger{name: "redis", err: errors.New("connection refused")},
		},
	}, observability.NewMetrics(), zap.NewNop())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body domain.HealthStatus
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "degraded" || len(body.Services) != 3 {
		t.Fatalf("unexpected health %+v", body)
	}
	if body.Services[1].Status != "healthy" || body.Services[2].Status != "unhealthy" || body.Services[2].Error == "" {
		t.Errorf("unexpected services %+v", body.Services)
	}
}

func TestReadyz(t *testing.T) {
	router := handler.NewRouter(handler.Services{}, observability.NewMetrics(), zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestPing(t *testing.T) {
	router := handler.NewRouter(handler.Services{}, observability.NewMetrics(), zap.NewNop())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestMetrics(t *testing.T) {
	metrics := observability.NewMetrics()
	metrics.IncrCacheMiss("next_actions")
	router := handler.NewRouter(handler.Services{}, metrics, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "next_actions") {
		t.Error("expected the private registry to be served")
	}
}

func TestCORS_Preflight(t *testing.T) {
	router := handler.NewRouter(handler.Services{CORSOrigins: []string{"https://app.example.com"}}, observability.NewMetrics(), zap.NewNop())

	req := httptest.NewRequest(http.MethodOptions, "/v1/deals", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Errorf("expected allowed origin, got %q", got)
	}
}

func TestJWTAuthMiddleware(t *testing.T) {
	const secret = "router-secret"
	authSvc := service.NewAuthService(nil, secret, time.Hour, zap.NewNop())

	var seen domain.Principal
	protected := handler.JWTAuthMiddleware(authSvc, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = handler.PrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, service.JWTClaims{
		Sub:      "user-1",
		TenantID: "tenant-1",
		Type:     "access",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + token, http.StatusUnauthorized},
		{"garbage", "Bearer nope", http.StatusUnauthorized},
		{"valid", "Bearer " + token, http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			protected.ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, rec.Code)
			}
		})
	}

	if seen.UserID != "user-1" || seen.TenantID != "tenant-1" {
		t.Errorf("unexpected principal %+v", seen)
	}
}
