package client_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/AnsKM/dealflow-crm/internal/domain"
	"github.com/AnsKM/dealflow-crm/internal/infra/client"
	"github.com/AnsKM/dealflow-crm/internal/infra/observability"
	"github.com/AnsKM/dealflow-crm/internal/infra/resilience"
)

func newGemini(t *testing.T, url string, timeout time.Duration) *client.GeminiClient {
	t.Helper()
	return client.NewGeminiClient(
		client.GeminiConfig{BaseURL: url, APIKey: "test-key", Model: "gemini-test", Timeout: timeout},
		resilience.NewCircuitBreaker(t.Name()),
		resilience.Config{MaxRetries: 2, InitialBackoff: time.Millisecond, MaxConcurrency: 2},
		observability.NewMetrics(),
	)
}

func TestGemini_Generate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1beta/models/gemini-test:generateContent" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("x-goog-api-key") != "test-key" {
			t.Errorf("missing api key header")
		}

		var body struct {
			Contents []struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"contents"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if got := body.Contents[0].Parts[0].Text; got != "suggest actions" {
			t.Errorf("unexpected prompt %q", got)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"candidates": [{"content": {"parts": [{"text": "1. Call the buyer\n"}, {"text": "2. Send the contract"}]}}],
			"usageMetadata": {"promptTokenCount": 42, "candidatesTokenCount": 9}
		}`))
	}))
	defer srv.Close()

	got, err := newGemini(t, srv.URL, time.Second).Generate(context.Background(), "suggest actions")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Text != "1. Call the buyer\n2. Send the contract" {
		t.Errorf("unexpected text %q", got.Text)
	}
	if got.PromptTokens != 42 || got.CompletionTokens != 9 {
		t.Errorf("unexpected usage %+v", got)
	}
}

func TestGemini_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates": [{"content": {"parts": [{"text": "ok"}]}}]}`))
	}))
	defer srv.Close()

	got, err := newGemini(t, srv.URL, time.Second).Generate(context.Background(), "p")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Text != "ok" || calls.Load() != 3 {
		t.Errorf("expected success on third call, got %q after %d", got.Text, calls.Load())
	}
}

func TestGemini_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error": {"code": 400, "message": "API key not valid", "status": "INVALID_ARGUMENT"}}`))
	}))
	defer srv.Close()

	_, err := newGemini(t, srv.URL, time.Second).Generate(context.Background(), "p")

	var extErr *domain.ErrExternalService
	if !errors.As(err, &extErr) {
		t.Fatalf("expected external service error, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("expected a single call, got %d", calls.Load())
	}
}

func TestGemini_EmptyCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates": []}`))
	}))
	defer srv.Close()

	_, err := newGemini(t, srv.URL, time.Second).Generate(context.Background(), "p")
	if err == nil {
		t.Fatal("expected error for empty candidates")
	}
}

func TestGemini_CircuitOpens(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	g := newGemini(t, srv.URL, time.Second)
	for i := 0; i < 5; i++ {
		_, _ = g.Generate(context.Background(), "p")
	}

	_, err := g.Generate(context.Background(), "p")
	var open *domain.ErrCircuitOpen
	if !errors.As(err, &open) {
		t.Errorf("expected circuit open error, got %v", err)
	}
}
