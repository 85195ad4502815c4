package observability_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/AnsKM/dealflow-crm/internal/infra/observability"

	"github.com/go-chi/chi/v5/middleware"
	dto "github.com/prometheus/client_model/go"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func counterValue(t *testing.T, m *observability.Metrics, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			if matchLabels(metric, labels) {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func matchLabels(metric *dto.Metric, want map[string]string) bool {
	got := make(map[string]string)
	for _, lp := range metric.GetLabel() {
		got[lp.GetName()] = lp.GetValue()
	}
	for k, v := range want {
		if got[k] != v {
			return false
		}
	}
	return true
}

func TestNewMetrics_IndependentRegistries(t *testing.T) {
	a := observability.NewMetrics()
	b := observability.NewMetrics()

	a.IncrRecommendation("fallback", "lead")
	a.IncrRecommendation("fallback", "lead")

	if got := counterValue(t, a, "dealflow_recommendations_total", map[string]string{"source": "fallback", "stage": "lead"}); got != 2 {
		t.Errorf("expected 2, got %v", got)
	}
	if got := counterValue(t, b, "dealflow_recommendations_total", nil); got != 0 {
		t.Errorf("expected fresh registry, got %v", got)
	}
}

func TestMetrics_Counters(t *testing.T) {
	m := observability.NewMetrics()

	m.RecordTokens(120, 30)
	m.AddDealsMutated("bulk_create", 4)
	m.IncrWebhook("deal.won", "ok")
	m.ObserveHealthScore(75)

	if got := counterValue(t, m, "dealflow_llm_tokens_total", map[string]string{"type": "prompt"}); got != 120 {
		t.Errorf("expected 120 prompt tokens, got %v", got)
	}
	if got := counterValue(t, m, "dealflow_deals_mutated_total", map[string]string{"operation": "bulk_create"}); got != 4 {
		t.Errorf("expected 4 deals, got %v", got)
	}
	if got := counterValue(t, m, "dealflow_webhooks_total", map[string]string{"event": "deal.won", "status": "ok"}); got != 1 {
		t.Errorf("expected 1 webhook, got %v", got)
	}
}

func TestZapLoggerMiddleware_Levels(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	logger := zap.New(core)

	h := middleware.RequestID(observability.ZapLoggerMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/missing":
			w.WriteHeader(http.StatusNotFound)
		case "/boom":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.WriteHeader(http.StatusOK)
		}
	})))

	for _, path := range []string{"/v1/deals", "/missing", "/boom", "/healthz"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	entries := logs.All()
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries (probe skipped), got %d", len(entries))
	}
	wantLevels := []string{"info", "warn", "error"}
	for i, e := range entries {
		if e.Level.String() != wantLevels[i] {
			t.Errorf("entry %d: expected %s, got %s", i, wantLevels[i], e.Level)
		}
		if e.ContextMap()["request_id"] == "" {
			t.Errorf("entry %d: missing request id", i)
		}
	}
}

func TestNewLogger_UnknownLevelFallsBackToInfo(t *testing.T) {
	logger := observability.NewLogger("verbose")
	if logger.Core().Enabled(zap.DebugLevel) {
		t.Error("debug should be disabled")
	}
	if !logger.Core().Enabled(zap.InfoLevel) {
		t.Error("info should be enabled")
	}
}
