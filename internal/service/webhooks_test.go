package service_test

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/AnsKM/dealflow-crm/internal/domain"
	"github.com/AnsKM/dealflow-crm/internal/infra/observability"
	"github.com/AnsKM/dealflow-crm/internal/service"

	"go.uber.org/zap"
)

const webhookSecret = "hook-secret"

func newWebhookService(store *mockDealStore, secret string) *service.WebhookService {
	return service.NewWebhookService(store, secret, observability.NewMetrics(), zap.NewNop(), service.WithClock(clock))
}

func TestVerifySignature(t *testing.T) {
	svc := newWebhookService(newMockDealStore(), webhookSecret)
	body := []byte(`{"tenant_id":"t","deal_id":"d"}`)
	good := service.Sign([]byte(webhookSecret), body)

	if err := svc.VerifySignature(body, good); err != nil {
		t.Errorf("valid signature rejected: %v", err)
	}
	if err := svc.VerifySignature(body, "sha256="+good); err != nil {
		t.Errorf("prefixed signature rejected: %v", err)
	}

	tests := map[string]string{
		"missing":      "",
		"not hex":      "zz",
		"other secret": service.Sign([]byte("other"), body),
		"other body":   service.Sign([]byte(webhookSecret), []byte("{}")),
	}
	for name, sig := range tests {
		var unauth *domain.ErrUnauthorized
		if err := svc.VerifySignature(body, sig); !errors.As(err, &unauth) {
			t.Errorf("%s: expected unauthorized, got %v", name, err)
		}
	}
}

func TestVerifySignature_NoSecretRejectsAll(t *testing.T) {
	svc := newWebhookService(newMockDealStore(), "")
	body := []byte(`{}`)

	if err := svc.VerifySignature(body, service.Sign(nil, body)); err == nil {
		t.Fatal("expected rejection without a configured secret")
	}
}

func signedCall(t *testing.T, svc *service.WebhookService, hook, body string) (*domain.WebhookEvent, error) {
	t.Helper()
	return svc.Handle(context.Background(), hook, []byte(body), service.Sign([]byte(webhookSecret), []byte(body)))
}

func TestHandle_DealUpdated(t *testing.T) {
	svc := newWebhookService(newMockDealStore(storedDeal("d1", tenantA, domain.StageProposal)), webhookSecret)

	ev, err := signedCall(t, svc, "deal-updated", `{"tenant_id":"tenant-a","deal_id":"d1"}`)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if ev.Event != domain.EventDealUpdated || ev.TenantID != tenantA || !ev.Timestamp.Equal(now) {
		t.Errorf("unexpected event %+v", ev)
	}
	if ev.Deal == nil || ev.Deal.ID != "d1" {
		t.Errorf("deal missing from payload: %+v", ev.Deal)
	}
	if ev.Value != nil || ev.HealthScore != nil {
		t.Error("deal.updated must not carry won or alert fields")
	}
}

func TestHandle_DealWon(t *testing.T) {
	d := storedDeal("d1", tenantA, domain.StageClosedWon)
	d.ContactPerson, d.ContactEmail, d.ContactPhone = "Ada", "ada@example.com", "+49 30 1234"
	svc := newWebhookService(newMockDealStore(d), webhookSecret)

	ev, err := signedCall(t, svc, "deal-won", `{"tenant_id":"tenant-a","deal_id":"d1"}`)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if ev.Event != domain.EventDealWon || ev.Company != "Acme" {
		t.Errorf("unexpected event %+v", ev)
	}
	want := domain.WebhookContact{Name: "Ada", Email: "ada@example.com", Phone: "+49 30 1234"}
	if ev.Contact == nil || *ev.Contact != want {
		t.Errorf("unexpected contact %+v", ev.Contact)
	}
	if ev.Value == nil || ev.Value.StringFixed(2) != "1000.00" {
		t.Errorf("unexpected value %v", ev.Value)
	}
}

func TestHandle_HealthAlertLevels(t *testing.T) {
	tests := []struct {
		score int
		level string
	}{
		{10, domain.AlertCritical},
		{29, domain.AlertCritical},
		{30, domain.AlertWarning},
		{39, domain.AlertWarning},
	}
	for _, tt := range tests {
		d := storedDeal("d1", tenantA, domain.StageLead)
		d.HealthScore = tt.score
		svc := newWebhookService(newMockDealStore(d), webhookSecret)

		ev, err := signedCall(t, svc, "health-alert", `{"tenant_id":"tenant-a","deal_id":"d1"}`)
		if err != nil {
			t.Fatalf("score %d: %v", tt.score, err)
		}
		if ev.AlertLevel != tt.level || ev.HealthScore == nil || *ev.HealthScore != tt.score {
			t.Errorf("score %d: got level %q", tt.score, ev.AlertLevel)
		}
		if !reflect.DeepEqual(ev.RecommendedActions, service.HealthAlertActions) {
			t.Errorf("unexpected actions %v", ev.RecommendedActions)
		}
	}
}

func TestHandle_Errors(t *testing.T) {
	svc := newWebhookService(newMockDealStore(storedDeal("d1", tenantB, domain.StageLead)), webhookSecret)

	var nf *domain.ErrNotFound
	if _, err := signedCall(t, svc, "deal-lost", `{}`); !errors.As(err, &nf) {
		t.Errorf("unknown hook: expected not found, got %v", err)
	}

	var unauth *domain.ErrUnauthorized
	if _, err := svc.Handle(context.Background(), "deal-updated", []byte(`{}`), "bad"); !errors.As(err, &unauth) {
		t.Errorf("bad signature: expected unauthorized, got %v", err)
	}

	var verr *domain.ErrValidation
	if _, err := signedCall(t, svc, "deal-updated", `not json`); !errors.As(err, &verr) {
		t.Errorf("bad body: expected validation error, got %v", err)
	}
	if _, err := signedCall(t, svc, "deal-updated", `{"deal_id":"d1"}`); !errors.As(err, &verr) || verr.Field != "tenant_id" {
		t.Errorf("missing tenant: expected validation error, got %v", err)
	}

	// d1 belongs to tenant-b.
	if _, err := signedCall(t, svc, "deal-updated", `{"tenant_id":"tenant-a","deal_id":"d1"}`); !errors.As(err, &nf) {
		t.Errorf("foreign deal: expected not found, got %v", err)
	}
}

func TestWebhookTest(t *testing.T) {
	resp := newWebhookService(newMockDealStore(), webhookSecret).Test()
	if resp.Status != "ok" || len(resp.AvailableWebhooks) != 3 {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestDealEvent_DropsNextActions(t *testing.T) {
	d := storedDeal("d1", tenantA, domain.StageLead)
	d.NextActions = []string{"call"}

	ev := service.DealEvent(domain.EventDealCreated, &d, now)
	if ev.Deal.NextActions != nil {
		t.Error("next actions must not be published")
	}
	if d.NextActions == nil {
		t.Error("source deal must not be modified")
	}
}
