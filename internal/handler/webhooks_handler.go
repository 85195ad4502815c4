package handler

import (
	"io"
	"net/http"

	"github.com/AnsKM/dealflow-crm/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const maxWebhookBody = 64 << 10

// webhookHandler serves the signed automation hooks. The raw body is read
// once so the signature is checked against exactly what was sent.
func webhookHandler(webhookSvc *service.WebhookService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hook := chi.URLParam(r, "hook")
		ctx, span := tracer.Start(r.Context(), "POST /v1/webhooks/{hook}")
		defer span.End()
		span.SetAttributes(attribute.String("webhook", hook))

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		event, err := webhookSvc.Handle(ctx, hook, body, r.Header.Get(service.SignatureHeader))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, event)
	}
}

func webhookTestHandler(webhookSvc *service.WebhookService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, webhookSvc.Test())
	}
}
