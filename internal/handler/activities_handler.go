package handler

import (
	"net/http"

	"github.com/AnsKM/dealflow-crm/internal/domain"
	"github.com/AnsKM/dealflow-crm/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func createActivityHandler(activitySvc *service.ActivityService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/activities")
		defer span.End()

		var req domain.CreateActivityRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		activity, err := activitySvc.Log(ctx, principal(r), &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusCreated, activity)
	}
}

func listActivitiesHandler(activitySvc *service.ActivityService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/activities/deal/{dealId}")
		defer span.End()

		activities, err := activitySvc.ListForDeal(ctx, principal(r), chi.URLParam(r, "dealId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, activities)
	}
}
