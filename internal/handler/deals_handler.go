package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/AnsKM/dealflow-crm/internal/domain"
	"github.com/AnsKM/dealflow-crm/internal/infra/sheet"
	"github.com/AnsKM/dealflow-crm/internal/insights"
	"github.com/AnsKM/dealflow-crm/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ============================================================
// Deals: CRUD
// ============================================================

func createDealHandler(dealSvc *service.DealService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/deals")
		defer span.End()

		var req domain.CreateDealRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		deal, err := dealSvc.Create(ctx, principal(r), &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusCreated, deal)
	}
}

func listDealsHandler(dealSvc *service.DealService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/deals")
		defer span.End()

		skip, limit, err := parseSkipLimit(r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		resp, err := dealSvc.List(ctx, principal(r), domain.DealFilter{
			Stage: domain.Stage(r.URL.Query().Get("stage")),
			Skip:  skip,
			Limit: limit,
		})
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func getDealHandler(dealSvc *service.DealService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/deals/{dealId}")
		defer span.End()

		dealID := chi.URLParam(r, "dealId")
		span.SetAttributes(attribute.String("deal.id", dealID))

		deal, err := dealSvc.Get(ctx, principal(r), dealID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, deal)
	}
}

func updateDealHandler(dealSvc *service.DealService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PATCH /v1/deals/{dealId}")
		defer span.End()

		dealID := chi.URLParam(r, "dealId")
		span.SetAttributes(attribute.String("deal.id", dealID))

		var req domain.UpdateDealRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		deal, err := dealSvc.Update(ctx, principal(r), dealID, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, deal)
	}
}

func deleteDealHandler(dealSvc *service.DealService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/deals/{dealId}")
		defer span.End()

		dealID := chi.URLParam(r, "dealId")
		span.SetAttributes(attribute.String("deal.id", dealID))

		if err := dealSvc.Delete(ctx, principal(r), dealID); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// ============================================================
// Deals: Bulk
// ============================================================

func bulkCreateHandler(dealSvc *service.DealService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/deals/bulk")
		defer span.End()

		var req domain.BulkCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		resp, err := dealSvc.BulkCreate(ctx, principal(r), req.Deals)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusCreated, resp)
	}
}

func bulkStageHandler(dealSvc *service.DealService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PATCH /v1/deals/bulk/stage")
		defer span.End()

		var req domain.BulkStageRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		resp, err := dealSvc.BulkUpdateStage(ctx, principal(r), &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func bulkDeleteHandler(dealSvc *service.DealService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/deals/bulk/delete")
		defer span.End()

		var req domain.BulkDeleteRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		resp, err := dealSvc.BulkDelete(ctx, principal(r), &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

// ============================================================
// Deals: Spreadsheets
// ============================================================

func importDealsHandler(dealSvc *service.DealService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/deals/import")
		defer span.End()

		r.Body = http.MaxBytesReader(w, r.Body, sheet.MaxImportBytes)
		file, header, err := r.FormFile("file")
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeError(w, http.StatusRequestEntityTooLarge, "file exceeds the import size limit")
				return
			}
			writeError(w, http.StatusBadRequest, "multipart field 'file' is required")
			return
		}
		defer file.Close()

		format := sheet.FormatFromFilename(header.Filename)
		span.SetAttributes(attribute.String("import.format", format))

		resp, err := dealSvc.Import(ctx, principal(r), file, format)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func exportDealsHandler(dealSvc *service.DealService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/deals/export")
		defer span.End()

		data, err := dealSvc.Export(ctx, principal(r))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		w.Header().Set("Content-Type", xlsxContentType)
		w.Header().Set("Content-Disposition", `attachment; filename="deals.xlsx"`)
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		w.WriteHeader(http.StatusOK)
		w.Write(data)
	}
}

// ============================================================
// Deals: Insights
// ============================================================

func insightsHandler(agg *insights.Aggregator, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/deals/insights")
		defer span.End()

		report, err := agg.Report(ctx, principal(r).TenantID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, report)
	}
}
