package handlers

import (
	"errors"
	"net/http"

	"github.com/nkiryanov/cardissuer/internal/apperrors"
	"github.com/nkiryanov/cardissuer/internal/handlers/render"
	"github.com/nkiryanov/cardissuer/internal/logger"
	"github.com/nkiryanov/cardissuer/internal/metrics"
	"github.com/nkiryanov/cardissuer/internal/models"
	"github.com/nkiryanov/cardissuer/internal/service/processing"
)

func handleWebhook(processor processorService, l logger.Logger) http.Handler {
	type response struct {
		Code   string `json:"code"`
		Status string `json:"status"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req, err := render.BindAndValidate[processing.SchemaRequest](w, r)
		if err != nil {
			metrics.WebhookRequests.WithLabelValues(req.Type, "invalid").Inc()
			return
		}

		transaction, err := processor.Process(r.Context(), req)

		switch {
		case err == nil:
			metrics.WebhookRequests.WithLabelValues(req.Type, "ok").Inc()
			render.JSON(w, response{
				Code:   transaction.Code,
				Status: models.StatusName(transaction.Status),
			})
			return
		case errors.Is(err, apperrors.ErrAlreadyDone):
			render.ServiceError(w, "Already processed", http.StatusConflict)
		case errors.Is(err, apperrors.ErrTransactionNotFound):
			render.ServiceError(w, "No such transaction", http.StatusNotFound)
		case errors.Is(err, apperrors.ErrNotEnoughMoney):
			render.ServiceError(w, "Not enough money", http.StatusForbidden)
		case errors.Is(err, apperrors.ErrInvalidFormat):
			render.ServiceError(w, "Invalid request", http.StatusBadRequest)
		case errors.Is(err, apperrors.ErrInvalidUser):
			render.ServiceError(w, "Unknown card", http.StatusNotAcceptable)
		case errors.Is(err, apperrors.ErrInvalidConfiguration):
			l.Error("Webhook hit broken configuration", "error", err, "code", req.TransactionID)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		default:
			l.Error("Failed to process webhook", "error", err, "code", req.TransactionID)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}

		metrics.WebhookRequests.WithLabelValues(req.Type, "error").Inc()
	})
}
