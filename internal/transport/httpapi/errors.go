package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/joeltadeu/pact-shopping-api/internal/domain"
	"github.com/joeltadeu/pact-shopping-api/internal/service/idempotency"
)

const internalErrorMessage = "internal server error"

// statusFor отображает категорию ошибки на HTTP-статус и безопасное сообщение.
// Детали внутренних ошибок наружу не отдаются.
func statusFor(err error) (int, string) {
	var upstream *domain.UpstreamError

	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, domain.ErrBadRequest):
		return http.StatusBadRequest, err.Error()
	case errors.As(err, &upstream):
		return http.StatusServiceUnavailable, fmt.Sprintf("%s service unavailable", upstream.Service)
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		return http.StatusServiceUnavailable, "upstream service unavailable"
	case errors.Is(err, domain.ErrIdempotencyHashMismatch):
		return http.StatusConflict, err.Error()
	case errors.Is(err, idempotency.ErrRequestInProgress):
		return http.StatusConflict, err.Error()
	default:
		return http.StatusInternalServerError, internalErrorMessage
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func errorBody(status int, message string) ErrorResponse {
	return ErrorResponse{
		Status:  status,
		Error:   http.StatusText(status),
		Message: message,
	}
}

func (h *Handler) writeError(w http.ResponseWriter, logger *log.Entry, err error) {
	status, message := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.WithError(err).Error("request failed")
	}
	writeJSON(w, status, errorBody(status, message))
}
