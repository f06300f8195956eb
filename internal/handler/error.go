package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/DukeRupert/arcana/internal/domain"
	"github.com/DukeRupert/arcana/internal/metrics"
)

// =============================================================================
// Response Envelopes
// =============================================================================

// errorBody is the envelope of every failed API call.
type errorBody struct {
	OK      bool              `json:"ok"`
	Message string            `json:"message,omitempty"`
	Code    string            `json:"code,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// quotaRejectionBody is returned when a topic or event gate refuses a write.
type quotaRejectionBody struct {
	OK     bool                 `json:"ok"`
	Reason domain.RejectReason  `json:"reason"`
	Quota  *domain.QuotaSummary `json:"quota,omitempty"`
}

// dailyLimitBody is returned when the daily reading allowance is spent.
type dailyLimitBody struct {
	OK                bool        `json:"ok"`
	Message           string      `json:"message"`
	Plan              domain.Plan `json:"plan"`
	UsedToday         int         `json:"used_today"`
	Remaining         int         `json:"remaining"`
	DailyLimit        int         `json:"daily_limit"`
	RequireRedemption bool        `json:"requireRedemption"`
}

// writeJSON encodes v with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// =============================================================================
// Error Response Helpers
// =============================================================================

// ErrorResponse writes the JSON error for err. Gate rejections render with
// their quota or usage payload; everything else uses the code/message envelope.
func ErrorResponse(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var rej *domain.Rejection
	if errors.As(err, &rej) {
		RejectionResponse(w, r, logger, rej)
		return
	}

	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		ValidationErrorResponse(w, r, logger, ve)
		return
	}

	code := domain.ErrorCode(err)
	status := ErrorCodeToHTTPStatus(code)
	logError(logger, r, err, status)

	writeJSON(w, status, errorBody{
		Message: domain.ErrorMessage(err),
		Code:    code,
	})
}

// RejectionResponse renders a gate rejection.
func RejectionResponse(w http.ResponseWriter, r *http.Request, logger *slog.Logger, rej *domain.Rejection) {
	metrics.QuotaRejections.WithLabelValues(string(rej.Reason)).Inc()

	status := ErrorCodeToHTTPStatus(rej.Code())
	logger.Info("request rejected",
		"method", r.Method,
		"path", r.URL.Path,
		"status", status,
		"op", rej.Op,
		"reason", rej.Reason,
	)

	if rej.Reason == domain.ReasonDailyLimitReached && rej.Usage != nil {
		writeJSON(w, status, dailyLimitBody{
			Message:           string(rej.Reason),
			Plan:              rej.Usage.Plan,
			UsedToday:         rej.Usage.UsedToday,
			Remaining:         rej.Usage.Remaining,
			DailyLimit:        rej.Usage.DailyLimit,
			RequireRedemption: rej.Usage.RequireRedemption,
		})
		return
	}

	writeJSON(w, status, quotaRejectionBody{
		Reason: rej.Reason,
		Quota:  rej.Quota,
	})
}

// ErrorCodeToHTTPStatus maps domain error codes to HTTP status codes.
func ErrorCodeToHTTPStatus(code string) int {
	switch code {
	case domain.EINVALID:
		return http.StatusBadRequest
	case domain.EUNAUTHORIZED:
		return http.StatusUnauthorized
	case domain.EFORBIDDEN:
		return http.StatusForbidden
	case domain.ENOTFOUND:
		return http.StatusNotFound
	case domain.ECONFLICT:
		return http.StatusConflict
	case domain.ERATELIMIT:
		return http.StatusTooManyRequests
	case domain.EUNAVAILABLE:
		return http.StatusBadGateway
	case domain.EINTERNAL:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// ValidationErrorResponse writes field-level validation failures.
// The operation name stays in the logs.
func ValidationErrorResponse(w http.ResponseWriter, r *http.Request, logger *slog.Logger, ve *domain.ValidationError) {
	logger.Info("validation error",
		"method", r.Method,
		"path", r.URL.Path,
		"op", ve.Op,
		"fields", ve.Fields,
	)

	writeJSON(w, http.StatusBadRequest, errorBody{
		Message: domain.MsgValidationFailed,
		Code:    domain.EINVALID,
		Fields:  ve.Fields,
	})
}

// MessageResponse writes {ok:false, message} with the given status.
func MessageResponse(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorBody{Message: message})
}

// UnauthorizedResponse writes the 401 returned to anonymous callers.
func UnauthorizedResponse(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusUnauthorized, errorBody{
		Message: domain.MsgNotAuthenticated,
		Code:    domain.EUNAUTHORIZED,
	})
}

// ForbiddenResponse writes a 403 permission error.
func ForbiddenResponse(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusForbidden, errorBody{
		Message: "forbidden",
		Code:    domain.EFORBIDDEN,
	})
}

// NotFoundResponse writes a 404 for unknown routes.
func NotFoundResponse(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, errorBody{
		Message: "not_found",
		Code:    domain.ENOTFOUND,
	})
}

// logError logs errors at the appropriate level.
// 5xx errors are logged at Error level, 4xx at Info level.
func logError(logger *slog.Logger, r *http.Request, err error, status int) {
	attrs := []any{
		"method", r.Method,
		"path", r.URL.Path,
		"status", status,
		"error", err.Error(),
	}

	if op := domain.ErrorOp(err); op != "" {
		attrs = append(attrs, "op", op)
	}

	if status >= 500 {
		logger.Error("server error", attrs...)
	} else {
		logger.Info("client error", attrs...)
	}
}
