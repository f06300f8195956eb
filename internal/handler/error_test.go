package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/DukeRupert/arcana/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

// =============================================================================
// Error Response Tests - Security Focus
// =============================================================================

func TestValidationErrorResponse_DoesNotExposeOperationName(t *testing.T) {
	ve := domain.NewValidationError("AdminService.MintCodes", "count", "must be between 1 and 100")

	req := httptest.NewRequest(http.MethodPost, "/api/admin/codes", nil)
	rec := httptest.NewRecorder()
	ValidationErrorResponse(rec, req, discardLogger(), ve)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotContains(t, rec.Body.String(), "AdminService")

	body := decodeBody(t, rec)
	assert.Equal(t, false, body["ok"])
	assert.Equal(t, domain.MsgValidationFailed, body["message"])
	fields := body["fields"].(map[string]any)
	assert.Equal(t, "must be between 1 and 100", fields["count"])
}

func TestErrorResponse_InternalErrorHidesDetails(t *testing.T) {
	dbErr := &mockDatabaseError{message: "connection to 192.168.1.100:5432 refused"}
	internalErr := domain.Internal(dbErr, "TopicRepository.Create", "Database query failed")

	req := httptest.NewRequest(http.MethodPost, "/api/topics", nil)
	rec := httptest.NewRecorder()
	ErrorResponse(rec, req, discardLogger(), internalErr)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	for _, leak := range []string{"192.168", "5432", "TopicRepository", "Database query failed"} {
		assert.NotContains(t, rec.Body.String(), leak)
	}
	body := decodeBody(t, rec)
	assert.Equal(t, domain.MsgInternal, body["message"])
}

func TestErrorResponse_QuotaUnavailable(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/topics", nil)
	rec := httptest.NewRecorder()
	ErrorResponse(rec, req, discardLogger(), domain.ErrQuotaUnavailable)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, domain.MsgDBNotConfigured, decodeBody(t, rec)["message"])
}

func TestErrorResponse_UnwrappedErrorIsInternal(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/topics", nil)
	rec := httptest.NewRecorder()
	ErrorResponse(rec, req, discardLogger(), errors.New("some raw failure"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.False(t, strings.Contains(rec.Body.String(), "raw failure"))
}

func TestErrorResponse_StatusByCode(t *testing.T) {
	testCases := []struct {
		err     error
		status  int
		message string
	}{
		{domain.Invalid("op", domain.MsgMissingTitle), http.StatusBadRequest, domain.MsgMissingTitle},
		{domain.NotFound("op", domain.MsgTopicNotFound), http.StatusNotFound, domain.MsgTopicNotFound},
		{domain.Unauthorized("op"), http.StatusUnauthorized, domain.MsgNotAuthenticated},
		{domain.Forbidden("op", "forbidden"), http.StatusForbidden, "forbidden"},
		{domain.RateLimit("op"), http.StatusTooManyRequests, "rate_limited"},
		{domain.Unavailable(errors.New("upstream"), "op", "ai failed"), http.StatusBadGateway, domain.MsgInternal},
	}

	for _, tc := range testCases {
		t.Run(tc.message, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/x", nil)
			rec := httptest.NewRecorder()
			ErrorResponse(rec, req, discardLogger(), tc.err)

			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.message, decodeBody(t, rec)["message"])
		})
	}
}

// =============================================================================
// Rejection Rendering
// =============================================================================

func TestErrorResponse_TopicRejectionCarriesQuota(t *testing.T) {
	quota := &domain.QuotaSummary{Plan: domain.PlanFree, TopicQuotaTotal: 1, EventQuotaPerTopic: 3}
	err := domain.Reject("topic.create", domain.ReasonTopicQuotaExhausted, quota)

	req := httptest.NewRequest(http.MethodPost, "/api/topics", nil)
	rec := httptest.NewRecorder()
	ErrorResponse(rec, req, discardLogger(), err)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, false, body["ok"])
	assert.Equal(t, "topic_quota_exhausted", body["reason"])
	q := body["quota"].(map[string]any)
	assert.Equal(t, "free", q["plan"])
	assert.EqualValues(t, 0, q["topic_quota_remaining"])
}

func TestErrorResponse_DailyLimitPayload(t *testing.T) {
	usage := domain.NewUsageSnapshot(domain.PlanFree, 2, 2)
	err := domain.RejectUsage("usage.consume", usage)

	req := httptest.NewRequest(http.MethodPost, "/api/usage/consume", nil)
	rec := httptest.NewRecorder()
	ErrorResponse(rec, req, discardLogger(), err)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, false, body["ok"])
	assert.Equal(t, "daily_limit_reached", body["message"])
	assert.Equal(t, "free", body["plan"])
	assert.EqualValues(t, 2, body["used_today"])
	assert.EqualValues(t, 2, body["daily_limit"])
	assert.Equal(t, true, body["requireRedemption"])
}

func TestErrorResponse_RedeemRejection(t *testing.T) {
	err := domain.Reject("codes.redeem", domain.ReasonCodeExpired, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/codes/redeem", nil)
	rec := httptest.NewRecorder()
	ErrorResponse(rec, req, discardLogger(), err)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "expired", body["reason"])
	_, hasQuota := body["quota"]
	assert.False(t, hasQuota)
}

func TestUnauthorizedResponse(t *testing.T) {
	rec := httptest.NewRecorder()
	UnauthorizedResponse(rec, httptest.NewRequest(http.MethodGet, "/api/topics", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	body := decodeBody(t, rec)
	assert.Equal(t, false, body["ok"])
	assert.Equal(t, "not_authenticated", body["message"])
}

// mockDatabaseError simulates a database error with sensitive information.
type mockDatabaseError struct {
	message string
}

func (e *mockDatabaseError) Error() string {
	return e.message
}
