package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestNormalizeCode(t *testing.T) {
	assert.Equal(t, "ARCANA-7F3K", NormalizeCode("  arcana-7f3k\n"))
}

func TestRedemptionCode_Check(t *testing.T) {
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)
	user := uuid.New()

	tests := []struct {
		name string
		code RedemptionCode
		want RejectReason
	}{
		{"fresh", RedemptionCode{DurationDays: 30}, ""},
		{"not yet expired", RedemptionCode{ExpiresAt: &future}, ""},
		{"expired", RedemptionCode{ExpiresAt: &past}, ReasonCodeExpired},
		{"expires exactly now", RedemptionCode{ExpiresAt: &now}, ReasonCodeExpired},
		{"used", RedemptionCode{UsedAt: &past, UsedBy: &user}, ReasonCodeUsed},
		{"used wins over expired", RedemptionCode{UsedAt: &past, ExpiresAt: &past}, ReasonCodeUsed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.code.Check(now))
		})
	}
}

func TestExtendMembership(t *testing.T) {
	later := now.AddDate(0, 0, 10)
	earlier := now.AddDate(0, 0, -10)

	assert.Equal(t, now.AddDate(0, 0, 30), ExtendMembership(nil, now, 30))
	assert.Equal(t, now.AddDate(0, 0, 30), ExtendMembership(&earlier, now, 30), "lapsed membership restarts from now")
	assert.Equal(t, later.AddDate(0, 0, 30), ExtendMembership(&later, now, 30), "active membership stacks")
}

func TestRejection_Code(t *testing.T) {
	tests := []struct {
		reason RejectReason
		want   string
	}{
		{ReasonTopicQuotaExhausted, EFORBIDDEN},
		{ReasonEventQuotaExhausted, EFORBIDDEN},
		{ReasonDowngradedTopicLocked, EFORBIDDEN},
		{ReasonDailyLimitReached, ERATELIMIT},
		{ReasonCodeNotFound, EINVALID},
		{ReasonCodeUsed, EINVALID},
		{ReasonCodeExpired, EINVALID},
	}
	for _, tt := range tests {
		t.Run(string(tt.reason), func(t *testing.T) {
			err := fmt.Errorf("wrapped: %w", Reject("test.op", tt.reason, nil))
			assert.Equal(t, tt.want, ErrorCode(err))
			assert.Equal(t, string(tt.reason), ErrorMessage(err))
			assert.Equal(t, "test.op", ErrorOp(err))
		})
	}
}

func TestErrorMessage_HidesInternalCauses(t *testing.T) {
	cause := errors.New("pq: connection refused")

	tests := []struct {
		name     string
		err      error
		wantCode string
		wantMsg  string
	}{
		{"internal with cause", Internal(cause, "topic.create", "could not save"), EINTERNAL, MsgInternal},
		{"unavailable with cause", Unavailable(cause, "reading.create", "provider down"), EUNAVAILABLE, MsgInternal},
		{"quota unavailable", ErrQuotaUnavailable, EINTERNAL, MsgDBNotConfigured},
		{"not found", NotFound("topic.get", MsgTopicNotFound), ENOTFOUND, MsgTopicNotFound},
		{"validation", NewValidationError("topic.create", "title", "required"), EINVALID, MsgValidationFailed},
		{"plain error", cause, EINTERNAL, MsgInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantCode, ErrorCode(tt.err))
			assert.Equal(t, tt.wantMsg, ErrorMessage(tt.err))
		})
	}

	assert.Empty(t, ErrorCode(nil))
	assert.Empty(t, ErrorMessage(nil))
	assert.ErrorIs(t, Internal(cause, "op", "msg"), cause)
}
