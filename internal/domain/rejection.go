package domain

import "fmt"

// RejectReason names why a gate refused a write.
type RejectReason string

const (
	ReasonTopicQuotaExhausted   RejectReason = "topic_quota_exhausted"
	ReasonEventQuotaExhausted   RejectReason = "event_quota_exhausted"
	ReasonDowngradedTopicLocked RejectReason = "downgraded_topic_locked"
	ReasonDailyLimitReached     RejectReason = "daily_limit_reached"
	ReasonCodeNotFound          RejectReason = "not_found"
	ReasonCodeUsed              RejectReason = "used"
	ReasonCodeExpired           RejectReason = "expired"
)

// Rejection is the "rejected" branch of a gate result. It travels as an
// error so callers can keep a single return path; handlers unwrap it with
// errors.As and render the attached quota or usage.
type Rejection struct {
	Op     string
	Reason RejectReason
	Quota  *QuotaSummary
	Usage  *UsageSnapshot
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("%s: rejected: %s", r.Op, r.Reason)
}

// Code maps the reason onto an application error code.
func (r *Rejection) Code() string {
	switch r.Reason {
	case ReasonTopicQuotaExhausted, ReasonEventQuotaExhausted, ReasonDowngradedTopicLocked:
		return EFORBIDDEN
	case ReasonDailyLimitReached:
		return ERATELIMIT
	default:
		return EINVALID
	}
}

// Reject builds a rejection carrying the quota the caller should display.
func Reject(op string, reason RejectReason, quota *QuotaSummary) *Rejection {
	return &Rejection{Op: op, Reason: reason, Quota: quota}
}

// RejectUsage builds a daily_limit_reached rejection.
func RejectUsage(op string, usage *UsageSnapshot) *Rejection {
	return &Rejection{Op: op, Reason: ReasonDailyLimitReached, Usage: usage}
}
