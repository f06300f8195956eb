package domain

import (
	"time"

	"github.com/google/uuid"
)

// DailyLimits maps plans to readings allowed per calendar day.
type DailyLimits struct {
	Free   int
	Member int
}

// For returns the limit for a plan. Anything that is not a member is free.
func (l DailyLimits) For(plan Plan) int {
	if plan == PlanMember {
		return l.Member
	}
	return l.Free
}

// DailyUsage is the counter row keyed by (user, date).
type DailyUsage struct {
	UserID    uuid.UUID
	UsageDate time.Time
	Count     int
}

// UsageConsumed is the success branch of consuming a reading.
type UsageConsumed struct {
	Plan       Plan `json:"plan"`
	Remaining  int  `json:"remaining"`
	DailyLimit int  `json:"daily_limit"`
}

// UsageSnapshot describes today's counter without consuming it.
// It is also the payload of a daily_limit_reached rejection.
type UsageSnapshot struct {
	Plan              Plan `json:"plan"`
	UsedToday         int  `json:"used_today"`
	Remaining         int  `json:"remaining"`
	DailyLimit        int  `json:"daily_limit"`
	RequireRedemption bool `json:"requireRedemption"`
}

// NewUsageSnapshot clamps remaining at zero.
func NewUsageSnapshot(plan Plan, used, limit int) *UsageSnapshot {
	remaining := limit - used
	if remaining < 0 {
		remaining = 0
	}
	return &UsageSnapshot{
		Plan:              plan,
		UsedToday:         used,
		Remaining:         remaining,
		DailyLimit:        limit,
		RequireRedemption: plan == PlanFree,
	}
}

// UsageDay truncates t to the calendar day in loc.
func UsageDay(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
}
