// Package domain contains core business types and interfaces.
//
// This file defines plans, membership cycles and the quota sizing rules
// that derive a cycle's limits from its duration.
package domain

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// Plan is the entitlement tier of a caller.
type Plan string

const (
	PlanGuest  Plan = "guest"
	PlanFree   Plan = "free"
	PlanMember Plan = "member"
)

// CycleSource records why a cycle row was inserted.
type CycleSource string

const (
	CycleSourceRedeem      CycleSource = "redeem"
	CycleSourceMembership  CycleSource = "membership"
	CycleSourceFreeDefault CycleSource = "free-default"
)

// Cycle sizing constants.
const (
	CycleMonthDays           = 30
	FreeCycleDays            = 365
	FreeTopicQuota           = 1
	FreeEventQuotaPerTopic   = 3
	MemberEventQuotaPerTopic = 500
)

// MembershipCycle is one time-bounded entitlement window.
// Rows are append-only; a newer row supersedes older ones.
type MembershipCycle struct {
	ID                 uuid.UUID
	UserID             uuid.UUID
	Plan               Plan
	StartsAt           time.Time
	EndsAt             time.Time
	TopicQuota         int
	EventQuotaPerTopic int
	Source             CycleSource
	CreatedAt          time.Time
}

// ActiveAt reports whether now falls inside [StartsAt, EndsAt).
func (c *MembershipCycle) ActiveAt(now time.Time) bool {
	return !now.Before(c.StartsAt) && now.Before(c.EndsAt)
}

// RedeemTopicQuota sizes a redeemed cycle: one block of 30 topics per
// (rounded) month of duration, never less than one block.
func RedeemTopicQuota(durationDays int) int {
	months := int(math.Floor(float64(durationDays)/CycleMonthDays + 0.5))
	if months < 1 {
		months = 1
	}
	return months * CycleMonthDays
}

// MembershipTopicQuota sizes a membership-derived cycle from the time left
// until expiry, counting any partial month as a full one.
func MembershipTopicQuota(expiresAt, now time.Time) int {
	days := expiresAt.Sub(now).Hours() / 24
	months := int(math.Ceil(days / CycleMonthDays))
	if months < 1 {
		months = 1
	}
	return months * CycleMonthDays
}

// NewRedeemCycle builds the cycle granted by a redemption code. The window
// runs from now until the user's new membership expiry.
func NewRedeemCycle(userID uuid.UUID, durationDays int, now, endsAt time.Time) *MembershipCycle {
	return &MembershipCycle{
		UserID:             userID,
		Plan:               PlanMember,
		StartsAt:           now,
		EndsAt:             endsAt,
		TopicQuota:         RedeemTopicQuota(durationDays),
		EventQuotaPerTopic: MemberEventQuotaPerTopic,
		Source:             CycleSourceRedeem,
	}
}

// DefaultCycle derives the cycle used when a user has no active one.
// Members get a cycle ending at their membership expiry; everyone else
// gets a year-long free cycle.
func DefaultCycle(user *User, now time.Time) *MembershipCycle {
	if user.IsMember(now) {
		return &MembershipCycle{
			UserID:             user.ID,
			Plan:               PlanMember,
			StartsAt:           now,
			EndsAt:             *user.MembershipExpiresAt,
			TopicQuota:         MembershipTopicQuota(*user.MembershipExpiresAt, now),
			EventQuotaPerTopic: MemberEventQuotaPerTopic,
			Source:             CycleSourceMembership,
		}
	}
	return &MembershipCycle{
		UserID:             user.ID,
		Plan:               PlanFree,
		StartsAt:           now,
		EndsAt:             now.AddDate(0, 0, FreeCycleDays),
		TopicQuota:         FreeTopicQuota,
		EventQuotaPerTopic: FreeEventQuotaPerTopic,
		Source:             CycleSourceFreeDefault,
	}
}

// QuotaSummary is the caller-facing view of a user's current allowances.
type QuotaSummary struct {
	Plan                    Plan       `json:"plan"`
	TopicQuotaTotal         int        `json:"topic_quota_total"`
	TopicQuotaRemaining     int        `json:"topic_quota_remaining"`
	EventQuotaPerTopic      int        `json:"event_quota_per_topic"`
	ExpiresAt               *time.Time `json:"expires_at"`
	DowngradeLimitedTopicID *uuid.UUID `json:"downgrade_limited_topic_id"`

	// Cycle is the active cycle the summary was computed from.
	Cycle *MembershipCycle `json:"-"`
}

// NewQuotaSummary computes remaining allowances for a cycle. latestTopicID
// is only honoured on free cycles.
func NewQuotaSummary(cycle *MembershipCycle, topicCount int, latestTopicID *uuid.UUID) *QuotaSummary {
	remaining := cycle.TopicQuota - topicCount
	if remaining < 0 {
		remaining = 0
	}
	expires := cycle.EndsAt
	s := &QuotaSummary{
		Plan:                cycle.Plan,
		TopicQuotaTotal:     cycle.TopicQuota,
		TopicQuotaRemaining: remaining,
		EventQuotaPerTopic:  cycle.EventQuotaPerTopic,
		ExpiresAt:           &expires,
		Cycle:               cycle,
	}
	if cycle.Plan == PlanFree {
		s.DowngradeLimitedTopicID = latestTopicID
	}
	return s
}

// GuestQuotaSummary is returned for unauthenticated callers.
func GuestQuotaSummary() *QuotaSummary {
	return &QuotaSummary{Plan: PlanGuest}
}

// LockedOut reports whether the downgrade lock forbids adding events to topicID.
func (s *QuotaSummary) LockedOut(topicID uuid.UUID) bool {
	return s.Plan == PlanFree &&
		s.DowngradeLimitedTopicID != nil &&
		*s.DowngradeLimitedTopicID != topicID
}

// Decremented returns a copy with one fewer remaining topic, used when the
// post-insert recount fails.
func (s *QuotaSummary) Decremented() *QuotaSummary {
	c := *s
	if c.TopicQuotaRemaining > 0 {
		c.TopicQuotaRemaining--
	}
	return &c
}
