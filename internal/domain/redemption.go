package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// RedemptionCode grants membership days when consumed.
type RedemptionCode struct {
	Code         string     `json:"code"`
	DurationDays int        `json:"duration_days"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	UsedAt       *time.Time `json:"used_at,omitempty"`
	UsedBy       *uuid.UUID `json:"used_by,omitempty"`
	CreatedBy    *uuid.UUID `json:"created_by,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// NormalizeCode trims and upper-cases user input.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Check returns the rejection reason for redeeming c at now, or "" when it
// can be redeemed.
func (c *RedemptionCode) Check(now time.Time) RejectReason {
	if c.UsedAt != nil {
		return ReasonCodeUsed
	}
	if c.ExpiresAt != nil && !c.ExpiresAt.After(now) {
		return ReasonCodeExpired
	}
	return ""
}

// ExtendMembership adds days to whichever is later of now and the current expiry.
func ExtendMembership(current *time.Time, now time.Time, days int) time.Time {
	base := now
	if current != nil && current.After(now) {
		base = *current
	}
	return base.AddDate(0, 0, days)
}

// Redeemed is the success branch of redeeming a code.
type Redeemed struct {
	MembershipExpiresAt time.Time        `json:"membership_expires_at"`
	Plan                Plan             `json:"plan"`
	Cycle               *MembershipCycle `json:"-"`
}

// MintCodesParams is the admin input for generating codes.
type MintCodesParams struct {
	Count        int
	DurationDays int
	ExpiresAt    *time.Time
	CreatedBy    uuid.UUID
}

// Stats are the headline counters shown to admins.
type Stats struct {
	Users         int64 `json:"users"`
	Members       int64 `json:"members"`
	Topics        int64 `json:"topics"`
	Events        int64 `json:"events"`
	CodesIssued   int64 `json:"codes_issued"`
	CodesRedeemed int64 `json:"codes_redeemed"`
	ReadingsToday int64 `json:"readings_today"`
}
