// Package domain contains core business types and interfaces.
//
// This file defines the User domain type. Users are created on first sight
// of a valid identity token and are never hard-deleted.
package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// User represents a signed-in person.
type User struct {
	ID                  uuid.UUID  `json:"id"`
	ExternalID          string     `json:"-"`
	Email               string     `json:"email"`
	Name                string     `json:"name"`
	AvatarURL           string     `json:"avatar_url,omitempty"`
	MembershipExpiresAt *time.Time `json:"membership_expires_at"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// IsMember reports whether the membership is set and strictly in the future.
func (u *User) IsMember(now time.Time) bool {
	return u.MembershipExpiresAt != nil && u.MembershipExpiresAt.After(now)
}

// PlanAt returns the plan derived from the membership expiry.
func (u *User) PlanAt(now time.Time) Plan {
	if u.IsMember(now) {
		return PlanMember
	}
	return PlanFree
}

// DisplayName returns the user's name or email if name is empty.
func (u *User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}

// Identity is the verified claim set handed over by the identity provider.
type Identity struct {
	Subject   string
	Email     string
	Name      string
	AvatarURL string
}

// NormalizeEmail lowercases and trims an address for comparisons.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
