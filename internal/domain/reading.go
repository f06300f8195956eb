package domain

import (
	"time"

	"github.com/google/uuid"
)

// Card is one drawn tarot card.
type Card struct {
	Name     string `json:"name"`
	Arcana   string `json:"arcana"`
	Reversed bool   `json:"reversed"`
	Position string `json:"position,omitempty"`
}

// CreateReadingParams is the input of a reading request. Cards drawn on the
// client are used as-is; otherwise Spread cards are drawn on the server.
type CreateReadingParams struct {
	Question string
	Language string
	Spread   int
	Cards    []Card
}

// Reading is a generated interpretation of a draw.
type Reading struct {
	ID        uuid.UUID      `json:"id"`
	UserID    uuid.UUID      `json:"user_id"`
	Question  string         `json:"question"`
	Language  string         `json:"language"`
	Cards     []Card         `json:"cards"`
	Text      string         `json:"reading"`
	Model     string         `json:"model"`
	Usage     *UsageConsumed `json:"usage"`
	CreatedAt time.Time      `json:"created_at"`
}

// AIUsage records the token consumption of one provider call.
type AIUsage struct {
	UserID       uuid.UUID
	Model        string
	InputTokens  int
	OutputTokens int
	CostCents    int
}
