// Package ai defines the contract between the reading service and the
// language model that interprets a spread.
package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/DukeRupert/arcana/internal/domain"
	"github.com/google/uuid"
)

// ReadingProvider turns a question and drawn cards into reading text.
type ReadingProvider interface {
	Interpret(ctx context.Context, params InterpretParams) (*InterpretResult, error)
}

type InterpretParams struct {
	Question string
	// Language is a BCP 47 tag; providers fall back to English.
	Language string
	// Cards are in spread order.
	Cards  []domain.Card
	UserID uuid.UUID
}

type InterpretResult struct {
	Text  string
	Usage UsageInfo
}

// UsageInfo is reported to metrics only. Nothing is billed per user.
type UsageInfo struct {
	Model        string
	InputTokens  int
	OutputTokens int
	CostCents    int
	Duration     time.Duration
}

// ProviderConfig holds the retry policy shared by remote providers.
type ProviderConfig struct {
	MaxRetries     int
	RetryBaseDelay time.Duration
	RequestTimeout time.Duration
}

var (
	ErrRateLimited    = errors.New("ai provider rate limit exceeded")
	ErrInvalidRequest = errors.New("invalid ai request")
	ErrTimeout        = errors.New("ai request timed out")
	ErrUnavailable    = errors.New("ai service temporarily unavailable")
	ErrUnauthorized   = errors.New("ai provider authentication failed")
)

// IsRetryable reports whether err is transient. Auth and request errors
// will fail the same way on every attempt.
func IsRetryable(err error) bool {
	for _, transient := range []error{ErrRateLimited, ErrTimeout, ErrUnavailable} {
		if errors.Is(err, transient) {
			return true
		}
	}
	return false
}

// WrapError prefixes err with the provider step that produced it.
func WrapError(step string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("ai %s: %w", step, err)
}
