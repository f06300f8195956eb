package mock

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/DukeRupert/arcana/internal/ai"
)

// Provider is a mock AI provider for testing and development
type Provider struct {
	logger *slog.Logger

	mu sync.Mutex

	// Configurable responses for testing
	InterpretResponse *ai.InterpretResult
	InterpretError    error

	// Call tracking for testing
	InterpretCalls int
	LastParams     ai.InterpretParams
}

// New creates a new mock AI provider
func New(logger *slog.Logger) *Provider {
	return &Provider{
		logger: logger,
	}
}

// Interpret returns a canned reading that names every drawn card
func (p *Provider) Interpret(ctx context.Context, params ai.InterpretParams) (*ai.InterpretResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.InterpretCalls++
	p.LastParams = params

	if p.InterpretError != nil {
		return nil, p.InterpretError
	}
	if p.InterpretResponse != nil {
		return p.InterpretResponse, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "## %s\n\n", params.Question)
	for _, c := range params.Cards {
		orientation := "upright"
		if c.Reversed {
			orientation = "reversed"
		}
		fmt.Fprintf(&b, "- **%s** (%s): a moment to pause and reflect.\n", c.Name, orientation)
	}
	b.WriteString("\nTrust the process and take the next small step.")

	p.logger.Debug("mock reading generated", "cards", len(params.Cards))

	return &ai.InterpretResult{
		Text: b.String(),
		Usage: ai.UsageInfo{
			Model:        "mock-ai-v1",
			InputTokens:  420,
			OutputTokens: 380,
			CostCents:    1,
			Duration:     50 * time.Millisecond,
		},
	}, nil
}

// Reset clears call counters and custom responses for testing
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.InterpretCalls = 0
	p.InterpretResponse = nil
	p.InterpretError = nil
	p.LastParams = ai.InterpretParams{}
}
