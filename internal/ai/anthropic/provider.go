// Package anthropic generates readings with Anthropic's Messages API.
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/DukeRupert/arcana/internal/ai"
)

const (
	APIBaseURL   = "https://api.anthropic.com/v1/messages"
	APIVersion   = "2023-06-01"
	DefaultModel = "claude-3-5-sonnet-20241022"

	// MaxOutputTokens bounds the length of a reading.
	MaxOutputTokens = 2048

	// Cents per million tokens.
	PricingInputCents  = 300
	PricingOutputCents = 1500

	defaultMaxRetries = 2
)

type Config struct {
	APIKey string
	Model  string
	// BaseURL overrides APIBaseURL.
	BaseURL        string
	ProviderConfig ai.ProviderConfig
}

// Provider implements ai.ReadingProvider.
type Provider struct {
	config Config
	client *http.Client
	logger *slog.Logger
}

// New fills zero config fields with defaults. MaxRetries counts retries
// after the first attempt.
func New(config Config, logger *slog.Logger) (*Provider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}

	if config.Model == "" {
		config.Model = DefaultModel
	}
	if config.BaseURL == "" {
		config.BaseURL = APIBaseURL
	}
	pc := &config.ProviderConfig
	if pc.MaxRetries <= 0 {
		pc.MaxRetries = defaultMaxRetries
	}
	if pc.RetryBaseDelay <= 0 {
		pc.RetryBaseDelay = time.Second
	}
	if pc.RequestTimeout <= 0 {
		pc.RequestTimeout = time.Minute
	}

	return &Provider{
		config: config,
		client: &http.Client{Timeout: pc.RequestTimeout},
		logger: logger.With("provider", "anthropic", "model", config.Model),
	}, nil
}

func (p *Provider) Interpret(ctx context.Context, params ai.InterpretParams) (*ai.InterpretResult, error) {
	began := time.Now()

	if strings.TrimSpace(params.Question) == "" || len(params.Cards) == 0 {
		return nil, ai.WrapError("interpret", ai.ErrInvalidRequest)
	}

	body, err := json.Marshal(apiRequest{
		Model:     p.config.Model,
		MaxTokens: MaxOutputTokens,
		System:    buildSystemPrompt(params.Language),
		Messages: []apiMessage{{
			Role:    "user",
			Content: []apiBlock{{Type: "text", Text: buildReadingPrompt(params.Question, params.Cards)}},
		}},
	})
	if err != nil {
		return nil, ai.WrapError("build request", err)
	}

	resp, err := p.sendWithRetry(ctx, body)
	if err != nil {
		return nil, ai.WrapError("execute request", err)
	}

	text, err := resp.text()
	if err != nil {
		return nil, ai.WrapError("parse response", err)
	}

	in, out := resp.Usage.InputTokens, resp.Usage.OutputTokens
	return &ai.InterpretResult{
		Text: text,
		Usage: ai.UsageInfo{
			Model:        p.config.Model,
			InputTokens:  in,
			OutputTokens: out,
			CostCents:    costCents(in, out),
			Duration:     time.Since(began),
		},
	}, nil
}

// sendWithRetry backs off exponentially between attempts. Only errors
// ai.IsRetryable accepts are retried.
func (p *Provider) sendWithRetry(ctx context.Context, body []byte) (*apiResponse, error) {
	retries := p.config.ProviderConfig.MaxRetries
	delay := p.config.ProviderConfig.RetryBaseDelay

	for attempt := 0; ; attempt++ {
		resp, err := p.send(ctx, body)
		if err == nil {
			return resp, nil
		}
		if !ai.IsRetryable(err) || attempt == retries {
			return nil, err
		}

		p.logger.Info("Retrying AI request", "attempt", attempt+1, "delay", delay, "error", err)
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		}
		delay *= 2
	}
}

// send makes one POST. The body is re-wrapped per attempt because a
// reader can only be consumed once.
func (p *Provider) send(ctx context.Context, body []byte) (*apiResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.BaseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", p.config.APIKey)
	req.Header.Set("anthropic-version", APIVersion)

	res, err := p.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		// Connection failures and client timeouts are worth another try.
		return nil, fmt.Errorf("%w: %v", ai.ErrUnavailable, err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ai.ErrUnavailable, err)
	}
	if res.StatusCode != http.StatusOK {
		return nil, statusError(res.StatusCode, raw)
	}

	var out apiResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &out, nil
}

func costCents(inputTokens, outputTokens int) int {
	return (inputTokens*PricingInputCents + outputTokens*PricingOutputCents) / 1_000_000
}
