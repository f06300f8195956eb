package anthropic

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/DukeRupert/arcana/internal/ai"
)

// Wire types for the Messages API. Only the fields a reading needs.

type apiRequest struct {
	Model     string       `json:"model"`
	MaxTokens int          `json:"max_tokens"`
	System    string       `json:"system,omitempty"`
	Messages  []apiMessage `json:"messages"`
}

type apiMessage struct {
	Role    string     `json:"role"`
	Content []apiBlock `json:"content"`
}

type apiBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type apiResponse struct {
	ID      string     `json:"id"`
	Model   string     `json:"model"`
	Content []apiBlock `json:"content"`
	Usage   struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

type apiErrorBody struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// 529 is Anthropic's "overloaded".
const statusOverloaded = 529

var statusErrors = map[int]error{
	http.StatusUnauthorized:       ai.ErrUnauthorized,
	http.StatusForbidden:          ai.ErrUnauthorized,
	http.StatusTooManyRequests:    ai.ErrRateLimited,
	http.StatusRequestTimeout:     ai.ErrTimeout,
	http.StatusBadGateway:         ai.ErrUnavailable,
	http.StatusServiceUnavailable: ai.ErrUnavailable,
	http.StatusGatewayTimeout:     ai.ErrUnavailable,
	statusOverloaded:              ai.ErrUnavailable,
}

// statusError turns a non-200 reply into one of the ai sentinels so the
// retry loop can tell transient failures from permanent ones.
func statusError(status int, body []byte) error {
	var eb apiErrorBody
	_ = json.Unmarshal(body, &eb)

	if status == http.StatusBadRequest {
		return fmt.Errorf("%w: %s", ai.ErrInvalidRequest, eb.Error.Message)
	}
	if err, ok := statusErrors[status]; ok {
		return err
	}
	return fmt.Errorf("anthropic status %d: %s", status, eb.Error.Message)
}

// text joins the non-empty text blocks of a reply.
func (r *apiResponse) text() (string, error) {
	var parts []string
	for _, b := range r.Content {
		if b.Type == "text" && b.Text != "" {
			parts = append(parts, b.Text)
		}
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("response carried no text")
	}
	return strings.Join(parts, "\n\n"), nil
}
