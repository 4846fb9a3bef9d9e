// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sentiment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"

	"github.com/pdiddy/headline-sentiment/internal/resilience"
)

const (
	defaultClaudeModel = string(sdk.ModelClaudeHaiku4_5)
	claudeMaxTokens    = 100
	defaultClaudeChars = 1000
)

const claudeSystemPrompt = `You classify the sentiment of cryptocurrency news headlines toward the Bitcoin price.
Answer with a single JSON object and nothing else:
{"label": "positive" | "negative" | "neutral", "confidence": <number between 0 and 1>}`

// ClaudeModel asks an Anthropic model for a three-class verdict.
type ClaudeModel struct {
	name     string
	model    string
	maxChars int
	client   sdk.Client
}

// NewClaudeModel returns a Claude-backed model. An empty model id selects
// the default Haiku model. Retries are left to the scoring engine.
func NewClaudeModel(name, model, apiKey string, maxChars int, httpClient *http.Client, opts ...option.RequestOption) *ClaudeModel {
	if model == "" {
		model = defaultClaudeModel
	}
	if maxChars <= 0 {
		maxChars = defaultClaudeChars
	}
	base := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if httpClient != nil {
		base = append(base, option.WithHTTPClient(httpClient))
	}
	return &ClaudeModel{
		name:     name,
		model:    model,
		maxChars: maxChars,
		client:   sdk.NewClient(append(base, opts...)...),
	}
}

func (m *ClaudeModel) Name() string { return m.name }

type claudeVerdict struct {
	Label      string   `json:"label"`
	Confidence *float64 `json:"confidence"`
}

// Score sends the headline and parses the JSON verdict from the reply.
func (m *ClaudeModel) Score(ctx context.Context, text string) (Output, error) {
	msg, err := m.client.Messages.New(ctx, sdk.MessageNewParams{
		Model:       sdk.Model(m.model),
		MaxTokens:   claudeMaxTokens,
		System:      []sdk.TextBlockParam{{Text: claudeSystemPrompt}},
		Messages:    []sdk.MessageParam{sdk.NewUserMessage(sdk.NewTextBlock(truncateRunes(text, m.maxChars)))},
		Temperature: sdk.Float(0),
	})
	if err != nil {
		return nil, unavailable(m.name, classifyAPIError(err))
	}

	var reply strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			reply.WriteString(block.Text)
		}
	}
	return parseVerdict(reply.String())
}

// classifyAPIError marks retryable API statuses as transient.
func classifyAPIError(err error) error {
	var apiErr *sdk.Error
	if !errors.As(err, &apiErr) {
		return err
	}
	// 529 is the API's overloaded status.
	if resilience.IsTransientHTTPStatus(apiErr.StatusCode) || apiErr.StatusCode == 529 {
		return resilience.NewTransientError(err, apiErr.StatusCode)
	}
	return err
}

// parseVerdict extracts the first JSON object in reply.
func parseVerdict(reply string) (Output, error) {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end < start {
		return nil, eris.Wrapf(ErrInvalidOutput, "no JSON object in reply %q", reply)
	}

	var v claudeVerdict
	if err := json.Unmarshal([]byte(reply[start:end+1]), &v); err != nil {
		return nil, eris.Wrapf(ErrInvalidOutput, "decoding verdict: %v", err)
	}
	return LabelOutput{Label: v.Label, Confidence: v.Confidence}, nil
}
