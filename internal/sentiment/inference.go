// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sentiment

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/rotisserie/eris"

	"github.com/pdiddy/headline-sentiment/internal/httputil"
)

// defaultInferenceChars matches the input limit of BERT-class classifiers.
const defaultInferenceChars = 512

// InferenceModel calls a hosted text-classification endpoint that accepts
// {"inputs": text} and answers with a label distribution, either flat
// ([{"label","score"}...]) or nested one level per input.
type InferenceModel struct {
	name     string
	endpoint string
	token    string
	maxChars int
	client   *httputil.Client
}

// NewInferenceModel returns a model posting to endpoint. token, when set,
// is sent as a bearer token.
func NewInferenceModel(name, endpoint, token string, maxChars int, client *httputil.Client) *InferenceModel {
	if maxChars <= 0 {
		maxChars = defaultInferenceChars
	}
	return &InferenceModel{
		name:     name,
		endpoint: endpoint,
		token:    token,
		maxChars: maxChars,
		client:   client,
	}
}

func (m *InferenceModel) Name() string { return m.name }

type labelScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Score posts text and returns the class distribution.
func (m *InferenceModel) Score(ctx context.Context, text string) (Output, error) {
	body, err := json.Marshal(map[string]string{"inputs": truncateRunes(text, m.maxChars)})
	if err != nil {
		return nil, eris.Wrap(err, "encoding inference request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrapf(err, "building request for %s", m.endpoint)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if m.token != "" {
		req.Header.Set("Authorization", "Bearer "+m.token)
	}

	resp, err := m.client.Do(ctx, req)
	if err != nil {
		return nil, unavailable(m.name, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, unavailable(m.name, eris.Wrap(err, "reading response"))
	}

	scores, err := decodeLabelScores(data)
	if err != nil {
		return nil, err
	}
	probs := make(map[string]float64, len(scores))
	for _, s := range scores {
		probs[s.Label] = s.Score
	}
	return ProbabilityOutput{Probabilities: probs}, nil
}

func decodeLabelScores(data []byte) ([]labelScore, error) {
	var nested [][]labelScore
	if err := json.Unmarshal(data, &nested); err == nil {
		if len(nested) == 0 || len(nested[0]) == 0 {
			return nil, eris.Wrap(ErrInvalidOutput, "empty label distribution")
		}
		return nested[0], nil
	}

	var flat []labelScore
	if err := json.Unmarshal(data, &flat); err != nil {
		return nil, eris.Wrapf(ErrInvalidOutput, "decoding label distribution: %v", err)
	}
	if len(flat) == 0 {
		return nil, eris.Wrap(ErrInvalidOutput, "empty label distribution")
	}
	return flat, nil
}
