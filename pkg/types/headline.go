// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types holds the domain records and configuration structs shared
// across the ingestion, scoring, and trend packages.
package types

import "time"

// Label is the three-class sentiment label attached to every score.
type Label string

const (
	LabelNegative Label = "negative"
	LabelNeutral  Label = "neutral"
	LabelPositive Label = "positive"
)

// Valid reports whether l is one of the three known labels.
func (l Label) Valid() bool {
	switch l {
	case LabelNegative, LabelNeutral, LabelPositive:
		return true
	}
	return false
}

// Sign returns -1, 0, or +1 for negative, neutral, and positive.
func (l Label) Sign() float64 {
	switch l {
	case LabelNegative:
		return -1
	case LabelPositive:
		return 1
	}
	return 0
}

// TimeProvenance records where a headline's PublishedAt came from.
type TimeProvenance string

const (
	// ProvenanceSource means the source reported the timestamp.
	ProvenanceSource TimeProvenance = "source"

	// ProvenanceIngested means the source had no timestamp and the
	// ingestion time was used instead.
	ProvenanceIngested TimeProvenance = "ingested"
)

// RawItem is one entry returned by a source poll, before canonicalization.
type RawItem struct {
	Title       string     `json:"title" yaml:"title"`
	PublishedAt *time.Time `json:"published_at,omitempty" yaml:"published_at,omitempty"`
	URL         string     `json:"url,omitempty" yaml:"url,omitempty"`
}

// Headline is one observed news item with its accumulated sentiment scores.
type Headline struct {
	// ID is derived from the canonical title and the published bucket, so
	// re-ingesting the same observation maps onto the same record.
	ID string `json:"id" yaml:"id"`

	// Source is the adapter name that first reported the headline.
	Source string `json:"source" yaml:"source"`

	// Title is the canonical title text.
	Title string `json:"title" yaml:"title"`

	URL string `json:"url,omitempty" yaml:"url,omitempty"`

	PublishedAt    time.Time      `json:"published_at" yaml:"published_at"`
	TimeProvenance TimeProvenance `json:"time_provenance" yaml:"time_provenance"`

	// IngestedAt is set on first successful insert and never changes.
	IngestedAt time.Time `json:"ingested_at" yaml:"ingested_at"`

	// Scores maps model name to that model's latest score.
	Scores map[string]SentimentScore `json:"scores,omitempty" yaml:"scores,omitempty"`
}

// HasScore reports whether the headline carries a score from model.
func (h *Headline) HasScore(model string) bool {
	_, ok := h.Scores[model]
	return ok
}

// MissingModels returns the names in models that have no score on h,
// preserving the order of models.
func (h *Headline) MissingModels(models []string) []string {
	var missing []string
	for _, m := range models {
		if !h.HasScore(m) {
			missing = append(missing, m)
		}
	}
	return missing
}

// ScoredModels returns the names of the models that scored h, sorted.
func (h *Headline) ScoredModels() []string {
	return sortedKeys(h.Scores)
}

// SentimentScore is one model's normalized verdict on a headline.
type SentimentScore struct {
	Model    string  `json:"model" yaml:"model"`
	Label    Label   `json:"label" yaml:"label"`
	Polarity float64 `json:"polarity" yaml:"polarity"`

	// Confidence is nil when the model does not emit one.
	Confidence *float64 `json:"confidence,omitempty" yaml:"confidence,omitempty"`

	ScoredAt time.Time `json:"scored_at" yaml:"scored_at"`
}

// PricePoint is one daily BTC/USD close.
type PricePoint struct {
	Day time.Time `json:"day" yaml:"day"`
	USD float64   `json:"usd" yaml:"usd"`
}
