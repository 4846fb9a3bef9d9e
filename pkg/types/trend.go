// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// TrendWindow summarizes headline sentiment over the half-open interval
// [WindowStart, WindowEnd). It is always recomputable from the headline
// records and is never stored as ground truth.
type TrendWindow struct {
	WindowStart time.Time `json:"window_start" yaml:"window_start"`
	WindowEnd   time.Time `json:"window_end" yaml:"window_end"`

	// PerModelMeanPolarity holds, per model, the mean polarity over the
	// headlines in the window that carry that model's score.
	PerModelMeanPolarity map[string]float64 `json:"per_model_mean_polarity" yaml:"per_model_mean_polarity"`

	// PerModelCount is the number of headlines contributing to each mean.
	PerModelCount map[string]int `json:"per_model_count" yaml:"per_model_count"`

	// Count is the number of headlines published in the window, scored or not.
	Count int `json:"count" yaml:"count"`

	// Divergence is the mean squared pairwise difference of the per-model
	// means, scaled into [0, 1]. Zero when the models agree exactly.
	Divergence float64 `json:"divergence" yaml:"divergence"`

	// AgreementScore is 1 - Divergence.
	AgreementScore float64 `json:"agreement_score" yaml:"agreement_score"`
}

// Models returns the model names present in the window, sorted.
func (w TrendWindow) Models() []string {
	return sortedKeys(w.PerModelMeanPolarity)
}
