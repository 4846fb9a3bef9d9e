// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sentiment

import (
	"math"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/pdiddy/headline-sentiment/pkg/types"
)

// ErrInvalidOutput marks a model response that cannot be normalized.
var ErrInvalidOutput = eris.New("invalid model output")

// NeutralBand is the polarity magnitude below which a continuous score is
// labeled neutral.
const NeutralBand = 0.05

// Output is a raw model verdict in one of the supported families:
// LabelOutput, ProbabilityOutput, or ContinuousOutput.
type Output interface {
	normalize() (label types.Label, polarity float64, confidence *float64, err error)
}

// LabelOutput is a three-class verdict with an optional confidence.
// Polarity is the label sign times the confidence, or the bare sign when
// no confidence is given.
type LabelOutput struct {
	Label      string
	Confidence *float64
}

// ProbabilityOutput is a distribution over class labels. Polarity is
// P(positive) - P(negative); the label is the most probable class and the
// confidence its probability.
type ProbabilityOutput struct {
	Probabilities map[string]float64
}

// ContinuousOutput is a score on a native [Min, Max] scale, mapped linearly
// onto [-1, 1]. It carries no confidence.
type ContinuousOutput struct {
	Value float64
	Min   float64
	Max   float64
}

// labelAliases maps the label spellings models use onto the three classes.
var labelAliases = map[string]types.Label{
	"positive": types.LabelPositive,
	"pos":      types.LabelPositive,
	"bullish":  types.LabelPositive,
	"negative": types.LabelNegative,
	"neg":      types.LabelNegative,
	"bearish":  types.LabelNegative,
	"neutral":  types.LabelNeutral,
	"neu":      types.LabelNeutral,
}

// ParseLabel resolves a model label spelling to a Label.
func ParseLabel(raw string) (types.Label, bool) {
	l, ok := labelAliases[strings.ToLower(strings.TrimSpace(raw))]
	return l, ok
}

func (o LabelOutput) normalize() (types.Label, float64, *float64, error) {
	label, ok := ParseLabel(o.Label)
	if !ok {
		return "", 0, nil, eris.Wrapf(ErrInvalidOutput, "unknown label %q", o.Label)
	}
	weight := 1.0
	var conf *float64
	if o.Confidence != nil {
		c := *o.Confidence
		if math.IsNaN(c) || c < 0 || c > 1 {
			return "", 0, nil, eris.Wrapf(ErrInvalidOutput, "confidence %v outside [0, 1]", c)
		}
		weight = c
		conf = &c
	}
	return label, label.Sign() * weight, conf, nil
}

func (o ProbabilityOutput) normalize() (types.Label, float64, *float64, error) {
	probs := make(map[types.Label]float64, 3)
	for raw, p := range o.Probabilities {
		label, ok := ParseLabel(raw)
		if !ok {
			continue
		}
		if math.IsNaN(p) || p < 0 || p > 1 {
			return "", 0, nil, eris.Wrapf(ErrInvalidOutput, "probability %v for %q outside [0, 1]", p, raw)
		}
		probs[label] += p
	}
	if len(probs) == 0 {
		return "", 0, nil, eris.Wrap(ErrInvalidOutput, "no recognized labels in distribution")
	}

	// Ties resolve toward neutral, then negative.
	best := types.LabelNeutral
	bestP := -1.0
	for _, l := range []types.Label{types.LabelNeutral, types.LabelNegative, types.LabelPositive} {
		if p, ok := probs[l]; ok && p > bestP {
			best, bestP = l, p
		}
	}
	conf := bestP
	return best, clampUnit(probs[types.LabelPositive] - probs[types.LabelNegative]), &conf, nil
}

func (o ContinuousOutput) normalize() (types.Label, float64, *float64, error) {
	if !(o.Max > o.Min) {
		return "", 0, nil, eris.Wrapf(ErrInvalidOutput, "empty range [%v, %v]", o.Min, o.Max)
	}
	if math.IsNaN(o.Value) || o.Value < o.Min || o.Value > o.Max {
		return "", 0, nil, eris.Wrapf(ErrInvalidOutput, "value %v outside [%v, %v]", o.Value, o.Min, o.Max)
	}
	polarity := clampUnit(2*(o.Value-o.Min)/(o.Max-o.Min) - 1)

	label := types.LabelNeutral
	switch {
	case polarity >= NeutralBand:
		label = types.LabelPositive
	case polarity <= -NeutralBand:
		label = types.LabelNegative
	}
	return label, polarity, nil, nil
}

// Normalize converts out into a SentimentScore for model, scored at at.
func Normalize(model string, out Output, at time.Time) (types.SentimentScore, error) {
	if out == nil {
		return types.SentimentScore{}, eris.Wrap(ErrInvalidOutput, "nil output")
	}
	label, polarity, conf, err := out.normalize()
	if err != nil {
		return types.SentimentScore{}, err
	}
	return types.SentimentScore{
		Model:      model,
		Label:      label,
		Polarity:   polarity,
		Confidence: conf,
		ScoredAt:   at.UTC(),
	}, nil
}

func clampUnit(v float64) float64 {
	return math.Max(-1, math.Min(1, v))
}
