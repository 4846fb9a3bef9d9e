// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sentiment

import (
	"context"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
)

// Crypto-market vocabulary. Stems match as word prefixes so "surge",
// "surges", and "surging" all count; short words match exactly.
var (
	positiveStems = []string{
		"surg", "rall", "soar", "gain", "bull", "record", "adopt", "approv",
		"inflow", "rising", "jump", "boost", "breakout", "upgrad", "optimis",
		"recover", "rebound", "climb", "spike", "partnership", "launch",
		"growth", "profit",
	}
	positiveWords = map[string]bool{
		"high": true, "highs": true, "rise": true, "rises": true, "rose": true,
		"win": true, "wins": true, "grow": true, "grows": true, "up": true,
		"support": true, "supports": true,
	}
	negativeStems = []string{
		"crash", "plung", "drop", "fall", "bear", "hack", "lawsuit", "selloff",
		"sell-off", "declin", "slump", "fraud", "outflow", "fear", "liquidat",
		"dump", "reject", "warn", "collaps", "tumbl", "scam", "exploit",
		"crackdown", "concern", "slid", "slip",
	}
	negativeWords = map[string]bool{
		"fell": true, "ban": true, "bans": true, "banned": true, "sue": true,
		"sues": true, "sued": true, "loss": true, "losses": true, "lose": true,
		"low": true, "lows": true, "sink": true, "sinks": true, "sank": true,
		"risk": true, "risks": true, "down": true,
	}
	negators = map[string]bool{
		"not": true, "no": true, "never": true, "without": true, "fails": true, "despite": true,
	}
)

// negationReach is how many following words a negator flips.
const negationReach = 2

// LexiconModel scores text by counting positive and negative crypto-market
// terms. It runs in process and only fails on a canceled context.
type LexiconModel struct {
	name string
}

// NewLexiconModel returns a lexicon model registered under name.
func NewLexiconModel(name string) *LexiconModel {
	return &LexiconModel{name: name}
}

func (m *LexiconModel) Name() string { return m.name }

// Score returns (pos - neg) / (pos + neg) on [-1, 1], or 0 when no term
// matches.
func (m *LexiconModel) Score(ctx context.Context, text string) (Output, error) {
	if err := ctx.Err(); err != nil {
		return nil, unavailable(m.name, err)
	}

	words := strings.FieldsFunc(cases.Fold().String(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-'
	})

	var pos, neg float64
	flip := 0
	for _, w := range words {
		if negators[w] {
			flip = negationReach
			continue
		}
		sign := wordSign(w)
		if flip > 0 {
			sign = -sign
			flip--
		}
		switch {
		case sign > 0:
			pos++
		case sign < 0:
			neg++
		}
	}

	value := 0.0
	if pos+neg > 0 {
		value = (pos - neg) / (pos + neg)
	}
	return ContinuousOutput{Value: value, Min: -1, Max: 1}, nil
}

func wordSign(w string) int {
	switch {
	case negativeWords[w]:
		return -1
	case positiveWords[w]:
		return 1
	}
	for _, s := range negativeStems {
		if strings.HasPrefix(w, s) {
			return -1
		}
	}
	for _, s := range positiveStems {
		if strings.HasPrefix(w, s) {
			return 1
		}
	}
	return 0
}
