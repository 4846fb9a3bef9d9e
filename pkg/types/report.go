// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"sort"
	"time"
)

// SourceTally counts one source's contribution to a poll.
type SourceTally struct {
	Fetched   int `json:"fetched" yaml:"fetched"`
	New       int `json:"new" yaml:"new"`
	Duplicate int `json:"duplicate" yaml:"duplicate"`
	Malformed int `json:"malformed" yaml:"malformed"`
}

// IngestReport is the outcome of one poll across all sources.
type IngestReport struct {
	NewCount       int `json:"new_count" yaml:"new_count"`
	DuplicateCount int `json:"duplicate_count" yaml:"duplicate_count"`
	Malformed      int `json:"malformed" yaml:"malformed"`

	// SourceErrors maps source name to the reason its poll failed.
	SourceErrors map[string]string `json:"per_source_errors" yaml:"per_source_errors"`

	// Skipped lists sources not polled this cycle because their interval
	// had not elapsed.
	Skipped []string `json:"skipped,omitempty" yaml:"skipped,omitempty"`

	PerSource map[string]SourceTally `json:"per_source" yaml:"per_source"`
}

// NewIngestReport returns a report with its maps allocated.
func NewIngestReport() IngestReport {
	return IngestReport{
		SourceErrors: make(map[string]string),
		PerSource:    make(map[string]SourceTally),
	}
}

// Total returns the number of items that reached the store.
func (r IngestReport) Total() int {
	return r.NewCount + r.DuplicateCount
}

// HasFailures reports whether any source failed.
func (r IngestReport) HasFailures() bool {
	return len(r.SourceErrors) > 0
}

// FailedSources returns the names of failed sources, sorted.
func (r IngestReport) FailedSources() []string {
	return sortedKeys(r.SourceErrors)
}

// ScoreError records a failed (headline, model) scoring cell.
type ScoreError struct {
	HeadlineID string `json:"headline_id" yaml:"headline_id"`
	Model      string `json:"model" yaml:"model"`
	Error      string `json:"error" yaml:"error"`
}

// ScoreReport is the outcome of one scoring pass.
type ScoreReport struct {
	ScoredCount int          `json:"scored_count" yaml:"scored_count"`
	Errors      []ScoreError `json:"errors" yaml:"errors"`

	// Pending is the number of headlines selected for this pass.
	Pending int `json:"pending" yaml:"pending"`
}

// HasFailures reports whether any cell failed.
func (r ScoreReport) HasFailures() bool {
	return len(r.Errors) > 0
}

// ErrorsByModel counts failed cells per model.
func (r ScoreReport) ErrorsByModel() map[string]int {
	out := make(map[string]int)
	for _, e := range r.Errors {
		out[e.Model]++
	}
	return out
}

// RunState tracks when a source or model was last exercised.
type RunState struct {
	LastAttempt         time.Time `json:"last_attempt" yaml:"last_attempt"`
	LastSuccess         time.Time `json:"last_success,omitempty" yaml:"last_success,omitempty"`
	LastError           string    `json:"last_error,omitempty" yaml:"last_error,omitempty"`
	ConsecutiveFailures int       `json:"consecutive_failures" yaml:"consecutive_failures"`
}

// Record folds one attempt outcome into the state.
func (s *RunState) Record(at time.Time, err error) {
	s.LastAttempt = at
	if err == nil {
		s.LastSuccess = at
		s.LastError = ""
		s.ConsecutiveFailures = 0
		return
	}
	s.LastError = err.Error()
	s.ConsecutiveFailures++
}

// CycleState is the scheduling state carried from one pipeline cycle to
// the next. It is loaded from the store before a cycle and saved after.
type CycleState struct {
	Cycle       int64     `json:"cycle" yaml:"cycle"`
	CycleID     string    `json:"cycle_id" yaml:"cycle_id"`
	LastPollAt  time.Time `json:"last_poll_at,omitempty" yaml:"last_poll_at,omitempty"`
	LastScoreAt time.Time `json:"last_score_at,omitempty" yaml:"last_score_at,omitempty"`

	// ChangeSeq is the highest headline change sequence already folded
	// into the live trend windows.
	ChangeSeq int64 `json:"change_seq" yaml:"change_seq"`

	Sources map[string]RunState `json:"sources" yaml:"sources"`
	Models  map[string]RunState `json:"models" yaml:"models"`
}

// NewCycleState returns an empty state with its maps allocated.
func NewCycleState() CycleState {
	return CycleState{
		Sources: make(map[string]RunState),
		Models:  make(map[string]RunState),
	}
}

// Clone returns a deep copy of s.
func (s CycleState) Clone() CycleState {
	out := s
	out.Sources = make(map[string]RunState, len(s.Sources))
	for k, v := range s.Sources {
		out.Sources[k] = v
	}
	out.Models = make(map[string]RunState, len(s.Models))
	for k, v := range s.Models {
		out.Models[k] = v
	}
	return out
}

// Due reports whether source should be polled at now given its minimum
// interval. A zero interval means every cycle.
func (s CycleState) Due(source string, interval time.Duration, now time.Time) bool {
	if interval <= 0 {
		return true
	}
	st, ok := s.Sources[source]
	if !ok || st.LastAttempt.IsZero() {
		return true
	}
	return now.Sub(st.LastAttempt) >= interval
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
