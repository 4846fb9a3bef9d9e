// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package export writes headlines and trend windows as JSON, YAML, or CSV
// for consumers outside the pipeline.
package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/headline-sentiment/pkg/types"
)

// Format is an export encoding.
type Format string

const (
	JSON Format = "json"
	YAML Format = "yaml"
	CSV  Format = "csv"
)

// ErrUnknownFormat is returned for a format name or file extension that
// is not supported.
var ErrUnknownFormat = eris.New("unknown export format")

// ParseFormat resolves a format name. "yml" is accepted for YAML.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "json":
		return JSON, nil
	case "yaml", "yml":
		return YAML, nil
	case "csv":
		return CSV, nil
	}
	return "", eris.Wrapf(ErrUnknownFormat, "%q", name)
}

// FormatForPath picks the format from a file extension.
func FormatForPath(path string) (Format, error) {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if ext == "" {
		return "", eris.Wrapf(ErrUnknownFormat, "no extension on %s", path)
	}
	return ParseFormat(ext)
}

var headlineHeader = []string{
	"id", "source", "title", "url", "published_at", "time_provenance", "ingested_at",
	"model", "label", "polarity", "confidence", "scored_at",
}

// Headlines writes hs to w. CSV has one row per (headline, model) score,
// models in name order, and a single row with empty score columns for an
// unscored headline.
func Headlines(w io.Writer, f Format, hs []types.Headline) error {
	if hs == nil {
		hs = []types.Headline{}
	}
	switch f {
	case JSON:
		return writeJSON(w, hs)
	case YAML:
		return writeYAML(w, hs)
	case CSV:
		cw := csv.NewWriter(w)
		if err := cw.Write(headlineHeader); err != nil {
			return eris.Wrap(err, "writing CSV header")
		}
		for _, h := range hs {
			base := []string{
				h.ID, h.Source, h.Title, h.URL,
				formatTime(h.PublishedAt), string(h.TimeProvenance), formatTime(h.IngestedAt),
			}
			models := h.ScoredModels()
			if len(models) == 0 {
				if err := cw.Write(append(base, "", "", "", "", "")); err != nil {
					return eris.Wrapf(err, "writing row for %s", h.ID)
				}
				continue
			}
			for _, m := range models {
				s := h.Scores[m]
				conf := ""
				if s.Confidence != nil {
					conf = formatFloat(*s.Confidence)
				}
				row := append(append([]string{}, base...),
					m, string(s.Label), formatFloat(s.Polarity), conf, formatTime(s.ScoredAt))
				if err := cw.Write(row); err != nil {
					return eris.Wrapf(err, "writing row for %s", h.ID)
				}
			}
		}
		cw.Flush()
		return eris.Wrap(cw.Error(), "flushing CSV")
	}
	return eris.Wrapf(ErrUnknownFormat, "%q", f)
}

var trendHeader = []string{
	"window_start", "window_end", "count", "model", "mean_polarity", "model_count",
	"divergence", "agreement_score",
}

// Trend writes ws to w. CSV has one row per (window, model) mean, and a
// single row with empty model columns for a window without scores.
func Trend(w io.Writer, f Format, ws []types.TrendWindow) error {
	if ws == nil {
		ws = []types.TrendWindow{}
	}
	switch f {
	case JSON:
		return writeJSON(w, ws)
	case YAML:
		return writeYAML(w, ws)
	case CSV:
		cw := csv.NewWriter(w)
		if err := cw.Write(trendHeader); err != nil {
			return eris.Wrap(err, "writing CSV header")
		}
		for _, tw := range ws {
			base := []string{formatTime(tw.WindowStart), formatTime(tw.WindowEnd), strconv.Itoa(tw.Count)}
			tail := []string{formatFloat(tw.Divergence), formatFloat(tw.AgreementScore)}
			models := tw.Models()
			if len(models) == 0 {
				row := append(append(base, "", "", ""), tail...)
				if err := cw.Write(row); err != nil {
					return eris.Wrap(err, "writing trend row")
				}
				continue
			}
			for _, m := range models {
				row := append(append([]string{}, base...),
					m, formatFloat(tw.PerModelMeanPolarity[m]), strconv.Itoa(tw.PerModelCount[m]))
				if err := cw.Write(append(row, tail...)); err != nil {
					return eris.Wrap(err, "writing trend row")
				}
			}
		}
		cw.Flush()
		return eris.Wrap(cw.Error(), "flushing CSV")
	}
	return eris.Wrapf(ErrUnknownFormat, "%q", f)
}

// ToFile writes through fn into path, creating parent directories. The
// file is written under a temporary name and renamed on success.
func ToFile(path string, fn func(w io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "creating directory for %s", path)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return eris.Wrapf(err, "creating temp file for %s", path)
	}
	defer os.Remove(tmp.Name())

	if err := fn(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrapf(err, "closing %s", tmp.Name())
	}
	return eris.Wrapf(os.Rename(tmp.Name(), path), "renaming to %s", path)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(v), "encoding JSON")
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return eris.Wrap(err, "encoding YAML")
	}
	return eris.Wrap(enc.Close(), "closing YAML encoder")
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
