// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package headline turns raw source items into canonical headline records
// with content-derived identifiers.
package headline

import (
	"crypto/sha256"
	"encoding/hex"
	"html"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/pdiddy/headline-sentiment/pkg/types"
)

// ErrMalformedItem marks a raw item that cannot become a headline.
var ErrMalformedItem = eris.New("malformed item")

// undatedBucket stands in for the time bucket of items without a source
// timestamp, so re-polling them never yields a new id.
const undatedBucket = "undated"

// idLength is the number of hex characters kept from the digest.
const idLength = 32

// CanonicalTitle decodes HTML entities, applies NFKC normalization, drops
// control characters, collapses whitespace, and truncates to maxRunes runes.
// A maxRunes of zero or less disables truncation.
func CanonicalTitle(raw string, maxRunes int) string {
	s := html.UnescapeString(raw)
	s = norm.NFKC.String(s)
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && !unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	s = strings.Join(strings.Fields(s), " ")

	if maxRunes > 0 {
		runes := []rune(s)
		if len(runes) > maxRunes {
			s = strings.TrimRightFunc(string(runes[:maxRunes]), unicode.IsSpace)
		}
	}
	return s
}

// FoldKey returns the case-folded form of a canonical title used for
// identity. Titles differing only in case share a key.
func FoldKey(title string) string {
	return cases.Fold().String(title)
}

// Canonicalizer builds headlines from raw items under one ingest configuration.
type Canonicalizer struct {
	maxRunes int
	bucket   time.Duration
	scope    string
}

// NewCanonicalizer returns a Canonicalizer for cfg.
func NewCanonicalizer(cfg types.IngestConfig) *Canonicalizer {
	bucket := cfg.Bucket
	if bucket <= 0 {
		bucket = 24 * time.Hour
	}
	scope := cfg.DedupScope
	if scope == "" {
		scope = types.DedupGlobal
	}
	return &Canonicalizer{maxRunes: cfg.MaxTitleRunes, bucket: bucket, scope: scope}
}

// ID derives the headline id from the source, canonical title, and
// published time. With the global scope the source does not take part, so
// the same story from two feeds collapses to one record.
func (c *Canonicalizer) ID(source, title string, published *time.Time) string {
	bucket := undatedBucket
	if published != nil && !published.IsZero() {
		bucket = strconv.FormatInt(published.UTC().Truncate(c.bucket).Unix(), 10)
	}

	scope := ""
	if c.scope == types.DedupSource {
		scope = source
	}

	sum := sha256.Sum256([]byte(scope + "\x00" + bucket + "\x00" + FoldKey(title)))
	return hex.EncodeToString(sum[:])[:idLength]
}

// Headline canonicalizes item observed from source at now. It returns an
// error matching ErrMalformedItem when the title is empty after
// canonicalization.
func (c *Canonicalizer) Headline(source string, item types.RawItem, now time.Time) (types.Headline, error) {
	title := CanonicalTitle(item.Title, c.maxRunes)
	if title == "" {
		return types.Headline{}, eris.Wrapf(ErrMalformedItem, "empty title from %s", source)
	}

	h := types.Headline{
		Source:     source,
		Title:      title,
		URL:        strings.TrimSpace(item.URL),
		IngestedAt: now.UTC(),
	}

	var published *time.Time
	if item.PublishedAt != nil && !item.PublishedAt.IsZero() {
		t := item.PublishedAt.UTC()
		published = &t
		h.PublishedAt = t
		h.TimeProvenance = types.ProvenanceSource
	} else {
		h.PublishedAt = now.UTC()
		h.TimeProvenance = types.ProvenanceIngested
	}

	h.ID = c.ID(source, title, published)
	return h, nil
}
