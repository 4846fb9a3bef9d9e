// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"context"

	"github.com/mmcdole/gofeed"

	"github.com/pdiddy/headline-sentiment/internal/httputil"
	"github.com/pdiddy/headline-sentiment/pkg/types"
)

const feedAccept = "application/rss+xml, application/atom+xml, application/xml;q=0.9, */*;q=0.8"

// RSSAdapter reads an RSS, Atom, or JSON feed.
type RSSAdapter struct {
	name   string
	url    string
	client *httputil.Client
	parser *gofeed.Parser
}

// NewRSSAdapter creates an adapter for the feed at url.
func NewRSSAdapter(name, url string, client *httputil.Client) *RSSAdapter {
	return &RSSAdapter{
		name:   name,
		url:    url,
		client: client,
		parser: gofeed.NewParser(),
	}
}

func (a *RSSAdapter) Name() string { return a.name }

// Fetch downloads and parses the feed. Entries keep their published time,
// falling back to the updated time; entries with neither are undated.
func (a *RSSAdapter) Fetch(ctx context.Context) ([]types.RawItem, error) {
	resp, err := a.client.Get(ctx, a.url, feedAccept)
	if err != nil {
		return nil, unavailable(a.name, err)
	}
	defer resp.Body.Close()

	feed, err := a.parser.Parse(resp.Body)
	if err != nil {
		return nil, unavailable(a.name, err)
	}

	items := make([]types.RawItem, 0, len(feed.Items))
	for _, entry := range feed.Items {
		published := entry.PublishedParsed
		if published == nil {
			published = entry.UpdatedParsed
		}
		items = append(items, types.RawItem{
			Title:       entry.Title,
			PublishedAt: utcPtr(published),
			URL:         entry.Link,
		})
	}
	return items, nil
}
