// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/pdiddy/headline-sentiment/internal/httputil"
	"github.com/pdiddy/headline-sentiment/pkg/types"
)

// Selector fallbacks tried in order when a selector is not configured.
// They cover the listing markup of common crypto news sites.
var (
	defaultArticleSelectors = []string{
		`article[data-module="ContentCard"]`,
		".card-content",
		".article-card",
		`[data-testid="Card"]`,
		"article",
	}
	defaultTitleSelectors = []string{
		"h2 a", "h3 a", "h4 a",
		".card-title a", ".article-title a",
		`a[data-module="Headline"]`,
		".headline a",
		"h2", "h3", "h4", ".card-title", ".article-title",
	}
	defaultDateSelectors = []string{
		"time", "[datetime]", ".date", ".publish-date",
		`[data-testid="PublishDate"]`, ".card-date",
	}
	defaultDateLayouts = []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02",
		"January 2, 2006",
		"Jan 2, 2006",
		"01/02/2006",
	}
)

const (
	htmlAccept       = "text/html,application/xhtml+xml"
	defaultPageParam = "page"
)

// HTMLAdapter scrapes headlines from a listing page using CSS selectors,
// optionally walking numbered pages of the listing.
type HTMLAdapter struct {
	name      string
	url       string
	selectors types.HTMLSelectors
	maxPages  int
	pageParam string
	maxAge    time.Duration
	maxItems  int
	client    *httputil.Client
	now       func() time.Time
}

// NewHTMLAdapter creates an adapter for the listing page at cfg.URL.
// Empty selectors fall back to built-in defaults.
func NewHTMLAdapter(cfg types.SourceConfig, client *httputil.Client) *HTMLAdapter {
	a := &HTMLAdapter{
		name:      cfg.Name,
		url:       cfg.URL,
		selectors: cfg.Selectors,
		maxPages:  max(cfg.MaxPages, 1),
		pageParam: cfg.PageParam,
		maxAge:    cfg.MaxAge,
		maxItems:  cfg.MaxItems,
		client:    client,
		now:       time.Now,
	}
	if a.pageParam == "" {
		a.pageParam = defaultPageParam
	}
	return a
}

func (a *HTMLAdapter) Name() string { return a.name }

// Fetch walks the listing from page 1 and extracts one item per article
// element. Paging stops at maxPages, at an empty page, at the first page
// holding an item older than maxAge, or once maxItems are collected. A
// failure on the first page fails the poll; a later one ends it early.
func (a *HTMLAdapter) Fetch(ctx context.Context) ([]types.RawItem, error) {
	base, err := url.Parse(a.url)
	if err != nil {
		return nil, unavailable(a.name, eris.Wrap(err, "parsing page url"))
	}

	var cutoff time.Time
	if a.maxAge > 0 {
		cutoff = a.now().Add(-a.maxAge)
	}

	var items []types.RawItem
	for page := 1; page <= a.maxPages; page++ {
		pageItems, err := a.fetchPage(ctx, a.pageURL(base, page))
		if err != nil {
			if page == 1 {
				return nil, unavailable(a.name, err)
			}
			zap.L().Warn("listing page failed, keeping earlier pages",
				zap.String("source", a.name), zap.Int("page", page), zap.Error(err))
			break
		}
		if len(pageItems) == 0 {
			break
		}

		stale := false
		for _, item := range pageItems {
			if !cutoff.IsZero() && item.PublishedAt != nil && item.PublishedAt.Before(cutoff) {
				stale = true
				continue
			}
			items = append(items, item)
		}
		if a.maxItems > 0 && len(items) >= a.maxItems {
			return items[:a.maxItems], nil
		}
		if stale {
			break
		}
	}
	return items, nil
}

// pageURL returns the listing URL for page; page 1 is the configured URL.
func (a *HTMLAdapter) pageURL(base *url.URL, page int) *url.URL {
	u := *base
	if page > 1 {
		q := u.Query()
		q.Set(a.pageParam, strconv.Itoa(page))
		u.RawQuery = q.Encode()
	}
	return &u
}

func (a *HTMLAdapter) fetchPage(ctx context.Context, page *url.URL) ([]types.RawItem, error) {
	resp, err := a.client.Get(ctx, page.String(), htmlAccept)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "parsing html")
	}
	return a.extract(doc, page), nil
}

func (a *HTMLAdapter) extract(doc *goquery.Document, base *url.URL) []types.RawItem {
	articles := firstMatch(doc.Selection, orDefault(a.selectors.Article, defaultArticleSelectors))
	if articles == nil {
		return nil
	}

	layouts := a.selectors.DateLayouts
	if len(layouts) == 0 {
		layouts = defaultDateLayouts
	}

	var items []types.RawItem
	articles.Each(func(_ int, article *goquery.Selection) {
		var item types.RawItem

		titleSel := firstMatch(article, orDefault(a.selectors.Title, defaultTitleSelectors))
		if titleSel != nil {
			titleSel = titleSel.First()
			item.Title = titleSel.Text()
		}

		item.URL = resolveLink(base, a.linkHref(article, titleSel))
		item.PublishedAt = a.publishedAt(article, layouts)
		items = append(items, item)
	})
	return items
}

func (a *HTMLAdapter) linkHref(article, title *goquery.Selection) string {
	if a.selectors.Link != "" {
		href, _ := article.Find(a.selectors.Link).First().Attr("href")
		return href
	}
	if title != nil {
		if href, ok := title.Attr("href"); ok {
			return href
		}
		if href, ok := title.Find("a[href]").First().Attr("href"); ok {
			return href
		}
	}
	href, _ := article.Find("a[href]").First().Attr("href")
	return href
}

func (a *HTMLAdapter) publishedAt(article *goquery.Selection, layouts []string) *time.Time {
	dateSel := firstMatch(article, orDefault(a.selectors.Date, defaultDateSelectors))
	if dateSel == nil {
		return nil
	}
	dateSel = dateSel.First()

	attr := a.selectors.DateAttr
	if attr == "" {
		attr = "datetime"
	}
	if v, ok := dateSel.Attr(attr); ok {
		if t, ok := parseDate(v, layouts); ok {
			return &t
		}
	}
	if t, ok := parseDate(dateSel.Text(), layouts); ok {
		return &t
	}
	return nil
}

// parseDate tries each layout in order. Layouts without a zone are read
// as UTC.
func parseDate(raw string, layouts []string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// firstMatch returns the matches of the first selector that matches
// anything under root, or nil.
func firstMatch(root *goquery.Selection, selectors []string) *goquery.Selection {
	for _, sel := range selectors {
		if found := root.Find(sel); found.Length() > 0 {
			return found
		}
	}
	return nil
}

func orDefault(configured string, defaults []string) []string {
	if configured != "" {
		return []string{configured}
	}
	return defaults
}

func resolveLink(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}
