// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package market fetches daily BTC closes and correlates them with the
// per-model daily sentiment.
package market

import (
	"context"
	"encoding/json"
	"math"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/pdiddy/headline-sentiment/internal/httputil"
	"github.com/pdiddy/headline-sentiment/pkg/types"
)

// MaxDays is the longest daily history the free market chart endpoint serves.
const MaxDays = 365

// ErrBadResponse is returned when the price feed answers with something
// that is not a market chart.
var ErrBadResponse = eris.New("unexpected market chart response")

// Client reads the CoinGecko-compatible market chart endpoint.
type Client struct {
	cfg  types.MarketConfig
	http *httputil.Client
}

// NewClient returns a Client. Empty fields in cfg fall back to the defaults.
func NewClient(cfg types.MarketConfig, client *httputil.Client) *Client {
	def := types.DefaultConfig().Market
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.Coin == "" {
		cfg.Coin = def.Coin
	}
	if cfg.Currency == "" {
		cfg.Currency = def.Currency
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{cfg: cfg, http: client}
}

type marketChart struct {
	Prices [][]float64 `json:"prices"`
}

// DailyCloses returns one price per UTC day for the last days days, oldest
// first. When the feed reports several prices for a day the latest wins.
func (c *Client) DailyCloses(ctx context.Context, days int) ([]types.PricePoint, error) {
	if days < 1 {
		return nil, eris.Errorf("days must be positive, got %d", days)
	}
	if days > MaxDays {
		zap.L().Warn("capping price history", zap.Int("requested", days), zap.Int("max", MaxDays))
		days = MaxDays
	}

	q := url.Values{}
	q.Set("vs_currency", c.cfg.Currency)
	q.Set("days", strconv.Itoa(days))
	q.Set("interval", "daily")
	endpoint := c.cfg.BaseURL + "/coins/" + url.PathEscape(c.cfg.Coin) + "/market_chart?" + q.Encode()

	resp, err := c.http.Get(ctx, endpoint, "application/json")
	if err != nil {
		return nil, eris.Wrap(err, "fetching market chart")
	}
	defer resp.Body.Close()

	var chart marketChart
	if err := json.NewDecoder(resp.Body).Decode(&chart); err != nil {
		return nil, eris.Wrap(ErrBadResponse, err.Error())
	}
	if chart.Prices == nil {
		return nil, eris.Wrap(ErrBadResponse, "no prices field")
	}

	type last struct {
		at  int64
		usd float64
	}
	byDay := make(map[time.Time]last)
	for i, p := range chart.Prices {
		if len(p) != 2 || p[1] <= 0 || math.IsNaN(p[1]) {
			return nil, eris.Wrapf(ErrBadResponse, "price entry %d: %v", i, p)
		}
		ms := int64(p[0])
		day := time.UnixMilli(ms).UTC().Truncate(24 * time.Hour)
		if prev, ok := byDay[day]; !ok || ms >= prev.at {
			byDay[day] = last{at: ms, usd: p[1]}
		}
	}

	out := make([]types.PricePoint, 0, len(byDay))
	for day, l := range byDay {
		out = append(out, types.PricePoint{Day: day, USD: l.usd})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day.Before(out[j].Day) })
	return out, nil
}

// PriceStore persists daily prices.
type PriceStore interface {
	SavePrices(ctx context.Context, points []types.PricePoint) error
}

// Sync fetches the last days daily closes and upserts them into st.
func Sync(ctx context.Context, c *Client, st PriceStore, days int) ([]types.PricePoint, error) {
	points, err := c.DailyCloses(ctx, days)
	if err != nil {
		return nil, err
	}
	if err := st.SavePrices(ctx, points); err != nil {
		return nil, eris.Wrap(err, "saving prices")
	}
	zap.L().Info("prices synced",
		zap.String("coin", c.cfg.Coin),
		zap.Int("days", len(points)),
	)
	return points, nil
}
