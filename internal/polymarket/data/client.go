// Package data implements the holder, profile and leaderboard feeds against
// the Polymarket Data API.
package data

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sharpwatch/sharpwatch/internal/config"
	"github.com/sharpwatch/sharpwatch/internal/feeds"
	"github.com/sharpwatch/sharpwatch/internal/metrics"
	"github.com/sharpwatch/sharpwatch/internal/ratelimit"
)

const holdersPerMarket = 20

// Client handles communication with the Polymarket Data API
type Client struct {
	baseURL         string
	httpClient      *http.Client
	holdersLimiter  *ratelimit.Limiter
	profilesLimiter *ratelimit.Limiter
}

// NewClient creates a new Data API client
func NewClient(cfg *config.Config) *Client {
	return &Client{
		baseURL:         cfg.DataAPIBaseURL,
		httpClient:      &http.Client{Timeout: cfg.FeedTimeout},
		holdersLimiter:  ratelimit.New(cfg.DataAPIHoldersRPS),
		profilesLimiter: ratelimit.New(cfg.DataAPIProfilesRPS),
	}
}

// MarketHolders fetches the top position holders for one market
func (c *Client) MarketHolders(ctx context.Context, market feeds.Market) ([]feeds.HolderObservation, error) {
	if err := c.holdersLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	q := url.Values{}
	q.Set("market", market.ID)
	q.Set("limit", strconv.Itoa(holdersPerMarket))

	var holders []Holder
	if err := c.get(ctx, "/holders", "/holders", q, &holders); err != nil {
		return nil, err
	}

	result := make([]feeds.HolderObservation, 0, len(holders))
	for _, h := range holders {
		result = append(result, feeds.HolderObservation{
			Wallet:        h.ProxyWallet,
			Side:          feeds.ParseSide(h.Outcome),
			PositionValue: h.Value,
		})
	}

	return result, nil
}

// Profile fetches the aggregate stats for one wallet. Returns (nil, nil)
// when the Data API has no record of the wallet.
func (c *Client) Profile(ctx context.Context, wallet string) (*feeds.ProfileObservation, error) {
	if err := c.profilesLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	var stats UserStats
	err := c.get(ctx, "/users", "/users/"+url.PathEscape(wallet), nil, &stats)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	return &feeds.ProfileObservation{
		Username:       stats.Name,
		TotalPnL:       stats.Profit,
		TotalVolume:    stats.Volume,
		MarketsTraded:  stats.MarketsTraded,
		PositionsValue: stats.PositionsValue,
	}, nil
}

// TopWallets fetches the all-time profit leaderboard
func (c *Client) TopWallets(ctx context.Context, limit int) ([]feeds.RankedWallet, error) {
	if err := c.profilesLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	q := url.Values{}
	q.Set("window", "all")
	q.Set("rankType", "pnl")
	q.Set("limit", strconv.Itoa(limit))

	var entries []LeaderboardEntry
	if err := c.get(ctx, "/leaderboard", "/leaderboard", q, &entries); err != nil {
		return nil, err
	}

	result := make([]feeds.RankedWallet, 0, len(entries))
	for i, e := range entries {
		rank := e.Rank
		if rank == 0 {
			rank = i + 1
		}
		result = append(result, feeds.RankedWallet{
			Wallet: e.ProxyWallet,
			Rank:   rank,
		})
	}

	return result, nil
}

// notFoundError marks a 404 so Profile can map it to a missing record
type notFoundError struct {
	path string
}

func (e *notFoundError) Error() string {
	return fmt.Sprintf("not found: %s", e.path)
}

func isNotFound(err error) bool {
	_, ok := err.(*notFoundError)
	return ok
}

// get performs one GET request. endpoint is the stable metric label, path the
// concrete request path.
func (c *Client) get(ctx context.Context, endpoint, path string, query url.Values, out interface{}) error {
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return feeds.Malformed("data "+endpoint, err)
	}
	if query != nil {
		u.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, "GET", u.String(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.RecordAPIRequest("data", endpoint, time.Since(start), err)
	if err != nil {
		return feeds.Transient("data "+endpoint, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return &notFoundError{path: path}
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(resp.Body)
		return feeds.Transient("data "+endpoint,
			fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return feeds.Malformed("data "+endpoint, err)
	}

	return nil
}
