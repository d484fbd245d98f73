// Package gamma implements the market feed against the Polymarket Gamma API.
package gamma

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sharpwatch/sharpwatch/internal/config"
	"github.com/sharpwatch/sharpwatch/internal/feeds"
	"github.com/sharpwatch/sharpwatch/internal/metrics"
	"github.com/sharpwatch/sharpwatch/internal/ratelimit"
)

const siteBaseURL = "https://polymarket.com"

// Client handles communication with the Polymarket Gamma API
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *ratelimit.Limiter
}

// NewClient creates a new Gamma API client
func NewClient(cfg *config.Config) *Client {
	return &Client{
		baseURL:    cfg.GammaAPIBaseURL,
		httpClient: &http.Client{Timeout: cfg.FeedTimeout},
		limiter:    ratelimit.New(cfg.GammaAPIRPS),
	}
}

// ActiveMarkets fetches open markets for one category group
func (c *Client) ActiveMarkets(ctx context.Context, category string) ([]feeds.Market, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	u, err := url.Parse(c.baseURL + "/markets")
	if err != nil {
		return nil, feeds.Malformed("gamma markets", err)
	}

	q := u.Query()
	q.Set("group", strings.ToUpper(category))
	q.Set("active", "true")
	q.Set("closed", "false")
	q.Set("limit", "100")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.RecordAPIRequest("gamma", "/markets", time.Since(start), err)
	if err != nil {
		return nil, feeds.Transient("gamma markets", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, feeds.Transient("gamma markets",
			fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body)))
	}

	var markets []Market
	if err := json.NewDecoder(resp.Body).Decode(&markets); err != nil {
		return nil, feeds.Malformed("gamma markets", err)
	}

	result := make([]feeds.Market, 0, len(markets))
	for _, m := range markets {
		if !m.Active || m.Closed {
			continue
		}
		result = append(result, feeds.Market{
			ID:       m.ID,
			Slug:     m.Slug,
			URL:      siteBaseURL + "/market/" + m.Slug,
			Category: category,
			Title:    m.Question,
		})
	}

	return result, nil
}
