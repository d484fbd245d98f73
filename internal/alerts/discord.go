package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// DiscordSender sends alerts to Discord via webhook
type DiscordSender struct {
	webhookURL string
	httpClient *http.Client
}

// NewDiscordSender creates a new Discord sender
func NewDiscordSender(webhookURL string) *DiscordSender {
	return &DiscordSender{
		webhookURL: webhookURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Send sends the alert to Discord
func (s *DiscordSender) Send(ctx context.Context, payload *Payload) error {
	return s.post(ctx, map[string]interface{}{
		"embeds": []interface{}{s.buildEmbed(payload)},
	})
}

// SendDigest sends a plain-text digest message to Discord
func (s *DiscordSender) SendDigest(ctx context.Context, title, body string) error {
	return s.post(ctx, map[string]interface{}{
		"content": truncate(fmt.Sprintf("**%s**\n%s", title, body), 2000),
	})
}

func (s *DiscordSender) post(ctx context.Context, webhookPayload map[string]interface{}) error {
	body, err := json.Marshal(webhookPayload)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	return nil
}

func (s *DiscordSender) buildEmbed(payload *Payload) map[string]interface{} {
	description := fmt.Sprintf("**%s** is holding **%s** on **%s**\nLifetime P&L **%s** at **%.1f%% ROI**",
		payload.DisplayName(),
		FormatUSD(payload.PositionValue),
		payload.Side,
		FormatUSD(payload.TotalPnL),
		payload.ROI,
	)

	fields := []map[string]interface{}{
		{
			"name":   "Wallet",
			"value":  fmt.Sprintf("`%s`", payload.WalletShort),
			"inline": true,
		},
		{
			"name":   "Market",
			"value":  truncate(payload.MarketQuestion, 100),
			"inline": true,
		},
		{
			"name":   "Category",
			"value":  payload.Category,
			"inline": true,
		},
		{
			"name":   "Position",
			"value":  FormatUSD(payload.PositionValue),
			"inline": true,
		},
		{
			"name":   "Lifetime P&L",
			"value":  FormatUSD(payload.TotalPnL),
			"inline": true,
		},
		{
			"name":   "ROI",
			"value":  fmt.Sprintf("%.1f%%", payload.ROI),
			"inline": true,
		},
	}

	footer := map[string]interface{}{
		"text": fmt.Sprintf("Sharpwatch • %s • first seen %s", payload.Environment, payload.FirstSeen.UTC().Format("2006-01-02 15:04 UTC")),
	}

	embed := map[string]interface{}{
		"title":       "🎯 Sharp bettor placed a bet",
		"description": description,
		"color":       0x2ECC71,
		"fields":      fields,
		"footer":      footer,
		"timestamp":   payload.FirstSeen.Format(time.RFC3339),
	}
	if payload.MarketURL != "" {
		embed["url"] = payload.MarketURL
	}

	return embed
}
