package alerts

import (
	"context"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Payload contains all information for a sharp bettor alert
type Payload struct {
	WalletAddress  string
	WalletShort    string // Shortened for display
	Username       string
	TotalPnL       float64
	ROI            float64
	PositionValue  float64
	MarketID       string
	MarketQuestion string
	MarketURL      string
	Category       string
	Side           string
	FirstSeen      time.Time
	Environment    string
}

// Sender defines the interface for alert senders
type Sender interface {
	Send(ctx context.Context, payload *Payload) error
	// SendDigest delivers a multi-line summary such as the daily leaderboard
	SendDigest(ctx context.Context, title, body string) error
}

var usd = message.NewPrinter(language.English)

// FormatUSD renders a dollar amount with thousands separators, e.g. $1,234,567
func FormatUSD(amount float64) string {
	if amount < 0 {
		return usd.Sprintf("-$%.0f", -amount)
	}
	return usd.Sprintf("$%.0f", amount)
}

// ShortWallet abbreviates a 0x address for display (0x1234...abcd)
func ShortWallet(addr string) string {
	if len(addr) <= 12 {
		return addr
	}
	return addr[:6] + "..." + addr[len(addr)-4:]
}

// DisplayName prefers the username, falling back to the shortened wallet
func (p *Payload) DisplayName() string {
	if p.Username != "" {
		return p.Username
	}
	return p.WalletShort
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
