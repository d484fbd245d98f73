// Package feeds defines the observation shapes and contracts the core consumes
// from the external data-acquisition layer. The core only ever receives
// already-typed numeric fields; string parsing of scraped text belongs to the
// acquisition side of this boundary.
package feeds

import "context"

// Side is which outcome a position is on, as reported by the holder feed.
// Renders of the same market may disagree, so Unknown is a legal value.
type Side string

const (
	SideYes     Side = "YES"
	SideNo      Side = "NO"
	SideUnknown Side = "UNKNOWN"
)

// ParseSide maps a feed-reported outcome label to a Side.
func ParseSide(s string) Side {
	switch s {
	case "YES", "Yes", "yes":
		return SideYes
	case "NO", "No", "no":
		return SideNo
	default:
		return SideUnknown
	}
}

// Market is one active market of interest from the market feed.
type Market struct {
	ID       string
	Slug     string
	URL      string
	Category string
	Title    string
}

// HolderObservation is one "wallet W holds a position worth $X" observation
// for a given market.
type HolderObservation struct {
	Wallet        string
	Side          Side
	PositionValue float64
}

// ProfileObservation is a fresh snapshot of a wallet's aggregate performance.
type ProfileObservation struct {
	Username       string // optional
	TotalPnL       float64
	TotalVolume    float64
	MarketsTraded  int
	PositionsValue float64
}

// RankedWallet is one entry from the ranked discovery feed.
type RankedWallet struct {
	Wallet string
	Rank   int
}

// MarketFeed produces the active markets for one category, re-fetched once
// per cycle.
type MarketFeed interface {
	ActiveMarkets(ctx context.Context, category string) ([]Market, error)
}

// HolderFeed produces position observations for one market.
type HolderFeed interface {
	MarketHolders(ctx context.Context, market Market) ([]HolderObservation, error)
}

// ProfileFeed produces a wallet's performance snapshot. A missing profile is
// a normal result, reported as (nil, nil).
type ProfileFeed interface {
	Profile(ctx context.Context, wallet string) (*ProfileObservation, error)
}

// LeaderboardFeed produces the ordered discovery list of wallets worth
// refreshing first.
type LeaderboardFeed interface {
	TopWallets(ctx context.Context, limit int) ([]RankedWallet, error)
}
