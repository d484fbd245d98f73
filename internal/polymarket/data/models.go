package data

// Holder represents one position holder row from the Data API
type Holder struct {
	ProxyWallet string  `json:"proxyWallet"`
	Outcome     string  `json:"outcome"` // YES, NO
	Amount      float64 `json:"amount"`
	Value       float64 `json:"value"` // Position value in USD
}

// UserStats represents the aggregate performance stats for one wallet
type UserStats struct {
	ProxyWallet    string  `json:"proxyWallet"`
	Name           string  `json:"name"`
	Profit         float64 `json:"profit"`
	Volume         float64 `json:"volume"`
	MarketsTraded  int     `json:"marketsTraded"`
	PositionsValue float64 `json:"value"`
}

// LeaderboardEntry represents one row of the profit leaderboard
type LeaderboardEntry struct {
	ProxyWallet string  `json:"proxyWallet"`
	Name        string  `json:"name"`
	Amount      float64 `json:"amount"` // Profit for the ranked window
	Rank        int     `json:"rank"`
}
