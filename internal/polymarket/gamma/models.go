package gamma

// Market represents a Gamma API market
type Market struct {
	ID           string  `json:"id"`
	ConditionID  string  `json:"conditionId"`
	Slug         string  `json:"slug"`
	Question     string  `json:"question"`
	EndDate      string  `json:"endDate"`
	Category     string  `json:"category"`
	VolumeNum    float64 `json:"volumeNum"`
	LiquidityNum float64 `json:"liquidityNum"`
	Active       bool    `json:"active"`
	Closed       bool    `json:"closed"`
}
