// Package classifier decides whether a bettor's track record qualifies as "sharp".
package classifier

// Thresholds holds the three profitability gates a wallet must clear.
// All gates are AND-combined: a high-ROI wallet with thin volume is rejected
// just like a high-volume grinder with marginal returns, and the absolute PNL
// floor keeps percentage thresholds from qualifying trivial accounts.
type Thresholds struct {
	MinPnL    float64 // lifetime profit floor in USD
	MinROI    float64 // return on volume, percent
	MinVolume float64 // lifetime traded volume floor in USD
}

// IsSharp reports whether a wallet clears all three gates.
func (t Thresholds) IsSharp(totalPnL, roi, totalVolume float64) bool {
	return totalPnL > t.MinPnL && roi > t.MinROI && totalVolume > t.MinVolume
}

// ROI computes return on volume as a percentage. A wallet with zero volume
// has zero ROI, never a division error.
func ROI(totalPnL, totalVolume float64) float64 {
	if totalVolume == 0 {
		return 0
	}
	return totalPnL / totalVolume * 100
}
