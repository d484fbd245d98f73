package storage

import (
	"time"

	"gorm.io/gorm"
)

// AppState stores cycle checkpoints and other small key/value state
type AppState struct {
	StateKey   string `gorm:"primaryKey;size:64"`
	StateValue string `gorm:"type:text;not null"`
	UpdatedTS  int64  `gorm:"not null;index"`
}

func (AppState) TableName() string {
	return "app_state"
}

// BettorProfile is the latest known performance snapshot for one wallet.
// ROI and IsSharp are derived columns, recomputed by UpsertProfile on every
// write; callers never set them directly.
type BettorProfile struct {
	WalletAddress   string  `gorm:"primaryKey;size:128"`
	Username        string  `gorm:"size:255"`
	TotalPnL        float64 `gorm:"column:total_pnl;type:decimal(20,6);not null;default:0"`
	TotalVolume     float64 `gorm:"type:decimal(20,6);not null;default:0;index"`
	MarketsTraded   int     `gorm:"not null;default:0"`
	PositionsValue  float64 `gorm:"type:decimal(20,6);not null;default:0"`
	ROI             float64 `gorm:"column:roi;type:decimal(10,4);not null;default:0"`
	LeaderboardRank *int    `gorm:"index"`
	IsSharp         bool    `gorm:"not null;default:false;index"`
	LastUpdated     int64   `gorm:"not null;index"`
}

func (BettorProfile) TableName() string {
	return "bettor_profiles"
}

// WhaleSighting records that a wallet was observed holding a position in a
// market. One row per (wallet, market); FirstSeen is immutable once written,
// replays only advance LastSeen and refresh the display metadata.
type WhaleSighting struct {
	WalletAddress  string `gorm:"primaryKey;size:128"`
	MarketID       string `gorm:"primaryKey;size:128"`
	Category       string `gorm:"size:64;not null"`
	Side           string `gorm:"size:10;not null"`
	MarketQuestion string `gorm:"size:512"`
	FirstSeen      int64  `gorm:"not null;index"`
	LastSeen       int64  `gorm:"not null"`
}

func (WhaleSighting) TableName() string {
	return "whale_sightings"
}

// AlertRecord marks a (wallet, market) pair as already alerted. Rows are
// only ever inserted, and only after a successful dispatch.
type AlertRecord struct {
	WalletAddress string `gorm:"primaryKey;size:128"`
	MarketID      string `gorm:"primaryKey;size:128"`
	CreatedTS     int64  `gorm:"not null;index"`
}

func (AlertRecord) TableName() string {
	return "alert_records"
}

// AlertCandidate is one row of the alert selector's join: a not-yet-alerted
// sighting by a currently sharp wallet, with the profile fields the notifier
// payload needs.
type AlertCandidate struct {
	WalletAddress  string
	Username       string
	TotalPnL       float64 `gorm:"column:total_pnl"`
	ROI            float64 `gorm:"column:roi"`
	PositionsValue float64
	MarketID       string
	MarketQuestion string
	Category       string
	Side           string
	FirstSeen      int64
}

// BeforeCreate hooks for timestamps
func (a *AppState) BeforeCreate(tx *gorm.DB) error {
	if a.UpdatedTS == 0 {
		a.UpdatedTS = time.Now().Unix()
	}
	return nil
}

func (p *BettorProfile) BeforeCreate(tx *gorm.DB) error {
	if p.LastUpdated == 0 {
		p.LastUpdated = time.Now().Unix()
	}
	return nil
}

func (a *AlertRecord) BeforeCreate(tx *gorm.DB) error {
	if a.CreatedTS == 0 {
		a.CreatedTS = time.Now().Unix()
	}
	return nil
}
