package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sharpwatch/sharpwatch/internal/classifier"
	"github.com/sharpwatch/sharpwatch/internal/config"
	"github.com/sharpwatch/sharpwatch/internal/metrics"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// StorageError wraps any persistence failure. The orchestrator aborts the
// remainder of a cycle when one surfaces, since no further mutation can be
// trusted; the next scheduled trigger retries.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("storage %s: %v", e.Op, e.Err) }
func (e *StorageError) Unwrap() error { return e.Err }

// IsStorageError reports whether err is (or wraps) a StorageError.
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}

// DB wraps the GORM database connection. All mutation of the three ledgers
// goes through these methods so the derived-column and first-seen invariants
// are enforced in one place.
type DB struct {
	conn       *gorm.DB
	log        *logrus.Logger
	thresholds classifier.Thresholds
}

// New creates a new database connection with GORM
func New(cfg *config.Config, log *logrus.Logger) (*DB, error) {
	gormLogger := logger.New(
		&gormLogAdapter{log: log},
		logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	conn, err := gorm.Open(mysql.Open(cfg.DatabaseDSN), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.DatabaseMaxConns)
	sqlDB.SetMaxIdleConns(cfg.DatabaseMaxConns / 2)
	sqlDB.SetConnMaxIdleTime(cfg.DatabaseMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	log.Info("Database connection established")

	return &DB{conn: conn, log: log, thresholds: cfg.Sharpness()}, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	sqlDB, err := db.conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// AutoMigrate runs GORM auto-migration (for development only)
func (db *DB) AutoMigrate() error {
	return db.conn.AutoMigrate(
		&AppState{},
		&BettorProfile{},
		&WhaleSighting{},
		&AlertRecord{},
	)
}

// GetState retrieves a state value by key
func (db *DB) GetState(ctx context.Context, key string) (string, error) {
	var state AppState
	result := db.conn.WithContext(ctx).Where("state_key = ?", key).First(&state)
	if result.Error == gorm.ErrRecordNotFound {
		return "", nil
	}
	if result.Error != nil {
		return "", wrap("get state", result.Error)
	}
	return state.StateValue, nil
}

// SetState sets a state value
func (db *DB) SetState(ctx context.Context, key, value string) error {
	state := AppState{
		StateKey:   key,
		StateValue: value,
		UpdatedTS:  time.Now().Unix(),
	}
	return wrap("set state", db.conn.WithContext(ctx).Save(&state).Error)
}

// GetProfile retrieves a profile, or (nil, nil) when the wallet is unknown
func (db *DB) GetProfile(ctx context.Context, wallet string) (*BettorProfile, error) {
	var profile BettorProfile
	result := db.conn.WithContext(ctx).Where("wallet_address = ?", wallet).First(&profile)
	if result.Error == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if result.Error != nil {
		return nil, wrap("get profile", result.Error)
	}
	return &profile, nil
}

// UpsertProfile replaces a wallet's profile in full. ROI and the sharp
// verdict are recomputed here from the incoming metrics; incoming values for
// those fields are ignored. The false-to-true sharp transition is logged, as
// it is the signal that the wallet's backlog of sightings becomes eligible.
func (db *DB) UpsertProfile(ctx context.Context, p *BettorProfile) (err error) {
	start := time.Now()
	defer func() { metrics.RecordDatabaseQuery("upsert_profile", time.Since(start), err) }()

	existing, err := db.GetProfile(ctx, p.WalletAddress)
	if err != nil {
		return err
	}
	wasSharp := existing != nil && existing.IsSharp

	p.ROI = classifier.ROI(p.TotalPnL, p.TotalVolume)
	p.IsSharp = db.thresholds.IsSharp(p.TotalPnL, p.ROI, p.TotalVolume)
	if p.LastUpdated == 0 {
		p.LastUpdated = time.Now().Unix()
	}

	if err := db.conn.WithContext(ctx).Save(p).Error; err != nil {
		return wrap("upsert profile", err)
	}

	if !wasSharp && p.IsSharp {
		db.log.WithFields(logrus.Fields{
			"wallet":       p.WalletAddress,
			"total_pnl":    p.TotalPnL,
			"roi":          p.ROI,
			"total_volume": p.TotalVolume,
		}).Info("Wallet crossed sharp threshold")
	}
	return nil
}

// IsProfileStale reports whether a wallet needs a fresh scrape: true when the
// wallet is unknown or its snapshot is older than maxAge.
func (db *DB) IsProfileStale(ctx context.Context, wallet string, maxAge time.Duration) (bool, error) {
	profile, err := db.GetProfile(ctx, wallet)
	if err != nil {
		return false, err
	}
	if profile == nil {
		return true, nil
	}
	return time.Now().Unix()-profile.LastUpdated > int64(maxAge.Seconds()), nil
}

// SharpWallets returns the addresses currently flagged sharp
func (db *DB) SharpWallets(ctx context.Context) ([]string, error) {
	var wallets []string
	result := db.conn.WithContext(ctx).
		Model(&BettorProfile{}).
		Where("is_sharp = ?", true).
		Pluck("wallet_address", &wallets)
	return wallets, wrap("sharp wallets", result.Error)
}

// SharpProfiles returns sharp profiles ordered by ROI, best first
func (db *DB) SharpProfiles(ctx context.Context, limit int) ([]BettorProfile, error) {
	var profiles []BettorProfile
	result := db.conn.WithContext(ctx).
		Where("is_sharp = ?", true).
		Order("roi DESC").
		Limit(limit).
		Find(&profiles)
	return profiles, wrap("sharp profiles", result.Error)
}

// TrackedWallets returns the working set worth checking against live markets:
// sharp wallets, high-volume wallets, and anything sourced from the ranked
// feed.
func (db *DB) TrackedWallets(ctx context.Context, minVolume float64) ([]string, error) {
	var wallets []string
	result := db.conn.WithContext(ctx).
		Model(&BettorProfile{}).
		Where("is_sharp = ? OR total_volume > ? OR leaderboard_rank IS NOT NULL", true, minVolume).
		Pluck("wallet_address", &wallets)
	return wallets, wrap("tracked wallets", result.Error)
}

// PurgeProfile removes a wallet's profile. Administrative use only; the
// sighting and alert ledgers are never purged.
func (db *DB) PurgeProfile(ctx context.Context, wallet string) error {
	result := db.conn.WithContext(ctx).
		Where("wallet_address = ?", wallet).
		Delete(&BettorProfile{})
	if result.Error != nil {
		return wrap("purge profile", result.Error)
	}
	if result.RowsAffected == 0 {
		return wrap("purge profile", gorm.ErrRecordNotFound)
	}
	return nil
}

// RecordSighting upserts one (wallet, market) sighting. A single statement
// with ON DUPLICATE KEY UPDATE keeps FirstSeen immutable and the operation
// safe under concurrent writers: replays only advance LastSeen and take the
// latest side/question/category.
func (db *DB) RecordSighting(ctx context.Context, s *WhaleSighting) error {
	start := time.Now()
	result := db.conn.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "wallet_address"}, {Name: "market_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"last_seen", "side", "market_question", "category",
		}),
	}).Create(s)
	metrics.RecordDatabaseQuery("record_sighting", time.Since(start), result.Error)
	return wrap("record sighting", result.Error)
}

// SightingsSince returns sightings first seen after the cutoff. The recency
// window keys off FirstSeen, never LastSeen, so a long-held position is not
// resurrected just because the page was re-rendered.
func (db *DB) SightingsSince(ctx context.Context, cutoff int64) ([]WhaleSighting, error) {
	var sightings []WhaleSighting
	result := db.conn.WithContext(ctx).
		Where("first_seen > ?", cutoff).
		Order("first_seen DESC").
		Find(&sightings)
	return sightings, wrap("sightings since", result.Error)
}

// SelectNewAlerts is the snapshot join behind alerting: recent sightings by
// currently sharp wallets with enough open exposure, minus pairs already in
// the alert ledger. Most recent first so the freshest signals win under the
// per-cycle dispatch cap. Does not write the alert ledger; marking happens
// separately after a successful dispatch.
func (db *DB) SelectNewAlerts(ctx context.Context, window time.Duration, minPositionValue float64, limit int) ([]AlertCandidate, error) {
	start := time.Now()
	cutoff := start.Add(-window).Unix()

	var candidates []AlertCandidate
	result := db.conn.WithContext(ctx).
		Table("whale_sightings AS s").
		Select("s.wallet_address, s.market_id, s.market_question, s.category, s.side, s.first_seen, "+
			"p.username, p.total_pnl, p.roi, p.positions_value").
		Joins("JOIN bettor_profiles p ON p.wallet_address = s.wallet_address").
		Joins("LEFT JOIN alert_records a ON a.wallet_address = s.wallet_address AND a.market_id = s.market_id").
		Where("p.is_sharp = ? AND s.first_seen > ? AND p.positions_value >= ? AND a.wallet_address IS NULL",
			true, cutoff, minPositionValue).
		Order("s.first_seen DESC").
		Limit(limit).
		Scan(&candidates)
	metrics.RecordDatabaseQuery("select_new_alerts", time.Since(start), result.Error)
	return candidates, wrap("select new alerts", result.Error)
}

// MarkAlerted records a dispatched pair. Insert-if-absent: the return value
// reports whether this call actually inserted the row; false means a race or
// replay got there first and the caller must not double-count.
func (db *DB) MarkAlerted(ctx context.Context, wallet, market string) (bool, error) {
	start := time.Now()
	record := &AlertRecord{
		WalletAddress: wallet,
		MarketID:      market,
		CreatedTS:     time.Now().Unix(),
	}
	result := db.conn.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(record)
	metrics.RecordDatabaseQuery("mark_alerted", time.Since(start), result.Error)
	if result.Error != nil {
		return false, wrap("mark alerted", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// IsAlerted reports whether a pair is already in the alert ledger
func (db *DB) IsAlerted(ctx context.Context, wallet, market string) (bool, error) {
	var count int64
	result := db.conn.WithContext(ctx).
		Model(&AlertRecord{}).
		Where("wallet_address = ? AND market_id = ?", wallet, market).
		Count(&count)
	if result.Error != nil {
		return false, wrap("is alerted", result.Error)
	}
	return count > 0, nil
}

// Counts summarizes ledger sizes for the operator CLI
type Counts struct {
	Profiles  int64
	Sharp     int64
	Sightings int64
	Alerts    int64
}

// CountAll returns row counts across the three ledgers
func (db *DB) CountAll(ctx context.Context) (*Counts, error) {
	var c Counts
	steps := []struct {
		dest  *int64
		query *gorm.DB
	}{
		{&c.Profiles, db.conn.WithContext(ctx).Model(&BettorProfile{})},
		{&c.Sharp, db.conn.WithContext(ctx).Model(&BettorProfile{}).Where("is_sharp = ?", true)},
		{&c.Sightings, db.conn.WithContext(ctx).Model(&WhaleSighting{})},
		{&c.Alerts, db.conn.WithContext(ctx).Model(&AlertRecord{})},
	}
	for _, step := range steps {
		if err := step.query.Count(step.dest).Error; err != nil {
			return nil, wrap("count", err)
		}
	}
	return &c, nil
}

// gormLogAdapter adapts logrus to GORM's logger interface
type gormLogAdapter struct {
	log *logrus.Logger
}

func (l *gormLogAdapter) Printf(format string, args ...interface{}) {
	l.log.Debugf(format, args...)
}
