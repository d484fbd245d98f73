// Package tracker runs the scan cycle: refresh bettor profiles, sweep active
// sports markets for tracked wallets, and dispatch alerts for fresh sightings
// by sharp bettors.
package tracker

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sharpwatch/sharpwatch/internal/alerts"
	"github.com/sharpwatch/sharpwatch/internal/config"
	"github.com/sharpwatch/sharpwatch/internal/feeds"
	"github.com/sharpwatch/sharpwatch/internal/metrics"
	"github.com/sharpwatch/sharpwatch/internal/storage"
	"github.com/sirupsen/logrus"
)

// Store is the persistence surface the tracker drives
type Store interface {
	GetState(ctx context.Context, key string) (string, error)
	SetState(ctx context.Context, key, value string) error
	GetProfile(ctx context.Context, wallet string) (*storage.BettorProfile, error)
	UpsertProfile(ctx context.Context, p *storage.BettorProfile) error
	IsProfileStale(ctx context.Context, wallet string, maxAge time.Duration) (bool, error)
	SharpWallets(ctx context.Context) ([]string, error)
	SharpProfiles(ctx context.Context, limit int) ([]storage.BettorProfile, error)
	TrackedWallets(ctx context.Context, minVolume float64) ([]string, error)
	RecordSighting(ctx context.Context, s *storage.WhaleSighting) error
	SelectNewAlerts(ctx context.Context, window time.Duration, minPositionValue float64, limit int) ([]storage.AlertCandidate, error)
	MarkAlerted(ctx context.Context, wallet, market string) (bool, error)
	IsAlerted(ctx context.Context, wallet, market string) (bool, error)
}

// Tracker orchestrates one scan cycle at a time
type Tracker struct {
	cfg         *config.Config
	store       Store
	markets     feeds.MarketFeed
	holders     feeds.HolderFeed
	profiles    feeds.ProfileFeed
	leaderboard feeds.LeaderboardFeed
	sender      alerts.Sender
	log         *logrus.Logger
	running     atomic.Bool

	// Injected for tests
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration)
}

// New creates a new tracker
func New(
	cfg *config.Config,
	store Store,
	markets feeds.MarketFeed,
	holders feeds.HolderFeed,
	profiles feeds.ProfileFeed,
	leaderboard feeds.LeaderboardFeed,
	sender alerts.Sender,
	log *logrus.Logger,
) *Tracker {
	return &Tracker{
		cfg:         cfg,
		store:       store,
		markets:     markets,
		holders:     holders,
		profiles:    profiles,
		leaderboard: leaderboard,
		sender:      sender,
		log:         log,
		now:         time.Now,
		sleep: func(ctx context.Context, d time.Duration) {
			timer := time.NewTimer(d)
			defer timer.Stop()
			select {
			case <-ctx.Done():
			case <-timer.C:
			}
		},
	}
}

// RunCycle runs one full scan cycle. Overlapping invocations are rejected:
// if a previous cycle is still running this returns immediately. A stage
// failing on feed data is isolated to that stage; a storage failure aborts
// the remainder of the cycle.
func (t *Tracker) RunCycle(ctx context.Context) error {
	if !t.running.CompareAndSwap(false, true) {
		t.log.Warn("Previous scan cycle still running, skipping")
		metrics.RecordCycle("skipped", 0)
		return nil
	}
	defer t.running.Store(false)

	cycleID := uuid.NewString()[:8]
	clog := t.log.WithField("cycle_id", cycleID)
	start := t.now()
	clog.Info("Scan cycle started")

	stages := []struct {
		name string
		run  func(context.Context, *logrus.Entry) error
	}{
		{"refresh_wallets", t.refreshWallets},
		{"ingest_markets", t.ingestMarkets},
		{"dispatch", t.dispatchAlerts},
	}

	for _, stage := range stages {
		stageStart := t.now()
		err := stage.run(ctx, clog.WithField("stage", stage.name))
		metrics.RecordStage(stage.name, t.now().Sub(stageStart))
		if err != nil {
			clog.WithError(err).WithField("stage", stage.name).Error("Scan cycle aborted")
			metrics.RecordCycle("aborted", t.now().Sub(start))
			return fmt.Errorf("stage %s: %w", stage.name, err)
		}
	}

	if err := t.store.SetState(ctx, "last_cycle_completed_ts", strconv.FormatInt(t.now().Unix(), 10)); err != nil {
		clog.WithError(err).Error("Failed to record cycle checkpoint")
	}

	metrics.RecordCycle("completed", t.now().Sub(start))
	clog.WithField("duration", t.now().Sub(start).String()).Info("Scan cycle completed")
	return nil
}

// refreshWallets re-scrapes stale bettor profiles. Ranked wallets from the
// leaderboard feed go first, then the rest of the tracked working set, bounded
// by the per-cycle refresh budget. A wallet whose profile feed lookup fails is
// skipped; only storage failures abort.
func (t *Tracker) refreshWallets(ctx context.Context, log *logrus.Entry) error {
	ranks := make(map[string]int)
	var candidates []string

	ranked, err := t.leaderboard.TopWallets(ctx, t.cfg.LeaderboardSize)
	if err != nil {
		log.WithError(err).Warn("Leaderboard feed unavailable, refreshing tracked wallets only")
	}
	for _, r := range ranked {
		wallet, err := feeds.NormalizeWallet(r.Wallet)
		if err != nil {
			log.WithError(err).WithField("wallet", r.Wallet).Warn("Dropping malformed leaderboard wallet")
			continue
		}
		if _, seen := ranks[wallet]; seen {
			continue
		}
		ranks[wallet] = r.Rank
		candidates = append(candidates, wallet)
	}

	tracked, err := t.store.TrackedWallets(ctx, t.cfg.TrackedMinVolume)
	if err != nil {
		return err
	}
	for _, wallet := range tracked {
		if _, seen := ranks[wallet]; !seen {
			candidates = append(candidates, wallet)
		}
	}

	refreshed := 0
	for _, wallet := range candidates {
		if refreshed >= t.cfg.MaxProfileRefreshPerCycle {
			break
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		stale, err := t.store.IsProfileStale(ctx, wallet, t.cfg.ProfileMaxAge)
		if err != nil {
			return err
		}
		if !stale {
			continue
		}

		obs, err := t.profiles.Profile(ctx, wallet)
		if err != nil {
			log.WithError(err).WithField("wallet", wallet).Warn("Profile fetch failed, keeping previous snapshot")
			metrics.ProfilesRefreshed.WithLabelValues("error").Inc()
			continue
		}
		if obs == nil {
			// No trading history for this wallet yet
			metrics.ProfilesRefreshed.WithLabelValues("missing").Inc()
			continue
		}

		profile := &storage.BettorProfile{
			WalletAddress:  wallet,
			Username:       obs.Username,
			TotalPnL:       obs.TotalPnL,
			TotalVolume:    obs.TotalVolume,
			MarketsTraded:  obs.MarketsTraded,
			PositionsValue: obs.PositionsValue,
			LastUpdated:    t.now().Unix(),
		}
		if rank, ok := ranks[wallet]; ok {
			profile.LeaderboardRank = &rank
		}

		if err := t.store.UpsertProfile(ctx, profile); err != nil {
			return err
		}
		metrics.ProfilesRefreshed.WithLabelValues("success").Inc()
		refreshed++
	}

	sharp, err := t.store.SharpWallets(ctx)
	if err != nil {
		return err
	}
	metrics.SharpWallets.Set(float64(len(sharp)))

	log.WithFields(logrus.Fields{
		"candidates": len(candidates),
		"refreshed":  refreshed,
		"sharp":      len(sharp),
	}).Info("Wallet refresh complete")
	return nil
}

// ingestMarkets sweeps every configured category's active markets for
// positions held by tracked wallets, recording sightings. Markets are worked
// in batches by a bounded worker pool; a holder feed failure costs only that
// market.
func (t *Tracker) ingestMarkets(ctx context.Context, log *logrus.Entry) error {
	trackedList, err := t.store.TrackedWallets(ctx, t.cfg.TrackedMinVolume)
	if err != nil {
		return err
	}
	tracked := make(map[string]struct{}, len(trackedList))
	for _, w := range trackedList {
		tracked[w] = struct{}{}
	}
	if len(tracked) == 0 {
		log.Info("No tracked wallets yet, skipping market sweep")
		return nil
	}

	workerPool := make(chan struct{}, t.cfg.MarketWorkers)
	for i := 0; i < t.cfg.MarketWorkers; i++ {
		workerPool <- struct{}{}
	}

	var mu sync.Mutex
	var storageErr error
	recorded := 0

	for _, category := range t.cfg.MarketCategories {
		mu.Lock()
		aborted := storageErr
		mu.Unlock()
		if aborted != nil {
			break
		}

		marketList, err := t.markets.ActiveMarkets(ctx, category)
		if err != nil {
			log.WithError(err).WithField("category", category).Warn("Market feed failed, skipping category")
			metrics.MarketsIngested.WithLabelValues(category, "error").Inc()
			continue
		}

		for start := 0; start < len(marketList); start += t.cfg.BatchSize {
			end := start + t.cfg.BatchSize
			if end > len(marketList) {
				end = len(marketList)
			}

			var wg sync.WaitGroup
			for _, market := range marketList[start:end] {
				wg.Add(1)
				go func(m feeds.Market) {
					defer wg.Done()

					<-workerPool
					defer func() { workerPool <- struct{}{} }()

					n, err := t.scanMarket(ctx, log, m, tracked)
					if err != nil {
						if storage.IsStorageError(err) {
							mu.Lock()
							if storageErr == nil {
								storageErr = err
							}
							mu.Unlock()
							return
						}
						log.WithError(err).WithField("market", m.ID).Warn("Market scan failed, skipping market")
						metrics.MarketsIngested.WithLabelValues(m.Category, "error").Inc()
						return
					}
					metrics.MarketsIngested.WithLabelValues(m.Category, "success").Inc()
					mu.Lock()
					recorded += n
					mu.Unlock()
				}(market)
			}
			wg.Wait()

			mu.Lock()
			aborted := storageErr
			mu.Unlock()
			if aborted != nil {
				return aborted
			}
		}
	}

	if storageErr != nil {
		return storageErr
	}

	log.WithField("sightings", recorded).Info("Market sweep complete")
	return nil
}

// scanMarket fetches one market's holders and records sightings for tracked
// wallets. Returns the number of sightings written.
func (t *Tracker) scanMarket(ctx context.Context, log *logrus.Entry, market feeds.Market, tracked map[string]struct{}) (int, error) {
	observations, err := t.holders.MarketHolders(ctx, market)
	if err != nil {
		return 0, err
	}

	nowTS := t.now().Unix()
	recorded := 0
	for _, obs := range observations {
		wallet, err := feeds.NormalizeWallet(obs.Wallet)
		if err != nil {
			// Display names and truncated addresses show up in scraped
			// holder lists; they are not observations we can key
			log.WithField("holder", obs.Wallet).Debug("Dropping unparseable holder entry")
			continue
		}
		if _, ok := tracked[wallet]; !ok {
			continue
		}

		sighting := &storage.WhaleSighting{
			WalletAddress:  wallet,
			MarketID:       market.ID,
			Category:       market.Category,
			Side:           string(obs.Side),
			MarketQuestion: market.Title,
			FirstSeen:      nowTS,
			LastSeen:       nowTS,
		}
		if err := t.store.RecordSighting(ctx, sighting); err != nil {
			return recorded, err
		}
		metrics.SightingsRecorded.WithLabelValues("new").Inc()
		recorded++
	}

	return recorded, nil
}

// dispatchAlerts selects not-yet-alerted sightings by sharp wallets and sends
// them, pacing sends and marking each pair only after its dispatch succeeded.
// A failed send leaves the pair unmarked so the next cycle retries it.
func (t *Tracker) dispatchAlerts(ctx context.Context, log *logrus.Entry) error {
	candidates, err := t.store.SelectNewAlerts(ctx, t.cfg.RecencyWindow, t.cfg.MinPositionValue, t.cfg.MaxAlertsPerCycle)
	if err != nil {
		return err
	}
	if len(candidates) == 0 {
		log.Info("No new alerts to dispatch")
		return nil
	}

	sent := 0
	for i, cand := range candidates {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		// The select ran against a snapshot; re-check the ledger in case a
		// concurrent writer marked the pair since
		already, err := t.store.IsAlerted(ctx, cand.WalletAddress, cand.MarketID)
		if err != nil {
			return err
		}
		if already {
			metrics.AlertsSuppressed.Inc()
			continue
		}

		payload := &alerts.Payload{
			WalletAddress:  cand.WalletAddress,
			WalletShort:    alerts.ShortWallet(cand.WalletAddress),
			Username:       cand.Username,
			TotalPnL:       cand.TotalPnL,
			ROI:            cand.ROI,
			PositionValue:  cand.PositionsValue,
			MarketID:       cand.MarketID,
			MarketQuestion: cand.MarketQuestion,
			Category:       cand.Category,
			Side:           cand.Side,
			FirstSeen:      time.Unix(cand.FirstSeen, 0),
			Environment:    t.cfg.Environment,
		}

		if err := t.sender.Send(ctx, payload); err != nil {
			log.WithError(err).WithFields(logrus.Fields{
				"wallet": cand.WalletAddress,
				"market": cand.MarketID,
			}).Error("Alert dispatch failed, will retry next cycle")
			metrics.AlertsDispatched.WithLabelValues("error").Inc()
			continue
		}

		inserted, err := t.store.MarkAlerted(ctx, cand.WalletAddress, cand.MarketID)
		if err != nil {
			return err
		}
		if !inserted {
			metrics.AlertsSuppressed.Inc()
			continue
		}
		metrics.AlertsDispatched.WithLabelValues("success").Inc()
		sent++

		if i < len(candidates)-1 {
			t.sleep(ctx, t.cfg.DispatchDelay)
		}
	}

	log.WithFields(logrus.Fields{
		"candidates": len(candidates),
		"sent":       sent,
	}).Info("Alert dispatch complete")
	return nil
}

// PostLeaderboard sends the daily digest of top sharp bettors by ROI
func (t *Tracker) PostLeaderboard(ctx context.Context) error {
	profiles, err := t.store.SharpProfiles(ctx, 10)
	if err != nil {
		return fmt.Errorf("load sharp profiles: %w", err)
	}
	if len(profiles) == 0 {
		t.log.Info("No sharp bettors yet, skipping leaderboard digest")
		return nil
	}

	body := ""
	for i, p := range profiles {
		name := p.Username
		if name == "" {
			name = alerts.ShortWallet(p.WalletAddress)
		}
		body += fmt.Sprintf("%d. %s: %s profit, %.1f%% ROI on %s volume\n",
			i+1, name, alerts.FormatUSD(p.TotalPnL), p.ROI, alerts.FormatUSD(p.TotalVolume))
	}

	if err := t.sender.SendDigest(ctx, "Sharp Bettor Leaderboard", body); err != nil {
		return fmt.Errorf("send digest: %w", err)
	}

	t.log.WithField("entries", len(profiles)).Info("Leaderboard digest posted")
	return nil
}
