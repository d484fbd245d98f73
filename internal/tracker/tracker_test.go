package tracker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sharpwatch/sharpwatch/internal/alerts"
	"github.com/sharpwatch/sharpwatch/internal/classifier"
	"github.com/sharpwatch/sharpwatch/internal/config"
	"github.com/sharpwatch/sharpwatch/internal/feeds"
	"github.com/sharpwatch/sharpwatch/internal/storage"
	"github.com/sirupsen/logrus"
)

const (
	walletSharp  = "0x1111111111111111111111111111111111111111"
	walletWhale  = "0x2222222222222222222222222222222222222222"
	walletRandom = "0x3333333333333333333333333333333333333333"
)

// fakeStore is an in-memory Store with the same ledger semantics as the
// MySQL-backed implementation.
type fakeStore struct {
	mu         sync.Mutex
	thresholds classifier.Thresholds
	now        func() time.Time

	state     map[string]string
	profiles  map[string]*storage.BettorProfile
	sightings map[string]*storage.WhaleSighting
	alerted   map[string]bool

	failOp string // operation name that returns a StorageError
}

func newFakeStore(th classifier.Thresholds, now func() time.Time) *fakeStore {
	return &fakeStore{
		thresholds: th,
		now:        now,
		state:      make(map[string]string),
		profiles:   make(map[string]*storage.BettorProfile),
		sightings:  make(map[string]*storage.WhaleSighting),
		alerted:    make(map[string]bool),
	}
}

func (s *fakeStore) fail(op string) error {
	if s.failOp == op {
		return &storage.StorageError{Op: op, Err: errors.New("injected")}
	}
	return nil
}

func pairKey(wallet, market string) string { return wallet + "|" + market }

func (s *fakeStore) GetState(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state[key], nil
}

func (s *fakeStore) SetState(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state[key] = value
	return nil
}

func (s *fakeStore) GetProfile(ctx context.Context, wallet string) (*storage.BettorProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[wallet]
	if !ok {
		return nil, nil
	}
	copied := *p
	return &copied, nil
}

func (s *fakeStore) UpsertProfile(ctx context.Context, p *storage.BettorProfile) error {
	if err := s.fail("upsert_profile"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p.ROI = classifier.ROI(p.TotalPnL, p.TotalVolume)
	p.IsSharp = s.thresholds.IsSharp(p.TotalPnL, p.ROI, p.TotalVolume)
	copied := *p
	s.profiles[p.WalletAddress] = &copied
	return nil
}

func (s *fakeStore) IsProfileStale(ctx context.Context, wallet string, maxAge time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[wallet]
	if !ok {
		return true, nil
	}
	return s.now().Unix()-p.LastUpdated > int64(maxAge.Seconds()), nil
}

func (s *fakeStore) SharpWallets(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var wallets []string
	for w, p := range s.profiles {
		if p.IsSharp {
			wallets = append(wallets, w)
		}
	}
	return wallets, nil
}

func (s *fakeStore) SharpProfiles(ctx context.Context, limit int) ([]storage.BettorProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var profiles []storage.BettorProfile
	for _, p := range s.profiles {
		if p.IsSharp {
			profiles = append(profiles, *p)
		}
	}
	sort.Slice(profiles, func(i, j int) bool { return profiles[i].ROI > profiles[j].ROI })
	if len(profiles) > limit {
		profiles = profiles[:limit]
	}
	return profiles, nil
}

func (s *fakeStore) TrackedWallets(ctx context.Context, minVolume float64) ([]string, error) {
	if err := s.fail("tracked_wallets"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var wallets []string
	for w, p := range s.profiles {
		if p.IsSharp || p.TotalVolume > minVolume || p.LeaderboardRank != nil {
			wallets = append(wallets, w)
		}
	}
	sort.Strings(wallets)
	return wallets, nil
}

func (s *fakeStore) RecordSighting(ctx context.Context, sighting *storage.WhaleSighting) error {
	if err := s.fail("record_sighting"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := pairKey(sighting.WalletAddress, sighting.MarketID)
	if existing, ok := s.sightings[key]; ok {
		existing.LastSeen = sighting.LastSeen
		existing.Side = sighting.Side
		existing.MarketQuestion = sighting.MarketQuestion
		existing.Category = sighting.Category
		return nil
	}
	copied := *sighting
	s.sightings[key] = &copied
	return nil
}

func (s *fakeStore) SelectNewAlerts(ctx context.Context, window time.Duration, minPositionValue float64, limit int) ([]storage.AlertCandidate, error) {
	if err := s.fail("select_new_alerts"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.now().Add(-window).Unix()
	var candidates []storage.AlertCandidate
	for key, sighting := range s.sightings {
		if s.alerted[key] || sighting.FirstSeen <= cutoff {
			continue
		}
		p, ok := s.profiles[sighting.WalletAddress]
		if !ok || !p.IsSharp || p.PositionsValue < minPositionValue {
			continue
		}
		candidates = append(candidates, storage.AlertCandidate{
			WalletAddress:  sighting.WalletAddress,
			Username:       p.Username,
			TotalPnL:       p.TotalPnL,
			ROI:            p.ROI,
			PositionsValue: p.PositionsValue,
			MarketID:       sighting.MarketID,
			MarketQuestion: sighting.MarketQuestion,
			Category:       sighting.Category,
			Side:           sighting.Side,
			FirstSeen:      sighting.FirstSeen,
		})
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].FirstSeen > candidates[j].FirstSeen })
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}

func (s *fakeStore) MarkAlerted(ctx context.Context, wallet, market string) (bool, error) {
	if err := s.fail("mark_alerted"); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := pairKey(wallet, market)
	if s.alerted[key] {
		return false, nil
	}
	s.alerted[key] = true
	return true, nil
}

func (s *fakeStore) IsAlerted(ctx context.Context, wallet, market string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.alerted[pairKey(wallet, market)], nil
}

// Fake feeds

type fakeMarkets struct {
	byCategory map[string][]feeds.Market
	err        error
}

func (f *fakeMarkets) ActiveMarkets(ctx context.Context, category string) ([]feeds.Market, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.byCategory[category], nil
}

type fakeHolders struct {
	byMarket map[string][]feeds.HolderObservation
	errFor   map[string]error
}

func (f *fakeHolders) MarketHolders(ctx context.Context, market feeds.Market) ([]feeds.HolderObservation, error) {
	if err := f.errFor[market.ID]; err != nil {
		return nil, err
	}
	return f.byMarket[market.ID], nil
}

type fakeProfiles struct {
	byWallet map[string]*feeds.ProfileObservation
}

func (f *fakeProfiles) Profile(ctx context.Context, wallet string) (*feeds.ProfileObservation, error) {
	obs, ok := f.byWallet[wallet]
	if !ok {
		return nil, nil
	}
	copied := *obs
	return &copied, nil
}

type fakeLeaderboard struct {
	wallets []feeds.RankedWallet
	err     error
}

func (f *fakeLeaderboard) TopWallets(ctx context.Context, limit int) ([]feeds.RankedWallet, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(f.wallets) > limit {
		return f.wallets[:limit], nil
	}
	return f.wallets, nil
}

type fakeSender struct {
	mu       sync.Mutex
	sent     []*alerts.Payload
	digests  []string
	failNext int
}

func (f *fakeSender) Send(ctx context.Context, payload *alerts.Payload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext > 0 {
		f.failNext--
		return fmt.Errorf("sender unavailable")
	}
	f.sent = append(f.sent, payload)
	return nil
}

func (f *fakeSender) SendDigest(ctx context.Context, title, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.digests = append(f.digests, title+"\n"+body)
	return nil
}

func (f *fakeSender) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

// Harness

type harness struct {
	cfg         *config.Config
	store       *fakeStore
	markets     *fakeMarkets
	holders     *fakeHolders
	profiles    *fakeProfiles
	leaderboard *fakeLeaderboard
	sender      *fakeSender
	tracker     *Tracker
	clock       time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	cfg := &config.Config{
		Environment:               "test",
		MinPnL:                    10000,
		MinROI:                    10,
		MinVolume:                 50000,
		MinPositionValue:          5000,
		RecencyWindow:             24 * time.Hour,
		ProfileMaxAge:             6 * time.Hour,
		TrackedMinVolume:          100000,
		BatchSize:                 2,
		MaxProfileRefreshPerCycle: 25,
		MaxAlertsPerCycle:         10,
		LeaderboardSize:           50,
		MarketWorkers:             2,
		MarketCategories:          []string{"nfl"},
		DispatchDelay:             0,
	}

	h := &harness{
		cfg:         cfg,
		markets:     &fakeMarkets{byCategory: make(map[string][]feeds.Market)},
		holders:     &fakeHolders{byMarket: make(map[string][]feeds.HolderObservation), errFor: make(map[string]error)},
		profiles:    &fakeProfiles{byWallet: make(map[string]*feeds.ProfileObservation)},
		leaderboard: &fakeLeaderboard{},
		sender:      &fakeSender{},
		clock:       time.Unix(1700000000, 0),
	}

	now := func() time.Time { return h.clock }
	h.store = newFakeStore(cfg.Sharpness(), now)

	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	h.tracker = New(cfg, h.store, h.markets, h.holders, h.profiles, h.leaderboard, h.sender, log)
	h.tracker.now = now
	h.tracker.sleep = func(ctx context.Context, d time.Duration) {}

	return h
}

// seedSharpScenario sets up one sharp wallet, one merely high-volume wallet,
// and one nfl market both hold positions in.
func (h *harness) seedSharpScenario() {
	h.leaderboard.wallets = []feeds.RankedWallet{
		{Wallet: walletSharp, Rank: 1},
		{Wallet: walletWhale, Rank: 2},
	}
	h.profiles.byWallet[walletSharp] = &feeds.ProfileObservation{
		Username:       "sharpshooter",
		TotalPnL:       15000,
		TotalVolume:    60000,
		MarketsTraded:  40,
		PositionsValue: 12000,
	}
	// High volume but negative P&L: tracked, never alerted
	h.profiles.byWallet[walletWhale] = &feeds.ProfileObservation{
		Username:       "degen",
		TotalPnL:       -40000,
		TotalVolume:    900000,
		MarketsTraded:  300,
		PositionsValue: 50000,
	}
	h.markets.byCategory["nfl"] = []feeds.Market{
		{ID: "m1", Slug: "chiefs-sb", Category: "nfl", Title: "Will the Chiefs win the Super Bowl?"},
	}
	h.holders.byMarket["m1"] = []feeds.HolderObservation{
		{Wallet: walletSharp, Side: feeds.SideYes, PositionValue: 12000},
		{Wallet: walletWhale, Side: feeds.SideNo, PositionValue: 50000},
		{Wallet: walletRandom, Side: feeds.SideYes, PositionValue: 300},
		{Wallet: "SomeDisplayName", Side: feeds.SideYes, PositionValue: 999},
	}
}

func TestRunCycleAlertsSharpBettorExactlyOnce(t *testing.T) {
	h := newHarness(t)
	h.seedSharpScenario()

	if err := h.tracker.RunCycle(context.Background()); err != nil {
		t.Fatalf("first cycle: %v", err)
	}

	if got := h.sender.sentCount(); got != 1 {
		t.Fatalf("sent %d alerts, want 1", got)
	}
	payload := h.sender.sent[0]
	if payload.WalletAddress != walletSharp {
		t.Errorf("alerted wallet %s, want %s", payload.WalletAddress, walletSharp)
	}
	if payload.Username != "sharpshooter" || payload.Side != "YES" {
		t.Errorf("unexpected payload: %+v", payload)
	}
	if ok, _ := h.store.IsAlerted(context.Background(), walletSharp, "m1"); !ok {
		t.Error("alert ledger not marked after successful dispatch")
	}

	// Same observations next cycle: replay must not alert again
	h.clock = h.clock.Add(30 * time.Minute)
	if err := h.tracker.RunCycle(context.Background()); err != nil {
		t.Fatalf("second cycle: %v", err)
	}
	if got := h.sender.sentCount(); got != 1 {
		t.Errorf("sent %d alerts after replay cycle, want still 1", got)
	}
}

func TestRunCycleFirstSeenImmutableAcrossReplays(t *testing.T) {
	h := newHarness(t)
	h.seedSharpScenario()

	if err := h.tracker.RunCycle(context.Background()); err != nil {
		t.Fatalf("first cycle: %v", err)
	}
	first := h.store.sightings[pairKey(walletSharp, "m1")].FirstSeen

	h.clock = h.clock.Add(2 * time.Hour)
	if err := h.tracker.RunCycle(context.Background()); err != nil {
		t.Fatalf("second cycle: %v", err)
	}

	sighting := h.store.sightings[pairKey(walletSharp, "m1")]
	if sighting.FirstSeen != first {
		t.Errorf("FirstSeen moved from %d to %d on replay", first, sighting.FirstSeen)
	}
	if sighting.LastSeen <= first {
		t.Errorf("LastSeen %d not advanced past %d", sighting.LastSeen, first)
	}
}

func TestRunCycleRetriesFailedDispatchNextCycle(t *testing.T) {
	h := newHarness(t)
	h.seedSharpScenario()
	h.sender.failNext = 1

	if err := h.tracker.RunCycle(context.Background()); err != nil {
		t.Fatalf("first cycle: %v", err)
	}
	if got := h.sender.sentCount(); got != 0 {
		t.Fatalf("sent %d alerts despite sender failure, want 0", got)
	}
	if ok, _ := h.store.IsAlerted(context.Background(), walletSharp, "m1"); ok {
		t.Fatal("pair marked alerted even though dispatch failed")
	}

	h.clock = h.clock.Add(30 * time.Minute)
	if err := h.tracker.RunCycle(context.Background()); err != nil {
		t.Fatalf("second cycle: %v", err)
	}
	if got := h.sender.sentCount(); got != 1 {
		t.Errorf("sent %d alerts after retry cycle, want 1", got)
	}
}

func TestRunCycleIsolatesHolderFeedFailure(t *testing.T) {
	h := newHarness(t)
	h.seedSharpScenario()
	h.markets.byCategory["nfl"] = append(h.markets.byCategory["nfl"],
		feeds.Market{ID: "m2", Category: "nfl", Title: "Will the Jets make the playoffs?"})
	h.holders.byMarket["m2"] = []feeds.HolderObservation{
		{Wallet: walletSharp, Side: feeds.SideNo, PositionValue: 8000},
	}
	h.holders.errFor["m1"] = feeds.Transient("holders", errors.New("render timed out"))

	if err := h.tracker.RunCycle(context.Background()); err != nil {
		t.Fatalf("cycle failed: %v", err)
	}

	if _, ok := h.store.sightings[pairKey(walletSharp, "m1")]; ok {
		t.Error("sighting recorded for failed market")
	}
	if _, ok := h.store.sightings[pairKey(walletSharp, "m2")]; !ok {
		t.Error("healthy market skipped because a sibling market failed")
	}
}

func TestRunCycleAbortsOnStorageError(t *testing.T) {
	h := newHarness(t)
	h.seedSharpScenario()
	h.store.failOp = "record_sighting"

	err := h.tracker.RunCycle(context.Background())
	if err == nil {
		t.Fatal("cycle did not abort on storage error")
	}
	if !storage.IsStorageError(err) {
		t.Errorf("cycle error %v does not wrap StorageError", err)
	}
	if got := h.sender.sentCount(); got != 0 {
		t.Errorf("dispatched %d alerts after aborted cycle, want 0", got)
	}
}

func TestRunCycleSkipsWhenAlreadyRunning(t *testing.T) {
	h := newHarness(t)
	h.seedSharpScenario()
	h.tracker.running.Store(true)

	if err := h.tracker.RunCycle(context.Background()); err != nil {
		t.Fatalf("overlapping cycle returned error: %v", err)
	}
	if got := h.sender.sentCount(); got != 0 {
		t.Errorf("overlapping cycle did work: %d alerts sent", got)
	}
	if len(h.store.sightings) != 0 {
		t.Errorf("overlapping cycle recorded %d sightings", len(h.store.sightings))
	}
}

func TestRunCycleSkipsStaleSightings(t *testing.T) {
	h := newHarness(t)
	h.seedSharpScenario()

	if err := h.tracker.RunCycle(context.Background()); err != nil {
		t.Fatalf("first cycle: %v", err)
	}

	// Unmark and age the sighting past the recency window: it must not
	// come back even though it is unalerted
	h.store.mu.Lock()
	delete(h.store.alerted, pairKey(walletSharp, "m1"))
	h.store.mu.Unlock()
	h.clock = h.clock.Add(25 * time.Hour)
	h.profiles.byWallet = map[string]*feeds.ProfileObservation{} // no refreshes

	if err := h.tracker.RunCycle(context.Background()); err != nil {
		t.Fatalf("second cycle: %v", err)
	}
	if got := h.sender.sentCount(); got != 1 {
		t.Errorf("stale sighting re-alerted: %d sends, want 1", got)
	}
}

func TestPostLeaderboard(t *testing.T) {
	h := newHarness(t)
	h.seedSharpScenario()

	if err := h.tracker.RunCycle(context.Background()); err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if err := h.tracker.PostLeaderboard(context.Background()); err != nil {
		t.Fatalf("PostLeaderboard: %v", err)
	}

	if len(h.sender.digests) != 1 {
		t.Fatalf("posted %d digests, want 1", len(h.sender.digests))
	}
	digest := h.sender.digests[0]
	if !strings.Contains(digest, "sharpshooter") {
		t.Errorf("digest missing sharp bettor name:\n%s", digest)
	}
	if strings.Contains(digest, "degen") {
		t.Errorf("digest includes non-sharp wallet:\n%s", digest)
	}
}

func TestPostLeaderboardEmptyIsNoop(t *testing.T) {
	h := newHarness(t)

	if err := h.tracker.PostLeaderboard(context.Background()); err != nil {
		t.Fatalf("PostLeaderboard: %v", err)
	}
	if len(h.sender.digests) != 0 {
		t.Errorf("posted %d digests with no sharp bettors, want 0", len(h.sender.digests))
	}
}
