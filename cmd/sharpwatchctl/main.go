// sharpwatchctl is the operator tool for the sharpwatch database: ledger
// stats, sharp bettor export, and wallet purges.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/sharpwatch/sharpwatch/internal/alerts"
	"github.com/sharpwatch/sharpwatch/internal/config"
	"github.com/sharpwatch/sharpwatch/internal/feeds"
	"github.com/sharpwatch/sharpwatch/internal/storage"
	"github.com/sirupsen/logrus"
)

func main() {
	var (
		stats   = flag.Bool("stats", false, "print ledger statistics and the top sharp bettors")
		export  = flag.String("export", "", "export sharp bettor profiles as JSON to the given file")
		purge   = flag.String("purge", "", "delete one wallet's profile (requires -confirm)")
		confirm = flag.Bool("confirm", false, "confirm a destructive operation")
	)
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{})
	log.SetLevel(logrus.WarnLevel)

	cfg, err := config.Load()
	if err != nil {
		fatalf("load configuration: %v", err)
	}

	db, err := storage.New(cfg, log)
	if err != nil {
		fatalf("connect to database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	switch {
	case *stats:
		err = printStats(ctx, db)
	case *export != "":
		err = exportSharp(ctx, db, *export)
	case *purge != "":
		err = purgeWallet(ctx, db, *purge, *confirm)
	default:
		flag.Usage()
		os.Exit(2)
	}

	if err != nil {
		fatalf("%v", err)
	}
}

func printStats(ctx context.Context, db *storage.DB) error {
	counts, err := db.CountAll(ctx)
	if err != nil {
		return err
	}

	recent, err := db.SightingsSince(ctx, time.Now().Add(-24*time.Hour).Unix())
	if err != nil {
		return err
	}

	fmt.Println("Ledger statistics")
	fmt.Printf("  profiles:      %d\n", counts.Profiles)
	fmt.Printf("  sharp:         %d\n", counts.Sharp)
	fmt.Printf("  sightings:     %d\n", counts.Sightings)
	fmt.Printf("  sightings 24h: %d\n", len(recent))
	fmt.Printf("  alerts:        %d\n", counts.Alerts)

	top, err := db.SharpProfiles(ctx, 5)
	if err != nil {
		return err
	}
	if len(top) == 0 {
		return nil
	}

	fmt.Println("\nTop sharp bettors")
	for i, p := range top {
		name := p.Username
		if name == "" {
			name = alerts.ShortWallet(p.WalletAddress)
		}
		fmt.Printf("  %d. %s: %s profit, %.1f%% ROI on %s volume\n",
			i+1, name, alerts.FormatUSD(p.TotalPnL), p.ROI, alerts.FormatUSD(p.TotalVolume))
	}
	return nil
}

func exportSharp(ctx context.Context, db *storage.DB, path string) error {
	profiles, err := db.SharpProfiles(ctx, 1000)
	if err != nil {
		return err
	}

	type exportedProfile struct {
		WalletAddress string  `json:"wallet_address"`
		Username      string  `json:"username,omitempty"`
		TotalPnL      float64 `json:"total_pnl"`
		TotalVolume   float64 `json:"total_volume"`
		ROI           float64 `json:"roi"`
		MarketsTraded int     `json:"markets_traded"`
		LastUpdated   int64   `json:"last_updated"`
	}

	out := make([]exportedProfile, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, exportedProfile{
			WalletAddress: p.WalletAddress,
			Username:      p.Username,
			TotalPnL:      p.TotalPnL,
			TotalVolume:   p.TotalVolume,
			ROI:           p.ROI,
			MarketsTraded: p.MarketsTraded,
			LastUpdated:   p.LastUpdated,
		})
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal profiles: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	fmt.Printf("Exported %d sharp bettors to %s\n", len(out), path)
	return nil
}

func purgeWallet(ctx context.Context, db *storage.DB, wallet string, confirm bool) error {
	normalized, err := feeds.NormalizeWallet(wallet)
	if err != nil {
		return fmt.Errorf("invalid wallet address %q: %w", wallet, err)
	}
	if !confirm {
		return fmt.Errorf("refusing to purge %s without -confirm", normalized)
	}

	if err := db.PurgeProfile(ctx, normalized); err != nil {
		return fmt.Errorf("purge %s: %w", normalized, err)
	}

	fmt.Printf("Purged profile %s\n", normalized)
	return nil
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "sharpwatchctl: "+format+"\n", args...)
	os.Exit(1)
}
