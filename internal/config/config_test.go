package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Retry.MaxConsecutiveEmptyBidWindows != 5 {
		t.Errorf("Retry.MaxConsecutiveEmptyBidWindows = %d, want 5", cfg.Retry.MaxConsecutiveEmptyBidWindows)
	}
	if cfg.Retry.MaxConsecutiveEmptyWinnerResponseWindows != 100 {
		t.Errorf("Retry.MaxConsecutiveEmptyWinnerResponseWindows = %d, want 100", cfg.Retry.MaxConsecutiveEmptyWinnerResponseWindows)
	}
	if cfg.Auction.WaitingToReceiveBids() != 2*time.Second {
		t.Errorf("Auction.WaitingToReceiveBids() = %v, want 2s", cfg.Auction.WaitingToReceiveBids())
	}
	if cfg.Ledger.Enabled {
		t.Error("Ledger.Enabled should default to false (no persistence across runs by default)")
	}
}

func TestLoad_OverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fleet.toml")
	contents := `
[retry]
max_consecutive_empty_bid_windows = 3

[auction]
waiting_to_receive_bids = 7.5
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Retry.MaxConsecutiveEmptyBidWindows != 3 {
		t.Errorf("Retry.MaxConsecutiveEmptyBidWindows = %d, want 3", cfg.Retry.MaxConsecutiveEmptyBidWindows)
	}
	if cfg.Auction.WaitingToReceiveBids() != 7500*time.Millisecond {
		t.Errorf("Auction.WaitingToReceiveBids() = %v, want 7.5s", cfg.Auction.WaitingToReceiveBids())
	}
	// Untouched sections keep their defaults.
	if cfg.Retry.MaxConsecutiveEmptyWinnerResponseWindows != 100 {
		t.Errorf("Retry.MaxConsecutiveEmptyWinnerResponseWindows = %d, want 100 (untouched default)", cfg.Retry.MaxConsecutiveEmptyWinnerResponseWindows)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatal("Load() on a missing file should return an error")
	}
}
