// Package config loads fleet simulation configuration from TOML, mirroring
// the teacher's daemon.DefaultConfig()/config-from-TOML convention
// (internal/daemon/config_test.go in the retrieval pack exercises that
// shape for a different config tree; this package follows the same
// pattern for the auction/central delay knobs spec.md §6 describes).
package config

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
)

// AuctionDelays are the iterated-auction protocol's wait windows, all
// positive. Field names match spec.md §6's table.
type AuctionDelays struct {
	SubscribeTopicSeconds               float64 `toml:"subscribe_topic"`
	WaitingToReceiveBidsSeconds         float64 `toml:"waiting_to_receive_bids"`
	WaitingToReceiveWinnerResponseSeconds float64 `toml:"waiting_to_receive_winner_responses"`
}

// SubscribeTopic is the staggered per-ability-group subscription delay.
func (d AuctionDelays) SubscribeTopic() time.Duration {
	return time.Duration(d.SubscribeTopicSeconds * float64(time.Second))
}

// WaitingToReceiveBids is the CFP -> bid-processing window.
func (d AuctionDelays) WaitingToReceiveBids() time.Duration {
	return time.Duration(d.WaitingToReceiveBidsSeconds * float64(time.Second))
}

// WaitingToReceiveWinnerResponses is the winner-notify -> response window.
func (d AuctionDelays) WaitingToReceiveWinnerResponses() time.Duration {
	return time.Duration(d.WaitingToReceiveWinnerResponseSeconds * float64(time.Second))
}

// CentralDelays are the round-robin allocator's wait windows.
type CentralDelays struct {
	WaitToReceiveAssignmentResponseSeconds float64 `toml:"wait_to_receive_assignment_response"`
	WaitToReceiveStatusUpdateSeconds       float64 `toml:"wait_to_receive_status_update"`
}

// WaitToReceiveAssignmentResponse is the assignment -> response window
// after which an unacknowledged assignment is reassigned.
func (d CentralDelays) WaitToReceiveAssignmentResponse() time.Duration {
	return time.Duration(d.WaitToReceiveAssignmentResponseSeconds * float64(time.Second))
}

// WaitToReceiveStatusUpdate is the status-poll window.
func (d CentralDelays) WaitToReceiveStatusUpdate() time.Duration {
	return time.Duration(d.WaitToReceiveStatusUpdateSeconds * float64(time.Second))
}

// RetryCaps are the starvation thresholds (spec.md §4.4c, §6).
type RetryCaps struct {
	MaxConsecutiveEmptyBidWindows             int `toml:"max_consecutive_empty_bid_windows"`
	MaxConsecutiveEmptyWinnerResponseWindows int `toml:"max_consecutive_empty_winner_response_windows"`
}

// Config is the complete process-wide configuration for a fleet
// simulation run.
type Config struct {
	Auction AuctionDelays `toml:"auction"`
	Central CentralDelays `toml:"central"`
	Retry   RetryCaps     `toml:"retry"`
	Ledger  LedgerConfig  `toml:"ledger"`
}

// LedgerConfig controls the optional SQLite run ledger. Dir holds
// ledger.db, the directory internal/infra/ledger.Open creates it in.
type LedgerConfig struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir"`
}

// Default returns the spec's documented defaults: 5/100 retry caps and the
// delay values used throughout spec.md's worked scenarios.
func Default() Config {
	return Config{
		Auction: AuctionDelays{
			SubscribeTopicSeconds:                 0.1,
			WaitingToReceiveBidsSeconds:            2,
			WaitingToReceiveWinnerResponseSeconds:  2,
		},
		Central: CentralDelays{
			WaitToReceiveAssignmentResponseSeconds: 5,
			WaitToReceiveStatusUpdateSeconds:        10,
		},
		Retry: RetryCaps{
			MaxConsecutiveEmptyBidWindows:             5,
			MaxConsecutiveEmptyWinnerResponseWindows: 100,
		},
		Ledger: LedgerConfig{
			Enabled: false,
			Dir:     ".",
		},
	}
}

// Load reads and parses a TOML configuration file at path, filling any
// field the file omits with Default()'s value.
func Load(path string) (Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: load %s: %w", path, err)
	}
	return cfg, nil
}
