// Package fragconf loads and defaults the operator-tunable constants of the
// fragment engine, the way server.Config does for the teacher's Minecraft
// server and LoadWhitelist does for its TOML-backed settings file.
package fragconf

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/pelletier/go-toml"
)

// Config holds every tunable constant the engine, scheduler and transport
// layers need. When loaded through Load, keys missing from the file keep
// Default()'s values; keys present in the file replace them.
type Config struct {
	// Log is the Logger used throughout the engine. Defaults to
	// slog.Default() if nil.
	Log *slog.Logger `toml:"-"`

	// GridSize mirrors geometry.GridSize for display/config-file purposes
	// only; the grid is fixed at compile time (spec Non-goal: arbitrary
	// grid sizes), so a value here that disagrees with geometry.GridSize
	// is a config error the caller should reject, not a runtime knob.
	GridSize               int     `toml:"grid_size"`
	MaxProcessesPerShard   int     `toml:"max_processes_per_shard"`
	MaxTotalProcesses      int     `toml:"max_total_processes"`
	InitialWallCount       int     `toml:"initial_wall_count"`
	MinActiveProcesses     int     `toml:"min_active_processes"`
	EmptyShardTicks        int     `toml:"empty_shard_ticks"`
	RandomSeed             int64   `toml:"random_seed"`
	TickSeconds            float64 `toml:"tick_seconds"`
	QuietTicksWarning      int     `toml:"quiet_ticks_warning"`
	WatchdogCountdown      int     `toml:"watchdog_countdown"`
	SprintCooldownTicks    int     `toml:"sprint_cooldown_ticks"`
	SayEventTTLTicks       int     `toml:"say_event_ttl_ticks"`
	EchoTTLTicks           int     `toml:"echo_ttl_ticks"`
	ChatArtifactProb       float64 `toml:"chat_artifact_prob"`
	ChatArtifactBurstMax   int     `toml:"chat_artifact_burst_max"`
	DefraggerWanderProb    float64 `toml:"defragger_wander_prob"`
	TokenTTLSeconds        int     `toml:"token_ttl_seconds"`
	SpectatorSendTimeoutMS int     `toml:"spectator_send_timeout_ms"`
}

// FibonacciEscalation is the fixed bonus-step table the watchdog and
// broadcast-targeting logic index into, clamped at its last entry.
var FibonacciEscalation = [7]int{1, 1, 2, 3, 5, 8, 13}

// Default returns the engine's baked-in constants, matching spec.md §6 and
// the values confirmed against the original's common/config.py (see
// SPEC_FULL.md §4.8).
func Default() Config {
	return Config{
		Log:                    slog.Default(),
		GridSize:               20,
		MaxProcessesPerShard:   50,
		MaxTotalProcesses:      1000,
		InitialWallCount:       80,
		MinActiveProcesses:     1,
		EmptyShardTicks:        12,
		RandomSeed:             42,
		TickSeconds:            10,
		QuietTicksWarning:      6,
		WatchdogCountdown:      5,
		SprintCooldownTicks:    1,
		SayEventTTLTicks:       3,
		EchoTTLTicks:           4,
		ChatArtifactProb:       0.012,
		ChatArtifactBurstMax:   3,
		DefraggerWanderProb:    0.15,
		TokenTTLSeconds:        3600,
		SpectatorSendTimeoutMS: 1000,
	}
}

// Load reads a TOML config file at path and overlays it onto Default(),
// the way LoadWhitelist tolerates a missing file by falling back to
// defaults rather than failing.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("fragconf: read %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("fragconf: parse %s: %w", path, err)
	}
	return cfg, nil
}

// Logger returns cfg.Log, or slog.Default() if unset.
func (c Config) Logger() *slog.Logger {
	if c.Log != nil {
		return c.Log
	}
	return slog.Default()
}
