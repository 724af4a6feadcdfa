// Package persistence defines the abstract sink the engine writes
// survival/death/ghost counters and replay records through, per spec.md
// §4.6. The engine never observes write failures or ordering beyond the
// contract documented on Port; concrete adapters live in memstore and
// leveldbstore.
package persistence

import (
	"context"

	"github.com/adamant-labs/fragment/replay"
	"github.com/google/uuid"
)

// LeaderboardEntry is one row of Port.Leaderboard, ordered by survivals
// descending then call sign ascending.
type LeaderboardEntry struct {
	CallSign  string
	Survivals int
	Deaths    int
	Ghosts    int
}

// Port is the minimum interface the tick engine requires of a persistence
// backend. Record* methods are fire-and-forget: the engine does not await
// or retry them. The only ordering guarantee is that a shard's
// RegisterReplayShard call happens-before any RecordReplayTick for that
// shard.
type Port interface {
	RecordSurvival(ctx context.Context, callSign string)
	RecordDeath(ctx context.Context, callSign string)
	RecordGhost(ctx context.Context, callSign string)

	Leaderboard(ctx context.Context) ([]LeaderboardEntry, error)

	RegisterReplayShard(ctx context.Context, shardID uuid.UUID)
	RecordReplayTick(ctx context.Context, shardID uuid.UUID, tick int64, snapshot replay.Tick)
	FinalizeReplayShard(ctx context.Context, shardID uuid.UUID, totalTicks int64, stats replay.ShardStats)

	ListReplayShards(ctx context.Context, limit int) ([]replay.ShardSummary, error)
	GetReplayTicks(ctx context.Context, shardID uuid.UUID, startTick int64, limit int) ([]replay.Tick, error)

	Close() error
}
