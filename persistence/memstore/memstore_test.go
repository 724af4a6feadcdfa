package memstore_test

import (
	"context"
	"testing"

	"github.com/adamant-labs/fragment/persistence/memstore"
	"github.com/adamant-labs/fragment/replay"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestLeaderboardOrdersBySurvivalsThenCallSign(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()

	s.RecordSurvival(ctx, "bravo")
	s.RecordSurvival(ctx, "alpha")
	s.RecordSurvival(ctx, "alpha")
	s.RecordDeath(ctx, "bravo")
	s.RecordGhost(ctx, "charlie")

	board, err := s.Leaderboard(ctx)
	require.NoError(t, err)
	require.Len(t, board, 3)
	require.Equal(t, "alpha", board[0].CallSign)
	require.Equal(t, 2, board[0].Survivals)
	require.Equal(t, "bravo", board[1].CallSign)
	require.Equal(t, 1, board[1].Deaths)
	require.Equal(t, "charlie", board[2].CallSign)
	require.Equal(t, 1, board[2].Ghosts)
}

func TestReplayTicksFilterByStartAndLimit(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	shardID := uuid.New()

	s.RegisterReplayShard(ctx, shardID)
	for i := int64(0); i < 5; i++ {
		s.RecordReplayTick(ctx, shardID, i, replay.Tick{TickNumber: i})
	}

	ticks, err := s.GetReplayTicks(ctx, shardID, 2, 2)
	require.NoError(t, err)
	require.Len(t, ticks, 2)
	require.Equal(t, int64(2), ticks[0].TickNumber)
	require.Equal(t, int64(3), ticks[1].TickNumber)
}

func TestFinalizeReplayShardSurfacesInListing(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	shardID := uuid.New()

	s.RegisterReplayShard(ctx, shardID)
	s.RecordReplayTick(ctx, shardID, 0, replay.Tick{TickNumber: 0})
	s.FinalizeReplayShard(ctx, shardID, 10, replay.ShardStats{})

	summaries, err := s.ListReplayShards(ctx, 0)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	require.Equal(t, shardID, summaries[0].ShardID)
	require.Equal(t, int64(10), summaries[0].TotalTicks)
}

func TestCloseIsNoop(t *testing.T) {
	require.NoError(t, memstore.New().Close())
}
