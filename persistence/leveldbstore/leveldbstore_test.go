package leveldbstore_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/adamant-labs/fragment/persistence/leveldbstore"
	"github.com/adamant-labs/fragment/replay"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *leveldbstore.Store {
	t.Helper()
	s, err := leveldbstore.Open(filepath.Join(t.TempDir(), "fragment.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, s.Close()) })
	return s
}

func TestLeaderboardOrdersBySurvivalsThenCallSign(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	s.RecordSurvival(ctx, "bravo")
	s.RecordSurvival(ctx, "alpha")
	s.RecordSurvival(ctx, "alpha")
	s.RecordDeath(ctx, "bravo")

	board, err := s.Leaderboard(ctx)
	require.NoError(t, err)
	require.Len(t, board, 2)
	require.Equal(t, "alpha", board[0].CallSign)
	require.Equal(t, 2, board[0].Survivals)
	require.Equal(t, "bravo", board[1].CallSign)
	require.Equal(t, 1, board[1].Deaths)
}

func TestReplayTicksOrderedByBigEndianKey(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	shardID := uuid.New()

	s.RegisterReplayShard(ctx, shardID)
	for i := int64(0); i < 5; i++ {
		s.RecordReplayTick(ctx, shardID, i, replay.Tick{TickNumber: i})
	}

	ticks, err := s.GetReplayTicks(ctx, shardID, 3, 0)
	require.NoError(t, err)
	require.Len(t, ticks, 2)
	require.Equal(t, int64(3), ticks[0].TickNumber)
	require.Equal(t, int64(4), ticks[1].TickNumber)
}

func TestFinalizeReplayShardSurfacesInListing(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	shardID := uuid.New()

	s.RegisterReplayShard(ctx, shardID)
	s.FinalizeReplayShard(ctx, shardID, 42, replay.ShardStats{TotalKills: 3})

	summaries, err := s.ListReplayShards(ctx, 0)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	require.Equal(t, shardID, summaries[0].ShardID)
	require.Equal(t, int64(42), summaries[0].TotalTicks)
	require.Equal(t, 3, summaries[0].Stats.TotalKills)
}
