package engine

import (
	"context"
	"testing"

	"github.com/adamant-labs/fragment/fragconf"
	"github.com/adamant-labs/fragment/geometry"
	"github.com/adamant-labs/fragment/persistence/memstore"
	"github.com/adamant-labs/fragment/shard"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// These exercise the literal end-to-end scenarios the collision/gate/
// watchdog mechanics are expected to satisfy, using the real multi-shard
// engine rather than a bare shard so genesis-placed gates are available.

func joinedEngine(t *testing.T) (*TickEngine, uuid.UUID, *shard.Process) {
	t.Helper()
	e := New(fragconf.Default(), memstore.New())
	ctx := context.Background()
	_, pid, ok, err := e.JoinProcess(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	sid := e.processShard[pid]
	s := e.shards[sid]
	return e, sid, s.Processes[pid]
}

func TestGhostGateTransferPreservesToken(t *testing.T) {
	e, sid, proc := joinedEngine(t)
	ctx := context.Background()
	s := e.shards[sid]

	var ghost *shard.Gate
	for _, g := range s.Gates {
		if g.Kind == shard.GateGhost {
			ghost = g
			break
		}
	}
	require.NotNil(t, ghost)

	var token uuid.UUID
	for tok, entry := range e.sessionTokens {
		if entry.processID == proc.ID {
			token = tok
		}
	}
	require.NotEqual(t, uuid.Nil, token)

	oldID := proc.ID
	proc.Pos = ghost.Pos

	e.resolveGateInteractions(ctx, s)

	_, stillThere := s.Processes[oldID]
	require.False(t, stillThere)

	entry, ok := e.sessionTokens[token]
	require.True(t, ok)
	require.NotEqual(t, oldID, entry.processID)
	require.Contains(t, e.processShard, entry.processID)
}

func TestStableGateSurvivalEndsProcess(t *testing.T) {
	e, sid, proc := joinedEngine(t)
	ctx := context.Background()
	s := e.shards[sid]

	stable := s.StableGate()
	require.NotNil(t, stable)
	proc.Pos = stable.Pos

	e.resolveGateInteractions(ctx, s)

	_, stillThere := s.Processes[proc.ID]
	require.False(t, stillThere)
	require.Contains(t, s.TickEvents.Survivals, proc.ID)
	require.Equal(t, 1, s.Counters.TotalSurvivals)
}

func TestBroadcastTieBreakAndEscalation(t *testing.T) {
	e := newTestTickEngine()
	s := newBareShard()
	// Both off-axis and off-diagonal from the defragger at (0,0), so the
	// empty-inbox case below falls through to patrol rather than LOS.
	a := addProc(s, geometry.Tile{X: 5, Y: 19}, shard.Idle)
	b := addProc(s, geometry.Tile{X: 7, Y: 18}, shard.Idle)

	// Tie at ts=100: lexicographically-smaller id wins, bonus = Fib[0] = 1.
	lo, hi := a.ID, b.ID
	if hi.String() < lo.String() {
		lo, hi = hi, lo
	}
	s.Broadcasts = []shard.Broadcast{{ProcessID: hi, TimestampMS: 100}, {ProcessID: lo, TimestampMS: 100}}
	targetID, reason, bonus := e.selectDefraggerTarget(s)
	require.Equal(t, lo, *targetID)
	require.Equal(t, shard.ReasonBroadcast, reason)
	require.Equal(t, 1, bonus)

	// Two broadcasts from the same process: idx = min(count-1, len-1) = 1,
	// FibonacciEscalation[1] = 1.
	s.Broadcasts = []shard.Broadcast{{ProcessID: a.ID, TimestampMS: 100}, {ProcessID: a.ID, TimestampMS: 101}}
	targetID, _, bonus = e.selectDefraggerTarget(s)
	require.Equal(t, a.ID, *targetID)
	require.Equal(t, 1, bonus)

	s.Broadcasts = nil
	targetID, reason, bonus = e.selectDefraggerTarget(s)
	require.Nil(t, targetID)
	require.Equal(t, shard.ReasonPatrol, reason)
	require.Equal(t, 0, bonus)
}

func TestSwapAllowedScenario(t *testing.T) {
	e := newTestTickEngine()
	s := newBareShard()
	p1 := addProc(s, geometry.Tile{X: 1, Y: 1}, shard.Command{Kind: shard.CommandMove, Arg: "6"})
	p2 := addProc(s, geometry.Tile{X: 2, Y: 1}, shard.Command{Kind: shard.CommandMove, Arg: "4"})

	moves := e.resolveProcessActions(s)
	require.Equal(t, geometry.Tile{X: 2, Y: 1}, *moves[p1.ID])
	require.Equal(t, geometry.Tile{X: 1, Y: 1}, *moves[p2.ID])
}

func TestSharedDestinationCollisionScenario(t *testing.T) {
	e := newTestTickEngine()
	s := newBareShard()
	p1 := addProc(s, geometry.Tile{X: 1, Y: 1}, shard.Command{Kind: shard.CommandMove, Arg: "8"})
	p2 := addProc(s, geometry.Tile{X: 1, Y: 3}, shard.Command{Kind: shard.CommandMove, Arg: "2"})

	moves := e.resolveProcessActions(s)
	require.Nil(t, moves[p1.ID])
	require.Nil(t, moves[p2.ID])
	require.Equal(t, geometry.Tile{X: 1, Y: 1}, p1.Pos)
	require.Equal(t, geometry.Tile{X: 1, Y: 3}, p2.Pos)
}

func TestSprintCooldownBlocksSecondConsecutiveMove(t *testing.T) {
	e := newTestTickEngine()
	s := newBareShard()
	walls := s.WallSet()
	p := addProc(s, geometry.Tile{X: 5, Y: 5}, shard.Command{Kind: shard.CommandBuffer, Arg: "8"})

	first := e.intentDestination(s, p, walls)
	require.NotNil(t, first)
	p.LastSprintTick = s.Tick

	p.Buffered = shard.Command{Kind: shard.CommandBuffer, Arg: "8"}
	second := e.intentDestination(s, p, walls)
	require.Nil(t, second)
}

func TestWatchdogEscalationEndToEnd(t *testing.T) {
	conf := fragconf.Default()
	conf.QuietTicksWarning = 2
	conf.WatchdogCountdown = 2
	e := New(conf, memstore.New())
	s := newBareShard()
	// Process far from the defragger, never LOS-visible (off-axis, off-diagonal).
	addProc(s, geometry.Tile{X: 5, Y: 19}, shard.Idle)

	ctx := context.Background()
	for i := 0; i < 4; i++ {
		e.tickShard(ctx, s)
	}
	require.True(t, s.Watchdog.Active)
	require.Equal(t, 0, s.Watchdog.BonusStep)

	e.tickShard(ctx, s)
	require.Equal(t, 1, s.Watchdog.BonusStep)
}
