package engine

import (
	"testing"

	"github.com/adamant-labs/fragment/geometry"
	"github.com/adamant-labs/fragment/shard"
	"github.com/stretchr/testify/require"
)

func TestSelectDefraggerTargetPrefersBroadcast(t *testing.T) {
	e := newTestTickEngine()
	s := newBareShard()
	p := addProc(s, geometry.Tile{X: 10, Y: 10}, shard.Idle)
	s.Broadcasts = append(s.Broadcasts, shard.Broadcast{ProcessID: p.ID, Message: "hi", TimestampMS: 100})

	targetID, reason, bonus := e.selectDefraggerTarget(s)
	require.NotNil(t, targetID)
	require.Equal(t, p.ID, *targetID)
	require.Equal(t, shard.ReasonBroadcast, reason)
	require.Equal(t, 1, bonus)
}

func TestSelectDefraggerTargetLOSOverPatrol(t *testing.T) {
	e := newTestTickEngine()
	s := newBareShard()
	s.Defragger.Pos = geometry.Tile{X: 0, Y: 0}
	p := addProc(s, geometry.Tile{X: 1, Y: 0}, shard.Idle)

	targetID, reason, _ := e.selectDefraggerTarget(s)
	require.NotNil(t, targetID)
	require.Equal(t, p.ID, *targetID)
	require.Equal(t, shard.ReasonLOS, reason)
	require.True(t, p.LOSLock)
}

func TestSelectDefraggerTargetPatrolWhenNothingVisible(t *testing.T) {
	e := newTestTickEngine()
	s := newBareShard()
	s.Defragger.Pos = geometry.Tile{X: 0, Y: 0}
	addProc(s, geometry.Tile{X: 5, Y: 19}, shard.Idle) // off-axis, off-diagonal: never LOS-visible

	targetID, reason, bonus := e.selectDefraggerTarget(s)
	require.Nil(t, targetID)
	require.Equal(t, shard.ReasonPatrol, reason)
	require.Equal(t, 0, bonus)
}

func TestFibBonusClampsAtTableEnd(t *testing.T) {
	require.Equal(t, 1, fibBonus(0))
	require.Equal(t, 13, fibBonus(6))
	require.Equal(t, 13, fibBonus(100))
	require.Equal(t, 0, fibBonus(-1))
}
