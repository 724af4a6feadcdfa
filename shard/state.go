// Package shard holds the authoritative in-memory state of a single
// fragment world: its walls, gates, processes, defragmenter and watchdog.
// It is pure data — all mutation lives in the engine and drift packages,
// which hold the engine lock while touching it.
package shard

import (
	"time"

	"github.com/adamant-labs/fragment/geometry"
	"github.com/google/uuid"
)

// GateKind distinguishes a survival exit from a shard-transfer exit.
type GateKind string

const (
	GateStable GateKind = "STABLE"
	GateGhost  GateKind = "GHOST"
)

// Gate is a tile-occupying world-exit: STABLE ends a process's run as a
// survival, GHOST transfers its identity to another shard.
type Gate struct {
	Kind GateKind
	Pos  geometry.Tile
}

// Process is a single player-controlled unit living on a shard's grid.
type Process struct {
	ID             uuid.UUID
	CallSign       string
	Pos            geometry.Tile
	Buffered       Command
	Alive          bool
	LOSLock        bool
	LastSprintTick int64
}

// Broadcast is a shard-wide message submitted this tick, retained only
// until the tick that consumes it for defragmenter targeting.
type Broadcast struct {
	ProcessID   uuid.UUID
	Message     string
	TimestampMS int64
}

// SayRecipient names one recipient of a local chat message and the tile
// they stood at when it was recorded.
type SayRecipient struct {
	ProcessID uuid.UUID
	Pos       geometry.Tile
}

// SayEvent is a recorded local-chat message, kept for a short rolling
// window for spectators.
type SayEvent struct {
	SenderID    uuid.UUID
	SenderPos   geometry.Tile
	Message     string
	Recipients  []SayRecipient
	TimestampMS int64
	Tick        int64
}

// EchoTile is a transient marker left at the location of a killed process.
type EchoTile struct {
	Pos  geometry.Tile
	Tick int64
}

// TargetReason explains why the defragmenter is pursuing its current
// target, or why it has none.
type TargetReason string

const (
	ReasonBroadcast TargetReason = "broadcast"
	ReasonLOS       TargetReason = "los"
	ReasonWatchdog  TargetReason = "watchdog"
	ReasonPatrol    TargetReason = "patrol"
)

// Defragmenter is the single adversarial agent of a shard.
type Defragmenter struct {
	Pos                geometry.Tile
	TargetID           *uuid.UUID
	TargetReason       TargetReason
	LastLOSTargetID    *uuid.UUID
	TargetAcquiredTick int64
}

// Watchdog tracks scheduler liveness and escalates the defragmenter when
// processes avoid engagement for too long.
type Watchdog struct {
	QuietTicks       int
	Countdown        int
	Active           bool
	BonusStep        int
	RestoredThisTick bool
}

// TickEvents accumulates the bookkeeping a single tick produced, reset at
// the start of each tick to the spawns pending from the previous one.
type TickEvents struct {
	Spawns    []uuid.UUID
	Kills     []uuid.UUID
	Survivals []uuid.UUID
	Ghosts    []uuid.UUID
}

// Counters are cumulative, never-reset per-shard statistics.
type Counters struct {
	TotalProcesses int
	TotalKills     int
	TotalSurvivals int
	TotalGhosts    int
}

// State is one independent, isolated simulated world: its topology,
// occupants, and rolling traces. Every field is mutated only by the engine
// and drift packages under the engine lock.
type State struct {
	ID uuid.UUID

	Walls map[int]geometry.WallEdge // wall_id -> edge, stable across drift
	Gates []*Gate

	Processes       map[uuid.UUID]*Process
	ProcessOrder    []uuid.UUID // insertion order, for stable iteration
	Defragger       Defragmenter
	Watchdog        Watchdog

	Broadcasts []Broadcast
	SayEvents  []SayEvent
	EchoTiles  []EchoTile

	TickEvents     TickEvents
	PendingSpawns  []uuid.UUID

	Tick       int64
	EmptyTicks int

	Counters Counters

	NoiseBurstRemaining int
}

// New builds an empty shard with the given id, walls and gates; the
// defragmenter starts at defraggerPos. Processes are added later via the
// engine.
func New(id uuid.UUID, walls map[int]geometry.WallEdge, gates []*Gate, defraggerPos geometry.Tile) *State {
	return &State{
		ID:        id,
		Walls:     walls,
		Gates:     gates,
		Processes: make(map[uuid.UUID]*Process),
		Defragger: Defragmenter{Pos: defraggerPos},
	}
}

// WallSet returns the current wall topology as a geometry-predicate-ready
// lookup set.
func (s *State) WallSet() map[uint64]geometry.WallEdge {
	return geometry.WallSet(s.Walls)
}

// StableGate returns the shard's single STABLE gate, if present.
func (s *State) StableGate() *Gate {
	for _, g := range s.Gates {
		if g.Kind == GateStable {
			return g
		}
	}
	return nil
}

// GateAt returns the gate occupying tile, if any.
func (s *State) GateAt(tile geometry.Tile) *Gate {
	for _, g := range s.Gates {
		if g.Pos == tile {
			return g
		}
	}
	return nil
}

// ProcessAt returns the living process occupying tile, if any.
func (s *State) ProcessAt(tile geometry.Tile) *Process {
	for _, pid := range s.ProcessOrder {
		p, ok := s.Processes[pid]
		if ok && p.Alive && p.Pos == tile {
			return p
		}
	}
	return nil
}

// AddProcess registers p in insertion order.
func (s *State) AddProcess(p *Process) {
	s.Processes[p.ID] = p
	s.ProcessOrder = append(s.ProcessOrder, p.ID)
}

// RemoveProcess deletes pid from the shard's process map and order slice.
func (s *State) RemoveProcess(pid uuid.UUID) {
	delete(s.Processes, pid)
	for i, id := range s.ProcessOrder {
		if id == pid {
			s.ProcessOrder = append(s.ProcessOrder[:i], s.ProcessOrder[i+1:]...)
			break
		}
	}
}

// AlivePositions returns the set of tiles occupied by living processes.
func (s *State) AlivePositions() map[geometry.Tile]struct{} {
	out := make(map[geometry.Tile]struct{}, len(s.Processes))
	for _, pid := range s.ProcessOrder {
		if p := s.Processes[pid]; p.Alive {
			out[p.Pos] = struct{}{}
		}
	}
	return out
}

// GatePositions returns the set of tiles occupied by gates.
func (s *State) GatePositions() map[geometry.Tile]struct{} {
	out := make(map[geometry.Tile]struct{}, len(s.Gates))
	for _, g := range s.Gates {
		out[g.Pos] = struct{}{}
	}
	return out
}

// NowMS returns the current wall-clock time in milliseconds, the clock
// used for broadcast/say/event timestamps throughout the engine.
func NowMS() int64 {
	return time.Now().UnixMilli()
}
