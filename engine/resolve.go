package engine

import (
	"github.com/adamant-labs/fragment/geometry"
	"github.com/adamant-labs/fragment/shard"
	"github.com/google/uuid"
)

// resolveProcessActions maps every alive process's buffered command to a
// destination tile (or nil for "stays put"), then resolves defragmenter
// collisions, same-destination collisions, and vacated-tile chains to a
// fixed point. Swaps between two processes exchanging tiles succeed; wider
// cycles collapse to everyone staying.
func (e *TickEngine) resolveProcessActions(s *shard.State) map[uuid.UUID]*geometry.Tile {
	walls := s.WallSet()
	moves := make(map[uuid.UUID]*geometry.Tile, len(s.Processes))
	for _, pid := range s.ProcessOrder {
		proc := s.Processes[pid]
		if !proc.Alive {
			moves[pid] = nil
			continue
		}
		moves[pid] = e.intentDestination(s, proc, walls)
	}

	for pid, dest := range moves {
		if dest != nil && *dest == s.Defragger.Pos {
			moves[pid] = nil
		}
	}

	destClaimants := make(map[geometry.Tile][]uuid.UUID)
	for pid, dest := range moves {
		if dest == nil {
			continue
		}
		destClaimants[*dest] = append(destClaimants[*dest], pid)
	}
	for _, claimants := range destClaimants {
		if len(claimants) > 1 {
			for _, pid := range claimants {
				moves[pid] = nil
			}
		}
	}

	for changed := true; changed; {
		changed = false
		for pid, dest := range moves {
			if dest == nil {
				continue
			}
			occupant := s.ProcessAt(*dest)
			if occupant == nil || occupant.ID == pid {
				continue
			}
			occupantDest, tracked := moves[occupant.ID]
			if !tracked || occupantDest == nil || *occupantDest == occupant.Pos {
				moves[pid] = nil
				changed = true
			}
		}
	}

	e.collapseRotationCycles(s, moves)
	return moves
}

// collapseRotationCycles cancels every move participating in a closed
// rotation of length 3 or more (A into B's tile, B into C's, ..., back to
// A). A 2-cycle is a swap and is left alone; anything that is not part of
// a cycle has already bottomed out in the vacated-tile pass above.
func (e *TickEngine) collapseRotationCycles(s *shard.State, moves map[uuid.UUID]*geometry.Tile) {
	cancelled := make(map[uuid.UUID]bool)
	for _, startPID := range s.ProcessOrder {
		if moves[startPID] == nil || cancelled[startPID] {
			continue
		}
		var path []uuid.UUID
		index := make(map[uuid.UUID]int)
		cur := startPID
		for {
			if cancelled[cur] {
				break
			}
			if i, seen := index[cur]; seen {
				if cycle := path[i:]; len(cycle) >= 3 {
					for _, pid := range cycle {
						moves[pid] = nil
						cancelled[pid] = true
					}
				}
				break
			}
			dest := moves[cur]
			if dest == nil {
				break
			}
			occupant := s.ProcessAt(*dest)
			if occupant == nil || occupant.ID == cur {
				break
			}
			index[cur] = len(path)
			path = append(path, cur)
			cur = occupant.ID
		}
	}
}

// applyProcessMoves writes resolved destinations back to process positions,
// clears los_lock on a successful sprint, and consumes every alive
// process's buffered command (resetting it to IDLE).
func (e *TickEngine) applyProcessMoves(s *shard.State, moves map[uuid.UUID]*geometry.Tile) {
	for _, pid := range s.ProcessOrder {
		proc, ok := s.Processes[pid]
		if !ok || !proc.Alive {
			continue
		}
		if dest := moves[pid]; dest != nil {
			proc.Pos = *dest
			if proc.Buffered.Kind == shard.CommandBuffer {
				proc.LOSLock = false
				proc.LastSprintTick = s.Tick
			}
		}
		proc.Buffered = shard.Idle
	}
}

// intentDestination translates a process's buffered command into a
// candidate destination tile, per the numpad digit map: IDLE/BROADCAST/SAY
// never move; MOVE steps once; BUFFER (sprint) walks up to 3 tiles,
// preferring the intended direction at each step, subject to a cooldown.
func (e *TickEngine) intentDestination(s *shard.State, proc *shard.Process, walls map[uint64]geometry.WallEdge) *geometry.Tile {
	cmd := proc.Buffered
	if cmd.Kind != shard.CommandMove && cmd.Kind != shard.CommandBuffer {
		return nil
	}
	if len(cmd.Arg) != 1 {
		return nil
	}
	offset, ok := shard.DigitOffset[cmd.Arg[0]]
	if !ok {
		return nil
	}
	if offset.DX == 0 && offset.DY == 0 {
		return nil
	}
	target := geometry.Tile{X: proc.Pos.X + offset.DX, Y: proc.Pos.Y + offset.DY}
	if !geometry.InBounds(target) || !adjacentPassable(proc.Pos, target, walls) {
		return nil
	}
	if cmd.Kind == shard.CommandMove {
		return &target
	}

	// A negative LastSprintTick means the process has never sprinted.
	if proc.LastSprintTick >= 0 && s.Tick-proc.LastSprintTick <= int64(e.conf.SprintCooldownTicks) {
		return nil
	}
	current := proc.Pos
	for i := 0; i < 3; i++ {
		options := passableNeighbors8(current, walls)
		if len(options) == 0 {
			break
		}
		preferred := geometry.Tile{X: current.X + offset.DX, Y: current.Y + offset.DY}
		next := preferred
		if !containsTile(options, preferred) {
			next = options[e.rng.IntN(len(options))]
		}
		current = next
	}
	return &current
}

func adjacentPassable(a, b geometry.Tile, walls map[uint64]geometry.WallEdge) bool {
	dx, dy := b.X-a.X, b.Y-a.Y
	switch {
	case abs(dx)+abs(dy) == 1:
		return !geometry.WallBlocks(a, b, walls)
	case abs(dx) == 1 && abs(dy) == 1:
		return geometry.DiagonalLegal(a, b, walls)
	default:
		return false
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func passableNeighbors8(t geometry.Tile, walls map[uint64]geometry.WallEdge) []geometry.Tile {
	var out []geometry.Tile
	for _, n := range geometry.Neighbors8(t) {
		if geometry.InBounds(n) && adjacentPassable(t, n, walls) {
			out = append(out, n)
		}
	}
	return out
}

func containsTile(tiles []geometry.Tile, t geometry.Tile) bool {
	for _, c := range tiles {
		if c == t {
			return true
		}
	}
	return false
}
