// Package drift mutates a shard's wall and gate topology once per tick,
// preserving connectivity and exit invariants. Ported from the original's
// segfault/engine/drift.py, generalized per spec.md §4.3 to try every
// shuffled replacement candidate for a wall (not just the first) before
// giving up on it, and to enforce gate-spacing (invariant I6) that the
// original's drift_gates does not check.
package drift

import (
	"math/rand/v2"
	"sort"

	"github.com/adamant-labs/fragment/geometry"
	"github.com/adamant-labs/fragment/shard"
)

// Walls moves a random subset (10%-25% of the wall count, at least one) of
// a shard's walls to an adjacent edge slot, preserving invariants I1
// (connectivity), I2 (every tile has an exit) and I3 (the STABLE gate has
// an exit). Wall count never changes.
func Walls(s *shard.State, rng *rand.Rand) {
	wallIDs := make([]int, 0, len(s.Walls))
	for id := range s.Walls {
		wallIDs = append(wallIDs, id)
	}
	if len(wallIDs) == 0 {
		return
	}
	n := len(wallIDs)
	minCount := maxInt(1, n*10/100)
	maxCount := maxInt(1, n*25/100)
	moveCount := minCount
	if maxCount > minCount {
		moveCount = minCount + rng.IntN(maxCount-minCount+1)
	}

	rng.Shuffle(len(wallIDs), func(i, j int) { wallIDs[i], wallIDs[j] = wallIDs[j], wallIDs[i] })
	selected := append([]int(nil), wallIDs[:moveCount]...)
	sort.Ints(selected)

	for _, wallID := range selected {
		current := s.Walls[wallID]
		candidates := geometry.AdjacentEdgeSlots(current)
		rng.Shuffle(len(candidates), func(i, j int) { candidates[i], candidates[j] = candidates[j], candidates[i] })

		occupied := make(map[uint64]struct{}, len(s.Walls))
		for id, e := range s.Walls {
			if id != wallID {
				occupied[e.Canonical().Key()] = struct{}{}
			}
		}

		for _, candidate := range candidates {
			if _, taken := occupied[candidate.Key()]; taken {
				continue
			}
			s.Walls[wallID] = candidate
			if constraintsOK(s) {
				break
			}
			s.Walls[wallID] = current
		}
	}
}

// Gates moves each gate to an unoccupied orthogonal neighbor tile that
// keeps every gate pair at Chebyshev distance >= 3 (invariant I6), in
// shuffled-candidate order; a gate with no legal move stays put.
func Gates(s *shard.State, rng *rand.Rand) {
	occupied := s.AlivePositions()
	occupied[s.Defragger.Pos] = struct{}{}

	for _, gate := range s.Gates {
		blocked := make(map[geometry.Tile]struct{}, len(occupied)+len(s.Gates))
		for t := range occupied {
			blocked[t] = struct{}{}
		}
		var others []*shard.Gate
		for _, other := range s.Gates {
			if other != gate {
				blocked[other.Pos] = struct{}{}
				others = append(others, other)
			}
		}

		candidates := geometry.OrthogonalNeighbors(gate.Pos)
		order := rng.Perm(len(candidates))
		for _, idx := range order {
			tile := candidates[idx]
			if !geometry.InBounds(tile) {
				continue
			}
			if _, taken := blocked[tile]; taken {
				continue
			}
			if tooClose(tile, others) {
				continue
			}
			gate.Pos = tile
			break
		}
	}
}

func tooClose(tile geometry.Tile, others []*shard.Gate) bool {
	for _, other := range others {
		if geometry.ChebyshevDistance(tile, other.Pos) < 3 {
			return true
		}
	}
	return false
}

// constraintsOK re-validates I1, I2 and I3 against the shard's current
// wall set.
func constraintsOK(s *shard.State) bool {
	walls := s.WallSet()
	if !geometry.IsFullyConnected(walls) {
		return false
	}
	for _, t := range geometry.AllTiles() {
		if geometry.ExitCount(t, walls) == 0 {
			return false
		}
	}
	if stable := s.StableGate(); stable != nil {
		if geometry.ExitCount(stable.Pos, walls) == 0 {
			return false
		}
	}
	return true
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
