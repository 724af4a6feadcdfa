package engine

import (
	"fmt"

	"github.com/adamant-labs/fragment/geometry"
	"github.com/adamant-labs/fragment/shard"
)

// generateWalls samples InitialWallCount edges from edge_slots that
// preserve full connectivity and leave every tile with an exit, retrying
// up to 500 times; on persistent failure it backs off the target count by
// 10 and retries 200 times per level until a valid layout is found.
func (e *TickEngine) generateWalls() (map[int]geometry.WallEdge, error) {
	edges := geometry.EdgeSlots()
	target := e.conf.InitialWallCount
	for target > 0 {
		attempts := 500
		if target != e.conf.InitialWallCount {
			attempts = 200
		}
		for i := 0; i < attempts; i++ {
			e.rng.Shuffle(len(edges), func(a, b int) { edges[a], edges[b] = edges[b], edges[a] })
			selected := edges[:target]
			set := geometry.WallSet(indexed(selected))
			if !geometry.IsFullyConnected(set) {
				continue
			}
			ok := true
			for _, t := range geometry.AllTiles() {
				if geometry.ExitCount(t, set) == 0 {
					ok = false
					break
				}
			}
			if ok {
				return indexed(selected), nil
			}
		}
		target -= 10
	}
	return nil, fmt.Errorf("engine: no valid wall layout found")
}

func indexed(edges []geometry.WallEdge) map[int]geometry.WallEdge {
	out := make(map[int]geometry.WallEdge, len(edges))
	for i, e := range edges {
		out[i] = e
	}
	return out
}

// generateGates places one STABLE gate and 1-3 GHOST gates, each at
// Chebyshev distance >= 3 from every gate already placed.
func (e *TickEngine) generateGates(walls map[int]geometry.WallEdge) ([]*shard.Gate, error) {
	stablePos, err := e.randomEmptyTile(nil, nil)
	if err != nil {
		return nil, err
	}
	gates := []*shard.Gate{{Kind: shard.GateStable, Pos: stablePos}}
	ghostCount := 1 + e.rng.IntN(3)
	for i := 0; i < ghostCount; i++ {
		tooClose := make(map[geometry.Tile]struct{})
		for _, g := range gates {
			for dx := -2; dx <= 2; dx++ {
				for dy := -2; dy <= 2; dy++ {
					tooClose[geometry.Tile{X: g.Pos.X + dx, Y: g.Pos.Y + dy}] = struct{}{}
				}
			}
		}
		pos, err := e.randomEmptyTile(nil, tooClose)
		if err != nil {
			return nil, err
		}
		gates = append(gates, &shard.Gate{Kind: shard.GateGhost, Pos: pos})
	}
	return gates, nil
}
