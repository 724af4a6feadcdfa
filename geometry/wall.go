package geometry

import (
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// WallEdge is the unordered pair of orthogonally-adjacent tiles a wall
// separates, always stored canonical (lexicographically smaller tile
// first).
type WallEdge struct {
	A, B Tile
}

// NewWallEdge builds the canonical WallEdge separating two orthogonal
// neighbor tiles. Panics if a and b are not orthogonal neighbors, mirroring
// the original's ValueError on malformed input — callers only ever build a
// WallEdge from adjacency already established by EdgeSlots or drift.
func NewWallEdge(a, b Tile) WallEdge {
	if ManhattanDistance(a, b) != 1 {
		panic(fmt.Sprintf("geometry: %v and %v are not orthogonal neighbors", a, b))
	}
	return WallEdge{A: a, B: b}.Canonical()
}

// Canonical returns the edge with its tiles ordered lexicographically.
func (e WallEdge) Canonical() WallEdge {
	if e.B.Less(e.A) {
		return WallEdge{A: e.B, B: e.A}
	}
	return e
}

// Key returns an xxhash-backed identity for e, stable for any (a,b) order,
// suitable as a map key when de-duplicating candidate edges during drift.
func (e WallEdge) Key() uint64 {
	c := e.Canonical()
	var buf [16]byte
	binary.LittleEndian.PutUint32(buf[0:4], uint32(c.A.X))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(c.A.Y))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(c.B.X))
	binary.LittleEndian.PutUint32(buf[12:16], uint32(c.B.Y))
	return xxhash.Sum64(buf[:])
}

// Segment returns the unit boundary segment separating the edge's two
// tiles. Tiles are unit squares spanning (x,y) to (x+1,y+1); the edge lies
// on their shared boundary.
func (e WallEdge) Segment() (Point, Point) {
	c := e.Canonical()
	ax, ay := c.A.X, c.A.Y
	bx, by := c.B.X, c.B.Y
	dx, dy := bx-ax, by-ay
	switch {
	case dx == 1: // b is east of a: vertical edge at x+1
		x := float64(ax + 1)
		return Point{x, float64(ay)}, Point{x, float64(ay + 1)}
	case dy == 1: // b is north of a: horizontal edge at y+1
		y := float64(ay + 1)
		return Point{float64(ax), y}, Point{float64(ax + 1), y}
	default:
		panic(fmt.Sprintf("geometry: malformed canonical edge %v", c))
	}
}

// WallBlocks reports whether a and b are orthogonal neighbors separated by
// an active wall edge.
func WallBlocks(a, b Tile, walls map[uint64]WallEdge) bool {
	if ManhattanDistance(a, b) != 1 {
		return false
	}
	edge := WallEdge{A: a, B: b}.Canonical()
	_, ok := walls[edge.Key()]
	return ok
}

// EdgeSlots returns every canonical interior wall edge of the grid.
func EdgeSlots() []WallEdge {
	edges := make([]WallEdge, 0, 2*GridSize*(GridSize-1))
	for x := 0; x < GridSize; x++ {
		for y := 0; y < GridSize; y++ {
			if x+1 < GridSize {
				edges = append(edges, NewWallEdge(Tile{x, y}, Tile{x + 1, y}))
			}
			if y+1 < GridSize {
				edges = append(edges, NewWallEdge(Tile{x, y}, Tile{x, y + 1}))
			}
		}
	}
	return edges
}

// AdjacentEdgeSlots returns every distinct edge slot sharing a vertex with
// edge, excluding edge itself.
func AdjacentEdgeSlots(edge WallEdge) []WallEdge {
	p1, p2 := edge.Segment()
	canon := edge.Canonical()
	seen := make(map[uint64]struct{})
	var out []WallEdge
	for _, candidate := range EdgeSlots() {
		if candidate == canon {
			continue
		}
		c1, c2 := candidate.Segment()
		if c1 != p1 && c1 != p2 && c2 != p1 && c2 != p2 {
			continue
		}
		key := candidate.Key()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, candidate)
	}
	return out
}

// WallSet builds a lookup map keyed by WallEdge.Key from a wall_id -> edge
// mapping, the form ShardState stores and every geometry predicate expects.
func WallSet(walls map[int]WallEdge) map[uint64]WallEdge {
	set := make(map[uint64]WallEdge, len(walls))
	for _, e := range walls {
		c := e.Canonical()
		set[c.Key()] = c
	}
	return set
}
