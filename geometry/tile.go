// Package geometry provides pure, stateless predicates over the fragment
// grid: tile adjacency, wall-edge blocking, diagonal passability, line of
// sight and connectivity. None of it touches shard or process state.
package geometry

import "fmt"

// GridSize is the fixed width and height of every shard's grid.
const GridSize = 20

// Tile is an integer grid cell. Tile centers sit at (X+0.5, Y+0.5).
type Tile struct {
	X, Y int
}

// Point is a planar coordinate used for segment-intersection math.
type Point struct {
	X, Y float64
}

func (t Tile) String() string {
	return fmt.Sprintf("(%d,%d)", t.X, t.Y)
}

// Less orders tiles lexicographically by (X, Y), used for every
// deterministic tie-break the spec requires ("smallest tile lexicographically").
func (t Tile) Less(o Tile) bool {
	if t.X != o.X {
		return t.X < o.X
	}
	return t.Y < o.Y
}

// InBounds reports whether t lies within [0, GridSize)^2.
func InBounds(t Tile) bool {
	return t.X >= 0 && t.X < GridSize && t.Y >= 0 && t.Y < GridSize
}

// Center returns the tile's center point, (X+0.5, Y+0.5).
func Center(t Tile) Point {
	return Point{X: float64(t.X) + 0.5, Y: float64(t.Y) + 0.5}
}

// OrthogonalNeighbors returns the 4 Manhattan-adjacent tiles, not bounds-checked.
func OrthogonalNeighbors(t Tile) [4]Tile {
	return [4]Tile{
		{t.X + 1, t.Y},
		{t.X - 1, t.Y},
		{t.X, t.Y + 1},
		{t.X, t.Y - 1},
	}
}

// Neighbors8 returns all 8 Chebyshev-adjacent tiles, not bounds-checked.
func Neighbors8(t Tile) [8]Tile {
	return [8]Tile{
		{t.X + 1, t.Y},
		{t.X - 1, t.Y},
		{t.X, t.Y + 1},
		{t.X, t.Y - 1},
		{t.X + 1, t.Y + 1},
		{t.X + 1, t.Y - 1},
		{t.X - 1, t.Y + 1},
		{t.X - 1, t.Y - 1},
	}
}

// ChebyshevDistance returns max(|dx|, |dy|) between two tiles.
func ChebyshevDistance(a, b Tile) int {
	dx, dy := abs(a.X-b.X), abs(a.Y-b.Y)
	if dx > dy {
		return dx
	}
	return dy
}

// ManhattanDistance returns |dx| + |dy| between two tiles.
func ManhattanDistance(a, b Tile) int {
	return abs(a.X-b.X) + abs(a.Y-b.Y)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// AllTiles returns every tile of the grid, ordered by X and then by Y.
func AllTiles() []Tile {
	tiles := make([]Tile, 0, GridSize*GridSize)
	for x := 0; x < GridSize; x++ {
		for y := 0; y < GridSize; y++ {
			tiles = append(tiles, Tile{x, y})
		}
	}
	return tiles
}
