package geometry

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWallEdgeCanonicalCommutes(t *testing.T) {
	a, b := Tile{2, 3}, Tile{2, 4}
	require.Equal(t, WallEdge{A: a, B: b}.Canonical(), WallEdge{A: b, B: a}.Canonical())
}

func TestEdgeSegmentForTiles(t *testing.T) {
	p1, p2 := NewWallEdge(Tile{0, 0}, Tile{1, 0}).Segment()
	require.Equal(t, Point{1, 0}, p1)
	require.Equal(t, Point{1, 1}, p2)

	p1, p2 = NewWallEdge(Tile{0, 0}, Tile{0, 1}).Segment()
	require.Equal(t, Point{0, 1}, p1)
	require.Equal(t, Point{1, 1}, p2)
}

func TestDiagonalThroughVertexDoesNotBlock(t *testing.T) {
	walls := toSet(NewWallEdge(Tile{0, 1}, Tile{1, 1}))
	require.True(t, DiagonalLegal(Tile{0, 0}, Tile{1, 1}, walls))
}

func TestDiagonalThroughCornerBlocks(t *testing.T) {
	walls := toSet(
		NewWallEdge(Tile{1, 1}, Tile{2, 1}),
		NewWallEdge(Tile{1, 1}, Tile{1, 2}),
	)
	require.False(t, DiagonalLegal(Tile{1, 1}, Tile{2, 2}, walls))
	require.False(t, LOSClear(Tile{0, 0}, Tile{2, 2}, walls))
}

func TestLOSNonAxisNonDiagonalAlwaysFalse(t *testing.T) {
	require.False(t, LOSClear(Tile{0, 0}, Tile{1, 3}, map[uint64]WallEdge{}))
}

func TestIsFullyConnectedNoWalls(t *testing.T) {
	require.True(t, IsFullyConnected(map[uint64]WallEdge{}))
}

func TestIsFullyConnectedSealedCellFails(t *testing.T) {
	sealed := Tile{5, 5}
	var edges []WallEdge
	for _, n := range OrthogonalNeighbors(sealed) {
		if InBounds(n) {
			edges = append(edges, NewWallEdge(sealed, n))
		}
	}
	walls := toSet(edges...)
	require.False(t, IsFullyConnected(walls))
	require.Equal(t, 0, ExitCount(sealed, walls))
}

func TestAdjacentEdgeSlotsShareAVertex(t *testing.T) {
	edge := NewWallEdge(Tile{5, 5}, Tile{6, 5})
	p1, p2 := edge.Segment()
	for _, cand := range AdjacentEdgeSlots(edge) {
		c1, c2 := cand.Segment()
		require.True(t, c1 == p1 || c1 == p2 || c2 == p1 || c2 == p2)
		require.NotEqual(t, edge.Canonical(), cand.Canonical())
	}
}

func TestDistanceMapMonotonic(t *testing.T) {
	dm := DistanceMap(Tile{10, 10}, map[uint64]WallEdge{})
	require.Equal(t, 0, dm[Tile{10, 10}])
	require.Equal(t, 1, dm[Tile{10, 11}])
}

func toSet(edges ...WallEdge) map[uint64]WallEdge {
	set := make(map[uint64]WallEdge, len(edges))
	for _, e := range edges {
		c := e.Canonical()
		set[c.Key()] = c
	}
	return set
}
