package geometry

import "github.com/go-gl/mathgl/mgl64"

// eps is the tolerance used for orientation and overlap tests.
const eps = 1e-9

func vec(p Point) mgl64.Vec2 { return mgl64.Vec2{p.X, p.Y} }

// orientation returns 0 for colinear, 1 for clockwise, 2 for
// counter-clockwise, matching the standard cross-product sign test.
func orientation(a, b, c Point) int {
	ab, ac := vec(b).Sub(vec(a)), vec(c).Sub(vec(a))
	val := ab.Y()*ac.X() - ab.X()*ac.Y()
	if val > -eps && val < eps {
		return 0
	}
	if val > 0 {
		return 1
	}
	return 2
}

// onSegment reports whether point c lies on segment ab, inclusive of
// endpoints.
func onSegment(a, b, c Point) bool {
	if c.X < min2(a.X, b.X)-eps || c.X > max2(a.X, b.X)+eps {
		return false
	}
	if c.Y < min2(a.Y, b.Y)-eps || c.Y > max2(a.Y, b.Y)+eps {
		return false
	}
	return orientation(a, b, c) == 0
}

func colinearOverlap(p1, p2, q1, q2 Point) bool {
	if min2(p1.X, p2.X)-eps > max2(q1.X, q2.X) || max2(p1.X, p2.X)+eps < min2(q1.X, q2.X) {
		return false
	}
	if min2(p1.Y, p2.Y)-eps > max2(q1.Y, q2.Y) || max2(p1.Y, p2.Y)+eps < min2(q1.Y, q2.Y) {
		return false
	}
	var left, right float64
	if abs64(p1.X-p2.X) >= abs64(p1.Y-p2.Y) {
		left = max2(min2(p1.X, p2.X), min2(q1.X, q2.X))
		right = min2(max2(p1.X, p2.X), max2(q1.X, q2.X))
	} else {
		left = max2(min2(p1.Y, p2.Y), min2(q1.Y, q2.Y))
		right = min2(max2(p1.Y, p2.Y), max2(q1.Y, q2.Y))
	}
	return right-left > eps
}

// segmentIntersectionBlocks reports whether segment seg should be
// considered blocked by wall-edge segment wall: proper crossings and
// non-degenerate colinear overlap block; touching at an endpoint alone
// does not.
func segmentIntersectionBlocks(segA, segB, wallA, wallB Point) bool {
	o1 := orientation(segA, segB, wallA)
	o2 := orientation(segA, segB, wallB)
	o3 := orientation(wallA, wallB, segA)
	o4 := orientation(wallA, wallB, segB)

	if o1 == 0 && o2 == 0 && o3 == 0 && o4 == 0 {
		return colinearOverlap(segA, segB, wallA, wallB)
	}
	if o1 != 0 && o2 != 0 && o3 != 0 && o4 != 0 && o1 != o2 && o3 != o4 {
		return true
	}
	if onSegment(segA, segB, wallA) || onSegment(segA, segB, wallB) {
		return false
	}
	return false
}

func min2(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func max2(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func abs64(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
