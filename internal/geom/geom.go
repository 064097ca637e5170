// Package geom provides the point and polygon primitives used by zone
// validation and tracking. All functions are pure; callers are expected to
// reject structurally malformed polygons (fewer than three distinct points,
// zero area) before calling in.
package geom

import (
	"math"
	"sort"
)

// Point is a 2D coordinate. Zones use normalized [0,1] space; the tracker
// uses pixel space. Nothing here cares which.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Polygon is an ordered ring of vertices. It is not required to be closed;
// the last vertex is implicitly connected back to the first.
type Polygon []Point

// epsilon absorbs floating-point noise when comparing coordinates and areas.
const epsilon = 1e-12

// OverlapFloorPct is the overlap percentage below which two polygons are
// treated as disjoint. It exists to absorb floating-point noise from
// nearly-touching edges, not to permit genuine small overlaps.
const OverlapFloorPct = 0.1

func signedArea(p Polygon) float64 {
	if len(p) < 3 {
		return 0
	}
	var s float64
	for i := range p {
		j := (i + 1) % len(p)
		s += p[i].X*p[j].Y - p[j].X*p[i].Y
	}
	return s / 2
}

// Area returns the absolute area enclosed by the polygon.
func Area(p Polygon) float64 {
	return math.Abs(signedArea(p))
}

// Distance returns the Euclidean distance between two points.
func Distance(a, b Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

func cross(o, a, b Point) float64 {
	return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
}

// convexHull returns the convex hull of the points in counter-clockwise
// order (Andrew monotone chain).
func convexHull(pts []Point) Polygon {
	if len(pts) < 3 {
		return nil
	}
	sorted := make([]Point, len(pts))
	copy(sorted, pts)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].X != sorted[j].X {
			return sorted[i].X < sorted[j].X
		}
		return sorted[i].Y < sorted[j].Y
	})

	var lower, upper []Point
	for _, p := range sorted {
		for len(lower) >= 2 && cross(lower[len(lower)-2], lower[len(lower)-1], p) <= 0 {
			lower = lower[:len(lower)-1]
		}
		lower = append(lower, p)
	}
	for i := len(sorted) - 1; i >= 0; i-- {
		p := sorted[i]
		for len(upper) >= 2 && cross(upper[len(upper)-2], upper[len(upper)-1], p) <= 0 {
			upper = upper[:len(upper)-1]
		}
		upper = append(upper, p)
	}
	hull := append(lower[:len(lower)-1], upper[:len(upper)-1]...)
	if len(hull) < 3 {
		return nil
	}
	return hull
}

func segmentsCross(p1, p2, q1, q2 Point) bool {
	d1 := cross(q1, q2, p1)
	d2 := cross(q1, q2, p2)
	d3 := cross(p1, p2, q1)
	d4 := cross(p1, p2, q2)
	return ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0))
}

func selfIntersects(p Polygon) bool {
	n := len(p)
	for i := 0; i < n; i++ {
		a1, a2 := p[i], p[(i+1)%n]
		for j := i + 1; j < n; j++ {
			// Skip adjacent edges (they share an endpoint).
			if j == i || (j+1)%n == i || (i+1)%n == j {
				continue
			}
			b1, b2 := p[j], p[(j+1)%n]
			if segmentsCross(a1, a2, b1, b2) {
				return true
			}
		}
	}
	return false
}

// Repair normalizes a polygon into a valid simple ring: consecutive
// duplicate vertices are collapsed, winding is made counter-clockwise, and a
// self-intersecting ring falls back to its convex hull. Returns nil when no
// valid polygon can be recovered (too few distinct points or zero area).
//
// The hull fallback is conservative for overlap validation: the hull covers
// at least the original ring, so a repaired polygon can only be rejected
// more often, never accepted in error.
func Repair(p Polygon) Polygon {
	var out Polygon
	for _, pt := range p {
		if len(out) > 0 {
			last := out[len(out)-1]
			if math.Abs(last.X-pt.X) < epsilon && math.Abs(last.Y-pt.Y) < epsilon {
				continue
			}
		}
		out = append(out, pt)
	}
	// Drop a closing vertex that duplicates the first.
	if len(out) > 1 {
		first, last := out[0], out[len(out)-1]
		if math.Abs(first.X-last.X) < epsilon && math.Abs(first.Y-last.Y) < epsilon {
			out = out[:len(out)-1]
		}
	}
	if len(out) < 3 || Area(out) < epsilon {
		return nil
	}
	if selfIntersects(out) {
		return convexHull(out)
	}
	if signedArea(out) < 0 {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return out
}

// PointInPolygon reports whether pt lies inside the polygon (ray casting,
// even-odd rule). Degenerate input is repaired first; if no valid polygon
// can be recovered the point is treated as outside.
func PointInPolygon(pt Point, p Polygon) bool {
	ring := Repair(p)
	if ring == nil {
		return false
	}
	inside := false
	n := len(ring)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		a, b := ring[i], ring[j]
		if (a.Y > pt.Y) != (b.Y > pt.Y) {
			xCross := (b.X-a.X)*(pt.Y-a.Y)/(b.Y-a.Y) + a.X
			if pt.X < xCross {
				inside = !inside
			}
		}
	}
	return inside
}

func isConvex(p Polygon) bool {
	n := len(p)
	sign := 0.0
	for i := 0; i < n; i++ {
		c := cross(p[i], p[(i+1)%n], p[(i+2)%n])
		if math.Abs(c) < epsilon {
			continue
		}
		if sign == 0 {
			sign = c
		} else if (sign > 0) != (c > 0) {
			return false
		}
	}
	return true
}

// clip cuts the subject ring against the half-plane left of edge a->b
// (Sutherland-Hodgman step; the clip ring must be counter-clockwise).
func clip(subject Polygon, a, b Point) Polygon {
	var out Polygon
	n := len(subject)
	for i := 0; i < n; i++ {
		cur, next := subject[i], subject[(i+1)%n]
		curIn := cross(a, b, cur) >= 0
		nextIn := cross(a, b, next) >= 0
		switch {
		case curIn && nextIn:
			out = append(out, next)
		case curIn && !nextIn:
			out = append(out, lineIntersection(cur, next, a, b))
		case !curIn && nextIn:
			out = append(out, lineIntersection(cur, next, a, b), next)
		}
	}
	return out
}

func lineIntersection(p1, p2, a, b Point) Point {
	a1 := p2.Y - p1.Y
	b1 := p1.X - p2.X
	c1 := a1*p1.X + b1*p1.Y
	a2 := b.Y - a.Y
	b2 := a.X - b.X
	c2 := a2*a.X + b2*a.Y
	det := a1*b2 - a2*b1
	if math.Abs(det) < epsilon {
		return p1
	}
	return Point{X: (b2*c1 - b1*c2) / det, Y: (a1*c2 - a2*c1) / det}
}

// IntersectionArea returns the area shared by the two polygons. Both inputs
// are repaired first; clipping requires a convex clip ring, so a concave
// ring is widened to its hull before clipping (conservative, see Repair).
func IntersectionArea(a, b Polygon) float64 {
	pa, pb := Repair(a), Repair(b)
	if pa == nil || pb == nil {
		return 0
	}
	if !isConvex(pb) {
		pb = convexHull(pb)
	}
	if !isConvex(pa) {
		pa = convexHull(pa)
	}
	out := pa
	n := len(pb)
	for i := 0; i < n && len(out) > 2; i++ {
		out = clip(out, pb[i], pb[(i+1)%n])
	}
	if len(out) < 3 {
		return 0
	}
	return Area(out)
}

// Overlaps reports whether two polygons genuinely overlap: the intersection
// area as a percentage of the smaller polygon must exceed OverlapFloorPct.
func Overlaps(a, b Polygon) bool {
	inter := IntersectionArea(a, b)
	if inter <= 0 {
		return false
	}
	minArea := math.Min(Area(Repair(a)), Area(Repair(b)))
	if minArea < epsilon {
		return false
	}
	return inter/minArea*100 > OverlapFloorPct
}
