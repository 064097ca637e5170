package geom

import (
	"math"
	"testing"
)

func square(x0, y0, x1, y1 float64) Polygon {
	return Polygon{{x0, y0}, {x1, y0}, {x1, y1}, {x0, y1}}
}

func TestArea(t *testing.T) {
	unit := square(0, 0, 1, 1)
	if got := Area(unit); math.Abs(got-1) > 1e-9 {
		t.Errorf("unit square area = %v, want 1", got)
	}

	tri := Polygon{{0, 0}, {4, 0}, {0, 3}}
	if got := Area(tri); math.Abs(got-6) > 1e-9 {
		t.Errorf("triangle area = %v, want 6", got)
	}

	// Winding must not matter.
	cw := Polygon{{0, 0}, {0, 1}, {1, 1}, {1, 0}}
	if got := Area(cw); math.Abs(got-1) > 1e-9 {
		t.Errorf("clockwise square area = %v, want 1", got)
	}
}

func TestRepair(t *testing.T) {
	// Duplicate vertices collapse; closing vertex is dropped.
	p := Polygon{{0, 0}, {0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0}}
	got := Repair(p)
	if len(got) != 4 {
		t.Fatalf("repaired vertex count = %d, want 4", len(got))
	}

	// Too few distinct points.
	if Repair(Polygon{{0, 0}, {1, 1}}) != nil {
		t.Error("2-point polygon should repair to nil")
	}

	// Collinear (zero area).
	if Repair(Polygon{{0, 0}, {1, 1}, {2, 2}}) != nil {
		t.Error("collinear polygon should repair to nil")
	}

	// Bow-tie self-intersection falls back to the hull.
	bowtie := Polygon{{0, 0}, {1, 1}, {1, 0}, {0, 1}}
	hull := Repair(bowtie)
	if hull == nil {
		t.Fatal("bow-tie should repair to its hull, got nil")
	}
	if got := Area(hull); math.Abs(got-1) > 1e-9 {
		t.Errorf("bow-tie hull area = %v, want 1", got)
	}
}

func TestPointInPolygon(t *testing.T) {
	zone := square(0.1, 0.1, 0.3, 0.3)

	tests := []struct {
		name string
		pt   Point
		want bool
	}{
		{"center", Point{0.2, 0.2}, true},
		{"outside", Point{0.5, 0.5}, false},
		{"just inside edge", Point{0.1001, 0.2}, true},
		{"far outside", Point{-1, -1}, false},
	}
	for _, tt := range tests {
		if got := PointInPolygon(tt.pt, zone); got != tt.want {
			t.Errorf("%s: PointInPolygon(%v) = %v, want %v", tt.name, tt.pt, got, tt.want)
		}
	}

	// Degenerate polygon never contains anything.
	if PointInPolygon(Point{0, 0}, Polygon{{0, 0}, {1, 1}}) {
		t.Error("degenerate polygon should contain nothing")
	}
}

func TestPointInConcavePolygon(t *testing.T) {
	// L-shape: the notch at the top right is outside.
	l := Polygon{{0, 0}, {2, 0}, {2, 1}, {1, 1}, {1, 2}, {0, 2}}
	if !PointInPolygon(Point{0.5, 1.5}, l) {
		t.Error("point in the vertical arm should be inside")
	}
	if PointInPolygon(Point{1.5, 1.5}, l) {
		t.Error("point in the notch should be outside")
	}
}

func TestIntersectionArea(t *testing.T) {
	a := square(0, 0, 2, 2)
	b := square(1, 1, 3, 3)
	if got := IntersectionArea(a, b); math.Abs(got-1) > 1e-9 {
		t.Errorf("intersection area = %v, want 1", got)
	}

	c := square(5, 5, 6, 6)
	if got := IntersectionArea(a, c); got != 0 {
		t.Errorf("disjoint intersection area = %v, want 0", got)
	}

	// Containment: intersection equals the smaller area.
	inner := square(0.5, 0.5, 1.5, 1.5)
	if got := IntersectionArea(a, inner); math.Abs(got-1) > 1e-9 {
		t.Errorf("contained intersection area = %v, want 1", got)
	}
}

func TestOverlaps(t *testing.T) {
	// Scenario from the zone validation contract: A and B overlap, A and C
	// do not.
	zoneA := Polygon{{0.1, 0.1}, {0.3, 0.1}, {0.3, 0.3}, {0.1, 0.3}}
	zoneB := Polygon{{0.2, 0.2}, {0.4, 0.2}, {0.4, 0.4}, {0.2, 0.4}}
	zoneC := Polygon{{0.5, 0.5}, {0.7, 0.5}, {0.7, 0.7}, {0.5, 0.7}}

	if !Overlaps(zoneA, zoneB) {
		t.Error("A and B should overlap")
	}
	if Overlaps(zoneA, zoneC) {
		t.Error("A and C should not overlap")
	}

	// Symmetry.
	if Overlaps(zoneA, zoneB) != Overlaps(zoneB, zoneA) {
		t.Error("Overlaps(A,B) != Overlaps(B,A)")
	}
	if Overlaps(zoneA, zoneC) != Overlaps(zoneC, zoneA) {
		t.Error("Overlaps(A,C) != Overlaps(C,A)")
	}

	// Sharing only an edge is floating-point noise territory, not a real
	// overlap.
	touching := Polygon{{0.3, 0.1}, {0.5, 0.1}, {0.5, 0.3}, {0.3, 0.3}}
	if Overlaps(zoneA, touching) {
		t.Error("edge-touching polygons should not count as overlapping")
	}
}

func TestDistance(t *testing.T) {
	if got := Distance(Point{0, 0}, Point{3, 4}); math.Abs(got-5) > 1e-9 {
		t.Errorf("Distance = %v, want 5", got)
	}
}
