package mesh

import (
	"math"
	"testing"

	"github.com/geoforms/terrastl/raster"
)

// flatGrid returns a w×h north-up grid with every cell valid at the
// given elevation.
func flatGrid(w, h int, z float64) *raster.Grid {
	g := raster.NewGrid(w, h, raster.GeoRef{OriginX: 0, OriginY: float64(h), DX: 1, DY: -1})
	for row := 0; row < h; row++ {
		for col := 0; col < w; col++ {
			g.Set(row, col, z)
		}
	}
	return g
}

// assertClosed fails unless every directed edge of the mesh is matched
// by its reverse, which is what watertight means for consistent winding.
func assertClosed(t *testing.T, m *Mesh) {
	t.Helper()
	count := make(map[[2]int]int)
	for _, f := range m.Faces {
		count[[2]int{f[0], f[1]}]++
		count[[2]int{f[1], f[2]}]++
		count[[2]int{f[2], f[0]}]++
	}
	for e, n := range count {
		if n != 1 {
			t.Fatalf("directed edge %v used %d times, want 1", e, n)
		}
		if count[[2]int{e[1], e[0]}] != 1 {
			t.Fatalf("directed edge %v has no twin", e)
		}
	}
}

func TestSolidify(t *testing.T) {
	top := Heightfield(flatGrid(2, 2, 3), 1)
	solid, err := Solidify(top, 0)
	if err != nil {
		t.Fatal(err)
	}
	if err := solid.Validate(); err != nil {
		t.Fatal(err)
	}
	if len(solid.Vertices) != 8 {
		t.Errorf("len(Vertices) = %d, want 8", len(solid.Vertices))
	}
	// 2 top + 2 bottom + 2 per perimeter edge.
	if len(solid.Faces) != 12 {
		t.Errorf("len(Faces) = %d, want 12", len(solid.Faces))
	}
	assertClosed(t, solid)
	// The cell centers span a unit square extruded from z=0 to z=3.
	if vol := solid.Volume(); math.Abs(vol-3) > 1e-9 {
		t.Errorf("Volume = %v, want 3", vol)
	}
	b := solid.Bounds()
	if b.Min.Z != 0 || b.Max.Z != 3 {
		t.Errorf("z bounds = [%v, %v], want [0, 3]", b.Min.Z, b.Max.Z)
	}
}

func TestSolidifyTerrain(t *testing.T) {
	top := Heightfield(fullGrid(5, 4), 2)
	solid, err := Solidify(top, -1)
	if err != nil {
		t.Fatal(err)
	}
	assertClosed(t, solid)
	if vol := solid.Volume(); vol <= 0 {
		t.Errorf("Volume = %v, want positive", vol)
	}
}

func TestSolidifyEmptySurface(t *testing.T) {
	if _, err := Solidify(&Mesh{}, 0); err == nil {
		t.Fatal("expected an error for an empty surface")
	}
}

func TestSolidifyBaseAboveSurface(t *testing.T) {
	top := Heightfield(flatGrid(2, 2, 3), 1)
	if _, err := Solidify(top, 5); err == nil {
		t.Fatal("expected an error for a base above the surface")
	}
}

func TestBoundaryLoopsSingleRegion(t *testing.T) {
	top := Heightfield(fullGrid(4, 3), 1)
	loops := BoundaryLoops(top)
	if len(loops) != 1 {
		t.Fatalf("len(loops) = %d, want 1", len(loops))
	}
	// Perimeter of a 4x3 vertex lattice.
	if len(loops[0]) != 10 {
		t.Errorf("len(loops[0]) = %d, want 10", len(loops[0]))
	}
}

func TestBoundaryLoopsDisjointRegions(t *testing.T) {
	g := raster.NewGrid(5, 3, raster.GeoRef{OriginX: 0, OriginY: 3, DX: 1, DY: -1})
	for row := 0; row < 3; row++ {
		for col := 0; col < 5; col++ {
			if col == 2 {
				continue
			}
			g.Set(row, col, float64(row+col))
		}
	}
	top := Heightfield(g, 1)
	loops := BoundaryLoops(top)
	if len(loops) != 2 {
		t.Fatalf("len(loops) = %d, want 2", len(loops))
	}
	solid, err := Solidify(top, -1)
	if err != nil {
		t.Fatal(err)
	}
	assertClosed(t, solid)
}

func TestBoundaryLoopsInteriorHole(t *testing.T) {
	// Knocking out the center cell removes the four surrounding quads,
	// leaving a hole bounded by the 8 vertices around it.
	g := raster.NewGrid(5, 5, raster.GeoRef{OriginX: 0, OriginY: 5, DX: 1, DY: -1})
	for row := 0; row < 5; row++ {
		for col := 0; col < 5; col++ {
			if row == 2 && col == 2 {
				continue
			}
			g.Set(row, col, 2)
		}
	}
	top := Heightfield(g, 1)
	loops := BoundaryLoops(top)
	if len(loops) != 2 {
		t.Fatalf("len(loops) = %d, want 2", len(loops))
	}
	short, long := len(loops[0]), len(loops[1])
	if short > long {
		short, long = long, short
	}
	if short != 8 || long != 16 {
		t.Errorf("loop lengths = %d and %d, want 8 and 16", short, long)
	}
	solid, err := Solidify(top, 0)
	if err != nil {
		t.Fatal(err)
	}
	assertClosed(t, solid)
	// Hole volume is carved out of the slab.
	slab := 4.0 * 4.0 * 2.0
	if vol := solid.Volume(); vol >= slab || vol <= 0 {
		t.Errorf("Volume = %v, want between 0 and %v", vol, slab)
	}
}
