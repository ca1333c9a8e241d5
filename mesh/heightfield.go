package mesh

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/geoforms/terrastl/raster"
)

// Heightfield triangulates the top terrain surface of a clipped grid.
// Each valid sample becomes at most one vertex at its cell center with
// z = sample * exaggeration. Every 2x2 block of valid cells yields two
// triangles split along the NW-SE diagonal; the fixed diagonal keeps
// shared quad edges identical between neighbors. Quads touching any
// invalid cell are skipped whole, leaving the stair-stepped boundary
// that follows valid coverage.
//
// The result can be empty when no 2x2 valid block exists; callers
// decide whether that is an error.
func Heightfield(g *raster.Grid, exaggeration float64) *Mesh {
	m := &Mesh{}
	// vertex index per grid cell, -1 while unassigned.
	index := make([]int, g.W*g.H)
	for i := range index {
		index[i] = -1
	}
	vertex := func(row, col int, z float64) int {
		i := row*g.W + col
		if index[i] >= 0 {
			return index[i]
		}
		x, y := g.Ref.CellCenter(row, col)
		index[i] = len(m.Vertices)
		m.Vertices = append(m.Vertices, r3.Vec{X: x, Y: y, Z: z * exaggeration})
		return index[i]
	}

	// For a north-up grid (rows go south) the winding below is CCW
	// seen from +Z. A positive row axis needs the mirror winding.
	flip := g.Ref.DX*g.Ref.DY > 0
	for row := 0; row+1 < g.H; row++ {
		for col := 0; col+1 < g.W; col++ {
			nw, ok1 := g.At(row, col)
			ne, ok2 := g.At(row, col+1)
			se, ok3 := g.At(row+1, col+1)
			sw, ok4 := g.At(row+1, col)
			if !ok1 || !ok2 || !ok3 || !ok4 {
				continue
			}
			a := vertex(row, col, nw)
			b := vertex(row, col+1, ne)
			c := vertex(row+1, col+1, se)
			d := vertex(row+1, col, sw)
			if flip {
				m.Faces = append(m.Faces, [3]int{a, c, d}, [3]int{a, b, c})
			} else {
				m.Faces = append(m.Faces, [3]int{a, d, c}, [3]int{a, c, b})
			}
		}
	}
	return m
}
