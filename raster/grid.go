// Package raster models gridded elevation data and clips it to
// district footprints.
package raster

import (
	"math"

	"github.com/ctessum/geom"
)

// Cell is one elevation sample. Validity is tracked explicitly so that
// no-data can never be mistaken for a real elevation of zero.
type Cell struct {
	Z     float64
	Valid bool
}

// GeoRef is an axis-aligned affine mapping from grid indices to
// spatial coordinates. Origin is the outer corner of cell (0,0).
// DY is negative for north-up rasters.
type GeoRef struct {
	OriginX, OriginY float64
	DX, DY           float64
}

// CellCenter returns the spatial coordinates of the center of the cell
// at (row, col).
func (g GeoRef) CellCenter(row, col int) (x, y float64) {
	x = g.OriginX + (float64(col)+0.5)*g.DX
	y = g.OriginY + (float64(row)+0.5)*g.DY
	return x, y
}

// cellIndex returns the grid indices of the cell containing (x, y).
// The result may lie outside the grid.
func (g GeoRef) cellIndex(x, y float64) (row, col int) {
	col = int(math.Floor((x - g.OriginX) / g.DX))
	row = int(math.Floor((y - g.OriginY) / g.DY))
	return row, col
}

// extent returns the spatial bounds covered by a w×h grid under g.
func (g GeoRef) extent(w, h int) *geom.Bounds {
	x1 := g.OriginX + float64(w)*g.DX
	y1 := g.OriginY + float64(h)*g.DY
	return &geom.Bounds{
		Min: geom.Point{X: math.Min(g.OriginX, x1), Y: math.Min(g.OriginY, y1)},
		Max: geom.Point{X: math.Max(g.OriginX, x1), Y: math.Max(g.OriginY, y1)},
	}
}

// Grid is a regular grid of tagged elevation samples clipped to a
// district footprint. Indices map 1:1 to spatial positions through Ref.
type Grid struct {
	W, H  int
	Ref   GeoRef
	cells []Cell
}

// NewGrid returns a w×h grid with every cell marked invalid.
func NewGrid(w, h int, ref GeoRef) *Grid {
	return &Grid{
		W:     w,
		H:     h,
		Ref:   ref,
		cells: make([]Cell, w*h),
	}
}

// At returns the sample at (row, col) and whether it is valid.
// Out of range indices are invalid.
func (g *Grid) At(row, col int) (float64, bool) {
	if row < 0 || row >= g.H || col < 0 || col >= g.W {
		return 0, false
	}
	c := g.cells[row*g.W+col]
	return c.Z, c.Valid
}

// Set stores a valid sample at (row, col).
func (g *Grid) Set(row, col int, z float64) {
	g.cells[row*g.W+col] = Cell{Z: z, Valid: true}
}

// ValidCount returns the number of valid cells.
func (g *Grid) ValidCount() int {
	n := 0
	for _, c := range g.cells {
		if c.Valid {
			n++
		}
	}
	return n
}

// MinMax returns the minimum and maximum valid sample. ok is false when
// the grid holds no valid cells.
func (g *Grid) MinMax() (min, max float64, ok bool) {
	min = math.Inf(1)
	max = math.Inf(-1)
	for _, c := range g.cells {
		if !c.Valid {
			continue
		}
		ok = true
		min = math.Min(min, c.Z)
		max = math.Max(max, c.Z)
	}
	if !ok {
		return 0, 0, false
	}
	return min, max, true
}

// Bounds returns the horizontal extent covered by the grid.
func (g *Grid) Bounds() *geom.Bounds {
	return g.Ref.extent(g.W, g.H)
}
