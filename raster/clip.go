package raster

import (
	"errors"
	"fmt"
	"math"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/proj"
)

// ErrNoOverlap reports that a polygon's extent does not intersect the
// raster's coverage at all.
var ErrNoOverlap = errors.New("raster: polygon extent does not overlap raster coverage")

// maxClipCells caps the size of a clipped grid so a bad polygon or a
// bogus reprojection cannot exhaust memory.
const maxClipCells = 1 << 26

// Clip samples the raster over the bounding extent of poly, marking
// cells invalid when their center falls outside the polygon or the
// source sample carries no data. Resolution is inherited from the
// raster; no resampling happens beyond what reprojection requires.
//
// When poly lives in a different coordinate system than the raster,
// fwd must transform raster coordinates into the polygon's system and
// inv the reverse; sampling is then nearest-neighbor through inv. Both
// must be nil when the two share a coordinate system.
func (r *Raster) Clip(poly geom.Polygonal, fwd, inv proj.Transformer) (*Grid, error) {
	if (fwd == nil) != (inv == nil) {
		return nil, errors.New("raster: Clip needs both or neither of fwd and inv transforms")
	}
	if fwd == nil {
		return r.clipNative(poly)
	}
	return r.clipReprojected(poly, fwd, inv)
}

// clipNative crops the raster to the polygon bounding box in the
// raster's own coordinate system.
func (r *Raster) clipNative(poly geom.Polygonal) (*Grid, error) {
	bbox := poly.Bounds()
	if !bbox.Overlaps(r.Bounds()) {
		return nil, ErrNoOverlap
	}
	row0, col0 := r.Ref.cellIndex(bbox.Min.X, bbox.Max.Y)
	row1, col1 := r.Ref.cellIndex(bbox.Max.X, bbox.Min.Y)
	row0, row1 = clampRange(row0, row1, r.H)
	col0, col1 = clampRange(col0, col1, r.W)

	w := col1 - col0 + 1
	h := row1 - row0 + 1
	grid := NewGrid(w, h, GeoRef{
		OriginX: r.Ref.OriginX + float64(col0)*r.Ref.DX,
		OriginY: r.Ref.OriginY + float64(row0)*r.Ref.DY,
		DX:      r.Ref.DX,
		DY:      r.Ref.DY,
	})
	for row := 0; row < h; row++ {
		for col := 0; col < w; col++ {
			z, ok := r.At(row0+row, col0+col)
			if !ok {
				continue
			}
			x, y := grid.Ref.CellCenter(row, col)
			if (geom.Point{X: x, Y: y}).Within(poly) == geom.Outside {
				continue
			}
			grid.Set(row, col, z)
		}
	}
	return grid, nil
}

// clipReprojected builds the grid in the polygon's coordinate system
// and samples the raster nearest-neighbor through inv.
func (r *Raster) clipReprojected(poly geom.Polygonal, fwd, inv proj.Transformer) (*Grid, error) {
	bbox := poly.Bounds()
	if err := r.checkOverlapReprojected(bbox, inv); err != nil {
		return nil, err
	}
	dx, dy, err := r.projectedCellSize(bbox, fwd, inv)
	if err != nil {
		return nil, err
	}

	w := int(math.Ceil((bbox.Max.X - bbox.Min.X) / dx))
	h := int(math.Ceil((bbox.Max.Y - bbox.Min.Y) / dy))
	if w < 1 || h < 1 {
		return nil, ErrNoOverlap
	}
	if w*h > maxClipCells {
		return nil, fmt.Errorf("raster: clipped grid %dx%d exceeds cell limit", w, h)
	}
	grid := NewGrid(w, h, GeoRef{
		OriginX: bbox.Min.X,
		OriginY: bbox.Max.Y,
		DX:      dx,
		DY:      -dy,
	})
	for row := 0; row < h; row++ {
		for col := 0; col < w; col++ {
			x, y := grid.Ref.CellCenter(row, col)
			if (geom.Point{X: x, Y: y}).Within(poly) == geom.Outside {
				continue
			}
			sx, sy, err := inv(x, y)
			if err != nil {
				continue
			}
			srow, scol := r.Ref.cellIndex(sx, sy)
			z, ok := r.At(srow, scol)
			if !ok {
				continue
			}
			grid.Set(row, col, z)
		}
	}
	return grid, nil
}

// projectedCellSize estimates the raster resolution in the polygon's
// coordinate system by forward-projecting one source cell near the
// polygon center.
func (r *Raster) projectedCellSize(bbox *geom.Bounds, fwd, inv proj.Transformer) (dx, dy float64, err error) {
	cx := (bbox.Min.X + bbox.Max.X) / 2
	cy := (bbox.Min.Y + bbox.Max.Y) / 2
	sx, sy, err := inv(cx, cy)
	if err != nil {
		return 0, 0, fmt.Errorf("raster: inverse projecting polygon center: %w", err)
	}
	row, col := r.Ref.cellIndex(sx, sy)
	row = clamp(row, 0, r.H-1)
	col = clamp(col, 0, r.W-1)

	x0, y0 := r.Ref.CellCenter(row, col)
	x1, y1 := r.Ref.CellCenter(row, col+1)
	x2, y2 := r.Ref.CellCenter(row+1, col)
	px0, py0, err := fwd(x0, y0)
	if err != nil {
		return 0, 0, fmt.Errorf("raster: projecting cell center: %w", err)
	}
	px1, py1, err := fwd(x1, y1)
	if err != nil {
		return 0, 0, fmt.Errorf("raster: projecting cell center: %w", err)
	}
	px2, py2, err := fwd(x2, y2)
	if err != nil {
		return 0, 0, fmt.Errorf("raster: projecting cell center: %w", err)
	}
	dx = math.Hypot(px1-px0, py1-py0)
	dy = math.Hypot(px2-px0, py2-py0)
	if dx <= 0 || dy <= 0 || math.IsNaN(dx) || math.IsNaN(dy) {
		return 0, 0, errors.New("raster: could not estimate projected cell size")
	}
	return dx, dy, nil
}

// checkOverlapReprojected inverse-projects the polygon bbox corners and
// center and requires at least one to land within raster coverage.
func (r *Raster) checkOverlapReprojected(bbox *geom.Bounds, inv proj.Transformer) error {
	probes := [][2]float64{
		{bbox.Min.X, bbox.Min.Y},
		{bbox.Min.X, bbox.Max.Y},
		{bbox.Max.X, bbox.Min.Y},
		{bbox.Max.X, bbox.Max.Y},
		{(bbox.Min.X + bbox.Max.X) / 2, (bbox.Min.Y + bbox.Max.Y) / 2},
	}
	cover := r.Bounds()
	probeBox := &geom.Bounds{
		Min: geom.Point{X: math.Inf(1), Y: math.Inf(1)},
		Max: geom.Point{X: math.Inf(-1), Y: math.Inf(-1)},
	}
	for _, p := range probes {
		x, y, err := inv(p[0], p[1])
		if err != nil {
			continue
		}
		probeBox.Min.X = math.Min(probeBox.Min.X, x)
		probeBox.Min.Y = math.Min(probeBox.Min.Y, y)
		probeBox.Max.X = math.Max(probeBox.Max.X, x)
		probeBox.Max.Y = math.Max(probeBox.Max.Y, y)
	}
	if probeBox.Min.X > probeBox.Max.X || !probeBox.Overlaps(cover) {
		return ErrNoOverlap
	}
	return nil
}

func clampRange(lo, hi, n int) (int, int) {
	if lo > hi {
		lo, hi = hi, lo
	}
	return clamp(lo, 0, n-1), clamp(hi, 0, n-1)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
