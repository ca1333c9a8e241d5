package raster

import (
	"math"

	"github.com/ctessum/geom"
)

// Raster is a decoded single-band elevation raster with embedded
// georeferencing.
type Raster struct {
	W, H int
	Ref  GeoRef
	// EPSG is the coordinate system code declared by the file,
	// or 0 when the file carries none.
	EPSG int
	// NoData is the sentinel declared by the file, meaningful only
	// when HasNoData is set. Sentinel cells are reported as invalid
	// by At and never leak into sampling.
	NoData    float64
	HasNoData bool

	values []float64
}

// NewRaster builds a raster from row-major values. Intended for tests
// and in-memory sources; files come in through OpenGeoTIFF.
func NewRaster(w, h int, ref GeoRef, values []float64) *Raster {
	if len(values) != w*h {
		panic("raster: value count does not match dimensions")
	}
	return &Raster{W: w, H: h, Ref: ref, values: values}
}

// SetNoData declares a no-data sentinel for the raster.
func (r *Raster) SetNoData(v float64) {
	r.NoData = v
	r.HasNoData = true
}

// At returns the sample at (row, col) and whether it carries a valid
// measurement. Out of range, no-data and NaN samples are invalid.
func (r *Raster) At(row, col int) (float64, bool) {
	if row < 0 || row >= r.H || col < 0 || col >= r.W {
		return 0, false
	}
	v := r.values[row*r.W+col]
	if math.IsNaN(v) {
		return 0, false
	}
	if r.HasNoData && v == r.NoData {
		return 0, false
	}
	return v, true
}

// Bounds returns the horizontal extent covered by the raster.
func (r *Raster) Bounds() *geom.Bounds {
	return r.Ref.extent(r.W, r.H)
}
