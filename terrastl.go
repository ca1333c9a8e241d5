// Package terrastl converts district boundary polygons plus a gridded
// elevation model into one 3D-printable STL solid per district, all
// sharing a single physical scale.
package terrastl

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/ctessum/geom/proj"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/geoforms/terrastl/crs"
	"github.com/geoforms/terrastl/district"
	"github.com/geoforms/terrastl/internal/d3"
	"github.com/geoforms/terrastl/mesh"
	"github.com/geoforms/terrastl/raster"
	"github.com/geoforms/terrastl/render"
)

// Defaults for the CLI and the HTTP service.
const (
	DefaultOutputDir    = "stl_districts"
	DefaultExaggeration = 5
	DefaultTargetSizeMM = 180
)

// boundaryEPSG is the coordinate system boundary datasets are assumed
// to use. RFC 7946 mandates it for GeoJSON; shapefile .prj parsing is
// not implemented so the same assumption applies there.
const boundaryEPSG = 4326

// Config holds one batch run's parameters.
type Config struct {
	DistrictsPath string
	DEMPath       string
	OutputDir     string
	// Exaggeration multiplies raw elevations before capping so it
	// affects the top surface and wall heights consistently. Zero
	// means DefaultExaggeration; negative values are an error.
	Exaggeration float64
	// TargetSizeMM is the longest horizontal side of the combined
	// extent of all districts in the printed output. Zero means
	// DefaultTargetSizeMM; negative values are an error.
	TargetSizeMM float64
	// TargetEPSG reprojects both inputs before processing when
	// non-zero; otherwise the raster's coordinate system is kept.
	TargetEPSG int
	// ASCII switches output from binary to ASCII STL.
	ASCII bool
	// Preview additionally renders a shaded PNG next to every STL.
	Preview bool
}

func (c Config) withDefaults() Config {
	if c.OutputDir == "" {
		c.OutputDir = DefaultOutputDir
	}
	if c.Exaggeration == 0 {
		c.Exaggeration = DefaultExaggeration
	}
	if c.TargetSizeMM == 0 {
		c.TargetSizeMM = DefaultTargetSizeMM
	}
	return c
}

// Result reports the outcome for one district, in input order.
type Result struct {
	District  string
	Path      string // output file, empty when skipped
	Triangles int
	Loops     int   // boundary loops capped in the solid
	Err       error // nil on success
}

// pending is a district that survived clipping and meshing and awaits
// the global scale.
type pending struct {
	index int
	d     district.District
	solid *mesh.Mesh
	loops int
}

// Run executes the full batch: load inputs, clip and mesh every
// district, compute the one global scale factor, then export. The
// returned error is non-nil only for fatal setup problems; per-district
// failures land in the corresponding Result and are logged as warnings.
func Run(cfg Config, log *slog.Logger) ([]Result, error) {
	cfg = cfg.withDefaults()
	if log == nil {
		log = slog.Default()
	}
	if cfg.Exaggeration <= 0 || math.IsNaN(cfg.Exaggeration) {
		return nil, fmt.Errorf("exaggeration must be positive, got %v", cfg.Exaggeration)
	}
	if cfg.TargetSizeMM <= 0 || math.IsNaN(cfg.TargetSizeMM) {
		return nil, fmt.Errorf("target size must be positive, got %v", cfg.TargetSizeMM)
	}

	rast, err := raster.OpenGeoTIFF(cfg.DEMPath)
	if err != nil {
		return nil, &InputReadError{Path: cfg.DEMPath, Err: err}
	}
	districts, err := district.Load(cfg.DistrictsPath)
	if err != nil {
		return nil, &InputReadError{Path: cfg.DistrictsPath, Err: err}
	}
	if len(districts) == 0 {
		return nil, &InputReadError{Path: cfg.DistrictsPath, Err: errors.New("no district features")}
	}
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return nil, &WriteError{Path: cfg.OutputDir, Err: err}
	}

	districts, fwd, inv, err := alignCoordinates(cfg, rast, districts, log)
	if err != nil {
		return nil, err
	}

	results := make([]Result, len(districts))
	var survivors []pending
	for i, d := range districts {
		results[i].District = d.Name
		solid, loops, err := buildSolid(d, rast, fwd, inv, cfg.Exaggeration)
		if err != nil {
			results[i].Err = err
			log.Warn("skipping district", "district", d.Name, "reason", err.Error())
			continue
		}
		survivors = append(survivors, pending{index: i, d: d, solid: solid, loops: loops})
	}
	if len(survivors) == 0 {
		log.Warn("no district produced a mesh; nothing to export")
		return results, nil
	}

	extents := make([]d3.Box, len(survivors))
	for i, p := range survivors {
		extents[i] = p.solid.Bounds()
	}
	scale, err := ScaleFactor(extents, cfg.TargetSizeMM)
	if err != nil {
		return nil, fmt.Errorf("computing global scale: %w", err)
	}
	log.Info("computed global scale factor", "scale", scale, "districts", len(survivors))

	// One shared offset puts the corner of the combined extent at the
	// origin. Map coordinates can be hundreds of kilometers from it;
	// a shared offset keeps the districts' relative placement so the
	// set still assembles into the full map.
	offset := r3.Scale(-scale, unionExtent(extents).Min)
	for _, p := range survivors {
		p.solid.Scale(scale)
		p.solid.Translate(offset)
		res := &results[p.index]
		res.Triangles = len(p.solid.Faces)
		res.Loops = p.loops
		res.Path, res.Err = export(cfg, p, log)
	}
	return results, nil
}

// alignCoordinates brings districts and raster sampling into the one
// target coordinate system. It returns the (possibly reprojected)
// districts plus the raster<->target transforms for clipping, nil when
// the raster's own system is the target.
func alignCoordinates(cfg Config, rast *raster.Raster, districts []district.District, log *slog.Logger) ([]district.District, proj.Transformer, proj.Transformer, error) {
	targetEPSG := cfg.TargetEPSG
	if targetEPSG == 0 {
		targetEPSG = rast.EPSG
	}
	if targetEPSG == 0 {
		log.Warn("raster declares no coordinate system; assuming boundary and raster coordinates already match")
		return districts, nil, nil, nil
	}
	if cfg.TargetEPSG != 0 && rast.EPSG == 0 {
		return nil, nil, nil, &InputReadError{
			Path: cfg.DEMPath,
			Err:  fmt.Errorf("raster declares no coordinate system, cannot reproject to EPSG:%d", cfg.TargetEPSG),
		}
	}

	if targetEPSG != boundaryEPSG {
		t, err := crs.NewTransform(boundaryEPSG, targetEPSG)
		if err != nil {
			return nil, nil, nil, &InputReadError{Path: cfg.DistrictsPath, Err: err}
		}
		districts, err = district.Reproject(districts, t)
		if err != nil {
			return nil, nil, nil, &InputReadError{Path: cfg.DistrictsPath, Err: err}
		}
	}

	var fwd, inv proj.Transformer
	if targetEPSG != rast.EPSG {
		var err error
		fwd, err = crs.NewTransform(rast.EPSG, targetEPSG)
		if err == nil {
			inv, err = crs.NewTransform(targetEPSG, rast.EPSG)
		}
		if err != nil {
			return nil, nil, nil, &InputReadError{Path: cfg.DEMPath, Err: err}
		}
	}
	return districts, fwd, inv, nil
}

// basePadFraction sets the base plate thickness below the lowest
// sample, as a fraction of the district's longest horizontal side. A
// base exactly at the minimum would give zero wall height at the lowest
// boundary vertex, and a completely flat district no walls at all.
const basePadFraction = 0.02

// buildSolid clips, meshes and caps one district at its own minimum
// elevation, pre-scale.
func buildSolid(d district.District, rast *raster.Raster, fwd, inv proj.Transformer, exaggeration float64) (*mesh.Mesh, int, error) {
	grid, err := rast.Clip(d.Geom, fwd, inv)
	if errors.Is(err, raster.ErrNoOverlap) {
		return nil, 0, &NoOverlapError{District: d.Name}
	}
	if err != nil {
		return nil, 0, &DegenerateGeometryError{District: d.Name, Reason: err.Error()}
	}
	if grid.ValidCount() == 0 {
		return nil, 0, &DegenerateGeometryError{District: d.Name, Reason: "no valid elevation samples inside polygon"}
	}
	top := mesh.Heightfield(grid, exaggeration)
	if len(top.Faces) == 0 {
		return nil, 0, &DegenerateGeometryError{District: d.Name, Reason: "no complete 2x2 block of valid samples"}
	}
	min, _, _ := grid.MinMax()
	b := grid.Bounds()
	pad := basePadFraction * math.Max(b.Max.X-b.Min.X, b.Max.Y-b.Min.Y)
	solid, err := mesh.Solidify(top, min*exaggeration-pad)
	if err != nil {
		return nil, 0, &DegenerateGeometryError{District: d.Name, Reason: err.Error()}
	}
	return solid, len(mesh.BoundaryLoops(top)), nil
}

// export writes one scaled solid, and its preview when configured.
func export(cfg Config, p pending, log *slog.Logger) (string, error) {
	path := filepath.Join(cfg.OutputDir, p.d.SafeName()+".stl")
	var err error
	if cfg.ASCII {
		err = render.CreateSTLASCII(path, p.d.SafeName(), p.solid.Triangles())
	} else {
		err = render.CreateSTL(path, p.solid.Triangles())
	}
	if err != nil {
		werr := &WriteError{Path: path, Err: err}
		log.Warn("export failed", "district", p.d.Name, "reason", werr.Error())
		return "", werr
	}
	log.Info("saved district", "district", p.d.Name, "path", path, "triangles", len(p.solid.Faces))

	if cfg.Preview {
		png := strings.TrimSuffix(path, ".stl") + ".png"
		if err := render.PreviewPNG(path, png, render.DefaultView()); err != nil {
			// Previews are best effort; the STL already exists.
			log.Warn("preview render failed", "district", p.d.Name, "reason", err.Error())
		}
	}
	return path, nil
}
