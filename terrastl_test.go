package terrastl

import (
	"bytes"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/geoforms/terrastl/internal/d3"
	"github.com/geoforms/terrastl/internal/testgeo"
	"github.com/geoforms/terrastl/render"
)

func TestScaleFactor(t *testing.T) {
	// A 10-unit district with a 5-unit district nested in its extent.
	// One shared factor maps the combined extent to 100mm, so the
	// districts come out at 100mm and 50mm instead of both at 100mm.
	extents := []d3.Box{
		{Min: r3.Vec{X: 0, Y: 0, Z: 0}, Max: r3.Vec{X: 10, Y: 10, Z: 2}},
		{Min: r3.Vec{X: 2, Y: 2, Z: 0}, Max: r3.Vec{X: 7, Y: 7, Z: 1}},
	}
	s, err := ScaleFactor(extents, 100)
	if err != nil {
		t.Fatal(err)
	}
	if s != 10 {
		t.Fatalf("ScaleFactor = %v, want 10", s)
	}
}

func TestScaleFactorUsesLongestSide(t *testing.T) {
	extents := []d3.Box{
		{Min: r3.Vec{}, Max: r3.Vec{X: 4, Y: 20, Z: 100}},
	}
	s, err := ScaleFactor(extents, 10)
	if err != nil {
		t.Fatal(err)
	}
	// y is the longest horizontal side; z never participates.
	if s != 0.5 {
		t.Fatalf("ScaleFactor = %v, want 0.5", s)
	}
}

func TestScaleFactorErrors(t *testing.T) {
	if _, err := ScaleFactor(nil, 100); err == nil {
		t.Error("expected an error for no extents")
	}
	box := []d3.Box{{Min: r3.Vec{}, Max: r3.Vec{X: 1, Y: 1, Z: 1}}}
	if _, err := ScaleFactor(box, 0); err == nil {
		t.Error("expected an error for a zero target")
	}
	flat := []d3.Box{{Min: r3.Vec{X: 2, Y: 2}, Max: r3.Vec{X: 2, Y: 2, Z: 5}}}
	if _, err := ScaleFactor(flat, 100); err == nil {
		t.Error("expected an error for a degenerate extent")
	}
}

// writeInputs lays down a 12x12 DEM with z = row + col and two
// districts inside it plus one far outside.
func writeInputs(t *testing.T, dir string) (districtsPath, demPath string) {
	t.Helper()
	const size = 12
	vals := make([]float32, size*size)
	for row := 0; row < size; row++ {
		for col := 0; col < size; col++ {
			vals[row*size+col] = float32(row + col)
		}
	}
	demPath = filepath.Join(dir, "dem.tif")
	err := os.WriteFile(demPath, testgeo.GeoTIFF(testgeo.TIFFOpts{
		Width: size, Height: size,
		Values:  vals,
		OriginX: 0, OriginY: size,
		DX: 1, DY: 1,
	}), 0o644)
	if err != nil {
		t.Fatal(err)
	}
	districtsPath = filepath.Join(dir, "districts.geojson")
	err = os.WriteFile(districtsPath, testgeo.DistrictsJSON(
		testgeo.Feature{Name: "alpha", Rings: testgeo.Square(1, 1, 8)},
		testgeo.Feature{Name: "beta", Rings: testgeo.Square(9.2, 0.2, 2.6)},
		testgeo.Feature{Name: "faraway", Rings: testgeo.Square(100, 100, 5)},
	), 0o644)
	if err != nil {
		t.Fatal(err)
	}
	return districtsPath, demPath
}

func meshExtent(t *testing.T, path string) d3.Box {
	t.Helper()
	tris, err := render.ReadSTLFile(path)
	if err != nil {
		t.Fatal(err)
	}
	b := d3.Box{Min: tris[0].V[0], Max: tris[0].V[0]}
	for _, tri := range tris {
		for _, v := range tri.V {
			b = b.Include(v)
		}
	}
	return b
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	districtsPath, demPath := writeInputs(t, dir)
	cfg := Config{
		DistrictsPath: districtsPath,
		DEMPath:       demPath,
		OutputDir:     filepath.Join(dir, "out"),
		Exaggeration:  1,
		TargetSizeMM:  100,
	}
	results, err := Run(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 3 {
		t.Fatalf("len(results) = %d, want 3", len(results))
	}

	var noOverlap *NoOverlapError
	if !errors.As(results[2].Err, &noOverlap) {
		t.Fatalf("faraway district: err = %v, want NoOverlapError", results[2].Err)
	}
	if results[2].Path != "" {
		t.Errorf("faraway district produced %q", results[2].Path)
	}

	for _, i := range []int{0, 1} {
		res := results[i]
		if res.Err != nil {
			t.Fatalf("district %s failed: %v", res.District, res.Err)
		}
		if res.Loops != 1 {
			t.Errorf("district %s capped %d loops, want 1", res.District, res.Loops)
		}
		tris, err := render.ReadSTLFile(res.Path)
		if err != nil {
			t.Fatal(err)
		}
		if len(tris) != res.Triangles {
			t.Errorf("district %s: file holds %d triangles, Result says %d",
				res.District, len(tris), res.Triangles)
		}
	}

	// One global factor: alpha's valid samples span 7 map units and the
	// combined extent 10, so alpha prints at 70mm, not 100mm.
	alpha := meshExtent(t, results[0].Path)
	if w := alpha.Size().X; math.Abs(w-70) > 0.01 {
		t.Errorf("alpha width = %vmm, want 70mm", w)
	}
	beta := meshExtent(t, results[1].Path)
	if w := beta.Size().X; w >= alpha.Size().X/2 {
		t.Errorf("beta width = %vmm, want well under half of alpha's %vmm", w, alpha.Size().X)
	}

	// The solids share one offset putting the combined extent's corner
	// at the origin: alpha is the westernmost district and beta the
	// southernmost, so each pins one axis while keeping their relative
	// placement. Raw map coordinates never leak into the output.
	const tol = 1e-6
	if math.Abs(alpha.Min.X) > tol {
		t.Errorf("alpha min x = %v, want 0", alpha.Min.X)
	}
	if math.Abs(beta.Min.Y) > tol {
		t.Errorf("beta min y = %v, want 0", beta.Min.Y)
	}
	for _, b := range []d3.Box{alpha, beta} {
		if b.Min.X < -tol || b.Min.Y < -tol || b.Min.Z < -tol {
			t.Errorf("extent min %+v reaches below the origin", b.Min)
		}
	}
	if beta.Min.X <= alpha.Max.X {
		t.Errorf("beta min x = %v, want east of alpha max x %v", beta.Min.X, alpha.Max.X)
	}
}

func TestRunRejectsBadExaggeration(t *testing.T) {
	dir := t.TempDir()
	districtsPath, demPath := writeInputs(t, dir)
	cfg := Config{
		DistrictsPath: districtsPath,
		DEMPath:       demPath,
		OutputDir:     filepath.Join(dir, "out"),
		Exaggeration:  -1,
	}
	if _, err := Run(cfg, nil); err == nil {
		t.Error("expected an error for a negative exaggeration")
	}
	cfg.Exaggeration = math.NaN()
	if _, err := Run(cfg, nil); err == nil {
		t.Error("expected an error for a NaN exaggeration")
	}
	cfg.Exaggeration = 1
	cfg.TargetSizeMM = -50
	if _, err := Run(cfg, nil); err == nil {
		t.Error("expected an error for a negative target size")
	}
}

func TestRunDeterministic(t *testing.T) {
	dir := t.TempDir()
	districtsPath, demPath := writeInputs(t, dir)
	cfg := Config{
		DistrictsPath: districtsPath,
		DEMPath:       demPath,
		OutputDir:     filepath.Join(dir, "out"),
		Exaggeration:  2,
		TargetSizeMM:  150,
	}
	results1, err := Run(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	first, err := os.ReadFile(results1[0].Path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Run(cfg, nil); err != nil {
		t.Fatal(err)
	}
	second, err := os.ReadFile(results1[0].Path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(first, second) {
		t.Error("two runs over the same inputs produced different bytes")
	}
}

func TestRunASCII(t *testing.T) {
	dir := t.TempDir()
	districtsPath, demPath := writeInputs(t, dir)
	cfg := Config{
		DistrictsPath: districtsPath,
		DEMPath:       demPath,
		OutputDir:     filepath.Join(dir, "out"),
		ASCII:         true,
	}
	results, err := Run(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	raw, err := os.ReadFile(results[0].Path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(raw, []byte("solid ")) {
		t.Errorf("output does not start with an ASCII solid header: %q", raw[:20])
	}
}

func TestRunMissingInputs(t *testing.T) {
	dir := t.TempDir()
	districtsPath, demPath := writeInputs(t, dir)

	var inputErr *InputReadError
	_, err := Run(Config{DistrictsPath: districtsPath, DEMPath: filepath.Join(dir, "nope.tif"), OutputDir: dir}, nil)
	if !errors.As(err, &inputErr) {
		t.Fatalf("missing DEM: err = %v, want InputReadError", err)
	}
	_, err = Run(Config{DistrictsPath: filepath.Join(dir, "nope.geojson"), DEMPath: demPath, OutputDir: dir}, nil)
	if !errors.As(err, &inputErr) {
		t.Fatalf("missing districts: err = %v, want InputReadError", err)
	}
}
