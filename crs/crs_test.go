package crs

import (
	"math"
	"testing"
)

func TestResolve(t *testing.T) {
	for _, epsg := range []int{4326, 3857, 32633, 32733, 5514} {
		if _, err := Resolve(epsg); err != nil {
			t.Errorf("Resolve(%d): %v", epsg, err)
		}
	}
}

// Parse accepts any proj4 string, so a table entry can resolve and
// still fail on the first point if the proj package does not evaluate
// its projection. Every advertised code must survive an actual
// transform.
func TestKnownCodesTransformPoints(t *testing.T) {
	codes := make([]int, 0, len(known)+4)
	for epsg := range known {
		codes = append(codes, epsg)
	}
	codes = append(codes, 32601, 32633, 32701, 32760)
	for _, epsg := range codes {
		fwd, err := NewTransform(4326, epsg)
		if err != nil {
			t.Errorf("NewTransform(4326, %d): %v", epsg, err)
			continue
		}
		x, y, err := fwd(15, 50)
		if err != nil {
			t.Errorf("EPSG:%d: transforming a point: %v", epsg, err)
			continue
		}
		if math.IsNaN(x) || math.IsInf(x, 0) || math.IsNaN(y) || math.IsInf(y, 0) {
			t.Errorf("EPSG:%d: point mapped to (%v, %v)", epsg, x, y)
		}
	}
}

func TestNewTransformSameSystem(t *testing.T) {
	ident, err := NewTransform(4326, 4326)
	if err != nil {
		t.Fatal(err)
	}
	if ident == nil {
		t.Fatal("NewTransform returned a nil transformer for equal systems")
	}
	x, y, err := ident(14.42, 50.09)
	if err != nil {
		t.Fatal(err)
	}
	if x != 14.42 || y != 50.09 {
		t.Fatalf("identity mapped (14.42, 50.09) to (%v, %v)", x, y)
	}
}

func TestResolveUnsupported(t *testing.T) {
	if _, err := Resolve(99999); err == nil {
		t.Fatal("expected an error for an unsupported code")
	}
	// Outside the WGS84 UTM ranges.
	if _, err := Resolve(32661); err == nil {
		t.Fatal("expected an error for EPSG:32661")
	}
}

func TestNewTransformWebMercator(t *testing.T) {
	fwd, err := NewTransform(4326, 3857)
	if err != nil {
		t.Fatal(err)
	}
	x, y, err := fwd(0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(x) > 1e-6 || math.Abs(y) > 1e-6 {
		t.Errorf("origin mapped to (%v, %v), want (0, 0)", x, y)
	}
	// Equator circumference quarter point.
	x, y, err = fwd(90, 0)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(x-10018754.17) > 1 || math.Abs(y) > 1e-6 {
		t.Errorf("(90, 0) mapped to (%v, %v), want (~10018754, 0)", x, y)
	}
}

func TestNewTransformRoundTrip(t *testing.T) {
	fwd, err := NewTransform(4326, 32633)
	if err != nil {
		t.Fatal(err)
	}
	inv, err := NewTransform(32633, 4326)
	if err != nil {
		t.Fatal(err)
	}
	const lon, lat = 14.42, 50.09 // Prague
	x, y, err := fwd(lon, lat)
	if err != nil {
		t.Fatal(err)
	}
	lon2, lat2, err := inv(x, y)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(lon2-lon) > 1e-6 || math.Abs(lat2-lat) > 1e-6 {
		t.Errorf("round trip drifted: (%v, %v) -> (%v, %v)", lon, lat, lon2, lat2)
	}
}
