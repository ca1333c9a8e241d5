package district

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ctessum/geom"
	shp "github.com/jonas-p/go-shp"
	geojson "github.com/paulmach/go.geojson"
)

// Load reads a boundary dataset, dispatching on the file extension.
// GeoJSON (.geojson, .json) and ESRI shapefiles (.shp) are supported.
func Load(path string) ([]District, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".geojson", ".json":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return FromGeoJSON(data)
	case ".shp":
		return FromShapefile(path)
	}
	return nil, fmt.Errorf("district: unsupported boundary format %q", filepath.Ext(path))
}

// FromGeoJSON parses a GeoJSON feature collection of polygons.
// Non-polygonal features are rejected rather than silently dropped.
func FromGeoJSON(data []byte) ([]District, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("district: parsing GeoJSON: %w", err)
	}
	districts := make([]District, 0, len(fc.Features))
	for i, f := range fc.Features {
		if f.Geometry == nil {
			return nil, fmt.Errorf("district: feature %d has no geometry", i)
		}
		var g geom.Polygonal
		switch {
		case f.Geometry.IsPolygon():
			g = polygonFromRings(f.Geometry.Polygon)
		case f.Geometry.IsMultiPolygon():
			mp := make(geom.MultiPolygon, len(f.Geometry.MultiPolygon))
			for j, rings := range f.Geometry.MultiPolygon {
				mp[j] = polygonFromRings(rings)
			}
			g = mp
		default:
			return nil, fmt.Errorf("district: feature %d is %s, want Polygon or MultiPolygon",
				i, f.Geometry.Type)
		}
		districts = append(districts, District{
			Name: featureName(f, i),
			Geom: g,
		})
	}
	return districts, nil
}

func featureName(f *geojson.Feature, index int) string {
	if name, err := f.PropertyString(NameProperty); err == nil && name != "" {
		return name
	}
	return fmt.Sprintf("district_%d", index)
}

func polygonFromRings(rings [][][]float64) geom.Polygon {
	p := make(geom.Polygon, len(rings))
	for i, ring := range rings {
		p[i] = make([]geom.Point, len(ring))
		for j, c := range ring {
			p[i][j] = geom.Point{X: c[0], Y: c[1]}
		}
	}
	return p
}

// FromShapefile reads polygon records from an ESRI shapefile. The name
// comes from a shapeName attribute when the DBF carries one.
func FromShapefile(path string) ([]District, error) {
	r, err := shp.Open(path)
	if err != nil {
		return nil, fmt.Errorf("district: opening shapefile: %w", err)
	}
	defer r.Close()

	nameField := -1
	for i, f := range r.Fields() {
		if strings.EqualFold(f.String(), NameProperty) {
			nameField = i
			break
		}
	}

	var districts []District
	for r.Next() {
		n, s := r.Shape()
		poly, ok := s.(*shp.Polygon)
		if !ok {
			return nil, fmt.Errorf("district: record %d is %T, want polygon", n, s)
		}
		name := ""
		if nameField >= 0 {
			name = r.ReadAttribute(n, nameField)
		}
		if name == "" {
			name = fmt.Sprintf("district_%d", n)
		}
		districts = append(districts, District{
			Name: name,
			Geom: polygonFromShp(poly),
		})
	}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("district: reading shapefile: %w", err)
	}
	return districts, nil
}

func polygonFromShp(p *shp.Polygon) geom.Polygon {
	parts := make([]int32, 0, len(p.Parts)+1)
	parts = append(parts, p.Parts...)
	parts = append(parts, int32(len(p.Points)))
	out := make(geom.Polygon, 0, len(p.Parts))
	for i := 0; i+1 < len(parts); i++ {
		ring := make([]geom.Point, 0, parts[i+1]-parts[i])
		for _, pt := range p.Points[parts[i]:parts[i+1]] {
			ring = append(ring, geom.Point{X: pt.X, Y: pt.Y})
		}
		out = append(out, ring)
	}
	return out
}
