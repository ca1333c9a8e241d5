// Package crs resolves EPSG codes to spatial reference definitions
// usable with github.com/ctessum/geom/proj.
package crs

import (
	"fmt"

	"github.com/ctessum/geom/proj"
)

// proj4 definitions for the codes terrain datasets actually use.
// UTM zones are generated below rather than listed. Every entry must
// stay within the projections the proj package evaluates (longlat,
// merc, lcc, tmerc/utm, krovak, aea, eqdc): Parse accepts any proj4
// string and only per-point evaluation fails on an unknown projection,
// so a bad entry here would surface mid-pipeline instead of here.
// EPSG:3035 (laea) is omitted for that reason.
var known = map[int]string{
	4326: "+proj=longlat +datum=WGS84 +no_defs",
	4269: "+proj=longlat +datum=NAD83 +no_defs",
	4258: "+proj=longlat +ellps=GRS80 +no_defs",
	3857: "+proj=merc +a=6378137 +b=6378137 +lat_ts=0 +lon_0=0 +x_0=0 +y_0=0 +k=1 +units=m +nadgrids=@null +no_defs",
	2154: "+proj=lcc +lat_1=49 +lat_2=44 +lat_0=46.5 +lon_0=3 +x_0=700000 +y_0=6600000 +ellps=GRS80 +units=m +no_defs",
	5514: "+proj=krovak +lat_0=49.5 +lon_0=24.83333333333333 +alpha=30.28813972222222 +k=0.9999 +x_0=0 +y_0=0 +ellps=bessel +units=m +no_defs",
}

// Resolve returns the spatial reference for an EPSG code. Codes outside
// the supported set produce an error naming the code so the caller can
// report a usable message.
func Resolve(epsg int) (*proj.SR, error) {
	def, err := proj4(epsg)
	if err != nil {
		return nil, err
	}
	sr, err := proj.Parse(def)
	if err != nil {
		return nil, fmt.Errorf("crs: parsing definition for EPSG:%d: %w", epsg, err)
	}
	return sr, nil
}

// NewTransform returns a coordinate transform between two EPSG codes.
// The result is never nil: equal reference systems get an identity
// transform, where SR.NewTransform would hand back a nil Transformer.
func NewTransform(fromEPSG, toEPSG int) (proj.Transformer, error) {
	from, err := Resolve(fromEPSG)
	if err != nil {
		return nil, err
	}
	to, err := Resolve(toEPSG)
	if err != nil {
		return nil, err
	}
	t, err := from.NewTransform(to)
	if err != nil {
		return nil, fmt.Errorf("crs: EPSG:%d -> EPSG:%d: %w", fromEPSG, toEPSG, err)
	}
	if t == nil {
		return func(x, y float64) (float64, float64, error) { return x, y, nil }, nil
	}
	return t, nil
}

func proj4(epsg int) (string, error) {
	if def, ok := known[epsg]; ok {
		return def, nil
	}
	// WGS84 UTM zones, north then south.
	if epsg >= 32601 && epsg <= 32660 {
		return fmt.Sprintf("+proj=utm +zone=%d +datum=WGS84 +units=m +no_defs", epsg-32600), nil
	}
	if epsg >= 32701 && epsg <= 32760 {
		return fmt.Sprintf("+proj=utm +zone=%d +south +datum=WGS84 +units=m +no_defs", epsg-32700), nil
	}
	return "", fmt.Errorf("crs: EPSG:%d is not in the supported set", epsg)
}
