// Package district loads boundary polygon datasets and prepares them
// for terrain clipping.
package district

import (
	"strings"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/proj"
)

// NameProperty is the feature property carrying the district name.
// Features without it fall back to district_<index>.
const NameProperty = "shapeName"

// District is one boundary polygon with its display name. Districts
// are immutable once loaded; each is consumed exactly once to produce
// one output mesh.
type District struct {
	Name string
	Geom geom.Polygonal
}

// SafeName returns the district name sanitized for use as a file name.
// Path separators and shell-hostile characters become underscores.
func (d District) SafeName() string {
	var b strings.Builder
	for _, r := range d.Name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '.' || r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteByte('_')
		default:
			b.WriteByte('_')
		}
	}
	s := strings.Trim(b.String(), "._")
	if s == "" {
		return "district"
	}
	return s
}

// Reproject returns a copy of districts with geometry transformed
// through t.
func Reproject(districts []District, t proj.Transformer) ([]District, error) {
	out := make([]District, len(districts))
	for i, d := range districts {
		g, err := d.Geom.Transform(t)
		if err != nil {
			return nil, err
		}
		out[i] = District{Name: d.Name, Geom: g.(geom.Polygonal)}
	}
	return out, nil
}
