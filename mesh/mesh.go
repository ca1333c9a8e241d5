// Package mesh builds triangulated solids from clipped elevation grids.
package mesh

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/geoforms/terrastl/internal/d3"
	"github.com/geoforms/terrastl/render"
)

// Mesh is an indexed triangle mesh. Faces hold vertex indices in
// counterclockwise order when viewed from the outside.
type Mesh struct {
	Vertices []r3.Vec
	Faces    [][3]int
}

// Validate checks that every face index is in range and no face is
// trivially collapsed onto a single vertex.
func (m *Mesh) Validate() error {
	n := len(m.Vertices)
	for i, f := range m.Faces {
		for _, v := range f {
			if v < 0 || v >= n {
				return fmt.Errorf("mesh: face %d references vertex %d of %d", i, v, n)
			}
		}
		if f[0] == f[1] || f[1] == f[2] || f[2] == f[0] {
			return fmt.Errorf("mesh: face %d repeats a vertex", i)
		}
	}
	return nil
}

// Bounds returns the axis-aligned bounding box of the mesh vertices.
func (m *Mesh) Bounds() d3.Box {
	if len(m.Vertices) == 0 {
		return d3.Box{}
	}
	b := d3.Box{Min: m.Vertices[0], Max: m.Vertices[0]}
	for _, v := range m.Vertices[1:] {
		b = b.Include(v)
	}
	return b
}

// Scale multiplies every vertex by s, uniformly in x, y and z.
func (m *Mesh) Scale(s float64) {
	for i := range m.Vertices {
		m.Vertices[i] = r3.Scale(s, m.Vertices[i])
	}
}

// Translate moves every vertex by v.
func (m *Mesh) Translate(v r3.Vec) {
	for i := range m.Vertices {
		m.Vertices[i] = r3.Add(m.Vertices[i], v)
	}
}

// Triangles expands the indexed faces into render triangles.
func (m *Mesh) Triangles() []render.Triangle3 {
	out := make([]render.Triangle3, len(m.Faces))
	for i, f := range m.Faces {
		out[i] = render.Triangle3{V: [3]r3.Vec{
			m.Vertices[f[0]],
			m.Vertices[f[1]],
			m.Vertices[f[2]],
		}}
	}
	return out
}

// Volume returns the signed volume enclosed by the mesh via the
// divergence theorem. Positive for a closed mesh with outward normals.
func (m *Mesh) Volume() float64 {
	var vol float64
	for _, f := range m.Faces {
		a, b, c := m.Vertices[f[0]], m.Vertices[f[1]], m.Vertices[f[2]]
		vol += r3.Dot(a, r3.Cross(b, c))
	}
	return vol / 6
}
