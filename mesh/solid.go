package mesh

import (
	"errors"

	"gonum.org/v1/gonum/spatial/r3"
)

// Solidify closes a top terrain surface into a printable solid. The
// bottom cap is the top triangulation flattened onto the base plane
// with reversed winding, which stays correct for interior holes and
// for multiple disjoint stair-step regions; side walls connect every
// boundary edge of the top surface to its projection on the base
// plane. Disjoint regions end up as sibling closed solids inside the
// one returned mesh.
//
// base is in the same (already exaggerated) z units as the top surface
// and must not sit above any top vertex.
func Solidify(top *Mesh, base float64) (*Mesh, error) {
	if len(top.Faces) == 0 {
		return nil, errors.New("mesh: cannot solidify an empty surface")
	}
	for _, v := range top.Vertices {
		if v.Z < base {
			return nil, errors.New("mesh: base plane sits above the top surface")
		}
	}

	n := len(top.Vertices)
	solid := &Mesh{
		Vertices: make([]r3.Vec, 0, 2*n),
		Faces:    make([][3]int, 0, 4*len(top.Faces)),
	}
	solid.Vertices = append(solid.Vertices, top.Vertices...)
	for _, v := range top.Vertices {
		solid.Vertices = append(solid.Vertices, r3.Vec{X: v.X, Y: v.Y, Z: base})
	}
	solid.Faces = append(solid.Faces, top.Faces...)
	// Bottom cap, mirrored so normals point down.
	for _, f := range top.Faces {
		solid.Faces = append(solid.Faces, [3]int{n + f[0], n + f[2], n + f[1]})
	}
	// Walls. A boundary edge a->b has the interior on its left, so the
	// outward wall winding starts at b.
	for _, e := range boundaryEdges(top) {
		a, b := e[0], e[1]
		solid.Faces = append(solid.Faces,
			[3]int{b, a, n + a},
			[3]int{b, n + a, n + b},
		)
	}
	return solid, nil
}

// boundaryEdges returns the directed edges used by exactly one face.
// With consistent winding an interior edge appears once per direction,
// so an edge is on the boundary exactly when its reverse is absent.
func boundaryEdges(m *Mesh) [][2]int {
	edges := make(map[[2]int]struct{}, 3*len(m.Faces))
	for _, f := range m.Faces {
		edges[[2]int{f[0], f[1]}] = struct{}{}
		edges[[2]int{f[1], f[2]}] = struct{}{}
		edges[[2]int{f[2], f[0]}] = struct{}{}
	}
	var boundary [][2]int
	for _, f := range m.Faces {
		for _, e := range [][2]int{{f[0], f[1]}, {f[1], f[2]}, {f[2], f[0]}} {
			if _, twin := edges[[2]int{e[1], e[0]}]; !twin {
				boundary = append(boundary, e)
			}
		}
	}
	return boundary
}

// BoundaryLoops chains the boundary edges of a surface into closed
// vertex loops. Stair-stepped clipping can pinch two regions together
// at a single vertex; such vertices have several outgoing boundary
// edges and the walk takes any unused one, which still closes every
// loop because in- and out-degrees match.
func BoundaryLoops(m *Mesh) [][]int {
	edges := boundaryEdges(m)
	next := make(map[int][]int)
	for _, e := range edges {
		next[e[0]] = append(next[e[0]], e[1])
	}
	var loops [][]int
	for start := range next {
		for len(next[start]) > 0 {
			loop := []int{start}
			at := pop(next, start)
			for at != start && len(loop) <= len(edges) {
				loop = append(loop, at)
				at = pop(next, at)
			}
			loops = append(loops, loop)
		}
	}
	return loops
}

func pop(next map[int][]int, v int) int {
	out := next[v]
	last := out[len(out)-1]
	if len(out) == 1 {
		delete(next, v)
	} else {
		next[v] = out[:len(out)-1]
	}
	return last
}
