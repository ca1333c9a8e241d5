package terrastl

import (
	"errors"
	"math"

	"github.com/geoforms/terrastl/internal/d3"
)

// ScaleFactor computes the one uniform scale applied to every district
// mesh. The factor makes the longest horizontal side of the bounding
// box of the union of all district extents equal to target, so the
// output set shares a single physical scale and districts keep their
// relative sizes. Scaling per district instead would stretch every
// district to the target and destroy that relationship.
func ScaleFactor(extents []d3.Box, target float64) (float64, error) {
	if len(extents) == 0 {
		return 0, errors.New("no district extents to scale")
	}
	if target <= 0 || math.IsNaN(target) {
		return 0, errors.New("target size must be positive")
	}
	size := unionExtent(extents).Size()
	longest := math.Max(size.X, size.Y)
	if longest <= 0 {
		return 0, errors.New("combined district extent has no horizontal size")
	}
	return target / longest, nil
}

// unionExtent returns the bounding box enclosing all extents.
// Callers guarantee at least one element.
func unionExtent(extents []d3.Box) d3.Box {
	union := extents[0]
	for _, b := range extents[1:] {
		union = union.Extend(b)
	}
	return union
}
