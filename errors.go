package terrastl

import "fmt"

// Error taxonomy for the batch pipeline. Input read failures abort the
// run; everything else is scoped to one district and downgraded to a
// warning so a single malformed feature never kills the batch.

// InputReadError reports that a boundary or raster input could not be
// read or decoded. Fatal.
type InputReadError struct {
	Path string
	Err  error
}

func (e *InputReadError) Error() string {
	return fmt.Sprintf("reading input %s: %v", e.Path, e.Err)
}

func (e *InputReadError) Unwrap() error { return e.Err }

// NoOverlapError reports that a district's extent does not intersect
// the raster's coverage. The district is skipped.
type NoOverlapError struct {
	District string
}

func (e *NoOverlapError) Error() string {
	return fmt.Sprintf("district %s does not overlap the elevation raster", e.District)
}

// DegenerateGeometryError reports a district whose clipped grid cannot
// produce any triangle: a zero-area polygon, no valid cells, or no
// complete 2x2 valid block. The district is skipped.
type DegenerateGeometryError struct {
	District string
	Reason   string
}

func (e *DegenerateGeometryError) Error() string {
	return fmt.Sprintf("district %s has degenerate geometry: %s", e.District, e.Reason)
}

// WriteError reports an I/O failure writing one district's output. The
// batch continues with the remaining districts.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("writing %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }
