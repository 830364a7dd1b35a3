package affine

import "fmt"

// NotFoundError reports a transform path that does not exist on disk. It is
// distinguishable from malformed-content errors, which never carry this type.
type NotFoundError struct {
	Path string
	Err  error
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("the transform %s does not exist", e.Path)
}

// Unwrap exposes the underlying filesystem error so callers can also test
// with errors.Is(err, fs.ErrNotExist).
func (e *NotFoundError) Unwrap() error { return e.Err }

// UnsupportedFormatError reports a path whose extension is not a recognized
// transform extension, or a recognized container variant that cannot be
// read or written (the Reason field explains which).
type UnsupportedFormatError struct {
	Path   string
	Ext    string
	Reason string
}

func (e *UnsupportedFormatError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("transform %s: %s", e.Path, e.Reason)
	}
	return fmt.Sprintf("transform extension must be %s, %s or %s, not %q",
		ExtNiftyReg, ExtITK, ExtITKHDF5, e.Ext)
}

// ShapeError reports a matrix that is not 4x4.
type ShapeError struct {
	Rows, Cols int
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("matrix must have shape (4, 4), not (%d, %d)", e.Rows, e.Cols)
}

// SingularMatrixError reports an inversion request on a non-invertible
// matrix.
type SingularMatrixError struct {
	err error
}

func (e *SingularMatrixError) Error() string {
	return fmt.Sprintf("matrix is singular: %v", e.err)
}

func (e *SingularMatrixError) Unwrap() error { return e.err }
