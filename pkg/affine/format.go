package affine

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Recognized transform file extensions.
const (
	ExtNiftyReg = ".txt" // plain-text matrix, reference to floating, RAS
	ExtITK      = ".tfm" // ITK transform container, floating to reference, LPS
	ExtITKHDF5  = ".h5"  // ITK HDF5 container (recognized, not supported)
)

// Format identifies an on-disk transform file format. The format is resolved
// from the path extension exactly once at the I/O boundary; the extension is
// the sole discriminator and no content sniffing ever happens.
type Format int

const (
	FormatUnknown Format = iota
	// FormatNiftyReg is a plain-text 4x4 matrix holding the
	// reference-to-floating transform in RAS convention.
	FormatNiftyReg
	// FormatITK is the "Insight Transform File V1.0" container holding nine
	// row-major rotation parameters and three translation parameters in LPS
	// convention, floating to reference.
	FormatITK
)

func (f Format) String() string {
	switch f {
	case FormatNiftyReg:
		return "niftyreg"
	case FormatITK:
		return "itk"
	}
	return "unknown"
}

// DetectFormat resolves the transform format for path from its extension.
// An unrecognized extension is a hard configuration error.
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ExtNiftyReg:
		return FormatNiftyReg, nil
	case ExtITK, ExtITKHDF5:
		return FormatITK, nil
	}
	return FormatUnknown, &UnsupportedFormatError{Path: path, Ext: filepath.Ext(path)}
}

// ReadMatrix loads the floating-to-reference matrix stored in path,
// dispatching on the detected format.
func ReadMatrix(path string) (Matrix, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return Matrix{}, err
	}
	if format == FormatNiftyReg {
		return ReadNiftyReg(path)
	}
	return ReadITK(path)
}

// WriteMatrix stores the floating-to-reference matrix m in path, dispatching
// on the detected format.
func WriteMatrix(m Matrix, path string) error {
	format, err := DetectFormat(path)
	if err != nil {
		return err
	}
	if format == FormatNiftyReg {
		return WriteNiftyReg(m, path)
	}
	return WriteITK(m, path)
}

// openTransform opens path for reading, mapping a missing file to a
// NotFoundError so it stays distinguishable from malformed content.
func openTransform(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &NotFoundError{Path: path, Err: err}
		}
		return nil, err
	}
	return f, nil
}
