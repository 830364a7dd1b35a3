package affine

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// The ITK transform container ("Insight Transform File V1.0") serializes an
// affine transform as twelve Parameters, nine row-major rotation values
// followed by three translation values, plus three FixedParameters holding
// the center of rotation. Transforms written here always have a zero center,
// and a non-zero center on read is not folded into the matrix.

const (
	itkFileHeader   = "#Insight Transform File V1.0"
	itkTransformTag = "#Transform 0"
	itkAffineType   = "AffineTransform_double_3_3"
	itkMatrixType   = "MatrixOffsetTransformBase_double_3_3"

	hdf5Reason = "ITK HDF5 containers are not supported, write the " + ExtITK + " text container instead"
)

// ReadITK reads an ITK .tfm transform container. The stored parameters are
// in LPS convention, floating to reference; the result is converted to the
// RAS convention used internally.
func ReadITK(path string) (Matrix, error) {
	if strings.EqualFold(filepath.Ext(path), ExtITKHDF5) {
		return Matrix{}, &UnsupportedFormatError{Path: path, Ext: ExtITKHDF5, Reason: hdf5Reason}
	}
	f, err := openTransform(path)
	if err != nil {
		return Matrix{}, err
	}
	defer f.Close()

	params, err := parseITKParameters(f)
	if err != nil {
		return Matrix{}, fmt.Errorf("%s: %w", path, err)
	}

	lps := New([4][4]float64{
		{params[0], params[1], params[2], params[9]},
		{params[3], params[4], params[5], params[10]},
		{params[6], params[7], params[8], params[11]},
		{0, 0, 0, 1},
	})
	return FromLPS(lps)
}

// WriteITK writes m as an ITK .tfm transform container, converting it to
// the LPS convention the container stores.
func WriteITK(m Matrix, path string) error {
	if strings.EqualFold(filepath.Ext(path), ExtITKHDF5) {
		return &UnsupportedFormatError{Path: path, Ext: ExtITKHDF5, Reason: hdf5Reason}
	}
	lps, err := ToLPS(m)
	if err != nil {
		return err
	}

	params := make([]string, 0, 12)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			params = append(params, formatITKFloat(lps.At(i, j)))
		}
	}
	for i := 0; i < 3; i++ {
		params = append(params, formatITKFloat(lps.At(i, 3)))
	}

	var b strings.Builder
	b.WriteString(itkFileHeader + "\n")
	b.WriteString(itkTransformTag + "\n")
	b.WriteString("Transform: " + itkAffineType + "\n")
	b.WriteString("Parameters: " + strings.Join(params, " ") + "\n")
	b.WriteString("FixedParameters: 0 0 0\n")
	return os.WriteFile(path, []byte(b.String()), 0644)
}

// parseITKParameters extracts the twelve-value parameter vector from the
// container, validating the transform type along the way.
func parseITKParameters(r io.Reader) ([]float64, error) {
	var params []float64
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "" || strings.HasPrefix(line, "#"):
			continue
		case strings.HasPrefix(line, "Transform:"):
			typ := strings.TrimSpace(strings.TrimPrefix(line, "Transform:"))
			if typ != itkAffineType && typ != itkMatrixType {
				return nil, fmt.Errorf("unsupported transform type %q", typ)
			}
		case strings.HasPrefix(line, "Parameters:"):
			fields := strings.Fields(strings.TrimPrefix(line, "Parameters:"))
			params = make([]float64, 0, len(fields))
			for _, field := range fields {
				v, err := strconv.ParseFloat(field, 64)
				if err != nil {
					return nil, fmt.Errorf("parameters: %w", err)
				}
				params = append(params, v)
			}
		case strings.HasPrefix(line, "FixedParameters:"):
			// Center of rotation, ignored.
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if params == nil {
		return nil, fmt.Errorf("no Parameters line found")
	}
	if len(params) != 12 {
		return nil, fmt.Errorf("expected 12 transform parameters, got %d", len(params))
	}
	return params, nil
}

func formatITKFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
