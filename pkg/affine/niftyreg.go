package affine

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// ReadNiftyReg reads a NiftyReg plain-text transform. The file stores the
// reference-to-floating matrix, so the parsed matrix is inverted once to
// obtain the floating-to-reference transform used everywhere else.
func ReadNiftyReg(path string) (Matrix, error) {
	f, err := openTransform(path)
	if err != nil {
		return Matrix{}, err
	}
	defer f.Close()

	var rows [][]float64
	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		row := make([]float64, 0, len(fields))
		for _, field := range fields {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return Matrix{}, fmt.Errorf("%s: line %d: %w", path, line, err)
			}
			row = append(row, v)
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return Matrix{}, fmt.Errorf("%s: %w", path, err)
	}

	stored, err := matrixFromRows(rows)
	if err != nil {
		return Matrix{}, fmt.Errorf("%s: %w", path, err)
	}
	return stored.Inverse()
}

// WriteNiftyReg writes m in NiftyReg's plain-text format. The on-disk matrix
// is the reference-to-floating direction, so m is inverted before
// serialization. Values are written with eight decimal places.
func WriteNiftyReg(m Matrix, path string) error {
	inv, err := m.Inverse()
	if err != nil {
		return err
	}
	var b strings.Builder
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			if j > 0 {
				b.WriteByte(' ')
			}
			fmt.Fprintf(&b, "%.8f", inv.At(i, j))
		}
		b.WriteByte('\n')
	}
	return os.WriteFile(path, []byte(b.String()), 0644)
}

// matrixFromRows validates that the parsed rows form a square 4x4 matrix.
func matrixFromRows(rows [][]float64) (Matrix, error) {
	if len(rows) != 4 {
		cols := 0
		if len(rows) > 0 {
			cols = len(rows[0])
		}
		return Matrix{}, &ShapeError{Rows: len(rows), Cols: cols}
	}
	var m Matrix
	for i, row := range rows {
		if len(row) != 4 {
			return Matrix{}, &ShapeError{Rows: len(rows), Cols: len(row)}
		}
		for j, v := range row {
			m.data[4*i+j] = v
		}
	}
	return m, nil
}
