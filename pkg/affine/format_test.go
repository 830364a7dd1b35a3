package affine

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// createTempDir creates a temporary directory for transform files
func createTempDir(t *testing.T) string {
	dir, err := os.MkdirTemp("", "imtools-test-*")
	if err != nil {
		t.Fatalf("Failed to create temporary directory: %v", err)
	}
	return dir
}

// writeTransformFile writes raw transform file content for read tests
func writeTransformFile(t *testing.T, dir, name, content string) string {
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write test transform: %v", err)
	}
	return path
}

// TestDetectFormat verifies the extension dispatch, including case
// insensitivity and the rejection of unknown extensions
func TestDetectFormat(t *testing.T) {
	cases := []struct {
		path    string
		want    Format
		wantErr bool
	}{
		{"transform.txt", FormatNiftyReg, false},
		{"TRANSFORM.TXT", FormatNiftyReg, false},
		{"transform.tfm", FormatITK, false},
		{"transform.h5", FormatITK, false},
		{"dir.with.dots/transform.Tfm", FormatITK, false},
		{"transform.csv", FormatUnknown, true},
		{"transform", FormatUnknown, true},
	}

	for _, c := range cases {
		got, err := DetectFormat(c.path)
		if c.wantErr {
			var formatErr *UnsupportedFormatError
			if !errors.As(err, &formatErr) {
				t.Errorf("Expected UnsupportedFormatError for %q, got %v", c.path, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("Failed to detect format of %q: %v", c.path, err)
			continue
		}
		if got != c.want {
			t.Errorf("Expected format %s for %q, got %s", c.want, c.path, got)
		}
	}
}

// TestUnsupportedExtensionError verifies the error carries the offending
// extension so callers can report it
func TestUnsupportedExtensionError(t *testing.T) {
	_, err := DetectFormat("registration.csv")
	var formatErr *UnsupportedFormatError
	if !errors.As(err, &formatErr) {
		t.Fatalf("Expected UnsupportedFormatError, got %v", err)
	}
	if formatErr.Ext != ".csv" {
		t.Errorf("Expected extension .csv in error, got %q", formatErr.Ext)
	}
	if !strings.Contains(formatErr.Error(), ".csv") {
		t.Errorf("Expected error message to name the extension, got %q", formatErr.Error())
	}
}

// TestFormatString verifies the format names
func TestFormatString(t *testing.T) {
	if FormatNiftyReg.String() != "niftyreg" {
		t.Errorf("Expected niftyreg, got %s", FormatNiftyReg.String())
	}
	if FormatITK.String() != "itk" {
		t.Errorf("Expected itk, got %s", FormatITK.String())
	}
	if FormatUnknown.String() != "unknown" {
		t.Errorf("Expected unknown, got %s", FormatUnknown.String())
	}
}

// TestNiftyRegRoundTrip verifies that writing and re-reading a transform
// reproduces it within tolerance
func TestNiftyRegRoundTrip(t *testing.T) {
	dir := createTempDir(t)
	defer os.RemoveAll(dir)

	m := testMatrix()
	path := filepath.Join(dir, "transform.txt")
	if err := WriteNiftyReg(m, path); err != nil {
		t.Fatalf("Failed to write transform: %v", err)
	}
	got, err := ReadNiftyReg(path)
	if err != nil {
		t.Fatalf("Failed to read transform back: %v", err)
	}
	if !got.EqualApprox(m, tol) {
		t.Errorf("Expected round trip to reproduce the matrix, got %v", got)
	}
}

// TestWriteNiftyRegContent verifies the on-disk layout for a pure
// translation, where the stored reference-to-floating matrix is known
func TestWriteNiftyRegContent(t *testing.T) {
	dir := createTempDir(t)
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "translation.txt")
	if err := WriteNiftyReg(NewTranslation(1, 2, 3), path); err != nil {
		t.Fatalf("Failed to write transform: %v", err)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read written transform: %v", err)
	}

	want := "1.00000000 0.00000000 0.00000000 -1.00000000\n" +
		"0.00000000 1.00000000 0.00000000 -2.00000000\n" +
		"0.00000000 0.00000000 1.00000000 -3.00000000\n" +
		"0.00000000 0.00000000 0.00000000 1.00000000\n"
	if string(content) != want {
		t.Errorf("Expected file content:\n%s\ngot:\n%s", want, string(content))
	}
}

// TestReadNiftyRegStoredDirection verifies that the stored matrix is
// inverted on read: a stored uniform scale of 2 must load as a scale of 0.5
func TestReadNiftyRegStoredDirection(t *testing.T) {
	dir := createTempDir(t)
	defer os.RemoveAll(dir)

	path := writeTransformFile(t, dir, "scale.txt",
		"2 0 0 0\n0 2 0 0\n0 0 2 0\n0 0 0 1\n")
	got, err := ReadNiftyReg(path)
	if err != nil {
		t.Fatalf("Failed to read transform: %v", err)
	}
	want := New([4][4]float64{
		{0.5, 0, 0, 0},
		{0, 0.5, 0, 0},
		{0, 0, 0.5, 0},
		{0, 0, 0, 1},
	})
	if !got.EqualApprox(want, tol) {
		t.Errorf("Expected stored matrix to be inverted on read, got %v", got)
	}
}

// TestReadNiftyRegSkipsBlankLines verifies that blank lines between rows are
// tolerated
func TestReadNiftyRegSkipsBlankLines(t *testing.T) {
	dir := createTempDir(t)
	defer os.RemoveAll(dir)

	path := writeTransformFile(t, dir, "spaced.txt",
		"1 0 0 0\n\n0 1 0 0\n0 0 1 0\n\n0 0 0 1\n")
	got, err := ReadNiftyReg(path)
	if err != nil {
		t.Fatalf("Failed to read transform with blank lines: %v", err)
	}
	if !got.EqualApprox(Identity(), tol) {
		t.Errorf("Expected identity, got %v", got)
	}
}

// TestReadNiftyRegShape verifies that files with the wrong number of rows or
// columns report a ShapeError
func TestReadNiftyRegShape(t *testing.T) {
	dir := createTempDir(t)
	defer os.RemoveAll(dir)

	cases := []struct {
		name    string
		content string
	}{
		{"rows.txt", "1 0 0 0\n0 1 0 0\n0 0 1 0\n"},
		{"cols.txt", "1 0 0 0\n0 1 0\n0 0 1 0\n0 0 0 1\n"},
	}
	for _, c := range cases {
		path := writeTransformFile(t, dir, c.name, c.content)
		_, err := ReadNiftyReg(path)
		var shapeErr *ShapeError
		if !errors.As(err, &shapeErr) {
			t.Errorf("Expected ShapeError for %s, got %v", c.name, err)
		}
	}
}

// TestReadNiftyRegMalformed verifies the error for non-numeric content
func TestReadNiftyRegMalformed(t *testing.T) {
	dir := createTempDir(t)
	defer os.RemoveAll(dir)

	path := writeTransformFile(t, dir, "garbage.txt",
		"1 0 0 0\n0 one 0 0\n0 0 1 0\n0 0 0 1\n")
	_, err := ReadNiftyReg(path)
	if err == nil {
		t.Fatal("Expected an error for non-numeric matrix content")
	}
	if !strings.Contains(err.Error(), "line 2") {
		t.Errorf("Expected error to name the offending line, got %v", err)
	}
}

// TestReadMissingTransform verifies that a missing file reports a
// NotFoundError that still matches fs.ErrNotExist
func TestReadMissingTransform(t *testing.T) {
	dir := createTempDir(t)
	defer os.RemoveAll(dir)

	for _, name := range []string{"missing.txt", "missing.tfm"} {
		_, err := ReadMatrix(filepath.Join(dir, name))
		var notFound *NotFoundError
		if !errors.As(err, &notFound) {
			t.Errorf("Expected NotFoundError for %s, got %v", name, err)
			continue
		}
		if !errors.Is(err, fs.ErrNotExist) {
			t.Errorf("Expected %s error to match fs.ErrNotExist", name)
		}
	}
}

// TestITKRoundTrip verifies that writing and re-reading an ITK container
// reproduces the transform within tolerance
func TestITKRoundTrip(t *testing.T) {
	dir := createTempDir(t)
	defer os.RemoveAll(dir)

	m := testMatrix()
	path := filepath.Join(dir, "transform.tfm")
	if err := WriteITK(m, path); err != nil {
		t.Fatalf("Failed to write transform: %v", err)
	}
	got, err := ReadITK(path)
	if err != nil {
		t.Fatalf("Failed to read transform back: %v", err)
	}
	if !got.EqualApprox(m, tol) {
		t.Errorf("Expected round trip to reproduce the matrix, got %v", got)
	}
}

// TestWriteITKContent verifies the container layout for a pure translation,
// where the stored LPS parameters are known
func TestWriteITKContent(t *testing.T) {
	dir := createTempDir(t)
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "translation.tfm")
	if err := WriteITK(NewTranslation(1, 2, 3), path); err != nil {
		t.Fatalf("Failed to write transform: %v", err)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read written transform: %v", err)
	}

	want := "#Insight Transform File V1.0\n" +
		"#Transform 0\n" +
		"Transform: AffineTransform_double_3_3\n" +
		"Parameters: 1 0 0 0 1 0 0 0 1 1 2 -3\n" +
		"FixedParameters: 0 0 0\n"
	if string(content) != want {
		t.Errorf("Expected container content:\n%s\ngot:\n%s", want, string(content))
	}
}

// TestReadITKContainer verifies parsing of a hand-written container,
// including the conversion from the stored LPS convention
func TestReadITKContainer(t *testing.T) {
	dir := createTempDir(t)
	defer os.RemoveAll(dir)

	path := writeTransformFile(t, dir, "translation.tfm",
		"#Insight Transform File V1.0\n"+
			"#Transform 0\n"+
			"Transform: AffineTransform_double_3_3\n"+
			"Parameters: 1 0 0 0 1 0 0 0 1 1 2 -3\n"+
			"FixedParameters: 0 0 0\n")
	got, err := ReadITK(path)
	if err != nil {
		t.Fatalf("Failed to read container: %v", err)
	}
	if !got.EqualApprox(NewTranslation(1, 2, 3), tol) {
		t.Errorf("Expected translation (1, 2, 3), got %v", got)
	}
}

// TestReadITKMatrixOffsetType verifies the MatrixOffsetTransformBase type
// name is accepted as well
func TestReadITKMatrixOffsetType(t *testing.T) {
	dir := createTempDir(t)
	defer os.RemoveAll(dir)

	path := writeTransformFile(t, dir, "offset.tfm",
		"#Insight Transform File V1.0\n"+
			"#Transform 0\n"+
			"Transform: MatrixOffsetTransformBase_double_3_3\n"+
			"Parameters: 1 0 0 0 1 0 0 0 1 0 0 0\n"+
			"FixedParameters: 0 0 0\n")
	got, err := ReadITK(path)
	if err != nil {
		t.Fatalf("Failed to read container: %v", err)
	}
	if !got.EqualApprox(Identity(), tol) {
		t.Errorf("Expected identity, got %v", got)
	}
}

// TestReadITKRejectsOtherTypes verifies non-affine transform types are
// rejected
func TestReadITKRejectsOtherTypes(t *testing.T) {
	dir := createTempDir(t)
	defer os.RemoveAll(dir)

	path := writeTransformFile(t, dir, "euler.tfm",
		"#Insight Transform File V1.0\n"+
			"#Transform 0\n"+
			"Transform: Euler3DTransform_double_3_3\n"+
			"Parameters: 0 0 0 0 0 0\n"+
			"FixedParameters: 0 0 0\n")
	if _, err := ReadITK(path); err == nil {
		t.Error("Expected an error for a non-affine transform type")
	}
}

// TestReadITKParameterCount verifies a container with the wrong number of
// parameters is rejected
func TestReadITKParameterCount(t *testing.T) {
	dir := createTempDir(t)
	defer os.RemoveAll(dir)

	path := writeTransformFile(t, dir, "short.tfm",
		"#Insight Transform File V1.0\n"+
			"#Transform 0\n"+
			"Transform: AffineTransform_double_3_3\n"+
			"Parameters: 1 0 0 0 1 0\n"+
			"FixedParameters: 0 0 0\n")
	_, err := ReadITK(path)
	if err == nil {
		t.Fatal("Expected an error for a six-parameter container")
	}
	if !strings.Contains(err.Error(), "12") {
		t.Errorf("Expected error to name the expected parameter count, got %v", err)
	}
}

// TestHDF5Unsupported verifies the .h5 container variant is recognized but
// rejected with an explanation on both read and write
func TestHDF5Unsupported(t *testing.T) {
	dir := createTempDir(t)
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "transform.h5")

	_, readErr := ReadMatrix(path)
	writeErr := WriteMatrix(Identity(), path)

	for _, err := range []error{readErr, writeErr} {
		var formatErr *UnsupportedFormatError
		if !errors.As(err, &formatErr) {
			t.Errorf("Expected UnsupportedFormatError for .h5, got %v", err)
			continue
		}
		if formatErr.Reason == "" {
			t.Error("Expected the .h5 rejection to carry a reason")
		}
	}
}

// TestCrossFormatAgreement verifies that both formats store the same
// transform: writing to each and reading back must agree
func TestCrossFormatAgreement(t *testing.T) {
	dir := createTempDir(t)
	defer os.RemoveAll(dir)

	m := testMatrix()
	textPath := filepath.Join(dir, "transform.txt")
	itkPath := filepath.Join(dir, "transform.tfm")
	if err := WriteMatrix(m, textPath); err != nil {
		t.Fatalf("Failed to write text transform: %v", err)
	}
	if err := WriteMatrix(m, itkPath); err != nil {
		t.Fatalf("Failed to write ITK transform: %v", err)
	}

	fromText, err := ReadMatrix(textPath)
	if err != nil {
		t.Fatalf("Failed to read text transform: %v", err)
	}
	fromITK, err := ReadMatrix(itkPath)
	if err != nil {
		t.Fatalf("Failed to read ITK transform: %v", err)
	}

	if !fromText.EqualApprox(fromITK, tol) {
		t.Errorf("Expected both formats to agree, got %v and %v", fromText, fromITK)
	}
}

// TestWriteMatrixUnknownExtension verifies the writer rejects unknown
// extensions before touching the filesystem
func TestWriteMatrixUnknownExtension(t *testing.T) {
	err := WriteMatrix(Identity(), "transform.csv")
	var formatErr *UnsupportedFormatError
	if !errors.As(err, &formatErr) {
		t.Errorf("Expected UnsupportedFormatError, got %v", err)
	}
}
