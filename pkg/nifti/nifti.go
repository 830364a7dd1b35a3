package nifti

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"

	"imtools/pkg/affine"
	"imtools/pkg/fsutil"
)

// Recognized image extensions.
const (
	ExtNIfTI   = ".nii"
	ExtNIfTIGz = ".nii.gz"
)

// NotFoundError reports an image path that does not exist on disk.
type NotFoundError struct {
	Path string
	Err  error
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("the image %s does not exist", e.Path)
}

func (e *NotFoundError) Unwrap() error { return e.Err }

// UnsupportedFormatError reports a path whose extension is not a recognized
// image extension.
type UnsupportedFormatError struct {
	Path string
	Ext  string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("image extension must be %s or %s, not %q", ExtNIfTI, ExtNIfTIGz, e.Ext)
}

// Image is a loaded NIfTI-1 volume.
type Image struct {
	// Header is the decoded on-disk header. Save rewrites the geometry
	// fields from the image state, so edits to those are ignored.
	Header Header

	// ByteOrder is the byte order the file was stored in.
	ByteOrder binary.ByteOrder

	// Data holds the voxel values in x-fastest order, already scaled by
	// the header slope and intercept.
	Data []float64

	// Nx, Ny, Nz and Nt are the grid dimensions.
	Nx, Ny, Nz, Nt int

	// Affine maps voxel indices to world coordinates in the RAS
	// convention.
	Affine affine.Matrix
}

// New builds an image around existing voxel data in x-fastest order.
func New(data []float64, nx, ny, nz, nt int, aff affine.Matrix) (*Image, error) {
	if nt < 1 {
		nt = 1
	}
	if nx < 1 || ny < 1 || nz < 1 {
		return nil, fmt.Errorf("invalid image dimensions %dx%dx%d", nx, ny, nz)
	}
	if len(data) != nx*ny*nz*nt {
		return nil, fmt.Errorf("data length %d does not match dimensions %dx%dx%dx%d",
			len(data), nx, ny, nz, nt)
	}
	return &Image{
		ByteOrder: binary.LittleEndian,
		Data:      data,
		Nx:        nx,
		Ny:        ny,
		Nz:        nz,
		Nt:        nt,
		Affine:    aff,
	}, nil
}

// Shape returns the grid dimensions (nx, ny, nz, nt).
func (img *Image) Shape() [4]int {
	return [4]int{img.Nx, img.Ny, img.Nz, img.Nt}
}

// At returns the voxel value at (x, y, z) in volume t.
func (img *Image) At(x, y, z, t int) float64 {
	return img.Data[x+img.Nx*(y+img.Ny*(z+img.Nz*t))]
}

// Slice copies the xy plane at depth z of volume t.
func (img *Image) Slice(z, t int) []float64 {
	n := img.Nx * img.Ny
	start := n * (z + img.Nz*t)
	return append([]float64(nil), img.Data[start:start+n]...)
}

// VoxelVolume returns the physical volume of one voxel.
func (h *Header) VoxelVolume() float64 {
	s := h.Spacing()
	return floats.Prod(s[:])
}

// SFormMeaning describes an sform code for log and console output.
func SFormMeaning(code int16) string {
	if meaning, ok := SFormMeanings[code]; ok {
		return meaning
	}
	return fmt.Sprintf("invalid code %d", code)
}

// imageExt returns the compound extension of path, keeping ".nii.gz"
// together.
func imageExt(path string) string {
	lower := strings.ToLower(filepath.Base(path))
	if strings.HasSuffix(lower, ExtNIfTIGz) {
		return ExtNIfTIGz
	}
	return filepath.Ext(lower)
}

func checkExt(path string) error {
	if ext := imageExt(path); ext != ExtNIfTI && ext != ExtNIfTIGz {
		return &UnsupportedFormatError{Path: path, Ext: ext}
	}
	return nil
}

// Load reads a .nii or .nii.gz volume. Compression is detected from the
// content, so a misnamed gzip file still loads.
func Load(path string) (*Image, error) {
	if err := checkExt(path); err != nil {
		return nil, err
	}
	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &NotFoundError{Path: path, Err: err}
		}
		return nil, err
	}

	// This function uses at most 512 bytes.
	mime := http.DetectContentType(content)
	if mime == "application/x-gzip" {
		log.WithFields(log.Fields{
			"decompression": "gzip",
		}).Debug("Decompressing ...")
		if content, err = inflateGzip(content); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}

	h, order, err := ReadHeader(content)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if h.SFormCode == XFormAlignedAnat {
		log.WithFields(log.Fields{
			"image":     filepath.Base(path),
			"sformCode": h.SFormCode,
		}).Warnf("Image has sform code %d: %s", h.SFormCode, SFormMeaning(h.SFormCode))
	}

	nbyper, err := h.bytesPerVoxel()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	shape := h.Shape()
	nvox := shape[0] * shape[1] * shape[2] * shape[3]

	offset := int(h.VoxOffset)
	if offset < headerSize {
		offset = headerSize
	}
	if len(content) < offset+nvox*nbyper {
		return nil, fmt.Errorf("%s: file holds %d bytes, %d needed for %d voxels",
			path, len(content), offset+nvox*nbyper, nvox)
	}

	data, err := decodeVoxels(content[offset:offset+nvox*nbyper], h.DataType, order, nvox)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	// Slope zero means no scaling was recorded.
	if h.SclSlope != 0 && (h.SclSlope != 1 || h.SclInter != 0) {
		floats.Scale(float64(h.SclSlope), data)
		floats.AddConst(float64(h.SclInter), data)
	}

	return &Image{
		Header:    h,
		ByteOrder: order,
		Data:      data,
		Nx:        shape[0],
		Ny:        shape[1],
		Nz:        shape[2],
		Nt:        shape[3],
		Affine:    h.Affine(),
	}, nil
}

// decodeVoxels converts the raw voxel bytes to float64 values.
func decodeVoxels(raw []byte, datatype int16, order binary.ByteOrder, nvox int) ([]float64, error) {
	data := make([]float64, nvox)
	switch datatype {
	case DTUint8:
		for i := 0; i < nvox; i++ {
			data[i] = float64(raw[i])
		}
	case DTInt8:
		for i := 0; i < nvox; i++ {
			data[i] = float64(int8(raw[i]))
		}
	case DTInt16:
		for i := 0; i < nvox; i++ {
			data[i] = float64(int16(order.Uint16(raw[2*i:])))
		}
	case DTUint16:
		for i := 0; i < nvox; i++ {
			data[i] = float64(order.Uint16(raw[2*i:]))
		}
	case DTInt32:
		for i := 0; i < nvox; i++ {
			data[i] = float64(int32(order.Uint32(raw[4*i:])))
		}
	case DTFloat32:
		for i := 0; i < nvox; i++ {
			data[i] = float64(math.Float32frombits(order.Uint32(raw[4*i:])))
		}
	case DTFloat64:
		for i := 0; i < nvox; i++ {
			data[i] = math.Float64frombits(order.Uint64(raw[8*i:]))
		}
	default:
		return nil, fmt.Errorf("unsupported datatype code %d", datatype)
	}
	return data, nil
}

// Save writes the volume as float32 voxels in little endian order. The
// rotation, translation and scaling are encoded in the qform: the qform
// code is set to 1 (scanner) and the sform code to 0, the way ITK writes
// images, because a loss-free sform cannot be guaranteed after resampling.
func Save(img *Image, path string) error {
	if err := checkExt(path); err != nil {
		return err
	}
	if err := fsutil.EnsureDir(path); err != nil {
		return err
	}

	h := buildHeader(img)

	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, h); err != nil {
		return err
	}
	// Four zero bytes mark the absence of header extensions.
	buf.Write([]byte{0, 0, 0, 0})

	voxels := make([]float32, len(img.Data))
	for i, v := range img.Data {
		voxels[i] = float32(v)
	}
	if err := binary.Write(&buf, binary.LittleEndian, voxels); err != nil {
		return err
	}

	content := buf.Bytes()
	if imageExt(path) == ExtNIfTIGz {
		var err error
		if content, err = deflateGzip(content); err != nil {
			return err
		}
	}
	return os.WriteFile(path, content, 0644)
}

// buildHeader derives the on-disk header from the image state, keeping the
// descriptive fields of the original header when the image was loaded.
func buildHeader(img *Image) Header {
	h := img.Header
	h.SizeOfHdr = minHeaderSize
	h.Magic = magicSingleFile

	ndim := int16(3)
	if img.Nt > 1 {
		ndim = 4
	}
	h.Dim = [8]int16{ndim, int16(img.Nx), int16(img.Ny), int16(img.Nz), int16(img.Nt), 1, 1, 1}

	h.DataType = DTFloat32
	h.BitPix = 32
	h.VoxOffset = headerSize
	h.SclSlope = 1
	h.SclInter = 0

	q := quaternFromMatrix(img.Affine)
	h.PixDim = [8]float32{
		float32(q.qfac),
		float32(q.dx), float32(q.dy), float32(q.dz),
		h.PixDim[4], h.PixDim[5], h.PixDim[6], h.PixDim[7],
	}
	h.QFormCode = XFormScannerAnat
	h.SFormCode = XFormUnknown
	h.QuaternB = float32(q.b)
	h.QuaternC = float32(q.c)
	h.QuaternD = float32(q.d)
	h.QOffsetX = float32(q.ox)
	h.QOffsetY = float32(q.oy)
	h.QOffsetZ = float32(q.oz)

	for j := 0; j < 4; j++ {
		h.SRowX[j] = float32(img.Affine.At(0, j))
		h.SRowY[j] = float32(img.Affine.At(1, j))
		h.SRowZ[j] = float32(img.Affine.At(2, j))
	}
	return h
}

// inflateGzip inflates a gzip compressed array of bytes.
func inflateGzip(b []byte) ([]byte, error) {
	g, err := gzip.NewReader(bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	defer g.Close()
	return io.ReadAll(g)
}

// deflateGzip compresses an array of bytes.
func deflateGzip(b []byte) ([]byte, error) {
	var buf bytes.Buffer
	g := gzip.NewWriter(&buf)
	if _, err := g.Write(b); err != nil {
		return nil, err
	}
	if err := g.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
