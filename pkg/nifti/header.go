// Package nifti reads and writes NIfTI-1 volumes, the storage format the
// registration transforms apply to. It handles single-file .nii and .nii.gz
// images with the header and voxel data in the same file.
//
// Field layout follows the official definition of the nifti1 header,
// https://nifti.nimh.nih.gov/pub/dist/src/niftilib/nifti1.h
package nifti

import (
	"bytes"
	"encoding/binary"
	"fmt"

	log "github.com/sirupsen/logrus"
)

// Header defines the structure of the Nifti1 header.
//
// Type translation from the nifti1 C header to golang:
//
// C     Go
// -------------
// int   int32
// float float32
// short int16
// char  int8
type Header struct {
	SizeOfHdr          int32    // Must be 348
	UnusedDataType     [10]int8 // Unused
	UnusedDbName       [18]int8 // Unused
	UnusedExtents      int32    // Unused
	UnusedSessionError int16    // Unused
	UnusedRegular      int8     // Unused
	DimInfo            int8     // MRI slice ordering

	Dim           [8]int16   // Data array dimensions
	IntentP1      float32    // 1st intent parameter
	IntentP2      float32    // 2nd intent parameter
	IntentP3      float32    // 3rd intent parameter
	IntentCode    int16      // NIFTI_INTENT_* code
	DataType      int16      // Defines data type
	BitPix        int16      // Number bits/voxel
	SliceStart    int16      // First slice index
	PixDim        [8]float32 // Grid spacing
	VoxOffset     float32    // Offset into .nii file
	SclSlope      float32    // Data scaling: slope
	SclInter      float32    // Data scaling: offset
	SliceEnd      int16      // Last slice index
	SliceCode     int8       // Slice timing order
	XYZTUnits     int8       // Units of pixdim[1..4]
	CalMax        float32    // Max display intensity
	CalMin        float32    // Min display intensity
	SliceDuration float32    // Time for 1 slice
	TOffset       float32    // Time axis shift
	UnusedGlmax   int32      // Unused
	UnusedGlmin   int32      // Unused

	Descrip [80]int8 // Any text you like
	AuxFile [24]int8 // Auxiliary filename

	QFormCode int16 // NIFTI_XFORM_* code
	SFormCode int16 // NIFTI_XFORM_* code

	QuaternB float32 // Quaternion b param
	QuaternC float32 // Quaternion c param
	QuaternD float32 // Quaternion d param
	QOffsetX float32 // Quaternion x shift
	QOffsetY float32 // Quaternion y shift
	QOffsetZ float32 // Quaternion z shift

	SRowX [4]float32 // 1st row affine transform
	SRowY [4]float32 // 2nd row affine transform
	SRowZ [4]float32 // 3rd row affine transform

	IntentName [16]int8 // 'name' or meaning of data

	Magic [4]int8 // Must be "n+1\0"
}

const (
	headerSize    = 352 // header plus the 4-byte extension flag
	minHeaderSize = 348
)

// magicSingleFile is "n+1\0", data in the same file as the header.
var magicSingleFile = [4]int8{110, 43, 49, 0}

// Recognized NIFTI_TYPE_* datatype codes.
const (
	DTUint8   int16 = 2
	DTInt16   int16 = 4
	DTInt32   int16 = 8
	DTFloat32 int16 = 16
	DTFloat64 int16 = 64
	DTInt8    int16 = 256
	DTUint16  int16 = 512
)

// NIFTI_XFORM_* codes for the qform and sform fields.
const (
	XFormUnknown     int16 = 0
	XFormScannerAnat int16 = 1
	XFormAlignedAnat int16 = 2
	XFormTalairach   int16 = 3
	XFormMNI152      int16 = 4
)

// SFormMeanings maps sform codes to their anatomical meaning.
var SFormMeanings = map[int16]string{
	XFormUnknown:     "unknown (sform not defined)",
	XFormScannerAnat: "scanner (RAS+ in scanner coordinates)",
	XFormAlignedAnat: "aligned (RAS+ aligned to some other scan)",
	XFormTalairach:   "talairach (RAS+ in Talairach atlas space)",
	XFormMNI152:      "mni",
}

// ReadHeader decodes a header from the first 348 bytes of b, trying little
// endian first and falling back to big endian when Dim[0] decodes outside
// the legal [1, 7] range.
//
// See https://github.com/afni/afni/blob/master/src/nifti/niftilib/nifti1_io.c
func ReadHeader(b []byte) (Header, binary.ByteOrder, error) {
	if len(b) < minHeaderSize {
		return Header{}, nil, fmt.Errorf("file of %d bytes is shorter than the %d byte header", len(b), minHeaderSize)
	}

	h := Header{}
	var order binary.ByteOrder = binary.LittleEndian
	if err := binary.Read(bytes.NewReader(b), order, &h); err != nil {
		return Header{}, nil, err
	}

	if h.Dim[0] <= 0 || h.Dim[0] > 7 {
		h = Header{}
		order = binary.BigEndian
		if err := binary.Read(bytes.NewReader(b), order, &h); err != nil {
			return Header{}, nil, err
		}
	}
	if h.Dim[0] <= 0 || h.Dim[0] > 7 {
		return Header{}, nil, fmt.Errorf("cannot infer byte order: Dim[0] not in range [1, 7] under either order")
	}

	if err := h.validate(); err != nil {
		return Header{}, nil, err
	}

	log.WithFields(log.Fields{
		"byteOrder": order,
	}).Debug("Found byte order")

	return h, order, nil
}

// validate checks the invariants every single-file nifti1 header satisfies.
func (h *Header) validate() error {
	switch {
	case h.SizeOfHdr != minHeaderSize:
		return fmt.Errorf("invalid header size %d, must be %d", h.SizeOfHdr, minHeaderSize)
	case h.Magic != magicSingleFile:
		return fmt.Errorf("invalid file magic, data must be stored in the same file as the header")
	case h.DataType == 0:
		return fmt.Errorf("header carries no datatype")
	}
	return nil
}

// Shape returns the grid dimensions (nx, ny, nz, nt), padding missing
// dimensions with 1.
func (h *Header) Shape() [4]int {
	shape := [4]int{1, 1, 1, 1}
	for i := 0; i < int(h.Dim[0]) && i < 4; i++ {
		if h.Dim[i+1] > 0 {
			shape[i] = int(h.Dim[i+1])
		}
	}
	return shape
}

// Spacing returns the voxel size along x, y and z.
func (h *Header) Spacing() [3]float64 {
	return [3]float64{
		float64(h.PixDim[1]),
		float64(h.PixDim[2]),
		float64(h.PixDim[3]),
	}
}

// bytesPerVoxel maps the datatype to its storage width.
func (h *Header) bytesPerVoxel() (int, error) {
	switch h.DataType {
	case DTUint8, DTInt8:
		return 1, nil
	case DTInt16, DTUint16:
		return 2, nil
	case DTInt32, DTFloat32:
		return 4, nil
	case DTFloat64:
		return 8, nil
	}
	return 0, fmt.Errorf("unsupported datatype code %d", h.DataType)
}
