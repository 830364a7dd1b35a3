// Package imgproc post-processes extracted frame directories: mean-frame
// computation, background subtraction and contrast enhancement.
package imgproc

import (
	"image"
	"image/jpeg"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/image/draw"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"imtools/pkg/fsutil"
)

// defaultPattern selects the files ffmpeg extraction produces.
const defaultPattern = "*.jpg"

// FloatImage is an RGB image with float64 channels on the 0-255 scale. It
// is the accumulator type for frame averaging, where 8 bits would clip.
type FloatImage struct {
	Width  int
	Height int

	// Pix holds interleaved RGB samples, Width*Height*3 values.
	Pix []float64
}

// NewFloatImage returns a zeroed image of the given size.
func NewFloatImage(width, height int) *FloatImage {
	return &FloatImage{
		Width:  width,
		Height: height,
		Pix:    make([]float64, width*height*3),
	}
}

// FromImage converts any image to its float representation.
func FromImage(img image.Image) *FloatImage {
	bounds := img.Bounds()
	f := NewFloatImage(bounds.Dx(), bounds.Dy())
	i := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			f.Pix[i] = float64(r >> 8)
			f.Pix[i+1] = float64(g >> 8)
			f.Pix[i+2] = float64(b >> 8)
			i += 3
		}
	}
	return f
}

// ToImage rounds the float samples back to an 8-bit image, clamping values
// outside the displayable range.
func (f *FloatImage) ToImage() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	for p := 0; p < f.Width*f.Height; p++ {
		for c := 0; c < 3; c++ {
			img.Pix[4*p+c] = clampByte(f.Pix[3*p+c])
		}
		img.Pix[4*p+3] = 0xff
	}
	return img
}

func clampByte(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v + 0.5)
}

// MeanFrame averages every frame in dir matching pattern. An empty pattern
// means "*.jpg". All frames must share the same dimensions.
func MeanFrame(dir, pattern string) (*FloatImage, error) {
	if pattern == "" {
		pattern = defaultPattern
	}
	paths, err := fsutil.SortedGlob(dir, pattern)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, errors.Errorf("no frames matching %s in %s", pattern, dir)
	}

	var sum *FloatImage
	for _, path := range paths {
		img, err := loadImage(path)
		if err != nil {
			return nil, err
		}
		f := FromImage(img)
		if sum == nil {
			sum = NewFloatImage(f.Width, f.Height)
		}
		if f.Width != sum.Width || f.Height != sum.Height {
			return nil, errors.Errorf("frame %s is %dx%d, expected %dx%d",
				path, f.Width, f.Height, sum.Width, sum.Height)
		}
		floats.Add(sum.Pix, f.Pix)
	}
	floats.Scale(1/float64(len(paths)), sum.Pix)
	return sum, nil
}

// SubtractMean writes the absolute difference against the mean frame for
// every frame in inputDir. A nil mean is computed from inputDir first; an
// empty outputDir overwrites the frames in place.
func SubtractMean(inputDir, outputDir, pattern string, mean *FloatImage) error {
	if pattern == "" {
		pattern = defaultPattern
	}
	if outputDir == "" {
		outputDir = inputDir
	}
	if mean == nil {
		var err error
		if mean, err = MeanFrame(inputDir, pattern); err != nil {
			return err
		}
	}
	if err := fsutil.EnsureDir(outputDir); err != nil {
		return err
	}

	paths, err := fsutil.SortedGlob(inputDir, pattern)
	if err != nil {
		return err
	}
	for _, src := range paths {
		img, err := loadImage(src)
		if err != nil {
			return err
		}
		f := FromImage(img)
		if f.Width != mean.Width || f.Height != mean.Height {
			return errors.Errorf("frame %s is %dx%d, expected %dx%d",
				src, f.Width, f.Height, mean.Width, mean.Height)
		}
		for i := range f.Pix {
			f.Pix[i] = math.Abs(mean.Pix[i] - f.Pix[i])
		}
		dst := filepath.Join(outputDir, filepath.Base(src))
		if err := saveImage(f.ToImage(), dst); err != nil {
			return err
		}
	}
	return nil
}

// Enhance stretches the value channel of every frame between its 1st and
// 99th percentiles, lifting the contrast of dim footage. An empty outputDir
// overwrites the frames in place.
func Enhance(inputDir, outputDir, pattern string) error {
	if pattern == "" {
		pattern = defaultPattern
	}
	if outputDir == "" {
		outputDir = inputDir
	}
	if err := fsutil.EnsureDir(outputDir); err != nil {
		return err
	}

	paths, err := fsutil.SortedGlob(inputDir, pattern)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return errors.Errorf("no frames matching %s in %s", pattern, inputDir)
	}
	for _, src := range paths {
		img, err := loadImage(src)
		if err != nil {
			return err
		}
		dst := filepath.Join(outputDir, filepath.Base(src))
		if err := saveImage(enhanceImage(FromImage(img)), dst); err != nil {
			return err
		}
	}
	return nil
}

// enhanceImage rescales the HSV value channel between its 1st and 99th
// percentiles.
func enhanceImage(f *FloatImage) *image.RGBA {
	n := f.Width * f.Height
	h := make([]float64, n)
	s := make([]float64, n)
	v := make([]float64, n)
	for p := 0; p < n; p++ {
		h[p], s[p], v[p] = rgbToHSV(
			f.Pix[3*p]/255, f.Pix[3*p+1]/255, f.Pix[3*p+2]/255)
	}

	sorted := append([]float64(nil), v...)
	sort.Float64s(sorted)
	p1 := stat.Quantile(0.01, stat.LinInterp, sorted, nil)
	p99 := stat.Quantile(0.99, stat.LinInterp, sorted, nil)

	// A flat channel has nothing to stretch.
	if p99-p1 > 1e-9 {
		for p := 0; p < n; p++ {
			v[p] = clampUnit((v[p] - p1) / (p99 - p1))
		}
	}

	img := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	for p := 0; p < n; p++ {
		r, g, b := hsvToRGB(h[p], s[p], v[p])
		img.Pix[4*p] = clampByte(r * 255)
		img.Pix[4*p+1] = clampByte(g * 255)
		img.Pix[4*p+2] = clampByte(b * 255)
		img.Pix[4*p+3] = 0xff
	}
	return img
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// rgbToHSV converts one pixel from RGB to HSV, every channel in [0, 1].
func rgbToHSV(r, g, b float64) (h, s, v float64) {
	max := math.Max(r, math.Max(g, b))
	min := math.Min(r, math.Min(g, b))
	v = max
	d := max - min
	if max > 0 {
		s = d / max
	}
	if d == 0 {
		return 0, s, v
	}
	switch max {
	case r:
		h = math.Mod((g-b)/d, 6) / 6
	case g:
		h = ((b-r)/d + 2) / 6
	default:
		h = ((r-g)/d + 4) / 6
	}
	if h < 0 {
		h++
	}
	return h, s, v
}

// hsvToRGB is the inverse of rgbToHSV.
func hsvToRGB(h, s, v float64) (r, g, b float64) {
	i := int(math.Floor(h*6)) % 6
	f := h*6 - math.Floor(h*6)
	p := v * (1 - s)
	q := v * (1 - f*s)
	t := v * (1 - (1-f)*s)
	switch i {
	case 0:
		return v, t, p
	case 1:
		return q, v, p
	case 2:
		return p, v, t
	case 3:
		return p, q, v
	case 4:
		return t, p, v
	default:
		return v, p, q
	}
}

// Resize scales img to width x height with Catmull-Rom resampling.
func Resize(img image.Image, width, height int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}

// loadImage decodes a frame in any registered format.
func loadImage(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, errors.Wrapf(err, "decoding %s", path)
	}
	return img, nil
}

// saveImage encodes PNG for .png paths and JPEG for everything else.
func saveImage(img image.Image, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	if strings.ToLower(filepath.Ext(path)) == ".png" {
		return png.Encode(file, img)
	}
	return jpeg.Encode(file, img, &jpeg.Options{Quality: 90})
}
