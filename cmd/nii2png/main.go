package main

import (
	"bufio"
	"flag"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gonum.org/v1/gonum/floats"

	"imtools/pkg/imgproc"
	"imtools/pkg/nifti"
)

func main() {
	// Parse command line arguments
	filePath := flag.String("file", "", "Volume to convert (.nii or .nii.gz)")
	outDir := flag.String("out", "png", "Directory for the slice images")
	scale := flag.Int("scale", 1, "Integer upscaling factor for the slice images")
	flag.Parse()

	// Validate inputs
	if *filePath == "" {
		flag.Usage()
		os.Exit(1)
	}

	img, err := nifti.Load(*filePath)
	if err != nil {
		log.Fatalf("Failed to load image: %v", err)
	}

	shape := img.Shape()
	spacing := img.Header.Spacing()
	fmt.Printf("%s: %dx%dx%d voxels, %d volume(s)\n",
		filepath.Base(*filePath), shape[0], shape[1], shape[2], shape[3])
	fmt.Printf("Spacing: %g x %g x %g mm, voxel volume %g mm3\n",
		spacing[0], spacing[1], spacing[2], img.Header.VoxelVolume())
	fmt.Printf("Sform: %s\n", nifti.SFormMeaning(img.Header.SFormCode))
	fmt.Printf("Affine (voxel to world):\n%v\n", img.Affine)

	if err := os.MkdirAll(*outDir, 0755); err != nil {
		log.Fatalf("Failed to create output directory: %v", err)
	}

	stem := imageStem(*filePath)
	for t := 0; t < img.Nt; t++ {
		for z := 0; z < img.Nz; z++ {
			slicePath := filepath.Join(*outDir, fmt.Sprintf("%s.z%06d_t%06d.png", stem, z, t))
			if err := writeSlicePNG(img, z, t, *scale, slicePath); err != nil {
				log.Fatalf("Failed to write %s: %v", slicePath, err)
			}
		}
	}
	fmt.Printf("Wrote %d slice image(s) to %s\n", img.Nz*img.Nt, *outDir)
}

// imageStem strips the volume extension from the file name.
func imageStem(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, ".gz")
	return strings.TrimSuffix(base, ".nii")
}

// writeSlicePNG windows one slice to the full 16 bit gray range and writes
// it as a PNG, upscaled when scale is above one. Negative intensities clamp
// to black, the slice maximum maps to white.
func writeSlicePNG(img *nifti.Image, z, t, scale int, path string) error {
	plane := img.Slice(z, t)
	for i, v := range plane {
		if v < 0 {
			plane[i] = 0
		}
	}
	top := floats.Max(plane)

	gray := image.NewGray16(image.Rect(0, 0, img.Nx, img.Ny))
	for y := 0; y < img.Ny; y++ {
		for x := 0; x < img.Nx; x++ {
			var level uint16
			if top > 0 {
				level = uint16(float64(math.MaxUint16) * plane[x+img.Nx*y] / top)
			}
			gray.SetGray16(x, y, color.Gray16{Y: level})
		}
	}

	var out image.Image = gray
	if scale > 1 {
		out = imgproc.Resize(gray, img.Nx*scale, img.Ny*scale)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	if err := png.Encode(w, out); err != nil {
		f.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
