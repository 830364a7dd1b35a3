package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"imtools/pkg/affine"
	"imtools/pkg/console"
)

func main() {
	// Parse command line arguments
	inputPath := flag.String("input", "", "Transform file to read (.txt or .tfm)")
	outputPath := flag.String("output", "", "Transform file to write (.txt or .tfm)")
	invert := flag.Bool("invert", false, "Invert the transform")
	composePath := flag.String("compose", "", "Second transform to compose with")
	order := flag.String("order", "right", "Composition order: right (second transform applies first) or left (second transform applies last)")
	printMatrix := flag.Bool("print", false, "Print the resulting matrix")
	flag.Parse()

	// Validate inputs
	if *inputPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	m, err := affine.ReadMatrix(*inputPath)
	if err != nil {
		log.Fatalf("Failed to read transform: %v", err)
	}

	if *composePath != "" {
		other, err := affine.ReadMatrix(*composePath)
		if err != nil {
			log.Fatalf("Failed to read composing transform: %v", err)
		}
		switch *order {
		case "right":
			m = m.RightMul(other)
		case "left":
			m = m.LeftMul(other)
		default:
			log.Fatalf("Unknown composition order %q, use right or left", *order)
		}
	}

	if *invert {
		if m, err = m.Inverse(); err != nil {
			log.Fatalf("Failed to invert transform: %v", err)
		}
	}

	if *printMatrix || *outputPath == "" {
		fmt.Println(m)
	}

	if *outputPath != "" {
		if err := affine.WriteMatrix(m, *outputPath); err != nil {
			console.PrintBold("Failed to write transform: "+err.Error(), console.Red)
			os.Exit(1)
		}
		console.PrintBold("Transform written to "+*outputPath, console.Green)
	}
}
