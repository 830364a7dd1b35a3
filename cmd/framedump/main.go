package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"imtools/pkg/config"
	"imtools/pkg/console"
	"imtools/pkg/imgproc"
	"imtools/pkg/timeutil"
	"imtools/pkg/video"
)

func main() {
	// Parse command line arguments
	videoPath := flag.String("video", "", "Video file to extract frames from")
	outputDir := flag.String("output", "frames", "Directory for the extracted frames")
	configPath := flag.String("config", "", "YAML configuration file")
	fps := flag.Float64("fps", 0, "Extraction frame rate (0 keeps the configured or source rate)")
	start := flag.Float64("start", 0, "Start position in seconds")
	duration := flag.Float64("duration", 0, "Extracted span in seconds (0 extracts to the end)")
	quality := flag.Int("quality", 0, "JPEG quality as ffmpeg -qscale:v (0 keeps the configured value)")
	overlay := flag.Bool("overlay", false, "Also render a copy of the video with frame number and timestamp overlays")
	subtitles := flag.String("subtitles", "", "Subtitle file burned into the overlay copy")
	meanSubtract := flag.Bool("mean-subtract", false, "Replace every frame with its absolute difference against the mean frame")
	enhance := flag.Bool("enhance", false, "Stretch the value channel contrast of every frame")
	toVideo := flag.Bool("to-video", false, "Reassemble the processed frames into a video")
	flag.Parse()

	// Validate inputs
	if *videoPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.Output.Verbose {
		log.SetLevel(log.DebugLevel)
	}
	if *fps > 0 {
		cfg.Extraction.OutputFPS = *fps
	}
	if *quality > 0 {
		cfg.Extraction.JPEGQuality = *quality
	}

	ctx := context.Background()
	startTime := time.Now()

	v, err := video.OpenWith(ctx, cfg.FFmpeg.ProbeBinary, *videoPath)
	if err != nil {
		log.Fatalf("Failed to open video: %v", err)
	}
	fmt.Printf("%s: %dx%d, %.3f fps, %.2f s, %d frames\n",
		filepath.Base(v.Path), v.Width, v.Height, v.FPS, v.Duration, v.NumFrames)

	extractor := video.NewExtractor(v)
	extractor.Binary = cfg.FFmpeg.Binary
	extractor.Quality = cfg.Extraction.JPEGQuality
	extractor.Overwrite = cfg.Extraction.Overwrite
	extractor.RoundPosition = cfg.Extraction.RoundPosition
	if cfg.Extraction.OutputFPS > 0 {
		extractor.OutputFPS = cfg.Extraction.OutputFPS
	}

	stem := strings.TrimSuffix(filepath.Base(*videoPath), filepath.Ext(*videoPath))

	fmt.Printf("Extracting frames to %s at %s fps...\n", *outputDir, formatRate(extractor.OutputFPS))
	opts := video.WriteOptions{Position: *start, Duration: *duration}
	if err := extractor.WriteSequence(ctx, *outputDir, opts); err != nil {
		log.Fatalf("Failed to extract frames: %v", err)
	}

	if *overlay {
		overlayPath := filepath.Join(*outputDir, stem+"_overlay.mp4")
		fmt.Printf("Rendering overlay copy to %s...\n", overlayPath)
		err := extractor.Overlay(ctx, overlayPath, video.OverlayOptions{
			DrawFrameNumber: true,
			DrawTimestamp:   true,
			SubtitlesPath:   *subtitles,
		})
		if err != nil {
			log.Fatalf("Failed to render overlay video: %v", err)
		}
	}

	if *meanSubtract {
		fmt.Println("Subtracting the mean frame...")
		if err := imgproc.SubtractMean(*outputDir, "", "", nil); err != nil {
			log.Fatalf("Failed to subtract mean frame: %v", err)
		}
	}

	if *enhance {
		fmt.Println("Stretching frame contrast...")
		if err := imgproc.Enhance(*outputDir, "", ""); err != nil {
			log.Fatalf("Failed to enhance frames: %v", err)
		}
	}

	if *toVideo {
		rebuiltPath := filepath.Join(*outputDir, stem+"_rebuilt.mp4")
		fmt.Printf("Reassembling frames into %s...\n", rebuiltPath)
		err := video.FramesToVideo(ctx, cfg.FFmpeg.Binary, *outputDir, rebuiltPath, extractor.OutputFPS, "*.jpg")
		if err != nil {
			log.Fatalf("Failed to reassemble video: %v", err)
		}
	}

	elapsed := timeutil.TruncateDuration(time.Since(startTime))
	console.PrintBold(fmt.Sprintf("Completed in %s", elapsed), console.Green)
}

// formatRate trims trailing zeros so whole rates print without a decimal
// point.
func formatRate(fps float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.3f", fps), "0"), ".")
}
