// Command detect runs one local image or video through the configured
// detection backend and prints the resulting findings.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/umarkhanovv/roadwatch/internal/app"
	"github.com/umarkhanovv/roadwatch/internal/config"
	"github.com/umarkhanovv/roadwatch/internal/detection"
	"github.com/umarkhanovv/roadwatch/internal/inference"
	"github.com/umarkhanovv/roadwatch/internal/logging"
	"github.com/umarkhanovv/roadwatch/internal/models"
	"github.com/umarkhanovv/roadwatch/internal/video"
)

func main() {
	defaultMedia := os.Getenv("MEDIA")
	mediaPath := flag.String("media", defaultMedia, "path to a local image or video file")
	cfg := config.Load()

	if *mediaPath == "" {
		fmt.Fprintln(os.Stderr, "media path is required (pass -media or MEDIA env var)")
		os.Exit(1)
	}

	kind, ok := models.MediaKindForExtension(strings.ToLower(filepath.Ext(*mediaPath)))
	if !ok {
		fmt.Fprintf(os.Stderr, "unsupported file type (allowed: %s)\n", strings.Join(models.AllowedExtensions(), ", "))
		os.Exit(1)
	}

	logger := logging.NewWithWriter(logging.ParseLevel(cfg.Logging.Level), "text", os.Stderr)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	detector := app.NewDetector(ctx, cfg.Detection, logger)
	adapter := detection.NewAdapter(detector, cfg.Detection.ConfidenceThreshold, cfg.Detection.Timeout, logger)
	orchestrator := inference.NewOrchestrator(
		adapter,
		video.NewFFmpeg(cfg.Video.FFprobePath, cfg.Video.FFmpegPath),
		inference.Config{SamplesPerSecond: cfg.Video.SamplesPerSecond, MaxFrames: cfg.Video.MaxFrames},
		logger,
	)

	findings := orchestrator.Analyze(ctx, *mediaPath, kind)

	fmt.Printf("Backend: %s\n", detector.Name())
	fmt.Printf("Kind: %s\n", kind)
	fmt.Printf("Findings: %d\n", len(findings))
	for _, f := range findings {
		if f.BBox != nil {
			fmt.Printf("  - %s: %.3f [%.1f %.1f %.1f %.1f]\n", f.DefectType, f.Confidence, f.BBox[0], f.BBox[1], f.BBox[2], f.BBox[3])
		} else {
			fmt.Printf("  - %s: %.3f\n", f.DefectType, f.Confidence)
		}
	}
}
