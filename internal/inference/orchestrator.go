// Package inference routes a stored upload to image or video analysis and
// merges the per-frame findings.
package inference

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/umarkhanovv/roadwatch/internal/detection"
	"github.com/umarkhanovv/roadwatch/internal/logging"
	"github.com/umarkhanovv/roadwatch/internal/models"
	"github.com/umarkhanovv/roadwatch/internal/video"
)

// Config controls video sampling.
type Config struct {
	SamplesPerSecond float64
	MaxFrames        int
	// TempDir is the parent for per-report frame directories; empty uses os.TempDir.
	TempDir string
}

// Orchestrator runs the detection adapter over an image or a sampled video.
type Orchestrator struct {
	adapter *detection.Adapter
	decoder video.Decoder
	cfg     Config
	logger  *logging.Logger
}

// NewOrchestrator creates an orchestrator. A nil decoder treats every video
// as unreadable, which yields the placeholder result.
func NewOrchestrator(adapter *detection.Adapter, decoder video.Decoder, cfg Config, logger *logging.Logger) *Orchestrator {
	if cfg.SamplesPerSecond <= 0 {
		cfg.SamplesPerSecond = video.DefaultSamplesPerSecond
	}
	if cfg.MaxFrames <= 0 {
		cfg.MaxFrames = video.DefaultMaxFrames
	}
	return &Orchestrator{
		adapter: adapter,
		decoder: decoder,
		cfg:     cfg,
		logger:  logger,
	}
}

// Analyze returns the findings for the file at path. It never fails: any
// error on the way is logged and replaced by the placeholder output for the
// original file.
func (o *Orchestrator) Analyze(ctx context.Context, path string, kind models.MediaKind) []models.Finding {
	var (
		findings []models.Finding
		err      error
	)

	switch kind {
	case models.MediaKindVideo:
		findings, err = o.analyzeVideo(ctx, path)
		if errors.Is(err, video.ErrNotVideo) {
			o.warn("Video has no readable frames, analyzing as image", path, err)
			findings, err = o.analyzeImage(ctx, path)
		}
	default:
		findings, err = o.analyzeImage(ctx, path)
	}

	if err != nil {
		o.warn("Inference failed, using placeholder", path, err)
		return o.adapter.Fallback(path)
	}
	return findings
}

func (o *Orchestrator) analyzeImage(ctx context.Context, path string) ([]models.Finding, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	return o.adapter.Detect(ctx, data)
}

func (o *Orchestrator) analyzeVideo(ctx context.Context, path string) ([]models.Finding, error) {
	if o.decoder == nil {
		return nil, fmt.Errorf("no video decoder configured")
	}

	info, err := o.decoder.Probe(ctx, path)
	if err != nil {
		return nil, err
	}

	indices, err := video.SampleIndices(info.FrameCount, info.FPS, o.cfg.SamplesPerSecond, o.cfg.MaxFrames)
	if err != nil {
		return nil, err
	}

	frameDir, err := os.MkdirTemp(o.cfg.TempDir, "frames-")
	if err != nil {
		return nil, fmt.Errorf("create frame dir: %w", err)
	}
	defer os.RemoveAll(frameDir)

	var (
		merged    []models.Finding
		succeeded int
	)
	for _, idx := range indices {
		frame, err := o.decoder.ExtractFrame(ctx, path, idx, info.FPS, frameDir)
		if err != nil {
			o.frameWarn("Failed to extract frame", path, idx, err)
			continue
		}

		found, err := o.adapter.Detect(ctx, frame)
		if err != nil {
			o.frameWarn("Frame detection failed, skipping", path, idx, err)
			continue
		}
		succeeded++
		merged = append(merged, found...)
	}

	if succeeded == 0 {
		return nil, fmt.Errorf("all %d sampled frames failed", len(indices))
	}

	if o.logger != nil {
		o.logger.Debug("Video analyzed", logging.WithFields(map[string]interface{}{
			"file":     filepath.Base(path),
			"frames":   len(indices),
			"analyzed": succeeded,
			"findings": len(merged),
		}))
	}

	return Dedupe(merged), nil
}

func (o *Orchestrator) warn(msg, path string, err error) {
	if o.logger == nil {
		return
	}
	o.logger.Warn(msg, logging.WithFields(map[string]interface{}{
		"file":  filepath.Base(path),
		"error": err.Error(),
	}))
}

func (o *Orchestrator) frameWarn(msg, path string, idx int, err error) {
	if o.logger == nil {
		return
	}
	o.logger.Warn(msg, logging.WithFields(map[string]interface{}{
		"file":  filepath.Base(path),
		"frame": idx,
		"error": err.Error(),
	}))
}
