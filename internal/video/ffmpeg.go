package video

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// Info describes the primary video stream of a file.
type Info struct {
	FrameCount int
	FPS        float64
	Duration   float64
}

// Decoder probes videos and extracts single frames as JPEG bytes.
type Decoder interface {
	Probe(ctx context.Context, path string) (Info, error)
	ExtractFrame(ctx context.Context, path string, index int, fps float64, dstDir string) ([]byte, error)
}

// FFmpeg implements Decoder on top of the ffprobe and ffmpeg binaries.
type FFmpeg struct {
	ffprobePath string
	ffmpegPath  string
}

// NewFFmpeg creates a decoder; empty paths resolve to "ffprobe"/"ffmpeg" on PATH.
func NewFFmpeg(ffprobePath, ffmpegPath string) *FFmpeg {
	if strings.TrimSpace(ffprobePath) == "" {
		ffprobePath = "ffprobe"
	}
	if strings.TrimSpace(ffmpegPath) == "" {
		ffmpegPath = "ffmpeg"
	}
	return &FFmpeg{ffprobePath: ffprobePath, ffmpegPath: ffmpegPath}
}

type probeOutput struct {
	Streams []struct {
		NbFrames     string `json:"nb_frames"`
		RFrameRate   string `json:"r_frame_rate"`
		AvgFrameRate string `json:"avg_frame_rate"`
		Duration     string `json:"duration"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Probe reads frame count, frame rate and duration of the first video stream.
func (f *FFmpeg) Probe(ctx context.Context, path string) (Info, error) {
	if path == "" {
		return Info{}, fmt.Errorf("video path cannot be empty")
	}

	cmd := exec.CommandContext(ctx, f.ffprobePath, //nolint:gosec // binary path comes from config, args are fixed
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=nb_frames,r_frame_rate,avg_frame_rate,duration:format=duration",
		"-of", "json",
		path)

	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return Info{}, fmt.Errorf("ffprobe canceled: %w", ctx.Err())
		}
		errMsg := strings.TrimSpace(stderr.String())
		if errMsg == "" {
			errMsg = err.Error()
		}
		return Info{}, fmt.Errorf("ffprobe failed: %s", errMsg)
	}

	return parseProbeOutput(out.Bytes())
}

func parseProbeOutput(raw []byte) (Info, error) {
	var parsed probeOutput
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return Info{}, fmt.Errorf("decode ffprobe output: %w", err)
	}
	if len(parsed.Streams) == 0 {
		return Info{}, ErrNotVideo
	}

	stream := parsed.Streams[0]
	fps := parseRate(stream.AvgFrameRate)
	if fps <= 0 {
		fps = parseRate(stream.RFrameRate)
	}

	duration := parseFloat(stream.Duration)
	if duration <= 0 {
		duration = parseFloat(parsed.Format.Duration)
	}

	frames, err := strconv.Atoi(strings.TrimSpace(stream.NbFrames))
	if err != nil || frames <= 0 {
		// Some containers (avi, fragmented mp4) omit nb_frames.
		effectiveFPS := fps
		if effectiveFPS <= 0 {
			effectiveFPS = DefaultFPS
		}
		frames = int(math.Floor(duration * effectiveFPS))
	}

	return Info{FrameCount: frames, FPS: fps, Duration: duration}, nil
}

// parseRate turns "30000/1001" or "25" into frames per second.
func parseRate(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" || s == "N/A" {
		return 0
	}
	num, den, found := strings.Cut(s, "/")
	if !found {
		return parseFloat(num)
	}
	n, d := parseFloat(num), parseFloat(den)
	if d == 0 {
		return 0
	}
	return n / d
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// ExtractFrame seeks to frame index and writes it as JPEG under dstDir. The
// bytes are returned and the temporary file is removed before returning.
func (f *FFmpeg) ExtractFrame(ctx context.Context, path string, index int, fps float64, dstDir string) ([]byte, error) {
	if fps <= 0 {
		fps = DefaultFPS
	}
	seek := float64(index) / fps
	framePath := filepath.Join(dstDir, fmt.Sprintf("%s_f%d.jpg", filepath.Base(path), index))
	defer os.Remove(framePath)

	cmd := exec.CommandContext(ctx, f.ffmpegPath, //nolint:gosec // binary path comes from config, args are fixed
		"-v", "error",
		"-y",
		"-ss", strconv.FormatFloat(seek, 'f', 3, 64),
		"-i", path,
		"-frames:v", "1",
		"-q:v", "2",
		framePath)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("ffmpeg canceled: %w", ctx.Err())
		}
		return nil, fmt.Errorf("ffmpeg frame %d failed: %s", index, strings.TrimSpace(stderr.String()))
	}

	data, err := os.ReadFile(framePath)
	if err != nil {
		return nil, fmt.Errorf("read frame %d: %w", index, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("frame %d is empty", index)
	}
	return data, nil
}

var _ Decoder = (*FFmpeg)(nil)
