// Package video picks which frames of an uploaded video to analyze and pulls
// those frames out with ffprobe/ffmpeg.
package video

import (
	"errors"
	"math"
)

const (
	// DefaultSamplesPerSecond is one analyzed frame per second of content.
	DefaultSamplesPerSecond = 1.0
	// DefaultMaxFrames caps the samples taken from a single video.
	DefaultMaxFrames = 60
	// DefaultFPS is assumed when the container reports no frame rate.
	DefaultFPS = 30.0
)

// ErrNotVideo means the source has no decodable frames and should be handled
// as a single image instead.
var ErrNotVideo = errors.New("not a valid video")

// SampleIndices returns ascending, unique frame indices spread evenly over
// [0, totalFrames-1]. The count is min(floor(duration*samplesPerSecond)+1,
// maxFrames, totalFrames) where duration = totalFrames/fps.
func SampleIndices(totalFrames int, fps, samplesPerSecond float64, maxFrames int) ([]int, error) {
	if totalFrames <= 0 {
		return nil, ErrNotVideo
	}
	if fps <= 0 || math.IsNaN(fps) || math.IsInf(fps, 0) {
		fps = DefaultFPS
	}
	if samplesPerSecond <= 0 {
		samplesPerSecond = DefaultSamplesPerSecond
	}
	if maxFrames <= 0 {
		maxFrames = DefaultMaxFrames
	}

	duration := float64(totalFrames) / fps
	n := int(math.Floor(duration*samplesPerSecond)) + 1
	n = min(n, maxFrames, totalFrames)

	denom := max(n-1, 1)
	indices := make([]int, 0, n)
	seen := make(map[int]struct{}, n)
	for i := 0; i < n; i++ {
		idx := int(math.Round(float64(i*(totalFrames-1)) / float64(denom)))
		if _, dup := seen[idx]; dup {
			continue
		}
		seen[idx] = struct{}{}
		indices = append(indices, idx)
	}

	return indices, nil
}
