package detection

import (
	"hash/fnv"
	"math/rand"
	"path/filepath"

	"github.com/umarkhanovv/roadwatch/internal/models"
)

// FallbackDefectTypes is the vocabulary the placeholder draws from.
var FallbackDefectTypes = []string{
	"pothole", "crack", "alligator_crack",
	"rutting", "depression", "edge_crack",
	"patching", "weathering",
}

const (
	placeholderEmptyRate = 0.20
	placeholderMinConf   = 0.55
	placeholderMaxConf   = 0.97
)

// Placeholder produces synthetic findings seeded from the base name of
// filename, so the same file always yields the same output.
func Placeholder(filename string) []models.Finding {
	rng := rand.New(rand.NewSource(seedFor(filepath.Base(filename))))

	if rng.Float64() < placeholderEmptyRate {
		return []models.Finding{}
	}

	count := 1 + rng.Intn(3)
	findings := make([]models.Finding, 0, count)
	for i := 0; i < count; i++ {
		x1 := float64(50 + rng.Intn(351))
		y1 := float64(50 + rng.Intn(251))
		box := models.BBox{
			x1,
			y1,
			x1 + float64(40+rng.Intn(161)),
			y1 + float64(30+rng.Intn(121)),
		}
		defectType := FallbackDefectTypes[rng.Intn(len(FallbackDefectTypes))]
		confidence := placeholderMinConf + rng.Float64()*(placeholderMaxConf-placeholderMinConf)

		findings = append(findings, models.Finding{
			DefectType: defectType,
			Confidence: round(confidence, 3),
			BBox:       &box,
		})
	}
	return findings
}

func seedFor(name string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(name))
	return int64(h.Sum64())
}
