package inference

import (
	"github.com/umarkhanovv/roadwatch/internal/detection"
	"github.com/umarkhanovv/roadwatch/internal/models"
)

type dedupeKey struct {
	defectType string
	confidence float64
}

// Dedupe keeps the first finding for each (defect type, confidence rounded
// to 2 dp) pair. Boxes are not part of the key, so findings at different
// locations with the same key collapse into one.
func Dedupe(findings []models.Finding) []models.Finding {
	seen := make(map[dedupeKey]struct{}, len(findings))
	out := make([]models.Finding, 0, len(findings))
	for _, f := range findings {
		key := dedupeKey{
			defectType: f.DefectType,
			confidence: detection.RoundConfidence(f.Confidence, 2),
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, f)
	}
	return out
}
