package detection

import (
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/unicode/norm"

	"github.com/umarkhanovv/roadwatch/internal/models"
)

// DefaultDefectType replaces numeric or empty labels.
const DefaultDefectType = "pothole"

// Normalize converts raw predictions into findings: predictions under
// threshold are dropped, boxes become corner form rounded to 1 dp and
// confidence is rounded to 4 dp. Malformed predictions (confidence outside
// [0,1], negative size, non-finite coordinates) are dropped as well.
func Normalize(predictions []Prediction, threshold float64) []models.Finding {
	findings, _ := normalize(predictions, threshold)
	return findings
}

// normalize is Normalize that also reports how many malformed predictions
// were dropped.
func normalize(predictions []Prediction, threshold float64) ([]models.Finding, int) {
	findings := make([]models.Finding, 0, len(predictions))
	malformed := 0
	for _, p := range predictions {
		if math.IsNaN(p.Confidence) || p.Confidence > 1 || p.Width < 0 || p.Height < 0 {
			malformed++
			continue
		}
		if p.Confidence < threshold {
			continue
		}

		box := models.BBox{
			round(p.X-p.Width/2, 1),
			round(p.Y-p.Height/2, 1),
			round(p.X+p.Width/2, 1),
			round(p.Y+p.Height/2, 1),
		}
		if !box.Valid() {
			malformed++
			continue
		}

		findings = append(findings, models.Finding{
			DefectType: NormalizeLabel(p.ClassLabel),
			Confidence: round(p.Confidence, 4),
			BBox:       &box,
		})
	}
	return findings, malformed
}

// NormalizeLabel maps class indices to "pothole" and otherwise lowercases,
// trims and snake-cases the label.
func NormalizeLabel(raw string) string {
	trimmed := strings.TrimSpace(raw)
	// A bare class index means the model was exported without names.
	if _, err := strconv.Atoi(trimmed); err == nil {
		return DefaultDefectType
	}

	label := norm.NFC.String(trimmed)
	label = strings.ToLower(label)
	label = strings.TrimSpace(label)
	label = strings.ReplaceAll(label, " ", "_")
	if label == "" {
		return DefaultDefectType
	}
	return label
}

func round(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}

// RoundConfidence rounds to places decimal digits, matching the rounding
// applied to stored confidences.
func RoundConfidence(v float64, places int32) float64 {
	return round(v, places)
}
