package ocr

import (
	"sort"
	"strings"

	"bookreader-ocr/src/pkg/util"
)

// Tier thresholds. A score of exactly 0.60 is high, exactly 0.30 is medium.
const (
	tierHighMin   = 0.60
	tierMediumMin = 0.30
)

// TierFor buckets a [0,1] confidence score into high/medium/low.
func TierFor(confidence float64) ConfidenceTier {
	switch {
	case confidence >= tierHighMin:
		return TierHigh
	case confidence >= tierMediumMin:
		return TierMedium
	default:
		return TierLow
	}
}

/*
newTextRegion builds the immutable region value for one detection.

The confidence is clamped into [0,1] before tiering so a misbehaving engine
can never leak an out-of-range score past the adapter boundary.
*/
func newTextRegion(text string, bbox BBox, confidence float64) TextRegion {
	clamped := util.Clamp(confidence, 0.0, 1.0)
	return TextRegion{
		Text:           strings.TrimSpace(text),
		BBox:           bbox,
		Confidence:     clamped,
		ConfidenceTier: TierFor(clamped),
	}
}

// TierDistribution counts regions per confidence tier.
type TierDistribution struct {
	High   int `json:"high"`
	Medium int `json:"medium"`
	Low    int `json:"low"`
}

/*
ConfidenceStats aggregates the confidence scores of one extraction for
observability. It is derived per request and never persisted. An empty
region list reports all-zero values rather than dividing by zero.
*/
type ConfidenceStats struct {
	Count        int              `json:"count"`
	Min          float64          `json:"min"`
	Max          float64          `json:"max"`
	Avg          float64          `json:"avg"`
	Median       float64          `json:"median"`
	Distribution TierDistribution `json:"distribution"`
}

// ComputeStats aggregates confidence scores over the filtered region list.
func ComputeStats(regions []TextRegion) (stats ConfidenceStats) {
	if len(regions) == 0 {
		return stats
	}

	scores := make([]float64, 0, len(regions))
	sum := 0.0
	for _, region := range regions {
		scores = append(scores, region.Confidence)
		sum += region.Confidence

		switch region.ConfidenceTier {
		case TierHigh:
			stats.Distribution.High++
		case TierMedium:
			stats.Distribution.Medium++
		default:
			stats.Distribution.Low++
		}
	}

	sort.Float64s(scores)

	stats.Count = len(scores)
	stats.Min = scores[0]
	stats.Max = scores[len(scores)-1]
	stats.Avg = sum / float64(len(scores))

	middle := len(scores) / 2
	if len(scores)%2 == 1 {
		stats.Median = scores[middle]
	} else {
		stats.Median = (scores[middle-1] + scores[middle]) / 2
	}

	return stats
}
