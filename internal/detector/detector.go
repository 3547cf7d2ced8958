package detector

import (
	"math"
	"strings"
)

// ConfidenceThreshold is the inclusive cutoff a matching detection must reach
const ConfidenceThreshold float32 = 0.80

// Detection is a single labelled box produced by a model
type Detection struct {
	Label      string
	Confidence float32
}

// Model runs object detection on an image file
type Model interface {
	// Predict returns the raw detections for the image at path
	Predict(path string) ([]Detection, error)
}

// IsBuckLabel reports whether label names the target class. Numeric exports
// name it "0", string exports use "buck" or a variant containing it.
func IsBuckLabel(label string) bool {
	if label == "0" {
		return true
	}
	return strings.Contains(strings.ToLower(label), "buck")
}

// Classify reduces detections to a verdict. Confidence is the highest
// matching confidence at or above the threshold, or 0 when none qualifies.
func Classify(dets []Detection) (hasBuck bool, confidence float32) {
	for _, d := range dets {
		if !IsBuckLabel(d.Label) {
			continue
		}

		c := clamp(d.Confidence)
		if c < ConfidenceThreshold {
			continue
		}

		hasBuck = true
		if c > confidence {
			confidence = c
		}
	}
	return hasBuck, confidence
}

// clamp bounds c to [0,1]; NaN maps to 0
func clamp(c float32) float32 {
	switch {
	case math.IsNaN(float64(c)), c < 0:
		return 0
	case c > 1:
		return 1
	}
	return c
}
