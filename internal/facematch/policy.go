package facematch

import (
	"errors"
	"fmt"
	"math"
)

// Default decision thresholds.
const (
	// DefaultStrictThreshold is the minimum similarity for a confident match.
	DefaultStrictThreshold = 0.45

	// DefaultDoubtThreshold is the minimum similarity for a rescue attempt.
	DefaultDoubtThreshold = 0.3

	// DefaultQualityGateScore is the minimum detector score for a face to be matched.
	DefaultQualityGateScore = 0.6

	// DefaultCropMargin is the fraction of the face box added on each side for rescue crops.
	DefaultCropMargin = 0.2

	// HighResMinDimension is the longest image side from which the high-res profile is used.
	HighResMinDimension = 800
)

// ErrInvalidThresholds is returned when thresholds do not form a valid policy.
var ErrInvalidThresholds = errors.New("invalid matching thresholds")

// Thresholds configure the decision policy.
type Thresholds struct {
	Strict     float64 `json:"strict" yaml:"strict"`
	Doubt      float64 `json:"doubt" yaml:"doubt"`
	Quality    float64 `json:"quality_gate" yaml:"quality_gate"`
	CropMargin float64 `json:"crop_margin" yaml:"crop_margin"`
}

// DefaultThresholds returns the stock policy.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Strict:     DefaultStrictThreshold,
		Doubt:      DefaultDoubtThreshold,
		Quality:    DefaultQualityGateScore,
		CropMargin: DefaultCropMargin,
	}
}

// Validate checks that the rescue band is well formed.
func (t Thresholds) Validate() error {
	for _, v := range []struct {
		name  string
		value float64
	}{
		{"strict", t.Strict},
		{"doubt", t.Doubt},
		{"quality", t.Quality},
		{"crop margin", t.CropMargin},
	} {
		if math.IsNaN(v.value) || math.IsInf(v.value, 0) {
			return fmt.Errorf("%w: %s threshold is not a finite number", ErrInvalidThresholds, v.name)
		}
	}
	if t.Doubt > t.Strict {
		return fmt.Errorf("%w: doubt %.3f is above strict %.3f", ErrInvalidThresholds, t.Doubt, t.Strict)
	}
	if t.CropMargin < 0 {
		return fmt.Errorf("%w: negative crop margin %.3f", ErrInvalidThresholds, t.CropMargin)
	}
	return nil
}

// QualityGate rejects detections the detector is not confident about.
type QualityGate struct {
	MinScore float64
}

// Accepts reports whether the detection may be matched.
func (g QualityGate) Accepts(d Detection) bool {
	return d.Score >= g.MinScore
}

// Profile selects a detector configuration tuned for an image resolution band.
type Profile string

const (
	ProfileLowRes  Profile = "low_res"
	ProfileHighRes Profile = "high_res"
)

// SelectProfile picks the detector profile for an image of the given size.
func SelectProfile(width, height int) Profile {
	if max(width, height) < HighResMinDimension {
		return ProfileLowRes
	}
	return ProfileHighRes
}

// Detectors holds one detector per profile.
type Detectors struct {
	LowRes  Detector
	HighRes Detector
}

// For returns the detector for a profile.
func (d Detectors) For(p Profile) Detector {
	if p == ProfileLowRes {
		return d.LowRes
	}
	return d.HighRes
}
