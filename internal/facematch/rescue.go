package facematch

import (
	"context"
	"image"

	"github.com/disintegration/imaging"
)

// RescueStep names where a rescue attempt stopped.
type RescueStep string

const (
	RescueNoRestorer     RescueStep = "no_restorer"
	RescueEmptyCrop      RescueStep = "empty_crop"
	RescueRestoreFailed  RescueStep = "restore_failed"
	RescueRedetectFailed RescueStep = "redetect_failed"
	RescueNoFaces        RescueStep = "no_faces"
	RescueLowQuality     RescueStep = "low_quality"
	RescueMatched        RescueStep = "matched"
)

// RescueResult describes one rescue attempt.
// Match is only meaningful when Step is RescueMatched.
type RescueResult struct {
	Step  RescueStep  `json:"step"`
	Match MatchResult `json:"match"`
	Err   string      `json:"error,omitempty"`
}

// Completed reports whether the restored face was matched at all.
func (r RescueResult) Completed() bool {
	return r.Step == RescueMatched
}

func abortRescue(step RescueStep, err error) RescueResult {
	r := RescueResult{Step: step, Match: noMatch}
	if err != nil {
		r.Err = err.Error()
	}
	return r
}

// Rescuer re-matches doubtful faces on a restored crop.
type Rescuer struct {
	store    *ReferenceStore
	restorer Restorer
	gate     QualityGate
	margin   float64
}

// NewRescuer creates a rescuer. A nil restorer makes every attempt abort.
func NewRescuer(store *ReferenceStore, restorer Restorer, gate QualityGate, margin float64) *Rescuer {
	return &Rescuer{
		store:    store,
		restorer: restorer,
		gate:     gate,
		margin:   margin,
	}
}

// Rescue crops the detection out of src, restores it, detects again with the
// detector that produced the detection and matches the strongest face found.
// It never returns an error: every failure is reported as an aborted step.
func (r *Rescuer) Rescue(ctx context.Context, det Detection, src image.Image, detector Detector) RescueResult {
	if r.restorer == nil {
		return abortRescue(RescueNoRestorer, nil)
	}

	rect := ExpandBBox(det.BBox, r.margin, src.Bounds())
	if rect.Empty() {
		return abortRescue(RescueEmptyCrop, nil)
	}
	crop := imaging.Crop(src, rect)

	restored, err := r.restorer.Restore(ctx, crop)
	if err != nil {
		return abortRescue(RescueRestoreFailed, err)
	}
	if restored == nil || restored.Bounds().Empty() {
		return abortRescue(RescueRestoreFailed, nil)
	}

	if detector == nil {
		return abortRescue(RescueRedetectFailed, nil)
	}
	faces, err := detector.Detect(ctx, restored)
	if err != nil {
		return abortRescue(RescueRedetectFailed, err)
	}
	if len(faces) == 0 {
		return abortRescue(RescueNoFaces, nil)
	}

	best := faces[0]
	for _, f := range faces[1:] {
		if f.Score > best.Score {
			best = f
		}
	}
	if !r.gate.Accepts(best) {
		return abortRescue(RescueLowQuality, nil)
	}

	return RescueResult{Step: RescueMatched, Match: BestMatch(best.Embedding, r.store)}
}
