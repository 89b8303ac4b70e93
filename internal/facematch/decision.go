package facematch

import (
	"context"
	"fmt"
	"image"
)

// Decision is the first transition of the per-face state machine.
type Decision string

const (
	DecisionAccept        Decision = "accept"
	DecisionAttemptRescue Decision = "attempt_rescue"
	DecisionReject        Decision = "reject"
)

// Engine turns detections into face and image outcomes.
type Engine struct {
	store      *ReferenceStore
	thresholds Thresholds
	gate       QualityGate
	rescuer    *Rescuer
}

// NewEngine creates a decision engine. restorer may be nil, in which case
// every doubtful face ends up ignored.
func NewEngine(store *ReferenceStore, restorer Restorer, thresholds Thresholds) (*Engine, error) {
	if err := thresholds.Validate(); err != nil {
		return nil, err
	}
	gate := QualityGate{MinScore: thresholds.Quality}
	return &Engine{
		store:      store,
		thresholds: thresholds,
		gate:       gate,
		rescuer:    NewRescuer(store, restorer, gate, thresholds.CropMargin),
	}, nil
}

// Store returns the reference store the engine matches against.
func (e *Engine) Store() *ReferenceStore {
	return e.store
}

// Thresholds returns the active policy.
func (e *Engine) Thresholds() Thresholds {
	return e.thresholds
}

// Gate returns the quality gate derived from the thresholds.
func (e *Engine) Gate() QualityGate {
	return e.gate
}

// Classify maps a similarity score onto the first state transition.
func (e *Engine) Classify(score float64) Decision {
	switch {
	case score >= e.thresholds.Strict:
		return DecisionAccept
	case score >= e.thresholds.Doubt:
		return DecisionAttemptRescue
	default:
		return DecisionReject
	}
}

// DecideFace matches one gated detection and runs the rescue when the match is doubtful.
// src and detector are only used by the rescue.
func (e *Engine) DecideFace(ctx context.Context, det Detection, src image.Image, detector Detector) FaceOutcome {
	initial := BestMatch(det.Embedding, e.store)
	outcome := FaceOutcome{Kind: OutcomeIgnored, Initial: initial}

	switch e.Classify(initial.Similarity) {
	case DecisionAccept:
		if initial.Found() {
			outcome.Kind = OutcomeAccepted
			outcome.Person = initial.Person
		}
	case DecisionAttemptRescue:
		rescue := e.rescuer.Rescue(ctx, det, src, detector)
		outcome.Rescue = &rescue
		if rescue.Completed() && rescue.Match.Found() && rescue.Match.Similarity >= e.thresholds.Strict {
			outcome.Kind = OutcomeRescued
			outcome.Person = rescue.Match.Person
		}
	case DecisionReject:
	}

	return outcome
}

// ProcessImage detects faces with the profile chosen for the image size and
// decides every detection that passes the quality gate.
// The only error is a failed primary detection; rescue failures never surface.
func (e *Engine) ProcessImage(ctx context.Context, src image.Image, detectors Detectors) (ImageOutcome, error) {
	bounds := src.Bounds()
	profile := SelectProfile(bounds.Dx(), bounds.Dy())
	out := ImageOutcome{Profile: profile}

	detector := detectors.For(profile)
	if detector == nil {
		return out, fmt.Errorf("no detector configured for profile %s", profile)
	}

	detections, err := detector.Detect(ctx, src)
	if err != nil {
		return out, fmt.Errorf("detecting faces (%s): %w", profile, err)
	}
	out.Detections = len(detections)

	seen := make(map[string]bool)
	for _, det := range detections {
		if !e.gate.Accepts(det) {
			out.LowQualityFaces++
			continue
		}

		face := e.DecideFace(ctx, det, src, detector)
		out.Faces = append(out.Faces, face)

		if face.Credited() && !seen[face.Person] {
			seen[face.Person] = true
			out.Persons = append(out.Persons, face.Person)
		}
	}

	return out, nil
}
