// Package facematch decides who appears in a photo.
// It matches detected faces against enrolled reference embeddings, runs the
// restoration rescue for doubtful matches and aggregates per-image outcomes.
package facematch

import (
	"context"
	"image"
)

// Embedding is a face embedding vector as returned by the detector service.
type Embedding []float32

// Detection is a single face found by a detector.
type Detection struct {
	BBox      BBox      // [x1, y1, x2, y2] in source pixels
	Score     float64   // detector confidence, conventionally 0-1
	Embedding Embedding // face embedding
}

// Detector finds faces in an image. Implementations must be safe for concurrent use.
type Detector interface {
	Detect(ctx context.Context, img image.Image) ([]Detection, error)
}

// Restorer enhances a cropped face region.
type Restorer interface {
	Restore(ctx context.Context, img image.Image) (image.Image, error)
}

// MatchResult is the best reference candidate for a query embedding.
// Person is empty when nothing could be compared.
type MatchResult struct {
	Person     string  `json:"person,omitempty"`
	Similarity float64 `json:"similarity"`
}

// Found reports whether the match names a person.
func (m MatchResult) Found() bool {
	return m.Person != ""
}

// noMatch is returned when the store is empty or every comparison failed.
var noMatch = MatchResult{Similarity: -1.0}

// OutcomeKind is the terminal state of a single face.
type OutcomeKind string

const (
	OutcomeIgnored  OutcomeKind = "ignored"
	OutcomeAccepted OutcomeKind = "accepted"
	OutcomeRescued  OutcomeKind = "rescued"
)

// FaceOutcome is the decision for one quality-gated detection.
type FaceOutcome struct {
	Kind    OutcomeKind   `json:"kind"`
	Person  string        `json:"person,omitempty"`
	Initial MatchResult   `json:"initial"`
	Rescue  *RescueResult `json:"rescue,omitempty"`
}

// Credited reports whether the face counts towards a person.
func (o FaceOutcome) Credited() bool {
	return o.Kind == OutcomeAccepted || o.Kind == OutcomeRescued
}

// Similarity returns the score that decided the outcome.
func (o FaceOutcome) Similarity() float64 {
	if o.Kind == OutcomeRescued && o.Rescue != nil {
		return o.Rescue.Match.Similarity
	}
	return o.Initial.Similarity
}

// ImageStatus is the routing bucket of an image.
type ImageStatus string

const (
	ImageMatched ImageStatus = "matched"
	ImageUnknown ImageStatus = "unknown"
	ImageNoFaces ImageStatus = "no_faces"
)

// ImageOutcome aggregates all face decisions for one image.
type ImageOutcome struct {
	Profile         Profile       `json:"profile"`
	Detections      int           `json:"detections"`
	LowQualityFaces int           `json:"low_quality_faces"`
	Faces           []FaceOutcome `json:"faces"`
	// Persons lists every distinct credited person in first-seen order.
	Persons []string `json:"persons,omitempty"`
}

// Status derives the routing bucket.
// An image without any gated detection is "no faces", never "unknown".
func (o ImageOutcome) Status() ImageStatus {
	switch {
	case len(o.Persons) > 0:
		return ImageMatched
	case len(o.Faces) == 0:
		return ImageNoFaces
	default:
		return ImageUnknown
	}
}

// HasAccepted reports whether at least one face was accepted without rescue.
func (o ImageOutcome) HasAccepted() bool {
	for _, f := range o.Faces {
		if f.Kind == OutcomeAccepted {
			return true
		}
	}
	return false
}
