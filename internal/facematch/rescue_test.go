package facematch

import (
	"context"
	"errors"
	"image"
	"testing"
)

func TestRescueSteps(t *testing.T) {
	store := NewReferenceStore(map[string][]Embedding{"alice": {axisX}})
	gate := QualityGate{MinScore: DefaultQualityGateScore}

	tests := []struct {
		name      string
		restorer  Restorer
		detector  *scriptedDetector
		detection Detection
		step      RescueStep
		person    string
	}{
		{
			name:      "no restorer",
			restorer:  nil,
			detector:  &scriptedDetector{},
			detection: face(0.9, doubtful),
			step:      RescueNoRestorer,
		},
		{
			name:      "empty crop",
			restorer:  &stubRestorer{},
			detector:  &scriptedDetector{},
			detection: Detection{BBox: BBox{500, 500, 600, 600}, Score: 0.9, Embedding: doubtful},
			step:      RescueEmptyCrop,
		},
		{
			name:      "restoration fails",
			restorer:  &stubRestorer{fail: true},
			detector:  &scriptedDetector{},
			detection: face(0.9, doubtful),
			step:      RescueRestoreFailed,
		},
		{
			name:      "detector fails",
			restorer:  &stubRestorer{},
			detector:  &scriptedDetector{err: errors.New("timeout")},
			detection: face(0.9, doubtful),
			step:      RescueRedetectFailed,
		},
		{
			name:      "no face in restored crop",
			restorer:  &stubRestorer{},
			detector:  &scriptedDetector{responses: [][]Detection{{}}},
			detection: face(0.9, doubtful),
			step:      RescueNoFaces,
		},
		{
			name:      "restored face below quality gate",
			restorer:  &stubRestorer{},
			detector:  &scriptedDetector{responses: [][]Detection{{face(0.5, axisX)}}},
			detection: face(0.9, doubtful),
			step:      RescueLowQuality,
		},
		{
			name:     "strongest restored face is matched",
			restorer: &stubRestorer{},
			detector: &scriptedDetector{responses: [][]Detection{{
				face(0.7, Embedding{0, 0, 1, 0, 0}),
				face(0.95, axisX),
				face(0.8, doubtful),
			}}},
			detection: face(0.9, doubtful),
			step:      RescueMatched,
			person:    "alice",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rescuer := NewRescuer(store, tt.restorer, gate, DefaultCropMargin)
			result := rescuer.Rescue(context.Background(), tt.detection, testImage(100, 100), tt.detector)

			if result.Step != tt.step {
				t.Fatalf("step = %s, want %s", result.Step, tt.step)
			}
			if result.Match.Person != tt.person {
				t.Errorf("person = %q, want %q", result.Match.Person, tt.person)
			}
			if tt.step != RescueMatched && result.Match.Similarity != -1.0 {
				t.Errorf("aborted rescue carries similarity %v", result.Match.Similarity)
			}
		})
	}
}

func TestRescueCropsExpandedBox(t *testing.T) {
	store := NewReferenceStore(map[string][]Embedding{"alice": {axisX}})
	restorer := &stubRestorer{}
	detector := &scriptedDetector{responses: [][]Detection{{face(0.9, axisX)}}}
	rescuer := NewRescuer(store, restorer, QualityGate{MinScore: 0.6}, 0.2)

	det := Detection{BBox: BBox{50, 20, 100, 70}, Score: 0.9, Embedding: doubtful}
	result := rescuer.Rescue(context.Background(), det, testImage(200, 100), detector)
	if !result.Completed() {
		t.Fatalf("expected completed rescue, got %+v", result)
	}

	// 70x70 crop, doubled by the stub restorer.
	want := image.Pt(140, 140)
	if len(detector.sizes) != 1 || detector.sizes[0] != want {
		t.Errorf("detector saw %v, want [%v]", detector.sizes, want)
	}
}

func TestRescueErrorIsRecorded(t *testing.T) {
	rescuer := NewRescuer(NewReferenceStore(nil), &stubRestorer{fail: true}, QualityGate{}, 0.2)
	result := rescuer.Rescue(context.Background(), face(0.9, doubtful), testImage(100, 100), &scriptedDetector{})
	if result.Err == "" {
		t.Error("expected restorer error message on the result")
	}
}
