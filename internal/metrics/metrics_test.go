package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kozaktomas/face-sorter/internal/facematch"
)

func sampleOutcome() facematch.ImageOutcome {
	return facematch.ImageOutcome{
		Profile:         facematch.ProfileHighRes,
		Detections:      3,
		LowQualityFaces: 1,
		Faces: []facematch.FaceOutcome{
			{Kind: facematch.OutcomeAccepted, Person: "Alice", Initial: facematch.MatchResult{Person: "Alice", Similarity: 0.8}},
			{
				Kind:    facematch.OutcomeIgnored,
				Initial: facematch.MatchResult{Person: "Bob", Similarity: 0.35},
				Rescue:  &facematch.RescueResult{Step: facematch.RescueNoRestorer},
			},
		},
		Persons: []string{"Alice"},
	}
}

func TestExporterRecordsOutcome(t *testing.T) {
	e := NewExporter()
	e.ImageProcessed(sampleOutcome(), 120*time.Millisecond)
	e.ImageFailed()

	if got := testutil.ToFloat64(e.images.WithLabelValues("matched")); got != 1 {
		t.Errorf("expected 1 matched image, got %v", got)
	}
	if got := testutil.ToFloat64(e.images.WithLabelValues("failed")); got != 1 {
		t.Errorf("expected 1 failed image, got %v", got)
	}
	if got := testutil.ToFloat64(e.faces.WithLabelValues("low_quality")); got != 1 {
		t.Errorf("expected 1 low quality face, got %v", got)
	}
	if got := testutil.ToFloat64(e.faces.WithLabelValues("ignored")); got != 1 {
		t.Errorf("expected 1 ignored face, got %v", got)
	}
	if got := testutil.ToFloat64(e.rescues.WithLabelValues(string(facematch.RescueNoRestorer))); got != 1 {
		t.Errorf("expected 1 rescue abort, got %v", got)
	}
}

func TestExporterActiveRuns(t *testing.T) {
	e := NewExporter()
	e.RunStarted()
	e.RunStarted()
	e.RunFinished()

	if got := testutil.ToFloat64(e.activeRuns); got != 1 {
		t.Errorf("expected 1 active run, got %v", got)
	}
}

func TestExporterHandler(t *testing.T) {
	e := NewExporter()
	e.ImageProcessed(sampleOutcome(), time.Second)

	req := httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody)
	rec := httptest.NewRecorder()
	e.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{"face_sorter_images_total", "face_sorter_match_similarity", "face_sorter_image_duration_seconds"} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output misses %s", want)
		}
	}
}
