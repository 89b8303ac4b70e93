package vision

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"strconv"
	"time"

	"github.com/kozaktomas/face-sorter/internal/facematch"
	"github.com/kozaktomas/face-sorter/internal/photo"
)

const defaultDetectorURL = "http://localhost:8000"

// FaceDetection represents a single detected face
type FaceDetection struct {
	FaceIndex int       `json:"face_index"`
	Dim       int       `json:"dim"`
	Embedding []float32 `json:"embedding"`
	BBox      []float64 `json:"bbox"` // [x1, y1, x2, y2]
	DetScore  float64   `json:"det_score"`
}

// FaceResponse represents the response from the face embedding endpoint
type FaceResponse struct {
	FacesCount int             `json:"faces_count"`
	Faces      []FaceDetection `json:"faces"`
	Model      string          `json:"model"`
}

// FaceClient detects faces with one detector input size.
// It implements facematch.Detector and is safe for concurrent use.
type FaceClient struct {
	client
	detSize int
}

// NewFaceClient creates a detector for the given det_size (320 for small
// photos, 640 for HD and larger).
func NewFaceClient(baseURL string, detSize int, timeout time.Duration) *FaceClient {
	if baseURL == "" {
		baseURL = defaultDetectorURL
	}
	return &FaceClient{client: newClient(baseURL, timeout), detSize: detSize}
}

// NewDetectors creates the low-res and high-res detectors sharing one service.
func NewDetectors(baseURL string, lowSize, highSize int, timeout time.Duration) facematch.Detectors {
	return facematch.Detectors{
		LowRes:  NewFaceClient(baseURL, lowSize, timeout),
		HighRes: NewFaceClient(baseURL, highSize, timeout),
	}
}

// DetSize returns the detector input size.
func (c *FaceClient) DetSize() int {
	return c.detSize
}

// ComputeFaceEmbeddings detects faces and computes their embeddings
func (c *FaceClient) ComputeFaceEmbeddings(ctx context.Context, imageData []byte) (*FaceResponse, error) {
	endpoint := "/embed/face"
	if c.detSize > 0 {
		endpoint += "?det_size=" + strconv.Itoa(c.detSize)
	}

	body, _, err := c.postMultipartImage(ctx, endpoint, imageData)
	if err != nil {
		return nil, err
	}

	var faceResp FaceResponse
	if err := json.Unmarshal(body, &faceResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	return &faceResp, nil
}

// Detect implements facematch.Detector.
func (c *FaceClient) Detect(ctx context.Context, img image.Image) ([]facematch.Detection, error) {
	data, err := photo.EncodeJPEG(img)
	if err != nil {
		return nil, err
	}

	resp, err := c.ComputeFaceEmbeddings(ctx, data)
	if err != nil {
		return nil, err
	}

	detections := make([]facematch.Detection, 0, len(resp.Faces))
	for _, f := range resp.Faces {
		if len(f.BBox) != 4 {
			log.Warnf("vision: skipping face %d with malformed bbox %v", f.FaceIndex, f.BBox)
			continue
		}
		detections = append(detections, facematch.Detection{
			BBox:      facematch.BBox{f.BBox[0], f.BBox[1], f.BBox[2], f.BBox[3]},
			Score:     f.DetScore,
			Embedding: f.Embedding,
		})
	}
	return detections, nil
}

// Health checks that the embedding service is reachable.
func (c *FaceClient) Health(ctx context.Context) error {
	return c.health(ctx)
}
