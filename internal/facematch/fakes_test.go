package facematch

import (
	"context"
	"errors"
	"image"
	"sync"
)

// scriptedDetector returns its responses in order; the last one repeats.
type scriptedDetector struct {
	mu        sync.Mutex
	responses [][]Detection
	err       error
	calls     int
	sizes     []image.Point
}

func (d *scriptedDetector) Detect(_ context.Context, img image.Image) ([]Detection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.calls++
	d.sizes = append(d.sizes, img.Bounds().Size())
	if d.err != nil {
		return nil, d.err
	}
	if len(d.responses) == 0 {
		return nil, nil
	}
	i := min(d.calls-1, len(d.responses)-1)
	return d.responses[i], nil
}

type stubRestorer struct {
	calls int
	fail  bool
}

func (r *stubRestorer) Restore(_ context.Context, img image.Image) (image.Image, error) {
	r.calls++
	if r.fail {
		return nil, errors.New("restoration model unavailable")
	}
	b := img.Bounds()
	return image.NewRGBA(image.Rect(0, 0, b.Dx()*2, b.Dy()*2)), nil
}

// Vectors with exact cosine similarity against axisX.
var (
	axisX        = Embedding{1, 0, 0, 0, 0}
	axisY        = Embedding{0, 1, 0, 0, 0}
	strictBorder = Embedding{9, 17, 5, 2, 1} // 9/20 = 0.45
	doubtful     = Embedding{4, 8, 4, 2, 0}  // 4/10 = 0.40
)

func face(score float64, emb Embedding) Detection {
	return Detection{BBox: BBox{20, 20, 60, 60}, Score: score, Embedding: emb}
}

func testImage(w, h int) image.Image {
	return image.NewRGBA(image.Rect(0, 0, w, h))
}
