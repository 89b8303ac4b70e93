package facematch

import (
	"image"
	"testing"
)

func TestExpandBBox(t *testing.T) {
	bounds := image.Rect(0, 0, 200, 100)

	tests := []struct {
		name     string
		bbox     BBox
		margin   float64
		expected image.Rectangle
	}{
		{
			name:     "no margin",
			bbox:     BBox{10, 10, 60, 60},
			margin:   0,
			expected: image.Rect(10, 10, 60, 60),
		},
		{
			name:     "twenty percent margin",
			bbox:     BBox{50, 20, 100, 70},
			margin:   0.2,
			expected: image.Rect(40, 10, 110, 80),
		},
		{
			name:     "clamped to bounds",
			bbox:     BBox{0, 0, 50, 50},
			margin:   0.2,
			expected: image.Rect(0, 0, 60, 60),
		},
		{
			name:     "clamped at far edge",
			bbox:     BBox{180, 60, 200, 100},
			margin:   0.5,
			expected: image.Rect(170, 40, 200, 100),
		},
		{
			name:     "fractional corners are truncated",
			bbox:     BBox{10.9, 10.9, 20.2, 20.2},
			margin:   0,
			expected: image.Rect(10, 10, 20, 20),
		},
		{
			name:     "box outside image",
			bbox:     BBox{300, 300, 350, 350},
			margin:   0.2,
			expected: image.Rectangle{},
		},
		{
			name:     "inverted box",
			bbox:     BBox{60, 60, 10, 10},
			margin:   0,
			expected: image.Rectangle{},
		},
		{
			name:     "degenerate box",
			bbox:     BBox{10, 10, 10, 10},
			margin:   0.2,
			expected: image.Rectangle{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ExpandBBox(tt.bbox, tt.margin, bounds)
			if result != tt.expected {
				t.Errorf("ExpandBBox(%v, %v) = %v, want %v", tt.bbox, tt.margin, result, tt.expected)
			}
		})
	}
}

func TestBBoxSize(t *testing.T) {
	b := BBox{10, 20, 40, 80}
	if b.Width() != 30 {
		t.Errorf("Width() = %v, want 30", b.Width())
	}
	if b.Height() != 60 {
		t.Errorf("Height() = %v, want 60", b.Height())
	}
}
