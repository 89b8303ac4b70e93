package facematch

import "image"

// BBox is a face bounding box [x1, y1, x2, y2] in pixel coordinates.
type BBox [4]float64

// Width returns the box width.
func (b BBox) Width() float64 {
	return b[2] - b[0]
}

// Height returns the box height.
func (b BBox) Height() float64 {
	return b[3] - b[1]
}

// ExpandBBox grows a bounding box by margin (a fraction of its width and height)
// on each side and clamps it to bounds.
// Corners are truncated to whole pixels before the margin is applied so that the
// crop matches what the detector saw.
func ExpandBBox(b BBox, margin float64, bounds image.Rectangle) image.Rectangle {
	x1, y1 := int(b[0]), int(b[1])
	x2, y2 := int(b[2]), int(b[3])

	width := float64(x2 - x1)
	height := float64(y2 - y1)

	// image.Rect would canonicalize an inverted box, so build it directly.
	r := image.Rectangle{
		Min: image.Pt(
			max(bounds.Min.X, int(float64(x1)-width*margin)),
			max(bounds.Min.Y, int(float64(y1)-height*margin)),
		),
		Max: image.Pt(
			min(bounds.Max.X, int(float64(x2)+width*margin)),
			min(bounds.Max.Y, int(float64(y2)+height*margin)),
		),
	}
	if r.Dx() <= 0 || r.Dy() <= 0 {
		return image.Rectangle{}
	}
	return r
}
