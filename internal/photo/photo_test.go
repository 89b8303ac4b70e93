package photo

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func writePNG(t *testing.T, dir, name string, w, h int) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.NRGBA{R: 255, A: 255})

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	path := writePNG(t, dir, "photo.png", 40, 20)

	img, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if img.Bounds().Dx() != 40 || img.Bounds().Dy() != 20 {
		t.Errorf("unexpected size %v", img.Bounds())
	}
}

func TestOpenUnreadable(t *testing.T) {
	dir := t.TempDir()

	text := filepath.Join(dir, "notes.jpg")
	if err := os.WriteFile(text, []byte("definitely not a jpeg"), 0o644); err != nil {
		t.Fatal(err)
	}
	empty := filepath.Join(dir, "empty.jpg")
	if err := os.WriteFile(empty, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	for _, path := range []string{text, empty, filepath.Join(dir, "missing.jpg")} {
		if _, err := Open(path); !errors.Is(err, ErrUnreadable) {
			t.Errorf("Open(%s) error = %v, want ErrUnreadable", filepath.Base(path), err)
		}
	}
}

func TestEncodeDecodeJPEG(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 16, 8))

	data, err := EncodeJPEG(src)
	if err != nil {
		t.Fatal(err)
	}
	if MIMEType(data) != "image/jpeg" {
		t.Errorf("expected image/jpeg, got %s", MIMEType(data))
	}

	img, err := Decode(data)
	if err != nil {
		t.Fatal(err)
	}
	if img.Bounds().Dx() != 16 || img.Bounds().Dy() != 8 {
		t.Errorf("unexpected size %v", img.Bounds())
	}
}

func TestMirror(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 3, 1))
	src.Set(0, 0, color.NRGBA{R: 255, A: 255})

	mirrored := Mirror(src)
	r, _, _, _ := mirrored.At(2, 0).RGBA()
	if r == 0 {
		t.Error("expected the red pixel on the right after mirroring")
	}
}

func TestMIMETypeUnknown(t *testing.T) {
	if got := MIMEType([]byte("hello")); got != "application/octet-stream" {
		t.Errorf("expected octet-stream, got %s", got)
	}
}
