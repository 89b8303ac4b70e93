// Package enroll builds the reference database from one photo per known person.
package enroll

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"image"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kozaktomas/face-sorter/internal/constants"
	"github.com/kozaktomas/face-sorter/internal/database"
	"github.com/kozaktomas/face-sorter/internal/event"
	"github.com/kozaktomas/face-sorter/internal/facematch"
	"github.com/kozaktomas/face-sorter/internal/photo"
)

var log = event.Log

// ErrKnownPeopleDirNotFound is returned when the enrollment folder is missing.
var ErrKnownPeopleDirNotFound = errors.New("known people directory not found")

// DefaultExtensions are the enrollment photo types.
var DefaultExtensions = []string{".jpg", ".jpeg", ".png"}

type Options struct {
	Dir           string
	Mirror        bool     // Also enroll the horizontally flipped photo
	Extensions    []string // Defaults to DefaultExtensions
	Model         string   // Recorded with each reference
	UnknownFolder string   // Reserved output folder, defaults to constants.DefaultUnknownFolder
}

// PersonResult describes the enrollment of one photo.
type PersonResult struct {
	Name       string `json:"name"`
	File       string `json:"file"`
	References int    `json:"references"`
	Err        string `json:"error,omitempty"`
}

type Result struct {
	Enrolled []PersonResult `json:"enrolled"`
	Skipped  []PersonResult `json:"skipped"`
}

// Enroller detects reference faces and stores their embeddings.
type Enroller struct {
	detector facematch.Detector
	writer   database.ReferenceWriter
}

func New(detector facematch.Detector, writer database.ReferenceWriter) *Enroller {
	return &Enroller{detector: detector, writer: writer}
}

// Run enrolls every <Person Name>.<ext> photo in opts.Dir and replaces the
// stored references with the result. A photo without a detectable face is
// skipped; nothing is written when the run is cancelled or storage fails.
func (e *Enroller) Run(ctx context.Context, opts Options) (*Result, error) {
	files, err := listPhotos(opts.Dir, opts.Extensions)
	if err != nil {
		return nil, err
	}

	result := &Result{}
	enrolled := make(map[string][]database.StoredReference, len(files))
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		file := filepath.Base(path)
		name := strings.TrimSuffix(file, filepath.Ext(file))
		if err := facematch.ValidatePersonName(name, cmp.Or(opts.UnknownFolder, constants.DefaultUnknownFolder)); err != nil {
			log.Warnf("enroll: skipping %s: %v", file, err)
			result.Skipped = append(result.Skipped, PersonResult{Name: name, File: file, Err: err.Error()})
			continue
		}
		log.Infof("enroll: processing %s", name)

		refs, err := e.references(ctx, path, opts)
		if err != nil {
			log.Warnf("enroll: skipping %s: %v", file, err)
			result.Skipped = append(result.Skipped, PersonResult{Name: name, File: file, Err: err.Error()})
			continue
		}

		enrolled[name] = refs
		result.Enrolled = append(result.Enrolled, PersonResult{Name: name, File: file, References: len(refs)})
	}
	if err := ctx.Err(); err != nil {
		return result, err
	}

	if err := e.writer.ReplaceReferences(ctx, enrolled); err != nil {
		return result, fmt.Errorf("failed to save references: %w", err)
	}
	return result, nil
}

// references returns the embedding of the best face in the photo and,
// when mirroring, of the best face in its flipped copy.
func (e *Enroller) references(ctx context.Context, path string, opts Options) ([]database.StoredReference, error) {
	img, err := photo.Open(path)
	if err != nil {
		return nil, err
	}

	file := filepath.Base(path)
	best, err := e.bestFace(ctx, img)
	if err != nil {
		return nil, err
	}
	refs := []database.StoredReference{{
		Source:    file,
		Embedding: best.Embedding,
		DetScore:  best.Score,
		Model:     opts.Model,
	}}

	if opts.Mirror {
		flipped, err := e.bestFace(ctx, photo.Mirror(img))
		if err != nil {
			return nil, fmt.Errorf("mirrored photo: %w", err)
		}
		refs = append(refs, database.StoredReference{
			Source:    file,
			Mirrored:  true,
			Embedding: flipped.Embedding,
			DetScore:  flipped.Score,
			Model:     opts.Model,
		})
	}
	return refs, nil
}

func (e *Enroller) bestFace(ctx context.Context, img image.Image) (facematch.Detection, error) {
	faces, err := e.detector.Detect(ctx, img)
	if err != nil {
		return facematch.Detection{}, fmt.Errorf("detection failed: %w", err)
	}

	var best facematch.Detection
	found := false
	for _, f := range faces {
		if len(f.Embedding) == 0 {
			continue
		}
		if !found || f.Score > best.Score {
			best = f
			found = true
		}
	}
	if !found {
		return facematch.Detection{}, errors.New("no face detected")
	}
	return best, nil
}

func listPhotos(dir string, extensions []string) ([]string, error) {
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}

	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrKnownPeopleDirNotFound, dir)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read known people directory: %w", err)
	}

	var files []string
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		for _, want := range extensions {
			if ext == want {
				files = append(files, filepath.Join(dir, e.Name()))
				break
			}
		}
	}
	sort.Strings(files)
	return files, nil
}
