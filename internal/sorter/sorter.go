package sorter

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/errgroup"

	"github.com/kozaktomas/face-sorter/internal/constants"
	"github.com/kozaktomas/face-sorter/internal/event"
	"github.com/kozaktomas/face-sorter/internal/facematch"
	"github.com/kozaktomas/face-sorter/internal/photo"
)

var log = event.Log

// Sorter routes the images of an input directory into per-person folders.
type Sorter struct {
	engine    *facematch.Engine
	detectors facematch.Detectors
}

// ProgressInfo contains progress information for callbacks
type ProgressInfo struct {
	Current int      `json:"current"`
	Total   int      `json:"total"`
	File    string   `json:"file"`
	Status  string   `json:"status"` // image status, or "failed"
	Persons []string `json:"persons,omitempty"`
}

// Observer receives per-image results, e.g. for metrics.
type Observer interface {
	ImageProcessed(outcome facematch.ImageOutcome, elapsed time.Duration)
	ImageFailed()
}

type SortOptions struct {
	InputDir      string
	OutputDir     string
	UnknownFolder string
	Concurrency   int                // Number of images processed in parallel
	IsImage       func(string) bool  // Input file filter by name
	Quiet         bool               // Hide the progress bar
	OnProgress    func(ProgressInfo) // Optional progress callback for web UI
	Observer      Observer
}

// ImageResult is the outcome of one input file.
type ImageResult struct {
	File    string                 `json:"file"`
	Outcome facematch.ImageOutcome `json:"outcome"`
	Copied  []string               `json:"copied,omitempty"`
	Skipped []string               `json:"skipped,omitempty"` // destinations that already existed
	Err     string                 `json:"error,omitempty"`
}

// Failed reports whether the image could not be processed.
func (r ImageResult) Failed() bool {
	return r.Err != ""
}

type SortResult struct {
	ID         string            `json:"id"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
	InputDir   string            `json:"input_dir"`
	OutputDir  string            `json:"output_dir"`
	Cancelled  bool              `json:"cancelled"`
	Summary    facematch.Summary `json:"summary"`
	CopyErrors int               `json:"copy_errors"`
	Images     []ImageResult     `json:"images"` // in completion order
}

func New(engine *facematch.Engine, detectors facematch.Detectors) *Sorter {
	return &Sorter{
		engine:    engine,
		detectors: detectors,
	}
}

// Sort processes every image of opts.InputDir. Cancelling ctx stops
// scheduling new images; the result then covers the completed ones.
func (s *Sorter) Sort(ctx context.Context, opts SortOptions) (*SortResult, error) {
	files, err := ListImages(opts.InputDir, opts.IsImage)
	if err != nil {
		return nil, err
	}

	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = constants.DefaultConcurrency
	}
	concurrency = min(concurrency, constants.MaxConcurrency)

	unknown := opts.UnknownFolder
	if unknown == "" {
		unknown = constants.DefaultUnknownFolder
	}

	result := &SortResult{
		ID:        uuid.NewString(),
		StartedAt: time.Now(),
		InputDir:  opts.InputDir,
		OutputDir: opts.OutputDir,
	}

	bar := progressbar.NewOptions(len(files),
		progressbar.OptionSetDescription(fmt.Sprintf("Sorting photos (%d workers)", concurrency)),
		progressbar.OptionSetVisibility(!opts.Quiet),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("photos"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)

	// One partial aggregator per worker slot, merged once every worker returned.
	partials := make(chan *facematch.Aggregator, concurrency)
	for range concurrency {
		partials <- facematch.NewAggregator()
	}

	results := make(chan ImageResult, concurrency)
	collected := make(chan struct{})

	// Single collector goroutine: result.Images and progress are not shared between workers.
	go func() {
		defer close(collected)
		for r := range results {
			result.Images = append(result.Images, r)

			_ = bar.Add(1)
			if opts.OnProgress != nil {
				status := string(r.Outcome.Status())
				if r.Failed() {
					status = "failed"
				}
				opts.OnProgress(ProgressInfo{
					Current: len(result.Images),
					Total:   len(files),
					File:    r.File,
					Status:  status,
					Persons: r.Outcome.Persons,
				})
			}
		}
	}()

	var g errgroup.Group
	g.SetLimit(concurrency)
	for _, path := range files {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			r, ok := s.processFile(ctx, path, opts.OutputDir, unknown, opts.Observer)
			if !ok {
				return nil
			}
			agg := <-partials
			if r.Failed() {
				agg.Fail()
			} else {
				agg.Fold(r.Outcome)
			}
			partials <- agg
			results <- r
			return nil
		})
	}
	_ = g.Wait()
	close(results)
	<-collected
	close(partials)

	agg := facematch.NewAggregator()
	for partial := range partials {
		agg.Merge(partial)
	}
	if !opts.Quiet {
		fmt.Println() // New line after progress bar
	}

	result.CopyErrors = countCopyErrors(result.Images)
	result.Cancelled = ctx.Err() != nil
	result.FinishedAt = time.Now()
	result.Summary = agg.Snapshot()

	if result.Cancelled {
		log.Warnf("sorter: cancelled after %d of %d images", len(result.Images), len(files))
	}
	return result, nil
}

// processFile decides and routes one image. It returns false when the image
// was interrupted by cancellation and must not be counted.
func (s *Sorter) processFile(ctx context.Context, path, outputDir, unknown string, obs Observer) (ImageResult, bool) {
	name := filepath.Base(path)
	r := ImageResult{File: name}
	start := time.Now()

	img, err := photo.Open(path)
	if err != nil {
		log.Warnf("sorter: skipping %s: %v", name, err)
		r.Err = err.Error()
		if obs != nil {
			obs.ImageFailed()
		}
		return r, true
	}

	outcome, err := s.engine.ProcessImage(ctx, img, s.detectors)
	if err != nil {
		if ctx.Err() != nil {
			return r, false
		}
		log.Warnf("sorter: detection failed for %s: %v", name, err)
		r.Err = err.Error()
		if obs != nil {
			obs.ImageFailed()
		}
		return r, true
	}
	if ctx.Err() != nil {
		// A rescue cut short by cancellation reads as an ignored face.
		return r, false
	}
	r.Outcome = outcome

	for _, folder := range Destinations(outcome, unknown) {
		dst := filepath.Join(outputDir, folder, name)
		copied, err := copyIfAbsent(path, dst)
		switch {
		case err != nil:
			log.Errorf("sorter: failed to copy %s to %s: %v", name, folder, err)
		case copied:
			r.Copied = append(r.Copied, folder)
		default:
			r.Skipped = append(r.Skipped, folder)
		}
	}

	log.Debugf("sorter: %s -> %s %v", name, outcome.Status(), outcome.Persons)
	if obs != nil {
		obs.ImageProcessed(outcome, time.Since(start))
	}
	return r, true
}

// Destinations returns the output folders an image is routed to.
func Destinations(outcome facematch.ImageOutcome, unknown string) []string {
	switch outcome.Status() {
	case facematch.ImageMatched:
		return outcome.Persons
	case facematch.ImageUnknown:
		return []string{unknown}
	default:
		return nil
	}
}

func countCopyErrors(images []ImageResult) int {
	n := 0
	for _, r := range images {
		if r.Failed() {
			continue
		}
		want := len(Destinations(r.Outcome, "-"))
		n += want - len(r.Copied) - len(r.Skipped)
	}
	return n
}
