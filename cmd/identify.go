package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-sorter/internal/config"
	"github.com/kozaktomas/face-sorter/internal/constants"
	"github.com/kozaktomas/face-sorter/internal/database"
	"github.com/kozaktomas/face-sorter/internal/facematch"
	"github.com/kozaktomas/face-sorter/internal/photo"
)

var identifyCmd = &cobra.Command{
	Use:   "identify <image>",
	Short: "Explain the matching decision for a single photo",
	Long: `Run the full decision for one photo and print every step: the detection
profile, each detected face with its quality, the best reference match, the
decision and the rescue trace, plus the nearest enrolled people.

Nothing is copied. Use it to tune the thresholds for an event.

Examples:
  face-sorter identify event/IMG_0042.jpg
  face-sorter identify event/IMG_0042.jpg --top 3 --json`,
	Args: cobra.ExactArgs(1),
	RunE: runIdentify,
}

func init() {
	rootCmd.AddCommand(identifyCmd)

	identifyCmd.Flags().Int("top", constants.DefaultIdentifyTopK, "Number of nearest people to list per face")
	identifyCmd.Flags().Bool("json", false, "Output as JSON")
}

// FaceTrace is the diagnostic view of one detection.
type FaceTrace struct {
	Index      int                    `json:"index"`
	BBox       facematch.BBox         `json:"bbox"`
	Score      float64                `json:"det_score"`
	Gated      bool                   `json:"passed_quality_gate"`
	Decision   facematch.Decision     `json:"decision,omitempty"`
	Outcome    *facematch.FaceOutcome `json:"outcome,omitempty"`
	Candidates []database.Candidate   `json:"candidates,omitempty"`
}

// IdentifyResult is the diagnostic view of one image.
type IdentifyResult struct {
	File       string                `json:"file"`
	Width      int                   `json:"width"`
	Height     int                   `json:"height"`
	Profile    facematch.Profile     `json:"profile"`
	Thresholds facematch.Thresholds  `json:"thresholds"`
	Faces      []FaceTrace           `json:"faces"`
	Persons    []string              `json:"persons"`
	Status     facematch.ImageStatus `json:"status"`
}

func runIdentify(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	topK := mustGetInt(cmd, "top")
	jsonOutput := mustGetBool(cmd, "json")

	ctx, cancel := signalContext()
	defer cancel()

	img, err := photo.Open(args[0])
	if err != nil {
		return err
	}

	store, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.close()

	engine, err := loadEngine(ctx, cfg, store.refs)
	if err != nil {
		return err
	}
	index := referenceIndex(cfg, engine.Store())

	bounds := img.Bounds()
	result := IdentifyResult{
		File:       args[0],
		Width:      bounds.Dx(),
		Height:     bounds.Dy(),
		Profile:    facematch.SelectProfile(bounds.Dx(), bounds.Dy()),
		Thresholds: engine.Thresholds(),
	}

	detector := newDetectors(cfg).For(result.Profile)
	detections, err := detector.Detect(ctx, img)
	if err != nil {
		return fmt.Errorf("detecting faces (%s): %w", result.Profile, err)
	}

	outcome := facematch.ImageOutcome{Profile: result.Profile, Detections: len(detections)}
	seen := make(map[string]bool)
	for i, det := range detections {
		trace := FaceTrace{Index: i, BBox: det.BBox, Score: det.Score, Gated: engine.Gate().Accepts(det)}
		if index != nil {
			if candidates, err := index.Search(det.Embedding, topK); err == nil {
				trace.Candidates = candidates
			}
		}
		if !trace.Gated {
			outcome.LowQualityFaces++
			result.Faces = append(result.Faces, trace)
			continue
		}

		face := engine.DecideFace(ctx, det, img, detector)
		trace.Decision = engine.Classify(face.Initial.Similarity)
		trace.Outcome = &face
		result.Faces = append(result.Faces, trace)

		outcome.Faces = append(outcome.Faces, face)
		if face.Credited() && !seen[face.Person] {
			seen[face.Person] = true
			outcome.Persons = append(outcome.Persons, face.Person)
		}
	}
	result.Persons = outcome.Persons
	result.Status = outcome.Status()

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	printIdentifyResult(result)
	return nil
}

// referenceIndex loads the persisted HNSW index when it matches the store,
// otherwise builds it and persists it if a path is configured.
func referenceIndex(cfg *config.Config, store *facematch.ReferenceStore) *database.ReferenceIndex {
	index := database.NewReferenceIndex()
	path := cfg.Database.HNSWIndexPath

	if path != "" {
		err := index.Load(path, store.ReferenceCount())
		if err == nil {
			log.Debugf("cli: loaded HNSW index from %s", path)
			return index
		}
		log.Debugf("cli: rebuilding HNSW index: %v", err)
	}

	index.Build(store)
	if index.IsEmpty() {
		return nil
	}
	if path != "" {
		if err := index.Save(path); err != nil {
			log.Warnf("cli: failed to save HNSW index: %v", err)
		}
	}
	return index
}

func printIdentifyResult(r IdentifyResult) {
	fmt.Printf("Image: %s (%dx%d)\n", r.File, r.Width, r.Height)
	fmt.Printf("Profile: %s\n", r.Profile)
	fmt.Printf("Thresholds: strict %.2f, doubt %.2f, quality %.2f\n", r.Thresholds.Strict, r.Thresholds.Doubt, r.Thresholds.Quality)
	fmt.Printf("Faces detected: %d\n", len(r.Faces))

	for _, f := range r.Faces {
		fmt.Printf("\nFace #%d  bbox [%.0f %.0f %.0f %.0f]  score %.2f\n", f.Index, f.BBox[0], f.BBox[1], f.BBox[2], f.BBox[3], f.Score)
		if !f.Gated {
			fmt.Println("  Dropped by quality gate")
		} else {
			o := f.Outcome
			if o.Initial.Found() {
				fmt.Printf("  Best match: %s (%.3f)\n", o.Initial.Person, o.Initial.Similarity)
			} else {
				fmt.Println("  Best match: none")
			}
			fmt.Printf("  Decision: %s\n", f.Decision)
			if o.Rescue != nil {
				fmt.Printf("  Rescue: %s", o.Rescue.Step)
				if o.Rescue.Match.Found() {
					fmt.Printf(" -> %s (%.3f)", o.Rescue.Match.Person, o.Rescue.Match.Similarity)
				}
				if o.Rescue.Err != "" {
					fmt.Printf(" [%s]", o.Rescue.Err)
				}
				fmt.Println()
			}
			fmt.Printf("  Outcome: %s", o.Kind)
			if o.Person != "" {
				fmt.Printf(" (%s)", o.Person)
			}
			fmt.Println()
		}
		if len(f.Candidates) > 0 {
			fmt.Println("  Nearest people:")
			for _, c := range f.Candidates {
				fmt.Printf("    %-24s %.3f\n", c.Person, c.Similarity)
			}
		}
	}

	fmt.Printf("\nStatus: %s\n", r.Status)
	if len(r.Persons) > 0 {
		fmt.Printf("Persons: %v\n", r.Persons)
	}
}
