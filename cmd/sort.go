package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-sorter/internal/config"
	"github.com/kozaktomas/face-sorter/internal/constants"
	"github.com/kozaktomas/face-sorter/internal/database"
	"github.com/kozaktomas/face-sorter/internal/sorter"
)

var sortCmd = &cobra.Command{
	Use:   "sort",
	Short: "Sort event photos into per-person folders",
	Long: `Sort every photo of the input folder into the output folder.

Each photo is copied into the folder of every person recognised in it.
Photos with faces but no recognised person go to the unknown folder, photos
without usable faces are left out. Files already present in a destination
folder are never overwritten, so an interrupted run can simply be repeated.

Examples:
  face-sorter sort
  face-sorter sort --input ./event --output ./sorted --concurrency 4
  face-sorter sort --report summary.json`,
	Args: cobra.NoArgs,
	RunE: runSort,
}

func init() {
	rootCmd.AddCommand(sortCmd)

	addSortFlags(sortCmd)
	sortCmd.Flags().String("report", "", "Write the run summary as JSON to this file")
}

// addSortFlags registers the flags shared by sort and pipeline.
func addSortFlags(cmd *cobra.Command) {
	cmd.Flags().String("input", "", "Folder with event photos (default INPUT_DIR)")
	cmd.Flags().String("output", "", "Folder for per-person folders (default OUTPUT_DIR)")
	cmd.Flags().Int("concurrency", constants.DefaultConcurrency, "Number of images processed in parallel")
	cmd.Flags().Bool("quiet", false, "Hide the progress bar")
}

// sortOptionsFromFlags resolves the folders and worker count of a sort run.
func sortOptionsFromFlags(cmd *cobra.Command, cfg *config.Config) (sorter.SortOptions, error) {
	opts := sorter.SortOptions{
		InputDir:      mustGetString(cmd, "input"),
		OutputDir:     mustGetString(cmd, "output"),
		UnknownFolder: cfg.Matching.UnknownFolder,
		Concurrency:   mustGetInt(cmd, "concurrency"),
		IsImage:       cfg.Matching.IsImageFile,
		Quiet:         mustGetBool(cmd, "quiet"),
	}
	if opts.InputDir == "" {
		opts.InputDir = cfg.Paths.InputDir
	}
	if opts.OutputDir == "" {
		opts.OutputDir = cfg.Paths.OutputDir
	}
	if opts.Concurrency < 1 || opts.Concurrency > constants.MaxConcurrency {
		return opts, fmt.Errorf("--concurrency must be between 1 and %d", constants.MaxConcurrency)
	}
	return opts, nil
}

// signalContext returns a context cancelled on Ctrl+C or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runSort(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	opts, err := sortOptionsFromFlags(cmd, cfg)
	if err != nil {
		return err
	}
	reportPath := mustGetString(cmd, "report")

	ctx, cancel := signalContext()
	defer cancel()

	store, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.close()

	result, err := sortPhotos(ctx, cfg, store, opts)
	if err != nil {
		return err
	}

	if reportPath != "" {
		if err := sorter.WriteReport(reportPath, result); err != nil {
			return err
		}
		fmt.Printf("Report written to %s\n", reportPath)
	}
	return nil
}

// sortPhotos runs one sort, prints the summary and records the run when a
// run history backend is available.
func sortPhotos(ctx context.Context, cfg *config.Config, store *storage, opts sorter.SortOptions) (*sorter.SortResult, error) {
	engine, err := loadEngine(ctx, cfg, store.refs)
	if err != nil {
		return nil, err
	}
	if err := checkServices(ctx, cfg); err != nil {
		return nil, err
	}

	fmt.Printf("Sorting %s into %s\n", opts.InputDir, opts.OutputDir)
	fmt.Printf("References: %d people (%s)\n", engine.Store().Len(), store.name)
	if opts.Concurrency > 1 {
		fmt.Printf("Workers: %d\n", opts.Concurrency)
	}
	fmt.Println()

	s := sorter.New(engine, newDetectors(cfg))
	result, err := s.Sort(ctx, opts)
	if err != nil {
		if errors.Is(err, sorter.ErrInputDirNotFound) {
			return nil, fmt.Errorf("%w: %s", err, opts.InputDir)
		}
		return nil, fmt.Errorf("sorting failed: %w", err)
	}

	fmt.Println()
	sorter.PrintSummary(os.Stdout, result.Summary)
	if result.CopyErrors > 0 {
		fmt.Printf("\nCopy errors: %d (see log)\n", result.CopyErrors)
	}
	if result.Cancelled {
		fmt.Println("\nRun was interrupted, re-run to process the remaining photos.")
	}

	if store.runs != nil {
		record := database.RunRecord{
			ID:         result.ID,
			StartedAt:  result.StartedAt,
			FinishedAt: result.FinishedAt,
			InputDir:   result.InputDir,
			OutputDir:  result.OutputDir,
			Cancelled:  result.Cancelled,
			Summary:    result.Summary,
		}
		if err := store.runs.SaveRun(context.WithoutCancel(ctx), record); err != nil {
			log.Warnf("cli: failed to record run %s: %v", result.ID, err)
		}
	}
	return result, nil
}
