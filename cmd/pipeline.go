package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-sorter/internal/constants"
	"github.com/kozaktomas/face-sorter/internal/enroll"
)

var pipelineCmd = &cobra.Command{
	Use:   "pipeline",
	Short: "Enroll, sort and distribute in one go",
	Long: `Run the whole event workflow: enroll the known people, sort the event
photos and deliver every person folder.

Enrollment or sorting failures stop the pipeline. A distribution failure is
reported after the photos have been sorted, so the sort does not need to be
repeated.

Examples:
  face-sorter pipeline
  face-sorter pipeline --skip-enroll --concurrency 4
  face-sorter pipeline --skip-distribute`,
	Args: cobra.NoArgs,
	RunE: runPipeline,
}

func init() {
	rootCmd.AddCommand(pipelineCmd)

	addSortFlags(pipelineCmd)
	addDistributeFlags(pipelineCmd)
	pipelineCmd.Flags().Bool("skip-enroll", false, "Use the existing reference database")
	pipelineCmd.Flags().Bool("skip-distribute", false, "Stop after sorting")
	pipelineCmd.Flags().Bool("no-mirror", false, "Do not enroll mirrored photos")
}

func runPipeline(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	opts, err := sortOptionsFromFlags(cmd, cfg)
	if err != nil {
		return err
	}
	applyDistributeFlags(cmd, cfg)
	skipEnroll := mustGetBool(cmd, "skip-enroll")
	skipDistribute := mustGetBool(cmd, "skip-distribute")

	ctx, cancel := signalContext()
	defer cancel()

	store, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.close()

	if skipEnroll {
		fmt.Println("Step 1/3: enrollment skipped")
	} else {
		fmt.Println("Step 1/3: enroll")
		if _, err := enrollPeople(ctx, cfg, store, enroll.Options{Mirror: !mustGetBool(cmd, "no-mirror"), Model: constants.DefaultEmbeddingModel}); err != nil {
			return fmt.Errorf("enrollment failed: %w", err)
		}
	}

	fmt.Println("\nStep 2/3: sort")
	result, err := sortPhotos(ctx, cfg, store, opts)
	if err != nil {
		return err
	}
	if result.Cancelled {
		return ctx.Err()
	}

	if skipDistribute {
		fmt.Println("\nStep 3/3: distribution skipped")
		return nil
	}
	fmt.Println("\nStep 3/3: distribute")
	if _, err := distributeFolders(ctx, cfg, opts.OutputDir); err != nil {
		return fmt.Errorf("photos were sorted into %s but distribution failed: %w", opts.OutputDir, err)
	}
	return nil
}
