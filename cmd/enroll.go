package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-sorter/internal/config"
	"github.com/kozaktomas/face-sorter/internal/constants"
	"github.com/kozaktomas/face-sorter/internal/enroll"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll",
	Short: "Build the reference database from known people photos",
	Long: `Enroll one reference photo per known person.

Every <Person Name>.jpg, .jpeg or .png file of the known people folder
is sent to the face detector. The best face of the photo and of its mirrored
copy become that person's reference embeddings. Photos without a detectable
face are skipped and listed at the end.

Examples:
  face-sorter enroll
  face-sorter enroll --dir ./known_people --no-mirror`,
	Args: cobra.NoArgs,
	RunE: runEnroll,
}

func init() {
	rootCmd.AddCommand(enrollCmd)

	enrollCmd.Flags().String("dir", "", "Folder with one photo per person (default KNOWN_PEOPLE_DIR)")
	enrollCmd.Flags().Bool("no-mirror", false, "Do not enroll the mirrored photo")
	enrollCmd.Flags().String("model", constants.DefaultEmbeddingModel, "Embedding model name recorded with the references")
}

func runEnroll(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	store, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.close()

	opts := enroll.Options{
		Dir:    mustGetString(cmd, "dir"),
		Mirror: !mustGetBool(cmd, "no-mirror"),
		Model:  mustGetString(cmd, "model"),
	}
	_, err = enrollPeople(ctx, cfg, store, opts)
	return err
}

// enrollPeople runs enrollment and prints what was enrolled and skipped.
func enrollPeople(ctx context.Context, cfg *config.Config, store *storage, opts enroll.Options) (*enroll.Result, error) {
	if opts.Dir == "" {
		opts.Dir = cfg.Paths.KnownPeopleDir
	}
	if opts.UnknownFolder == "" {
		opts.UnknownFolder = cfg.Matching.UnknownFolder
	}

	if err := checkServices(ctx, cfg); err != nil {
		return nil, err
	}
	fmt.Printf("Enrolling people from %s into %s\n", opts.Dir, store.name)

	enroller := enroll.New(newDetectors(cfg).HighRes, store.refs)
	result, err := enroller.Run(ctx, opts)
	if err != nil {
		if errors.Is(err, enroll.ErrKnownPeopleDirNotFound) {
			return nil, fmt.Errorf("%w: %s", err, opts.Dir)
		}
		if result == nil {
			return nil, err
		}
		printEnrollResult(result)
		return result, err
	}

	printEnrollResult(result)
	if len(result.Enrolled) == 0 {
		return result, errors.New("no person could be enrolled")
	}
	return result, nil
}

func printEnrollResult(result *enroll.Result) {
	fmt.Printf("\nEnrolled: %d\n", len(result.Enrolled))
	for _, p := range result.Enrolled {
		fmt.Printf("  %s (%d references)\n", p.Name, p.References)
	}
	if len(result.Skipped) > 0 {
		fmt.Printf("Skipped: %d\n", len(result.Skipped))
		for _, p := range result.Skipped {
			fmt.Printf("  %s: %s\n", p.File, p.Err)
		}
	}
}
