package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-sorter/internal/config"
	"github.com/kozaktomas/face-sorter/internal/distribute"
)

var distributeCmd = &cobra.Command{
	Use:   "distribute",
	Short: "Send every person folder to its attendee",
	Long: `Zip every person folder of the output directory and post it to the
delivery webhook together with the attendee's email address.

Attendees are read from a CSV file with Name and Email columns. Folder names
are matched exactly first, then ignoring case and diacritics. Every attempt
is appended to the execution report CSV. The unknown folder is never sent.

Examples:
  face-sorter distribute
  face-sorter distribute --attendees guests.csv --output ./sorted`,
	Args: cobra.NoArgs,
	RunE: runDistribute,
}

func init() {
	rootCmd.AddCommand(distributeCmd)

	addDistributeFlags(distributeCmd)
	distributeCmd.Flags().String("output", "", "Folder with per-person folders (default OUTPUT_DIR)")
}

// addDistributeFlags registers the flags shared by distribute and pipeline.
func addDistributeFlags(cmd *cobra.Command) {
	cmd.Flags().String("attendees", "", "Attendees CSV (default ATTENDEES_CSV)")
	cmd.Flags().String("webhook", "", "Delivery webhook URL (default WEBHOOK_URL)")
	cmd.Flags().String("subject", "", "Mail subject (default MAIL_SUBJECT)")
}

func runDistribute(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyDistributeFlags(cmd, cfg)

	output := mustGetString(cmd, "output")
	if output == "" {
		output = cfg.Paths.OutputDir
	}

	ctx, cancel := signalContext()
	defer cancel()

	_, err = distributeFolders(ctx, cfg, output)
	return err
}

// applyDistributeFlags overrides the distribution settings set on the command line.
func applyDistributeFlags(cmd *cobra.Command, cfg *config.Config) {
	if v := mustGetString(cmd, "attendees"); v != "" {
		cfg.Distribute.AttendeesCSV = v
	}
	if v := mustGetString(cmd, "webhook"); v != "" {
		cfg.Distribute.WebhookURL = v
	}
	if v := mustGetString(cmd, "subject"); v != "" {
		cfg.Distribute.Subject = v
	}
}

// distributeFolders delivers the person folders of outputDir and prints the totals.
func distributeFolders(ctx context.Context, cfg *config.Config, outputDir string) (distribute.Stats, error) {
	dc := cfg.Distribute
	if dc.WebhookURL == "" {
		return distribute.Stats{}, errors.New("WEBHOOK_URL environment variable is required")
	}

	attendees, err := distribute.LoadAttendees(dc.AttendeesCSV)
	if err != nil {
		return distribute.Stats{}, err
	}
	fmt.Printf("Loaded %d attendees from %s\n", attendees.Len(), dc.AttendeesCSV)
	for _, skipped := range attendees.Skipped {
		fmt.Printf("  Skipped %s\n", skipped)
	}

	d := distribute.New(attendees, distribute.NewWebhookSender(dc.WebhookURL, dc.Timeout), distribute.NewReportWriter(dc.ReportCSV))
	stats, err := d.Run(ctx, distribute.Options{
		OutputDir:     outputDir,
		UnknownFolder: cfg.Matching.UnknownFolder,
		ZipDir:        dc.ZipDir,
		Subject:       dc.Subject,
	})
	if err != nil {
		return stats, fmt.Errorf("distribution failed: %w", err)
	}

	fmt.Println("\nDistribution summary")
	fmt.Printf("  Processed:  %d\n", stats.Processed)
	fmt.Printf("  Sent:       %d\n", stats.Sent)
	fmt.Printf("  Failed:     %d\n", stats.Failed)
	fmt.Printf("  Not found:  %d\n", stats.NotFound)
	fmt.Printf("  Empty:      %d\n", stats.Empty)
	fmt.Printf("Report: %s\n", dc.ReportCSV)
	return stats, nil
}
