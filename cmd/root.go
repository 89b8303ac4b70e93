package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-sorter/internal/config"
	"github.com/kozaktomas/face-sorter/internal/event"
)

var log = event.Log

var rootCmd = &cobra.Command{
	Use:   "face-sorter",
	Short: "Sort event photos into per-person folders by face",
	Long: `Face Sorter matches the faces in a folder of event photos against one
enrolled reference photo per known person and copies every photo into the
folder of each person recognised in it. Doubtful matches get a second chance
through a face restoration service before they are rejected.

Sorted folders can then be zipped and delivered to attendees.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().String("log-level", "", "Log level: trace, debug, info, warning, error (overrides LOG_LEVEL)")
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()

	cfg := config.Load()
	level := cfg.Log.Level
	if v, err := rootCmd.PersistentFlags().GetString("log-level"); err == nil && v != "" {
		level = v
	}
	event.Configure(level, cfg.Log.Format)
}

// loadConfig loads and validates the configuration.
func loadConfig() (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
