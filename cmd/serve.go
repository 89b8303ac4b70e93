package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-sorter/internal/metrics"
	"github.com/kozaktomas/face-sorter/internal/sorter"
	"github.com/kozaktomas/face-sorter/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Long: `Start the Face Sorter API server.

The server lists enrolled people, starts sorting runs over the configured
folders, streams their progress as server-sent events and exposes Prometheus
metrics on /metrics. Finished runs are stored when DATABASE_URL is set.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (default WEB_PORT or 8080)")
	serveCmd.Flags().String("host", "", "Host to bind to (default WEB_HOST or 0.0.0.0)")
	serveCmd.Flags().Duration("shutdown-timeout", 30*time.Second, "Time to wait for requests to finish on shutdown")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if port := mustGetInt(cmd, "port"); port > 0 {
		cfg.Web.Port = port
	}
	if host := mustGetString(cmd, "host"); host != "" {
		cfg.Web.Host = host
	}
	shutdownTimeout := mustGetDuration(cmd, "shutdown-timeout")

	ctx, cancel := signalContext()
	defer cancel()

	store, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.close()
	fmt.Printf("Using %s reference storage\n", store.name)
	if store.runs != nil {
		fmt.Println("Run history enabled (PostgreSQL)")
	}

	if err := checkServices(ctx, cfg); err != nil {
		log.Warnf("cli: %v, runs will fail until it is reachable", err)
	}

	detectors := newDetectors(cfg)
	server := web.NewServer(cfg, web.Dependencies{
		References: store.refs,
		Runs:       store.runs,
		NewSorter: func(ctx context.Context) (*sorter.Sorter, error) {
			engine, err := loadEngine(ctx, cfg, store.refs)
			if err != nil {
				return nil, err
			}
			return sorter.New(engine, detectors), nil
		},
		Metrics: metrics.NewExporter(),
	})

	go func() {
		<-ctx.Done()
		fmt.Println("\nShutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Errorf("cli: error during shutdown: %v", err)
		}
	}()

	fmt.Printf("Starting Face Sorter API on http://%s:%d\n", cfg.Web.Host, cfg.Web.Port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
