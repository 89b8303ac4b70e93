package cmd

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-sorter/internal/config"
	"github.com/kozaktomas/face-sorter/internal/database"
	"github.com/kozaktomas/face-sorter/internal/event"
	"github.com/kozaktomas/face-sorter/internal/facematch"
)

func init() {
	event.Silence()
}

func newSortCommand(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	c := &cobra.Command{Use: "test"}
	addSortFlags(c)
	if err := c.Flags().Parse(args); err != nil {
		t.Fatal(err)
	}
	return c
}

func TestSortOptionsFromFlags(t *testing.T) {
	cfg := &config.Config{
		Paths:    config.PathsConfig{InputDir: "in", OutputDir: "out"},
		Matching: config.MatchingConfig{UnknownFolder: "Unknown"},
	}

	opts, err := sortOptionsFromFlags(newSortCommand(t), cfg)
	if err != nil {
		t.Fatal(err)
	}
	if opts.InputDir != "in" || opts.OutputDir != "out" || opts.Concurrency != 1 {
		t.Errorf("unexpected defaults %+v", opts)
	}

	opts, err = sortOptionsFromFlags(newSortCommand(t, "--input", "event", "--concurrency", "4"), cfg)
	if err != nil {
		t.Fatal(err)
	}
	if opts.InputDir != "event" || opts.Concurrency != 4 {
		t.Errorf("flags not applied: %+v", opts)
	}

	if _, err := sortOptionsFromFlags(newSortCommand(t, "--concurrency", "0"), cfg); err == nil {
		t.Error("expected error for zero workers")
	}
}

func TestOpenStorageDefaultsToFile(t *testing.T) {
	cfg := &config.Config{Paths: config.PathsConfig{ReferenceDB: filepath.Join(t.TempDir(), "refs.json")}}

	store, err := openStorage(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer store.close()

	if store.runs != nil {
		t.Error("file storage has no run history")
	}
	if _, err := loadEngine(context.Background(), cfg, store.refs); err == nil {
		t.Error("expected missing reference database error")
	}
}

func TestLoadEngineRejectsUnsafeNames(t *testing.T) {
	for _, name := range []string{"Unknown", "../outside"} {
		t.Run(name, func(t *testing.T) {
			store := database.NewFileStore(filepath.Join(t.TempDir(), "refs.json"))
			refs := map[string][]database.StoredReference{
				"Alice": {{Embedding: []float32{1, 0}}},
				name:    {{Embedding: []float32{0, 1}}},
			}
			if err := store.ReplaceReferences(context.Background(), refs); err != nil {
				t.Fatal(err)
			}

			cfg := &config.Config{Matching: config.MatchingConfig{Thresholds: facematch.DefaultThresholds(), UnknownFolder: "Unknown"}}
			if _, err := loadEngine(context.Background(), cfg, store); !errors.Is(err, facematch.ErrInvalidPersonName) {
				t.Errorf("expected ErrInvalidPersonName, got %v", err)
			}
		})
	}
}

func TestReferenceIndexPersists(t *testing.T) {
	store := facematch.NewReferenceStore(map[string][]facematch.Embedding{
		"Alice": {{1, 0, 0}},
		"Bob":   {{0, 1, 0}},
	})
	cfg := &config.Config{Database: config.DatabaseConfig{HNSWIndexPath: filepath.Join(t.TempDir(), "refs.hnsw")}}

	built := referenceIndex(cfg, store)
	if built == nil || built.Count() != 2 {
		t.Fatalf("expected index with 2 references, got %v", built)
	}

	loaded := referenceIndex(cfg, store)
	candidates, err := loaded.Search(facematch.Embedding{1, 0, 0}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(candidates) != 1 || candidates[0].Person != "Alice" {
		t.Errorf("unexpected candidates %+v", candidates)
	}
}

func healthServer(t *testing.T, status int) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestCheckServices(t *testing.T) {
	up := healthServer(t, http.StatusOK)
	down := healthServer(t, http.StatusServiceUnavailable)

	tests := []struct {
		name     string
		detector string
		restorer string
		wantErr  bool
	}{
		{"healthy detector", up, "", false},
		{"healthy detector and restorer", up, up, false},
		{"unhealthy restorer only warns", up, down, false},
		{"unhealthy detector", down, up, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{
				Detector: config.DetectorConfig{URL: tt.detector, Timeout: time.Second},
				Restorer: config.RestorerConfig{URL: tt.restorer, Timeout: time.Second},
			}
			err := checkServices(context.Background(), cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("checkServices() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
