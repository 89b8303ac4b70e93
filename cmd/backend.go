package cmd

import (
	"cmp"
	"context"
	"errors"
	"fmt"

	"github.com/kozaktomas/face-sorter/internal/config"
	"github.com/kozaktomas/face-sorter/internal/constants"
	"github.com/kozaktomas/face-sorter/internal/database"
	"github.com/kozaktomas/face-sorter/internal/database/mariadb"
	"github.com/kozaktomas/face-sorter/internal/database/postgres"
	"github.com/kozaktomas/face-sorter/internal/facematch"
	"github.com/kozaktomas/face-sorter/internal/vision"
)

// storage holds the reference backend selected by the configuration.
// runs is nil unless PostgreSQL is configured.
type storage struct {
	name  string
	refs  database.ReferenceWriter
	runs  database.RunWriter
	close func()
}

// openStorage picks PostgreSQL when DATABASE_URL is set, MariaDB when
// MARIADB_DSN is set and the reference artifact file otherwise.
func openStorage(ctx context.Context, cfg *config.Config) (*storage, error) {
	switch {
	case cfg.Database.URL != "":
		pool, err := postgres.Initialize(ctx, &cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
		}
		refs, err := database.GetReferenceWriter(ctx)
		if err != nil {
			pool.Close()
			return nil, err
		}
		runs, err := database.GetRunWriter(ctx)
		if err != nil {
			pool.Close()
			return nil, err
		}
		return &storage{name: "PostgreSQL", refs: refs, runs: runs, close: func() { _ = pool.Close() }}, nil

	case cfg.Database.MariaDBDSN != "":
		pool, err := mariadb.NewPool(cfg.Database.MariaDBDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize MariaDB: %w", err)
		}
		return &storage{name: "MariaDB", refs: mariadb.NewReferenceRepository(pool), close: func() { _ = pool.Close() }}, nil

	default:
		store := database.NewFileStore(cfg.Paths.ReferenceDB)
		return &storage{name: "file " + store.Path(), refs: store, close: func() {}}, nil
	}
}

// loadEngine reads the enrolled references and builds the decision engine.
func loadEngine(ctx context.Context, cfg *config.Config, refs database.ReferenceReader) (*facematch.Engine, error) {
	db, err := refs.LoadReferences(ctx)
	if err != nil {
		if errors.Is(err, facematch.ErrDatabaseNotFound) {
			return nil, fmt.Errorf("%w (run 'face-sorter enroll' first)", err)
		}
		return nil, err
	}

	store := facematch.NewReferenceStore(db)
	if store.Len() == 0 {
		return nil, fmt.Errorf("%w: no usable reference embeddings", facematch.ErrDatabaseNotFound)
	}
	if err := store.ValidateNames(cmp.Or(cfg.Matching.UnknownFolder, constants.DefaultUnknownFolder)); err != nil {
		return nil, fmt.Errorf("reference database: %w", err)
	}

	restorer := vision.NewRestorer(cfg.Restorer.URL, cfg.Restorer.Timeout)
	if restorer == nil {
		log.Warn("cli: RESTORER_URL is not set, doubtful matches will be rejected without rescue")
	}
	return facematch.NewEngine(store, restorer, cfg.Matching.Thresholds)
}

// newDetectors creates the low and high resolution detector clients.
func newDetectors(cfg *config.Config) facematch.Detectors {
	return vision.NewDetectors(
		cfg.Detector.URL,
		cfg.Matching.DetSize(facematch.ProfileLowRes),
		cfg.Matching.DetSize(facematch.ProfileHighRes),
		cfg.Detector.Timeout,
	)
}

// checkServices fails when the embedding service does not answer its health
// check. An unhealthy restorer is only logged; rescues then end as ignored faces.
func checkServices(ctx context.Context, cfg *config.Config) error {
	ctx, cancel := context.WithTimeout(ctx, constants.ServiceCheckTimeout)
	defer cancel()

	if err := vision.NewFaceClient(cfg.Detector.URL, 0, cfg.Detector.Timeout).Health(ctx); err != nil {
		return fmt.Errorf("embedding service is unavailable: %w", err)
	}
	if cfg.Restorer.URL == "" {
		return nil
	}
	if err := vision.NewRestoreClient(cfg.Restorer.URL, cfg.Restorer.Timeout).Health(ctx); err != nil {
		log.Warnf("cli: restoration service is unavailable, rescues will fail: %v", err)
	}
	return nil
}
