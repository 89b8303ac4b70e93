//go:build integration

package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/kozaktomas/face-sorter/internal/config"
	"github.com/kozaktomas/face-sorter/internal/database"
	"github.com/kozaktomas/face-sorter/internal/facematch"
)

func setupTestContainer(t *testing.T) (*Pool, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "pgvector/pgvector:pg16",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("Docker not available or container failed to start, skipping integration test: %v", err)
		return nil, func() {}
	}
	if container == nil {
		t.Skip("Docker not available, skipping integration test")
		return nil, func() {}
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	dbURL := fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port())

	cfg := &config.DatabaseConfig{
		URL:          dbURL,
		MaxOpenConns: 5,
		MaxIdleConns: 2,
	}

	pool, err := NewPool(cfg)
	if err != nil {
		container.Terminate(ctx)
		t.Fatalf("Failed to create pool: %v", err)
	}

	// Run migrations
	if err := pool.Migrate(ctx); err != nil {
		pool.Close()
		container.Terminate(ctx)
		t.Fatalf("Failed to run migrations: %v", err)
	}

	cleanup := func() {
		pool.Close()
		container.Terminate(ctx)
	}

	return pool, cleanup
}

func TestReferenceRepository(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	repo := NewReferenceRepository(pool)

	t.Run("EmptyIsNotFound", func(t *testing.T) {
		_, err := repo.LoadReferences(ctx)
		if !errors.Is(err, facematch.ErrDatabaseNotFound) {
			t.Errorf("expected ErrDatabaseNotFound, got %v", err)
		}
	})

	t.Run("ReplaceAndLoad", func(t *testing.T) {
		refs := map[string][]database.StoredReference{
			"Alice": {
				{Source: "Alice.jpg", Embedding: []float32{1, 0, 0}, DetScore: 0.9},
				{Source: "Alice.jpg", Mirrored: true, Embedding: []float32{0.9, 0.1, 0}, DetScore: 0.88},
			},
			"Bob":   {{Embedding: []float32{0, 1, 0}}},
			"Carol": {{Embedding: []float32{0, 0, 1}}},
		}
		if err := repo.ReplaceReferences(ctx, refs); err != nil {
			t.Fatalf("ReplaceReferences failed: %v", err)
		}

		db, err := repo.LoadReferences(ctx)
		if err != nil {
			t.Fatalf("LoadReferences failed: %v", err)
		}
		if len(db["Alice"]) != 2 || len(db["Bob"]) != 1 || len(db["Carol"]) != 1 {
			t.Fatalf("unexpected reference counts: %d, %d, %d", len(db["Alice"]), len(db["Bob"]), len(db["Carol"]))
		}
		// Insertion order is preserved.
		if db["Alice"][0][0] != 1 || db["Alice"][1][0] != 0.9 {
			t.Errorf("unexpected order %v", db["Alice"])
		}
	})

	t.Run("ReplaceDropsMissingPeople", func(t *testing.T) {
		refs := map[string][]database.StoredReference{
			"Alice": {{Embedding: []float32{0, 0, 1}}},
			"Bob":   {{Embedding: []float32{0, 1, 0}}},
		}
		if err := repo.ReplaceReferences(ctx, refs); err != nil {
			t.Fatalf("ReplaceReferences failed: %v", err)
		}
		db, err := repo.LoadReferences(ctx)
		if err != nil {
			t.Fatalf("LoadReferences failed: %v", err)
		}
		if len(db["Alice"]) != 1 || db["Alice"][0][2] != 1 {
			t.Errorf("expected replaced reference, got %v", db["Alice"])
		}
		if _, ok := db["Carol"]; ok {
			t.Error("Carol should have been removed")
		}
	})

	t.Run("ListPeople", func(t *testing.T) {
		people, err := repo.ListPeople(ctx)
		if err != nil {
			t.Fatalf("ListPeople failed: %v", err)
		}
		if len(people) != 2 || people[0].Name != "Alice" || people[1].Name != "Bob" {
			t.Fatalf("unexpected people %+v", people)
		}
		if people[0].Dim != 3 || people[0].References != 1 {
			t.Errorf("unexpected summary %+v", people[0])
		}
	})

	t.Run("DeletePerson", func(t *testing.T) {
		if err := repo.DeletePerson(ctx, "Bob"); err != nil {
			t.Fatalf("DeletePerson failed: %v", err)
		}
		if err := repo.DeletePerson(ctx, "Bob"); err == nil {
			t.Error("expected error deleting a missing person")
		}
		db, err := repo.LoadReferences(ctx)
		if err != nil {
			t.Fatalf("LoadReferences failed: %v", err)
		}
		if _, ok := db["Bob"]; ok {
			t.Error("Bob should have been removed")
		}
	})
}

func TestRunRepository(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	repo := NewRunRepository(pool)

	started := time.Now().UTC().Truncate(time.Second)
	older := database.RunRecord{
		ID:         uuid.NewString(),
		StartedAt:  started.Add(-time.Hour),
		FinishedAt: started.Add(-50 * time.Minute),
		InputDir:   "input",
		OutputDir:  "output",
	}
	newer := database.RunRecord{
		ID:         uuid.NewString(),
		StartedAt:  started,
		FinishedAt: started.Add(time.Minute),
		InputDir:   "input",
		OutputDir:  "output",
		Cancelled:  true,
	}
	newer.Summary.Processed = 12
	newer.Summary.ClearMatches = 9

	for _, run := range []database.RunRecord{older, newer} {
		if err := repo.SaveRun(ctx, run); err != nil {
			t.Fatalf("SaveRun failed: %v", err)
		}
	}

	got, err := repo.GetRun(ctx, newer.ID)
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if got == nil || !got.Cancelled || got.Summary.Processed != 12 || got.Summary.ClearMatches != 9 {
		t.Errorf("unexpected run %+v", got)
	}

	missing, err := repo.GetRun(ctx, uuid.NewString())
	if err != nil || missing != nil {
		t.Errorf("expected nil run for unknown ID, got %+v, %v", missing, err)
	}

	runs, err := repo.ListRuns(ctx, 10)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != newer.ID {
		t.Errorf("expected newest run first, got %+v", runs)
	}
}

func TestMigrationsApplied(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	versions, err := pool.MigrationsApplied(context.Background())
	if err != nil {
		t.Fatalf("MigrationsApplied failed: %v", err)
	}
	if len(versions) != 2 || versions[0] != "001_references.sql" {
		t.Errorf("unexpected migrations %v", versions)
	}
}
