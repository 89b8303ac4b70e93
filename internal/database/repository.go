package database

import (
	"context"

	"github.com/kozaktomas/face-sorter/internal/facematch"
)

// ReferenceReader provides read-only access to enrolled reference embeddings
type ReferenceReader interface {
	// LoadReferences returns every person's embeddings in insertion order.
	// Returns an error wrapping facematch.ErrDatabaseNotFound when nothing was enrolled.
	LoadReferences(ctx context.Context) (map[string][]facematch.Embedding, error)
	// ListPeople returns the enrolled people sorted by name
	ListPeople(ctx context.Context) ([]PersonSummary, error)
}

// ReferenceWriter provides write access to enrolled reference embeddings
type ReferenceWriter interface {
	ReferenceReader

	// ReplaceReferences swaps the whole database for refs, keyed by person.
	// People missing from refs are removed.
	ReplaceReferences(ctx context.Context, refs map[string][]StoredReference) error
	// DeletePerson removes a person and all their references
	DeletePerson(ctx context.Context, person string) error
}

// RunReader provides read-only access to stored run summaries
type RunReader interface {
	// GetRun returns a run by ID, nil if not found
	GetRun(ctx context.Context, id string) (*RunRecord, error)
	// ListRuns returns the most recent runs first
	ListRuns(ctx context.Context, limit int) ([]RunRecord, error)
}

// RunWriter provides write access to run summaries
type RunWriter interface {
	RunReader

	// SaveRun stores a finished run
	SaveRun(ctx context.Context, run RunRecord) error
}
