package mariadb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kozaktomas/face-sorter/internal/database"
	"github.com/kozaktomas/face-sorter/internal/facematch"
)

// ReferenceRepository implements database.ReferenceWriter on MariaDB.
// Each row holds either a single vector [e1, ...] or a list of vectors
// [[e1, ...], ...] in embeddings_json, the same shapes PhotoPrism writes.
type ReferenceRepository struct {
	pool *Pool
}

// NewReferenceRepository creates a repository on the pool.
func NewReferenceRepository(pool *Pool) *ReferenceRepository {
	return &ReferenceRepository{pool: pool}
}

// decodeEmbeddings accepts both blob shapes.
func decodeEmbeddings(data []byte) ([][]float32, error) {
	var many [][]float32
	if err := json.Unmarshal(data, &many); err == nil {
		return many, nil
	}
	var one []float32
	if err := json.Unmarshal(data, &one); err != nil {
		return nil, err
	}
	return [][]float32{one}, nil
}

// LoadReferences returns every reference grouped by person in insertion order.
func (r *ReferenceRepository) LoadReferences(ctx context.Context) (map[string][]facematch.Embedding, error) {
	rows, err := r.pool.db.QueryContext(ctx, `
		SELECT person_name, embeddings_json
		FROM face_references
		ORDER BY person_name, id
	`)
	if err != nil {
		return nil, fmt.Errorf("load references: %w", err)
	}
	defer rows.Close()

	var refs []database.StoredReference
	for rows.Next() {
		var person string
		var blob []byte
		if err := rows.Scan(&person, &blob); err != nil {
			return nil, fmt.Errorf("scan reference: %w", err)
		}
		vectors, err := decodeEmbeddings(blob)
		if err != nil {
			return nil, fmt.Errorf("invalid embeddings for %q: %w", person, err)
		}
		for _, v := range vectors {
			refs = append(refs, database.StoredReference{Person: person, Embedding: v})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate references: %w", err)
	}

	if len(refs) == 0 {
		return nil, fmt.Errorf("%w: no references in MariaDB", facematch.ErrDatabaseNotFound)
	}
	return database.GroupReferences(refs), nil
}

// ListPeople returns enrolled people with their reference counts.
func (r *ReferenceRepository) ListPeople(ctx context.Context) ([]database.PersonSummary, error) {
	db, err := r.LoadReferences(ctx)
	if err != nil {
		return nil, err
	}
	return database.Summarize(db), nil
}

// ReplaceReferences swaps every reference in one transaction.
func (r *ReferenceRepository) ReplaceReferences(ctx context.Context, refs map[string][]database.StoredReference) error {
	tx, err := r.pool.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, "DELETE FROM face_references"); err != nil {
		return fmt.Errorf("delete old references: %w", err)
	}

	for _, person := range database.SortedPeople(refs) {
		if person == "" {
			return errors.New("person name is required")
		}
		for _, ref := range refs[person] {
			if len(ref.Embedding) == 0 {
				continue
			}
			data, err := json.Marshal(ref.Embedding)
			if err != nil {
				return fmt.Errorf("marshal embedding: %w", err)
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO face_references (person_name, source, mirrored, embeddings_json, det_score, model)
				VALUES (?, ?, ?, ?, ?, ?)
			`, person, ref.Source, ref.Mirrored, data, ref.DetScore, ref.Model); err != nil {
				return fmt.Errorf("insert reference: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit references: %w", err)
	}
	return nil
}

// DeletePerson removes all references of a person.
func (r *ReferenceRepository) DeletePerson(ctx context.Context, person string) error {
	res, err := r.pool.db.ExecContext(ctx, "DELETE FROM face_references WHERE person_name = ?", person)
	if err != nil {
		return fmt.Errorf("delete person: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("person %q is not enrolled", person)
	}
	return nil
}
