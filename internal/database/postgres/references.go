package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/kozaktomas/face-sorter/internal/database"
	"github.com/kozaktomas/face-sorter/internal/facematch"
)

// ReferenceRepository implements database.ReferenceWriter on pgvector.
type ReferenceRepository struct {
	pool *Pool
}

// NewReferenceRepository creates a repository on the pool.
func NewReferenceRepository(pool *Pool) *ReferenceRepository {
	return &ReferenceRepository{pool: pool}
}

// LoadReferences returns every reference grouped by person in insertion order.
func (r *ReferenceRepository) LoadReferences(ctx context.Context) (map[string][]facematch.Embedding, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT person_name, embedding
		FROM reference_embeddings
		ORDER BY person_name, id
	`)
	if err != nil {
		return nil, fmt.Errorf("load references: %w", err)
	}
	defer rows.Close()

	var refs []database.StoredReference
	for rows.Next() {
		var ref database.StoredReference
		var vec pgvector.Vector
		if err := rows.Scan(&ref.Person, &vec); err != nil {
			return nil, fmt.Errorf("scan reference: %w", err)
		}
		ref.Embedding = vec.Slice()
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate references: %w", err)
	}

	if len(refs) == 0 {
		return nil, fmt.Errorf("%w: no references in PostgreSQL", facematch.ErrDatabaseNotFound)
	}
	return database.GroupReferences(refs), nil
}

// ListPeople returns enrolled people with their reference counts.
func (r *ReferenceRepository) ListPeople(ctx context.Context) ([]database.PersonSummary, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT p.name, COUNT(e.id), COALESCE(MAX(vector_dims(e.embedding)), 0), p.updated_at
		FROM people p
		LEFT JOIN reference_embeddings e ON e.person_name = p.name
		GROUP BY p.name, p.updated_at
		ORDER BY p.name
	`)
	if err != nil {
		return nil, fmt.Errorf("list people: %w", err)
	}
	defer rows.Close()

	var people []database.PersonSummary
	for rows.Next() {
		var p database.PersonSummary
		if err := rows.Scan(&p.Name, &p.References, &p.Dim, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan person: %w", err)
		}
		people = append(people, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate people: %w", err)
	}
	return people, nil
}

// ReplaceReferences swaps every person and reference in one transaction.
func (r *ReferenceRepository) ReplaceReferences(ctx context.Context, refs map[string][]database.StoredReference) error {
	tx, err := r.pool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	// References cascade.
	if _, err := tx.ExecContext(ctx, "DELETE FROM people"); err != nil {
		return fmt.Errorf("delete old people: %w", err)
	}

	for _, person := range database.SortedPeople(refs) {
		if person == "" {
			return errors.New("person name is required")
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO people (name) VALUES ($1)", person); err != nil {
			return fmt.Errorf("insert person: %w", err)
		}
		for _, ref := range refs[person] {
			if len(ref.Embedding) == 0 {
				continue
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO reference_embeddings (person_name, source, mirrored, embedding, det_score, model)
				VALUES ($1, $2, $3, $4, $5, $6)
			`, person, ref.Source, ref.Mirrored, pgvector.NewVector(ref.Embedding), ref.DetScore, ref.Model); err != nil {
				return fmt.Errorf("insert reference: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit references: %w", err)
	}
	return nil
}

// DeletePerson removes a person; references cascade.
func (r *ReferenceRepository) DeletePerson(ctx context.Context, person string) error {
	res, err := r.pool.Exec(ctx, "DELETE FROM people WHERE name = $1", person)
	if err != nil {
		return fmt.Errorf("delete person: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("person %q is not enrolled", person)
	}
	return nil
}
