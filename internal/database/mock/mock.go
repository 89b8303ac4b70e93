// Package mock provides mock implementations of database interfaces for testing.
package mock

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/kozaktomas/face-sorter/internal/database"
	"github.com/kozaktomas/face-sorter/internal/facematch"
)

// MockReferenceWriter is a mock implementation of database.ReferenceWriter
type MockReferenceWriter struct {
	mu     sync.RWMutex
	people map[string][]database.StoredReference

	// Error injection
	LoadError   error
	ListError   error
	SaveError   error
	DeleteError error
}

// NewMockReferenceWriter creates a new mock reference writer
func NewMockReferenceWriter() *MockReferenceWriter {
	return &MockReferenceWriter{
		people: make(map[string][]database.StoredReference),
	}
}

// AddPerson adds references for a person to the mock store
func (m *MockReferenceWriter) AddPerson(name string, embeddings ...[]float32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, emb := range embeddings {
		m.people[name] = append(m.people[name], database.StoredReference{Person: name, Embedding: emb})
	}
}

// LoadReferences returns all references, ErrDatabaseNotFound when empty
func (m *MockReferenceWriter) LoadReferences(ctx context.Context) (map[string][]facematch.Embedding, error) {
	if m.LoadError != nil {
		return nil, m.LoadError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.people) == 0 {
		return nil, fmt.Errorf("%w: mock store is empty", facematch.ErrDatabaseNotFound)
	}
	var all []database.StoredReference
	for _, refs := range m.people {
		all = append(all, refs...)
	}
	return database.GroupReferences(all), nil
}

// ListPeople returns the enrolled people
func (m *MockReferenceWriter) ListPeople(ctx context.Context) ([]database.PersonSummary, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	db, err := m.LoadReferences(ctx)
	if err != nil {
		return nil, err
	}
	return database.Summarize(db), nil
}

// ReplaceReferences swaps the whole mock store
func (m *MockReferenceWriter) ReplaceReferences(ctx context.Context, refs map[string][]database.StoredReference) error {
	if m.SaveError != nil {
		return m.SaveError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.people = make(map[string][]database.StoredReference, len(refs))
	for person, stored := range refs {
		for _, r := range stored {
			r.Person = person
			m.people[person] = append(m.people[person], r)
		}
	}
	return nil
}

// People returns the names in the mock store, sorted
func (m *MockReferenceWriter) People() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.people))
	for name := range m.people {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DeletePerson removes a person
func (m *MockReferenceWriter) DeletePerson(ctx context.Context, person string) error {
	if m.DeleteError != nil {
		return m.DeleteError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.people[person]; !ok {
		return fmt.Errorf("person %q is not enrolled", person)
	}
	delete(m.people, person)
	return nil
}

// References returns the stored references of a person
func (m *MockReferenceWriter) References(person string) []database.StoredReference {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]database.StoredReference(nil), m.people[person]...)
}

// MockRunWriter is a mock implementation of database.RunWriter
type MockRunWriter struct {
	mu   sync.RWMutex
	runs map[string]database.RunRecord

	SaveError error
}

// NewMockRunWriter creates a new mock run writer
func NewMockRunWriter() *MockRunWriter {
	return &MockRunWriter{runs: make(map[string]database.RunRecord)}
}

// SaveRun stores a run
func (m *MockRunWriter) SaveRun(ctx context.Context, run database.RunRecord) error {
	if m.SaveError != nil {
		return m.SaveError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[run.ID] = run
	return nil
}

// GetRun returns a run by ID, nil if not found
func (m *MockRunWriter) GetRun(ctx context.Context, id string) (*database.RunRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	run, ok := m.runs[id]
	if !ok {
		return nil, nil
	}
	return &run, nil
}

// ListRuns returns runs newest first
func (m *MockRunWriter) ListRuns(ctx context.Context, limit int) ([]database.RunRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	runs := make([]database.RunRecord, 0, len(m.runs))
	for _, r := range m.runs {
		runs = append(runs, r)
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}
