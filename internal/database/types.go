package database

import (
	"maps"
	"slices"
	"time"

	"github.com/kozaktomas/face-sorter/internal/facematch"
)

// StoredReference is one enrolled reference embedding.
type StoredReference struct {
	ID        int64
	Person    string
	Source    string // enrollment photo file name
	Mirrored  bool   // embedding of the horizontally flipped photo
	Embedding []float32
	DetScore  float64
	Model     string
	CreatedAt time.Time
}

// PersonSummary describes one enrolled person.
type PersonSummary struct {
	Name       string    `json:"name"`
	References int       `json:"references"`
	Dim        int       `json:"dim"`
	UpdatedAt  time.Time `json:"updated_at,omitzero"`
}

// RunRecord is the persisted result of one sorting run.
type RunRecord struct {
	ID         string            `json:"id"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
	InputDir   string            `json:"input_dir"`
	OutputDir  string            `json:"output_dir"`
	Cancelled  bool              `json:"cancelled"`
	Summary    facematch.Summary `json:"summary"`
}

// GroupReferences converts stored rows into the mapping facematch ingests.
// Rows are expected in insertion order.
func GroupReferences(refs []StoredReference) map[string][]facematch.Embedding {
	db := make(map[string][]facematch.Embedding)
	for _, r := range refs {
		if r.Person == "" || len(r.Embedding) == 0 {
			continue
		}
		db[r.Person] = append(db[r.Person], facematch.Embedding(r.Embedding))
	}
	return db
}

// Summarize counts references per person, sorted by name.
func Summarize(db map[string][]facematch.Embedding) []PersonSummary {
	store := facematch.NewReferenceStore(db)
	people := make([]PersonSummary, 0, store.Len())
	for _, p := range store.Lookup() {
		s := PersonSummary{Name: p.Name, References: len(p.References)}
		if len(p.References) > 0 {
			s.Dim = len(p.References[0])
		}
		people = append(people, s)
	}
	return people
}

// SortedPeople returns the person names of refs in lexicographic order.
func SortedPeople(refs map[string][]StoredReference) []string {
	return slices.Sorted(maps.Keys(refs))
}
