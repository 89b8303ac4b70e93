package facematch

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrDatabaseNotFound is returned when the reference database artifact is absent.
var ErrDatabaseNotFound = errors.New("reference database not found")

// ErrInvalidPersonName is returned for a person name that cannot be used as
// an output folder name.
var ErrInvalidPersonName = errors.New("invalid person name")

// ValidatePersonName checks that name is usable as a single folder inside the
// output directory and does not collide with the unknown folder.
func ValidatePersonName(name, unknownFolder string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return fmt.Errorf("%w: empty name", ErrInvalidPersonName)
	case name == "." || name == "..":
		return fmt.Errorf("%w: %q", ErrInvalidPersonName, name)
	case strings.ContainsAny(name, "/\\\x00"):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidPersonName, name)
	case unknownFolder != "" && strings.EqualFold(strings.TrimSpace(name), unknownFolder):
		return fmt.Errorf("%w: %q is reserved for unmatched photos", ErrInvalidPersonName, name)
	}
	return nil
}

// PersonRecord holds the ordered reference embeddings of one enrolled person.
type PersonRecord struct {
	Name       string
	References []Embedding
}

// ReferenceStore is the read-only set of enrolled people.
// People are kept sorted by name so iteration (and tie-breaking) is reproducible.
type ReferenceStore struct {
	people []PersonRecord
}

// NewReferenceStore builds a store from a name -> embeddings mapping.
// Empty names and empty vectors are dropped. The input is copied.
func NewReferenceStore(db map[string][]Embedding) *ReferenceStore {
	people := make([]PersonRecord, 0, len(db))
	for name, refs := range db {
		if name == "" {
			continue
		}
		kept := make([]Embedding, 0, len(refs))
		for _, ref := range refs {
			if len(ref) == 0 {
				continue
			}
			kept = append(kept, append(Embedding(nil), ref...))
		}
		people = append(people, PersonRecord{Name: name, References: kept})
	}

	sort.Slice(people, func(i, j int) bool {
		return people[i].Name < people[j].Name
	})

	return &ReferenceStore{people: people}
}

// Lookup returns every person record in deterministic order.
func (s *ReferenceStore) Lookup() []PersonRecord {
	if s == nil {
		return nil
	}
	return s.people
}

// Names returns the enrolled person names in sorted order.
func (s *ReferenceStore) Names() []string {
	names := make([]string, 0, s.Len())
	for _, p := range s.Lookup() {
		names = append(names, p.Name)
	}
	return names
}

// ValidateNames checks every enrolled name with ValidatePersonName.
func (s *ReferenceStore) ValidateNames(unknownFolder string) error {
	for _, name := range s.Names() {
		if err := ValidatePersonName(name, unknownFolder); err != nil {
			return err
		}
	}
	return nil
}

// Len returns the number of enrolled people.
func (s *ReferenceStore) Len() int {
	if s == nil {
		return 0
	}
	return len(s.people)
}

// ReferenceCount returns the total number of reference vectors.
func (s *ReferenceStore) ReferenceCount() int {
	count := 0
	for _, p := range s.Lookup() {
		count += len(p.References)
	}
	return count
}
