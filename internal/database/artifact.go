package database

import (
	"bytes"
	"context"
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/kozaktomas/face-sorter/internal/facematch"
)

// FileStore keeps the reference database in a single file written by enrollment.
// Files ending in .json hold a JSON object of name -> vector or list of vectors,
// anything else is a gob-encoded map of name -> list of vectors.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore creates a file-backed reference store. The file is only read on demand.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the artifact location.
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) isJSON() bool {
	return strings.EqualFold(filepath.Ext(s.path), ".json")
}

// read returns the stored mapping; a missing file is ErrDatabaseNotFound.
func (s *FileStore) read() (map[string][][]float32, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", facematch.ErrDatabaseNotFound, s.path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read reference database: %w", err)
	}

	if s.isJSON() {
		return decodeJSONReferences(data)
	}

	var db map[string][][]float32
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&db); err != nil {
		return nil, fmt.Errorf("failed to decode reference database: %w", err)
	}
	return db, nil
}

// decodeJSONReferences accepts both a single vector and a list of vectors per person.
func decodeJSONReferences(data []byte) (map[string][][]float32, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode reference database: %w", err)
	}

	db := make(map[string][][]float32, len(raw))
	for name, msg := range raw {
		var many [][]float32
		if err := json.Unmarshal(msg, &many); err == nil {
			db[name] = many
			continue
		}
		var one []float32
		if err := json.Unmarshal(msg, &one); err != nil {
			return nil, fmt.Errorf("invalid embeddings for %q: %w", name, err)
		}
		db[name] = [][]float32{one}
	}
	return db, nil
}

// write replaces the artifact atomically.
func (s *FileStore) write(db map[string][][]float32) error {
	var buf bytes.Buffer
	if s.isJSON() {
		enc := json.NewEncoder(&buf)
		if err := enc.Encode(db); err != nil {
			return fmt.Errorf("failed to encode reference database: %w", err)
		}
	} else if err := gob.NewEncoder(&buf).Encode(db); err != nil {
		return fmt.Errorf("failed to encode reference database: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("failed to write reference database: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace reference database: %w", err)
	}
	return nil
}

// LoadReferences implements ReferenceReader.
func (s *FileStore) LoadReferences(_ context.Context) (map[string][]facematch.Embedding, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := s.read()
	if err != nil {
		return nil, err
	}

	db := make(map[string][]facematch.Embedding, len(raw))
	for name, vectors := range raw {
		for _, v := range vectors {
			db[name] = append(db[name], facematch.Embedding(v))
		}
	}
	return db, nil
}

// ListPeople implements ReferenceReader.
func (s *FileStore) ListPeople(ctx context.Context) ([]PersonSummary, error) {
	db, err := s.LoadReferences(ctx)
	if err != nil {
		return nil, err
	}
	return Summarize(db), nil
}

// ReplaceReferences implements ReferenceWriter. The artifact is rewritten from scratch.
func (s *FileStore) ReplaceReferences(_ context.Context, refs map[string][]StoredReference) error {
	db := make(map[string][][]float32, len(refs))
	for person, stored := range refs {
		if person == "" {
			return errors.New("person name is required")
		}
		vectors := make([][]float32, 0, len(stored))
		for _, r := range stored {
			if len(r.Embedding) > 0 {
				vectors = append(vectors, r.Embedding)
			}
		}
		db[person] = vectors
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(db)
}

// DeletePerson implements ReferenceWriter.
func (s *FileStore) DeletePerson(_ context.Context, person string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	db, err := s.read()
	if err != nil {
		return err
	}
	if _, ok := db[person]; !ok {
		return fmt.Errorf("person %q is not enrolled", person)
	}
	delete(db, person)
	return s.write(db)
}
