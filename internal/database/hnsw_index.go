package database

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/coder/hnsw"

	"github.com/kozaktomas/face-sorter/internal/constants"
	"github.com/kozaktomas/face-sorter/internal/facematch"
)

// HNSW index parameters for reference embeddings
const (
	// HNSWMaxNeighbors (M) is the maximum number of neighbors per node.
	// Higher values improve recall but increase memory and build time.
	HNSWMaxNeighbors = 16

	// HNSWSearchMultiplier is the factor to request more candidates from HNSW
	// so that k distinct people survive the per-person collapse.
	HNSWSearchMultiplier = 3
)

// HNSWIndexMetadata stores metadata for validating cached HNSW indexes.
type HNSWIndexMetadata struct {
	ReferenceCount int       `json:"reference_count"`
	People         int       `json:"people"`
	BuildTime      time.Time `json:"build_time"`
	Version        int       `json:"version"` // For future compatibility
}

const hnswMetadataVersion = 1

// indexedReference maps an HNSW node back to its owner.
type indexedReference struct {
	Person string
	Index  int // position within the person's references
}

// Candidate is one person returned by an identify search.
type Candidate struct {
	Person     string  `json:"person"`
	Similarity float64 `json:"similarity"`
}

// ReferenceIndex is an approximate nearest neighbour index over all reference
// embeddings, used to list the top candidates for a face.
type ReferenceIndex struct {
	graph      *hnsw.Graph[int64]
	savedGraph *hnsw.SavedGraph[int64] // For persistence
	refs       map[int64]indexedReference
	mu         sync.RWMutex
}

// NewReferenceIndex creates a new empty index.
func NewReferenceIndex() *ReferenceIndex {
	return &ReferenceIndex{refs: make(map[int64]indexedReference)}
}

func newGraph() *hnsw.Graph[int64] {
	g := hnsw.NewGraph[int64]()
	g.M = HNSWMaxNeighbors
	g.Ml = 1.0 / float64(HNSWMaxNeighbors) // Standard HNSW formula
	g.Distance = hnsw.CosineDistance
	g.EfSearch = constants.HNSWEfSearch
	return g
}

// Build indexes every reference of the store.
// Vectors whose dimension differs from the first one are skipped.
func (h *ReferenceIndex) Build(store *facematch.ReferenceStore) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.graph = nil
	h.savedGraph = nil
	h.refs = make(map[int64]indexedReference, store.ReferenceCount())

	dim := 0
	var id int64
	for _, person := range store.Lookup() {
		for i, ref := range person.References {
			if dim == 0 {
				dim = len(ref)
			}
			if len(ref) != dim {
				continue
			}
			if h.graph == nil {
				h.graph = newGraph()
			}
			id++
			h.graph.Add(hnsw.MakeNode(id, []float32(ref)))
			h.refs[id] = indexedReference{Person: person.Name, Index: i}
		}
	}
}

// Search returns up to k people closest to the query, best first.
// Each person appears once with their best similarity.
func (h *ReferenceIndex) Search(query facematch.Embedding, k int) ([]Candidate, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.graph == nil && h.savedGraph == nil {
		return nil, errors.New("index not initialized")
	}
	if k <= 0 {
		return nil, nil
	}

	var neighbors []hnsw.Node[int64]
	if h.savedGraph != nil {
		neighbors = h.savedGraph.Search([]float32(query), k*HNSWSearchMultiplier)
	} else {
		neighbors = h.graph.Search([]float32(query), k*HNSWSearchMultiplier)
	}

	best := make(map[string]float64)
	for _, n := range neighbors {
		ref, ok := h.refs[n.Key]
		if !ok {
			continue
		}
		sim, ok := facematch.CosineSimilarity(query, facematch.Embedding(n.Value))
		if !ok {
			continue
		}
		if prev, seen := best[ref.Person]; !seen || sim > prev {
			best[ref.Person] = sim
		}
	}

	candidates := make([]Candidate, 0, len(best))
	for person, sim := range best {
		candidates = append(candidates, Candidate{Person: person, Similarity: sim})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Similarity != candidates[j].Similarity {
			return candidates[i].Similarity > candidates[j].Similarity
		}
		return candidates[i].Person < candidates[j].Person
	})
	if len(candidates) > k {
		candidates = candidates[:k]
	}
	return candidates, nil
}

// Count returns the number of indexed references.
func (h *ReferenceIndex) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.refs)
}

// IsEmpty returns true if the index has no graph data loaded.
func (h *ReferenceIndex) IsEmpty() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.graph == nil && h.savedGraph == nil
}

// Save persists the graph to path, the node owners to path.refs and
// the metadata to path.meta.
func (h *ReferenceIndex) Save(path string) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.graph == nil && h.savedGraph == nil {
		// Remove existing files if index is empty (best-effort cleanup).
		_ = os.Remove(path)
		_ = os.Remove(path + ".meta")
		_ = os.Remove(path + ".refs")
		return nil
	}

	f, err := os.Create(path) //nolint:gosec // path is from trusted config
	if err != nil {
		return fmt.Errorf("failed to create HNSW index file: %w", err)
	}
	if h.savedGraph != nil {
		err = h.savedGraph.Export(f)
	} else {
		err = h.graph.Export(f)
	}
	_ = f.Close()
	if err != nil {
		return fmt.Errorf("failed to export HNSW graph: %w", err)
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(h.refs); err != nil {
		return fmt.Errorf("failed to encode references: %w", err)
	}
	if err := os.WriteFile(path+".refs", buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("failed to write references file: %w", err)
	}

	people := make(map[string]bool)
	for _, r := range h.refs {
		people[r.Person] = true
	}
	meta, err := json.Marshal(HNSWIndexMetadata{
		ReferenceCount: len(h.refs),
		People:         len(people),
		BuildTime:      time.Now(),
		Version:        hnswMetadataVersion,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := os.WriteFile(path+".meta", meta, 0o600); err != nil {
		return fmt.Errorf("failed to write metadata file: %w", err)
	}

	log.Debugf("hnsw: saved %d references to %s", len(h.refs), path)
	return nil
}

// LoadHNSWMetadata loads metadata from a separate .meta file.
func LoadHNSWMetadata(path string) (HNSWIndexMetadata, error) {
	var metadata HNSWIndexMetadata

	data, err := os.ReadFile(path + ".meta") //nolint:gosec // path is from trusted config
	if err != nil {
		return metadata, fmt.Errorf("failed to read metadata file: %w", err)
	}

	if err := json.Unmarshal(data, &metadata); err != nil {
		return metadata, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}

	return metadata, nil
}

// Load restores a saved index. It fails when the saved index does not hold
// exactly referenceCount vectors, so callers can rebuild a stale cache.
func (h *ReferenceIndex) Load(path string, referenceCount int) error {
	meta, err := LoadHNSWMetadata(path)
	if err != nil {
		return err
	}
	if meta.Version != hnswMetadataVersion || meta.ReferenceCount != referenceCount {
		return fmt.Errorf("HNSW index at %s is stale (%d references, expected %d)", path, meta.ReferenceCount, referenceCount)
	}

	saved, err := hnsw.LoadSavedGraph[int64](path)
	if err != nil {
		return fmt.Errorf("failed to load HNSW index: %w", err)
	}

	data, err := os.ReadFile(path + ".refs") //nolint:gosec // path is from trusted config
	if err != nil {
		return fmt.Errorf("failed to read references file: %w", err)
	}
	var refs map[int64]indexedReference
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&refs); err != nil {
		return fmt.Errorf("failed to decode references: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.graph = nil
	h.savedGraph = saved
	h.refs = refs
	return nil
}
