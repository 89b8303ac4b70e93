package facematch

import "math"

// CosineSimilarity computes the cosine similarity between two embedding vectors.
// The second return value is false when the vectors cannot be compared
// (different dimensions, empty, zero norm or non-finite values).
func CosineSimilarity(a, b Embedding) (float64, bool) {
	if len(a) != len(b) || len(a) == 0 {
		return 0, false
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0, false
	}

	similarity := dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
	if math.IsNaN(similarity) || math.IsInf(similarity, 0) {
		return 0, false
	}

	// Clamp to [-1, 1] to handle floating point errors
	return max(-1, min(1, similarity)), true
}

// BestMatch finds the enrolled person most similar to the query embedding.
// The first candidate wins ties: persons are visited by name, references in
// insertion order, and only a strictly greater similarity replaces the best.
func BestMatch(query Embedding, store *ReferenceStore) MatchResult {
	best := noMatch

	for _, person := range store.Lookup() {
		for _, ref := range person.References {
			sim, ok := CosineSimilarity(query, ref)
			if !ok {
				continue
			}
			if sim > best.Similarity {
				best = MatchResult{Person: person.Name, Similarity: sim}
			}
		}
	}

	return best
}
