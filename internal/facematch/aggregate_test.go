package facematch

import (
	"math"
	"testing"
)

func accepted(person string, sim float64) FaceOutcome {
	return FaceOutcome{Kind: OutcomeAccepted, Person: person, Initial: MatchResult{Person: person, Similarity: sim}}
}

func rescued(person string, initial, final float64) FaceOutcome {
	return FaceOutcome{
		Kind:    OutcomeRescued,
		Person:  person,
		Initial: MatchResult{Person: person, Similarity: initial},
		Rescue:  &RescueResult{Step: RescueMatched, Match: MatchResult{Person: person, Similarity: final}},
	}
}

func ignored(sim float64, rescue *RescueResult) FaceOutcome {
	return FaceOutcome{Kind: OutcomeIgnored, Initial: MatchResult{Person: "someone", Similarity: sim}, Rescue: rescue}
}

func TestAggregatorFold(t *testing.T) {
	agg := NewAggregator()

	// Two faces of the same person credit one image.
	agg.Fold(ImageOutcome{
		Faces:   []FaceOutcome{accepted("alice", 0.8), accepted("alice", 0.6)},
		Persons: []string{"alice"},
	})
	// Accepted plus rescued counts as a clear match.
	agg.Fold(ImageOutcome{
		Faces:   []FaceOutcome{accepted("alice", 0.7), rescued("bob", 0.35, 0.5)},
		Persons: []string{"alice", "bob"},
	})
	agg.Fold(ImageOutcome{
		Faces:   []FaceOutcome{rescued("bob", 0.4, 0.6)},
		Persons: []string{"bob"},
	})
	agg.Fold(ImageOutcome{
		LowQualityFaces: 1,
		Faces:           []FaceOutcome{ignored(0.1, nil), ignored(0.35, &RescueResult{Step: RescueNoRestorer})},
	})
	agg.Fold(ImageOutcome{LowQualityFaces: 2})
	agg.Fold(ImageOutcome{})
	agg.Fail()

	s := agg.Snapshot()

	checks := []struct {
		name     string
		got      int
		expected int
	}{
		{"processed", s.Processed, 4},
		{"clear", s.ClearMatches, 2},
		{"rescued", s.RescuedMatches, 1},
		{"unknown", s.Unknown, 1},
		{"no faces", s.NoFaces, 2},
		{"failed", s.Failed, 1},
		{"faces", s.Faces, 7},
		{"low quality", s.LowQualityFaces, 3},
		{"rescue attempts", s.RescueAttempts, 3},
		{"rescue successes", s.RescueSuccesses, 2},
		{"alice", s.PerPerson["alice"], 2},
		{"bob", s.PerPerson["bob"], 2},
	}
	for _, c := range checks {
		if c.got != c.expected {
			t.Errorf("%s = %d, want %d", c.name, c.got, c.expected)
		}
	}

	if math.Abs(s.MatchRate-0.75) > 1e-9 {
		t.Errorf("match rate = %v, want 0.75", s.MatchRate)
	}
	if len(s.People) != 2 || s.People[0].Name != "alice" || s.People[1].Name != "bob" {
		t.Errorf("unexpected people order %v", s.People)
	}
	// Ignored faces do not contribute similarity samples.
	if s.Similarity.Count != 5 {
		t.Errorf("similarity samples = %d, want 5", s.Similarity.Count)
	}
	if s.Similarity.Max != 0.8 || s.Similarity.Min != 0.5 {
		t.Errorf("similarity range = [%v, %v], want [0.5, 0.8]", s.Similarity.Min, s.Similarity.Max)
	}
}

func TestSimilarityOnlyCountsCreditedFaces(t *testing.T) {
	agg := NewAggregator()
	agg.Fold(ImageOutcome{
		Faces:   []FaceOutcome{accepted("alice", 0.6), ignored(0.44, nil), ignored(0.2, &RescueResult{Step: RescueNoFaces})},
		Persons: []string{"alice"},
	})
	agg.Fold(ImageOutcome{Faces: []FaceOutcome{ignored(0.4, &RescueResult{Step: RescueLowQuality})}})

	s := agg.Snapshot()
	if s.Similarity.Count != 1 || s.Similarity.Mean != 0.6 {
		t.Errorf("expected a single 0.6 sample, got %+v", s.Similarity)
	}
}

func TestAggregatorMerge(t *testing.T) {
	a := NewAggregator()
	a.Fold(ImageOutcome{Faces: []FaceOutcome{accepted("alice", 0.9)}, Persons: []string{"alice"}})

	b := NewAggregator()
	b.Fold(ImageOutcome{Faces: []FaceOutcome{accepted("alice", 0.9)}, Persons: []string{"alice"}})
	b.Fold(ImageOutcome{Faces: []FaceOutcome{accepted("carol", 0.5)}, Persons: []string{"carol"}})
	b.Fold(ImageOutcome{})

	a.Merge(b)
	a.Merge(nil)
	s := a.Snapshot()

	if s.Processed != 3 || s.ClearMatches != 3 || s.NoFaces != 1 {
		t.Errorf("unexpected totals %+v", s.RunStatistics)
	}
	if s.PerPerson["alice"] != 2 || s.PerPerson["carol"] != 1 {
		t.Errorf("unexpected per-person tally %v", s.PerPerson)
	}
	if s.Similarity.Count != 3 {
		t.Errorf("similarity samples = %d, want 3", s.Similarity.Count)
	}
}

func TestSnapshotIsDetached(t *testing.T) {
	agg := NewAggregator()
	agg.Fold(ImageOutcome{Faces: []FaceOutcome{accepted("alice", 0.9)}, Persons: []string{"alice"}})

	s := agg.Snapshot()
	s.PerPerson["alice"] = 100

	if agg.Snapshot().PerPerson["alice"] != 1 {
		t.Error("snapshot shares the per-person map")
	}
}

func TestEmptySnapshot(t *testing.T) {
	s := NewAggregator().Snapshot()
	if s.MatchRate != 0 || s.Similarity.Count != 0 || len(s.People) != 0 {
		t.Errorf("expected empty summary, got %+v", s)
	}
}
