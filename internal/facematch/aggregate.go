package facematch

import (
	"sort"

	"github.com/montanaflynn/stats"
)

// RunStatistics are the counters of one sorting run.
// Image categories (clear, rescued, unknown, no faces) are mutually exclusive.
type RunStatistics struct {
	// Processed counts images with at least one gated face.
	Processed      int `json:"processed"`
	ClearMatches   int `json:"clear_matches"`
	RescuedMatches int `json:"rescued_matches"`
	Unknown        int `json:"unknown"`
	NoFaces        int `json:"no_faces"`
	// Failed counts images that could not be decoded or detected.
	Failed int `json:"failed"`

	Faces           int `json:"faces"`
	LowQualityFaces int `json:"low_quality_faces"`
	RescueAttempts  int `json:"rescue_attempts"`
	RescueSuccesses int `json:"rescue_successes"`

	PerPerson map[string]int `json:"per_person"`
}

// Aggregator folds image outcomes into run statistics. It is not safe for
// concurrent use; parallel workers keep their own and Merge them.
type Aggregator struct {
	stats        RunStatistics
	similarities []float64
}

// NewAggregator returns an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{stats: RunStatistics{PerPerson: make(map[string]int)}}
}

// Fold adds one image outcome.
func (a *Aggregator) Fold(o ImageOutcome) {
	a.stats.LowQualityFaces += o.LowQualityFaces
	a.stats.Faces += len(o.Faces)

	for _, f := range o.Faces {
		if f.Rescue != nil {
			a.stats.RescueAttempts++
			if f.Kind == OutcomeRescued {
				a.stats.RescueSuccesses++
			}
		}
		if f.Credited() {
			a.similarities = append(a.similarities, f.Similarity())
		}
	}

	switch o.Status() {
	case ImageNoFaces:
		a.stats.NoFaces++
		return
	case ImageUnknown:
		a.stats.Unknown++
	case ImageMatched:
		if o.HasAccepted() {
			a.stats.ClearMatches++
		} else {
			a.stats.RescuedMatches++
		}
		for _, person := range o.Persons {
			a.stats.PerPerson[person]++
		}
	}
	a.stats.Processed++
}

// Fail records an image that could not be processed.
func (a *Aggregator) Fail() {
	a.stats.Failed++
}

// Merge adds the counters of another aggregator.
func (a *Aggregator) Merge(other *Aggregator) {
	if other == nil {
		return
	}
	o := other.stats
	a.stats.Processed += o.Processed
	a.stats.ClearMatches += o.ClearMatches
	a.stats.RescuedMatches += o.RescuedMatches
	a.stats.Unknown += o.Unknown
	a.stats.NoFaces += o.NoFaces
	a.stats.Failed += o.Failed
	a.stats.Faces += o.Faces
	a.stats.LowQualityFaces += o.LowQualityFaces
	a.stats.RescueAttempts += o.RescueAttempts
	a.stats.RescueSuccesses += o.RescueSuccesses
	for person, n := range o.PerPerson {
		a.stats.PerPerson[person] += n
	}
	a.similarities = append(a.similarities, other.similarities...)
}

// PersonTally is the number of images routed to one person.
type PersonTally struct {
	Name   string `json:"name"`
	Images int    `json:"images"`
}

// SimilaritySummary describes the distribution of deciding similarity scores.
type SimilaritySummary struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	P10    float64 `json:"p10"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// Summary is the final snapshot of a run.
type Summary struct {
	RunStatistics
	MatchRate  float64           `json:"match_rate"`
	People     []PersonTally     `json:"people"`
	Similarity SimilaritySummary `json:"similarity"`
}

// Snapshot returns a copy of the current statistics with derived values.
func (a *Aggregator) Snapshot() Summary {
	s := a.stats
	s.PerPerson = make(map[string]int, len(a.stats.PerPerson))
	people := make([]PersonTally, 0, len(a.stats.PerPerson))
	for name, n := range a.stats.PerPerson {
		s.PerPerson[name] = n
		people = append(people, PersonTally{Name: name, Images: n})
	}
	sort.Slice(people, func(i, j int) bool {
		if people[i].Images != people[j].Images {
			return people[i].Images > people[j].Images
		}
		return people[i].Name < people[j].Name
	})

	return Summary{
		RunStatistics: s,
		MatchRate:     float64(s.ClearMatches+s.RescuedMatches) / float64(max(s.Processed, 1)),
		People:        people,
		Similarity:    summarizeSimilarities(a.similarities),
	}
}

func summarizeSimilarities(samples []float64) SimilaritySummary {
	if len(samples) == 0 {
		return SimilaritySummary{}
	}
	data := stats.Float64Data(samples)
	out := SimilaritySummary{Count: len(samples)}
	out.Mean, _ = stats.Mean(data)
	out.Median, _ = stats.Median(data)
	out.P10, _ = stats.Percentile(data, 10)
	out.Min, _ = stats.Min(data)
	out.Max, _ = stats.Max(data)
	return out
}
