package catalog

import (
	"math"
	"sort"
	"sync/atomic"

	errx "github.com/intentcore/server/internal/core/error"
	"github.com/intentcore/server/internal/engine/model"
)

// Example is one reference utterance for an intent code.
type Example struct {
	IntentCode string
	Category   string
	Text       string
	Embedding  []float32
}

// Snapshot is an immutable view of the catalog. Searches over a snapshot
// are safe for any number of concurrent readers.
type Snapshot struct {
	examples []Example
	version  uint64
}

// Version identifies the snapshot generation.
func (s *Snapshot) Version() uint64 {
	return s.version
}

// Len returns the number of examples in the snapshot.
func (s *Snapshot) Len() int {
	return len(s.examples)
}

// Search ranks examples by cosine similarity against the query embedding
// and returns the top k candidates descending. An empty snapshot fails
// with ErrCatalogEmpty.
func (s *Snapshot) Search(embedding []float32, topK int) ([]model.MatchCandidate, error) {
	if len(s.examples) == 0 {
		return nil, errx.ErrCatalogEmpty
	}
	if topK <= 0 {
		topK = 5
	}

	candidates := make([]model.MatchCandidate, 0, len(s.examples))
	for _, ex := range s.examples {
		candidates = append(candidates, model.MatchCandidate{
			IntentCode:     ex.IntentCode,
			Similarity:     cosine(embedding, ex.Embedding),
			MatchedExample: ex.Text,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Similarity > candidates[j].Similarity
	})

	// Collapse to the best example per intent so top-k spans k distinct
	// intents rather than k examples of the same one.
	seen := make(map[string]bool, topK)
	out := make([]model.MatchCandidate, 0, topK)
	for _, c := range candidates {
		if seen[c.IntentCode] {
			continue
		}
		seen[c.IntentCode] = true
		out = append(out, c)
		if len(out) == topK {
			break
		}
	}
	return out, nil
}

func cosine(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Store holds the current catalog snapshot. Updates build a fresh snapshot
// and swap it atomically: readers pin one snapshot per run and never
// observe a partial update.
type Store struct {
	current atomic.Pointer[Snapshot]
	version atomic.Uint64
}

func NewStore() *Store {
	return &Store{}
}

// Snapshot returns the current catalog view, or ErrIndexUnavailable before
// the first load.
func (s *Store) Snapshot() (*Snapshot, error) {
	snap := s.current.Load()
	if snap == nil {
		return nil, errx.ErrIndexUnavailable
	}
	return snap, nil
}

// Replace installs a complete new example set as the current snapshot.
func (s *Store) Replace(examples []Example) *Snapshot {
	snap := &Snapshot{
		examples: examples,
		version:  s.version.Add(1),
	}
	s.current.Store(snap)
	return snap
}

// UpsertExamples adds training examples for an intent, replacing that
// intent's previous examples. The swap is atomic.
func (s *Store) UpsertExamples(intentCode string, examples []Example) *Snapshot {
	var merged []Example
	if prev := s.current.Load(); prev != nil {
		merged = make([]Example, 0, len(prev.examples)+len(examples))
		for _, ex := range prev.examples {
			if ex.IntentCode != intentCode {
				merged = append(merged, ex)
			}
		}
	}
	for _, ex := range examples {
		ex.IntentCode = intentCode
		if ex.Category == "" {
			ex.Category = model.CategoryOf(intentCode)
		}
		merged = append(merged, ex)
	}
	return s.Replace(merged)
}
