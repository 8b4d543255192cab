package memory

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"auditrag/internal/domain"
)

// Storage is an in-memory vector index using brute-force cosine distance.
// Build replaces the whole snapshot at once; searches see either the old or
// the new snapshot, never a partial one.
type Storage struct {
	mu   sync.RWMutex
	snap *snapshot
}

type snapshot struct {
	dimension int
	chunks    []domain.Chunk
	vectors   []domain.Vector
	norms     []float64
}

func NewStorage() *Storage { return &Storage{} }

// Build validates entries and installs them as the new index contents.
// An empty entry list is a valid, empty index. On error the previous
// contents are kept.
func (s *Storage) Build(entries []domain.IndexEntry) error {
	next := &snapshot{
		chunks:  make([]domain.Chunk, len(entries)),
		vectors: make([]domain.Vector, len(entries)),
		norms:   make([]float64, len(entries)),
	}
	for i, e := range entries {
		if len(e.Vector) == 0 {
			return fmt.Errorf("entry %d has an empty vector: %w", i, domain.ErrEmbeddingService)
		}
		if i == 0 {
			next.dimension = len(e.Vector)
		} else if len(e.Vector) != next.dimension {
			return fmt.Errorf("entry %d has dimension %d, want %d: %w",
				i, len(e.Vector), next.dimension, domain.ErrEmbeddingService)
		}
		next.chunks[i] = e.Chunk
		next.vectors[i] = append(domain.Vector(nil), e.Vector...)
		next.norms[i] = norm(e.Vector)
	}

	s.mu.Lock()
	s.snap = next
	s.mu.Unlock()
	return nil
}

// Search returns up to k entries ordered by ascending cosine distance.
// Equal distances keep insertion order.
func (s *Storage) Search(query domain.Vector, k int) ([]domain.SearchResult, error) {
	s.mu.RLock()
	snap := s.snap
	s.mu.RUnlock()
	if snap == nil {
		return nil, domain.ErrIndexNotBuilt
	}
	if k <= 0 || len(snap.vectors) == 0 {
		return []domain.SearchResult{}, nil
	}
	if len(query) != snap.dimension {
		return nil, fmt.Errorf("query dimension %d, index dimension %d: %w",
			len(query), snap.dimension, domain.ErrEmbeddingService)
	}

	qn := norm(query)
	dists := make([]float64, len(snap.vectors))
	for i, v := range snap.vectors {
		dists[i] = cosineDistance(query, qn, v, snap.norms[i])
	}
	idxs := make([]int, len(dists))
	for i := range idxs {
		idxs[i] = i
	}
	sort.SliceStable(idxs, func(a, b int) bool { return dists[idxs[a]] < dists[idxs[b]] })

	if k > len(idxs) {
		k = len(idxs)
	}
	results := make([]domain.SearchResult, 0, k)
	for _, j := range idxs[:k] {
		results = append(results, domain.SearchResult{Chunk: snap.chunks[j], Distance: dists[j]})
	}
	return results, nil
}

// Len returns the number of indexed entries, 0 when unbuilt.
func (s *Storage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snap == nil {
		return 0
	}
	return len(s.snap.chunks)
}

// Dimension returns the vector dimension of the current snapshot.
func (s *Storage) Dimension() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snap == nil {
		return 0
	}
	return s.snap.dimension
}

// cosineDistance is 1 - cos(a, b). A zero vector is at distance 1 from everything.
func cosineDistance(a domain.Vector, na float64, b domain.Vector, nb float64) float64 {
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot(a, b)/(na*nb)
}

func dot(a, b domain.Vector) float64 {
	sum := 0.0
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func norm(v domain.Vector) float64 {
	return math.Sqrt(dot(v, v))
}
