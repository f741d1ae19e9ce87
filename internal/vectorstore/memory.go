package vectorstore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"slidedeck-ai/internal/contextutil"
)

// MemoryStore is an in-process VectorStore using brute-force cosine similarity.
// It is the default backend; state lives only as long as the process.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]*memoryCollection
}

type memoryCollection struct {
	size   int
	points map[string]memoryPoint
	seq    int
}

type memoryPoint struct {
	Point
	norm float64
	seq  int // insertion order, the final tie-breaker
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]*memoryCollection)}
}

// EnsureCollection creates the collection or validates its vector size.
func (s *MemoryStore) EnsureCollection(ctx context.Context, collection string, vectorSize int) error {
	if vectorSize <= 0 {
		return fmt.Errorf("invalid vector size %d", vectorSize)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.collections[collection]; ok {
		if c.size != vectorSize {
			return fmt.Errorf("collection vector size mismatch: expected %d, got %d", vectorSize, c.size)
		}
		return nil
	}
	s.collections[collection] = &memoryCollection{size: vectorSize, points: make(map[string]memoryPoint)}
	contextutil.LoggerFromContext(ctx).DebugContext(ctx, "memory collection created", "collection", collection, "vector_size", vectorSize)
	return nil
}

// CollectionExists reports whether the collection exists.
func (s *MemoryStore) CollectionExists(_ context.Context, collection string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.collections[collection]
	return ok, nil
}

// Upsert inserts or replaces points. Re-upserting an ID keeps its original insertion order.
func (s *MemoryStore) Upsert(_ context.Context, collection string, points []Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.collections[collection]
	if !ok {
		return fmt.Errorf("collection %s does not exist", collection)
	}
	for _, p := range points {
		if len(p.Vec) != c.size {
			return fmt.Errorf("point %s has size %d, expected %d", p.ID, len(p.Vec), c.size)
		}
	}
	for _, p := range points {
		seq := c.seq
		if existing, ok := c.points[p.ID]; ok {
			seq = existing.seq
		} else {
			c.seq++
		}
		c.points[p.ID] = memoryPoint{Point: p, norm: norm(p.Vec), seq: seq}
	}
	return nil
}

// Search returns the k most similar points, descending by score. Equal
// scores keep ascending "ordinal" payload order, then insertion order.
func (s *MemoryStore) Search(_ context.Context, collection string, query []float32, k int, filters map[string]any) ([]SearchResult, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be greater than 0")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[collection]
	if !ok {
		return nil, fmt.Errorf("collection %s does not exist", collection)
	}
	if len(query) != c.size {
		return nil, fmt.Errorf("query has size %d, expected %d", len(query), c.size)
	}

	qn := norm(query)
	type scored struct {
		p     memoryPoint
		score float32
	}
	hits := make([]scored, 0, len(c.points))
	for _, p := range c.points {
		if !matches(p.Meta, filters) {
			continue
		}
		hits = append(hits, scored{p: p, score: cosine(query, qn, p.Vec, p.norm)})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		oi, iok := ordinal(hits[i].p.Meta)
		oj, jok := ordinal(hits[j].p.Meta)
		if iok && jok && oi != oj {
			return oi < oj
		}
		return hits[i].p.seq < hits[j].p.seq
	})
	if len(hits) > k {
		hits = hits[:k]
	}

	results := make([]SearchResult, len(hits))
	for i, h := range hits {
		results[i] = SearchResult{PointID: h.p.ID, Score: h.score, Meta: h.p.Meta}
	}
	return results, nil
}

// Delete removes points by ID. Unknown IDs are ignored.
func (s *MemoryStore) Delete(_ context.Context, collection string, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.collections[collection]
	if !ok {
		return nil
	}
	for _, id := range ids {
		delete(c.points, id)
	}
	return nil
}

func matches(meta, filters map[string]any) bool {
	for key, want := range filters {
		got, ok := meta[key]
		if !ok || fmt.Sprint(got) != fmt.Sprint(want) {
			return false
		}
	}
	return true
}

func ordinal(meta map[string]any) (int64, bool) {
	switch v := meta[MetaOrdinal].(type) {
	case int:
		return int64(v), true
	case int64:
		return v, true
	case float64:
		return int64(v), true
	}
	return 0, false
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func cosine(a []float32, an float64, b []float32, bn float64) float32 {
	if an == 0 || bn == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return float32(dot / (an * bn))
}
