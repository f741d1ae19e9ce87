// Package retrieval selects the context chunks for each outline section.
package retrieval

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"slidedeck-ai/internal/contextutil"
	"slidedeck-ai/internal/deck"
)

// Bounds on the number of candidates fetched per section.
const (
	MinTopN = 1
	MaxTopN = 20
)

// Options are the retrieval thresholds.
type Options struct {
	TopN         int     `yaml:"top_n"`
	MaxResults   int     `yaml:"max_results"`
	MinScore     float64 `yaml:"min_score"`
	ReusePenalty float64 `yaml:"reuse_penalty"`
	// MaxReuse excludes a chunk once this many earlier sections used it. Zero disables the limit.
	MaxReuse int `yaml:"max_reuse"`
}

// DefaultOptions returns the default retrieval thresholds.
func DefaultOptions() Options {
	return Options{TopN: 8, MaxResults: 5, MinScore: 0.3, ReusePenalty: 0.1, MaxReuse: 2}
}

// Searcher is the nearest-neighbor capability retrieval needs.
// *index.Index implements it.
type Searcher interface {
	Query(ctx context.Context, text string, k int) ([]deck.RetrievedChunk, error)
}

// Engine fetches and filters per-section context.
type Engine struct {
	opts Options
}

// NewEngine creates an Engine, clamping TopN to [MinTopN, MaxTopN].
func NewEngine(opts Options) *Engine {
	if opts.TopN < MinTopN {
		opts.TopN = MinTopN
	}
	if opts.TopN > MaxTopN {
		opts.TopN = MaxTopN
	}
	if opts.MaxResults <= 0 || opts.MaxResults > opts.TopN {
		opts.MaxResults = opts.TopN
	}
	return &Engine{opts: opts}
}

// Options returns the effective options.
func (e *Engine) Options() Options { return e.opts }

// QueryText builds the retrieval query of a section: its title followed by
// the narrative when present, the intent otherwise.
func QueryText(section deck.OutlineSection) string {
	direction := strings.TrimSpace(section.Direction())
	if direction == "" {
		return section.Title
	}
	return section.Title + "\n" + direction
}

// Candidates returns the top-N nearest chunks for a section. Safe for concurrent use.
func (e *Engine) Candidates(ctx context.Context, s Searcher, section deck.OutlineSection) ([]deck.RetrievedChunk, error) {
	results, err := s.Query(ctx, QueryText(section), e.opts.TopN)
	if err != nil {
		return nil, fmt.Errorf("retrieve candidates for %s: %w", section.ID, err)
	}
	contextutil.LoggerFromContext(ctx).DebugContext(ctx, "retrieved candidates", "section_id", section.ID, "count", len(results))
	return results, nil
}

// Select applies the reuse penalty and the score floor to candidates and
// records the chosen chunks in usage. Sections must be selected in outline
// order for the result to be deterministic. An empty set is a valid result.
func (e *Engine) Select(section deck.OutlineSection, candidates []deck.RetrievedChunk, usage *Usage) deck.RetrievedSet {
	best := make(map[string]deck.RetrievedChunk, len(candidates))
	for _, c := range candidates {
		if prev, ok := best[c.ChunkID]; !ok || c.Score > prev.Score {
			best[c.ChunkID] = c
		}
	}

	items := make([]deck.RetrievedChunk, 0, len(best))
	for _, c := range best {
		uses := usage.Count(c.ChunkID)
		if e.opts.MaxReuse > 0 && uses >= e.opts.MaxReuse {
			continue
		}
		c.Score -= float32(e.opts.ReusePenalty * float64(uses))
		if float64(c.Score) < e.opts.MinScore {
			continue
		}
		items = append(items, c)
	}

	SortChunks(items)
	if len(items) > e.opts.MaxResults {
		items = items[:e.opts.MaxResults]
	}

	set := deck.RetrievedSet{SectionID: section.ID, Items: items}
	usage.Add(set.IDs()...)
	return set
}

// Retrieve fetches and selects context for every section sequentially.
func (e *Engine) Retrieve(ctx context.Context, s Searcher, sections []deck.OutlineSection) ([]deck.RetrievedSet, error) {
	usage := NewUsage()
	sets := make([]deck.RetrievedSet, len(sections))
	for i, section := range sections {
		candidates, err := e.Candidates(ctx, s, section)
		if err != nil {
			return nil, err
		}
		sets[i] = e.Select(section, candidates, usage)
	}
	return sets, nil
}

// SortChunks orders chunks by score descending, then ordinal ascending.
func SortChunks(items []deck.RetrievedChunk) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Score != items[j].Score {
			return items[i].Score > items[j].Score
		}
		if items[i].Ordinal != items[j].Ordinal {
			return items[i].Ordinal < items[j].Ordinal
		}
		return items[i].ChunkID < items[j].ChunkID
	})
}

// Usage counts how many sections have consumed each chunk.
type Usage struct {
	mu     sync.Mutex
	counts map[string]int
}

// NewUsage creates an empty tracker.
func NewUsage() *Usage {
	return &Usage{counts: make(map[string]int)}
}

// Count returns how many sections used the chunk.
func (u *Usage) Count(chunkID string) int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.counts[chunkID]
}

// Add records one use of each chunk.
func (u *Usage) Add(chunkIDs ...string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	for _, id := range chunkIDs {
		u.counts[id]++
	}
}
