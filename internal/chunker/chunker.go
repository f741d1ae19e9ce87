package chunker

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"slidedeck-ai/internal/deck"
)

// Version identifies the chunking algorithm. It feeds the index version hash,
// so changing window or boundary rules must bump it.
const Version = "window-v1"

// chunkNamespace scopes chunk UUIDs so they never collide with other v5 IDs.
var chunkNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("slidedeck-ai/chunk"))

// WindowChunker splits document text into overlapping fixed-stride windows.
type WindowChunker struct {
	snap bool
}

// Option configures a WindowChunker.
type Option func(*WindowChunker)

// WithBoundarySnapping toggles pulling chunk ends back to paragraph or
// sentence breaks inside the overlap window. Enabled by default.
func WithBoundarySnapping(enabled bool) Option {
	return func(c *WindowChunker) {
		c.snap = enabled
	}
}

// New creates a WindowChunker.
func New(opts ...Option) *WindowChunker {
	c := &WindowChunker{snap: true}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Chunk splits doc into ordered chunks covering every rune of its text.
//
// Chunk i starts at i*(size-overlap). Non-final chunks end at start+size, or
// earlier at the last paragraph/sentence break that keeps more than half of
// the overlap with the next chunk. The final chunk ends at the end of the text. When params.MaxChunks
// would be exceeded the size is scaled up, see EffectiveParams.
func (c *WindowChunker) Chunk(doc deck.Document, params deck.ChunkParams) ([]deck.Chunk, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	runes := []rune(doc.Text)
	eff := EffectiveParams(len(runes), params)
	stride := eff.ChunkSize - eff.Overlap

	var breaks boundaries
	if c.snap && len(runes) > eff.ChunkSize {
		breaks = findBoundaries(doc.Text)
	}

	chunks := make([]deck.Chunk, 0, Count(len(runes), eff))
	for start, ordinal := 0, 0; ; start, ordinal = start+stride, ordinal+1 {
		end := start + eff.ChunkSize
		final := end >= len(runes)
		if final {
			end = len(runes)
		} else if c.snap {
			end = breaks.snap(start+stride+eff.Overlap/2, end)
		}

		chunks = append(chunks, deck.Chunk{
			ID:         ChunkID(doc.ID, eff, ordinal),
			DocumentID: doc.ID,
			Ordinal:    ordinal,
			Text:       string(runes[start:end]),
			CharStart:  start,
			CharEnd:    end,
			PageRange:  pageRange(doc.PageBreaks, start, end),
		})

		if final {
			break
		}
	}

	return chunks, nil
}

// Count returns how many chunks a text of n runes yields under params.
func Count(n int, params deck.ChunkParams) int {
	if n <= params.ChunkSize {
		return 1
	}
	stride := params.ChunkSize - params.Overlap
	return 1 + (n-params.ChunkSize+stride-1)/stride
}

// EffectiveParams returns params with the chunk size scaled up to the
// smallest size whose chunk count fits MaxChunks. Overlap is preserved.
func EffectiveParams(n int, params deck.ChunkParams) deck.ChunkParams {
	if params.MaxChunks <= 0 || Count(n, params) <= params.MaxChunks {
		return params
	}

	eff := params
	m := params.MaxChunks
	// size + (m-1)*(size-overlap) >= n
	size := (n + (m-1)*params.Overlap + m - 1) / m
	if size > eff.ChunkSize {
		eff.ChunkSize = size
	}
	for Count(n, eff) > m {
		eff.ChunkSize++
	}
	return eff
}

// ChunkID derives the deterministic identifier of a chunk. The result is a
// UUID so it doubles as a vector store point ID.
func ChunkID(documentID string, params deck.ChunkParams, ordinal int) string {
	name := fmt.Sprintf("%s|%d|%d|%d", documentID, params.ChunkSize, params.Overlap, ordinal)
	return uuid.NewSHA1(chunkNamespace, []byte(name)).String()
}

// pageRange maps a rune span onto 1-based pages.
func pageRange(pageBreaks []int, start, end int) deck.PageRange {
	last := end - 1
	if last < start {
		last = start
	}
	return deck.PageRange{
		First: pageOf(pageBreaks, start),
		Last:  pageOf(pageBreaks, last),
	}
}

func pageOf(pageBreaks []int, offset int) int {
	return 1 + sort.SearchInts(pageBreaks, offset+1)
}
