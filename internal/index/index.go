// Package index builds and queries the per-document embedding index.
package index

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"slidedeck-ai/internal/chunker"
	"slidedeck-ai/internal/contextutil"
	"slidedeck-ai/internal/deck"
	"slidedeck-ai/internal/llm"
	"slidedeck-ai/internal/vectorstore"
)

// Meta identifies how an index was built.
type Meta struct {
	DocumentID     string
	DocumentName   string
	Title          string
	Requested      deck.ChunkParams
	Effective      deck.ChunkParams
	EmbeddingModel string
	VectorSize     int
}

// Version is a short hash of everything that changes chunk identity or vectors.
func (m Meta) Version() string {
	in := fmt.Sprintf("%s|%s|%s|size=%d|overlap=%d|max=%d",
		m.DocumentID, chunker.Version, m.EmbeddingModel, m.Effective.ChunkSize, m.Effective.Overlap, m.Effective.MaxChunks)
	sum := sha256.Sum256([]byte(in))
	return hex.EncodeToString(sum[:])[:16]
}

// Index is the queryable embedding index of one document.
type Index struct {
	meta       Meta
	chunks     []deck.Chunk
	byID       map[string]int
	vectors    vectorstore.VectorStore
	collection string
	embedder   llm.Embedder
	chunkTime  time.Duration
}

func newIndex(meta Meta, chunks []deck.Chunk, vectors vectorstore.VectorStore, collection string, embedder llm.Embedder) *Index {
	byID := make(map[string]int, len(chunks))
	for i, c := range chunks {
		byID[c.ID] = i
	}
	return &Index{
		meta:       meta,
		chunks:     chunks,
		byID:       byID,
		vectors:    vectors,
		collection: collection,
		embedder:   embedder,
	}
}

// ChunkTime is the time spent chunking when the call that returned this
// index built it. It is zero for a reused index.
func (ix *Index) ChunkTime() time.Duration { return ix.chunkTime }

// reused returns a copy for the cache that reports no chunking time.
func (ix *Index) reused() *Index {
	cp := *ix
	cp.chunkTime = 0
	return &cp
}

// Meta returns the build parameters of the index.
func (ix *Index) Meta() Meta { return ix.meta }

// DocumentID returns the indexed document's identity.
func (ix *Index) DocumentID() string { return ix.meta.DocumentID }

// Len returns the number of indexed chunks.
func (ix *Index) Len() int { return len(ix.chunks) }

// Chunks returns the chunks in ordinal order. Callers must not modify the slice.
func (ix *Index) Chunks() []deck.Chunk { return ix.chunks }

// Chunk looks up a chunk by ID.
func (ix *Index) Chunk(id string) (deck.Chunk, bool) {
	i, ok := ix.byID[id]
	if !ok {
		return deck.Chunk{}, false
	}
	return ix.chunks[i], true
}

// Query embeds text and returns up to k chunks ordered by descending cosine
// similarity, ties broken by ascending ordinal. A query embedding failure is
// reported as deck.ErrEmbeddingUnavailable.
func (ix *Index) Query(ctx context.Context, text string, k int) ([]deck.RetrievedChunk, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be greater than 0")
	}
	if len(ix.chunks) == 0 {
		return nil, nil
	}
	if k > len(ix.chunks) {
		k = len(ix.chunks)
	}

	vecs, err := ix.embedder.EmbedTexts(ctx, []string{text})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: query embedding: %v", deck.ErrEmbeddingUnavailable, err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("%w: expected 1 query embedding, got %d", deck.ErrEmbeddingUnavailable, len(vecs))
	}

	results, err := ix.vectors.Search(ctx, ix.collection, vecs[0], k, map[string]any{
		vectorstore.MetaDocumentID: ix.meta.DocumentID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search index: %w", err)
	}

	out := make([]deck.RetrievedChunk, 0, len(results))
	for _, r := range results {
		c, ok := ix.Chunk(r.PointID)
		if !ok {
			contextutil.LoggerFromContext(ctx).WarnContext(ctx, "search returned unknown chunk", "chunk_id", r.PointID, "document_id", ix.meta.DocumentID)
			continue
		}
		out = append(out, deck.RetrievedChunk{
			ChunkID:   c.ID,
			Score:     r.Score,
			Ordinal:   c.Ordinal,
			Text:      c.Text,
			PageRange: c.PageRange,
		})
	}
	return out, nil
}

func points(documentID string, chunks []deck.Chunk) []vectorstore.Point {
	pts := make([]vectorstore.Point, len(chunks))
	for i, c := range chunks {
		pts[i] = vectorstore.Point{
			ID:  c.ID,
			Vec: c.Embedding,
			Meta: map[string]any{
				vectorstore.MetaDocumentID: documentID,
				vectorstore.MetaOrdinal:    c.Ordinal,
				"page_first":               c.PageRange.First,
				"page_last":                c.PageRange.Last,
			},
		}
	}
	return pts
}
