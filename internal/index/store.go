package index

import (
	"context"
	"errors"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"slidedeck-ai/internal/contextutil"
	"slidedeck-ai/internal/deck"
	"slidedeck-ai/internal/storage"
)

// DefaultCacheSize is the number of document indexes kept in memory.
const DefaultCacheSize = 16

// Store returns ready-to-query indexes, building them only when no usable
// index exists in memory or in SQLite.
type Store struct {
	builder   *Builder
	documents storage.DocumentStore
	chunks    storage.ChunkStore
	cache     *lru.Cache[string, *Index]

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewStore creates a Store with an LRU of cacheSize indexes.
func NewStore(builder *Builder, documents storage.DocumentStore, chunks storage.ChunkStore, cacheSize int) (*Store, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.New[string, *Index](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create index cache: %w", err)
	}
	return &Store{
		builder:   builder,
		documents: documents,
		chunks:    chunks,
		cache:     cache,
		locks:     make(map[string]*sync.Mutex),
	}, nil
}

// lock serializes work on one document.
func (s *Store) lock(documentID string) func() {
	s.mu.Lock()
	l, ok := s.locks[documentID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[documentID] = l
	}
	s.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// Get returns the index of doc built with params. An existing index is reused
// only when it was built from the same requested params and embedding model.
func (s *Store) Get(ctx context.Context, doc deck.Document, params deck.ChunkParams) (*Index, error) {
	logger := contextutil.LoggerFromContext(ctx)
	defer s.lock(doc.ID)()

	if ix, ok := s.cache.Get(doc.ID); ok {
		if s.reusable(ix.meta.Requested, ix.meta.EmbeddingModel, params) {
			logger.DebugContext(ctx, "index cache hit", "document_id", doc.ID)
			return ix, nil
		}
		s.Invalidate(doc.ID)
	}

	rec, err := s.documents.GetByID(ctx, doc.ID)
	switch {
	case err == nil && s.reusable(deck.ChunkParams{ChunkSize: rec.ChunkSize, Overlap: rec.Overlap, MaxChunks: rec.MaxChunks}, rec.EmbeddingModel, params):
		ix, err := s.rehydrate(ctx, rec)
		if err == nil {
			s.cache.Add(doc.ID, ix)
			return ix, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logger.WarnContext(ctx, "failed to reuse stored index, rebuilding", "document_id", doc.ID, "error", err)
	case err != nil && !errors.Is(err, storage.ErrNotFound):
		return nil, fmt.Errorf("failed to look up document: %w", err)
	}

	ix, err := s.builder.Build(ctx, doc, params)
	if err != nil {
		return nil, err
	}
	s.cache.Add(doc.ID, ix.reused())
	return ix, nil
}

// Load returns the persisted index of a document regardless of its params.
// Chunks are re-embedded when the embedding model changed since the build.
// Returns storage.ErrNotFound for unknown documents.
func (s *Store) Load(ctx context.Context, documentID string) (*Index, error) {
	defer s.lock(documentID)()

	if ix, ok := s.cache.Get(documentID); ok {
		if ix.meta.EmbeddingModel == s.builder.embeddingModel {
			return ix, nil
		}
		s.Invalidate(documentID)
	}

	rec, err := s.documents.GetByID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	ix, err := s.rehydrate(ctx, rec)
	if err != nil {
		return nil, err
	}
	s.cache.Add(documentID, ix)
	return ix, nil
}

// Invalidate drops a document from the in-memory cache. The persisted index
// is kept, so the next Get or Load rehydrates it from SQLite.
func (s *Store) Invalidate(documentID string) {
	s.cache.Remove(documentID)
}

func (s *Store) reusable(built deck.ChunkParams, model string, requested deck.ChunkParams) bool {
	return built == requested && model == s.builder.embeddingModel
}

// rehydrate rebuilds an Index from SQLite and pushes its vectors back into
// the vector store, which may have lost them on restart.
func (s *Store) rehydrate(ctx context.Context, rec *storage.DocumentRecord) (*Index, error) {
	logger := contextutil.LoggerFromContext(ctx)

	recs, err := s.chunks.ListByDocument(ctx, rec.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load chunks: %w", err)
	}
	if len(recs) != rec.ChunkCount {
		return nil, fmt.Errorf("stored index is incomplete: %d of %d chunks", len(recs), rec.ChunkCount)
	}

	meta, chunks := fromRecords(rec, recs)

	stale := meta.EmbeddingModel != s.builder.embeddingModel || meta.VectorSize != s.builder.vectorSize
	for _, c := range chunks {
		if len(c.Embedding) == 0 {
			stale = true
			break
		}
	}
	if stale {
		logger.InfoContext(ctx, "re-embedding stored chunks", "document_id", rec.ID, "stored_model", meta.EmbeddingModel, "model", s.builder.embeddingModel)
		if err := s.builder.embed(ctx, chunks); err != nil {
			return nil, err
		}
		meta.EmbeddingModel = s.builder.embeddingModel
		meta.VectorSize = s.builder.vectorSize
		if err := s.builder.persist(ctx, meta, chunks); err != nil {
			return nil, err
		}
	} else {
		if err := s.builder.vectors.EnsureCollection(ctx, s.builder.collection, s.builder.vectorSize); err != nil {
			return nil, fmt.Errorf("failed to ensure vector collection: %w", err)
		}
		if len(chunks) > 0 {
			if err := s.builder.vectors.Upsert(ctx, s.builder.collection, points(rec.ID, chunks)); err != nil {
				return nil, fmt.Errorf("failed to restore vectors: %w", err)
			}
		}
	}

	logger.InfoContext(ctx, "index loaded", "document_id", rec.ID, "chunks", len(chunks), "index_version", meta.Version())
	return newIndex(meta, chunks, s.builder.vectors, s.builder.collection, s.builder.embedder), nil
}
