package index

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"slidedeck-ai/internal/chunker"
	"slidedeck-ai/internal/contextutil"
	"slidedeck-ai/internal/deck"
	"slidedeck-ai/internal/llm"
	"slidedeck-ai/internal/storage"
	"slidedeck-ai/internal/vectorstore"
)

// Chunker splits a document into overlapping chunks.
type Chunker interface {
	Chunk(doc deck.Document, params deck.ChunkParams) ([]deck.Chunk, error)
}

// Builder chunks, embeds and persists documents.
type Builder struct {
	chunker        Chunker
	embedder       llm.Embedder
	vectors        vectorstore.VectorStore
	collection     string
	vectorSize     int
	embeddingModel string
	documents      storage.DocumentStore
	chunks         storage.ChunkStore
}

// NewBuilder creates a new index builder.
func NewBuilder(
	c Chunker,
	embedder llm.Embedder,
	vectors vectorstore.VectorStore,
	collection string,
	vectorSize int,
	embeddingModel string,
	documents storage.DocumentStore,
	chunks storage.ChunkStore,
) *Builder {
	return &Builder{
		chunker:        c,
		embedder:       embedder,
		vectors:        vectors,
		collection:     collection,
		vectorSize:     vectorSize,
		embeddingModel: embeddingModel,
		documents:      documents,
		chunks:         chunks,
	}
}

// EmbeddingModel returns the model name recorded with every built index.
func (b *Builder) EmbeddingModel() string { return b.embeddingModel }

// Build chunks doc with params, embeds every chunk and persists the result.
// Either every chunk is embedded and stored or the previous index stays in place.
func (b *Builder) Build(ctx context.Context, doc deck.Document, params deck.ChunkParams) (*Index, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if err := params.Validate(); err != nil {
		return nil, err
	}

	started := time.Now()
	chunks, err := b.chunker.Chunk(doc, params)
	if err != nil {
		return nil, fmt.Errorf("failed to chunk document: %w", err)
	}
	chunkTime := time.Since(started)
	logger.InfoContext(ctx, "document chunked", "document_id", doc.ID, "chunks", len(chunks))

	if err := b.embed(ctx, chunks); err != nil {
		return nil, err
	}

	meta := Meta{
		DocumentID:     doc.ID,
		DocumentName:   doc.Name,
		Title:          doc.Title,
		Requested:      params,
		Effective:      chunker.EffectiveParams(utf8.RuneCountInString(doc.Text), params),
		EmbeddingModel: b.embeddingModel,
		VectorSize:     b.vectorSize,
	}

	if err := b.persist(ctx, meta, chunks); err != nil {
		return nil, err
	}

	logger.InfoContext(ctx, "document indexed",
		"document_id", doc.ID,
		"chunks", len(chunks),
		"effective_chunk_size", meta.Effective.ChunkSize,
		"index_version", meta.Version(),
	)
	ix := newIndex(meta, chunks, b.vectors, b.collection, b.embedder)
	ix.chunkTime = chunkTime
	return ix, nil
}

// embed fills in Embedding on every chunk or fails without partial results.
func (b *Builder) embed(ctx context.Context, chunks []deck.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	vecs, err := b.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", deck.ErrEmbeddingUnavailable, err)
	}
	if len(vecs) != len(chunks) {
		return fmt.Errorf("%w: embedding count mismatch: expected %d, got %d", deck.ErrEmbeddingUnavailable, len(chunks), len(vecs))
	}
	for i, v := range vecs {
		if b.vectorSize > 0 && len(v) != b.vectorSize {
			return fmt.Errorf("%w: embedding %d has size %d, expected %d", deck.ErrEmbeddingUnavailable, i, len(v), b.vectorSize)
		}
	}
	for i := range chunks {
		chunks[i].Embedding = vecs[i]
	}
	return nil
}

// persist writes vectors then SQLite rows, removing the new vectors if the
// SQLite write fails.
func (b *Builder) persist(ctx context.Context, meta Meta, chunks []deck.Chunk) error {
	logger := contextutil.LoggerFromContext(ctx)

	if err := b.vectors.EnsureCollection(ctx, b.collection, b.vectorSize); err != nil {
		return fmt.Errorf("failed to ensure vector collection: %w", err)
	}

	oldIDs, err := b.chunks.ListIDsByDocument(ctx, meta.DocumentID)
	if err != nil {
		return fmt.Errorf("failed to list old chunk IDs: %w", err)
	}

	newIDs := make([]string, len(chunks))
	keep := make(map[string]struct{}, len(chunks))
	for i, c := range chunks {
		newIDs[i] = c.ID
		keep[c.ID] = struct{}{}
	}

	if len(chunks) > 0 {
		if err := b.vectors.Upsert(ctx, b.collection, points(meta.DocumentID, chunks)); err != nil {
			return fmt.Errorf("failed to upsert vectors: %w", err)
		}
	}

	if err := b.documents.SaveIndex(ctx, toDocumentRecord(meta), toChunkRecords(chunks)); err != nil {
		if delErr := b.vectors.Delete(ctx, b.collection, newIDs); delErr != nil {
			logger.WarnContext(ctx, "failed to roll back vectors", "document_id", meta.DocumentID, "error", delErr)
		}
		return fmt.Errorf("failed to save index: %w", err)
	}

	var stale []string
	for _, id := range oldIDs {
		if _, ok := keep[id]; !ok {
			stale = append(stale, id)
		}
	}
	if len(stale) > 0 {
		if err := b.vectors.Delete(ctx, b.collection, stale); err != nil {
			// Stale points are filtered out of queries by ID lookup, so this is not fatal.
			logger.WarnContext(ctx, "failed to delete stale vectors", "document_id", meta.DocumentID, "count", len(stale), "error", err)
		}
	}
	return nil
}

func toDocumentRecord(m Meta) *storage.DocumentRecord {
	return &storage.DocumentRecord{
		ID:                 m.DocumentID,
		Name:               m.DocumentName,
		Title:              m.Title,
		ChunkSize:          m.Requested.ChunkSize,
		Overlap:            m.Requested.Overlap,
		MaxChunks:          m.Requested.MaxChunks,
		EffectiveChunkSize: m.Effective.ChunkSize,
		EmbeddingModel:     m.EmbeddingModel,
		VectorSize:         m.VectorSize,
	}
}

func toChunkRecords(chunks []deck.Chunk) []storage.ChunkRecord {
	recs := make([]storage.ChunkRecord, len(chunks))
	for i, c := range chunks {
		recs[i] = storage.ChunkRecord{
			ID:         c.ID,
			DocumentID: c.DocumentID,
			Ordinal:    c.Ordinal,
			Text:       c.Text,
			CharStart:  c.CharStart,
			CharEnd:    c.CharEnd,
			PageFirst:  c.PageRange.First,
			PageLast:   c.PageRange.Last,
			Embedding:  c.Embedding,
		}
	}
	return recs
}

func fromRecords(doc *storage.DocumentRecord, recs []storage.ChunkRecord) (Meta, []deck.Chunk) {
	requested := deck.ChunkParams{ChunkSize: doc.ChunkSize, Overlap: doc.Overlap, MaxChunks: doc.MaxChunks}
	effective := requested
	effective.ChunkSize = doc.EffectiveChunkSize
	meta := Meta{
		DocumentID:     doc.ID,
		DocumentName:   doc.Name,
		Title:          doc.Title,
		Requested:      requested,
		Effective:      effective,
		EmbeddingModel: doc.EmbeddingModel,
		VectorSize:     doc.VectorSize,
	}

	chunks := make([]deck.Chunk, len(recs))
	for i, r := range recs {
		chunks[i] = deck.Chunk{
			ID:         r.ID,
			DocumentID: r.DocumentID,
			Ordinal:    r.Ordinal,
			Text:       r.Text,
			CharStart:  r.CharStart,
			CharEnd:    r.CharEnd,
			PageRange:  deck.PageRange{First: r.PageFirst, Last: r.PageLast},
			Embedding:  r.Embedding,
		}
	}
	return meta, chunks
}
