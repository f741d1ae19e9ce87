package index

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"slidedeck-ai/internal/chunker"
	"slidedeck-ai/internal/deck"
	llmmocks "slidedeck-ai/internal/llm/mocks"
	"slidedeck-ai/internal/storage"
	storagemocks "slidedeck-ai/internal/storage/mocks"
	"slidedeck-ai/internal/vectorstore"
)

func init() {
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

const collection = "chunks"

var vocab = []string{"solar", "wind", "coal"}

// keywordEmbedder embeds text as keyword counts so similarity is predictable.
type keywordEmbedder struct {
	calls atomic.Int32
}

func (e *keywordEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	e.calls.Add(1)
	out := make([][]float32, len(texts))
	for i, t := range texts {
		lower := strings.ToLower(t)
		vec := make([]float32, len(vocab))
		for j, w := range vocab {
			vec[j] = float32(strings.Count(lower, w)) + 0.01
		}
		out[i] = vec
	}
	return out, nil
}

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := storage.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, storage.Migrate(db))
	return db
}

type fixture struct {
	embedder *keywordEmbedder
	builder  *Builder
	store    *Store
	vectors  *vectorstore.MemoryStore
}

func newFixture(t *testing.T, db *sql.DB, model string) *fixture {
	t.Helper()
	embedder := &keywordEmbedder{}
	vectors := vectorstore.NewMemoryStore()
	documents := storage.NewDocumentRepo(db)
	chunks := storage.NewChunkRepo(db)
	builder := NewBuilder(chunker.New(), embedder, vectors, collection, len(vocab), model, documents, chunks)
	store, err := NewStore(builder, documents, chunks, 4)
	require.NoError(t, err)
	return &fixture{embedder: embedder, builder: builder, store: store, vectors: vectors}
}

func energyDocument() deck.Document {
	paras := []string{
		strings.Repeat("Solar panels turn sunlight into power. ", 5),
		strings.Repeat("Wind turbines spin in coastal wind farms. ", 5),
		strings.Repeat("Coal plants burn coal for baseload. ", 5),
	}
	text := strings.Join(paras, "\n\n")
	return deck.Document{ID: deck.DocumentIdentity(text), Name: "energy.pdf", Title: "Energy", Text: text}
}

var smallParams = deck.ChunkParams{ChunkSize: 200, Overlap: 20}

func TestBuilder_BuildAndQuery(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, newTestDB(t), "kw")
	doc := energyDocument()

	ix, err := f.builder.Build(ctx, doc, smallParams)
	require.NoError(t, err)
	require.Greater(t, ix.Len(), 2)

	for i, c := range ix.Chunks() {
		assert.Equal(t, i, c.Ordinal)
		assert.Len(t, c.Embedding, len(vocab))
		got, ok := ix.Chunk(c.ID)
		assert.True(t, ok)
		assert.Equal(t, c.Text, got.Text)
	}

	results, err := ix.Query(ctx, "wind", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Contains(t, strings.ToLower(results[0].Text), "wind")
	assert.GreaterOrEqual(t, results[0].Score, results[1].Score)

	// k larger than the index is clamped.
	all, err := ix.Query(ctx, "coal", 100)
	require.NoError(t, err)
	assert.Len(t, all, ix.Len())
}

func TestBuilder_EmbeddingFailureIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	db := newTestDB(t)

	embedder := llmmocks.NewMockEmbedder(ctrl)
	embedder.EXPECT().EmbedTexts(gomock.Any(), gomock.Any()).Return(nil, errors.New("connection refused"))

	vectors := vectorstore.NewMemoryStore()
	documents := storage.NewDocumentRepo(db)
	builder := NewBuilder(chunker.New(), embedder, vectors, collection, len(vocab), "kw", documents, storage.NewChunkRepo(db))

	doc := energyDocument()
	_, err := builder.Build(ctx, doc, smallParams)
	require.Error(t, err)
	assert.ErrorIs(t, err, deck.ErrEmbeddingUnavailable)

	_, err = documents.GetByID(ctx, doc.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	exists, _ := vectors.CollectionExists(ctx, collection)
	assert.False(t, exists, "no vectors should be written")
}

func TestBuilder_WrongVectorSizeIsEmbeddingUnavailable(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	db := newTestDB(t)

	embedder := llmmocks.NewMockEmbedder(ctrl)
	embedder.EXPECT().EmbedTexts(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, texts []string) ([][]float32, error) {
		out := make([][]float32, len(texts))
		for i := range out {
			out[i] = []float32{1}
		}
		return out, nil
	})

	builder := NewBuilder(chunker.New(), embedder, vectorstore.NewMemoryStore(), collection, len(vocab), "kw",
		storage.NewDocumentRepo(db), storage.NewChunkRepo(db))
	_, err := builder.Build(ctx, energyDocument(), smallParams)
	assert.ErrorIs(t, err, deck.ErrEmbeddingUnavailable)
}

func TestBuilder_SaveFailureRollsBackVectors(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)

	documents := storagemocks.NewMockDocumentStore(ctrl)
	chunks := storagemocks.NewMockChunkStore(ctrl)
	chunks.EXPECT().ListIDsByDocument(gomock.Any(), gomock.Any()).Return(nil, nil)
	documents.EXPECT().SaveIndex(gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("disk full"))

	vectors := vectorstore.NewMemoryStore()
	builder := NewBuilder(chunker.New(), &keywordEmbedder{}, vectors, collection, len(vocab), "kw", documents, chunks)

	_, err := builder.Build(ctx, energyDocument(), smallParams)
	require.Error(t, err)

	results, err := vectors.Search(ctx, collection, []float32{1, 1, 1}, 10, nil)
	require.NoError(t, err)
	assert.Empty(t, results, "vectors must be removed when SQLite rejects the index")
}

func TestBuilder_InvalidParams(t *testing.T) {
	f := newFixture(t, newTestDB(t), "kw")
	_, err := f.builder.Build(context.Background(), energyDocument(), deck.ChunkParams{ChunkSize: 100, Overlap: 100})
	assert.ErrorIs(t, err, deck.ErrConfig)
	assert.Zero(t, f.embedder.calls.Load())
}

func TestBuilder_EmptyDocument(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, newTestDB(t), "kw")

	ix, err := f.builder.Build(ctx, deck.Document{ID: "empty", Name: "e.pdf", Title: "E"}, smallParams)
	require.NoError(t, err)
	assert.Zero(t, ix.Len())

	results, err := ix.Query(ctx, "anything", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestIndex_QueryEmbeddingFailure(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	f := newFixture(t, newTestDB(t), "kw")

	ix, err := f.builder.Build(ctx, energyDocument(), smallParams)
	require.NoError(t, err)

	failing := llmmocks.NewMockEmbedder(ctrl)
	failing.EXPECT().EmbedTexts(gomock.Any(), []string{"solar"}).Return(nil, errors.New("timeout"))
	ix.embedder = failing

	_, err = ix.Query(ctx, "solar", 3)
	assert.ErrorIs(t, err, deck.ErrEmbeddingUnavailable)
}

func TestStore_GetCachesAndInvalidatesOnParams(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, newTestDB(t), "kw")
	doc := energyDocument()

	first, err := f.store.Get(ctx, doc, smallParams)
	require.NoError(t, err)
	again, err := f.store.Get(ctx, doc, smallParams)
	require.NoError(t, err)
	third, err := f.store.Get(ctx, doc, smallParams)
	require.NoError(t, err)
	assert.Same(t, again, third)
	assert.Equal(t, first.Meta().Version(), again.Meta().Version())
	assert.Zero(t, again.ChunkTime(), "a cached index reports no chunking time")
	assert.Equal(t, int32(1), f.embedder.calls.Load())

	other := deck.ChunkParams{ChunkSize: 300, Overlap: 30}
	rebuilt, err := f.store.Get(ctx, doc, other)
	require.NoError(t, err)
	assert.Equal(t, other, rebuilt.Meta().Requested)
	assert.NotEqual(t, first.Meta().Version(), rebuilt.Meta().Version())
	assert.Equal(t, int32(2), f.embedder.calls.Load())
}

func TestStore_RehydratesFromSQLite(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	doc := energyDocument()

	built, err := newFixture(t, db, "kw").store.Get(ctx, doc, smallParams)
	require.NoError(t, err)

	// A fresh process: empty cache and empty vector store over the same database.
	f := newFixture(t, db, "kw")
	ix, err := f.store.Get(ctx, doc, smallParams)
	require.NoError(t, err)
	assert.Zero(t, f.embedder.calls.Load(), "stored embeddings should be reused")
	assert.Equal(t, built.Len(), ix.Len())
	assert.Equal(t, built.Meta().Version(), ix.Meta().Version())

	results, err := ix.Query(ctx, "coal", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Contains(t, strings.ToLower(results[0].Text), "coal")
}

func TestStore_LoadReembedsOnModelChange(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	doc := energyDocument()

	_, err := newFixture(t, db, "kw-v1").store.Get(ctx, doc, smallParams)
	require.NoError(t, err)

	f := newFixture(t, db, "kw-v2")
	ix, err := f.store.Load(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, int32(1), f.embedder.calls.Load())
	assert.Equal(t, "kw-v2", ix.Meta().EmbeddingModel)

	rec, err := storage.NewDocumentRepo(db).GetByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "kw-v2", rec.EmbeddingModel)
}

func TestStore_Invalidate(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	f := newFixture(t, db, "kw")
	doc := energyDocument()

	_, err := f.store.Get(ctx, doc, smallParams)
	require.NoError(t, err)
	require.NoError(t, storage.NewDocumentRepo(db).Delete(ctx, doc.ID))

	// The cached index outlives the stored one until it is invalidated.
	_, err = f.store.Load(ctx, doc.ID)
	require.NoError(t, err)

	f.store.Invalidate(doc.ID)
	_, err = f.store.Load(ctx, doc.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStore_LoadDropsStaleCacheEntry(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	doc := energyDocument()

	_, err := newFixture(t, db, "kw-v1").store.Get(ctx, doc, smallParams)
	require.NoError(t, err)

	f := newFixture(t, db, "kw-v1")
	_, err = f.store.Get(ctx, doc, smallParams)
	require.NoError(t, err)

	// A model change makes the cached index unusable, and the stored one is gone.
	f.builder.embeddingModel = "kw-v2"
	require.NoError(t, storage.NewDocumentRepo(db).Delete(ctx, doc.ID))
	_, err = f.store.Load(ctx, doc.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, cached := f.store.cache.Get(doc.ID)
	assert.False(t, cached)
}

func TestStore_LoadUnknownDocument(t *testing.T) {
	f := newFixture(t, newTestDB(t), "kw")
	_, err := f.store.Load(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestComputeTokenStats(t *testing.T) {
	tests := []struct {
		name   string
		counts []int
		want   ChunkTokenStats
	}{
		{name: "empty", counts: nil, want: ChunkTokenStats{}},
		{name: "single", counts: []int{7}, want: ChunkTokenStats{Min: 7, Max: 7, Mean: 7, P95: 7}},
		{
			name:   "twenty values",
			counts: []int{20, 19, 18, 17, 16, 15, 14, 13, 12, 11, 10, 9, 8, 7, 6, 5, 4, 3, 2, 1},
			want:   ChunkTokenStats{Min: 1, Max: 20, Mean: 10.5, P95: 19},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, computeTokenStats(tt.counts))
		})
	}
}

func TestIndex_Stats(t *testing.T) {
	f := newFixture(t, newTestDB(t), "kw")
	ix, err := f.builder.Build(context.Background(), energyDocument(), smallParams)
	require.NoError(t, err)

	st := ix.Stats()
	assert.Equal(t, ix.Len(), st.ChunkCount)
	assert.Equal(t, 200, st.ChunkSize)
	assert.Equal(t, 200, st.EffectiveChunkSize)
	assert.Equal(t, chunker.Version, st.ChunkerVersion)
	assert.Len(t, st.IndexVersion, 16)
	assert.LessOrEqual(t, st.ChunkTokenStats.Max, 50)
	assert.GreaterOrEqual(t, st.ChunkTokenStats.Min, 1)
}
