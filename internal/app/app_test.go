package app

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slidedeck-ai/internal/config"
	"slidedeck-ai/internal/deck"
	"slidedeck-ai/internal/llm"
	"slidedeck-ai/internal/service"
	"slidedeck-ai/internal/vectorstore"
)

func init() {
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

type flatEmbedder struct{ size int }

func (e flatEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		v := make([]float32, e.size)
		v[0] = 1
		out[i] = v
	}
	return out, nil
}

type cannedCompleter struct{}

func (cannedCompleter) ChatWithMessages(_ context.Context, _ []llm.Message, params llm.ChatParams) (string, error) {
	if params.JSON {
		return `{"sections":[
			{"title":"Solar growth","intent":"How solar capacity expanded"},
			{"title":"Storage costs","intent":"Why battery storage became cheaper"},
			{"title":"Grid outlook","intent":"What the grid needs next"}]}`, nil
	}
	return "- Solar capacity doubled over the decade as panel prices fell and installations spread across regions [S1]\n" +
		"- Battery storage costs dropped sharply which made solar power dispatchable in the evening hours [S1]", nil
}

func testConfig(t *testing.T) *config.Config {
	dir := t.TempDir()
	return &config.Config{
		LLMProvider:         config.ProviderOpenAI,
		EmbeddingModelName:  "flat",
		EmbeddingVectorSize: 4,
		DBPath:              filepath.Join(dir, "test.db"),
		OutputDir:           filepath.Join(dir, "output"),
		VectorBackend:       config.BackendMemory,
		QdrantCollection:    "chunks",
		ChunkParams:         deck.DefaultChunkParams(),
		SectionParallelism:  2,
		LLMMaxInFlight:      2,
	}
}

func TestNewWithModels_GeneratesDeck(t *testing.T) {
	cfg := testConfig(t)
	a, err := NewWithModels(context.Background(), cfg, config.DefaultTuning(), Models{
		Completer: cannedCompleter{},
		Embedder:  flatEmbedder{size: cfg.EmbeddingVectorSize},
	})
	require.NoError(t, err)
	defer a.Close()

	text := strings.Repeat("Solar capacity doubled over the decade as panel prices fell. Battery storage costs dropped sharply. ", 40)
	svc := a.DeckService(cfg.OutputDir)
	resp, err := svc.Generate(context.Background(), service.SourceRequest{
		FileName: "energy-report.txt",
		File:     strings.NewReader(text),
		Size:     int64(len(text)),
		Params:   deck.ChunkParams{ChunkSize: 500, Overlap: 50},
	})
	require.NoError(t, err)

	assert.Len(t, resp.Deck.Slides, 4)
	assert.Equal(t, "energy report", resp.Deck.Title)
	assert.FileExists(t, filepath.Join(cfg.OutputDir, "energy-report.json"))
	assert.FileExists(t, filepath.Join(cfg.OutputDir, service.LatestFile))

	stored, err := svc.Latest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, resp.DeckID, stored.ID)
	assert.Equal(t, resp.Deck.Title, stored.Deck.Title)

	again, err := svc.Regenerate(context.Background(), service.RegenerateRequest{DocumentID: resp.DocumentID})
	require.NoError(t, err)
	assert.Len(t, again.Deck.Slides, 4)
	assert.NotEqual(t, resp.DeckID, again.DeckID)
}

func TestNewWithModels_BadDatabasePath(t *testing.T) {
	cfg := testConfig(t)
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))
	cfg.DBPath = filepath.Join(blocker, "nested", "test.db")

	_, err := NewWithModels(context.Background(), cfg, config.DefaultTuning(), Models{
		Completer: cannedCompleter{},
		Embedder:  flatEmbedder{size: 4},
	})
	assert.Error(t, err)
}

func TestNewVectorStore(t *testing.T) {
	cfg := testConfig(t)

	store, err := NewVectorStore(cfg)
	require.NoError(t, err)
	assert.IsType(t, &vectorstore.MemoryStore{}, store)

	cfg.VectorBackend = "faiss"
	_, err = NewVectorStore(cfg)
	assert.Error(t, err)
}

func TestNewModels_OpenAI(t *testing.T) {
	cfg := testConfig(t)
	cfg.LLMBaseURL = "http://localhost:1"
	cfg.EmbeddingBaseURL = "http://localhost:1"

	models, err := NewModels(context.Background(), cfg)
	require.NoError(t, err)
	assert.IsType(t, &llm.LimitedCompleter{}, models.Completer)
	assert.IsType(t, &llm.LimitedEmbedder{}, models.Embedder)
}
