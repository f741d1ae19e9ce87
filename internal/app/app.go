// Package app assembles the runtime components shared by the API server and the CLI.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"slidedeck-ai/internal/chunker"
	"slidedeck-ai/internal/config"
	"slidedeck-ai/internal/index"
	"slidedeck-ai/internal/llm"
	"slidedeck-ai/internal/outline"
	"slidedeck-ai/internal/pipeline"
	"slidedeck-ai/internal/retrieval"
	"slidedeck-ai/internal/service"
	"slidedeck-ai/internal/slides"
	"slidedeck-ai/internal/storage"
	"slidedeck-ai/internal/synthesis"
	"slidedeck-ai/internal/vectorstore"
)

// App holds the wired components.
type App struct {
	Config   *config.Config
	Tuning   config.Tuning
	DB       *sql.DB
	Vectors  vectorstore.VectorStore
	Decks    storage.DeckStore
	Pipeline *pipeline.Pipeline
	Runs     *pipeline.Registry
}

// Models are the language model and embedding backends.
type Models struct {
	Completer llm.Completer
	Embedder  llm.Embedder
}

// New opens storage and wires the pipeline from cfg and tuning.
func New(ctx context.Context, cfg *config.Config, tuning config.Tuning) (*App, error) {
	models, err := NewModels(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewWithModels(ctx, cfg, tuning, models)
}

// NewWithModels is New with caller-supplied model backends.
func NewWithModels(ctx context.Context, cfg *config.Config, tuning config.Tuning, models Models) (*App, error) {
	vectors, err := NewVectorStore(cfg)
	if err != nil {
		return nil, err
	}

	db, err := storage.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := storage.Migrate(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.InfoContext(ctx, "Database initialized", "path", cfg.DBPath)

	documents := storage.NewDocumentRepo(db)
	chunks := storage.NewChunkRepo(db)

	builder := index.NewBuilder(
		chunker.New(),
		models.Embedder,
		vectors,
		cfg.QdrantCollection,
		cfg.EmbeddingVectorSize,
		cfg.EmbeddingModelName,
		documents,
		chunks,
	)
	indexes, err := index.NewStore(builder, documents, chunks, index.DefaultCacheSize)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create index store: %w", err)
	}

	pipelineOpts := tuning.Pipeline
	if cfg.SectionParallelism > 0 {
		pipelineOpts.SectionParallelism = cfg.SectionParallelism
	}

	p := pipeline.New(
		indexes,
		outline.NewGenerator(models.Completer, tuning.Outline),
		retrieval.NewEngine(tuning.Retrieval),
		synthesis.NewSynthesizer(models.Completer, tuning.Synthesis),
		slides.NewAssembler(tuning.Slides),
		pipelineOpts,
	)

	return &App{
		Config:   cfg,
		Tuning:   tuning,
		DB:       db,
		Vectors:  vectors,
		Decks:    storage.NewDeckRepo(db),
		Pipeline: p,
		Runs:     pipeline.NewRegistry(),
	}, nil
}

// DeckService returns a service writing deck files to outputDir.
func (a *App) DeckService(outputDir string) service.DeckService {
	return service.NewDeckService(a.Pipeline, a.Decks, a.Runs, outputDir)
}

// Close releases the database.
func (a *App) Close() error {
	return a.DB.Close()
}

// NewModels creates the configured completion and embedding backends, each
// behind its own request gate.
func NewModels(ctx context.Context, cfg *config.Config) (Models, error) {
	var completer llm.Completer
	var embedder llm.Embedder

	switch cfg.LLMProvider {
	case config.ProviderGemini:
		client, err := llm.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.LLMModelName, cfg.EmbeddingModelName, cfg.EmbeddingVectorSize)
		if err != nil {
			return Models{}, fmt.Errorf("failed to create Gemini client: %w", err)
		}
		completer, embedder = client, client
	default:
		if cfg.LLMAutoloadModel {
			loader := llm.NewModelLoader(cfg.LLMBaseURL)
			if err := loader.LoadModel(ctx, cfg.LLMModelName, nil); err != nil {
				return Models{}, fmt.Errorf("failed to load model %s: %w", cfg.LLMModelName, err)
			}
			slog.InfoContext(ctx, "Model loaded", "model", cfg.LLMModelName)
		}
		completer = llm.NewClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModelName)
		embedder = llm.NewEmbeddingsClient(cfg.EmbeddingBaseURL, cfg.LLMAPIKey, cfg.EmbeddingModelName, cfg.EmbeddingVectorSize)
	}

	return Models{
		Completer: llm.NewLimitedCompleter(completer, llm.NewGate(cfg.LLMMaxInFlight, cfg.LLMRequestsPerSecond)),
		Embedder:  llm.NewLimitedEmbedder(embedder, llm.NewGate(cfg.LLMMaxInFlight, cfg.LLMRequestsPerSecond)),
	}, nil
}

// NewVectorStore creates the configured vector store backend.
func NewVectorStore(cfg *config.Config) (vectorstore.VectorStore, error) {
	switch cfg.VectorBackend {
	case config.BackendMemory:
		return vectorstore.NewMemoryStore(), nil
	case config.BackendQdrant:
		store, err := vectorstore.NewQdrantStore(cfg.QdrantURL)
		if err != nil {
			return nil, fmt.Errorf("failed to create Qdrant client: %w", err)
		}
		return store, nil
	}
	return nil, fmt.Errorf("unknown vector backend %q", cfg.VectorBackend)
}
