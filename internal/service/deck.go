package service

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_runner.go -package=mocks slidedeck-ai/internal/service Runner
//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_deck_service.go -package=mocks -mock_names=DeckService=MockDeckService slidedeck-ai/internal/service DeckService

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"slidedeck-ai/internal/contextutil"
	"slidedeck-ai/internal/deck"
	"slidedeck-ai/internal/index"
	"slidedeck-ai/internal/ingest"
	"slidedeck-ai/internal/pipeline"
	"slidedeck-ai/internal/storage"
)

// LatestFile is the name of the copy of the most recent deck in the output directory.
const LatestFile = "latest.json"

// Runner executes pipeline runs.
// This interface is defined from the service layer's perspective (consumer-first).
type Runner interface {
	Run(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
	Outline(ctx context.Context, req pipeline.Request) (*pipeline.OutlineResult, error)
	Resume(ctx context.Context, req pipeline.ResumeRequest) (*pipeline.Result, error)
}

// SourceRequest carries an uploaded or local source document.
type SourceRequest struct {
	FileName  string
	File      io.ReaderAt
	Size      int64
	Params    deck.ChunkParams
	Narrative string
	Tone      string
	// RunID is optional. A new ID is generated when empty.
	RunID string
}

// RegenerateRequest re-runs an already indexed document from its outline.
type RegenerateRequest struct {
	DocumentID string
	Sections   []deck.OutlineSection
	Narrative  string
	Tone       string
	RunID      string
}

// DeckResponse is the result of a completed run.
type DeckResponse struct {
	RunID      string
	DocumentID string
	DeckID     string
	Deck       deck.SlideDeck
	Warnings   []deck.SectionWarning
	OutputPath string
}

// OutlineResponse is the result of a run stopped after outlining.
type OutlineResponse struct {
	RunID      string
	DocumentID string
	Title      string
	Sections   []deck.OutlineSection
	Narrative  string
	Stats      index.Stats
}

// StoredDeck is a persisted deck.
type StoredDeck struct {
	ID         string
	DocumentID string
	CreatedAt  time.Time
	Deck       deck.SlideDeck
}

// DeckService turns documents into slide decks.
type DeckService interface {
	// Generate runs a document through every stage and stores the deck.
	Generate(ctx context.Context, req SourceRequest) (DeckResponse, error)
	// Outline indexes a document and returns its editable outline.
	Outline(ctx context.Context, req SourceRequest) (OutlineResponse, error)
	// Regenerate builds a new deck for an indexed document from an edited outline or narrative.
	Regenerate(ctx context.Context, req RegenerateRequest) (DeckResponse, error)
	// GetDeck returns a stored deck by ID.
	GetDeck(ctx context.Context, id string) (StoredDeck, error)
	// Latest returns the most recently stored deck.
	Latest(ctx context.Context) (StoredDeck, error)
	// CancelRun discards an in-flight run.
	CancelRun(ctx context.Context, runID string) error
}

type deckService struct {
	runner    Runner
	decks     storage.DeckStore
	runs      *pipeline.Registry
	outputDir string
}

// NewDeckService creates a new DeckService. An empty outputDir disables
// writing deck files.
func NewDeckService(runner Runner, decks storage.DeckStore, runs *pipeline.Registry, outputDir string) DeckService {
	return &deckService{
		runner:    runner,
		decks:     decks,
		runs:      runs,
		outputDir: outputDir,
	}
}

// Generate runs a document through every stage and stores the deck.
func (s *deckService) Generate(ctx context.Context, req SourceRequest) (DeckResponse, error) {
	doc, err := s.extract(ctx, req)
	if err != nil {
		return DeckResponse{}, err
	}

	runCtx, runID, done, err := s.start(ctx, doc.ID, req.RunID)
	if err != nil {
		return DeckResponse{}, err
	}
	defer done()

	result, err := s.runner.Run(runCtx, pipeline.Request{
		Document:  doc,
		Params:    req.Params,
		Narrative: req.Narrative,
		Tone:      req.Tone,
	})
	if err != nil {
		return DeckResponse{}, s.runError(runCtx, runID, err)
	}
	return s.finish(ctx, runID, result, doc.Name)
}

// Outline indexes a document and returns its editable outline.
func (s *deckService) Outline(ctx context.Context, req SourceRequest) (OutlineResponse, error) {
	doc, err := s.extract(ctx, req)
	if err != nil {
		return OutlineResponse{}, err
	}

	runCtx, runID, done, err := s.start(ctx, doc.ID, req.RunID)
	if err != nil {
		return OutlineResponse{}, err
	}
	defer done()

	result, err := s.runner.Outline(runCtx, pipeline.Request{
		Document:  doc,
		Params:    req.Params,
		Narrative: req.Narrative,
		Tone:      req.Tone,
	})
	if err != nil {
		return OutlineResponse{}, s.runError(runCtx, runID, err)
	}

	contextutil.LoggerFromContext(ctx).InfoContext(ctx, "outline generated",
		"run_id", runID,
		"document_id", result.DocumentID,
		"sections", len(result.Sections),
	)
	return OutlineResponse{
		RunID:      runID,
		DocumentID: result.DocumentID,
		Title:      result.Title,
		Sections:   result.Sections,
		Narrative:  result.Narrative,
		Stats:      result.Stats,
	}, nil
}

// Regenerate builds a new deck for an indexed document.
func (s *deckService) Regenerate(ctx context.Context, req RegenerateRequest) (DeckResponse, error) {
	if strings.TrimSpace(req.DocumentID) == "" {
		return DeckResponse{}, &ValidationError{Field: "document_id", Message: "cannot be empty"}
	}

	runCtx, runID, done, err := s.start(ctx, req.DocumentID, req.RunID)
	if err != nil {
		return DeckResponse{}, err
	}
	defer done()

	result, err := s.runner.Resume(runCtx, pipeline.ResumeRequest{
		DocumentID: req.DocumentID,
		Sections:   req.Sections,
		Narrative:  req.Narrative,
		Tone:       req.Tone,
	})
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return DeckResponse{}, fmt.Errorf("document %s: %w", req.DocumentID, ErrNotFound)
		}
		return DeckResponse{}, s.runError(runCtx, runID, err)
	}
	return s.finish(ctx, runID, result, result.Deck.SourcePDF)
}

// GetDeck returns a stored deck by ID.
func (s *deckService) GetDeck(ctx context.Context, id string) (StoredDeck, error) {
	if strings.TrimSpace(id) == "" {
		return StoredDeck{}, &ValidationError{Field: "id", Message: "cannot be empty"}
	}
	rec, err := s.decks.GetByID(ctx, id)
	if err != nil {
		return StoredDeck{}, s.storeError(err, "deck "+id)
	}
	return decode(rec)
}

// Latest returns the most recently stored deck.
func (s *deckService) Latest(ctx context.Context) (StoredDeck, error) {
	rec, err := s.decks.Latest(ctx)
	if err != nil {
		return StoredDeck{}, s.storeError(err, "latest deck")
	}
	return decode(rec)
}

// CancelRun discards an in-flight run.
func (s *deckService) CancelRun(ctx context.Context, runID string) error {
	if err := s.runs.Cancel(runID); err != nil {
		if errors.Is(err, pipeline.ErrRunNotFound) {
			return fmt.Errorf("run %s: %w", runID, ErrNotFound)
		}
		return err
	}
	contextutil.LoggerFromContext(ctx).InfoContext(ctx, "run cancelled", "run_id", runID)
	return nil
}

func (s *deckService) extract(ctx context.Context, req SourceRequest) (deck.Document, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if req.File == nil || strings.TrimSpace(req.FileName) == "" {
		return deck.Document{}, &ValidationError{Field: "file", Message: "is required"}
	}
	doc, err := ingest.Extract(ctx, req.FileName, req.File, req.Size)
	if err != nil {
		if errors.Is(err, ingest.ErrUnsupportedFormat) || errors.Is(err, ingest.ErrNoText) || errors.Is(err, ingest.ErrTooLarge) {
			logger.WarnContext(ctx, "rejected source document", "file", req.FileName, "error", err)
			return deck.Document{}, &ValidationError{Field: "file", Message: err.Error(), Err: err}
		}
		return deck.Document{}, WrapError(err, "failed to read source document")
	}
	doc.ID = deck.DocumentIdentity(doc.Text)
	return doc, nil
}

func (s *deckService) start(ctx context.Context, documentID, runID string) (context.Context, string, func(), error) {
	runCtx, id, done, err := s.runs.Start(ctx, documentID, runID)
	if err != nil {
		if errors.Is(err, pipeline.ErrRunActive) {
			return nil, "", nil, fmt.Errorf("run %s: %w", runID, ErrConflict)
		}
		return nil, "", nil, err
	}
	contextutil.LoggerFromContext(ctx).InfoContext(ctx, "run started", "run_id", id, "document_id", documentID)
	return runCtx, id, done, nil
}

// runError classifies a failed run. Runs that were cancelled or superseded
// report ErrConflict and keep the cause.
func (s *deckService) runError(runCtx context.Context, runID string, err error) error {
	logger := contextutil.LoggerFromContext(runCtx)

	if pipeline.Discarded(runCtx) {
		logger.InfoContext(runCtx, "run discarded", "run_id", runID)
		return fmt.Errorf("run %s: %w: %w", runID, ErrConflict, pipeline.ErrRunDiscarded)
	}
	stage, _ := deck.FailedStage(err)
	logger.ErrorContext(runCtx, "run failed", "run_id", runID, "stage", stage, "error", err)
	return err
}

func (s *deckService) finish(ctx context.Context, runID string, result *pipeline.Result, sourceName string) (DeckResponse, error) {
	logger := contextutil.LoggerFromContext(ctx)

	body, err := json.MarshalIndent(result.Deck, "", "  ")
	if err != nil {
		return DeckResponse{}, WrapError(err, "failed to encode deck")
	}

	rec := &storage.DeckRecord{
		DocumentID: result.DocumentID,
		SourcePDF:  result.Deck.SourcePDF,
		Title:      result.Deck.Title,
		Body:       body,
	}
	if err := s.decks.Insert(ctx, rec); err != nil {
		logger.ErrorContext(ctx, "failed to store deck", "run_id", runID, "error", err)
		return DeckResponse{}, WrapError(err, "failed to store deck")
	}

	path, err := s.writeOutput(sourceName, result.DocumentID, body)
	if err != nil {
		logger.ErrorContext(ctx, "failed to write deck file", "run_id", runID, "error", err)
		return DeckResponse{}, err
	}

	logger.InfoContext(ctx, "deck generated",
		"run_id", runID,
		"deck_id", rec.ID,
		"document_id", result.DocumentID,
		"slides", len(result.Deck.Slides),
		"warnings", len(result.Warnings),
		"output", path,
	)
	return DeckResponse{
		RunID:      runID,
		DocumentID: result.DocumentID,
		DeckID:     rec.ID,
		Deck:       result.Deck,
		Warnings:   result.Warnings,
		OutputPath: path,
	}, nil
}

// writeOutput writes the deck to <outputDir>/<name>.json and latest.json.
func (s *deckService) writeOutput(sourceName, documentID string, body []byte) (string, error) {
	if s.outputDir == "" {
		return "", nil
	}
	if err := os.MkdirAll(s.outputDir, 0755); err != nil {
		return "", WrapError(err, "failed to create output directory")
	}

	path := filepath.Join(s.outputDir, OutputName(sourceName, documentID))
	if err := os.WriteFile(path, body, 0644); err != nil {
		return "", WrapError(err, "failed to write deck file")
	}
	if err := os.WriteFile(filepath.Join(s.outputDir, LatestFile), body, 0644); err != nil {
		return "", WrapError(err, "failed to write latest deck file")
	}
	return path, nil
}

// OutputName derives the deck file name from the source file name, falling
// back to the document ID.
func OutputName(sourceName, documentID string) string {
	base := filepath.Base(sourceName)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	stem = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, strings.TrimSpace(stem))
	if stem == "" || stem == "." || stem == strings.TrimSuffix(LatestFile, ".json") {
		stem = documentID
	}
	return stem + ".json"
}

func (s *deckService) storeError(err error, what string) error {
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return WrapError(err, "failed to load "+what)
}

func decode(rec *storage.DeckRecord) (StoredDeck, error) {
	var d deck.SlideDeck
	if err := json.Unmarshal(rec.Body, &d); err != nil {
		return StoredDeck{}, WrapError(err, "failed to decode stored deck")
	}
	return StoredDeck{
		ID:         rec.ID,
		DocumentID: rec.DocumentID,
		CreatedAt:  rec.CreatedAt,
		Deck:       d,
	}, nil
}
