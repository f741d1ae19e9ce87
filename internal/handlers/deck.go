package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"slidedeck-ai/internal/contextutil"
	"slidedeck-ai/internal/deck"
	"slidedeck-ai/internal/index"
	"slidedeck-ai/internal/ingest"
	"slidedeck-ai/internal/service"
	"slidedeck-ai/internal/slides"
)

// maxUploadOverhead covers multipart framing and the text form fields.
const maxUploadOverhead = 1 << 20

// DeckHandler handles HTTP requests for deck generation.
type DeckHandler struct {
	decks    service.DeckService
	defaults deck.ChunkParams
}

// NewDeckHandler creates a new DeckHandler. Form fields that are omitted
// fall back to defaults.
func NewDeckHandler(decks service.DeckService, defaults deck.ChunkParams) *DeckHandler {
	return &DeckHandler{
		decks:    decks,
		defaults: defaults,
	}
}

// DeckResponse represents a generated deck.
//
// swagger:model DeckResponse
type DeckResponse struct {
	RunID      string         `json:"run_id"`
	DocumentID string         `json:"document_id"`
	DeckID     string         `json:"deck_id"`
	Deck       deck.SlideDeck `json:"deck"`
	// Warnings lists sections whose content quality may be degraded.
	Warnings []string `json:"warnings"`
	// Status is "complete", or "degraded" when warnings are present.
	Status string `json:"status"`
}

// OutlineResponse represents an editable outline.
//
// swagger:model OutlineResponse
type OutlineResponse struct {
	RunID      string                `json:"run_id"`
	DocumentID string                `json:"document_id"`
	Title      string                `json:"title"`
	Sections   []deck.OutlineSection `json:"sections"`
	// Narrative is the outline as editable markdown.
	Narrative string      `json:"narrative"`
	Stats     index.Stats `json:"stats"`
}

// RegenerateRequest represents the HTTP request payload for regenerating a deck.
//
// swagger:model RegenerateRequest
type RegenerateRequest struct {
	Sections  []deck.OutlineSection `json:"sections,omitempty"`
	Narrative string                `json:"narrative,omitempty"`
	Tone      string                `json:"tone,omitempty"`
	RunID     string                `json:"run_id,omitempty"`
}

// StoredDeckResponse represents a persisted deck.
//
// swagger:model StoredDeckResponse
type StoredDeckResponse struct {
	ID         string         `json:"id"`
	DocumentID string         `json:"document_id"`
	CreatedAt  string         `json:"created_at"`
	Deck       deck.SlideDeck `json:"deck"`
}

// DeckStatsResponse represents slide statistics of a stored deck.
//
// swagger:model DeckStatsResponse
type DeckStatsResponse struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	slides.DeckStats
}

// Create handles POST /api/v1/decks.
//
// swagger:route POST /api/v1/decks decks createDeck
//
// # Generate a deck from an uploaded document
//
// ---
// consumes:
// - multipart/form-data
// produces:
// - application/json
// responses:
//
//	'200':
//	  description: Deck generated
//	  schema:
//	    "$ref": "#/definitions/DeckResponse"
//	'400':
//	  description: Invalid file or chunking parameters
//	'409':
//	  description: Run was discarded
//	'502':
//	  description: Outline could not be generated
//	'503':
//	  description: Embedding service unavailable
func (h *DeckHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, cleanup, err := h.sourceRequest(w, r)
	if err != nil {
		handleServiceError(ctx, w, err, "Invalid upload")
		return
	}
	defer cleanup()

	resp, err := h.decks.Generate(ctx, req)
	if err != nil {
		handleServiceError(ctx, w, err, "Failed to generate deck")
		return
	}
	writeJSON(ctx, w, http.StatusOK, toDeckResponse(resp))
}

// Outline handles POST /api/v1/outlines. The run stops after outlining and
// the document index stays available for regeneration.
func (h *DeckHandler) Outline(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, cleanup, err := h.sourceRequest(w, r)
	if err != nil {
		handleServiceError(ctx, w, err, "Invalid upload")
		return
	}
	defer cleanup()

	resp, err := h.decks.Outline(ctx, req)
	if err != nil {
		handleServiceError(ctx, w, err, "Failed to generate outline")
		return
	}
	writeJSON(ctx, w, http.StatusOK, OutlineResponse{
		RunID:      resp.RunID,
		DocumentID: resp.DocumentID,
		Title:      resp.Title,
		Sections:   resp.Sections,
		Narrative:  resp.Narrative,
		Stats:      resp.Stats,
	})
}

// Regenerate handles POST /api/v1/documents/{documentID}/decks.
func (h *DeckHandler) Regenerate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	var body RegenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	resp, err := h.decks.Regenerate(ctx, service.RegenerateRequest{
		DocumentID: chi.URLParam(r, "documentID"),
		Sections:   body.Sections,
		Narrative:  body.Narrative,
		Tone:       body.Tone,
		RunID:      body.RunID,
	})
	if err != nil {
		handleServiceError(ctx, w, err, "Failed to regenerate deck")
		return
	}
	writeJSON(ctx, w, http.StatusOK, toDeckResponse(resp))
}

// Get handles GET /api/v1/decks/{deckID}.
func (h *DeckHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	stored, err := h.decks.GetDeck(ctx, chi.URLParam(r, "deckID"))
	if err != nil {
		handleServiceError(ctx, w, err, "Failed to load deck")
		return
	}
	writeJSON(ctx, w, http.StatusOK, toStoredDeckResponse(stored))
}

// Stats handles GET /api/v1/decks/{deckID}/stats.
//
// swagger:route GET /api/v1/decks/{deckID}/stats decks deckStats
//
// # Slide statistics of a stored deck
//
// ---
// produces:
// - application/json
// responses:
//
//	'200':
//	  description: Deck statistics
//	  schema:
//	    "$ref": "#/definitions/DeckStatsResponse"
//	'404':
//	  description: Deck not found
func (h *DeckHandler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	stored, err := h.decks.GetDeck(ctx, chi.URLParam(r, "deckID"))
	if err != nil {
		handleServiceError(ctx, w, err, "Failed to load deck")
		return
	}
	writeJSON(ctx, w, http.StatusOK, DeckStatsResponse{
		ID:        stored.ID,
		Title:     stored.Deck.Title,
		DeckStats: slides.Statistics(stored.Deck),
	})
}

// Latest handles GET /api/v1/decks/latest.
func (h *DeckHandler) Latest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	stored, err := h.decks.Latest(ctx)
	if err != nil {
		handleServiceError(ctx, w, err, "Failed to load deck")
		return
	}
	writeJSON(ctx, w, http.StatusOK, toStoredDeckResponse(stored))
}

// CancelRun handles DELETE /api/v1/runs/{runID}.
func (h *DeckHandler) CancelRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.decks.CancelRun(ctx, chi.URLParam(r, "runID")); err != nil {
		handleServiceError(ctx, w, err, "Failed to cancel run")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// sourceRequest reads the multipart upload. The returned cleanup releases
// the uploaded file and any temporary form files.
func (h *DeckHandler) sourceRequest(w http.ResponseWriter, r *http.Request) (service.SourceRequest, func(), error) {
	r.Body = http.MaxBytesReader(w, r.Body, ingest.MaxFileSize+maxUploadOverhead)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return service.SourceRequest{}, nil, &service.ValidationError{Field: "file", Message: "upload is too large", Err: err}
		}
		return service.SourceRequest{}, nil, &service.ValidationError{Field: "file", Message: "expected a multipart form upload", Err: err}
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		_ = r.MultipartForm.RemoveAll()
		return service.SourceRequest{}, nil, &service.ValidationError{Field: "file", Message: "is required", Err: err}
	}
	cleanup := func() {
		_ = file.Close()
		_ = r.MultipartForm.RemoveAll()
	}

	params, err := h.chunkParams(r)
	if err != nil {
		cleanup()
		return service.SourceRequest{}, nil, err
	}

	return service.SourceRequest{
		FileName:  header.Filename,
		File:      file,
		Size:      header.Size,
		Params:    params,
		Narrative: r.FormValue("narrative"),
		Tone:      strings.TrimSpace(r.FormValue("tone")),
		RunID:     strings.TrimSpace(r.FormValue("run_id")),
	}, cleanup, nil
}

// chunkParams overrides the defaults with the chunk_size, overlap and
// max_chunks form fields.
func (h *DeckHandler) chunkParams(r *http.Request) (deck.ChunkParams, error) {
	params := h.defaults
	fields := []struct {
		name string
		dst  *int
	}{
		{"chunk_size", &params.ChunkSize},
		{"overlap", &params.Overlap},
		{"max_chunks", &params.MaxChunks},
	}
	for _, f := range fields {
		raw := strings.TrimSpace(r.FormValue(f.name))
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			return deck.ChunkParams{}, &service.ValidationError{Field: f.name, Message: fmt.Sprintf("must be an integer, got %q", raw), Err: err}
		}
		*f.dst = v
	}
	return params, nil
}

func toDeckResponse(resp service.DeckResponse) DeckResponse {
	warnings := make([]string, len(resp.Warnings))
	for i, w := range resp.Warnings {
		warnings[i] = w.Message()
	}
	status := "complete"
	if len(warnings) > 0 {
		status = "degraded"
	}
	return DeckResponse{
		RunID:      resp.RunID,
		DocumentID: resp.DocumentID,
		DeckID:     resp.DeckID,
		Deck:       resp.Deck,
		Warnings:   warnings,
		Status:     status,
	}
}

func toStoredDeckResponse(stored service.StoredDeck) StoredDeckResponse {
	return StoredDeckResponse{
		ID:         stored.ID,
		DocumentID: stored.DocumentID,
		CreatedAt:  deck.Timestamp(stored.CreatedAt),
		Deck:       stored.Deck,
	}
}
