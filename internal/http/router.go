package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"slidedeck-ai/internal/deck"
	"slidedeck-ai/internal/handlers"
	"slidedeck-ai/internal/service"
	"slidedeck-ai/internal/vectorstore"
)

const healthPath = "/api/health"

// Deps holds dependencies for the HTTP router.
type Deps struct {
	DeckService service.DeckService
	VectorStore vectorstore.VectorStore
	DB          handlers.Pinger
	// Collection is the vector collection checked by the health endpoint.
	Collection string
	// ChunkDefaults apply to uploads that omit chunking fields.
	ChunkDefaults deck.ChunkParams
}

// NewRouter creates a new HTTP router with the provided dependencies.
func NewRouter(deps *Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(LoggerMiddleware)
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(CORS)

	deckHandler := handlers.NewDeckHandler(deps.DeckService, deps.ChunkDefaults)
	healthHandler := handlers.NewHealthHandler(deps.VectorStore, deps.DB, deps.Collection)

	r.Method(http.MethodGet, healthPath, healthHandler)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/decks", deckHandler.Create)
		r.Get("/decks/latest", deckHandler.Latest)
		r.Get("/decks/{deckID}", deckHandler.Get)
		r.Get("/decks/{deckID}/stats", deckHandler.Stats)
		r.Post("/outlines", deckHandler.Outline)
		r.Post("/documents/{documentID}/decks", deckHandler.Regenerate)
		r.Delete("/runs/{runID}", deckHandler.CancelRun)
	})

	return r
}
