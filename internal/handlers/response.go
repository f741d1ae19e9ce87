package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"slidedeck-ai/internal/contextutil"
	"slidedeck-ai/internal/deck"
	"slidedeck-ai/internal/service"
)

// ErrorResponse represents an error response.
//
// swagger:model ErrorResponse
type ErrorResponse struct {
	Error string `json:"error"`
}

// writeJSON writes v as a JSON response.
func writeJSON(ctx context.Context, w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		contextutil.LoggerFromContext(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error: message,
	})
}

// handleServiceError maps service and pipeline errors to HTTP status codes.
func handleServiceError(ctx context.Context, w http.ResponseWriter, err error, defaultMsg string) {
	status, msg := errorStatus(err, defaultMsg)

	logger := contextutil.LoggerFromContext(ctx)
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(ctx, "service error", "status", status, "error", err)
	} else {
		logger.WarnContext(ctx, "request rejected", "status", status, "error", err)
	}
	writeError(w, status, msg)
}

func errorStatus(err error, defaultMsg string) (int, string) {
	var validationErr *service.ValidationError
	if errors.As(err, &validationErr) {
		return http.StatusBadRequest, fmt.Sprintf("Validation error: %s", validationErr.Error())
	}

	var configErr *deck.ConfigError
	if errors.As(err, &configErr) {
		return http.StatusBadRequest, fmt.Sprintf("Invalid configuration: %s", configErr.Error())
	}

	switch {
	case errors.Is(err, service.ErrInvalidInput):
		return http.StatusBadRequest, "Invalid input"
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, "Resource not found"
	case errors.Is(err, service.ErrConflict):
		return http.StatusConflict, fmt.Sprintf("Run was discarded or is already active: %s", err.Error())
	case errors.Is(err, deck.ErrEmbeddingUnavailable):
		return http.StatusServiceUnavailable, fmt.Sprintf("Processing cannot continue: %s", err.Error())
	case errors.Is(err, deck.ErrOutlineGenerationFailed):
		return http.StatusBadGateway, fmt.Sprintf("Processing cannot continue: %s", err.Error())
	case errors.Is(err, service.ErrExternalService):
		return http.StatusBadGateway, "External service error"
	case errors.Is(err, deck.ErrAssemblyInvariant):
		return http.StatusInternalServerError, "Deck assembly failed"
	}
	return http.StatusInternalServerError, defaultMsg
}
