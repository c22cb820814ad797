package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/benvon/smart-coach/internal/logger"
	"github.com/benvon/smart-coach/internal/models"
)

// maxErrorMessageLength bounds client-visible error text
const maxErrorMessageLength = 200

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := map[string]any{
		"success":   true,
		"data":      data,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// respondJSONError sends an error JSON response with a bounded message
func respondJSONError(w http.ResponseWriter, status int, errorType, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := map[string]any{
		"success":   false,
		"error":     errorType,
		"message":   logger.SanitizeString(message, maxErrorMessageLength),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// respondModelError maps the domain error taxonomy onto HTTP status codes.
// Anything unclassified is reported as a generic 500.
func respondModelError(w http.ResponseWriter, err error) {
	switch {
	case models.IsValidationError(err):
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
	case models.IsNotFoundError(err):
		respondJSONError(w, http.StatusNotFound, "Not Found", err.Error())
	default:
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "An unexpected error occurred")
	}
}

// decodeJSON decodes the request body into dst, rejecting unknown fields
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return models.NewValidationError("body", "invalid JSON: "+err.Error())
	}
	return nil
}
