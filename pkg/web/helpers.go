package web

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const (
	MsgInternalError    = "An internal server error occurred"
	MsgValidationFailed = "Validation failed"
	ErrUnknown          = "Unknown server error"
	ErrInvalidIDFormat  = "Invalid product ID format"
	ErrInvalidBody      = "Invalid request body"
)

// Envelope is the body of every response. Data and Error are never both set.
type Envelope struct {
	Message string              `json:"message"`
	Data    any                 `json:"data"`
	Error   *string             `json:"error"`
	Details map[string][]string `json:"details,omitempty"`
}

func RespondJSON(w http.ResponseWriter, logger *slog.Logger, status int, payload any) {
	// Handle nil payload
	if payload == nil {
		w.WriteHeader(status)
		return
	}

	response, err := json.Marshal(payload)
	if err != nil {
		logger.Error("Error encoding response to JSON", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(response)
}

// RespondData writes a success envelope.
func RespondData(w http.ResponseWriter, logger *slog.Logger, status int, message string, data any) {
	RespondJSON(w, logger, status, Envelope{Message: message, Data: data})
}

// RespondError writes a failure envelope with a null data member.
func RespondError(w http.ResponseWriter, logger *slog.Logger, status int, message, errMsg string) {
	RespondJSON(w, logger, status, Envelope{Message: message, Error: &errMsg})
}

// RespondValidationError is RespondError with the offending fields attached.
func RespondValidationError(w http.ResponseWriter, logger *slog.Logger, message, errMsg string, details map[string][]string) {
	RespondJSON(w, logger, http.StatusBadRequest, Envelope{Message: message, Error: &errMsg, Details: details})
}

// RespondInternalError hides the cause from the client.
func RespondInternalError(w http.ResponseWriter, logger *slog.Logger) {
	RespondError(w, logger, http.StatusInternalServerError, MsgInternalError, ErrUnknown)
}

// ParseID extracts and validates the {id} route parameter. Returns the ID and a boolean indicating success.
// On failure a 400 envelope has already been written.
func ParseID(w http.ResponseWriter, r *http.Request, logger *slog.Logger) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, logger, http.StatusBadRequest, MsgValidationFailed, ErrInvalidIDFormat)
		return uuid.Nil, false
	}
	return id, true
}
