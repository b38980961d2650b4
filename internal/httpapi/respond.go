package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/goliatone/go-listings/listing"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

type errorBody struct {
	Message string   `json:"message"`
	Fields  []string `json:"fields,omitempty"`
}

type messageBody struct {
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, code int, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, `{"message":"failed to encode response"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_, _ = w.Write(body)
}

func respondMessage(w http.ResponseWriter, code int, message string) {
	respondJSON(w, code, messageBody{Message: message})
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case listing.IsValidation(err):
		return http.StatusBadRequest
	case listing.IsUnauthorized(err):
		return http.StatusUnauthorized
	case listing.IsForbidden(err):
		return http.StatusForbidden
	case listing.IsNotFound(err):
		return http.StatusNotFound
	case listing.IsConflict(err):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes the client-safe message of err. Server-side failures
// are logged with their cause, which never reaches the body.
func respondError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	code := statusFor(err)
	body := errorBody{Message: listing.Message(err)}
	if code == http.StatusBadRequest {
		body.Fields = listing.Fields(err)
	}
	if code >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
	}
	respondJSON(w, code, body)
}

// decodeObject reads a JSON object body. Numbers are kept as json.Number so
// the listing patch parser sees the client's exact value.
func decodeObject(r *http.Request) (map[string]any, error) {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, listing.NewValidationError("request body is required")
		}
		return nil, listing.NewValidationError("request body must be a JSON object")
	}
	if raw == nil {
		return nil, listing.NewValidationError("request body must be a JSON object")
	}
	return raw, nil
}

// decodeInto reads a JSON body into dst.
func decodeInto(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return listing.NewValidationError("malformed JSON body")
	}
	return nil
}
