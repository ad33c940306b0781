package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sagarc03/xupload"
)

// ErrorResponse represents a JSON error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// WriteError writes a JSON error response
func WriteError(w http.ResponseWriter, code int, errCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(ErrorResponse{
		Error:   errCode,
		Message: message,
	}); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}

// StatusFor maps a service error to its HTTP status code and error code.
// A path outside the data root is reported as not found.
func StatusFor(err error) (int, string) {
	switch {
	case errors.Is(err, xupload.ErrInvalidPath), errors.Is(err, xupload.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, xupload.ErrUnauthorized):
		return http.StatusForbidden, "invalid_signature"
	case errors.Is(err, xupload.ErrTruncatedUpload):
		return http.StatusBadRequest, "truncated_upload"
	case errors.Is(err, xupload.ErrInvalidQuota):
		return http.StatusBadRequest, "invalid_quota"
	case errors.Is(err, xupload.ErrConflict):
		return http.StatusConflict, "conflict"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

var messages = map[int]string{
	http.StatusNotFound:            "Not Found",
	http.StatusForbidden:           "Invalid verification key",
	http.StatusBadRequest:          "Bad Request",
	http.StatusConflict:            "Conflict",
	http.StatusInternalServerError: "Internal server error",
}

// HandleError writes appropriate error response based on error type
func HandleError(w http.ResponseWriter, err error) {
	code, errCode := StatusFor(err)

	if code == http.StatusInternalServerError {
		slog.Error("request error", "error", err)
	} else {
		slog.Debug("request rejected", "status", code, "error", err)
	}

	WriteError(w, code, errCode, messages[code])
}
