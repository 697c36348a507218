package httpx

import (
	"encoding/json"
	"log"
	"net/http"
)

// Error codes surfaced by the operator API. Callers branch on the code:
// fix input (invalid-argument), fix credentials (unauthenticated), fix
// permissions (permission-denied), or retry the whole call (internal).
const (
	CodeInvalidArgument  = "invalid-argument"
	CodeUnauthenticated  = "unauthenticated"
	CodePermissionDenied = "permission-denied"
	CodeInternal         = "internal"
)

// RespondJSON writes a JSON response with the given status code and data.
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Failed to encode JSON response: %v", err)
	}
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// RespondError writes an error response with the given status code and error.
func RespondError(w http.ResponseWriter, status int, err error) {
	RespondJSON(w, status, ErrorResponse{
		Error:   http.StatusText(status),
		Message: err.Error(),
	})
}

// RespondErrorString writes an error response with a plain message.
func RespondErrorString(w http.ResponseWriter, status int, message string) {
	RespondJSON(w, status, ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
	})
}

// RespondCode writes an error response carrying one of the taxonomy codes
// above, with the HTTP status that code maps to.
func RespondCode(w http.ResponseWriter, code, message string) {
	status := http.StatusInternalServerError
	switch code {
	case CodeInvalidArgument:
		status = http.StatusBadRequest
	case CodeUnauthenticated:
		status = http.StatusUnauthorized
	case CodePermissionDenied:
		status = http.StatusForbidden
	}
	RespondJSON(w, status, ErrorResponse{
		Error:   http.StatusText(status),
		Code:    code,
		Message: message,
	})
}
