package customerrors

import (
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"
)

var (
	ErrInvalidName    = errors.New("invalid digest name")
	ErrInvalidDigest  = errors.New("invalid sha256 digest")
	ErrDigestNotFound = errors.New("digest not found")
	ErrNotConnected   = errors.New("database not connected")
	ErrBodyTooLarge   = errors.New("request body too large")
	ErrInvalidBody    = errors.New("invalid request body")
)

// CommonError represents an error that can be rendered as a JSON HTTP response.
// It carries the HTTP status and a human-readable title/detail.
type CommonError struct {
	Title   string `json:"title"`
	Status  int    `json:"status"`
	Details string `json:"detail"`
}

// WriteError writes a JSON error response with the given HTTP status code.
// It sets Content-Type to "application/json", selects a default title/detail
// from the status code (see statusText), and overrides the detail when
// customDetail is non-empty.
func WriteError(w http.ResponseWriter, status int, customDetail string) {
	title, defaultDetail := statusText(status)

	detail := defaultDetail
	if customDetail != "" {
		detail = customDetail
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(CommonError{
		Title:   title,
		Status:  status,
		Details: detail,
	})
}

// StatusFor maps a service error onto the HTTP status it is reported with.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, ErrInvalidName), errors.Is(err, ErrInvalidDigest), errors.Is(err, ErrInvalidBody):
		return http.StatusBadRequest
	case errors.Is(err, ErrDigestNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrBodyTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ErrNotConnected):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func statusText(status int) (title, detail string) {
	switch status {
	case http.StatusBadRequest:
		return "Validation Error", "The request could not be understood or was missing required parameters"
	case http.StatusNotFound:
		return "Not Found", "The requested resource could not be found"
	case http.StatusRequestEntityTooLarge:
		return "Payload Too Large", "The request body exceeds the configured limit"
	case http.StatusTooManyRequests:
		return "Too Many Requests", "Request rate limit exceeded"
	case http.StatusInternalServerError, http.StatusServiceUnavailable:
		return "Resource temporarily unavailable", "Resource temporarily unavailable"
	default:
		return http.StatusText(status), "An error occurred while processing the request"
	}
}
