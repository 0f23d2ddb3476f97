package llm

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingCredential indicates no API key was configured.
	ErrMissingCredential = errors.New("llm api key not configured")

	// ErrMissingModelSelection indicates no model was chosen.
	ErrMissingModelSelection = errors.New("llm model not selected")

	// ErrUnknownProvider indicates a provider name that has no client variant.
	ErrUnknownProvider = errors.New("unknown llm provider")

	// ErrAPIRequestFailed covers transport errors, timeouts and non-2xx
	// responses. Non-2xx responses arrive as *APIError.
	ErrAPIRequestFailed = errors.New("llm api request failed")

	// ErrResponseDecode indicates the response envelope or the structured
	// payload inside it could not be decoded.
	ErrResponseDecode = errors.New("llm response could not be decoded")
)

// APIError carries the status and raw body of a non-2xx response.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", ErrAPIRequestFailed, e.StatusCode, truncate(e.Body, 512))
}

func (e *APIError) Unwrap() error { return ErrAPIRequestFailed }

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
