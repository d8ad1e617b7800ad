package provider

import (
	"errors"
	"fmt"
	"net/http"
)

// ValidationError reports a malformed or incomplete request.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// ProviderError reports a non-2xx vendor response. Body is the raw response text.
type ProviderError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s API error: %d - %s", e.Provider, e.StatusCode, e.Body)
}

// NetworkError reports a transport-level failure before any vendor status was seen.
type NetworkError struct {
	Provider string
	Err      error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s network error: %v", e.Provider, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// UnknownProviderError wraps the failure of the OpenRouter fallback used for an
// unrecognised provider name.
type UnknownProviderError struct {
	Provider string
	Err      error
}

func (e *UnknownProviderError) Error() string {
	return fmt.Sprintf("Unknown provider %q fell back to OpenRouter and failed: %v", e.Provider, e.Err)
}

func (e *UnknownProviderError) Unwrap() error { return e.Err }

// IsNotFound reports whether err carries a vendor 404.
func IsNotFound(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.StatusCode == http.StatusNotFound
}

// IsServerSide reports whether err is a transport failure or a vendor 5xx,
// i.e. something that says nothing about the caller's credentials.
func IsServerSide(err error) bool {
	var ne *NetworkError
	if errors.As(err, &ne) {
		return true
	}
	var pe *ProviderError
	return errors.As(err, &pe) && pe.StatusCode >= 500
}
