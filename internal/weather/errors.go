package weather

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a fetch failure for the caching layer.
type ErrorKind string

const (
	// ErrorNone means no error.
	ErrorNone ErrorKind = ""

	// ErrorTransient covers network failures, timeouts, rate limiting and
	// server errors. Eligible for retry on the next poll or subscribe.
	ErrorTransient ErrorKind = "transient"

	// ErrorNotFound means the provider does not recognize the location.
	// Terminal for the key: retries will not resolve it.
	ErrorNotFound ErrorKind = "not_found"

	// ErrorConfiguration covers a missing or rejected API credential.
	// Fatal for all fetches; surfaced once, never retried.
	ErrorConfiguration ErrorKind = "configuration"
)

// ErrMissingAPIKey is returned when the client has no credential configured.
var ErrMissingAPIKey = errors.New("weatherapi api key is not configured")

// APIError is a structured error response from the provider.
type APIError struct {
	StatusCode int
	Code       int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("weatherapi error %d: %s", e.Code, e.Message)
}

// Provider error codes, from the WeatherAPI.com documentation.
const (
	apiCodeKeyNotProvided   = 1002
	apiCodeQueryNotProvided = 1003
	apiCodeInvalidURL       = 1005
	apiCodeNoMatch          = 1006
	apiCodeInvalidKey       = 2006
	apiCodeQuotaExceeded    = 2007
	apiCodeKeyDisabled      = 2008
)

// Kind maps a provider error code onto the local taxonomy.
func (e *APIError) Kind() ErrorKind {
	switch e.Code {
	case apiCodeNoMatch:
		return ErrorNotFound
	case apiCodeKeyNotProvided, apiCodeInvalidKey, apiCodeQuotaExceeded, apiCodeKeyDisabled:
		return ErrorConfiguration
	default:
		return ErrorTransient
	}
}

// Classify resolves any fetch error into an ErrorKind. Unknown errors
// (transport failures, timeouts, 5xx) are treated as transient.
func Classify(err error) ErrorKind {
	if err == nil {
		return ErrorNone
	}
	if errors.Is(err, ErrMissingAPIKey) {
		return ErrorConfiguration
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind()
	}
	return ErrorTransient
}
