package client

import (
	"errors"
	"fmt"
)

// Common errors returned by the client.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during retry.
	ErrContextCancelled = errors.New("context cancelled")

	// ErrNetwork matches every *NetworkError via errors.Is.
	ErrNetwork = errors.New("network error")

	// ErrNotFound matches every *NotFoundError via errors.Is.
	ErrNotFound = errors.New("photo not found")

	// ErrInvalidArgument is returned before any I/O for bad page, size or id values.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrRateLimited is returned when a shared cooldown blocks the request.
	ErrRateLimited = errors.New("request blocked: rate limit cooldown")
)

// NetworkError is a transport failure or a non-success HTTP status from the
// photo service.
type NetworkError struct {
	StatusCode int
	ErrorClass ErrorClass
	Endpoint   string
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *NetworkError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("picsum %s error (status %d) %s: %s: %v",
			e.ErrorClass, e.StatusCode, e.Endpoint, e.Message, e.Err)
	}
	return fmt.Sprintf("picsum %s error (status %d) %s: %s",
		e.ErrorClass, e.StatusCode, e.Endpoint, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *NetworkError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrNetwork) match any NetworkError.
func (e *NetworkError) Is(target error) bool {
	return target == ErrNetwork
}

// NotFoundError reports that a single-photo lookup exhausted its search
// budget without locating the identifier.
type NotFoundError struct {
	ID           string
	PagesScanned int
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("photo %q not found after scanning %d pages", e.ID, e.PagesScanned)
}

// Is lets errors.Is(err, ErrNotFound) match any NotFoundError.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// asNetworkError wraps err as a NetworkError unless it already is one.
func asNetworkError(endpoint string, err error) error {
	if err == nil {
		return nil
	}
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return err
	}
	return &NetworkError{
		ErrorClass: ErrorClassNetwork,
		Endpoint:   endpoint,
		Message:    "request failed",
		Err:        err,
	}
}

// shouldRetry determines if an error should be retried based on its classification.
func shouldRetry(errorClass ErrorClass) bool {
	switch errorClass {
	case ErrorClassClient:
		// 4xx other than 429 will not change on retry
		return false
	case ErrorClassServer:
		return true
	case ErrorClassRateLimit:
		return true
	case ErrorClassNetwork:
		return true
	default:
		return false
	}
}
