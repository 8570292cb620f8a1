package github

import (
	"errors"
	"fmt"

	"github.com/Sternrassler/github-stars-collector/pkg/quota"
)

// ErrorClass represents a classification of fetch errors.
type ErrorClass string

const (
	// ErrorClassAuth represents 401 responses: the credential is invalid or
	// revoked and must not be retried this run.
	ErrorClassAuth ErrorClass = "auth"

	// ErrorClassRateLimit represents 403/429 responses and GraphQL
	// rate-limit errors: the credential is out of budget, rotation applies.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassTransient represents network failures and 5xx responses,
	// retryable in place.
	ErrorClassTransient ErrorClass = "transient"

	// ErrorClassClient represents other 4xx responses and non-rate-limit
	// GraphQL errors, which retrying cannot fix.
	ErrorClassClient ErrorClass = "client"
)

// ErrNoData is returned when a 200 response carries neither data nor errors.
var ErrNoData = errors.New("github: response contained no data")

// APIError represents a GitHub API error with classification context.
type APIError struct {
	// StatusCode is the HTTP status, 0 for network-level failures.
	StatusCode int

	// Class drives the engine's state transition for this error.
	Class ErrorClass

	// Message is a short description, usually from the response.
	Message string

	// RateLimit carries the quota state observed on the failing response,
	// when the API reported one. Rate-limit errors use it to schedule the
	// credential's reset.
	RateLimit *quota.State

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("github %s error (status %d): %s: %v",
			e.Class, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("github %s error (status %d): %s",
		e.Class, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// classifyStatus maps an HTTP status code to an error class.
func classifyStatus(status int) ErrorClass {
	switch {
	case status == 401:
		return ErrorClassAuth
	case status == 403 || status == 429:
		return ErrorClassRateLimit
	case status >= 500:
		return ErrorClassTransient
	default:
		return ErrorClassClient
	}
}

// IsRateLimited reports whether err is a rate-limit rejection.
func IsRateLimited(err error) bool {
	return hasClass(err, ErrorClassRateLimit)
}

// IsAuthentication reports whether err means the credential is invalid.
func IsAuthentication(err error) bool {
	return hasClass(err, ErrorClassAuth)
}

// IsTransient reports whether err is retryable in place.
func IsTransient(err error) bool {
	return hasClass(err, ErrorClassTransient)
}

func hasClass(err error, class ErrorClass) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Class == class
}
