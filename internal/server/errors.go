// Package server provides the HTTP REST API for main-image resolution.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/jonathan/media-extractor/internal/feed"
	"github.com/jonathan/media-extractor/internal/fetch"
	"github.com/jonathan/media-extractor/internal/preview"
)

// ErrValidation indicates request validation failure
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// ErrCacheUnavailable indicates an endpoint that needs the page cache was
// called on a server running without a database
type ErrCacheUnavailable struct{}

func (e *ErrCacheUnavailable) Error() string {
	return "page cache is not configured"
}

// validationError converts validator output into an ErrValidation for the
// first failing field.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &ErrValidation{Field: fe.Field(), Message: "failed on '" + fe.Tag() + "'"}
	}
	return &ErrValidation{Field: "body", Message: err.Error()}
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	var (
		validationErr *ErrValidation
		invalidURLErr *preview.InvalidURLError
		cacheErr      *ErrCacheUnavailable
		fetchErr      *fetch.Error
		feedErr       *feed.Error
	)

	switch {
	case errors.As(err, &validationErr), errors.As(err, &invalidURLErr):
		return http.StatusBadRequest
	case errors.As(err, &cacheErr):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &fetchErr), errors.As(err, &feedErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
