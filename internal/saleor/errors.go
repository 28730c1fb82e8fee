package saleor

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrCheckoutNotFound = errors.New("checkout not found")
	ErrUnavailable      = errors.New("checkout api unavailable")
	ErrEmptyPayload     = errors.New("checkout api returned an empty payload")
)

// APIError is returned when the checkout API answers but rejects the operation.
type APIError struct {
	Op             string
	StatusCode     int
	GraphQLErrors  []GraphQLError
	MutationErrors []MutationError
}

func (e *APIError) Error() string {
	var parts []string
	for _, ge := range e.GraphQLErrors {
		parts = append(parts, ge.Message)
	}
	for _, me := range e.MutationErrors {
		if me.Field != "" {
			parts = append(parts, fmt.Sprintf("%s: %s (%s)", me.Field, me.Message, me.Code))
		} else {
			parts = append(parts, fmt.Sprintf("%s (%s)", me.Message, me.Code))
		}
	}
	if len(parts) == 0 {
		return fmt.Sprintf("%s failed with status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s failed: %s", e.Op, strings.Join(parts, "; "))
}

// IsAPIError reports whether err carries field level errors from the API.
func IsAPIError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr)
}
