package types

import "errors"

// Page is one slice of a paginated collection listing. Next is nil when the
// page reaches the end of the collection.
type Page[T any] struct {
	Items []T     `json:"items"`
	Next  *string `json:"next"`
}

// Collection operation errors.
var (
	ErrNotFound      = errors.New("entity not found")
	ErrConflict      = errors.New("entity conflict")
	ErrInvalidCursor = errors.New("invalid cursor")
	ErrValidation    = errors.New("validation failed")
)

// ErrUpstream is returned when the upstream driver data API fails.
var ErrUpstream = errors.New("upstream request failed")
