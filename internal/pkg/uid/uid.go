// Package uid generates identifiers: numeric primary keys, sortable UUIDs for
// correlation and JWT ids, and unguessable opaque tokens.
package uid

// NumberID generates unique int64 identifiers.
type NumberID interface {
	Generate() int64
}

// StringID generates unique string identifiers.
type StringID interface {
	Generate() string
}
