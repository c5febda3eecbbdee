// Package store defines the hierarchical document-store port the services
// are written against. Values are JSON documents addressed by slash-separated
// paths, mirroring the realtime-database layout the mobile clients use.
package store

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by Get when no document exists at the path.
	ErrNotFound = errors.New("document not found")
	// ErrCASMismatch is returned by CompareAndSwap when the current value
	// no longer matches the expected one.
	ErrCASMismatch = errors.New("compare-and-swap mismatch")
)

// Store is the set of primitives the backend needs from the document tree.
type Store interface {
	// Get reads the document at path.
	Get(ctx context.Context, path string) ([]byte, error)

	// Set replaces the document at path.
	Set(ctx context.Context, path string, value []byte) error

	// Delete removes the document at path. Deleting a missing path is not
	// an error.
	Delete(ctx context.Context, path string) error

	// List returns the immediate children of path, keyed by child name.
	List(ctx context.Context, path string) (map[string][]byte, error)

	// CompareAndSwap replaces the document at path only if its current
	// value equals expected. A nil expected asserts the path is absent.
	// Returns ErrCASMismatch when the assertion fails.
	CompareAndSwap(ctx context.Context, path string, expected, value []byte) error
}
