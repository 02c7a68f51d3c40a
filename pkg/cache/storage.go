package cache

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrCacheMiss indicates the requested key was not found in the namespace
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the cache entry is invalid or corrupted
	ErrInvalidEntry = errors.New("invalid cache entry")

	// ErrNotCacheable is returned by Put for non-GET keys or non-2xx responses
	ErrNotCacheable = errors.New("response not cacheable")
)

// Namespace is a named mapping from request identity to the most recently
// stored response. Implementations are safe for concurrent use.
type Namespace interface {
	// Name returns the namespace name.
	Name() string

	// Match returns the entry stored for key or ErrCacheMiss.
	Match(ctx context.Context, key Key) (*Entry, error)

	// Put stores entry under key, replacing any previous value.
	Put(ctx context.Context, key Key, entry *Entry) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key Key) error

	// Keys lists the stored keys in no particular order.
	Keys(ctx context.Context) ([]Key, error)
}

// Storage holds every namespace of one router.
type Storage interface {
	// Open returns the named namespace, creating it if needed.
	Open(ctx context.Context, name string) (Namespace, error)

	// Names lists the existing namespaces.
	Names(ctx context.Context) ([]string, error)

	// Drop removes a namespace and all of its entries.
	// It reports whether the namespace existed.
	Drop(ctx context.Context, name string) (bool, error)

	// Close releases backend resources.
	Close() error
}

// checkPut enforces the storage invariants shared by all backends.
func checkPut(key Key, entry *Entry) error {
	if entry == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}
	if !key.Cacheable() {
		return fmt.Errorf("%w: method %s", ErrNotCacheable, key.Method)
	}
	if !entry.OK() {
		return fmt.Errorf("%w: status %d", ErrNotCacheable, entry.StatusCode)
	}
	return nil
}
