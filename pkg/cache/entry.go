// Package cache provides named response caches (namespaces) with memory,
// Redis and SQLite backends.
package cache

import (
	"net/http"
	"time"
)

// Entry represents a cached origin response.
type Entry struct {
	// URL is the absolute request URL the response was stored for
	URL string `json:"url"`

	// Data is the response body
	Data []byte `json:"data"`

	// StatusCode is the HTTP status code of the cached response
	StatusCode int `json:"status_code"`

	// Headers are the response headers
	Headers http.Header `json:"headers"`

	// CachedAt is when we cached this response
	CachedAt time.Time `json:"cached_at"`
}

// OK reports whether the stored status is in the 2xx range.
func (e *Entry) OK() bool {
	return e != nil && e.StatusCode >= 200 && e.StatusCode < 300
}

// Age returns how long ago the entry was stored.
func (e *Entry) Age() time.Duration {
	if e.CachedAt.IsZero() {
		return 0
	}
	return time.Since(e.CachedAt)
}

// Size returns the body size in bytes.
func (e *Entry) Size() int {
	return len(e.Data)
}
