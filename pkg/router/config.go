package router

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// WriteMode controls whether network-first strategies wait for their cache
// write before returning the response.
type WriteMode string

const (
	// WriteAsync stores responses on a background goroutine.
	WriteAsync WriteMode = "async"

	// WriteSync stores responses before returning them.
	WriteSync WriteMode = "sync"
)

// Config holds router configuration.
type Config struct {
	// Origin is the EdgeUp web origin. Only requests to this scheme and
	// host are intercepted.
	Origin *url.URL

	// CachePrefix and Version build the namespace names
	// (<prefix>-static-<version>, <prefix>-dynamic-<version>).
	CachePrefix string
	Version     string

	// OwnedPrefixes selects which stale namespaces Activate may drop.
	// Empty means every non-current namespace.
	OwnedPrefixes []string

	// StaticManifest is the shell fetched into the static namespace on install.
	StaticManifest []string

	// CacheableAPI lists the API path prefixes stored in the dynamic namespace.
	CacheableAPI []string

	// HomePath is the document served to offline navigations when cached.
	HomePath string

	// AuthCheckPath answers with a structured 503 when offline and uncached.
	AuthCheckPath string

	// PartitionHeaders are the credential headers that scope entries in the
	// dynamic namespace, so a response cached for one session is never served
	// to another. Empty shares the dynamic namespace between all callers.
	PartitionHeaders []string

	WriteMode WriteMode

	// PrecacheConcurrency bounds parallel fetches for install and CACHE_URLS.
	PrecacheConcurrency int

	// PrecacheTimeout bounds one pre-cache fetch; 0 disables it.
	PrecacheTimeout time.Duration
}

// DefaultConfig returns the EdgeUp defaults for origin.
func DefaultConfig(origin *url.URL) Config {
	return Config{
		Origin:        origin,
		CachePrefix:   "edgeup",
		Version:       "v1",
		OwnedPrefixes: []string{"edgeup-", "workbox-"},
		StaticManifest: []string{
			"/",
			"/login",
			"/dashboard",
			"/manifest.json",
			"/icons/icon-192x192.png",
			"/icons/icon-512x512.png",
			"/logo.png",
		},
		CacheableAPI: []string{
			"/api/auth/me",
			"/api/courses",
			"/api/analytics/user",
		},
		HomePath:            "/",
		AuthCheckPath:       "/api/auth/me",
		PartitionHeaders:    []string{"Authorization", "Cookie"},
		WriteMode:           WriteAsync,
		PrecacheConcurrency: 4,
		PrecacheTimeout:     30 * time.Second,
	}
}

// StaticName returns the current static namespace name.
func (c Config) StaticName() string {
	return fmt.Sprintf("%s-static-%s", c.CachePrefix, c.Version)
}

// DynamicName returns the current dynamic namespace name.
func (c Config) DynamicName() string {
	return fmt.Sprintf("%s-dynamic-%s", c.CachePrefix, c.Version)
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Origin == nil || c.Origin.Scheme == "" || c.Origin.Host == "" {
		return errors.New("origin must be an absolute URL")
	}
	if c.CachePrefix == "" {
		return errors.New("cache prefix is required")
	}
	if c.Version == "" {
		return errors.New("cache version is required")
	}
	if c.HomePath == "" {
		return errors.New("home path is required")
	}
	switch c.WriteMode {
	case WriteAsync, WriteSync:
	default:
		return fmt.Errorf("unknown write mode %q", c.WriteMode)
	}
	if c.PrecacheConcurrency < 0 {
		return fmt.Errorf("precache concurrency must be >= 0 (got %d)", c.PrecacheConcurrency)
	}
	return nil
}
