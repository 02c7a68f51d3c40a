package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgeup-ai/offline-router/pkg/router"
)

func TestLoadFrom_Defaults(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{"ORIGIN_URL": "https://app.edgeup.ai"})
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "edgeup", cfg.CachePrefix)
	assert.Equal(t, "v1", cfg.CacheVersion)
	assert.Equal(t, []string{"edgeup-", "workbox-"}, cfg.OwnedPrefixes)
	assert.Equal(t, BackendMemory, cfg.StorageBackend)
	assert.Equal(t, "async", cfg.WriteMode)
	assert.Equal(t, 30*time.Second, cfg.UpstreamTimeout)
	assert.Equal(t, 0, cfg.UpstreamMaxRetries)
	assert.Equal(t, 4, cfg.PrecacheConcurrency)
	assert.Empty(t, cfg.SyncSchedule)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, []string{"Authorization", "Cookie"}, cfg.PartitionHeaders)
	assert.False(t, cfg.SingleUser)
}

func TestRouter_SingleUserDisablesPartitioning(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{"ORIGIN_URL": "https://app.edgeup.ai"})
	require.NoError(t, err)

	rc, err := cfg.Router()
	require.NoError(t, err)
	assert.Equal(t, []string{"Authorization", "Cookie"}, rc.PartitionHeaders)

	cfg, err = LoadFrom(map[string]string{
		"ORIGIN_URL":        "https://app.edgeup.ai",
		"CACHE_SINGLE_USER": "true",
	})
	require.NoError(t, err)

	rc, err = cfg.Router()
	require.NoError(t, err)
	assert.Empty(t, rc.PartitionHeaders)
}

func TestLoadFrom_Overrides(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{
		"ORIGIN_URL":           "http://localhost:3000",
		"CACHE_VERSION":        "v2",
		"OWNED_CACHE_PREFIXES": "edgeup-",
		"STORAGE_BACKEND":      "sqlite",
		"SQLITE_PATH":          "/var/lib/edgeup/cache.db",
		"CACHE_WRITE_MODE":     "sync",
		"UPSTREAM_TIMEOUT":     "5s",
		"UPSTREAM_MAX_RETRIES": "2",
		"SYNC_SCHEDULE":        "@every 5m",
		"LOG_LEVEL":            "debug",
		"LOG_PRETTY":           "true",
	})
	require.NoError(t, err)

	rc, err := cfg.Router()
	require.NoError(t, err)
	assert.Equal(t, "edgeup-static-v2", rc.StaticName())
	assert.Equal(t, []string{"edgeup-"}, rc.OwnedPrefixes)
	assert.Equal(t, router.WriteSync, rc.WriteMode)
	assert.Equal(t, "localhost:3000", rc.Origin.Host)

	cc := cfg.Client()
	assert.Equal(t, 5*time.Second, cc.Timeout)
	assert.Equal(t, 3, cc.Retry.MaxAttempts)

	lc := cfg.Logging()
	assert.Equal(t, "debug", lc.Level)
	assert.True(t, lc.Pretty)
}

func TestLoadFrom_Invalid(t *testing.T) {
	tests := []struct {
		name string
		vars map[string]string
	}{
		{"missing origin", map[string]string{}},
		{"origin not a url", map[string]string{"ORIGIN_URL": "edgeup"}},
		{"origin with path", map[string]string{"ORIGIN_URL": "https://app.edgeup.ai/app"}},
		{"origin ftp", map[string]string{"ORIGIN_URL": "ftp://app.edgeup.ai"}},
		{"unknown backend", map[string]string{"ORIGIN_URL": "https://app.edgeup.ai", "STORAGE_BACKEND": "memcached"}},
		{"unknown write mode", map[string]string{"ORIGIN_URL": "https://app.edgeup.ai", "CACHE_WRITE_MODE": "eventual"}},
		{"bad timeout", map[string]string{"ORIGIN_URL": "https://app.edgeup.ai", "UPSTREAM_TIMEOUT": "soon"}},
		{"zero concurrency", map[string]string{"ORIGIN_URL": "https://app.edgeup.ai", "PRECACHE_CONCURRENCY": "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFrom(tt.vars)
			assert.Error(t, err)
		})
	}
}
