// Package cache provides the response caches used by the offline router.
//
// A Storage holds named namespaces; a Namespace maps a request identity
// (method + absolute URL) to the most recently stored response. Backends:
//
// - MemoryStorage: process memory, used by tests and single-instance setups
// - RedisStorage: shared across router instances (one hash per namespace)
// - SQLiteStorage: durable local file, survives restarts
//
// Invariants enforced by every backend:
//
// - Only GET keys are stored
// - Only 2xx responses are stored
// - Entries never expire on their own; a namespace is dropped as a whole
//
// # Basic Usage
//
//	storage := cache.NewMemoryStorage()
//	ns, err := storage.Open(ctx, "edgeup-static-v1")
//
//	key := cache.KeyForRequest(req)
//	entry, err := ns.Match(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// fetch from origin
//	}
//
// # HTTP Response Caching
//
//	// Snapshot the response; resp.Body stays readable for the caller
//	entry, err := cache.ResponseToEntry(resp)
//	if err != nil {
//		return err
//	}
//	if err := ns.Put(ctx, key, entry); err != nil {
//		return err
//	}
//
//	// Replay later
//	resp := cache.EntryToResponse(entry, req)
//
// # Metrics
//
//   - edgeup_cache_hits_total{namespace} - Namespace hits
//   - edgeup_cache_misses_total{namespace} - Namespace misses
//   - edgeup_cache_written_bytes_total{namespace} - Bytes written
//   - edgeup_cache_errors_total{operation} - Backend errors
package cache
