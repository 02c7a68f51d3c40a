// Package precache fetches a list of URLs in parallel and snapshots each
// response as a cache entry, ready to be stored in a namespace.
//
// It backs both install-time shell population and the CACHE_URLS control
// message. Callers get every successful entry plus a combined error listing
// each URL that failed, so they can choose all-or-nothing or best-effort
// storage.
//
// Example usage:
//
//	fetcher := precache.NewFetcher(originClient, origin, precache.DefaultConfig())
//	entries, err := fetcher.FetchAll(ctx, []string{"/", "/login", "/logo.png"})
//	if err != nil {
//		// at least one URL failed; err lists them (multierr)
//	}
//
// The fetcher:
//   - Resolves relative URLs against the origin
//   - Deduplicates the list
//   - Runs a bounded worker pool (default 4 workers)
//   - Treats non-2xx responses as failures
package precache
