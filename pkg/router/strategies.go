package router

import (
	"context"
	"errors"
	"net/http"

	"github.com/edgeup-ai/offline-router/pkg/cache"
)

// fetchAPI is network first. Allowlisted OK responses are stored in the
// dynamic namespace; when the network fails a stored copy is served.
func (r *Router) fetchAPI(ctx context.Context, fr *FetchRequest) (*http.Response, string, error) {
	req := fr.Request
	key := r.dynamicKey(req)
	dynamic := r.config.DynamicName()

	resp, netErr := r.fetchNetwork(req)
	if netErr == nil {
		if isOK(resp) && hasAnyPrefix(req.URL.Path, r.config.CacheableAPI) {
			entry, err := r.snapshot(resp)
			if err != nil {
				netErr = err
			} else {
				r.store(ctx, dynamic, key, entry)
			}
		}
		if netErr == nil {
			return resp, outcomeNetwork, nil
		}
	}

	entry, err := r.matchDynamic(ctx, dynamic, key)
	if err == nil {
		r.logger.Debug().Str("path", req.URL.Path).Dur("age", entry.Age()).Msg("Serving API response from cache")
		return cache.EntryToResponse(entry, req), outcomeCache, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		return nil, "", errors.Join(netErr, err)
	}

	if req.URL.Path == r.config.AuthCheckPath {
		offlineFallbacksTotal.WithLabelValues("auth").Inc()
		return authOfflineResponse(req), outcomeSynthetic, nil
	}
	return nil, "", netErr
}

// fetchAsset is cache first against the static namespace.
func (r *Router) fetchAsset(ctx context.Context, fr *FetchRequest) (*http.Response, string, error) {
	req := fr.Request
	key := cache.KeyForRequest(req)
	static := r.config.StaticName()

	entry, storeErr := r.match(ctx, static, key)
	switch {
	case storeErr == nil:
		return cache.EntryToResponse(entry, req), outcomeCache, nil
	case errors.Is(storeErr, cache.ErrCacheMiss):
		storeErr = nil
	default:
		r.logger.Warn().Err(storeErr).Str("key", key.String()).Msg("Cache lookup failed")
	}

	resp, netErr := r.fetchNetwork(req)
	if netErr == nil && isOK(resp) {
		entry, err := r.snapshot(resp)
		if err != nil {
			netErr = err
		} else if err := r.put(ctx, static, key, entry); err != nil {
			r.logger.Warn().Err(err).Str("key", key.String()).Msg("Cache write failed")
		}
	}
	if netErr == nil {
		return resp, outcomeNetwork, nil
	}

	if fr.Destination == DestImage {
		offlineFallbacksTotal.WithLabelValues("image").Inc()
		return imagePlaceholderResponse(req), outcomeSynthetic, nil
	}
	return nil, "", errors.Join(netErr, storeErr)
}

// fetchPage is network first with the dynamic namespace as backup.
func (r *Router) fetchPage(ctx context.Context, fr *FetchRequest) (*http.Response, string, error) {
	req := fr.Request
	key := r.dynamicKey(req)
	dynamic := r.config.DynamicName()

	resp, netErr := r.fetchNetwork(req)
	if netErr == nil && isOK(resp) {
		entry, err := r.snapshot(resp)
		if err != nil {
			netErr = err
		} else {
			r.store(ctx, dynamic, key, entry)
		}
	}
	if netErr == nil {
		return resp, outcomeNetwork, nil
	}

	entry, err := r.matchDynamic(ctx, dynamic, key)
	if err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, "", netErr
		}
		return nil, "", errors.Join(netErr, err)
	}
	r.logger.Debug().Str("path", req.URL.Path).Dur("age", entry.Age()).Msg("Serving page from cache")
	return cache.EntryToResponse(entry, req), outcomeCache, nil
}

// dynamicKey scopes the request key to the caller's credentials.
func (r *Router) dynamicKey(req *http.Request) cache.Key {
	return cache.KeyForRequest(req).WithPartition(cache.CredentialPartition(req, r.config.PartitionHeaders))
}

// matchDynamic looks up key and falls back to the anonymous entry stored by
// CACHE_URLS. Entries of other partitions are never consulted.
func (r *Router) matchDynamic(ctx context.Context, name string, key cache.Key) (*cache.Entry, error) {
	entry, err := r.match(ctx, name, key)
	if key.Partition == "" || !errors.Is(err, cache.ErrCacheMiss) {
		return entry, err
	}
	return r.match(ctx, name, key.WithPartition(""))
}

func (r *Router) fetchNetwork(req *http.Request) (*http.Response, error) {
	resp, err := r.network.Do(req)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, errors.New("network returned no response")
	}
	return resp, nil
}
