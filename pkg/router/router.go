package router

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/edgeup-ai/offline-router/pkg/cache"
	"github.com/edgeup-ai/offline-router/pkg/precache"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Network performs requests against the origin. *client.Client satisfies it.
type Network interface {
	Do(req *http.Request) (*http.Response, error)
}

// Router resolves intercepted requests against the cache namespaces and
// handles lifecycle, message, push and sync events.
type Router struct {
	config   Config
	storage  cache.Storage
	network  Network
	fetcher  *precache.Fetcher
	notifier Notifier
	clients  Clients
	queue    ActionQueue
	logger   zerolog.Logger
	now      func() time.Time

	mu          sync.Mutex
	phase       Phase
	skipWaiting bool

	writes sync.WaitGroup
}

// Option configures a Router.
type Option func(*Router)

// WithNotifier sets the notification sink for push events.
func WithNotifier(n Notifier) Option {
	return func(r *Router) { r.notifier = n }
}

// WithClients sets the page client registry.
func WithClients(c Clients) Option {
	return func(r *Router) { r.clients = c }
}

// WithActionQueue sets the queue replayed on background sync.
func WithActionQueue(q ActionQueue) Option {
	return func(r *Router) { r.queue = q }
}

// WithLogger overrides the component logger.
func WithLogger(l zerolog.Logger) Option {
	return func(r *Router) { r.logger = l }
}

// WithNow overrides the clock (for testing).
func WithNow(now func() time.Time) Option {
	return func(r *Router) { r.now = now }
}

// New creates a router. network is used for every origin request,
// including pre-caching.
func New(cfg Config, storage cache.Storage, network Network, opts ...Option) (*Router, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid router config: %w", err)
	}
	if storage == nil {
		return nil, errors.New("cache storage is required")
	}
	if network == nil {
		return nil, errors.New("network is required")
	}

	r := &Router{
		config:   cfg,
		storage:  storage,
		network:  network,
		notifier: nopNotifier{},
		clients:  nopClients{},
		queue:    NopQueue{},
		logger:   log.With().Str("component", "router").Logger(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}

	r.fetcher = precache.NewFetcher(network, cfg.Origin, precache.Config{
		MaxConcurrency: cfg.PrecacheConcurrency,
		Timeout:        cfg.PrecacheTimeout,
	})
	return r, nil
}

// Config returns the router configuration.
func (r *Router) Config() Config {
	return r.config
}

// Fetch resolves one request. Non-GET and cross-origin requests go to the
// network untouched. Intercepted requests always get a response: failures
// the strategy cannot recover from end in the offline fallback.
func (r *Router) Fetch(ctx context.Context, fr *FetchRequest) (*http.Response, error) {
	req := fr.Request.WithContext(ctx)
	fr = &FetchRequest{Request: req, Mode: fr.Mode, Destination: fr.Destination}

	if req.Method != http.MethodGet || !r.sameOrigin(req) {
		routerRequestsTotal.WithLabelValues("other", outcomePassthrough).Inc()
		return r.network.Do(req)
	}

	class := Classify(req.URL.Path)
	start := time.Now()

	var (
		resp    *http.Response
		outcome string
		err     error
	)
	switch class {
	case ClassAPI:
		resp, outcome, err = r.fetchAPI(ctx, fr)
	case ClassAsset:
		resp, outcome, err = r.fetchAsset(ctx, fr)
	default:
		resp, outcome, err = r.fetchPage(ctx, fr)
	}

	if err != nil {
		r.logger.Warn().
			Err(err).
			Str("class", string(class)).
			Str("path", req.URL.Path).
			Msg("Serving offline fallback")
		resp = r.offlineFallback(ctx, fr)
		outcome = outcomeFallback
	}

	routerRequestsTotal.WithLabelValues(string(class), outcome).Inc()
	routerRequestDuration.WithLabelValues(string(class)).Observe(time.Since(start).Seconds())
	return resp, nil
}

// Wait blocks until every pending background cache write has finished.
func (r *Router) Wait() {
	r.writes.Wait()
}

func (r *Router) sameOrigin(req *http.Request) bool {
	u := req.URL
	return strings.EqualFold(u.Scheme, r.config.Origin.Scheme) &&
		strings.EqualFold(u.Host, r.config.Origin.Host)
}

// match looks key up in the named namespace.
func (r *Router) match(ctx context.Context, name string, key cache.Key) (*cache.Entry, error) {
	ns, err := r.storage.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	return ns.Match(ctx, key)
}

// put stores entry in the named namespace.
func (r *Router) put(ctx context.Context, name string, key cache.Key, entry *cache.Entry) error {
	ns, err := r.storage.Open(ctx, name)
	if err != nil {
		return err
	}
	return ns.Put(ctx, key, entry)
}

// store writes entry according to the configured write mode. Failures are
// logged, never returned: the live response is already on its way.
func (r *Router) store(ctx context.Context, name string, key cache.Key, entry *cache.Entry) {
	write := func(ctx context.Context) {
		if err := r.put(ctx, name, key, entry); err != nil {
			r.logger.Warn().
				Err(err).
				Str("namespace", name).
				Str("key", key.String()).
				Msg("Cache write failed")
		}
	}

	if r.config.WriteMode == WriteSync {
		write(ctx)
		return
	}

	r.writes.Add(1)
	go func() {
		defer r.writes.Done()
		write(context.WithoutCancel(ctx))
	}()
}

// snapshot reads an OK network response into a cache entry, leaving resp
// readable for the caller.
func (r *Router) snapshot(resp *http.Response) (*cache.Entry, error) {
	entry, err := cache.ResponseToEntry(resp)
	if err != nil {
		resp.Body.Close()
		return nil, err
	}
	entry.CachedAt = r.now()
	return entry, nil
}

func isOK(resp *http.Response) bool {
	return resp.StatusCode >= 200 && resp.StatusCode <= 299
}
