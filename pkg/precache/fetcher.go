package precache

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/edgeup-ai/offline-router/pkg/cache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.uber.org/multierr"
)

var precacheURLsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "edgeup_precache_urls_total",
	Help: "Total URLs fetched for pre-caching by result",
}, []string{"result"}) // "ok", "error"

// Doer executes an HTTP request. *http.Client and *client.Client satisfy it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config holds fetcher configuration.
type Config struct {
	// MaxConcurrency is the maximum number of parallel requests
	MaxConcurrency int

	// Timeout per URL fetch, including the body read; 0 disables it
	Timeout time.Duration
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 4,
		Timeout:        30 * time.Second,
	}
}

// URLError records why one URL could not be pre-cached.
type URLError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *URLError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("precache %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("precache %s: unexpected status %d", e.URL, e.StatusCode)
}

func (e *URLError) Unwrap() error {
	return e.Err
}

// Result is one fetched URL.
type Result struct {
	URL   *url.URL
	Entry *cache.Entry
}

// Fetcher fetches URL lists with a worker pool.
type Fetcher struct {
	doer   Doer
	base   *url.URL
	config Config
	logger zerolog.Logger
}

// NewFetcher creates a fetcher resolving relative URLs against base.
func NewFetcher(doer Doer, base *url.URL, config Config) *Fetcher {
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 4
	}
	if config.Timeout < 0 {
		config.Timeout = 0
	}

	return &Fetcher{
		doer:   doer,
		base:   base,
		config: config,
		logger: log.With().Str("component", "precache").Logger(),
	}
}

// Resolve turns raw into an absolute URL against the fetcher's base.
func (f *Fetcher) Resolve(raw string) (*url.URL, error) {
	ref, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if f.base == nil {
		if !ref.IsAbs() {
			return nil, fmt.Errorf("relative url %q without base", raw)
		}
		return ref, nil
	}
	return f.base.ResolveReference(ref), nil
}

// FetchAll fetches every URL. It returns the successful results in input
// order and a multierr of *URLError for the failures (nil if none failed).
func (f *Fetcher) FetchAll(ctx context.Context, rawURLs []string) ([]Result, error) {
	start := time.Now()

	targets, errs := f.resolveAll(rawURLs)
	if len(targets) == 0 {
		return nil, errs
	}

	queue := make(chan int, len(targets))
	for i := range targets {
		queue <- i
	}
	close(queue)

	fetched := make([]*cache.Entry, len(targets))
	failures := make([]error, len(targets))

	workers := f.config.MaxConcurrency
	if workers > len(targets) {
		workers = len(targets)
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go f.worker(ctx, targets, queue, fetched, failures, &wg)
	}
	wg.Wait()

	results := make([]Result, 0, len(targets))
	for i, target := range targets {
		if failures[i] != nil {
			multierr.AppendInto(&errs, failures[i])
			precacheURLsTotal.WithLabelValues("error").Inc()
			continue
		}
		results = append(results, Result{URL: target, Entry: fetched[i]})
		precacheURLsTotal.WithLabelValues("ok").Inc()
	}

	f.logger.Info().
		Int("requested", len(rawURLs)).
		Int("fetched", len(results)).
		Int("failed", len(multierr.Errors(errs))).
		Dur("duration", time.Since(start)).
		Msg("Pre-cache fetch complete")

	return results, errs
}

// resolveAll resolves and deduplicates the input list.
func (f *Fetcher) resolveAll(rawURLs []string) ([]*url.URL, error) {
	var errs error
	seen := make(map[string]struct{}, len(rawURLs))
	targets := make([]*url.URL, 0, len(rawURLs))

	for _, raw := range rawURLs {
		u, err := f.Resolve(raw)
		if err != nil {
			multierr.AppendInto(&errs, &URLError{URL: raw, Err: err})
			continue
		}
		u.Fragment = ""
		if _, dup := seen[u.String()]; dup {
			continue
		}
		seen[u.String()] = struct{}{}
		targets = append(targets, u)
	}
	return targets, errs
}

// worker processes URL indexes from the queue. Each index is written by
// exactly one worker, so the shared slices need no lock.
func (f *Fetcher) worker(ctx context.Context, targets []*url.URL, queue <-chan int, fetched []*cache.Entry, failures []error, wg *sync.WaitGroup) {
	defer wg.Done()

	for i := range queue {
		target := targets[i].String()

		if err := ctx.Err(); err != nil {
			failures[i] = &URLError{URL: target, Err: err}
			continue
		}

		entry, err := f.fetchOne(ctx, targets[i])
		if err != nil {
			f.logger.Warn().Err(err).Str("url", target).Msg("Pre-cache fetch failed")
			failures[i] = err
			continue
		}
		fetched[i] = entry
	}
}

// maxRedirects bounds the redirect chain followed for one URL.
const maxRedirects = 10

// ErrTooManyRedirects is reported when a URL redirects more than maxRedirects times.
var ErrTooManyRedirects = errors.New("too many redirects")

// fetchOne fetches target, following redirects. The entry keeps the
// requested URL so a later lookup for target finds it.
func (f *Fetcher) fetchOne(ctx context.Context, target *url.URL) (*cache.Entry, error) {
	if f.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.config.Timeout)
		defer cancel()
	}

	current := target
	for hop := 0; ; hop++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, current.String(), nil)
		if err != nil {
			return nil, &URLError{URL: target.String(), Err: err}
		}

		resp, err := f.doer.Do(req)
		if err != nil {
			return nil, &URLError{URL: target.String(), Err: err}
		}

		if isRedirect(resp.StatusCode) {
			location := resp.Header.Get("Location")
			resp.Body.Close()
			if location == "" {
				return nil, &URLError{URL: target.String(), StatusCode: resp.StatusCode}
			}
			if hop >= maxRedirects {
				return nil, &URLError{URL: target.String(), StatusCode: resp.StatusCode, Err: ErrTooManyRedirects}
			}
			next, err := current.Parse(location)
			if err != nil {
				return nil, &URLError{URL: target.String(), Err: fmt.Errorf("redirect location: %w", err)}
			}
			f.logger.Debug().Str("url", target.String()).Str("location", next.String()).Msg("Following redirect")
			current = next
			continue
		}

		return f.snapshot(target, req, resp)
	}
}

func (f *Fetcher) snapshot(target *url.URL, req *http.Request, resp *http.Response) (*cache.Entry, error) {
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &URLError{URL: target.String(), StatusCode: resp.StatusCode}
	}

	if resp.Request == nil {
		resp.Request = req
	}
	entry, err := cache.ResponseToEntry(resp)
	if err != nil {
		return nil, &URLError{URL: target.String(), Err: err}
	}
	entry.URL = target.String()
	return entry, nil
}

func isRedirect(status int) bool {
	switch status {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	}
	return false
}
