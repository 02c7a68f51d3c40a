package router

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/edgeup-ai/offline-router/pkg/cache"
	"github.com/edgeup-ai/offline-router/pkg/precache"
	"go.uber.org/multierr"
)

// Phase is the router lifecycle state.
type Phase int

const (
	PhaseNew Phase = iota
	PhaseInstalling
	PhaseInstalled
	PhaseActivating
	PhaseActivated
	PhaseRedundant
)

func (p Phase) String() string {
	switch p {
	case PhaseNew:
		return "new"
	case PhaseInstalling:
		return "installing"
	case PhaseInstalled:
		return "installed"
	case PhaseActivating:
		return "activating"
	case PhaseActivated:
		return "activated"
	case PhaseRedundant:
		return "redundant"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// ErrLifecycleBusy is returned when install or activate is already running.
var ErrLifecycleBusy = errors.New("lifecycle transition in progress")

// InstallError reports a failed shell install. Nothing was stored.
type InstallError struct {
	Namespace string

	// Failed lists the URLs that could not be fetched.
	Failed []string

	Err error
}

func (e *InstallError) Error() string {
	return fmt.Sprintf("install %s: %d url(s) failed: %v", e.Namespace, len(e.Failed), e.Err)
}

func (e *InstallError) Unwrap() error {
	return e.Err
}

// Phase returns the current lifecycle phase.
func (r *Router) Phase() Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.phase
}

// transition moves to next if no other transition is running.
func (r *Router) transition(next Phase) (Phase, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.phase == PhaseInstalling || r.phase == PhaseActivating {
		return r.phase, ErrLifecycleBusy
	}
	prev := r.phase
	r.phase = next
	return prev, nil
}

func (r *Router) setPhase(p Phase) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.phase = p
}

// Install pre-populates the static namespace with the shell manifest and
// requests skip-waiting. If any manifest URL fails nothing is stored and an
// *InstallError is returned.
func (r *Router) Install(ctx context.Context) error {
	if _, err := r.transition(PhaseInstalling); err != nil {
		return err
	}
	r.mu.Lock()
	r.skipWaiting = true
	r.mu.Unlock()

	static := r.config.StaticName()
	stored, err := r.addAll(ctx, static, r.config.StaticManifest)
	recordEvent(EventInstall, err)
	if err != nil {
		r.setPhase(PhaseRedundant)
		installErr := &InstallError{Namespace: static, Failed: failedURLs(err), Err: err}
		r.logger.Error().Err(installErr).Strs("failed", installErr.Failed).Msg("Install failed")
		return installErr
	}

	r.setPhase(PhaseInstalled)
	r.logger.Info().Str("namespace", static).Int("entries", stored).Msg("Installed")
	return nil
}

// Activate drops stale namespaces and claims connected page clients. A
// namespace is stale when it is neither current namespace and its name
// starts with an owned prefix. It returns the dropped names.
func (r *Router) Activate(ctx context.Context) ([]string, error) {
	prev, err := r.transition(PhaseActivating)
	if err != nil {
		return nil, err
	}

	evicted, err := r.evictStale(ctx)
	if err != nil {
		recordEvent(EventActivate, err)
		r.setPhase(prev)
		return evicted, fmt.Errorf("activate: %w", err)
	}

	if err := r.clients.Claim(ctx); err != nil {
		r.logger.Warn().Err(err).Msg("Claiming clients failed")
	}

	r.setPhase(PhaseActivated)
	recordEvent(EventActivate, nil)
	r.logger.Info().
		Str("static", r.config.StaticName()).
		Str("dynamic", r.config.DynamicName()).
		Strs("evicted", evicted).
		Msg("Activated")
	return evicted, nil
}

// SkipWaiting forces activation of an installed router. Before install
// completes it only records the request.
func (r *Router) SkipWaiting(ctx context.Context) error {
	r.mu.Lock()
	r.skipWaiting = true
	installed := r.phase == PhaseInstalled
	r.mu.Unlock()

	if !installed {
		return nil
	}
	_, err := r.Activate(ctx)
	return err
}

// Start installs and, once skip-waiting has been requested, activates.
func (r *Router) Start(ctx context.Context) error {
	if err := r.Install(ctx); err != nil {
		return err
	}

	r.mu.Lock()
	skip := r.skipWaiting
	r.mu.Unlock()
	if !skip {
		return nil
	}
	_, err := r.Activate(ctx)
	return err
}

func (r *Router) evictStale(ctx context.Context) ([]string, error) {
	names, err := r.storage.Names(ctx)
	if err != nil {
		return nil, fmt.Errorf("list namespaces: %w", err)
	}

	var (
		evicted []string
		errs    error
	)
	for _, name := range names {
		if !r.stale(name) {
			continue
		}
		dropped, err := r.storage.Drop(ctx, name)
		if err != nil {
			multierr.AppendInto(&errs, fmt.Errorf("drop %s: %w", name, err))
			continue
		}
		if dropped {
			evicted = append(evicted, name)
			namespacesEvictedTotal.Inc()
		}
	}
	return evicted, errs
}

func (r *Router) stale(name string) bool {
	if name == r.config.StaticName() || name == r.config.DynamicName() {
		return false
	}
	if len(r.config.OwnedPrefixes) == 0 {
		return true
	}
	return hasAnyPrefix(name, r.config.OwnedPrefixes)
}

// addAll fetches every URL and stores them in the named namespace only if
// all of them succeeded. It returns the number of stored entries.
func (r *Router) addAll(ctx context.Context, name string, urls []string) (int, error) {
	if len(urls) == 0 {
		return 0, nil
	}

	results, err := r.fetcher.FetchAll(ctx, urls)
	if err != nil {
		return 0, err
	}

	ns, err := r.storage.Open(ctx, name)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", name, err)
	}

	var errs error
	for _, res := range results {
		res.Entry.CachedAt = r.now()
		if err := ns.Put(ctx, cache.NewKey(http.MethodGet, res.URL), res.Entry); err != nil {
			multierr.AppendInto(&errs, fmt.Errorf("store %s: %w", res.URL, err))
		}
	}
	if errs != nil {
		return 0, errs
	}
	return len(results), nil
}

func failedURLs(err error) []string {
	var failed []string
	for _, e := range multierr.Errors(err) {
		var urlErr *precache.URLError
		if errors.As(e, &urlErr) {
			failed = append(failed, urlErr.URL)
		}
	}
	return failed
}
