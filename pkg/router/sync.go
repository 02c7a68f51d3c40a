package router

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/multierr"
)

// SyncTagBackground is the sync tag that replays queued offline actions.
const SyncTagBackground = "background-sync"

// QueuedAction is a request recorded while offline.
type QueuedAction struct {
	ID     string
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// ActionQueue stores offline actions for replay on background sync.
type ActionQueue interface {
	Pending(ctx context.Context) ([]QueuedAction, error)
	Replay(ctx context.Context, action QueuedAction) error
	Clear(ctx context.Context) error
}

// NopQueue never holds any actions.
type NopQueue struct{}

func (NopQueue) Pending(context.Context) ([]QueuedAction, error) { return nil, nil }
func (NopQueue) Replay(context.Context, QueuedAction) error { return nil }
func (NopQueue) Clear(context.Context) error { return nil }

// Sync handles a background sync event. For the background-sync tag every
// pending action is replayed; the queue is cleared only when all replays
// succeed. Other tags are ignored. It returns the number of replayed actions.
func (r *Router) Sync(ctx context.Context, tag string) (int, error) {
	if tag != SyncTagBackground {
		r.logger.Debug().Str("tag", tag).Msg("Ignoring sync tag")
		return 0, nil
	}

	n, err := r.replayQueue(ctx)
	recordEvent(EventSync, err)
	if err != nil {
		r.logger.Warn().Err(err).Int("replayed", n).Msg("Background sync incomplete")
		return n, err
	}
	if n > 0 {
		r.logger.Info().Int("replayed", n).Msg("Background sync complete")
	}
	return n, nil
}

func (r *Router) replayQueue(ctx context.Context) (int, error) {
	actions, err := r.queue.Pending(ctx)
	if err != nil {
		return 0, fmt.Errorf("load pending actions: %w", err)
	}

	var (
		replayed int
		errs     error
	)
	for _, action := range actions {
		if err := r.queue.Replay(ctx, action); err != nil {
			multierr.AppendInto(&errs, fmt.Errorf("replay %s: %w", action.ID, err))
			continue
		}
		replayed++
	}
	if errs != nil {
		return replayed, errs
	}

	if err := r.queue.Clear(ctx); err != nil {
		return replayed, fmt.Errorf("clear queue: %w", err)
	}
	return replayed, nil
}
