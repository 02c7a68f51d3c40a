package router

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// EventKind names a router event.
type EventKind string

const (
	EventInstall           EventKind = "install"
	EventActivate          EventKind = "activate"
	EventFetch             EventKind = "fetch"
	EventMessage           EventKind = "message"
	EventPush              EventKind = "push"
	EventNotificationClick EventKind = "notificationclick"
	EventSync              EventKind = "sync"
)

// ErrUnknownEvent is returned by Handle for an unsupported event kind.
var ErrUnknownEvent = errors.New("unknown event")

// Event is the input of Handle. Only the fields of its kind are read.
type Event struct {
	Kind EventKind

	// Request is set for fetch events.
	Request *FetchRequest

	// Message is set for message events.
	Message Message

	// Payload is the push data.
	Payload []byte

	// Action is the clicked notification action ("" for the body).
	Action string

	// Tag is the sync tag.
	Tag string
}

// Result is the effect of a handled event.
type Result struct {
	// Response answers a fetch event.
	Response *http.Response

	// Evicted lists namespaces dropped by activate.
	Evicted []string

	// Notification is what a push event displayed.
	Notification *Notification

	// Replayed counts actions replayed by sync.
	Replayed int
}

// Handle dispatches ev to the matching event method.
func (r *Router) Handle(ctx context.Context, ev Event) (Result, error) {
	switch ev.Kind {
	case EventInstall:
		return Result{}, r.Install(ctx)

	case EventActivate:
		evicted, err := r.Activate(ctx)
		return Result{Evicted: evicted}, err

	case EventFetch:
		if ev.Request == nil || ev.Request.Request == nil {
			return Result{}, errors.New("fetch event without request")
		}
		resp, err := r.Fetch(ctx, ev.Request)
		return Result{Response: resp}, err

	case EventMessage:
		return Result{}, r.Message(ctx, ev.Message)

	case EventPush:
		n, err := r.Push(ctx, ev.Payload)
		return Result{Notification: &n}, err

	case EventNotificationClick:
		return Result{}, r.NotificationClick(ctx, ev.Action)

	case EventSync:
		n, err := r.Sync(ctx, ev.Tag)
		return Result{Replayed: n}, err

	default:
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownEvent, ev.Kind)
	}
}
