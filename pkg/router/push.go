package router

import (
	"context"
	"fmt"
	"strings"
)

// Notification shape shown for push events.
const (
	NotificationTitle       = "EdgeUp AI"
	DefaultNotificationBody = "New notification from EdgeUp AI"

	ActionExplore = "explore"
	ActionClose   = "close"
)

// NotificationAction is one button on a notification.
type NotificationAction struct {
	Action string `json:"action"`
	Title  string `json:"title"`
	Icon   string `json:"icon,omitempty"`
}

// NotificationData is attached to every notification.
type NotificationData struct {
	DateOfArrival int64 `json:"dateOfArrival"`
	PrimaryKey    int   `json:"primaryKey"`
}

// Notification is what a page client displays for a push.
type Notification struct {
	Title              string               `json:"title"`
	Body               string               `json:"body"`
	Icon               string               `json:"icon"`
	Badge              string               `json:"badge"`
	Vibrate            []int                `json:"vibrate"`
	Data               NotificationData     `json:"data"`
	Actions            []NotificationAction `json:"actions"`
	RequireInteraction bool                 `json:"requireInteraction"`
}

// ClientInfo describes a connected page client.
type ClientInfo struct {
	ID         string `json:"id"`
	URL        string `json:"url"`
	Focused    bool   `json:"focused"`
	Controlled bool   `json:"controlled"`
}

// Notifier displays notifications.
type Notifier interface {
	ShowNotification(ctx context.Context, n Notification) error
}

// Clients is the registry of page clients controlled by the router.
type Clients interface {
	// Claim takes control of every connected client.
	Claim(ctx context.Context) error

	// List returns the connected clients.
	List(ctx context.Context) ([]ClientInfo, error)

	// Focus brings a client to the foreground.
	Focus(ctx context.Context, id string) error

	// OpenWindow asks for a new page at url.
	OpenWindow(ctx context.Context, url string) error
}

// NewNotification builds the notification for a push payload.
func NewNotification(payload []byte, now int64) Notification {
	body := strings.TrimSpace(string(payload))
	if body == "" {
		body = DefaultNotificationBody
	}
	return Notification{
		Title:   NotificationTitle,
		Body:    body,
		Icon:    "/icons/icon-192x192.png",
		Badge:   "/icons/icon-192x192.png",
		Vibrate: []int{100, 50, 100},
		Data: NotificationData{
			DateOfArrival: now,
			PrimaryKey:    1,
		},
		Actions: []NotificationAction{
			{Action: ActionExplore, Title: "Open App", Icon: "/icons/icon-192x192.png"},
			{Action: ActionClose, Title: "Close", Icon: "/icons/icon-192x192.png"},
		},
		RequireInteraction: true,
	}
}

// Push shows a notification for payload.
func (r *Router) Push(ctx context.Context, payload []byte) (Notification, error) {
	n := NewNotification(payload, r.now().UnixMilli())
	err := r.notifier.ShowNotification(ctx, n)
	recordEvent(EventPush, err)
	if err != nil {
		return n, fmt.Errorf("show notification: %w", err)
	}
	return n, nil
}

// NotificationClick handles a click on a notification or one of its
// actions. "close" does nothing; anything else focuses an existing client
// or opens a new window at the home path.
func (r *Router) NotificationClick(ctx context.Context, action string) error {
	err := r.notificationClick(ctx, action)
	recordEvent(EventNotificationClick, err)
	return err
}

func (r *Router) notificationClick(ctx context.Context, action string) error {
	if action == ActionClose {
		return nil
	}

	clients, err := r.clients.List(ctx)
	if err != nil {
		return fmt.Errorf("list clients: %w", err)
	}
	if len(clients) > 0 {
		return r.clients.Focus(ctx, clients[0].ID)
	}
	return r.clients.OpenWindow(ctx, r.config.HomePath)
}

type nopNotifier struct{}

func (nopNotifier) ShowNotification(context.Context, Notification) error { return nil }

type nopClients struct{}

func (nopClients) Claim(context.Context) error { return nil }
func (nopClients) List(context.Context) ([]ClientInfo, error) { return nil, nil }
func (nopClients) Focus(context.Context, string) error { return nil }
func (nopClients) OpenWindow(context.Context, string) error { return nil }
