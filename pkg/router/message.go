package router

import (
	"context"
	"errors"
	"fmt"
)

// Control message types posted by the page.
const (
	MessageSkipWaiting = "SKIP_WAITING"
	MessageCacheURLs   = "CACHE_URLS"
)

// ErrUnknownMessage is returned for an unsupported message type.
var ErrUnknownMessage = errors.New("unknown message type")

// Message is a control message from a page client.
type Message struct {
	Type string   `json:"type" binding:"required"`
	URLs []string `json:"urls,omitempty"`
}

// Message handles a control message. CACHE_URLS stores the URLs in the
// dynamic namespace, all or nothing; repeating it with the same list leaves
// the same entries behind.
func (r *Router) Message(ctx context.Context, msg Message) error {
	var err error
	switch msg.Type {
	case MessageSkipWaiting:
		err = r.SkipWaiting(ctx)
	case MessageCacheURLs:
		var stored int
		stored, err = r.addAll(ctx, r.config.DynamicName(), msg.URLs)
		if err == nil {
			r.logger.Info().Int("entries", stored).Msg("Cached URLs on request")
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownMessage, msg.Type)
	}

	recordEvent(EventMessage, err)
	return err
}
