package router

import (
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandle(t *testing.T) {
	notifier := &recordingNotifier{}
	env := newTestEnv(t, nil, WithNotifier(notifier))
	ctx := context.Background()

	_, err := env.router.Handle(ctx, Event{Kind: EventInstall})
	require.NoError(t, err)

	res, err := env.router.Handle(ctx, Event{Kind: EventActivate})
	require.NoError(t, err)
	assert.Empty(t, res.Evicted)
	assert.Equal(t, PhaseActivated, env.router.Phase())

	req, err := http.NewRequest(http.MethodGet, env.url("/logo.png"), nil)
	require.NoError(t, err)
	env.network.Reset()
	res, err = env.router.Handle(ctx, Event{Kind: EventFetch, Request: NewFetchRequest(req)})
	require.NoError(t, err)
	body, _ := io.ReadAll(res.Response.Body)
	assert.Equal(t, "png-logo", string(body))
	assert.Equal(t, 0, env.network.CallCount(), "shell asset must come from the install cache")

	_, err = env.router.Handle(ctx, Event{Kind: EventMessage, Message: Message{Type: MessageCacheURLs, URLs: []string{"/api/courses"}}})
	require.NoError(t, err)

	res, err = env.router.Handle(ctx, Event{Kind: EventPush, Payload: []byte("hello")})
	require.NoError(t, err)
	require.NotNil(t, res.Notification)
	assert.Equal(t, "hello", res.Notification.Body)

	_, err = env.router.Handle(ctx, Event{Kind: EventNotificationClick, Action: ActionClose})
	require.NoError(t, err)

	res, err = env.router.Handle(ctx, Event{Kind: EventSync, Tag: SyncTagBackground})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Replayed)
}

func TestHandle_Errors(t *testing.T) {
	env := newTestEnv(t, nil)

	_, err := env.router.Handle(context.Background(), Event{Kind: "periodicsync"})
	assert.ErrorIs(t, err, ErrUnknownEvent)

	_, err = env.router.Handle(context.Background(), Event{Kind: EventFetch})
	assert.Error(t, err)
}
