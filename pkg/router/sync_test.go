package router

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sliceQueue struct {
	actions  []QueuedAction
	failOn   string
	replayed []string
	cleared  bool
}

func (q *sliceQueue) Pending(context.Context) ([]QueuedAction, error) {
	return q.actions, nil
}

func (q *sliceQueue) Replay(_ context.Context, a QueuedAction) error {
	if a.ID == q.failOn {
		return errors.New("still offline")
	}
	q.replayed = append(q.replayed, a.ID)
	return nil
}

func (q *sliceQueue) Clear(context.Context) error {
	q.cleared = true
	q.actions = nil
	return nil
}

func TestSync_DefaultQueueIsEmpty(t *testing.T) {
	env := newTestEnv(t, nil)

	n, err := env.router.Sync(context.Background(), SyncTagBackground)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestSync_ReplaysAndClears(t *testing.T) {
	queue := &sliceQueue{actions: []QueuedAction{{ID: "a1"}, {ID: "a2"}}}
	env := newTestEnv(t, nil, WithActionQueue(queue))

	n, err := env.router.Sync(context.Background(), SyncTagBackground)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"a1", "a2"}, queue.replayed)
	assert.True(t, queue.cleared)
}

func TestSync_KeepsQueueOnFailure(t *testing.T) {
	queue := &sliceQueue{actions: []QueuedAction{{ID: "a1"}, {ID: "a2"}}, failOn: "a2"}
	env := newTestEnv(t, nil, WithActionQueue(queue))

	n, err := env.router.Sync(context.Background(), SyncTagBackground)
	assert.Error(t, err)
	assert.Equal(t, 1, n)
	assert.False(t, queue.cleared)
}

func TestSync_OtherTagIgnored(t *testing.T) {
	queue := &sliceQueue{actions: []QueuedAction{{ID: "a1"}}}
	env := newTestEnv(t, nil, WithActionQueue(queue))

	n, err := env.router.Sync(context.Background(), "periodic-refresh")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Empty(t, queue.replayed)
}
