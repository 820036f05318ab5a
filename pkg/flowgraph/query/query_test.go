package query_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courtvision/scoutgraph/pkg/flowgraph/query"
)

func constant(v any) query.Handler {
	return func(context.Context, string) (any, error) {
		return v, nil
	}
}

func TestRegistry_Register(t *testing.T) {
	r := query.NewRegistry()

	require.NoError(t, r.Register("state", constant("ok")))

	err := r.Register("state", constant("ok"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")

	err = r.Register("", constant("ok"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name is required")

	err = r.Register("nil", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "handler is required")

	assert.Panics(t, func() { r.MustRegister("state", constant("again")) })
}

func TestRegistry_List(t *testing.T) {
	r := query.NewRegistry()
	r.MustRegister("pending", constant(nil))
	r.MustRegister("history", constant(nil))
	r.MustRegister("state", constant(nil))

	assert.Equal(t, []string{"history", "pending", "state"}, r.List())
}

func TestRegistry_Execute(t *testing.T) {
	r := query.NewRegistry()
	r.MustRegister("echo", func(_ context.Context, sessionID string) (any, error) {
		return "session " + sessionID, nil
	})

	got, err := r.Execute(context.Background(), "s-1", "echo")
	require.NoError(t, err)
	assert.Equal(t, "session s-1", got)

	_, err = r.Execute(context.Background(), "s-1", "missing")
	assert.ErrorIs(t, err, query.ErrQueryNotFound)

	_, err = r.Execute(context.Background(), "", "echo")
	assert.ErrorIs(t, err, query.ErrSessionIDRequired)
}

func TestRegistry_ExecuteAll(t *testing.T) {
	r := query.NewRegistry()
	r.MustRegister("state", constant(map[string]int{"turn": 2}))
	r.MustRegister("history", func(context.Context, string) (any, error) {
		return nil, query.ErrSessionNotFound
	})

	results := r.ExecuteAll(context.Background(), "s-1", "state", "history", "nope")
	require.Len(t, results, 3)

	assert.Equal(t, "state", results[0].Query)
	assert.Equal(t, map[string]int{"turn": 2}, results[0].Value)
	assert.Empty(t, results[0].Error)

	assert.Equal(t, query.ErrSessionNotFound.Error(), results[1].Error)
	assert.Nil(t, results[1].Value)

	assert.Contains(t, results[2].Error, "query not found")
}

func TestRegistry_HandlerError(t *testing.T) {
	r := query.NewRegistry()
	boom := errors.New("store offline")
	r.MustRegister("state", func(context.Context, string) (any, error) { return nil, boom })

	_, err := r.Execute(context.Background(), "s-1", "state")
	assert.ErrorIs(t, err, boom)
}
