package agent

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courtvision/scoutgraph/internal/llm/llmtest"
	"github.com/courtvision/scoutgraph/pkg/flowgraph"
	"github.com/courtvision/scoutgraph/pkg/flowgraph/checkpoint"
	"github.com/courtvision/scoutgraph/pkg/flowgraph/query"
)

func TestService_RunValidation(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.Run(context.Background(), Turn{Input: "hi"}, nil)
	assert.ErrorIs(t, err, ErrSessionRequired)

	_, err = h.svc.Run(context.Background(), Turn{SessionID: "s", Input: 0, IsResume: true}, nil)
	assert.ErrorIs(t, err, ErrInterruptTypeRequired)

	_, err = h.svc.Run(context.Background(),
		Turn{SessionID: "unknown", Input: 0, IsResume: true, InterruptType: KindPlayerSelection}, nil)
	assert.ErrorIs(t, err, flowgraph.ErrNoCheckpoints)
}

func TestService_EmitErrorStopsTurn(t *testing.T) {
	h := newHarness(t)
	h.router.Push(routerReply("stats_query", nil, nil, nil))

	stop := errors.New("client went away")
	var seen []string
	_, err := h.svc.Run(context.Background(), Turn{SessionID: "s", Input: "top scorers"},
		func(_ context.Context, ev Event) error {
			seen = append(seen, ev.Node)
			return stop
		})

	require.Error(t, err)
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, []string{NodeRouter}, seen)
	assert.Zero(t, h.sql.Calls())
}

func TestService_InterruptEventCarriesPayload(t *testing.T) {
	h := newHarness(t)
	h.router.Push(routerReply("scouting_report", "Aaron Best", nil, nil))

	_, events := h.send(t, "s", "scout Aaron Best")
	require.Len(t, events, 2)

	ev := events[1]
	assert.Equal(t, flowgraph.InterruptNode, ev.Node)
	raw, ok := ev.Output.(json.RawMessage)
	require.True(t, ok)
	assert.Contains(t, string(raw), `"type":"player_selection_for_scouting"`)
	assert.Contains(t, string(raw), `"search_results"`)
}

func TestService_Queries(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.router.Push(routerReply("scouting_report", "Aaron Best", nil, nil))
	h.send(t, "s", "scout Aaron Best")

	assert.Equal(t, []string{QueryHistory, QueryMessages, QueryPending, QueryState}, h.svc.Queries())

	v, err := h.svc.Query(ctx, "s", QueryState)
	require.NoError(t, err)
	st, ok := v.(State)
	require.True(t, ok)
	assert.Equal(t, IntentScouting, st.Intent)
	assert.Equal(t, "Aaron Best", st.PlayerName)

	v, err = h.svc.Query(ctx, "s", QueryMessages)
	require.NoError(t, err)
	assert.Equal(t, []Message{Human("scout Aaron Best")}, v)

	v, err = h.svc.Query(ctx, "s", QueryPending)
	require.NoError(t, err)
	pending, ok := v.(*flowgraph.Interrupt)
	require.True(t, ok)
	assert.Equal(t, KindPlayerSelection, pending.Kind)

	v, err = h.svc.Query(ctx, "s", QueryHistory)
	require.NoError(t, err)
	infos, ok := v.([]checkpoint.Info)
	require.True(t, ok)
	assert.NotEmpty(t, infos)

	_, err = h.svc.Query(ctx, "missing", QueryState)
	assert.ErrorIs(t, err, query.ErrSessionNotFound)
	_, err = h.svc.Query(ctx, "missing", QueryHistory)
	assert.ErrorIs(t, err, query.ErrSessionNotFound)
	_, err = h.svc.Query(ctx, "s", "secrets")
	assert.ErrorIs(t, err, query.ErrQueryNotFound)
}

func TestService_Delete(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.router.Push(routerReply("text_response", nil, nil, nil))
	h.respond.Push(llmtest.JSON(map[string]any{"main_response": "Hello!"}))
	h.send(t, "s", "hi")

	_, ok, err := h.svc.State(ctx, "s")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, h.svc.Delete(ctx, "s"))

	_, ok, err = h.svc.State(ctx, "s")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestService_ConversationAccumulates(t *testing.T) {
	h := newHarness(t)
	h.router.Push(
		routerReply("text_response", nil, nil, nil),
		routerReply("stats_query", nil, "HoopQueens", nil),
	)
	h.respond.Push(llmtest.JSON(map[string]any{"main_response": "Hello!"}))
	h.sql.Push(finalSQL("Top scorers listed."))

	h.send(t, "s", "hi")
	res, _ := h.send(t, "s", "top HoopQueens scorers")

	msgs := res.State.Messages
	require.Len(t, msgs, 4)
	assert.Equal(t, Human("hi"), msgs[0])
	assert.Equal(t, Assistant("Hello!"), msgs[1])
	assert.Equal(t, Human("top HoopQueens scorers"), msgs[2])
	assert.Equal(t, RoleAssistant, msgs[3].Role)
	assert.Equal(t, 2, res.State.Turn)
	assert.Equal(t, 2, res.State.RoutingIteration)

	// The router sees the full conversation on the second turn.
	reqs := h.router.Requests()
	require.Len(t, reqs, 2)
	assert.Len(t, reqs[1].Messages, 3)
}
