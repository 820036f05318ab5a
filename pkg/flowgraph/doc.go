/*
Package flowgraph runs resumable, checkpointed conversation graphs.

# Overview

A graph is a set of named nodes joined by edges. Each node reads the current
state S and returns an update U; a reducer merges the update into the state.
One call to Invoke or Resume is a turn: it runs nodes until END, until a node
suspends to ask the caller something, or until an error.

Turns belong to a session. With a checkpoint store, the state is saved after
every node, and the next turn for the session starts from the latest
checkpoint.

# Basic Usage

	type Conversation struct {
	    Messages []string
	}

	type Update struct {
	    Messages []string
	}

	func merge(s Conversation, u Update) Conversation {
	    s.Messages = append(s.Messages, u.Messages...)
	    return s
	}

	func respond(ctx flowgraph.Context, s Conversation) (Update, error) {
	    return Update{Messages: []string{"hello"}}, nil
	}

	graph := flowgraph.NewGraph[Conversation, Update]().
	    AddNode("respond", respond).
	    AddEdge("respond", flowgraph.END).
	    SetReducer(merge).
	    SetEntry("respond")

	compiled, err := graph.Compile()
	if err != nil {
	    log.Fatal(err)
	}

	res, err := compiled.Invoke(ctx, "session-1", Update{Messages: []string{"hi"}},
	    flowgraph.WithCheckpointing(store))

# Conditional Branching

	graph.AddConditionalEdge("router", func(ctx flowgraph.Context, s Conversation) string {
	    if s.Intent == "stats" {
	        return "stats_lookup"
	    }
	    return "respond"
	})

The router returns the ID of the next node or END. Unknown IDs fail the turn
with a *RouterError. Turns are bounded by WithMaxIterations (default 50).

# Interrupts

A node asks the caller a question by returning Suspend:

	func confirm(ctx flowgraph.Context, s Conversation) (Update, error) {
	    r := ctx.Resumption()
	    if r == nil {
	        return Update{}, flowgraph.Suspend("confirm", "Proceed?", nil)
	    }
	    if yes, _ := r.Value.(bool); !yes {
	        return Update{Messages: []string{"cancelled"}}, nil
	    }
	    return Update{Messages: []string{"done"}}, nil
	}

The turn ends with Result.Interrupt set and a checkpoint marking the pending
question. Resume with the same kind re-enters the suspended node:

	res, err = compiled.Resume(ctx, "session-1", "confirm", true,
	    flowgraph.WithCheckpointing(store))

Data saved as the third argument of Suspend comes back through
Resumption.Step, so a node that suspends more than once does not repeat work.
A fresh Invoke on a session with a pending question discards it.

# Error Handling

OnNodeError installs a fallback node. A node that fails or panics has its
error turned into an update, which is merged and checkpointed before the turn
jumps to the fallback:

	graph.OnNodeError("respond", func(nodeID string, err error) Update {
	    return Update{Error: err.Error()}
	})

Without a handler, errors are returned as *NodeError or *PanicError.

# Cancellation

Nodes run on a context detached from the caller. Caller cancellation is
checked between nodes and ends the turn with a *CancellationError; every
completed node has already been checkpointed.

# Observability

	res, err := compiled.Invoke(ctx, id, input,
	    flowgraph.WithObservabilityLogger(logger),
	    flowgraph.WithMetrics(true),
	    flowgraph.WithTracing(true),
	    flowgraph.WithEventHandler(func(ctx context.Context, ev flowgraph.Event[Update]) error {
	        return stream.Write(ev)
	    }))

Logs carry session_id, run_id and node_id. Spans are flowgraph.invoke or
flowgraph.resume with flowgraph.node.{id} children.

# Thread Safety

  - Graph is NOT safe for concurrent use during construction
  - CompiledGraph IS safe for concurrent use
  - Turns for one session must be serialized; pass a Locker with WithSessionLock

# Subpackages

  - checkpoint: checkpoint storage (memory, SQLite, Redis)
  - session: per-session turn locks
  - errors: error taxonomy and user-facing messages
  - config: graph and store configuration
  - observability: logging, metrics, and tracing helpers
*/
package flowgraph
