package checkpoint

import (
	"encoding/json"
	"time"
)

// Version is the current checkpoint format version.
// Increment when making breaking changes to checkpoint structure.
const Version = 2

// Checkpoint is the persisted snapshot of a session.
// It contains all information needed to continue the session.
type Checkpoint struct {
	// Metadata
	Version   int       `json:"version"`
	SessionID string    `json:"session_id"`
	RunID     string    `json:"run_id,omitempty"`
	NodeID    string    `json:"node_id"`
	Sequence  int       `json:"sequence"`
	Timestamp time.Time `json:"timestamp"`

	// Execution state
	State    json.RawMessage `json:"state"`
	NextNode string          `json:"next_node"`

	// Pending is set when the turn stopped on a suspend inside NodeID.
	Pending *Pending `json:"pending,omitempty"`

	PrevNodeID string `json:"prev_node_id,omitempty"`
}

// Pending is a suspend request waiting for caller input.
type Pending struct {
	// Kind names the interrupt; a resume must echo it.
	Kind string `json:"kind"`
	// NodeID is the node to re-enter on resume.
	NodeID string `json:"node_id"`
	// Payload is what the caller was shown.
	Payload json.RawMessage `json:"payload"`
	// Step is node-private progress restored on resume.
	Step json.RawMessage `json:"step,omitempty"`
}

// Marshal serializes a checkpoint to JSON.
func (c *Checkpoint) Marshal() ([]byte, error) {
	return json.Marshal(c)
}

// Unmarshal deserializes a checkpoint from JSON.
func Unmarshal(data []byte) (*Checkpoint, error) {
	var c Checkpoint
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// New creates a new checkpoint with the given parameters.
// State must already be JSON-serialized.
func New(sessionID, nodeID string, sequence int, state []byte, nextNode string) *Checkpoint {
	return &Checkpoint{
		Version:   Version,
		SessionID: sessionID,
		NodeID:    nodeID,
		Sequence:  sequence,
		Timestamp: time.Now().UTC(),
		State:     state,
		NextNode:  nextNode,
	}
}

// WithRunID records the turn that wrote the checkpoint.
func (c *Checkpoint) WithRunID(runID string) *Checkpoint {
	c.RunID = runID
	return c
}

// WithPrevNode sets the previous node ID for debugging.
func (c *Checkpoint) WithPrevNode(prevNodeID string) *Checkpoint {
	c.PrevNodeID = prevNodeID
	return c
}

// WithPending marks the checkpoint as a suspend point.
func (c *Checkpoint) WithPending(p *Pending) *Checkpoint {
	c.Pending = p
	return c
}
