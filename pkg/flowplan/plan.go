package flowplan

import (
	"encoding/json"
	"fmt"
)

// Plan context keys shared across stages. Stage-specific keys (e.g. the
// email-sent marker) are owned by the stage packages that use them.
const (
	// ContextPendingUser holds the string UUID of the user the flow is
	// being executed for.
	ContextPendingUser = "pending_user"

	// ContextIsRestored is set when a plan has been rehydrated from a
	// flow token instead of continuing live in a session.
	ContextIsRestored = "is_restored"
)

// CursorCompleted is the sentinel cursor value for a finished plan.
const CursorCompleted = -1

// StageBinding references one stage inside a plan. Kind identifies the
// stage implementation, Name the configured instance registered with the
// executor.
type StageBinding struct {
	Kind string `json:"kind"`
	Name string `json:"name"`
}

// Plan is the live, mutable instance of a flow in progress for one user.
// It carries the ordered stage bindings, the position cursor and the
// shared context all stages read and write.
type Plan struct {
	FlowSlug string
	Bindings []StageBinding
	Cursor   int
	Context  map[string]interface{}
}

// NewPlan creates a plan positioned at the first stage. The initial
// context is copied so the caller's map is not shared.
func NewPlan(flowSlug string, bindings []StageBinding, initialContext map[string]interface{}) *Plan {
	planContext := make(map[string]interface{}, len(initialContext))
	for key, value := range initialContext {
		planContext[key] = value
	}

	cursor := 0
	if len(bindings) == 0 {
		cursor = CursorCompleted
	}

	return &Plan{
		FlowSlug: flowSlug,
		Bindings: bindings,
		Cursor:   cursor,
		Context:  planContext,
	}
}

// Current returns the binding the cursor points at. The second return
// value is false once the plan has completed.
func (p *Plan) Current() (StageBinding, bool) {
	if p.Cursor == CursorCompleted || p.Cursor < 0 || p.Cursor >= len(p.Bindings) {
		return StageBinding{}, false
	}
	return p.Bindings[p.Cursor], true
}

// Advance moves the cursor to the next stage, or marks the plan
// completed when the last stage has been satisfied.
func (p *Plan) Advance() {
	if p.Cursor == CursorCompleted {
		return
	}
	p.Cursor++
	if p.Cursor >= len(p.Bindings) {
		p.Cursor = CursorCompleted
	}
}

// Completed reports whether the plan has run out of stages.
func (p *Plan) Completed() bool {
	return p.Cursor == CursorCompleted
}

// IsRestored reports whether this plan was rehydrated from a flow token.
func (p *Plan) IsRestored() bool {
	restored, ok := p.Context[ContextIsRestored].(bool)
	return ok && restored
}

// PendingUserID returns the pending user context value, or an empty
// string when no pending user has been planned.
func (p *Plan) PendingUserID() string {
	userID, ok := p.Context[ContextPendingUser].(string)
	if !ok {
		return ""
	}
	return userID
}

// snapshotVersion is bumped whenever the snapshot layout changes.
// Stored tokens carry the version they were written with, and decoding
// rejects versions this build does not understand.
const snapshotVersion = 1

type snapshot struct {
	Version  int                    `json:"version"`
	FlowSlug string                 `json:"flow_slug"`
	Bindings []StageBinding         `json:"bindings"`
	Cursor   int                    `json:"cursor"`
	Context  map[string]interface{} `json:"context"`
}

// Snapshot serializes the plan into a versioned blob suitable for
// storing inside a flow token or a session.
func (p *Plan) Snapshot() ([]byte, error) {
	data, err := json.Marshal(snapshot{
		Version:  snapshotVersion,
		FlowSlug: p.FlowSlug,
		Bindings: p.Bindings,
		Cursor:   p.Cursor,
		Context:  p.Context,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode plan snapshot: %w", err)
	}
	return data, nil
}

// Restore reconstructs a plan from a snapshot blob. The snapshot version
// is validated so stale tokens from an incompatible deployment fail
// loudly instead of resuming with a half-understood plan.
func Restore(data []byte) (*Plan, error) {
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}

	if snap.Version != snapshotVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrInvalidSnapshot, snap.Version)
	}

	planContext := snap.Context
	if planContext == nil {
		planContext = make(map[string]interface{})
	}

	return &Plan{
		FlowSlug: snap.FlowSlug,
		Bindings: snap.Bindings,
		Cursor:   snap.Cursor,
		Context:  planContext,
	}, nil
}
