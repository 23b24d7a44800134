package flowexec

import (
	"context"
	"encoding/json"
	"fmt"
)

// Stage is one unit of work in a flow. Implementations are registered
// with the executor under their configured name and invoked through the
// lifecycle below:
//
//   - Enter runs on every GET before the challenge is rendered. It may
//     satisfy the stage without user input (out-of-band confirmation
//     arrived), report a missing precondition, perform a context-gated
//     side effect, or simply ask to render the challenge.
//   - ProduceChallenge builds the prompt. It must not mutate plan state.
//   - ValidateResponse checks the raw client response, returning a
//     *Rejection when the response is rejected.
//   - OnValid and OnInvalid translate the validation outcome into the
//     next transition; both may mutate plan context.
type Stage interface {
	// Name returns the unique configured name of this stage instance
	Name() string

	// Kind returns the stage implementation kind (e.g. "email")
	Kind() string

	Enter(ctx context.Context, flowContext *FlowContext) (*StageResult, error)
	ProduceChallenge(ctx context.Context, flowContext *FlowContext) (*Challenge, error)
	ValidateResponse(ctx context.Context, flowContext *FlowContext, response json.RawMessage) error
	OnValid(ctx context.Context, flowContext *FlowContext) (*StageResult, error)
	OnInvalid(ctx context.Context, flowContext *FlowContext, reason InvalidReason) (*StageResult, error)
}

// StageRegistry maps configured stage names to implementations
type StageRegistry struct {
	stages map[string]Stage
}

// NewStageRegistry creates a new stage registry
func NewStageRegistry() *StageRegistry {
	return &StageRegistry{
		stages: make(map[string]Stage),
	}
}

// Register adds a stage to the registry under its name
func (r *StageRegistry) Register(stage Stage) *StageRegistry {
	r.stages[stage.Name()] = stage
	return r
}

// Get returns the stage registered under name
func (r *StageRegistry) Get(name string) (Stage, error) {
	stage, exists := r.stages[name]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrUnknownStage, name)
	}
	return stage, nil
}
