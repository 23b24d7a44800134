package flowexec

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tendant/simple-flow/pkg/flowplan"
	"github.com/tendant/simple-flow/pkg/session"
)

// Executor drives a plan forward one request at a time. The plan is
// parked in the session between requests; no state lives on the
// executor itself, so one executor serves all sessions.
type Executor struct {
	registry *StageRegistry
	planner  *flowplan.Planner
	sessions session.Store
	services *ServiceDependencies
}

// NewExecutor creates a new flow executor
func NewExecutor(registry *StageRegistry, planner *flowplan.Planner, sessions session.Store, services *ServiceDependencies) *Executor {
	return &Executor{
		registry: registry,
		planner:  planner,
		sessions: sessions,
		services: services,
	}
}

// Begin plans a fresh flow for the session and renders the first
// challenge. Any plan already parked for this flow is replaced.
func (e *Executor) Begin(ctx context.Context, sessionID, flowSlug string, initialContext map[string]interface{}) (*ExecutionResult, error) {
	plan, err := e.planner.Plan(flowSlug, initialContext)
	if err != nil {
		return nil, err
	}

	fc := e.flowContext(sessionID, plan)
	return e.runEntry(ctx, fc, nil)
}

// GetChallenge renders the current stage's challenge, continuing the
// parked plan or starting a fresh one when the session has none.
func (e *Executor) GetChallenge(ctx context.Context, sessionID, flowSlug string) (*ExecutionResult, error) {
	plan, err := e.loadPlan(ctx, sessionID, flowSlug)
	if err != nil {
		if errors.Is(err, ErrNoActiveFlow) {
			return e.Begin(ctx, sessionID, flowSlug, nil)
		}
		return nil, err
	}

	fc := e.flowContext(sessionID, plan)
	return e.runEntry(ctx, fc, nil)
}

// RestoreFromToken redeems a flow token, parks the rehydrated plan in
// the session, records which key the user returned with, and resumes
// the flow at the stage that parked it.
func (e *Executor) RestoreFromToken(ctx context.Context, sessionID, key string) (*ExecutionResult, error) {
	_, plan, err := e.services.Tokens.Redeem(ctx, key)
	if err != nil {
		return nil, err
	}

	if err := e.sessions.Set(ctx, sessionID, session.KeyTokenKey, key); err != nil {
		return nil, fmt.Errorf("failed to record token marker: %w", err)
	}

	slog.Info("Flow restored from token", "flow", plan.FlowSlug, "session", sessionID)

	fc := e.flowContext(sessionID, plan)
	return e.runEntry(ctx, fc, []Message{{Level: "info", Text: "Welcome back."}})
}

// SubmitResponse feeds a client response to the current stage and
// applies the resulting transition.
func (e *Executor) SubmitResponse(ctx context.Context, sessionID, flowSlug string, response json.RawMessage) (*ExecutionResult, error) {
	plan, err := e.loadPlan(ctx, sessionID, flowSlug)
	if err != nil {
		return nil, err
	}

	fc := e.flowContext(sessionID, plan)

	binding, ok := plan.Current()
	if !ok {
		return e.complete(ctx, fc, nil)
	}

	stage, err := e.registry.Get(binding.Name)
	if err != nil {
		return nil, err
	}

	var result *StageResult
	validationErr := stage.ValidateResponse(ctx, fc, response)
	if validationErr == nil {
		result, err = stage.OnValid(ctx, fc)
	} else {
		var rejection *Rejection
		if !errors.As(validationErr, &rejection) {
			// Not a rejection: a fault in the stage itself
			return nil, validationErr
		}
		slog.Debug("Stage rejected response", "stage", stage.Name(), "code", rejection.Code)
		fc.StepData[StepDataRejectionCode] = rejection.Code
		fc.StepData[StepDataRejectionMessage] = rejection.Message
		result, err = stage.OnInvalid(ctx, fc, ReasonValidationRejected)
	}
	if err != nil {
		return nil, err
	}

	return e.applyResult(ctx, fc, stage, result, nil)
}

// runEntry walks the plan from the current stage, entering stages and
// advancing over any that report satisfied, until a challenge must be
// rendered, the flow aborts, or the plan completes.
func (e *Executor) runEntry(ctx context.Context, fc *FlowContext, messages []Message) (*ExecutionResult, error) {
	for {
		if fc.Plan.Completed() {
			return e.complete(ctx, fc, messages)
		}

		binding, _ := fc.Plan.Current()
		stage, err := e.registry.Get(binding.Name)
		if err != nil {
			return nil, err
		}

		result, err := stage.Enter(ctx, fc)
		if err != nil {
			return nil, err
		}

		if result.Status == StatusStageOK {
			slog.Info("Stage satisfied on entry", "stage", stage.Name(), "flow", fc.Plan.FlowSlug)
			if result.Message != "" {
				messages = append(messages, Message{Level: "success", Text: result.Message})
			}
			fc.Plan.Advance()
			continue
		}

		return e.applyResult(ctx, fc, stage, result, messages)
	}
}

// applyResult translates a stage result into the executor's answer for
// this request, parking the plan whenever the flow stays alive.
func (e *Executor) applyResult(ctx context.Context, fc *FlowContext, stage Stage, result *StageResult, messages []Message) (*ExecutionResult, error) {
	switch result.Status {
	case StatusStageOK:
		if result.Message != "" {
			messages = append(messages, Message{Level: "success", Text: result.Message})
		}
		fc.Plan.Advance()
		return e.runEntry(ctx, fc, messages)

	case StatusStageInvalid:
		if result.Reason == ReasonPreconditionMissing {
			// Nothing the user can retry; abort the whole flow
			slog.Warn("Flow aborted", "stage", stage.Name(), "flow", fc.Plan.FlowSlug, "message", result.Message)
			if err := e.clearFlow(ctx, fc); err != nil {
				return nil, err
			}
			return &ExecutionResult{
				Status:  StatusStageInvalid,
				Reason:  result.Reason,
				Message: result.Message,
			}, nil
		}

		if result.Message != "" {
			messages = append(messages, Message{Level: "error", Text: result.Message})
		}
		challenge, err := e.renderChallenge(ctx, fc, stage, messages)
		if err != nil {
			return nil, err
		}
		if err := e.parkPlan(ctx, fc); err != nil {
			return nil, err
		}
		return &ExecutionResult{
			Status:    StatusStageInvalid,
			Reason:    result.Reason,
			Message:   result.Message,
			Challenge: challenge,
		}, nil

	case StatusAwaitingResponse:
		challenge, err := e.renderChallenge(ctx, fc, stage, messages)
		if err != nil {
			return nil, err
		}
		if err := e.parkPlan(ctx, fc); err != nil {
			return nil, err
		}
		return &ExecutionResult{
			Status:    StatusAwaitingResponse,
			Challenge: challenge,
		}, nil

	default:
		return nil, fmt.Errorf("stage %s returned unexpected status %s", stage.Name(), result.Status)
	}
}

// complete finishes the flow: session tokens are issued for the pending
// subject and all flow state is cleared from the session.
func (e *Executor) complete(ctx context.Context, fc *FlowContext, messages []Message) (*ExecutionResult, error) {
	result := &ExecutionResult{Status: StatusCompleted}

	for _, m := range messages {
		if m.Level == "success" {
			result.Message = m.Text
			break
		}
	}

	if e.services.TokenGen != nil {
		pendingUser, err := fc.PendingUser(ctx)
		if err == nil {
			tokens, err := e.services.TokenGen.GenerateTokens(pendingUser.ID.String(), map[string]interface{}{
				"flow": fc.Plan.FlowSlug,
			})
			if err != nil {
				slog.Error("Failed to generate completion tokens", "flow", fc.Plan.FlowSlug, "error", err)
				return nil, err
			}
			result.Tokens = make(map[string]TokenInfo, len(tokens))
			for name, tv := range tokens {
				result.Tokens[name] = TokenInfo{Token: tv.Token, Expiry: tv.Expiry.UTC().Format("2006-01-02T15:04:05Z07:00")}
			}
		} else if !errors.Is(err, ErrPendingUserMissing) {
			return nil, err
		}
	}

	// A redeemed token has served its purpose once the flow finishes
	if key, ok := fc.ReturningTokenKey(ctx); ok {
		if err := e.services.Tokens.InvalidateByKey(ctx, key); err != nil {
			slog.Error("Failed to invalidate redeemed token", "flow", fc.Plan.FlowSlug, "error", err)
		}
	}

	if err := e.clearFlow(ctx, fc); err != nil {
		return nil, err
	}

	slog.Info("Flow completed", "flow", fc.Plan.FlowSlug, "session", fc.SessionID)
	return result, nil
}

func (e *Executor) renderChallenge(ctx context.Context, fc *FlowContext, stage Stage, messages []Message) (*Challenge, error) {
	challenge, err := stage.ProduceChallenge(ctx, fc)
	if err != nil {
		return nil, err
	}

	challenge.FlowSlug = fc.Plan.FlowSlug
	challenge.Stage = stage.Name()
	challenge.Messages = append(messages, challenge.Messages...)
	return challenge, nil
}

func (e *Executor) flowContext(sessionID string, plan *flowplan.Plan) *FlowContext {
	return &FlowContext{
		Plan:      plan,
		SessionID: sessionID,
		Sessions:  e.sessions,
		Services:  e.services,
		StepData:  make(map[string]interface{}),
	}
}

func (e *Executor) loadPlan(ctx context.Context, sessionID, flowSlug string) (*flowplan.Plan, error) {
	value, exists, err := e.sessions.Get(ctx, sessionID, session.PlanKey(flowSlug))
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}
	if !exists {
		return nil, ErrNoActiveFlow
	}

	plan, err := flowplan.Restore([]byte(value))
	if err != nil {
		return nil, err
	}
	return plan, nil
}

func (e *Executor) parkPlan(ctx context.Context, fc *FlowContext) error {
	snapshot, err := fc.Plan.Snapshot()
	if err != nil {
		return err
	}

	err = e.sessions.Set(ctx, fc.SessionID, session.PlanKey(fc.Plan.FlowSlug), string(snapshot))
	if err != nil {
		return fmt.Errorf("failed to park plan in session: %w", err)
	}
	return nil
}

func (e *Executor) clearFlow(ctx context.Context, fc *FlowContext) error {
	if err := e.sessions.Delete(ctx, fc.SessionID, session.PlanKey(fc.Plan.FlowSlug)); err != nil {
		return fmt.Errorf("failed to clear parked plan: %w", err)
	}
	if err := e.sessions.Delete(ctx, fc.SessionID, session.KeyTokenKey); err != nil {
		return fmt.Errorf("failed to clear token marker: %w", err)
	}
	return nil
}
