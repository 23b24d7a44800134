package flowexec

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-flow/pkg/flowplan"
	"github.com/tendant/simple-flow/pkg/flowtoken"
	"github.com/tendant/simple-flow/pkg/session"
	"github.com/tendant/simple-flow/pkg/tokengen"
	"github.com/tendant/simple-flow/pkg/user"
)

// Mock stage for testing

type MockStage struct {
	name                 string
	kind                 string
	EnterFunc            func(ctx context.Context, fc *FlowContext) (*StageResult, error)
	ProduceChallengeFunc func(ctx context.Context, fc *FlowContext) (*Challenge, error)
	ValidateResponseFunc func(ctx context.Context, fc *FlowContext, response json.RawMessage) error
	OnValidFunc          func(ctx context.Context, fc *FlowContext) (*StageResult, error)
	OnInvalidFunc        func(ctx context.Context, fc *FlowContext, reason InvalidReason) (*StageResult, error)
}

func NewMockStage(name string) *MockStage {
	return &MockStage{name: name, kind: "mock"}
}

func (m *MockStage) Name() string {
	return m.name
}

func (m *MockStage) Kind() string {
	return m.kind
}

func (m *MockStage) Enter(ctx context.Context, fc *FlowContext) (*StageResult, error) {
	if m.EnterFunc != nil {
		return m.EnterFunc(ctx, fc)
	}
	return AwaitResponse(), nil
}

func (m *MockStage) ProduceChallenge(ctx context.Context, fc *FlowContext) (*Challenge, error) {
	if m.ProduceChallengeFunc != nil {
		return m.ProduceChallengeFunc(ctx, fc)
	}
	return &Challenge{Component: "mock", Title: m.name}, nil
}

func (m *MockStage) ValidateResponse(ctx context.Context, fc *FlowContext, response json.RawMessage) error {
	if m.ValidateResponseFunc != nil {
		return m.ValidateResponseFunc(ctx, fc, response)
	}
	return nil
}

func (m *MockStage) OnValid(ctx context.Context, fc *FlowContext) (*StageResult, error) {
	if m.OnValidFunc != nil {
		return m.OnValidFunc(ctx, fc)
	}
	return StageOK(""), nil
}

func (m *MockStage) OnInvalid(ctx context.Context, fc *FlowContext, reason InvalidReason) (*StageResult, error) {
	if m.OnInvalidFunc != nil {
		return m.OnInvalidFunc(ctx, fc, reason)
	}
	return StageInvalid(ReasonValidationRejected, "rejected"), nil
}

func testPlanner(slug string, stageNames ...string) *flowplan.Planner {
	bindings := make([]flowplan.StageBinding, 0, len(stageNames))
	for _, name := range stageNames {
		bindings = append(bindings, flowplan.StageBinding{Kind: "mock", Name: name})
	}
	return flowplan.NewPlanner(flowplan.FlowDefinition{Slug: slug, Bindings: bindings})
}

func newTokenService(t *testing.T) *flowtoken.Service {
	repo, err := flowtoken.NewFileRepository(t.TempDir())
	require.NoError(t, err)
	return flowtoken.NewService(repo)
}

func newUserService(t *testing.T) *user.Service {
	repo, err := user.NewRepository("file", user.RepositoryConfig{DataDir: t.TempDir()})
	require.NoError(t, err)
	return user.NewService(repo)
}

func TestExecutorBegin(t *testing.T) {
	stage := NewMockStage("first")
	registry := NewStageRegistry().Register(stage)
	executor := NewExecutor(registry, testPlanner("test-flow", "first"), session.NewInMemoryStore(), &ServiceDependencies{})

	result, err := executor.Begin(context.Background(), "session-1", "test-flow", nil)
	require.NoError(t, err)

	assert.Equal(t, StatusAwaitingResponse, result.Status)
	require.NotNil(t, result.Challenge)
	assert.Equal(t, "test-flow", result.Challenge.FlowSlug)
	assert.Equal(t, "first", result.Challenge.Stage)
	assert.Equal(t, "mock", result.Challenge.Component)
}

func TestExecutorBeginUnknownFlow(t *testing.T) {
	executor := NewExecutor(NewStageRegistry(), testPlanner("test-flow"), session.NewInMemoryStore(), &ServiceDependencies{})

	_, err := executor.Begin(context.Background(), "session-1", "missing", nil)
	assert.ErrorIs(t, err, flowplan.ErrUnknownFlow)
}

func TestExecutorSkipsSatisfiedStages(t *testing.T) {
	first := NewMockStage("first")
	first.EnterFunc = func(ctx context.Context, fc *FlowContext) (*StageResult, error) {
		return StageOK("first done"), nil
	}
	second := NewMockStage("second")

	registry := NewStageRegistry().Register(first).Register(second)
	executor := NewExecutor(registry, testPlanner("test-flow", "first", "second"), session.NewInMemoryStore(), &ServiceDependencies{})

	result, err := executor.Begin(context.Background(), "session-1", "test-flow", nil)
	require.NoError(t, err)

	assert.Equal(t, StatusAwaitingResponse, result.Status)
	require.NotNil(t, result.Challenge)
	assert.Equal(t, "second", result.Challenge.Stage)
	// The satisfied stage's message rides along on the next challenge
	require.NotEmpty(t, result.Challenge.Messages)
	assert.Equal(t, "first done", result.Challenge.Messages[0].Text)
}

func TestExecutorSubmitResponse(t *testing.T) {
	t.Run("ValidResponseAdvances", func(t *testing.T) {
		first := NewMockStage("first")
		second := NewMockStage("second")

		registry := NewStageRegistry().Register(first).Register(second)
		executor := NewExecutor(registry, testPlanner("test-flow", "first", "second"), session.NewInMemoryStore(), &ServiceDependencies{})

		ctx := context.Background()
		_, err := executor.Begin(ctx, "session-1", "test-flow", nil)
		require.NoError(t, err)

		result, err := executor.SubmitResponse(ctx, "session-1", "test-flow", json.RawMessage(`{}`))
		require.NoError(t, err)

		assert.Equal(t, StatusAwaitingResponse, result.Status)
		assert.Equal(t, "second", result.Challenge.Stage)
	})

	t.Run("RejectedResponseRePrompts", func(t *testing.T) {
		var seenCode string
		stage := NewMockStage("first")
		stage.ValidateResponseFunc = func(ctx context.Context, fc *FlowContext, response json.RawMessage) error {
			return Reject("bad-input", "Try again.")
		}
		stage.OnInvalidFunc = func(ctx context.Context, fc *FlowContext, reason InvalidReason) (*StageResult, error) {
			seenCode, _ = fc.StepData[StepDataRejectionCode].(string)
			message, _ := fc.StepData[StepDataRejectionMessage].(string)
			return StageInvalid(ReasonValidationRejected, message), nil
		}

		registry := NewStageRegistry().Register(stage)
		executor := NewExecutor(registry, testPlanner("test-flow", "first"), session.NewInMemoryStore(), &ServiceDependencies{})

		ctx := context.Background()
		_, err := executor.Begin(ctx, "session-1", "test-flow", nil)
		require.NoError(t, err)

		result, err := executor.SubmitResponse(ctx, "session-1", "test-flow", json.RawMessage(`{}`))
		require.NoError(t, err)

		assert.Equal(t, "bad-input", seenCode)
		assert.Equal(t, StatusStageInvalid, result.Status)
		assert.Equal(t, ReasonValidationRejected, result.Reason)
		require.NotNil(t, result.Challenge)
		assert.Equal(t, "first", result.Challenge.Stage)
		require.NotEmpty(t, result.Challenge.Messages)
		assert.Equal(t, "error", result.Challenge.Messages[0].Level)
		assert.Equal(t, "Try again.", result.Challenge.Messages[0].Text)
	})

	t.Run("NoActiveFlow", func(t *testing.T) {
		executor := NewExecutor(NewStageRegistry(), testPlanner("test-flow"), session.NewInMemoryStore(), &ServiceDependencies{})

		_, err := executor.SubmitResponse(context.Background(), "session-1", "test-flow", json.RawMessage(`{}`))
		assert.ErrorIs(t, err, ErrNoActiveFlow)
	})
}

func TestExecutorPreconditionAbortsFlow(t *testing.T) {
	stage := NewMockStage("first")
	stage.EnterFunc = func(ctx context.Context, fc *FlowContext) (*StageResult, error) {
		return StageInvalid(ReasonPreconditionMissing, "No pending user."), nil
	}

	registry := NewStageRegistry().Register(stage)
	sessions := session.NewInMemoryStore()
	executor := NewExecutor(registry, testPlanner("test-flow", "first"), sessions, &ServiceDependencies{})

	ctx := context.Background()
	result, err := executor.Begin(ctx, "session-1", "test-flow", nil)
	require.NoError(t, err)

	assert.Equal(t, StatusStageInvalid, result.Status)
	assert.Equal(t, ReasonPreconditionMissing, result.Reason)
	assert.Nil(t, result.Challenge)

	// The aborted flow left nothing parked
	_, exists, err := sessions.Get(ctx, "session-1", session.PlanKey("test-flow"))
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestExecutorCompletion(t *testing.T) {
	users := newUserService(t)
	created, err := users.CreateUser(context.Background(), user.CreateUserRequest{
		Username: "alice",
		Email:    "alice@example.com",
		Name:     "Alice",
	})
	require.NoError(t, err)

	stage := NewMockStage("only")
	stage.EnterFunc = func(ctx context.Context, fc *FlowContext) (*StageResult, error) {
		return StageOK("All done."), nil
	}

	registry := NewStageRegistry().Register(stage)
	services := &ServiceDependencies{
		Users:    users,
		Tokens:   newTokenService(t),
		TokenGen: tokengen.NewService("test-secret"),
	}
	executor := NewExecutor(registry, testPlanner("test-flow", "only"), session.NewInMemoryStore(), services)

	result, err := executor.Begin(context.Background(), "session-1", "test-flow", map[string]interface{}{
		flowplan.ContextPendingUser: created.ID.String(),
	})
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, result.Status)
	assert.Equal(t, "All done.", result.Message)
	require.Contains(t, result.Tokens, tokengen.ACCESS_TOKEN_NAME)
	require.Contains(t, result.Tokens, tokengen.REFRESH_TOKEN_NAME)
	assert.NotEmpty(t, result.Tokens[tokengen.ACCESS_TOKEN_NAME].Token)
}

func TestExecutorCompletionWithoutPendingUser(t *testing.T) {
	stage := NewMockStage("only")
	stage.EnterFunc = func(ctx context.Context, fc *FlowContext) (*StageResult, error) {
		return StageOK(""), nil
	}

	registry := NewStageRegistry().Register(stage)
	services := &ServiceDependencies{
		Users:    newUserService(t),
		Tokens:   newTokenService(t),
		TokenGen: tokengen.NewService("test-secret"),
	}
	executor := NewExecutor(registry, testPlanner("test-flow", "only"), session.NewInMemoryStore(), services)

	result, err := executor.Begin(context.Background(), "session-1", "test-flow", nil)
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, result.Status)
	assert.Empty(t, result.Tokens)
}

func TestExecutorRestoreFromToken(t *testing.T) {
	tokens := newTokenService(t)
	ctx := context.Background()

	var restoredSeen bool
	stage := NewMockStage("waiting")
	stage.EnterFunc = func(ctx context.Context, fc *FlowContext) (*StageResult, error) {
		if fc.Plan.IsRestored() {
			restoredSeen = true
			return StageOK("Verified."), nil
		}
		return AwaitResponse(), nil
	}

	registry := NewStageRegistry().Register(stage)
	services := &ServiceDependencies{Tokens: tokens}
	executor := NewExecutor(registry, testPlanner("test-flow", "waiting"), session.NewInMemoryStore(), services)

	// Park a plan inside a token, the way a stage would
	plan := flowplan.NewPlan("test-flow", []flowplan.StageBinding{{Kind: "mock", Name: "waiting"}}, nil)
	snapshot, err := plan.Snapshot()
	require.NoError(t, err)
	token, err := tokens.GetOrCreate(ctx, "restore-test", uuid.New(), snapshot, 30*time.Minute)
	require.NoError(t, err)

	result, err := executor.RestoreFromToken(ctx, "session-2", token.Key)
	require.NoError(t, err)

	assert.True(t, restoredSeen)
	assert.Equal(t, StatusCompleted, result.Status)

	// Completion consumed the token
	_, _, err = tokens.Redeem(ctx, token.Key)
	assert.ErrorIs(t, err, flowtoken.ErrTokenNotFound)
}

func TestExecutorGetChallengeResumesParkedPlan(t *testing.T) {
	entries := 0
	first := NewMockStage("first")
	first.EnterFunc = func(ctx context.Context, fc *FlowContext) (*StageResult, error) {
		entries++
		return AwaitResponse(), nil
	}

	registry := NewStageRegistry().Register(first)
	executor := NewExecutor(registry, testPlanner("test-flow", "first"), session.NewInMemoryStore(), &ServiceDependencies{})

	ctx := context.Background()
	_, err := executor.Begin(ctx, "session-1", "test-flow", nil)
	require.NoError(t, err)

	result, err := executor.GetChallenge(ctx, "session-1", "test-flow")
	require.NoError(t, err)

	assert.Equal(t, 2, entries)
	assert.Equal(t, StatusAwaitingResponse, result.Status)
	assert.Equal(t, "first", result.Challenge.Stage)
}

func TestExecutorUnknownStageInPlan(t *testing.T) {
	executor := NewExecutor(NewStageRegistry(), testPlanner("test-flow", "ghost"), session.NewInMemoryStore(), &ServiceDependencies{})

	_, err := executor.Begin(context.Background(), "session-1", "test-flow", nil)
	assert.ErrorIs(t, err, ErrUnknownStage)
}
