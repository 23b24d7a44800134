package password

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-flow/pkg/flowexec"
	"github.com/tendant/simple-flow/pkg/flowplan"
	"github.com/tendant/simple-flow/pkg/session"
	"github.com/tendant/simple-flow/pkg/user"
)

func setupStage(t *testing.T) (*Stage, *flowexec.FlowContext) {
	repo, err := user.NewFileRepository(t.TempDir())
	require.NoError(t, err)
	users := user.NewService(repo)

	created, err := users.CreateUser(context.Background(), user.CreateUserRequest{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "correct horse battery staple",
	})
	require.NoError(t, err)

	stage := New(Config{Name: "login-password"})
	plan := flowplan.NewPlan("default-authentication", []flowplan.StageBinding{
		{Kind: "password", Name: stage.Name()},
	}, map[string]interface{}{
		flowplan.ContextPendingUser: created.ID.String(),
	})

	fc := &flowexec.FlowContext{
		Plan:      plan,
		SessionID: "session-1",
		Sessions:  session.NewInMemoryStore(),
		Services:  &flowexec.ServiceDependencies{Users: users},
		StepData:  make(map[string]interface{}),
	}

	return stage, fc
}

func TestEnter(t *testing.T) {
	t.Run("PromptsWithPendingUser", func(t *testing.T) {
		stage, fc := setupStage(t)

		result, err := stage.Enter(context.Background(), fc)
		require.NoError(t, err)
		assert.Equal(t, flowexec.StatusAwaitingResponse, result.Status)
	})

	t.Run("NoPendingUser", func(t *testing.T) {
		stage, fc := setupStage(t)
		delete(fc.Plan.Context, flowplan.ContextPendingUser)

		result, err := stage.Enter(context.Background(), fc)
		require.NoError(t, err)
		assert.Equal(t, flowexec.StatusStageInvalid, result.Status)
		assert.Equal(t, flowexec.ReasonPreconditionMissing, result.Reason)
	})
}

func TestValidateResponse(t *testing.T) {
	t.Run("CorrectPassword", func(t *testing.T) {
		stage, fc := setupStage(t)

		err := stage.ValidateResponse(context.Background(), fc, json.RawMessage(`{"password": "correct horse battery staple"}`))
		assert.NoError(t, err)
	})

	t.Run("WrongPassword", func(t *testing.T) {
		stage, fc := setupStage(t)

		err := stage.ValidateResponse(context.Background(), fc, json.RawMessage(`{"password": "wrong"}`))
		var rejection *flowexec.Rejection
		require.ErrorAs(t, err, &rejection)
		assert.Equal(t, "invalid-password", rejection.Code)
	})

	t.Run("BlankPassword", func(t *testing.T) {
		stage, fc := setupStage(t)

		err := stage.ValidateResponse(context.Background(), fc, json.RawMessage(`{}`))
		var rejection *flowexec.Rejection
		require.ErrorAs(t, err, &rejection)
		assert.Equal(t, "blank-password", rejection.Code)
	})
}

func TestOnInvalid(t *testing.T) {
	stage, fc := setupStage(t)
	fc.StepData[flowexec.StepDataRejectionMessage] = "Invalid password."

	result, err := stage.OnInvalid(context.Background(), fc, flowexec.ReasonValidationRejected)
	require.NoError(t, err)

	assert.Equal(t, flowexec.StatusStageInvalid, result.Status)
	assert.Equal(t, "Invalid password.", result.Message)
}
