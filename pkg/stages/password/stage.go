package password

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/tendant/simple-flow/pkg/flowexec"
	"github.com/tendant/simple-flow/pkg/user"
)

// Config holds the password stage configuration
type Config struct {
	Name string
}

// Stage checks the pending user's password. It requires a pending user
// in the plan context; identification runs before it in any sane flow.
type Stage struct {
	cfg Config
}

// New creates a password stage
func New(cfg Config) *Stage {
	if cfg.Name == "" {
		cfg.Name = "default-password"
	}
	return &Stage{cfg: cfg}
}

func (s *Stage) Name() string {
	return s.cfg.Name
}

func (s *Stage) Kind() string {
	return "password"
}

func (s *Stage) Enter(ctx context.Context, fc *flowexec.FlowContext) (*flowexec.StageResult, error) {
	if fc.Plan.PendingUserID() == "" {
		slog.Debug("No pending user", "stage", s.cfg.Name)
		return flowexec.StageInvalid(flowexec.ReasonPreconditionMissing, "No pending user."), nil
	}
	return flowexec.AwaitResponse(), nil
}

func (s *Stage) ProduceChallenge(ctx context.Context, fc *flowexec.FlowContext) (*flowexec.Challenge, error) {
	return &flowexec.Challenge{
		Component: "sf-stage-password",
		Title:     "Enter your password",
	}, nil
}

type passwordResponse struct {
	Password string `json:"password"`
}

func (s *Stage) ValidateResponse(ctx context.Context, fc *flowexec.FlowContext, response json.RawMessage) error {
	var req passwordResponse
	if err := json.Unmarshal(response, &req); err != nil {
		return flowexec.Reject("invalid-request", "Invalid password.")
	}
	if req.Password == "" {
		return flowexec.Reject("blank-password", "Invalid password.")
	}

	pendingUser, err := fc.PendingUser(ctx)
	if err != nil {
		return err
	}

	err = fc.Services.Users.VerifyPassword(ctx, pendingUser.ID, req.Password)
	if err != nil {
		if errors.Is(err, user.ErrInvalidPassword) {
			slog.Debug("Password rejected", "stage", s.cfg.Name, "user_id", pendingUser.ID)
			return flowexec.Reject("invalid-password", "Invalid password.")
		}
		return err
	}

	return nil
}

func (s *Stage) OnValid(ctx context.Context, fc *flowexec.FlowContext) (*flowexec.StageResult, error) {
	return flowexec.StageOK(""), nil
}

func (s *Stage) OnInvalid(ctx context.Context, fc *flowexec.FlowContext, reason flowexec.InvalidReason) (*flowexec.StageResult, error) {
	message, _ := fc.StepData[flowexec.StepDataRejectionMessage].(string)
	if message == "" {
		message = "Invalid password."
	}
	return flowexec.StageInvalid(flowexec.ReasonValidationRejected, message), nil
}
