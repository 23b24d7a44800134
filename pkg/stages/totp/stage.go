package totp

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/pquerna/otp/totp"

	"github.com/tendant/simple-flow/pkg/flowexec"
)

// Config holds the totp stage configuration
type Config struct {
	Name string
}

// Stage validates a time-based one-time code against the pending user's
// enrolled secret. Users without an enrolled secret skip the stage.
type Stage struct {
	cfg Config
}

// New creates a totp stage
func New(cfg Config) *Stage {
	if cfg.Name == "" {
		cfg.Name = "default-totp"
	}
	return &Stage{cfg: cfg}
}

func (s *Stage) Name() string {
	return s.cfg.Name
}

func (s *Stage) Kind() string {
	return "totp"
}

// Enter skips the stage for users with no enrolled secret
func (s *Stage) Enter(ctx context.Context, fc *flowexec.FlowContext) (*flowexec.StageResult, error) {
	if fc.Plan.PendingUserID() == "" {
		slog.Debug("No pending user", "stage", s.cfg.Name)
		return flowexec.StageInvalid(flowexec.ReasonPreconditionMissing, "No pending user."), nil
	}

	pendingUser, err := fc.PendingUser(ctx)
	if err != nil {
		return nil, err
	}

	if pendingUser.TOTPSecret == "" {
		return flowexec.StageOK(""), nil
	}

	return flowexec.AwaitResponse(), nil
}

func (s *Stage) ProduceChallenge(ctx context.Context, fc *flowexec.FlowContext) (*flowexec.Challenge, error) {
	return &flowexec.Challenge{
		Component: "sf-stage-totp",
		Title:     "Enter the code from your authenticator app",
	}, nil
}

type totpResponse struct {
	Code string `json:"code"`
}

func (s *Stage) ValidateResponse(ctx context.Context, fc *flowexec.FlowContext, response json.RawMessage) error {
	var req totpResponse
	if err := json.Unmarshal(response, &req); err != nil {
		return flowexec.Reject("invalid-request", "Invalid code.")
	}
	if req.Code == "" {
		return flowexec.Reject("blank-code", "Invalid code.")
	}

	pendingUser, err := fc.PendingUser(ctx)
	if err != nil {
		return err
	}

	if !totp.Validate(req.Code, pendingUser.TOTPSecret) {
		slog.Debug("TOTP code rejected", "stage", s.cfg.Name, "user_id", pendingUser.ID)
		return flowexec.Reject("invalid-code", "Invalid code.")
	}

	return nil
}

func (s *Stage) OnValid(ctx context.Context, fc *flowexec.FlowContext) (*flowexec.StageResult, error) {
	return flowexec.StageOK(""), nil
}

func (s *Stage) OnInvalid(ctx context.Context, fc *flowexec.FlowContext, reason flowexec.InvalidReason) (*flowexec.StageResult, error) {
	message, _ := fc.StepData[flowexec.StepDataRejectionMessage].(string)
	if message == "" {
		message = "Invalid code."
	}
	return flowexec.StageInvalid(flowexec.ReasonValidationRejected, message), nil
}
