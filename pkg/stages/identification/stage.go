package identification

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/tendant/simple-flow/pkg/flowexec"
	"github.com/tendant/simple-flow/pkg/flowplan"
	"github.com/tendant/simple-flow/pkg/user"
)

const stepDataUserID = "identified_user_id"

// Config holds the identification stage configuration
type Config struct {
	Name string
	// ShowSignupHint toggles the signup link on the rendered prompt
	ShowSignupHint bool
}

// Stage resolves who the flow is about. It prompts for a username and
// writes the matched user into the plan context as the pending user.
// A plan that already carries a pending user passes through untouched.
type Stage struct {
	cfg Config
}

// New creates an identification stage
func New(cfg Config) *Stage {
	if cfg.Name == "" {
		cfg.Name = "default-identification"
	}
	return &Stage{cfg: cfg}
}

func (s *Stage) Name() string {
	return s.cfg.Name
}

func (s *Stage) Kind() string {
	return "identification"
}

// Enter passes through when a pending user was planned in already
func (s *Stage) Enter(ctx context.Context, fc *flowexec.FlowContext) (*flowexec.StageResult, error) {
	if fc.Plan.PendingUserID() != "" {
		return flowexec.StageOK(""), nil
	}
	return flowexec.AwaitResponse(), nil
}

func (s *Stage) ProduceChallenge(ctx context.Context, fc *flowexec.FlowContext) (*flowexec.Challenge, error) {
	return &flowexec.Challenge{
		Component: "sf-stage-identification",
		Title:     "Sign in",
	}, nil
}

type identificationResponse struct {
	Username string `json:"username"`
}

// ValidateResponse looks the submitted username up. The rejection text
// is identical for unknown and malformed input so the prompt does not
// leak which usernames exist.
func (s *Stage) ValidateResponse(ctx context.Context, fc *flowexec.FlowContext, response json.RawMessage) error {
	var req identificationResponse
	if err := json.Unmarshal(response, &req); err != nil {
		return flowexec.Reject("invalid-request", "Failed to authenticate.")
	}
	if req.Username == "" {
		return flowexec.Reject("blank-username", "Failed to authenticate.")
	}

	u, err := fc.Services.Users.GetUserByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			slog.Debug("Unknown username submitted", "stage", s.cfg.Name)
			return flowexec.Reject("unknown-user", "Failed to authenticate.")
		}
		return err
	}

	fc.StepData[stepDataUserID] = u.ID.String()
	return nil
}

// OnValid records the identified user as the plan's pending subject
func (s *Stage) OnValid(ctx context.Context, fc *flowexec.FlowContext) (*flowexec.StageResult, error) {
	userID, ok := fc.StepData[stepDataUserID].(string)
	if !ok || userID == "" {
		return nil, errors.New("identification stage: no identified user in step data")
	}

	fc.Plan.Context[flowplan.ContextPendingUser] = userID
	return flowexec.StageOK(""), nil
}

func (s *Stage) OnInvalid(ctx context.Context, fc *flowexec.FlowContext, reason flowexec.InvalidReason) (*flowexec.StageResult, error) {
	message, _ := fc.StepData[flowexec.StepDataRejectionMessage].(string)
	if message == "" {
		message = "Failed to authenticate."
	}
	return flowexec.StageInvalid(flowexec.ReasonValidationRejected, message), nil
}
