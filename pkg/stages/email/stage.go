package email

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/url"
	"time"

	"github.com/tendant/simple-flow/pkg/flowexec"
	"github.com/tendant/simple-flow/pkg/flowtoken"
	"github.com/tendant/simple-flow/pkg/notification"
	"github.com/tendant/simple-flow/pkg/user"
)

// Plan context keys owned by the email stage
const (
	// ContextEmailSent marks that the initial verification email went
	// out; it gates the send so repeated GETs do not resend.
	ContextEmailSent = "email_sent"

	// ContextEmailOverride overrides the recipient address, e.g. when
	// the flow verifies a new address rather than the stored one.
	ContextEmailOverride = "email_override"
)

// Config holds the email stage configuration
type Config struct {
	// Name is the configured stage instance name referenced by plans
	Name string
	// Subject of the verification email
	Subject string
	// TokenExpiry is the validity of the emailed resumption link
	TokenExpiry time.Duration
	// ActivateUserOnSuccess flips the user's active flag when the
	// verification link is followed
	ActivateUserOnSuccess bool
}

// Stage sends a templated email carrying a one-time resumption link and
// holds the flow until the user follows it. The challenge response is
// always declared invalid to give the user a chance to retry; each
// submitted response resends the email.
type Stage struct {
	cfg Config
}

// New creates an email stage
func New(cfg Config) *Stage {
	if cfg.Name == "" {
		cfg.Name = "default-email"
	}
	if cfg.Subject == "" {
		cfg.Subject = "Verify your email address"
	}
	if cfg.TokenExpiry <= 0 {
		cfg.TokenExpiry = 30 * time.Minute
	}
	return &Stage{cfg: cfg}
}

func (s *Stage) Name() string {
	return s.cfg.Name
}

func (s *Stage) Kind() string {
	return "email"
}

// Enter checks whether the user came back from the email link to
// verify. A restored plan plus the session marker satisfies the stage
// without further input; otherwise the initial email is sent once,
// gated on the plan context marker.
func (s *Stage) Enter(ctx context.Context, fc *flowexec.FlowContext) (*flowexec.StageResult, error) {
	if _, returned := fc.ReturningTokenKey(ctx); returned && fc.Plan.IsRestored() {
		pendingUser, err := fc.PendingUser(ctx)
		if err != nil {
			if errors.Is(err, flowexec.ErrPendingUserMissing) || errors.Is(err, user.ErrUserNotFound) {
				return flowexec.StageInvalid(flowexec.ReasonPreconditionMissing, "No pending user."), nil
			}
			return nil, err
		}

		if s.cfg.ActivateUserOnSuccess {
			if err := fc.Services.Users.ActivateUser(ctx, pendingUser.ID); err != nil {
				return nil, err
			}
		}

		return flowexec.StageOK("Successfully verified email."), nil
	}

	if fc.Plan.PendingUserID() == "" {
		slog.Debug("No pending user", "stage", s.cfg.Name)
		return flowexec.StageInvalid(flowexec.ReasonPreconditionMissing, "No pending user."), nil
	}

	if _, sent := fc.Plan.Context[ContextEmailSent]; !sent {
		if err := s.sendEmail(ctx, fc); err != nil {
			return nil, err
		}
		fc.Plan.Context[ContextEmailSent] = true
	}

	return flowexec.AwaitResponse(), nil
}

// ProduceChallenge builds the "email sent" prompt
func (s *Stage) ProduceChallenge(ctx context.Context, fc *flowexec.FlowContext) (*flowexec.Challenge, error) {
	return &flowexec.Challenge{
		Component: "sf-stage-email",
		Title:     "Email sent.",
	}, nil
}

// ValidateResponse always rejects: the stage is satisfied by the user
// following the emailed link, never by a response submission.
func (s *Stage) ValidateResponse(ctx context.Context, fc *flowexec.FlowContext, response json.RawMessage) error {
	return flowexec.Reject("email-sent", "Email sent.")
}

// OnValid is unreachable through the executor (ValidateResponse always
// rejects) but kept symmetric with OnInvalid.
func (s *Stage) OnValid(ctx context.Context, fc *flowexec.FlowContext) (*flowexec.StageResult, error) {
	return s.OnInvalid(ctx, fc, flowexec.ReasonValidationRejected)
}

// OnInvalid resends the verification email. One response attempt means
// one resend; that is the retry policy, not an error. The stage cannot
// report ok yet because it is still waiting on the link click.
func (s *Stage) OnInvalid(ctx context.Context, fc *flowexec.FlowContext, reason flowexec.InvalidReason) (*flowexec.StageResult, error) {
	if fc.Plan.PendingUserID() == "" {
		return flowexec.StageInvalid(flowexec.ReasonPreconditionMissing, "No pending user."), nil
	}

	if err := s.sendEmail(ctx, fc); err != nil {
		return nil, err
	}

	return flowexec.StageInvalid(flowexec.ReasonConfirmationPending, "Email sent."), nil
}

// sendEmail dispatches the verification email. Implies the caller has
// already checked that there is a pending user.
func (s *Stage) sendEmail(ctx context.Context, fc *flowexec.FlowContext) error {
	pendingUser, err := fc.PendingUser(ctx)
	if err != nil {
		return err
	}

	recipient := pendingUser.Email
	if override, ok := fc.Plan.Context[ContextEmailOverride].(string); ok && override != "" {
		recipient = override
	}

	token, err := s.getToken(ctx, fc, pendingUser)
	if err != nil {
		return err
	}

	resumptionURL := fc.Services.URLs.FlowURL(fc.Plan.FlowSlug, url.Values{
		flowexec.QSKeyToken: []string{token.Key},
	})

	data := notification.NotificationData{
		To:     recipient,
		Locale: pendingUser.Locale,
		Data: map[string]string{
			"Name":    pendingUser.Name,
			"URL":     resumptionURL,
			"Expires": token.ExpiresAt.Format(time.RFC1123),
		},
	}

	err = fc.Services.Notifier.Send(notification.EmailVerificationNotice, notification.EmailSystem, data)
	if err != nil {
		// Token exists and the user can retry; delivery is best effort
		slog.Error("Failed to send verification email", "user_id", pendingUser.ID, "error", err)
	}

	return nil
}

// getToken fetches the stage's resumption token, creating it on first
// use. Validity is not checked at creation, only existence; a token
// found expired is rotated so the fresh link outlives the email.
func (s *Stage) getToken(ctx context.Context, fc *flowexec.FlowContext, pendingUser *user.User) (*flowtoken.FlowToken, error) {
	// Headroom so the displayed expiry never overstates the validity
	validity := s.cfg.TokenExpiry + time.Minute

	identifier := flowtoken.Identifier("sf-email-stage", s.cfg.Name, pendingUser.Username)

	snapshot, err := fc.Plan.Snapshot()
	if err != nil {
		return nil, err
	}

	token, err := fc.Services.Tokens.GetOrCreate(ctx, identifier, pendingUser.ID, snapshot, validity)
	if err != nil {
		return nil, err
	}

	if token.IsExpired() {
		token, err = fc.Services.Tokens.Rotate(ctx, token, validity)
		if err != nil {
			return nil, err
		}
	}

	return token, nil
}
