package flowexec

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/tendant/simple-flow/pkg/flowplan"
	"github.com/tendant/simple-flow/pkg/flowtoken"
	"github.com/tendant/simple-flow/pkg/notification"
	"github.com/tendant/simple-flow/pkg/session"
	"github.com/tendant/simple-flow/pkg/tokengen"
	"github.com/tendant/simple-flow/pkg/user"
)

// ServiceDependencies contains the services stages reach through the
// flow context.
type ServiceDependencies struct {
	Tokens   *flowtoken.Service
	Users    *user.Service
	Notifier *notification.NotificationManager
	URLs     *URLBuilder
	TokenGen *tokengen.Service
}

// FlowContext carries the live plan and its surroundings into stage
// callbacks for one request.
type FlowContext struct {
	Plan      *flowplan.Plan
	SessionID string
	Sessions  session.Store
	Services  *ServiceDependencies

	// StepData carries request-scoped values between a stage's
	// callbacks (e.g. from ValidateResponse to OnValid). It is never
	// persisted; durable state belongs in Plan.Context.
	StepData map[string]interface{}
}

// PendingUser resolves the plan's pending subject from the user store.
// Returns ErrPendingUserMissing when the plan context has no pending
// user key.
func (fc *FlowContext) PendingUser(ctx context.Context) (*user.User, error) {
	userIDStr := fc.Plan.PendingUserID()
	if userIDStr == "" {
		return nil, ErrPendingUserMissing
	}

	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		return nil, fmt.Errorf("invalid pending user id %q: %w", userIDStr, err)
	}

	return fc.Services.Users.GetUser(ctx, userID)
}

// ReturningTokenKey reports the flow token key recorded in the session
// when the user returned from an out-of-band link, if any.
func (fc *FlowContext) ReturningTokenKey(ctx context.Context) (string, bool) {
	key, exists, err := fc.Sessions.Get(ctx, fc.SessionID, session.KeyTokenKey)
	if err != nil || !exists {
		return "", false
	}
	return key, true
}
