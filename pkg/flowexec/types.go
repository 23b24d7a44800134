package flowexec

// StageStatus represents the executor's view of the current stage
type StageStatus string

const (
	// StatusAwaitingChallenge means the stage needs to render its prompt
	StatusAwaitingChallenge StageStatus = "awaiting_challenge"
	// StatusAwaitingResponse means the challenge is rendered and the
	// executor is waiting on the client
	StatusAwaitingResponse StageStatus = "awaiting_response"
	// StatusStageOK means the current stage is satisfied and the plan
	// cursor advances
	StatusStageOK StageStatus = "stage_ok"
	// StatusStageInvalid means the current stage rejected the response;
	// the same challenge is re-rendered
	StatusStageInvalid StageStatus = "stage_invalid"
	// StatusCompleted means the plan has run out of stages
	StatusCompleted StageStatus = "completed"
	// StatusRestored means the plan was rehydrated from a flow token
	StatusRestored StageStatus = "restored"
)

// InvalidReason distinguishes why a stage reported invalid. The
// transitions are identical; the user-facing treatment differs.
type InvalidReason string

const (
	// ReasonPreconditionMissing means required plan context is absent.
	// The flow aborts; there is nothing the user can retry.
	ReasonPreconditionMissing InvalidReason = "precondition_missing"
	// ReasonConfirmationPending means everything is fine but the stage
	// is waiting on an out-of-band confirmation; the same prompt is
	// shown again.
	ReasonConfirmationPending InvalidReason = "confirmation_pending"
	// ReasonValidationRejected means the response was structurally or
	// semantically rejected; the user is re-prompted.
	ReasonValidationRejected InvalidReason = "validation_rejected"
)

// Message is a user-facing notice attached to a challenge
type Message struct {
	Level string `json:"level"` // "info", "success" or "error"
	Text  string `json:"text"`
}

// Challenge is the prompt a stage presents to the client
type Challenge struct {
	Component string    `json:"component"`
	Title     string    `json:"title"`
	FlowSlug  string    `json:"flow_slug"`
	Stage     string    `json:"stage"`
	Messages  []Message `json:"messages,omitempty"`
}

// StageResult is what a stage reports back to the executor
type StageResult struct {
	Status  StageStatus
	Reason  InvalidReason
	Message string
}

// StageOK reports the current stage satisfied; the executor advances
func StageOK(message string) *StageResult {
	return &StageResult{Status: StatusStageOK, Message: message}
}

// StageInvalid reports the current stage unsatisfied for the given reason
func StageInvalid(reason InvalidReason, message string) *StageResult {
	return &StageResult{Status: StatusStageInvalid, Reason: reason, Message: message}
}

// AwaitResponse asks the executor to render the challenge and wait
func AwaitResponse() *StageResult {
	return &StageResult{Status: StatusAwaitingResponse}
}

// Rejection is the error a stage returns from ValidateResponse when the
// response is rejected rather than failing on a fault.
type Rejection struct {
	Code    string
	Message string
}

func (r *Rejection) Error() string {
	return r.Message
}

// Reject creates a validation rejection
func Reject(code, message string) *Rejection {
	return &Rejection{Code: code, Message: message}
}

// StepData keys set by the executor before OnInvalid runs
const (
	StepDataRejectionCode    = "rejection_code"
	StepDataRejectionMessage = "rejection_message"
)

// ExecutionResult is the executor's answer to one request
type ExecutionResult struct {
	Status    StageStatus          `json:"status"`
	Challenge *Challenge           `json:"challenge,omitempty"`
	Reason    InvalidReason        `json:"reason,omitempty"`
	Message   string               `json:"message,omitempty"`
	Tokens    map[string]TokenInfo `json:"tokens,omitempty"`
}

// TokenInfo carries a session token issued on flow completion
type TokenInfo struct {
	Token  string `json:"token"`
	Expiry string `json:"expiry"`
}
