// Package flowexec drives flow plans forward one request at a time.
//
// The executor asks the current stage to produce a challenge, accepts
// the client's response, and advances or re-prompts based on the
// stage's verdict. Plans are parked in session storage between
// requests; when a stage needs out-of-band resumption (for example an
// email link), the plan is additionally parked inside a flow token and
// the executor can be reconstructed from that token when the user
// returns (see RestoreFromToken).
//
// # States
//
// A stage moves through awaiting_challenge -> awaiting_response and
// then reports stage_ok (advance) or stage_invalid (re-prompt). A
// stage_invalid with reason precondition_missing aborts the flow: there
// is nothing the user can retry. Plans rehydrated from a token carry
// the restored flag, which lets the waiting stage complete without a
// new response submission.
//
// # Exactly-once side effects
//
// Stages gate side effects (such as sending the verification email) on
// plan context markers. The plan, markers included, is parked after
// every request, so repeated GETs re-render the challenge without
// re-firing the side effect.
//
// # Basic Usage
//
//	registry := flowexec.NewStageRegistry().
//		Register(identification.New(idCfg)).
//		Register(email.New(emailCfg))
//
//	executor := flowexec.NewExecutor(registry, planner, sessions, services)
//
//	// GET: render the current challenge
//	result, err := executor.GetChallenge(ctx, sessionID, "signup")
//
//	// POST: submit a response
//	result, err = executor.SubmitResponse(ctx, sessionID, "signup", body)
//
//	// Returning from an email link (?flow_token=...)
//	result, err = executor.RestoreFromToken(ctx, sessionID, key)
package flowexec
