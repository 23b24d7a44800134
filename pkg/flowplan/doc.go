// Package flowplan models the live state of a flow in progress.
//
// A Plan is an ordered list of stage bindings plus a shared context map
// the stages read and write. Plans are serialized into versioned
// snapshots so an in-progress flow can be parked inside a flow token
// (see pkg/flowtoken) and resumed later from an out-of-band channel
// such as an email link.
//
// # Basic Usage
//
//	plan := flowplan.NewPlan("email-verification", []flowplan.StageBinding{
//		{Kind: "email", Name: "default-email"},
//	}, map[string]interface{}{
//		flowplan.ContextPendingUser: userID.String(),
//	})
//
//	// Park the plan in a token
//	snapshot, err := plan.Snapshot()
//
//	// Later, resume it
//	restored, err := flowplan.Restore(snapshot)
package flowplan
