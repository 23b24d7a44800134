// Package flowtoken manages resumption tokens for in-progress flows.
//
// A flow token binds an unguessable key to a serialized plan snapshot,
// letting a user resume a flow from an out-of-band channel such as an
// email link. Tokens are looked up two ways: by deterministic
// identifier when a stage re-issues (existence gates creation, so a
// page reload reuses the link already sent) and by opaque key when the
// user returns.
//
// # Basic Usage
//
//	repo, err := flowtoken.NewRepository("postgres", flowtoken.RepositoryConfig{Pool: pool})
//	service := flowtoken.NewService(repo, flowtoken.WithTokenExpiry(30*time.Minute))
//
//	// Issue (or re-fetch) a token for a parked plan
//	identifier := flowtoken.Identifier("sf-email-stage", stageName, username)
//	token, err := service.GetOrCreate(ctx, identifier, userID, snapshot, ttl)
//	if token.IsExpired() {
//		token, err = service.Rotate(ctx, token, ttl)
//	}
//
//	// When the user follows the link
//	token, plan, err := service.Redeem(ctx, key)
//
// Expired tokens are still redeemable once; the stage that issued them
// rotates the key on the next send. Cleanup of long-dead rows is a
// housekeeping concern, see Service.CleanupExpiredTokens.
//
// # Postgres schema
//
// The postgres repository expects a flow_tokens table with a partial
// unique index on identifier where deleted_at is null; the atomic
// get-or-create in Create depends on that index.
package flowtoken
