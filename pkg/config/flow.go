package config

import "time"

// FlowConfig holds flow engine configuration
type FlowConfig struct {
	// BaseURL is the externally reachable root used when building links
	// into emails
	BaseURL string `env:"FLOW_BASE_URL" env-default:"http://localhost:4000"`

	// Persistence selects the repository backend, "postgres" or "file"
	Persistence string `env:"FLOW_PERSISTENCE" env-default:"postgres"`

	// DataDir is the storage directory for file persistence
	DataDir string `env:"FLOW_DATA_DIR" env-default:"./data"`

	// TokenExpiry is the validity of emailed resumption links
	TokenExpiry time.Duration `env:"FLOW_TOKEN_EXPIRY" env-default:"30m"`

	// ActivateUserOnSuccess flips verified users to active when the
	// email stage completes
	ActivateUserOnSuccess bool `env:"FLOW_ACTIVATE_USER_ON_SUCCESS" env-default:"true"`
}

// JwtConfig holds the signing configuration for tokens issued on flow
// completion.
type JwtConfig struct {
	Secret             string        `env:"JWT_SECRET" env-default:"very-secure-jwt-secret"`
	Issuer             string        `env:"JWT_ISSUER" env-default:"simple-flow"`
	AccessTokenExpiry  time.Duration `env:"ACCESS_TOKEN_EXPIRY" env-default:"15m"`
	RefreshTokenExpiry time.Duration `env:"REFRESH_TOKEN_EXPIRY" env-default:"24h"`
}
