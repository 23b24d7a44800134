// Package config holds the environment-backed configuration structs the
// flow server reads with cleanenv. Each struct maps one concern; the
// server composes them into its top-level config.
package config
