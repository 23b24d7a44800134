package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/jinzhu/copier"
	"github.com/tendant/chi-demo/app"
	dbutils "github.com/tendant/db-utils/db"
	"github.com/tendant/simple-flow/pkg/config"
	"github.com/tendant/simple-flow/pkg/flowexec"
	flowapi "github.com/tendant/simple-flow/pkg/flowexec/api"
	"github.com/tendant/simple-flow/pkg/flowplan"
	"github.com/tendant/simple-flow/pkg/flowtoken"
	"github.com/tendant/simple-flow/pkg/notification"
	"github.com/tendant/simple-flow/pkg/session"
	"github.com/tendant/simple-flow/pkg/stages/email"
	"github.com/tendant/simple-flow/pkg/stages/identification"
	"github.com/tendant/simple-flow/pkg/stages/password"
	"github.com/tendant/simple-flow/pkg/stages/totp"
	"github.com/tendant/simple-flow/pkg/tokengen"
	"github.com/tendant/simple-flow/pkg/user"
)

type Config struct {
	DbConfig    config.DatabaseConfig
	EmailConfig config.EmailConfig
	FlowConfig  config.FlowConfig
	JwtConfig   config.JwtConfig
	AppConfig   app.AppConfig
}

func main() {

	cfg := Config{}
	cleanenv.ReadEnv(&cfg)

	server := app.DefaultApp()

	app.RoutesHealthz(server.R)
	app.RoutesHealthzReady(server.R)

	repoConfig := flowtoken.RepositoryConfig{DataDir: cfg.FlowConfig.DataDir}
	userRepoConfig := user.RepositoryConfig{DataDir: cfg.FlowConfig.DataDir}

	if cfg.FlowConfig.Persistence == "postgres" {
		dbConfig := cfg.DbConfig.ToDbConfig()
		pool, err := dbutils.NewDbPool(context.Background(), dbConfig)
		if err != nil {
			slog.Error("Failed creating dbpool", "db", dbConfig.Database, "host", dbConfig.Host, "port", dbConfig.Port, "user", dbConfig.User)
			os.Exit(-1)
		}
		repoConfig.Pool = pool
		userRepoConfig.Pool = pool
	}

	tokenRepo, err := flowtoken.NewRepository(cfg.FlowConfig.Persistence, repoConfig)
	if err != nil {
		slog.Error("Failed creating flow token repository", "error", err)
		os.Exit(-1)
	}
	tokenService := flowtoken.NewService(tokenRepo,
		flowtoken.WithTokenExpiry(cfg.FlowConfig.TokenExpiry),
	)

	userRepo, err := user.NewRepository(cfg.FlowConfig.Persistence, userRepoConfig)
	if err != nil {
		slog.Error("Failed creating user repository", "error", err)
		os.Exit(-1)
	}
	userService := user.NewService(userRepo)

	notificationManager, err := notification.NewNotificationManager(
		notification.WithSMTP(cfg.EmailConfig.ToSMTPConfig()),
		notification.WithEmailVerificationTemplate(),
	)
	if err != nil {
		slog.Error("Failed creating notification manager", "error", err)
		os.Exit(-1)
	}

	tokenGen := tokengen.NewService(cfg.JwtConfig.Secret,
		tokengen.WithIssuer(cfg.JwtConfig.Issuer),
		tokengen.WithAccessExpiry(cfg.JwtConfig.AccessTokenExpiry),
		tokengen.WithRefreshExpiry(cfg.JwtConfig.RefreshTokenExpiry),
	)

	services := &flowexec.ServiceDependencies{
		Tokens:   tokenService,
		Users:    userService,
		Notifier: notificationManager,
		URLs:     flowexec.NewURLBuilder(cfg.FlowConfig.BaseURL),
		TokenGen: tokenGen,
	}

	var emailStageConfig email.Config
	copier.Copy(&emailStageConfig, &cfg.FlowConfig)
	emailStageConfig.Name = "verify-email"

	registry := flowexec.NewStageRegistry().
		Register(identification.New(identification.Config{Name: "login-identification"})).
		Register(password.New(password.Config{Name: "login-password"})).
		Register(totp.New(totp.Config{Name: "login-totp"})).
		Register(email.New(emailStageConfig))

	planner := flowplan.NewPlanner(
		flowplan.FlowDefinition{
			Slug:  "default-authentication",
			Title: "Sign in",
			Bindings: []flowplan.StageBinding{
				{Kind: "identification", Name: "login-identification"},
				{Kind: "password", Name: "login-password"},
				{Kind: "totp", Name: "login-totp"},
			},
		},
		flowplan.FlowDefinition{
			Slug:  "verify-email",
			Title: "Verify your email",
			Bindings: []flowplan.StageBinding{
				{Kind: "email", Name: "verify-email"},
			},
		},
	)

	executor := flowexec.NewExecutor(registry, planner, session.NewInMemoryStore(), services)

	handler := flowapi.NewHandler(executor)
	handler.Routes(server.R)

	server.Run()

}
