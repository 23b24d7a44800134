package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
	dbutils "github.com/tendant/db-utils/db"
	"github.com/tendant/simple-flow/pkg/config"
	"github.com/tendant/simple-flow/pkg/user"
)

type Config struct {
	DbConfig   config.DatabaseConfig
	FlowConfig config.FlowConfig
}

func main() {
	username := flag.String("username", "", "Username for the new user (required)")
	email := flag.String("email", "", "Email address for the new user (required)")
	name := flag.String("name", "", "Display name for the new user")
	password := flag.String("password", "", "Password for the new user")
	locale := flag.String("locale", "en", "Locale for the new user")
	activate := flag.Bool("activate", false, "Mark the user active immediately")
	flag.Parse()

	if *username == "" || *email == "" {
		fmt.Println("Error: username and email are required")
		flag.Usage()
		os.Exit(1)
	}

	cfg := Config{}
	cleanenv.ReadEnv(&cfg)

	repoConfig := user.RepositoryConfig{DataDir: cfg.FlowConfig.DataDir}
	if cfg.FlowConfig.Persistence == "postgres" {
		dbConfig := cfg.DbConfig.ToDbConfig()
		pool, err := dbutils.NewDbPool(context.Background(), dbConfig)
		if err != nil {
			slog.Error("Failed creating dbpool", "db", dbConfig.Database, "host", dbConfig.Host, "port", dbConfig.Port, "user", dbConfig.User)
			os.Exit(-1)
		}
		repoConfig.Pool = pool
	}

	repo, err := user.NewRepository(cfg.FlowConfig.Persistence, repoConfig)
	if err != nil {
		slog.Error("Failed creating user repository", "error", err)
		os.Exit(-1)
	}
	service := user.NewService(repo)

	ctx := context.Background()
	created, err := service.CreateUser(ctx, user.CreateUserRequest{
		Username: *username,
		Email:    *email,
		Name:     *name,
		Password: *password,
		Locale:   *locale,
	})
	if err != nil {
		slog.Error("Failed to create user", "username", *username, "error", err)
		os.Exit(-1)
	}

	if *activate {
		if err := service.ActivateUser(ctx, created.ID); err != nil {
			slog.Error("Failed to activate user", "user_id", created.ID, "error", err)
			os.Exit(-1)
		}
	}

	fmt.Printf("Created user %s (%s)\n", created.Username, created.ID)
}
