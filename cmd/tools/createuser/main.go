// cmd/tools/createuser/main.go
package main

import (
	"context"
	"flag"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/codr1/touchline/internal/api/auth"
	"github.com/codr1/touchline/internal/api/authz"
	"github.com/codr1/touchline/internal/config"
	"github.com/codr1/touchline/internal/db"
	"github.com/codr1/touchline/internal/db/dbgen"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	var (
		configPath = flag.String("config", "config/app.yaml", "Path to config file")
		email      = flag.String("email", "", "Login email")
		name       = flag.String("name", "", "Display name")
		role       = flag.String("role", authz.RoleCoach, "coach or admin")
	)
	flag.Parse()

	// Read from the environment so it stays out of shell history.
	password := os.Getenv("TOUCHLINE_PASSWORD")

	v := validator.New()
	if err := v.Var(strings.TrimSpace(*email), "required,email"); err != nil {
		log.Fatal().Str("email", *email).Msg("A valid -email is required")
	}
	if strings.TrimSpace(*name) == "" {
		log.Fatal().Msg("-name is required")
	}
	if r := strings.ToLower(strings.TrimSpace(*role)); r != authz.RoleCoach && r != authz.RoleAdmin {
		log.Fatal().Str("role", *role).Msg("-role must be coach or admin")
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		log.Fatal().Err(err).Msg("Set TOUCHLINE_PASSWORD to the new user's password")
	}

	data, err := os.ReadFile(*configPath)
	if err != nil {
		log.Fatal().Err(err).Str("config", *configPath).Msg("Failed to read config")
	}
	cfg, err := config.Parse(data)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to parse config")
	}

	database, err := db.NewFromConfig(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer database.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	user, err := database.Queries.CreateUser(ctx, dbgen.CreateUserParams{
		Email:        strings.ToLower(strings.TrimSpace(*email)),
		Name:         strings.TrimSpace(*name),
		PasswordHash: hash,
		Role:         authz.NormalizeRole(*role),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create user")
	}
	log.Info().Int64("user_id", user.ID).Str("email", user.Email).Str("role", user.Role).Msg("User created")
}
