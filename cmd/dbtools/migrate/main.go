// cmd/dbtools/migrate/main.go
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/golang-migrate/migrate/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/codr1/touchline/internal/config"
	"github.com/codr1/touchline/internal/db"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	var (
		dbPath     = flag.String("db", "", "Path to SQLite database (defaults to the configured database)")
		configPath = flag.String("config", "config/app.yaml", "Config file used when -db is not set")
		command    = flag.String("command", "", "Command to run (up, down, steps, version)")
		steps      = flag.Int("n", 1, "Number of migrations for the steps command; negative rolls back")
	)
	flag.Parse()

	if *command == "" {
		flag.Usage()
		os.Exit(1)
	}

	path := *dbPath
	if path == "" {
		data, err := os.ReadFile(*configPath)
		if err != nil {
			log.Fatal().Err(err).Str("config", *configPath).Msg("Failed to read config")
		}
		cfg, err := config.Parse(data)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to parse config")
		}
		path = cfg.Database.Filename
	}
	if path == "" {
		log.Fatal().Msg("No database path given")
	}

	m, err := db.NewMigrator(path)
	if err != nil {
		log.Fatal().Err(err).Str("db", path).Msg("Migration init failed")
	}
	defer m.Close()

	switch *command {
	case "up":
		err = m.Up()
	case "down":
		err = m.Down()
	case "steps":
		err = m.Steps(*steps)
	case "version":
		version, dirty, verr := m.Version()
		if errors.Is(verr, migrate.ErrNilVersion) {
			fmt.Println("Version: none")
			return
		}
		if verr != nil {
			log.Fatal().Err(verr).Msg("Get version failed")
		}
		fmt.Printf("Version: %d, Dirty: %v\n", version, dirty)
		return
	default:
		log.Fatal().Str("command", *command).Msg("Unknown command")
	}

	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		log.Fatal().Err(err).Str("command", *command).Msg("Migration failed")
	}
	log.Info().Str("command", *command).Str("db", path).Msg("Migration complete")
}
