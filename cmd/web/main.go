package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/AdamBeresnev/tourney-live/internal/config"
	"github.com/AdamBeresnev/tourney-live/internal/db"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	app := &cli.App{
		Name:  "tourney-live",
		Usage: "live tournament brackets for TVs and controllers",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Value:   "config.yaml",
				Usage:   "path to the configuration file",
				EnvVars: []string{"CONFIG_FILE"},
			},
		},
		DefaultCommand: "serve",
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP and websocket server",
				Action: runServe,
			},
			newMigrateCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func loadConfig(c *cli.Context) (*config.Config, *slog.Logger, error) {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, newLogger(cfg.Log), nil
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler = slog.NewJSONHandler(os.Stdout, opts)
	if strings.EqualFold(cfg.Format, "text") {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func newMigrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "database migrations",
		Subcommands: []*cli.Command{
			{
				Name:  "up",
				Usage: "apply every pending migration",
				Action: func(c *cli.Context) error {
					return withDatabase(c, func(cfg *config.Config, logger *slog.Logger, database *sqlx.DB) error {
						if err := db.RunMigrations(database); err != nil {
							return err
						}
						return printVersion(logger, database)
					})
				},
			},
			{
				Name:  "down",
				Usage: "roll back migrations",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "steps", Value: 1, Usage: "migrations to undo, 0 for all"},
				},
				Action: func(c *cli.Context) error {
					return withDatabase(c, func(cfg *config.Config, logger *slog.Logger, database *sqlx.DB) error {
						if err := db.RollbackMigrations(database, c.Int("steps")); err != nil {
							return err
						}
						return printVersion(logger, database)
					})
				},
			},
			{
				Name:  "version",
				Usage: "print the applied schema version",
				Action: func(c *cli.Context) error {
					return withDatabase(c, func(cfg *config.Config, logger *slog.Logger, database *sqlx.DB) error {
						return printVersion(logger, database)
					})
				},
			},
		},
	}
}

func printVersion(logger *slog.Logger, database *sqlx.DB) error {
	v, dirty, err := db.Version(database)
	if err != nil {
		return err
	}
	logger.Info("schema version", "version", v, "dirty", dirty)
	return nil
}
