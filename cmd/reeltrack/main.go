package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"reeltrack/config"
	"reeltrack/internal/database"
	"reeltrack/internal/logging"
)

var Version = "v0.0.0"

func main() {
	app := &cli.App{
		Name:    "reeltrack",
		Usage:   "personal watchlist backed by TMDB",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "settings file",
				EnvVars: []string{"REELTRACK_CONFIG"},
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"debug"},
				Usage:   "debug logging",
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			migrateCommand(),
			accountCommand(),
			configCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("reeltrack: %v", err)
	}
}

// loadSettings reads the settings file, overlays the environment (.env files
// included) and sets up logging.
func loadSettings(c *cli.Context) (config.Settings, io.Closer, error) {
	if err := config.LoadDotEnv(".env", ".env.local"); err != nil {
		return config.Settings{}, nil, err
	}

	path := settingsPath(c)
	settings, err := config.NewManager(path).Load()
	if err != nil {
		return config.Settings{}, nil, err
	}
	if c.Bool("verbose") {
		settings.Logging.Verbose = true
	}
	if err := settings.Validate(); err != nil {
		return config.Settings{}, nil, fmt.Errorf("invalid settings in %s: %w", path, err)
	}

	closer, err := logging.Setup(settings.Logging, settings.DataDir)
	if err != nil {
		return config.Settings{}, nil, fmt.Errorf("set up logging: %w", err)
	}
	logging.Debugf(settings.Logging.Verbose, "[config] loaded %s (auth=%s, driver=%s)", path, settings.Auth.Mode, settings.Database.Driver)
	return settings, closer, nil
}

func settingsPath(c *cli.Context) string {
	if path := c.String("config"); path != "" {
		return path
	}
	dataDir := os.Getenv("DATA_DIR")
	if dataDir == "" {
		dataDir = config.DefaultSettings().DataDir
	}
	return filepath.Join(dataDir, "settings.json")
}

func openDatabase(settings config.Settings) (*database.DB, error) {
	cfg := database.Config{DatabasePath: settings.DatabasePath()}
	if settings.Database.Driver == config.DriverPostgres {
		cfg = database.Config{URL: settings.Database.URL}
	}
	return database.NewDB(cfg)
}
