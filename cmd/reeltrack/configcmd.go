package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/urfave/cli/v2"

	"reeltrack/config"
)

func configCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "inspect or create the settings file",
		Subcommands: []*cli.Command{
			{
				Name:  "init",
				Usage: "write a settings file with default values",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "force", Usage: "overwrite an existing file"},
				},
				Action: func(c *cli.Context) error {
					if err := config.LoadDotEnv(".env", ".env.local"); err != nil {
						return err
					}
					path := settingsPath(c)
					if _, err := os.Stat(path); err == nil && !c.Bool("force") {
						return fmt.Errorf("%s already exists (use --force to overwrite)", path)
					} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
						return err
					}
					if err := config.NewManager(path).Save(config.DefaultSettings()); err != nil {
						return err
					}
					fmt.Fprintf(c.App.Writer, "wrote %s\n", path)
					return nil
				},
			},
			{
				Name:  "check",
				Usage: "load settings with environment overrides and validate them",
				Action: func(c *cli.Context) error {
					_, closer, err := loadSettings(c)
					if err != nil {
						return err
					}
					defer closer.Close()
					fmt.Fprintln(c.App.Writer, "settings ok")
					return nil
				},
			},
		},
	}
}
