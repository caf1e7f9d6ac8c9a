package main

import (
	"log"

	"github.com/urfave/cli/v2"
)

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "apply database migrations and exit",
		Action: func(c *cli.Context) error {
			settings, logCloser, err := loadSettings(c)
			if err != nil {
				return err
			}
			defer logCloser.Close()

			db, err := openDatabase(settings)
			if err != nil {
				return err
			}
			defer db.Close()

			version, err := db.Version()
			if err != nil {
				return err
			}
			log.Printf("[database] %s schema is at version %d", db.Dialect(), version)
			return nil
		},
	}
}
