package main

import (
	"fmt"
	"io"
	"time"

	"github.com/sethvargo/go-password/password"
	"github.com/spf13/afero"
	"github.com/urfave/cli/v2"

	"reeltrack/services/accounts"
	"reeltrack/services/sessions"
)

func accountCommand() *cli.Command {
	return &cli.Command{
		Name:  "account",
		Usage: "manage local accounts",
		Subcommands: []*cli.Command{
			{
				Name:  "create",
				Usage: "create a local account",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "username", Aliases: []string{"u"}, Required: true},
					&cli.StringFlag{Name: "password", Aliases: []string{"p"}, Usage: "generated when empty", EnvVars: []string{"REELTRACK_PASSWORD"}},
				},
				Action: func(c *cli.Context) error {
					store, closer, err := openAccountStore(c)
					if err != nil {
						return err
					}
					defer closer.Close()
					svc := store.accounts

					pass, generated := c.String("password"), false
					if pass == "" {
						if pass, err = generatePassword(); err != nil {
							return err
						}
						generated = true
					}

					account, err := svc.Create(c.String("username"), pass)
					if err != nil {
						return err
					}
					fmt.Fprintf(c.App.Writer, "created account %s (%s)\n", account.Username, account.ID)
					if generated {
						fmt.Fprintf(c.App.Writer, "password: %s\n", pass)
					}
					return nil
				},
			},
			{
				Name:  "list",
				Usage: "list local accounts",
				Action: func(c *cli.Context) error {
					store, closer, err := openAccountStore(c)
					if err != nil {
						return err
					}
					defer closer.Close()
					svc := store.accounts

					for _, account := range svc.List() {
						fmt.Fprintf(c.App.Writer, "%s\t%s\t%s\n", account.ID, account.Username, account.CreatedAt.Format("2006-01-02"))
					}
					return nil
				},
			},
			{
				Name:      "passwd",
				Usage:     "set a new password for an account",
				ArgsUsage: "USERNAME",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "password", Aliases: []string{"p"}, Required: true, EnvVars: []string{"REELTRACK_PASSWORD"}},
				},
				Action: func(c *cli.Context) error {
					store, closer, err := openAccountStore(c)
					if err != nil {
						return err
					}
					defer closer.Close()

					revoked, err := store.setPassword(c.Args().First(), c.String("password"))
					if err != nil {
						return err
					}
					fmt.Fprintf(c.App.Writer, "password changed; %d sessions signed out\n", revoked)
					return nil
				},
			},
			{
				Name:      "delete",
				Usage:     "delete an account (its watchlist rows are kept)",
				ArgsUsage: "USERNAME",
				Action: func(c *cli.Context) error {
					store, closer, err := openAccountStore(c)
					if err != nil {
						return err
					}
					defer closer.Close()

					revoked, err := store.delete(c.Args().First())
					if err != nil {
						return err
					}
					fmt.Fprintf(c.App.Writer, "account deleted; %d sessions signed out\n", revoked)
					return nil
				},
			},
		},
	}
}

// generatePassword returns a 20 character password with digits and symbols.
func generatePassword() (string, error) {
	return password.Generate(20, 4, 2, false, false)
}

// accountStore pairs accounts with their sessions so credential changes made
// from the CLI also sign the account out of a running server.
type accountStore struct {
	accounts *accounts.Service
	sessions *sessions.Service
}

func newAccountStore(fs afero.Fs, dataDir string, ttl time.Duration) (*accountStore, error) {
	accountsSvc, err := accounts.NewService(fs, dataDir)
	if err != nil {
		return nil, err
	}
	sessionsSvc, err := sessions.NewService(fs, dataDir, ttl)
	if err != nil {
		return nil, err
	}
	return &accountStore{accounts: accountsSvc, sessions: sessionsSvc}, nil
}

func (s *accountStore) setPassword(username, newPassword string) (int, error) {
	account, ok := s.accounts.GetByUsername(username)
	if !ok {
		return 0, accounts.ErrAccountNotFound
	}
	if err := s.accounts.UpdatePassword(account.ID, newPassword); err != nil {
		return 0, err
	}
	revoked, err := s.sessions.RevokeAllForAccount(account.ID, "")
	return len(revoked), err
}

func (s *accountStore) delete(username string) (int, error) {
	account, ok := s.accounts.GetByUsername(username)
	if !ok {
		return 0, accounts.ErrAccountNotFound
	}
	if err := s.accounts.Delete(account.ID); err != nil {
		return 0, err
	}
	revoked, err := s.sessions.RevokeAllForAccount(account.ID, "")
	return len(revoked), err
}

func openAccountStore(c *cli.Context) (*accountStore, io.Closer, error) {
	settings, closer, err := loadSettings(c)
	if err != nil {
		return nil, nil, err
	}
	store, err := newAccountStore(afero.NewOsFs(), settings.DataDir, time.Duration(settings.Auth.SessionTTLHours)*time.Hour)
	if err != nil {
		closer.Close()
		return nil, nil, err
	}
	return store, closer, nil
}
