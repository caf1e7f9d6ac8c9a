package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/afero"
	"github.com/urfave/cli/v2"

	"reeltrack/api"
	"reeltrack/config"
	"reeltrack/handlers"
	"reeltrack/internal/auth"
	"reeltrack/services/accounts"
	"reeltrack/services/sessions"
	"reeltrack/services/tmdb"
	"reeltrack/services/watchlist"
	"reeltrack/utils"
)

const shutdownTimeout = 10 * time.Second

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:   "serve",
		Usage:  "run the HTTP API",
		Action: runServe,
	}
}

func runServe(c *cli.Context) error {
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

	gatewayOpts := []tmdb.GatewayOption{tmdb.WithBaseURL(settings.TMDB.BaseURL)}
	if settings.TMDB.TimeoutSeconds > 0 {
		gatewayOpts = append(gatewayOpts, tmdb.WithHTTPClient(&http.Client{
			Timeout: time.Duration(settings.TMDB.TimeoutSeconds) * time.Second,
		}))
	}
	gateway := tmdb.NewGateway(settings.TMDB.APIKey, settings.TMDB.Language, gatewayOpts...)
	if !gateway.Configured() {
		log.Printf("[tmdb] no API key configured; search and show lookups will fail until TMDB_API_KEY is set")
	}

	registry := watchlist.NewRegistry(func(userID string) watchlist.Table {
		return db.Watchlist.ForUser(userID)
	})

	deps := routeDeps{
		TMDB:      handlers.NewTMDBHandler(tmdb.NewService(gateway)),
		Watchlist: handlers.NewWatchlistHandler(registry),
		Version:   handlers.NewVersionHandler(Version),
	}

	var sessionsSvc *sessions.Service
	switch settings.Auth.Mode {
	case config.AuthModeSupabase:
		deps.Authenticator = api.SupabaseAuthenticator{Verifier: auth.NewSupabaseVerifier(settings.Auth.SupabaseJWTSecret)}
		deps.Auth = handlers.NewAuthHandler(nil, nil, registry)
	default:
		fs := afero.NewOsFs()
		accountsSvc, err := accounts.NewService(fs, settings.DataDir)
		if err != nil {
			return err
		}
		sessionsSvc, err = sessions.NewService(fs, settings.DataDir, time.Duration(settings.Auth.SessionTTLHours)*time.Hour)
		if err != nil {
			return err
		}
		if len(accountsSvc.List()) == 0 {
			log.Printf("[auth] no accounts yet; create one with: reeltrack account create --username NAME --password PASS")
		}
		deps.Authenticator = api.SessionAuthenticator{Sessions: sessionsSvc, Accounts: accountsSvc}
		deps.Auth = handlers.NewAuthHandler(accountsSvc, sessionsSvc, registry)
		deps.PasswordLogin = true
	}

	router := utils.NewRouter(settings.Server.AllowedOrigins)
	mountRoutes(router, deps)

	srv := &http.Server{
		Addr:              settings.Server.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	p := pool.New().WithContext(ctx).WithCancelOnError()
	p.Go(func(ctx context.Context) error {
		log.Printf("[server] listening on %s (auth=%s)", srv.Addr, settings.Auth.Mode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	p.Go(func(ctx context.Context) error {
		<-ctx.Done()
		log.Printf("[server] shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if sessionsSvc != nil {
		p.Go(func(ctx context.Context) error {
			return sessionsSvc.Run(ctx, sessions.DefaultCleanupInterval, registry.Drop)
		})
	}

	return p.Wait()
}
