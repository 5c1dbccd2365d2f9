package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"git.sr.ht/~jakintosh/quizauth/internal/api"
	"git.sr.ht/~jakintosh/quizauth/internal/config"
	"git.sr.ht/~jakintosh/quizauth/internal/database"
	"git.sr.ht/~jakintosh/quizauth/internal/federation"
	"git.sr.ht/~jakintosh/quizauth/internal/service"
	"git.sr.ht/~jakintosh/quizauth/pkg/identity"
	"git.sr.ht/~jakintosh/quizauth/pkg/tokens"
)

const shutdownTimeout = 10 * time.Second

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: quizauth [-config FILE] <command> [args]")
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  serve             Start the auth server (default)")
	fmt.Fprintln(os.Stderr, "  promote <email>   Grant the admin role")
	fmt.Fprintln(os.Stderr, "  demote <email>    Revoke the admin role")
	fmt.Fprintln(os.Stderr, "  revoke <email>    Log an account out everywhere")
	fmt.Fprintln(os.Stderr)
	flag.PrintDefaults()
}

func main() {
	configPath := flag.String("config", os.Getenv("QUIZAUTH_CONFIG"), "path to YAML config file")
	flag.Usage = usage
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	logger := cfg.Logging.NewLogger(os.Stderr)
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	args := flag.Args()
	command := "serve"
	if len(args) > 0 {
		command, args = args[0], args[1:]
	}

	switch command {
	case "serve":
		err = runServe(ctx, cfg, logger)
	case "promote":
		err = runSetRole(ctx, cfg, logger, args, identity.RoleAdmin)
	case "demote":
		err = runSetRole(ctx, cfg, logger, args, identity.RoleUser)
	case "revoke":
		err = runRevoke(ctx, cfg, logger, args)
	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		logger.Error("command failed", "command", command, "error", err)
		os.Exit(1)
	}
}

// components is everything a command needs, built from one config.
type components struct {
	db      *database.SQLiteStore
	service *service.Service
}

func build(
	cfg *config.Config,
	logger *slog.Logger,
) (
	*components,
	error,
) {
	db, err := database.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	signingKey, err := tokens.DeriveSigningKey([]byte(cfg.Auth.JWTSecret))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("deriving signing key: %w", err)
	}
	issuer, validator := tokens.InitServer(signingKey, cfg.Auth.Issuer)

	google, err := federation.NewGoogle(federation.Config{
		ClientID:     cfg.Google.ClientID,
		ClientSecret: cfg.Google.ClientSecret,
		RedirectURL:  cfg.Google.RedirectURI,
		Timeout:      cfg.Google.Timeout,
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("configuring google: %w", err)
	}

	svc := service.New(
		db.IdentityStore(),
		db.RefreshStore(),
		google,
		issuer,
		validator,
		service.Options{
			AccessLifetime:  cfg.Auth.AccessTTL,
			RefreshLifetime: cfg.Auth.RefreshTTL,
			StateLifetime:   cfg.Auth.StateTTL,
			Logger:          logger,
		},
	)
	return &components{db: db, service: svc}, nil
}

func runServe(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
) error {
	c, err := build(cfg, logger)
	if err != nil {
		return err
	}
	defer c.db.Close()

	a := api.New(c.service, api.Options{
		FrontendURL: cfg.Server.FrontendURL,
		Cookies: service.CookiePolicy{
			Domain: cfg.Server.CookieDomain,
			Secure: cfg.Secure(),
		},
		Logger: logger,
	})
	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           a.Handler(a.Router()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("starting quizauth",
		"addr", server.Addr,
		"environment", cfg.Environment,
		"frontend", cfg.Server.FrontendURL,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return c.service.RunMaintenance(gctx, cfg.Auth.Maintenance)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func runSetRole(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
	args []string,
	role identity.Role,
) error {
	if len(args) != 1 {
		return fmt.Errorf("expected exactly one email argument")
	}
	c, err := build(cfg, logger)
	if err != nil {
		return err
	}
	defer c.db.Close()

	user, err := c.service.SetRoleByEmail(ctx, args[0], role)
	if err != nil {
		return err
	}
	fmt.Printf("%s is now %s (takes effect at next refresh)\n", user.Email, user.Role)
	return nil
}

func runRevoke(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
	args []string,
) error {
	if len(args) != 1 {
		return fmt.Errorf("expected exactly one email argument")
	}
	c, err := build(cfg, logger)
	if err != nil {
		return err
	}
	defer c.db.Close()

	revoked, err := c.service.RevokeAllByEmail(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Printf("revoked %d refresh tokens for %s\n", revoked, args[0])
	return nil
}
