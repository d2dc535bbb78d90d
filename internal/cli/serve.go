package cli

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/evcraddock/propdesk/internal/auth"
	"github.com/evcraddock/propdesk/internal/config"
	"github.com/evcraddock/propdesk/internal/db"
	"github.com/evcraddock/propdesk/internal/email"
	"github.com/evcraddock/propdesk/internal/jobs"
	"github.com/evcraddock/propdesk/internal/logging"
	"github.com/evcraddock/propdesk/internal/report"
	"github.com/evcraddock/propdesk/internal/web"
)

func newServeCmd() *cobra.Command {
	var (
		configFile string
		port       int
		dbPath     string
		devMode    bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long: `Start the propdesk REST API. Configuration comes from config.yaml,
.env and PD_* environment variables; flags override them.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if devMode {
				if err := os.Setenv("PD_DEV_MODE", "true"); err != nil {
					return err
				}
			}
			cfg, err := config.Load(configFile)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			if port > 0 {
				cfg.Port = port
			}
			if dbPath != "" {
				cfg.DatabasePath = dbPath
			}
			return runServe(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&configFile, "config", "", "config file (default: ./config.yaml or ~/.propdesk/config.yaml)")
	cmd.Flags().IntVar(&port, "port", 0, "port to listen on (default: server.port, 8080)")
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite database path (default: ~/.propdesk/propdesk.db)")
	cmd.Flags().BoolVar(&devMode, "dev", false, "development mode: debug logging, console email, generated jwt secret")

	return cmd
}

func runServe(ctx context.Context, cfg *config.Config) error {
	logging.Setup(cfg.DevMode)

	database, err := db.Open(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer closeDB(database)

	users := auth.NewUserStore(database)
	if cfg.Auth.AdminEmail != "" {
		if _, err := users.EnsureAdmin(cfg.Auth.AdminEmail, cfg.Auth.AdminPassword); err != nil {
			return fmt.Errorf("creating admin account: %w", err)
		}
	}
	authSvc, err := auth.NewFromConfig(users, cfg.Auth)
	if err != nil {
		return err
	}

	files, err := report.NewFileStore(cfg.FilesDir)
	if err != nil {
		return err
	}

	opts := web.Options{
		DB:             database,
		Auth:           authSvc,
		Files:          files,
		BaseURL:        cfg.BaseURL,
		CORSOrigins:    cfg.CORS,
		LoginPerMinute: cfg.Login.PerMinute,
	}
	if cfg.SMTP.IsConfigured() || cfg.DevMode {
		opts.Notifier = email.NewNotifier(cfg.SMTP, users, cfg.BaseURL, cfg.DevMode)
	}
	if wan, err := auth.NewWebAuthn(cfg.Auth); err != nil {
		slog.Warn("passkeys disabled", "error", err)
	} else {
		opts.WebAuthn = wan
	}

	srv, err := web.NewServer(opts)
	if err != nil {
		return err
	}

	sched, err := jobs.Start(
		jobs.ExpireRequests(srv.Requests(), cfg.Jobs.RequestExpiry),
		jobs.CleanupRefreshTokens(authSvc.Refreshes(), cfg.Jobs.RefreshCleanup),
		jobs.CleanupUploadTokens(srv.Uploads(), cfg.Jobs.UploadCleanup),
	)
	if err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		sched.Stop(stopCtx)
	}()

	return srv.ListenAndServe(ctx, cfg.Addr())
}

// closeDB closes the database, logging any error.
func closeDB(database *sql.DB) {
	if err := database.Close(); err != nil {
		slog.Warn("closing database", "error", err)
	}
}
