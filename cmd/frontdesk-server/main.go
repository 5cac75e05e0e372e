package main

import (
	"context"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/clinicdesk/frontdesk/internal/config"
	"github.com/clinicdesk/frontdesk/internal/domain/patient"
	"github.com/clinicdesk/frontdesk/internal/domain/scheduling"
	"github.com/clinicdesk/frontdesk/internal/domain/staff"
	"github.com/clinicdesk/frontdesk/internal/platform/apperr"
	"github.com/clinicdesk/frontdesk/internal/platform/auditstream"
	"github.com/clinicdesk/frontdesk/internal/platform/auth"
	"github.com/clinicdesk/frontdesk/internal/platform/db"
	"github.com/clinicdesk/frontdesk/internal/platform/idp"
	"github.com/clinicdesk/frontdesk/internal/platform/middleware"
	"github.com/clinicdesk/frontdesk/internal/platform/telemetry"
	"github.com/clinicdesk/frontdesk/migrations"
)

const version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "frontdesk-server",
		Short: "Clinic front-desk API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(staffCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(env string) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrationSource(dir string) fs.FS {
	if dir == "" {
		return migrations.FS
	}
	return os.DirFS(dir)
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, "", cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, migrationSource(dir))
			fmt.Printf("Running migrations on schema: %s\n", schema)

			count, err := migrator.Up(ctx, schema)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("schema", "public", "Target schema for migrations")
	upCmd.Flags().String("dir", "", "Read migrations from this directory instead of the embedded set")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, "", cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, migrationSource(dir)).Status(ctx, schema)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("Migration status for schema: %s\n", schema)
			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("schema", "public", "Target schema for migrations")
	statusCmd.Flags().String("dir", "", "Read migrations from this directory instead of the embedded set")
	cmd.AddCommand(statusCmd)

	return cmd
}

func staffCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "staff",
		Short: "Manage the staff directory",
	}

	bootstrapCmd := &cobra.Command{
		Use:   "bootstrap-admin",
		Short: "Record an existing identity-provider account as an admin",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, _ := cmd.Flags().GetString("id")
			email, _ := cmd.Flags().GetString("email")
			name, _ := cmd.Flags().GetString("name")
			if id == "" || email == "" {
				return fmt.Errorf("--id and --email are required")
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := newLogger(cfg.Env)

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, "", cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			svc := staff.NewService(staff.NewRepo(pool), idp.Disabled{}, cfg.InviteRedirectURL(), logger, nil)
			m, err := svc.Bootstrap(ctx, id, email, name)
			if err != nil {
				return err
			}
			fmt.Printf("Admin %s (%s) recorded.\n", m.Email, m.ID)
			return nil
		},
	}
	bootstrapCmd.Flags().String("id", "", "Identity-provider account id")
	bootstrapCmd.Flags().String("email", "", "Account email address")
	bootstrapCmd.Flags().String("name", "", "Display name")
	cmd.AddCommand(bootstrapCmd)

	return cmd
}

// deps are the process-wide collaborators the HTTP server is built from.
type deps struct {
	conn      db.Querier
	pinger    db.Pinger
	provider  staff.Provisioner
	metrics   *telemetry.Metrics
	recorders []middleware.AuditRecorder
}

// newServer wires middleware, services and routes.
func newServer(cfg *config.Config, d deps, logger zerolog.Logger) (*echo.Echo, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = apperr.HTTPErrorHandler(logger)

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders(!cfg.IsDev()))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete},
		AllowHeaders:     []string{"Authorization", "Content-Type", middleware.HeaderRequestID},
		AllowCredentials: true,
	}))
	e.Use(echomw.BodyLimit("1M"))
	if d.metrics != nil {
		e.Use(d.metrics.Middleware())
	}

	staffRepo := staff.NewRepo(d.conn)
	verifier := auth.NewVerifier(auth.VerifierConfig{
		Issuer:     cfg.AuthIssuer,
		Audience:   cfg.AuthAudience,
		JWKSURL:    cfg.AuthJWKSURL,
		SigningKey: []byte(cfg.AuthJWTSecret),
	})
	resolver := auth.NewResolver(verifier, staff.NewIdentityLoader(staffRepo), cfg.SessionCookie, logger)
	// audit wraps the resolver so rejected requests are recorded too
	e.Use(middleware.Audit(logger, d.recorders...))
	e.Use(resolver.Middleware())

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	e.GET("/health/db", db.HealthHandler(d.pinger))
	if d.metrics != nil {
		e.GET("/metrics", d.metrics.Handler())
	}

	api := e.Group("/api/v1")

	staffSvc := staff.NewService(staffRepo, d.provider, cfg.InviteRedirectURL(), logger, d.metrics)
	staff.NewHandler(staffSvc).RegisterRoutes(api)

	patientSvc := patient.NewService(patient.NewRepo(d.conn), logger, d.metrics)
	patient.NewHandler(patientSvc).RegisterRoutes(api)

	schedSvc := scheduling.NewService(scheduling.NewRepo(d.conn), patientSvc, loc, logger, d.metrics)
	scheduling.NewHandler(schedSvc).RegisterRoutes(api)

	return e, nil
}

func newProvider(cfg *config.Config, logger zerolog.Logger) staff.Provisioner {
	if cfg.IDPBaseURL == "" {
		logger.Warn().Msg("IDP_BASE_URL not set; staff invites and deletions will fail")
		return idp.Disabled{}
	}
	return idp.NewClient(cfg.IDPBaseURL, cfg.IDPClientID, cfg.IDPSecret, cfg.IDPScopes)
}

func runServer() error {
	logger := newLogger(os.Getenv("ENV"))

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, "", cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	d := deps{
		conn:     pool,
		pinger:   pool,
		provider: newProvider(cfg, logger),
	}

	if cfg.MetricsOn {
		d.metrics = telemetry.New()
		d.metrics.ObservePool(pool)
	}

	if cfg.RedisURL != "" {
		rdb, err := auditstream.Connect(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to audit stream")
		}
		defer rdb.Close()
		d.recorders = append(d.recorders, auditstream.NewRecorder(rdb, cfg.AuditStream))
		logger.Info().Str("stream", cfg.AuditStream).Msg("audit events mirrored to redis")
	}

	e, err := newServer(cfg, d, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build server")
	}

	addr := ":" + cfg.Port
	go func() {
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
