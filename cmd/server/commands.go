package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"booking-service/internal/app"
	"booking-service/internal/config"
	"booking-service/internal/server"
	"booking-service/migrations"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "booking-service",
		Short:         "Availability and booking API with calendar sync",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd(), newMigrateCmd(), newVersionCmd())
	return root
}

func newServeCmd() *cobra.Command {
	var migrateUp bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			logger := app.NewLogger(cfg.App.Env)
			defer logger.Sync()

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			pool, err := app.OpenPool(ctx, cfg.DB.URL, cfg.DB.MaxConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			if migrateUp {
				if err := migrate(ctx, pool, logger, false); err != nil {
					return err
				}
			}

			store := app.NewPGStore(pool)
			opts := []app.CoordinatorOption{app.WithSyncTimeout(cfg.Calendar.SyncTimeout.Duration())}

			if cfg.Redis.URL != "" {
				rdb, err := app.NewRedisClient(ctx, cfg.Redis.URL)
				if err != nil {
					return err
				}
				defer rdb.Close()
				opts = append(opts, app.WithSlotLocker(app.NewRedisLocker(rdb, cfg.Redis.LockTTL.Duration())))
				logger.Info("redis slot lock enabled")
			}

			if cfg.Calendar.Enabled() {
				opts = append(opts, app.WithCalendarSync(app.NewGoogleCalendarSync(app.GoogleCalendarConfig{
					ClientID:     cfg.Calendar.ClientID,
					ClientSecret: cfg.Calendar.ClientSecret,
					RedirectURL:  cfg.Calendar.RedirectURL,
					CalendarID:   cfg.Calendar.CalendarID,
				}, store, logger)))
				logger.Info("google calendar sync enabled", zap.String("calendar_id", cfg.Calendar.CalendarID))
			} else {
				logger.Warn("google calendar not configured, bookings will not be synced")
			}

			if cfg.App.IsProduction() {
				gin.SetMode(gin.ReleaseMode)
			}

			a := &app.App{
				Resolver: app.NewAvailabilityResolver(store, app.SystemClock, logger),
				Bookings: app.NewBookingCoordinator(store, app.SystemClock, logger, opts...),
				Health:   store,
				Logger:   logger,
			}

			logger.Info("starting booking service",
				zap.String("env", cfg.App.Env),
				zap.String("version", Version))

			return server.Run(ctx, app.NewRouter(a, cfg.HTTP.Origins()), server.Options{
				Port:            cfg.HTTP.Port,
				ReadTimeout:     cfg.HTTP.ReadTimeout.Duration(),
				WriteTimeout:    cfg.HTTP.WriteTimeout.Duration(),
				IdleTimeout:     cfg.HTTP.IdleTimeout.Duration(),
				ShutdownTimeout: cfg.HTTP.ShutdownTimeout.Duration(),
			}, logger)
		},
	}

	cmd.Flags().BoolVar(&migrateUp, "migrate", true, "run database migrations on startup")
	return cmd
}

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:       "migrate [up|status]",
		Short:     "Apply or inspect database migrations",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"up", "status"},
		RunE: func(cmd *cobra.Command, args []string) error {
			action := "up"
			if len(args) == 1 {
				action = args[0]
			}
			if action != "up" && action != "status" {
				return fmt.Errorf("unknown migrate action %q", action)
			}

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			logger := app.NewLogger(cfg.App.Env)
			defer logger.Sync()

			ctx := cmd.Context()
			pool, err := app.OpenPool(ctx, cfg.DB.URL, cfg.DB.MaxConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			return migrate(ctx, pool, logger, action == "status")
		},
	}
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "booking-service %s (%s)\n", Version, CommitSHA)
		},
	}
}

func migrate(ctx context.Context, pool *pgxpool.Pool, logger *zap.Logger, statusOnly bool) error {
	m, err := app.NewMigrator(pool, migrations.FS, logger)
	if err != nil {
		return err
	}
	defer m.Close()

	if statusOnly {
		return m.Status(ctx)
	}
	return m.Up(ctx)
}
