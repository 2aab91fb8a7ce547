package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"clinic/backend/internal/config"
	"clinic/backend/internal/handler"
	"clinic/backend/internal/logger"
	"clinic/backend/internal/model"
	"clinic/backend/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 30 * time.Second

func main() {
	var envFile string
	rootCmd := &cobra.Command{
		Use:           "clinic",
		Short:         "Clinic management backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "optional .env file to load")

	rootCmd.AddCommand(serveCmd(&envFile))
	rootCmd.AddCommand(migrateCmd(&envFile))
	rootCmd.AddCommand(cleanupCmd(&envFile))
	rootCmd.AddCommand(seedAdminCmd(&envFile))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

type app struct {
	cfg *config.Config
	log zerolog.Logger
	db  *service.DB
}

func setup(ctx context.Context, envFile string) (*app, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg.IsDev())

	db, err := service.Open(ctx, cfg.DBDriver, cfg.DatabaseURL, service.PoolConfig{
		MaxOpenConns: cfg.DBMaxOpenConns,
		MaxIdleConns: cfg.DBMaxIdleConns,
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("driver", cfg.DBDriver).Msg("connected to database")
	return &app{cfg: cfg, log: log, db: db}, nil
}

func (a *app) authService() *service.AuthService {
	return service.NewAuthService(a.db, service.AuthConfig{
		Secret:        []byte(a.cfg.JWTSecret),
		TTL:           a.cfg.JWTTTL,
		AdminEmail:    a.cfg.AdminEmail,
		AdminRole:     a.cfg.AdminRole,
		AdminPassword: a.cfg.AdminPassword,
	}, a.log)
}

func (a *app) gateway() *service.Gateway {
	return service.NewGateway(a.db, service.AdminIdentity{Email: a.cfg.AdminEmail, Role: a.cfg.AdminRole}, a.log)
}

func serveCmd(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Migrate the database and start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := setup(ctx, *envFile)
			if err != nil {
				return err
			}
			defer a.db.Close()
			return a.serve(ctx)
		},
	}
}

func (a *app) serve(ctx context.Context) error {
	if err := service.Migrate(ctx, a.db, a.log); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	auth := a.authService()
	if _, err := auth.SeedAdmin(ctx); err != nil {
		return err
	}

	notifier := service.NewNotifier(a.db, service.NotifierConfig{
		Clinic: service.ClinicInfo{
			Name:    a.cfg.Clinic.Name,
			Phone:   a.cfg.Clinic.Phone,
			Address: a.cfg.Clinic.Address,
		},
		EnvEmail: model.EmailSettings{
			Enabled:     a.cfg.SMTP.Enabled(),
			Service:     "smtp",
			Host:        a.cfg.SMTP.Host,
			Port:        a.cfg.SMTP.Port,
			Secure:      a.cfg.SMTP.Port == 465,
			Username:    a.cfg.SMTP.Username,
			Password:    a.cfg.SMTP.Password,
			FromName:    a.cfg.Clinic.Name,
			FromAddress: a.cfg.SMTP.From,
		},
		ChannelLatency: time.Second,
	}, a.log)
	defer notifier.Stop()

	if !a.cfg.IsDev() {
		gin.SetMode(gin.ReleaseMode)
	}
	bookings := service.NewBookingService(a.db, notifier, a.log)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := bookings.Wait(ctx); err != nil {
			a.log.Warn().Err(err).Msg("booking notifications still running at exit")
		}
	}()

	h := handler.New(handler.Services{
		DB:            a.gateway(),
		Pinger:        a.db,
		Auth:          auth,
		Bookings:      bookings,
		Billing:       service.NewBillingService(a.db, a.log),
		Notifications: notifier,
		Analysis:      service.NewAnalysisService(a.db, a.log),
	}, a.log)

	srv := &http.Server{
		Addr:              ":" + a.cfg.Port,
		Handler:           h.NewRouter(handler.RouterConfig{AdminRole: a.cfg.AdminRole, CORSOrigins: a.cfg.CORSOrigins}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info().Str("addr", srv.Addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	a.log.Info().Msg("server stopped")
	return nil
}

func migrateCmd(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create missing tables and seed the service catalogue",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd.Context(), *envFile)
			if err != nil {
				return err
			}
			defer a.db.Close()

			if err := service.Migrate(cmd.Context(), a.db, a.log); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Println("Schema is up to date.")
			return nil
		},
	}
}

func cleanupCmd(envFile *string) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete all clinical, billing and notification data, keeping the admin account",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("cleanup is destructive, re-run with --yes to confirm")
			}
			a, err := setup(cmd.Context(), *envFile)
			if err != nil {
				return err
			}
			defer a.db.Close()

			res, err := a.gateway().CleanupData(cmd.Context())
			if err != nil {
				return fmt.Errorf("cleanup failed: %w", err)
			}
			fmt.Printf("%-24s %s\n", "TABLE", "DELETED")
			for _, c := range res.Deleted {
				fmt.Printf("%-24s %d\n", c.Table, c.Count)
			}
			fmt.Printf("\nRemaining users: %d (admin %s, id %d)\n", res.RemainingUsers, res.AdminUser.Email, res.AdminUser.ID)
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the cleanup")
	return cmd
}

func seedAdminCmd(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "seed-admin",
		Short: "Create the default admin account when no users exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd.Context(), *envFile)
			if err != nil {
				return err
			}
			defer a.db.Close()

			created, err := a.authService().SeedAdmin(cmd.Context())
			if err != nil {
				return err
			}
			if created {
				fmt.Printf("Created admin account %s.\n", a.cfg.AdminEmail)
			} else {
				fmt.Println("Users already exist, nothing to do.")
			}
			return nil
		},
	}
}
