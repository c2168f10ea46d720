package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/quantumtracker/backend/internal/auth"
	"github.com/quantumtracker/backend/internal/config"
	"github.com/quantumtracker/backend/internal/database"
	"github.com/quantumtracker/backend/internal/logging"
	"github.com/quantumtracker/backend/internal/notifications"
	"github.com/quantumtracker/backend/internal/server"
	"github.com/quantumtracker/backend/internal/tickets"
	"github.com/quantumtracker/backend/internal/users"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "tracker-api",
		Short: "Bug tracker backend service",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	setupFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	flags := cmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "Path to configuration file")
	flags.String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	flags.String("database-path", defaults.GetString("database.path"), "SQLite database path")
	flags.String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	flags.String("signing-secret", "", "Session signing secret (overrides env)")
	flags.String("session-cookie-name", defaults.GetString("session.cookie_name"), "Session cookie name")
	flags.String("session-issuer", defaults.GetString("session.issuer"), "Session token issuer")
	flags.Int("session-ttl-minutes", defaults.GetInt("session.ttl_minutes"), "Session TTL in minutes")
	flags.Bool("secure-cookies", defaults.GetBool("session.secure_cookies"), "Mark the session cookie Secure")
	flags.Duration("notification-flush-interval", defaults.GetDuration("notifications.flush_interval"), "Interval between notification deliveries")
	flags.Int("notification-retention-limit", defaults.GetInt("notifications.retention_limit"), "Notifications kept per user (0 keeps all)")
	flags.StringSlice("allowed-origins", defaults.GetStringSlice("cors.allowed_origins"), "Origins allowed to call the API with credentials")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "session.signing_secret", "signing-secret")
	bindFlag(cmd, "session.cookie_name", "session-cookie-name")
	bindFlag(cmd, "session.issuer", "session-issuer")
	bindFlag(cmd, "session.ttl_minutes", "session-ttl-minutes")
	bindFlag(cmd, "session.secure_cookies", "secure-cookies")
	bindFlag(cmd, "notifications.flush_interval", "notification-flush-interval")
	bindFlag(cmd, "notifications.retention_limit", "notification-retention-limit")
	bindFlag(cmd, "cors.allowed_origins", "allowed-origins")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, err := database.OpenSQLite(appConfig.DatabasePath, logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	userService, err := users.NewService(users.ServiceConfig{
		Database:   db,
		Clock:      time.Now,
		IDProvider: users.NewObjectIDProvider(),
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	store, err := notifications.NewStore(notifications.StoreConfig{
		Database:       db,
		RetentionLimit: appConfig.NotificationRetentionLimit,
		Logger:         logger,
	})
	if err != nil {
		return err
	}
	registry := notifications.NewRegistry(logger)
	notificationService, err := notifications.NewService(notifications.ServiceConfig{
		Store:      store,
		Registry:   registry,
		Users:      userService,
		Clock:      time.Now,
		IDProvider: notifications.NewUUIDProvider(),
		SystemUser: users.IsSystemUser,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	ticketService, err := tickets.NewService(tickets.ServiceConfig{
		Database:   db,
		Users:      userService,
		Notifier:   notificationService,
		Clock:      time.Now,
		IDProvider: tickets.NewShortIDProvider(),
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	sessionIssuer, err := auth.NewSessionIssuer(auth.SessionIssuerConfig{
		SigningSecret: []byte(appConfig.SessionSigningSecret),
		Issuer:        appConfig.SessionIssuer,
		TTL:           appConfig.SessionTTL,
	})
	if err != nil {
		return err
	}
	sessionValidator, err := auth.NewSessionValidator(auth.SessionValidatorConfig{
		SigningSecret: []byte(appConfig.SessionSigningSecret),
		Issuer:        appConfig.SessionIssuer,
		CookieName:    appConfig.SessionCookieName,
	})
	if err != nil {
		return err
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Sessions:       sessionValidator,
		Issuer:         sessionIssuer,
		Users:          userService,
		Tickets:        ticketService,
		Notifications:  notificationService,
		Registry:       registry,
		AllowedOrigins: appConfig.AllowedOrigins,
		SecureCookies:  appConfig.SessionSecureCookies,
		Logger:         logger,
	})
	if err != nil {
		return err
	}

	scheduler, err := notifications.NewScheduler(notifications.SchedulerConfig{
		Registry: registry,
		Interval: appConfig.NotificationFlushInterval,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	scheduler.Start(signalCtx)
	defer scheduler.Stop()

	// Request contexts end with the signal context so open streams return.
	httpServer := &http.Server{
		Addr:    appConfig.HTTPAddress,
		Handler: handler,
		BaseContext: func(net.Listener) context.Context {
			return signalCtx
		},
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.String("address", appConfig.HTTPAddress),
			zap.Duration("flush_interval", appConfig.NotificationFlushInterval),
		)
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
