package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/CampusPulseLab/pulse/backend/internal/auth"
	"github.com/CampusPulseLab/pulse/backend/internal/config"
	"github.com/CampusPulseLab/pulse/backend/internal/database"
	"github.com/CampusPulseLab/pulse/backend/internal/feed"
	"github.com/CampusPulseLab/pulse/backend/internal/logging"
	"github.com/CampusPulseLab/pulse/backend/internal/recommend"
	"github.com/CampusPulseLab/pulse/backend/internal/remote"
	"github.com/CampusPulseLab/pulse/backend/internal/server"
	"github.com/CampusPulseLab/pulse/backend/internal/store"
	"github.com/CampusPulseLab/pulse/backend/internal/users"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "pulse-api",
		Short: "Campus Pulse events backend service",
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
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path")
	cmd.PersistentFlags().Int("session-ttl-minutes", defaults.GetInt("session.ttl_minutes"), "Session token TTL in minutes")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("signing-secret", "", "Session signing secret (overrides env)")
	cmd.PersistentFlags().String("remote-base-url", defaults.GetString("remote.base_url"), "Managed backend base URL")
	cmd.PersistentFlags().String("remote-api-key", defaults.GetString("remote.api_key"), "Managed backend API key")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "session.ttl_minutes", "session-ttl-minutes")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "session.signing_secret", "signing-secret")
	bindFlag(cmd, "remote.base_url", "remote-base-url")
	bindFlag(cmd, "remote.api_key", "remote-api-key")
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

	kv, err := store.NewGormKV(db, func() int64 { return time.Now().UTC().Unix() })
	if err != nil {
		return err
	}
	dataStore, err := store.NewStore(store.StoreConfig{
		KV:         kv,
		Clock:      time.Now,
		IDProvider: store.NewUUIDProvider(),
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	recommender, err := recommend.NewService(recommend.ServiceConfig{
		Store:  dataStore,
		Clock:  time.Now,
		Logger: logger,
	})
	if err != nil {
		return err
	}

	identityService, err := users.NewService(users.ServiceConfig{
		Database: db,
		Clock:    time.Now,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	sessionIssuer := auth.NewSessionIssuer(auth.SessionIssuerConfig{
		SigningSecret: []byte(appConfig.SessionSigningKey),
		Issuer:        "pulse-auth",
		Audience:      "pulse-api",
		SessionTTL:    appConfig.SessionTTL,
	})

	var remoteDirectory server.RemoteDirectory
	if appConfig.RemoteBaseURL != "" {
		remoteClient, err := remote.NewClient(remote.ClientConfig{
			BaseURL: appConfig.RemoteBaseURL,
			APIKey:  appConfig.RemoteAPIKey,
			Logger:  logger,
		})
		if err != nil {
			return err
		}
		remoteDirectory = remoteClient
	} else {
		logger.Warn("remote base url not configured; sessions and catalog refresh disabled")
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Store:       dataStore,
		Tokens:      sessionIssuer,
		Identities:  identityService,
		Recommender: recommender,
		Remote:      remoteDirectory,
		Feed:        feed.NewDispatcher(),
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:    appConfig.HTTPAddress,
		Handler: handler,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("address", appConfig.HTTPAddress))
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
