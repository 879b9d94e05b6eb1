package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MarcoPoloResearchLab/tierlist/internal/chat"
	"github.com/MarcoPoloResearchLab/tierlist/internal/config"
	"github.com/MarcoPoloResearchLab/tierlist/internal/database"
	"github.com/MarcoPoloResearchLab/tierlist/internal/items"
	"github.com/MarcoPoloResearchLab/tierlist/internal/logging"
	"github.com/MarcoPoloResearchLab/tierlist/internal/server"
	"github.com/MarcoPoloResearchLab/tierlist/internal/uploads"
	"github.com/MarcoPoloResearchLab/tierlist/internal/users"
	"github.com/MarcoPoloResearchLab/tierlist/internal/votes"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "tierlist-api",
		Short: "Tier list board, votes and chat backend",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}
	rootCmd.AddCommand(&cobra.Command{
		Use:   "seed",
		Short: "Create demo users and items, then exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd.Context())
		},
	})

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
	flags.String("database-driver", defaults.GetString("database.driver"), "Database driver (sqlite, postgres)")
	flags.String("database-path", defaults.GetString("database.path"), "SQLite database path")
	flags.String("database-dsn", defaults.GetString("database.dsn"), "PostgreSQL DSN")
	flags.Bool("seed", defaults.GetBool("database.seed"), "Seed demo data on start")
	flags.String("uploads-dir", defaults.GetString("uploads.dir"), "Directory for uploaded images")
	flags.Int64("uploads-max-bytes", defaults.GetInt64("uploads.max_bytes"), "Largest accepted upload in bytes")
	flags.Bool("chat-sampler", defaults.GetBool("chat.sampler.enabled"), "Generate sample chat traffic")
	flags.Duration("chat-sampler-interval", defaults.GetDuration("chat.sampler.interval"), "Interval between sampled chat messages")
	flags.StringSlice("cors-origins", defaults.GetStringSlice("cors.allowed_origins"), "Allowed CORS origins")
	flags.String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	flags.String("log-format", defaults.GetString("log.format"), "Log format (json, console)")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.driver", "database-driver")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "database.dsn", "database-dsn")
	bindFlag(cmd, "database.seed", "seed")
	bindFlag(cmd, "uploads.dir", "uploads-dir")
	bindFlag(cmd, "uploads.max_bytes", "uploads-max-bytes")
	bindFlag(cmd, "chat.sampler.enabled", "chat-sampler")
	bindFlag(cmd, "chat.sampler.interval", "chat-sampler-interval")
	bindFlag(cmd, "cors.allowed_origins", "cors-origins")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "log.format", "log-format")
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

func openStore(appConfig config.AppConfig, logger *zap.Logger) (*gorm.DB, func(), error) {
	db, err := database.Open(database.Config{
		Driver: appConfig.DatabaseDriver,
		Path:   appConfig.DatabasePath,
		DSN:    appConfig.DatabaseDSN,
	}, logger)
	if err != nil {
		return nil, nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, err
	}
	return db, func() { _ = sqlDB.Close() }, nil
}

func runSeed(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}
	logger, err := logging.NewLogger(appConfig.LogLevel, appConfig.LogFormat)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, closeStore, err := openStore(appConfig, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	result, err := database.Seed(ctx, db, logger)
	if err != nil {
		return err
	}
	logger.Info("seed finished",
		zap.Int("users_created", result.UsersCreated),
		zap.Int("items_created", result.ItemsCreated))
	return nil
}

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel, appConfig.LogFormat)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, closeStore, err := openStore(appConfig, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	if appConfig.SeedOnStart {
		if _, err := database.Seed(ctx, db, logger); err != nil {
			return err
		}
	}

	itemService, err := items.NewService(items.ServiceConfig{Database: db, Logger: logger})
	if err != nil {
		return err
	}
	voteService, err := votes.NewService(votes.ServiceConfig{Database: db, Clock: time.Now, Logger: logger})
	if err != nil {
		return err
	}
	userService, err := users.NewService(users.ServiceConfig{Database: db, Logger: logger})
	if err != nil {
		return err
	}
	feed, err := chat.NewFeed(chat.FeedConfig{Database: db, Clock: time.Now, Logger: logger})
	if err != nil {
		return err
	}
	imageStore, err := uploads.NewStore(uploads.Config{
		Directory: appConfig.UploadsDir,
		MaxBytes:  appConfig.UploadsMaxBytes,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	var sampler *chat.Sampler
	if appConfig.SamplerEnabled {
		sampler, err = chat.NewSampler(chat.SamplerConfig{
			Feed:          feed,
			Users:         userService,
			Interval:      appConfig.SamplerInterval,
			BackfillCount: appConfig.SamplerBackfill,
			Logger:        logger,
		})
		if err != nil {
			return err
		}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	deps := server.Dependencies{
		Items:          itemService,
		Votes:          voteService,
		Chat:           feed,
		Users:          userService,
		Images:         imageStore,
		Metrics:        server.NewMetrics(registry),
		AllowedOrigins: appConfig.CORSAllowedOrigins,
		Logger:         logger,
	}
	if sampler != nil {
		deps.ChatBackfill = sampler
	}
	handler, err := server.NewHTTPHandler(deps)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              appConfig.HTTPAddress,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(signalCtx)
	group.Go(func() error {
		logger.Info("server starting", zap.String("address", appConfig.HTTPAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), appConfig.ShutdownTimeout)
		defer cancel()
		logger.Info("server shutting down")
		return httpServer.Shutdown(shutdownCtx)
	})
	if sampler != nil {
		group.Go(func() error {
			return sampler.Run(groupCtx)
		})
	}

	return group.Wait()
}
