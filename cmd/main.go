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

	"livesignal/backend/internal/analytics"
	"livesignal/backend/internal/api/handler"
	"livesignal/backend/internal/config"
	"livesignal/backend/internal/database"
	"livesignal/backend/internal/janus"
	"livesignal/backend/internal/livehub"
	"livesignal/backend/internal/livestream"
	"livesignal/backend/internal/registry"
	"livesignal/backend/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const shutdownTimeout = 10 * time.Second

func main() {
	root := &cobra.Command{
		Use:          "livesignal",
		Short:        "Livestream signaling control plane",
		SilenceUsage: true,
		RunE:         func(cmd *cobra.Command, _ []string) error { return serve(cmd.Context()) },
	}
	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the signaling server (default)",
			RunE:  func(cmd *cobra.Command, _ []string) error { return serve(cmd.Context()) },
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Create the database if needed and migrate the schema",
			RunE:  func(*cobra.Command, []string) error { return migrate() },
		},
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := root.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) *zap.Logger {
	var (
		log *zap.Logger
		err error
	)
	if cfg.IsDevelopment() {
		log, err = zap.NewDevelopment()
	} else {
		log, err = zap.NewProduction()
	}
	if err != nil {
		return zap.NewNop()
	}
	return log
}

func loadConfig() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	return cfg, newLogger(cfg), nil
}

func setupDatabase(cfg *config.Config, log *zap.Logger) (*gorm.DB, error) {
	if err := database.EnsureDatabase(cfg.MaintenanceDSN(), cfg.DB.Name, log); err != nil {
		// managed databases often refuse connections to "postgres"
		log.Warn("could not ensure database exists", zap.Error(err))
	}
	db, err := database.Open(cfg.DSN())
	if err != nil {
		return nil, err
	}
	if err := database.AutoMigrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

func migrate() error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer log.Sync()

	if _, err := setupDatabase(cfg, log); err != nil {
		log.Error("migration failed", zap.Error(err))
		return err
	}
	log.Info("migrations complete")
	return nil
}

func serve(ctx context.Context) error {
	cfg, log, err := loadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	defer log.Sync()
	log.Info("starting livesignal", zap.String("env", cfg.AppEnv), zap.String("addr", cfg.HTTPAddr))

	db, err := setupDatabase(cfg, log)
	if err != nil {
		log.Error("database setup failed", zap.Error(err))
		return err
	}
	rdb, err := database.OpenRedis(ctx, cfg.RedisAddr, cfg.RedisPassword)
	if err != nil {
		log.Error("redis setup failed", zap.Error(err))
		return err
	}
	if rdb == nil {
		log.Warn("REDIS_ADDR is empty, live markers and the event mirror are disabled")
	} else {
		defer rdb.Close()
	}
	store := storage.NewStorageService(db, rdb)
	log.Info("database and redis connections established, migrations complete")

	gateway, err := janus.Dial(ctx, cfg.JanusURL, janus.Options{Timeout: cfg.GatewayTimeout}, log)
	if err != nil {
		log.Error("media gateway unreachable", zap.String("url", cfg.JanusURL), zap.Error(err))
		return err
	}
	defer gateway.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	activity := analytics.New(store, cfg.ActivityFlush, log)
	activityDone := make(chan struct{})
	go func() {
		defer close(activityDone)
		activity.Run(ctx)
	}()

	hub := livehub.NewManager(store, log)
	mirrorDone := make(chan struct{})
	go func() {
		defer close(mirrorDone)
		hub.Run(ctx)
	}()
	svc := livestream.NewService(gateway, registry.New(), hub, activity, store, livestream.Options{
		ViewerBoost:    cfg.ViewerBoost,
		CleanupTimeout: cfg.GatewayTimeout,
	}, log)

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(log))
	handler.NewHandler(svc, activity, cfg.JWTSecret, log).Register(r)

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	serveErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("shutdown requested")
	case <-gateway.Done():
		// every room depends on the gateway session; restart and let clients reconnect
		runErr = errors.New("media gateway connection lost")
		log.Error("media gateway connection lost, shutting down")
	case err := <-serveErr:
		runErr = err
		log.Error("http server failed", zap.Error(err))
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown incomplete", zap.Error(err))
	}

	cancel()
	<-activityDone
	<-mirrorDone
	log.Info("livesignal stopped")
	return runErr
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	log = log.Named("http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}
