package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jobs/dedup/internal/api"
	"github.com/jobs/dedup/internal/dedup"
	"github.com/jobs/dedup/internal/runner"
	"github.com/jobs/dedup/internal/storage"
	"github.com/jobs/dedup/internal/store"
	"github.com/jobs/dedup/pkg/config"
	"github.com/jobs/dedup/pkg/logger"
	"github.com/yitter/idgenerator-go/idgen"
	"go.uber.org/zap"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "configs/config.yaml", "path to config file")
	flag.Parse()

	// snowflake id generator for job handles
	options := idgen.NewIdGeneratorOptions(1)
	options.WorkerIdBitLength = 6
	idgen.SetIdGenerator(options)

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zapLogger, err := logger.New(cfg.Log.Level, cfg.Log.Format, cfg.Log.Output)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("starting dedup scheduler",
		zap.String("label", cfg.Queue.DiagnosticLabel))

	st, err := storage.New(storage.Config{
		Driver:                cfg.Database.Driver,
		Host:                  cfg.Database.Host,
		Port:                  cfg.Database.Port,
		Database:              cfg.Database.Database,
		User:                  cfg.Database.User,
		Password:              cfg.Database.Password,
		Path:                  cfg.Database.Path,
		MaxConnections:        cfg.Database.MaxConnections,
		MaxIdleConnections:    cfg.Database.MaxIdleConnections,
		ConnectionMaxLifetime: cfg.Database.ConnectionMaxLifetime,
	})
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer st.Close()

	jobStore := store.NewGormStore(st, zapLogger)

	queueCfg := dedup.NewConfig()
	queueCfg.Configure(cfg.Queue.NamePrefix, cfg.Queue.DefaultGroup, cfg.Queue.DiagnosticLabel)
	scheduler := dedup.New(queueCfg, jobStore, zapLogger)

	if err := scheduler.Ready(context.Background()); err != nil {
		zapLogger.Fatal("Job store not ready", zap.Error(err))
	}

	var jobRunner *runner.Runner
	if cfg.Runner.Enabled {
		jobRunner = runner.New(jobStore, cfg.Runner, zapLogger)
		jobRunner.Start()
	}

	server := api.NewServer(scheduler, zapLogger)
	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.IP, cfg.Server.Port),
		Handler:      server.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		zapLogger.Info("http server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("http server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		zapLogger.Error("http server shutdown failed", zap.Error(err))
	}

	if jobRunner != nil {
		jobRunner.Stop()
	}
}
