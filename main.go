package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"fxstory/config"
	"fxstory/internal/pipeline"
	"fxstory/logger"
)

func main() {
	log := logger.New()

	// Load environment variables from .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	configPath := flag.String("config", config.DefaultConfigPath, "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		log.WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Error("Failed to configure logger")
		os.Exit(1)
	}
	defer log.Close()

	log.WithEnv("APP_ENV").WithFields(logger.Fields{
		"service": cfg.FXStory.Name,
		"version": cfg.FXStory.Version,
		"env":     config.AppEnvironment(),
	}).Info("starting fxstory")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	p, err := pipeline.New(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Error("Failed to build pipeline")
		log.Close()
		os.Exit(1)
	}

	report, err := p.Run(ctx)
	if err != nil {
		log.WithError(err).Error("Run failed")
		log.Close()
		os.Exit(1)
	}

	log.WithComponent("main").WithFields(logger.Fields{
		"run_id":    report.RunID,
		"artifacts": len(report.Artifacts),
	}).Info("fxstory finished")
}
