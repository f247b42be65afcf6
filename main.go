package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/joho/godotenv"

	"retailflow/config"
	"retailflow/logger"
	"retailflow/pipeline"
	"retailflow/warehouse"
)

func main() {
	log := logger.GetLogger()

	// Load environment variables from .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	configPath := flag.String("config", "config/config.yml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Error("Failed to configure logger")
		os.Exit(1)
	}

	log.WithFields(logger.Fields{
		"service":     cfg.Retailflow.Name,
		"version":     cfg.Retailflow.Version,
		"environment": config.AppEnvironment(),
	}).Info("starting retailflow")

	if cfg.Logging.CloudWatch.Enabled {
		logger.InitCloudWatch(cfg.Logging.CloudWatch.Region, cfg.Logging.CloudWatch.Namespace)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.StartReport(ctx, log, 30*time.Second)

	pool, err := warehouse.Connect(ctx, cfg.Database)
	if err != nil {
		log.WithError(err).Error("Failed to connect to warehouse")
		os.Exit(1)
	}
	defer pool.Close()

	p, err := pipeline.New(cfg, pool)
	if err != nil {
		log.WithError(err).Error("Failed to build pipeline")
		os.Exit(1)
	}

	stats := p.Run(ctx)
	if len(stats.Errors) > 0 {
		os.Exit(1)
	}
}
