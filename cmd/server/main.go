package main

import (
	"github.com/sirupsen/logrus"

	"github.com/EbinDavis252/Aqua-risk/internal/api"
	"github.com/EbinDavis252/Aqua-risk/internal/config"
	"github.com/EbinDavis252/Aqua-risk/internal/events"
	"github.com/EbinDavis252/Aqua-risk/internal/model"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("load config: %v", err)
	}
	cfg.ConfigureLogging()

	models, err := model.LoadModels(cfg.FinancialModel, cfg.TechnicalModel)
	if err != nil {
		logrus.Fatalf("load models: %v", err)
	}

	var publisher events.Publisher = events.Noop{}
	if cfg.EventsEnabled() {
		kafka, err := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			logrus.Fatalf("configure kafka: %v", err)
		}
		publisher = kafka
		logrus.WithFields(logrus.Fields{
			"brokers": cfg.KafkaBrokers,
			"topic":   cfg.KafkaTopic,
		}).Info("assessment events enabled")
	}
	defer publisher.Close()

	server, err := api.NewServer(api.Config{
		DBPath:         cfg.DBPath,
		SilentDB:       cfg.SilentDB,
		AllowedOrigins: cfg.AllowedOrigins,
		Sequential:     cfg.Sequential,
		Models:         models,
		Publisher:      publisher,
	})
	if err != nil {
		logrus.Fatalf("create server: %v", err)
	}
	defer server.Close()

	router, err := server.Router()
	if err != nil {
		logrus.Fatalf("configure router: %v", err)
	}

	logrus.Infof("starting aqua-risk on :%s", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		logrus.Fatalf("server exited: %v", err)
	}
}
