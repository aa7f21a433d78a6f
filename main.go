package main

import (
	"context"
	"os"

	"github.com/gbjbuzz/service-esign/config"
	"github.com/gbjbuzz/service-esign/service"
	"github.com/gbjbuzz/service-esign/service/business"
	"github.com/gbjbuzz/service-esign/service/mail"
	"github.com/gbjbuzz/service-esign/service/models"
	"github.com/gbjbuzz/service-esign/service/queue"
	"github.com/gbjbuzz/service-esign/service/repository"
	"github.com/gbjbuzz/service-esign/service/storage"
	"github.com/sirupsen/logrus"
	"gocloud.dev/pubsub"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("main -- could not load configuration %v", err)
	}

	logger := logrus.New()
	if cfg.LogFormatJSON {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	log := logger.WithField("service", "esign")

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		log.Fatalf("main -- could not connect to database %v", err)
	}

	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		err = db.AutoMigrate(models.Migrations()...)
		if err != nil {
			log.Fatalf("main -- could not run migrations %v", err)
		}
		log.Info("main -- migrations applied")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	provider := storage.GetStorageProvider(cfg)
	err = provider.Setup(ctx)
	if err != nil {
		log.Fatalf("main -- could not set up storage provider %s %v", provider.Name(), err)
	}

	topic, err := pubsub.OpenTopic(ctx, cfg.QueueMailURL)
	if err != nil {
		log.Fatalf("main -- could not open mail topic %v", err)
	}
	defer topic.Shutdown(ctx)

	subscription, err := pubsub.OpenSubscription(ctx, cfg.QueueMailURL)
	if err != nil {
		log.Fatalf("main -- could not open mail subscription %v", err)
	}
	defer subscription.Shutdown(ctx)

	mailHandler := queue.NewMailQueueHandler(
		mail.NewClient(cfg.ResendEndpoint, cfg.ResendAPIKey),
		log.WithField("component", "mail_queue"))
	go mailHandler.Run(ctx, subscription)

	engine := business.NewEsignService(
		repository.NewFileRepository(db),
		repository.NewSignatureRepository(db),
		business.NewIdentityResolver(db),
		provider,
		queue.NewMailPublisher(topic),
		cfg.MailFrom,
		log,
	)

	router := service.NewRouter(engine, log)

	log.Infof("main -- starting esign service on port %s", cfg.ServerPort)
	service.RunServer(cfg.ServerPort, router, log)

	sqlDB, err := db.DB()
	if err == nil {
		_ = sqlDB.Close()
	}
}
