package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"

	"ccmart/internal/config"
	"ccmart/internal/infra/db"
	"ccmart/internal/infra/messaging"
	infraRepo "ccmart/internal/infra/repository"
	"ccmart/internal/logger"
	"ccmart/internal/usecase"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// 注文イベントを読んで通知を書くワーカー
func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadNotifier()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	zl, err := logger.New(cfg.IsDev())
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gormDB, err := db.Connect(cfg)
	if err != nil {
		zl.Fatal("db connect", zap.Error(err))
	}
	if err := db.Migrate(gormDB); err != nil {
		zl.Fatal("db migrate", zap.Error(err))
	}

	notificationUC := usecase.NewNotificationUsecase(infraRepo.NewNotificationGormRepository(gormDB), zl)
	consumer := messaging.NewOrderEventConsumer(cfg.KafkaBrokers, cfg.KafkaGroupID, cfg.KafkaTopic, cfg.NotifierWorkers, zl)

	if err := consumer.Run(ctx, notificationUC.HandleOrderEvent); err != nil && !errors.Is(err, context.Canceled) {
		zl.Fatal("notifier stopped", zap.Error(err))
	}
	zl.Info("notifier stopped")
}
