package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"ccmart/internal/config"
	"ccmart/internal/handler"
	"ccmart/internal/infra/cache"
	"ccmart/internal/infra/db"
	"ccmart/internal/infra/messaging"
	infraRepo "ccmart/internal/infra/repository"
	"ccmart/internal/infra/token"
	"ccmart/internal/logger"
	"ccmart/internal/server"
	"ccmart/internal/usecase"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	//.envは無くてもよい
	_ = godotenv.Load()

	cfg, err := config.LoadAPI()
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

	if err := run(ctx, cfg, zl); err != nil {
		zl.Fatal("api stopped", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config.Config, zl *zap.Logger) error {
	//DB接続
	gormDB, err := db.Connect(cfg)
	if err != nil {
		return err
	}
	if err := db.Migrate(gormDB); err != nil {
		return err
	}

	//Repository（GORM実装）生成
	userRepo := infraRepo.NewUserGormRepository(gormDB)
	categoryRepo := infraRepo.NewCategoryGormRepository(gormDB)
	productRepo := infraRepo.NewProductGormRepository(gormDB)
	cartRepo := infraRepo.NewCartGormRepository(gormDB)
	notificationRepo := infraRepo.NewNotificationGormRepository(gormDB)
	auditRepo := infraRepo.NewAuditLogGormRepository(gormDB)
	txm := infraRepo.NewTxManagerGorm(gormDB)

	//Redis（任意）。落ちていたらDBの一意制約だけで守る
	var idem usecase.IdempotencyLock
	if cfg.RedisAddr != "" {
		rdb, err := cache.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, zl)
		if err != nil {
			zl.Warn("redis disabled", zap.Error(err))
		} else {
			defer rdb.Close()
			idem = cache.NewIdempotencyLock(rdb)
		}
	}

	notificationUC := usecase.NewNotificationUsecase(notificationRepo, zl)

	//Kafkaがあればトピックへ、無ければ通知を直接書く
	var events usecase.OrderEventPublisher = notificationUC
	if len(cfg.KafkaBrokers) > 0 {
		producer := messaging.NewOrderEventProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer producer.Close()
		events = producer
	}

	issuer, err := token.NewJWTIssuer(cfg.JWTSecret, cfg.JWTTTL)
	if err != nil {
		return err
	}
	hasher := usecase.NewBcryptPasswordHasher(12)

	//Usecase生成
	authUC := usecase.NewAuthUsecase(userRepo, hasher, issuer, zl)
	categoryUC := usecase.NewCategoryUsecase(categoryRepo, productRepo, zl)
	productUC := usecase.NewProductUsecase(productRepo, categoryRepo, txm, zl)
	cartUC := usecase.NewCartUsecase(cartRepo, productRepo, zl)
	orderUC := usecase.NewOrderUsecase(txm, usecase.NewOrderNumberGenerator(), events, idem, zl)
	adminOrderUC := usecase.NewAdminOrderUsecase(txm, events, zl)
	adminUserUC := usecase.NewAdminUserUsecase(userRepo, auditRepo, zl)
	auditUC := usecase.NewAuditLogUsecase(auditRepo, zl)

	//Handler生成
	guards := handler.NewGuards(issuer, userRepo)
	srv := server.New(cfg, zl, guards,
		handler.NewProductHandler(productUC),
		handler.NewAuthHandler(authUC),
		handler.NewCategoryHandler(categoryUC),
		handler.NewAdminProductHandler(productUC),
		handler.NewCartHandler(cartUC),
		handler.NewOrderHandler(orderUC),
		handler.NewAdminOrderHandler(adminOrderUC),
		handler.NewAdminUserHandler(adminUserUC),
		handler.NewNotificationHandler(notificationUC),
		handler.NewAuditLogHandler(auditUC),
	)

	//Server起動
	return srv.Start(ctx)
}
