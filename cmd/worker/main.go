package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/kxrica/go-skyvault/internal/config"
	"github.com/kxrica/go-skyvault/internal/pkg/cache"
	"github.com/kxrica/go-skyvault/internal/pkg/logger"
	"github.com/kxrica/go-skyvault/internal/pkg/mq"
	"github.com/kxrica/go-skyvault/internal/pkg/mq/worker"
	"github.com/kxrica/go-skyvault/internal/repositories"
	"github.com/kxrica/go-skyvault/internal/setup"
	"go.uber.org/zap"
)

// 独立的 Worker 进程,只消费后台任务队列,不承载 HTTP 流量
// 与 API 服务共用同一套配置与基础设施初始化
func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	if err := os.MkdirAll("logs", 0755); err != nil {
		logger.Fatal("Failed to create logs directory", zap.Error(err))
	}
	logger.InitLogger(cfg.Log.OutputPath, cfg.Log.ErrorPath, cfg.Log.Level)
	defer logger.Sync()

	setup.InitMySQL(&cfg.MySQL)
	defer setup.CloseMySQLDB()
	setup.InitRedis(cfg)
	defer setup.CloseRedis()
	storageService := setup.InitStorage(cfg)

	rabbitMQClient, err := mq.NewRabbitMQClient(cfg.RabbitMQ.URL)
	if err != nil {
		logger.Fatal("Failed to connect to RabbitMQ", zap.Error(err))
	}
	defer rabbitMQClient.Close()

	redisCache := cache.NewRedisCache(setup.RedisClientGlobal)
	fileRepo := repositories.NewFileRepository(setup.DB, redisCache)

	worker.StartAllWorkers(cfg, rabbitMQClient, fileRepo, storageService)

	stopChan := make(chan os.Signal, 1)
	signal.Notify(stopChan, syscall.SIGINT, syscall.SIGTERM)
	<-stopChan
	logger.Info("Worker shutting down...")
}
