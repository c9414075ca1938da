package worker

import (
	"github.com/kxrica/go-skyvault/internal/config"
	"github.com/kxrica/go-skyvault/internal/pkg/logger"
	"github.com/kxrica/go-skyvault/internal/pkg/mq"
	"github.com/kxrica/go-skyvault/internal/pkg/storage"
	"github.com/kxrica/go-skyvault/internal/repositories"
)

// StartAllWorkers 启动应用中所有定义的后台 Worker
func StartAllWorkers(
	cfg *config.Config,
	mqClient *mq.RabbitMQClient,
	fileRepo repositories.FileRepository,
	storageService storage.StorageService,
) {
	// --- 启动缩略图生成 Worker ---
	thumbnailWorker := NewThumbnailWorker(mqClient, fileRepo, storageService, cfg)
	go thumbnailWorker.Start()

	// --- 在这里启动其他 Worker ---

	logger.Info("所有后台工作进程已启动。")
}
