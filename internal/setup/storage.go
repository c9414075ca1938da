package setup

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kxrica/go-skyvault/internal/config"
	"github.com/kxrica/go-skyvault/internal/pkg/logger"
	"github.com/kxrica/go-skyvault/internal/pkg/storage"
)

// InitStorage 根据配置初始化存储后端并确保存储桶存在
func InitStorage(cfg *config.Config) storage.StorageService {
	svc, err := storage.NewStorageService(cfg)
	if err != nil {
		logger.Fatal("初始化存储服务失败", zap.Error(err))
	}
	logger.Info("存储服务已初始化", zap.String("type", cfg.Storage.Type))

	if err := ensureBucket(svc, bucketNameFor(cfg)); err != nil {
		logger.Fatal("初始化存储桶失败", zap.Error(err))
	}
	return svc
}

func bucketNameFor(cfg *config.Config) string {
	switch cfg.Storage.Type {
	case "minio":
		return cfg.MinIO.BucketName
	case "aliyun_oss":
		return cfg.AliyunOSS.BucketName
	default:
		return cfg.Storage.LocalBucketName
	}
}

// ensureBucket 检查并创建存储桶
// 为外部调用使用带超时的上下文
func ensureBucket(svc storage.StorageService, bucketName string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	exists, err := svc.IsBucketExist(ctx, bucketName)
	if err != nil {
		return fmt.Errorf("检查存储桶存在性失败: %w", err)
	}

	if !exists {
		logger.Info("存储桶不存在，尝试创建...", zap.String("bucketName", bucketName))
		if err := svc.MakeBucket(ctx, bucketName); err != nil {
			return fmt.Errorf("创建存储桶失败: %w", err)
		}
		logger.Info("存储桶创建成功", zap.String("bucketName", bucketName))
	} else {
		logger.Info("存储桶已存在", zap.String("bucketName", bucketName))
	}
	return nil
}
