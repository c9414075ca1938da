package storage

import (
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"time"

	"github.com/kxrica/go-skyvault/internal/config"
	"github.com/kxrica/go-skyvault/internal/pkg/logger"
	"go.uber.org/zap"
)

// LocalStorageService 基于本地磁盘的存储实现,主要用于开发和单机部署
// 目录结构: basePath/bucketName/objectName
type LocalStorageService struct {
	basePath string
	cfg      *config.StorageConfig
}

func NewLocalStorageService(cfg *config.StorageConfig) (*LocalStorageService, error) {
	if cfg.LocalBasePath == "" {
		return nil, fmt.Errorf("本地存储需要配置 local_base_path")
	}
	if err := os.MkdirAll(cfg.LocalBasePath, 0o755); err != nil {
		return nil, fmt.Errorf("创建本地存储根目录失败: %w", err)
	}
	logger.Info("本地存储初始化成功", zap.String("basePath", cfg.LocalBasePath))
	return &LocalStorageService{
		basePath: cfg.LocalBasePath,
		cfg:      cfg,
	}, nil
}

func (s *LocalStorageService) objectPath(bucketName, objectName string) string {
	return filepath.Join(s.basePath, bucketName, filepath.FromSlash(objectName))
}

func (s *LocalStorageService) PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, contentType string) (PutObjectResult, error) {
	dst := s.objectPath(bucketName, objectName)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return PutObjectResult{}, fmt.Errorf("创建本地对象目录失败: %w", err)
	}

	f, err := os.Create(dst)
	if err != nil {
		return PutObjectResult{}, fmt.Errorf("创建本地文件失败: %w", err)
	}
	defer f.Close()

	written, err := io.Copy(f, reader)
	if err != nil {
		os.Remove(dst) // 写失败时不留半截文件
		return PutObjectResult{}, fmt.Errorf("写入本地文件失败: %w", err)
	}

	return PutObjectResult{
		Bucket: bucketName,
		Key:    objectName,
		Size:   written,
	}, nil
}

func (s *LocalStorageService) GetObject(ctx context.Context, bucketName, objectName string) (GetObjectResult, error) {
	path := s.objectPath(bucketName, objectName)
	f, err := os.Open(path)
	if err != nil {
		return GetObjectResult{}, fmt.Errorf("打开本地文件失败: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return GetObjectResult{}, fmt.Errorf("获取本地文件信息失败: %w", err)
	}

	return GetObjectResult{
		Reader:   f,
		Size:     info.Size(),
		MimeType: mime.TypeByExtension(filepath.Ext(objectName)),
	}, nil
}

func (s *LocalStorageService) RemoveObject(ctx context.Context, bucketName, objectName string) error {
	path := s.objectPath(bucketName, objectName)
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("删除本地文件失败: %w", err)
	}
	return nil
}

func (s *LocalStorageService) IsBucketExist(ctx context.Context, bucketName string) (bool, error) {
	info, err := os.Stat(filepath.Join(s.basePath, bucketName))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("检查本地存储桶失败: %w", err)
	}
	return info.IsDir(), nil
}

func (s *LocalStorageService) MakeBucket(ctx context.Context, bucketName string) error {
	if err := os.MkdirAll(filepath.Join(s.basePath, bucketName), 0o755); err != nil {
		return fmt.Errorf("创建本地存储桶目录失败: %w", err)
	}
	return nil
}

// GetObjectURL 本地存储没有可公开访问的URL,返回磁盘路径,仅供日志与调试
func (s *LocalStorageService) GetObjectURL(bucketName, objectName string) string {
	return s.objectPath(bucketName, objectName)
}

// --- 预签名URL: 本地磁盘不支持,客户端必须走服务端直传接口 ---

func (s *LocalStorageService) PresignUpload(ctx context.Context, bucketName, objectName, contentType string, expiry time.Duration) (string, error) {
	return "", ErrPresignNotSupported
}

func (s *LocalStorageService) PresignDownload(ctx context.Context, bucketName, objectName string, expiry time.Duration) (string, error) {
	return "", ErrPresignNotSupported
}

// --- 分块上传: 本地磁盘不支持 ---

func (s *LocalStorageService) SupportsMultipart() bool {
	return false
}

func (s *LocalStorageService) InitMultipartUpload(ctx context.Context, bucketName, objectName, contentType string) (string, error) {
	return "", ErrMultipartNotSupported
}

func (s *LocalStorageService) PresignUploadPart(ctx context.Context, bucketName, objectName, uploadID string, partNumber int, expiry time.Duration) (string, error) {
	return "", ErrMultipartNotSupported
}

func (s *LocalStorageService) CompleteMultipartUpload(ctx context.Context, bucketName, objectName, uploadID string, parts []UploadPartResult) (PutObjectResult, error) {
	return PutObjectResult{}, ErrMultipartNotSupported
}

func (s *LocalStorageService) AbortMultipartUpload(ctx context.Context, bucketName, objectName, uploadID string) error {
	return ErrMultipartNotSupported
}
