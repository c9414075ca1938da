package storage

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/kxrica/go-skyvault/internal/config"
)

// ErrMultipartNotSupported 表示当前后端不支持分块上传
// 上传协调器在这种后端上只签发单个上传URL(或走直传路径)
var ErrMultipartNotSupported = errors.New("当前存储后端不支持分块上传")

// ErrPresignNotSupported 表示当前后端不支持预签名URL(如本地磁盘)
// 此时客户端必须通过直传接口上传字节
var ErrPresignNotSupported = errors.New("当前存储后端不支持预签名URL")

// StorageService 定义了通用的文件存储操作接口
// 通过配置选择具体后端,以策略对象注入上传协调器与缩略图流水线,
// 避免在包级持有可变的全局客户端
type StorageService interface {
	// 上传文件到指定存储桶
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, contentType string) (PutObjectResult, error)
	// 从指定存储桶下载文件,返回一个读取器和对象信息
	GetObject(ctx context.Context, bucketName, objectName string) (GetObjectResult, error)
	// 从指定存储桶删除文件
	RemoveObject(ctx context.Context, bucketName, objectName string) error
	// 检查存储桶是否存在
	IsBucketExist(ctx context.Context, bucketName string) (bool, error)
	// 创建存储桶
	MakeBucket(ctx context.Context, bucketName string) error
	// 获取对象的公开访问URL（如果支持）
	GetObjectURL(bucketName, objectName string) string

	// --- 预签名URL ---

	// PresignUpload 为上传生成预签名URL
	PresignUpload(ctx context.Context, bucketName, objectName, contentType string, expiry time.Duration) (string, error)
	// PresignDownload 为下载生成预签名URL
	PresignDownload(ctx context.Context, bucketName, objectName string, expiry time.Duration) (string, error)

	// --- 分块上传方法 ---

	// SupportsMultipart 后端是否支持真正的分块上传
	SupportsMultipart() bool

	// InitMultipartUpload 初始化分块上传, 返回 uploadID
	InitMultipartUpload(ctx context.Context, bucketName, objectName, contentType string) (string, error)

	// PresignUploadPart 为单个分块生成预签名上传URL
	PresignUploadPart(ctx context.Context, bucketName, objectName, uploadID string, partNumber int, expiry time.Duration) (string, error)

	// CompleteMultipartUpload 完成分块上传
	CompleteMultipartUpload(ctx context.Context, bucketName, objectName, uploadID string, parts []UploadPartResult) (PutObjectResult, error)

	// AbortMultipartUpload 中止分块上传
	AbortMultipartUpload(ctx context.Context, bucketName, objectName, uploadID string) error
}

type PutObjectResult struct {
	Bucket string
	Key    string
	Size   int64
	ETag   string // 对象哈希值
}

type UploadPartResult struct {
	PartNumber int
	ETag       string
}

type GetObjectResult struct {
	Reader   io.ReadCloser // 文件内容读取器,需要在使用后关闭
	Size     int64
	MimeType string
}

// NewStorageService 根据配置选择并初始化存储后端
func NewStorageService(cfg *config.Config) (StorageService, error) {
	switch cfg.Storage.Type {
	case "minio":
		return NewMinIOStorageService(&cfg.MinIO)
	case "aliyun_oss":
		return NewAliyunOSSStorageService(&cfg.AliyunOSS)
	case "local":
		return NewLocalStorageService(&cfg.Storage)
	default:
		return nil, errors.New("invalid storageType")
	}
}
