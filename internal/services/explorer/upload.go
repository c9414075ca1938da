package explorer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kxrica/go-skyvault/internal/config"
	"github.com/kxrica/go-skyvault/internal/models"
	"github.com/kxrica/go-skyvault/internal/pkg/logger"
	"github.com/kxrica/go-skyvault/internal/pkg/mq"
	"github.com/kxrica/go-skyvault/internal/pkg/search"
	"github.com/kxrica/go-skyvault/internal/pkg/storage"
	"github.com/kxrica/go-skyvault/internal/pkg/xerr"
	"github.com/kxrica/go-skyvault/internal/repositories"
	"github.com/kxrica/go-skyvault/internal/services/access"
	"go.uber.org/zap"
)

// TaskPublisher 上传服务需要的消息队列能力
// 由 mq.RabbitMQClient 实现,测试中用假实现替换
type TaskPublisher interface {
	Publish(ctx context.Context, queueName string, body []byte) error
}

// UploadService 上传协调器
// 生命周期: InitUpload 建 uploading 记录并签发URL -> 客户端直传存储 ->
// CompleteUpload 确认并翻转到 ready;DirectUpload 是小文件的一步到位路径
type UploadService interface {
	// InitUpload 初始化上传,返回文件ID和预签名上传URL
	InitUpload(ctx context.Context, userID uint64, req *models.UploadInitRequest) (*models.UploadInitResponse, error)
	// CompleteUpload 客户端传完后确认,文件状态翻转为 ready
	// 重复调用会因状态不再是 uploading 而被拒绝
	CompleteUpload(ctx context.Context, userID uint64, req *models.UploadCompleteRequest) (*models.File, error)
	// DirectUpload 服务端直传,字节流经应用写入存储
	DirectUpload(ctx context.Context, userID uint64, folderID *uint64, name, mimeType string, reader io.Reader, size int64) (*models.File, error)
}

type uploadService struct {
	fileRepo  repositories.FileRepository
	resolver  access.Resolver
	storage   storage.StorageService
	publisher TaskPublisher
	indexer   search.FileIndexer
	cfg       *config.Config

	folderRepo repositories.FolderRepository
}

var _ UploadService = (*uploadService)(nil)

// NewUploadService 创建一个新的 UploadService 实例
func NewUploadService(
	fileRepo repositories.FileRepository,
	folderRepo repositories.FolderRepository,
	resolver access.Resolver,
	storageService storage.StorageService,
	publisher TaskPublisher,
	indexer search.FileIndexer,
	cfg *config.Config,
) UploadService {
	return &uploadService{
		fileRepo:   fileRepo,
		folderRepo: folderRepo,
		resolver:   resolver,
		storage:    storageService,
		publisher:  publisher,
		indexer:    indexer,
		cfg:        cfg,
	}
}

// InitUpload 处理上传初始化的业务逻辑
func (s *uploadService) InitUpload(ctx context.Context, userID uint64, req *models.UploadInitRequest) (*models.UploadInitResponse, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" || req.Size <= 0 {
		return nil, xerr.NewCodeError(xerr.InvalidParamsCode, xerr.ErrInvalidParams)
	}
	if req.Size > s.cfg.Upload.MaxFileSize {
		return nil, xerr.NewCodeError(xerr.FileTooLargeCode, xerr.ErrFileTooLarge)
	}
	if req.PartCount > s.cfg.Upload.MaxParts {
		return nil, xerr.NewCodeError(xerr.InvalidParamsCode, xerr.ErrInvalidParams)
	}

	// 1. 目标目录的写权限
	if req.FolderID != nil {
		if _, err := s.resolver.CheckFolderAccess(ctx, userID, *req.FolderID, models.PermissionEditor); err != nil {
			return nil, err
		}
	}

	// 2. 同级重名检查
	if err := s.checkNameFree(userID, req.FolderID, name); err != nil {
		return nil, err
	}

	// 3. 先建 uploading 状态的记录,再去签发URL
	// 顺序不能反: 客户端可能在记录落库前就开始传,completeUpload 会找不到记录
	var mimeType *string
	if req.MimeType != "" {
		mt := req.MimeType
		mimeType = &mt
	}
	file := &models.File{
		UserID:        userID,
		FolderID:      req.FolderID,
		Name:          name,
		StorageKey:    fmt.Sprintf("%d/%s/%s", userID, uuid.New().String(), name),
		StorageBucket: s.bucketName(),
		MimeType:      mimeType,
		Size:          req.Size,
		Status:        models.FileStatusUploading,
	}
	if err := s.fileRepo.Create(file); err != nil {
		return nil, xerr.NewCodeError(xerr.DatabaseErrorCode, err)
	}

	resp, err := s.presignUploadURLs(ctx, file, req)
	if err != nil {
		// 签发失败就把记录标记为 error,不留半悬的 uploading 记录
		if _, markErr := s.fileRepo.UpdateStatus(file.ID, models.FileStatusUploading, models.FileStatusError); markErr != nil {
			logger.Error("InitUpload: 标记失败状态出错", zap.Uint64("fileID", file.ID), zap.Error(markErr))
		}
		return nil, err
	}

	logger.Info("InitUpload: 上传初始化成功",
		zap.Uint64("fileID", file.ID),
		zap.Uint64("userID", userID),
		zap.String("storageKey", file.StorageKey),
		zap.Int("urlCount", len(resp.UploadURLs)))
	return resp, nil
}

// CompleteUpload 处理上传完成确认的业务逻辑
func (s *uploadService) CompleteUpload(ctx context.Context, userID uint64, req *models.UploadCompleteRequest) (*models.File, error) {
	file, err := s.fileRepo.FindByID(req.FileID)
	if err != nil {
		return nil, xerr.NewCodeError(xerr.DatabaseErrorCode, err)
	}
	if file == nil || file.IsDeleted {
		return nil, xerr.NewCodeError(xerr.FileNotFoundCode, xerr.ErrFileNotFound)
	}
	if file.UserID != userID {
		return nil, xerr.NewCodeError(xerr.PermissionDeniedCode, xerr.ErrPermissionDenied)
	}
	if file.Status != models.FileStatusUploading {
		return nil, xerr.NewCodeError(xerr.InvalidStatusCode, xerr.ErrInvalidUploadStatus)
	}

	// 分块上传需要在存储侧合并分块
	if len(req.Parts) > 0 && req.UploadID != "" {
		parts := make([]storage.UploadPartResult, 0, len(req.Parts))
		for _, p := range req.Parts {
			parts = append(parts, storage.UploadPartResult{PartNumber: p.PartNumber, ETag: p.ETag})
		}
		if _, err := s.storage.CompleteMultipartUpload(ctx, file.StorageBucket, file.StorageKey, req.UploadID, parts); err != nil {
			logger.Error("CompleteUpload: 合并分块失败", zap.Uint64("fileID", file.ID), zap.Error(err))
			return nil, xerr.NewCodeError(xerr.StorageErrorCode, err)
		}
	}

	// 条件翻转,两个并发的 complete 只有一个能赢
	flipped, err := s.fileRepo.UpdateStatus(file.ID, models.FileStatusUploading, models.FileStatusReady)
	if err != nil {
		return nil, xerr.NewCodeError(xerr.DatabaseErrorCode, err)
	}
	if !flipped {
		return nil, xerr.NewCodeError(xerr.InvalidStatusCode, xerr.ErrInvalidUploadStatus)
	}
	file.Status = models.FileStatusReady

	s.enqueueThumbnailIfImage(ctx, file)
	s.indexer.IndexFile(ctx, file)

	logger.Info("CompleteUpload: 上传完成", zap.Uint64("fileID", file.ID), zap.Uint64("userID", userID))
	return file, nil
}

// DirectUpload 处理服务端直传的业务逻辑
func (s *uploadService) DirectUpload(ctx context.Context, userID uint64, folderID *uint64, name, mimeType string, reader io.Reader, size int64) (*models.File, error) {
	name = strings.TrimSpace(name)
	if name == "" || size <= 0 {
		return nil, xerr.NewCodeError(xerr.InvalidParamsCode, xerr.ErrInvalidParams)
	}
	if size > s.cfg.Upload.MaxFileSize {
		return nil, xerr.NewCodeError(xerr.FileTooLargeCode, xerr.ErrFileTooLarge)
	}
	if folderID != nil {
		if _, err := s.resolver.CheckFolderAccess(ctx, userID, *folderID, models.PermissionEditor); err != nil {
			return nil, err
		}
	}
	if err := s.checkNameFree(userID, folderID, name); err != nil {
		return nil, err
	}

	storageKey := fmt.Sprintf("%d/%s/%s", userID, uuid.New().String(), name)
	bucket := s.bucketName()

	result, err := s.storage.PutObject(ctx, bucket, storageKey, reader, size, mimeType)
	if err != nil {
		logger.Error("DirectUpload: 写入存储失败", zap.String("storageKey", storageKey), zap.Error(err))
		return nil, xerr.NewCodeError(xerr.StorageErrorCode, err)
	}

	var mt *string
	if mimeType != "" {
		mt = &mimeType
	}
	file := &models.File{
		UserID:        userID,
		FolderID:      folderID,
		Name:          name,
		StorageKey:    result.Key,
		StorageBucket: bucket,
		MimeType:      mt,
		Size:          size,
		Status:        models.FileStatusReady,
	}
	if err := s.fileRepo.Create(file); err != nil {
		// 对象已经写进存储,补偿删除,失败留日志
		if rmErr := s.storage.RemoveObject(ctx, bucket, storageKey); rmErr != nil {
			logger.Error("DirectUpload: 补偿删除物理文件失败,需要人工清理",
				zap.String("storageKey", storageKey), zap.Error(rmErr))
		}
		return nil, xerr.NewCodeError(xerr.DatabaseErrorCode, err)
	}

	s.enqueueThumbnailIfImage(ctx, file)
	s.indexer.IndexFile(ctx, file)

	logger.Info("DirectUpload: 直传完成", zap.Uint64("fileID", file.ID), zap.Uint64("userID", userID), zap.Int64("size", size))
	return file, nil
}

// presignUploadURLs 按后端能力签发单URL或分块URL
func (s *uploadService) presignUploadURLs(ctx context.Context, file *models.File, req *models.UploadInitRequest) (*models.UploadInitResponse, error) {
	expiry := time.Duration(s.cfg.Storage.PresignedURLExpiry) * time.Minute
	resp := &models.UploadInitResponse{
		FileID:     file.ID,
		StorageKey: file.StorageKey,
	}

	if req.PartCount > 1 {
		if !s.storage.SupportsMultipart() {
			return nil, xerr.NewCodeError(xerr.StorageNotConfiguredCode, storage.ErrMultipartNotSupported)
		}
		uploadID, err := s.storage.InitMultipartUpload(ctx, file.StorageBucket, file.StorageKey, req.MimeType)
		if err != nil {
			logger.Error("presignUploadURLs: 初始化分块上传失败", zap.Uint64("fileID", file.ID), zap.Error(err))
			return nil, xerr.NewCodeError(xerr.StorageErrorCode, err)
		}
		urls := make([]string, 0, req.PartCount)
		for part := 1; part <= req.PartCount; part++ {
			u, err := s.storage.PresignUploadPart(ctx, file.StorageBucket, file.StorageKey, uploadID, part, expiry)
			if err != nil {
				// 半路失败要把存储侧的分块会话清掉
				if abortErr := s.storage.AbortMultipartUpload(ctx, file.StorageBucket, file.StorageKey, uploadID); abortErr != nil {
					logger.Warn("presignUploadURLs: 中止分块上传失败", zap.String("uploadID", uploadID), zap.Error(abortErr))
				}
				return nil, xerr.NewCodeError(xerr.StorageErrorCode, err)
			}
			urls = append(urls, u)
		}
		resp.UploadID = uploadID
		resp.UploadURLs = urls
		return resp, nil
	}

	u, err := s.storage.PresignUpload(ctx, file.StorageBucket, file.StorageKey, req.MimeType, expiry)
	if err != nil {
		if errors.Is(err, storage.ErrPresignNotSupported) {
			// 本地后端没有预签名能力,客户端应改走直传接口
			return nil, xerr.NewCodeError(xerr.StorageNotConfiguredCode, err)
		}
		logger.Error("presignUploadURLs: 生成预签名上传URL失败", zap.Uint64("fileID", file.ID), zap.Error(err))
		return nil, xerr.NewCodeError(xerr.StorageErrorCode, err)
	}
	resp.UploadURLs = []string{u}
	return resp, nil
}

// enqueueThumbnailIfImage 图片文件完成后投递缩略图任务
// fire-and-forget: 投递失败只记录,上传流程不回滚
func (s *uploadService) enqueueThumbnailIfImage(ctx context.Context, file *models.File) {
	if !file.IsImage() {
		return
	}
	body, err := json.Marshal(models.ThumbnailTask{FileID: file.ID})
	if err != nil {
		logger.Error("enqueueThumbnailIfImage: 序列化任务失败", zap.Uint64("fileID", file.ID), zap.Error(err))
		return
	}
	if err := s.publisher.Publish(ctx, mq.ThumbnailQueueName, body); err != nil {
		logger.Error("enqueueThumbnailIfImage: 投递缩略图任务失败", zap.Uint64("fileID", file.ID), zap.Error(err))
		return
	}
	logger.Info("enqueueThumbnailIfImage: 缩略图任务已投递", zap.Uint64("fileID", file.ID))
}

// bucketName 当前存储后端对应的桶名
func (s *uploadService) bucketName() string {
	switch s.cfg.Storage.Type {
	case "minio":
		return s.cfg.MinIO.BucketName
	case "aliyun_oss":
		return s.cfg.AliyunOSS.BucketName
	default:
		return s.cfg.Storage.LocalBucketName
	}
}

// checkNameFree 同级(文件和文件夹都算)不允许重名
func (s *uploadService) checkNameFree(userID uint64, folderID *uint64, name string) error {
	dupFile, err := s.fileRepo.FindDuplicateName(userID, folderID, name)
	if err != nil {
		return xerr.NewCodeError(xerr.DatabaseErrorCode, err)
	}
	if dupFile != nil {
		return xerr.NewCodeError(xerr.DuplicateNameCode, xerr.ErrDuplicateName)
	}
	dupFolder, err := s.folderRepo.FindDuplicateName(userID, folderID, name)
	if err != nil {
		return xerr.NewCodeError(xerr.DatabaseErrorCode, err)
	}
	if dupFolder != nil {
		return xerr.NewCodeError(xerr.DuplicateNameCode, xerr.ErrDuplicateName)
	}
	return nil
}
