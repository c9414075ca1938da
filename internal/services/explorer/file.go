package explorer

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/kxrica/go-skyvault/internal/config"
	"github.com/kxrica/go-skyvault/internal/models"
	"github.com/kxrica/go-skyvault/internal/pkg/logger"
	"github.com/kxrica/go-skyvault/internal/pkg/search"
	"github.com/kxrica/go-skyvault/internal/pkg/storage"
	"github.com/kxrica/go-skyvault/internal/pkg/xerr"
	"github.com/kxrica/go-skyvault/internal/repositories"
	"github.com/kxrica/go-skyvault/internal/services/access"
	"go.uber.org/zap"
)

// FileService 文件条目的操作
type FileService interface {
	// GetFile 获取文件元数据,需要 viewer 权限
	GetFile(ctx context.Context, userID uint64, fileID uint64) (*models.File, error)
	// RenameFile 重命名文件
	RenameFile(ctx context.Context, userID uint64, fileID uint64, newName string) (*models.File, error)
	// MoveFile 把文件移动到另一个文件夹
	MoveFile(ctx context.Context, userID uint64, fileID uint64, newFolderID *uint64) (*models.File, error)
	// DeleteFile 软删除文件
	DeleteFile(ctx context.Context, userID uint64, fileID uint64) error
	// RestoreFile 从回收站恢复文件
	RestoreFile(ctx context.Context, userID uint64, fileID uint64) (*models.File, error)
	// PermanentDeleteFile 永久删除文件及其物理对象
	PermanentDeleteFile(ctx context.Context, userID uint64, fileID uint64) error
	// DownloadURL 生成下载用预签名 URL,需要 viewer 权限
	DownloadURL(ctx context.Context, userID uint64, fileID uint64) (string, error)
	// DownloadContent 获取文件内容读取器(本地后端没有预签名能力时走这里)
	DownloadContent(ctx context.Context, userID uint64, fileID uint64) (*models.File, io.ReadCloser, error)
	// PublicDownloadURL 为公开链接的访问者生成下载 URL,不做用户级权限检查
	PublicDownloadURL(ctx context.Context, fileID uint64) (string, error)
	// DownloadFolderZip 把文件夹打包成 zip 流,需要 viewer 权限
	DownloadFolderZip(ctx context.Context, userID uint64, folderID uint64) (*models.Folder, io.ReadCloser, error)
	// SearchFiles 按名称搜索用户自己的文件
	SearchFiles(ctx context.Context, userID uint64, keyword string, limit int) ([]search.FileDocument, error)
}

type fileService struct {
	fileRepo   repositories.FileRepository
	folderRepo repositories.FolderRepository
	resolver   access.Resolver
	storage    storage.StorageService
	indexer    search.FileIndexer
	cfg        *config.Config
}

var _ FileService = (*fileService)(nil)

// NewFileService 创建一个新的 FileService 实例
func NewFileService(
	fileRepo repositories.FileRepository,
	folderRepo repositories.FolderRepository,
	resolver access.Resolver,
	storageService storage.StorageService,
	indexer search.FileIndexer,
	cfg *config.Config,
) FileService {
	return &fileService{
		fileRepo:   fileRepo,
		folderRepo: folderRepo,
		resolver:   resolver,
		storage:    storageService,
		indexer:    indexer,
		cfg:        cfg,
	}
}

func (s *fileService) GetFile(ctx context.Context, userID uint64, fileID uint64) (*models.File, error) {
	return s.resolver.CheckFileAccess(ctx, userID, fileID, models.PermissionViewer)
}

// RenameFile 处理重命名的业务逻辑,重名检查以文件所有者的同级为准
func (s *fileService) RenameFile(ctx context.Context, userID uint64, fileID uint64, newName string) (*models.File, error) {
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return nil, xerr.NewCodeError(xerr.InvalidParamsCode, xerr.ErrInvalidParams)
	}

	file, err := s.resolver.CheckFileAccess(ctx, userID, fileID, models.PermissionEditor)
	if err != nil {
		return nil, err
	}

	if file.Name == newName {
		return file, nil
	}

	if err := s.checkFileNameFree(file.UserID, file.FolderID, newName); err != nil {
		return nil, err
	}

	file.Name = newName
	if err := s.fileRepo.Update(file); err != nil {
		return nil, xerr.NewCodeError(xerr.DatabaseErrorCode, err)
	}

	s.indexer.IndexFile(ctx, file)
	logger.Info("RenameFile: 文件重命名成功", zap.Uint64("fileID", fileID), zap.String("newName", newName))
	return file, nil
}

// MoveFile 处理移动文件的业务逻辑
func (s *fileService) MoveFile(ctx context.Context, userID uint64, fileID uint64, newFolderID *uint64) (*models.File, error) {
	file, err := s.resolver.CheckFileAccess(ctx, userID, fileID, models.PermissionEditor)
	if err != nil {
		return nil, err
	}

	if newFolderID != nil {
		if _, err := s.resolver.CheckFolderAccess(ctx, userID, *newFolderID, models.PermissionEditor); err != nil {
			return nil, err
		}
	}

	if err := s.checkFileNameFree(file.UserID, newFolderID, file.Name); err != nil {
		return nil, err
	}

	file.FolderID = newFolderID
	if err := s.fileRepo.Update(file); err != nil {
		return nil, xerr.NewCodeError(xerr.DatabaseErrorCode, err)
	}

	logger.Info("MoveFile: 文件移动成功", zap.Uint64("fileID", fileID), zap.Any("newFolderID", newFolderID))
	return file, nil
}

// DeleteFile 软删除文件,物理对象保留到永久删除时再清理
func (s *fileService) DeleteFile(ctx context.Context, userID uint64, fileID uint64) error {
	file, err := s.resolver.CheckFileAccess(ctx, userID, fileID, models.PermissionEditor)
	if err != nil {
		return err
	}

	if err := s.fileRepo.SoftDelete(nil, file.ID); err != nil {
		return xerr.NewCodeError(xerr.DatabaseErrorCode, err)
	}

	s.indexer.RemoveFile(ctx, file.ID)
	logger.Info("DeleteFile: 文件已进入回收站", zap.Uint64("fileID", fileID), zap.Uint64("userID", userID))
	return nil
}

// RestoreFile 从回收站恢复文件,只有所有者可以操作
// 若所在文件夹仍在回收站,则恢复到根目录
func (s *fileService) RestoreFile(ctx context.Context, userID uint64, fileID uint64) (*models.File, error) {
	file, err := s.fileRepo.FindByID(fileID)
	if err != nil {
		return nil, xerr.NewCodeError(xerr.DatabaseErrorCode, err)
	}
	if file == nil || !file.IsDeleted {
		return nil, xerr.NewCodeError(xerr.FileNotFoundCode, xerr.ErrFileNotFound)
	}
	if file.UserID != userID {
		return nil, xerr.NewCodeError(xerr.PermissionDeniedCode, xerr.ErrPermissionDenied)
	}

	if file.FolderID != nil {
		folder, err := s.folderRepo.FindByID(*file.FolderID)
		if err != nil {
			return nil, xerr.NewCodeError(xerr.DatabaseErrorCode, err)
		}
		if folder == nil || folder.IsDeleted {
			file.FolderID = nil
		}
	}

	if err := s.checkFileNameFree(file.UserID, file.FolderID, file.Name); err != nil {
		return nil, err
	}

	file.IsDeleted = false
	file.DeletedAt = nil
	if err := s.fileRepo.Update(file); err != nil {
		return nil, xerr.NewCodeError(xerr.DatabaseErrorCode, err)
	}

	s.indexer.IndexFile(ctx, file)
	logger.Info("RestoreFile: 文件已恢复", zap.Uint64("fileID", fileID), zap.Uint64("userID", userID))
	return file, nil
}

// PermanentDeleteFile 永久删除文件,只有所有者可以操作
// 先删数据库记录,物理对象删除失败只记录,留待人工清理
func (s *fileService) PermanentDeleteFile(ctx context.Context, userID uint64, fileID uint64) error {
	file, err := s.fileRepo.FindByID(fileID)
	if err != nil {
		return xerr.NewCodeError(xerr.DatabaseErrorCode, err)
	}
	if file == nil {
		return xerr.NewCodeError(xerr.FileNotFoundCode, xerr.ErrFileNotFound)
	}
	if file.UserID != userID {
		return xerr.NewCodeError(xerr.PermissionDeniedCode, xerr.ErrPermissionDenied)
	}

	if err := s.fileRepo.PermanentDelete(file.ID); err != nil {
		return xerr.NewCodeError(xerr.DatabaseErrorCode, err)
	}

	if err := s.storage.RemoveObject(ctx, file.StorageBucket, file.StorageKey); err != nil {
		logger.Error("PermanentDeleteFile: 删除物理文件失败,需要人工清理",
			zap.Uint64("fileID", fileID),
			zap.String("storageKey", file.StorageKey),
			zap.Error(err))
	}
	// 缩略图与原文件同生命周期
	if file.ThumbnailURL != nil {
		thumbKey := ThumbnailKey(file.StorageKey)
		if err := s.storage.RemoveObject(ctx, file.StorageBucket, thumbKey); err != nil {
			logger.Warn("PermanentDeleteFile: 删除缩略图失败", zap.String("thumbKey", thumbKey), zap.Error(err))
		}
	}

	s.indexer.RemoveFile(ctx, file.ID)
	logger.Info("PermanentDeleteFile: 文件已永久删除", zap.Uint64("fileID", fileID), zap.Uint64("userID", userID))
	return nil
}

// DownloadURL 生成预签名下载 URL
func (s *fileService) DownloadURL(ctx context.Context, userID uint64, fileID uint64) (string, error) {
	file, err := s.resolver.CheckFileAccess(ctx, userID, fileID, models.PermissionViewer)
	if err != nil {
		return "", err
	}
	return s.presignDownload(ctx, file)
}

// DownloadContent 返回文件内容读取器,调用方负责关闭
func (s *fileService) DownloadContent(ctx context.Context, userID uint64, fileID uint64) (*models.File, io.ReadCloser, error) {
	file, err := s.resolver.CheckFileAccess(ctx, userID, fileID, models.PermissionViewer)
	if err != nil {
		return nil, nil, err
	}
	if file.Status != models.FileStatusReady {
		return nil, nil, xerr.NewCodeError(xerr.InvalidStatusCode, xerr.ErrInvalidUploadStatus)
	}

	result, err := s.storage.GetObject(ctx, file.StorageBucket, file.StorageKey)
	if err != nil {
		logger.Error("DownloadContent: 获取文件内容失败", zap.Uint64("fileID", fileID), zap.Error(err))
		return nil, nil, xerr.NewCodeError(xerr.StorageErrorCode, err)
	}
	return file, result.Reader, nil
}

// PublicDownloadURL 公开链接访问路径,链接校验已在分享服务完成
func (s *fileService) PublicDownloadURL(ctx context.Context, fileID uint64) (string, error) {
	file, err := s.fileRepo.FindByID(fileID)
	if err != nil {
		return "", xerr.NewCodeError(xerr.DatabaseErrorCode, err)
	}
	if file == nil || file.IsDeleted {
		return "", xerr.NewCodeError(xerr.FileNotFoundCode, xerr.ErrFileNotFound)
	}
	return s.presignDownload(ctx, file)
}

// DownloadFolderZip 把文件夹内容打包成 zip 流式返回
// 通过 io.Pipe 边压缩边发送,不在内存里攒整个包
func (s *fileService) DownloadFolderZip(ctx context.Context, userID uint64, folderID uint64) (*models.Folder, io.ReadCloser, error) {
	root, err := s.resolver.CheckFolderAccess(ctx, userID, folderID, models.PermissionViewer)
	if err != nil {
		return nil, nil, err
	}

	entries, err := s.collectZipEntries(root)
	if err != nil {
		return nil, nil, err
	}

	pr, pw := io.Pipe()
	go func() {
		zipWriter := zip.NewWriter(pw)

		for _, entry := range entries {
			if entry.isFolder {
				name := entry.relPath
				if !strings.HasSuffix(name, "/") {
					name += "/"
				}
				if _, err := zipWriter.Create(name); err != nil {
					pw.CloseWithError(fmt.Errorf("创建 ZIP 目录项 %s 失败: %w", name, err))
					return
				}
				continue
			}

			if err := s.writeZipFile(ctx, zipWriter, entry); err != nil {
				pw.CloseWithError(err)
				return
			}
		}

		if err := zipWriter.Close(); err != nil {
			pw.CloseWithError(fmt.Errorf("关闭 ZIP 写入器失败: %w", err))
			return
		}
		pw.Close()
		logger.Info("DownloadFolderZip: ZIP 打包完成", zap.Uint64("folderID", folderID))
	}()

	return root, pr, nil
}

func (s *fileService) SearchFiles(ctx context.Context, userID uint64, keyword string, limit int) ([]search.FileDocument, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, xerr.NewCodeError(xerr.InvalidParamsCode, xerr.ErrInvalidParams)
	}
	docs, err := s.indexer.SearchFiles(ctx, userID, keyword, limit)
	if err != nil {
		logger.Error("SearchFiles: 搜索失败", zap.Uint64("userID", userID), zap.Error(err))
		return nil, xerr.NewCodeError(xerr.InternalServerErrorCode, err)
	}
	return docs, nil
}

// zipEntry 打包时的单个条目
type zipEntry struct {
	relPath  string
	isFolder bool
	file     *models.File
}

// collectZipEntries 按层遍历子树,拍平成带相对路径的条目列表
func (s *fileService) collectZipEntries(root *models.Folder) ([]zipEntry, error) {
	type frame struct {
		folder  models.Folder
		relPath string
	}

	var entries []zipEntry
	frontier := []frame{{folder: *root, relPath: root.Name}}
	visited := map[uint64]struct{}{root.ID: {}}

	for depth := 0; len(frontier) > 0; depth++ {
		if depth >= maxTreeDepth {
			return nil, xerr.NewCodeError(xerr.DataIntegrityErrorCode, xerr.ErrDataIntegrity)
		}

		var next []frame
		for _, fr := range frontier {
			entries = append(entries, zipEntry{relPath: fr.relPath, isFolder: true})

			files, err := s.fileRepo.FindByFolderIDs([]uint64{fr.folder.ID})
			if err != nil {
				return nil, xerr.NewCodeError(xerr.DatabaseErrorCode, err)
			}
			for i := range files {
				if files[i].Status != models.FileStatusReady {
					continue
				}
				f := files[i]
				entries = append(entries, zipEntry{
					relPath: fr.relPath + "/" + f.Name,
					file:    &f,
				})
			}

			children, err := s.folderRepo.FindChildrenByParentIDs([]uint64{fr.folder.ID})
			if err != nil {
				return nil, xerr.NewCodeError(xerr.DatabaseErrorCode, err)
			}
			for _, child := range children {
				if _, seen := visited[child.ID]; seen {
					return nil, xerr.NewCodeError(xerr.DataIntegrityErrorCode, xerr.ErrDataIntegrity)
				}
				visited[child.ID] = struct{}{}
				next = append(next, frame{folder: child, relPath: fr.relPath + "/" + child.Name})
			}
		}
		frontier = next
	}
	return entries, nil
}

// writeZipFile 把单个文件内容写进 zip
func (s *fileService) writeZipFile(ctx context.Context, zipWriter *zip.Writer, entry zipEntry) error {
	result, err := s.storage.GetObject(ctx, entry.file.StorageBucket, entry.file.StorageKey)
	if err != nil {
		// 单个文件拿不到内容不中断整个包,在日志里留痕
		logger.Warn("DownloadFolderZip: 获取文件内容失败,跳过",
			zap.Uint64("fileID", entry.file.ID),
			zap.String("storageKey", entry.file.StorageKey),
			zap.Error(err))
		return nil
	}
	defer result.Reader.Close()

	header := &zip.FileHeader{
		Name:     entry.relPath,
		Method:   zip.Deflate,
		Modified: entry.file.UpdatedAt,
	}
	if entry.file.Size > 0 {
		header.UncompressedSize64 = uint64(entry.file.Size)
	}

	writer, err := zipWriter.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("为 %s 创建 ZIP 头失败: %w", entry.relPath, err)
	}
	if _, err := io.Copy(writer, result.Reader); err != nil {
		return fmt.Errorf("复制 %s 内容到 ZIP 失败: %w", entry.relPath, err)
	}
	return nil
}

// presignDownload 生成预签名下载 URL,状态必须是 ready
func (s *fileService) presignDownload(ctx context.Context, file *models.File) (string, error) {
	if file.Status != models.FileStatusReady {
		return "", xerr.NewCodeError(xerr.InvalidStatusCode, xerr.ErrInvalidUploadStatus)
	}

	expiry := time.Duration(s.cfg.Storage.PresignedURLExpiry) * time.Minute
	url, err := s.storage.PresignDownload(ctx, file.StorageBucket, file.StorageKey, expiry)
	if err != nil {
		if errors.Is(err, storage.ErrPresignNotSupported) {
			return "", xerr.NewCodeError(xerr.StorageNotConfiguredCode, err)
		}
		logger.Error("presignDownload: 生成预签名URL失败", zap.Uint64("fileID", file.ID), zap.Error(err))
		return "", xerr.NewCodeError(xerr.StorageErrorCode, err)
	}
	return url, nil
}

// checkFileNameFree 同级(文件和文件夹都算)不允许重名
func (s *fileService) checkFileNameFree(ownerID uint64, folderID *uint64, name string) error {
	dupFile, err := s.fileRepo.FindDuplicateName(ownerID, folderID, name)
	if err != nil {
		return xerr.NewCodeError(xerr.DatabaseErrorCode, err)
	}
	if dupFile != nil {
		return xerr.NewCodeError(xerr.DuplicateNameCode, xerr.ErrDuplicateName)
	}
	dupFolder, err := s.folderRepo.FindDuplicateName(ownerID, folderID, name)
	if err != nil {
		return xerr.NewCodeError(xerr.DatabaseErrorCode, err)
	}
	if dupFolder != nil {
		return xerr.NewCodeError(xerr.DuplicateNameCode, xerr.ErrDuplicateName)
	}
	return nil
}

// ThumbnailKey 由原始对象键派生缩略图对象键
// `a/b/photo.png` -> `a/b/photo_thumb.jpg`
func ThumbnailKey(storageKey string) string {
	ext := path.Ext(storageKey)
	return strings.TrimSuffix(storageKey, ext) + "_thumb.jpg"
}
