package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kxrica/go-skyvault/internal/models"
	"github.com/kxrica/go-skyvault/internal/pkg/cache"
	"github.com/kxrica/go-skyvault/internal/pkg/logger"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// FileRepository 定义文件数据访问层接口
// FindByID 会返回软删除的记录,由上层根据 IsDeleted 决定拒绝还是展示
type FileRepository interface {
	Create(file *models.File) error

	FindByID(id uint64) (*models.File, error)
	FindByIDs(ids []uint64) ([]models.File, error)
	FindByUserIDAndFolderID(userID uint64, folderID *uint64) ([]models.File, error) // 获取指定文件夹下未删除的文件
	FindByFolderIDs(folderIDs []uint64) ([]models.File, error)                     // 级联删除时收集文件夹下的文件
	FindDuplicateName(userID uint64, folderID *uint64, name string) (*models.File, error)
	FindDeletedByUserID(userID uint64) ([]models.File, error) // 回收站列表

	Update(file *models.File) error
	// UpdateStatus 条件状态迁移,只有当前状态等于 from 时才更新为 to
	// 返回是否真的发生了迁移,用于保证 completeUpload 的幂等拒绝
	UpdateStatus(id uint64, from, to models.FileStatus) (bool, error)
	SetThumbnailURL(id uint64, thumbnailURL string) error

	SoftDelete(tx *gorm.DB, id uint64) error
	SoftDeleteByIDs(tx *gorm.DB, ids []uint64) error // 级联删除时批量软删除文件
	Restore(id uint64) error
	PermanentDelete(id uint64) error
}

type fileRepository struct {
	db       *gorm.DB
	cache    cache.Cache
	cacheTTL time.Duration
}

var _ FileRepository = (*fileRepository)(nil)

// NewFileRepository 创建一个新的 FileRepository 实例
func NewFileRepository(db *gorm.DB, c cache.Cache) FileRepository {
	return &fileRepository{
		db:       db,
		cache:    c,
		cacheTTL: 10 * time.Minute,
	}
}

func (r *fileRepository) Create(file *models.File) error {
	err := r.db.Create(file).Error
	if err != nil {
		logger.Error("Create: Failed to create file in DB", zap.Error(err), zap.Uint64("userID", file.UserID), zap.String("name", file.Name))
		return fmt.Errorf("failed to create file: %w", err)
	}
	return nil
}

func (r *fileRepository) FindByID(id uint64) (*models.File, error) {
	ctx := context.Background()
	cacheKey := cache.GenerateFileMetadataKey(id)

	// 尝试从缓存中获取
	var cached models.File
	err := r.cache.Get(ctx, cacheKey, &cached)
	if err == nil {
		return &cached, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		logger.Error("FindByID: Error getting file from cache", zap.Uint64("id", id), zap.Error(err))
	}

	var file models.File
	err = r.db.First(&file, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("从数据库查询文件失败: %w", err)
	}

	// 回写缓存,失败只记录不阻塞
	if setErr := r.cache.Set(ctx, cacheKey, &file, r.cacheTTL); setErr != nil {
		logger.Error("FindByID: Failed to cache file", zap.Uint64("id", id), zap.Error(setErr))
	}
	return &file, nil
}

func (r *fileRepository) FindByIDs(ids []uint64) ([]models.File, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var files []models.File
	err := r.db.Where("id IN ?", ids).Find(&files).Error
	if err != nil {
		return nil, fmt.Errorf("批量查询文件失败: %w", err)
	}
	return files, nil
}

// 获取指定用户在特定文件夹下未删除的文件
// folderID 可以为 nil,表示根目录
func (r *fileRepository) FindByUserIDAndFolderID(userID uint64, folderID *uint64) ([]models.File, error) {
	var files []models.File
	query := r.db.Where("user_id = ? AND is_deleted = ?", userID, false)

	if folderID == nil {
		query = query.Where("folder_id IS NULL")
	} else {
		query = query.Where("folder_id = ?", *folderID)
	}

	err := query.Order("name ASC").Find(&files).Error
	if err != nil {
		logger.Error("FindByUserIDAndFolderID: Error finding files from DB", zap.Uint64("userID", userID), zap.Any("folderID", folderID), zap.Error(err))
		return nil, fmt.Errorf("查询文件列表失败: %w", err)
	}
	return files, nil
}

func (r *fileRepository) FindByFolderIDs(folderIDs []uint64) ([]models.File, error) {
	if len(folderIDs) == 0 {
		return nil, nil
	}
	var files []models.File
	err := r.db.Where("folder_id IN ? AND is_deleted = ?", folderIDs, false).Find(&files).Error
	if err != nil {
		return nil, fmt.Errorf("查询文件夹下的文件失败: %w", err)
	}
	return files, nil
}

// FindDuplicateName 检查同一文件夹下是否已有同名文件,没有时返回 nil
func (r *fileRepository) FindDuplicateName(userID uint64, folderID *uint64, name string) (*models.File, error) {
	var file models.File
	query := r.db.Where("user_id = ? AND name = ? AND is_deleted = ?", userID, name, false)
	if folderID == nil {
		query = query.Where("folder_id IS NULL")
	} else {
		query = query.Where("folder_id = ?", *folderID)
	}
	err := query.First(&file).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("查询同名文件失败: %w", err)
	}
	return &file, nil
}

func (r *fileRepository) FindDeletedByUserID(userID uint64) ([]models.File, error) {
	var files []models.File
	err := r.db.Where("user_id = ? AND is_deleted = ?", userID, true).Order("deleted_at DESC").Find(&files).Error
	if err != nil {
		logger.Error("FindDeletedByUserID: Error finding deleted files from DB", zap.Uint64("userID", userID), zap.Error(err))
		return nil, fmt.Errorf("查询回收站文件列表失败: %w", err)
	}
	return files, nil
}

func (r *fileRepository) Update(file *models.File) error {
	err := r.db.Save(file).Error
	if err != nil {
		logger.Error("Update: Failed to update file in DB", zap.Error(err), zap.Uint64("fileID", file.ID))
		return fmt.Errorf("failed to update file: %w", err)
	}
	r.invalidate(file.ID)
	return nil
}

func (r *fileRepository) UpdateStatus(id uint64, from, to models.FileStatus) (bool, error) {
	result := r.db.Model(&models.File{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if result.Error != nil {
		logger.Error("UpdateStatus: Failed to update file status", zap.Uint64("fileID", id), zap.Error(result.Error))
		return false, fmt.Errorf("更新文件状态失败: %w", result.Error)
	}
	r.invalidate(id)
	return result.RowsAffected > 0, nil
}

func (r *fileRepository) SetThumbnailURL(id uint64, thumbnailURL string) error {
	err := r.db.Model(&models.File{}).Where("id = ?", id).Update("thumbnail_url", thumbnailURL).Error
	if err != nil {
		logger.Error("SetThumbnailURL: Failed to update thumbnail URL", zap.Uint64("fileID", id), zap.Error(err))
		return fmt.Errorf("更新缩略图地址失败: %w", err)
	}
	r.invalidate(id)
	return nil
}

// SoftDelete 软删除文件,tx 为 nil 时在默认连接上执行
func (r *fileRepository) SoftDelete(tx *gorm.DB, id uint64) error {
	db := r.db
	if tx != nil {
		db = tx
	}
	err := db.Model(&models.File{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"is_deleted": true,
			"deleted_at": time.Now(),
		}).Error
	if err != nil {
		logger.Error("SoftDelete: Failed to soft delete file in DB", zap.Error(err), zap.Uint64("fileID", id))
		return fmt.Errorf("failed to soft delete file: %w", err)
	}
	r.invalidate(id)
	return nil
}

// SoftDeleteByIDs 在一条语句里软删除一组文件
// 调用方负责把它和文件夹的级联软删除放进同一个事务
func (r *fileRepository) SoftDeleteByIDs(tx *gorm.DB, ids []uint64) error {
	if len(ids) == 0 {
		return nil
	}
	db := r.db
	if tx != nil {
		db = tx
	}
	err := db.Model(&models.File{}).
		Where("id IN ? AND is_deleted = ?", ids, false).
		Updates(map[string]any{
			"is_deleted": true,
			"deleted_at": time.Now(),
		}).Error
	if err != nil {
		logger.Error("SoftDeleteByIDs: Failed to soft delete files", zap.Error(err))
		return fmt.Errorf("批量软删除文件失败: %w", err)
	}
	// 逐条失效元数据缓存,否则 FindByID 在 TTL 内还会返回未删除的旧副本
	for _, id := range ids {
		r.invalidate(id)
	}
	return nil
}

func (r *fileRepository) Restore(id uint64) error {
	err := r.db.Model(&models.File{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"is_deleted": false,
			"deleted_at": nil,
		}).Error
	if err != nil {
		logger.Error("Restore: Failed to restore file", zap.Uint64("fileID", id), zap.Error(err))
		return fmt.Errorf("恢复文件失败: %w", err)
	}
	r.invalidate(id)
	return nil
}

func (r *fileRepository) PermanentDelete(id uint64) error {
	err := r.db.Unscoped().Delete(&models.File{}, id).Error
	if err != nil {
		return fmt.Errorf("永久删除文件失败: %w", err)
	}
	r.invalidate(id)
	return nil
}

func (r *fileRepository) invalidate(id uint64) {
	ctx := context.Background()
	if err := r.cache.Del(ctx, cache.GenerateFileMetadataKey(id)); err != nil {
		logger.Error("invalidate: Failed to delete file cache", zap.Uint64("fileID", id), zap.Error(err))
	}
}
