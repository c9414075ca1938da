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

// FolderRepository 定义文件夹数据访问层接口
// FindByID 会返回软删除的记录,由上层根据 IsDeleted 决定拒绝还是展示
type FolderRepository interface {
	Create(folder *models.Folder) error

	FindByID(id uint64) (*models.Folder, error)
	FindByIDs(ids []uint64) ([]models.Folder, error)
	FindByUserIDAndParentID(userID uint64, parentID *uint64) ([]models.Folder, error)
	FindChildrenByParentIDs(parentIDs []uint64) ([]models.Folder, error) // 级联删除按层收集子文件夹
	FindDuplicateName(userID uint64, parentID *uint64, name string) (*models.Folder, error)
	FindDeletedByUserID(userID uint64) ([]models.Folder, error)

	Update(folder *models.Folder) error

	SoftDeleteByIDs(tx *gorm.DB, ids []uint64) error // 批量软删除(含被删文件夹自身和所有后代)
	Restore(id uint64) error
	PermanentDelete(id uint64) error
}

type folderRepository struct {
	db       *gorm.DB
	cache    cache.Cache
	cacheTTL time.Duration
}

var _ FolderRepository = (*folderRepository)(nil)

// NewFolderRepository 创建一个新的 FolderRepository 实例
func NewFolderRepository(db *gorm.DB, c cache.Cache) FolderRepository {
	return &folderRepository{
		db:       db,
		cache:    c,
		cacheTTL: 10 * time.Minute,
	}
}

func (r *folderRepository) Create(folder *models.Folder) error {
	err := r.db.Create(folder).Error
	if err != nil {
		logger.Error("Create: Failed to create folder in DB", zap.Error(err), zap.Uint64("userID", folder.UserID), zap.String("name", folder.Name))
		return fmt.Errorf("failed to create folder: %w", err)
	}
	return nil
}

func (r *folderRepository) FindByID(id uint64) (*models.Folder, error) {
	ctx := context.Background()
	cacheKey := cache.GenerateFolderMetadataKey(id)

	var cached models.Folder
	err := r.cache.Get(ctx, cacheKey, &cached)
	if err == nil {
		return &cached, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		logger.Error("FindByID: Error getting folder from cache", zap.Uint64("id", id), zap.Error(err))
	}

	var folder models.Folder
	err = r.db.First(&folder, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("从数据库查询文件夹失败: %w", err)
	}

	if setErr := r.cache.Set(ctx, cacheKey, &folder, r.cacheTTL); setErr != nil {
		logger.Error("FindByID: Failed to cache folder", zap.Uint64("id", id), zap.Error(setErr))
	}
	return &folder, nil
}

func (r *folderRepository) FindByIDs(ids []uint64) ([]models.Folder, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var folders []models.Folder
	err := r.db.Where("id IN ?", ids).Find(&folders).Error
	if err != nil {
		return nil, fmt.Errorf("批量查询文件夹失败: %w", err)
	}
	return folders, nil
}

func (r *folderRepository) FindByUserIDAndParentID(userID uint64, parentID *uint64) ([]models.Folder, error) {
	var folders []models.Folder
	query := r.db.Where("user_id = ? AND is_deleted = ?", userID, false)

	if parentID == nil {
		query = query.Where("parent_id IS NULL")
	} else {
		query = query.Where("parent_id = ?", *parentID)
	}

	err := query.Order("name ASC").Find(&folders).Error
	if err != nil {
		logger.Error("FindByUserIDAndParentID: Error finding folders from DB", zap.Uint64("userID", userID), zap.Any("parentID", parentID), zap.Error(err))
		return nil, fmt.Errorf("查询文件夹列表失败: %w", err)
	}
	return folders, nil
}

func (r *folderRepository) FindChildrenByParentIDs(parentIDs []uint64) ([]models.Folder, error) {
	if len(parentIDs) == 0 {
		return nil, nil
	}
	var folders []models.Folder
	err := r.db.Where("parent_id IN ? AND is_deleted = ?", parentIDs, false).Find(&folders).Error
	if err != nil {
		return nil, fmt.Errorf("查询子文件夹失败: %w", err)
	}
	return folders, nil
}

// FindDuplicateName 检查同一父目录下是否已有同名文件夹,没有时返回 nil
func (r *folderRepository) FindDuplicateName(userID uint64, parentID *uint64, name string) (*models.Folder, error) {
	var folder models.Folder
	query := r.db.Where("user_id = ? AND name = ? AND is_deleted = ?", userID, name, false)
	if parentID == nil {
		query = query.Where("parent_id IS NULL")
	} else {
		query = query.Where("parent_id = ?", *parentID)
	}
	err := query.First(&folder).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("查询同名文件夹失败: %w", err)
	}
	return &folder, nil
}

func (r *folderRepository) FindDeletedByUserID(userID uint64) ([]models.Folder, error) {
	var folders []models.Folder
	err := r.db.Where("user_id = ? AND is_deleted = ?", userID, true).Order("deleted_at DESC").Find(&folders).Error
	if err != nil {
		logger.Error("FindDeletedByUserID: Error finding deleted folders from DB", zap.Uint64("userID", userID), zap.Error(err))
		return nil, fmt.Errorf("查询回收站文件夹列表失败: %w", err)
	}
	return folders, nil
}

func (r *folderRepository) Update(folder *models.Folder) error {
	err := r.db.Save(folder).Error
	if err != nil {
		logger.Error("Update: Failed to update folder in DB", zap.Error(err), zap.Uint64("folderID", folder.ID))
		return fmt.Errorf("failed to update folder: %w", err)
	}
	r.invalidate(folder.ID)
	return nil
}

// SoftDeleteByIDs 在一条语句里软删除一组文件夹
// 调用方负责把它和文件的级联软删除放进同一个事务
func (r *folderRepository) SoftDeleteByIDs(tx *gorm.DB, ids []uint64) error {
	if len(ids) == 0 {
		return nil
	}
	db := r.db
	if tx != nil {
		db = tx
	}
	err := db.Model(&models.Folder{}).
		Where("id IN ? AND is_deleted = ?", ids, false).
		Updates(map[string]any{
			"is_deleted": true,
			"deleted_at": time.Now(),
		}).Error
	if err != nil {
		logger.Error("SoftDeleteByIDs: Failed to soft delete folders", zap.Error(err))
		return fmt.Errorf("批量软删除文件夹失败: %w", err)
	}
	for _, id := range ids {
		r.invalidate(id)
	}
	return nil
}

func (r *folderRepository) Restore(id uint64) error {
	err := r.db.Model(&models.Folder{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"is_deleted": false,
			"deleted_at": nil,
		}).Error
	if err != nil {
		logger.Error("Restore: Failed to restore folder", zap.Uint64("folderID", id), zap.Error(err))
		return fmt.Errorf("恢复文件夹失败: %w", err)
	}
	r.invalidate(id)
	return nil
}

func (r *folderRepository) PermanentDelete(id uint64) error {
	err := r.db.Unscoped().Delete(&models.Folder{}, id).Error
	if err != nil {
		return fmt.Errorf("永久删除文件夹失败: %w", err)
	}
	r.invalidate(id)
	return nil
}

func (r *folderRepository) invalidate(id uint64) {
	ctx := context.Background()
	if err := r.cache.Del(ctx, cache.GenerateFolderMetadataKey(id)); err != nil {
		logger.Error("invalidate: Failed to delete folder cache", zap.Uint64("folderID", id), zap.Error(err))
	}
}
