package repositories

import (
	"errors"
	"fmt"

	"github.com/kxrica/go-skyvault/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ShareRepository 用户对用户直接分享的数据访问层
type ShareRepository interface {
	// Upsert 创建分享记录,若同一条目对同一用户已有分享则原地更新权限
	Upsert(share *models.Share) error
	FindByID(id uint64) (*models.Share, error)
	FindByItemAndUser(item models.ItemRef, userID uint64) (*models.Share, error)
	FindByItem(item models.ItemRef) ([]models.Share, error)
	FindByOwner(ownerID uint64) ([]models.Share, error)
	FindBySharedWith(userID uint64) ([]models.Share, error)
	Delete(id uint64) error
	DeleteByItem(tx *gorm.DB, item models.ItemRef) error // 条目被删除时清理分享记录
}

type shareRepository struct {
	db *gorm.DB
}

var _ ShareRepository = (*shareRepository)(nil)

// NewShareRepository 创建新的 shareRepository 实例
func NewShareRepository(db *gorm.DB) ShareRepository {
	return &shareRepository{db: db}
}

// Upsert 依赖 (item_kind, item_id, shared_with_id) 上的唯一索引
// 冲突时只更新权限和 owner,不产生第二条记录
func (r *shareRepository) Upsert(share *models.Share) error {
	err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "item_kind"},
			{Name: "item_id"},
			{Name: "shared_with_id"},
		},
		DoUpdates: clause.AssignmentColumns([]string{"permission", "owner_id", "updated_at"}),
	}).Create(share).Error
	if err != nil {
		return fmt.Errorf("创建分享记录失败: %w", err)
	}
	return nil
}

func (r *shareRepository) FindByID(id uint64) (*models.Share, error) {
	var share models.Share
	err := r.db.Where("id = ?", id).First(&share).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("查询分享记录失败: %w", err)
	}
	return &share, nil
}

// FindByItemAndUser 查找特定条目是否已分享给特定用户,未分享时返回 nil
func (r *shareRepository) FindByItemAndUser(item models.ItemRef, userID uint64) (*models.Share, error) {
	var share models.Share
	err := r.db.Where("item_kind = ? AND item_id = ? AND shared_with_id = ?", item.Kind, item.ID, userID).First(&share).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("查询分享记录失败: %w", err)
	}
	return &share, nil
}

func (r *shareRepository) FindByItem(item models.ItemRef) ([]models.Share, error) {
	var shares []models.Share
	err := r.db.Where("item_kind = ? AND item_id = ?", item.Kind, item.ID).Find(&shares).Error
	if err != nil {
		return nil, fmt.Errorf("查询条目分享列表失败: %w", err)
	}
	return shares, nil
}

// FindByOwner 查找用户分享出去的所有记录
func (r *shareRepository) FindByOwner(ownerID uint64) ([]models.Share, error) {
	var shares []models.Share
	err := r.db.Where("owner_id = ?", ownerID).Order("created_at desc").Find(&shares).Error
	if err != nil {
		return nil, fmt.Errorf("查询分享列表失败: %w", err)
	}
	return shares, nil
}

// FindBySharedWith 查找分享给该用户的所有记录
func (r *shareRepository) FindBySharedWith(userID uint64) ([]models.Share, error) {
	var shares []models.Share
	err := r.db.Where("shared_with_id = ?", userID).Order("created_at desc").Find(&shares).Error
	if err != nil {
		return nil, fmt.Errorf("查询收到的分享列表失败: %w", err)
	}
	return shares, nil
}

func (r *shareRepository) Delete(id uint64) error {
	return r.db.Delete(&models.Share{}, id).Error
}

func (r *shareRepository) DeleteByItem(tx *gorm.DB, item models.ItemRef) error {
	db := r.db
	if tx != nil {
		db = tx
	}
	return db.Where("item_kind = ? AND item_id = ?", item.Kind, item.ID).Delete(&models.Share{}).Error
}
