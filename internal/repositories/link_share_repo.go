package repositories

import (
	"errors"
	"fmt"

	"github.com/kxrica/go-skyvault/internal/models"
	"github.com/kxrica/go-skyvault/internal/pkg/logger"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// LinkShareRepository 公开链接分享的数据访问层
type LinkShareRepository interface {
	Create(link *models.LinkShare) error
	FindByID(id uint64) (*models.LinkShare, error)
	FindByToken(token string) (*models.LinkShare, error)
	FindByOwner(ownerID uint64) ([]models.LinkShare, error)
	FindByItem(item models.ItemRef) ([]models.LinkShare, error)
	Delete(id uint64) error
	DeleteByItem(tx *gorm.DB, item models.ItemRef) error

	// ConsumeAccess 原子地消耗一次访问配额
	// 检查和自增在同一条 UPDATE 里完成,并发下不会超发
	// 返回 false 表示配额已耗尽
	ConsumeAccess(id uint64) (bool, error)
}

type linkShareRepository struct {
	db *gorm.DB
}

var _ LinkShareRepository = (*linkShareRepository)(nil)

// NewLinkShareRepository 创建新的 linkShareRepository 实例
func NewLinkShareRepository(db *gorm.DB) LinkShareRepository {
	return &linkShareRepository{db: db}
}

func (r *linkShareRepository) Create(link *models.LinkShare) error {
	err := r.db.Create(link).Error
	if err != nil {
		logger.Error("Create: Failed to create link share", zap.Error(err), zap.Uint64("ownerID", link.OwnerID))
		return fmt.Errorf("创建链接分享失败: %w", err)
	}
	return nil
}

func (r *linkShareRepository) FindByID(id uint64) (*models.LinkShare, error) {
	var link models.LinkShare
	err := r.db.Where("id = ?", id).First(&link).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("查询链接分享失败: %w", err)
	}
	return &link, nil
}

// FindByToken 根据令牌查找链接,未找到时返回 nil
func (r *linkShareRepository) FindByToken(token string) (*models.LinkShare, error) {
	var link models.LinkShare
	err := r.db.Where("token = ?", token).First(&link).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("查询链接分享失败: %w", err)
	}
	return &link, nil
}

func (r *linkShareRepository) FindByOwner(ownerID uint64) ([]models.LinkShare, error) {
	var links []models.LinkShare
	err := r.db.Where("owner_id = ?", ownerID).Order("created_at desc").Find(&links).Error
	if err != nil {
		return nil, fmt.Errorf("查询链接分享列表失败: %w", err)
	}
	return links, nil
}

func (r *linkShareRepository) FindByItem(item models.ItemRef) ([]models.LinkShare, error) {
	var links []models.LinkShare
	err := r.db.Where("item_kind = ? AND item_id = ?", item.Kind, item.ID).Find(&links).Error
	if err != nil {
		return nil, fmt.Errorf("查询条目链接分享失败: %w", err)
	}
	return links, nil
}

func (r *linkShareRepository) Delete(id uint64) error {
	return r.db.Delete(&models.LinkShare{}, id).Error
}

func (r *linkShareRepository) DeleteByItem(tx *gorm.DB, item models.ItemRef) error {
	db := r.db
	if tx != nil {
		db = tx
	}
	return db.Where("item_kind = ? AND item_id = ?", item.Kind, item.ID).Delete(&models.LinkShare{}).Error
}

// ConsumeAccess 单条条件 UPDATE 完成配额检查和自增
// RowsAffected 为 0 说明上限已到,两个并发请求争抢最后一个名额时只有一个能成功
func (r *linkShareRepository) ConsumeAccess(id uint64) (bool, error) {
	result := r.db.Model(&models.LinkShare{}).
		Where("id = ? AND (max_access_count IS NULL OR access_count < max_access_count)", id).
		Update("access_count", gorm.Expr("access_count + 1"))
	if result.Error != nil {
		logger.Error("ConsumeAccess: Failed to consume link access", zap.Uint64("linkID", id), zap.Error(result.Error))
		return false, fmt.Errorf("更新链接访问次数失败: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}
