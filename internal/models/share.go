package models

import (
	"time"
)

// Share 对应 shares 表,记录用户对用户的直接分享
// 同一 (item, shared_with) 至多存在一条记录,重复分享时原地更新权限
type Share struct {
	ID           uint64     `gorm:"primaryKey;autoIncrement" json:"id"`
	ItemKind     ItemKind   `gorm:"type:varchar(8);not null;uniqueIndex:idx_share_item_target" json:"item_kind"`
	ItemID       uint64     `gorm:"not null;uniqueIndex:idx_share_item_target" json:"item_id"`
	OwnerID      uint64     `gorm:"not null;index" json:"owner_id"`                              // 分享者,必须是条目所有者
	SharedWithID uint64     `gorm:"not null;uniqueIndex:idx_share_item_target" json:"shared_with_id"` // 被分享者
	Permission   Permission `gorm:"type:varchar(8);not null;default:'viewer'" json:"permission"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 指定 GORM 使用的表名
func (Share) TableName() string {
	return "shares"
}

// Ref 返回被分享条目的统一引用
func (s *Share) Ref() ItemRef {
	return ItemRef{Kind: s.ItemKind, ID: s.ItemID}
}
