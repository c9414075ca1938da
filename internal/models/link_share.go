package models

import (
	"time"
)

// LinkShare 对应 link_shares 表,公开链接分享
// Token 由 crypto/rand 生成(32字节,hex编码),碰撞概率可以忽略
// AccessCount 的自增必须与上限检查在同一条原子语句内完成,见 LinkShareRepository.ConsumeAccess
type LinkShare struct {
	ID             uint64     `gorm:"primaryKey;autoIncrement" json:"id"`
	ItemKind       ItemKind   `gorm:"type:varchar(8);not null;index:idx_link_item" json:"item_kind"`
	ItemID         uint64     `gorm:"not null;index:idx_link_item" json:"item_id"`
	OwnerID        uint64     `gorm:"not null;index" json:"owner_id"`
	Token          string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"token"`
	PasswordHash   *string    `gorm:"type:varchar(255);default:null" json:"-"` // 只存 bcrypt 哈希,绝不存明文
	ExpiresAt      *time.Time `gorm:"default:null" json:"expires_at,omitempty"`
	MaxAccessCount *int64     `gorm:"default:null" json:"max_access_count,omitempty"`
	AccessCount    int64      `gorm:"not null;default:0" json:"access_count"`
	Permission     Permission `gorm:"type:varchar(8);not null;default:'viewer'" json:"permission"`
	CreatedAt      time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 指定 GORM 使用的表名
func (LinkShare) TableName() string {
	return "link_shares"
}

// Ref 返回被分享条目的统一引用
func (l *LinkShare) Ref() ItemRef {
	return ItemRef{Kind: l.ItemKind, ID: l.ItemID}
}

// Expired 判断链接是否已过期
func (l *LinkShare) Expired(now time.Time) bool {
	return l.ExpiresAt != nil && now.After(*l.ExpiresAt)
}

// LimitReached 判断访问次数是否已达上限
// 仅用于快速失败,真正的并发防护由原子的 ConsumeAccess 保证
func (l *LinkShare) LimitReached() bool {
	return l.MaxAccessCount != nil && l.AccessCount >= *l.MaxAccessCount
}
