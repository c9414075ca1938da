package models

import (
	"time"
)

// Folder 对应 folders 表
// ParentID 为 nil 表示该文件夹位于用户根目录
type Folder struct {
	ID        uint64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    uint64     `gorm:"not null;index:idx_folder_owner_parent" json:"user_id"`
	ParentID  *uint64    `gorm:"index:idx_folder_owner_parent;default:null" json:"parent_id"`
	Name      string     `gorm:"type:varchar(255);not null" json:"name"`
	IsDeleted bool       `gorm:"not null;default:false;index" json:"is_deleted"`
	DeletedAt *time.Time `gorm:"default:null" json:"deleted_at,omitempty"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime" json:"updated_at"`

	Parent *Folder `gorm:"foreignKey:ParentID" json:"-"` // 方便预加载父文件夹
}

// TableName 指定 GORM 使用的表名
func (Folder) TableName() string {
	return "folders"
}

// Ref 返回文件夹的统一条目引用
func (f *Folder) Ref() ItemRef {
	return FolderRef(f.ID)
}
