package models

import (
	"strings"
	"time"
)

// FileStatus 文件上传生命周期状态
// uploading -> ready 为成功路径, uploading -> error 为失败路径
// ready/error 为终态,同一次上传不允许再变更
type FileStatus string

const (
	FileStatusUploading  FileStatus = "uploading"
	FileStatusProcessing FileStatus = "processing"
	FileStatusReady      FileStatus = "ready"
	FileStatusError      FileStatus = "error"
)

// File 对应 files 表
type File struct {
	ID            uint64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID        uint64     `gorm:"not null;index:idx_file_owner_folder" json:"user_id"`
	FolderID      *uint64    `gorm:"index:idx_file_owner_folder;default:null" json:"folder_id"` // 所在文件夹ID,根目录为 null
	Name          string     `gorm:"type:varchar(255);not null" json:"name"`
	StorageKey    string     `gorm:"type:varchar(1024);not null" json:"storage_key"` // 对象存储中的唯一定位符
	StorageBucket string     `gorm:"type:varchar(64);not null" json:"storage_bucket"`
	MimeType      *string    `gorm:"type:varchar(128);default:null" json:"mime_type"`
	Size          int64      `gorm:"type:bigint;not null;default:0" json:"size"`
	Status        FileStatus `gorm:"type:varchar(16);not null;default:'uploading'" json:"status"`
	ThumbnailURL  *string    `gorm:"type:varchar(1024);default:null" json:"thumbnail_url"`
	IsDeleted     bool       `gorm:"not null;default:false;index" json:"is_deleted"`
	DeletedAt     *time.Time `gorm:"default:null" json:"deleted_at,omitempty"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`

	Folder *Folder `gorm:"foreignKey:FolderID" json:"-"` // 方便预加载所在文件夹
}

// TableName 指定 GORM 使用的表名
func (File) TableName() string {
	return "files"
}

// Ref 返回文件的统一条目引用
func (f *File) Ref() ItemRef {
	return FileRef(f.ID)
}

// IsImage 判断文件是否为图片,缩略图流水线只处理图片
func (f *File) IsImage() bool {
	return f.MimeType != nil && strings.HasPrefix(*f.MimeType, "image/")
}
