package models

// ItemKind 区分文件和文件夹两类条目
type ItemKind string

const (
	KindFile   ItemKind = "file"
	KindFolder ItemKind = "folder"
)

// Valid 校验条目类型是否合法
func (k ItemKind) Valid() bool {
	return k == KindFile || k == KindFolder
}

// ItemRef 统一的条目引用,访问解析和分享记录都以它为键
type ItemRef struct {
	Kind ItemKind `json:"kind"`
	ID   uint64   `json:"id"`
}

// FileRef 构造指向文件的条目引用
func FileRef(id uint64) ItemRef {
	return ItemRef{Kind: KindFile, ID: id}
}

// FolderRef 构造指向文件夹的条目引用
func FolderRef(id uint64) ItemRef {
	return ItemRef{Kind: KindFolder, ID: id}
}

// Permission 分享权限等级
type Permission string

const (
	PermissionViewer Permission = "viewer"
	PermissionEditor Permission = "editor"
)

// Valid 校验权限值是否合法
func (p Permission) Valid() bool {
	return p == PermissionViewer || p == PermissionEditor
}

// Satisfies 判断当前权限是否覆盖所需权限
// editor 覆盖 viewer,反之不成立
func (p Permission) Satisfies(required Permission) bool {
	if p == PermissionEditor {
		return true
	}
	return p == required
}
