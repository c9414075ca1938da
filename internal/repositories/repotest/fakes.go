// Package repotest 提供各仓储接口的内存实现,供服务层单元测试使用
// 所有实现都用互斥锁保护,可以在并发测试里直接使用
package repotest

import (
	"context"
	"sync"
	"time"

	"github.com/kxrica/go-skyvault/internal/models"
	"github.com/kxrica/go-skyvault/internal/repositories"
	"gorm.io/gorm"
)

// FakeFileRepo 内存版 FileRepository
type FakeFileRepo struct {
	mu     sync.Mutex
	nextID uint64
	Files  map[uint64]*models.File

	BulkSoftDeleted []uint64 // SoftDeleteByIDs 收到的全部ID
}

var _ repositories.FileRepository = (*FakeFileRepo)(nil)

func NewFakeFileRepo() *FakeFileRepo {
	return &FakeFileRepo{nextID: 1, Files: make(map[uint64]*models.File)}
}

// Put 直接放入一条记录,测试布置初始数据用
func (r *FakeFileRepo) Put(file *models.File) *models.File {
	r.mu.Lock()
	defer r.mu.Unlock()
	if file.ID == 0 {
		file.ID = r.nextID
	}
	if file.ID >= r.nextID {
		r.nextID = file.ID + 1
	}
	r.Files[file.ID] = file
	return file
}

func (r *FakeFileRepo) Create(file *models.File) error {
	r.Put(file)
	return nil
}

func (r *FakeFileRepo) FindByID(id uint64) (*models.File, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.Files[id]
	if !ok {
		return nil, nil
	}
	cp := *f
	return &cp, nil
}

func (r *FakeFileRepo) FindByIDs(ids []uint64) ([]models.File, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.File
	for _, id := range ids {
		if f, ok := r.Files[id]; ok {
			out = append(out, *f)
		}
	}
	return out, nil
}

func (r *FakeFileRepo) FindByUserIDAndFolderID(userID uint64, folderID *uint64) ([]models.File, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.File
	for _, f := range r.Files {
		if f.UserID == userID && !f.IsDeleted && sameID(f.FolderID, folderID) {
			out = append(out, *f)
		}
	}
	return out, nil
}

func (r *FakeFileRepo) FindByFolderIDs(folderIDs []uint64) ([]models.File, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	idSet := make(map[uint64]bool, len(folderIDs))
	for _, id := range folderIDs {
		idSet[id] = true
	}
	var out []models.File
	for _, f := range r.Files {
		if f.FolderID != nil && idSet[*f.FolderID] && !f.IsDeleted {
			out = append(out, *f)
		}
	}
	return out, nil
}

func (r *FakeFileRepo) FindDuplicateName(userID uint64, folderID *uint64, name string) (*models.File, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, f := range r.Files {
		if f.UserID == userID && !f.IsDeleted && f.Name == name && sameID(f.FolderID, folderID) {
			cp := *f
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *FakeFileRepo) FindDeletedByUserID(userID uint64) ([]models.File, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.File
	for _, f := range r.Files {
		if f.UserID == userID && f.IsDeleted {
			out = append(out, *f)
		}
	}
	return out, nil
}

func (r *FakeFileRepo) Update(file *models.File) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *file
	r.Files[file.ID] = &cp
	return nil
}

func (r *FakeFileRepo) UpdateStatus(id uint64, from, to models.FileStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.Files[id]
	if !ok || f.Status != from {
		return false, nil
	}
	f.Status = to
	return true, nil
}

func (r *FakeFileRepo) SetThumbnailURL(id uint64, thumbnailURL string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if f, ok := r.Files[id]; ok {
		f.ThumbnailURL = &thumbnailURL
	}
	return nil
}

func (r *FakeFileRepo) SoftDelete(tx *gorm.DB, id uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if f, ok := r.Files[id]; ok {
		now := time.Now()
		f.IsDeleted = true
		f.DeletedAt = &now
	}
	return nil
}

// SoftDeleteByIDs 记录收到的ID,级联删除测试据此断言走的是按ID批量删除
func (r *FakeFileRepo) SoftDeleteByIDs(tx *gorm.DB, ids []uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	for _, id := range ids {
		if f, ok := r.Files[id]; ok && !f.IsDeleted {
			f.IsDeleted = true
			f.DeletedAt = &now
		}
	}
	r.BulkSoftDeleted = append(r.BulkSoftDeleted, ids...)
	return nil
}

func (r *FakeFileRepo) Restore(id uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if f, ok := r.Files[id]; ok {
		f.IsDeleted = false
		f.DeletedAt = nil
	}
	return nil
}

func (r *FakeFileRepo) PermanentDelete(id uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.Files, id)
	return nil
}

// FakeFolderRepo 内存版 FolderRepository
type FakeFolderRepo struct {
	mu      sync.Mutex
	nextID  uint64
	Folders map[uint64]*models.Folder
}

var _ repositories.FolderRepository = (*FakeFolderRepo)(nil)

func NewFakeFolderRepo() *FakeFolderRepo {
	return &FakeFolderRepo{nextID: 1, Folders: make(map[uint64]*models.Folder)}
}

func (r *FakeFolderRepo) Put(folder *models.Folder) *models.Folder {
	r.mu.Lock()
	defer r.mu.Unlock()
	if folder.ID == 0 {
		folder.ID = r.nextID
	}
	if folder.ID >= r.nextID {
		r.nextID = folder.ID + 1
	}
	r.Folders[folder.ID] = folder
	return folder
}

func (r *FakeFolderRepo) Create(folder *models.Folder) error {
	r.Put(folder)
	return nil
}

func (r *FakeFolderRepo) FindByID(id uint64) (*models.Folder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.Folders[id]
	if !ok {
		return nil, nil
	}
	cp := *f
	return &cp, nil
}

func (r *FakeFolderRepo) FindByIDs(ids []uint64) ([]models.Folder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Folder
	for _, id := range ids {
		if f, ok := r.Folders[id]; ok {
			out = append(out, *f)
		}
	}
	return out, nil
}

func (r *FakeFolderRepo) FindByUserIDAndParentID(userID uint64, parentID *uint64) ([]models.Folder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Folder
	for _, f := range r.Folders {
		if f.UserID == userID && !f.IsDeleted && sameID(f.ParentID, parentID) {
			out = append(out, *f)
		}
	}
	return out, nil
}

func (r *FakeFolderRepo) FindChildrenByParentIDs(parentIDs []uint64) ([]models.Folder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	idSet := make(map[uint64]bool, len(parentIDs))
	for _, id := range parentIDs {
		idSet[id] = true
	}
	var out []models.Folder
	for _, f := range r.Folders {
		if f.ParentID != nil && idSet[*f.ParentID] && !f.IsDeleted {
			out = append(out, *f)
		}
	}
	return out, nil
}

func (r *FakeFolderRepo) FindDuplicateName(userID uint64, parentID *uint64, name string) (*models.Folder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, f := range r.Folders {
		if f.UserID == userID && !f.IsDeleted && f.Name == name && sameID(f.ParentID, parentID) {
			cp := *f
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *FakeFolderRepo) FindDeletedByUserID(userID uint64) ([]models.Folder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Folder
	for _, f := range r.Folders {
		if f.UserID == userID && f.IsDeleted {
			out = append(out, *f)
		}
	}
	return out, nil
}

func (r *FakeFolderRepo) Update(folder *models.Folder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *folder
	r.Folders[folder.ID] = &cp
	return nil
}

func (r *FakeFolderRepo) SoftDeleteByIDs(tx *gorm.DB, ids []uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	for _, id := range ids {
		if f, ok := r.Folders[id]; ok {
			f.IsDeleted = true
			f.DeletedAt = &now
		}
	}
	return nil
}

func (r *FakeFolderRepo) Restore(id uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if f, ok := r.Folders[id]; ok {
		f.IsDeleted = false
		f.DeletedAt = nil
	}
	return nil
}

func (r *FakeFolderRepo) PermanentDelete(id uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.Folders, id)
	return nil
}

// FakeShareRepo 内存版 ShareRepository
type FakeShareRepo struct {
	mu     sync.Mutex
	nextID uint64
	Shares map[uint64]*models.Share
}

var _ repositories.ShareRepository = (*FakeShareRepo)(nil)

func NewFakeShareRepo() *FakeShareRepo {
	return &FakeShareRepo{nextID: 1, Shares: make(map[uint64]*models.Share)}
}

func (r *FakeShareRepo) Upsert(share *models.Share) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.Shares {
		if s.ItemKind == share.ItemKind && s.ItemID == share.ItemID && s.SharedWithID == share.SharedWithID {
			s.Permission = share.Permission
			s.OwnerID = share.OwnerID
			share.ID = s.ID
			return nil
		}
	}
	if share.ID == 0 {
		share.ID = r.nextID
		r.nextID++
	}
	cp := *share
	r.Shares[share.ID] = &cp
	return nil
}

func (r *FakeShareRepo) FindByID(id uint64) (*models.Share, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.Shares[id]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (r *FakeShareRepo) FindByItemAndUser(item models.ItemRef, userID uint64) (*models.Share, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.Shares {
		if s.ItemKind == item.Kind && s.ItemID == item.ID && s.SharedWithID == userID {
			cp := *s
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *FakeShareRepo) FindByItem(item models.ItemRef) ([]models.Share, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Share
	for _, s := range r.Shares {
		if s.ItemKind == item.Kind && s.ItemID == item.ID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (r *FakeShareRepo) FindByOwner(ownerID uint64) ([]models.Share, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Share
	for _, s := range r.Shares {
		if s.OwnerID == ownerID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (r *FakeShareRepo) FindBySharedWith(userID uint64) ([]models.Share, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Share
	for _, s := range r.Shares {
		if s.SharedWithID == userID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (r *FakeShareRepo) Delete(id uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.Shares, id)
	return nil
}

func (r *FakeShareRepo) DeleteByItem(tx *gorm.DB, item models.ItemRef) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, s := range r.Shares {
		if s.ItemKind == item.Kind && s.ItemID == item.ID {
			delete(r.Shares, id)
		}
	}
	return nil
}

// FakeLinkShareRepo 内存版 LinkShareRepository
// ConsumeAccess 在锁内完成检查加自增,与真实实现同样满足原子性
type FakeLinkShareRepo struct {
	mu     sync.Mutex
	nextID uint64
	Links  map[uint64]*models.LinkShare
}

var _ repositories.LinkShareRepository = (*FakeLinkShareRepo)(nil)

func NewFakeLinkShareRepo() *FakeLinkShareRepo {
	return &FakeLinkShareRepo{nextID: 1, Links: make(map[uint64]*models.LinkShare)}
}

func (r *FakeLinkShareRepo) Create(link *models.LinkShare) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if link.ID == 0 {
		link.ID = r.nextID
		r.nextID++
	}
	cp := *link
	r.Links[link.ID] = &cp
	return nil
}

func (r *FakeLinkShareRepo) FindByID(id uint64) (*models.LinkShare, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.Links[id]
	if !ok {
		return nil, nil
	}
	cp := *l
	return &cp, nil
}

func (r *FakeLinkShareRepo) FindByToken(token string) (*models.LinkShare, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.Links {
		if l.Token == token {
			cp := *l
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *FakeLinkShareRepo) FindByOwner(ownerID uint64) ([]models.LinkShare, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.LinkShare
	for _, l := range r.Links {
		if l.OwnerID == ownerID {
			out = append(out, *l)
		}
	}
	return out, nil
}

func (r *FakeLinkShareRepo) FindByItem(item models.ItemRef) ([]models.LinkShare, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.LinkShare
	for _, l := range r.Links {
		if l.ItemKind == item.Kind && l.ItemID == item.ID {
			out = append(out, *l)
		}
	}
	return out, nil
}

func (r *FakeLinkShareRepo) Delete(id uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.Links, id)
	return nil
}

func (r *FakeLinkShareRepo) DeleteByItem(tx *gorm.DB, item models.ItemRef) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, l := range r.Links {
		if l.ItemKind == item.Kind && l.ItemID == item.ID {
			delete(r.Links, id)
		}
	}
	return nil
}

func (r *FakeLinkShareRepo) ConsumeAccess(id uint64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.Links[id]
	if !ok {
		return false, nil
	}
	if l.MaxAccessCount != nil && l.AccessCount >= *l.MaxAccessCount {
		return false, nil
	}
	l.AccessCount++
	return true, nil
}

// FakeUserRepo 内存版 UserRepository
type FakeUserRepo struct {
	mu     sync.Mutex
	nextID uint64
	Users  map[uint64]*models.User
}

var _ repositories.UserRepository = (*FakeUserRepo)(nil)

func NewFakeUserRepo() *FakeUserRepo {
	return &FakeUserRepo{nextID: 1, Users: make(map[uint64]*models.User)}
}

func (r *FakeUserRepo) Put(user *models.User) *models.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user.ID == 0 {
		user.ID = r.nextID
	}
	if user.ID >= r.nextID {
		r.nextID = user.ID + 1
	}
	r.Users[user.ID] = user
	return user
}

func (r *FakeUserRepo) CreateUser(user *models.User) error {
	r.Put(user)
	return nil
}

func (r *FakeUserRepo) GetUserByUsername(username string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.Users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *FakeUserRepo) GetUserByEmail(email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.Users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *FakeUserRepo) GetUserByID(id uint64) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.Users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (r *FakeUserRepo) UpdateUser(user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *user
	r.Users[user.ID] = &cp
	return nil
}

// FakeTxManager 直接在当前 goroutine 执行事务函数
type FakeTxManager struct{}

var _ repositories.TransactionManager = (*FakeTxManager)(nil)

func (FakeTxManager) WithTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

func sameID(a, b *uint64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
