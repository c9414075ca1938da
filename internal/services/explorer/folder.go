package explorer

import (
	"context"
	"strings"

	"github.com/kxrica/go-skyvault/internal/models"
	"github.com/kxrica/go-skyvault/internal/pkg/logger"
	"github.com/kxrica/go-skyvault/internal/pkg/search"
	"github.com/kxrica/go-skyvault/internal/pkg/xerr"
	"github.com/kxrica/go-skyvault/internal/repositories"
	"github.com/kxrica/go-skyvault/internal/services/access"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// maxTreeDepth 目录树遍历的深度上限,超过视为数据损坏
const maxTreeDepth = 1000

// FolderListing 目录下的内容
type FolderListing struct {
	Folders []models.Folder `json:"folders"`
	Files   []models.File   `json:"files"`
}

// FolderService 文件夹的层级操作
// 同一用户同一父目录下,未删除的条目不允许重名
type FolderService interface {
	// CreateFolder 创建文件夹,parentID 为 nil 表示根目录
	CreateFolder(ctx context.Context, userID uint64, parentID *uint64, name string) (*models.Folder, error)
	// ListItems 列出目录内容
	// includeShared 只在根目录生效: true 时附加直接分享给该用户的条目,
	// false 时只列出用户自有的条目(不含任何形式的分享)
	ListItems(ctx context.Context, userID uint64, folderID *uint64, includeShared bool) (*FolderListing, error)
	// RenameFolder 重命名文件夹
	RenameFolder(ctx context.Context, userID uint64, folderID uint64, newName string) (*models.Folder, error)
	// MoveFolder 移动文件夹,禁止移动到自身或其子孙之下
	MoveFolder(ctx context.Context, userID uint64, folderID uint64, newParentID *uint64) (*models.Folder, error)
	// DeleteFolder 软删除文件夹并级联软删除全部后代
	DeleteFolder(ctx context.Context, userID uint64, folderID uint64) error
	// RestoreFolder 从回收站恢复文件夹
	RestoreFolder(ctx context.Context, userID uint64, folderID uint64) (*models.Folder, error)
	// ListRecycleBin 列出用户回收站中的条目
	ListRecycleBin(ctx context.Context, userID uint64) (*FolderListing, error)
}

type folderService struct {
	folderRepo repositories.FolderRepository
	fileRepo   repositories.FileRepository
	shareRepo  repositories.ShareRepository
	resolver   access.Resolver
	tm         repositories.TransactionManager
	indexer    search.FileIndexer
}

var _ FolderService = (*folderService)(nil)

// NewFolderService 创建一个新的 FolderService 实例
func NewFolderService(
	folderRepo repositories.FolderRepository,
	fileRepo repositories.FileRepository,
	shareRepo repositories.ShareRepository,
	resolver access.Resolver,
	tm repositories.TransactionManager,
	indexer search.FileIndexer,
) FolderService {
	return &folderService{
		folderRepo: folderRepo,
		fileRepo:   fileRepo,
		shareRepo:  shareRepo,
		resolver:   resolver,
		tm:         tm,
		indexer:    indexer,
	}
}

// CreateFolder 处理创建文件夹的业务逻辑
func (s *folderService) CreateFolder(ctx context.Context, userID uint64, parentID *uint64, name string) (*models.Folder, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, xerr.NewCodeError(xerr.InvalidParamsCode, xerr.ErrInvalidParams)
	}

	// 1. 在别人目录下创建需要 editor 权限
	if parentID != nil {
		if _, err := s.resolver.CheckFolderAccess(ctx, userID, *parentID, models.PermissionEditor); err != nil {
			return nil, err
		}
	}

	// 2. 同级不允许重名
	if err := s.checkFolderNameFree(userID, parentID, name); err != nil {
		return nil, err
	}

	folder := &models.Folder{
		UserID:   userID,
		ParentID: parentID,
		Name:     name,
	}
	if err := s.folderRepo.Create(folder); err != nil {
		return nil, xerr.NewCodeError(xerr.DatabaseErrorCode, err)
	}

	logger.Info("CreateFolder: 文件夹创建成功", zap.Uint64("folderID", folder.ID), zap.Uint64("userID", userID), zap.String("name", name))
	return folder, nil
}

// ListItems 处理目录列表的业务逻辑
func (s *folderService) ListItems(ctx context.Context, userID uint64, folderID *uint64, includeShared bool) (*FolderListing, error) {
	var (
		folders []models.Folder
		files   []models.File
		err     error
	)
	if folderID != nil {
		// 列具体目录需要 viewer 权限,目录下的条目可能属于不同用户
		if _, err = s.resolver.CheckFolderAccess(ctx, userID, *folderID, models.PermissionViewer); err != nil {
			return nil, err
		}
		folders, err = s.folderRepo.FindChildrenByParentIDs([]uint64{*folderID})
		if err != nil {
			return nil, xerr.NewCodeError(xerr.DatabaseErrorCode, err)
		}
		files, err = s.fileRepo.FindByFolderIDs([]uint64{*folderID})
		if err != nil {
			return nil, xerr.NewCodeError(xerr.DatabaseErrorCode, err)
		}
	} else {
		// 根目录始终是用户自己的
		folders, err = s.folderRepo.FindByUserIDAndParentID(userID, nil)
		if err != nil {
			return nil, xerr.NewCodeError(xerr.DatabaseErrorCode, err)
		}
		files, err = s.fileRepo.FindByUserIDAndFolderID(userID, nil)
		if err != nil {
			return nil, xerr.NewCodeError(xerr.DatabaseErrorCode, err)
		}
	}

	listing := &FolderListing{Folders: folders, Files: files}

	// 根目录可以附加别人直接分享过来的条目
	if includeShared && folderID == nil {
		if err := s.appendSharedItems(userID, listing); err != nil {
			return nil, err
		}
	}

	return listing, nil
}

// appendSharedItems 把直接分享给用户的条目挂到根目录列表里
func (s *folderService) appendSharedItems(userID uint64, listing *FolderListing) error {
	shares, err := s.shareRepo.FindBySharedWith(userID)
	if err != nil {
		return xerr.NewCodeError(xerr.DatabaseErrorCode, err)
	}

	var fileIDs, folderIDs []uint64
	for _, sh := range shares {
		switch sh.ItemKind {
		case models.KindFile:
			fileIDs = append(fileIDs, sh.ItemID)
		case models.KindFolder:
			folderIDs = append(folderIDs, sh.ItemID)
		}
	}

	sharedFolders, err := s.folderRepo.FindByIDs(folderIDs)
	if err != nil {
		return xerr.NewCodeError(xerr.DatabaseErrorCode, err)
	}
	for _, f := range sharedFolders {
		if !f.IsDeleted {
			listing.Folders = append(listing.Folders, f)
		}
	}

	sharedFiles, err := s.fileRepo.FindByIDs(fileIDs)
	if err != nil {
		return xerr.NewCodeError(xerr.DatabaseErrorCode, err)
	}
	for _, f := range sharedFiles {
		if !f.IsDeleted {
			listing.Files = append(listing.Files, f)
		}
	}
	return nil
}

// RenameFolder 处理重命名的业务逻辑,重名检查以条目所有者的同级为准
func (s *folderService) RenameFolder(ctx context.Context, userID uint64, folderID uint64, newName string) (*models.Folder, error) {
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return nil, xerr.NewCodeError(xerr.InvalidParamsCode, xerr.ErrInvalidParams)
	}

	folder, err := s.resolver.CheckFolderAccess(ctx, userID, folderID, models.PermissionEditor)
	if err != nil {
		return nil, err
	}

	if folder.Name == newName {
		return folder, nil
	}

	if err := s.checkFolderNameFree(folder.UserID, folder.ParentID, newName); err != nil {
		return nil, err
	}

	folder.Name = newName
	if err := s.folderRepo.Update(folder); err != nil {
		return nil, xerr.NewCodeError(xerr.DatabaseErrorCode, err)
	}

	logger.Info("RenameFolder: 文件夹重命名成功", zap.Uint64("folderID", folderID), zap.String("newName", newName))
	return folder, nil
}

// MoveFolder 处理移动文件夹的业务逻辑
// 目标不能是自身,也不能是自身的任何子孙,否则目录树会成环
func (s *folderService) MoveFolder(ctx context.Context, userID uint64, folderID uint64, newParentID *uint64) (*models.Folder, error) {
	folder, err := s.resolver.CheckFolderAccess(ctx, userID, folderID, models.PermissionEditor)
	if err != nil {
		return nil, err
	}

	if newParentID != nil {
		if *newParentID == folderID {
			return nil, xerr.NewCodeError(xerr.CannotMoveIntoSelfCode, xerr.ErrCannotMoveIntoSelf)
		}
		if _, err := s.resolver.CheckFolderAccess(ctx, userID, *newParentID, models.PermissionEditor); err != nil {
			return nil, err
		}
		// 沿目标的祖先链向上走,撞到被移动的文件夹说明目标在其子树里
		inSubtree, err := s.isDescendantOf(*newParentID, folderID)
		if err != nil {
			return nil, err
		}
		if inSubtree {
			return nil, xerr.NewCodeError(xerr.CannotMoveIntoSelfCode, xerr.ErrCannotMoveIntoSelf)
		}
	}

	if err := s.checkFolderNameFree(folder.UserID, newParentID, folder.Name); err != nil {
		return nil, err
	}

	folder.ParentID = newParentID
	if err := s.folderRepo.Update(folder); err != nil {
		return nil, xerr.NewCodeError(xerr.DatabaseErrorCode, err)
	}

	logger.Info("MoveFolder: 文件夹移动成功", zap.Uint64("folderID", folderID), zap.Any("newParentID", newParentID))
	return folder, nil
}

// DeleteFolder 处理级联软删除的业务逻辑
// 先按层收集整棵子树的文件夹 ID,再在同一个事务里批量软删除文件夹和文件
func (s *folderService) DeleteFolder(ctx context.Context, userID uint64, folderID uint64) error {
	folder, err := s.resolver.CheckFolderAccess(ctx, userID, folderID, models.PermissionEditor)
	if err != nil {
		return err
	}

	subtreeIDs, err := s.collectSubtree(folder.ID)
	if err != nil {
		return err
	}

	// 删除前收集受影响的文件: 按文件ID删除才能让仓储层逐条失效缓存,
	// 事务提交后这批ID还要从搜索索引里摘掉
	affectedFiles, err := s.fileRepo.FindByFolderIDs(subtreeIDs)
	if err != nil {
		return xerr.NewCodeError(xerr.DatabaseErrorCode, err)
	}
	fileIDs := make([]uint64, 0, len(affectedFiles))
	for i := range affectedFiles {
		fileIDs = append(fileIDs, affectedFiles[i].ID)
	}

	err = s.tm.WithTransaction(ctx, func(tx *gorm.DB) error {
		if err := s.folderRepo.SoftDeleteByIDs(tx, subtreeIDs); err != nil {
			return err
		}
		return s.fileRepo.SoftDeleteByIDs(tx, fileIDs)
	})
	if err != nil {
		logger.Error("DeleteFolder: 级联软删除事务失败", zap.Uint64("folderID", folderID), zap.Error(err))
		return xerr.NewCodeError(xerr.DatabaseErrorCode, err)
	}

	for i := range affectedFiles {
		s.indexer.RemoveFile(ctx, affectedFiles[i].ID)
	}

	logger.Info("DeleteFolder: 文件夹已删除",
		zap.Uint64("folderID", folderID),
		zap.Int("subtreeSize", len(subtreeIDs)),
		zap.Int("affectedFiles", len(affectedFiles)))
	return nil
}

// RestoreFolder 从回收站恢复文件夹
// 只恢复文件夹本身;若原父目录仍在回收站,则挂回根目录
func (s *folderService) RestoreFolder(ctx context.Context, userID uint64, folderID uint64) (*models.Folder, error) {
	folder, err := s.folderRepo.FindByID(folderID)
	if err != nil {
		return nil, xerr.NewCodeError(xerr.DatabaseErrorCode, err)
	}
	if folder == nil || !folder.IsDeleted {
		return nil, xerr.NewCodeError(xerr.FolderNotFoundCode, xerr.ErrFolderNotFound)
	}
	if folder.UserID != userID {
		return nil, xerr.NewCodeError(xerr.PermissionDeniedCode, xerr.ErrPermissionDenied)
	}

	if folder.ParentID != nil {
		parent, err := s.folderRepo.FindByID(*folder.ParentID)
		if err != nil {
			return nil, xerr.NewCodeError(xerr.DatabaseErrorCode, err)
		}
		if parent == nil || parent.IsDeleted {
			folder.ParentID = nil
		}
	}

	// 恢复位置出现重名时拒绝,让用户先处理冲突
	if err := s.checkFolderNameFree(folder.UserID, folder.ParentID, folder.Name); err != nil {
		return nil, err
	}

	folder.IsDeleted = false
	folder.DeletedAt = nil
	if err := s.folderRepo.Update(folder); err != nil {
		return nil, xerr.NewCodeError(xerr.DatabaseErrorCode, err)
	}

	logger.Info("RestoreFolder: 文件夹已恢复", zap.Uint64("folderID", folderID), zap.Uint64("userID", userID))
	return folder, nil
}

func (s *folderService) ListRecycleBin(ctx context.Context, userID uint64) (*FolderListing, error) {
	folders, err := s.folderRepo.FindDeletedByUserID(userID)
	if err != nil {
		return nil, xerr.NewCodeError(xerr.DatabaseErrorCode, err)
	}
	files, err := s.fileRepo.FindDeletedByUserID(userID)
	if err != nil {
		return nil, xerr.NewCodeError(xerr.DatabaseErrorCode, err)
	}
	return &FolderListing{Folders: folders, Files: files}, nil
}

// collectSubtree 按层 BFS 收集文件夹及其全部未删除后代的 ID
func (s *folderService) collectSubtree(rootID uint64) ([]uint64, error) {
	all := []uint64{rootID}
	visited := map[uint64]struct{}{rootID: {}}
	frontier := []uint64{rootID}

	for depth := 0; len(frontier) > 0; depth++ {
		if depth >= maxTreeDepth {
			logger.Error("collectSubtree: 目录树深度超限", zap.Uint64("rootID", rootID))
			return nil, xerr.NewCodeError(xerr.DataIntegrityErrorCode, xerr.ErrDataIntegrity)
		}

		children, err := s.folderRepo.FindChildrenByParentIDs(frontier)
		if err != nil {
			return nil, xerr.NewCodeError(xerr.DatabaseErrorCode, err)
		}

		frontier = frontier[:0]
		for _, child := range children {
			if _, seen := visited[child.ID]; seen {
				logger.Error("collectSubtree: 目录树存在环", zap.Uint64("folderID", child.ID))
				return nil, xerr.NewCodeError(xerr.DataIntegrityErrorCode, xerr.ErrDataIntegrity)
			}
			visited[child.ID] = struct{}{}
			all = append(all, child.ID)
			frontier = append(frontier, child.ID)
		}
	}
	return all, nil
}

// isDescendantOf 判断 candidate 是否位于 ancestorID 的子树内(含相等)
func (s *folderService) isDescendantOf(candidate uint64, ancestorID uint64) (bool, error) {
	visited := make(map[uint64]struct{})
	current := &candidate

	for depth := 0; current != nil; depth++ {
		if depth >= maxTreeDepth {
			return false, xerr.NewCodeError(xerr.DataIntegrityErrorCode, xerr.ErrDataIntegrity)
		}
		if *current == ancestorID {
			return true, nil
		}
		if _, seen := visited[*current]; seen {
			return false, xerr.NewCodeError(xerr.DataIntegrityErrorCode, xerr.ErrDataIntegrity)
		}
		visited[*current] = struct{}{}

		folder, err := s.folderRepo.FindByID(*current)
		if err != nil {
			return false, xerr.NewCodeError(xerr.DatabaseErrorCode, err)
		}
		if folder == nil {
			return false, nil
		}
		current = folder.ParentID
	}
	return false, nil
}

// checkFolderNameFree 同级(文件和文件夹都算)不允许重名
func (s *folderService) checkFolderNameFree(ownerID uint64, parentID *uint64, name string) error {
	dupFolder, err := s.folderRepo.FindDuplicateName(ownerID, parentID, name)
	if err != nil {
		return xerr.NewCodeError(xerr.DatabaseErrorCode, err)
	}
	if dupFolder != nil {
		return xerr.NewCodeError(xerr.DuplicateNameCode, xerr.ErrDuplicateName)
	}
	dupFile, err := s.fileRepo.FindDuplicateName(ownerID, parentID, name)
	if err != nil {
		return xerr.NewCodeError(xerr.DatabaseErrorCode, err)
	}
	if dupFile != nil {
		return xerr.NewCodeError(xerr.DuplicateNameCode, xerr.ErrDuplicateName)
	}
	return nil
}
