package access

import (
	"context"

	"github.com/kxrica/go-skyvault/internal/models"
	"github.com/kxrica/go-skyvault/internal/pkg/logger"
	"github.com/kxrica/go-skyvault/internal/pkg/xerr"
	"github.com/kxrica/go-skyvault/internal/repositories"
	"go.uber.org/zap"
)

// maxTreeDepth 目录树遍历的深度上限
// 正常数据远达不到这个深度,达到说明 parent 链出现了环或脏数据
const maxTreeDepth = 1000

// Resolver 统一的条目访问权限解析
// 判定顺序: 所有者 -> 条目上的直接分享 -> 逐级向上检查祖先文件夹
// 祖先文件夹上的分享会被所有后代条目继承
type Resolver interface {
	// CheckFileAccess 校验用户对文件是否具备所需权限,通过时返回文件实体
	CheckFileAccess(ctx context.Context, userID, fileID uint64, required models.Permission) (*models.File, error)
	// CheckFolderAccess 校验用户对文件夹是否具备所需权限,通过时返回文件夹实体
	CheckFolderAccess(ctx context.Context, userID, folderID uint64, required models.Permission) (*models.Folder, error)
	// CheckAccess 按条目引用分发到文件或文件夹的校验
	CheckAccess(ctx context.Context, userID uint64, item models.ItemRef, required models.Permission) error
}

type resolver struct {
	fileRepo   repositories.FileRepository
	folderRepo repositories.FolderRepository
	shareRepo  repositories.ShareRepository
}

var _ Resolver = (*resolver)(nil)

// NewResolver 创建一个新的 Resolver 实例
func NewResolver(
	fileRepo repositories.FileRepository,
	folderRepo repositories.FolderRepository,
	shareRepo repositories.ShareRepository,
) Resolver {
	return &resolver{
		fileRepo:   fileRepo,
		folderRepo: folderRepo,
		shareRepo:  shareRepo,
	}
}

func (r *resolver) CheckFileAccess(ctx context.Context, userID, fileID uint64, required models.Permission) (*models.File, error) {
	// 1. 文件必须存在且未进回收站,已删除的条目对外表现为不存在
	file, err := r.fileRepo.FindByID(fileID)
	if err != nil {
		return nil, xerr.NewCodeError(xerr.DatabaseErrorCode, err)
	}
	if file == nil || file.IsDeleted {
		return nil, xerr.NewCodeError(xerr.FileNotFoundCode, xerr.ErrFileNotFound)
	}

	// 2. 所有者拥有全部权限
	if file.UserID == userID {
		return file, nil
	}

	// 3. 文件上的直接分享
	granted, err := r.sharedWith(file.Ref(), userID, required)
	if err != nil {
		return nil, err
	}
	if granted {
		return file, nil
	}

	// 4. 沿所在文件夹链向上找继承的权限
	granted, err = r.walkAncestors(userID, file.FolderID, required)
	if err != nil {
		return nil, err
	}
	if granted {
		return file, nil
	}

	return nil, xerr.NewCodeError(xerr.PermissionDeniedCode, xerr.ErrPermissionDenied)
}

func (r *resolver) CheckFolderAccess(ctx context.Context, userID, folderID uint64, required models.Permission) (*models.Folder, error) {
	folder, err := r.folderRepo.FindByID(folderID)
	if err != nil {
		return nil, xerr.NewCodeError(xerr.DatabaseErrorCode, err)
	}
	if folder == nil || folder.IsDeleted {
		return nil, xerr.NewCodeError(xerr.FolderNotFoundCode, xerr.ErrFolderNotFound)
	}

	if folder.UserID == userID {
		return folder, nil
	}

	granted, err := r.sharedWith(folder.Ref(), userID, required)
	if err != nil {
		return nil, err
	}
	if granted {
		return folder, nil
	}

	granted, err = r.walkAncestors(userID, folder.ParentID, required)
	if err != nil {
		return nil, err
	}
	if granted {
		return folder, nil
	}

	return nil, xerr.NewCodeError(xerr.PermissionDeniedCode, xerr.ErrPermissionDenied)
}

func (r *resolver) CheckAccess(ctx context.Context, userID uint64, item models.ItemRef, required models.Permission) error {
	switch item.Kind {
	case models.KindFile:
		_, err := r.CheckFileAccess(ctx, userID, item.ID, required)
		return err
	case models.KindFolder:
		_, err := r.CheckFolderAccess(ctx, userID, item.ID, required)
		return err
	default:
		return xerr.NewCodeError(xerr.InvalidItemKindCode, xerr.ErrInvalidItemKind)
	}
}

// sharedWith 检查条目上是否有授予该用户所需权限的直接分享
func (r *resolver) sharedWith(item models.ItemRef, userID uint64, required models.Permission) (bool, error) {
	share, err := r.shareRepo.FindByItemAndUser(item, userID)
	if err != nil {
		return false, xerr.NewCodeError(xerr.DatabaseErrorCode, err)
	}
	if share == nil {
		return false, nil
	}
	return share.Permission.Satisfies(required), nil
}

// walkAncestors 从 startID 开始逐级向上遍历文件夹链
// 任一祖先归该用户所有或对该用户有满足要求的分享即放行
// 用迭代加 visited 集合防环,深度超限视为数据损坏
func (r *resolver) walkAncestors(userID uint64, startID *uint64, required models.Permission) (bool, error) {
	visited := make(map[uint64]struct{})
	current := startID

	for depth := 0; current != nil; depth++ {
		if depth >= maxTreeDepth {
			logger.Error("walkAncestors: 目录树深度超限,可能存在环", zap.Uint64("folderID", *current))
			return false, xerr.NewCodeError(xerr.DataIntegrityErrorCode, xerr.ErrDataIntegrity)
		}
		if _, seen := visited[*current]; seen {
			logger.Error("walkAncestors: 目录树存在环", zap.Uint64("folderID", *current))
			return false, xerr.NewCodeError(xerr.DataIntegrityErrorCode, xerr.ErrDataIntegrity)
		}
		visited[*current] = struct{}{}

		folder, err := r.folderRepo.FindByID(*current)
		if err != nil {
			return false, xerr.NewCodeError(xerr.DatabaseErrorCode, err)
		}
		if folder == nil || folder.IsDeleted {
			// 祖先已删除,继承链就此断开
			return false, nil
		}

		if folder.UserID == userID {
			return true, nil
		}

		granted, err := r.sharedWith(folder.Ref(), userID, required)
		if err != nil {
			return false, err
		}
		if granted {
			return true, nil
		}

		current = folder.ParentID
	}

	return false, nil
}
