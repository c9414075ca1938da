package share

import (
	"context"
	"time"

	"github.com/kxrica/go-skyvault/internal/config"
	"github.com/kxrica/go-skyvault/internal/models"
	"github.com/kxrica/go-skyvault/internal/pkg/logger"
	"github.com/kxrica/go-skyvault/internal/pkg/utils"
	"github.com/kxrica/go-skyvault/internal/pkg/xerr"
	"github.com/kxrica/go-skyvault/internal/repositories"
	"github.com/kxrica/go-skyvault/internal/services/access"
	"go.uber.org/zap"
)

// CreateLinkOptions 创建公开链接时的可选项
type CreateLinkOptions struct {
	Password         *string           // 明文密码,存储前做 bcrypt 哈希
	ExpiresInMinutes *int              // 相对有效期,nil 表示永久有效
	MaxAccessCount   *int64            // 访问次数上限,nil 表示不限
	Permission       models.Permission // 为空时默认 viewer
}

// ItemShares 单个条目上的全部分享
type ItemShares struct {
	Shares []models.Share     `json:"shares"`
	Links  []models.LinkShare `json:"links"`
}

// ShareListing 用户维度的分享总览
type ShareListing struct {
	SharedByMe   []models.Share     `json:"shared_by_me"`
	SharedWithMe []models.Share     `json:"shared_with_me"`
	Links        []models.LinkShare `json:"links"`
}

// ShareService 定义了分享服务需要实现的接口
// 创建和查看分享要求对条目具备 editor 权限(含通过祖先文件夹继承的),
// 撤销则只允许分享记录的创建者
type ShareService interface {
	// ShareWithUser 把条目分享给指定邮箱的用户,重复分享时原地更新权限
	ShareWithUser(ctx context.Context, userID uint64, item models.ItemRef, targetEmail string, permission models.Permission) (*models.Share, error)
	// RevokeShare 撤销一条用户分享
	RevokeShare(ctx context.Context, userID uint64, shareID uint64) error
	// CreatePublicLink 为条目创建公开分享链接
	CreatePublicLink(ctx context.Context, userID uint64, item models.ItemRef, opts CreateLinkOptions) (*models.LinkShare, error)
	// ResolvePublicLink 解析访问令牌并消耗一次访问配额
	ResolvePublicLink(ctx context.Context, token string, providedPassword *string) (*models.LinkShare, error)
	// RevokePublicLink 撤销一条公开链接
	RevokePublicLink(ctx context.Context, userID uint64, linkID uint64) error
	// ListItemShares 列出单个条目上的用户分享和链接分享
	ListItemShares(ctx context.Context, userID uint64, item models.ItemRef) (*ItemShares, error)
	// ListShares 列出用户相关的全部分享
	ListShares(ctx context.Context, userID uint64) (*ShareListing, error)
}

type shareService struct {
	shareRepo  repositories.ShareRepository
	linkRepo   repositories.LinkShareRepository
	fileRepo   repositories.FileRepository
	folderRepo repositories.FolderRepository
	userRepo   repositories.UserRepository
	resolver   access.Resolver
	mailer     *utils.EmailSender
	cfg        *config.Config
}

var _ ShareService = (*shareService)(nil)

// NewShareService 创建一个新的 ShareService 实例
func NewShareService(
	shareRepo repositories.ShareRepository,
	linkRepo repositories.LinkShareRepository,
	fileRepo repositories.FileRepository,
	folderRepo repositories.FolderRepository,
	userRepo repositories.UserRepository,
	resolver access.Resolver,
	mailer *utils.EmailSender,
	cfg *config.Config,
) ShareService {
	return &shareService{
		shareRepo:  shareRepo,
		linkRepo:   linkRepo,
		fileRepo:   fileRepo,
		folderRepo: folderRepo,
		userRepo:   userRepo,
		resolver:   resolver,
		mailer:     mailer,
		cfg:        cfg,
	}
}

// ShareWithUser 处理用户对用户分享的业务逻辑
func (s *shareService) ShareWithUser(ctx context.Context, userID uint64, item models.ItemRef, targetEmail string, permission models.Permission) (*models.Share, error) {
	// 1. 参数校验
	if !permission.Valid() {
		return nil, xerr.NewCodeError(xerr.InvalidParamsCode, xerr.ErrInvalidParams)
	}

	// 2. 分享者必须对条目具备 editor 权限
	if err := s.resolver.CheckAccess(ctx, userID, item, models.PermissionEditor); err != nil {
		return nil, err
	}

	// 3. 被分享者必须存在,且不能分享给自己
	target, err := s.userRepo.GetUserByEmail(targetEmail)
	if err != nil {
		return nil, xerr.NewCodeError(xerr.DatabaseErrorCode, err)
	}
	if target == nil {
		return nil, xerr.NewCodeError(xerr.UserNotFoundCode, xerr.ErrUserNotFound)
	}
	if target.ID == userID {
		return nil, xerr.NewCodeError(xerr.InvalidShareTargetCode, xerr.ErrInvalidShareTarget)
	}

	// 4. 落库,同一 (条目,用户) 的重复分享会更新权限而不是新建
	newShare := &models.Share{
		ItemKind:     item.Kind,
		ItemID:       item.ID,
		OwnerID:      userID,
		SharedWithID: target.ID,
		Permission:   permission,
	}
	if err := s.shareRepo.Upsert(newShare); err != nil {
		logger.Error("ShareWithUser: 创建分享记录失败", zap.Error(err))
		return nil, xerr.NewCodeError(xerr.DatabaseErrorCode, err)
	}

	// 5. 尽力而为地通知被分享者,失败不影响分享本身
	if s.mailer.Enabled() {
		itemName, nameErr := s.itemName(item)
		owner, ownerErr := s.userRepo.GetUserByID(userID)
		if nameErr == nil && ownerErr == nil && owner != nil {
			if mailErr := s.mailer.SendShareNotification(target.Email, owner.Username, itemName, string(permission)); mailErr != nil {
				logger.Warn("ShareWithUser: 分享通知邮件发送失败", zap.Uint64("targetUserID", target.ID), zap.Error(mailErr))
			}
		}
	}

	logger.Info("ShareWithUser: 分享创建成功",
		zap.Uint64("userID", userID),
		zap.Uint64("targetUserID", target.ID),
		zap.String("itemKind", string(item.Kind)),
		zap.Uint64("itemID", item.ID))
	return newShare, nil
}

// RevokeShare 撤销用户分享,只有创建该分享的用户可以撤销
func (s *shareService) RevokeShare(ctx context.Context, userID uint64, shareID uint64) error {
	record, err := s.shareRepo.FindByID(shareID)
	if err != nil {
		return xerr.NewCodeError(xerr.DatabaseErrorCode, err)
	}
	if record == nil {
		return xerr.NewCodeError(xerr.ShareNotFoundCode, xerr.ErrShareNotFound)
	}
	if record.OwnerID != userID {
		return xerr.NewCodeError(xerr.PermissionDeniedCode, xerr.ErrPermissionDenied)
	}

	if err := s.shareRepo.Delete(shareID); err != nil {
		logger.Error("RevokeShare: 删除分享记录失败", zap.Uint64("shareID", shareID), zap.Error(err))
		return xerr.NewCodeError(xerr.DatabaseErrorCode, err)
	}
	logger.Info("RevokeShare: 分享已撤销", zap.Uint64("shareID", shareID), zap.Uint64("userID", userID))
	return nil
}

// CreatePublicLink 处理创建公开链接的业务逻辑
func (s *shareService) CreatePublicLink(ctx context.Context, userID uint64, item models.ItemRef, opts CreateLinkOptions) (*models.LinkShare, error) {
	if err := s.resolver.CheckAccess(ctx, userID, item, models.PermissionEditor); err != nil {
		return nil, err
	}

	permission := opts.Permission
	if permission == "" {
		permission = models.PermissionViewer
	}
	if !permission.Valid() {
		return nil, xerr.NewCodeError(xerr.InvalidParamsCode, xerr.ErrInvalidParams)
	}

	token, err := utils.GenerateShareToken()
	if err != nil {
		logger.Error("CreatePublicLink: 生成分享令牌失败", zap.Error(err))
		return nil, xerr.NewCodeError(xerr.InternalServerErrorCode, err)
	}

	link := &models.LinkShare{
		ItemKind:       item.Kind,
		ItemID:         item.ID,
		OwnerID:        userID,
		Token:          token,
		MaxAccessCount: opts.MaxAccessCount,
		Permission:     permission,
	}

	// 密码只存 bcrypt 哈希
	if opts.Password != nil && *opts.Password != "" {
		hashed, err := utils.HashPassword(*opts.Password)
		if err != nil {
			return nil, xerr.NewCodeError(xerr.InternalServerErrorCode, err)
		}
		link.PasswordHash = &hashed
	}

	if opts.ExpiresInMinutes != nil && *opts.ExpiresInMinutes > 0 {
		expiresAt := time.Now().Add(time.Duration(*opts.ExpiresInMinutes) * time.Minute)
		link.ExpiresAt = &expiresAt
	}

	if err := s.linkRepo.Create(link); err != nil {
		return nil, xerr.NewCodeError(xerr.DatabaseErrorCode, err)
	}

	logger.Info("CreatePublicLink: 公开链接创建成功",
		zap.Uint64("linkID", link.ID),
		zap.Uint64("userID", userID),
		zap.String("itemKind", string(item.Kind)),
		zap.Uint64("itemID", item.ID))
	return link, nil
}

// ResolvePublicLink 解析公开链接并消耗一次访问配额
// 校验顺序是固定的: 存在 -> 过期 -> 次数上限 -> 密码 -> 原子计数
// 密码错误不消耗配额,只有全部校验通过才计一次访问
func (s *shareService) ResolvePublicLink(ctx context.Context, token string, providedPassword *string) (*models.LinkShare, error) {
	link, err := s.linkRepo.FindByToken(token)
	if err != nil {
		return nil, xerr.NewCodeError(xerr.DatabaseErrorCode, err)
	}
	if link == nil {
		return nil, xerr.NewCodeError(xerr.LinkNotFoundCode, xerr.ErrLinkNotFound)
	}

	if link.Expired(time.Now()) {
		return nil, xerr.NewCodeError(xerr.LinkExpiredCode, xerr.ErrLinkExpired)
	}

	// 快速失败,并发下的最终防线在 ConsumeAccess
	if link.LimitReached() {
		return nil, xerr.NewCodeError(xerr.LinkLimitReachedCode, xerr.ErrLinkLimitReached)
	}

	if link.PasswordHash != nil {
		if providedPassword == nil || *providedPassword == "" {
			return nil, xerr.NewCodeError(xerr.LinkPasswordRequiredCode, xerr.ErrLinkPasswordRequired)
		}
		if !utils.CheckPasswordHash(*providedPassword, *link.PasswordHash) {
			return nil, xerr.NewCodeError(xerr.LinkPasswordIncorrectCode, xerr.ErrLinkPasswordIncorrect)
		}
	}

	// 被分享的条目可能在链接创建后被删除
	if _, err := s.itemName(link.Ref()); err != nil {
		return nil, err
	}

	consumed, err := s.linkRepo.ConsumeAccess(link.ID)
	if err != nil {
		return nil, xerr.NewCodeError(xerr.DatabaseErrorCode, err)
	}
	if !consumed {
		return nil, xerr.NewCodeError(xerr.LinkLimitReachedCode, xerr.ErrLinkLimitReached)
	}
	link.AccessCount++

	logger.Info("ResolvePublicLink: 链接访问成功", zap.Uint64("linkID", link.ID), zap.Int64("accessCount", link.AccessCount))
	return link, nil
}

// RevokePublicLink 撤销公开链接,只有创建者可以撤销
func (s *shareService) RevokePublicLink(ctx context.Context, userID uint64, linkID uint64) error {
	link, err := s.linkRepo.FindByID(linkID)
	if err != nil {
		return xerr.NewCodeError(xerr.DatabaseErrorCode, err)
	}
	if link == nil {
		return xerr.NewCodeError(xerr.LinkNotFoundCode, xerr.ErrLinkNotFound)
	}
	if link.OwnerID != userID {
		return xerr.NewCodeError(xerr.PermissionDeniedCode, xerr.ErrPermissionDenied)
	}

	if err := s.linkRepo.Delete(linkID); err != nil {
		return xerr.NewCodeError(xerr.DatabaseErrorCode, err)
	}
	logger.Info("RevokePublicLink: 公开链接已撤销", zap.Uint64("linkID", linkID), zap.Uint64("userID", userID))
	return nil
}

// ListItemShares 列出单个条目上的分享,要求对条目具备 editor 权限
func (s *shareService) ListItemShares(ctx context.Context, userID uint64, item models.ItemRef) (*ItemShares, error) {
	if err := s.resolver.CheckAccess(ctx, userID, item, models.PermissionEditor); err != nil {
		return nil, err
	}

	shares, err := s.shareRepo.FindByItem(item)
	if err != nil {
		return nil, xerr.NewCodeError(xerr.DatabaseErrorCode, err)
	}

	links, err := s.linkRepo.FindByItem(item)
	if err != nil {
		return nil, xerr.NewCodeError(xerr.DatabaseErrorCode, err)
	}

	return &ItemShares{Shares: shares, Links: links}, nil
}

func (s *shareService) ListShares(ctx context.Context, userID uint64) (*ShareListing, error) {
	byMe, err := s.shareRepo.FindByOwner(userID)
	if err != nil {
		return nil, xerr.NewCodeError(xerr.DatabaseErrorCode, err)
	}
	withMe, err := s.shareRepo.FindBySharedWith(userID)
	if err != nil {
		return nil, xerr.NewCodeError(xerr.DatabaseErrorCode, err)
	}
	links, err := s.linkRepo.FindByOwner(userID)
	if err != nil {
		return nil, xerr.NewCodeError(xerr.DatabaseErrorCode, err)
	}
	return &ShareListing{
		SharedByMe:   byMe,
		SharedWithMe: withMe,
		Links:        links,
	}, nil
}

// itemName 校验条目存在且未删除,返回条目名称
func (s *shareService) itemName(item models.ItemRef) (string, error) {
	switch item.Kind {
	case models.KindFile:
		file, err := s.fileRepo.FindByID(item.ID)
		if err != nil {
			return "", xerr.NewCodeError(xerr.DatabaseErrorCode, err)
		}
		if file == nil || file.IsDeleted {
			return "", xerr.NewCodeError(xerr.FileNotFoundCode, xerr.ErrFileNotFound)
		}
		return file.Name, nil
	case models.KindFolder:
		folder, err := s.folderRepo.FindByID(item.ID)
		if err != nil {
			return "", xerr.NewCodeError(xerr.DatabaseErrorCode, err)
		}
		if folder == nil || folder.IsDeleted {
			return "", xerr.NewCodeError(xerr.FolderNotFoundCode, xerr.ErrFolderNotFound)
		}
		return folder.Name, nil
	default:
		return "", xerr.NewCodeError(xerr.InvalidItemKindCode, xerr.ErrInvalidItemKind)
	}
}
