package handlers

import (
	"net/http"

	"github.com/kxrica/go-skyvault/internal/models"
	"github.com/kxrica/go-skyvault/internal/pkg/utils"
	"github.com/kxrica/go-skyvault/internal/pkg/xerr"
	"github.com/kxrica/go-skyvault/internal/services/explorer"
	"github.com/kxrica/go-skyvault/internal/services/share"
	"github.com/gin-gonic/gin"
)

type ShareHandler struct {
	shareService share.ShareService
	fileService  explorer.FileService
}

func NewShareHandler(shareService share.ShareService, fileService explorer.FileService) *ShareHandler {
	return &ShareHandler{
		shareService: shareService,
		fileService:  fileService,
	}
}

type ShareWithUserRequest struct {
	ItemKind    string `json:"item_kind" binding:"required"`
	ItemID      uint64 `json:"item_id" binding:"required"`
	TargetEmail string `json:"target_email" binding:"required,email"`
	Permission  string `json:"permission" binding:"required"`
}

type CreateLinkRequest struct {
	ItemKind         string  `json:"item_kind" binding:"required"`
	ItemID           uint64  `json:"item_id" binding:"required"`
	Password         *string `json:"password"`
	ExpiresInMinutes *int    `json:"expires_in_minutes"`
	MaxAccessCount   *int64  `json:"max_access_count"`
	Permission       string  `json:"permission"`
}

type ResolveLinkRequest struct {
	Password *string `json:"password"`
}

// ShareWithUser 把条目分享给指定邮箱的用户
func (h *ShareHandler) ShareWithUser(c *gin.Context) {
	userID, ok := utils.GetUserIDFromContext(c)
	if !ok {
		return
	}

	var req ShareWithUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		xerr.Error(c, http.StatusBadRequest, xerr.InvalidParamsCode, "请求参数解析失败: "+err.Error())
		return
	}

	item, ok := parseItemRef(c, req.ItemKind, req.ItemID)
	if !ok {
		return
	}
	permission := models.Permission(req.Permission)
	if !permission.Valid() {
		xerr.Error(c, http.StatusBadRequest, xerr.InvalidParamsCode, "无效的 permission")
		return
	}

	record, err := h.shareService.ShareWithUser(c.Request.Context(), userID, item, req.TargetEmail, permission)
	if err != nil {
		respondServiceError(c, err, "创建分享失败")
		return
	}

	xerr.Success(c, http.StatusCreated, "分享成功", record)
}

// RevokeShare 撤销一条用户分享
func (h *ShareHandler) RevokeShare(c *gin.Context) {
	userID, ok := utils.GetUserIDFromContext(c)
	if !ok {
		return
	}
	shareID, ok := parseIDParam(c, "share_id")
	if !ok {
		return
	}

	if err := h.shareService.RevokeShare(c.Request.Context(), userID, shareID); err != nil {
		respondServiceError(c, err, "撤销分享失败")
		return
	}

	c.Status(http.StatusNoContent)
}

// CreatePublicLink 为条目创建公开分享链接
func (h *ShareHandler) CreatePublicLink(c *gin.Context) {
	userID, ok := utils.GetUserIDFromContext(c)
	if !ok {
		return
	}

	var req CreateLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		xerr.Error(c, http.StatusBadRequest, xerr.InvalidParamsCode, "请求参数解析失败: "+err.Error())
		return
	}

	item, ok := parseItemRef(c, req.ItemKind, req.ItemID)
	if !ok {
		return
	}

	// 公开链接默认只读
	permission := models.PermissionViewer
	if req.Permission != "" {
		permission = models.Permission(req.Permission)
		if !permission.Valid() {
			xerr.Error(c, http.StatusBadRequest, xerr.InvalidParamsCode, "无效的 permission")
			return
		}
	}

	link, err := h.shareService.CreatePublicLink(c.Request.Context(), userID, item, share.CreateLinkOptions{
		Password:         req.Password,
		ExpiresInMinutes: req.ExpiresInMinutes,
		MaxAccessCount:   req.MaxAccessCount,
		Permission:       permission,
	})
	if err != nil {
		respondServiceError(c, err, "创建分享链接失败")
		return
	}

	xerr.Success(c, http.StatusCreated, "分享链接创建成功", gin.H{
		"link":      link,
		"share_url": "/share/" + link.Token,
	})
}

// RevokePublicLink 撤销一条公开分享链接
func (h *ShareHandler) RevokePublicLink(c *gin.Context) {
	userID, ok := utils.GetUserIDFromContext(c)
	if !ok {
		return
	}
	linkID, ok := parseIDParam(c, "link_id")
	if !ok {
		return
	}

	if err := h.shareService.RevokePublicLink(c.Request.Context(), userID, linkID); err != nil {
		respondServiceError(c, err, "撤销分享链接失败")
		return
	}

	c.Status(http.StatusNoContent)
}

// ResolvePublicLink 访问公开分享链接
// 每次成功访问消耗一次访问配额
func (h *ShareHandler) ResolvePublicLink(c *gin.Context) {
	token := c.Param("token")
	if token == "" {
		xerr.Error(c, http.StatusBadRequest, xerr.InvalidParamsCode, "分享Token不能为空")
		return
	}

	var req ResolveLinkRequest
	// body 可为空,密码也可以通过 query 提供
	_ = c.ShouldBindJSON(&req)
	if req.Password == nil {
		if q := c.Query("password"); q != "" {
			req.Password = &q
		}
	}

	link, err := h.shareService.ResolvePublicLink(c.Request.Context(), token, req.Password)
	if err != nil {
		respondServiceError(c, err, "访问分享链接失败")
		return
	}

	xerr.Success(c, http.StatusOK, "访问成功", link)
}

// DownloadPublicLink 通过公开链接下载文件,重定向到预签名 URL
// 文件夹链接不支持直接下载,请先解析后按条目访问
func (h *ShareHandler) DownloadPublicLink(c *gin.Context) {
	token := c.Param("token")
	if token == "" {
		xerr.Error(c, http.StatusBadRequest, xerr.InvalidParamsCode, "分享Token不能为空")
		return
	}

	var password *string
	if q := c.Query("password"); q != "" {
		password = &q
	}

	link, err := h.shareService.ResolvePublicLink(c.Request.Context(), token, password)
	if err != nil {
		respondServiceError(c, err, "访问分享链接失败")
		return
	}

	if link.ItemKind != models.KindFile {
		xerr.Error(c, http.StatusBadRequest, xerr.InvalidParamsCode, "文件夹链接不支持直接下载")
		return
	}

	presignedURL, err := h.fileService.PublicDownloadURL(c.Request.Context(), link.ItemID)
	if err != nil {
		respondServiceError(c, err, "获取下载链接失败")
		return
	}

	c.Redirect(http.StatusFound, presignedURL)
}

// ListItemShares 列出某个条目上的全部分享(用户分享和公开链接)
func (h *ShareHandler) ListItemShares(c *gin.Context) {
	userID, ok := utils.GetUserIDFromContext(c)
	if !ok {
		return
	}
	itemID, ok := parseIDParam(c, "item_id")
	if !ok {
		return
	}
	item, ok := parseItemRef(c, c.Param("item_kind"), itemID)
	if !ok {
		return
	}

	shares, err := h.shareService.ListItemShares(c.Request.Context(), userID, item)
	if err != nil {
		respondServiceError(c, err, "获取条目分享列表失败")
		return
	}

	xerr.Success(c, http.StatusOK, "获取条目分享列表成功", shares)
}

// ListShares 当前用户的分享总览
func (h *ShareHandler) ListShares(c *gin.Context) {
	userID, ok := utils.GetUserIDFromContext(c)
	if !ok {
		return
	}

	listing, err := h.shareService.ListShares(c.Request.Context(), userID)
	if err != nil {
		respondServiceError(c, err, "获取分享列表失败")
		return
	}

	xerr.Success(c, http.StatusOK, "获取分享列表成功", listing)
}
