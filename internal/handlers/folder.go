package handlers

import (
	"net/http"

	"github.com/kxrica/go-skyvault/internal/pkg/utils"
	"github.com/kxrica/go-skyvault/internal/pkg/xerr"
	"github.com/kxrica/go-skyvault/internal/services/explorer"
	"github.com/gin-gonic/gin"
)

type FolderHandler struct {
	folderService explorer.FolderService
}

func NewFolderHandler(folderService explorer.FolderService) *FolderHandler {
	return &FolderHandler{folderService: folderService}
}

type CreateFolderRequest struct {
	Name     string  `json:"name" binding:"required"`
	ParentID *uint64 `json:"parent_id"`
}

type RenameRequest struct {
	NewName string `json:"new_name" binding:"required"`
}

type MoveRequest struct {
	NewParentID *uint64 `json:"new_parent_id"`
}

// CreateFolder 在指定目录下创建文件夹
func (h *FolderHandler) CreateFolder(c *gin.Context) {
	userID, ok := utils.GetUserIDFromContext(c)
	if !ok {
		return
	}

	var req CreateFolderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		xerr.Error(c, http.StatusBadRequest, xerr.InvalidParamsCode, "请求参数解析失败: "+err.Error())
		return
	}

	folder, err := h.folderService.CreateFolder(c.Request.Context(), userID, req.ParentID, req.Name)
	if err != nil {
		respondServiceError(c, err, "创建文件夹失败")
		return
	}

	xerr.Success(c, http.StatusCreated, "文件夹创建成功", folder)
}

// ListItems 列出目录内容
// folder_id 缺省表示根目录;include_shared=true 时根目录额外返回分享给我的条目
func (h *FolderHandler) ListItems(c *gin.Context) {
	userID, ok := utils.GetUserIDFromContext(c)
	if !ok {
		return
	}

	folderID, ok := parseOptionalIDQuery(c, "folder_id")
	if !ok {
		return
	}
	includeShared := c.Query("include_shared") == "true"

	listing, err := h.folderService.ListItems(c.Request.Context(), userID, folderID, includeShared)
	if err != nil {
		respondServiceError(c, err, "获取目录内容失败")
		return
	}

	xerr.Success(c, http.StatusOK, "获取目录内容成功", listing)
}

// RenameFolder 重命名文件夹
func (h *FolderHandler) RenameFolder(c *gin.Context) {
	userID, ok := utils.GetUserIDFromContext(c)
	if !ok {
		return
	}
	folderID, ok := parseIDParam(c, "folder_id")
	if !ok {
		return
	}

	var req RenameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		xerr.Error(c, http.StatusBadRequest, xerr.InvalidParamsCode, "请求参数解析失败: "+err.Error())
		return
	}

	folder, err := h.folderService.RenameFolder(c.Request.Context(), userID, folderID, req.NewName)
	if err != nil {
		respondServiceError(c, err, "重命名文件夹失败")
		return
	}

	xerr.Success(c, http.StatusOK, "重命名成功", folder)
}

// MoveFolder 移动文件夹到新的父目录
func (h *FolderHandler) MoveFolder(c *gin.Context) {
	userID, ok := utils.GetUserIDFromContext(c)
	if !ok {
		return
	}
	folderID, ok := parseIDParam(c, "folder_id")
	if !ok {
		return
	}

	var req MoveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		xerr.Error(c, http.StatusBadRequest, xerr.InvalidParamsCode, "请求参数解析失败: "+err.Error())
		return
	}

	folder, err := h.folderService.MoveFolder(c.Request.Context(), userID, folderID, req.NewParentID)
	if err != nil {
		respondServiceError(c, err, "移动文件夹失败")
		return
	}

	xerr.Success(c, http.StatusOK, "移动成功", folder)
}

// DeleteFolder 软删除文件夹及其全部子孙
func (h *FolderHandler) DeleteFolder(c *gin.Context) {
	userID, ok := utils.GetUserIDFromContext(c)
	if !ok {
		return
	}
	folderID, ok := parseIDParam(c, "folder_id")
	if !ok {
		return
	}

	if err := h.folderService.DeleteFolder(c.Request.Context(), userID, folderID); err != nil {
		respondServiceError(c, err, "删除文件夹失败")
		return
	}

	c.Status(http.StatusNoContent)
}

// RestoreFolder 从回收站恢复文件夹
func (h *FolderHandler) RestoreFolder(c *gin.Context) {
	userID, ok := utils.GetUserIDFromContext(c)
	if !ok {
		return
	}
	folderID, ok := parseIDParam(c, "folder_id")
	if !ok {
		return
	}

	folder, err := h.folderService.RestoreFolder(c.Request.Context(), userID, folderID)
	if err != nil {
		respondServiceError(c, err, "恢复文件夹失败")
		return
	}

	xerr.Success(c, http.StatusOK, "恢复成功", folder)
}

// ListRecycleBin 列出回收站内容
func (h *FolderHandler) ListRecycleBin(c *gin.Context) {
	userID, ok := utils.GetUserIDFromContext(c)
	if !ok {
		return
	}

	listing, err := h.folderService.ListRecycleBin(c.Request.Context(), userID)
	if err != nil {
		respondServiceError(c, err, "获取回收站内容失败")
		return
	}

	xerr.Success(c, http.StatusOK, "获取回收站内容成功", listing)
}
