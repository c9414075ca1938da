package handlers

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/kxrica/go-skyvault/internal/pkg/logger"
	"github.com/kxrica/go-skyvault/internal/pkg/utils"
	"github.com/kxrica/go-skyvault/internal/pkg/xerr"
	"github.com/kxrica/go-skyvault/internal/services/explorer"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type FileHandler struct {
	fileService explorer.FileService
}

func NewFileHandler(fileService explorer.FileService) *FileHandler {
	return &FileHandler{fileService: fileService}
}

// GetFile 获取单个文件的元信息
func (h *FileHandler) GetFile(c *gin.Context) {
	userID, ok := utils.GetUserIDFromContext(c)
	if !ok {
		return
	}
	fileID, ok := parseIDParam(c, "file_id")
	if !ok {
		return
	}

	file, err := h.fileService.GetFile(c.Request.Context(), userID, fileID)
	if err != nil {
		respondServiceError(c, err, "获取文件信息失败")
		return
	}

	xerr.Success(c, http.StatusOK, "获取文件信息成功", file)
}

// RenameFile 重命名文件
func (h *FileHandler) RenameFile(c *gin.Context) {
	userID, ok := utils.GetUserIDFromContext(c)
	if !ok {
		return
	}
	fileID, ok := parseIDParam(c, "file_id")
	if !ok {
		return
	}

	var req RenameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		xerr.Error(c, http.StatusBadRequest, xerr.InvalidParamsCode, "请求参数解析失败: "+err.Error())
		return
	}

	file, err := h.fileService.RenameFile(c.Request.Context(), userID, fileID, req.NewName)
	if err != nil {
		respondServiceError(c, err, "重命名文件失败")
		return
	}

	xerr.Success(c, http.StatusOK, "重命名成功", file)
}

// MoveFile 移动文件到新目录
func (h *FileHandler) MoveFile(c *gin.Context) {
	userID, ok := utils.GetUserIDFromContext(c)
	if !ok {
		return
	}
	fileID, ok := parseIDParam(c, "file_id")
	if !ok {
		return
	}

	var req MoveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		xerr.Error(c, http.StatusBadRequest, xerr.InvalidParamsCode, "请求参数解析失败: "+err.Error())
		return
	}

	file, err := h.fileService.MoveFile(c.Request.Context(), userID, fileID, req.NewParentID)
	if err != nil {
		respondServiceError(c, err, "移动文件失败")
		return
	}

	xerr.Success(c, http.StatusOK, "移动成功", file)
}

// DeleteFile 软删除文件(进入回收站)
func (h *FileHandler) DeleteFile(c *gin.Context) {
	userID, ok := utils.GetUserIDFromContext(c)
	if !ok {
		return
	}
	fileID, ok := parseIDParam(c, "file_id")
	if !ok {
		return
	}

	if err := h.fileService.DeleteFile(c.Request.Context(), userID, fileID); err != nil {
		respondServiceError(c, err, "删除文件失败")
		return
	}

	c.Status(http.StatusNoContent)
}

// RestoreFile 从回收站恢复文件
func (h *FileHandler) RestoreFile(c *gin.Context) {
	userID, ok := utils.GetUserIDFromContext(c)
	if !ok {
		return
	}
	fileID, ok := parseIDParam(c, "file_id")
	if !ok {
		return
	}

	file, err := h.fileService.RestoreFile(c.Request.Context(), userID, fileID)
	if err != nil {
		respondServiceError(c, err, "恢复文件失败")
		return
	}

	xerr.Success(c, http.StatusOK, "恢复成功", file)
}

// PermanentDeleteFile 彻底删除文件,同时清理对象存储
func (h *FileHandler) PermanentDeleteFile(c *gin.Context) {
	userID, ok := utils.GetUserIDFromContext(c)
	if !ok {
		return
	}
	fileID, ok := parseIDParam(c, "file_id")
	if !ok {
		return
	}

	if err := h.fileService.PermanentDeleteFile(c.Request.Context(), userID, fileID); err != nil {
		respondServiceError(c, err, "彻底删除文件失败")
		return
	}

	c.Status(http.StatusNoContent)
}

// DownloadFile 下载文件
// 优先生成预签名 URL 并重定向;存储后端不支持预签名时回退为服务端流式传输
func (h *FileHandler) DownloadFile(c *gin.Context) {
	userID, ok := utils.GetUserIDFromContext(c)
	if !ok {
		return
	}
	fileID, ok := parseIDParam(c, "file_id")
	if !ok {
		return
	}

	presignedURL, err := h.fileService.DownloadURL(c.Request.Context(), userID, fileID)
	if err == nil {
		c.Redirect(http.StatusFound, presignedURL)
		return
	}
	if !isStorageNotConfigured(err) {
		respondServiceError(c, err, "获取文件下载链接失败")
		return
	}

	file, reader, err := h.fileService.DownloadContent(c.Request.Context(), userID, fileID)
	if err != nil {
		respondServiceError(c, err, "下载文件失败")
		return
	}
	defer reader.Close()

	streamAttachment(c, file.Name, mimeOrDefault(file.MimeType), file.Size, reader)
}

// DownloadFolderZip 把整个文件夹打包为 ZIP 流式下载
func (h *FileHandler) DownloadFolderZip(c *gin.Context) {
	userID, ok := utils.GetUserIDFromContext(c)
	if !ok {
		return
	}
	folderID, ok := parseIDParam(c, "folder_id")
	if !ok {
		return
	}

	folder, reader, err := h.fileService.DownloadFolderZip(c.Request.Context(), userID, folderID)
	if err != nil {
		respondServiceError(c, err, "打包文件夹失败")
		return
	}
	defer reader.Close()

	streamAttachment(c, folder.Name+".zip", "application/zip", 0, reader)
}

// SearchFiles 按关键字搜索当前用户的文件
func (h *FileHandler) SearchFiles(c *gin.Context) {
	userID, ok := utils.GetUserIDFromContext(c)
	if !ok {
		return
	}

	keyword := c.Query("keyword")
	if keyword == "" {
		xerr.Error(c, http.StatusBadRequest, xerr.InvalidParamsCode, "搜索关键字不能为空")
		return
	}

	limit := 50
	if limitStr := c.Query("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 || parsed > 200 {
			xerr.Error(c, http.StatusBadRequest, xerr.InvalidParamsCode, "无效的 limit")
			return
		}
		limit = parsed
	}

	docs, err := h.fileService.SearchFiles(c.Request.Context(), userID, keyword, limit)
	if err != nil {
		respondServiceError(c, err, "搜索文件失败")
		return
	}

	xerr.Success(c, http.StatusOK, "搜索成功", gin.H{
		"files": docs,
		"total": len(docs),
	})
}

// streamAttachment 以附件形式流式输出内容,文件名按 RFC 5987 编码
func streamAttachment(c *gin.Context, name, contentType string, size int64, reader io.Reader) {
	encodedName := url.PathEscape(name)
	c.Header("Content-Disposition",
		fmt.Sprintf(`attachment; filename="%s"; filename*=UTF-8''%s`, encodedName, encodedName))
	c.Header("Content-Type", contentType)
	if size > 0 {
		c.Header("Content-Length", strconv.FormatInt(size, 10))
	}

	if _, err := io.Copy(c.Writer, reader); err != nil {
		logger.Error("streamAttachment: 流式传输内容失败", zap.String("name", name), zap.Error(err))
	}
}

func mimeOrDefault(mimeType *string) string {
	if mimeType != nil && *mimeType != "" {
		return *mimeType
	}
	return "application/octet-stream"
}

func isStorageNotConfigured(err error) bool {
	return xerr.Is(err, xerr.ErrStorageNotConfigured)
}
