package handlers

import (
	"net/http"
	"strconv"

	"github.com/kxrica/go-skyvault/internal/models"
	"github.com/kxrica/go-skyvault/internal/pkg/utils"
	"github.com/kxrica/go-skyvault/internal/pkg/xerr"
	"github.com/kxrica/go-skyvault/internal/services/explorer"
	"github.com/gin-gonic/gin"
)

type UploadHandler struct {
	uploadService explorer.UploadService
}

func NewUploadHandler(uploadService explorer.UploadService) *UploadHandler {
	return &UploadHandler{uploadService: uploadService}
}

// InitUpload 初始化上传会话,返回预签名上传 URL
func (h *UploadHandler) InitUpload(c *gin.Context) {
	userID, ok := utils.GetUserIDFromContext(c)
	if !ok {
		return
	}

	var req models.UploadInitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		xerr.Error(c, http.StatusBadRequest, xerr.InvalidParamsCode, "请求参数解析失败: "+err.Error())
		return
	}

	resp, err := h.uploadService.InitUpload(c.Request.Context(), userID, &req)
	if err != nil {
		respondServiceError(c, err, "初始化上传失败")
		return
	}

	xerr.Success(c, http.StatusOK, "上传初始化成功", resp)
}

// CompleteUpload 客户端直传完成后确认,文件状态翻转为 ready
func (h *UploadHandler) CompleteUpload(c *gin.Context) {
	userID, ok := utils.GetUserIDFromContext(c)
	if !ok {
		return
	}

	var req models.UploadCompleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		xerr.Error(c, http.StatusBadRequest, xerr.InvalidParamsCode, "请求参数解析失败: "+err.Error())
		return
	}

	file, err := h.uploadService.CompleteUpload(c.Request.Context(), userID, &req)
	if err != nil {
		respondServiceError(c, err, "完成上传失败")
		return
	}

	xerr.Success(c, http.StatusOK, "上传完成", file)
}

// DirectUpload 小文件直接经服务端中转上传
func (h *UploadHandler) DirectUpload(c *gin.Context) {
	userID, ok := utils.GetUserIDFromContext(c)
	if !ok {
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		xerr.Error(c, http.StatusBadRequest, xerr.InvalidParamsCode, "未找到上传文件: "+err.Error())
		return
	}

	var folderID *uint64
	if folderIDStr := c.PostForm("folder_id"); folderIDStr != "" {
		parsed, err := strconv.ParseUint(folderIDStr, 10, 64)
		if err != nil {
			xerr.Error(c, http.StatusBadRequest, xerr.InvalidParamsCode, "无效的 folder_id")
			return
		}
		folderID = &parsed
	}

	mimeType := fileHeader.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	stream, err := fileHeader.Open()
	if err != nil {
		xerr.Error(c, http.StatusInternalServerError, xerr.InternalServerErrorCode, "读取上传文件失败")
		return
	}
	defer stream.Close()

	file, err := h.uploadService.DirectUpload(c.Request.Context(), userID, folderID, fileHeader.Filename, mimeType, stream, fileHeader.Size)
	if err != nil {
		respondServiceError(c, err, "上传文件失败")
		return
	}

	xerr.Success(c, http.StatusCreated, "上传成功", file)
}
