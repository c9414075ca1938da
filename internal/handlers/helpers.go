package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/kxrica/go-skyvault/internal/models"
	"github.com/kxrica/go-skyvault/internal/pkg/logger"
	"github.com/kxrica/go-skyvault/internal/pkg/xerr"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// respondServiceError 把服务层错误翻译成 HTTP 响应
// 业务码的前三位就是对应的 HTTP 状态码(40301 -> 403)
// 非 CodeError 的错误一律按内部错误处理,细节只进日志不出响应
func respondServiceError(c *gin.Context, err error, logMsg string) {
	var codeErr *xerr.CodeError
	if errors.As(err, &codeErr) {
		xerr.Error(c, codeErr.Code/100, codeErr.Code, codeErr.Error())
		return
	}
	logger.Error(logMsg, zap.Error(err))
	xerr.Error(c, http.StatusInternalServerError, xerr.InternalServerErrorCode, logMsg)
}

// parseIDParam 解析路径中的数字 ID,失败时已写入响应
func parseIDParam(c *gin.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil {
		xerr.Error(c, http.StatusBadRequest, xerr.InvalidParamsCode, "无效的 "+name)
		return 0, false
	}
	return id, true
}

// parseOptionalIDQuery 解析可选的数字查询参数,缺省返回 nil
func parseOptionalIDQuery(c *gin.Context, name string) (*uint64, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		xerr.Error(c, http.StatusBadRequest, xerr.InvalidParamsCode, "无效的 "+name)
		return nil, false
	}
	return &id, true
}

// parseItemRef 校验并组装条目引用
func parseItemRef(c *gin.Context, kind string, id uint64) (models.ItemRef, bool) {
	k := models.ItemKind(kind)
	if !k.Valid() {
		xerr.Error(c, http.StatusBadRequest, xerr.InvalidItemKindCode, xerr.ErrInvalidItemKind.Error())
		return models.ItemRef{}, false
	}
	return models.ItemRef{Kind: k, ID: id}, true
}
