package handlers

import (
	"net/http"

	"github.com/kxrica/go-skyvault/internal/pkg/utils"
	"github.com/kxrica/go-skyvault/internal/pkg/xerr"
	"github.com/kxrica/go-skyvault/internal/services/admin"
	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	authService admin.AuthService
	userService admin.UserService
}

func NewAuthHandler(authService admin.AuthService, userService admin.UserService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		userService: userService,
	}
}

type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=64"`
	Password string `json:"password" binding:"required,min=6,max=255"`
	Email    string `json:"email" binding:"required,email"`
}

// LoginRequest 登录请求结构体
type LoginRequest struct {
	Identifier string `json:"identifier" binding:"required"` // 可以是用户名或邮箱
	Password   string `json:"password" binding:"required"`
}

// Register 用户注册
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		xerr.Error(c, http.StatusBadRequest, xerr.InvalidParamsCode, "请求参数解析失败: "+err.Error())
		return
	}

	user, err := h.authService.RegisterUser(req.Username, req.Password, req.Email)
	if err != nil {
		respondServiceError(c, err, "注册用户失败")
		return
	}

	xerr.Success(c, http.StatusCreated, "注册成功", gin.H{
		"user_id":  user.ID,
		"username": user.Username,
		"email":    user.Email,
	})
}

// Login 用户登录,返回 JWT Token
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		xerr.Error(c, http.StatusBadRequest, xerr.InvalidParamsCode, "请求参数解析失败: "+err.Error())
		return
	}

	tokenString, err := h.authService.LoginUser(req.Identifier, req.Password)
	if err != nil {
		respondServiceError(c, err, "登录失败")
		return
	}

	xerr.Success(c, http.StatusOK, "登录成功", gin.H{"token": tokenString})
}

// RefreshToken 给已认证用户换发新 Token
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	userID, ok := utils.GetUserIDFromContext(c)
	if !ok {
		return
	}

	tokenString, err := h.authService.RefreshToken(userID)
	if err != nil {
		respondServiceError(c, err, "刷新Token失败")
		return
	}

	xerr.Success(c, http.StatusOK, "刷新成功", gin.H{"token": tokenString})
}

// GetProfile 获取当前用户信息
func (h *AuthHandler) GetProfile(c *gin.Context) {
	userID, ok := utils.GetUserIDFromContext(c)
	if !ok {
		return
	}

	user, err := h.userService.GetUserProfile(userID)
	if err != nil {
		respondServiceError(c, err, "获取用户信息失败")
		return
	}

	xerr.Success(c, http.StatusOK, "获取用户信息成功", user)
}
