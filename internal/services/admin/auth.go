package admin

import (
	"fmt"

	"github.com/kxrica/go-skyvault/internal/config"
	"github.com/kxrica/go-skyvault/internal/models"
	"github.com/kxrica/go-skyvault/internal/pkg/logger"
	"github.com/kxrica/go-skyvault/internal/pkg/utils"
	"github.com/kxrica/go-skyvault/internal/pkg/xerr"
	"github.com/kxrica/go-skyvault/internal/repositories"
	"go.uber.org/zap"
)

type AuthService interface {
	RegisterUser(username, password, email string) (*models.User, error)
	LoginUser(identifier, password string) (string, error)
	RefreshToken(userID uint64) (string, error)
}

type authService struct {
	userRepo repositories.UserRepository
	cfg      *config.Config
}

// 确保authService实现了AuthService的方法
var _ AuthService = (*authService)(nil)

func NewAuthService(userRepo repositories.UserRepository, cfg *config.Config) AuthService {
	return &authService{
		userRepo: userRepo,
		cfg:      cfg,
	}
}

func (s *authService) RegisterUser(username, password, email string) (*models.User, error) {
	//检查用户名是否存在
	existingUser, err := s.userRepo.GetUserByUsername(username)
	if err != nil {
		return nil, fmt.Errorf("failed to check username existence: %w", err)
	}
	if existingUser != nil {
		return nil, xerr.NewCodeError(xerr.UserAlreadyExistsCode, xerr.ErrUserAlreadyExists)
	}

	//检查邮箱是否存在
	existingUser, err = s.userRepo.GetUserByEmail(email)
	if err != nil {
		return nil, fmt.Errorf("failed to check email existence: %w", err)
	}
	if existingUser != nil {
		return nil, xerr.NewCodeError(xerr.EmailAlreadyExistsCode, xerr.ErrEmailAlreadyExists)
	}

	//哈希密码
	hashedPassword, err := utils.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	//创建用户模型
	user := &models.User{
		Username:     username,
		PasswordHash: hashedPassword,
		Email:        email,
		TotalSpace:   1073741824, // 默认给每个新用户 1GB 空间
		UsedSpace:    0,
	}

	err = s.userRepo.CreateUser(user)
	if err != nil {
		return nil, fmt.Errorf("failed to create user in database: %w", err)
	}

	logger.Info("RegisterUser: user registered successfully", zap.String("username", user.Username))
	return user, nil
}

// LoginUser 支持用用户名或邮箱登录
// 为避免账号枚举,用户不存在和密码错误返回同一个错误
func (s *authService) LoginUser(identifier, password string) (string, error) {
	user, err := s.userRepo.GetUserByUsername(identifier)
	if err != nil {
		return "", fmt.Errorf("failed to get user by username: %w", err)
	}
	if user == nil {
		// 用户名未找到,继续尝试通过邮箱查找
		user, err = s.userRepo.GetUserByEmail(identifier)
		if err != nil {
			return "", fmt.Errorf("failed to get user by email: %w", err)
		}
	}
	if user == nil {
		return "", xerr.NewCodeError(xerr.InvalidCredentialsCode, xerr.ErrInvalidCredentials)
	}

	//验证密码
	if !utils.CheckPasswordHash(password, user.PasswordHash) {
		return "", xerr.NewCodeError(xerr.InvalidCredentialsCode, xerr.ErrInvalidCredentials)
	}

	//生成JWT Token
	tokenString, err := utils.GenerateToken(
		user.ID,
		user.Username,
		user.Email,
		s.cfg.JWT.SecretKey,
		s.cfg.JWT.Issuer,
		s.cfg.JWT.ExpiresIn,
	)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}

	return tokenString, nil
}

// RefreshToken 给已经通过认证中间件的用户换发一个新 Token
func (s *authService) RefreshToken(userID uint64) (string, error) {
	user, err := s.userRepo.GetUserByID(userID)
	if err != nil {
		return "", fmt.Errorf("failed to get user by id: %w", err)
	}
	if user == nil {
		return "", xerr.NewCodeError(xerr.UserNotFoundCode, xerr.ErrUserNotFound)
	}

	tokenString, err := utils.GenerateToken(
		user.ID,
		user.Username,
		user.Email,
		s.cfg.JWT.SecretKey,
		s.cfg.JWT.Issuer,
		s.cfg.JWT.ExpiresIn,
	)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return tokenString, nil
}
