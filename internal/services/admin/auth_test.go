package admin

import (
	"errors"
	"testing"
	"time"

	"github.com/kxrica/go-skyvault/internal/config"
	"github.com/kxrica/go-skyvault/internal/pkg/utils"
	"github.com/kxrica/go-skyvault/internal/pkg/xerr"
	"github.com/kxrica/go-skyvault/internal/repositories/repotest"
)

func newTestAuthService() (AuthService, *repotest.FakeUserRepo, *config.Config) {
	userRepo := repotest.NewFakeUserRepo()
	cfg := &config.Config{
		JWT: config.JWTConfig{
			SecretKey: "test-secret",
			Issuer:    "skyvault-test",
			ExpiresIn: time.Hour,
		},
	}
	return NewAuthService(userRepo, cfg), userRepo, cfg
}

func codeOf(t *testing.T, err error) int {
	t.Helper()
	var codeErr *xerr.CodeError
	if !errors.As(err, &codeErr) {
		t.Fatalf("expected CodeError, got %v", err)
	}
	return codeErr.Code
}

func TestRegisterUser(t *testing.T) {
	svc, _, _ := newTestAuthService()

	user, err := svc.RegisterUser("alice", "secret123", "alice@example.com")
	if err != nil {
		t.Fatalf("RegisterUser failed: %v", err)
	}
	if user.PasswordHash == "secret123" {
		t.Fatal("password must not be stored in plaintext")
	}
	if user.TotalSpace == 0 {
		t.Fatal("new user should get a default quota")
	}

	// 重复用户名
	_, err = svc.RegisterUser("alice", "other", "alice2@example.com")
	if codeOf(t, err) != xerr.UserAlreadyExistsCode {
		t.Fatalf("duplicate username must be rejected, got %v", err)
	}

	// 重复邮箱
	_, err = svc.RegisterUser("bob", "other", "alice@example.com")
	if codeOf(t, err) != xerr.EmailAlreadyExistsCode {
		t.Fatalf("duplicate email must be rejected, got %v", err)
	}
}

func TestLoginUser(t *testing.T) {
	svc, _, cfg := newTestAuthService()
	if _, err := svc.RegisterUser("alice", "secret123", "alice@example.com"); err != nil {
		t.Fatalf("RegisterUser failed: %v", err)
	}

	// 用户名登录
	token, err := svc.LoginUser("alice", "secret123")
	if err != nil {
		t.Fatalf("login by username failed: %v", err)
	}
	claims, err := utils.ParseToken(token, cfg.JWT.SecretKey)
	if err != nil {
		t.Fatalf("issued token does not parse: %v", err)
	}
	if claims.Username != "alice" {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	// 邮箱登录
	if _, err := svc.LoginUser("alice@example.com", "secret123"); err != nil {
		t.Fatalf("login by email failed: %v", err)
	}

	// 密码错误和用户不存在返回同一个错误码
	_, err = svc.LoginUser("alice", "wrong")
	if codeOf(t, err) != xerr.InvalidCredentialsCode {
		t.Fatalf("wrong password must yield invalid credentials, got %v", err)
	}
	_, err = svc.LoginUser("nobody", "secret123")
	if codeOf(t, err) != xerr.InvalidCredentialsCode {
		t.Fatalf("unknown user must yield invalid credentials, got %v", err)
	}
}

func TestRefreshToken(t *testing.T) {
	svc, _, cfg := newTestAuthService()
	user, err := svc.RegisterUser("alice", "secret123", "alice@example.com")
	if err != nil {
		t.Fatalf("RegisterUser failed: %v", err)
	}

	token, err := svc.RefreshToken(user.ID)
	if err != nil {
		t.Fatalf("RefreshToken failed: %v", err)
	}
	claims, err := utils.ParseToken(token, cfg.JWT.SecretKey)
	if err != nil || claims.UserID != user.ID {
		t.Fatalf("refreshed token invalid: claims=%+v err=%v", claims, err)
	}

	_, err = svc.RefreshToken(9999)
	if codeOf(t, err) != xerr.UserNotFoundCode {
		t.Fatalf("unknown user must not get a token, got %v", err)
	}
}
