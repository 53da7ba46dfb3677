package service

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"deck_dev_v1_202608/internal/middleware"
)

// ==================== 认证服务 ====================

// AuthService 管理端认证，账号来自环境配置，密码以 bcrypt 形式驻留内存
type AuthService struct {
	adminUser    string
	passwordHash []byte
}

// NewAuthService 启动时对明文密码做一次散列，之后内存中不再保留明文
func NewAuthService(adminUser, adminPassword string) (*AuthService, error) {
	if adminUser == "" || adminPassword == "" {
		return nil, fmt.Errorf("管理员账号或密码未配置")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("密码散列失败: %v", err)
	}
	return &AuthService{
		adminUser:    adminUser,
		passwordHash: hash,
	}, nil
}

// Login 校验账号密码，签发访问令牌和刷新令牌
func (s *AuthService) Login(username, password string) (accessToken, refreshToken string, err error) {
	if username != s.adminUser {
		return "", "", fmt.Errorf("用户名或密码错误")
	}
	if bcrypt.CompareHashAndPassword(s.passwordHash, []byte(password)) != nil {
		return "", "", fmt.Errorf("用户名或密码错误")
	}
	return middleware.GenerateTokenPair(username)
}

// Refresh 用刷新令牌换取新的令牌对
func (s *AuthService) Refresh(refreshToken string) (string, string, error) {
	claims, err := middleware.ParseToken(refreshToken)
	if err != nil {
		return "", "", fmt.Errorf("刷新令牌无效: %v", err)
	}
	if claims.Subject != "refresh" {
		return "", "", fmt.Errorf("令牌类型错误")
	}
	if claims.Username != s.adminUser {
		return "", "", fmt.Errorf("令牌对应账号不存在")
	}
	return middleware.GenerateTokenPair(claims.Username)
}
