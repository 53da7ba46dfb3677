package controller

import (
	"net/http"

	"deck_dev_v1_202608/internal/api/dto"
	"deck_dev_v1_202608/internal/middleware"
	"deck_dev_v1_202608/internal/service"

	"github.com/gin-gonic/gin"
)

// ==================== 控制器 ====================

// AuthController 管理端认证控制器
type AuthController struct {
	authService *service.AuthService
}

func NewAuthController(authService *service.AuthService) *AuthController {
	return &AuthController{authService: authService}
}

// ==================== API 方法 ====================

// Login 管理员登录
// @Summary 账号密码登录，签发令牌对
// @Tags Auth
// @Accept json
// @Produce json
// @Param body body dto.LoginRequest true "登录请求"
// @Success 200 {object} dto.TokenResponse
// @Router /api/auth/login [post]
func (ctrl *AuthController) Login(c *gin.Context) {
	if ctrl.authService == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"code":    503,
			"message": "管理端认证未配置",
		})
		return
	}

	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": "参数错误: " + err.Error(),
		})
		return
	}

	access, refresh, err := ctrl.authService.Login(req.Username, req.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"code":    401,
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "success",
		"data": dto.TokenResponse{
			AccessToken:  access,
			RefreshToken: refresh,
			ExpiresIn:    int64(middleware.GetJWTConfig().AccessTokenTTL.Seconds()),
		},
	})
}

// Refresh 刷新令牌
// @Summary 用刷新令牌换取新令牌对
// @Tags Auth
// @Accept json
// @Produce json
// @Param body body dto.RefreshRequest true "刷新请求"
// @Success 200 {object} dto.TokenResponse
// @Router /api/auth/refresh [post]
func (ctrl *AuthController) Refresh(c *gin.Context) {
	if ctrl.authService == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"code":    503,
			"message": "管理端认证未配置",
		})
		return
	}

	var req dto.RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": "参数错误: " + err.Error(),
		})
		return
	}

	access, refresh, err := ctrl.authService.Refresh(req.RefreshToken)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"code":    401,
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "success",
		"data": dto.TokenResponse{
			AccessToken:  access,
			RefreshToken: refresh,
			ExpiresIn:    int64(middleware.GetJWTConfig().AccessTokenTTL.Seconds()),
		},
	})
}
