package router

import (
	"net/http"
	"time"

	"deck_dev_v1_202608/internal/controller"
	"deck_dev_v1_202608/internal/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "deck_dev_v1_202608/docs"
)

// Options 路由装配选项
type Options struct {
	// GenerateCooldown 同一客户端两次生成请求的最小间隔，0 表示不限流
	GenerateCooldown time.Duration

	// StaticFilesDir 本地存储模式下挂载为 /files 的目录，空则不挂载
	StaticFilesDir string
}

// InitRoutes 注册所有路由
func InitRoutes(r *gin.Engine,
	generateCtl *controller.GenerateController,
	authCtl *controller.AuthController,
	logCtl *controller.LogController,
	opts *Options) {
	if opts == nil {
		opts = &Options{}
	}

	// 1. CORS
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "Authorization")
	corsConfig.ExposeHeaders = []string{"X-Request-ID", "X-Plan-Source", "X-Deck-URL", "Content-Disposition"}
	r.Use(cors.New(corsConfig))

	// 2. Swagger 文档路由
	// 访问 http://localhost:8080/swagger/index.html 即可查看
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// 3. 本地存储静态下载
	if opts.StaticFilesDir != "" {
		r.Static("/files", opts.StaticFilesDir)
	}

	// 4. API 路由组
	api := r.Group("/api")
	{
		// GET /api/health 健康检查
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"code":    0,
				"message": "ok",
			})
		})

		// 生成入口（限流保护）
		api.POST("/generate",
			middleware.GenerateCooldown(opts.GenerateCooldown),
			generateCtl.Generate)

		// auth 鉴权组
		auth := api.Group("/auth")
		{
			// POST /api/auth/login
			auth.POST("/login", authCtl.Login)

			// POST /api/auth/refresh
			auth.POST("/refresh", authCtl.Refresh)
		}

		// logs 日志组（管理端，JWT 保护）
		logs := api.Group("/logs", middleware.JWTAuth())
		{
			// GET /api/logs
			logs.GET("", logCtl.List)
			// GET /api/logs/stats
			logs.GET("/stats", logCtl.UsageStats)
			// GET /api/logs/:request_id
			logs.GET("/:request_id", logCtl.GetByRequestID)
		}
	}
}
