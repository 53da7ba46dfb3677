package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"deck_dev_v1_202608/internal/controller"
	"deck_dev_v1_202608/internal/middleware"
	"deck_dev_v1_202608/internal/model"
	"deck_dev_v1_202608/internal/repository"
	"deck_dev_v1_202608/internal/router"
	"deck_dev_v1_202608/internal/service"
	"deck_dev_v1_202608/internal/task"
	"deck_dev_v1_202608/pkg/database"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// @title Deck Engine API
// @version 1.0
// @description 模板驱动的演示文稿生成服务
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	// 1. 初始化数据库（可选）
	db, partitions := initDatabase()

	// 2. 初始化依赖
	deps := initDependencies(db, partitions)

	// 3. 启动定时任务
	initTasks(deps)

	// 4. 初始化路由
	r := gin.Default()
	router.InitRoutes(r, deps.Controllers.Generate, deps.Controllers.Auth, deps.Controllers.Log, &router.Options{
		GenerateCooldown: time.Duration(getEnvInt("GENERATE_COOLDOWN_SECONDS", 0)) * time.Second,
		StaticFilesDir:   deps.StaticFilesDir,
	})

	// 5. 启动服务
	startServer(r)
}

// ==================== 依赖容器 ====================

// Dependencies 依赖容器
type Dependencies struct {
	DB             *gorm.DB
	Partitions     *database.PartitionManager
	LogRepo        repository.GenerationLogRepository
	Services       *Services
	Controllers    *Controllers
	StaticFilesDir string
}

// Services 服务集合
type Services struct {
	Generate *service.GenerateService
	Auth     *service.AuthService
	Storage  *service.StorageService
	Provider service.PlanProvider
}

// Controllers 控制器集合
type Controllers struct {
	Generate *controller.GenerateController
	Auth     *controller.AuthController
	Log      *controller.LogController
}

// ==================== 初始化函数 ====================

// initDatabase 初始化数据库
// DATABASE_URL 优先走 PostgreSQL（日志表按月分区），
// 否则 SQLITE_PATH 走 SQLite；两者都未配置时关闭调用日志
func initDatabase() (*gorm.DB, *database.PartitionManager) {
	if dsn := getEnv("DATABASE_URL", ""); dsn != "" {
		db := database.InitPostgres(dsn)
		pm := database.NewPartitionManager(db, getEnvInt("LOG_RETENTION_MONTHS", 6))
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := pm.Initialize(ctx, 3); err != nil {
			log.Fatalf("分区初始化失败: %v", err)
		}
		return db, pm
	}

	if path := getEnv("SQLITE_PATH", ""); path != "" {
		return database.InitSQLite(path, &model.GenerationLog{}), nil
	}

	log.Println("未配置数据库，调用日志与管理端接口不可用")
	return nil, nil
}

// initDependencies 初始化所有依赖
func initDependencies(db *gorm.DB, partitions *database.PartitionManager) *Dependencies {
	deps := &Dependencies{DB: db, Partitions: partitions}

	// -------- Repo 层 --------
	if db != nil {
		deps.LogRepo = repository.NewGenerationLogRepository(db)
	}

	// -------- JWT 配置 --------
	if secret := getEnv("JWT_SECRET", ""); secret != "" {
		cfg := middleware.DefaultJWTConfig()
		cfg.SecretKey = secret
		middleware.SetJWTConfig(cfg)
	}

	// -------- 存储服务 --------
	storageSvc, staticDir := initStorageService()
	deps.StaticFilesDir = staticDir

	// -------- AI 提供方 --------
	provider := initPlanProvider()

	// -------- 业务服务 --------
	authSvc, err := service.NewAuthService(
		getEnv("ADMIN_USERNAME", "admin"),
		getEnv("ADMIN_PASSWORD", ""),
	)
	if err != nil {
		log.Printf("警告: 管理端认证未启用: %v", err)
	}

	deps.Services = &Services{
		Generate: service.NewGenerateService(deps.LogRepo, storageSvc),
		Auth:     authSvc,
		Storage:  storageSvc,
		Provider: provider,
	}

	// -------- Controller 层 --------
	deps.Controllers = &Controllers{
		Generate: controller.NewGenerateController(deps.Services.Generate, provider),
		Auth:     controller.NewAuthController(authSvc),
		Log:      controller.NewLogController(deps.LogRepo),
	}

	return deps
}

// initStorageService 初始化存储服务，返回服务与本地静态目录（非本地模式为空）
func initStorageService() (*service.StorageService, string) {
	cfg := &service.StorageConfig{
		Provider:  getEnv("STORAGE_PROVIDER", "local"),
		Bucket:    getEnv("AWS_BUCKET", ""),
		Region:    getEnv("AWS_REGION", ""),
		AccessKey: getEnv("AWS_ACCESS_KEY_ID", ""),
		SecretKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
		Endpoint:  getEnv("AWS_ENDPOINT", ""),
		CDNDomain: getEnv("AWS_CDN_DOMAIN", ""),
		BasePath:  getEnv("STORAGE_BASE_PATH", "data/decks"),
	}

	provider, err := service.NewStorageProvider(cfg)
	if err != nil {
		log.Printf("警告: 存储服务初始化失败，成品仅以响应体返回: %v", err)
		return nil, ""
	}

	staticDir := ""
	if local, ok := provider.(*service.LocalStorage); ok {
		staticDir = local.RootDir()
	}
	return service.NewStorageService(provider), staticDir
}

// initPlanProvider 初始化服务端默认 AI 提供方
func initPlanProvider() service.PlanProvider {
	name := getEnv("PLAN_PROVIDER", "")
	apiKey := getEnv("PLAN_PROVIDER_API_KEY", getEnv("GEMINI_API_KEY", ""))

	provider, err := service.NewPlanProvider(name, apiKey)
	if err != nil {
		log.Printf("警告: AI 提供方配置无效，走规则规划器: %v", err)
		return nil
	}
	if provider == nil {
		log.Println("未配置 AI 提供方，走规则规划器")
	}
	return provider
}

// ==================== 定时任务 ====================

// initTasks 初始化定时任务
func initTasks(deps *Dependencies) {
	var localStorage *service.LocalStorage
	if deps.Services.Storage != nil {
		if local, ok := deps.Services.Storage.Provider().(*service.LocalStorage); ok {
			localStorage = local
		}
	}

	if deps.LogRepo == nil && localStorage == nil {
		return
	}

	retention := time.Duration(getEnvInt("LOG_RETENTION_DAYS", 7)) * 24 * time.Hour
	cleanupTask := task.NewCleanupTask(deps.LogRepo, localStorage, deps.Partitions, retention)
	cleanupTask.Start()

	log.Println("定时任务已启动")
}

// ==================== 服务启动 ====================

// startServer 启动服务
func startServer(r *gin.Engine) {
	port := getEnv("SERVER_PORT", "8080")

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}

	// 异步启动服务
	go func() {
		log.Printf("服务启动在 :%s", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("服务启动失败: %v", err)
		}
	}()

	// 等待退出信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("正在关闭服务...")

	// 优雅关闭，最多等待 30 秒
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("服务强制关闭: %v", err)
	}

	log.Println("服务已退出")
}

// ==================== 工具函数 ====================

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
