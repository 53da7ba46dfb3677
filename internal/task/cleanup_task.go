package task

import (
	"context"
	"log"
	"time"

	"deck_dev_v1_202608/internal/repository"
	"deck_dev_v1_202608/internal/service"
	"deck_dev_v1_202608/pkg/database"

	"github.com/robfig/cron/v3"
)

// CleanupTask 定期清理过期的生成日志与本地落盘文件
type CleanupTask struct {
	LogRepo    repository.GenerationLogRepository // 可为 nil（未配置数据库）
	Storage    *service.LocalStorage              // 可为 nil（非本地存储）
	Partitions *database.PartitionManager         // 可为 nil（非 PostgreSQL）
	Cron       *cron.Cron

	// 留存窗口，窗口外的日志和文件会被清掉
	retention time.Duration
}

func NewCleanupTask(logRepo repository.GenerationLogRepository, storage *service.LocalStorage, partitions *database.PartitionManager, retention time.Duration) *CleanupTask {
	if retention <= 0 {
		retention = 7 * 24 * time.Hour
	}
	return &CleanupTask{
		LogRepo:    logRepo,
		Storage:    storage,
		Partitions: partitions,
		Cron:       cron.New(cron.WithSeconds()), // 支持秒级控制
		retention:  retention,
	}
}

// Start 启动定时任务
func (t *CleanupTask) Start() {
	// 首次执行
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		log.Println("[Task] 服务启动，正在执行首次过期清理...")
		t.cleanupJob(ctx)
	}()

	// 每天凌晨 3 点清一次
	_, err := t.Cron.AddFunc("0 0 3 * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		t.cleanupJob(ctx)
	})

	if err != nil {
		log.Fatalf("无法启动清理定时任务: %v", err)
	}

	t.Cron.Start()
	log.Printf("过期清理任务已启动 (每天一次，留存 %v)", t.retention)
}

// Stop 停止定时任务
func (t *CleanupTask) Stop() {
	t.Cron.Stop()
}

func (t *CleanupTask) cleanupJob(ctx context.Context) {
	before := time.Now().Add(-t.retention)

	if t.LogRepo != nil {
		purged, err := t.LogRepo.PurgeOlderThan(ctx, before)
		if err != nil {
			log.Printf("[Cron] 过期日志清理失败: %v", err)
		} else if purged > 0 {
			log.Printf("[Cron] 清理过期日志 %d 条", purged)
		}
	}

	if t.Storage != nil {
		purged, err := t.Storage.PurgeOlderThan(before)
		if err != nil {
			log.Printf("[Cron] 过期文件清理失败: %v", err)
		} else if purged > 0 {
			log.Printf("[Cron] 清理过期文件 %d 个", purged)
		}
	}

	// 分区维护：补齐未来分区，裁剪留存窗口外的老分区
	if t.Partitions != nil {
		if err := t.Partitions.EnsureFuturePartitions(ctx, 3); err != nil {
			log.Printf("[Cron] 分区维护失败: %v", err)
		}
		if err := t.Partitions.DropExpiredPartitions(ctx); err != nil {
			log.Printf("[Cron] 过期分区裁剪失败: %v", err)
		}
	}

	log.Println("[Cron] 本轮过期清理任务完成")
}
