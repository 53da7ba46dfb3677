package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"
)

// ==================== 日志分区管理 ====================

// 生成日志按月做范围分区，写入量大、留存有限，天然适合按月裁剪。
// 仅 PostgreSQL 支持；SQLite 部署走普通表 + 定时 DELETE。

const logTableName = "generation_logs"

// 分区主表建表语句，列定义与 model.GenerationLog 保持一致
const createLogTableSQL = `
CREATE TABLE IF NOT EXISTS generation_logs (
    id             BIGSERIAL,
    created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at     TIMESTAMPTZ,
    deleted_at     TIMESTAMPTZ,
    request_id     VARCHAR(64) NOT NULL,
    client_ip      VARCHAR(64),
    template_name  VARCHAR(256),
    template_hash  VARCHAR(64),
    input_chars    INTEGER DEFAULT 0,
    guidance       VARCHAR(512),
    provider       VARCHAR(32),
    plan_source    VARCHAR(32),
    slide_count    INTEGER DEFAULT 0,
    deck_url       VARCHAR(1024),
    diagnostics    JSONB,
    duration_ms    BIGINT,
    status         VARCHAR(32) DEFAULT 'success',
    error_msg      VARCHAR(1024),
    PRIMARY KEY (id, created_at),
    UNIQUE (request_id, created_at)
) PARTITION BY RANGE (created_at);
CREATE INDEX IF NOT EXISTS idx_generation_logs_status ON generation_logs (status);
CREATE INDEX IF NOT EXISTS idx_generation_logs_provider ON generation_logs (provider);
`

// PartitionManager 生成日志分区管理器
type PartitionManager struct {
	db *gorm.DB

	// 留存月数，0 表示永久保留
	retentionMonths int
}

// NewPartitionManager 创建分区管理器
func NewPartitionManager(db *gorm.DB, retentionMonths int) *PartitionManager {
	return &PartitionManager{db: db, retentionMonths: retentionMonths}
}

// Initialize 建主表并补齐未来分区
func (m *PartitionManager) Initialize(ctx context.Context, monthsAhead int) error {
	exists, err := m.tableExists(ctx)
	if err != nil {
		return fmt.Errorf("检查表 %s 失败: %w", logTableName, err)
	}
	if !exists {
		log.Printf("[Partition] 创建分区表 %s ...", logTableName)
		if err := m.db.WithContext(ctx).Exec(createLogTableSQL).Error; err != nil {
			return fmt.Errorf("创建表 %s 失败: %w", logTableName, err)
		}
	}
	return m.EnsureFuturePartitions(ctx, monthsAhead)
}

func (m *PartitionManager) tableExists(ctx context.Context) (bool, error) {
	var count int64
	err := m.db.WithContext(ctx).Raw(`
		SELECT COUNT(*) FROM pg_tables
		WHERE schemaname = 'public' AND tablename = ?
	`, logTableName).Scan(&count).Error
	return count > 0, err
}

// EnsureFuturePartitions 确保从当月起未来 N 个月的分区存在
func (m *PartitionManager) EnsureFuturePartitions(ctx context.Context, monthsAhead int) error {
	now := time.Now()
	for i := 0; i <= monthsAhead; i++ {
		if err := m.createPartitionIfNotExists(ctx, now.AddDate(0, i, 0)); err != nil {
			log.Printf("[Partition] 创建分区失败: %v", err)
		}
	}
	return nil
}

func (m *PartitionManager) createPartitionIfNotExists(ctx context.Context, month time.Time) error {
	startDate := time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, time.UTC)
	endDate := startDate.AddDate(0, 1, 0)
	partitionName := partitionName(startDate)

	exists, err := m.partitionExists(ctx, partitionName)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	sql := fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s PARTITION OF %s FOR VALUES FROM ('%s') TO ('%s')`,
		partitionName, logTableName,
		startDate.Format("2006-01-02"), endDate.Format("2006-01-02"),
	)
	if err := m.db.WithContext(ctx).Exec(sql).Error; err != nil {
		return err
	}
	log.Printf("[Partition] 分区 %s 已创建", partitionName)
	return nil
}

func (m *PartitionManager) partitionExists(ctx context.Context, name string) (bool, error) {
	var count int64
	err := m.db.WithContext(ctx).Raw(`
		SELECT COUNT(*) FROM pg_tables
		WHERE schemaname = 'public' AND tablename = ?
	`, name).Scan(&count).Error
	return count > 0, err
}

// DropExpiredPartitions 裁剪留存窗口外的分区
func (m *PartitionManager) DropExpiredPartitions(ctx context.Context) error {
	if m.retentionMonths <= 0 {
		return nil
	}

	cutoff := time.Now().AddDate(0, -m.retentionMonths, 0)
	// 向前多看一年，把遗留的陈旧分区也清掉
	for i := 1; i <= 12; i++ {
		month := cutoff.AddDate(0, -i, 0)
		name := partitionName(time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, time.UTC))

		exists, err := m.partitionExists(ctx, name)
		if err != nil {
			return err
		}
		if !exists {
			continue
		}
		if err := m.db.WithContext(ctx).Exec("DROP TABLE IF EXISTS " + name).Error; err != nil {
			log.Printf("[Partition] 删除分区 %s 失败: %v", name, err)
			continue
		}
		log.Printf("[Partition] 过期分区 %s 已删除", name)
	}
	return nil
}

func partitionName(month time.Time) string {
	return fmt.Sprintf("%s_y%dm%02d", logTableName, month.Year(), int(month.Month()))
}
