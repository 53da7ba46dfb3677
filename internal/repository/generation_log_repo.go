package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"deck_dev_v1_202608/internal/model"
)

// ==================== 仓储接口 ====================

// GenerationLogRepository 生成日志仓储接口
type GenerationLogRepository interface {
	Create(ctx context.Context, log *model.GenerationLog) error
	GetByID(ctx context.Context, id int64) (*model.GenerationLog, error)
	GetByRequestID(ctx context.Context, requestID string) (*model.GenerationLog, error)
	List(ctx context.Context, q *LogQuery) ([]model.GenerationLog, int64, error)

	// 统计查询
	GetUsageStats(ctx context.Context, startTime, endTime time.Time) (*GenerationStats, error)
	GetDailyStats(ctx context.Context, startDate, endDate time.Time) ([]DailyGenerationStats, error)

	// 清理
	PurgeOlderThan(ctx context.Context, before time.Time) (int64, error)
}

// ==================== 查询与统计结构 ====================

// LogQuery 日志列表查询条件
type LogQuery struct {
	Page     int
	PageSize int
	Provider string // 为空不过滤
	Status   string // 为空不过滤
}

// GenerationStats 生成用量统计
type GenerationStats struct {
	TotalRequests  int64   `json:"total_requests"`
	ProviderPlans  int64   `json:"provider_plans"`
	FallbackPlans  int64   `json:"fallback_plans"`
	TotalSlides    int64   `json:"total_slides"`
	AvgSlideCount  float64 `json:"avg_slide_count"`
	AvgDurationMs  float64 `json:"avg_duration_ms"`
	SuccessCount   int64   `json:"success_count"`
	FailedCount    int64   `json:"failed_count"`
	TotalInputSize int64   `json:"total_input_chars"`
}

// DailyGenerationStats 每日生成统计
type DailyGenerationStats struct {
	Date          string  `json:"date"`
	TotalRequests int64   `json:"total_requests"`
	TotalSlides   int64   `json:"total_slides"`
	AvgDurationMs float64 `json:"avg_duration_ms"`
}

// ==================== 仓储实现 ====================

type generationLogRepo struct {
	db *gorm.DB
}

// NewGenerationLogRepository 创建生成日志仓储
func NewGenerationLogRepository(db *gorm.DB) GenerationLogRepository {
	return &generationLogRepo{db: db}
}

func (r *generationLogRepo) Create(ctx context.Context, log *model.GenerationLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

func (r *generationLogRepo) GetByID(ctx context.Context, id int64) (*model.GenerationLog, error) {
	var log model.GenerationLog
	if err := r.db.WithContext(ctx).First(&log, id).Error; err != nil {
		return nil, err
	}
	return &log, nil
}

func (r *generationLogRepo) GetByRequestID(ctx context.Context, requestID string) (*model.GenerationLog, error) {
	var log model.GenerationLog
	if err := r.db.WithContext(ctx).Where("request_id = ?", requestID).First(&log).Error; err != nil {
		return nil, err
	}
	return &log, nil
}

func (r *generationLogRepo) List(ctx context.Context, q *LogQuery) ([]model.GenerationLog, int64, error) {
	page := q.Page
	if page < 1 {
		page = 1
	}
	pageSize := q.PageSize
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	query := r.db.WithContext(ctx).Model(&model.GenerationLog{})
	if q.Provider != "" {
		query = query.Where("provider = ?", q.Provider)
	}
	if q.Status != "" {
		query = query.Where("status = ?", q.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var logs []model.GenerationLog
	err := query.Order("id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&logs).Error
	return logs, total, err
}

func (r *generationLogRepo) GetUsageStats(ctx context.Context, startTime, endTime time.Time) (*GenerationStats, error) {
	var stats GenerationStats

	query := r.db.WithContext(ctx).Model(&model.GenerationLog{})
	if !startTime.IsZero() {
		query = query.Where("created_at >= ?", startTime)
	}
	if !endTime.IsZero() {
		query = query.Where("created_at <= ?", endTime)
	}

	err := query.Select(`
		COUNT(*) as total_requests,
		SUM(CASE WHEN plan_source = 'provider' THEN 1 ELSE 0 END) as provider_plans,
		SUM(CASE WHEN plan_source = 'fallback' THEN 1 ELSE 0 END) as fallback_plans,
		COALESCE(SUM(slide_count), 0) as total_slides,
		COALESCE(AVG(slide_count), 0) as avg_slide_count,
		COALESCE(AVG(duration_ms), 0) as avg_duration_ms,
		SUM(CASE WHEN status = 'success' THEN 1 ELSE 0 END) as success_count,
		SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END) as failed_count,
		COALESCE(SUM(input_chars), 0) as total_input_chars
	`).Scan(&stats).Error

	return &stats, err
}

func (r *generationLogRepo) GetDailyStats(ctx context.Context, startDate, endDate time.Time) ([]DailyGenerationStats, error) {
	var stats []DailyGenerationStats

	err := r.db.WithContext(ctx).Model(&model.GenerationLog{}).
		Where("created_at >= ? AND created_at <= ?", startDate, endDate).
		Select(`
			DATE(created_at) as date,
			COUNT(*) as total_requests,
			COALESCE(SUM(slide_count), 0) as total_slides,
			COALESCE(AVG(duration_ms), 0) as avg_duration_ms
		`).
		Group("DATE(created_at)").
		Order("date ASC").
		Scan(&stats).Error

	return stats, err
}

func (r *generationLogRepo) PurgeOlderThan(ctx context.Context, before time.Time) (int64, error) {
	// 物理删除，清理任务专用
	result := r.db.WithContext(ctx).
		Unscoped().
		Where("created_at < ?", before).
		Delete(&model.GenerationLog{})
	return result.RowsAffected, result.Error
}
