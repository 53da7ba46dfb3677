package model

import "gorm.io/datatypes"

// GenerationLog 单次套组生成的调用日志
type GenerationLog struct {
	BaseModel

	// 请求标识
	RequestID string `gorm:"size:64;uniqueIndex;comment:请求ID" json:"request_id"`
	ClientIP  string `gorm:"size:64;index;comment:客户端IP" json:"client_ip"`

	// 输入概况
	TemplateName string `gorm:"size:256;comment:模板文件名" json:"template_name"`
	TemplateHash string `gorm:"size:64;index;comment:模板内容哈希" json:"template_hash"`
	InputChars   int    `gorm:"default:0;comment:输入文本字符数" json:"input_chars"`
	Guidance     string `gorm:"size:512;comment:用户引导语" json:"guidance"`

	// 规划来源
	Provider   string `gorm:"size:32;index;comment:AI提供方(gemini/openai/无)" json:"provider"`
	PlanSource string `gorm:"size:32;index;comment:计划来源(provider/fallback)" json:"plan_source"`

	// 产出概况
	SlideCount  int            `gorm:"default:0;comment:产出幻灯片数" json:"slide_count"`
	DeckURL     string         `gorm:"size:1024;comment:成品托管URL" json:"deck_url"`
	Diagnostics datatypes.JSON `gorm:"comment:丢弃字段诊断列表" json:"diagnostics"`

	// 性能与状态
	DurationMs int64  `gorm:"comment:耗时(毫秒)" json:"duration_ms"`
	Status     string `gorm:"size:32;index;default:success;comment:状态(success/failed)" json:"status"`
	ErrorMsg   string `gorm:"size:1024;comment:错误信息" json:"error_msg"`
}

func (GenerationLog) TableName() string {
	return "generation_logs"
}

// ==================== 计划来源常量 ====================

const (
	PlanSourceProvider = "provider"
	PlanSourceFallback = "fallback"
)

// ==================== 状态常量 ====================

const (
	GenerationStatusSuccess = "success"
	GenerationStatusFailed  = "failed"
)
