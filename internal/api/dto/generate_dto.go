package dto

// ==================== 生成请求 ====================

// GenerateRequest 套组生成请求（multipart 表单字段，template 文件单独取）
type GenerateRequest struct {
	Text     string `form:"text" binding:"required"`
	Guidance string `form:"guidance"`
	Provider string `form:"provider"` // gemini | openai | 空（直接走规则规划器）
	APIKey   string `form:"api_key"`
}

// GenerateResult 生成结果元信息（成品字节走响应体附件）
type GenerateResult struct {
	RequestID   string   `json:"request_id"`
	SlideCount  int      `json:"slide_count"`
	PlanSource  string   `json:"plan_source"` // provider | fallback
	DeckURL     string   `json:"deck_url,omitempty"`
	Diagnostics []string `json:"diagnostics,omitempty"`
}

// ==================== 日志查询 ====================

// LogListRequest 日志列表查询参数
type LogListRequest struct {
	Page     int    `form:"page,default=1"`
	PageSize int    `form:"page_size,default=20"`
	Provider string `form:"provider"`
	Status   string `form:"status"`
}

// LogListResponse 日志列表响应
type LogListResponse struct {
	Total int64       `json:"total"`
	Items interface{} `json:"items"`
}
