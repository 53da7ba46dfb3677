package controller

import (
	"net/http"
	"strconv"
	"time"

	"deck_dev_v1_202608/internal/api/dto"
	"deck_dev_v1_202608/internal/repository"

	"github.com/gin-gonic/gin"
)

// ==================== 控制器 ====================

// LogController 生成日志控制器（管理端，JWT 保护）
type LogController struct {
	logRepo repository.GenerationLogRepository
}

func NewLogController(logRepo repository.GenerationLogRepository) *LogController {
	return &LogController{logRepo: logRepo}
}

// 未配置数据库时日志接口整体不可用
func (ctrl *LogController) unavailable(c *gin.Context) {
	c.JSON(http.StatusServiceUnavailable, gin.H{
		"code":    503,
		"message": "调用日志未启用",
	})
}

// ==================== API 方法 ====================

// List 分页查询生成日志
// @Summary 分页查询生成日志
// @Tags Log
// @Produce json
// @Param page query int false "页码"
// @Param page_size query int false "每页数量"
// @Param provider query string false "按 AI 提供方过滤"
// @Param status query string false "按状态过滤: success 或 failed"
// @Success 200 {object} dto.LogListResponse
// @Security BearerAuth
// @Router /api/logs [get]
func (ctrl *LogController) List(c *gin.Context) {
	if ctrl.logRepo == nil {
		ctrl.unavailable(c)
		return
	}

	var req dto.LogListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": "参数错误: " + err.Error(),
		})
		return
	}

	ctx := c.Request.Context()
	items, total, err := ctrl.logRepo.List(ctx, &repository.LogQuery{
		Page:     req.Page,
		PageSize: req.PageSize,
		Provider: req.Provider,
		Status:   req.Status,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    500,
			"message": "查询失败: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "success",
		"data": dto.LogListResponse{
			Total: total,
			Items: items,
		},
	})
}

// GetByRequestID 按请求 ID 查询单条日志
// @Summary 按请求 ID 查询生成日志
// @Tags Log
// @Produce json
// @Param request_id path string true "请求 ID"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /api/logs/{request_id} [get]
func (ctrl *LogController) GetByRequestID(c *gin.Context) {
	if ctrl.logRepo == nil {
		ctrl.unavailable(c)
		return
	}

	requestID := c.Param("request_id")
	if requestID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": "无效的请求 ID",
		})
		return
	}

	ctx := c.Request.Context()
	entry, err := ctrl.logRepo.GetByRequestID(ctx, requestID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"code":    404,
			"message": "日志不存在",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "success",
		"data":    entry,
	})
}

// UsageStats 查询时间段内的使用统计
// @Summary 查询使用统计
// @Tags Log
// @Produce json
// @Param days query int false "统计最近 N 天，默认 7"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /api/logs/stats [get]
func (ctrl *LogController) UsageStats(c *gin.Context) {
	if ctrl.logRepo == nil {
		ctrl.unavailable(c)
		return
	}

	days := 7
	if v := c.Query("days"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			days = parsed
		}
	}

	endTime := time.Now()
	startTime := endTime.AddDate(0, 0, -days)

	ctx := c.Request.Context()
	stats, err := ctrl.logRepo.GetUsageStats(ctx, startTime, endTime)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    500,
			"message": "统计失败: " + err.Error(),
		})
		return
	}

	daily, err := ctrl.logRepo.GetDailyStats(ctx, startTime, endTime)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    500,
			"message": "统计失败: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "success",
		"data": gin.H{
			"summary": stats,
			"daily":   daily,
		},
	})
}
