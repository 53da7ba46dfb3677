package middleware

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// ==================== GenerateRateLimiter 生成限流器 ====================

// GenerateRateLimiter 生成请求限流器
// 模板分析与 AI 规划都是重操作，按客户端维度做冷却防止刷接口
type GenerateRateLimiter struct {
	locks sync.Map // key -> *lockEntry
}

// lockEntry 锁条目
type lockEntry struct {
	lastTime time.Time
	mu       sync.Mutex
}

// 全局限流器实例
var globalLimiter = &GenerateRateLimiter{}

// GetLimiter 获取全局限流器
func GetLimiter() *GenerateRateLimiter {
	return globalLimiter
}

// ==================== 限流检查 ====================

// CheckResult 检查结果
type CheckResult struct {
	Allowed    bool          // 是否允许
	RetryAfter time.Duration // 剩余冷却时间
}

// Check 检查是否允许执行，允许时同时更新最后执行时间
// key: 限流键，如 "client:1.2.3.4:generate"
// interval: 冷却间隔
func (r *GenerateRateLimiter) Check(key string, interval time.Duration) CheckResult {
	actual, _ := r.locks.LoadOrStore(key, &lockEntry{})
	entry := actual.(*lockEntry)

	entry.mu.Lock()
	defer entry.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(entry.lastTime)

	if elapsed < interval {
		return CheckResult{
			Allowed:    false,
			RetryAfter: interval - elapsed,
		}
	}

	entry.lastTime = now
	return CheckResult{Allowed: true}
}

// Reset 重置指定 key 的限流
func (r *GenerateRateLimiter) Reset(key string) {
	r.locks.Delete(key)
}

// ClientKey 生成客户端级限流 Key
func ClientKey(clientIP, action string) string {
	return fmt.Sprintf("client:%s:%s", clientIP, action)
}

// ==================== Gin 中间件 ====================

// GenerateCooldown 生成接口冷却中间件
// interval <= 0 时关闭限流（测试与内网部署用）
func GenerateCooldown(interval time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if interval <= 0 {
			c.Next()
			return
		}

		result := globalLimiter.Check(ClientKey(c.ClientIP(), "generate"), interval)
		if !result.Allowed {
			c.Header("Retry-After", fmt.Sprintf("%d", int(result.RetryAfter.Seconds())+1))
			c.JSON(http.StatusTooManyRequests, gin.H{
				"code":    429,
				"message": fmt.Sprintf("请求过于频繁，请 %d 秒后重试", int(result.RetryAfter.Seconds())+1),
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
