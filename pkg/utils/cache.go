package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

// 使用 sync.Map 保证并发安全
var (
	templateCache sync.Map
)

// cacheItem 内部结构，包含值和过期时间
type cacheItem struct {
	value      interface{}
	expiration int64
}

// 模板分析结果缓存：同一份模板反复上传时跳过重复解析
// 默认 30 分钟过期，足够覆盖一轮编辑-生成循环。
// 缓存值在请求间共享，调用方只读不改：分析结果一经写入不得再修改
const templateCacheTTL = 30 * time.Minute

// TemplateKey 由模板原始字节派生缓存键
func TemplateKey(templateBytes []byte) string {
	sum := sha256.Sum256(templateBytes)
	return hex.EncodeToString(sum[:])
}

// SetTemplate 缓存模板分析结果
func SetTemplate(key string, value interface{}) {
	exp := time.Now().Add(templateCacheTTL).Unix()

	templateCache.Store(key, cacheItem{
		value:      value,
		expiration: exp,
	})
}

// GetTemplate 获取缓存并验证是否过期
func GetTemplate(key string) (interface{}, bool) {
	val, ok := templateCache.Load(key)
	if !ok {
		return nil, false
	}

	item := val.(cacheItem)

	// 懒删除
	if time.Now().Unix() > item.expiration {
		templateCache.Delete(key)
		return nil, false
	}

	return item.value, true
}

// DeleteTemplate 删除缓存
func DeleteTemplate(key string) {
	templateCache.Delete(key)
}
