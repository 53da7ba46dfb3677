package pptx

import "strings"

// ==================== 重复内容防护 ====================

// UsedContentSet 单张幻灯片内已放置内容的集合
// 映射器与图片解析器在构建一张 PlacementResult 期间查询并更新，幻灯片合成后即丢弃
type UsedContentSet struct {
	texts  map[string]struct{}
	images map[string]struct{}
}

// NewUsedContentSet 创建空集合
func NewUsedContentSet() *UsedContentSet {
	return &UsedContentSet{
		texts:  make(map[string]struct{}),
		images: make(map[string]struct{}),
	}
}

// NormalizeText 文本归一化：小写 + 空白折叠
// 归一化后相同即视为重复（备注字段除外）
func NormalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// IsDuplicateText 该文本是否已在当前幻灯片出现
func (u *UsedContentSet) IsDuplicateText(text string) bool {
	norm := NormalizeText(text)
	if norm == "" {
		return false
	}
	_, ok := u.texts[norm]
	return ok
}

// RegisterText 登记已放置文本
func (u *UsedContentSet) RegisterText(text string) {
	norm := NormalizeText(text)
	if norm == "" {
		return
	}
	u.texts[norm] = struct{}{}
}

// IsDuplicateImage 该图片资产是否已绑定到当前幻灯片
// 图片只在单张幻灯片范围内判重，同一图片可以在不同幻灯片上复用
func (u *UsedContentSet) IsDuplicateImage(assetID string) bool {
	_, ok := u.images[assetID]
	return ok
}

// RegisterImage 登记已放置图片
func (u *UsedContentSet) RegisterImage(assetID string) {
	u.images[assetID] = struct{}{}
}
