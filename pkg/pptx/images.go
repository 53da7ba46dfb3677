package pptx

import (
	"sort"
	"strings"
)

// ==================== 图片槽位解析器 ====================

// ResolveImage 为 image_intent 匹配目标占位符与来源图片
// 只允许 image/object/media 类型的占位符作为目标；文字占位符永远不放图。
// 选择策略：优先来源上下文（原占位符类型 / 原版式名）与意图匹配的资产，
// 否则按套组级轮询游标取下一张，保证整套幻灯片的图片多样性。
// 版式上没有可用槽位时返回 false，不是错误
func ResolveImage(intent string, layout LayoutInfo, tpl *TemplateDescriptor, deck *DeckState, used *UsedContentSet, taken map[int]bool) (*ImageAsset, PlaceholderInfo, bool) {
	if intent == "" || len(tpl.Images) == 0 {
		return nil, PlaceholderInfo{}, false
	}

	target, ok := pickImageSlot(layout, taken)
	if !ok {
		return nil, PlaceholderInfo{}, false
	}

	asset := pickAsset(intent, target, tpl, deck, used)
	if asset == nil {
		return nil, PlaceholderInfo{}, false
	}
	return asset, target, true
}

// pickImageSlot 选择未占用的图片槽位，按占位符下标稳定排序
func pickImageSlot(layout LayoutInfo, taken map[int]bool) (PlaceholderInfo, bool) {
	var candidates []PlaceholderInfo
	for _, ph := range layout.Placeholders {
		if ph.Kind.IsImageTarget() && !taken[ph.Index] {
			candidates = append(candidates, ph)
		}
	}
	if len(candidates) == 0 {
		return PlaceholderInfo{}, false
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Index < candidates[j].Index })
	return candidates[0], true
}

// pickAsset 选择来源图片
func pickAsset(intent string, target PlaceholderInfo, tpl *TemplateDescriptor, deck *DeckState, used *UsedContentSet) *ImageAsset {
	// 1. 来源上下文匹配：原占位符类型与目标一致，或原版式名与意图相关
	var preferred []int
	for i, asset := range tpl.Images {
		if used.IsDuplicateImage(asset.ID) {
			continue
		}
		if asset.OriginKind == target.Kind || contextMatches(intent, asset.OriginLayoutName) {
			preferred = append(preferred, i)
		}
	}
	if len(preferred) > 0 {
		return &tpl.Images[preferred[0]]
	}

	// 2. 轮询回退：沿套组游标找下一张未在本幻灯片用过的资产
	n := len(tpl.Images)
	for probe := 0; probe < n; probe++ {
		idx := (deck.imageCursor + probe) % n
		asset := &tpl.Images[idx]
		if used.IsDuplicateImage(asset.ID) {
			continue
		}
		deck.imageCursor = idx + 1
		return asset
	}
	return nil
}

// contextMatches 意图与来源版式名的弱匹配（如 section 意图偏好原先在节标题页上的图）
func contextMatches(intent, originLayoutName string) bool {
	if intent == "" || originLayoutName == "" {
		return false
	}
	name := strings.ToLower(originLayoutName)
	for _, token := range strings.FieldsFunc(intent, func(r rune) bool { return r == '-' || r == '+' || r == ' ' }) {
		if token == "image" || token == "left" || token == "right" {
			continue
		}
		if strings.Contains(name, token) {
			return true
		}
	}
	return false
}
