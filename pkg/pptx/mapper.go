package pptx

import (
	"fmt"
	"sort"
	"strings"
)

// ==================== 占位符映射器（版式选择器） ====================

// Map 为一张 SlideSpec 选定版式并把每个内容字段绑定到具体占位符
// 确定性：相同输入永远得到相同绑定。绝不凭空创建形状：
// 找不到对应类型占位符的字段直接丢弃并记入诊断，不挪到别处。
// 仅当模板没有任何版式时返回 ErrNoLayouts
func Map(spec SlideSpec, tpl *TemplateDescriptor, deck *DeckState) (PlacementResult, error) {
	if len(tpl.Layouts) == 0 {
		return PlacementResult{}, ErrNoLayouts
	}

	layout := pickLayout(spec, tpl.Layouts)
	used := NewUsedContentSet()
	taken := make(map[int]bool)
	res := PlacementResult{LayoutIndex: layout.Index}

	// 标题与副标题只进各自类型的占位符
	if spec.Title != "" {
		bindText(&res, layout, KindTitle, spec.Title, "title", used, taken)
	}
	if spec.Subtitle != "" {
		bindText(&res, layout, KindSubtitle, spec.Subtitle, "subtitle", used, taken)
	}

	// 要点分配到正文占位符
	if len(spec.Bullets) > 0 {
		bindBullets(&res, layout, spec.Bullets, used, taken)
	}

	// 图片槽位
	if spec.ImageIntent != "" {
		if asset, target, ok := ResolveImage(spec.ImageIntent, layout, tpl, deck, used, taken); ok {
			taken[target.Index] = true
			used.RegisterImage(asset.ID)
			res.Bindings = append(res.Bindings, Binding{
				PlaceholderIndex: target.Index,
				Content:          ResolvedContent{Kind: ContentImage, ImageID: asset.ID},
			})
		} else if !layout.HasImageSlot() {
			res.Dropped = append(res.Dropped, "image: 版式无可用图片槽位")
		}
	}

	// 备注独立于可见占位符，不做判重与溢出检查
	res.Notes = spec.Notes

	return res, nil
}

// ==================== 版式选择 ====================

// 打分权重：提示词词元命中版式名 4 分，满足一项结构需求 2 分，
// 缺失一项需求 -1 分，无图需求却带图片槽位 -1 分；同分取最小下标
const (
	hintMatchWeight   = 4
	needMatchWeight   = 2
	needMissPenalty   = 1
	unusedSlotPenalty = 1
)

func pickLayout(spec SlideSpec, layouts []LayoutInfo) LayoutInfo {
	best := layouts[0]
	bestScore := scoreLayout(spec, layouts[0])
	for _, l := range layouts[1:] {
		if s := scoreLayout(spec, l); s > bestScore {
			best, bestScore = l, s
		}
	}
	return best
}

func scoreLayout(spec SlideSpec, layout LayoutInfo) int {
	score := 0
	name := strings.ToLower(layout.Name)

	for _, token := range hintTokens(spec.LayoutHint) {
		if strings.Contains(name, token) {
			score += hintMatchWeight
		}
	}

	wantsImage := spec.ImageIntent != "" ||
		spec.LayoutHint == HintImageLeft || spec.LayoutHint == HintImageRight

	needs := []struct {
		wanted bool
		has    bool
	}{
		{spec.Title != "", layout.HasKind(KindTitle)},
		{len(spec.Bullets) > 0, layout.HasKind(KindBody)},
		{spec.Subtitle != "", layout.HasKind(KindSubtitle)},
		{wantsImage, layout.HasImageSlot()},
	}
	for _, n := range needs {
		if !n.wanted {
			continue
		}
		if n.has {
			score += needMatchWeight
		} else {
			score -= needMissPenalty
		}
	}

	if !wantsImage && layout.HasImageSlot() {
		score -= unusedSlotPenalty
	}
	return score
}

// hintTokens 提示词到版式名词元的映射（参考常见母版的版式命名）
func hintTokens(hint string) []string {
	switch hint {
	case HintTitleContent:
		return []string{"title", "content"}
	case HintSection:
		return []string{"section"}
	case HintTwoColumn:
		return []string{"two", "comparison"}
	case HintImageLeft, HintImageRight:
		return []string{"picture", "caption"}
	case HintQuote:
		return []string{"quote"}
	case HintTitle:
		return []string{"title"}
	case HintBullets, "":
		return []string{"content"}
	default:
		return strings.Fields(strings.NewReplacer("-", " ", "+", " ").Replace(hint))
	}
}

// ==================== 文本绑定 ====================

// bindText 为单值字段选占位符：在满足最小容量的候选中取最小者，
// 全部装不下时取最大者并接受截断
func bindText(res *PlacementResult, layout LayoutInfo, kind PlaceholderKind, text, field string, used *UsedContentSet, taken map[int]bool) {
	if used.IsDuplicateText(text) {
		res.Dropped = append(res.Dropped, field+": 与本页已放置内容重复")
		return
	}

	candidates := availableOfKind(layout, kind, taken)
	if len(candidates) == 0 {
		res.Dropped = append(res.Dropped, field+": 版式无可用 "+string(kind)+" 占位符")
		return
	}

	chosen := candidates[len(candidates)-1]
	fit := Fit(text, chosen.Geometry, kind)
	for _, ph := range candidates {
		if f := Fit(text, ph.Geometry, kind); !f.Truncated {
			chosen, fit = ph, f
			break
		}
	}

	taken[chosen.Index] = true
	used.RegisterText(text)
	res.Bindings = append(res.Bindings, Binding{
		PlaceholderIndex: chosen.Index,
		Content: ResolvedContent{
			Kind:      ContentText,
			Text:      fit.Text,
			FontSize:  fit.FontSize,
			Truncated: fit.Truncated,
		},
	})
}

// bindBullets 把要点按顺序分配到未占用的正文占位符
// 多个正文占位符时优先均分（双栏版式的自然用法）；均分装不下则改为
// 按容量贪心顺延，装不下的余量交给下一个占位符，全部槽位耗尽后才丢弃
func bindBullets(res *PlacementResult, layout LayoutInfo, bullets []string, used *UsedContentSet, taken map[int]bool) {
	// 先过一遍判重
	var pending []string
	for _, b := range bullets {
		if used.IsDuplicateText(b) {
			res.Dropped = append(res.Dropped, "bullet: 与本页已放置内容重复: "+clamp(b, 40))
			continue
		}
		used.RegisterText(b)
		pending = append(pending, b)
	}
	if len(pending) == 0 {
		return
	}

	bodies := bodyPlaceholders(layout, taken)
	if len(bodies) == 0 {
		res.Dropped = append(res.Dropped, fmt.Sprintf("bullets: 版式无可用正文占位符，丢弃 %d 条", len(pending)))
		return
	}

	// 均分方案：每组都完整装下才采纳
	if groups, fits, ok := packEven(pending, bodies); ok {
		for i, group := range groups {
			if len(group) == 0 {
				continue
			}
			ph := bodies[i]
			taken[ph.Index] = true
			res.Bindings = append(res.Bindings, Binding{
				PlaceholderIndex: ph.Index,
				Content: ResolvedContent{
					Kind:     ContentText,
					Text:     fits[i].Text,
					FontSize: fits[i].FontSize,
				},
			})
		}
		return
	}

	// 贪心顺延：保持要点顺序，每个槽位尽量多装整条要点
	remaining := pending
	for i, ph := range bodies {
		if len(remaining) == 0 {
			break
		}
		accepted, fit := packBullets(remaining, ph.Geometry)
		// 一条也装不完整时让给后面的槽位，只有最后一个槽位接受截断
		if fit.Truncated && i < len(bodies)-1 {
			continue
		}
		taken[ph.Index] = true
		res.Bindings = append(res.Bindings, Binding{
			PlaceholderIndex: ph.Index,
			Content: ResolvedContent{
				Kind:      ContentText,
				Text:      fit.Text,
				FontSize:  fit.FontSize,
				Truncated: fit.Truncated,
			},
		})
		remaining = remaining[accepted:]
	}
	if len(remaining) > 0 {
		res.Dropped = append(res.Dropped, fmt.Sprintf("bullets: 容量不足，丢弃 %d 条", len(remaining)))
	}
}

// packEven 均分试装：任一组装不下即放弃整套方案
func packEven(bullets []string, bodies []PlaceholderInfo) ([][]string, []FitResult, bool) {
	groups := splitEven(bullets, len(bodies))
	fits := make([]FitResult, len(groups))
	for i, group := range groups {
		if len(group) == 0 {
			continue
		}
		accepted, f := packBullets(group, bodies[i].Geometry)
		if accepted < len(group) || f.Truncated {
			return nil, nil, false
		}
		fits[i] = f
	}
	return groups, fits, true
}

// packBullets 在单个占位符内尽量多装要点；一条都装不下时装入首条的截断版本
func packBullets(bullets []string, geom Geometry) (int, FitResult) {
	best := 0
	var bestFit FitResult
	for k := 1; k <= len(bullets); k++ {
		f := Fit(strings.Join(bullets[:k], "\n"), geom, KindBody)
		if f.Truncated {
			break
		}
		best, bestFit = k, f
	}
	if best == 0 {
		return 1, Fit(bullets[0], geom, KindBody)
	}
	return best, bestFit
}

// splitEven 把要点均分为 n 组（组数不超过要点数）
func splitEven(items []string, n int) [][]string {
	if n > len(items) {
		n = len(items)
	}
	groups := make([][]string, n)
	size := (len(items) + n - 1) / n
	for i := range groups {
		lo := i * size
		hi := lo + size
		if hi > len(items) {
			hi = len(items)
		}
		if lo < hi {
			groups[i] = items[lo:hi]
		}
	}
	return groups
}

// availableOfKind 指定类型的未占用占位符，按"最小够用优先"排序
// 几何继承自母版（未测量）的排在已测量者之后
func availableOfKind(layout LayoutInfo, kind PlaceholderKind, taken map[int]bool) []PlaceholderInfo {
	var out []PlaceholderInfo
	for _, ph := range layout.Placeholders {
		if ph.Kind == kind && !taken[ph.Index] {
			out = append(out, ph)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		gi, gj := out[i].Geometry, out[j].Geometry
		if gi.IsZero() != gj.IsZero() {
			return !gi.IsZero()
		}
		if gi.Area() != gj.Area() {
			return gi.Area() < gj.Area()
		}
		return out[i].Index < out[j].Index
	})
	return out
}

// bodyPlaceholders 正文占位符按版式声明顺序返回
func bodyPlaceholders(layout LayoutInfo, taken map[int]bool) []PlaceholderInfo {
	var out []PlaceholderInfo
	for _, ph := range layout.Placeholders {
		if ph.Kind == KindBody && !taken[ph.Index] {
			out = append(out, ph)
		}
	}
	return out
}
