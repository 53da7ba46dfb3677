package pptx

import (
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	gmtext "github.com/yuin/goldmark/text"
)

// ==================== 规则规划器 ====================

// AI 提供方不可用或返回不可解析结构时的保底路径，永不失败

const (
	defaultSlideCap = 18 // 常规上限
	shortSlideCap   = 12 // guidance 含 "short" 时
	bulletsPerChunk = 4  // 纯文本分块时每张幻灯片的要点数
	longParagraph   = 200
)

// PlanFromText 直接从原始文本/Markdown 派生幻灯片计划
// 确定性：相同输入永远产出相同计划
func PlanFromText(raw, guidance string) SlidePlan {
	var slides SlidePlan
	if looksLikeMarkdown(raw) {
		slides = planFromMarkdown(raw)
	}
	if len(slides) == 0 {
		slides = planFromPlainText(raw)
	}
	if len(slides) == 0 {
		bullet := "No content provided"
		if t := strings.TrimSpace(raw); t != "" {
			bullet = clamp(t, maxBulletLen)
		}
		slides = SlidePlan{{
			Title:      "Content Overview",
			LayoutHint: HintBullets,
			Bullets:    []string{bullet},
		}}
	}

	// 首段作为标题页
	if len(slides[0].Bullets) == 0 {
		slides[0].LayoutHint = HintTitle
	} else {
		slides[0].LayoutHint = HintTitleContent
	}

	limit := defaultSlideCap
	if strings.Contains(strings.ToLower(guidance), "short") {
		limit = shortSlideCap
	}
	if len(slides) > limit {
		slides = slides[:limit]
	}
	return slides
}

// looksLikeMarkdown 是否存在结构化标记（标题或列表项）
// 纯散文走段落分块路径
func looksLikeMarkdown(raw string) bool {
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "#") ||
			strings.HasPrefix(line, "- ") ||
			strings.HasPrefix(line, "* ") {
			return true
		}
	}
	return false
}

// planFromMarkdown 以结构化标记分段：一、二级标题开启新幻灯片，
// 标题之后的行成为要点，超长段落在句子边界拆分
func planFromMarkdown(raw string) SlidePlan {
	src := []byte(raw)
	doc := goldmark.New().Parser().Parse(gmtext.NewReader(src))

	var slides SlidePlan
	current := SlideSpec{LayoutHint: HintBullets}

	flush := func() {
		if current.Title != "" || len(current.Bullets) > 0 {
			if current.Title == "" {
				current.Title = "Overview"
			}
			slides = append(slides, current)
		}
		current = SlideSpec{LayoutHint: HintBullets}
	}

	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		switch node := n.(type) {
		case *ast.Heading:
			if node.Level <= 2 {
				flush()
				current.Title = clamp(nodeText(node, src), maxTitleLen)
				continue
			}
			// 深层标题降级为要点
			addBullets(&current, nodeText(node, src))
		case *ast.List:
			for item := node.FirstChild(); item != nil; item = item.NextSibling() {
				addBullets(&current, nodeText(item, src))
			}
		default:
			text := nodeText(n, src)
			if strings.TrimSpace(text) == "" {
				continue
			}
			if current.Title == "" {
				current.Title = clamp(strings.TrimSpace(text), maxTitleLen)
				continue
			}
			addBullets(&current, text)
		}
	}
	flush()
	return slides
}

// addBullets 追加要点：逐行切分，超长段落在句子边界再拆
func addBullets(spec *SlideSpec, text string) {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if len([]rune(line)) > longParagraph {
			for _, sentence := range splitSentences(line) {
				spec.Bullets = append(spec.Bullets, clamp(sentence, maxBulletLen))
			}
			continue
		}
		spec.Bullets = append(spec.Bullets, clamp(line, maxBulletLen))
	}
}

// planFromPlainText 没有任何 Markdown 结构时按段落分块
func planFromPlainText(raw string) SlidePlan {
	paragraphs := splitParagraphs(raw)
	if len(paragraphs) == 0 {
		return nil
	}

	var slides SlidePlan
	current := SlideSpec{Title: "Introduction", LayoutHint: HintBullets}
	count := 1

	for _, p := range paragraphs {
		if len(current.Bullets) >= bulletsPerChunk {
			slides = append(slides, current)
			count++
			current = SlideSpec{
				Title:      "Key Points " + strconv.Itoa(count),
				LayoutHint: HintBullets,
			}
		}
		if len([]rune(p)) > longParagraph {
			for _, sentence := range splitSentences(p) {
				current.Bullets = append(current.Bullets, clamp(sentence, maxBulletLen))
				if len(current.Bullets) >= bulletsPerChunk {
					break
				}
			}
			continue
		}
		current.Bullets = append(current.Bullets, clamp(p, maxBulletLen))
	}
	if len(current.Bullets) > 0 {
		slides = append(slides, current)
	}
	return slides
}

func splitParagraphs(raw string) []string {
	var out []string
	for _, p := range strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) > 1 {
		return out
	}
	// 没有空行分隔时退回按单行切分
	out = out[:0]
	for _, p := range strings.Split(raw, "\n") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func splitSentences(text string) []string {
	var out []string
	for _, s := range strings.Split(text, ". ") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// nodeText 抽取节点纯文本（遍历其下所有文本段）
func nodeText(n ast.Node, src []byte) string {
	var sb strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := c.(type) {
		case *ast.Text:
			sb.Write(t.Segment.Value(src))
			if t.SoftLineBreak() || t.HardLineBreak() {
				sb.WriteByte('\n')
			}
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(sb.String())
}
