package pptx

import (
	"math"
	"strings"
)

// ==================== 文字适配引擎 ====================

// 单位换算：1 磅 = 12700 EMU
const emuPerPoint = 12700

// 字形宽度与行高的保守估算系数
// 宁可留白也绝不允许溢出占位符
const (
	avgGlyphWidthRatio = 0.52 // 平均字形宽度 ≈ 字号 × 0.52
	lineHeightRatio    = 1.2  // 行高 ≈ 字号 × 1.2
	boxPaddingPt       = 7.2  // 文本框内边距（0.1 英寸）
)

// 各角色的起始字号 / 下限字号（磅），逐级递减步长固定为 2
var (
	nominalSizes = map[PlaceholderKind]float64{
		KindTitle:    28,
		KindSubtitle: 20,
		KindBody:     16,
	}
	floorSizes = map[PlaceholderKind]float64{
		KindTitle:    18,
		KindSubtitle: 14,
		KindBody:     10,
	}
)

const fontSizeStep = 2

// truncationMarker 截断标记
const truncationMarker = "…"

// FitResult 适配结果
type FitResult struct {
	Text      string  // 适配后的文本（可能被截断）
	FontSize  float64 // 磅
	Lines     int     // 估算行数
	Truncated bool
}

// Fit 计算文本在给定占位符几何内的安全字号与截断
// 纯函数：相同输入永远得到相同输出
// 从角色对应的起始字号开始，估算高度超出则按固定步长缩小字号，
// 到达下限仍超出则在空白边界截断并追加截断标记
func Fit(text string, geom Geometry, role PlaceholderKind) FitResult {
	if geom.IsZero() {
		geom = defaultGeometry(role)
	}

	nominal, ok := nominalSizes[role]
	if !ok {
		nominal = nominalSizes[KindBody]
	}
	floor, ok := floorSizes[role]
	if !ok {
		floor = floorSizes[KindBody]
	}

	availW := float64(geom.W)/emuPerPoint - 2*boxPaddingPt
	availH := float64(geom.H)/emuPerPoint - 2*boxPaddingPt
	if availW < 1 {
		availW = 1
	}
	if availH < 1 {
		availH = 1
	}

	for size := nominal; size >= floor; size -= fontSizeStep {
		lines := estimateLines(text, size, availW)
		if float64(lines)*size*lineHeightRatio <= availH {
			return FitResult{Text: text, FontSize: size, Lines: lines}
		}
	}

	// 下限字号仍超出：截断
	truncated := truncateToFit(text, floor, availW, availH)
	return FitResult{
		Text:      truncated,
		FontSize:  floor,
		Lines:     estimateLines(truncated, floor, availW),
		Truncated: true,
	}
}

// estimateLines 估算折行后的总行数（硬换行 + 宽度折行）
func estimateLines(text string, size, availW float64) int {
	perLine := charsPerLine(size, availW)
	lines := 0
	for _, hard := range strings.Split(text, "\n") {
		n := len([]rune(hard))
		if n == 0 {
			lines++
			continue
		}
		lines += int(math.Ceil(float64(n) / float64(perLine)))
	}
	if lines < 1 {
		lines = 1
	}
	return lines
}

// charsPerLine 每行可容纳的字符数
func charsPerLine(size, availW float64) int {
	n := int(availW / (size * avgGlyphWidthRatio))
	if n < 1 {
		n = 1
	}
	return n
}

// truncateToFit 在下限字号下截断文本：先按可容纳字符数截到最近的空白边界，再追加标记
func truncateToFit(text string, size, availW, availH float64) string {
	maxLines := int(availH / (size * lineHeightRatio))
	if maxLines < 1 {
		maxLines = 1
	}
	budget := maxLines * charsPerLine(size, availW)

	runes := []rune(text)
	if budget >= len(runes) {
		// 行数估算保守导致的边界情况：整体保留但仍标记截断
		return strings.TrimRight(text, " \t\n") + truncationMarker
	}
	// 给截断标记留一个字符
	cut := budget - 1
	if cut < 1 {
		cut = 1
	}

	// 回退到最近的空白边界，绝不从单词中间截断
	boundary := -1
	for i := cut; i > 0; i-- {
		if isSpace(runes[i]) {
			boundary = i
			break
		}
	}
	if boundary <= 0 {
		boundary = cut
	}
	return strings.TrimRight(string(runes[:boundary]), " \t\n") + truncationMarker
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

// defaultGeometry 占位符几何继承自母版时的保守默认框
// 取 4:3 模板下的常见尺寸，刻意偏小以保证不溢出真实的继承框
func defaultGeometry(role PlaceholderKind) Geometry {
	switch role {
	case KindTitle:
		return Geometry{X: 457200, Y: 274638, W: 8229600, H: 1143000}
	case KindSubtitle:
		return Geometry{X: 457200, Y: 1600200, W: 8229600, H: 1143000}
	default:
		return Geometry{X: 457200, Y: 1600200, W: 8229600, H: 4525963}
	}
}
