package pptx

import "errors"

// ==================== 错误定义 ====================

var (
	// ErrInvalidTemplate 模板容器无法打开或不含任何可用版式
	ErrInvalidTemplate = errors.New("pptx: 模板无法解析或不含可用版式")

	// ErrPlanInvalid AI 返回的幻灯片计划结构不合法，调用方应转用规则规划器
	ErrPlanInvalid = errors.New("pptx: 幻灯片计划结构不合法")

	// ErrNoLayouts 模板没有任何版式（仅在降级路径上出现）
	ErrNoLayouts = errors.New("pptx: 模板没有任何版式")
)

// ==================== 占位符类型 ====================

// PlaceholderKind 占位符语义类型，解析阶段一次性确定，下游不再重新推断
type PlaceholderKind string

const (
	KindTitle    PlaceholderKind = "title"
	KindBody     PlaceholderKind = "body"
	KindSubtitle PlaceholderKind = "subtitle"
	KindImage    PlaceholderKind = "image"
	KindObject   PlaceholderKind = "object"
	KindMedia    PlaceholderKind = "media"
	KindOther    PlaceholderKind = "other"
)

// IsImageTarget 是否允许放置图片（文字占位符永远不放图）
func (k PlaceholderKind) IsImageTarget() bool {
	return k == KindImage || k == KindObject || k == KindMedia
}

// IsTextTarget 是否允许放置文字
func (k PlaceholderKind) IsTextTarget() bool {
	return k == KindTitle || k == KindBody || k == KindSubtitle
}

// ==================== 几何信息 ====================

// Geometry 占位符的位置与尺寸，单位 EMU（914400 EMU = 1 英寸）
type Geometry struct {
	X int64
	Y int64
	W int64
	H int64
}

// IsZero 版式未声明自身几何（继承母版）时为零矩形
func (g Geometry) IsZero() bool {
	return g.W == 0 && g.H == 0
}

// Area 面积，用于"最小够用"占位符排序
func (g Geometry) Area() int64 {
	return g.W * g.H
}

// ==================== 模板描述符 ====================

// PlaceholderInfo 单个占位符的清单项
type PlaceholderInfo struct {
	Index     int             // ph@idx，标题通常为 0
	Kind      PlaceholderKind // 语义类型
	TypeAttr  string          // OOXML 原始 type 属性，写出时原样回写
	Name      string          // 形状名称
	Geometry  Geometry        // 版式声明的几何；继承时为零矩形
	Inherited bool            // 几何继承自母版
	IsEmpty   bool            // 版式上不带预置文字
}

// LayoutInfo 单个版式的清单项
type LayoutInfo struct {
	Index        int    // 枚举顺序（按版式文件编号）
	Name         string // cSld@name
	Path         string // zip 内路径，如 ppt/slideLayouts/slideLayout1.xml
	Placeholders []PlaceholderInfo
}

// HasKind 版式是否含指定类型的占位符
func (l LayoutInfo) HasKind(kind PlaceholderKind) bool {
	for _, ph := range l.Placeholders {
		if ph.Kind == kind {
			return true
		}
	}
	return false
}

// HasImageSlot 版式是否含可放图片的占位符
func (l LayoutInfo) HasImageSlot() bool {
	for _, ph := range l.Placeholders {
		if ph.Kind.IsImageTarget() {
			return true
		}
	}
	return false
}

// ImageAsset 模板中已嵌入的图片资产（去重后）
type ImageAsset struct {
	ID               string          // 内容哈希派生的稳定 ID
	Blob             []byte          // 原始字节
	Ext              string          // png / jpeg 等
	Path             string          // zip 内媒体路径，写出时按路径复用
	OriginSlide      int             // 首次出现的幻灯片序号
	OriginKind       PlaceholderKind // 原先所在占位符的类型；非占位符图片为 other
	OriginLayoutName string          // 原幻灯片使用的版式名
	AspectRatio      float64         // 宽高比，未知为 0
}

// Theme 主题信息，仅作为排版默认值参考，不覆盖占位符局部格式
type Theme struct {
	MajorFont    string
	MinorFont    string
	AccentColors []string
}

// TemplateDescriptor 一次上传模板的只读快照，请求结束即丢弃
type TemplateDescriptor struct {
	SlideW  int64 // 幻灯片宽度 EMU
	SlideH  int64 // 幻灯片高度 EMU
	Layouts []LayoutInfo
	Images  []ImageAsset
	Theme   Theme

	HasNotesMaster bool

	raw []byte // 原始模板容器，合成器克隆时使用
}

// Raw 原始模板字节
func (t *TemplateDescriptor) Raw() []byte {
	return t.raw
}

// Layout 按下标取版式，越界回退到首个版式
func (t *TemplateDescriptor) Layout(idx int) LayoutInfo {
	if idx < 0 || idx >= len(t.Layouts) {
		return t.Layouts[0]
	}
	return t.Layouts[idx]
}

// ==================== 幻灯片计划 ====================

// SlideSpec 单张幻灯片的语义描述（排版前）
type SlideSpec struct {
	Title       string   `json:"title"`
	Subtitle    string   `json:"subtitle,omitempty"`
	Bullets     []string `json:"bullets"`
	Notes       string   `json:"notes,omitempty"`
	LayoutHint  string   `json:"layout_hint"`
	ImageIntent string   `json:"image_intent,omitempty"`
}

// SlidePlan 有序的幻灯片计划
type SlidePlan []SlideSpec

// 可用的版式提示（与规划提示词保持一致）
const (
	HintTitleContent = "title+content"
	HintSection      = "section"
	HintTwoColumn    = "two-column"
	HintBullets      = "bullets"
	HintImageLeft    = "image-left"
	HintImageRight   = "image-right"
	HintQuote        = "quote"
	HintTitle        = "title"
)

// ==================== 放置结果 ====================

// ContentKind 绑定内容的种类
type ContentKind string

const (
	ContentText  ContentKind = "text"
	ContentImage ContentKind = "image"
)

// ResolvedContent 绑定到占位符的最终内容
type ResolvedContent struct {
	Kind      ContentKind
	Text      string  // Kind == text 时有效，项目符号以 \n 分隔
	FontSize  float64 // 磅
	Truncated bool
	ImageID   string // Kind == image 时有效
}

// Binding 占位符下标到内容的一条绑定
type Binding struct {
	PlaceholderIndex int
	Content          ResolvedContent
}

// PlacementResult 单张幻灯片的放置结果，由映射器一次性产出，合成器只做应用
type PlacementResult struct {
	LayoutIndex int
	Bindings    []Binding
	Notes       string   // 演讲者备注，独立于可见占位符
	Dropped     []string // 被丢弃字段的诊断信息（非致命）
}

// BindingFor 查询某占位符的绑定
func (p PlacementResult) BindingFor(phIdx int) (ResolvedContent, bool) {
	for _, b := range p.Bindings {
		if b.PlaceholderIndex == phIdx {
			return b.Content, true
		}
	}
	return ResolvedContent{}, false
}

// ==================== 套组状态 ====================

// DeckState 跨幻灯片的轮换状态（图片轮询游标），单次生成内有效
type DeckState struct {
	imageCursor int
}

// NewDeckState 创建套组状态
func NewDeckState() *DeckState {
	return &DeckState{}
}
