package pptx

import (
	"archive/zip"
	"bytes"
	"io"
	"strings"
	"testing"
)

// ==================== 测试辅助 ====================

func readDeck(t *testing.T, data []byte) map[string]string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("产出不是合法的 zip 容器: %v", err)
	}
	entries := make(map[string]string, len(zr.File))
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("读取 %s 失败: %v", f.Name, err)
		}
		b, err := io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			t.Fatalf("读取 %s 失败: %v", f.Name, err)
		}
		entries[f.Name] = string(b)
	}
	return entries
}

func mustMap(t *testing.T, spec SlideSpec, tpl *TemplateDescriptor, deck *DeckState) PlacementResult {
	t.Helper()
	res, err := Map(spec, tpl, deck)
	if err != nil {
		t.Fatalf("Map() 失败: %v", err)
	}
	return res
}

// ==================== 容器结构测试 ====================

func TestWrite_ContainerStructure(t *testing.T) {
	tpl := mustAnalyze(t, templateOpt{withImage: true})
	deck := NewDeckState()

	placements := []PlacementResult{
		mustMap(t, SlideSpec{Title: "Opening", Subtitle: "Kickoff", LayoutHint: HintTitle}, tpl, deck),
		mustMap(t, SlideSpec{Title: "Agenda", LayoutHint: HintTitleContent, Bullets: []string{"one", "two"}}, tpl, deck),
	}

	out, err := Write(placements, tpl)
	if err != nil {
		t.Fatalf("Write() 失败: %v", err)
	}
	entries := readDeck(t, out)

	// 新幻灯片部件
	for _, name := range []string{
		"ppt/slides/slide1.xml", "ppt/slides/slide2.xml",
		"ppt/slides/_rels/slide1.xml.rels", "ppt/slides/_rels/slide2.xml.rels",
	} {
		if _, ok := entries[name]; !ok {
			t.Errorf("缺少部件 %s", name)
		}
	}
	if _, ok := entries["ppt/slides/slide3.xml"]; ok {
		t.Error("不应存在多余的幻灯片部件")
	}

	// 母版、版式、主题与媒体原样保留
	for _, name := range []string{
		"ppt/slideMasters/slideMaster1.xml",
		"ppt/slideLayouts/slideLayout1.xml",
		"ppt/slideLayouts/slideLayout4.xml",
		"ppt/theme/theme1.xml",
		"ppt/media/image1.png",
	} {
		if _, ok := entries[name]; !ok {
			t.Errorf("模板部件 %s 不应被丢弃", name)
		}
	}

	// 清单登记
	ct := entries["[Content_Types].xml"]
	if !strings.Contains(ct, "/ppt/slides/slide1.xml") || !strings.Contains(ct, "/ppt/slides/slide2.xml") {
		t.Error("[Content_Types].xml 未登记新幻灯片")
	}
	pres := entries["ppt/presentation.xml"]
	if got := strings.Count(pres, "<p:sldId "); got != 2 {
		t.Errorf("sldIdLst 条目数 = %d, 期望 2", got)
	}
	rels := entries["ppt/_rels/presentation.xml.rels"]
	if !strings.Contains(rels, "slides/slide2.xml") {
		t.Error("presentation.xml.rels 未登记新幻灯片")
	}
	if !strings.Contains(rels, "slideMasters/slideMaster1.xml") {
		t.Error("母版关系不应被剔除")
	}
}

// ==================== 内容落位测试 ====================

func TestWrite_TextInheritsLayoutGeometry(t *testing.T) {
	tpl := mustAnalyze(t, templateOpt{})
	deck := NewDeckState()

	placements := []PlacementResult{
		mustMap(t, SlideSpec{Title: "Inherit Me", LayoutHint: HintTitleContent, Bullets: []string{"alpha"}}, tpl, deck),
	}
	out, err := Write(placements, tpl)
	if err != nil {
		t.Fatalf("Write() 失败: %v", err)
	}
	entries := readDeck(t, out)
	slide := entries["ppt/slides/slide1.xml"]

	if !strings.Contains(slide, "<a:t>Inherit Me</a:t>") {
		t.Error("标题文本缺失")
	}
	if !strings.Contains(slide, "<a:t>alpha</a:t>") {
		t.Error("要点文本缺失")
	}
	// 占位符标记回写版式的 type/idx，几何留空交给继承
	if !strings.Contains(slide, `<p:ph type="title"/>`) {
		t.Error("标题占位符标记缺失")
	}
	if !strings.Contains(slide, `<p:ph type="body" idx="1"/>`) {
		t.Error("正文占位符标记缺失")
	}
	if !strings.Contains(slide, "<p:sp><p:nvSpPr") || !strings.Contains(slide, "<p:spPr/>") {
		t.Error("文字形状应使用空 spPr 继承版式几何")
	}
	// 字号落到 run 属性
	if !strings.Contains(slide, `sz="2800"`) {
		t.Error("标题字号未写入")
	}
}

func TestWrite_EscapesReservedCharacters(t *testing.T) {
	tpl := mustAnalyze(t, templateOpt{})
	deck := NewDeckState()

	placements := []PlacementResult{
		mustMap(t, SlideSpec{Title: "Profit & Loss <2026>", LayoutHint: HintTitleContent, Bullets: []string{`"quoted"`}}, tpl, deck),
	}
	out, err := Write(placements, tpl)
	if err != nil {
		t.Fatalf("Write() 失败: %v", err)
	}
	slide := readDeck(t, out)["ppt/slides/slide1.xml"]

	if !strings.Contains(slide, "Profit &amp; Loss &lt;2026&gt;") {
		t.Errorf("保留字符未转义: %s", slide)
	}
	if strings.Contains(slide, "<2026>") {
		t.Error("未转义的尖括号泄漏进 XML")
	}
}

func TestWrite_EmphasisRuns(t *testing.T) {
	tpl := mustAnalyze(t, templateOpt{})
	deck := NewDeckState()

	placements := []PlacementResult{
		mustMap(t, SlideSpec{
			Title:      "Styles",
			LayoutHint: HintTitleContent,
			Bullets:    []string{"plain **bold words** and *slanted* end"},
		}, tpl, deck),
	}
	out, err := Write(placements, tpl)
	if err != nil {
		t.Fatalf("Write() 失败: %v", err)
	}
	slide := readDeck(t, out)["ppt/slides/slide1.xml"]

	if !strings.Contains(slide, `b="1"`) {
		t.Error("加粗 run 缺失")
	}
	if !strings.Contains(slide, `i="1"`) {
		t.Error("斜体 run 缺失")
	}
	if !strings.Contains(slide, "<a:t>bold words</a:t>") {
		t.Error("加粗文本应剥掉星号标记")
	}
	if strings.Contains(slide, "**") {
		t.Error("星号标记泄漏进产出")
	}
}

func TestWrite_ImageFrameAtPlaceholderRect(t *testing.T) {
	tpl := mustAnalyze(t, templateOpt{withImage: true})
	deck := NewDeckState()

	placements := []PlacementResult{
		mustMap(t, SlideSpec{
			Title:       "Gallery",
			LayoutHint:  HintImageLeft,
			ImageIntent: "image-left",
			Bullets:     []string{"caption"},
		}, tpl, deck),
	}
	out, err := Write(placements, tpl)
	if err != nil {
		t.Fatalf("Write() 失败: %v", err)
	}
	entries := readDeck(t, out)
	slide := entries["ppt/slides/slide1.xml"]
	rels := entries["ppt/slides/_rels/slide1.xml.rels"]

	if !strings.Contains(slide, "<p:pic>") {
		t.Fatal("图片帧缺失")
	}
	// 帧落在图片占位符的精确几何上
	if !strings.Contains(slide, `<a:off x="838200" y="1825625"/>`) ||
		!strings.Contains(slide, `<a:ext cx="5181600" cy="4351338"/>`) {
		t.Errorf("图片帧几何与占位符不符: %s", slide)
	}
	// 复用模板内已有媒体，不新增文件
	if !strings.Contains(rels, "../media/image1.png") {
		t.Error("图片关系未指向模板媒体")
	}
	mediaCount := 0
	for name := range entries {
		if strings.HasPrefix(name, "ppt/media/") {
			mediaCount++
		}
	}
	if mediaCount != 1 {
		t.Errorf("媒体文件数量 = %d, 不应新增", mediaCount)
	}
}

// ==================== 备注页测试 ====================

func TestWrite_NotesOnlyWithNotesMaster(t *testing.T) {
	spec := SlideSpec{Title: "Talk", LayoutHint: HintTitleContent, Bullets: []string{"a"}, Notes: "remember to pause"}

	// 无备注母版 ⇒ 不产备注页
	tpl := mustAnalyze(t, templateOpt{})
	out, err := Write([]PlacementResult{mustMap(t, spec, tpl, NewDeckState())}, tpl)
	if err != nil {
		t.Fatalf("Write() 失败: %v", err)
	}
	if _, ok := readDeck(t, out)["ppt/notesSlides/notesSlide1.xml"]; ok {
		t.Error("无备注母版时不应产出备注页")
	}

	// 有备注母版 ⇒ 产出备注页并挂接关系
	tpl = mustAnalyze(t, templateOpt{withNotesMaster: true})
	out, err = Write([]PlacementResult{mustMap(t, spec, tpl, NewDeckState())}, tpl)
	if err != nil {
		t.Fatalf("Write() 失败: %v", err)
	}
	entries := readDeck(t, out)
	notes, ok := entries["ppt/notesSlides/notesSlide1.xml"]
	if !ok {
		t.Fatal("备注页缺失")
	}
	if !strings.Contains(notes, "remember to pause") {
		t.Error("备注文本缺失")
	}
	if !strings.Contains(entries["ppt/slides/_rels/slide1.xml.rels"], "notesSlide1.xml") {
		t.Error("幻灯片未挂接备注页关系")
	}
	if !strings.Contains(entries["[Content_Types].xml"], "/ppt/notesSlides/notesSlide1.xml") {
		t.Error("[Content_Types].xml 未登记备注页")
	}

	// 部分幻灯片带备注 ⇒ 只登记实际产出的备注页部件
	deck := NewDeckState()
	placements := []PlacementResult{
		mustMap(t, spec, tpl, deck),
		mustMap(t, SlideSpec{Title: "No Notes", LayoutHint: HintTitleContent, Bullets: []string{"b"}}, tpl, deck),
	}
	out, err = Write(placements, tpl)
	if err != nil {
		t.Fatalf("Write() 失败: %v", err)
	}
	entries = readDeck(t, out)
	if _, ok := entries["ppt/notesSlides/notesSlide1.xml"]; !ok {
		t.Error("第 1 页备注页缺失")
	}
	if _, ok := entries["ppt/notesSlides/notesSlide2.xml"]; ok {
		t.Error("无备注的幻灯片不应产出备注页")
	}
	if strings.Contains(entries["[Content_Types].xml"], "/ppt/notesSlides/notesSlide2.xml") {
		t.Error("[Content_Types].xml 登记了不存在的备注页部件")
	}
}

// ==================== 强调解析单测 ====================

func TestParseEmphasis(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []textRun
	}{
		{
			name: "纯文本",
			in:   "no markup here",
			want: []textRun{{text: "no markup here"}},
		},
		{
			name: "加粗",
			in:   "a **b** c",
			want: []textRun{{text: "a "}, {text: "b", bold: true}, {text: " c"}},
		},
		{
			name: "斜体",
			in:   "*lean* rest",
			want: []textRun{{text: "lean", italic: true}, {text: " rest"}},
		},
		{
			name: "混合",
			in:   "**b** and *i*",
			want: []textRun{{text: "b", bold: true}, {text: " and "}, {text: "i", italic: true}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseEmphasis(tt.in)
			if len(got) != len(tt.want) {
				t.Fatalf("run 数量 = %d, 期望 %d: %+v", len(got), len(tt.want), got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("run %d = %+v, 期望 %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}
