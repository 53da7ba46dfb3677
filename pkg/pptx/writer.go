package pptx

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// ==================== 幻灯片合成器 ====================

// Write 把已解析的放置结果应用到模板克隆上，产出成品容器字节
// 只做应用：不再做任何映射、适配或判重。
// 克隆时丢弃模板原有幻灯片与备注页，保留母版、版式、主题与媒体，
// 图片绑定按媒体路径复用模板内已有资源，不写入新媒体文件
func Write(placements []PlacementResult, tpl *TemplateDescriptor) ([]byte, error) {
	raw := tpl.Raw()
	reader, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTemplate, err)
	}

	assetByID := make(map[string]*ImageAsset, len(tpl.Images))
	for i := range tpl.Images {
		assetByID[tpl.Images[i].ID] = &tpl.Images[i]
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	var origContentTypes, origPresentation, origPresRels []byte

	// 1. 克隆模板（跳过将被重写的条目）
	for _, f := range reader.File {
		name := f.Name
		data, err := readZipEntry(f)
		if err != nil {
			return nil, err
		}
		switch {
		case name == "[Content_Types].xml":
			origContentTypes = data
			continue
		case name == "ppt/presentation.xml":
			origPresentation = data
			continue
		case name == "ppt/_rels/presentation.xml.rels":
			origPresRels = data
			continue
		case name == "docProps/app.xml":
			continue
		case strings.HasPrefix(name, "ppt/slides/"),
			strings.HasPrefix(name, "ppt/notesSlides/"):
			continue
		}
		if err := writeEntry(zw, name, data); err != nil {
			return nil, err
		}
	}

	// 备注页按张产出：只有备注非空的幻灯片才有 notesSlide 部件，
	// [Content_Types].xml 的登记必须与实际写出的部件一一对应
	notesFlags := make([]bool, len(placements))
	if tpl.HasNotesMaster {
		for i, pr := range placements {
			notesFlags[i] = strings.TrimSpace(pr.Notes) != ""
		}
	}

	// 2. 重写容器级部件
	if err := writeEntry(zw, "[Content_Types].xml", rebuildContentTypes(origContentTypes, len(placements), notesFlags)); err != nil {
		return nil, err
	}
	if err := writeEntry(zw, "ppt/presentation.xml", spliceSlideList(origPresentation, len(placements))); err != nil {
		return nil, err
	}
	if err := writeEntry(zw, "ppt/_rels/presentation.xml.rels", rebuildPresentationRels(origPresRels, len(placements))); err != nil {
		return nil, err
	}
	if err := writeEntry(zw, "docProps/app.xml", []byte(appPropsXML(len(placements)))); err != nil {
		return nil, err
	}

	// 3. 逐张写出幻灯片
	for i, pr := range placements {
		n := i + 1
		layout := tpl.Layout(pr.LayoutIndex)
		hasNotes := notesFlags[i]

		slideXML, slideRels, err := buildSlide(pr, layout, assetByID, hasNotes, n)
		if err != nil {
			return nil, err
		}
		if err := writeEntry(zw, fmt.Sprintf("ppt/slides/slide%d.xml", n), slideXML); err != nil {
			return nil, err
		}
		if err := writeEntry(zw, fmt.Sprintf("ppt/slides/_rels/slide%d.xml.rels", n), slideRels); err != nil {
			return nil, err
		}

		if hasNotes {
			if err := writeEntry(zw, fmt.Sprintf("ppt/notesSlides/notesSlide%d.xml", n), buildNotesSlide(pr.Notes)); err != nil {
				return nil, err
			}
			if err := writeEntry(zw, fmt.Sprintf("ppt/notesSlides/_rels/notesSlide%d.xml.rels", n), buildNotesRels(n)); err != nil {
				return nil, err
			}
		}
	}

	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func readZipEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("读取模板条目 %s 失败: %w", f.Name, err)
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func writeEntry(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("写入条目 %s 失败: %w", name, err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("写入条目 %s 失败: %w", name, err)
	}
	return nil
}

// ==================== 容器级部件重写 ====================

const (
	ctSlide      = "application/vnd.openxmlformats-officedocument.presentationml.slide+xml"
	ctNotesSlide = "application/vnd.openxmlformats-officedocument.presentationml.notesSlide+xml"
	relTypeSlide = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/slide"
)

type contentTypesXML struct {
	XMLName   xml.Name `xml:"Types"`
	Defaults  []ctDefaultXML
	Overrides []ctOverrideXML
}

type ctDefaultXML struct {
	XMLName     xml.Name `xml:"Default"`
	Extension   string   `xml:"Extension,attr"`
	ContentType string   `xml:"ContentType,attr"`
}

type ctOverrideXML struct {
	XMLName     xml.Name `xml:"Override"`
	PartName    string   `xml:"PartName,attr"`
	ContentType string   `xml:"ContentType,attr"`
}

// rebuildContentTypes 过滤旧幻灯片的 Override 并登记新写出的部件
// notesFlags 与幻灯片一一对应：声明不存在的备注页部件会触发修复提示
func rebuildContentTypes(orig []byte, slideCount int, notesFlags []bool) []byte {
	var doc contentTypesXML
	_ = xml.Unmarshal(orig, &doc)

	var sb strings.Builder
	sb.WriteString(xml.Header)
	sb.WriteString(`<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">`)
	for _, d := range doc.Defaults {
		fmt.Fprintf(&sb, `<Default Extension="%s" ContentType="%s"/>`, escapeAttr(d.Extension), escapeAttr(d.ContentType))
	}
	for _, o := range doc.Overrides {
		if strings.HasPrefix(o.PartName, "/ppt/slides/") ||
			strings.HasPrefix(o.PartName, "/ppt/notesSlides/") ||
			o.PartName == "/docProps/app.xml" {
			continue
		}
		fmt.Fprintf(&sb, `<Override PartName="%s" ContentType="%s"/>`, escapeAttr(o.PartName), escapeAttr(o.ContentType))
	}
	fmt.Fprintf(&sb, `<Override PartName="/docProps/app.xml" ContentType="application/vnd.openxmlformats-officedocument.extended-properties+xml"/>`)
	for i := 1; i <= slideCount; i++ {
		fmt.Fprintf(&sb, `<Override PartName="/ppt/slides/slide%d.xml" ContentType="%s"/>`, i, ctSlide)
		if i-1 < len(notesFlags) && notesFlags[i-1] {
			fmt.Fprintf(&sb, `<Override PartName="/ppt/notesSlides/notesSlide%d.xml" ContentType="%s"/>`, i, ctNotesSlide)
		}
	}
	sb.WriteString(`</Types>`)
	return []byte(sb.String())
}

var sldIdLstRe = regexp.MustCompile(`(?s)<p:sldIdLst>.*?</p:sldIdLst>`)

// spliceSlideList 在 presentation.xml 中替换幻灯片清单，其余内容原样保留
// （命名空间、母版清单、尺寸声明都不动）
func spliceSlideList(orig []byte, slideCount int) []byte {
	var list strings.Builder
	list.WriteString("<p:sldIdLst>")
	for i := 0; i < slideCount; i++ {
		fmt.Fprintf(&list, `<p:sldId id="%d" r:id="rId%d"/>`, 256+i, 1000+i)
	}
	list.WriteString("</p:sldIdLst>")

	text := string(orig)
	if sldIdLstRe.MatchString(text) {
		return []byte(sldIdLstRe.ReplaceAllString(text, list.String()))
	}
	// 模板本身不含任何幻灯片时在母版清单之后插入
	const anchor = "</p:sldMasterIdLst>"
	if idx := strings.Index(text, anchor); idx >= 0 {
		return []byte(text[:idx+len(anchor)] + list.String() + text[idx+len(anchor):])
	}
	return orig
}

type presRelXML struct {
	ID         string `xml:"Id,attr"`
	Type       string `xml:"Type,attr"`
	Target     string `xml:"Target,attr"`
	TargetMode string `xml:"TargetMode,attr,omitempty"`
}

type presRelsXML struct {
	XMLName       xml.Name     `xml:"Relationships"`
	Relationships []presRelXML `xml:"Relationship"`
}

// rebuildPresentationRels 剔除旧幻灯片关系，保留母版/主题等，追加新幻灯片
func rebuildPresentationRels(orig []byte, slideCount int) []byte {
	var doc presRelsXML
	_ = xml.Unmarshal(orig, &doc)

	var sb strings.Builder
	sb.WriteString(xml.Header)
	sb.WriteString(`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">`)
	for _, r := range doc.Relationships {
		if r.Type == relTypeSlide {
			continue
		}
		writeRel(&sb, r.ID, r.Type, r.Target, r.TargetMode)
	}
	for i := 0; i < slideCount; i++ {
		writeRel(&sb, fmt.Sprintf("rId%d", 1000+i), relTypeSlide, fmt.Sprintf("slides/slide%d.xml", i+1), "")
	}
	sb.WriteString(`</Relationships>`)
	return []byte(sb.String())
}

func writeRel(sb *strings.Builder, id, relType, target, mode string) {
	if mode != "" {
		fmt.Fprintf(sb, `<Relationship Id="%s" Type="%s" Target="%s" TargetMode="%s"/>`,
			escapeAttr(id), escapeAttr(relType), escapeAttr(target), escapeAttr(mode))
		return
	}
	fmt.Fprintf(sb, `<Relationship Id="%s" Type="%s" Target="%s"/>`,
		escapeAttr(id), escapeAttr(relType), escapeAttr(target))
}

func appPropsXML(slideCount int) string {
	return xml.Header + fmt.Sprintf(
		`<Properties xmlns="http://schemas.openxmlformats.org/officeDocument/2006/extended-properties" xmlns:vt="http://schemas.openxmlformats.org/officeDocument/2006/docPropsVTypes"><Application>deck_dev</Application><Slides>%d</Slides></Properties>`,
		slideCount)
}

// ==================== 幻灯片 XML 生成 ====================

const slideNamespaces = `xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships" xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main"`

// buildSlide 生成一张幻灯片的 XML 与其关系部件
// 文字占位符不声明几何（继承版式）；图片帧按目标占位符的精确几何落位
func buildSlide(pr PlacementResult, layout LayoutInfo, assets map[string]*ImageAsset, withNotes bool, slideNum int) ([]byte, []byte, error) {
	phByIndex := make(map[int]PlaceholderInfo, len(layout.Placeholders))
	for _, ph := range layout.Placeholders {
		phByIndex[ph.Index] = ph
	}

	var shapes strings.Builder
	var rels strings.Builder
	rels.WriteString(xml.Header)
	rels.WriteString(`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">`)
	writeRel(&rels, "rId1", "http://schemas.openxmlformats.org/officeDocument/2006/relationships/slideLayout",
		"../slideLayouts/"+baseName(layout.Path), "")

	shapeID := 2
	relID := 2

	for _, b := range pr.Bindings {
		ph, ok := phByIndex[b.PlaceholderIndex]
		if !ok {
			return nil, nil, fmt.Errorf("绑定的占位符 %d 不属于版式 %d", b.PlaceholderIndex, layout.Index)
		}
		switch b.Content.Kind {
		case ContentText:
			writeTextShape(&shapes, ph, b.Content, shapeID)
			shapeID++
		case ContentImage:
			asset, ok := assets[b.Content.ImageID]
			if !ok {
				return nil, nil, fmt.Errorf("未知图片资产 %s", b.Content.ImageID)
			}
			rid := fmt.Sprintf("rId%d", relID)
			writeRel(&rels, rid, "http://schemas.openxmlformats.org/officeDocument/2006/relationships/image",
				"../"+strings.TrimPrefix(asset.Path, "ppt/"), "")
			relID++
			writePicShape(&shapes, ph, rid, shapeID)
			shapeID++
		}
	}

	if withNotes {
		writeRel(&rels, fmt.Sprintf("rId%d", relID),
			"http://schemas.openxmlformats.org/officeDocument/2006/relationships/notesSlide",
			fmt.Sprintf("../notesSlides/notesSlide%d.xml", slideNum), "")
	}
	rels.WriteString(`</Relationships>`)

	var slide strings.Builder
	slide.WriteString(xml.Header)
	slide.WriteString(`<p:sld ` + slideNamespaces + `><p:cSld><p:spTree>`)
	slide.WriteString(`<p:nvGrpSpPr><p:cNvPr id="1" name=""/><p:cNvGrpSpPr/><p:nvPr/></p:nvGrpSpPr>`)
	slide.WriteString(`<p:grpSpPr><a:xfrm><a:off x="0" y="0"/><a:ext cx="0" cy="0"/><a:chOff x="0" y="0"/><a:chExt cx="0" cy="0"/></a:xfrm></p:grpSpPr>`)
	slide.WriteString(shapes.String())
	slide.WriteString(`</p:spTree></p:cSld><p:clrMapOvr><a:masterClrMapping/></p:clrMapOvr></p:sld>`)

	return []byte(slide.String()), []byte(rels.String()), nil
}

// writeTextShape 文字形状：回写版式占位符的原始 type/idx，几何继承版式
func writeTextShape(sb *strings.Builder, ph PlaceholderInfo, content ResolvedContent, shapeID int) {
	fmt.Fprintf(sb, `<p:sp><p:nvSpPr><p:cNvPr id="%d" name="%s"/><p:cNvSpPr><a:spLocks noGrp="1"/></p:cNvSpPr><p:nvPr>%s</p:nvPr></p:nvSpPr><p:spPr/><p:txBody><a:bodyPr/><a:lstStyle/>`,
		shapeID, escapeAttr(shapeName(ph, shapeID)), phElement(ph))

	sz := int(content.FontSize * 100)
	for _, line := range strings.Split(content.Text, "\n") {
		sb.WriteString(`<a:p>`)
		for _, run := range parseEmphasis(line) {
			sb.WriteString(`<a:r><a:rPr lang="en-US"`)
			if sz > 0 {
				fmt.Fprintf(sb, ` sz="%d"`, sz)
			}
			if run.bold {
				sb.WriteString(` b="1"`)
			}
			if run.italic {
				sb.WriteString(` i="1"`)
			}
			sb.WriteString(` dirty="0"/><a:t>`)
			sb.WriteString(escapeText(run.text))
			sb.WriteString(`</a:t></a:r>`)
		}
		sb.WriteString(`</a:p>`)
	}
	sb.WriteString(`</p:txBody></p:sp>`)
}

// writePicShape 图片帧：落在目标占位符的精确位置与尺寸上，不做任何重新裁剪
func writePicShape(sb *strings.Builder, ph PlaceholderInfo, rid string, shapeID int) {
	fmt.Fprintf(sb, `<p:pic><p:nvPicPr><p:cNvPr id="%d" name="Picture %d"/><p:cNvPicPr><a:picLocks noChangeAspect="1"/></p:cNvPicPr><p:nvPr>%s</p:nvPr></p:nvPicPr>`,
		shapeID, shapeID, phElement(ph))
	fmt.Fprintf(sb, `<p:blipFill><a:blip r:embed="%s"/><a:stretch><a:fillRect/></a:stretch></p:blipFill><p:spPr>`, rid)
	if !ph.Geometry.IsZero() {
		fmt.Fprintf(sb, `<a:xfrm><a:off x="%d" y="%d"/><a:ext cx="%d" cy="%d"/></a:xfrm>`,
			ph.Geometry.X, ph.Geometry.Y, ph.Geometry.W, ph.Geometry.H)
	}
	sb.WriteString(`<a:prstGeom prst="rect"><a:avLst/></a:prstGeom></p:spPr></p:pic>`)
}

// phElement 占位符标记：原样回写版式声明的 type 与 idx
func phElement(ph PlaceholderInfo) string {
	attrs := ""
	if ph.TypeAttr != "" {
		attrs += fmt.Sprintf(` type="%s"`, escapeAttr(ph.TypeAttr))
	}
	if ph.Index > 0 {
		attrs += fmt.Sprintf(` idx="%d"`, ph.Index)
	}
	return "<p:ph" + attrs + "/>"
}

func shapeName(ph PlaceholderInfo, shapeID int) string {
	if ph.Name != "" {
		return ph.Name
	}
	return fmt.Sprintf("Placeholder %d", shapeID)
}

// ==================== 备注页 ====================

func buildNotesSlide(notes string) []byte {
	var sb strings.Builder
	sb.WriteString(xml.Header)
	sb.WriteString(`<p:notes ` + slideNamespaces + `><p:cSld><p:spTree>`)
	sb.WriteString(`<p:nvGrpSpPr><p:cNvPr id="1" name=""/><p:cNvGrpSpPr/><p:nvPr/></p:nvGrpSpPr>`)
	sb.WriteString(`<p:grpSpPr/>`)
	sb.WriteString(`<p:sp><p:nvSpPr><p:cNvPr id="2" name="Notes Placeholder"/><p:cNvSpPr><a:spLocks noGrp="1"/></p:cNvSpPr><p:nvPr><p:ph type="body" idx="1"/></p:nvPr></p:nvSpPr><p:spPr/><p:txBody><a:bodyPr/><a:lstStyle/>`)
	for _, line := range strings.Split(notes, "\n") {
		sb.WriteString(`<a:p><a:r><a:rPr lang="en-US" dirty="0"/><a:t>`)
		sb.WriteString(escapeText(line))
		sb.WriteString(`</a:t></a:r></a:p>`)
	}
	sb.WriteString(`</p:txBody></p:sp></p:spTree></p:cSld><p:clrMapOvr><a:masterClrMapping/></p:clrMapOvr></p:notes>`)
	return []byte(sb.String())
}

func buildNotesRels(slideNum int) []byte {
	var sb strings.Builder
	sb.WriteString(xml.Header)
	sb.WriteString(`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">`)
	writeRel(&sb, "rId1", "http://schemas.openxmlformats.org/officeDocument/2006/relationships/notesMaster",
		"../notesMasters/notesMaster1.xml", "")
	writeRel(&sb, "rId2", "http://schemas.openxmlformats.org/officeDocument/2006/relationships/slide",
		fmt.Sprintf("../slides/slide%d.xml", slideNum), "")
	sb.WriteString(`</Relationships>`)
	return []byte(sb.String())
}

// ==================== 行内强调解析 ====================

type textRun struct {
	text   string
	bold   bool
	italic bool
}

var (
	boldRe   = regexp.MustCompile(`\*\*(.+?)\*\*`)
	italicRe = regexp.MustCompile(`\*([^*]+?)\*`)
)

// parseEmphasis 解析 **加粗** 与 *斜体*，拆成带格式的文本段
func parseEmphasis(text string) []textRun {
	type span struct {
		start, end int
		run        textRun
	}
	var spans []span
	for _, m := range boldRe.FindAllStringSubmatchIndex(text, -1) {
		spans = append(spans, span{m[0], m[1], textRun{text: text[m[2]:m[3]], bold: true}})
	}
	for _, m := range italicRe.FindAllStringSubmatchIndex(text, -1) {
		inside := false
		for _, s := range spans {
			if m[0] >= s.start && m[1] <= s.end {
				inside = true
				break
			}
		}
		if !inside {
			spans = append(spans, span{m[0], m[1], textRun{text: text[m[2]:m[3]], italic: true}})
		}
	}
	if len(spans) == 0 {
		return []textRun{{text: text}}
	}

	// 按出现位置排序后拼装普通段与强调段
	for i := 0; i < len(spans); i++ {
		for j := i + 1; j < len(spans); j++ {
			if spans[j].start < spans[i].start {
				spans[i], spans[j] = spans[j], spans[i]
			}
		}
	}
	var runs []textRun
	pos := 0
	for _, s := range spans {
		if pos < s.start {
			runs = append(runs, textRun{text: text[pos:s.start]})
		}
		runs = append(runs, s.run)
		pos = s.end
	}
	if pos < len(text) {
		runs = append(runs, textRun{text: text[pos:]})
	}
	return runs
}

// ==================== XML 转义 ====================

func escapeText(s string) string {
	var buf bytes.Buffer
	_ = xml.EscapeText(&buf, []byte(s))
	return buf.String()
}

func escapeAttr(s string) string {
	return escapeText(s)
}

func baseName(p string) string {
	if idx := strings.LastIndex(p, "/"); idx >= 0 {
		return p[idx+1:]
	}
	return p
}
