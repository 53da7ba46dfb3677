package pptx

import (
	"archive/zip"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// ==================== 模板分析器 ====================

// Analyze 解析上传的模板容器，产出只读的 TemplateDescriptor
// 容器打不开或不含任何版式时返回 ErrInvalidTemplate
func Analyze(templateBytes []byte) (*TemplateDescriptor, error) {
	reader, err := zip.NewReader(bytes.NewReader(templateBytes), int64(len(templateBytes)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTemplate, err)
	}

	entries := make(map[string][]byte, len(reader.File))
	for _, f := range reader.File {
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("%w: 读取 %s 失败: %v", ErrInvalidTemplate, f.Name, err)
		}
		data, err := io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			return nil, fmt.Errorf("%w: 读取 %s 失败: %v", ErrInvalidTemplate, f.Name, err)
		}
		entries[f.Name] = data
	}

	tpl := &TemplateDescriptor{raw: templateBytes}

	// 幻灯片尺寸
	tpl.SlideW, tpl.SlideH = parseSlideSize(entries["ppt/presentation.xml"])

	// 版式清单
	layouts, err := parseLayouts(entries)
	if err != nil {
		return nil, err
	}
	if len(layouts) == 0 {
		return nil, fmt.Errorf("%w: 未找到任何版式", ErrInvalidTemplate)
	}
	tpl.Layouts = layouts

	// 主题（仅作默认值参考）
	tpl.Theme = parseTheme(entries["ppt/theme/theme1.xml"])

	// 图片清单（按内容哈希去重）
	tpl.Images = harvestImages(entries, layouts)

	_, tpl.HasNotesMaster = entries["ppt/notesMasters/notesMaster1.xml"]

	return tpl, nil
}

// ==================== XML 映射结构 ====================

type presentationXML struct {
	SldSz struct {
		CX int64 `xml:"cx,attr"`
		CY int64 `xml:"cy,attr"`
	} `xml:"sldSz"`
}

type slideDocXML struct {
	CSld struct {
		Name   string `xml:"name,attr"`
		SpTree struct {
			Shapes []shapeXML `xml:"sp"`
			Pics   []picXML   `xml:"pic"`
		} `xml:"spTree"`
	} `xml:"cSld"`
}

type shapeXML struct {
	NvSpPr struct {
		CNvPr struct {
			Name string `xml:"name,attr"`
		} `xml:"cNvPr"`
		NvPr struct {
			Ph *phXML `xml:"ph"`
		} `xml:"nvPr"`
	} `xml:"nvSpPr"`
	SpPr struct {
		Xfrm *xfrmXML `xml:"xfrm"`
	} `xml:"spPr"`
	TxBody *txBodyXML `xml:"txBody"`
}

type picXML struct {
	NvPicPr struct {
		NvPr struct {
			Ph *phXML `xml:"ph"`
		} `xml:"nvPr"`
	} `xml:"nvPicPr"`
	BlipFill struct {
		Blip struct {
			Embed string `xml:"embed,attr"`
		} `xml:"blip"`
	} `xml:"blipFill"`
	SpPr struct {
		Xfrm *xfrmXML `xml:"xfrm"`
	} `xml:"spPr"`
}

type phXML struct {
	Type string `xml:"type,attr"`
	Idx  string `xml:"idx,attr"`
}

type xfrmXML struct {
	Off struct {
		X int64 `xml:"x,attr"`
		Y int64 `xml:"y,attr"`
	} `xml:"off"`
	Ext struct {
		CX int64 `xml:"cx,attr"`
		CY int64 `xml:"cy,attr"`
	} `xml:"ext"`
}

type txBodyXML struct {
	Paragraphs []struct {
		Runs []struct {
			Text string `xml:"t"`
		} `xml:"r"`
	} `xml:"p"`
}

type relationshipsXML struct {
	XMLName       xml.Name          `xml:"Relationships"`
	Relationships []relationshipXML `xml:"Relationship"`
}

type relationshipXML struct {
	ID     string `xml:"Id,attr"`
	Type   string `xml:"Type,attr"`
	Target string `xml:"Target,attr"`
}

// ==================== 解析实现 ====================

func parseSlideSize(data []byte) (int64, int64) {
	// 默认 4:3（10 × 7.5 英寸）
	const defaultW, defaultH = 9144000, 6858000
	if len(data) == 0 {
		return defaultW, defaultH
	}
	var pres presentationXML
	if err := xml.Unmarshal(data, &pres); err != nil || pres.SldSz.CX == 0 {
		return defaultW, defaultH
	}
	return pres.SldSz.CX, pres.SldSz.CY
}

var layoutFileRe = regexp.MustCompile(`^ppt/slideLayouts/slideLayout(\d+)\.xml$`)

// parseLayouts 按版式文件编号枚举版式并解析占位符清单
func parseLayouts(entries map[string][]byte) ([]LayoutInfo, error) {
	type numbered struct {
		n    int
		path string
	}
	var files []numbered
	for name := range entries {
		if m := layoutFileRe.FindStringSubmatch(name); m != nil {
			n, _ := strconv.Atoi(m[1])
			files = append(files, numbered{n: n, path: name})
		}
	}
	sort.Slice(files, func(i, j int) bool { return files[i].n < files[j].n })

	layouts := make([]LayoutInfo, 0, len(files))
	for i, f := range files {
		var doc slideDocXML
		if err := xml.Unmarshal(entries[f.path], &doc); err != nil {
			return nil, fmt.Errorf("%w: 版式 %s 解析失败: %v", ErrInvalidTemplate, f.path, err)
		}
		layout := LayoutInfo{
			Index: i,
			Name:  doc.CSld.Name,
			Path:  f.path,
		}
		for _, sp := range doc.CSld.SpTree.Shapes {
			ph := sp.NvSpPr.NvPr.Ph
			if ph == nil {
				continue // 非占位符形状不进入清单
			}
			idx := 0
			if ph.Idx != "" {
				idx, _ = strconv.Atoi(ph.Idx)
			} else if ph.Type != "title" && ph.Type != "ctrTitle" {
				// 缺省 idx 按约定归 0，会与标题撞号导致无法按下标寻址
				continue
			}
			info := PlaceholderInfo{
				Index:    idx,
				Kind:     kindFromTypeAttr(ph.Type),
				TypeAttr: ph.Type,
				Name:     sp.NvSpPr.CNvPr.Name,
				IsEmpty:  !hasText(sp.TxBody),
			}
			if sp.SpPr.Xfrm != nil {
				info.Geometry = Geometry{
					X: sp.SpPr.Xfrm.Off.X,
					Y: sp.SpPr.Xfrm.Off.Y,
					W: sp.SpPr.Xfrm.Ext.CX,
					H: sp.SpPr.Xfrm.Ext.CY,
				}
			} else {
				info.Inherited = true
			}
			layout.Placeholders = append(layout.Placeholders, info)
		}
		layouts = append(layouts, layout)
	}
	return layouts, nil
}

// kindFromTypeAttr OOXML ph@type → 封闭的语义类型
// 不带 type 属性的占位符按 OOXML 约定视为正文
func kindFromTypeAttr(t string) PlaceholderKind {
	switch t {
	case "title", "ctrTitle":
		return KindTitle
	case "body":
		return KindBody
	case "subTitle":
		return KindSubtitle
	case "pic", "clipArt":
		return KindImage
	case "obj":
		return KindObject
	case "media":
		return KindMedia
	case "":
		return KindBody
	default:
		return KindOther
	}
}

func hasText(body *txBodyXML) bool {
	if body == nil {
		return false
	}
	for _, p := range body.Paragraphs {
		for _, r := range p.Runs {
			if strings.TrimSpace(r.Text) != "" {
				return true
			}
		}
	}
	return false
}

var slideFileRe = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

// harvestImages 遍历模板中已有的幻灯片，采集每张嵌入图片（内容哈希去重）
// 记录来源上下文：所在幻灯片、所在占位符类型、幻灯片使用的版式名
func harvestImages(entries map[string][]byte, layouts []LayoutInfo) []ImageAsset {
	layoutNameByPath := make(map[string]string, len(layouts))
	for _, l := range layouts {
		layoutNameByPath[l.Path] = l.Name
	}

	type numbered struct {
		n    int
		path string
	}
	var slides []numbered
	for name := range entries {
		if m := slideFileRe.FindStringSubmatch(name); m != nil {
			n, _ := strconv.Atoi(m[1])
			slides = append(slides, numbered{n: n, path: name})
		}
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].n < slides[j].n })

	var assets []ImageAsset
	seen := make(map[string]bool)

	for slideIdx, s := range slides {
		relsPath := path.Join("ppt/slides/_rels", path.Base(s.path)+".rels")
		rels := parseRels(entries[relsPath])

		layoutName := ""
		for _, rel := range rels.Relationships {
			if strings.HasSuffix(rel.Type, "/slideLayout") {
				layoutName = layoutNameByPath[resolveTarget("ppt/slides", rel.Target)]
			}
		}

		var doc slideDocXML
		if err := xml.Unmarshal(entries[s.path], &doc); err != nil {
			continue
		}
		for _, pic := range doc.CSld.SpTree.Pics {
			target := ""
			for _, rel := range rels.Relationships {
				if rel.ID == pic.BlipFill.Blip.Embed {
					target = resolveTarget("ppt/slides", rel.Target)
				}
			}
			blob, ok := entries[target]
			if !ok || len(blob) == 0 {
				continue
			}
			sum := sha256.Sum256(blob)
			key := hex.EncodeToString(sum[:])
			if seen[key] {
				continue
			}
			seen[key] = true

			asset := ImageAsset{
				ID:               "img-" + key[:12],
				Blob:             blob,
				Ext:              strings.TrimPrefix(path.Ext(target), "."),
				Path:             target,
				OriginSlide:      slideIdx,
				OriginKind:       KindOther,
				OriginLayoutName: layoutName,
			}
			if ph := pic.NvPicPr.NvPr.Ph; ph != nil {
				asset.OriginKind = kindFromTypeAttr(ph.Type)
				if ph.Type == "" {
					asset.OriginKind = KindImage
				}
			}
			if pic.SpPr.Xfrm != nil && pic.SpPr.Xfrm.Ext.CY > 0 {
				asset.AspectRatio = float64(pic.SpPr.Xfrm.Ext.CX) / float64(pic.SpPr.Xfrm.Ext.CY)
			}
			assets = append(assets, asset)
		}
	}
	return assets
}

func parseRels(data []byte) relationshipsXML {
	var rels relationshipsXML
	if len(data) > 0 {
		_ = xml.Unmarshal(data, &rels)
	}
	return rels
}

// resolveTarget 解析 rels 中的相对目标路径，如 ../media/image1.png
func resolveTarget(baseDir, target string) string {
	if strings.HasPrefix(target, "/") {
		return strings.TrimPrefix(target, "/")
	}
	return path.Clean(path.Join(baseDir, target))
}

// ==================== 主题解析 ====================

type themeDocXML struct {
	ThemeElements struct {
		ClrScheme  clrSchemeXML  `xml:"clrScheme"`
		FontScheme fontSchemeXML `xml:"fontScheme"`
	} `xml:"themeElements"`
}

type clrSchemeXML struct {
	Accent1 accentXML `xml:"accent1"`
	Accent2 accentXML `xml:"accent2"`
	Accent3 accentXML `xml:"accent3"`
	Accent4 accentXML `xml:"accent4"`
	Accent5 accentXML `xml:"accent5"`
	Accent6 accentXML `xml:"accent6"`
}

type accentXML struct {
	SrgbClr struct {
		Val string `xml:"val,attr"`
	} `xml:"srgbClr"`
	SysClr struct {
		LastClr string `xml:"lastClr,attr"`
	} `xml:"sysClr"`
}

func (a accentXML) hex() string {
	if a.SrgbClr.Val != "" {
		return a.SrgbClr.Val
	}
	return a.SysClr.LastClr
}

type fontSchemeXML struct {
	MajorFont struct {
		Latin struct {
			Typeface string `xml:"typeface,attr"`
		} `xml:"latin"`
	} `xml:"majorFont"`
	MinorFont struct {
		Latin struct {
			Typeface string `xml:"typeface,attr"`
		} `xml:"latin"`
	} `xml:"minorFont"`
}

// parseTheme 读取主题字体与强调色，读取失败时回退到 Calibri
func parseTheme(data []byte) Theme {
	theme := Theme{MajorFont: "Calibri", MinorFont: "Calibri"}
	if len(data) == 0 {
		return theme
	}
	var doc themeDocXML
	if err := xml.Unmarshal(data, &doc); err != nil {
		return theme
	}
	if t := doc.ThemeElements.FontScheme.MajorFont.Latin.Typeface; t != "" {
		theme.MajorFont = t
	}
	if t := doc.ThemeElements.FontScheme.MinorFont.Latin.Typeface; t != "" {
		theme.MinorFont = t
	}
	for _, accent := range []accentXML{
		doc.ThemeElements.ClrScheme.Accent1,
		doc.ThemeElements.ClrScheme.Accent2,
		doc.ThemeElements.ClrScheme.Accent3,
		doc.ThemeElements.ClrScheme.Accent4,
		doc.ThemeElements.ClrScheme.Accent5,
		doc.ThemeElements.ClrScheme.Accent6,
	} {
		if hex := accent.hex(); hex != "" {
			theme.AccentColors = append(theme.AccentColors, hex)
		}
	}
	return theme
}
