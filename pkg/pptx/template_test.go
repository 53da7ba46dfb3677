package pptx

import (
	"archive/zip"
	"bytes"
	"testing"
)

// ==================== 测试模板构造 ====================

// templateOpt 控制内存模板的组成部件
type templateOpt struct {
	noLayouts       bool // 不含任何版式（非法模板场景）
	withImage       bool // 带一张含嵌入图片的幻灯片
	withSecondImage bool // 第二张不同内容的图片
	withNotesMaster bool
}

const testPresentationXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<p:presentation xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships" xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main">
<p:sldMasterIdLst><p:sldMasterId id="2147483648" r:id="rId1"/></p:sldMasterIdLst>
<p:sldIdLst><p:sldId id="256" r:id="rId2"/></p:sldIdLst>
<p:sldSz cx="12192000" cy="6858000"/>
</p:presentation>`

const testThemeXML = `<?xml version="1.0"?>
<a:theme xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" name="Test Theme">
<a:themeElements>
<a:clrScheme name="Test">
<a:accent1><a:srgbClr val="4472C4"/></a:accent1>
<a:accent2><a:sysClr val="windowText" lastClr="ED7D31"/></a:accent2>
</a:clrScheme>
<a:fontScheme name="Test">
<a:majorFont><a:latin typeface="Playfair Display"/></a:majorFont>
<a:minorFont><a:latin typeface="Lato"/></a:minorFont>
</a:fontScheme>
</a:themeElements>
</a:theme>`

func layoutXML(name, shapes string) string {
	return `<?xml version="1.0"?>
<p:sldLayout xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships" xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main">
<p:cSld name="` + name + `"><p:spTree>
<p:nvGrpSpPr><p:cNvPr id="1" name=""/><p:cNvGrpSpPr/><p:nvPr/></p:nvGrpSpPr><p:grpSpPr/>
` + shapes + `
</p:spTree></p:cSld>
</p:sldLayout>`
}

func placeholderShape(name, typeAttr, idx, xfrm, text string) string {
	ph := "<p:ph"
	if typeAttr != "" {
		ph += ` type="` + typeAttr + `"`
	}
	if idx != "" {
		ph += ` idx="` + idx + `"`
	}
	ph += "/>"
	body := "<p:txBody><a:bodyPr/>"
	if text != "" {
		body += "<a:p><a:r><a:t>" + text + "</a:t></a:r></a:p>"
	} else {
		body += "<a:p/>"
	}
	body += "</p:txBody>"
	return `<p:sp><p:nvSpPr><p:cNvPr id="0" name="` + name + `"/><p:cNvSpPr/><p:nvPr>` + ph + `</p:nvPr></p:nvSpPr><p:spPr>` + xfrm + `</p:spPr>` + body + `</p:sp>`
}

func xfrmBox(x, y, w, h string) string {
	return `<a:xfrm><a:off x="` + x + `" y="` + y + `"/><a:ext cx="` + w + `" cy="` + h + `"/></a:xfrm>`
}

// buildTestTemplate 在内存中组装一个最小可分析的模板容器
// 版式清单：
//
//	0 Title Slide           -- ctrTitle + subTitle(idx=1)
//	1 Title and Content     -- title + body(idx=1)
//	2 Picture with Caption  -- title + pic(idx=1) + body(idx=2, 几何继承)
//	3 Two Content           -- title + body(idx=1) + body(idx=2)
func buildTestTemplate(t *testing.T, opt templateOpt) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	add := func(name, data string) {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("构造测试模板失败: %v", err)
		}
		if _, err := w.Write([]byte(data)); err != nil {
			t.Fatalf("构造测试模板失败: %v", err)
		}
	}

	add("[Content_Types].xml", `<?xml version="1.0"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="xml" ContentType="application/xml"/>
<Default Extension="png" ContentType="image/png"/>
<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
<Override PartName="/ppt/presentation.xml" ContentType="application/vnd.openxmlformats-officedocument.presentationml.presentation.main+xml"/>
<Override PartName="/ppt/slides/slide1.xml" ContentType="application/vnd.openxmlformats-officedocument.presentationml.slide+xml"/>
<Override PartName="/ppt/theme/theme1.xml" ContentType="application/vnd.openxmlformats-officedocument.theme+xml"/>
</Types>`)
	add("_rels/.rels", `<?xml version="1.0"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="ppt/presentation.xml"/>
</Relationships>`)
	add("ppt/presentation.xml", testPresentationXML)
	add("ppt/_rels/presentation.xml.rels", `<?xml version="1.0"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/slideMaster" Target="slideMasters/slideMaster1.xml"/>
<Relationship Id="rId2" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/slide" Target="slides/slide1.xml"/>
<Relationship Id="rId3" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/theme" Target="theme/theme1.xml"/>
</Relationships>`)
	add("ppt/theme/theme1.xml", testThemeXML)
	add("ppt/slideMasters/slideMaster1.xml", `<?xml version="1.0"?>
<p:sldMaster xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main">
<p:cSld><p:spTree><p:nvGrpSpPr><p:cNvPr id="1" name=""/><p:cNvGrpSpPr/><p:nvPr/></p:nvGrpSpPr><p:grpSpPr/></p:spTree></p:cSld>
</p:sldMaster>`)

	titleXfrm := xfrmBox("838200", "365125", "10515600", "1325563")
	bodyXfrm := xfrmBox("838200", "1825625", "10515600", "4351338")
	halfLeft := xfrmBox("838200", "1825625", "5181600", "4351338")
	halfRight := xfrmBox("6172200", "1825625", "5181600", "4351338")

	if !opt.noLayouts {
		add("ppt/slideLayouts/slideLayout1.xml", layoutXML("Title Slide",
			placeholderShape("Title 1", "ctrTitle", "", titleXfrm, "Click to edit title")+
				placeholderShape("Subtitle 2", "subTitle", "1", bodyXfrm, "")))
		add("ppt/slideLayouts/slideLayout2.xml", layoutXML("Title and Content",
			placeholderShape("Title 1", "title", "", titleXfrm, "")+
				placeholderShape("Content Placeholder 2", "body", "1", bodyXfrm, "")))
		add("ppt/slideLayouts/slideLayout3.xml", layoutXML("Picture with Caption",
			placeholderShape("Title 1", "title", "", titleXfrm, "")+
				placeholderShape("Picture Placeholder 2", "pic", "1", halfLeft, "")+
				placeholderShape("Text Placeholder 3", "body", "2", "", "")))
		add("ppt/slideLayouts/slideLayout4.xml", layoutXML("Two Content",
			placeholderShape("Title 1", "title", "", titleXfrm, "")+
				placeholderShape("Content Placeholder 2", "body", "1", halfLeft, "")+
				placeholderShape("Content Placeholder 3", "body", "2", halfRight, "")))
	}

	slidePics := ""
	slideRels := `<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/slideLayout" Target="../slideLayouts/slideLayout3.xml"/>`
	if opt.withImage {
		add("ppt/media/image1.png", "\x89PNG\r\n\x1a\nfake-image-bytes-one")
		slidePics += `<p:pic><p:nvPicPr><p:cNvPr id="4" name="Picture 3"/><p:cNvPicPr/><p:nvPr><p:ph type="pic" idx="1"/></p:nvPr></p:nvPicPr><p:blipFill><a:blip r:embed="rId2"/></p:blipFill><p:spPr>` + xfrmBox("838200", "1825625", "5181600", "3886219") + `</p:spPr></p:pic>`
		slideRels += `<Relationship Id="rId2" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/image" Target="../media/image1.png"/>`
	}
	if opt.withSecondImage {
		add("ppt/media/image2.png", "\x89PNG\r\n\x1a\nfake-image-bytes-two")
		slidePics += `<p:pic><p:nvPicPr><p:cNvPr id="5" name="Picture 4"/><p:cNvPicPr/><p:nvPr/></p:nvPicPr><p:blipFill><a:blip r:embed="rId3"/></p:blipFill><p:spPr>` + xfrmBox("6172200", "1825625", "5181600", "3886219") + `</p:spPr></p:pic>`
		slideRels += `<Relationship Id="rId3" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/image" Target="../media/image2.png"/>`
	}

	add("ppt/slides/slide1.xml", `<?xml version="1.0"?>
<p:sld xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships" xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main">
<p:cSld><p:spTree>
<p:nvGrpSpPr><p:cNvPr id="1" name=""/><p:cNvGrpSpPr/><p:nvPr/></p:nvGrpSpPr><p:grpSpPr/>
`+slidePics+`
</p:spTree></p:cSld>
</p:sld>`)
	add("ppt/slides/_rels/slide1.xml.rels", `<?xml version="1.0"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
`+slideRels+`
</Relationships>`)

	if opt.withNotesMaster {
		add("ppt/notesMasters/notesMaster1.xml", `<?xml version="1.0"?>
<p:notesMaster xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main">
<p:cSld><p:spTree><p:nvGrpSpPr><p:cNvPr id="1" name=""/><p:cNvGrpSpPr/><p:nvPr/></p:nvGrpSpPr><p:grpSpPr/></p:spTree></p:cSld>
</p:notesMaster>`)
	}

	if err := zw.Close(); err != nil {
		t.Fatalf("构造测试模板失败: %v", err)
	}
	return buf.Bytes()
}

func mustAnalyze(t *testing.T, opt templateOpt) *TemplateDescriptor {
	t.Helper()
	tpl, err := Analyze(buildTestTemplate(t, opt))
	if err != nil {
		t.Fatalf("Analyze() 失败: %v", err)
	}
	return tpl
}
