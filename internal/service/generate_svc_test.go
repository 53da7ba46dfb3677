package service

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"deck_dev_v1_202608/internal/model"
	"deck_dev_v1_202608/internal/repository"
	"deck_dev_v1_202608/pkg/pptx"
)

// ==================== 测试替身 ====================

type mockPlanProvider struct {
	name         string
	generateFunc func(ctx context.Context, req *PlanRequest) (pptx.SlidePlan, error)
}

func (m *mockPlanProvider) Name() string {
	if m.name != "" {
		return m.name
	}
	return "mock"
}

func (m *mockPlanProvider) GeneratePlan(ctx context.Context, req *PlanRequest) (pptx.SlidePlan, error) {
	return m.generateFunc(ctx, req)
}

type mockLogRepo struct {
	created []*model.GenerationLog
}

func (m *mockLogRepo) Create(ctx context.Context, entry *model.GenerationLog) error {
	m.created = append(m.created, entry)
	return nil
}

func (m *mockLogRepo) GetByID(ctx context.Context, id int64) (*model.GenerationLog, error) {
	return nil, errors.New("not implemented")
}

func (m *mockLogRepo) GetByRequestID(ctx context.Context, requestID string) (*model.GenerationLog, error) {
	return nil, errors.New("not implemented")
}

func (m *mockLogRepo) List(ctx context.Context, q *repository.LogQuery) ([]model.GenerationLog, int64, error) {
	return nil, 0, nil
}

func (m *mockLogRepo) GetUsageStats(ctx context.Context, startTime, endTime time.Time) (*repository.GenerationStats, error) {
	return &repository.GenerationStats{}, nil
}

func (m *mockLogRepo) GetDailyStats(ctx context.Context, startDate, endDate time.Time) ([]repository.DailyGenerationStats, error) {
	return nil, nil
}

func (m *mockLogRepo) PurgeOlderThan(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

// ==================== 测试模板 ====================

// buildMinimalTemplate 只含一个「标题+正文」版式的最小可用模板
func buildMinimalTemplate(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	files := map[string]string{
		"[Content_Types].xml": `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
<Default Extension="xml" ContentType="application/xml"/>
<Override PartName="/ppt/presentation.xml" ContentType="application/vnd.openxmlformats-officedocument.presentationml.presentation.main+xml"/>
<Override PartName="/ppt/slideMasters/slideMaster1.xml" ContentType="application/vnd.openxmlformats-officedocument.presentationml.slideMaster+xml"/>
<Override PartName="/ppt/slideLayouts/slideLayout1.xml" ContentType="application/vnd.openxmlformats-officedocument.presentationml.slideLayout+xml"/>
</Types>`,
		"ppt/presentation.xml": `<?xml version="1.0"?>
<p:presentation xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships">
<p:sldMasterIdLst><p:sldMasterId id="2147483648" r:id="rId1"/></p:sldMasterIdLst>
<p:sldIdLst/>
<p:sldSz cx="12192000" cy="6858000"/>
</p:presentation>`,
		"ppt/_rels/presentation.xml.rels": `<?xml version="1.0"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/slideMaster" Target="slideMasters/slideMaster1.xml"/>
</Relationships>`,
		"ppt/slideMasters/slideMaster1.xml": `<?xml version="1.0"?>
<p:sldMaster xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main"><p:cSld><p:spTree/></p:cSld></p:sldMaster>`,
		"ppt/slideLayouts/slideLayout1.xml": `<?xml version="1.0"?>
<p:sldLayout xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main" xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main">
<p:cSld name="Title and Content"><p:spTree>
<p:sp><p:nvSpPr><p:cNvPr id="2" name="Title 1"/><p:nvPr><p:ph type="title"/></p:nvPr></p:nvSpPr>
<p:spPr><a:xfrm><a:off x="838200" y="365125"/><a:ext cx="10515600" cy="1325563"/></a:xfrm></p:spPr></p:sp>
<p:sp><p:nvSpPr><p:cNvPr id="3" name="Content 2"/><p:nvPr><p:ph type="body" idx="1"/></p:nvPr></p:nvSpPr>
<p:spPr><a:xfrm><a:off x="838200" y="1825625"/><a:ext cx="10515600" cy="4351338"/></a:xfrm></p:spPr></p:sp>
</p:spTree></p:cSld></p:sldLayout>`,
	}
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("创建条目失败: %v", err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("写入条目失败: %v", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("关闭模板失败: %v", err)
	}
	return buf.Bytes()
}

// ==================== 生成流程 ====================

func TestGenerate_FallbackWithoutProvider(t *testing.T) {
	svc := NewGenerateService(nil, nil)
	out, err := svc.Generate(context.Background(), &GenerateInput{
		Text:     "# Roadmap\n\n- Ship beta\n- Gather feedback",
		Template: buildMinimalTemplate(t),
	})
	if err != nil {
		t.Fatalf("Generate 失败: %v", err)
	}
	if out.PlanSource != model.PlanSourceFallback {
		t.Errorf("期望规划来源 %s，实际 %s", model.PlanSourceFallback, out.PlanSource)
	}
	if out.SlideCount == 0 {
		t.Error("期望至少生成一页")
	}
	if len(out.Deck) == 0 {
		t.Fatal("期望返回文件内容")
	}
	if _, err := zip.NewReader(bytes.NewReader(out.Deck), int64(len(out.Deck))); err != nil {
		t.Errorf("生成结果不是合法的 zip 容器: %v", err)
	}
	if out.RequestID == "" {
		t.Error("期望分配请求 ID")
	}
}

func TestGenerate_UsesProviderPlan(t *testing.T) {
	provider := &mockPlanProvider{
		generateFunc: func(ctx context.Context, req *PlanRequest) (pptx.SlidePlan, error) {
			if req.Template == nil {
				t.Error("期望提示词请求携带模板结构")
			}
			return pptx.SlidePlan{
				{Title: "Provider Slide", Bullets: []string{"from ai"}, LayoutHint: "bullets"},
			}, nil
		},
	}
	svc := NewGenerateService(nil, nil)
	out, err := svc.Generate(context.Background(), &GenerateInput{
		Text:     "anything",
		Template: buildMinimalTemplate(t),
		Provider: provider,
	})
	if err != nil {
		t.Fatalf("Generate 失败: %v", err)
	}
	if out.PlanSource != model.PlanSourceProvider {
		t.Errorf("期望规划来源 %s，实际 %s", model.PlanSourceProvider, out.PlanSource)
	}
	if out.SlideCount != 1 {
		t.Errorf("期望 1 页，实际 %d", out.SlideCount)
	}
}

func TestGenerate_FallsBackOnProviderError(t *testing.T) {
	provider := &mockPlanProvider{
		generateFunc: func(ctx context.Context, req *PlanRequest) (pptx.SlidePlan, error) {
			return nil, errors.New("rate limited")
		},
	}
	svc := NewGenerateService(nil, nil)
	out, err := svc.Generate(context.Background(), &GenerateInput{
		Text:     "Quarterly revenue grew steadily across all regions.",
		Template: buildMinimalTemplate(t),
		Provider: provider,
	})
	if err != nil {
		t.Fatalf("提供方失败不应导致请求失败: %v", err)
	}
	if out.PlanSource != model.PlanSourceFallback {
		t.Errorf("期望降级到 %s，实际 %s", model.PlanSourceFallback, out.PlanSource)
	}
	if out.SlideCount == 0 {
		t.Error("降级后仍应产出幻灯片")
	}
}

func TestGenerate_ProviderTimeoutEqualsFallback(t *testing.T) {
	slow := &mockPlanProvider{
		generateFunc: func(ctx context.Context, req *PlanRequest) (pptx.SlidePlan, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	text := "Team updates for the week.\n\nHiring is on track."
	tplBytes := buildMinimalTemplate(t)

	svc := NewGenerateService(nil, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	timedOut, err := svc.Generate(ctx, &GenerateInput{Text: text, Template: tplBytes, Provider: slow})
	if err != nil {
		t.Fatalf("超时应降级而非失败: %v", err)
	}

	direct, err := svc.Generate(context.Background(), &GenerateInput{Text: text, Template: tplBytes})
	if err != nil {
		t.Fatalf("直接降级生成失败: %v", err)
	}

	// 超时降级与直接走规则规划器的产出结构一致
	if timedOut.PlanSource != direct.PlanSource || timedOut.SlideCount != direct.SlideCount {
		t.Errorf("降级结果不一致: (%s, %d) vs (%s, %d)",
			timedOut.PlanSource, timedOut.SlideCount, direct.PlanSource, direct.SlideCount)
	}
}

func TestGenerate_InvalidTemplate(t *testing.T) {
	svc := NewGenerateService(nil, nil)
	_, err := svc.Generate(context.Background(), &GenerateInput{
		Text:     "hello",
		Template: []byte("not a zip at all"),
	})
	if !errors.Is(err, pptx.ErrInvalidTemplate) {
		t.Errorf("期望 ErrInvalidTemplate，实际 %v", err)
	}
}

func TestGenerate_RecordsLog(t *testing.T) {
	repo := &mockLogRepo{}
	svc := NewGenerateService(repo, nil)
	out, err := svc.Generate(context.Background(), &GenerateInput{
		Text:         "Launch plan overview.",
		Template:     buildMinimalTemplate(t),
		TemplateName: "corporate.pptx",
		ClientIP:     "10.0.0.9",
	})
	if err != nil {
		t.Fatalf("Generate 失败: %v", err)
	}
	if len(repo.created) != 1 {
		t.Fatalf("期望写入 1 条日志，实际 %d", len(repo.created))
	}
	entry := repo.created[0]
	if entry.RequestID != out.RequestID {
		t.Errorf("日志请求 ID 不匹配: %s vs %s", entry.RequestID, out.RequestID)
	}
	if entry.Status != model.GenerationStatusSuccess {
		t.Errorf("期望状态 %s，实际 %s", model.GenerationStatusSuccess, entry.Status)
	}
	if entry.TemplateName != "corporate.pptx" || entry.ClientIP != "10.0.0.9" {
		t.Errorf("日志上下文未记录: %+v", entry)
	}
	if entry.SlideCount != out.SlideCount {
		t.Errorf("日志页数 %d 与结果 %d 不一致", entry.SlideCount, out.SlideCount)
	}
}

func TestGenerate_RecordsFailureLog(t *testing.T) {
	repo := &mockLogRepo{}
	svc := NewGenerateService(repo, nil)
	_, err := svc.Generate(context.Background(), &GenerateInput{
		Text:     "hello",
		Template: []byte("broken"),
	})
	if err == nil {
		t.Fatal("期望解析失败")
	}
	if len(repo.created) != 1 {
		t.Fatalf("失败也应写日志，实际 %d 条", len(repo.created))
	}
	entry := repo.created[0]
	if entry.Status != model.GenerationStatusFailed {
		t.Errorf("期望状态 %s，实际 %s", model.GenerationStatusFailed, entry.Status)
	}
	if entry.ErrorMsg == "" {
		t.Error("期望记录错误信息")
	}
}

func TestGenerate_UploadsWhenStorageConfigured(t *testing.T) {
	local, err := NewLocalStorage(&StorageConfig{BasePath: t.TempDir()})
	if err != nil {
		t.Fatalf("创建本地存储失败: %v", err)
	}
	svc := NewGenerateService(nil, NewStorageService(local))
	out, err := svc.Generate(context.Background(), &GenerateInput{
		Text:     "Some content for a small deck.",
		Template: buildMinimalTemplate(t),
	})
	if err != nil {
		t.Fatalf("Generate 失败: %v", err)
	}
	if !strings.HasPrefix(out.DeckURL, "/files/decks/") {
		t.Errorf("期望本地下载 URL，实际 %q", out.DeckURL)
	}
	if !strings.HasSuffix(out.DeckURL, ".pptx") {
		t.Errorf("期望 .pptx 后缀，实际 %q", out.DeckURL)
	}
}

func TestBuildPlanPrompt_DescribesTemplate(t *testing.T) {
	tpl, err := pptx.Analyze(buildMinimalTemplate(t))
	if err != nil {
		t.Fatalf("Analyze 失败: %v", err)
	}
	prompt := buildPlanPrompt(&PlanRequest{
		Text:     "source body",
		Guidance: "keep it short",
		Template: tpl,
	})
	for _, want := range []string{"Title and Content", "title", "body", "keep it short", "source body", "layout_hint"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("提示词缺少 %q", want)
		}
	}
}
