package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"deck_dev_v1_202608/pkg/pptx"
)

// ==================== 接口定义 ====================

// PlanProvider AI 规划提供方接口
// 输入原始文本与模板结构，输出结构化的幻灯片计划
type PlanProvider interface {
	// Name 提供方标识，写入调用日志
	Name() string

	// GeneratePlan 生成幻灯片计划
	GeneratePlan(ctx context.Context, req *PlanRequest) (pptx.SlidePlan, error)
}

// PlanRequest 规划请求
type PlanRequest struct {
	Text     string
	Guidance string
	Template *pptx.TemplateDescriptor // 提示词中描述模板结构，规划贴着真实版式走
}

// 提供方单次调用的硬超时；超时即转规则规划器，不做重试
const providerTimeout = 60 * time.Second

// ==================== 工厂方法 ====================

// NewPlanProvider 按名称创建提供方；name 为空返回 nil（直接走规则规划器）
func NewPlanProvider(name, apiKey string) (PlanProvider, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "":
		return nil, nil
	case "gemini":
		return NewGeminiProvider(apiKey, ""), nil
	case "openai":
		return NewOpenAIProvider(apiKey, ""), nil
	default:
		return nil, fmt.Errorf("不支持的 AI 提供方: %s", name)
	}
}

// ==================== 提示词构建 ====================

// buildPlanPrompt 组装规划提示词：模板结构描述 + 输出契约
func buildPlanPrompt(req *PlanRequest) string {
	var sb strings.Builder

	sb.WriteString(`You are a presentation planning assistant.
Split the source text below into slides for the given PowerPoint template.

Template layouts available:
`)
	for _, layout := range req.Template.Layouts {
		sb.WriteString(fmt.Sprintf("- %q: placeholders [", layout.Name))
		for i, ph := range layout.Placeholders {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(string(ph.Kind))
		}
		sb.WriteString("]\n")
	}
	fmt.Fprintf(&sb, "Template embedded images available: %d\n", len(req.Template.Images))

	sb.WriteString(`
Rules:
1. Every slide needs a short title (max 90 chars) and at most 6 bullets (max 180 chars each).
2. layout_hint must be one of: title+content, section, two-column, bullets, image-left, image-right, quote, title.
3. Set image_intent only when a template image genuinely supports the slide, e.g. "image-left".
4. Optional speaker notes go in "notes".
`)

	if req.Guidance != "" {
		fmt.Fprintf(&sb, "\nUser guidance: %s\n", req.Guidance)
	}

	sb.WriteString(`
Output Format (JSON only, no markdown):
{
  "slides": [
    {"title": "...", "subtitle": "...", "bullets": ["..."], "notes": "...", "layout_hint": "bullets", "image_intent": ""}
  ]
}

Source text:
`)
	sb.WriteString(req.Text)
	return sb.String()
}

// ==================== Gemini 实现 ====================

// GeminiProvider 基于官方 SDK 的 Gemini 提供方
type GeminiProvider struct {
	apiKey       string
	modelVersion string
}

// NewGeminiProvider 支持传入模型版本
func NewGeminiProvider(apiKey, modelVersion string) *GeminiProvider {
	if modelVersion == "" {
		modelVersion = "gemini-2.5-flash"
	}
	return &GeminiProvider{
		apiKey:       apiKey,
		modelVersion: modelVersion,
	}
}

func (p *GeminiProvider) Name() string {
	return "gemini"
}

func (p *GeminiProvider) GeneratePlan(ctx context.Context, req *PlanRequest) (pptx.SlidePlan, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("Gemini API Key 未配置")
	}

	ctx, cancel := context.WithTimeout(ctx, providerTimeout)
	defer cancel()

	client, err := genai.NewClient(ctx, option.WithAPIKey(p.apiKey))
	if err != nil {
		return nil, fmt.Errorf("Gemini 初始化失败: %v", err)
	}
	defer client.Close()

	modelAI := client.GenerativeModel(p.modelVersion)
	modelAI.ResponseMIMEType = "application/json"

	resp, err := modelAI.GenerateContent(ctx, genai.Text(buildPlanPrompt(req)))
	if err != nil {
		return nil, fmt.Errorf("Gemini 生成失败: %v", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("Gemini 返回为空")
	}

	var raw string
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			raw = string(txt)
			break
		}
	}

	return pptx.DecodePlan([]byte(raw))
}

// ==================== OpenAI 实现 ====================

// OpenAIProvider 走 Chat Completions 接口的 OpenAI 提供方
type OpenAIProvider struct {
	apiKey       string
	modelVersion string
	client       *resty.Client
}

// NewOpenAIProvider 支持传入模型版本
func NewOpenAIProvider(apiKey, modelVersion string) *OpenAIProvider {
	if modelVersion == "" {
		modelVersion = "gpt-4o-mini"
	}
	client := resty.New()
	client.SetBaseURL("https://api.openai.com/v1")
	client.SetTimeout(providerTimeout)

	return &OpenAIProvider{
		apiKey:       apiKey,
		modelVersion: modelVersion,
		client:       client,
	}
}

func (p *OpenAIProvider) Name() string {
	return "openai"
}

// openAIChatResponse Chat Completions 响应结构（只取需要的字段）
type openAIChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (p *OpenAIProvider) GeneratePlan(ctx context.Context, req *PlanRequest) (pptx.SlidePlan, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("OpenAI API Key 未配置")
	}

	body := map[string]interface{}{
		"model": p.modelVersion,
		"messages": []map[string]string{
			{"role": "user", "content": buildPlanPrompt(req)},
		},
		"response_format": map[string]string{"type": "json_object"},
	}

	var parsed openAIChatResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetAuthToken(p.apiKey).
		SetBody(body).
		SetResult(&parsed).
		SetError(&parsed).
		Post("/chat/completions")
	if err != nil {
		return nil, fmt.Errorf("OpenAI 请求失败: %v", err)
	}
	if resp.IsError() {
		msg := resp.Status()
		if parsed.Error != nil {
			msg = parsed.Error.Message
		}
		return nil, fmt.Errorf("OpenAI API 错误 [%d]: %s", resp.StatusCode(), msg)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("OpenAI 返回为空")
	}

	return pptx.DecodePlan([]byte(parsed.Choices[0].Message.Content))
}
