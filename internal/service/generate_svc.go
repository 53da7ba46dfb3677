package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"deck_dev_v1_202608/internal/model"
	"deck_dev_v1_202608/internal/repository"
	"deck_dev_v1_202608/pkg/pptx"
	"deck_dev_v1_202608/pkg/utils"
)

// ==================== 请求与结果 ====================

// GenerateInput 一次生成调用的完整输入
type GenerateInput struct {
	Text         string
	Guidance     string
	Template     []byte
	TemplateName string
	Provider     PlanProvider // 可为 nil，直接走规则规划器
	ClientIP     string
}

// GenerateOutput 生成结果
type GenerateOutput struct {
	RequestID   string
	Deck        []byte
	SlideCount  int
	PlanSource  string
	DeckURL     string
	Diagnostics []string
}

// ==================== 生成服务 ====================

// GenerateService 串起解析、规划、映射、合成与落盘的主流程
type GenerateService struct {
	logRepo repository.GenerationLogRepository // 可为 nil，未配置数据库时跳过记录
	storage *StorageService                    // 可为 nil，仅以响应体返回文件
}

func NewGenerateService(logRepo repository.GenerationLogRepository, storage *StorageService) *GenerateService {
	return &GenerateService{
		logRepo: logRepo,
		storage: storage,
	}
}

// Generate 执行完整生成流程
// AI 规划失败或超时一律降级到规则规划器，请求本身不失败
func (s *GenerateService) Generate(ctx context.Context, input *GenerateInput) (*GenerateOutput, error) {
	requestID := uuid.New().String()
	started := time.Now()

	tpl, err := s.analyzeTemplate(input.Template)
	if err != nil {
		s.recordLog(ctx, input, requestID, nil, started, err)
		return nil, err
	}

	plan, planSource := s.resolvePlan(ctx, input, tpl)

	deck := pptx.NewDeckState()
	placements := make([]pptx.PlacementResult, 0, len(plan))
	var diagnostics []string
	for i, spec := range plan {
		res, mapErr := pptx.Map(spec, tpl, deck)
		if mapErr != nil {
			s.recordLog(ctx, input, requestID, nil, started, mapErr)
			return nil, fmt.Errorf("映射第 %d 页失败: %w", i+1, mapErr)
		}
		for _, d := range res.Dropped {
			diagnostics = append(diagnostics, fmt.Sprintf("slide %d: %s", i+1, d))
		}
		placements = append(placements, res)
	}

	data, err := pptx.Write(placements, tpl)
	if err != nil {
		s.recordLog(ctx, input, requestID, nil, started, err)
		return nil, fmt.Errorf("合成演示文稿失败: %w", err)
	}

	out := &GenerateOutput{
		RequestID:   requestID,
		Deck:        data,
		SlideCount:  len(placements),
		PlanSource:  planSource,
		Diagnostics: diagnostics,
	}

	if s.storage != nil {
		url, upErr := s.storage.UploadDeck(ctx, data)
		if upErr != nil {
			// 上传失败不阻断下载，记诊断后继续
			log.Printf("上传生成结果失败: %v", upErr)
			diagnostics = append(diagnostics, "upload: "+upErr.Error())
			out.Diagnostics = diagnostics
		} else {
			out.DeckURL = url
		}
	}

	s.recordLog(ctx, input, requestID, out, started, nil)
	return out, nil
}

// analyzeTemplate 解析模板，命中缓存时跳过重复解压
func (s *GenerateService) analyzeTemplate(templateBytes []byte) (*pptx.TemplateDescriptor, error) {
	cacheKey := utils.TemplateKey(templateBytes)
	if cached, ok := utils.GetTemplate(cacheKey); ok {
		if tpl, ok := cached.(*pptx.TemplateDescriptor); ok {
			return tpl, nil
		}
	}

	tpl, err := pptx.Analyze(templateBytes)
	if err != nil {
		return nil, err
	}
	utils.SetTemplate(cacheKey, tpl)
	return tpl, nil
}

// resolvePlan 先问 AI 提供方，任何失败都回退到规则规划器
func (s *GenerateService) resolvePlan(ctx context.Context, input *GenerateInput, tpl *pptx.TemplateDescriptor) (pptx.SlidePlan, string) {
	if input.Provider != nil {
		plan, err := input.Provider.GeneratePlan(ctx, &PlanRequest{
			Text:     input.Text,
			Guidance: input.Guidance,
			Template: tpl,
		})
		if err == nil && len(plan) > 0 {
			return pptx.NormalizePlan(plan), model.PlanSourceProvider
		}
		log.Printf("AI 规划失败，降级到规则规划器: %v", err)
	}
	return pptx.PlanFromText(input.Text, input.Guidance), model.PlanSourceFallback
}

// recordLog 写调用日志；数据库未配置时静默跳过
func (s *GenerateService) recordLog(ctx context.Context, input *GenerateInput, requestID string, out *GenerateOutput, started time.Time, genErr error) {
	if s.logRepo == nil {
		return
	}

	entry := &model.GenerationLog{
		RequestID:    requestID,
		ClientIP:     input.ClientIP,
		TemplateName: input.TemplateName,
		TemplateHash: utils.TemplateKey(input.Template),
		InputChars:   len([]rune(input.Text)),
		Guidance:     input.Guidance,
		DurationMs:   time.Since(started).Milliseconds(),
	}
	if input.Provider != nil {
		entry.Provider = input.Provider.Name()
	}

	if genErr != nil {
		entry.Status = model.GenerationStatusFailed
		entry.ErrorMsg = genErr.Error()
	} else {
		entry.Status = model.GenerationStatusSuccess
		entry.PlanSource = out.PlanSource
		entry.SlideCount = out.SlideCount
		entry.DeckURL = out.DeckURL
		if len(out.Diagnostics) > 0 {
			if raw, err := json.Marshal(out.Diagnostics); err == nil {
				entry.Diagnostics = datatypes.JSON(raw)
			}
		}
	}

	if err := s.logRepo.Create(ctx, entry); err != nil {
		log.Printf("写入生成日志失败: %v", err)
	}
}
