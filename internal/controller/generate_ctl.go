package controller

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"deck_dev_v1_202608/internal/api/dto"
	"deck_dev_v1_202608/internal/service"
	"deck_dev_v1_202608/pkg/pptx"

	"github.com/gin-gonic/gin"
)

// 模板上传大小上限 20MB
const maxTemplateSize = 20 << 20

// ==================== 控制器 ====================

// GenerateController 生成控制器
type GenerateController struct {
	generateService *service.GenerateService
	defaultProvider service.PlanProvider // 服务端配置的默认 AI 提供方，可为 nil
}

func NewGenerateController(generateService *service.GenerateService, defaultProvider service.PlanProvider) *GenerateController {
	return &GenerateController{
		generateService: generateService,
		defaultProvider: defaultProvider,
	}
}

// ==================== API 方法 ====================

// Generate 根据文本和模板生成演示文稿
// @Summary 上传模板与文本，生成并下载演示文稿
// @Tags Generate
// @Accept multipart/form-data
// @Produce application/vnd.openxmlformats-officedocument.presentationml.presentation
// @Param template formData file true "PPTX 模板文件"
// @Param text formData string true "源文本"
// @Param guidance formData string false "规划指引"
// @Param provider formData string false "AI 提供方: gemini 或 openai"
// @Success 200 {file} binary
// @Router /api/generate [post]
func (ctrl *GenerateController) Generate(c *gin.Context) {
	var req dto.GenerateRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": "参数错误: " + err.Error(),
		})
		return
	}

	fileHeader, err := c.FormFile("template")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": "缺少模板文件",
		})
		return
	}
	if fileHeader.Size > maxTemplateSize {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": fmt.Sprintf("模板文件过大，上限 %dMB", maxTemplateSize>>20),
		})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": "模板文件读取失败: " + err.Error(),
		})
		return
	}
	defer file.Close()
	templateBytes, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": "模板文件读取失败: " + err.Error(),
		})
		return
	}

	provider, err := ctrl.resolveProvider(&req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": err.Error(),
		})
		return
	}

	ctx := c.Request.Context()
	out, err := ctrl.generateService.Generate(ctx, &service.GenerateInput{
		Text:         req.Text,
		Guidance:     req.Guidance,
		Template:     templateBytes,
		TemplateName: fileHeader.Filename,
		Provider:     provider,
		ClientIP:     c.ClientIP(),
	})
	if err != nil {
		if errors.Is(err, pptx.ErrInvalidTemplate) {
			c.JSON(http.StatusBadRequest, gin.H{
				"code":    400,
				"message": "模板无效: " + err.Error(),
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    500,
			"message": "生成失败: " + err.Error(),
		})
		return
	}

	c.Header("X-Request-ID", out.RequestID)
	c.Header("X-Plan-Source", out.PlanSource)
	if out.DeckURL != "" {
		c.Header("X-Deck-URL", out.DeckURL)
	}

	// format=json 只回元信息，成品走托管 URL 下载
	if c.Query("format") == "json" {
		c.JSON(http.StatusOK, gin.H{
			"code":    0,
			"message": "success",
			"data": dto.GenerateResult{
				RequestID:   out.RequestID,
				SlideCount:  out.SlideCount,
				PlanSource:  out.PlanSource,
				DeckURL:     out.DeckURL,
				Diagnostics: out.Diagnostics,
			},
		})
		return
	}

	c.Header("Content-Disposition", `attachment; filename="deck.pptx"`)
	c.Data(http.StatusOK,
		"application/vnd.openxmlformats-officedocument.presentationml.presentation",
		out.Deck)
}

// resolveProvider 请求级提供方优先于服务端默认配置
func (ctrl *GenerateController) resolveProvider(req *dto.GenerateRequest) (service.PlanProvider, error) {
	if req.Provider == "" {
		return ctrl.defaultProvider, nil
	}
	provider, err := service.NewPlanProvider(req.Provider, req.APIKey)
	if err != nil {
		return nil, err
	}
	return provider, nil
}
