package pptx

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// ==================== 计划规整与校验 ====================

// 字段长度上限，超出部分在此阶段钳制；残余的溢出交给文字适配引擎处理
const (
	maxTitleLen  = 90
	maxBulletLen = 180
	maxNotesLen  = 2000
	maxBullets   = 6
	maxSlides    = 30
)

// planEnvelope AI 响应的外层结构 {"slides": [...]}
type planEnvelope struct {
	Slides []SlideSpec `json:"slides"`
}

var codeFenceRe = regexp.MustCompile("(?is)```(?:json)?\\s*\\n?(.*?)\\n?```")

// DecodePlan 把 AI 提供方的原始响应解析为规整后的 SlidePlan
// 先剥掉 Markdown 代码围栏，解析失败时再用 jsonrepair 修复一次；
// 结构缺失（没有 slides 数组或为空）返回 ErrPlanInvalid，调用方转用规则规划器。
// 不修改输入字节，总是产出新值
func DecodePlan(raw []byte) (SlidePlan, error) {
	text := strings.TrimSpace(string(raw))
	if m := codeFenceRe.FindStringSubmatch(text); m != nil {
		text = strings.TrimSpace(m[1])
	}
	if text == "" {
		return nil, fmt.Errorf("%w: 响应为空", ErrPlanInvalid)
	}

	var env planEnvelope
	if err := json.Unmarshal([]byte(text), &env); err != nil {
		repaired, repairErr := jsonrepair.JSONRepair(text)
		if repairErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrPlanInvalid, err)
		}
		if err := json.Unmarshal([]byte(repaired), &env); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrPlanInvalid, err)
		}
	}
	if len(env.Slides) == 0 {
		return nil, fmt.Errorf("%w: slides 数组缺失或为空", ErrPlanInvalid)
	}

	return NormalizePlan(env.Slides), nil
}

// NormalizePlan 修补并钳制计划中的畸形字段，产出新的 SlidePlan
func NormalizePlan(slides []SlideSpec) SlidePlan {
	if len(slides) > maxSlides {
		slides = slides[:maxSlides]
	}
	plan := make(SlidePlan, 0, len(slides))
	for _, s := range slides {
		spec := SlideSpec{
			Title:       clamp(strings.TrimSpace(s.Title), maxTitleLen),
			Subtitle:    clamp(strings.TrimSpace(s.Subtitle), maxBulletLen),
			Notes:       clamp(strings.TrimSpace(s.Notes), maxNotesLen),
			LayoutHint:  strings.ToLower(strings.TrimSpace(s.LayoutHint)),
			ImageIntent: strings.ToLower(strings.TrimSpace(s.ImageIntent)),
		}
		if spec.Title == "" {
			spec.Title = "Untitled Slide"
		}
		if spec.LayoutHint == "" {
			spec.LayoutHint = HintBullets
		}
		for _, b := range s.Bullets {
			b = strings.TrimSpace(b)
			if b == "" {
				continue
			}
			spec.Bullets = append(spec.Bullets, clamp(b, maxBulletLen))
			if len(spec.Bullets) >= maxBullets {
				break
			}
		}
		plan = append(plan, spec)
	}
	return plan
}

// clamp 按字符数截取（防御 AI 输出超长字段）
func clamp(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
