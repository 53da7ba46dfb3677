package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/go-resty/resty/v2"
)

// 全链路冒烟测试：对本地服务发一次真实生成请求，把成品落到当前目录
// 用法: go run main.go <模板.pptx> [文本文件]
func main() {
	fmt.Println(">>> 开始执行全链路测试...")

	if len(os.Args) < 2 {
		log.Fatal("❌ 用法: go run main.go <模板.pptx> [文本文件]")
	}
	templatePath := os.Args[1]

	// ------------------------------------------------
	// 1. 准备源文本
	// ------------------------------------------------
	text := `# 项目周报

## 进展
- 核心模块联调完成
- 压测指标达标

## 风险
- 第三方接口偶发超时`
	if len(os.Args) > 2 {
		data, err := os.ReadFile(os.Args[2])
		if err != nil {
			log.Fatalf("❌ 读取文本文件失败: %v", err)
		}
		text = string(data)
	}
	fmt.Printf("✅ 源文本就绪 (%d 字符)\n", len([]rune(text)))

	// ------------------------------------------------
	// 2. 发起生成请求
	// ------------------------------------------------
	client := resty.New()

	// 生成可能较慢，放宽超时
	client.SetTimeout(2 * time.Minute)

	resp, err := client.R().
		SetFile("template", templatePath).
		SetFormData(map[string]string{
			"text": text,
		}).
		Post("http://localhost:8080/api/generate")
	if err != nil {
		log.Fatalf("❌ 请求失败，请确认服务已启动: %v", err)
	}
	if resp.IsError() {
		log.Fatalf("❌ 生成失败 [%d]: %s", resp.StatusCode(), resp.String())
	}

	fmt.Printf("✅ 生成成功: request_id=%s plan_source=%s\n",
		resp.Header().Get("X-Request-ID"),
		resp.Header().Get("X-Plan-Source"))
	if deckURL := resp.Header().Get("X-Deck-URL"); deckURL != "" {
		fmt.Printf("✅ 托管地址: %s\n", deckURL)
	}

	// ------------------------------------------------
	// 3. 落盘检查
	// ------------------------------------------------
	outPath := "deck_smoke_test.pptx"
	if err := os.WriteFile(outPath, resp.Body(), 0o644); err != nil {
		log.Fatalf("❌ 写出成品失败: %v", err)
	}

	fmt.Printf("🎉 全链路测试通过！成品已写出: %s (%d 字节)\n", outPath, len(resp.Body()))
}
