package service

import "testing"

func TestNewPlanProvider_Factory(t *testing.T) {
	p, err := NewPlanProvider("", "key")
	if err != nil {
		t.Fatalf("空名称不应报错: %v", err)
	}
	if p != nil {
		t.Error("空名称应返回 nil 提供方")
	}

	p, err = NewPlanProvider("gemini", "key")
	if err != nil {
		t.Fatalf("gemini 创建失败: %v", err)
	}
	if p.Name() != "gemini" {
		t.Errorf("期望 gemini，实际 %s", p.Name())
	}

	p, err = NewPlanProvider("OpenAI", "key")
	if err != nil {
		t.Fatalf("openai 创建失败: %v", err)
	}
	if p.Name() != "openai" {
		t.Errorf("期望 openai，实际 %s", p.Name())
	}

	if _, err := NewPlanProvider("claude", "key"); err == nil {
		t.Error("未知提供方应报错")
	}
}
