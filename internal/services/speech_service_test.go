// internal/services/speech_service_test.go
package services

import (
	"context"
	"strings"
	"testing"

	"github.com/yydounai1234/AIgo-sub000/internal/config"
	"github.com/yydounai1234/AIgo-sub000/internal/models"
)

func TestVoiceRegistry(t *testing.T) {
	registry := NewVoiceRegistry()

	t.Run("按性别和年龄段解析", func(t *testing.T) {
		if got := registry.Resolve("male", "young_adult"); got != "qiniu_zh_male_tyygjs" {
			t.Errorf("male/young_adult → %q", got)
		}
		if got := registry.Resolve("female", "elderly"); got != "qiniu_zh_female_sqjyay" {
			t.Errorf("female/elderly → %q", got)
		}
	})

	t.Run("未命中回退默认音色", func(t *testing.T) {
		if got := registry.Resolve("robot", "child"); got != "qiniu_zh_female_wwxkjx" {
			t.Errorf("未命中组合 → %q, 期望默认音色", got)
		}
	})

	t.Run("注册自定义音色", func(t *testing.T) {
		registry.Register("male", "child", "custom_voice")
		if got := registry.Resolve("male", "child"); got != "custom_voice" {
			t.Errorf("注册后解析 → %q", got)
		}
	})
}

func TestInferGender(t *testing.T) {
	t.Run("结构化性别字段优先", func(t *testing.T) {
		c := &models.Character{Gender: "female", Description: "他他他"}
		if got := inferGender(c, "小刚"); got != "female" {
			t.Errorf("显式性别应短路推断, 得到 %q", got)
		}
	})

	t.Run("描述中男性关键词占多数", func(t *testing.T) {
		c := &models.Character{Description: "他是一位英俊的先生"}
		if got := inferGender(c, "某人"); got != "male" {
			t.Errorf("男性关键词占多数 → %q", got)
		}
	})

	t.Run("描述中女性关键词占多数", func(t *testing.T) {
		c := &models.Character{Description: "她是一位温柔的姑娘"}
		if got := inferGender(c, "某人"); got != "female" {
			t.Errorf("女性关键词占多数 → %q", got)
		}
	})

	t.Run("关键词平局回退名字用字", func(t *testing.T) {
		if got := inferGender(nil, "小娜"); got != "female" {
			t.Errorf("名字含娜 → %q", got)
		}
		if got := inferGender(nil, "小强"); got != "male" {
			t.Errorf("名字含强 → %q", got)
		}
	})

	t.Run("无线索时为中性", func(t *testing.T) {
		if got := inferGender(nil, "旁白"); got != "neutral" {
			t.Errorf("无线索 → %q", got)
		}
	})
}

func TestInferAgeGroup(t *testing.T) {
	cases := []struct {
		description string
		want        string
	}{
		{"白发苍苍的老爷爷", "elderly"},
		{"孩子的父亲，中年男子", "middle_aged"},
		{"高中学生", "teenager"},
		{"看不出年龄", "young_adult"},
	}
	for _, c := range cases {
		got := inferAgeGroup(&models.Character{Description: c.description})
		if got != c.want {
			t.Errorf("inferAgeGroup(%q) = %q, 期望 %q", c.description, got, c.want)
		}
	}
	if got := inferAgeGroup(nil); got != "young_adult" {
		t.Errorf("无角色信息默认 young_adult, 得到 %q", got)
	}
}

// 音色分配按角色名记忆化：首次推断后永不改变
func TestAssignVoiceMemoization(t *testing.T) {
	svc := NewSpeechService(config.SpeechConfig{}, nil)

	character := &models.Character{Name: "小明", Gender: "male"}
	first := svc.AssignVoice(character, "小明")
	if first != "qiniu_zh_male_tyygjs" {
		t.Fatalf("首次分配 = %q", first)
	}

	// 角色属性随后变化也不影响已缓存的音色
	character.Gender = "female"
	second := svc.AssignVoice(character, "小明")
	if second != first {
		t.Errorf("重复分配 = %q, 期望缓存值 %q", second, first)
	}

	// 不同角色互不干扰
	other := svc.AssignVoice(&models.Character{Name: "小红", Gender: "female"}, "小红")
	if other != "qiniu_zh_female_wwxkjx" {
		t.Errorf("小红的音色 = %q", other)
	}
}

// 空台词不产生音频，有台词的场景在演示模式下获得确定性URL
func TestNarrateScenes(t *testing.T) {
	svc := NewSpeechService(config.SpeechConfig{}, nil)

	scenes := []models.Scene{
		{SceneNumber: 1, Character: "旁白", Dialogue: "新的一天开始了。"},
		{SceneNumber: 2, Character: "小明", Dialogue: "   "},
		{SceneNumber: 3, Character: "小明", Dialogue: "出发吧！"},
	}
	lookup := map[string]*models.Character{
		"小明": {Name: "小明", Gender: "male"},
	}

	svc.NarrateScenes(context.Background(), scenes, lookup)

	if scenes[0].AudioURL == "" {
		t.Error("场景1有台词，应生成音频URL")
	}
	if scenes[1].AudioURL != "" {
		t.Errorf("空台词场景不应有音频URL: %q", scenes[1].AudioURL)
	}
	if !strings.Contains(scenes[2].AudioURL, "scene_3") {
		t.Errorf("场景3音频URL = %q", scenes[2].AudioURL)
	}
}
