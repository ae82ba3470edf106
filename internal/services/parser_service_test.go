// internal/services/parser_service_test.go
package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/yydounai1234/AIgo-sub000/internal/config"
	"github.com/yydounai1234/AIgo-sub000/internal/models"
)

func newDemoParser(t *testing.T) *ParserService {
	t.Helper()

	// 空APIKey进入演示模式，不触发任何网络调用
	svc, err := NewParserService(config.LLMConfig{Provider: "deepseek"}, nil)
	if err != nil {
		t.Fatalf("创建解析服务失败: %v", err)
	}
	if !svc.IsDemoMode() {
		t.Fatal("空凭证应进入演示模式")
	}
	return svc
}

// 演示模式返回确定性的离线片段
func TestParseNovelDemoMode(t *testing.T) {
	svc := newDemoParser(t)

	segment, err := svc.ParseNovel(context.Background(), "work-1", "小明和小红在公园里散步。", "", "")
	if err != nil {
		t.Fatalf("演示解析失败: %v", err)
	}

	if len(segment.Characters) == 0 {
		t.Error("演示片段应包含角色")
	}
	if len(segment.Scenes) == 0 {
		t.Fatal("演示片段应包含场景")
	}
	for _, scene := range segment.Scenes {
		if scene.SceneNumber == 0 || scene.Character == "" {
			t.Errorf("场景字段不完整: %+v", scene)
		}
	}
	if !strings.Contains(segment.PlotSummary, "小明和小红") {
		t.Errorf("摘要应引用输入文本: %q", segment.PlotSummary)
	}

	// 同一输入两次解析结果一致
	again, _ := svc.ParseNovel(context.Background(), "work-1", "小明和小红在公园里散步。", "", "")
	if again.PlotSummary != segment.PlotSummary || len(again.Scenes) != len(segment.Scenes) {
		t.Error("演示解析应是确定性的")
	}
}

// 别称识别是尽力而为的：任何失败都退化为空映射，不报错
func TestDetectNicknames(t *testing.T) {
	ctx := context.Background()
	characters := []models.AnimeCharacter{
		{Name: "小明", Gender: "male"},
		{Name: "小红", Gender: "female"},
	}

	t.Run("演示模式返回空映射", func(t *testing.T) {
		svc := newDemoParser(t)
		got := svc.DetectNicknames(ctx, "小明看着她。", characters)
		if len(got) != 0 {
			t.Errorf("别称映射 = %v, 期望为空", got)
		}
	})

	t.Run("无角色时返回空映射", func(t *testing.T) {
		svc := newDemoParser(t)
		svc.provider = &stubProvider{reply: `{"小明": ["他"]}`}
		got := svc.DetectNicknames(ctx, "小明看着她。", nil)
		if len(got) != 0 {
			t.Errorf("别称映射 = %v, 期望为空", got)
		}
	})

	t.Run("解析带围栏的回复", func(t *testing.T) {
		svc := newDemoParser(t)
		svc.provider = &stubProvider{reply: "```json\n{\"小明\": [\"他\", \"少年\"], \"小红\": [\"她\"]}\n```"}
		got := svc.DetectNicknames(ctx, "小明看着她。", characters)
		if len(got["小明"]) != 2 || got["小明"][0] != "他" {
			t.Errorf("小明的别称 = %v", got["小明"])
		}
		if len(got["小红"]) != 1 || got["小红"][0] != "她" {
			t.Errorf("小红的别称 = %v", got["小红"])
		}
	})

	t.Run("调用失败退化为空映射", func(t *testing.T) {
		svc := newDemoParser(t)
		svc.provider = &stubProvider{err: errors.New("上游额度耗尽")}
		got := svc.DetectNicknames(ctx, "小明看着她。", characters)
		if got == nil || len(got) != 0 {
			t.Errorf("别称映射 = %v, 期望非nil空映射", got)
		}
	})

	t.Run("回复不是JSON时退化为空映射", func(t *testing.T) {
		svc := newDemoParser(t)
		svc.provider = &stubProvider{reply: "我不确定谁是谁"}
		got := svc.DetectNicknames(ctx, "小明看着她。", characters)
		if len(got) != 0 {
			t.Errorf("别称映射 = %v, 期望为空", got)
		}
	})
}

func TestParseReply(t *testing.T) {
	svc := newDemoParser(t)

	t.Run("markdown代码块中的JSON", func(t *testing.T) {
		reply := "```json\n{\"characters\":[{\"name\":\"小明\"}],\"scenes\":[{\"sceneNumber\":1,\"character\":\"小明\",\"dialogue\":\"你好\"}],\"plotSummary\":\"摘要\",\"genre\":\"冒险\",\"mood\":\"轻松\"}\n```"
		segment := svc.parseReply(reply)
		if len(segment.Characters) != 1 || segment.Characters[0].Name != "小明" {
			t.Errorf("角色解析不符: %+v", segment.Characters)
		}
		if segment.Genre != "冒险" {
			t.Errorf("题材 = %q", segment.Genre)
		}
	})

	t.Run("JSON前后混入解说文字", func(t *testing.T) {
		reply := "好的，以下是分镜结果：{\"characters\":[],\"scenes\":[],\"plotSummary\":\"p\",\"genre\":\"g\",\"mood\":\"m\"}希望对你有帮助。"
		segment := svc.parseReply(reply)
		if segment.PlotSummary != "p" {
			t.Errorf("摘要 = %q, 期望 %q", segment.PlotSummary, "p")
		}
	})

	t.Run("缺省题材与基调回填", func(t *testing.T) {
		segment := svc.parseReply(`{"characters":[],"scenes":[],"plotSummary":"p"}`)
		if segment.Genre != "未分类" || segment.Mood != "未知" {
			t.Errorf("缺省字段应回填: genre=%q mood=%q", segment.Genre, segment.Mood)
		}
	})

	t.Run("完全无法解析时降级为摘要片段", func(t *testing.T) {
		reply := "抱歉，我无法处理这段文本。"
		segment := svc.parseReply(reply)
		if segment == nil {
			t.Fatal("降级路径不应返回nil")
		}
		if len(segment.Characters) != 0 || len(segment.Scenes) != 0 {
			t.Error("降级片段的列表应为空")
		}
		if !strings.Contains(segment.PlotSummary, "抱歉") {
			t.Errorf("降级摘要应保留原始回复前缀: %q", segment.PlotSummary)
		}
		if segment.Genre != "未分类" || segment.Mood != "未知" {
			t.Errorf("降级片段的缺省字段不符: genre=%q mood=%q", segment.Genre, segment.Mood)
		}
	})

	t.Run("超长回复截断为200字", func(t *testing.T) {
		reply := strings.Repeat("长", 500)
		segment := svc.parseReply(reply)
		if got := len([]rune(segment.PlotSummary)); got > 203 {
			t.Errorf("降级摘要长度 = %d 字", got)
		}
	})
}

func TestAssignPlaceholderNames(t *testing.T) {
	svc := newDemoParser(t)

	t.Run("按性别依次编号", func(t *testing.T) {
		segment := &models.AnimeSegment{
			Characters: []models.AnimeCharacter{
				{Name: "未知男性"},
				{Name: "未知女性"},
				{Name: "未知"},
			},
			Scenes: []models.Scene{
				{SceneNumber: 1, Character: "未知男性", Dialogue: "……"},
			},
		}
		svc.assignPlaceholderNames(segment, nil)

		if segment.Characters[0].Name != "男a" {
			t.Errorf("未知男性 → %q, 期望 男a", segment.Characters[0].Name)
		}
		if segment.Characters[1].Name != "女a" {
			t.Errorf("未知女性 → %q, 期望 女a", segment.Characters[1].Name)
		}
		if segment.Characters[2].Name != "未知a" {
			t.Errorf("未知 → %q, 期望 未知a", segment.Characters[2].Name)
		}
		// 场景中的引用同步改名
		if segment.Scenes[0].Character != "男a" {
			t.Errorf("场景角色引用 = %q, 期望 男a", segment.Scenes[0].Character)
		}
	})

	t.Run("计数器从名册延续不重号", func(t *testing.T) {
		roster := []models.Character{
			{Name: "男a", IsPlaceholderName: true},
			{Name: "男b", IsPlaceholderName: true},
		}
		segment := &models.AnimeSegment{
			Characters: []models.AnimeCharacter{{Name: "未知男性"}},
		}
		svc.assignPlaceholderNames(segment, roster)
		if segment.Characters[0].Name != "男c" {
			t.Errorf("续编号 = %q, 期望 男c", segment.Characters[0].Name)
		}
	})

	t.Run("正式名不受影响", func(t *testing.T) {
		segment := &models.AnimeSegment{
			Characters: []models.AnimeCharacter{{Name: "小明"}},
		}
		svc.assignPlaceholderNames(segment, nil)
		if segment.Characters[0].Name != "小明" {
			t.Errorf("正式名被改写为 %q", segment.Characters[0].Name)
		}
	})
}

func TestResolvePronounsInScenes(t *testing.T) {
	svc := newDemoParser(t)

	t.Run("我映射到主角", func(t *testing.T) {
		segment := &models.AnimeSegment{
			Characters: []models.AnimeCharacter{{Name: "小明", Gender: "male"}},
			Scenes:     []models.Scene{{SceneNumber: 1, Character: "我", Dialogue: "走吧"}},
		}
		roster := []models.Character{{Name: "小明", Gender: "male", IsProtagonist: true}}
		svc.resolvePronounsInScenes(segment, roster)
		if segment.Scenes[0].Character != "小明" {
			t.Errorf("我 → %q, 期望 小明", segment.Scenes[0].Character)
		}
	})

	t.Run("他映射到唯一男性", func(t *testing.T) {
		segment := &models.AnimeSegment{
			Characters: []models.AnimeCharacter{
				{Name: "小明", Gender: "male"},
				{Name: "小红", Gender: "female"},
			},
			Scenes: []models.Scene{{SceneNumber: 1, Character: "他", Dialogue: "好"}},
		}
		svc.resolvePronounsInScenes(segment, nil)
		if segment.Scenes[0].Character != "小明" {
			t.Errorf("他 → %q, 期望 小明", segment.Scenes[0].Character)
		}
	})

	t.Run("多个男性时他保持原样", func(t *testing.T) {
		segment := &models.AnimeSegment{
			Characters: []models.AnimeCharacter{
				{Name: "小明", Gender: "male"},
				{Name: "小刚", Gender: "male"},
			},
			Scenes: []models.Scene{{SceneNumber: 1, Character: "他", Dialogue: "好"}},
		}
		svc.resolvePronounsInScenes(segment, nil)
		if segment.Scenes[0].Character != "他" {
			t.Errorf("歧义代词不应替换，得到 %q", segment.Scenes[0].Character)
		}
	})
}

func TestEnrichFromRoster(t *testing.T) {
	svc := newDemoParser(t)

	roster := []models.Character{
		{Name: "小明", Appearance: "黑发少年", Gender: "male"},
	}
	segment := &models.AnimeSegment{
		Characters: []models.AnimeCharacter{
			{Name: "小明", Appearance: "未知", Gender: ""},
			{Name: "新角色", Appearance: "红发"},
		},
	}
	svc.enrichFromRoster(segment, roster)

	if segment.Characters[0].Appearance != "黑发少年" {
		t.Errorf("名册外观应回填: %q", segment.Characters[0].Appearance)
	}
	if segment.Characters[0].Gender != "male" {
		t.Errorf("名册性别应回填: %q", segment.Characters[0].Gender)
	}
	if segment.Characters[1].Appearance != "红发" {
		t.Errorf("名册外角色不应被改写: %q", segment.Characters[1].Appearance)
	}
}

func TestIsEmptyOrUnknown(t *testing.T) {
	cases := []struct {
		value string
		want  bool
	}{
		{"", true},
		{"  ", true},
		{"未知", true},
		{"unknown", true},
		{"Unknown", true},
		{"null", true},
		{"黑发少年", false},
	}
	for _, c := range cases {
		if got := isEmptyOrUnknown(c.value); got != c.want {
			t.Errorf("isEmptyOrUnknown(%q) = %v, 期望 %v", c.value, got, c.want)
		}
	}
}
