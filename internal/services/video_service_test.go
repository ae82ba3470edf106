// internal/services/video_service_test.go
package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/yydounai1234/AIgo-sub000/internal/config"
	apperrors "github.com/yydounai1234/AIgo-sub000/internal/errors"
	"github.com/yydounai1234/AIgo-sub000/internal/models"
)

func newTestVideoService(maxPolls int) *VideoService {
	svc := NewVideoService(config.VideoConfig{
		APIKey:       "test-key",
		BaseURL:      "https://video.test/v1",
		Model:        "veo3",
		PollInterval: 5,
		MaxPolls:     maxPolls,
	})
	svc.sleep = func(time.Duration) {}
	return svc
}

// 任务完成即停止轮询，不浪费剩余预算
func TestPollStopsOnCompleted(t *testing.T) {
	svc := newTestVideoService(60)

	statuses := []string{"Running", "Running", "Completed"}
	polls := 0
	svc.fetchStatus = func(ctx context.Context, jobID string) (string, string, error) {
		status := statuses[polls]
		polls++
		if status == "Completed" {
			return status, "https://video.test/result.mp4", nil
		}
		return status, "", nil
	}

	url, err := svc.Poll(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("轮询失败: %v", err)
	}
	if url != "https://video.test/result.mp4" {
		t.Errorf("结果URL = %q", url)
	}
	if polls != 3 {
		t.Errorf("轮询次数 = %d, 期望 3", polls)
	}
}

// 轮询预算耗尽转为超时错误，绝不无限等待
func TestPollExhaustsBudget(t *testing.T) {
	svc := newTestVideoService(5)

	polls := 0
	svc.fetchStatus = func(ctx context.Context, jobID string) (string, string, error) {
		polls++
		return "Running", "", nil
	}

	_, err := svc.Poll(context.Background(), "job-1")
	if !apperrors.IsTimeoutError(err) {
		t.Fatalf("期望超时错误, 得到: %v", err)
	}
	if polls != 5 {
		t.Errorf("轮询次数 = %d, 期望 5", polls)
	}
}

// 任务失败立即报错，不等预算耗尽
func TestPollFailsFast(t *testing.T) {
	svc := newTestVideoService(60)

	polls := 0
	svc.fetchStatus = func(ctx context.Context, jobID string) (string, string, error) {
		polls++
		return "Failed", "", nil
	}

	_, err := svc.Poll(context.Background(), "job-1")
	if !apperrors.IsProviderError(err) {
		t.Fatalf("期望提供者错误, 得到: %v", err)
	}
	if polls != 1 {
		t.Errorf("轮询次数 = %d, 期望 1", polls)
	}
}

// 上下文取消中断轮询
func TestPollCanceled(t *testing.T) {
	svc := newTestVideoService(60)

	ctx, cancel := context.WithCancel(context.Background())
	svc.fetchStatus = func(ctx context.Context, jobID string) (string, string, error) {
		cancel()
		return "Running", "", nil
	}

	_, err := svc.Poll(ctx, "job-1")
	if !apperrors.IsTimeoutError(err) {
		t.Fatalf("期望取消转为超时错误, 得到: %v", err)
	}
}

// 演示模式返回固定视频地址，不创建任务也不轮询
func TestComposeFromScenesDemoMode(t *testing.T) {
	svc := NewVideoService(config.VideoConfig{MaxPolls: 60})
	svc.fetchStatus = func(ctx context.Context, jobID string) (string, string, error) {
		t.Fatal("演示模式不应触发状态查询")
		return "", "", nil
	}

	url, err := svc.ComposeFromScenes(context.Background(), []models.Scene{
		{SceneNumber: 1, VisualDescription: "街道"},
	})
	if err != nil {
		t.Fatalf("演示合成失败: %v", err)
	}
	if url != demoVideoURL {
		t.Errorf("演示URL = %q", url)
	}
}

func TestBuildVideoPrompt(t *testing.T) {
	scenes := []models.Scene{
		{SceneNumber: 1, VisualDescription: "清晨街道", Dialogue: "新的一天", Atmosphere: "宁静"},
		{SceneNumber: 2, VisualDescription: "公园", Atmosphere: "欢快"},
	}
	prompt := buildVideoPrompt(scenes)

	for _, want := range []string{"清晨街道", "新的一天", "宁静", "公园"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("提示词缺少 %q:\n%s", want, prompt)
		}
	}
}
