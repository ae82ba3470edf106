// internal/services/video_service.go
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/yydounai1234/AIgo-sub000/internal/config"
	apperrors "github.com/yydounai1234/AIgo-sub000/internal/errors"
	"github.com/yydounai1234/AIgo-sub000/internal/models"
	"github.com/yydounai1234/AIgo-sub000/internal/utils"
)

// 演示模式的固定视频地址
const demoVideoURL = "https://sample-videos.com/video123/mp4/720/big_buck_bunny_720p_1mb.mp4"

// 同时在途的轮询上限，轮询会占住工作者整个等待期
const maxConcurrentPolls = 4

// VideoService 视频合成器：创建生成任务后有界轮询至完成或超时
type VideoService struct {
	cfg     config.VideoConfig
	client  *http.Client
	logger  *utils.Logger
	pollSem chan struct{}

	// 测试中可替换
	sleep       func(time.Duration)
	fetchStatus func(ctx context.Context, jobID string) (status, resultURL string, err error)
}

// NewVideoService 创建视频合成服务
func NewVideoService(cfg config.VideoConfig) *VideoService {
	s := &VideoService{
		cfg:     cfg,
		client:  &http.Client{Timeout: 60 * time.Second},
		logger:  utils.GetLogger(),
		pollSem: make(chan struct{}, maxConcurrentPolls),
		sleep:   time.Sleep,
	}
	s.fetchStatus = s.fetchStatusHTTP
	return s
}

// IsDemoMode 未配置视频生成凭证
func (s *VideoService) IsDemoMode() bool {
	return s.cfg.APIKey == ""
}

// ComposeFromScenes 用整集场景合成一段视频
// 演示模式直接返回固定地址，不创建任务也不轮询
func (s *VideoService) ComposeFromScenes(ctx context.Context, scenes []models.Scene) (string, error) {
	if s.IsDemoMode() {
		return demoVideoURL, nil
	}
	if len(scenes) == 0 {
		return "", apperrors.NewValidationError("没有可用于合成视频的场景", nil)
	}

	prompt := buildVideoPrompt(scenes)

	// 基准图取第一个有插画的场景
	var baseImage string
	for _, scene := range scenes {
		if scene.ImageURL != "" {
			baseImage = scene.ImageURL
			break
		}
	}

	jobID, err := s.CreateJob(ctx, baseImage, prompt)
	if err != nil {
		return "", err
	}
	return s.Poll(ctx, jobID)
}

// buildVideoPrompt 把分镜拼成视频生成提示词
func buildVideoPrompt(scenes []models.Scene) string {
	var sb strings.Builder
	sb.WriteString("Create an anime-style video with the following scenes:\n")
	for i, scene := range scenes {
		sb.WriteString(fmt.Sprintf("%d. %s", i+1, scene.VisualDescription))
		if scene.Dialogue != "" {
			sb.WriteString(fmt.Sprintf(" 对话: %s", scene.Dialogue))
		}
		if scene.Atmosphere != "" {
			sb.WriteString(fmt.Sprintf(" 氛围: %s", scene.Atmosphere))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// CreateJob 创建视频生成任务，返回任务ID
func (s *VideoService) CreateJob(ctx context.Context, baseImageURL, prompt string) (string, error) {
	instance := map[string]interface{}{"prompt": prompt}
	if baseImageURL != "" {
		instance["image"] = map[string]interface{}{
			"uri":      baseImageURL,
			"mimeType": "image/jpeg",
		}
	}

	requestBody := map[string]interface{}{
		"instances": []interface{}{instance},
		"parameters": map[string]interface{}{
			"durationSeconds": 8,
			"sampleCount":     1,
			"aspectRatio":     "16:9",
			"generateAudio":   true,
		},
		"model": s.cfg.Model,
	}

	jsonData, err := json.Marshal(requestBody)
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST",
		s.cfg.BaseURL+"/videos/generations", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)

	httpResp, err := s.client.Do(httpReq)
	if err != nil {
		return "", apperrors.NewProviderError("创建视频任务失败", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(httpResp.Body)
		return "", apperrors.NewProviderError(
			fmt.Sprintf("视频生成API错误(%d): %s", httpResp.StatusCode, string(body)), nil)
	}

	var response struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(httpResp.Body).Decode(&response); err != nil {
		return "", apperrors.NewProviderError("视频任务响应解析失败", err)
	}
	if response.ID == "" {
		return "", apperrors.NewProviderError("视频任务未返回ID", nil)
	}

	s.logger.Info("视频任务已创建", map[string]interface{}{"job_id": response.ID})
	return response.ID, nil
}

// Poll 轮询任务直至终态或预算耗尽
// Completed → 结果URL；Failed → 立即报错；预算耗尽 → 超时错误
func (s *VideoService) Poll(ctx context.Context, jobID string) (string, error) {
	s.pollSem <- struct{}{}
	defer func() { <-s.pollSem }()

	interval := time.Duration(s.cfg.PollInterval) * time.Second
	for attempt := 1; attempt <= s.cfg.MaxPolls; attempt++ {
		select {
		case <-ctx.Done():
			return "", apperrors.NewTimeoutError("视频任务轮询被取消: "+jobID, ctx.Err())
		default:
		}

		status, resultURL, err := s.fetchStatus(ctx, jobID)
		if err != nil {
			return "", err
		}

		switch status {
		case "Completed":
			if resultURL == "" {
				return "", apperrors.NewProviderError("视频任务完成但未返回结果URL: "+jobID, nil)
			}
			return resultURL, nil
		case "Failed":
			return "", apperrors.NewProviderError("视频任务执行失败: "+jobID, nil)
		}

		if attempt < s.cfg.MaxPolls {
			s.sleep(interval)
		}
	}

	return "", apperrors.NewTimeoutError(
		fmt.Sprintf("视频任务轮询超时（%d次）: %s", s.cfg.MaxPolls, jobID), nil)
}

// fetchStatusHTTP 查询任务状态的默认实现
func (s *VideoService) fetchStatusHTTP(ctx context.Context, jobID string) (string, string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, "GET",
		s.cfg.BaseURL+"/videos/generations/"+jobID, nil)
	if err != nil {
		return "", "", err
	}
	httpReq.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)

	httpResp, err := s.client.Do(httpReq)
	if err != nil {
		return "", "", apperrors.NewProviderError("查询视频任务状态失败", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(httpResp.Body)
		return "", "", apperrors.NewProviderError(
			fmt.Sprintf("视频状态API错误(%d): %s", httpResp.StatusCode, string(body)), nil)
	}

	var response struct {
		Status string `json:"status"`
		Data   struct {
			Videos []struct {
				URL string `json:"url"`
			} `json:"videos"`
		} `json:"data"`
	}
	if err := json.NewDecoder(httpResp.Body).Decode(&response); err != nil {
		return "", "", apperrors.NewProviderError("视频状态响应解析失败", err)
	}

	var resultURL string
	if len(response.Data.Videos) > 0 {
		resultURL = response.Data.Videos[0].URL
	}
	return response.Status, resultURL, nil
}
