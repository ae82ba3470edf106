// internal/services/image_service.go
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/yydounai1234/AIgo-sub000/internal/assets"
	"github.com/yydounai1234/AIgo-sub000/internal/config"
	apperrors "github.com/yydounai1234/AIgo-sub000/internal/errors"
	"github.com/yydounai1234/AIgo-sub000/internal/models"
	"github.com/yydounai1234/AIgo-sub000/internal/utils"
)

const (
	imageMaxRetries    = 3
	imageRetryInterval = 3 * time.Second
	imageBatchWorkers  = 3
)

// ImageService 场景插画器：为每个分镜生成保持角色外观一致的插画
type ImageService struct {
	cfg    config.ImageConfig
	client *http.Client
	store  assets.Store
	logger *utils.Logger
	sleep  func(time.Duration) // 测试中可替换
}

// NewImageService 创建插画服务
func NewImageService(cfg config.ImageConfig, store assets.Store) *ImageService {
	return &ImageService{
		cfg:    cfg,
		client: &http.Client{Timeout: 120 * time.Second},
		store:  store,
		logger: utils.GetLogger(),
		sleep:  time.Sleep,
	}
}

// IsDemoMode 未配置图像生成凭证
func (s *ImageService) IsDemoMode() bool {
	return s.cfg.APIKey == ""
}

// ComposeAppearance 拼装角色的权威外观描述，用于注入插画提示词
// 无名册匹配时退化为角色名本身
func ComposeAppearance(character *models.Character, fallbackName string) string {
	if character == nil {
		return fallbackName
	}

	parts := make([]string, 0, 6)
	if character.Appearance != "" {
		parts = append(parts, character.Appearance)
	}
	if character.BodyType != "" {
		parts = append(parts, "体型: "+character.BodyType)
	}
	if character.FacialFeatures != "" {
		parts = append(parts, "面部: "+character.FacialFeatures)
	}
	if character.ClothingStyle != "" {
		parts = append(parts, "服装: "+character.ClothingStyle)
	}
	if character.DistinguishingFeatures != "" {
		parts = append(parts, "特征: "+character.DistinguishingFeatures)
	}
	if character.Description != "" {
		parts = append(parts, character.Description)
	}

	if len(parts) == 0 {
		return fallbackName
	}
	return strings.Join(parts, "，")
}

// buildScenePrompt 组装单个场景的插画提示词
func (s *ImageService) buildScenePrompt(scene models.Scene, appearance string) string {
	var sb strings.Builder

	sb.WriteString("动漫/漫画风格插画。")
	sb.WriteString(fmt.Sprintf("角色：%s。", appearance))
	if scene.VisualDescription != "" {
		sb.WriteString(fmt.Sprintf("场景：%s。", scene.VisualDescription))
	}
	if scene.Action != "" {
		sb.WriteString(fmt.Sprintf("动作：%s。", scene.Action))
	}
	if scene.Atmosphere != "" {
		sb.WriteString(fmt.Sprintf("氛围：%s。", scene.Atmosphere))
	}
	sb.WriteString("高质量、细节丰富、所有场景中保持完全一致的角色外观设计。")

	return sb.String()
}

// GenerateSceneImage 为单个场景生成插画并返回URL
// 单场景调用失败直接上抛，由调用方决定是否降级
func (s *ImageService) GenerateSceneImage(ctx context.Context, scene models.Scene, appearance string) (string, error) {
	nameHint := fmt.Sprintf("scene_%d", scene.SceneNumber)

	if s.IsDemoMode() {
		return fmt.Sprintf("https://via.placeholder.com/1024x1024.png?text=%s", nameHint), nil
	}

	prompt := s.buildScenePrompt(scene, appearance)
	return s.generate(ctx, prompt, nameHint)
}

// GeneratePortrait 为名册角色生成基准立绘
func (s *ImageService) GeneratePortrait(ctx context.Context, character *models.Character) (string, error) {
	nameHint := "portrait_" + character.Name

	if s.IsDemoMode() {
		return fmt.Sprintf("https://via.placeholder.com/1024x1024.png?text=%s", nameHint), nil
	}

	prompt := fmt.Sprintf("动漫/漫画风格角色立绘。角色：%s。正面全身像，纯色背景，高质量、细节丰富。",
		ComposeAppearance(character, character.Name))
	return s.generate(ctx, prompt, nameHint)
}

// IllustrateScenes 批量插画：场景间并行，单场景失败重试后以占位图兜底
// 部分失败不会中断整个批次
func (s *ImageService) IllustrateScenes(ctx context.Context, scenes []models.Scene, appearanceLookup map[string]string) {
	sem := make(chan struct{}, imageBatchWorkers)
	var wg sync.WaitGroup

	for i := range scenes {
		wg.Add(1)
		sem <- struct{}{}
		go func(scene *models.Scene) {
			defer wg.Done()
			defer func() { <-sem }()

			appearance, ok := appearanceLookup[scene.Character]
			if !ok || appearance == "" {
				appearance = scene.Character
			}

			var url string
			var err error
			for attempt := 1; attempt <= imageMaxRetries; attempt++ {
				url, err = s.GenerateSceneImage(ctx, *scene, appearance)
				if err == nil {
					break
				}
				s.logger.Warn("场景插画生成失败", map[string]interface{}{
					"scene":   scene.SceneNumber,
					"attempt": attempt,
					"error":   err.Error(),
				})
				if attempt < imageMaxRetries {
					s.sleep(imageRetryInterval)
				}
			}

			if err != nil {
				// 占位图兜底，批次继续
				url = fmt.Sprintf("http://via.placeholder.com/1024x1024.png?text=Scene+%d:%s",
					scene.SceneNumber, scene.Character)
			}
			scene.ImageURL = url
		}(&scenes[i])
	}

	wg.Wait()
}

// generate 调用图像生成接口，接受内联base64或托管URL两种返回
func (s *ImageService) generate(ctx context.Context, prompt, nameHint string) (string, error) {
	requestBody := map[string]interface{}{
		"model":  s.cfg.Model,
		"prompt": prompt,
		"n":      1,
		"size":   "1024x1024",
	}

	jsonData, err := json.Marshal(requestBody)
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST",
		s.cfg.BaseURL+"/images/generations", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)

	httpResp, err := s.client.Do(httpReq)
	if err != nil {
		return "", apperrors.NewProviderError("图像生成请求失败", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(httpResp.Body)
		return "", apperrors.NewProviderError(
			fmt.Sprintf("图像生成API错误(%d): %s", httpResp.StatusCode, string(body)), nil)
	}

	var response struct {
		Data []struct {
			B64JSON string `json:"b64_json"`
			URL     string `json:"url"`
		} `json:"data"`
	}
	if err := json.NewDecoder(httpResp.Body).Decode(&response); err != nil {
		return "", apperrors.NewProviderError("图像生成响应解析失败", err)
	}
	if len(response.Data) == 0 {
		return "", apperrors.NewProviderError("图像生成未返回任何结果", nil)
	}

	if response.Data[0].B64JSON != "" {
		return s.store.PutBase64(ctx, response.Data[0].B64JSON, nameHint)
	}
	if response.Data[0].URL != "" {
		return response.Data[0].URL, nil
	}
	return "", apperrors.NewProviderError("图像生成结果既无内联数据也无URL", nil)
}
