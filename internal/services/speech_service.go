// internal/services/speech_service.go
package services

import (
	"bytes"
	"context"
	"encoding/base64"
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

// 性别推断关键词
var maleKeywords = []string{
	"男", "他", "先生", "男性", "男孩", "男人", "少年",
	"哥哥", "兄弟", "父亲", "爸爸", "叔叔", "爷爷", "公",
}

var femaleKeywords = []string{
	"女", "她", "女士", "女性", "女孩", "女人", "少女",
	"姐姐", "妹妹", "母亲", "妈妈", "阿姨", "奶奶", "婆婆",
}

// 关键词打平时回退到名字用字
var maleNameFragments = []string{"明", "强", "刚", "军", "伟", "涛", "龙", "杰", "鹏", "磊"}
var femaleNameFragments = []string{"娜", "婷", "丽", "芳", "静", "雅", "兰", "燕", "莉", "萍"}

// 年龄段关键词
var elderlyKeywords = []string{"老", "爷爷", "奶奶", "婆婆", "年迈", "苍老", "白发"}
var middleAgedKeywords = []string{"中年", "父亲", "母亲", "爸爸", "妈妈", "叔叔", "阿姨"}
var teenagerKeywords = []string{"少年", "少女", "学生", "十几岁", "初中", "高中"}

// VoiceRegistry 音色注册表：(性别, 年龄段) → 音色标识
// 新增条目不需要改动推断逻辑
type VoiceRegistry struct {
	voices       map[string]string
	defaultVoice string
}

// NewVoiceRegistry 创建默认音色注册表
func NewVoiceRegistry() *VoiceRegistry {
	return &VoiceRegistry{
		voices: map[string]string{
			"male_elderly":        "qiniu_zh_male_ybxknjs",
			"male_middle_aged":    "qiniu_zh_male_wncwxz",
			"male_young_adult":    "qiniu_zh_male_tyygjs",
			"male_teenager":       "qiniu_zh_male_hlsnkk",
			"female_elderly":      "qiniu_zh_female_sqjyay",
			"female_middle_aged":  "qiniu_zh_female_kljxdd",
			"female_young_adult":  "qiniu_zh_female_wwxkjx",
			"female_teenager":     "qiniu_zh_female_xyqxxj",
			"neutral_elderly":     "qiniu_zh_male_ybxknjs",
			"neutral_middle_aged": "qiniu_zh_male_tyygjs",
			"neutral_young_adult": "qiniu_zh_female_wwxkjx",
			"neutral_teenager":    "qiniu_zh_male_hlsnkk",
		},
		defaultVoice: "qiniu_zh_female_wwxkjx",
	}
}

// Register 注册音色
func (r *VoiceRegistry) Register(gender, ageGroup, voiceID string) {
	r.voices[gender+"_"+ageGroup] = voiceID
}

// Resolve 解析音色，未命中返回默认音色
func (r *VoiceRegistry) Resolve(gender, ageGroup string) string {
	if voice, ok := r.voices[gender+"_"+ageGroup]; ok {
		return voice
	}
	return r.defaultVoice
}

// SpeechService 叙述者：为角色分配音色并逐场景合成配音
type SpeechService struct {
	cfg      config.SpeechConfig
	client   *http.Client
	store    assets.Store
	registry *VoiceRegistry
	logger   *utils.Logger

	// 音色缓存：角色名 → 音色标识，进程生命周期内保持稳定
	voiceCache map[string]string
	cacheMutex sync.Mutex
}

// NewSpeechService 创建配音服务
func NewSpeechService(cfg config.SpeechConfig, store assets.Store) *SpeechService {
	return &SpeechService{
		cfg:        cfg,
		client:     &http.Client{Timeout: 120 * time.Second},
		store:      store,
		registry:   NewVoiceRegistry(),
		logger:     utils.GetLogger(),
		voiceCache: make(map[string]string),
	}
}

// IsDemoMode 未配置语音合成凭证
func (s *SpeechService) IsDemoMode() bool {
	return s.cfg.APIKey == ""
}

// AssignVoice 为角色分配音色，按角色名记忆化
// 同一角色在所有场景/集数中保持同一音色，且不重复执行推断
func (s *SpeechService) AssignVoice(character *models.Character, name string) string {
	s.cacheMutex.Lock()
	defer s.cacheMutex.Unlock()

	if voice, ok := s.voiceCache[name]; ok {
		return voice
	}

	gender := inferGender(character, name)
	ageGroup := inferAgeGroup(character)
	voice := s.registry.Resolve(gender, ageGroup)

	s.voiceCache[name] = voice
	return voice
}

// inferGender 关键词计分推断性别
// 男女关键词分别对描述文本计分，严格多数获胜；平局回退到名字用字；仍无法判断为neutral
func inferGender(character *models.Character, name string) string {
	var text string
	if character != nil {
		if character.Gender == "male" || character.Gender == "female" {
			return character.Gender
		}
		text = strings.ToLower(character.Description + character.Appearance + character.Personality)
	}

	maleScore := 0
	femaleScore := 0
	for _, kw := range maleKeywords {
		maleScore += strings.Count(text, kw)
	}
	for _, kw := range femaleKeywords {
		femaleScore += strings.Count(text, kw)
	}

	if maleScore > femaleScore {
		return "male"
	}
	if femaleScore > maleScore {
		return "female"
	}

	// 平局或无文本：检查名字用字，女性用字优先
	for _, fragment := range femaleNameFragments {
		if strings.Contains(name, fragment) {
			return "female"
		}
	}
	for _, fragment := range maleNameFragments {
		if strings.Contains(name, fragment) {
			return "male"
		}
	}

	return "neutral"
}

// inferAgeGroup 关键词推断年龄段，默认young_adult
func inferAgeGroup(character *models.Character) string {
	if character == nil {
		return "young_adult"
	}
	text := character.Description + character.Appearance + character.Personality

	for _, kw := range elderlyKeywords {
		if strings.Contains(text, kw) {
			return "elderly"
		}
	}
	for _, kw := range middleAgedKeywords {
		if strings.Contains(text, kw) {
			return "middle_aged"
		}
	}
	for _, kw := range teenagerKeywords {
		if strings.Contains(text, kw) {
			return "teenager"
		}
	}
	return "young_adult"
}

// NarrateScenes 逐场景合成配音并回填AudioURL
// 空台词不产生音频也不算错误；单场景合成失败仅记日志，批次继续
func (s *SpeechService) NarrateScenes(ctx context.Context, scenes []models.Scene, characterLookup map[string]*models.Character) {
	for i := range scenes {
		scene := &scenes[i]
		if strings.TrimSpace(scene.Dialogue) == "" {
			continue
		}

		voice := s.AssignVoice(characterLookup[scene.Character], scene.Character)
		url, err := s.Synthesize(ctx, scene.Dialogue, voice, scene.SceneNumber)
		if err != nil {
			s.logger.Warn("场景配音合成失败", map[string]interface{}{
				"scene": scene.SceneNumber,
				"error": err.Error(),
			})
			continue
		}
		scene.AudioURL = url
	}
}

// Synthesize 合成单段台词，返回音频URL
func (s *SpeechService) Synthesize(ctx context.Context, text, voiceID string, sceneNumber int) (string, error) {
	if s.IsDemoMode() {
		return fmt.Sprintf("https://example.com/audio/scene_%d.mp3", sceneNumber), nil
	}

	requestBody := map[string]interface{}{
		"audio": map[string]interface{}{
			"voice_type":  voiceID,
			"encoding":    "mp3",
			"speed_ratio": 1.0,
		},
		"request": map[string]interface{}{
			"text": text,
		},
	}

	jsonData, err := json.Marshal(requestBody)
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST",
		s.cfg.BaseURL+"/voice/tts", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)

	httpResp, err := s.client.Do(httpReq)
	if err != nil {
		return "", apperrors.NewProviderError("语音合成请求失败", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(httpResp.Body)
		return "", apperrors.NewProviderError(
			fmt.Sprintf("语音合成API错误(%d): %s", httpResp.StatusCode, string(body)), nil)
	}

	var response struct {
		Data string `json:"data"` // base64音频
	}
	if err := json.NewDecoder(httpResp.Body).Decode(&response); err != nil {
		return "", apperrors.NewProviderError("语音合成响应解析失败", err)
	}
	if response.Data == "" {
		return "", apperrors.NewProviderError("语音合成未返回音频数据", nil)
	}

	audio, err := base64.StdEncoding.DecodeString(response.Data)
	if err != nil {
		return "", apperrors.NewProviderError("音频数据解码失败", err)
	}

	return s.store.Put(ctx, audio, fmt.Sprintf("audio_scene_%d", sceneNumber))
}
