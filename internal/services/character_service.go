// internal/services/character_service.go
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/yydounai1234/AIgo-sub000/internal/llm"
	"github.com/yydounai1234/AIgo-sub000/internal/models"
	"github.com/yydounai1234/AIgo-sub000/internal/storage"
	"github.com/yydounai1234/AIgo-sub000/internal/utils"
)

// 主角判定：名字恰好命中第一人称/主角类标签
var protagonistNames = map[string]struct{}{
	"我":   {},
	"主角":  {},
	"主人公": {},
}

// 占位名判定：性别词 + 单个小写字母（解析器自动命名的临时角色）
var placeholderNamePattern = regexp.MustCompile(`^(男|女|未知)[a-z]$`)

// IsProtagonistName 名字是否为主角标签
func IsProtagonistName(name string) bool {
	_, ok := protagonistNames[name]
	return ok
}

// IsPlaceholderName 名字是否为自动生成的占位名
func IsPlaceholderName(name string) bool {
	return placeholderNamePattern.MatchString(name)
}

// CharacterService 角色调和器：把每次抽取出的角色信息合并进作品级名册
type CharacterService struct {
	store       *storage.CharacterStore
	lockManager *LockManager
	provider    llm.Provider // 可为nil（演示模式），仅用于特征补全
	logger      *utils.Logger
}

// NewCharacterService 创建角色调和器
func NewCharacterService(store *storage.CharacterStore, lockManager *LockManager, provider llm.Provider) *CharacterService {
	return &CharacterService{
		store:       store,
		lockManager: lockManager,
		provider:    provider,
		logger:      utils.GetLogger(),
	}
}

// Reconcile 按 (workID, name) 调和一个抽取结果
// 不存在则新建；存在则逐字段合并，空值不覆盖已有数据
// nicknames 为本次文本中识别出的别称，并入名册条目时去重
// 同一调和键的调用串行执行，避免合并的丢失更新
func (s *CharacterService) Reconcile(ctx context.Context, workID string, extracted models.AnimeCharacter, nicknames []string) (*models.Character, error) {
	name := strings.TrimSpace(extracted.Name)
	if name == "" {
		return nil, nil
	}

	isProtagonist := IsProtagonistName(name)
	isPlaceholder := IsPlaceholderName(name)
	patch := models.CharacterPatch{
		Nicknames:              nicknames,
		Description:            extracted.Description,
		Appearance:             extracted.Appearance,
		Personality:            extracted.Personality,
		Gender:                 extracted.Gender,
		BodyType:               extracted.BodyType,
		FacialFeatures:         extracted.FacialFeatures,
		ClothingStyle:          extracted.ClothingStyle,
		DistinguishingFeatures: extracted.DistinguishingFeatures,
		IsProtagonist:          &isProtagonist,
		IsPlaceholderName:      &isPlaceholder,
	}

	var result *models.Character
	err := s.lockManager.ExecuteWithCharacterLock(workID, name, func() error {
		existing, err := s.store.GetByWorkAndName(ctx, workID, name)
		if err != nil {
			return err
		}

		if existing == nil {
			character := &models.Character{
				WorkID:                 workID,
				Name:                   name,
				Nicknames:              mergeNicknames(nil, nicknames),
				Description:            extracted.Description,
				Appearance:             extracted.Appearance,
				Personality:            extracted.Personality,
				Gender:                 extracted.Gender,
				BodyType:               extracted.BodyType,
				FacialFeatures:         extracted.FacialFeatures,
				ClothingStyle:          extracted.ClothingStyle,
				DistinguishingFeatures: extracted.DistinguishingFeatures,
				IsProtagonist:          isProtagonist,
				IsPlaceholderName:      isPlaceholder,
			}
			if err := s.store.Create(ctx, character); err != nil {
				return err
			}
			result = character
			return nil
		}

		merged := MergeCharacter(*existing, patch)
		if err := s.store.Save(ctx, &merged); err != nil {
			return err
		}
		result = &merged
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// MergeCharacter 字段级合并的纯函数
// 补丁字段非空才覆盖；别称取并集；主角标志只增不减；占位标志在角色获得正式名后清除
func MergeCharacter(existing models.Character, patch models.CharacterPatch) models.Character {
	existing.Nicknames = mergeNicknames(existing.Nicknames, patch.Nicknames)
	mergeField(&existing.Description, patch.Description)
	mergeField(&existing.Appearance, patch.Appearance)
	mergeField(&existing.Personality, patch.Personality)
	mergeField(&existing.Gender, patch.Gender)
	mergeField(&existing.BodyType, patch.BodyType)
	mergeField(&existing.FacialFeatures, patch.FacialFeatures)
	mergeField(&existing.ClothingStyle, patch.ClothingStyle)
	mergeField(&existing.DistinguishingFeatures, patch.DistinguishingFeatures)

	if patch.IsProtagonist != nil && *patch.IsProtagonist {
		existing.IsProtagonist = true
	}
	if patch.IsPlaceholderName != nil && !*patch.IsPlaceholderName {
		existing.IsPlaceholderName = false
	}

	return existing
}

func mergeField(target *string, value string) {
	if strings.TrimSpace(value) != "" {
		*target = value
	}
}

// mergeNicknames 并集去重，保留既有顺序，空白项忽略
func mergeNicknames(existing models.StringList, extra []string) models.StringList {
	seen := make(map[string]struct{}, len(existing)+len(extra))
	merged := make(models.StringList, 0, len(existing)+len(extra))
	for _, list := range [][]string{existing, extra} {
		for _, nickname := range list {
			nickname = strings.TrimSpace(nickname)
			if nickname == "" {
				continue
			}
			if _, ok := seen[nickname]; ok {
				continue
			}
			seen[nickname] = struct{}{}
			merged = append(merged, nickname)
		}
	}
	return merged
}

// ListByWork 列出作品的角色名册
func (s *CharacterService) ListByWork(ctx context.Context, workID string) ([]models.Character, error) {
	return s.store.ListByWork(ctx, workID)
}

// EnsureCompleteFeatures 用LLM补全名册条目中缺失的外观字段
// 演示模式下跳过；补全失败不阻断流水线，仅记录日志
func (s *CharacterService) EnsureCompleteFeatures(ctx context.Context, character *models.Character) {
	if s.provider == nil || character == nil {
		return
	}

	missing := make([]string, 0, 4)
	if isEmptyOrUnknown(character.BodyType) {
		missing = append(missing, "bodyType")
	}
	if isEmptyOrUnknown(character.FacialFeatures) {
		missing = append(missing, "facialFeatures")
	}
	if isEmptyOrUnknown(character.ClothingStyle) {
		missing = append(missing, "clothingStyle")
	}
	if isEmptyOrUnknown(character.DistinguishingFeatures) {
		missing = append(missing, "distinguishingFeatures")
	}
	if len(missing) == 0 {
		return
	}

	prompt := fmt.Sprintf(`根据角色的已知信息，补全缺失的外观字段。
角色名：%s
简介：%s
外貌：%s
性格：%s
性别：%s

需要补全的字段：%s

请严格按JSON格式输出：{"bodyType":"体型","facialFeatures":"面部特征","clothingStyle":"服装风格","distinguishingFeatures":"显著特征"}`,
		character.Name, character.Description, character.Appearance,
		character.Personality, character.Gender, strings.Join(missing, "、"))

	resp, err := s.provider.CompleteText(ctx, llm.CompletionRequest{
		Prompt:      prompt,
		Temperature: 0.5,
	})
	if err != nil {
		s.logger.Warn("角色特征补全失败", map[string]interface{}{
			"name":  character.Name,
			"error": err.Error(),
		})
		return
	}

	var features struct {
		BodyType               string `json:"bodyType"`
		FacialFeatures         string `json:"facialFeatures"`
		ClothingStyle          string `json:"clothingStyle"`
		DistinguishingFeatures string `json:"distinguishingFeatures"`
	}
	if err := json.Unmarshal([]byte(cleanJSONString(resp.Text)), &features); err != nil {
		s.logger.Warn("角色特征补全结果解析失败", map[string]interface{}{
			"name": character.Name,
		})
		return
	}

	if isEmptyOrUnknown(character.BodyType) {
		character.BodyType = features.BodyType
	}
	if isEmptyOrUnknown(character.FacialFeatures) {
		character.FacialFeatures = features.FacialFeatures
	}
	if isEmptyOrUnknown(character.ClothingStyle) {
		character.ClothingStyle = features.ClothingStyle
	}
	if isEmptyOrUnknown(character.DistinguishingFeatures) {
		character.DistinguishingFeatures = features.DistinguishingFeatures
	}

	if err := s.store.Save(ctx, character); err != nil {
		s.logger.Warn("保存补全后的角色失败", map[string]interface{}{
			"name":  character.Name,
			"error": err.Error(),
		})
	}
}
