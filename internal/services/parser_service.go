// internal/services/parser_service.go
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/yydounai1234/AIgo-sub000/internal/config"
	apperrors "github.com/yydounai1234/AIgo-sub000/internal/errors"
	"github.com/yydounai1234/AIgo-sub000/internal/llm"
	"github.com/yydounai1234/AIgo-sub000/internal/models"
	"github.com/yydounai1234/AIgo-sub000/internal/storage"
	"github.com/yydounai1234/AIgo-sub000/internal/utils"
)

// ParserService 叙事解析器：将原始小说文本转换为结构化的动漫片段
// 未配置凭证时走确定性的离线演示路径，不发起任何网络调用
type ParserService struct {
	provider       llm.Provider
	cfg            config.LLMConfig
	characterStore *storage.CharacterStore
	logger         *utils.Logger
}

// NewParserService 创建叙事解析器
// cfg.APIKey 为空时 provider 保持为 nil，解析走演示路径
func NewParserService(cfg config.LLMConfig, characterStore *storage.CharacterStore) (*ParserService, error) {
	s := &ParserService{
		cfg:            cfg,
		characterStore: characterStore,
		logger:         utils.GetLogger(),
	}

	if cfg.APIKey != "" {
		provider, err := llm.GetProvider(cfg.Provider, map[string]string{
			"api_key":       cfg.APIKey,
			"base_url":      cfg.BaseURL,
			"default_model": cfg.Model,
		})
		if err != nil {
			return nil, apperrors.NewProcessingError("初始化LLM提供者失败", err)
		}
		s.provider = provider
	}

	return s, nil
}

// IsDemoMode 未配置凭证
func (s *ParserService) IsDemoMode() bool {
	return s.provider == nil
}

// Provider 返回底层文本生成提供者，演示模式下为nil
func (s *ParserService) Provider() llm.Provider {
	return s.provider
}

// ParseNovel 解析一集的小说文本
// 返回结构化片段；回复格式异常时降级为部分结果而不报错
func (s *ParserService) ParseNovel(ctx context.Context, workID, text, style, targetAudience string) (*models.AnimeSegment, error) {
	if s.IsDemoMode() {
		s.logger.Info("演示模式：返回离线解析结果", map[string]interface{}{
			"work_id": workID,
		})
		return s.demoSegment(text), nil
	}

	// 取出已有名册，既用于提示词上下文，也用于后处理
	roster, err := s.characterStore.ListByWork(ctx, workID)
	if err != nil {
		return nil, err
	}

	prompt := s.buildPrompt(text, style, targetAudience, roster)

	resp, err := s.provider.CompleteText(ctx, llm.CompletionRequest{
		Prompt:      prompt,
		Temperature: 0.3,
		MaxTokens:   8192,
	})
	if err != nil {
		return nil, apperrors.NewProviderError("叙事解析调用失败", err)
	}

	segment := s.parseReply(resp.Text)

	// 后处理：占位名分配 → 代词消解 → 名册回填
	s.assignPlaceholderNames(segment, roster)
	s.resolvePronounsInScenes(segment, roster)
	s.enrichFromRoster(segment, roster)

	return segment, nil
}

// DetectNicknames 识别文本中对已知角色的别称（代词、昵称、外号、身份称呼）
// 返回主名到别称列表的映射；演示模式、调用失败或解析失败一律返回空映射
func (s *ParserService) DetectNicknames(ctx context.Context, text string, characters []models.AnimeCharacter) map[string][]string {
	if s.IsDemoMode() || len(characters) == 0 {
		return map[string][]string{}
	}

	resp, err := s.provider.CompleteText(ctx, llm.CompletionRequest{
		Prompt:      s.buildNicknamePrompt(text, characters),
		Temperature: 0.3,
	})
	if err != nil {
		s.logger.Warn("角色别称识别调用失败", map[string]interface{}{
			"error": err.Error(),
		})
		return map[string][]string{}
	}

	nicknames := map[string][]string{}
	if err := json.Unmarshal([]byte(cleanJSONString(resp.Text)), &nicknames); err != nil {
		s.logger.Warn("角色别称识别结果解析失败", map[string]interface{}{
			"reply_prefix": truncateRunes(resp.Text, 100),
		})
		return map[string][]string{}
	}
	return nicknames
}

// buildNicknamePrompt 构造别称识别提示词
func (s *ParserService) buildNicknamePrompt(text string, characters []models.AnimeCharacter) string {
	var sb strings.Builder

	sb.WriteString("请找出下面小说文本中对已知角色的所有别称，包括代词指代、昵称、外号和身份称呼。\n\n")

	sb.WriteString("已知角色：\n")
	for _, c := range characters {
		sb.WriteString(fmt.Sprintf("- %s（性别：%s）\n", c.Name, c.Gender))
	}

	sb.WriteString("\n请严格按以下JSON格式输出，键为角色主名，值为该角色在文本中出现过的别称列表，没有别称的角色省略，不要添加任何解释：\n")
	sb.WriteString(`{"角色主名": ["别称1", "别称2"]}`)

	sb.WriteString("\n\n小说文本：\n")
	sb.WriteString(text)

	return sb.String()
}

// parseReply 从回复中提取结构化片段
// 解析失败时返回降级片段：空列表 + 原始回复截断摘要
func (s *ParserService) parseReply(reply string) *models.AnimeSegment {
	text := cleanJSONString(reply)

	var segment models.AnimeSegment
	if text != "" && json.Unmarshal([]byte(text), &segment) == nil {
		if segment.Genre == "" {
			segment.Genre = "未分类"
		}
		if segment.Mood == "" {
			segment.Mood = "未知"
		}
		return &segment
	}

	s.logger.Warn("解析回复失败，返回降级片段", map[string]interface{}{
		"reply_prefix": truncateRunes(reply, 100),
	})

	return &models.AnimeSegment{
		Characters:  []models.AnimeCharacter{},
		Scenes:      []models.Scene{},
		PlotSummary: truncateRunes(reply, 200),
		Genre:       "未分类",
		Mood:        "未知",
	}
}

// buildPrompt 构造解析提示词，嵌入风格/受众提示与已知角色上下文
func (s *ParserService) buildPrompt(text, style, targetAudience string, roster []models.Character) string {
	var sb strings.Builder

	sb.WriteString("你是一个专业的小说分镜师。请将下面的小说文本拆解为动漫分镜场景。\n\n")

	if style != "" {
		sb.WriteString(fmt.Sprintf("作品风格：%s\n", style))
	}
	if targetAudience != "" {
		sb.WriteString(fmt.Sprintf("目标受众：%s\n", targetAudience))
	}

	if len(roster) > 0 {
		sb.WriteString("\n已知角色（请沿用这些角色的既有设定，不要重新虚构）：\n")
		for _, c := range roster {
			sb.WriteString(fmt.Sprintf("- %s：%s", c.Name, c.Description))
			if c.Appearance != "" {
				sb.WriteString(fmt.Sprintf("；外观：%s", c.Appearance))
			}
			sb.WriteString("\n")
		}
	}

	sb.WriteString("\n要求：\n")
	sb.WriteString("1. 提取文本中出现的所有角色，无名角色按性别命名为\"未知男性\"或\"未知女性\"，无法判断性别时命名为\"未知\"\n")
	sb.WriteString("2. 将文本拆分为按顺序编号的场景，每个场景对应一句台词或一段旁白\n")
	sb.WriteString("3. 场景的character字段使用角色名，旁白使用\"旁白\"\n")
	sb.WriteString("4. 为每个场景给出画面描述、氛围和动作\n\n")

	sb.WriteString("请严格按以下JSON格式输出，不要添加任何解释：\n")
	sb.WriteString(`{
  "characters": [
    {
      "name": "角色名",
      "description": "角色简介",
      "appearance": "外貌描述",
      "bodyType": "体型",
      "facialFeatures": "面部特征",
      "clothingStyle": "服装风格",
      "distinguishingFeatures": "显著特征",
      "personality": "性格",
      "gender": "male/female/neutral"
    }
  ],
  "scenes": [
    {
      "sceneNumber": 1,
      "character": "角色名",
      "dialogue": "台词或旁白内容",
      "visualDescription": "画面描述",
      "atmosphere": "氛围",
      "action": "动作"
    }
  ],
  "plotSummary": "剧情摘要",
  "genre": "题材",
  "mood": "基调"
}`)

	sb.WriteString("\n\n小说文本：\n")
	sb.WriteString(text)

	return sb.String()
}

// demoSegment 确定性的离线演示片段
func (s *ParserService) demoSegment(text string) *models.AnimeSegment {
	return &models.AnimeSegment{
		Characters: []models.AnimeCharacter{
			{
				Name:                   "主角",
				Description:            "故事的主人公",
				Appearance:             "年轻、充满活力",
				BodyType:               "中等身高、匀称",
				FacialFeatures:         "清秀的五官",
				ClothingStyle:          "休闲装",
				DistinguishingFeatures: "无",
				Personality:            "勇敢、善良",
				Gender:                 "male",
			},
			{
				Name:        "旁白",
				Description: "叙述者",
				Appearance:  "无形",
				Personality: "客观",
				Gender:      "neutral",
			},
		},
		Scenes: []models.Scene{
			{
				SceneNumber:       1,
				Character:         "旁白",
				Dialogue:          "新的一天开始了。",
				VisualDescription: "清晨的城市街道，阳光洒在街道上",
				Atmosphere:        "宁静、温暖",
				Action:            "镜头从天空慢慢拉近街道",
			},
			{
				SceneNumber:       2,
				Character:         "主角",
				Dialogue:          "今天会是美好的一天！",
				VisualDescription: "主角站在街道上，面带微笑仰望天空",
				Atmosphere:        "充满希望",
				Action:            "主角伸展双臂，深呼吸",
			},
		},
		PlotSummary: fmt.Sprintf("这是一个关于%s...的故事", truncateRunes(text, 20)),
		Genre:       "青春、冒险",
		Mood:        "积极向上",
	}
}

// assignPlaceholderNames 为"未知男性/未知女性/未知"分配占位名（男a、女a、未知a...）
// 各性别的计数器从已有名册中的占位名继续推进，跨集数不重号
func (s *ParserService) assignPlaceholderNames(segment *models.AnimeSegment, roster []models.Character) {
	next := map[string]rune{"男": 'a', "女": 'a', "未知": 'a'}

	// 名册中已有 男c 时，下一个男性占位名从 男d 开始
	for _, c := range roster {
		if !c.IsPlaceholderName {
			continue
		}
		for prefix := range next {
			if strings.HasPrefix(c.Name, prefix) && len(c.Name) == len(prefix)+1 {
				letter := rune(c.Name[len(prefix)])
				if letter >= next[prefix] && letter < 'z' {
					next[prefix] = letter + 1
				}
			}
		}
	}

	renames := make(map[string]string)
	for i := range segment.Characters {
		var prefix string
		switch segment.Characters[i].Name {
		case "未知男性":
			prefix = "男"
		case "未知女性":
			prefix = "女"
		case "未知":
			prefix = "未知"
		default:
			continue
		}

		newName := prefix + string(next[prefix])
		if next[prefix] < 'z' {
			next[prefix]++
		}
		renames[segment.Characters[i].Name] = newName
		segment.Characters[i].Name = newName
	}

	if len(renames) == 0 {
		return
	}
	for i := range segment.Scenes {
		if newName, ok := renames[segment.Scenes[i].Character]; ok {
			segment.Scenes[i].Character = newName
		}
	}
}

// resolvePronounsInScenes 将场景中的裸代词映射为具体角色名
// 仅在映射无歧义时替换：我→主角，他/她→名册与本段中唯一的男/女角色
func (s *ParserService) resolvePronounsInScenes(segment *models.AnimeSegment, roster []models.Character) {
	var protagonist string
	males := make(map[string]struct{})
	females := make(map[string]struct{})

	collect := func(name, gender string, isProtagonist bool) {
		if isProtagonist && protagonist == "" {
			protagonist = name
		}
		switch gender {
		case "male":
			males[name] = struct{}{}
		case "female":
			females[name] = struct{}{}
		}
	}

	for _, c := range roster {
		collect(c.Name, c.Gender, c.IsProtagonist)
	}
	for _, c := range segment.Characters {
		collect(c.Name, c.Gender, IsProtagonistName(c.Name))
	}

	uniqueName := func(set map[string]struct{}) string {
		if len(set) != 1 {
			return ""
		}
		for name := range set {
			return name
		}
		return ""
	}

	for i := range segment.Scenes {
		switch segment.Scenes[i].Character {
		case "我":
			if protagonist != "" {
				segment.Scenes[i].Character = protagonist
			}
		case "他":
			if name := uniqueName(males); name != "" {
				segment.Scenes[i].Character = name
			}
		case "她":
			if name := uniqueName(females); name != "" {
				segment.Scenes[i].Character = name
			}
		}
	}
}

// enrichFromRoster 用名册中的既有设定回填抽取结果
// 名册是外观的权威来源：已入册的非空字段覆盖本次抽取值，保证跨集数一致
func (s *ParserService) enrichFromRoster(segment *models.AnimeSegment, roster []models.Character) {
	byName := make(map[string]*models.Character, len(roster))
	for i := range roster {
		byName[roster[i].Name] = &roster[i]
	}

	for i := range segment.Characters {
		existing, ok := byName[segment.Characters[i].Name]
		if !ok {
			continue
		}
		c := &segment.Characters[i]
		overrideIfKnown(&c.Description, existing.Description)
		overrideIfKnown(&c.Appearance, existing.Appearance)
		overrideIfKnown(&c.Personality, existing.Personality)
		overrideIfKnown(&c.Gender, existing.Gender)
		overrideIfKnown(&c.BodyType, existing.BodyType)
		overrideIfKnown(&c.FacialFeatures, existing.FacialFeatures)
		overrideIfKnown(&c.ClothingStyle, existing.ClothingStyle)
		overrideIfKnown(&c.DistinguishingFeatures, existing.DistinguishingFeatures)
	}
}

func overrideIfKnown(target *string, rosterValue string) {
	if !isEmptyOrUnknown(rosterValue) {
		*target = rosterValue
	}
}

// isEmptyOrUnknown 值为空或为"未知"类标记
func isEmptyOrUnknown(value string) bool {
	v := strings.ToLower(strings.TrimSpace(value))
	return v == "" || v == "未知" || v == "unknown" || v == "null"
}

// truncateRunes 按rune截断，避免切断多字节字符
func truncateRunes(s string, max int) string {
	runes := []rune(strings.TrimSpace(s))
	if len(runes) <= max {
		return string(runes)
	}
	return string(runes[:max])
}
