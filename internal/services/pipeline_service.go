// internal/services/pipeline_service.go
package services

import (
	"context"

	"github.com/yydounai1234/AIgo-sub000/internal/models"
	"github.com/yydounai1234/AIgo-sub000/internal/storage"
	"github.com/yydounai1234/AIgo-sub000/internal/utils"
)

// PipelineService 集数编排器：驱动状态机并按序执行各生成阶段
// 状态转移：PENDING → PROCESSING → SUCCESS/FAILED
// 任一阶段报错即转FAILED，并把错误消息原样落库供用户查看
type PipelineService struct {
	episodeStore *storage.EpisodeStore
	workStore    *storage.WorkStore
	parser       *ParserService
	characters   *CharacterService
	images       *ImageService
	speech       *SpeechService
	video        *VideoService
	progress     *ProgressService
	lockManager  *LockManager
	pool         *WorkerPool
	logger       *utils.Logger
}

// NewPipelineService 创建流水线编排器
func NewPipelineService(
	episodeStore *storage.EpisodeStore,
	workStore *storage.WorkStore,
	parser *ParserService,
	characters *CharacterService,
	images *ImageService,
	speech *SpeechService,
	video *VideoService,
	progress *ProgressService,
	lockManager *LockManager,
	pool *WorkerPool,
) *PipelineService {
	return &PipelineService{
		episodeStore: episodeStore,
		workStore:    workStore,
		parser:       parser,
		characters:   characters,
		images:       images,
		speech:       speech,
		video:        video,
		progress:     progress,
		lockManager:  lockManager,
		pool:         pool,
		logger:       utils.GetLogger(),
	}
}

// Submit 把集数的流水线执行提交到工作池后立即返回
// 池满载时按背压策略退化为提交方同步执行
func (s *PipelineService) Submit(episodeID string) {
	s.pool.Submit(func() {
		s.Run(context.Background(), episodeID)
	})
}

// Run 执行一集的完整流水线
// 同一集数同时至多一个运行：抢不到运行权直接放弃，在途运行不受影响
func (s *PipelineService) Run(ctx context.Context, episodeID string) {
	if !s.lockManager.TryAcquireRun(episodeID) {
		s.logger.Warn("集数已有流水线在途，本次运行放弃", map[string]interface{}{
			"episode_id": episodeID,
		})
		return
	}
	defer s.lockManager.ReleaseRun(episodeID)

	tracker := s.progress.CreateTracker(episodeID)

	episode, err := s.episodeStore.GetByID(ctx, episodeID)
	if err != nil {
		s.logger.Error("加载集数失败", map[string]interface{}{
			"episode_id": episodeID,
			"error":      err.Error(),
		})
		tracker.Fail(err.Error())
		return
	}

	work, err := s.workStore.GetByID(ctx, episode.WorkID)
	if err != nil {
		s.fail(ctx, tracker, episodeID, err)
		return
	}

	// 进入PROCESSING后才开始任何阶段
	if err := s.episodeStore.UpdateStatus(ctx, episodeID, models.EpisodeStatusProcessing, ""); err != nil {
		s.fail(ctx, tracker, episodeID, err)
		return
	}
	s.logger.Info("流水线开始", map[string]interface{}{
		"episode_id": episodeID,
		"work_id":    episode.WorkID,
	})

	// 阶段1：叙事解析
	tracker.UpdateStage(10, "parse", "解析叙事文本...")
	segment, err := s.parser.ParseNovel(ctx, episode.WorkID, episode.NovelText, work.Style, work.TargetAudience)
	if err != nil {
		s.fail(ctx, tracker, episodeID, err)
		return
	}

	// 阶段2：角色调和（别称识别失败不阻断，按无别称继续）
	tracker.UpdateStage(30, "reconcile", "调和角色名册...")
	nicknameLookup := s.parser.DetectNicknames(ctx, episode.NovelText, segment.Characters)
	characterLookup := make(map[string]*models.Character, len(segment.Characters))
	for _, extracted := range segment.Characters {
		character, err := s.characters.Reconcile(ctx, episode.WorkID, extracted, nicknameLookup[extracted.Name])
		if err != nil {
			s.fail(ctx, tracker, episodeID, err)
			return
		}
		if character == nil {
			continue
		}

		s.characters.EnsureCompleteFeatures(ctx, character)

		// 立绘缺失时补一张，失败不阻断
		if character.PortraitURL == "" {
			if url, err := s.images.GeneratePortrait(ctx, character); err == nil {
				character.PortraitURL = url
				if err := s.characters.store.Save(ctx, character); err != nil {
					s.logger.Warn("保存角色立绘失败", map[string]interface{}{
						"name":  character.Name,
						"error": err.Error(),
					})
				}
			} else {
				s.logger.Warn("角色立绘生成失败", map[string]interface{}{
					"name":  character.Name,
					"error": err.Error(),
				})
			}
		}

		characterLookup[character.Name] = character
	}

	// 阶段3：场景插画（批内并行，单场景失败以占位图兜底）
	tracker.UpdateStage(50, "illustrate", "生成场景插画...")
	appearanceLookup := make(map[string]string, len(characterLookup))
	for name, character := range characterLookup {
		appearanceLookup[name] = ComposeAppearance(character, name)
	}
	s.images.IllustrateScenes(ctx, segment.Scenes, appearanceLookup)

	// 阶段4：配音（空台词跳过，单场景失败继续）
	tracker.UpdateStage(70, "narrate", "合成场景配音...")
	s.speech.NarrateScenes(ctx, segment.Scenes, characterLookup)

	// 阶段5：视频作品可选合成整集视频，失败算整集失败
	var videoURL string
	if work.ContentType == models.ContentTypeVideo {
		tracker.UpdateStage(85, "compose", "合成集数视频...")
		videoURL, err = s.video.ComposeFromScenes(ctx, segment.Scenes)
		if err != nil {
			s.fail(ctx, tracker, episodeID, err)
			return
		}
	}

	// 阶段6：落库结构化结果
	tracker.UpdateStage(95, "persist", "保存处理结果...")
	err = s.episodeStore.UpdateResult(ctx, episodeID, segment.Characters, segment.Scenes,
		segment.PlotSummary, segment.Genre, segment.Mood, videoURL)
	if err != nil {
		s.fail(ctx, tracker, episodeID, err)
		return
	}

	if err := s.episodeStore.UpdateStatus(ctx, episodeID, models.EpisodeStatusSuccess, ""); err != nil {
		s.fail(ctx, tracker, episodeID, err)
		return
	}

	tracker.Complete("集数处理完成")
	s.logger.Info("流水线完成", map[string]interface{}{
		"episode_id": episodeID,
		"scenes":     len(segment.Scenes),
	})
}

// fail 统一的失败收尾：记录日志、落库FAILED与错误消息、通知订阅者
func (s *PipelineService) fail(ctx context.Context, tracker *ProgressTracker, episodeID string, cause error) {
	s.logger.Error("流水线失败", map[string]interface{}{
		"episode_id": episodeID,
		"error":      cause.Error(),
	})

	if err := s.episodeStore.UpdateStatus(ctx, episodeID, models.EpisodeStatusFailed, cause.Error()); err != nil {
		s.logger.Error("落库失败状态出错", map[string]interface{}{
			"episode_id": episodeID,
			"error":      err.Error(),
		})
	}
	tracker.Fail(cause.Error())
}
