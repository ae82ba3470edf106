// internal/services/episode_service.go
package services

import (
	"context"
	"strings"

	apperrors "github.com/yydounai1234/AIgo-sub000/internal/errors"
	"github.com/yydounai1234/AIgo-sub000/internal/models"
	"github.com/yydounai1234/AIgo-sub000/internal/storage"
	"github.com/yydounai1234/AIgo-sub000/internal/utils"
)

// EpisodeService 集数服务：创建、重试、发布与定价
type EpisodeService struct {
	episodeStore *storage.EpisodeStore
	workStore    *storage.WorkStore
	pipeline     *PipelineService
	logger       *utils.Logger
}

// NewEpisodeService 创建集数服务
func NewEpisodeService(episodeStore *storage.EpisodeStore, workStore *storage.WorkStore, pipeline *PipelineService) *EpisodeService {
	return &EpisodeService{
		episodeStore: episodeStore,
		workStore:    workStore,
		pipeline:     pipeline,
		logger:       utils.GetLogger(),
	}
}

// Create 创建集数并异步触发流水线
// 集数编号在作品内取最大编号+1；创建同步完成后立即返回，不等待流水线
func (s *EpisodeService) Create(ctx context.Context, workID, title, novelText string) (*models.Episode, error) {
	if strings.TrimSpace(novelText) == "" {
		return nil, apperrors.NewValidationError("小说文本不能为空", nil)
	}

	// 作品必须存在
	if _, err := s.workStore.GetByID(ctx, workID); err != nil {
		return nil, err
	}

	episode := &models.Episode{
		WorkID:    workID,
		Title:     title,
		NovelText: novelText,
		Status:    models.EpisodeStatusPending,
		IsFree:    true,
	}
	if err := s.episodeStore.Create(ctx, episode); err != nil {
		return nil, err
	}

	s.logger.Info("集数已创建", map[string]interface{}{
		"episode_id":     episode.ID,
		"work_id":        workID,
		"episode_number": episode.EpisodeNumber,
	})

	s.pipeline.Submit(episode.ID)
	return episode, nil
}

// Retry 重试失败的集数
// 仅允许FAILED状态；清除错误消息并回到PENDING后重新提交
func (s *EpisodeService) Retry(ctx context.Context, episodeID string) (*models.Episode, error) {
	episode, err := s.episodeStore.GetByID(ctx, episodeID)
	if err != nil {
		return nil, err
	}

	if episode.Status != models.EpisodeStatusFailed {
		return nil, apperrors.NewStateError("只能重试失败的集数", nil)
	}

	if err := s.episodeStore.UpdateStatus(ctx, episodeID, models.EpisodeStatusPending, ""); err != nil {
		return nil, err
	}
	episode.Status = models.EpisodeStatusPending
	episode.ErrorMessage = ""

	s.logger.Info("集数重试已触发", map[string]interface{}{
		"episode_id": episodeID,
	})

	s.pipeline.Submit(episodeID)
	return episode, nil
}

// Get 查询集数，状态与错误消息由此对外可见
func (s *EpisodeService) Get(ctx context.Context, episodeID string) (*models.Episode, error) {
	return s.episodeStore.GetByID(ctx, episodeID)
}

// ListByWork 列出作品的全部集数
func (s *EpisodeService) ListByWork(ctx context.Context, workID string) ([]models.Episode, error) {
	return s.episodeStore.ListByWork(ctx, workID)
}

// Publish 更新发布状态
func (s *EpisodeService) Publish(ctx context.Context, episodeID string, published bool) error {
	return s.episodeStore.UpdatePublish(ctx, episodeID, published)
}

// SetPricing 更新定价
func (s *EpisodeService) SetPricing(ctx context.Context, episodeID string, isFree bool, coinPrice int) error {
	if !isFree && coinPrice <= 0 {
		return apperrors.NewValidationError("付费集数的价格必须大于0", nil)
	}
	return s.episodeStore.UpdatePricing(ctx, episodeID, isFree, coinPrice)
}
