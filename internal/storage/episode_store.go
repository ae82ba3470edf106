// internal/storage/episode_store.go
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	apperrors "github.com/yydounai1234/AIgo-sub000/internal/errors"
	"github.com/yydounai1234/AIgo-sub000/internal/models"
)

// EpisodeStore 集数持久化
type EpisodeStore struct {
	db *gorm.DB
}

// NewEpisodeStore 创建集数存储
func NewEpisodeStore(db *gorm.DB) *EpisodeStore {
	return &EpisodeStore{db: db}
}

// Create 创建集数，编号取当前作品最大编号+1
// 编号分配与插入在同一事务内完成，保证同一作品内编号连续且唯一
func (s *EpisodeStore) Create(ctx context.Context, episode *models.Episode) error {
	if episode.ID == "" {
		episode.ID = uuid.NewString()
	}
	if episode.Status == "" {
		episode.Status = models.EpisodeStatusPending
	}
	now := time.Now()
	episode.CreatedAt = now
	episode.UpdatedAt = now

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var maxNumber int
		err := tx.Model(&models.Episode{}).
			Where("work_id = ?", episode.WorkID).
			Select("COALESCE(MAX(episode_number), 0)").
			Scan(&maxNumber).Error
		if err != nil {
			return err
		}
		episode.EpisodeNumber = maxNumber + 1
		return tx.Create(episode).Error
	})
	if err != nil {
		return apperrors.NewProcessingError("创建集数失败", err)
	}
	return nil
}

// GetByID 根据ID获取集数
func (s *EpisodeStore) GetByID(ctx context.Context, id string) (*models.Episode, error) {
	var episode models.Episode
	err := s.db.WithContext(ctx).First(&episode, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFoundError("集数不存在: "+id, err)
		}
		return nil, apperrors.NewProcessingError("查询集数失败", err)
	}
	return &episode, nil
}

// ListByWork 按编号升序列出作品的全部集数
func (s *EpisodeStore) ListByWork(ctx context.Context, workID string) ([]models.Episode, error) {
	var episodes []models.Episode
	err := s.db.WithContext(ctx).
		Where("work_id = ?", workID).
		Order("episode_number asc").
		Find(&episodes).Error
	if err != nil {
		return nil, apperrors.NewProcessingError("查询集数列表失败", err)
	}
	return episodes, nil
}

// UpdateStatus 更新处理状态与错误信息
// errorMessage 仅在 FAILED 时非空；其余状态一律清空
func (s *EpisodeStore) UpdateStatus(ctx context.Context, id, status, errorMessage string) error {
	if status != models.EpisodeStatusFailed {
		errorMessage = ""
	}
	result := s.db.WithContext(ctx).Model(&models.Episode{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":        status,
			"error_message": errorMessage,
			"updated_at":    time.Now(),
		})
	if result.Error != nil {
		return apperrors.NewProcessingError("更新集数状态失败", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.NewNotFoundError("集数不存在: "+id, nil)
	}
	return nil
}

// UpdateResult 回写流水线产出的结构化结果
func (s *EpisodeStore) UpdateResult(ctx context.Context, id string, characters models.CharacterList, scenes models.SceneList, plotSummary, genre, mood, videoURL string) error {
	result := s.db.WithContext(ctx).Model(&models.Episode{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"characters":   characters,
			"scenes":       scenes,
			"plot_summary": plotSummary,
			"genre":        genre,
			"mood":         mood,
			"video_url":    videoURL,
			"updated_at":   time.Now(),
		})
	if result.Error != nil {
		return apperrors.NewProcessingError("更新集数结果失败", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.NewNotFoundError("集数不存在: "+id, nil)
	}
	return nil
}

// UpdatePublish 更新发布状态
func (s *EpisodeStore) UpdatePublish(ctx context.Context, id string, published bool) error {
	result := s.db.WithContext(ctx).Model(&models.Episode{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"is_published": published,
			"updated_at":   time.Now(),
		})
	if result.Error != nil {
		return apperrors.NewProcessingError("更新发布状态失败", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.NewNotFoundError("集数不存在: "+id, nil)
	}
	return nil
}

// UpdatePricing 更新定价
func (s *EpisodeStore) UpdatePricing(ctx context.Context, id string, isFree bool, coinPrice int) error {
	result := s.db.WithContext(ctx).Model(&models.Episode{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"is_free":    isFree,
			"coin_price": coinPrice,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return apperrors.NewProcessingError("更新定价失败", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.NewNotFoundError("集数不存在: "+id, nil)
	}
	return nil
}
