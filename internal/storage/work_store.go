// internal/storage/work_store.go
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

// WorkStore 作品持久化
type WorkStore struct {
	db *gorm.DB
}

// NewWorkStore 创建作品存储
func NewWorkStore(db *gorm.DB) *WorkStore {
	return &WorkStore{db: db}
}

// Create 创建作品
func (s *WorkStore) Create(ctx context.Context, work *models.Work) error {
	if work.ID == "" {
		work.ID = uuid.NewString()
	}
	if work.ContentType == "" {
		work.ContentType = models.ContentTypeAnime
	}
	now := time.Now()
	work.CreatedAt = now
	work.UpdatedAt = now

	if err := s.db.WithContext(ctx).Create(work).Error; err != nil {
		return apperrors.NewProcessingError("创建作品失败", err)
	}
	return nil
}

// GetByID 根据ID获取作品
func (s *WorkStore) GetByID(ctx context.Context, id string) (*models.Work, error) {
	var work models.Work
	err := s.db.WithContext(ctx).First(&work, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFoundError("作品不存在: "+id, err)
		}
		return nil, apperrors.NewProcessingError("查询作品失败", err)
	}
	return &work, nil
}

// List 列出全部作品
func (s *WorkStore) List(ctx context.Context) ([]models.Work, error) {
	var works []models.Work
	err := s.db.WithContext(ctx).Order("created_at desc").Find(&works).Error
	if err != nil {
		return nil, apperrors.NewProcessingError("查询作品列表失败", err)
	}
	return works, nil
}

// Delete 删除作品（级联删除集数与角色）
func (s *WorkStore) Delete(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Delete(&models.Work{}, "id = ?", id)
	if result.Error != nil {
		return apperrors.NewProcessingError("删除作品失败", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.NewNotFoundError("作品不存在: "+id, nil)
	}
	return nil
}
