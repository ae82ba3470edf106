// internal/services/work_service.go
package services

import (
	"context"
	"strings"

	apperrors "github.com/yydounai1234/AIgo-sub000/internal/errors"
	"github.com/yydounai1234/AIgo-sub000/internal/models"
	"github.com/yydounai1234/AIgo-sub000/internal/storage"
)

// WorkService 作品服务
type WorkService struct {
	store *storage.WorkStore
}

// NewWorkService 创建作品服务
func NewWorkService(store *storage.WorkStore) *WorkService {
	return &WorkService{store: store}
}

// Create 创建作品
func (s *WorkService) Create(ctx context.Context, work *models.Work) error {
	if strings.TrimSpace(work.Title) == "" {
		return apperrors.NewValidationError("作品标题不能为空", nil)
	}
	if work.ContentType != "" &&
		work.ContentType != models.ContentTypeAnime &&
		work.ContentType != models.ContentTypeVideo {
		return apperrors.NewValidationError("不支持的内容类型: "+work.ContentType, nil)
	}
	return s.store.Create(ctx, work)
}

// Get 查询作品
func (s *WorkService) Get(ctx context.Context, id string) (*models.Work, error) {
	return s.store.GetByID(ctx, id)
}

// List 列出全部作品
func (s *WorkService) List(ctx context.Context) ([]models.Work, error) {
	return s.store.List(ctx)
}

// Delete 删除作品及其集数与角色
func (s *WorkService) Delete(ctx context.Context, id string) error {
	return s.store.Delete(ctx, id)
}
