// internal/storage/character_store.go
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

// CharacterStore 角色名册持久化，(work_id, name) 唯一
type CharacterStore struct {
	db *gorm.DB
}

// NewCharacterStore 创建角色存储
func NewCharacterStore(db *gorm.DB) *CharacterStore {
	return &CharacterStore{db: db}
}

// Create 创建角色名册条目
func (s *CharacterStore) Create(ctx context.Context, character *models.Character) error {
	if character.ID == "" {
		character.ID = uuid.NewString()
	}
	now := time.Now()
	character.CreatedAt = now
	character.UpdatedAt = now

	if err := s.db.WithContext(ctx).Create(character).Error; err != nil {
		return apperrors.NewProcessingError("创建角色失败", err)
	}
	return nil
}

// GetByWorkAndName 按调和键查找角色，不存在返回 (nil, nil)
func (s *CharacterStore) GetByWorkAndName(ctx context.Context, workID, name string) (*models.Character, error) {
	var character models.Character
	err := s.db.WithContext(ctx).
		Where("work_id = ? AND name = ?", workID, name).
		First(&character).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, apperrors.NewProcessingError("查询角色失败", err)
	}
	return &character, nil
}

// ListByWork 列出作品的全部角色
func (s *CharacterStore) ListByWork(ctx context.Context, workID string) ([]models.Character, error) {
	var characters []models.Character
	err := s.db.WithContext(ctx).
		Where("work_id = ?", workID).
		Order("created_at asc").
		Find(&characters).Error
	if err != nil {
		return nil, apperrors.NewProcessingError("查询角色列表失败", err)
	}
	return characters, nil
}

// Save 全量保存角色
func (s *CharacterStore) Save(ctx context.Context, character *models.Character) error {
	character.UpdatedAt = time.Now()
	if err := s.db.WithContext(ctx).Save(character).Error; err != nil {
		return apperrors.NewProcessingError("保存角色失败", err)
	}
	return nil
}
