// internal/models/work.go
package models

import "time"

// 作品内容类型
const (
	ContentTypeAnime = "anime" // 图文+配音
	ContentTypeVideo = "video" // 额外合成视频
)

// Work 作品：包含有序集数序列的顶层创作单元
type Work struct {
	ID             string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Title          string    `json:"title" gorm:"type:varchar(255);not null"`
	Author         string    `json:"author" gorm:"type:varchar(255)"`
	Description    string    `json:"description" gorm:"type:text"`
	ContentType    string    `json:"content_type" gorm:"type:varchar(20);default:anime"`
	Style          string    `json:"style" gorm:"type:varchar(100)"`
	TargetAudience string    `json:"target_audience" gorm:"type:varchar(100)"`
	CoverURL       string    `json:"cover_url" gorm:"type:varchar(512)"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	// 删除作品时级联删除集数与角色名册
	Episodes   []Episode   `json:"-" gorm:"foreignKey:WorkID;constraint:OnDelete:CASCADE"`
	Characters []Character `json:"-" gorm:"foreignKey:WorkID;constraint:OnDelete:CASCADE"`
}
