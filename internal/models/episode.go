// internal/models/episode.go
package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// 集数处理状态机：PENDING → PROCESSING → SUCCESS/FAILED
// FAILED → PENDING 仅允许通过重试操作触发
const (
	EpisodeStatusPending    = "PENDING"
	EpisodeStatusProcessing = "PROCESSING"
	EpisodeStatusSuccess    = "SUCCESS"
	EpisodeStatusFailed     = "FAILED"
)

// Episode 集数：一部作品的一个章节及其派生的多媒体产物
type Episode struct {
	ID            string        `json:"id" gorm:"primaryKey;type:varchar(36)"`
	WorkID        string        `json:"work_id" gorm:"type:varchar(36);not null;uniqueIndex:idx_work_episode,priority:1"`
	EpisodeNumber int           `json:"episode_number" gorm:"not null;uniqueIndex:idx_work_episode,priority:2"`
	Title         string        `json:"title" gorm:"type:varchar(255)"`
	NovelText     string        `json:"novel_text" gorm:"type:text"`
	Characters    CharacterList `json:"characters" gorm:"type:text"`
	Scenes        SceneList     `json:"scenes" gorm:"type:text"`
	PlotSummary   string        `json:"plot_summary" gorm:"type:text"`
	Genre         string        `json:"genre" gorm:"type:varchar(100)"`
	Mood          string        `json:"mood" gorm:"type:varchar(100)"`
	VideoURL      string        `json:"video_url" gorm:"type:varchar(512)"`
	IsFree        bool          `json:"is_free" gorm:"default:true"`
	CoinPrice     int           `json:"coin_price" gorm:"default:0"`
	IsPublished   bool          `json:"is_published" gorm:"default:false"`
	Status        string        `json:"status" gorm:"type:varchar(20);default:PENDING;index"`
	ErrorMessage  string        `json:"error_message" gorm:"type:text"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// CharacterList 本集出场角色列表，整体序列化为 JSON 存入单列
type CharacterList []AnimeCharacter

// Value 实现 driver.Valuer
func (c CharacterList) Value() (driver.Value, error) {
	if c == nil {
		return "[]", nil
	}
	data, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan 实现 sql.Scanner
func (c *CharacterList) Scan(value interface{}) error {
	if value == nil {
		*c = CharacterList{}
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("无法将 %T 解析为角色列表", value)
	}

	if len(data) == 0 {
		*c = CharacterList{}
		return nil
	}
	return json.Unmarshal(data, c)
}

// SceneList 场景列表，整体序列化为 JSON 存入单列
type SceneList []Scene

// Value 实现 driver.Valuer
func (s SceneList) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	data, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan 实现 sql.Scanner
func (s *SceneList) Scan(value interface{}) error {
	if value == nil {
		*s = SceneList{}
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("无法将 %T 解析为场景列表", value)
	}

	if len(data) == 0 {
		*s = SceneList{}
		return nil
	}
	return json.Unmarshal(data, s)
}
