// internal/models/character.go
package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Character 作品级角色名册条目，(WorkID, Name) 为调和键
// 同一作品内同名角色至多一条记录，跨集数保持外观一致
type Character struct {
	ID                     string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	WorkID                 string     `json:"work_id" gorm:"type:varchar(36);not null;uniqueIndex:idx_work_character,priority:1"`
	Name                   string     `json:"name" gorm:"type:varchar(100);not null;uniqueIndex:idx_work_character,priority:2"`
	Nicknames              StringList `json:"nicknames" gorm:"type:text"`
	Description            string     `json:"description" gorm:"type:text"`
	Appearance             string     `json:"appearance" gorm:"type:text"`
	Personality            string     `json:"personality" gorm:"type:text"`
	Gender                 string     `json:"gender" gorm:"type:varchar(20)"`
	BodyType               string     `json:"body_type" gorm:"type:varchar(100)"`
	FacialFeatures         string     `json:"facial_features" gorm:"type:text"`
	ClothingStyle          string     `json:"clothing_style" gorm:"type:text"`
	DistinguishingFeatures string     `json:"distinguishing_features" gorm:"type:text"`
	IsProtagonist          bool       `json:"is_protagonist" gorm:"default:false"`
	IsPlaceholderName      bool       `json:"is_placeholder_name" gorm:"default:false"`
	PortraitURL            string     `json:"portrait_url" gorm:"type:varchar(512)"`
	CreatedAt              time.Time  `json:"created_at"`
	UpdatedAt              time.Time  `json:"updated_at"`
}

// CharacterPatch 角色属性补丁：字段为空串表示"未提供"，调和时不覆盖已有值
// 布尔标志用指针区分"未提供"与显式 false
type CharacterPatch struct {
	Nicknames              []string `json:"nicknames,omitempty"`
	Description            string   `json:"description"`
	Appearance             string   `json:"appearance"`
	Personality            string   `json:"personality"`
	Gender                 string   `json:"gender"`
	BodyType               string   `json:"body_type"`
	FacialFeatures         string   `json:"facial_features"`
	ClothingStyle          string   `json:"clothing_style"`
	DistinguishingFeatures string   `json:"distinguishing_features"`
	IsProtagonist          *bool    `json:"is_protagonist,omitempty"`
	IsPlaceholderName      *bool    `json:"is_placeholder_name,omitempty"`
}

// StringList 字符串列表，整体序列化为 JSON 存入单列
type StringList []string

// Value 实现 driver.Valuer
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	data, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan 实现 sql.Scanner
func (l *StringList) Scan(value interface{}) error {
	if value == nil {
		*l = StringList{}
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("无法将 %T 解析为字符串列表", value)
	}

	if len(data) == 0 {
		*l = StringList{}
		return nil
	}
	return json.Unmarshal(data, l)
}
