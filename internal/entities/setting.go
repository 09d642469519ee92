package entities

import (
	"time"
)

type Setting struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Key       string    `gorm:"uniqueIndex;size:100" json:"key"`
	Value     string    `gorm:"type:text" json:"value"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Setting) TableName() string {
	return "settings"
}

// Known setting keys
const (
	// SettingKeyEquivalentsRefreshedAt holds the RFC3339 time of the last
	// successful equivalents cache refresh. Written through a cooldown gate,
	// so it is at most one write per cooldown window.
	SettingKeyEquivalentsRefreshedAt = "equivalents_refreshed_at"
)
