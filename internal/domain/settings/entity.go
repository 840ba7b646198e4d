package settings

import "time"

// Setting is one key-value row of site configuration. Values are kept
// as strings and parsed by the service; unknown keys are rejected at
// the service layer.
type Setting struct {
	ID        uint      `gorm:"column:id;primaryKey" json:"id"`
	Key       string    `gorm:"column:key;uniqueIndex;size:100" json:"key"`
	Value     string    `gorm:"column:value" json:"value"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (Setting) TableName() string { return "site_settings" }
