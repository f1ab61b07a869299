package model

import "time"

// PageConfig holds the pixel credentials used to report conversions for a page.
type PageConfig struct {
	ID               uint      `json:"id" gorm:"primaryKey"`
	PageID           string    `json:"page_id" gorm:"type:text;uniqueIndex;not null" validate:"required"`
	PageName         string    `json:"page_name" gorm:"type:text"`
	PixelID          string    `json:"pixel_id" gorm:"type:text"`
	PixelAccessToken string    `json:"pixel_access_token,omitempty" gorm:"type:text"`
	CreatedAt        time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt        time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName specifies the table name for the PageConfig model.
func (PageConfig) TableName() string {
	return "page_configs"
}

// HasPixel reports whether both pixel id and pixel token are configured.
func (p *PageConfig) HasPixel() bool {
	return p != nil && p.PixelID != "" && p.PixelAccessToken != ""
}

// PageCredentials are the inputs to a page token exchange. Immutable for a run.
type PageCredentials struct {
	BaseURL        string
	Version        string
	PageID         string
	AppAccessToken string
}
