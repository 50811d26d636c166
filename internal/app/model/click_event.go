package model

import "time"

// Column limits for click metadata. Longer values are truncated before insert.
const (
	MaxLocationLength  = 100
	MaxBrowserLength   = 100
	MaxUserAgentLength = 500
	MaxIPLength        = 45
	MaxReferrerLength  = 500
)

// ClickEvent records a single redirect through a short code.
type ClickEvent struct {
	ID                 uint64    `gorm:"primaryKey" json:"id"`
	URLID              uint64    `gorm:"column:url_id;not null;index;index:idx_click_events_url_clicked,priority:1" json:"url_id"`
	GeographicLocation *string   `gorm:"column:geographic_location;size:100;index" json:"geographic_location"`
	Browser            *string   `gorm:"column:browser;size:100" json:"browser"`
	UserAgent          *string   `gorm:"column:user_agent;size:500" json:"user_agent"`
	IPAddress          *string   `gorm:"column:ip_address;size:45" json:"ip_address"`
	Referrer           *string   `gorm:"column:referrer;size:500" json:"referrer"`
	ClickedAt          time.Time `gorm:"column:clicked_at;not null;index;index:idx_click_events_url_clicked,priority:2" json:"clicked_at"`
}

func (ClickEvent) TableName() string {
	return "click_events"
}
