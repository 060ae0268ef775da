package models

import (
	"time"

	"SOSRelay/pkg/geo"
)

// SosEvent 求助事件
type SosEvent struct {
	ID          string         `gorm:"primaryKey;size:36" json:"id"`
	UserID      string         `gorm:"size:36;index" json:"userId"` // 触发者
	Location    geo.Coordinate `gorm:"serializer:json" json:"location"`
	Address     string         `gorm:"size:512" json:"address,omitempty"`
	Status      EventStatus    `gorm:"size:16;index" json:"status"`
	Severity    Severity       `gorm:"size:16" json:"severity"`
	Category    Category       `gorm:"size:32" json:"category"`
	Description string         `gorm:"type:text" json:"description,omitempty"`
	Photos      []string       `gorm:"serializer:json" json:"photos,omitempty"`
	Videos      []string       `gorm:"serializer:json" json:"videos,omitempty"`
	AudioURL    string         `gorm:"size:1024" json:"audioUrl,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
	ResolvedAt  *time.Time     `json:"resolvedAt,omitempty"`
	ResolvedBy  *string        `gorm:"size:36" json:"resolvedBy,omitempty"`
}

// SosResponse 响应者对某个事件的承诺，距离只在创建时计算一次
type SosResponse struct {
	ID          string         `gorm:"primaryKey;size:36" json:"id"`
	EventID     string         `gorm:"size:36;index" json:"eventId"`
	ResponderID string         `gorm:"size:36;index" json:"responderId"`
	Status      ResponseStatus `gorm:"size:16" json:"status"`
	DistanceKm  float64        `json:"distanceKm"`
	CreatedAt   time.Time      `json:"createdAt"`
}
