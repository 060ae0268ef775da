package models

import (
	"time"

	"SOSRelay/pkg/geo"
)

// Location 用户最后上报的位置
type Location struct {
	Lat         float64   `json:"lat"`
	Lng         float64   `json:"lng"`
	LastUpdated time.Time `json:"lastUpdated"`
}

func (l Location) Coordinate() geo.Coordinate {
	return geo.Coordinate{Lat: l.Lat, Lng: l.Lng}
}

type EmergencyContact struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

type MedicalInfo struct {
	BloodType   string   `json:"bloodType,omitempty"`
	Allergies   []string `json:"allergies,omitempty"`
	Conditions  []string `json:"conditions,omitempty"`
	Medications []string `json:"medications,omitempty"`
}

type SafeZone struct {
	Name     string         `json:"name"`
	Location geo.Coordinate `json:"location"`
	RadiusKm float64        `json:"radiusKm"`
}

type User struct {
	ID                string             `gorm:"primaryKey;size:36" json:"id"`
	Phone             string             `gorm:"size:32;uniqueIndex" json:"phone"` // 唯一，SMS 目标
	Name              string             `gorm:"size:128" json:"name"`
	Location          *Location          `gorm:"serializer:json" json:"location,omitempty"`
	IsOnline          bool               `gorm:"index" json:"isOnline"`
	Available         bool               `json:"available"`
	PushToken         string             `gorm:"size:512" json:"pushToken,omitempty"`
	EmergencyContacts []EmergencyContact `gorm:"serializer:json" json:"emergencyContacts"` // 有序
	ResponseCount     int                `json:"responseCount"`
	Rating            float64            `json:"rating"` // 外部维护的滑动平均
	Verified          bool               `json:"verified"`
	MedicalInfo       *MedicalInfo       `gorm:"serializer:json" json:"medicalInfo,omitempty"`
	SafeZones         []SafeZone         `gorm:"serializer:json" json:"safeZones,omitempty"`
	ProfilePhoto      string             `gorm:"size:1024" json:"profilePhoto,omitempty"`
	CreatedAt         time.Time          `json:"createdAt"`
}

// Reachable reports whether u can be picked as a nearby helper.
func (u *User) Reachable() bool {
	return u.Location != nil && u.IsOnline && u.Available
}

// Summary is the public view of a responder attached to event details.
type Summary struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Rating float64 `json:"rating"`
}

func (u *User) Summary() Summary {
	return Summary{ID: u.ID, Name: u.Name, Rating: u.Rating}
}
