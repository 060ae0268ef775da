package models

import "time"

// UserPatch 部分更新，nil 字段保持不变
type UserPatch struct {
	Name              *string
	Location          *Location
	IsOnline          *bool
	Available         *bool
	PushToken         *string
	EmergencyContacts *[]EmergencyContact
	ResponseCount     *int
	Rating            *float64
	Verified          *bool
	MedicalInfo       *MedicalInfo
	SafeZones         *[]SafeZone
	ProfilePhoto      *string
}

// Apply copies the set fields onto u.
func (p UserPatch) Apply(u *User) {
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.Location != nil {
		loc := *p.Location
		u.Location = &loc
	}
	if p.IsOnline != nil {
		u.IsOnline = *p.IsOnline
	}
	if p.Available != nil {
		u.Available = *p.Available
	}
	if p.PushToken != nil {
		u.PushToken = *p.PushToken
	}
	if p.EmergencyContacts != nil {
		u.EmergencyContacts = append([]EmergencyContact(nil), (*p.EmergencyContacts)...)
	}
	if p.ResponseCount != nil {
		u.ResponseCount = *p.ResponseCount
	}
	if p.Rating != nil {
		u.Rating = *p.Rating
	}
	if p.Verified != nil {
		u.Verified = *p.Verified
	}
	if p.MedicalInfo != nil {
		info := *p.MedicalInfo
		u.MedicalInfo = &info
	}
	if p.SafeZones != nil {
		u.SafeZones = append([]SafeZone(nil), (*p.SafeZones)...)
	}
	if p.ProfilePhoto != nil {
		u.ProfilePhoto = *p.ProfilePhoto
	}
}

// Columns lists the struct field names touched by p, for gorm Select.
func (p UserPatch) Columns() []string {
	var cols []string
	add := func(set bool, col string) {
		if set {
			cols = append(cols, col)
		}
	}
	add(p.Name != nil, "Name")
	add(p.Location != nil, "Location")
	add(p.IsOnline != nil, "IsOnline")
	add(p.Available != nil, "Available")
	add(p.PushToken != nil, "PushToken")
	add(p.EmergencyContacts != nil, "EmergencyContacts")
	add(p.ResponseCount != nil, "ResponseCount")
	add(p.Rating != nil, "Rating")
	add(p.Verified != nil, "Verified")
	add(p.MedicalInfo != nil, "MedicalInfo")
	add(p.SafeZones != nil, "SafeZones")
	add(p.ProfilePhoto != nil, "ProfilePhoto")
	return cols
}

// EventPatch 事件一旦进入终态，位置与严重程度不可再改
type EventPatch struct {
	Status      *EventStatus
	Address     *string
	Severity    *Severity
	Description *string
	ResolvedAt  *time.Time
	ResolvedBy  *string
}

func (p EventPatch) Apply(e *SosEvent) {
	if p.Status != nil {
		e.Status = *p.Status
	}
	if p.Address != nil {
		e.Address = *p.Address
	}
	if p.Severity != nil {
		e.Severity = *p.Severity
	}
	if p.Description != nil {
		e.Description = *p.Description
	}
	if p.ResolvedAt != nil {
		at := *p.ResolvedAt
		e.ResolvedAt = &at
	}
	if p.ResolvedBy != nil {
		by := *p.ResolvedBy
		e.ResolvedBy = &by
	}
}

func (p EventPatch) Columns() []string {
	var cols []string
	if p.Status != nil {
		cols = append(cols, "Status")
	}
	if p.Address != nil {
		cols = append(cols, "Address")
	}
	if p.Severity != nil {
		cols = append(cols, "Severity")
	}
	if p.Description != nil {
		cols = append(cols, "Description")
	}
	if p.ResolvedAt != nil {
		cols = append(cols, "ResolvedAt")
	}
	if p.ResolvedBy != nil {
		cols = append(cols, "ResolvedBy")
	}
	return cols
}

// TouchesImmutable reports whether p changes fields frozen once the event is terminal.
func (p EventPatch) TouchesImmutable() bool {
	return p.Severity != nil
}

type ResponsePatch struct {
	Status *ResponseStatus
}

func (p ResponsePatch) Apply(r *SosResponse) {
	if p.Status != nil {
		r.Status = *p.Status
	}
}

func (p ResponsePatch) Columns() []string {
	if p.Status != nil {
		return []string{"Status"}
	}
	return nil
}

// AllModels 需要自动迁移的表
func AllModels() []interface{} {
	return []interface{}{&User{}, &SosEvent{}, &SosResponse{}}
}
