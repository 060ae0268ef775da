package models

import (
	"strings"

	"SOSRelay/pkg/errors"
)

// EventStatus SOS 事件状态，只允许 active -> resolved / active -> cancelled
type EventStatus string

const (
	EventActive    EventStatus = "active"
	EventResolved  EventStatus = "resolved"
	EventCancelled EventStatus = "cancelled"
)

// Terminal reports whether no further transition is allowed.
func (s EventStatus) Terminal() bool {
	return s == EventResolved || s == EventCancelled
}

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

type Category string

const (
	CategoryMedical         Category = "medical"
	CategoryCrime           Category = "crime"
	CategoryAccident        Category = "accident"
	CategoryFire            Category = "fire"
	CategoryNaturalDisaster Category = "natural_disaster"
	CategoryOther           Category = "other"
)

type ResponseStatus string

const (
	ResponseResponding ResponseStatus = "responding"
	ResponseArrived    ResponseStatus = "arrived"
	ResponseCancelled  ResponseStatus = "cancelled"
)

// ParseSeverity 空值取默认 high，未知值拒绝
func ParseSeverity(s string) (Severity, error) {
	switch v := Severity(strings.ToLower(strings.TrimSpace(s))); v {
	case "":
		return SeverityHigh, nil
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow:
		return v, nil
	default:
		return "", errors.Validation("unknown severity %q", s)
	}
}

// ParseCategory 空值取默认 other，未知值拒绝
func ParseCategory(s string) (Category, error) {
	switch v := Category(strings.ToLower(strings.TrimSpace(s))); v {
	case "":
		return CategoryOther, nil
	case CategoryMedical, CategoryCrime, CategoryAccident, CategoryFire, CategoryNaturalDisaster, CategoryOther:
		return v, nil
	default:
		return "", errors.Validation("unknown category %q", s)
	}
}

// ParseResponseStatus 空值取默认 responding，未知值拒绝
func ParseResponseStatus(s string) (ResponseStatus, error) {
	switch v := ResponseStatus(strings.ToLower(strings.TrimSpace(s))); v {
	case "":
		return ResponseResponding, nil
	case ResponseResponding, ResponseArrived, ResponseCancelled:
		return v, nil
	default:
		return "", errors.Validation("unknown response status %q", s)
	}
}

func ParseEventStatus(s string) (EventStatus, error) {
	switch v := EventStatus(strings.ToLower(strings.TrimSpace(s))); v {
	case EventActive, EventResolved, EventCancelled:
		return v, nil
	default:
		return "", errors.Validation("unknown event status %q", s)
	}
}
