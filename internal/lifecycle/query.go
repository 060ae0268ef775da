package lifecycle

import (
	"context"
	"math"
	"time"

	"SOSRelay/internal/models"
	"SOSRelay/internal/store"
)

type ResponderEntry struct {
	Response  *models.SosResponse `json:"response"`
	Responder *models.Summary     `json:"responder"`
}

type EventDetails struct {
	Event      *models.SosEvent `json:"event"`
	Responders []ResponderEntry `json:"responders"`
}

// EventDetails joins an event with its responses and a summary of each
// responder. A responder record that no longer resolves yields a nil summary.
func (m *Manager) EventDetails(ctx context.Context, eventID string) (*EventDetails, error) {
	event, err := m.store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	responses, err := m.store.ListResponsesByEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	out := &EventDetails{Event: event, Responders: make([]ResponderEntry, 0, len(responses))}
	for _, r := range responses {
		entry := ResponderEntry{Response: r}
		u, err := m.store.GetUser(ctx, r.ResponderID)
		switch {
		case err == nil:
			s := u.Summary()
			entry.Responder = &s
		case !store.IsNotFound(err):
			return nil, err
		}
		out.Responders = append(out.Responders, entry)
	}
	return out, nil
}

type UserStats struct {
	ResponseCount      int     `json:"responseCount"`
	SosEventsTriggered int     `json:"sosEventsTriggered"`
	Rating             float64 `json:"rating"`
	ActiveDays         int     `json:"activeDays"`
}

func (m *Manager) UserStats(ctx context.Context, userID string) (*UserStats, error) {
	u, err := m.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	responses, err := m.store.ListResponsesByResponder(ctx, userID)
	if err != nil {
		return nil, err
	}
	events, err := m.store.ListEventsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	stats := &UserStats{
		ResponseCount:      len(responses),
		SosEventsTriggered: len(events),
		Rating:             u.Rating,
	}
	if !u.CreatedAt.IsZero() {
		stats.ActiveDays = int(math.Ceil(m.now().Sub(u.CreatedAt).Hours() / 24))
	}
	return stats, nil
}

type SystemStats struct {
	TotalUsers         int `json:"totalUsers"`
	OnlineUsers        int `json:"onlineUsers"`
	ActiveSosEvents    int `json:"activeSosEvents"`
	ResolvedSosEvents  int `json:"resolvedSosEvents"`
	CancelledSosEvents int `json:"cancelledSosEvents"`
}

func (m *Manager) SystemStats(ctx context.Context) (*SystemStats, error) {
	users, err := m.store.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	events, err := m.store.ListEvents(ctx)
	if err != nil {
		return nil, err
	}
	stats := &SystemStats{TotalUsers: len(users)}
	for _, u := range users {
		if u.IsOnline {
			stats.OnlineUsers++
		}
	}
	for _, e := range events {
		switch e.Status {
		case models.EventActive:
			stats.ActiveSosEvents++
		case models.EventResolved:
			stats.ResolvedSosEvents++
		case models.EventCancelled:
			stats.CancelledSosEvents++
		}
	}
	return stats, nil
}

// staleAfter is how long an online user may go without a location update
// before StaleOnlineUsers reports them.
const staleAfter = 30 * time.Minute

// StaleOnlineUsers returns ids of users flagged online whose last location is
// older than staleAfter or missing.
func (m *Manager) StaleOnlineUsers(ctx context.Context) ([]string, error) {
	users, err := m.store.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	cutoff := m.now().Add(-staleAfter)
	var stale []string
	for _, u := range users {
		if !u.IsOnline {
			continue
		}
		if u.Location == nil || u.Location.LastUpdated.Before(cutoff) {
			stale = append(stale, u.ID)
		}
	}
	return stale, nil
}
