// Package proximity selects users and active events around a point.
package proximity

import (
	"context"
	"sort"

	"SOSRelay/internal/models"
	"SOSRelay/internal/store"
	"SOSRelay/pkg/errors"
	"SOSRelay/pkg/geo"
)

type UserMatch struct {
	User       *models.User `json:"user"`
	DistanceKm float64      `json:"distanceKm"`
}

type EventMatch struct {
	Event          *models.SosEvent `json:"event"`
	DistanceKm     float64          `json:"distanceKm"`
	ResponderCount int              `json:"responderCount"`
}

type Matcher struct {
	store store.Store
}

func NewMatcher(s store.Store) *Matcher {
	return &Matcher{store: s}
}

// UsersWithin returns reachable users within radiusKm of center, nearest first.
func (m *Matcher) UsersWithin(ctx context.Context, center geo.Coordinate, radiusKm float64) ([]UserMatch, error) {
	return m.UsersWithinExcluding(ctx, center, radiusKm, "")
}

// UsersWithinExcluding is UsersWithin minus the user with id excludeID.
func (m *Matcher) UsersWithinExcluding(ctx context.Context, center geo.Coordinate, radiusKm float64, excludeID string) ([]UserMatch, error) {
	if !center.Valid() {
		return nil, errors.Validation("invalid center %v,%v", center.Lat, center.Lng)
	}
	if radiusKm <= 0 {
		return []UserMatch{}, nil
	}
	users, err := m.store.ListUsersInRadius(ctx, center, radiusKm)
	if err != nil {
		return nil, err
	}
	out := make([]UserMatch, 0, len(users))
	for _, u := range users {
		if u.ID == excludeID || u.Location == nil {
			continue
		}
		out = append(out, UserMatch{User: u, DistanceKm: geo.DistanceKm(center, u.Location.Coordinate())})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DistanceKm < out[j].DistanceKm })
	return out, nil
}

// EventsWithin returns active events within radiusKm of center, nearest first,
// each with the number of responses recorded against it.
func (m *Matcher) EventsWithin(ctx context.Context, center geo.Coordinate, radiusKm float64) ([]EventMatch, error) {
	if !center.Valid() {
		return nil, errors.Validation("invalid center %v,%v", center.Lat, center.Lng)
	}
	if radiusKm <= 0 {
		return []EventMatch{}, nil
	}
	events, err := m.store.ListActiveEventsInRadius(ctx, center, radiusKm)
	if err != nil {
		return nil, err
	}
	out := make([]EventMatch, 0, len(events))
	for _, e := range events {
		responses, err := m.store.ListResponsesByEvent(ctx, e.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, EventMatch{
			Event:          e,
			DistanceKm:     geo.DistanceKm(center, e.Location),
			ResponderCount: len(responses),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DistanceKm < out[j].DistanceKm })
	return out, nil
}
