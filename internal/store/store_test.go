package store

import (
	"context"
	"testing"
	"time"

	"SOSRelay/internal/models"
	"SOSRelay/pkg/errors"
	"SOSRelay/pkg/geo"
	"SOSRelay/pkg/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var lahore = geo.Coordinate{Lat: 31.5204, Lng: 74.3587}

func backends(t *testing.T) map[string]Store {
	t.Helper()
	db, err := util.InitDatabase("sqlite", "file::memory:", false)
	require.NoError(t, err)
	g := NewGorm(db)
	require.NoError(t, g.Migrate(context.Background()))
	t.Cleanup(func() { _ = g.Close() })
	return map[string]Store{
		"memory": NewMemory(),
		"gorm":   g,
	}
}

func userAt(phone string, c geo.Coordinate, online, available bool) *models.User {
	return &models.User{
		Phone:     phone,
		Name:      "user " + phone,
		Location:  &models.Location{Lat: c.Lat, Lng: c.Lng, LastUpdated: time.Now()},
		IsOnline:  online,
		Available: available,
	}
}

func TestUsers(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			u, err := s.CreateUser(ctx, &models.User{
				Phone:             "+923001111111",
				Name:              "Ayesha",
				Available:         true,
				EmergencyContacts: []models.EmergencyContact{{Name: "Bilal", Phone: "+923002222222"}},
			})
			require.NoError(t, err)
			assert.NotEmpty(t, u.ID)
			assert.False(t, u.CreatedAt.IsZero())

			got, err := s.GetUserByPhone(ctx, "+923001111111")
			require.NoError(t, err)
			assert.Equal(t, u.ID, got.ID)
			assert.Equal(t, u.EmergencyContacts, got.EmergencyContacts)

			_, err = s.CreateUser(ctx, &models.User{Phone: "+923001111111"})
			assert.True(t, errors.IsCode(err, errors.CodeConflict))

			online := true
			loc := models.Location{Lat: lahore.Lat, Lng: lahore.Lng, LastUpdated: time.Now()}
			updated, err := s.UpdateUser(ctx, u.ID, models.UserPatch{IsOnline: &online, Location: &loc})
			require.NoError(t, err)
			assert.True(t, updated.IsOnline)
			assert.True(t, updated.Available)
			require.NotNil(t, updated.Location)
			assert.InDelta(t, lahore.Lat, updated.Location.Lat, 1e-9)

			off := false
			updated, err = s.UpdateUser(ctx, u.ID, models.UserPatch{Available: &off})
			require.NoError(t, err)
			assert.False(t, updated.Available)
			assert.True(t, updated.IsOnline)

			_, err = s.GetUser(ctx, "missing")
			assert.True(t, IsNotFound(err))
			assert.True(t, errors.Is(err, ErrNotFound))

			_, err = s.UpdateUser(ctx, "missing", models.UserPatch{IsOnline: &online})
			assert.True(t, IsNotFound(err))
		})
	}
}

func TestListUsersInRadius(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			near, err := s.CreateUser(ctx, userAt("1", geo.Offset(lahore, 1, 0), true, true))
			require.NoError(t, err)
			_, err = s.CreateUser(ctx, userAt("2", geo.Offset(lahore, 0, 5), true, true))
			require.NoError(t, err)
			_, err = s.CreateUser(ctx, userAt("3", geo.Offset(lahore, 0.5, 0), false, true))
			require.NoError(t, err)
			_, err = s.CreateUser(ctx, userAt("4", geo.Offset(lahore, 0.5, 0), true, false))
			require.NoError(t, err)
			_, err = s.CreateUser(ctx, &models.User{Phone: "5", IsOnline: true, Available: true})
			require.NoError(t, err)

			users, err := s.ListUsersInRadius(ctx, lahore, 2)
			require.NoError(t, err)
			require.Len(t, users, 1)
			assert.Equal(t, near.ID, users[0].ID)

			users, err = s.ListUsersInRadius(ctx, lahore, 0)
			require.NoError(t, err)
			assert.Empty(t, users)

			all, err := s.ListUsers(ctx)
			require.NoError(t, err)
			assert.Len(t, all, 5)
		})
	}
}

func TestEventTransitions(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			e, err := s.CreateEvent(ctx, &models.SosEvent{
				UserID:   "u1",
				Location: lahore,
				Status:   models.EventActive,
				Severity: models.SeverityHigh,
				Category: models.CategoryOther,
			})
			require.NoError(t, err)

			resolved := models.EventResolved
			at := time.Now().UTC().Truncate(time.Second)
			by := "u2"
			out, err := s.TransitionEvent(ctx, e.ID, models.EventActive, models.EventPatch{
				Status: &resolved, ResolvedAt: &at, ResolvedBy: &by,
			})
			require.NoError(t, err)
			assert.Equal(t, models.EventResolved, out.Status)
			require.NotNil(t, out.ResolvedBy)
			assert.Equal(t, "u2", *out.ResolvedBy)

			other := "u3"
			later := at.Add(time.Minute)
			_, err = s.TransitionEvent(ctx, e.ID, models.EventActive, models.EventPatch{
				Status: &resolved, ResolvedAt: &later, ResolvedBy: &other,
			})
			assert.True(t, errors.Is(err, ErrStatusMismatch))
			assert.True(t, errors.IsCode(err, errors.CodeConflict))

			got, err := s.GetEvent(ctx, e.ID)
			require.NoError(t, err)
			assert.Equal(t, "u2", *got.ResolvedBy)
			assert.True(t, got.ResolvedAt.Equal(at))

			sev := models.SeverityLow
			_, err = s.UpdateEvent(ctx, e.ID, models.EventPatch{Severity: &sev})
			assert.True(t, errors.IsCode(err, errors.CodeConflict))

			addr := "Mall Road"
			got, err = s.UpdateEvent(ctx, e.ID, models.EventPatch{Address: &addr})
			require.NoError(t, err)
			assert.Equal(t, "Mall Road", got.Address)

			_, err = s.TransitionEvent(ctx, "missing", models.EventActive, models.EventPatch{Status: &resolved})
			assert.True(t, IsNotFound(err))
		})
	}
}

func TestEventQueries(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			mk := func(user string, c geo.Coordinate, status models.EventStatus) *models.SosEvent {
				e, err := s.CreateEvent(ctx, &models.SosEvent{UserID: user, Location: c, Status: status})
				require.NoError(t, err)
				return e
			}
			near := mk("u1", geo.Offset(lahore, 1, 1), models.EventActive)
			mk("u1", geo.Offset(lahore, 1, 1), models.EventResolved)
			mk("u2", geo.Offset(lahore, 10, 0), models.EventActive)

			active, err := s.ListActiveEvents(ctx)
			require.NoError(t, err)
			assert.Len(t, active, 2)

			nearby, err := s.ListActiveEventsInRadius(ctx, lahore, 2)
			require.NoError(t, err)
			require.Len(t, nearby, 1)
			assert.Equal(t, near.ID, nearby[0].ID)

			mine, err := s.ListEventsByUser(ctx, "u1")
			require.NoError(t, err)
			assert.Len(t, mine, 2)

			all, err := s.ListEvents(ctx)
			require.NoError(t, err)
			assert.Len(t, all, 3)
		})
	}
}

func TestResponses(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			e, err := s.CreateEvent(ctx, &models.SosEvent{UserID: "u1", Location: lahore, Status: models.EventActive})
			require.NoError(t, err)

			r, err := s.CreateResponse(ctx, &models.SosResponse{
				EventID: e.ID, ResponderID: "u2", Status: models.ResponseResponding, DistanceKm: 1.2,
			})
			require.NoError(t, err)

			_, err = s.CreateResponse(ctx, &models.SosResponse{EventID: "missing", ResponderID: "u2"})
			assert.True(t, IsNotFound(err))

			arrived := models.ResponseArrived
			r, err = s.UpdateResponse(ctx, r.ID, models.ResponsePatch{Status: &arrived})
			require.NoError(t, err)
			assert.Equal(t, models.ResponseArrived, r.Status)
			assert.InDelta(t, 1.2, r.DistanceKm, 1e-9)

			byEvent, err := s.ListResponsesByEvent(ctx, e.ID)
			require.NoError(t, err)
			assert.Len(t, byEvent, 1)

			byResponder, err := s.ListResponsesByResponder(ctx, "u2")
			require.NoError(t, err)
			assert.Len(t, byResponder, 1)

			_, err = s.GetResponse(ctx, "missing")
			assert.True(t, IsNotFound(err))
		})
	}
}

func TestMemoryReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	u, err := s.CreateUser(ctx, &models.User{Phone: "1", Name: "before"})
	require.NoError(t, err)

	u.Name = "after"
	got, err := s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "before", got.Name)
}
