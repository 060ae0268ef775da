// Package store is the record store adapter for users, SOS events and responses.
//
// Two backends satisfy Store: a volatile in-memory one and a gorm one for
// sqlite, mysql and postgres. Callers never learn which one they hold.
package store

import (
	"context"

	"SOSRelay/internal/models"
	"SOSRelay/pkg/errors"
	"SOSRelay/pkg/geo"
)

var (
	// ErrNotFound is wrapped by every lookup on a missing id.
	ErrNotFound = errors.WithCode(errors.CodeNotFound, "record not found")
	// ErrStatusMismatch is returned by TransitionEvent when the event left the expected status.
	ErrStatusMismatch = errors.WithCode(errors.CodeConflict, "event status changed")
)

type UserStore interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserByPhone(ctx context.Context, phone string) (*models.User, error)
	CreateUser(ctx context.Context, u *models.User) (*models.User, error)
	UpdateUser(ctx context.Context, id string, patch models.UserPatch) (*models.User, error)
	ListUsers(ctx context.Context) ([]*models.User, error)
	// ListUsersInRadius excludes users without a location, offline users and unavailable users.
	ListUsersInRadius(ctx context.Context, center geo.Coordinate, radiusKm float64) ([]*models.User, error)
}

type EventStore interface {
	GetEvent(ctx context.Context, id string) (*models.SosEvent, error)
	CreateEvent(ctx context.Context, e *models.SosEvent) (*models.SosEvent, error)
	UpdateEvent(ctx context.Context, id string, patch models.EventPatch) (*models.SosEvent, error)
	// TransitionEvent applies patch only while the event is still in status from.
	TransitionEvent(ctx context.Context, id string, from models.EventStatus, patch models.EventPatch) (*models.SosEvent, error)
	ListEvents(ctx context.Context) ([]*models.SosEvent, error)
	ListActiveEvents(ctx context.Context) ([]*models.SosEvent, error)
	ListActiveEventsInRadius(ctx context.Context, center geo.Coordinate, radiusKm float64) ([]*models.SosEvent, error)
	ListEventsByUser(ctx context.Context, userID string) ([]*models.SosEvent, error)
}

type ResponseStore interface {
	GetResponse(ctx context.Context, id string) (*models.SosResponse, error)
	CreateResponse(ctx context.Context, r *models.SosResponse) (*models.SosResponse, error)
	UpdateResponse(ctx context.Context, id string, patch models.ResponsePatch) (*models.SosResponse, error)
	ListResponsesByEvent(ctx context.Context, eventID string) ([]*models.SosResponse, error)
	ListResponsesByResponder(ctx context.Context, userID string) ([]*models.SosResponse, error)
}

type Store interface {
	UserStore
	EventStore
	ResponseStore

	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// IsNotFound reports whether err is a missing-record result.
func IsNotFound(err error) bool {
	return errors.IsCode(err, errors.CodeNotFound)
}

func notFound(kind, id string) error {
	return errors.Wrapf(ErrNotFound, "%s %s not found", kind, id)
}

func inRadius(center, point geo.Coordinate, radiusKm float64) bool {
	return radiusKm > 0 && geo.DistanceKm(center, point) <= radiusKm
}
