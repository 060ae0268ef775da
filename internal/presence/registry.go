// Package presence tracks which users hold an open live channel right now and
// keeps the durable online flag and last location in step with it.
package presence

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"SOSRelay/internal/models"
	"SOSRelay/internal/store"
	"SOSRelay/pkg/errors"
	"SOSRelay/pkg/geo"
	"SOSRelay/pkg/logger"
	"SOSRelay/pkg/util"

	"go.uber.org/zap"
)

// Channel is an outbound live connection. Send never blocks for long and
// reports false when the message was not queued.
type Channel interface {
	ID() string
	Send(data []byte) bool
}

// Entry is the ephemeral presence record for one connected user.
type Entry struct {
	UserID         string
	Channel        Channel
	Location       *geo.Coordinate
	ConnectedSince time.Time
}

type Registry struct {
	mu        sync.Mutex
	byUser    map[string]*Entry
	byChannel map[string]string

	users   store.UserStore
	stripes *util.StripedMutex
	now     func() time.Time
}

func NewRegistry(users store.UserStore) *Registry {
	return &Registry{
		byUser:    make(map[string]*Entry),
		byChannel: make(map[string]string),
		users:     users,
		stripes:   util.NewStripedMutex(64),
		now:       time.Now,
	}
}

// Register binds ch to userID and marks the user online. A later Register for
// the same user wins; the earlier channel just loses its mapping.
func (r *Registry) Register(ctx context.Context, userID string, ch Channel) error {
	if userID == "" {
		return errors.Validation("userId is required")
	}
	unlock := r.stripes.Lock(userID)
	defer unlock()

	online := true
	if _, err := r.users.UpdateUser(ctx, userID, models.UserPatch{IsOnline: &online}); err != nil {
		return err
	}

	r.mu.Lock()
	if prev, ok := r.byUser[userID]; ok {
		delete(r.byChannel, prev.Channel.ID())
	}
	var orphan string
	if owner, ok := r.byChannel[ch.ID()]; ok && owner != userID {
		delete(r.byUser, owner)
		orphan = owner
	}
	r.byUser[userID] = &Entry{UserID: userID, Channel: ch, ConnectedSince: r.now()}
	r.byChannel[ch.ID()] = userID
	r.mu.Unlock()

	if orphan != "" {
		r.markOffline(ctx, orphan)
	}
	logger.Info("presence registered", zap.String("userId", userID), zap.String("channel", ch.ID()))
	return nil
}

// Unregister drops whatever user ch is bound to. Unknown or stale channels are ignored.
func (r *Registry) Unregister(ctx context.Context, ch Channel) {
	r.mu.Lock()
	userID, ok := r.byChannel[ch.ID()]
	r.mu.Unlock()
	if !ok {
		return
	}

	unlock := r.stripes.Lock(userID)
	defer unlock()

	r.mu.Lock()
	entry, ok := r.byUser[userID]
	current := ok && entry.Channel.ID() == ch.ID()
	if current {
		delete(r.byUser, userID)
	}
	if r.byChannel[ch.ID()] == userID {
		delete(r.byChannel, ch.ID())
	}
	r.mu.Unlock()

	if current {
		r.markOffline(ctx, userID)
		logger.Info("presence unregistered", zap.String("userId", userID), zap.String("channel", ch.ID()))
	}
}

// markOffline is skipped when the user reconnected in the meantime.
func (r *Registry) markOffline(ctx context.Context, userID string) {
	if r.IsConnected(userID) {
		return
	}
	offline := false
	if _, err := r.users.UpdateUser(ctx, userID, models.UserPatch{IsOnline: &offline}); err != nil {
		logger.Warn("mark user offline failed", zap.String("userId", userID), zap.Error(err))
	}
}

// UpdateLocation stores coord with the current time. No open channel is required.
func (r *Registry) UpdateLocation(ctx context.Context, userID string, coord geo.Coordinate) (*models.User, error) {
	if !coord.Valid() {
		return nil, errors.Validation("invalid coordinate %v,%v", coord.Lat, coord.Lng)
	}
	unlock := r.stripes.Lock(userID)
	defer unlock()

	loc := models.Location{Lat: coord.Lat, Lng: coord.Lng, LastUpdated: r.now()}
	u, err := r.users.UpdateUser(ctx, userID, models.UserPatch{Location: &loc})
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	if entry, ok := r.byUser[userID]; ok {
		c := coord
		entry.Location = &c
	}
	r.mu.Unlock()
	return u, nil
}

// Send marshals msg and queues it on the user's channel. It reports whether a
// write was attempted and accepted, not whether the peer received it.
func (r *Registry) Send(userID string, msg interface{}) bool {
	data, err := json.Marshal(msg)
	if err != nil {
		logger.Error("marshal live message", zap.Error(err))
		return false
	}
	return r.SendRaw(userID, data)
}

func (r *Registry) SendRaw(userID string, data []byte) bool {
	r.mu.Lock()
	entry, ok := r.byUser[userID]
	r.mu.Unlock()
	if !ok {
		return false
	}
	return entry.Channel.Send(data)
}

func (r *Registry) IsConnected(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.byUser[userID]
	return ok
}

func (r *Registry) ConnectedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byUser)
}

// Snapshot returns a copy of every entry.
func (r *Registry) Snapshot() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, 0, len(r.byUser))
	for _, e := range r.byUser {
		c := *e
		if e.Location != nil {
			loc := *e.Location
			c.Location = &loc
		}
		out = append(out, c)
	}
	return out
}
