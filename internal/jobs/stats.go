// Package jobs holds periodic maintenance work run by the scheduler.
package jobs

import (
	"context"

	"SOSRelay/internal/store"
	"SOSRelay/pkg/logger"

	"go.uber.org/zap"
)

// Gauges receives the refreshed values.
type Gauges interface {
	SetActiveEvents(n int)
	SetConnectedUsers(n int)
	SetLiveConnections(n int)
}

type Presence interface {
	ConnectedCount() int
	IsConnected(userID string) bool
}

type Connections interface {
	GetConnectionCount() int64
}

type StaleFinder interface {
	StaleOnlineUsers(ctx context.Context) ([]string, error)
}

// StatsJob refreshes business gauges and reports users whose online flag has
// outlived their last location update without a live channel behind it.
type StatsJob struct {
	Events   store.EventStore
	Presence Presence
	Conns    Connections
	Stale    StaleFinder
	Gauges   Gauges
}

func (j *StatsJob) Run(ctx context.Context) {
	active, err := j.Events.ListActiveEvents(ctx)
	if err != nil {
		logger.Warn("stats job: list active events", zap.Error(err))
	} else {
		j.Gauges.SetActiveEvents(len(active))
	}
	j.Gauges.SetConnectedUsers(j.Presence.ConnectedCount())
	if j.Conns != nil {
		j.Gauges.SetLiveConnections(int(j.Conns.GetConnectionCount()))
	}

	if j.Stale == nil {
		return
	}
	stale, err := j.Stale.StaleOnlineUsers(ctx)
	if err != nil {
		logger.Warn("stats job: stale presence", zap.Error(err))
		return
	}
	var orphaned []string
	for _, id := range stale {
		if !j.Presence.IsConnected(id) {
			orphaned = append(orphaned, id)
		}
	}
	if len(orphaned) > 0 {
		logger.Info("online users without channel or recent location",
			zap.Int("count", len(orphaned)),
			zap.Strings("userIds", orphaned))
	}
}
