// Package lifecycle owns the SOS event and response state machines.
//
// Every operation validates before it writes. Once the authoritative write
// succeeds, notification fan-out runs on a detached context bounded by the
// dispatch budget, and its failures are only counted and logged.
package lifecycle

import (
	"context"
	"time"

	"SOSRelay/internal/dispatch"
	"SOSRelay/internal/models"
	"SOSRelay/internal/proximity"
	"SOSRelay/internal/store"
	"SOSRelay/pkg/logger"
	"SOSRelay/pkg/util"

	"go.uber.org/zap"
)

// Notifier is implemented by *dispatch.Dispatcher.
type Notifier interface {
	FanOutTrigger(ctx context.Context, e *models.SosEvent, requester *models.User, helpers []dispatch.Helper) dispatch.Report
	FanOutResponse(ctx context.Context, e *models.SosEvent, responder *models.User, distanceKm float64, status models.ResponseStatus) dispatch.Report
	FanOutResolution(ctx context.Context, e *models.SosEvent, recipients []string) dispatch.Report
	FanOutCancellation(ctx context.Context, e *models.SosEvent, recipients []string) dispatch.Report
}

// Recorder counts operation outcomes.
type Recorder interface {
	RecordLifecycle(operation string, err error)
}

type Manager struct {
	store    store.Store
	matcher  *proximity.Matcher
	notifier Notifier
	rec      Recorder
	cfg      Config

	// serializes respond/resolve/cancel per event inside this process; the
	// store's conditional status update covers other processes
	stripes *util.StripedMutex
	now     func() time.Time
}

func NewManager(s store.Store, matcher *proximity.Matcher, notifier Notifier, rec Recorder, cfg Config) *Manager {
	def := DefaultConfig()
	if cfg.AudiencePolicy == "" {
		cfg.AudiencePolicy = def.AudiencePolicy
	}
	if cfg.AlertRadiusKm <= 0 {
		cfg.AlertRadiusKm = def.AlertRadiusKm
	}
	if cfg.DispatchBudget <= 0 {
		cfg.DispatchBudget = def.DispatchBudget
	}
	return &Manager{
		store:    s,
		matcher:  matcher,
		notifier: notifier,
		rec:      rec,
		cfg:      cfg,
		stripes:  util.NewStripedMutex(256),
		now:      time.Now,
	}
}

func (m *Manager) Config() Config {
	return m.cfg
}

// dispatchContext survives the caller's cancellation but not the budget.
func (m *Manager) dispatchContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), m.cfg.DispatchBudget)
}

func (m *Manager) record(op string, err error) {
	if m.rec != nil {
		m.rec.RecordLifecycle(op, err)
	}
	if err != nil {
		logger.Debug("lifecycle operation rejected", zap.String("operation", op), zap.Error(err))
	}
}
