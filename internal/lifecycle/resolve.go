package lifecycle

import (
	"context"

	"SOSRelay/internal/models"
	"SOSRelay/pkg/errors"
	"SOSRelay/pkg/logger"

	"go.uber.org/zap"
)

// Resolve moves an active event to resolved and tells the requester and every
// prior responder. A second resolve fails with Conflict and changes nothing.
func (m *Manager) Resolve(ctx context.Context, eventID, resolvedBy string) (event *models.SosEvent, err error) {
	defer func() { m.record("resolve", err) }()

	if eventID == "" || resolvedBy == "" {
		return nil, errors.Validation("eventId and resolvedBy are required")
	}

	status := models.EventResolved
	at := m.now()
	event, responders, err := m.finish(ctx, eventID, func(current *models.SosEvent) error {
		if current.Status != models.EventActive {
			return errors.Conflict("event %s is already %s", eventID, current.Status)
		}
		_, err := m.store.GetUser(ctx, resolvedBy)
		return err
	}, models.EventPatch{Status: &status, ResolvedAt: &at, ResolvedBy: &resolvedBy})
	if err != nil {
		return nil, err
	}
	recipients := append([]string{event.UserID}, responders...)

	dctx, cancel := m.dispatchContext(ctx)
	defer cancel()
	report := m.notifier.FanOutResolution(dctx, event, recipients)

	logger.Info("sos resolved",
		zap.String("eventId", eventID),
		zap.String("resolvedBy", resolvedBy),
		zap.Int("recipients", len(recipients)),
		zap.Any("notifications", report))
	return event, nil
}

// Cancel lets the requester withdraw an active event. Responders get sos_cancelled.
func (m *Manager) Cancel(ctx context.Context, eventID, userID string) (event *models.SosEvent, err error) {
	defer func() { m.record("cancel", err) }()

	if eventID == "" || userID == "" {
		return nil, errors.Validation("eventId and userId are required")
	}

	status := models.EventCancelled
	event, recipients, err := m.finish(ctx, eventID, func(current *models.SosEvent) error {
		if current.UserID != userID {
			return errors.Conflict("only the requester can cancel event %s", eventID)
		}
		if current.Status != models.EventActive {
			return errors.Conflict("event %s is already %s", eventID, current.Status)
		}
		return nil
	}, models.EventPatch{Status: &status})
	if err != nil {
		return nil, err
	}

	dctx, cancel := m.dispatchContext(ctx)
	defer cancel()
	report := m.notifier.FanOutCancellation(dctx, event, recipients)

	logger.Info("sos cancelled",
		zap.String("eventId", eventID),
		zap.Int("recipients", len(recipients)),
		zap.Any("notifications", report))
	return event, nil
}

// finish runs check against the current event and moves it out of active under
// the event's stripe lock. It returns the updated event and its responders as
// of the transition; notifying them is left to the caller, outside the lock.
func (m *Manager) finish(ctx context.Context, eventID string, check func(*models.SosEvent) error, patch models.EventPatch) (*models.SosEvent, []string, error) {
	unlock := m.stripes.Lock(eventID)
	defer unlock()

	current, err := m.store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, nil, err
	}
	if err := check(current); err != nil {
		return nil, nil, err
	}
	event, err := m.store.TransitionEvent(ctx, eventID, models.EventActive, patch)
	if err != nil {
		return nil, nil, err
	}

	responders, err := m.responderIDs(ctx, eventID)
	if err != nil {
		logger.Error("list responders", zap.String("eventId", eventID), zap.Error(err))
	}
	return event, responders, nil
}

// responderIDs lists distinct responders in arrival order.
func (m *Manager) responderIDs(ctx context.Context, eventID string) ([]string, error) {
	responses, err := m.store.ListResponsesByEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(responses))
	ids := make([]string, 0, len(responses))
	for _, r := range responses {
		if seen[r.ResponderID] {
			continue
		}
		seen[r.ResponderID] = true
		ids = append(ids, r.ResponderID)
	}
	return ids, nil
}
