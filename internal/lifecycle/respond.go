package lifecycle

import (
	"context"

	"SOSRelay/internal/models"
	"SOSRelay/pkg/errors"
	"SOSRelay/pkg/geo"
	"SOSRelay/pkg/logger"

	"go.uber.org/zap"
)

// Respond records responderID as helping with eventID. The distance is always
// computed here from the stored responder location. A responder who already
// holds a live response gets it back unchanged and no second notification.
func (m *Manager) Respond(ctx context.Context, eventID, responderID string) (resp *models.SosResponse, err error) {
	defer func() { m.record("respond", err) }()

	if eventID == "" || responderID == "" {
		return nil, errors.Validation("eventId and responderId are required")
	}

	resp, event, responder, created, err := m.recordResponse(ctx, eventID, responderID)
	if err != nil || !created {
		return resp, err
	}

	dctx, cancel := m.dispatchContext(ctx)
	defer cancel()
	report := m.notifier.FanOutResponse(dctx, event, responder, resp.DistanceKm, resp.Status)

	logger.Info("sos response recorded",
		zap.String("eventId", event.ID),
		zap.String("responderId", responder.ID),
		zap.Float64("distanceKm", resp.DistanceKm),
		zap.Any("notifications", report))
	return resp, nil
}

// recordResponse does the state work of Respond under the event's stripe lock.
// created is false when an existing live response is handed back.
func (m *Manager) recordResponse(ctx context.Context, eventID, responderID string) (resp *models.SosResponse, event *models.SosEvent, responder *models.User, created bool, err error) {
	unlock := m.stripes.Lock(eventID)
	defer unlock()

	event, err = m.store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, nil, nil, false, err
	}
	responder, err = m.store.GetUser(ctx, responderID)
	if err != nil {
		return nil, nil, nil, false, err
	}
	if responder.ID == event.UserID {
		return nil, nil, nil, false, errors.Conflict("cannot respond to your own SOS")
	}
	if event.Status != models.EventActive {
		return nil, nil, nil, false, errors.Conflict("event %s is %s", event.ID, event.Status)
	}

	existing, err := m.store.ListResponsesByEvent(ctx, eventID)
	if err != nil {
		return nil, nil, nil, false, err
	}
	for _, r := range existing {
		if r.ResponderID == responderID && r.Status != models.ResponseCancelled {
			return r, event, responder, false, nil
		}
	}

	if responder.Location == nil {
		return nil, nil, nil, false, errors.Precondition("responder %s has no known location", responderID)
	}

	resp, err = m.store.CreateResponse(ctx, &models.SosResponse{
		EventID:     event.ID,
		ResponderID: responder.ID,
		Status:      models.ResponseResponding,
		DistanceKm:  geo.DistanceKm(event.Location, responder.Location.Coordinate()),
	})
	if err != nil {
		return nil, nil, nil, false, err
	}

	// another process may have resolved the event between our read and write
	current, err := m.store.GetEvent(ctx, eventID)
	if err == nil && current.Status != models.EventActive {
		cancelled := models.ResponseCancelled
		if _, uerr := m.store.UpdateResponse(ctx, resp.ID, models.ResponsePatch{Status: &cancelled}); uerr != nil {
			logger.Error("withdraw response after lost race", zap.String("responseId", resp.ID), zap.Error(uerr))
		}
		return nil, nil, nil, false, errors.Conflict("event %s is %s", event.ID, current.Status)
	}
	return resp, event, responder, true, nil
}

// UpdateResponseStatus lets the responder mark arrival or withdraw. The
// requester gets a responder_update either way.
func (m *Manager) UpdateResponseStatus(ctx context.Context, responseID, responderID, status string) (resp *models.SosResponse, err error) {
	defer func() { m.record("update_response", err) }()

	if status == "" {
		return nil, errors.Validation("status is required")
	}
	next, err := models.ParseResponseStatus(status)
	if err != nil {
		return nil, err
	}

	resp, event, err := m.updateResponse(ctx, responseID, responderID, next)
	if err != nil {
		return nil, err
	}

	responder, err := m.store.GetUser(ctx, responderID)
	if err != nil {
		return nil, err
	}
	dctx, cancel := m.dispatchContext(ctx)
	defer cancel()
	m.notifier.FanOutResponse(dctx, event, responder, resp.DistanceKm, resp.Status)
	return resp, nil
}

// updateResponse re-reads the response under the event's stripe lock so a
// concurrent withdraw is never overwritten.
func (m *Manager) updateResponse(ctx context.Context, responseID, responderID string, next models.ResponseStatus) (*models.SosResponse, *models.SosEvent, error) {
	// the lock is keyed by event, which only the stored response knows
	peek, err := m.store.GetResponse(ctx, responseID)
	if err != nil {
		return nil, nil, err
	}

	unlock := m.stripes.Lock(peek.EventID)
	defer unlock()

	resp, err := m.store.GetResponse(ctx, responseID)
	if err != nil {
		return nil, nil, err
	}
	if resp.ResponderID != responderID {
		return nil, nil, errors.Conflict("response %s belongs to another responder", responseID)
	}
	event, err := m.store.GetEvent(ctx, resp.EventID)
	if err != nil {
		return nil, nil, err
	}
	if event.Status != models.EventActive {
		return nil, nil, errors.Conflict("event %s is %s", event.ID, event.Status)
	}
	if resp.Status == models.ResponseCancelled {
		return nil, nil, errors.Conflict("response %s was cancelled", responseID)
	}

	resp, err = m.store.UpdateResponse(ctx, responseID, models.ResponsePatch{Status: &next})
	if err != nil {
		return nil, nil, err
	}
	return resp, event, nil
}
