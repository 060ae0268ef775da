package lifecycle

import (
	"context"

	"SOSRelay/internal/dispatch"
	"SOSRelay/internal/models"
	"SOSRelay/pkg/errors"
	"SOSRelay/pkg/geo"
	"SOSRelay/pkg/logger"

	"go.uber.org/zap"
)

type TriggerInput struct {
	UserID      string
	Location    geo.Coordinate
	Address     string
	Severity    string
	Category    string
	Description string
	Photos      []string
	Videos      []string
	AudioURL    string
}

type TriggerResult struct {
	Event         *models.SosEvent `json:"event"`
	AudienceSize  int              `json:"audienceSize"`
	Notifications dispatch.Report  `json:"notifications"`
}

// Trigger creates an active event for in.UserID and alerts the audience.
// Notification failures never fail the trigger.
func (m *Manager) Trigger(ctx context.Context, in TriggerInput) (res *TriggerResult, err error) {
	defer func() { m.record("trigger", err) }()

	if in.UserID == "" {
		return nil, errors.Validation("userId is required")
	}
	if !in.Location.Valid() {
		return nil, errors.Validation("invalid location %v,%v", in.Location.Lat, in.Location.Lng)
	}
	severity, err := models.ParseSeverity(in.Severity)
	if err != nil {
		return nil, err
	}
	category, err := models.ParseCategory(in.Category)
	if err != nil {
		return nil, err
	}

	requester, err := m.store.GetUser(ctx, in.UserID)
	if err != nil {
		return nil, err
	}

	event, err := m.store.CreateEvent(ctx, &models.SosEvent{
		UserID:      requester.ID,
		Location:    in.Location,
		Address:     in.Address,
		Status:      models.EventActive,
		Severity:    severity,
		Category:    category,
		Description: in.Description,
		Photos:      in.Photos,
		Videos:      in.Videos,
		AudioURL:    in.AudioURL,
	})
	if err != nil {
		return nil, err
	}

	helpers, err := m.audience(ctx, event, requester)
	if err != nil {
		logger.Error("resolve trigger audience", zap.String("eventId", event.ID), zap.Error(err))
		helpers = nil
	}

	dctx, cancel := m.dispatchContext(ctx)
	defer cancel()
	report := m.notifier.FanOutTrigger(dctx, event, requester, helpers)

	logger.Info("sos triggered",
		zap.String("eventId", event.ID),
		zap.String("userId", requester.ID),
		zap.String("severity", string(event.Severity)),
		zap.Int("contacts", len(requester.EmergencyContacts)),
		zap.Int("audience", len(helpers)),
		zap.Any("notifications", report))

	return &TriggerResult{Event: event, AudienceSize: len(helpers), Notifications: report}, nil
}

// audience applies the configured policy. The requester is never included.
func (m *Manager) audience(ctx context.Context, e *models.SosEvent, requester *models.User) ([]dispatch.Helper, error) {
	if m.cfg.AudiencePolicy == AudienceRadius {
		matches, err := m.matcher.UsersWithinExcluding(ctx, e.Location, m.cfg.AlertRadiusKm, requester.ID)
		if err != nil {
			return nil, err
		}
		helpers := make([]dispatch.Helper, 0, len(matches))
		for _, match := range matches {
			d := match.DistanceKm
			helpers = append(helpers, dispatch.Helper{User: match.User, DistanceKm: &d})
		}
		return helpers, nil
	}

	users, err := m.store.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	helpers := make([]dispatch.Helper, 0, len(users))
	for _, u := range users {
		if u.ID == requester.ID {
			continue
		}
		h := dispatch.Helper{User: u}
		if u.Location != nil {
			d := geo.DistanceKm(e.Location, u.Location.Coordinate())
			h.DistanceKm = &d
		}
		helpers = append(helpers, h)
	}
	return helpers, nil
}
