package dispatch

import (
	"context"

	"SOSRelay/internal/models"
)

// Helper is one member of the trigger audience. DistanceKm is nil when the
// helper has no known location.
type Helper struct {
	User       *models.User
	DistanceKm *float64
}

// FanOutTrigger alerts the requester's emergency contacts by SMS and every
// helper by push (when a token is set), SMS and the live channel.
func (d *Dispatcher) FanOutTrigger(ctx context.Context, e *models.SosEvent, requester *models.User, helpers []Helper) Report {
	var tasks []task

	contactBody := contactSMS(requester, e)
	contactOf := requester.ID + "/contact"
	for _, c := range requester.EmergencyContacts {
		if c.Phone == "" {
			continue
		}
		tasks = append(tasks, d.smsTask(contactOf, c.Phone, contactBody))
	}

	helperBody := helperSMS(requester, e)
	ids := make([]string, 0, len(helpers))
	distances := make([]HelperDistance, 0, len(helpers))
	for _, h := range helpers {
		if h.User.PushToken != "" {
			tasks = append(tasks, d.pushTask(h.User.ID, h.User.PushToken, pushTitle,
				pushBody(requester, e, h.DistanceKm), pushData(e, h.DistanceKm)))
		}
		if h.User.Phone != "" {
			tasks = append(tasks, d.smsTask(h.User.ID, h.User.Phone, helperBody))
		}
		ids = append(ids, h.User.ID)
		distances = append(distances, HelperDistance{UserID: h.User.ID, DistanceKm: h.DistanceKm})
	}

	tasks = append(tasks, d.liveTasks(ids, AlertMessage{
		Type:      TypeSosAlert,
		Event:     e,
		Requester: Requester{ID: requester.ID, Name: requester.Name},
		Distances: distances,
	})...)

	return d.run(ctx, "trigger", tasks)
}

// FanOutResponse sends one responder_update to the requester.
func (d *Dispatcher) FanOutResponse(ctx context.Context, e *models.SosEvent, responder *models.User, distanceKm float64, status models.ResponseStatus) Report {
	msg := ResponderUpdateMessage{
		Type:    TypeResponderUpdate,
		EventID: e.ID,
		Responder: ResponderInfo{
			ID:         responder.ID,
			Name:       responder.Name,
			DistanceKm: distanceKm,
			Status:     status,
		},
	}
	return d.run(ctx, "response", d.liveTasks([]string{e.UserID}, msg))
}

// FanOutResolution sends one sos_resolved to each recipient.
func (d *Dispatcher) FanOutResolution(ctx context.Context, e *models.SosEvent, recipients []string) Report {
	msg := EventMessage{Type: TypeSosResolved, EventID: e.ID}
	return d.run(ctx, "resolution", d.liveTasks(recipients, msg))
}

// FanOutCancellation sends one sos_cancelled to each recipient.
func (d *Dispatcher) FanOutCancellation(ctx context.Context, e *models.SosEvent, recipients []string) Report {
	msg := EventMessage{Type: TypeSosCancelled, EventID: e.ID}
	return d.run(ctx, "cancellation", d.liveTasks(recipients, msg))
}
