package dispatch

import (
	"errors"
	"fmt"
	"strconv"

	"SOSRelay/internal/models"
)

var errLiveNotDelivered = errors.New("live channel closed or full")

const (
	TypeSosAlert        = "sos_alert"
	TypeResponderUpdate = "responder_update"
	TypeSosResolved     = "sos_resolved"
	TypeSosCancelled    = "sos_cancelled"

	pushTitle = "🚨 Emergency Alert Nearby"
)

type Requester struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type HelperDistance struct {
	UserID     string   `json:"userId"`
	DistanceKm *float64 `json:"distanceKm"`
}

type AlertMessage struct {
	Type      string           `json:"type"`
	Event     *models.SosEvent `json:"event"`
	Requester Requester        `json:"requester"`
	Distances []HelperDistance `json:"distances"`
}

type ResponderInfo struct {
	ID         string                `json:"id"`
	Name       string                `json:"name"`
	DistanceKm float64               `json:"distance"`
	Status     models.ResponseStatus `json:"status"`
}

type ResponderUpdateMessage struct {
	Type      string        `json:"type"`
	EventID   string        `json:"eventId"`
	Responder ResponderInfo `json:"responder"`
}

type EventMessage struct {
	Type    string `json:"type"`
	EventID string `json:"eventId"`
}

// LocationText is the address when known, otherwise "lat, lng" to four places.
func LocationText(e *models.SosEvent) string {
	if e.Address != "" {
		return e.Address
	}
	return fmt.Sprintf("%.4f, %.4f", e.Location.Lat, e.Location.Lng)
}

func contactSMS(requester *models.User, e *models.SosEvent) string {
	return fmt.Sprintf("EMERGENCY ALERT: %s has triggered an SOS alert. Location: %s. Please check immediately or call authorities.",
		requester.Name, LocationText(e))
}

func helperSMS(requester *models.User, e *models.SosEvent) string {
	return fmt.Sprintf("SOS HELP NEEDED: %s needs emergency help! Location: %s. Open the app to respond.",
		requester.Name, LocationText(e))
}

func pushBody(requester *models.User, e *models.SosEvent, distanceKm *float64) string {
	if distanceKm == nil {
		return fmt.Sprintf("%s needs help! Location: %s", requester.Name, LocationText(e))
	}
	return fmt.Sprintf("%s needs help! Approximately %.1fkm away from you. Location: %s",
		requester.Name, *distanceKm, LocationText(e))
}

func pushData(e *models.SosEvent, distanceKm *float64) map[string]string {
	data := map[string]string{"eventId": e.ID, "type": TypeSosAlert}
	if distanceKm != nil {
		data["distance"] = strconv.FormatFloat(*distanceKm, 'f', -1, 64)
	}
	return data
}
