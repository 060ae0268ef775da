package handlers

import (
	"strings"

	"SOSRelay/internal/models"
	"SOSRelay/pkg/errors"
	"SOSRelay/pkg/geo"
	"SOSRelay/pkg/notification"
	"SOSRelay/pkg/response"

	"github.com/gin-gonic/gin"
)

type registerUserRequest struct {
	Phone             string                    `json:"phone"`
	Name              string                    `json:"name"`
	EmergencyContacts []models.EmergencyContact `json:"emergencyContacts"`
	MedicalInfo       *models.MedicalInfo       `json:"medicalInfo"`
	SafeZones         []models.SafeZone         `json:"safeZones"`
	ProfilePhoto      string                    `json:"profilePhoto"`
	PushToken         string                    `json:"pushToken"`
}

type updateUserRequest struct {
	Name              *string                    `json:"name"`
	EmergencyContacts *[]models.EmergencyContact `json:"emergencyContacts"`
	MedicalInfo       *models.MedicalInfo        `json:"medicalInfo"`
	SafeZones         *[]models.SafeZone         `json:"safeZones"`
	ProfilePhoto      *string                    `json:"profilePhoto"`
}

type locationRequest struct {
	Lat *float64 `json:"lat"`
	Lng *float64 `json:"lng"`
}

type pushTokenRequest struct {
	Token string `json:"token"`
}

type availabilityRequest struct {
	Available *bool `json:"available"`
}

func normalizeContacts(in []models.EmergencyContact) ([]models.EmergencyContact, error) {
	out := make([]models.EmergencyContact, 0, len(in))
	for _, ec := range in {
		phone := notification.FormatPhone(ec.Phone)
		if phone == "" {
			return nil, errors.Validation("emergency contact %q has no phone", ec.Name)
		}
		out = append(out, models.EmergencyContact{Name: strings.TrimSpace(ec.Name), Phone: phone})
	}
	return out, nil
}

func (h *Handlers) handleRegisterUser(c *gin.Context) {
	var req registerUserRequest
	if err := bind(c, &req); err != nil {
		response.Error(c, err)
		return
	}
	phone := notification.FormatPhone(req.Phone)
	name := strings.TrimSpace(req.Name)
	if phone == "" || name == "" {
		response.Error(c, errors.Validation("phone and name are required"))
		return
	}
	contacts, err := normalizeContacts(req.EmergencyContacts)
	if err != nil {
		response.Error(c, err)
		return
	}
	user, err := h.store.CreateUser(c.Request.Context(), &models.User{
		Phone:             phone,
		Name:              name,
		Available:         true,
		PushToken:         req.PushToken,
		EmergencyContacts: contacts,
		MedicalInfo:       req.MedicalInfo,
		SafeZones:         req.SafeZones,
		ProfilePhoto:      req.ProfilePhoto,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, "user registered", gin.H{"user": user})
}

func (h *Handlers) handleGetUserByPhone(c *gin.Context) {
	user, err := h.store.GetUserByPhone(c.Request.Context(), notification.FormatPhone(c.Param("phone")))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, "success", gin.H{"user": user})
}

func (h *Handlers) handleGetUser(c *gin.Context) {
	user, err := h.store.GetUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, "success", gin.H{"user": user})
}

func (h *Handlers) handleUpdateUser(c *gin.Context) {
	var req updateUserRequest
	if err := bind(c, &req); err != nil {
		response.Error(c, err)
		return
	}
	patch := models.UserPatch{
		Name:         req.Name,
		MedicalInfo:  req.MedicalInfo,
		SafeZones:    req.SafeZones,
		ProfilePhoto: req.ProfilePhoto,
	}
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		response.Error(c, errors.Validation("name cannot be empty"))
		return
	}
	if req.EmergencyContacts != nil {
		contacts, err := normalizeContacts(*req.EmergencyContacts)
		if err != nil {
			response.Error(c, err)
			return
		}
		patch.EmergencyContacts = &contacts
	}
	user, err := h.store.UpdateUser(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, "user updated", gin.H{"user": user})
}

func (h *Handlers) handleUpdateLocation(c *gin.Context) {
	var req locationRequest
	if err := bind(c, &req); err != nil {
		response.Error(c, err)
		return
	}
	if req.Lat == nil || req.Lng == nil {
		response.Error(c, errors.Validation("lat and lng are required"))
		return
	}
	user, err := h.presence.UpdateLocation(c.Request.Context(), c.Param("id"), geo.Coordinate{Lat: *req.Lat, Lng: *req.Lng})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, "location updated", gin.H{"user": user})
}

func (h *Handlers) handleUpdatePushToken(c *gin.Context) {
	var req pushTokenRequest
	if err := bind(c, &req); err != nil {
		response.Error(c, err)
		return
	}
	token := strings.TrimSpace(req.Token)
	if token == "" {
		response.Error(c, errors.Validation("valid push token required"))
		return
	}
	user, err := h.store.UpdateUser(c.Request.Context(), c.Param("id"), models.UserPatch{PushToken: &token})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, "push token registered", gin.H{"user": user})
}

func (h *Handlers) handleUpdateAvailability(c *gin.Context) {
	var req availabilityRequest
	if err := bind(c, &req); err != nil {
		response.Error(c, err)
		return
	}
	if req.Available == nil {
		response.Error(c, errors.Validation("available is required"))
		return
	}
	user, err := h.store.UpdateUser(c.Request.Context(), c.Param("id"), models.UserPatch{Available: req.Available})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, "availability updated", gin.H{"user": user})
}

func (h *Handlers) handleNearbyUsers(c *gin.Context) {
	center, radius, err := searchArea(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	matches, err := h.matcher.UsersWithin(c.Request.Context(), center, radius)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, "success", gin.H{"count": len(matches), "users": matches})
}

func (h *Handlers) handleUserStats(c *gin.Context) {
	stats, err := h.manager.UserStats(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, "success", gin.H{"stats": stats})
}

