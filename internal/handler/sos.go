package handlers

import (
	"SOSRelay/internal/lifecycle"
	"SOSRelay/pkg/errors"
	"SOSRelay/pkg/geo"
	"SOSRelay/pkg/response"

	"github.com/gin-gonic/gin"
)

type triggerRequest struct {
	UserID      string          `json:"userId"`
	Location    *geo.Coordinate `json:"location"`
	Address     string          `json:"address"`
	Severity    string          `json:"severity"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
	Photos      []string        `json:"photos"`
	Videos      []string        `json:"videos"`
	AudioURL    string          `json:"audioUrl"`
}

type respondRequest struct {
	EventID     string `json:"eventId"`
	ResponderID string `json:"responderId"`
}

type resolveRequest struct {
	ResolvedBy string `json:"resolvedBy"`
}

type cancelRequest struct {
	UserID string `json:"userId"`
}

type updateResponseRequest struct {
	ResponderID string `json:"responderId"`
	Status      string `json:"status"`
}

func (h *Handlers) handleTrigger(c *gin.Context) {
	var req triggerRequest
	if err := bind(c, &req); err != nil {
		response.Error(c, err)
		return
	}
	if req.Location == nil {
		response.Error(c, errors.Validation("location is required"))
		return
	}
	res, err := h.manager.Trigger(c.Request.Context(), lifecycle.TriggerInput{
		UserID:      req.UserID,
		Location:    *req.Location,
		Address:     req.Address,
		Severity:    req.Severity,
		Category:    req.Category,
		Description: req.Description,
		Photos:      req.Photos,
		Videos:      req.Videos,
		AudioURL:    req.AudioURL,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, "SOS triggered", res)
}

func (h *Handlers) handleRespond(c *gin.Context) {
	var req respondRequest
	if err := bind(c, &req); err != nil {
		response.Error(c, err)
		return
	}
	resp, err := h.manager.Respond(c.Request.Context(), req.EventID, req.ResponderID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, "response recorded", gin.H{"response": resp})
}

func (h *Handlers) handleResolve(c *gin.Context) {
	var req resolveRequest
	if err := bind(c, &req); err != nil {
		response.Error(c, err)
		return
	}
	event, err := h.manager.Resolve(c.Request.Context(), c.Param("id"), req.ResolvedBy)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, "SOS resolved", gin.H{"event": event})
}

func (h *Handlers) handleCancel(c *gin.Context) {
	var req cancelRequest
	if err := bind(c, &req); err != nil {
		response.Error(c, err)
		return
	}
	event, err := h.manager.Cancel(c.Request.Context(), c.Param("id"), req.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, "SOS cancelled", gin.H{"event": event})
}

func (h *Handlers) handleUpdateResponse(c *gin.Context) {
	var req updateResponseRequest
	if err := bind(c, &req); err != nil {
		response.Error(c, err)
		return
	}
	resp, err := h.manager.UpdateResponseStatus(c.Request.Context(), c.Param("id"), req.ResponderID, req.Status)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, "response updated", gin.H{"response": resp})
}

func (h *Handlers) handleEventDetails(c *gin.Context) {
	details, err := h.manager.EventDetails(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, "success", details)
}

func (h *Handlers) handleNearbyEvents(c *gin.Context) {
	center, radius, err := searchArea(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	events, err := h.matcher.EventsWithin(c.Request.Context(), center, radius)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, "success", gin.H{"events": events})
}
