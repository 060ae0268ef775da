package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"

	"SOSRelay/pkg/geo"
	"SOSRelay/pkg/response"

	"github.com/gin-gonic/gin"
)

// HealthCheck 健康检查接口
func (h *Handlers) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	// 检查存储连接
	if err := h.store.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": "store ping failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":         "healthy",
		"connectedUsers": h.presence.ConnectedCount(),
		"timestamp":      time.Now().Unix(),
	})
}

func (h *Handlers) handleAdminStats(c *gin.Context) {
	stats, err := h.manager.SystemStats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, "success", gin.H{
		"stats":          stats,
		"connectedUsers": h.presence.ConnectedCount(),
		"channels": gin.H{
			"sms":  h.opts.SMSConfigured,
			"push": h.opts.PushConfigured,
		},
	})
}

func (h *Handlers) handleAdminUsers(c *gin.Context) {
	users, err := h.store.ListUsers(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, "success", gin.H{"users": users})
}

func (h *Handlers) handleAdminEvents(c *gin.Context) {
	events, err := h.store.ListEvents(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, "success", gin.H{"events": events})
}

// presenceEntry 在线通道的只读视图
type presenceEntry struct {
	UserID         string          `json:"userId"`
	Channel        string          `json:"channel"`
	ConnectedSince time.Time       `json:"connectedSince"`
	Location       *geo.Coordinate `json:"location,omitempty"`
}

func (h *Handlers) handleAdminPresence(c *gin.Context) {
	snapshot := h.presence.Snapshot()
	sort.Slice(snapshot, func(i, j int) bool { return snapshot[i].ConnectedSince.Before(snapshot[j].ConnectedSince) })
	entries := make([]presenceEntry, 0, len(snapshot))
	for _, e := range snapshot {
		entries = append(entries, presenceEntry{
			UserID:         e.UserID,
			Channel:        e.Channel.ID(),
			ConnectedSince: e.ConnectedSince,
			Location:       e.Location,
		})
	}
	response.Success(c, "success", gin.H{"count": len(entries), "connections": entries})
}
