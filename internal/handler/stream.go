package handlers

import (
	"context"
	"time"

	"SOSRelay/internal/presence"
	"SOSRelay/pkg/errors"
	"SOSRelay/pkg/logger"
	"SOSRelay/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// handleStream 以 SSE 方式为不能使用 WebSocket 的客户端注册实时通道
func (h *Handlers) handleStream(c *gin.Context) {
	hub := h.opts.Stream
	if hub == nil {
		response.Error(c, errors.Precondition("event stream is disabled"))
		return
	}
	userID := c.Param("id")
	client := hub.AddClient()
	defer hub.RemoveClient(client.ID())

	if err := h.presence.Register(c.Request.Context(), userID, client); err != nil {
		response.Error(c, err)
		return
	}
	defer func() {
		// 请求上下文此时已取消，下线写库需要独立的超时
		ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request.Context()), 5*time.Second)
		defer cancel()
		h.presence.Unregister(ctx, client)
	}()

	h.presence.Send(userID, gin.H{
		"type":      presence.MessageTypeRegistered,
		"userId":    userID,
		"timestamp": time.Now().Unix(),
	})
	logger.Debug("sse stream opened", zap.String("userId", userID), zap.String("channel", client.ID()))
	hub.Serve(c, client)
}
