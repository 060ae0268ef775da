package presence

import (
	"context"
	"time"

	"SOSRelay/pkg/errors"
	"SOSRelay/pkg/logger"
	"SOSRelay/pkg/websocket"

	"go.uber.org/zap"
)

const (
	MessageTypeRegister       = "register"
	MessageTypeRegistered     = "registered"
	MessageTypeLocationUpdate = "location_update"
)

// LiveHandler turns live channel messages into registry calls.
type LiveHandler struct {
	registry *Registry
	timeout  time.Duration
}

func NewLiveHandler(registry *Registry) *LiveHandler {
	return &LiveHandler{registry: registry, timeout: 5 * time.Second}
}

func (h *LiveHandler) HandleMessage(conn *websocket.Connection, msg *websocket.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	switch msg.Type {
	case MessageTypeRegister:
		if err := h.registry.Register(ctx, msg.UserID, conn); err != nil {
			h.fail(conn, msg, err)
			return
		}
		conn.SendJSON(websocket.Reply{Type: MessageTypeRegistered, UserID: msg.UserID, Timestamp: time.Now().Unix()})
	case MessageTypeLocationUpdate:
		if msg.UserID == "" || msg.Location == nil {
			h.fail(conn, msg, errors.Validation("userId and location are required"))
			return
		}
		if _, err := h.registry.UpdateLocation(ctx, msg.UserID, *msg.Location); err != nil {
			h.fail(conn, msg, err)
		}
	default:
		h.fail(conn, msg, errors.Validation("unknown message type %q", msg.Type))
	}
}

func (h *LiveHandler) HandleClose(conn *websocket.Connection) {
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()
	h.registry.Unregister(ctx, conn)
}

func (h *LiveHandler) fail(conn *websocket.Connection, msg *websocket.Message, err error) {
	logger.Warn("live message rejected",
		zap.String("type", msg.Type),
		zap.String("userId", msg.UserID),
		zap.String("channel", conn.ID()),
		zap.Error(err))
	conn.SendJSON(websocket.Reply{
		Type:      websocket.MessageTypeError,
		Message:   errors.GetMessage(err),
		Timestamp: time.Now().Unix(),
	})
}

var _ websocket.MessageHandler = (*LiveHandler)(nil)
