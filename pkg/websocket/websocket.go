package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"SOSRelay/pkg/geo"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Message 客户端上行消息，每帧一个 JSON 对象
type Message struct {
	Type      string          `json:"type"`
	UserID    string          `json:"userId,omitempty"`
	Location  *geo.Coordinate `json:"location,omitempty"`
	Timestamp int64           `json:"timestamp,omitempty"`
}

// Reply 服务端对单个连接的应答（pong / registered / error）
type Reply struct {
	Type      string `json:"type"`
	UserID    string `json:"userId,omitempty"`
	Message   string `json:"message,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// MessageHandler 业务层实现，收到消息与连接关闭时回调
type MessageHandler interface {
	HandleMessage(conn *Connection, msg *Message)
	HandleClose(conn *Connection)
}

// Connection 表示一个WebSocket连接
type Connection struct {
	id       string
	Conn     *websocket.Conn
	send     chan []byte
	hub      *Hub
	lastPing time.Time
	closed   bool
	mu       sync.RWMutex
	once     sync.Once
}

// Hub 管理所有WebSocket连接
type Hub struct {
	// 注册的连接
	connections map[string]*Connection
	// 注册连接通道
	register chan *Connection
	// 注销连接通道
	unregister chan *Connection
	// 连接计数
	connectionCount int64
	// 配置
	config *Config
	// 业务回调
	handler MessageHandler
	// 互斥锁
	mu sync.RWMutex
	// 上下文
	ctx    context.Context
	cancel context.CancelFunc
}

// NewHub 创建新的Hub实例
func NewHub(config *Config, handler MessageHandler) *Hub {
	if config == nil {
		config = DefaultConfig()
	}

	ctx, cancel := context.WithCancel(context.Background())

	hub := &Hub{
		connections: make(map[string]*Connection),
		register:    make(chan *Connection, 1000),
		unregister:  make(chan *Connection, 1000),
		config:      config,
		handler:     handler,
		ctx:         ctx,
		cancel:      cancel,
	}

	go hub.run()
	return hub
}

func (h *Hub) messageHandler() MessageHandler {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.handler
}

// run Hub主循环
func (h *Hub) run() {
	ticker := time.NewTicker(h.config.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.ctx.Done():
			return
		case conn := <-h.register:
			h.registerConnection(conn)
		case conn := <-h.unregister:
			h.unregisterConnection(conn)
		case <-ticker.C:
			h.checkHeartbeats()
		}
	}
}

// registerConnection 注册连接
func (h *Hub) registerConnection(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	// 检查最大连接数
	if atomic.LoadInt64(&h.connectionCount) >= h.config.MaxConnections {
		logrus.Warnf("达到最大连接数限制: %d", h.config.MaxConnections)
		conn.Close()
		return
	}

	h.connections[conn.id] = conn
	atomic.AddInt64(&h.connectionCount, 1)

	logrus.Infof("WebSocket连接已注册: %s, 当前连接数: %d",
		conn.id, atomic.LoadInt64(&h.connectionCount))
}

// unregisterConnection 注销连接
func (h *Hub) unregisterConnection(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.connections[conn.id]; exists {
		delete(h.connections, conn.id)
		atomic.AddInt64(&h.connectionCount, -1)
		logrus.Infof("WebSocket连接已注销: %s, 当前连接数: %d",
			conn.id, atomic.LoadInt64(&h.connectionCount))
	}
	conn.closeSend()
}

// checkHeartbeats 检查心跳
func (h *Hub) checkHeartbeats() {
	h.mu.RLock()
	defer h.mu.RUnlock()

	now := time.Now()
	for _, conn := range h.connections {
		if now.Sub(conn.LastPing()) > h.config.ConnectionTimeout {
			logrus.Warnf("连接 %s 心跳超时，准备关闭", conn.id)
			conn.Close()
		}
	}
}

// GetConnectionCount 获取当前连接数
func (h *Hub) GetConnectionCount() int64 {
	return atomic.LoadInt64(&h.connectionCount)
}

// Close 关闭Hub
func (h *Hub) Close() {
	h.cancel()

	// 关闭所有连接
	h.mu.Lock()
	for _, conn := range h.connections {
		conn.Close()
	}
	h.mu.Unlock()

	logrus.Info("WebSocket Hub已关闭")
}

// reply 序列化并发给单个连接，失败仅记录
func reply(conn *Connection, r Reply) {
	if r.Timestamp == 0 {
		r.Timestamp = time.Now().Unix()
	}
	data, err := json.Marshal(r)
	if err != nil {
		logrus.Errorf("消息序列化失败: %v", err)
		return
	}
	if !conn.Send(data) {
		logrus.Warnf("连接 %s %s", conn.id, ErrSendBufferFull)
	}
}
