package websocket

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// newUpgrader 根据配置创建WebSocket升级器
func newUpgrader(cfg *Config) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  cfg.ReadBufferSize,
		WriteBufferSize: cfg.WriteBufferSize,
		CheckOrigin: func(r *http.Request) bool {
			// 跨域由 HTTP 层的 CORS 控制
			return true
		},
		EnableCompression: cfg.EnableCompression,
	}
}

// HandleWebSocket 升级连接并启动读写协程
func HandleWebSocket(hub *Hub, w http.ResponseWriter, r *http.Request) {
	if hub.GetConnectionCount() >= hub.config.MaxConnections {
		http.Error(w, ErrConnectionLimitExceeded, http.StatusServiceUnavailable)
		return
	}

	upgrader := newUpgrader(hub.config)
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logrus.Errorf("WebSocket升级失败: %v", err)
		return
	}

	// 压缩设置
	if hub.config.EnableCompression {
		conn.EnableWriteCompression(true)
		if hub.config.CompressionLevel != 0 {
			_ = conn.SetCompressionLevel(hub.config.CompressionLevel)
		}
	}

	connection := newConnection(hub, conn)

	// 注册连接到Hub
	select {
	case hub.register <- connection:
	case <-hub.ctx.Done():
		_ = conn.Close()
		return
	}

	// 启动读写协程
	go connection.writePump()
	go connection.readPump()
}

func newConnection(hub *Hub, conn *websocket.Conn) *Connection {
	return &Connection{
		id:       "conn_" + uuid.NewString(),
		Conn:     conn,
		send:     make(chan []byte, hub.config.MessageBufferSize),
		hub:      hub,
		lastPing: time.Now(),
	}
}

// ID 连接唯一标识
func (c *Connection) ID() string {
	return c.id
}

// LastPing 最近一次收到心跳的时间
func (c *Connection) LastPing() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastPing
}

func (c *Connection) touch() {
	c.mu.Lock()
	c.lastPing = time.Now()
	c.mu.Unlock()
}

// IsOpen 发送队列是否仍可写
func (c *Connection) IsOpen() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.closed
}

// Send 入队一条消息，按背压策略丢弃或限时等待；已关闭或被丢弃时返回 false
func (c *Connection) Send(data []byte) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return false
	}

	cfg := c.hub.config
	if cfg.DropOnFull {
		select {
		case c.send <- data:
			return true
		default:
			c.onBackpressure()
			return false
		}
	}

	// 非丢弃模式：限定等待时长
	timeout := cfg.SendTimeout
	if timeout <= 0 {
		timeout = 50 * time.Millisecond
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case c.send <- data:
		return true
	case <-timer.C:
		c.onBackpressure()
		return false
	}
}

// SendJSON 序列化后发送
func (c *Connection) SendJSON(v interface{}) bool {
	data, err := json.Marshal(v)
	if err != nil {
		logrus.Errorf("消息序列化失败: %v", err)
		return false
	}
	return c.Send(data)
}

func (c *Connection) onBackpressure() {
	logrus.Debugf("连接 %s 发送缓冲区满，已按策略处理", c.id)
	if c.hub.config.CloseOnBackpressure {
		go c.Close()
	}
}

// Close 关闭底层连接，读协程随之退出并触发注销
func (c *Connection) Close() {
	if c.Conn != nil {
		_ = c.Conn.Close()
		return
	}
	c.closeSend()
}

// closeSend 只关闭一次发送队列，之后 Send 一律返回 false
func (c *Connection) closeSend() {
	c.once.Do(func() {
		c.mu.Lock()
		c.closed = true
		close(c.send)
		c.mu.Unlock()
	})
}

// readPump 读取消息的协程
func (c *Connection) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.ctx.Done():
			c.closeSend()
		}
		_ = c.Conn.Close()
		if h := c.hub.messageHandler(); h != nil {
			h.HandleClose(c)
		}
	}()

	c.Conn.SetReadLimit(int64(c.hub.config.MaxMessageSize))
	_ = c.Conn.SetReadDeadline(time.Now().Add(c.hub.config.ConnectionTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.touch()
		return c.Conn.SetReadDeadline(time.Now().Add(c.hub.config.ConnectionTimeout))
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logrus.Errorf("WebSocket读取错误: %v", err)
			}
			break
		}
		_ = c.Conn.SetReadDeadline(time.Now().Add(c.hub.config.ConnectionTimeout))
		c.handleMessage(message)
	}
}

// writePump 发送消息的协程，一帧一条消息
func (c *Connection) writePump() {
	interval := c.hub.config.HeartbeatInterval
	if interval <= 0 {
		interval = DefaultHeartbeatInterval * time.Second
	}
	ticker := time.NewTicker(time.Duration(float64(interval) * 0.9))
	defer func() {
		ticker.Stop()
		_ = c.Conn.Close()
	}()

	writeWait := c.hub.config.WriteWait
	if writeWait <= 0 {
		writeWait = 10 * time.Second
	}

	for {
		select {
		case message, ok := <-c.send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage 解析上行消息；格式错误只记录并丢弃，不断开连接
func (c *Connection) handleMessage(raw []byte) {
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil || msg.Type == "" {
		logrus.Warnf("连接 %s 消息解析失败: %v", c.id, err)
		reply(c, Reply{Type: MessageTypeError, Message: ErrInvalidMessage})
		return
	}

	if msg.Type == MessageTypePing {
		c.touch()
		reply(c, Reply{Type: MessageTypePong})
		return
	}

	h := c.hub.messageHandler()
	if h == nil {
		logrus.Warnf("未知的消息类型: %s", msg.Type)
		return
	}
	h.HandleMessage(c, &msg)
}
