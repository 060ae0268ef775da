package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHandler struct {
	mu       sync.Mutex
	messages []*Message
	closed   []string
}

func (r *recordingHandler) HandleMessage(conn *Connection, msg *Message) {
	r.mu.Lock()
	r.messages = append(r.messages, msg)
	r.mu.Unlock()
	reply(conn, Reply{Type: "ack", UserID: msg.UserID})
}

func (r *recordingHandler) HandleClose(conn *Connection) {
	r.mu.Lock()
	r.closed = append(r.closed, conn.ID())
	r.mu.Unlock()
}

func (r *recordingHandler) counts() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.messages), len(r.closed)
}

func TestNewHub(t *testing.T) {
	hub := NewHub(nil, nil)
	assert.NotNil(t, hub)
	assert.Equal(t, int64(DefaultMaxConnections), hub.config.MaxConnections)
	assert.Equal(t, 30*time.Second, hub.config.HeartbeatInterval)

	hub.Close()
}

func TestHubConnectionManagement(t *testing.T) {
	hub := NewHub(nil, nil)
	defer hub.Close()

	conn := newConnection(hub, nil)
	hub.register <- conn
	assert.Eventually(t, func() bool { return hub.GetConnectionCount() == 1 }, time.Second, 10*time.Millisecond)
	assert.True(t, conn.IsOpen())

	hub.unregister <- conn
	assert.Eventually(t, func() bool { return hub.GetConnectionCount() == 0 }, time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool { return !conn.IsOpen() }, time.Second, 10*time.Millisecond)
	assert.False(t, conn.Send([]byte(`{}`)))
}

func TestHubConnectionLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxConnections = 1
	hub := NewHub(cfg, nil)
	defer hub.Close()

	first := newConnection(hub, nil)
	second := newConnection(hub, nil)
	hub.register <- first
	hub.register <- second

	assert.Eventually(t, func() bool { return !second.IsOpen() }, time.Second, 10*time.Millisecond)
	assert.Equal(t, int64(1), hub.GetConnectionCount())
	assert.True(t, first.IsOpen())
}

func TestSendDropOnFull(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MessageBufferSize = 1
	hub := NewHub(cfg, nil)
	defer hub.Close()

	conn := newConnection(hub, nil)
	assert.True(t, conn.Send([]byte("1")))
	assert.False(t, conn.Send([]byte("2")))

	conn.closeSend()
	conn.closeSend()
	assert.False(t, conn.Send([]byte("3")))
}

func TestSendTimeoutMode(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MessageBufferSize = 1
	cfg.DropOnFull = false
	cfg.SendTimeout = 20 * time.Millisecond
	hub := NewHub(cfg, nil)
	defer hub.Close()

	conn := newConnection(hub, nil)
	require.True(t, conn.Send([]byte("1")))

	start := time.Now()
	assert.False(t, conn.Send([]byte("2")))
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestLiveConnection(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := &recordingHandler{}
	hub := NewHub(nil, recorder)
	defer hub.Close()

	r := gin.New()
	RegisterRoutes(r, NewHandler(hub))
	srv := httptest.NewServer(r)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + RouteWebSocket
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	readReply := func() Reply {
		_ = client.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := client.ReadMessage()
		require.NoError(t, err)
		var rep Reply
		require.NoError(t, json.Unmarshal(data, &rep))
		return rep
	}

	require.NoError(t, client.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)))
	assert.Equal(t, MessageTypePong, readReply().Type)

	// 格式错误的消息不会断开连接
	require.NoError(t, client.WriteMessage(websocket.TextMessage, []byte(`{not json`)))
	assert.Equal(t, MessageTypeError, readReply().Type)

	require.NoError(t, client.WriteMessage(websocket.TextMessage,
		[]byte(`{"type":"location_update","userId":"u1","location":{"lat":31.5,"lng":74.3}}`)))
	rep := readReply()
	assert.Equal(t, "ack", rep.Type)
	assert.Equal(t, "u1", rep.UserID)

	recorder.mu.Lock()
	require.Len(t, recorder.messages, 1)
	assert.Equal(t, 31.5, recorder.messages[0].Location.Lat)
	recorder.mu.Unlock()

	require.NoError(t, client.Close())
	assert.Eventually(t, func() bool {
		_, closed := recorder.counts()
		return closed == 1 && hub.GetConnectionCount() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWebSocketHandler(t *testing.T) {
	hub := NewHub(nil, nil)
	defer hub.Close()

	handler := NewHandler(hub)

	req := httptest.NewRequest("GET", RouteWebSocketStats, nil)
	w := httptest.NewRecorder()

	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(w)
	c.Request = req

	handler.GetStats(c)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &response)
	require.NoError(t, err)
	assert.Contains(t, response, "total_connections")
	assert.Contains(t, response, "drop_on_full")
}

func TestConfigValidation(t *testing.T) {
	assert.NoError(t, ValidateConfig(DefaultConfig()))

	invalidConfig := DefaultConfig()
	invalidConfig.HeartbeatInterval = 60 * time.Second
	invalidConfig.ConnectionTimeout = 30 * time.Second
	assert.Error(t, ValidateConfig(invalidConfig))

	invalidConfig = DefaultConfig()
	invalidConfig.DropOnFull = false
	invalidConfig.SendTimeout = 0
	assert.Error(t, ValidateConfig(invalidConfig))

	assert.Error(t, ValidateConfig(nil))
}

func TestConfigLoading(t *testing.T) {
	t.Setenv(EnvWebSocketMaxConnections, "500")
	t.Setenv(EnvWebSocketDropOnFull, "false")
	t.Setenv(EnvWebSocketSendTimeoutMs, "200")

	config := LoadConfigFromEnv()
	assert.Equal(t, int64(500), config.MaxConnections)
	assert.False(t, config.DropOnFull)
	assert.Equal(t, 200*time.Millisecond, config.SendTimeout)
	assert.Equal(t, DefaultMessageBufferSize, config.MessageBufferSize)
}
