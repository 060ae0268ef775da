package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"strings"
	"time"

	"SOSRelay/pkg/cache"
	"SOSRelay/pkg/errors"
	"SOSRelay/pkg/logger"
	"SOSRelay/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ReplayHeader 标记响应来自幂等缓存
const ReplayHeader = "Idempotent-Replay"

type IdempotencyConfig struct {
	HeaderName string        // Idempotency-Key 的请求头名
	TTL        time.Duration // 重复请求在此窗口内直接回放首次响应
	Store      cache.Cache
	KeyPrefix  string
	// HashBody 为 true 时，没有请求头的请求以 路由+请求体 的哈希去重；
	// 否则直接放行。同一请求体可能是一次合法的新提交时不要开启
	HashBody bool
}

// pending 占位值，表示首个请求仍在处理中
var pending = []byte("pending")

type storedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"contentType"`
	Body        []byte `json:"body"`
}

// bodyRecorder 复制写出的响应体以便缓存
type bodyRecorder struct {
	gin.ResponseWriter
	buf bytes.Buffer
}

func (w *bodyRecorder) Write(b []byte) (int, error) {
	w.buf.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *bodyRecorder) WriteString(s string) (int, error) {
	w.buf.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// IdempotencyMiddleware 去重短时间内带相同 Idempotency-Key 的重复提交。
// 只缓存成功响应，4xx 与 5xx 都允许客户端修正后重试。
func IdempotencyMiddleware(cfg IdempotencyConfig) gin.HandlerFunc {
	if cfg.HeaderName == "" {
		cfg.HeaderName = "Idempotency-Key"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 10 * time.Second
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "idem:"
	}
	store := cfg.Store
	if store == nil {
		store = cache.NewGoCache(cache.LocalConfig{DefaultExpiration: cfg.TTL, CleanupInterval: time.Minute})
	}

	return func(c *gin.Context) {
		key := strings.TrimSpace(c.GetHeader(cfg.HeaderName))
		if key == "" && !cfg.HashBody {
			c.Next()
			return
		}
		if key == "" {
			b, err := io.ReadAll(c.Request.Body)
			if err != nil {
				response.Error(c, errors.Validation("unreadable request body"))
				return
			}
			c.Request.Body = io.NopCloser(bytes.NewReader(b))
			h := sha256.Sum256(append([]byte(routeOf(c)+"\n"), b...))
			key = hex.EncodeToString(h[:])
		}
		key = cfg.KeyPrefix + key
		ctx := c.Request.Context()

		set, err := store.SetNX(ctx, key, pending, cfg.TTL)
		if err != nil {
			// 缓存不可用时放行
			logger.Warn("idempotency store failed", zap.Error(err))
			c.Next()
			return
		}
		if !set {
			replay(c, store, key)
			return
		}

		rec := &bodyRecorder{ResponseWriter: c.Writer}
		c.Writer = rec
		c.Next()

		status := rec.Status()
		if status >= 400 {
			_ = store.Delete(ctx, key)
			return
		}
		data, err := json.Marshal(storedResponse{
			Status:      status,
			ContentType: rec.Header().Get("Content-Type"),
			Body:        rec.buf.Bytes(),
		})
		if err != nil {
			_ = store.Delete(ctx, key)
			return
		}
		if err := store.Set(ctx, key, data, cfg.TTL); err != nil {
			logger.Warn("store idempotent response", zap.Error(err))
		}
	}
}

func replay(c *gin.Context, store cache.Cache, key string) {
	raw, ok := store.Get(c.Request.Context(), key)
	if !ok || bytes.Equal(raw, pending) {
		response.Error(c, errors.Conflict("duplicate request is still being processed"))
		return
	}
	var stored storedResponse
	if err := json.Unmarshal(raw, &stored); err != nil {
		response.Error(c, errors.Conflict("duplicate request"))
		return
	}
	c.Header(ReplayHeader, "true")
	c.Data(stored.Status, stored.ContentType, stored.Body)
	c.Abort()
}
