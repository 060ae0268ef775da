package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"SOSRelay/pkg/cache"
	"SOSRelay/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type observer struct{ allow, deny atomic.Int32 }

func (o *observer) OnAllow(string) { o.allow.Add(1) }
func (o *observer) OnDeny(string)  { o.deny.Add(1) }

func TestRateLimiter(t *testing.T) {
	obs := &observer{}
	rl := NewRateLimiter(RateLimiterConfig{
		Rate:          "100-M",
		PerRouteRates: map[string]string{"/limited": "2-M"},
		SkipPaths:     []string{"/health"},
		AddHeaders:    true,
	}, nil).WithObserver(obs)

	r := gin.New()
	r.Use(rl.Middleware())
	r.GET("/limited", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.GET("/health", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	do := func(path string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.RemoteAddr = "10.0.0.1:1234"
		r.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusOK, do("/limited").Code)
	w := do("/limited")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))

	w = do("/limited")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), `"code":42901`)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, do("/health").Code)
	}
	assert.Equal(t, int32(2), obs.allow.Load())
	assert.Equal(t, int32(1), obs.deny.Load())
}

func TestIdempotencyReplaysFirstResponse(t *testing.T) {
	var calls atomic.Int32
	r := gin.New()
	r.POST("/sos/trigger", IdempotencyMiddleware(IdempotencyConfig{TTL: time.Minute}), func(c *gin.Context) {
		n := calls.Add(1)
		c.JSON(http.StatusCreated, gin.H{"call": n})
	})

	first := post(r, "/sos/trigger", `{"userId":"a"}`, "k1")
	require.Equal(t, http.StatusCreated, first.Code)
	second := post(r, "/sos/trigger", `{"userId":"a"}`, "k1")
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "true", second.Header().Get(ReplayHeader))
	assert.Equal(t, int32(1), calls.Load())

	// 键相同即回放，与请求体无关
	post(r, "/sos/trigger", `{"userId":"b"}`, "k1")
	assert.Equal(t, int32(1), calls.Load())

	other := post(r, "/sos/trigger", `{"userId":"a"}`, "k2")
	assert.Equal(t, http.StatusCreated, other.Code)
	assert.Equal(t, int32(2), calls.Load())
}

func TestIdempotencyWithoutKey(t *testing.T) {
	var calls atomic.Int32
	handler := func(c *gin.Context) {
		calls.Add(1)
		c.JSON(http.StatusCreated, gin.H{})
	}
	r := gin.New()
	r.POST("/keyed", IdempotencyMiddleware(IdempotencyConfig{TTL: time.Minute}), handler)
	r.POST("/hashed", IdempotencyMiddleware(IdempotencyConfig{TTL: time.Minute, HashBody: true}), handler)

	// 相同请求体可能是一次新的提交，默认不去重
	post(r, "/keyed", `{"userId":"a"}`, "")
	post(r, "/keyed", `{"userId":"a"}`, "")
	assert.Equal(t, int32(2), calls.Load())

	post(r, "/hashed", `{"userId":"a"}`, "")
	replayed := post(r, "/hashed", `{"userId":"a"}`, "")
	assert.Equal(t, "true", replayed.Header().Get(ReplayHeader))
	post(r, "/hashed", `{"userId":"b"}`, "")
	assert.Equal(t, int32(4), calls.Load())
}

func TestIdempotencyDoesNotCacheClientErrors(t *testing.T) {
	var calls atomic.Int32
	r := gin.New()
	r.POST("/x", IdempotencyMiddleware(IdempotencyConfig{TTL: time.Minute}), func(c *gin.Context) {
		if calls.Add(1) == 1 {
			c.JSON(http.StatusConflict, gin.H{})
			return
		}
		c.JSON(http.StatusCreated, gin.H{})
	})

	assert.Equal(t, http.StatusConflict, post(r, "/x", `{}`, "k").Code)
	retried := post(r, "/x", `{}`, "k")
	assert.Equal(t, http.StatusCreated, retried.Code)
	assert.Empty(t, retried.Header().Get(ReplayHeader))
	assert.Equal(t, int32(2), calls.Load())
}

func post(r http.Handler, path, body, key string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestIdempotencyInFlightAndServerErrors(t *testing.T) {
	store := cache.NewGoCache(cache.LocalConfig{DefaultExpiration: time.Minute, CleanupInterval: time.Minute})
	var calls atomic.Int32
	r := gin.New()
	r.POST("/x", IdempotencyMiddleware(IdempotencyConfig{Store: store}), func(c *gin.Context) {
		calls.Add(1)
		c.Status(http.StatusServiceUnavailable)
	})

	req := func(key string) int {
		w := httptest.NewRecorder()
		rq := httptest.NewRequest(http.MethodPost, "/x", nil)
		rq.Header.Set("Idempotency-Key", key)
		r.ServeHTTP(w, rq)
		return w.Code
	}

	assert.Equal(t, http.StatusServiceUnavailable, req("retry"))
	assert.Equal(t, http.StatusServiceUnavailable, req("retry"))
	assert.Equal(t, int32(2), calls.Load(), "5xx responses are not cached")

	ok, err := store.SetNX(context.Background(), "idem:busy", pending, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, errors.HTTPStatus(errors.CodeConflict), req("busy"))
}
