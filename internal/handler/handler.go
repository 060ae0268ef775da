package handlers

import (
	"SOSRelay/internal/lifecycle"
	"SOSRelay/internal/presence"
	"SOSRelay/internal/proximity"
	"SOSRelay/internal/store"
	"SOSRelay/pkg/sse"

	"github.com/gin-gonic/gin"
)

// Options 可选的中间件与渠道状态，零值即可运行
type Options struct {
	APIPrefix string
	// RateLimit 作用于所有写接口
	RateLimit gin.HandlerFunc
	// TriggerLimit 与 Idempotency 只作用于 POST /sos/trigger
	TriggerLimit gin.HandlerFunc
	Idempotency  gin.HandlerFunc

	SMSConfigured  bool
	PushConfigured bool

	// Stream 为空时不开放 SSE 通道
	Stream *sse.Hub
}

type Handlers struct {
	store    store.Store
	manager  *lifecycle.Manager
	matcher  *proximity.Matcher
	presence *presence.Registry
	opts     Options
}

func NewHandlers(s store.Store, manager *lifecycle.Manager, matcher *proximity.Matcher, registry *presence.Registry, opts Options) *Handlers {
	if opts.APIPrefix == "" {
		opts.APIPrefix = "/api"
	}
	return &Handlers{
		store:    s,
		manager:  manager,
		matcher:  matcher,
		presence: registry,
		opts:     opts,
	}
}

func (h *Handlers) Register(engine *gin.Engine) {
	r := engine.Group(h.opts.APIPrefix)

	// Register System Module Routes
	h.registerSystemRoutes(r)

	// Register Business Module Routes
	h.registerUserRoutes(r)
	h.registerSosRoutes(r)
	h.registerAdminRoutes(r)
}

// writes 返回写接口需要的中间件链
func (h *Handlers) writes(extra ...gin.HandlerFunc) []gin.HandlerFunc {
	var chain []gin.HandlerFunc
	if h.opts.RateLimit != nil {
		chain = append(chain, h.opts.RateLimit)
	}
	for _, m := range extra {
		if m != nil {
			chain = append(chain, m)
		}
	}
	return chain
}

// with 复制一份链再追加，多个路由共享同一条链时互不覆盖
func with(chain []gin.HandlerFunc, handler gin.HandlerFunc) []gin.HandlerFunc {
	out := make([]gin.HandlerFunc, 0, len(chain)+1)
	return append(append(out, chain...), handler)
}

// User Module
func (h *Handlers) registerUserRoutes(r *gin.RouterGroup) {
	users := r.Group("users")
	w := h.writes()
	{
		users.POST("/register", with(w, h.handleRegisterUser)...)

		users.GET("/nearby", h.handleNearbyUsers)

		users.GET("/phone/:phone", h.handleGetUserByPhone)

		users.GET("/:id", h.handleGetUser)

		users.PUT("/:id", with(w, h.handleUpdateUser)...)

		users.POST("/:id/location", with(w, h.handleUpdateLocation)...)

		users.POST("/:id/push-token", with(w, h.handleUpdatePushToken)...)

		users.PUT("/:id/availability", with(w, h.handleUpdateAvailability)...)

		users.GET("/:id/stats", h.handleUserStats)

		users.GET("/:id/stream", h.handleStream)
	}
}

// SOS Module
func (h *Handlers) registerSosRoutes(r *gin.RouterGroup) {
	sos := r.Group("sos")
	w := h.writes()
	{
		sos.POST("/trigger", with(h.writes(h.opts.TriggerLimit, h.opts.Idempotency), h.handleTrigger)...)

		sos.POST("/respond", with(w, h.handleRespond)...)

		sos.GET("/nearby", h.handleNearbyEvents)

		sos.GET("/:id", h.handleEventDetails)

		sos.POST("/:id/resolve", with(w, h.handleResolve)...)

		sos.POST("/:id/cancel", with(w, h.handleCancel)...)

		sos.PATCH("/responses/:id", with(w, h.handleUpdateResponse)...)
	}
}

func (h *Handlers) registerSystemRoutes(r *gin.RouterGroup) {
	r.GET("/health", h.HealthCheck)
}

func (h *Handlers) registerAdminRoutes(r *gin.RouterGroup) {
	admin := r.Group("admin")
	{
		admin.GET("/stats", h.handleAdminStats)

		admin.GET("/users", h.handleAdminUsers)

		admin.GET("/sos-events", h.handleAdminEvents)

		admin.GET("/presence", h.handleAdminPresence)
	}
}
