package main

import (
	"context"
	"net/http"
	"strings"

	"SOSRelay/internal/dispatch"
	handlers "SOSRelay/internal/handler"
	"SOSRelay/internal/jobs"
	"SOSRelay/internal/lifecycle"
	"SOSRelay/internal/presence"
	"SOSRelay/internal/proximity"
	"SOSRelay/internal/store"
	"SOSRelay/pkg/cache"
	"SOSRelay/pkg/config"
	"SOSRelay/pkg/errors"
	"SOSRelay/pkg/logger"
	"SOSRelay/pkg/metrics"
	"SOSRelay/pkg/middleware"
	"SOSRelay/pkg/notification"
	"SOSRelay/pkg/scheduler"
	"SOSRelay/pkg/sse"
	"SOSRelay/pkg/util"
	"SOSRelay/pkg/websocket"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

type app struct {
	engine  *gin.Engine
	cors    *cors.Cors
	store   store.Store
	cache   cache.Cache
	hub     *websocket.Hub
	stream  *sse.Hub
	cron    *scheduler.Cron
	metrics *metrics.Metrics
}

// openStore 按 DB_DRIVER 选择后端；gorm 后端启动时自动迁移
func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	driver := strings.ToLower(cfg.DBDriver)
	if driver == "memory" {
		return store.NewMemory(), nil
	}
	db, err := util.InitDatabase(driver, cfg.DSN, cfg.Mode == "debug")
	if err != nil {
		return nil, errors.Infrastructure(err, "open %s database", driver)
	}
	s := store.NewGorm(db)
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func senders(cfg *config.Config) (notification.SMSSender, notification.PushSender, error) {
	var sms notification.SMSSender = notification.LogSMS{}
	var push notification.PushSender = notification.LogPush{}
	if cfg.Twilio.Configured() {
		sms = notification.NewTwilioSMS(cfg.Twilio, nil)
	} else {
		logger.Warn("twilio not configured, SMS will only be logged")
	}
	if cfg.FCM.Configured() {
		fcm, err := notification.NewFCMPush(cfg.FCM, nil)
		if err != nil {
			return nil, nil, err
		}
		push = fcm
	} else {
		logger.Warn("fcm not configured, push will only be logged")
	}
	return sms, push, nil
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	policy, err := lifecycle.ParseAudiencePolicy(cfg.AudiencePolicy)
	if err != nil {
		return nil, err
	}

	s, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	c, err := cache.NewCache(cfg.Cache)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	a := &app{store: s, cache: c, metrics: metrics.NewMetrics(nil)}

	registry := presence.NewRegistry(s)
	wsCfg := websocket.LoadConfigFromEnv()
	if err := websocket.ValidateConfig(wsCfg); err != nil {
		a.Close()
		return nil, err
	}
	a.hub = websocket.NewHub(wsCfg, presence.NewLiveHandler(registry))
	a.stream = sse.NewHub(wsCfg.HeartbeatInterval)

	matcher := proximity.NewMatcher(s)
	sms, push, err := senders(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	d := dispatch.New(sms, push, registry, a.metrics, dispatch.Config{
		SendTimeout:    cfg.SendTimeout,
		MaxConcurrency: cfg.MaxConcurrency,
	})
	manager := lifecycle.NewManager(s, matcher, d, a.metrics, lifecycle.Config{
		AudiencePolicy: policy,
		AlertRadiusKm:  cfg.AlertRadiusKm,
		DispatchBudget: cfg.DispatchBudget,
	})

	a.cron = scheduler.NewCron(nil, cfg.SendTimeout)
	if _, err := a.cron.Add(cfg.StatsSchedule, &jobs.StatsJob{
		Events:   s,
		Presence: registry,
		Conns:    a.hub,
		Stale:    manager,
		Gauges:   a.metrics,
	}); err != nil {
		a.Close()
		return nil, errors.Validation("invalid STATS_SCHEDULE %q: %v", cfg.StatsSchedule, err)
	}
	a.cron.Start()

	if cfg.Mode != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery(), metrics.MonitorMiddleware(a.metrics))

	limiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		Rate:       cfg.RateLimit,
		AddHeaders: true,
	}, nil).WithObserver(a.metrics)
	triggerLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		Rate:       cfg.TriggerLimit,
		Identifier: "ip+route",
		AddHeaders: true,
	}, nil).WithObserver(a.metrics)

	handlers.NewHandlers(s, manager, matcher, registry, handlers.Options{
		APIPrefix:    cfg.APIPrefix,
		RateLimit:    limiter.Middleware(),
		TriggerLimit: triggerLimiter.Middleware(),
		Idempotency: middleware.IdempotencyMiddleware(middleware.IdempotencyConfig{
			TTL:   cfg.IdempotencyTTL,
			Store: c,
		}),
		SMSConfigured:  cfg.Twilio.Configured(),
		PushConfigured: cfg.FCM.Configured(),
		Stream:         a.stream,
	}).Register(engine)

	websocket.RegisterRoutes(engine, websocket.NewHandler(a.hub))
	engine.GET("/metrics", gin.WrapH(a.metrics.Handler()))

	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	a.cors = cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "Authorization", "Idempotency-Key"},
		ExposedHeaders: []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After", middleware.ReplayHeader},
	})
	a.engine = engine
	return a, nil
}

func (a *app) Handler() http.Handler {
	return a.cors.Handler(a.engine)
}

// Close 按依赖的反序释放资源
func (a *app) Close() {
	if a.cron != nil {
		a.cron.Stop()
	}
	if a.stream != nil {
		a.stream.Close()
	}
	if a.hub != nil {
		a.hub.Close()
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			logger.Warn("close cache", zap.Error(err))
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			logger.Warn("close store", zap.Error(err))
		}
	}
}
