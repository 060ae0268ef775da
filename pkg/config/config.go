package config

import (
	"log"
	"os"
	"time"

	"SOSRelay/pkg/cache"
	"SOSRelay/pkg/logger"
	"SOSRelay/pkg/notification"
	"SOSRelay/pkg/util"
)

// config/config.go
type Config struct {
	DBDriver    string `env:"DB_DRIVER"` // memory|sqlite|mysql|pg
	DSN         string `env:"DSN"`
	Log         logger.LogConfig
	Addr        string   `env:"ADDR"`
	Mode        string   `env:"MODE"`
	APIPrefix   string   `env:"API_PREFIX"`
	CORSOrigins []string `env:"CORS_ORIGINS"`

	Twilio notification.TwilioConfig
	FCM    notification.FCMConfig
	Cache  cache.Config

	AudiencePolicy string        `env:"SOS_AUDIENCE_POLICY"` // all|radius
	AlertRadiusKm  float64       `env:"SOS_ALERT_RADIUS_KM"`
	SendTimeout    time.Duration `env:"SOS_SEND_TIMEOUT"`
	DispatchBudget time.Duration `env:"SOS_DISPATCH_BUDGET"`
	MaxConcurrency int           `env:"SOS_MAX_CONCURRENCY"`

	RateLimit      string        `env:"RATE_LIMIT"`         // 全局，如 "120-M"
	TriggerLimit   string        `env:"SOS_TRIGGER_LIMIT"`  // 触发接口单独限流
	IdempotencyTTL time.Duration `env:"SOS_IDEMPOTENCY_TTL"`
	StatsSchedule  string        `env:"STATS_SCHEDULE"`
}

var GlobalConfig *Config

func Load() error {
	// 1. 根据环境加载 .env 文件
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development" // 默认使用开发环境
	}
	err := util.LoadEnv(env)
	if err != nil {
		log.Printf("Failed to load .env file: %v", err)
	}

	// 2. 加载全局配置
	GlobalConfig = FromEnv()
	return nil
}

// FromEnv 从当前环境变量构造配置，未设置的项取默认值
func FromEnv() *Config {
	cacheCfg := cache.DefaultConfig()
	cacheCfg.Type = util.GetEnvOr("CACHE_TYPE", cacheCfg.Type)
	cacheCfg.Redis.Addr = util.GetEnvOr("REDIS_ADDR", cacheCfg.Redis.Addr)
	cacheCfg.Redis.Password = util.GetEnv("REDIS_PASSWORD")
	cacheCfg.Redis.DB = int(util.GetIntEnv("REDIS_DB"))
	if n := int(util.GetIntEnv("LOCAL_CACHE_MAX_SIZE")); n > 0 {
		cacheCfg.Local.MaxSize = n
	}

	return &Config{
		DBDriver:    util.GetEnvOr("DB_DRIVER", "memory"),
		DSN:         util.GetEnv("DSN"),
		Addr:        util.GetEnvOr("ADDR", ":8080"),
		Mode:        util.GetEnvOr("MODE", "release"),
		APIPrefix:   util.GetEnvOr("API_PREFIX", "/api"),
		CORSOrigins: util.GetListEnv("CORS_ORIGINS"),
		Log: logger.LogConfig{
			Level:      util.GetEnv("LOG_LEVEL"),
			Filename:   util.GetEnv("LOG_FILENAME"),
			MaxSize:    int(util.GetIntEnv("LOG_MAX_SIZE")),
			MaxAge:     int(util.GetIntEnv("LOG_MAX_AGE")),
			MaxBackups: int(util.GetIntEnv("LOG_MAX_BACKUPS")),
		},
		Twilio: notification.TwilioConfig{
			AccountSID:    util.GetEnv("TWILIO_ACCOUNT_SID"),
			AuthToken:     util.GetEnv("TWILIO_AUTH_TOKEN"),
			FromNumber:    util.GetEnv("TWILIO_PHONE_NUMBER"),
			BaseURL:       util.GetEnv("TWILIO_BASE_URL"),
			RatePerSecond: util.GetFloatEnv("TWILIO_RATE_PER_SECOND"),
		},
		FCM: notification.FCMConfig{
			ProjectID:       util.GetEnv("FCM_PROJECT_ID"),
			CredentialsFile: util.GetEnvOr("FCM_CREDENTIALS_FILE", util.GetEnv("GOOGLE_APPLICATION_CREDENTIALS")),
			Endpoint:        util.GetEnv("FCM_ENDPOINT"),
		},
		Cache:          cacheCfg,
		AudiencePolicy: util.GetEnvOr("SOS_AUDIENCE_POLICY", "all"),
		AlertRadiusKm:  floatOr(util.GetFloatEnv("SOS_ALERT_RADIUS_KM"), 2),
		SendTimeout:    durationOr(util.GetDurationEnv("SOS_SEND_TIMEOUT"), 3*time.Second),
		DispatchBudget: durationOr(util.GetDurationEnv("SOS_DISPATCH_BUDGET"), 5*time.Second),
		MaxConcurrency: intOr(int(util.GetIntEnv("SOS_MAX_CONCURRENCY")), 32),
		RateLimit:      util.GetEnvOr("RATE_LIMIT", "300-M"),
		TriggerLimit:   util.GetEnvOr("SOS_TRIGGER_LIMIT", "10-M"),
		IdempotencyTTL: durationOr(util.GetDurationEnv("SOS_IDEMPOTENCY_TTL"), 10*time.Second),
		StatsSchedule:  util.GetEnvOr("STATS_SCHEDULE", "@every 30s"),
	}
}

func floatOr(v, def float64) float64 {
	if v <= 0 {
		return def
	}
	return v
}

func durationOr(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func intOr(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
