package cache

import (
	"context"
	"time"
)

// Cache 缓存接口，值统一为字节串，便于各后端一致序列化
type Cache interface {
	// Get 获取缓存值
	Get(ctx context.Context, key string) ([]byte, bool)

	// Set 设置缓存值，expiration<=0 使用后端默认过期时间
	Set(ctx context.Context, key string, value []byte, expiration time.Duration) error

	// SetNX 仅当键不存在时设置，返回是否设置成功
	SetNX(ctx context.Context, key string, value []byte, expiration time.Duration) (bool, error)

	// Delete 删除缓存
	Delete(ctx context.Context, key string) error

	// Exists 检查键是否存在
	Exists(ctx context.Context, key string) bool

	// Close 关闭缓存连接
	Close() error
}

// 缓存类型
const (
	TypeGoCache = "gocache"
	TypeLRU     = "lru"
	TypeRedis   = "redis"
)

// Config 缓存配置
type Config struct {
	// 缓存类型: "gocache"、"lru" 或 "redis"
	Type string `json:"type"`

	// Redis配置
	Redis RedisConfig `json:"redis"`

	// 本地缓存配置
	Local LocalConfig `json:"local"`
}

// RedisConfig Redis配置
type RedisConfig struct {
	Addr         string        `json:"addr"`
	Password     string        `json:"password"`
	DB           int           `json:"db"`
	PoolSize     int           `json:"pool_size"`
	MinIdleConns int           `json:"min_idle_conns"`
	DialTimeout  time.Duration `json:"dial_timeout"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	// KeyPrefix 多实例共享同一 Redis 时用于隔离
	KeyPrefix string `json:"key_prefix"`
}

// LocalConfig 本地缓存配置
type LocalConfig struct {
	// 最大缓存项数，仅 lru 后端生效
	MaxSize int `json:"max_size"`

	// 默认过期时间；lru 后端所有键共用此过期时间
	DefaultExpiration time.Duration `json:"default_expiration"`

	// 清理间隔，仅 gocache 后端生效
	CleanupInterval time.Duration `json:"cleanup_interval"`
}

// DefaultConfig 默认使用进程内 go-cache
func DefaultConfig() Config {
	return Config{
		Type: TypeGoCache,
		Redis: RedisConfig{
			Addr:         "localhost:6379",
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
			KeyPrefix:    "sosrelay:",
		},
		Local: LocalConfig{
			MaxSize:           10000,
			DefaultExpiration: 5 * time.Minute,
			CleanupInterval:   10 * time.Minute,
		},
	}
}
