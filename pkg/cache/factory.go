package cache

import (
	"fmt"
	"strings"
)

// NewCache 创建缓存实例
func NewCache(config Config) (Cache, error) {
	switch strings.ToLower(strings.TrimSpace(config.Type)) {
	case "", TypeGoCache:
		return NewGoCache(config.Local), nil
	case TypeLRU:
		return NewLRUCache(config.Local), nil
	case TypeRedis:
		return NewRedisCache(config.Redis)
	default:
		return nil, fmt.Errorf("unsupported cache type: %s", config.Type)
	}
}
