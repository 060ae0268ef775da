package cache

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// lruCache 容量有界的本地缓存，超出 MaxSize 时淘汰最久未使用的键
type lruCache struct {
	// Contains+Add 两步之间需要互斥才能实现 SetNX
	mu    sync.Mutex
	cache *expirable.LRU[string, []byte]
}

// NewLRUCache 创建基于 golang-lru expirable 的本地缓存。
// expirable.LRU 只支持统一的过期时间，单次调用传入的 expiration 会被忽略。
func NewLRUCache(config LocalConfig) Cache {
	size := config.MaxSize
	if size <= 0 {
		size = 1000
	}
	return &lruCache{
		cache: expirable.NewLRU[string, []byte](size, nil, config.DefaultExpiration),
	}
}

// Get 获取缓存值
func (lc *lruCache) Get(ctx context.Context, key string) ([]byte, bool) {
	return lc.cache.Get(key)
}

// Set 设置缓存值
func (lc *lruCache) Set(ctx context.Context, key string, value []byte, _ time.Duration) error {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	lc.cache.Add(key, value)
	return nil
}

// SetNX 仅当键不存在时设置
func (lc *lruCache) SetNX(ctx context.Context, key string, value []byte, _ time.Duration) (bool, error) {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	if _, ok := lc.cache.Get(key); ok {
		return false, nil
	}
	lc.cache.Add(key, value)
	return true, nil
}

// Delete 删除缓存
func (lc *lruCache) Delete(ctx context.Context, key string) error {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	lc.cache.Remove(key)
	return nil
}

// Exists 检查键是否存在
func (lc *lruCache) Exists(ctx context.Context, key string) bool {
	_, ok := lc.cache.Peek(key)
	return ok
}

// Close 清空缓存
func (lc *lruCache) Close() error {
	lc.cache.Purge()
	return nil
}
