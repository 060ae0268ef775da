package util

import (
	"hash/fnv"
	"sync"
)

// StripedMutex 按 key 哈希到固定数量的锁上，同一 key 的操作串行，不同 key 大概率并行
type StripedMutex struct {
	locks []sync.Mutex
}

func NewStripedMutex(n int) *StripedMutex {
	if n <= 0 {
		n = 1
	}
	return &StripedMutex{locks: make([]sync.Mutex, n)}
}

// Lock 锁住 key 所在分片并返回解锁函数
func (s *StripedMutex) Lock(key string) func() {
	m := &s.locks[s.index(key)]
	m.Lock()
	return m.Unlock
}

func (s *StripedMutex) index(key string) int {
	if len(s.locks) == 1 {
		return 0
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(s.locks)))
}
