package notepad

import (
	"context"
	"sync"
)

// MemoryIDCache はプロセス内で云词本IDを保持するIDCache。
type MemoryIDCache struct {
	mu sync.RWMutex
	id string
}

// NewMemoryIDCache は空のMemoryIDCacheを生成する。
func NewMemoryIDCache() *MemoryIDCache {
	return &MemoryIDCache{}
}

// Get は保持しているIDを返す。
func (c *MemoryIDCache) Get(ctx context.Context) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.id, nil
}

// Set はIDを保持する。
func (c *MemoryIDCache) Set(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.id = id
	return nil
}
