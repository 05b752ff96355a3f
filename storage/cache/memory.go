package cache

import (
	"context"
	"sync"
	"time"

	"github.com/trezcool/quizforge/core"
)

// MemoryBlacklist is a process-local TokenBlacklist, used when Redis is not configured and in tests.
type MemoryBlacklist struct {
	mu      sync.Mutex
	revoked map[string]time.Time // {jti: expiry}
}

var _ core.TokenBlacklist = (*MemoryBlacklist)(nil)

func NewMemoryBlacklist() *MemoryBlacklist {
	return &MemoryBlacklist{revoked: make(map[string]time.Time)}
}

func (b *MemoryBlacklist) Revoke(_ context.Context, jti string, ttl time.Duration) error {
	if jti == "" || ttl <= 0 {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.purge()
	b.revoked[jti] = core.NowFunc().Add(ttl)
	return nil
}

func (b *MemoryBlacklist) IsRevoked(_ context.Context, jti string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	exp, ok := b.revoked[jti]
	if !ok {
		return false, nil
	}
	if !core.NowFunc().Before(exp) {
		delete(b.revoked, jti)
		return false, nil
	}
	return true, nil
}

// purge drops expired entries; callers hold mu.
func (b *MemoryBlacklist) purge() {
	now := core.NowFunc()
	for jti, exp := range b.revoked {
		if !now.Before(exp) {
			delete(b.revoked, jti)
		}
	}
}
