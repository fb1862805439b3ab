package utils

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Revocations remembers logged-out session tokens until they would have expired anyway.
// Redis is preferred so every instance sees the logout; memory is the single-instance fallback.
type Revocations struct {
	rc  *redis.Client
	mu  sync.Mutex
	mem map[string]time.Time
	now func() time.Time
}

// NewRevocations creates a store; rc may be nil.
func NewRevocations(rc *redis.Client) *Revocations {
	return &Revocations{rc: rc, mem: map[string]time.Time{}, now: time.Now}
}

func revokedKey(token string) string {
	return "session:revoked:" + token
}

// Revoke marks token as unusable until expiresAt.
func (r *Revocations) Revoke(ctx context.Context, token string, expiresAt time.Time) {
	ttl := expiresAt.Sub(r.now())
	if ttl <= 0 {
		return
	}
	if r.rc != nil {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := r.rc.Set(ctx, revokedKey(token), "1", ttl).Err(); err == nil {
			return
		}
	}
	r.mu.Lock()
	r.mem[token] = expiresAt
	r.sweepLocked()
	r.mu.Unlock()
}

// IsRevoked reports whether token was logged out. Redis errors fail open.
func (r *Revocations) IsRevoked(ctx context.Context, token string) bool {
	if r.rc != nil {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		n, err := r.rc.Exists(ctx, revokedKey(token)).Result()
		if err == nil && n > 0 {
			return true
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	expiresAt, ok := r.mem[token]
	if !ok {
		return false
	}
	if r.now().After(expiresAt) {
		delete(r.mem, token)
		return false
	}
	return true
}

func (r *Revocations) sweepLocked() {
	now := r.now()
	for token, expiresAt := range r.mem {
		if now.After(expiresAt) {
			delete(r.mem, token)
		}
	}
}
