package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/cppla/blog/utils"
)

const limiterIdle = 5 * time.Minute

type rateLimiter struct {
	limiter *rate.Limiter
	expires time.Time
}

// limiterStore keeps one token bucket per client IP.
type limiterStore struct {
	mu       sync.Mutex
	limiters map[string]*rateLimiter
	limit    rate.Limit
	burst    int
}

// RateLimitMiddleware applies a simple IP based rate limiter using a token bucket.
func RateLimitMiddleware(perMinute int) gin.HandlerFunc {
	perMinute = max(perMinute, 1)
	store := &limiterStore{
		limiters: map[string]*rateLimiter{},
		limit:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    max(perMinute/2, 1),
	}

	return func(ctx *gin.Context) {
		if !store.allow(ctx.ClientIP()) {
			utils.Sugar.Infow("rate limit exceeded", "ip", ctx.ClientIP(), "path", ctx.Request.URL.Path)
			if utils.WantsHTML(ctx) {
				ctx.String(http.StatusTooManyRequests, "Too many requests, slow down.")
			} else {
				utils.Error(ctx, http.StatusTooManyRequests, 42901, "rate limit exceeded")
			}
			ctx.Abort()
			return
		}
		ctx.Next()
	}
}

func (s *limiterStore) allow(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for k, l := range s.limiters {
		if now.After(l.expires) {
			delete(s.limiters, k)
		}
	}

	l, ok := s.limiters[key]
	if !ok {
		l = &rateLimiter{limiter: rate.NewLimiter(s.limit, s.burst)}
		s.limiters[key] = l
	}
	l.expires = now.Add(limiterIdle)
	return l.limiter.Allow()
}
