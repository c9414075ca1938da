package middlewares

import (
	"net/http"
	"sync"
	"time"

	"github.com/kxrica/go-skyvault/internal/pkg/xerr"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// 超过这个时长不活跃的 IP 条目会被清理,避免 map 无限增长
const limiterCleanupInterval = 10 * time.Minute

// RateLimiter 按客户端 IP 维护独立的令牌桶
// 后台清理协程由 Stop 终止,随服务器优雅关机一起停掉
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*ipLimiterEntry
	r        rate.Limit
	burst    int
	done     chan struct{}
}

type ipLimiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter 创建限流器,rps<=0 表示不限速
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	l := &RateLimiter{
		limiters: make(map[string]*ipLimiterEntry),
		r:        limit,
		burst:    burst,
		done:     make(chan struct{}),
	}
	go l.cleanupLoop()
	return l
}

// Middleware 返回挂到路由组上的限流中间件
func (l *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.get(c.ClientIP()).Allow() {
			xerr.AbortWithError(c, http.StatusTooManyRequests, xerr.RateLimitedCode, "请求过于频繁,请稍后重试")
			return
		}
		c.Next()
	}
}

// Stop 终止后台清理协程
func (l *RateLimiter) Stop() {
	close(l.done)
}

func (l *RateLimiter) get(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.limiters[ip]
	if !ok {
		entry = &ipLimiterEntry{limiter: rate.NewLimiter(l.r, l.burst)}
		l.limiters[ip] = entry
	}
	entry.lastSeen = time.Now()
	return entry.limiter
}

func (l *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(limiterCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			l.mu.Lock()
			for ip, entry := range l.limiters {
				if time.Since(entry.lastSeen) > limiterCleanupInterval {
					delete(l.limiters, ip)
				}
			}
			l.mu.Unlock()
		}
	}
}
