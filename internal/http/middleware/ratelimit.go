package middleware

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"earning_bot/internal/logger"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// Limiter решает, пропускать ли запрос с данным ключом
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// Counter - атомарный счетчик окна (redis INCR + EXPIRE)
type Counter interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

// RedisLimiter - фиксированное окно в redis, общее для всех инстансов
type RedisLimiter struct {
	counter Counter
	limit   int64
	window  time.Duration
	now     func() time.Time
}

func NewRedisLimiter(counter Counter, perMinute int) *RedisLimiter {
	return &RedisLimiter{counter: counter, limit: int64(perMinute), window: time.Minute, now: time.Now}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	bucket := l.now().Unix() / int64(l.window/time.Second)
	n, err := l.counter.Incr(ctx, "rl:"+key+":"+strconv.FormatInt(bucket, 10), l.window)
	if err != nil {
		return true, err
	}
	return n <= l.limit, nil
}

// LocalLimiter - token bucket на процесс, когда redis нет
type LocalLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
}

func NewLocalLimiter(perMinute int) *LocalLimiter {
	if perMinute <= 0 {
		perMinute = 60
	}
	return &LocalLimiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(float64(perMinute) / 60),
		burst:    perMinute,
	}
}

func (l *LocalLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	lim, ok := l.limiters[key]
	if !ok {
		// простая защита от разрастания карты
		if len(l.limiters) > 10000 {
			l.limiters = make(map[string]*rate.Limiter)
		}
		lim = rate.NewLimiter(l.rate, l.burst)
		l.limiters[key] = lim
	}
	l.mu.Unlock()
	return lim.Allow(), nil
}

// RateLimit режет частоту по аккаунту, а до авторизации по IP.
// Если лимитер недоступен, запрос пропускается.
func RateLimit(l Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := "ip:" + c.ClientIP()
		if id, ok := AccountID(c); ok {
			key = "acc:" + strconv.FormatInt(id, 10)
		}

		allowed, err := l.Allow(c.Request.Context(), key)
		if err != nil {
			logger.WithContext(c.Request.Context()).Warn("rate limiter unavailable", "error", err)
		}
		if !allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}
