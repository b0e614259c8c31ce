package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/apierror"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// ── Fixed-window limiter ──────────────────────────────────────────────────────

type window struct {
	count int
	end   time.Time
}

// Limiter counts requests per client IP in fixed windows.
type Limiter struct {
	name    string
	limit   int
	period  time.Duration
	message string

	mu      sync.Mutex
	entries map[string]*window
	now     func() time.Time
}

func NewLimiter(name string, limit int, period time.Duration, message string) *Limiter {
	return &Limiter{
		name:    name,
		limit:   limit,
		period:  period,
		message: message,
		entries: make(map[string]*window),
		now:     time.Now,
	}
}

// NewLoginLimiter allows 20 login attempts per minute per IP.
func NewLoginLimiter() *Limiter {
	return NewLimiter("login", 20, time.Minute, "Muitas tentativas de login. Tente novamente em 1 minuto.")
}

// NewAPILimiter is the general limiter of the authenticated API.
func NewAPILimiter(limit int, period time.Duration) *Limiter {
	return NewLimiter("api", limit, period, "Muitas requisicoes. Tente novamente em instantes.")
}

// allow reports whether key may proceed and when its window ends.
func (l *Limiter) allow(key string) (bool, time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.entries[key]
	if !ok || now.After(w.end) {
		w = &window{end: now.Add(l.period)}
		l.entries[key] = w
	}
	w.count++
	return w.count <= l.limit, w.end
}

func (l *Limiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, end := l.allow(c.ClientIP())
		if !ok {
			c.Header("Retry-After", end.UTC().Format(http.TimeFormat))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, apierror.New(l.message))
			return
		}
		c.Next()
	}
}

// StartPurge drops expired windows every interval until ctx is done, so IPs
// that never return do not accumulate.
func (l *Limiter) StartPurge(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := l.purge(); n > 0 {
					log.Debug().Str("limiter", l.name).Int("purged", n).Msg("rate limiter purged")
				}
			}
		}
	}()
}

func (l *Limiter) purge() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	n := 0
	for k, w := range l.entries {
		if now.After(w.end) {
			delete(l.entries, k)
			n++
		}
	}
	return n
}
