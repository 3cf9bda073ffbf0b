package server

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const headerRequestID = "X-Request-ID"

// AccessLog tags every request with a request id and logs it on completion.
// Handlers log through log.Ctx(c.Request.Context()).
func AccessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestID := strings.TrimSpace(c.GetHeader(headerRequestID))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(headerRequestID, requestID)

		logger := log.Logger.With().Str("request_id", requestID).Logger()
		c.Request = c.Request.WithContext(logger.WithContext(c.Request.Context()))

		c.Next()

		status := c.Writer.Status()
		var event *zerolog.Event
		switch {
		case status >= 500:
			event = logger.Error()
		case status >= 400:
			event = logger.Warn()
		default:
			event = logger.Info()
		}
		event.
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Msg("http request")
	}
}

// callerLimiter keeps one token bucket per caller id. Buckets idle for
// longer than idle and already refilled are dropped by Sweep.
type callerLimiter struct {
	limit    rate.Limit
	burst    int
	idle     time.Duration
	now      func() time.Time
	limiters *xsync.MapOf[string, *callerBucket]
}

type callerBucket struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64
}

func newCallerLimiter(perMinute, burst int, idle time.Duration) *callerLimiter {
	if perMinute <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	if idle <= 0 {
		idle = 10 * time.Minute
	}
	return &callerLimiter{
		limit:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    burst,
		idle:     idle,
		now:      time.Now,
		limiters: xsync.NewMapOf[string, *callerBucket](),
	}
}

// Allow reports whether callerID may send another message now. A nil limiter allows everything.
func (l *callerLimiter) Allow(callerID string) bool {
	if l == nil {
		return true
	}
	now := l.now()
	b, _ := l.limiters.LoadOrCompute(callerID, func() *callerBucket {
		return &callerBucket{limiter: rate.NewLimiter(l.limit, l.burst)}
	})
	b.lastSeen.Store(now.UnixNano())
	return b.limiter.AllowN(now, 1)
}

// Sweep drops buckets that are idle and full again, so forgetting them
// cannot loosen the limit. It returns how many were dropped.
func (l *callerLimiter) Sweep() int {
	if l == nil {
		return 0
	}
	now := l.now()
	cutoff := now.Add(-l.idle).UnixNano()
	dropped := 0
	l.limiters.Range(func(callerID string, b *callerBucket) bool {
		if b.lastSeen.Load() > cutoff || b.limiter.TokensAt(now) < float64(l.burst) {
			return true
		}
		removed := false
		l.limiters.Compute(callerID, func(cur *callerBucket, loaded bool) (*callerBucket, bool) {
			if !loaded {
				return cur, true
			}
			// Keep a bucket touched after the Range snapshot.
			removed = cur.lastSeen.Load() <= cutoff
			return cur, removed
		})
		if removed {
			dropped++
		}
		return true
	})
	return dropped
}

func (l *callerLimiter) Len() int {
	if l == nil {
		return 0
	}
	return l.limiters.Size()
}

// runSweeper calls Sweep every idle period until ctx is done.
func (l *callerLimiter) runSweeper(ctx context.Context) {
	if l == nil {
		return
	}
	ticker := time.NewTicker(l.idle)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := l.Sweep(); n > 0 {
				log.Debug().Int("dropped", n).Int("remaining", l.Len()).Msg("rate limiter sweep")
			}
		}
	}
}
