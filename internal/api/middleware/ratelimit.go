package middleware

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kiranshivaraju/rightsdesk/internal/api/response"
	"github.com/kiranshivaraju/rightsdesk/internal/cache"
	"github.com/kiranshivaraju/rightsdesk/internal/ratelimit"
)

const (
	defaultRequestsPerMinute = 120
	rateLimitWindow          = 60 * time.Second
)

// RateLimit provides fixed-window rate limiting via Redis. Requests are keyed by the
// session in the URL, or by the client address outside a session. When Redis fails the
// in-process fallback limiter decides.
type RateLimit struct {
	cache          cache.Cache
	requestsPerMin int
	fallback       *ratelimit.MapLimiter
	now            func() time.Time
}

// NewRateLimit creates a new RateLimit middleware. A nil fallback fails open.
func NewRateLimit(c cache.Cache, requestsPerMin int, fallback *ratelimit.MapLimiter) *RateLimit {
	if requestsPerMin <= 0 {
		requestsPerMin = defaultRequestsPerMinute
	}
	return &RateLimit{cache: c, requestsPerMin: requestsPerMin, fallback: fallback, now: time.Now}
}

// Limit applies the limit. A nil *RateLimit passes every request through.
func (rl *RateLimit) Limit(next http.Handler) http.Handler {
	if rl == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subject := rateLimitSubject(r)
		now := rl.now()

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.requestsPerMin))

		var count int64
		var err error
		if rl.cache != nil {
			count, err = rl.cache.IncrWithExpiry(r.Context(), cache.RateLimitKey(subject), rateLimitWindow)
		}
		if rl.cache == nil || err != nil {
			if err != nil {
				slog.Warn("rate limit counter unavailable, using local limiter",
					"subject", subject,
					"error", err,
				)
			}
			if !rl.fallback.Allow(subject, now) {
				tooMany(w)
				return
			}
			next.ServeHTTP(w, r)
			return
		}

		remaining := rl.requestsPerMin - int(count)
		if remaining < 0 {
			remaining = 0
		}
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", now.Add(rateLimitWindow).Unix()))

		if count > int64(rl.requestsPerMin) {
			tooMany(w)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func tooMany(w http.ResponseWriter) {
	w.Header().Set("Retry-After", "60")
	response.Error(w, http.StatusTooManyRequests,
		response.CodeRateLimited, "Too many requests", nil)
}

func rateLimitSubject(r *http.Request) string {
	if id := chi.URLParam(r, "sessionID"); id != "" {
		return "session:" + id
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "addr:" + host
}
