package api

import (
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/maypok86/otter"
	"golang.org/x/time/rate"
)

const (
	limiterCapacity = 10000
	limiterIdleTTL  = 10 * time.Minute
)

// rateLimiter keeps one token bucket per client address. Idle buckets age
// out of the cache.
type rateLimiter struct {
	mu      sync.Mutex
	rate    rate.Limit
	burst   int
	buckets otter.Cache[string, *rate.Limiter]
}

func newRateLimiter(r rate.Limit, burst int) *rateLimiter {
	buckets, err := otter.MustBuilder[string, *rate.Limiter](limiterCapacity).
		Cost(func(_ string, _ *rate.Limiter) uint32 { return 1 }).
		WithTTL(limiterIdleTTL).
		Build()
	if err != nil {
		panic("api: build rate limiter cache: " + err.Error())
	}
	return &rateLimiter{rate: r, burst: burst, buckets: buckets}
}

func (l *rateLimiter) allow(key string) bool {
	l.mu.Lock()
	lim, ok := l.buckets.Get(key)
	if !ok {
		lim = rate.NewLimiter(l.rate, l.burst)
		l.buckets.Set(key, lim)
	}
	l.mu.Unlock()
	return lim.Allow()
}

// Wrap rejects requests over the limit with 429.
func (l *rateLimiter) Wrap(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !l.allow(clientAddr(r)) {
			w.Header().Set("Retry-After", "1")
			writeFail(w, http.StatusTooManyRequests, ErrRateLimited.Error())
			return
		}
		next(w, r)
	}
}

func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
