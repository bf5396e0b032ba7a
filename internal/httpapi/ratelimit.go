package httpapi

import (
	"net"
	"net/http"
	"strconv"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"

	"github.com/example/gallery/internal/metrics"
)

const rateLimitClients = 4096

// rateLimiter keeps one token bucket per client address. The least recently
// seen clients are forgotten once rateLimitClients is reached.
type rateLimiter struct {
	rps     rate.Limit
	burst   int
	clients *lru.Cache[string, *rate.Limiter]
}

func newRateLimiter(rps float64, burst int) *rateLimiter {
	if burst < 1 {
		burst = 1
	}
	clients, err := lru.New[string, *rate.Limiter](rateLimitClients)
	if err != nil {
		panic(err)
	}
	return &rateLimiter{rps: rate.Limit(rps), burst: burst, clients: clients}
}

func (l *rateLimiter) limiter(client string) *rate.Limiter {
	if lim, ok := l.clients.Get(client); ok {
		return lim
	}
	lim := rate.NewLimiter(l.rps, l.burst)
	if prev, ok, _ := l.clients.PeekOrAdd(client, lim); ok {
		return prev
	}
	return lim
}

func (l *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lim := l.limiter(clientAddr(r))
		if !lim.Allow() {
			metrics.RateLimitedTotal.Inc()
			w.Header().Set("Retry-After", strconv.Itoa(1))
			writeError(w, http.StatusTooManyRequests, "rate_limited", "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientAddr strips the port; RealIP has already rewritten RemoteAddr when a
// proxy header was present.
func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
