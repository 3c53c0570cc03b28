package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"go-auth-api/pkg/apierror"
)

const (
	visitorSweepThreshold = 1000
	visitorIdleTTL        = 10 * time.Minute
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// visitorTable holds one token bucket per client IP for a single budget.
type visitorTable struct {
	rpm      int
	mu       sync.Mutex
	visitors map[string]*visitor
}

func newVisitorTable(rpm int) *visitorTable {
	return &visitorTable{rpm: rpm, visitors: map[string]*visitor{}}
}

func (t *visitorTable) allow(ip string, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	v, ok := t.visitors[ip]
	if !ok {
		if len(t.visitors) >= visitorSweepThreshold {
			t.sweepLocked(now)
		}
		v = &visitor{limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(t.rpm)), t.rpm)}
		t.visitors[ip] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

func (t *visitorTable) sweepLocked(now time.Time) {
	cutoff := now.Add(-visitorIdleTTL)
	for ip, v := range t.visitors {
		if v.lastSeen.Before(cutoff) {
			delete(t.visitors, ip)
		}
	}
}

// retryAfter is the refill interval of one token, in whole seconds.
func (t *visitorTable) retryAfter() string {
	secs := (time.Minute/time.Duration(t.rpm) + time.Second - 1) / time.Second
	return strconv.Itoa(int(max(secs, 1)))
}

// RateLimitMiddleware applies a general per-IP budget to every request and a
// stricter one to credential endpoints under authPrefix.
type RateLimitMiddleware struct {
	authPrefix string
	generalRPM int
	authRPM    int
	general    *visitorTable
	auth       *visitorTable
}

// NewRateLimitMiddleware limits each client IP to generalRPM requests per
// minute, and to authRPM on paths under authPrefix. generalRPM below zero
// disables the general limit.
func NewRateLimitMiddleware(authPrefix string, generalRPM int, authRPM int) *RateLimitMiddleware {
	if generalRPM == 0 {
		generalRPM = 100
	}
	if authRPM <= 0 {
		authRPM = 10
	}

	m := &RateLimitMiddleware{
		authPrefix: strings.ToLower(authPrefix),
		generalRPM: generalRPM,
		authRPM:    authRPM,
		auth:       newVisitorTable(authRPM),
	}
	if generalRPM > 0 {
		m.general = newVisitorTable(generalRPM)
	}
	return m
}

func (m *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		table := m.general
		if m.authPrefix != "" && strings.HasPrefix(strings.ToLower(r.URL.Path), m.authPrefix) {
			table = m.auth
		}

		if table != nil && !table.allow(extractClientIP(r), time.Now()) {
			w.Header().Set("Retry-After", table.retryAfter())
			writeError(w, apierror.New(apierror.CodeRateLimited, "too many requests, please try again later", "", http.StatusTooManyRequests))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// extractClientIP prefers the first X-Forwarded-For hop, then X-Real-IP,
// then the connection address.
func extractClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}

	remote := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(remote); err == nil && host != "" {
		return host
	}
	if remote == "" {
		return "unknown"
	}
	return remote
}
