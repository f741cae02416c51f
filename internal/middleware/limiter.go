package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"paypal-bridge/internal/logger"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Rate limit tiers
const (
	// Buyer returns and login (strict)
	limitStrict = rate.Limit(2)
	burstStrict = 10

	// Everything else
	limitGeneral = rate.Limit(10)
	burstGeneral = 20

	visitorTTL = 3 * time.Minute
)

// exemptPrefixes are PayPal's server-to-server callbacks. PayPal delivers from
// a few hosts and answers a 429 with redelivery, so they are authenticated by
// signature and postback instead of being throttled.
var exemptPrefixes = []string{
	"/webhook/",
	"/paypal/ipn/",
}

// strictPrefixes are buyer returns and login, which also trigger outbound
// provider calls or password checks.
var strictPrefixes = []string{
	"/paypal/pdt/",
	"/capture-payment/",
	"/checkout/",
	"/admin/login",
}

// visitor holds the rate limiter and the last time it was seen.
type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter keeps one token bucket per client address and tier.
type Limiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	trusted  []*net.IPNet
	now      func() time.Time
}

// NewLimiter builds a limiter. X-Forwarded-For is only read when the direct
// peer matches one of trustedProxies (IPs or CIDRs); invalid entries are skipped.
func NewLimiter(trustedProxies ...string) *Limiter {
	l := &Limiter{
		visitors: make(map[string]*visitor),
		now:      time.Now,
	}
	for _, p := range trustedProxies {
		if n := parseNet(p); n != nil {
			l.trusted = append(l.trusted, n)
		} else {
			logger.L().Warn("Ignoring invalid trusted proxy", zap.String("proxy", p))
		}
	}
	return l
}

func parseNet(s string) *net.IPNet {
	if _, n, err := net.ParseCIDR(s); err == nil {
		return n
	}
	ip := net.ParseIP(s)
	if ip == nil {
		return nil
	}
	bits := 8 * net.IPv6len
	if ip4 := ip.To4(); ip4 != nil {
		ip, bits = ip4, 8*net.IPv4len
	}
	return &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)}
}

func (l *Limiter) isTrusted(ip net.IP) bool {
	for _, n := range l.trusted {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// Run removes idle visitors every minute until ctx is done.
func (l *Limiter) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.cleanup()
		}
	}
}

func (l *Limiter) cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	for key, v := range l.visitors {
		if l.now().Sub(v.lastSeen) > visitorTTL {
			delete(l.visitors, key)
		}
	}
}

// getVisitor retrieves or creates a rate limiter for the given key.
func (l *Limiter) getVisitor(key string, r rate.Limit, b int) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	v, exists := l.visitors[key]
	if !exists {
		limiter := rate.NewLimiter(r, b)
		l.visitors[key] = &visitor{limiter, l.now()}
		return limiter
	}

	v.lastSeen = l.now()
	return v.limiter
}

// Middleware answers 429 once a client exhausts its bucket.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limit, burst, tier := resolveRateTier(r)
		if tier == "exempt" {
			next.ServeHTTP(w, r)
			return
		}
		key := l.clientIP(r) + ":" + tier

		if !l.getVisitor(key, limit, burst).Allow() {
			logger.FromCtx(r.Context()).Warn("Rate limit exceeded",
				zap.String("key", key),
				zap.String("path", r.URL.Path),
			)
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// resolveRateTier determines which rate limit policy applies to the request.
func resolveRateTier(r *http.Request) (rate.Limit, int, string) {
	for _, p := range exemptPrefixes {
		if strings.HasPrefix(r.URL.Path, p) {
			return rate.Inf, 0, "exempt"
		}
	}
	for _, p := range strictPrefixes {
		if strings.HasPrefix(r.URL.Path, p) {
			return limitStrict, burstStrict, "strict"
		}
	}
	return limitGeneral, burstGeneral, "general"
}

// clientIP is the direct peer, or for a trusted proxy the right-most
// X-Forwarded-For hop that is not itself a trusted proxy.
func (l *Limiter) clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}

	peer := net.ParseIP(host)
	if peer == nil || !l.isTrusted(peer) {
		return host
	}

	hops := strings.Split(r.Header.Get("X-Forwarded-For"), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		ip := net.ParseIP(hop)
		if ip == nil {
			break
		}
		if !l.isTrusted(ip) {
			return hop
		}
	}
	return host
}
