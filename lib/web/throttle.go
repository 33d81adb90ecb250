package web

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-i2p/connpool/lib/metrics"
	"github.com/go-i2p/connpool/lib/ratelimit"
)

// AdminLimits bounds how often one client may call a POST route. Every
// client has a separate budget per route, so a run of statistics resets
// does not lock that client out of /api/pool/disable.
type AdminLimits struct {
	// PerSecond is the sustained call rate per client and route.
	PerSecond float64
	// Burst is how many calls may arrive back to back.
	Burst int
	// Forget drops the budget of a client that has been quiet this long.
	Forget time.Duration
	// TrustProxy takes the client address from X-Forwarded-For or
	// X-Real-IP. Only set it when a reverse proxy owns those headers.
	TrustProxy bool
}

// DefaultAdminLimits allows five calls a second with bursts of ten.
func DefaultAdminLimits() AdminLimits {
	return AdminLimits{
		PerSecond: 5,
		Burst:     10,
		Forget:    5 * time.Minute,
	}
}

// ThrottledRequests counts POST requests refused with 429.
var ThrottledRequests = metrics.NewCounter(
	"connpool_monitor_throttled_total",
	"POST requests to the monitor refused for exceeding the per-client budget",
)

// throttle holds the per client and route budgets of the POST routes.
type throttle struct {
	budgets    *ratelimit.KeyedLimiter
	trustProxy bool
}

func newThrottle(l AdminLimits) *throttle {
	def := DefaultAdminLimits()
	if l.PerSecond <= 0 {
		l.PerSecond = def.PerSecond
	}
	if l.Burst <= 0 {
		l.Burst = def.Burst
	}
	if l.Forget <= 0 {
		l.Forget = def.Forget
	}
	return &throttle{
		budgets:    ratelimit.NewKeyed(l.PerSecond, l.Burst, l.Forget),
		trustProxy: l.TrustProxy,
	}
}

// allow spends one call of the caller's budget for route and returns the
// client it was charged to.
func (t *throttle) allow(r *http.Request, route string) (string, bool) {
	client := t.client(r)
	return client, t.budgets.Allow(client + " " + route)
}

func (t *throttle) close() {
	t.budgets.Close()
}

// client identifies the caller by address.
func (t *throttle) client(r *http.Request) string {
	if t.trustProxy {
		if ip := forwardedFor(r); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// forwardedFor returns the left-most X-Forwarded-For address, falling back
// to X-Real-IP. Unparsable values are ignored.
func forwardedFor(r *http.Request) string {
	xff, _, _ := strings.Cut(r.Header.Get("X-Forwarded-For"), ",")
	for _, v := range []string{xff, r.Header.Get("X-Real-IP")} {
		if ip := net.ParseIP(strings.TrimSpace(v)); ip != nil {
			return ip.String()
		}
	}
	return ""
}
