package auth

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/evcraddock/propdesk/internal/workflow"
)

// ErrorWriter renders an error response. The web package passes its envelope writer.
type ErrorWriter func(w http.ResponseWriter, status int, msg string)

type actorKey struct{}

// WithActor returns a context carrying actor.
func WithActor(ctx context.Context, actor workflow.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFrom returns the authenticated caller stored by RequireBearer.
func ActorFrom(ctx context.Context) (workflow.Actor, bool) {
	a, ok := ctx.Value(actorKey{}).(workflow.Actor)
	return a, ok
}

// RequireBearer validates the access token on every non-public path and stores
// the caller in the request context. Missing or invalid tokens get 401.
func RequireBearer(svc *Service, writeErr ErrorWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions || isPublicPath(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				writeErr(w, http.StatusUnauthorized, "authorization required")
				return
			}

			actor, err := svc.Verify(strings.TrimPrefix(header, "Bearer "))
			if err != nil {
				writeErr(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
		})
	}
}

// RequireAdmin rejects non-admin callers with 403. It must run after RequireBearer.
func RequireAdmin(writeErr ErrorWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := ActorFrom(r.Context())
			if !ok {
				writeErr(w, http.StatusUnauthorized, "authorization required")
				return
			}
			if !actor.Role.IsAdmin() {
				writeErr(w, http.StatusForbidden, "admin access required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func isPublicPath(path string) bool {
	switch path {
	case "/health", "/auth/login", "/auth/refresh", "/auth/logout",
		"/auth/passkey/login/begin", "/auth/passkey/login/finish":
		return true
	}
	// Presigned upload targets carry their own one-shot token.
	return strings.HasPrefix(path, "/uploads/put/")
}

const (
	limiterIdle  = 10 * time.Minute
	limiterBurst = 10
)

// Limiter is a per-IP token bucket guarding the credential endpoints.
type Limiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	visitors map[string]*visitor
	now      func() time.Time
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewLimiter allows perMinute attempts per IP with a small burst.
func NewLimiter(perMinute int) *Limiter {
	burst := limiterBurst
	if perMinute < burst {
		burst = perMinute
	}
	if burst < 1 {
		burst = 1
	}
	return &Limiter{
		limit:    rate.Limit(float64(perMinute) / 60.0),
		burst:    burst,
		visitors: make(map[string]*visitor),
		now:      time.Now,
	}
}

// Allow reports whether another attempt from ip may proceed.
func (l *Limiter) Allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for k, v := range l.visitors {
		if now.Sub(v.lastSeen) > limiterIdle {
			delete(l.visitors, k)
		}
	}

	v, ok := l.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[ip] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

// Middleware returns 429 once an IP exhausts its bucket.
func (l *Limiter) Middleware(writeErr ErrorWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.Allow(clientIP(r)) {
				writeErr(w, http.StatusTooManyRequests, "too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
