package handlers

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/control-eventos/apiserver/internal/logger"
	"github.com/control-eventos/apiserver/internal/services"
	"github.com/control-eventos/apiserver/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// RequireUser authenticates the bearer token and loads the account into
// the request context.
func RequireUser(jwtSecret string, userService *services.UserService, log *logger.Logger) func(http.Handler) http.Handler {
	authenticate := requireAuth([]byte(jwtSecret))
	return func(next http.Handler) http.Handler {
		load := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := userIDFromContext(r.Context())
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			user, err := userService.GetByID(r.Context(), userID)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					writeError(w, http.StatusUnauthorized, "unauthorized")
					return
				}
				writeInternalError(w, r, log, "failed to load user", err)
				return
			}

			ctx := withUser(r.Context(), user)
			if log != nil {
				ctx = log.WithUserID(ctx, user.ID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
		return authenticate(load)
	}
}

// RequireAdmin rejects users without the admin or global-admin role.
// It must run after RequireUser.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := currentUser(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		if !user.Role.IsAdmin() {
			writeError(w, http.StatusForbidden, "admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequestLogger writes one structured line per request.
func RequestLogger(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if reqID := middleware.GetReqID(ctx); reqID != "" {
				ctx = log.WithRequestID(ctx, reqID)
			}

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r.WithContext(ctx))

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			route := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}

			level := zerolog.InfoLevel
			if status >= http.StatusInternalServerError {
				level = zerolog.ErrorLevel
			}
			log.Event(ctx, level).
				Str("method", r.Method).
				Str("route", route).
				Int("status", status).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Msg("request")
		})
	}
}

// RateLimiter counts hits inside a fixed window.
type RateLimiter interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// RateLimitPolicy throttles a route per client IP and, for JSON bodies
// carrying an email, per email.
type RateLimitPolicy struct {
	Name   string
	Limit  int
	Window time.Duration
}

func (p RateLimitPolicy) enabled() bool {
	return p.Limit > 0 && p.Window > 0
}

// RateLimit enforces policy using limiter. A nil limiter disables throttling.
// Limiter failures let the request through.
func RateLimit(policy RateLimitPolicy, limiter RateLimiter, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil || !policy.enabled() {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			scopes := []string{fmt.Sprintf("%s:ip:%s", policy.Name, clientIP(r))}
			if r.Body != nil && strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
				body, err := io.ReadAll(io.LimitReader(r.Body, maxJSONBodyBytes))
				if err != nil {
					writeError(w, http.StatusBadRequest, "invalid request")
					return
				}
				r.Body = io.NopCloser(bytes.NewReader(body))
				if email := extractEmail(body); email != "" {
					scopes = append(scopes, fmt.Sprintf("%s:email:%s", policy.Name, hashValue(email)))
				}
			}
			if user, ok := currentUser(ctx); ok {
				scopes = append(scopes, fmt.Sprintf("%s:user:%d", policy.Name, user.ID))
			}

			for _, scope := range scopes {
				allowed, count, err := limiter.FixedWindowAllow(ctx, scope, int64(policy.Limit), policy.Window)
				if err != nil {
					if log != nil {
						log.Warn(ctx, "rate limiter unavailable", err)
					}
					break
				}
				if !allowed {
					if log != nil {
						log.Event(ctx, zerolog.WarnLevel).
							Str("policy", policy.Name).
							Str("scope", scope).
							Int64("attempts", count).
							Msg("rate limit exceeded")
					}
					w.Header().Set("Retry-After", fmt.Sprintf("%d", int(policy.Window.Seconds())))
					writeError(w, http.StatusTooManyRequests, "too many requests")
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}

func extractEmail(payload []byte) string {
	var body struct {
		Email string `json:"email"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(body.Email))
}

func hashValue(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
