package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/control-eventos/apiserver/internal/logger"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

func newCORSRouter(origins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(CORS(origins))
	r.Get("/events", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, []string{})
	})
	return r
}

func preflight(origin string) *http.Request {
	req := httptest.NewRequest(http.MethodOptions, "/events", nil)
	req.Header.Set("Origin", origin)
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Authorization, Content-Type")
	return req
}

func TestCORSPreflightFromAllowedOrigin(t *testing.T) {
	router := newCORSRouter([]string{"https://eventos.example.com/", " http://localhost:3000 "})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, preflight("https://eventos.example.com"))
	require.Less(t, rec.Code, 300)
	require.Equal(t, "https://eventos.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	require.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)
	require.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "Authorization")

	req := httptest.NewRequest(http.MethodGet, "/events", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSPreflightFromUnknownOrigin(t *testing.T) {
	router := newCORSRouter([]string{"https://eventos.example.com"})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, preflight("https://evil.example.net"))
	require.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	require.Empty(t, rec.Header().Get("Access-Control-Allow-Methods"))

	req := httptest.NewRequest(http.MethodGet, "/events", nil)
	req.Header.Set("Origin", "https://evil.example.net")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSDisabledWithoutOrigins(t *testing.T) {
	router := newCORSRouter([]string{" "})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, preflight("https://eventos.example.com"))
	require.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimitIgnoresForwardedForWithoutTrustedProxy(t *testing.T) {
	limiter := newCountingLimiter(1)
	limit := RateLimit(RateLimitPolicy{Name: "checkin", Limit: 1, Window: time.Minute}, limiter, logger.Nop())

	newRouter := func(trustProxy bool) http.Handler {
		r := chi.NewRouter()
		r.Use(RealIP(trustProxy), limit)
		r.Post("/code", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})
		return r
	}
	send := func(router http.Handler, forwardedFor string) int {
		req := httptest.NewRequest(http.MethodPost, "/code", nil)
		req.RemoteAddr = "203.0.113.7:4000"
		req.Header.Set("X-Forwarded-For", forwardedFor)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec.Code
	}

	direct := newRouter(false)
	require.Equal(t, http.StatusNoContent, send(direct, "198.51.100.1"))
	require.Equal(t, http.StatusTooManyRequests, send(direct, "198.51.100.2"))

	behindProxy := newRouter(true)
	require.Equal(t, http.StatusNoContent, send(behindProxy, "192.0.2.10"))
	require.Equal(t, http.StatusNoContent, send(behindProxy, "192.0.2.11"))
}
