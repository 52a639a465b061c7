package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/control-eventos/apiserver/config"
	"github.com/control-eventos/apiserver/internal/cache"
	"github.com/control-eventos/apiserver/internal/db"
	"github.com/control-eventos/apiserver/internal/geocode"
	"github.com/control-eventos/apiserver/internal/handlers"
	"github.com/control-eventos/apiserver/internal/logger"
	"github.com/control-eventos/apiserver/internal/metrics"
	"github.com/control-eventos/apiserver/internal/mq"
	"github.com/control-eventos/apiserver/internal/services"
	"github.com/control-eventos/apiserver/internal/storage"
	"github.com/control-eventos/apiserver/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/multierr"
)

// Server wraps the HTTP server, router and the connections it owns.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	mq         *mq.MQ
	cache      *cache.Client
	log        *logger.Logger
}

// New connects every configured dependency and registers the routes.
// Optional backends (object storage, messaging, redis) are skipped when
// not configured.
func New(ctx context.Context, cfg config.Config, log *logger.Logger) (srv *Server, err error) {
	jwtSecret := strings.TrimSpace(cfg.JWT.Secret)
	if jwtSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	s := &Server{log: log}
	defer func() {
		if err != nil {
			err = multierr.Append(err, s.closeConnections())
		}
	}()

	s.db, err = db.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	eventImages, err := openBucket(ctx, cfg, cfg.Storage.EventImagesBucket)
	if err != nil {
		return nil, err
	}
	complaintImages, err := openBucket(ctx, cfg, cfg.Storage.ComplaintImageBucket)
	if err != nil {
		return nil, err
	}

	s.mq, err = mq.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(cfg.Redis.URL) != "" {
		s.cache, err = cache.New(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
	} else {
		log.Warn(ctx, "redis not configured: rate limiting and geocode cache disabled", nil)
	}

	m := metrics.New()

	userRepo := store.NewUserRepository(s.db)
	cardRepo := store.NewCardRepository(s.db)
	eventRepo := store.NewEventRepository(s.db)
	attendanceRepo := store.NewAttendanceRepository(s.db)
	complaintRepo := store.NewComplaintRepository(s.db)

	var (
		eventStore     services.AttachmentStore
		complaintStore services.AttachmentStore
		notifier       services.AttendanceNotifier
		limiter        handlers.RateLimiter
	)
	if eventImages != nil {
		eventStore = eventImages
	}
	if complaintImages != nil {
		complaintStore = complaintImages
	}
	if s.mq != nil {
		notifier = mq.NewAttendanceChannel(s.mq, cfg.MQ.AttendanceChannel)
	}
	if s.cache != nil {
		limiter = s.cache
	}

	userService := services.NewUserService(userRepo)
	cardService := services.NewCardService(cardRepo)
	eventService := services.NewEventService(eventRepo, eventStore, log)
	attendanceService := services.NewAttendanceService(attendanceRepo, eventRepo, cardRepo, notifier, m, log)
	complaintService := services.NewComplaintService(complaintRepo, complaintStore, log)

	geocodeOpts := []geocode.Option{
		geocode.WithBaseURL(cfg.Geocoder.BaseURL),
		geocode.WithUserAgent(cfg.Geocoder.UserAgent),
	}
	if s.cache != nil {
		geocodeOpts = append(geocodeOpts, geocode.WithCache(s.cache, cfg.Geocoder.CacheTTL))
	}
	geocoder := geocode.NewClient(geocodeOpts...)

	userMiddleware := handlers.RequireUser(jwtSecret, userService, log)
	loginLimit := handlers.RateLimit(handlers.RateLimitPolicy{
		Name:   "login",
		Limit:  cfg.RateLimit.LoginLimit,
		Window: cfg.RateLimit.Window,
	}, limiter, log)
	checkInLimit := handlers.RateLimit(handlers.RateLimitPolicy{
		Name:   "checkin",
		Limit:  cfg.RateLimit.CheckInLimit,
		Window: cfg.RateLimit.Window,
	}, limiter, log)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		handlers.RealIP(cfg.HTTP.TrustProxy),
		handlers.CORS(cfg.HTTP.AllowedOrigins),
		handlers.RequestLogger(log),
		m.Middleware,
		middleware.Recoverer,
		middleware.Timeout(60*time.Second),
	)
	healthChecks := map[string]handlers.HealthCheck{"database": s.db.PingContext}
	if s.cache != nil {
		healthChecks["redis"] = s.cache.Ping
	}
	router.Get("/healthz", handlers.Healthz(healthChecks, log))
	router.Method(http.MethodGet, "/metrics", m.Handler())
	router.Route("/auth", func(r chi.Router) {
		handlers.AuthRouter(r, handlers.NewAuthHandler(userService, cardService, jwtSecret, cfg.JWT.TTL, log), userMiddleware, loginLimit)
		if cfg.Google.Enabled() {
			handlers.GoogleRouter(r, handlers.NewGoogleHandler(cfg.Google, userService, jwtSecret, cfg.JWT.TTL, log))
		}
	})
	router.Route("/users", func(r chi.Router) {
		handlers.UserRouter(r, handlers.NewUserHandler(userService, log), userMiddleware)
	})
	router.Route("/cards", func(r chi.Router) {
		handlers.CardRouter(r, handlers.NewCardHandler(cardService, log), userMiddleware)
	})
	router.Route("/events", func(r chi.Router) {
		handlers.EventRouter(r, handlers.NewEventHandler(eventService, attendanceService, log), userMiddleware)
	})
	router.Route("/attendance", func(r chi.Router) {
		handlers.AttendanceRouter(r, handlers.NewAttendanceHandler(attendanceService, log), userMiddleware, checkInLimit)
	})
	router.Route("/complaints", func(r chi.Router) {
		handlers.ComplaintRouter(r, handlers.NewComplaintHandler(complaintService, log), userMiddleware)
	})
	router.Route("/geocode", func(r chi.Router) {
		handlers.GeocodeRouter(r, handlers.NewGeocodeHandler(geocoder, log), userMiddleware)
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	s.router = router
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 65 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

func openBucket(ctx context.Context, cfg config.Config, bucket string) (*storage.Storage, error) {
	st, err := storage.Open(ctx, cfg, bucket)
	if err != nil || st == nil {
		return nil, err
	}
	if err := st.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("ensure bucket %s: %w", bucket, err)
	}
	return st, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Addr is the listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Start runs the HTTP server. It returns nil after Shutdown.
func (s *Server) Start() error {
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and closes every owned connection.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}
	return multierr.Append(err, s.closeConnections())
}

func (s *Server) closeConnections() error {
	var err error
	if s.db != nil {
		err = multierr.Append(err, s.db.Close())
	}
	err = multierr.Append(err, s.mq.Close())
	if s.cache != nil {
		err = multierr.Append(err, s.cache.Close())
	}
	return err
}
