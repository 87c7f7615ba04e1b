package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/edusphere/apiserver/config"
	"github.com/edusphere/apiserver/internal/cache"
	"github.com/edusphere/apiserver/internal/handlers"
	"github.com/edusphere/apiserver/internal/logger"
	"github.com/edusphere/apiserver/internal/mailer"
	"github.com/edusphere/apiserver/internal/notify"
	"github.com/edusphere/apiserver/internal/services"
	"github.com/edusphere/apiserver/types"
	"github.com/getsentry/sentry-go"
	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server wraps the HTTP server, its router and the backends it owns.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	log        *logger.Logger
	closers    []func() error

	stopWorkers context.CancelFunc
	workers     sync.WaitGroup
	sentry      bool
}

// Services are the use-cases served over HTTP.
type Services struct {
	OTP      *services.OTPService
	Accounts *services.AccountService
	Resets   *services.ResetService
	Tags     *services.TagService
	Uploads  *services.UploadService
	Sessions *services.SessionIssuer
}

// New opens every configured backend and builds the router.
func New(ctx context.Context, cfg config.Config, log *logger.Logger) (*Server, error) {
	s := &Server{log: log}
	ctx = log.WithContext(ctx)

	repos, err := openRepositories(ctx, cfg)
	if err != nil {
		return nil, err
	}
	s.closers = append(s.closers, repos.close)

	cacheBackend, err := openCache(ctx, cfg)
	if err != nil {
		s.closeAll()
		return nil, err
	}
	c := cache.New(cacheBackend)
	s.closers = append(s.closers, c.Close)

	sender, err := mailer.NewSMTPSender(cfg.Mail, cfg.ExternalCallTimeout)
	if err != nil {
		s.closeAll()
		return nil, fmt.Errorf("mailer: %w", err)
	}

	objects, err := openStorage(ctx, cfg)
	if err != nil {
		s.closeAll()
		return nil, err
	}

	queue, err := openQueue(ctx, cfg)
	if err != nil {
		s.closeAll()
		return nil, err
	}

	var notifier services.UploadNotifier = notify.NewDirect(sender)
	if queue != nil {
		s.closers = append(s.closers, queue.Close)
		notifier = notify.NewPublisher(queue, cfg.MQ.UploadsTopic)
		s.startConsumer(ctx, notify.NewConsumer(queue, cfg.MQ.UploadsTopic, sender, log))
	}

	svc := newServices(cfg, repos, c, sender, objects, notifier)

	var extra []func(http.Handler) http.Handler
	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			Environment:      cfg.Env,
			EnableTracing:    true,
			TracesSampleRate: 0.2,
		}); err != nil {
			log.Error().Err(err).Msg("sentry init failed")
		} else {
			s.sentry = true
			extra = append(extra, sentryhttp.New(sentryhttp.Options{Repanic: true}).Handle)
		}
	}

	s.router = NewRouter(log, svc, handlers.CookieConfig{
		TTL:    cfg.Auth.CookieTTL,
		Secure: cfg.IsProduction(),
	}, extra...)

	port := cfg.ServerPort
	if port == 0 {
		port = 8000
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

func newServices(
	cfg config.Config,
	repos repositories,
	c *cache.Cache,
	sender mailer.Sender,
	objects services.ObjectUploader,
	notifier services.UploadNotifier,
) Services {
	timeout := cfg.ExternalCallTimeout
	hasher := services.NewHasher()
	sessions := services.NewSessionIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	otp := services.NewOTPService(repos.users, c, sender, cfg.Auth.OTPTTL, timeout)

	return Services{
		OTP: otp,
		Accounts: services.NewAccountService(repos.users, repos.profiles, c, sender, hasher, otp, sessions, services.AccountConfig{
			LoginCacheTTL: cfg.Auth.LoginCacheTTL,
			FrontendURL:   cfg.FrontendBaseURL(),
			Timeout:       timeout,
		}),
		Resets:   services.NewResetService(repos.users, c, sender, hasher, cfg.Auth.ResetTTL, cfg.FrontendBaseURL(), timeout),
		Tags:     services.NewTagService(repos.tags),
		Uploads:  services.NewUploadService(repos.files, objects, notifier, cfg.Storage.UploadFolder, timeout),
		Sessions: sessions,
	}
}

// NewRouter mounts the API under /api/v1. extra middlewares run inside the
// recoverer.
func NewRouter(log *logger.Logger, svc Services, cookie handlers.CookieConfig, extra ...func(http.Handler) http.Handler) *chi.Mux {
	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		handlers.RequestLogger(log),
		middleware.Recoverer,
	)
	router.Use(extra...)
	router.Use(middleware.Timeout(60 * time.Second))

	auth := handlers.RequireAuth(svc.Sessions)
	student := handlers.RequireRole(types.RoleStudent, "Access Denied : Students Only")
	admin := handlers.RequireRole(types.RoleAdmin, "Access Denied : Admin Only")

	router.Get("/healthz", handlers.Healthz)
	router.Route("/api/v1", func(r chi.Router) {
		handlers.AccountRouter(r, handlers.NewAccountHandler(svc.OTP, svc.Accounts, svc.Resets, cookie), auth)
		r.Route("/tags", func(r chi.Router) {
			handlers.TagRouter(r, handlers.NewTagHandler(svc.Tags), auth, admin)
		})
		r.With(auth).Post("/imageupload", handlers.NewUploadHandler(svc.Uploads).UploadImage)
		r.With(auth, student).Get("/student", handlers.Protected("Welcome to the Protected route for Students"))
		r.With(auth, admin).Get("/admin", handlers.Protected("Welcome to the Protected route for Admin"))
	})
	return router
}

func (s *Server) startConsumer(ctx context.Context, consumer *notify.Consumer) {
	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.stopWorkers = cancel
	s.workers.Add(1)
	go func() {
		defer s.workers.Done()
		if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.log.Error().Err(err).Msg("upload notification consumer stopped")
		}
	}()
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server until Shutdown.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.httpServer.Addr).Msg("server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests, stops the consumer and releases
// backends.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	if s.stopWorkers != nil {
		s.stopWorkers()
	}
	s.workers.Wait()
	s.closeAll()
	if s.sentry {
		sentry.Flush(2 * time.Second)
	}
	return err
}

func (s *Server) closeAll() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			s.log.Warn().Err(err).Msg("close backend failed")
		}
	}
	s.closers = nil
}
