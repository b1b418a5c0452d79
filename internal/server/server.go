// Package server exposes the dataset, visualization and insight pipelines
// over a JSON HTTP API. Each browser gets an in-memory session tracked by a
// signed cookie.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/KaramelBytes/vizqa/internal/ai"
	"github.com/KaramelBytes/vizqa/internal/insight"
	"github.com/KaramelBytes/vizqa/internal/loader"
	"github.com/KaramelBytes/vizqa/internal/metrics"
	"github.com/KaramelBytes/vizqa/internal/sandbox"
	"github.com/KaramelBytes/vizqa/internal/session"
	"github.com/KaramelBytes/vizqa/internal/viz"
)

const cookieName = "vizqa"

// RuntimeFactory builds a model runtime. apiKey is the session credential,
// empty in fixed-key mode.
type RuntimeFactory func(apiKey string) (ai.Runtime, error)

// Config holds configuration for the server.
type Config struct {
	Addr           string
	SessionSecret  string
	SessionTTL     time.Duration
	MaxUploadBytes int64
	RequestTimeout time.Duration
	// RequireAPIKey selects fixed-key mode. When false, model-backed
	// actions need a credential posted to /api/credential first.
	RequireAPIKey bool
	// CookieSecure marks the session cookie Secure. Enable it only when
	// the server is reached over TLS.
	CookieSecure bool
	NewRuntime    RuntimeFactory
	Executor      viz.Executor
	Viz           viz.Options
	Insight       insight.Options
	Load          loader.Options
	Logger        *zap.Logger
}

// Server is the HTTP front end.
type Server struct {
	cfg     Config
	cookies *sessions.CookieStore
	store   *session.Store
	log     *zap.Logger
	m       *metrics.Metrics
}

// New creates a server instance.
func New(cfg Config) *Server {
	if cfg.Addr == "" {
		cfg.Addr = ":8501"
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 50 << 20
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 3 * time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.SessionSecret == "" {
		// Cookies will not survive a restart; sessions do not either.
		cfg.SessionSecret = uuid.NewString() + uuid.NewString()
	}
	if cfg.Executor == nil {
		cfg.Executor = sandbox.New(sandbox.Options{Logger: cfg.Logger})
	}
	m := metrics.Get()

	cookies := sessions.NewCookieStore([]byte(cfg.SessionSecret))
	cookies.MaxAge(int(cfg.SessionTTL.Seconds()))
	cookies.Options.Path = "/"
	cookies.Options.HttpOnly = true
	cookies.Options.Secure = cfg.CookieSecure
	cookies.Options.SameSite = http.SameSiteLaxMode

	return &Server{
		cfg:     cfg,
		cookies: cookies,
		store: session.NewStore(cfg.SessionTTL,
			session.WithLogger(cfg.Logger),
			session.WithSizeHook(func(n int) { m.ActiveSessions.Set(float64(n)) }),
		),
		log: cfg.Logger,
		m:   m,
	}
}

// Store returns the session store.
func (s *Server) Store() *session.Store { return s.store }

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewMux()
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		s.requestLogger,
		middleware.Recoverer,
	)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(s.withSession)

		r.Route("/dataset", func(r chi.Router) {
			r.Post("/", s.handleUpload)
			r.Get("/", s.handleDataset)
			r.Post("/clean", s.handleClean)
			r.Put("/view", s.handleView)
		})
		r.Post("/credential", s.handleCredential)
		r.Post("/visualize", s.handleVisualize)
		r.Get("/charts/{id}", s.handleChart)
		r.Post("/insights", s.handleInsights)
		r.Delete("/session", s.handleEndSession)
	})
	return r
}

// Serve starts the server and the session evictor and blocks until ctx is
// cancelled.
func (s *Server) Serve(ctx context.Context) error {
	s.log.Info("starting server", zap.String("addr", s.cfg.Addr))

	eg, egctx := errgroup.WithContext(ctx)
	srv := &http.Server{
		Addr:    s.cfg.Addr,
		Handler: s.Handler(),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg.Go(func() error {
		interval := s.cfg.SessionTTL / 4
		if interval < time.Second {
			interval = time.Second
		}
		return s.store.Run(egctx, interval)
	})

	eg.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.log.Debug("shutting down server")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

type sessionKey struct{}

// withSession resolves the cookie to a live session, creating one when the
// cookie is missing, tampered with or expired, and refreshes the cookie.
func (s *Server) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// A decode error still yields a fresh cookie session.
		cs, _ := s.cookies.Get(r, cookieName)
		id, _ := cs.Values["sid"].(string)
		sess, _ := s.store.GetOrCreate(id)
		cs.Values["sid"] = sess.ID
		// Re-issued on every request so the cookie expiry follows the idle TTL.
		if err := cs.Save(r, w); err != nil {
			s.log.Error("saving session cookie", zap.Error(err))
		}
		ctx := context.WithValue(r.Context(), sessionKey{}, sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func sessionFrom(r *http.Request) *session.Session {
	sess, _ := r.Context().Value(sessionKey{}).(*session.Session)
	return sess
}

// requestLogger logs each request with zap and records HTTP metrics.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			route := "unmatched"
			if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
				route = rc.RoutePattern()
			}
			elapsed := time.Since(start)
			s.m.HTTPRequestsTotal.WithLabelValues(r.Method, route, fmt.Sprint(ww.Status())).Inc()
			s.m.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(elapsed.Seconds())
			s.log.Debug("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("elapsed", elapsed),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		}()
		next.ServeHTTP(ww, r)
	})
}
