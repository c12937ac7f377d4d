// Package web serves the browser playground and its JSON API.
package web

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/caffeineduck/loxpad/internal/snippets"
	"github.com/caffeineduck/loxpad/render"
	"github.com/caffeineduck/loxpad/session"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/sessions"
	"golang.org/x/sync/errgroup"
)

const (
	cookieName   = "loxpad"
	cookieKey    = "sid"
	maxBodyBytes = 1 << 20
)

// Config holds configuration for the playground server.
type Config struct {
	Addr string
	// Backend creates the backend of each new playground session.
	Backend        BackendFactory
	BackendName    string
	SessionOptions []session.Option
	// Snippets enables sharing when set.
	Snippets      *snippets.Store
	SessionSecret string
	SessionTTL    time.Duration
	Renderer      *render.Renderer
	Logger        *slog.Logger
	// DefaultSource pre-fills the editor on the landing page.
	DefaultSource string
}

// Server is the playground HTTP server.
type Server struct {
	cfg          Config
	manager      *sessionManager
	sessionStore *sessions.CookieStore
	logger       *slog.Logger
	router       chi.Router
}

// NewServer creates a new server instance.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Backend == nil {
		return nil, errors.New("web: no backend factory")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 30 * time.Minute
	}
	if cfg.Renderer == nil {
		cfg.Renderer = render.New()
	}
	if cfg.DefaultSource == "" {
		cfg.DefaultSource = defaultSource
	}

	secret := []byte(cfg.SessionSecret)
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("generate session secret: %w", err)
		}
	}
	sessionStore := sessions.NewCookieStore(secret)
	sessionStore.MaxAge(int(cfg.SessionTTL / time.Second))
	sessionStore.Options.Path = "/"
	sessionStore.Options.HttpOnly = true
	sessionStore.Options.SameSite = http.SameSiteLaxMode

	s := &Server{
		cfg:          cfg,
		manager:      newSessionManager(cfg.Backend, cfg.SessionTTL, cfg.Logger, cfg.SessionOptions...),
		sessionStore: sessionStore,
		logger:       cfg.Logger,
	}
	s.router = s.routes()
	return s, nil
}

const defaultSource = `fun greet(name) {
  return "hello " + name + "!";
}

print greet("lox");
`

func (s *Server) routes() chi.Router {
	r := chi.NewMux()
	r.Use(
		middleware.RequestID,
		requestLogger(s.logger),
		middleware.Recoverer,
		middleware.Compress(5),
	)

	r.Handle("/static/*", staticHandler())
	r.Get("/", s.handlePage)
	r.Get("/s/{id}", s.handleSharedPage)
	r.Post("/play/share", s.handlePlayShare)
	r.Post("/play/{mode}", s.handlePlay)

	r.Route("/api", func(r chi.Router) {
		r.Post("/sessions", s.handleCreateSession)
		r.Post("/sessions/{id}/{mode}", s.handleSessionRun)
		r.Delete("/sessions/{id}", s.handleDeleteSession)
		r.Post("/share", s.handleShare)
		r.Get("/share/{id}", s.handleGetShare)
		r.Post("/{mode}", s.handleRun)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return r
}

// Handler returns the router. Idle sessions are only expired while Serve
// runs.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Serve listens on the configured address and blocks until ctx is
// cancelled.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	return s.ServeListener(ctx, ln)
}

// ServeListener serves on ln until ctx is cancelled, then shuts down
// gracefully and closes every playground session.
func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	s.logger.Info("starting playground server", "addr", ln.Addr().String())

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Handler: s.router,
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg.Go(func() error {
		return s.manager.run(egctx)
	})

	eg.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Debug("shutting down playground server")
		return srv.Shutdown(shutdownCtx)
	})

	err := eg.Wait()
	s.manager.closeAll()
	return err
}

// Close closes every playground session.
func (s *Server) Close() {
	s.manager.closeAll()
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				logger.Info("request",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.Int("status", ww.Status()),
					slog.Int("bytes", ww.BytesWritten()),
					slog.Duration("duration", time.Since(start)),
					slog.String("request_id", middleware.GetReqID(r.Context())),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
