package server

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	chimw "github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/Heidric/digest.git/internal/logger"
	"github.com/Heidric/digest.git/internal/model"
	"github.com/Heidric/digest.git/internal/server/middleware"
)

// Digests is the service behind the HTTP handlers.
type Digests interface {
	Compute(ctx context.Context, r io.Reader) (model.Computed, error)
	Register(ctx context.Context, name string, r io.Reader) (model.Digest, error)
	Import(ctx context.Context, d model.Digest) (model.Digest, error)
	Get(ctx context.Context, name string) (model.Digest, error)
	List(ctx context.Context) ([]model.Digest, error)
	Verify(ctx context.Context, name string, r io.Reader) (model.Verification, error)
	Ping(ctx context.Context) error
}

// Options tunes the HTTP layer. Zero values select the defaults.
type Options struct {
	MaxBodySize     int64
	SignResponses   bool
	Limiter         *rate.Limiter
	ShutdownTimeout time.Duration
	Logger          *zerolog.Logger
}

const (
	defaultMaxBodySize     = 64 << 20
	defaultShutdownTimeout = 10 * time.Second
)

type Server struct {
	Srv     *http.Server
	digests Digests
	logger  *zerolog.Logger
	opts    Options
}

func NewServer(addr string, digests Digests, opts Options) *Server {
	if opts.MaxBodySize <= 0 {
		opts.MaxBodySize = defaultMaxBodySize
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = defaultShutdownTimeout
	}
	if opts.Logger == nil {
		opts.Logger = logger.Log
	}

	r := chi.NewRouter()
	s := &Server{
		Srv:     &http.Server{Addr: addr, Handler: r},
		digests: digests,
		logger:  opts.Logger,
		opts:    opts,
	}

	r.Use(chimw.RequestID)
	r.Use(logger.Middleware)
	r.Use(middleware.RateLimit(opts.Limiter))
	r.Use(middleware.Decompress)

	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.HashMiddleware(opts.SignResponses))

		r.Get("/", s.listDigestsHandler)
		r.Get("/ping", s.pingHandler)
		r.Post("/digest", s.computeHandler)
		r.Put("/digest/*", s.registerHandler)
		r.Get("/digest/*", s.getDigestHandler)
		r.Post("/verify/*", s.verifyHandler)
		r.Post("/register", s.importHandler)
	})

	r.NotFound(s.notFoundHandler)

	return s
}

func (s *Server) Run(ctx context.Context, runner *errgroup.Group) {
	s.logger.Info().Str("addr", s.Srv.Addr).Msg("Http server started.")

	runner.Go(func() error {
		if err := s.Srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
}

// Shutdown stops the server, giving in-flight requests the configured
// timeout. The caller's context is usually already cancelled by then, so the
// deadline is derived from a fresh one.
func (s *Server) Shutdown(_ context.Context) error {
	s.logger.Info().Msg("Http server stopped.")

	nctx, stop := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer stop()

	return s.Srv.Shutdown(nctx)
}

func (s *Server) GetRouter() *chi.Mux {
	return s.Srv.Handler.(*chi.Mux)
}
