// Package server exposes briefs and the saved history as a JSON API.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ppiankov/newspan/internal/article"
	"github.com/ppiankov/newspan/internal/brief"
	"github.com/ppiankov/newspan/internal/source"
	"github.com/ppiankov/newspan/internal/store"
)

const (
	DefaultBriefTimeout = 2 * time.Minute
	shutdownTimeout     = 10 * time.Second
)

// Briefer produces a brief for a request.
type Briefer interface {
	Brief(ctx context.Context, req brief.Request) (brief.Result, error)
}

// History is the saved-summary store behind the dashboard.
type History interface {
	SaveRun(ctx context.Context, run store.Run, summaries []article.Summary) (int, error)
	List(ctx context.Context, f store.Filter) ([]store.Entry, error)
	Stats(ctx context.Context, now time.Time) (store.Stats, error)
	Clear(ctx context.Context) (int64, error)
}

type Options struct {
	// Sources are listed by GET /api/sources.
	Sources []source.Source
	// DefaultSources are used when a brief request names none.
	DefaultSources []string
	// BriefTimeout bounds one POST /api/brief.
	BriefTimeout time.Duration
	Now          func() time.Time
	Logger       *slog.Logger
}

// Server serves the dashboard API. History may be nil, in which case
// briefs are not saved and history routes answer 503.
type Server struct {
	briefer Briefer
	history History
	opts    Options
	logger  *slog.Logger
}

func New(b Briefer, h History, opts Options) *Server {
	if opts.BriefTimeout <= 0 {
		opts.BriefTimeout = DefaultBriefTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Server{briefer: b, history: h, opts: opts, logger: opts.Logger}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger(), cors())

	api := r.Group("/api")
	api.GET("/health", s.handleHealth)
	api.GET("/sources", s.handleSources)
	api.POST("/brief", s.handleBrief)
	api.GET("/articles", s.handleListArticles)
	api.DELETE("/articles", s.handleClearArticles)
	api.GET("/stats", s.handleStats)
	api.GET("/export", s.handleExport)
	return r
}

// Run listens on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("dashboard listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}

// cors allows any origin so a locally opened dashboard page can call the API.
func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
