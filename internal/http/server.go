package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"wellness-chat/pkg"
)

// Backend is what the API exposes: the session store operations and the
// completion service.  *transport.Direct satisfies it.
type Backend interface {
	GetSession(ctx context.Context, id pkg.SessionID) ([]pkg.Message, error)
	SaveSession(ctx context.Context, id pkg.SessionID, messages []pkg.Message) error
	SaveMessage(ctx context.Context, id pkg.SessionID, m pkg.Message) error
	EndSession(ctx context.Context, id pkg.SessionID) error
	Complete(ctx context.Context, prompt string, history []pkg.Turn) (string, error)
}

// Server bundles together the dependencies required by HTTP handlers.  It
// implements http.Handler so it can be passed to an http.Server.
type Server struct {
	Backend Backend
	Log     *zap.Logger
	router  *gin.Engine
}

// NewServer constructs a Server and registers its routes.
func NewServer(backend Backend, log *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(log))

	s := &Server{Backend: backend, Log: log, router: router}
	s.registerRoutes()
	return s
}

// ServeHTTP dispatches to the gin router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	s.Log.Info("listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http: %w", err)
	}
	return nil
}

// requestLogger logs one line per request.
func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("took", time.Since(start)))
	}
}
