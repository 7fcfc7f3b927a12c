package http

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"dice-drop-bot/internal/common/logger"
	"dice-drop-bot/internal/common/middleware"
	"dice-drop-bot/internal/service/ledger"
)

const serviceName = "dice-drop-bot"

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options configure the router.
type Options struct {
	Origin string
	Debug  bool
	// DefaultLimit is used when a leaderboard request has no limit.
	DefaultLimit int
}

// NewRouter builds the gin engine with probes and the read-only stats API.
func NewRouter(l *ledger.Ledger, store Pinger, activity Activity, opts Options) *gin.Engine {
	if !opts.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger())
	router.Use(middleware.ErrorHandler())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{opts.Origin}
	corsConfig.AllowMethods = []string{"GET", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Content-Type", "Accept", "X-Request-ID"}
	router.Use(cors.New(corsConfig))

	registerProbes(router, store)

	v1 := router.Group("/api/v1")
	v1.Use(middleware.HandleErrors())
	NewStatsHandlers(l, activity, opts.DefaultLimit).Register(v1)
	return router
}

func registerProbes(router *gin.Engine, store Pinger) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(stdhttp.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().UTC(),
			"service":   serviceName,
		})
	})

	router.GET("/live", func(c *gin.Context) {
		c.Status(stdhttp.StatusOK)
	})

	router.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := store.Ping(ctx); err != nil {
			c.JSON(stdhttp.StatusServiceUnavailable, gin.H{
				"status":  "unready",
				"error":   "store unavailable",
				"details": err.Error(),
			})
			return
		}
		c.JSON(stdhttp.StatusOK, gin.H{
			"status":    "ready",
			"timestamp": time.Now().UTC(),
			"service":   serviceName,
		})
	})
}

// Server runs the router on a port until Shutdown.
type Server struct {
	srv *stdhttp.Server
	log zerolog.Logger
}

func NewServer(port int, handler stdhttp.Handler) *Server {
	return &Server{
		srv: &stdhttp.Server{
			Addr:         fmt.Sprintf(":%d", port),
			Handler:      handler,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		log: logger.Component("http"),
	}
}

// Start serves in the background. A listen failure is sent on the returned channel.
func (s *Server) Start() <-chan error {
	errc := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.srv.Addr).Msg("Starting HTTP server")
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()
	return errc
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.srv.Shutdown(ctx)
}
