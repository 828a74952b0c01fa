// Package server exposes the kernel over HTTP: a JSON API, a WebSocket
// snapshot stream and Prometheus metrics.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"collective/internal/colony"
	"collective/internal/config"
	"collective/internal/logging"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Version is reported by the health endpoint.
const Version = "4.0.0"

// Kernel is the subset of the kernel the server drives.
type Kernel interface {
	Init()
	Stop()
	Step() error
	IsRunning() bool
	ProposeSpawnAgent(t colony.AgentType, role, configJSON string) (colony.Proposal, error)
	ProposePolicyChange(proposer, name string, value float64) (colony.Proposal, error)
	HandleUserMessage(ctx context.Context, text string) error
	GenerateForesight(ctx context.Context) error
	Save(ctx context.Context) error
	Load(ctx context.Context) error
	Snapshot() colony.Snapshot
	Subscribe() (<-chan colony.Snapshot, func())
}

// Server is the HTTP presentation boundary.
type Server struct {
	kernel     Kernel
	engine     *gin.Engine
	httpServer *http.Server
	upgrader   websocket.Upgrader
	gatherer   prometheus.Gatherer
	startTime  time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds the engine and routes. gatherer backs /metrics; nil means the
// default registry.
func New(k Kernel, cfg config.ServerConfig, gatherer prometheus.Gatherer) *Server {
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestLogger())

	if cfg.EnableCORS {
		corsConfig := cors.DefaultConfig()
		corsConfig.AllowAllOrigins = true
		corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
		corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Requested-With"}
		corsConfig.AllowWebSockets = true
		engine.Use(cors.New(corsConfig))
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		kernel:   k,
		engine:   engine,
		gatherer: gatherer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		startTime: time.Now(),
		ctx:       ctx,
		cancel:    cancel,
	}
	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.engine.Group("/api")

	api.GET("/health", s.handleHealth)
	api.GET("/state", s.handleState)
	api.GET("/agents/:id", s.handleAgent)
	api.GET("/stream", s.handleStream)

	k := api.Group("/kernel")
	{
		k.POST("/init", s.handleInit)
		k.POST("/stop", s.handleStop)
		k.POST("/step", s.handleStep)
	}

	proposals := api.Group("/proposals")
	{
		proposals.POST("/spawn", s.handleProposeSpawn)
		proposals.POST("/policy", s.handleProposePolicy)
	}

	api.POST("/chat", s.handleChat)
	api.POST("/foresight", s.handleForesight)

	state := api.Group("/state")
	{
		state.POST("/save", s.handleSave)
		state.POST("/load", s.handleLoad)
	}

	s.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
}

// Handler returns the routed engine.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start serves until Shutdown. It returns nil after a clean shutdown.
func (s *Server) Start() error {
	logging.Server("listening on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Shutdown closes open streams and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Server("stopping HTTP server")
	s.cancel()

	err := s.httpServer.Shutdown(ctx)
	s.wg.Wait()
	if err != nil {
		logging.ServerError("shutdown: %v", err)
		return err
	}
	return nil
}

// requestLogger records each request in the server category.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logging.Get(logging.CategoryServer).Debug("%s %s -> %d (%v)",
			c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}
