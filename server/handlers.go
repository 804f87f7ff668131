package server

import (
	"context"
	"crypto/tls"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/spawnx1/REALTIMETRACKING/pkg/config"
	"github.com/spawnx1/REALTIMETRACKING/pkg/health"
	"github.com/spawnx1/REALTIMETRACKING/pkg/hub"
	"github.com/spawnx1/REALTIMETRACKING/pkg/logger"
	"github.com/spawnx1/REALTIMETRACKING/pkg/metrics"
	"github.com/spawnx1/REALTIMETRACKING/pkg/publisher"
	"github.com/spawnx1/REALTIMETRACKING/pkg/storage"
)

// Server wires the hub, route store and HTTP surface together
type Server struct {
	cfg       *config.ServerConfig
	hub       *hub.Hub
	store     storage.Store
	collector *metrics.Collector
	monitor   *health.Monitor
	publisher *publisher.NATSPublisher
	upgrader  websocket.Upgrader

	httpServer *http.Server
	serverMu   sync.Mutex
	started    bool
	startedMu  sync.Mutex
}

// NewServer assembles a server from configuration. The route store and the
// NATS mirror are optional: failure to reach either degrades the server
// instead of stopping it.
func NewServer(cfg *config.ServerConfig) (*Server, error) {
	log := logger.Get()

	collector := metrics.NewCollector()
	monitor := health.NewMonitor()

	store, err := storage.NewStore(cfg.Database)
	if err != nil {
		log.ErrorWithErr("failed to open route store", err)
		log.WarnWith("continuing without route dataset")
		monitor.SetComponentStatus("storage", health.StatusDegraded, err.Error())
		store = nil
	} else {
		monitor.SetComponentStatus("storage", health.StatusHealthy, cfg.Database.Type)
	}

	if store != nil && cfg.Dataset.Path != "" {
		routes, stops, err := storage.LoadDataset(store, cfg.Dataset.Path)
		if err != nil {
			log.ErrorWithErr("failed to seed route dataset", err, "path", cfg.Dataset.Path)
			monitor.SetComponentStatus("dataset", health.StatusDegraded, err.Error())
		} else {
			log.InfoWith("route dataset seeded", "routes", routes, "stops", stops)
			monitor.SetComponentStatus("dataset", health.StatusHealthy, cfg.Dataset.Path)
		}
	}

	var pub *publisher.NATSPublisher
	if cfg.NATS.URL != "" {
		pub, err = publisher.NewNATSPublisher(cfg.NATS.URL, cfg.NATS.SubjectPrefix, collector)
		if err != nil {
			log.ErrorWithErr("failed to connect position mirror", err, "url", cfg.NATS.URL)
			log.WarnWith("continuing without position mirror")
			monitor.SetComponentStatus("nats", health.StatusDegraded, err.Error())
			pub = nil
		} else {
			monitor.SetComponentStatus("nats", health.StatusHealthy, cfg.NATS.URL)
		}
	}

	opts := hub.Options{
		SendBufferSize: cfg.WebSocket.SendBufferSize,
		ReadLimitBytes: cfg.WebSocket.ReadLimitBytes,
		WriteTimeout:   time.Duration(cfg.WebSocket.WriteTimeoutSec) * time.Second,
		PongTimeout:    time.Duration(cfg.WebSocket.PongTimeoutSec) * time.Second,
	}

	var hubPublisher hub.Publisher
	if pub != nil {
		hubPublisher = pub
	}

	s := &Server{
		cfg:       cfg,
		hub:       hub.New(opts, collector, hubPublisher),
		store:     store,
		collector: collector,
		monitor:   monitor,
		publisher: pub,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
	s.monitor.SetComponentStatus("hub", health.StatusHealthy, "dispatch loop")

	return s, nil
}

// checkOrigin admits browsers from the configured origins. "*" admits all.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.cfg.CORS.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// Router builds the gin router with all routes registered
func (s *Server) Router() *gin.Engine {
	router := gin.Default()
	// Limit trusted proxies; do not trust arbitrary proxies by default
	_ = router.SetTrustedProxies([]string{"127.0.0.1"})
	router.RemoteIPHeaders = []string{"X-Forwarded-For", "X-Real-IP"}
	router.ForwardedByClientIP = true

	corsCfg := cors.DefaultConfig()
	if len(s.cfg.CORS.AllowedOrigins) == 1 && s.cfg.CORS.AllowedOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = s.cfg.CORS.AllowedOrigins
	}
	corsCfg.AllowMethods = []string{"GET", "OPTIONS"}
	router.Use(cors.New(corsCfg))

	// WebSocket endpoint for browser clients
	router.GET("/ws", s.ginHandleWebSocket)

	// Read-only API over live state
	router.GET("/api/health", s.ginHandleHealth)
	router.GET("/api/connections", s.ginHandleConnectionsList)
	router.GET("/api/connections/:id", s.ginHandleConnectionGet)

	// Static route dataset
	router.GET("/api/routes", s.ginHandleRoutesList)
	router.GET("/api/routes/:id", s.ginHandleRouteGet)
	router.GET("/api/routes/:id/stops", s.ginHandleRouteStops)

	// Prometheus scrape endpoint
	router.GET("/metrics", gin.WrapH(s.collector.Handler()))

	return router
}

// Start runs the hub dispatch loop and the HTTP listener. Blocks until the
// listener stops.
func (s *Server) Start() error {
	s.startedMu.Lock()
	if s.started {
		logger.Get().WarnWith("server already started, skipping duplicate start")
		s.startedMu.Unlock()
		return nil
	}
	s.started = true
	s.startedMu.Unlock()

	s.hub.Start()

	router := s.Router()

	log := logger.Get()
	log.InfoWith("server starting", "address", s.cfg.Address)

	if s.cfg.TLS.Enabled && s.cfg.TLS.CertFile != "" && s.cfg.TLS.KeyFile != "" {
		tlsConfig := &tls.Config{
			MinVersion: tls.VersionTLS12,
			CipherSuites: []uint16{
				tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
				tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
			},
		}

		server := &http.Server{
			Addr:      s.cfg.Address,
			Handler:   router,
			TLSConfig: tlsConfig,
		}

		s.serverMu.Lock()
		s.httpServer = server
		s.serverMu.Unlock()

		log.InfoWith("using direct TLS")
		return server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
	}

	server := &http.Server{
		Addr:    s.cfg.Address,
		Handler: router,
	}

	s.serverMu.Lock()
	s.httpServer = server
	s.serverMu.Unlock()

	log.InfoWith("using HTTP", "note", "TLS should be handled by reverse proxy")
	return server.ListenAndServe()
}

// Shutdown stops the HTTP listener, the hub, and the external resources
func (s *Server) Shutdown(ctx context.Context) error {
	log := logger.Get()
	log.InfoWith("initiating graceful shutdown")

	s.startedMu.Lock()
	s.started = false
	s.startedMu.Unlock()

	s.serverMu.Lock()
	httpServer := s.httpServer
	s.serverMu.Unlock()

	if httpServer != nil {
		if err := httpServer.Shutdown(ctx); err != nil {
			log.ErrorWithErr("error shutting down HTTP server", err)
			httpServer.Close()
		}
	}

	s.hub.Stop()

	if s.publisher != nil {
		s.publisher.Close()
	}

	if s.store != nil {
		if err := s.store.Close(); err != nil {
			log.ErrorWithErr("error closing route store", err)
		}
	}

	log.InfoWith("graceful shutdown complete")
	return nil
}

// Hub exposes the hub for tests
func (s *Server) Hub() *hub.Hub {
	return s.hub
}

// ginHandleWebSocket upgrades the connection and hands it to the hub
func (s *Server) ginHandleWebSocket(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Get().WarnWith("websocket upgrade failed", "remote", c.ClientIP(), "error", err)
		return
	}

	client := s.hub.NewClient(conn, c.ClientIP())
	s.hub.Register(client)

	go client.WritePump()
	go client.ReadPump(s.hub)
}

func (s *Server) ginHandleHealth(c *gin.Context) {
	h := s.monitor.GetHealth(s.hub.Count(), s.hub.BusID() != "")

	code := http.StatusOK
	if h.Status == health.StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, h)
}

func (s *Server) ginHandleConnectionsList(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"connections": s.hub.Connections(),
		"busId":       s.hub.BusID(),
		"count":       s.hub.Count(),
	})
}

func (s *Server) ginHandleConnectionGet(c *gin.Context) {
	id := c.Param("id")
	info, ok := s.hub.Connection(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "connection not found"})
		return
	}
	c.JSON(http.StatusOK, info)
}

func (s *Server) ginHandleRoutesList(c *gin.Context) {
	if s.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "route store not available"})
		return
	}

	routes, err := s.store.GetAllRoutes()
	if err != nil {
		logger.Get().ErrorWithErr("failed to list routes", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list routes"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"routes": routes, "count": len(routes)})
}

func (s *Server) ginHandleRouteGet(c *gin.Context) {
	if s.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "route store not available"})
		return
	}

	route, err := s.store.GetRoute(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
		return
	}
	c.JSON(http.StatusOK, route)
}

func (s *Server) ginHandleRouteStops(c *gin.Context) {
	if s.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "route store not available"})
		return
	}

	id := c.Param("id")
	if _, err := s.store.GetRoute(id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
		return
	}

	stops, err := s.store.GetStopsByRoute(id)
	if err != nil {
		logger.Get().ErrorWithErr("failed to list stops", err, "routeID", id)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list stops"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"route_id": id, "stops": stops, "count": len(stops)})
}
