package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"tonerelay/internal/config"
	"tonerelay/internal/relay"
)

// Server is the HTTP front of the relay: the upgrade endpoint at the root,
// static assets and a health check.
type Server struct {
	cfg        *config.Config
	hub        *relay.Hub
	httpServer *http.Server
	logger     *slog.Logger
}

// New builds the server around hub using cfg.
func New(cfg *config.Config, hub *relay.Hub) *Server {
	return &Server{
		cfg: cfg,
		hub: hub,
		httpServer: &http.Server{
			Addr:    cfg.Addr(),
			Handler: NewRouter(hub, RelayOptions(cfg), cfg.StaticDir),
		},
		logger: slog.Default(),
	}
}

// RelayOptions converts config into connection options.
func RelayOptions(cfg *config.Config) relay.Options {
	return relay.Options{
		MaxMessageSize: cfg.MaxMessageSize,
		SendBuffer:     cfg.SendBuffer,
		WriteWait:      cfg.WriteWait,
		PongWait:       cfg.PongWait,
		RateLimit:      cfg.RateLimit,
		RateBurst:      cfg.RateBurst,
	}
}

// NewRouter wires the routes. GET / upgrades WebSocket requests and serves
// index.html otherwise; any unmatched path is looked up in staticDir.
func NewRouter(hub *relay.Hub, opts relay.Options, staticDir string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())

	ws := relay.WSHandler(hub, opts)
	index := filepath.Join(staticDir, "index.html")

	r.GET("/", func(c *gin.Context) {
		if websocket.IsWebSocketUpgrade(c.Request) {
			ws(c)
			return
		}
		c.File(index)
	})

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":      "ok",
			"connections": hub.Count(),
		})
	})

	r.NoRoute(gin.WrapH(http.FileServer(http.Dir(staticDir))))

	return r
}

// Handler exposes the router, mostly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start listens until Shutdown is called. It returns nil on a clean shutdown.
func (s *Server) Start() error {
	s.logger.Info("server_listening",
		"addr", s.httpServer.Addr,
		"tls", s.cfg.TLSEnabled,
		"static_dir", s.cfg.StaticDir,
	)

	var err error
	if s.cfg.TLSEnabled {
		err = s.httpServer.ListenAndServeTLS(s.cfg.TLSCertPath, s.cfg.TLSKeyPath)
	} else {
		err = s.httpServer.ListenAndServe()
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to serve on %s: %w", s.httpServer.Addr, err)
	}
	return nil
}

// Shutdown stops accepting requests and closes every relay connection.
// Upgraded connections are hijacked, so http.Server.Shutdown does not wait
// for them; CloseAll ends their handlers.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	s.hub.CloseAll()
	if err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}
