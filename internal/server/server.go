package server

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/chew-z/llm-nodes/internal/chat"
	"github.com/chew-z/llm-nodes/internal/config"
	"github.com/chew-z/llm-nodes/internal/nodes"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Server represents the HTTP node server
type Server struct {
	config    *config.Config
	router    *gin.Engine
	server    *http.Server
	captioner *nodes.Captioner
	responder *nodes.Responder
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config, host string, port int) *Server {
	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	if cfg.Debug {
		// Log to file in $TMPDIR as well as the console
		logPath := filepath.Join(os.TempDir(), "llm-nodes.log")
		logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			log.Printf("Warning: Could not create log file %s: %v", logPath, err)
		} else {
			gin.DefaultWriter = io.MultiWriter(logFile, os.Stdout)
			gin.DefaultErrorWriter = io.MultiWriter(logFile, os.Stderr)
			log.Printf("Logging to %s", logPath)
		}
	} else {
		gin.DisableConsoleColor()
	}

	router := gin.New()
	router.Use(gin.Recovery())

	if cfg.Debug {
		router.Use(gin.Logger())
	}

	if len(cfg.AllowedOrigins) > 0 {
		router.Use(corsMiddleware(cfg.AllowedOrigins))
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = chat.DefaultTimeout
	}
	client := chat.NewClient(chat.WithHTTPClient(&http.Client{
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConnsPerHost: 16,
			IdleConnTimeout:     90 * time.Second,
		},
		Timeout: timeout,
	}))

	srv := &http.Server{
		Addr:    getAddr(host, port),
		Handler: router,
	}

	server := &Server{
		config:    cfg,
		router:    router,
		server:    srv,
		captioner: nodes.NewCaptioner(client),
		responder: nodes.NewResponder(client),
	}

	server.setupRoutes()

	return server
}

// corsMiddleware lets a browser-hosted node graph call the server.
func corsMiddleware(origins []string) gin.HandlerFunc {
	cc := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if slices.Contains(origins, "*") {
		cc.AllowAllOrigins = true
	} else {
		cc.AllowOrigins = origins
	}
	return cors.New(cc)
}

// Start starts the HTTP server
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// CreateShutdownContext creates a context for graceful shutdown
func CreateShutdownContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}

func (s *Server) setupRoutes() {
	s.router.GET("/api/version", s.handleVersion)

	// Node schemas
	s.router.GET("/object_info", s.handleObjectInfo)
	s.router.GET("/object_info/:node", s.handleNodeInfo)
	s.router.GET("/api/display_names", s.handleDisplayNames)

	// Node execution
	s.router.POST("/nodes/:node/run", requireJSON(), s.handleRun)

	s.router.GET("/healthz", s.handleHealth)
}

// getAddr returns the address string from host and port
func getAddr(host string, port int) string {
	return fmt.Sprintf("%s:%d", host, port)
}

// handleHealth is a simple health check endpoint
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}
