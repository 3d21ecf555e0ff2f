package api

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	v1 "github.com/yourusername/healthwatch/api/v1"
	"github.com/yourusername/healthwatch/core"
)

// Server represents the API server
type Server struct {
	app        *core.App
	v1Router   *v1.Router
	httpServer *http.Server
	httpPort   int
}

// NewServer creates a new API server
func NewServer(app *core.App, port int) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := v1.NewRouter(app)

	return &Server{
		app:      app,
		v1Router: router,
		httpPort: port,
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", port),
			Handler:      router.GetEngine(),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
	}
}

// Start starts the HTTP server in the background. Shutdown stops it.
func (s *Server) Start() {
	go func() {
		log.Printf("API server starting on port %d", s.httpPort)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("API server failed: %v", err)
		}
	}()
}

// Shutdown gracefully stops the server, giving outstanding requests
// until the context deadline to complete
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// GetEngine returns the Gin engine (for testing purposes)
func (s *Server) GetEngine() *gin.Engine {
	return s.v1Router.GetEngine()
}

// GetAccessURL returns the access URL for the API
func (s *Server) GetAccessURL() string {
	return fmt.Sprintf("http://localhost:%d", s.httpPort)
}

// PrintStartupInfo prints startup information
func (s *Server) PrintStartupInfo() {
	fmt.Printf("healthwatch API: %s\n", s.GetAccessURL())
	fmt.Printf("  GET  /v1/incidents                  - List incidents\n")
	fmt.Printf("  GET  /v1/incidents/:id              - Get incident\n")
	fmt.Printf("  GET  /v1/incidents/:id/timeline     - Incident timeline\n")
	fmt.Printf("  POST /v1/incidents/:id/acknowledge  - Acknowledge incident\n")
	fmt.Printf("  GET  /v1/uptime?check=&period=      - Uptime fraction\n")
	fmt.Printf("  GET  /v1/checks                     - Registered checks\n")
	fmt.Printf("  GET  /health                        - Liveness\n")
}
