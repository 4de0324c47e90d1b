package web

import (
	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/rweb"

	"planroom/models"
)

// NewServer creates and configures the hub server.
func NewServer(cfg *models.Config) *rweb.Server {
	s := rweb.NewServer(rweb.ServerOptions{
		Address: cfg.Address,
		Verbose: true,
	})

	applyMiddleware(s)
	setupRoutes(s, cfg)

	return s
}

// NewTestServer creates a server with caller-supplied options (dynamic
// port, ready channel) for API tests. Routes and middleware match the
// production server; only the AI proxy upstream comes from the given
// config.
func NewTestServer(opts rweb.ServerOptions, cfg *models.Config) *rweb.Server {
	s := rweb.NewServer(opts)
	applyMiddleware(s)
	setupRoutes(s, cfg)
	return s
}

func applyMiddleware(s *rweb.Server) {
	s.Use(rweb.RequestInfo)  // Logs request info
	s.Use(CorsMiddleware)    // CORS headers for browser clients
	s.Use(JWTAuthMiddleware) // Populates user context from Bearer tokens
}

// Run starts the server.
func Run(s *rweb.Server) error {
	logger.Info("Planroom hub starting")
	return s.Run()
}
