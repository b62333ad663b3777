package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/bleflow/internal/auth"
	"github.com/nerrad567/bleflow/internal/bluetooth"
	"github.com/nerrad567/bleflow/internal/entry"
	"github.com/nerrad567/bleflow/internal/flow"
	"github.com/nerrad567/bleflow/internal/history"
	"github.com/nerrad567/bleflow/internal/infrastructure/config"
	"github.com/nerrad567/bleflow/internal/infrastructure/logging"
	"github.com/nerrad567/bleflow/internal/infrastructure/mqtt"
	"github.com/nerrad567/bleflow/internal/integration"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Security config.SecurityConfig
	Logger   *logging.Logger
	Flows    *flow.Manager
	Entries  *entry.Registry
	Cache    *bluetooth.Cache
	Profiles *integration.Catalogue
	History  history.Repository // optional
	MQTT     *mqtt.Client       // optional, reported by /metrics
	Version  string
}

// Server is the HTTP API server for bleflow.
//
// It is created with New and started with Start. New subscribes the
// WebSocket hub to flow events, so events are relayed even before Start.
type Server struct {
	cfg       config.APIConfig
	wsCfg     config.WebSocketConfig
	logger    *logging.Logger
	flows     *flow.Manager
	entries   *entry.Registry
	cache     *bluetooth.Cache
	profiles  *integration.Catalogue
	history   history.Repository
	mqtt      *mqtt.Client
	version   string
	auth      *auth.Authenticator
	tickets   *auth.TicketStore
	hub       *Hub
	server    *http.Server
	startTime time.Time
	cancel    context.CancelFunc // cancels background goroutines on Close()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Required dependencies (logger, flow manager, entry registry,
//     discovery cache, profiles, JWT secret); History and MQTT are optional
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing or the JWT secret is empty
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Flows == nil {
		return nil, fmt.Errorf("flow manager is required")
	}
	if deps.Entries == nil {
		return nil, fmt.Errorf("entry registry is required")
	}
	if deps.Cache == nil {
		return nil, fmt.Errorf("discovery cache is required")
	}
	if deps.Profiles == nil {
		return nil, fmt.Errorf("profile catalogue is required")
	}
	if deps.Security.JWT.Secret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}

	s := &Server{
		cfg:      deps.Config,
		wsCfg:    deps.WS,
		logger:   deps.Logger,
		flows:    deps.Flows,
		entries:  deps.Entries,
		cache:    deps.Cache,
		profiles: deps.Profiles,
		history:  deps.History,
		mqtt:     deps.MQTT,
		version:  deps.Version,
		auth: auth.NewAuthenticator(
			deps.Security.Admin,
			deps.Security.JWT.Secret,
			time.Duration(deps.Security.JWT.AccessTokenTTL)*time.Minute,
		),
		tickets:   auth.NewTicketStore(time.Duration(deps.Security.JWT.WSTicketTTL) * time.Second),
		hub:       NewHub(deps.WS, deps.Logger),
		startTime: time.Now(),
	}

	s.flows.Subscribe(s.relayFlowEvent)
	return s, nil
}

// Hub returns the WebSocket hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start begins listening for HTTP connections.
//
// It starts the WebSocket hub and ticket sweeper and launches the HTTP
// listener in a background goroutine. The server can be stopped with Close().
//
// Parameters:
//   - ctx: Context for the background goroutines (not the listener lifetime)
//
// Returns:
//   - error: Currently always nil; listener failures (port in use, bad TLS
//     files) are logged from the listener goroutine
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	go s.hub.Run(srvCtx)
	go s.tickets.Run(srvCtx)

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", s.server.Addr)
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.cancel != nil {
		s.cancel()
	}
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running and responsive.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if the server was started, error otherwise
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}
