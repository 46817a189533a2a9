package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nerrad567/gray-logic-tracker/internal/audit"
	"github.com/nerrad567/gray-logic-tracker/internal/device"
	"github.com/nerrad567/gray-logic-tracker/internal/host"
	"github.com/nerrad567/gray-logic-tracker/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-tracker/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-tracker/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-tracker/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-tracker/internal/location"
	"github.com/nerrad567/gray-logic-tracker/internal/tracker"
)

const gracefulShutdownTimeout = 10 * time.Second

// Coordinator is the part of *tracker.Coordinator the API drives.
type Coordinator interface {
	Status() tracker.Status
	RefreshOnce(ctx context.Context) error
}

// Deps wires the server. Logger, Host and Coordinator are required; a nil
// optional dependency turns the matching endpoint off or reports it as
// unavailable.
type Deps struct {
	Config      config.APIConfig
	WS          config.WebSocketConfig
	Metrics     config.MetricsConfig
	Logger      *logging.Logger
	Host        *host.Host
	Coordinator Coordinator
	Zones       *location.Resolver
	Devices     *device.Registry
	DB          *database.DB
	MQTT        *mqtt.Client
	Gatherer    prometheus.Gatherer
	Audit       *audit.Recorder
	AuditLog    audit.Repository
	Version     string

	// ExternalHub lets the host's broadcast sink share the hub before the
	// server starts. The caller then owns hub.Run.
	ExternalHub *Hub
}

// Server serves the REST API and the WebSocket stream.
type Server struct {
	cfg         config.APIConfig
	wsCfg       config.WebSocketConfig
	metricsCfg  config.MetricsConfig
	logger      *logging.Logger
	host        *host.Host
	coordinator Coordinator
	zones       *location.Resolver
	devices     *device.Registry
	db          *database.DB
	mqtt        *mqtt.Client
	gatherer    prometheus.Gatherer
	audit       *audit.Recorder
	auditLog    audit.Repository
	version     string
	startTime   time.Time

	server *http.Server
	hub    *Hub
	cancel context.CancelFunc
}

// New checks deps and returns an unstarted server.
func New(deps Deps) (*Server, error) {
	switch {
	case deps.Logger == nil:
		return nil, errors.New("logger is required")
	case deps.Host == nil:
		return nil, errors.New("host is required")
	case deps.Coordinator == nil:
		return nil, errors.New("coordinator is required")
	}

	return &Server{
		cfg:         deps.Config,
		wsCfg:       deps.WS,
		metricsCfg:  deps.Metrics,
		logger:      deps.Logger,
		host:        deps.Host,
		coordinator: deps.Coordinator,
		zones:       deps.Zones,
		devices:     deps.Devices,
		db:          deps.DB,
		mqtt:        deps.MQTT,
		gatherer:    deps.Gatherer,
		audit:       deps.Audit,
		auditLog:    deps.AuditLog,
		version:     deps.Version,
		startTime:   time.Now(),
		hub:         deps.ExternalHub,
	}, nil
}

// Hub returns the WebSocket hub, nil before Start unless one was injected.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start runs the hub if the server owns it, relays bridge health from MQTT
// to WebSocket subscribers, and listens in the background. Listener errors
// after startup are logged.
func (s *Server) Start(ctx context.Context) error {
	var runCtx context.Context
	runCtx, s.cancel = context.WithCancel(ctx)

	if s.hub == nil {
		s.hub = NewHub(s.wsCfg, s.logger)
		go s.hub.Run(runCtx)
	}
	if err := s.subscribeBridgeHealth(); err != nil {
		s.logger.Warn("failed to subscribe to bridge health for WebSocket", "error", err)
	}

	read := time.Duration(s.cfg.Timeouts.Read) * time.Second
	s.server = &http.Server{
		Addr:              net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port)),
		Handler:           s.buildRouter(),
		ReadTimeout:       read,
		ReadHeaderTimeout: read,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}
	go s.listen()
	return nil
}

func (s *Server) listen() {
	var err error
	if tls := s.cfg.TLS; tls.Enabled {
		s.logger.Info("API server starting with TLS", "address", s.server.Addr, "cert", tls.CertFile)
		err = s.server.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
	} else {
		s.logger.Info("API server starting", "address", s.server.Addr)
		err = s.server.ListenAndServe()
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Error("API server error", "error", err)
	}
}

// Close drains in-flight requests for up to gracefulShutdownTimeout.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}
	if s.cancel != nil {
		s.cancel()
	}
	if s.mqtt != nil {
		_ = s.mqtt.Unsubscribe(mqtt.Topics{}.BridgeHealth("+")) //nolint:errcheck // shutting down
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()
	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck fails until Start has run.
func (s *Server) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("api health check: %w", err)
	}
	if s.server == nil {
		return errors.New("api server not started")
	}
	return nil
}
