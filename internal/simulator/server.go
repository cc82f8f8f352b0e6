package simulator

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/grandcat/zeroconf"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/muurk/tigerscale/internal/discovery"
	"github.com/muurk/tigerscale/internal/logging"
)

// Config holds the simulator configuration
type Config struct {
	Host      string
	Port      int
	StorePath string // bbolt file for persisted prefs (empty = in memory)
	Advertise bool   // announce the simulator over mDNS like the firmware
	Scale     ScaleConfig
	// TickInterval drives the automatic cloud push. Defaults to 1s.
	TickInterval time.Duration
}

// Server serves the firmware's HTTP and WebSocket API for one emulated scale
type Server struct {
	config   *Config
	scale    *Scale
	store    Store
	hub      *hub
	metrics  *requestMetrics
	registry *prometheus.Registry
	handler  http.Handler

	mu       sync.Mutex
	http     *http.Server
	mdns     *zeroconf.Server
	stopTick chan struct{}
	wg       sync.WaitGroup
}

// New creates a simulator with prefs loaded from the configured store
func New(config *Config) (*Server, error) {
	var store Store = NewMemoryStore()
	if config.StorePath != "" {
		bolt, err := OpenBoltStore(config.StorePath)
		if err != nil {
			return nil, err
		}
		store = bolt
	}

	scale, err := NewScale(config.Scale, store)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to boot emulated scale: %w", err)
	}

	s := &Server{
		config:   config,
		scale:    scale,
		store:    store,
		hub:      newHub(),
		registry: prometheus.NewRegistry(),
	}
	s.metrics = newRequestMetrics(s.registry, s.hub)
	s.handler = s.routes(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	scale.OnFrame(s.hub.broadcast)
	return s, nil
}

// Scale returns the emulated hardware, for driving it from tests.
func (s *Server) Scale() *Scale {
	return s.scale
}

// Handler returns the HTTP handler serving the whole API
func (s *Server) Handler() http.Handler {
	return s.handler
}

// PushClients returns the number of connected WebSocket clients
func (s *Server) PushClients() int {
	return s.hub.count()
}

// Start serves until SIGINT/SIGTERM, then shuts down gracefully
func (s *Server) Start() error {
	addr := net.JoinHostPort(s.config.Host, fmt.Sprint(s.config.Port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	logging.Info("Starting TigerScale simulator",
		zap.String("addr", listener.Addr().String()),
		zap.String("store", storeName(s.config.StorePath)),
		zap.Bool("mdns", s.config.Advertise),
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	errChan := make(chan error, 1)
	go func() {
		errChan <- s.Serve(listener)
	}()

	select {
	case <-sigChan:
		logging.Info("Shutdown signal received, stopping simulator...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.Shutdown(ctx)
	case err := <-errChan:
		return err
	}
}

// Serve accepts connections on listener until Shutdown is called
func (s *Server) Serve(listener net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.mu.Lock()
	s.http = srv
	s.stopTick = make(chan struct{})
	stop := s.stopTick
	s.mu.Unlock()

	if s.config.Advertise {
		if err := s.advertise(listener.Addr()); err != nil {
			logging.Warn("mDNS advertisement failed", zap.Error(err))
		}
	}

	interval := s.config.TickInterval
	if interval <= 0 {
		interval = time.Second
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				s.scale.Tick()
			}
		}
	}()

	err := srv.Serve(listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) advertise(addr net.Addr) error {
	tcp, ok := addr.(*net.TCPAddr)
	if !ok {
		return fmt.Errorf("cannot advertise non-TCP address %s", addr)
	}
	server, err := zeroconf.Register(discovery.InstanceName, discovery.ServiceType, discovery.Domain, tcp.Port,
		[]string{"path=/", "model=TigerScale", "sim=1"}, nil)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.mdns = server
	s.mu.Unlock()
	logging.Info("Advertising over mDNS", zap.String("instance", discovery.InstanceName), zap.Int("port", tcp.Port))
	return nil
}

// Shutdown gracefully shuts down the simulator
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down simulator...")

	s.mu.Lock()
	srv, mdns, stop := s.http, s.mdns, s.stopTick
	s.http, s.mdns, s.stopTick = nil, nil, nil
	s.mu.Unlock()

	if mdns != nil {
		mdns.Shutdown()
	}
	if stop != nil {
		close(stop)
	}

	var err error
	if srv != nil {
		err = srv.Shutdown(ctx)
	}

	// Hijacked WebSocket connections are not tracked by http.Server.
	s.hub.closeAll()
	s.wg.Wait()

	if cerr := s.store.Close(); cerr != nil && err == nil {
		err = cerr
	}
	logging.Sync()
	return err
}

func storeName(path string) string {
	if path == "" {
		return "memory"
	}
	return path
}
