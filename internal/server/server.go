package server

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/muurk/roastlink/internal/logging"
	"github.com/muurk/roastlink/internal/sensor"
	"go.uber.org/zap"
)

// acceptPoll is the accept-loop deadline; the loop wakes this often to
// notice a shutdown request.
const acceptPoll = 1 * time.Second

// Config holds the WebSocket server configuration
type Config struct {
	Host string
	Port int
	// Unit selects which temperature backs temp1 in responses: "C" or "F"
	Unit string
}

// Server owns the listening transport and the shared latest reading.
//
// One session is served at a time: Artisan is a single client, and a
// second connection attempt simply waits in the accept backlog until the
// current session ends. The supervisor publishes readings; sessions only
// read them.
type Server struct {
	config *Config

	lmu      sync.Mutex
	listener *net.TCPListener

	mu     sync.RWMutex
	latest sensor.Reading

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// New creates a Server. The unit defaults to Celsius when unset.
func New(config *Config) (*Server, error) {
	if config.Unit == "" {
		config.Unit = "C"
	}
	if config.Unit != "C" && config.Unit != "F" {
		return nil, fmt.Errorf("invalid temperature unit: %q (must be C or F)", config.Unit)
	}
	return &Server{
		config: config,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}, nil
}

// Start binds the listener and runs the accept loop until Shutdown. It
// blocks; run it in a goroutine.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	tcpAddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		close(s.done)
		return fmt.Errorf("invalid listen address %q: %w", addr, err)
	}
	listener, err := net.ListenTCP("tcp", tcpAddr)
	if err != nil {
		close(s.done)
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.lmu.Lock()
	s.listener = listener
	s.lmu.Unlock()

	logging.Info("WebSocket server listening",
		zap.String("addr", listener.Addr().String()),
		zap.String("unit", s.config.Unit),
	)

	defer close(s.done)
	// Covers the path where Shutdown ran before the listener was bound
	defer func() { _ = listener.Close() }()
	return s.acceptLoop()
}

// acceptLoop accepts and serves one connection at a time. Session
// failures never end the loop; only listener failures or shutdown do.
func (s *Server) acceptLoop() error {
	for {
		select {
		case <-s.stop:
			return nil
		default:
		}

		if err := s.listener.SetDeadline(time.Now().Add(acceptPoll)); err != nil {
			return fmt.Errorf("failed to arm accept deadline: %w", err)
		}
		conn, err := s.listener.Accept()
		if err != nil {
			if isTimeout(err) {
				continue
			}
			select {
			case <-s.stop:
				return nil
			default:
			}
			return fmt.Errorf("accept failed: %w", err)
		}

		// Served to completion before the next accept; a session error
		// only ends that session
		newSession(conn, s).Run(s.stop)
	}
}

// Addr returns the bound listen address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.lmu.Lock()
	defer s.lmu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// PublishReading replaces the shared latest reading. A reading published
// before a request arrives is guaranteed visible in that request's
// response.
func (s *Server) PublishReading(r sensor.Reading) {
	s.mu.Lock()
	s.latest = r
	s.mu.Unlock()
}

// LatestReading returns the most recently published reading.
func (s *Server) LatestReading() sensor.Reading {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}

// Unit returns the configured temperature unit ("C" or "F").
func (s *Server) Unit() string {
	return s.config.Unit
}

// Shutdown signals termination and waits for the accept loop (and any
// active session) to finish. Idempotent, and safe to call even when Start
// never ran: with no bound listener there is nothing to wait for.
func (s *Server) Shutdown() {
	s.closeOnce.Do(func() {
		logging.Info("Shutting down WebSocket server")
		close(s.stop)
	})

	s.lmu.Lock()
	listener := s.listener
	s.lmu.Unlock()
	if listener == nil {
		return
	}
	_ = listener.Close()
	<-s.done
}
