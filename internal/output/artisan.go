package output

import (
	"fmt"

	"github.com/muurk/roastlink/internal/config"
	"github.com/muurk/roastlink/internal/discovery"
	"github.com/muurk/roastlink/internal/logging"
	"github.com/muurk/roastlink/internal/netmon"
	"github.com/muurk/roastlink/internal/sensor"
	"github.com/muurk/roastlink/internal/server"
	"go.uber.org/zap"
)

// Artisan serves readings to Artisan Scope over the WebSocket listener.
// Sending a reading hands it to the server; the active session answers
// Artisan's polls from the latest published value.
type Artisan struct {
	cfg *config.Config

	srv       *server.Server
	announcer *discovery.Announcer
	srvErr    chan error
}

// NewArtisan returns an unstarted Artisan output.
func NewArtisan(cfg *config.Config) *Artisan {
	return &Artisan{cfg: cfg}
}

// Name implements Output.
func (a *Artisan) Name() string { return "artisan" }

// RequiresNetwork implements Output.
func (a *Artisan) RequiresNetwork() bool { return true }

// Init implements Output: starts the listener and, when enabled,
// announces it over mDNS.
func (a *Artisan) Init(netmon.Manager) error {
	srv, err := server.New(&server.Config{
		Host: a.cfg.Server.Host,
		Port: a.cfg.Server.Port,
		Unit: a.cfg.Unit,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	a.srv = srv
	a.srvErr = make(chan error, 1)
	go func() {
		a.srvErr <- srv.Start()
	}()

	if a.cfg.Discovery.Enabled {
		announcer, err := discovery.Announce(
			a.cfg.Discovery.InstanceName,
			a.cfg.Server.Port,
			a.cfg.Unit,
		)
		if err != nil {
			logging.Warn("mDNS announce failed, continuing without discovery",
				zap.Error(err))
		} else {
			a.announcer = announcer
		}
	}

	logging.Info("Artisan output listening",
		zap.String("host", a.cfg.Server.Host),
		zap.Int("port", a.cfg.Server.Port),
		zap.String("unit", a.cfg.Unit),
		zap.Bool("discovery", a.announcer != nil),
	)
	return nil
}

// SendReading implements Output.
func (a *Artisan) SendReading(r sensor.Reading) error {
	if a.srv == nil {
		return fmt.Errorf("artisan output not initialized")
	}
	select {
	case err := <-a.srvErr:
		if err != nil {
			return fmt.Errorf("server stopped: %w", err)
		}
		return fmt.Errorf("server stopped")
	default:
	}
	a.srv.PublishReading(r)
	return nil
}

// SendStatus implements Output. Artisan's wire protocol has no status
// channel, so records only reach the log.
func (a *Artisan) SendStatus(status map[string]any) error {
	fields := make([]zap.Field, 0, len(status))
	for k, v := range status {
		fields = append(fields, zap.Any(k, v))
	}
	logging.Info("status", fields...)
	return nil
}

// Close implements Output.
func (a *Artisan) Close() {
	if a.announcer != nil {
		a.announcer.Shutdown()
		a.announcer = nil
	}
	if a.srv != nil {
		a.srv.Shutdown()
		a.srv = nil
	}
}
