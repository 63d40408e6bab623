// Package discovery announces the Artisan WebSocket endpoint over mDNS so
// operators can find the bridge without reading router DHCP tables.
package discovery

import (
	"fmt"

	"github.com/grandcat/zeroconf"
	"github.com/muurk/roastlink/internal/logging"
	"go.uber.org/zap"
)

const (
	// ServiceType is the mDNS service type the monitor advertises under.
	ServiceType = "_artisan-ws._tcp"

	// ServiceDomain is the mDNS domain (typically "local.")
	ServiceDomain = "local."

	// DefaultInstance is used when no instance name is configured.
	DefaultInstance = "roastlink"
)

// Announcer keeps one mDNS registration alive until Shutdown.
type Announcer struct {
	server *zeroconf.Server
}

// Announce registers the endpoint. The TXT records carry enough for a
// client to build the ws:// URL without probing.
func Announce(instance string, port int, unit string) (*Announcer, error) {
	if instance == "" {
		instance = DefaultInstance
	}

	server, err := zeroconf.Register(instance, ServiceType, ServiceDomain, port, TxtRecords(unit), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to register mDNS service: %w", err)
	}

	logging.Info("mDNS announcement registered",
		zap.String("instance", instance),
		zap.String("service", ServiceType),
		zap.Int("port", port),
	)

	return &Announcer{server: server}, nil
}

// TxtRecords builds the advertised TXT key/value pairs.
func TxtRecords(unit string) []string {
	return []string{
		"path=/",
		"proto=artisan",
		"unit=" + unit,
	}
}

// Shutdown withdraws the announcement. Safe to call on a nil receiver so
// callers can defer it unconditionally.
func (a *Announcer) Shutdown() {
	if a == nil || a.server == nil {
		return
	}
	a.server.Shutdown()
	logging.Info("mDNS announcement withdrawn")
}
