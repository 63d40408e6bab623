// Package output implements the monitor's reading sinks.
//
// A channel is one implementation of the Output interface and selection
// is a tagged switch on the configured mode:
//
//	console: formatted lines on stdout, for bench use
//	mqtt:    per-field subtopics on a broker, for automation
//	artisan: the WebSocket server Artisan Scope polls
package output

import (
	"fmt"

	"github.com/muurk/roastlink/internal/config"
	"github.com/muurk/roastlink/internal/netmon"
	"github.com/muurk/roastlink/internal/sensor"
)

// Output is a destination for readings and status records. The supervisor
// owns exactly one.
type Output interface {
	// Name identifies the channel in logs and status records.
	Name() string

	// RequiresNetwork reports whether Init needs connectivity first.
	RequiresNetwork() bool

	// Init brings the channel up. For network-backed channels the
	// manager has already verified reachability.
	Init(mgr netmon.Manager) error

	// SendReading delivers one valid reading. An error counts as one
	// output failure toward the supervisor's escalation ceiling.
	SendReading(r sensor.Reading) error

	// SendStatus delivers a status record (startup, shutdown, error).
	SendStatus(status map[string]any) error

	// Close releases the channel's resources. Idempotent.
	Close()
}

// New selects and constructs the configured output channel.
func New(cfg *config.Config) (Output, error) {
	switch cfg.Output {
	case config.OutputConsole:
		return NewConsole(cfg.Unit), nil
	case config.OutputMQTT:
		return NewMQTT(cfg.MQTT, cfg.Unit), nil
	case config.OutputArtisan:
		return NewArtisan(cfg), nil
	default:
		return nil, fmt.Errorf("unknown output mode: %q", cfg.Output)
	}
}
