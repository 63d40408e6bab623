// Package netmon answers one question for the supervisor: is the network
// there, and if not, can it be brought back.
//
// The retry policy is an explicit bounded exponential backoff and
// connectivity is a plain reachability probe that the supervisor polls.
// No connect/disconnect callbacks.
package netmon

import (
	"net"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/muurk/roastlink/internal/logging"
	"go.uber.org/zap"
)

// Manager is the supervisor's view of network health.
type Manager interface {
	// EnsureConnected verifies connectivity, attempting recovery under
	// the retry policy when it is missing. isReconnect distinguishes the
	// initial bring-up from mid-run recovery for logging.
	EnsureConnected(isReconnect bool) bool

	// IsConnected answers with a single cheap probe, no retries.
	IsConnected() bool
}

// Defaults for the dial-probe manager.
const (
	DefaultProbeAddr       = "8.8.8.8:53"
	DefaultDialTimeout     = 3 * time.Second
	DefaultMaxRetries      = 5
	DefaultInitialInterval = 2 * time.Second
	DefaultMaxInterval     = 30 * time.Second
)

// DialManager checks reachability by dialing a probe address. Recovery is
// a bounded retry loop: up to MaxRetries probes under exponential backoff.
type DialManager struct {
	ProbeAddr       string
	DialTimeout     time.Duration
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration

	// dial is swapped out in tests
	dial func(network, addr string, timeout time.Duration) (net.Conn, error)
}

// NewDialManager returns a manager probing addr (DefaultProbeAddr when
// empty) with default retry policy.
func NewDialManager(addr string) *DialManager {
	if addr == "" {
		addr = DefaultProbeAddr
	}
	return &DialManager{
		ProbeAddr:       addr,
		DialTimeout:     DefaultDialTimeout,
		MaxRetries:      DefaultMaxRetries,
		InitialInterval: DefaultInitialInterval,
		MaxInterval:     DefaultMaxInterval,
		dial:            net.DialTimeout,
	}
}

// IsConnected implements Manager.
func (m *DialManager) IsConnected() bool {
	conn, err := m.dial("tcp", m.ProbeAddr, m.DialTimeout)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// EnsureConnected implements Manager.
func (m *DialManager) EnsureConnected(isReconnect bool) bool {
	if m.IsConnected() {
		if !isReconnect {
			logging.Info("Network already reachable", zap.String("probe_addr", m.ProbeAddr))
		}
		return true
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = m.InitialInterval
	policy.MaxInterval = m.MaxInterval

	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		logging.Info("Network probe attempt",
			zap.Int("attempt", attempt),
			zap.Uint64("max_attempts", m.MaxRetries),
			zap.Bool("reconnect", isReconnect),
		)
		conn, err := m.dial("tcp", m.ProbeAddr, m.DialTimeout)
		if err != nil {
			return err
		}
		_ = conn.Close()
		return nil
	}, backoff.WithMaxRetries(policy, m.MaxRetries))

	if err != nil {
		logging.Error("Network unreachable after retries",
			zap.String("probe_addr", m.ProbeAddr),
			zap.Int("attempts", attempt),
			zap.Error(err),
		)
		return false
	}

	logging.Info("Network reachable",
		zap.String("probe_addr", m.ProbeAddr),
		zap.Int("attempts", attempt),
	)
	return true
}

// AlwaysOnline is a Manager for wired or loopback deployments where
// connectivity checks are pointless (and for tests).
type AlwaysOnline struct{}

// EnsureConnected implements Manager.
func (AlwaysOnline) EnsureConnected(bool) bool { return true }

// IsConnected implements Manager.
func (AlwaysOnline) IsConnected() bool { return true }
