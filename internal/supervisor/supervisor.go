// Package supervisor runs the monitor's main loop: sample the probe,
// deliver the reading, keep the network and status indicator honest, and
// escalate repeated failures until a clean shutdown is the only option
// left.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/muurk/roastlink/internal/config"
	"github.com/muurk/roastlink/internal/logging"
	"github.com/muurk/roastlink/internal/netmon"
	"github.com/muurk/roastlink/internal/output"
	"github.com/muurk/roastlink/internal/sensor"
	"github.com/muurk/roastlink/internal/statusled"
	"go.uber.org/zap"
)

// ErrTooManyFailures means the consecutive-failure ceiling was reached
// and the supervisor shut the monitor down.
var ErrTooManyFailures = errors.New("too many consecutive failures")

// ErrNetworkUnavailable means connectivity could not be established at
// startup for an output that needs it.
var ErrNetworkUnavailable = errors.New("network unavailable")

// Indicator is the status-LED surface the supervisor drives.
// *statusled.Controller satisfies it.
type Indicator interface {
	ShowInit()
	ShowConnecting()
	ShowError()
	ShowConnected()
	PulseOnce(d time.Duration)
	StopPattern()
}

// Supervisor owns one probe, one output channel, and the indicator, and
// runs them on a fixed cadence until the context ends or failures pile
// past the ceiling.
type Supervisor struct {
	cfg   *config.Config
	probe sensor.Probe
	out   output.Output
	net   netmon.Manager
	led   Indicator

	startedAt           time.Time
	consecutiveFailures int
	errorSignaled       bool
}

// New wires a supervisor. All collaborators are required.
func New(cfg *config.Config, probe sensor.Probe, out output.Output, mgr netmon.Manager, led Indicator) *Supervisor {
	return &Supervisor{
		cfg:   cfg,
		probe: probe,
		out:   out,
		net:   mgr,
		led:   led,
	}
}

// Run executes the monitor loop until ctx is cancelled (returns nil) or
// the failure ceiling is reached (returns ErrTooManyFailures). Startup
// failures return immediately without a status record; the output is not
// up yet to carry one.
func (s *Supervisor) Run(ctx context.Context) error {
	s.led.ShowInit()

	if s.out.RequiresNetwork() {
		s.led.ShowConnecting()
		if !s.net.EnsureConnected(false) {
			s.led.ShowError()
			return fmt.Errorf("%w: output %q needs connectivity", ErrNetworkUnavailable, s.out.Name())
		}
	}

	if err := s.out.Init(s.net); err != nil {
		s.led.ShowError()
		return fmt.Errorf("failed to initialize %s output: %w", s.out.Name(), err)
	}
	defer s.out.Close()
	defer s.led.StopPattern()

	s.led.ShowConnected()
	s.startedAt = time.Now()
	s.sendStatus("startup", nil)

	logging.Info("Monitor running",
		zap.String("output", s.out.Name()),
		zap.Duration("read_interval", s.cfg.ReadInterval()),
		zap.Int("max_errors", s.cfg.MaxErrors),
	)

	readTicker := time.NewTicker(s.cfg.ReadInterval())
	defer readTicker.Stop()
	netTicker := time.NewTicker(s.cfg.NetworkCheckInterval())
	defer netTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.sendStatus("shutdown", nil)
			logging.Info("Monitor stopped", zap.Duration("uptime", time.Since(s.startedAt)))
			return nil

		case <-netTicker.C:
			if err := s.checkNetwork(); err != nil {
				s.sendStatus("error_shutdown", err)
				return err
			}

		case <-readTicker.C:
			if err := s.poll(); err != nil {
				s.sendStatus("error_shutdown", err)
				return err
			}
		}
	}
}

// poll runs one read-and-deliver iteration. A non-nil return is terminal.
func (s *Supervisor) poll() error {
	r, err := s.probe.Read()
	if err != nil {
		return s.recordFailure("sensor", err)
	}
	if !r.Valid {
		return s.recordFailure("sensor", fmt.Errorf("implausible reading %.1f°C", r.Celsius))
	}

	logging.LogReading(r.Celsius, r.Fahrenheit, r.Valid)
	if err := s.out.SendReading(r); err != nil {
		return s.recordFailure("output", err)
	}

	s.recordSuccess()
	return nil
}

// checkNetwork verifies connectivity for network-backed outputs and
// attempts recovery when it is gone. A non-nil return is terminal.
func (s *Supervisor) checkNetwork() error {
	if !s.out.RequiresNetwork() {
		return nil
	}
	if s.net.IsConnected() {
		return nil
	}

	logging.Warn("Network connectivity lost, attempting recovery")
	s.signalError()
	if !s.net.EnsureConnected(true) {
		return s.recordFailure("network", errors.New("reconnect failed"))
	}

	logging.Info("Network connectivity restored")
	s.recordSuccess()
	return nil
}

func (s *Supervisor) recordFailure(source string, cause error) error {
	s.consecutiveFailures++
	logging.Warn("Monitor iteration failed",
		zap.String("source", source),
		zap.Int("consecutive", s.consecutiveFailures),
		zap.Error(cause),
	)

	if s.consecutiveFailures >= s.cfg.ErrorPatternThreshold {
		s.signalError()
	}
	if s.consecutiveFailures >= s.cfg.MaxErrors {
		return fmt.Errorf("%w: %d in a row, last from %s: %v",
			ErrTooManyFailures, s.consecutiveFailures, source, cause)
	}
	return nil
}

// signalError starts the error pattern and remembers that it is showing,
// so the next success can clear it regardless of how it was triggered.
func (s *Supervisor) signalError() {
	s.led.ShowError()
	s.errorSignaled = true
}

func (s *Supervisor) recordSuccess() {
	if s.errorSignaled {
		s.led.StopPattern()
		s.errorSignaled = false
	}
	if s.consecutiveFailures > 0 {
		logging.Info("Monitor recovered", zap.Int("cleared_failures", s.consecutiveFailures))
	}
	s.consecutiveFailures = 0
	s.led.PulseOnce(statusled.SuccessPulse)
}

// sendStatus emits a status record on the output. Delivery failures are
// logged and dropped; a status record is never worth a crash.
func (s *Supervisor) sendStatus(event string, cause error) {
	record := map[string]any{
		"event":                event,
		"output":               s.out.Name(),
		"uptime_seconds":       int(time.Since(s.startedAt).Seconds()),
		"consecutive_failures": s.consecutiveFailures,
	}
	if cause != nil {
		record["error"] = cause.Error()
	}
	if err := s.out.SendStatus(record); err != nil {
		logging.Warn("Failed to deliver status record",
			zap.String("event", event),
			zap.Error(err),
		)
	}
}
