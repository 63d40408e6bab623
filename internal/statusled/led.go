// Package statusled drives a binary status indicator (the onboard LED on
// device builds) through the monitor's health states.
//
// A repeating blink pattern runs as a background task until explicitly
// stopped; stopping is idempotent and always leaves the output low.
// Single-shot pulses are synchronous and do not disturb a running pattern's
// bookkeeping beyond briefly owning the output.
package statusled

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/muurk/roastlink/internal/logging"
	"go.uber.org/zap"
)

// Driver sets the physical output. Implementations must tolerate being
// called from the pattern goroutine and the supervisor concurrently.
type Driver interface {
	Set(on bool)
}

// Step is one on/off period of a blink pattern.
type Step struct {
	On  time.Duration
	Off time.Duration
}

// Pattern is a repeating sequence of blink steps.
type Pattern []Step

// Blink vocabulary. Timings are slow enough to read by eye.
var (
	// InitPattern: short-short-pause while starting up.
	InitPattern = Pattern{{200 * time.Millisecond, 200 * time.Millisecond}, {200 * time.Millisecond, 800 * time.Millisecond}}

	// ConnectingPattern: same cadence as init, shown while the network
	// or an output channel is being brought up.
	ConnectingPattern = Pattern{{200 * time.Millisecond, 200 * time.Millisecond}, {200 * time.Millisecond, 800 * time.Millisecond}}

	// ErrorPattern: fast blink.
	ErrorPattern = Pattern{{100 * time.Millisecond, 100 * time.Millisecond}}
)

// SuccessPulse is the single-blink duration used to acknowledge one
// successful transmission.
const SuccessPulse = 150 * time.Millisecond

// State names the signal currently being presented.
type State int

const (
	StateIdle State = iota
	StateInit
	StateConnecting
	StateError
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInit:
		return "init"
	case StateConnecting:
		return "connecting"
	case StateError:
		return "error"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// Controller owns the output and at most one background pattern task.
type Controller struct {
	driver Driver

	mu    sync.Mutex
	state State
	stop  chan struct{}
	done  chan struct{}
}

// New creates a controller in the idle state with the output low.
func New(driver Driver) *Controller {
	driver.Set(false)
	return &Controller{driver: driver, state: StateIdle}
}

// State returns the signal currently presented.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ShowInit starts the initialization pattern.
func (c *Controller) ShowInit() {
	c.startPattern(StateInit, InitPattern)
}

// ShowConnecting starts the connecting pattern.
func (c *Controller) ShowConnecting() {
	c.startPattern(StateConnecting, ConnectingPattern)
}

// ShowError starts the fast error pattern. Calling it while the error
// pattern is already running is a no-op, so the supervisor can signal
// every failed iteration without restarting the blinker.
func (c *Controller) ShowError() {
	c.mu.Lock()
	if c.state == StateError {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()
	c.startPattern(StateError, ErrorPattern)
}

// ShowConnected plays the connected acknowledgement synchronously: three
// quick blinks then a short solid hold, finishing with the output low.
func (c *Controller) ShowConnected() {
	c.StopPattern()

	c.mu.Lock()
	c.state = StateConnected
	c.mu.Unlock()

	for i := 0; i < 3; i++ {
		c.driver.Set(true)
		time.Sleep(SuccessPulse)
		c.driver.Set(false)
		time.Sleep(SuccessPulse)
	}
	c.driver.Set(true)
	time.Sleep(1 * time.Second)
	c.driver.Set(false)

	c.mu.Lock()
	c.state = StateIdle
	c.mu.Unlock()
}

// PulseOnce blinks the output once for d. Synchronous.
func (c *Controller) PulseOnce(d time.Duration) {
	c.driver.Set(true)
	time.Sleep(d)
	c.driver.Set(false)
}

// StopPattern stops any running pattern and forces the output low.
// Idempotent; waits for the pattern task to exit so the output cannot be
// re-raised by a stale goroutine.
func (c *Controller) StopPattern() {
	c.mu.Lock()
	stop, done := c.stop, c.done
	c.stop, c.done = nil, nil
	c.state = StateIdle
	c.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}
	c.driver.Set(false)
}

func (c *Controller) startPattern(state State, pattern Pattern) {
	c.StopPattern()

	stop := make(chan struct{})
	done := make(chan struct{})

	c.mu.Lock()
	c.state = state
	c.stop, c.done = stop, done
	c.mu.Unlock()

	logging.Debug("Status pattern started", zap.String("state", state.String()))

	go func() {
		defer close(done)
		defer c.driver.Set(false)
		for {
			for _, step := range pattern {
				c.driver.Set(true)
				if sleepOrStop(step.On, stop) {
					return
				}
				c.driver.Set(false)
				if sleepOrStop(step.Off, stop) {
					return
				}
			}
		}
	}()
}

// sleepOrStop sleeps for d and reports whether stop fired first.
func sleepOrStop(d time.Duration, stop <-chan struct{}) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-stop:
		return true
	case <-timer.C:
		return false
	}
}

// NopDriver discards all output changes. Used when no indicator hardware
// is attached.
type NopDriver struct{}

// Set implements Driver.
func (NopDriver) Set(bool) {}

// ConsoleDriver writes a marker to stderr on each rising edge so the
// indicator is visible during bench runs without hardware.
type ConsoleDriver struct{}

// Set implements Driver.
func (ConsoleDriver) Set(on bool) {
	if on {
		fmt.Fprint(os.Stderr, "*")
	}
}
