package supervisor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/muurk/roastlink/internal/config"
	"github.com/muurk/roastlink/internal/netmon"
	"github.com/muurk/roastlink/internal/sensor"
)

// fakeProbe returns readings from a script, repeating the last entry
// once the script is exhausted.
type fakeProbe struct {
	mu     sync.Mutex
	script []probeStep
	reads  int
}

type probeStep struct {
	celsius float64
	err     error
}

func (p *fakeProbe) Read() (sensor.Reading, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	i := p.reads
	if i >= len(p.script) {
		i = len(p.script) - 1
	}
	p.reads++
	step := p.script[i]
	if step.err != nil {
		return sensor.Reading{}, step.err
	}
	return sensor.NewReading(step.celsius), nil
}

type fakeOutput struct {
	mu           sync.Mutex
	needsNetwork bool
	initErr      error
	sendErr      error

	inited   bool
	readings []sensor.Reading
	statuses []map[string]any
	closed   bool
}

func (o *fakeOutput) Name() string          { return "fake" }
func (o *fakeOutput) RequiresNetwork() bool { return o.needsNetwork }

func (o *fakeOutput) Init(netmon.Manager) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.initErr != nil {
		return o.initErr
	}
	o.inited = true
	return nil
}

func (o *fakeOutput) SendReading(r sensor.Reading) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.sendErr != nil {
		return o.sendErr
	}
	o.readings = append(o.readings, r)
	return nil
}

func (o *fakeOutput) SendStatus(status map[string]any) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.statuses = append(o.statuses, status)
	return nil
}

func (o *fakeOutput) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed = true
}

func (o *fakeOutput) events() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	var events []string
	for _, s := range o.statuses {
		events = append(events, s["event"].(string))
	}
	return events
}

func (o *fakeOutput) readingCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.readings)
}

type fakeIndicator struct {
	mu    sync.Mutex
	calls []string
}

func (l *fakeIndicator) record(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, name)
}

func (l *fakeIndicator) ShowInit()               { l.record("init") }
func (l *fakeIndicator) ShowConnecting()         { l.record("connecting") }
func (l *fakeIndicator) ShowError()              { l.record("error") }
func (l *fakeIndicator) ShowConnected()          { l.record("connected") }
func (l *fakeIndicator) PulseOnce(time.Duration) { l.record("pulse") }
func (l *fakeIndicator) StopPattern()            { l.record("stop") }

// clearedAfterError reports whether a stop follows the last error signal.
func (l *fakeIndicator) clearedAfterError() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	lastError := -1
	for i, c := range l.calls {
		if c == "error" {
			lastError = i
		}
	}
	if lastError < 0 {
		return false
	}
	for _, c := range l.calls[lastError+1:] {
		if c == "stop" {
			return true
		}
	}
	return false
}

func (l *fakeIndicator) count(name string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, c := range l.calls {
		if c == name {
			n++
		}
	}
	return n
}

// flakyNet scripts IsConnected results and counts reconnect attempts.
type flakyNet struct {
	mu         sync.Mutex
	connected  []bool
	checks     int
	reconnects int
	recoverOK  bool
}

func (n *flakyNet) IsConnected() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	i := n.checks
	if i >= len(n.connected) {
		i = len(n.connected) - 1
	}
	n.checks++
	return n.connected[i]
}

func (n *flakyNet) EnsureConnected(isReconnect bool) bool {
	if !isReconnect {
		return true
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reconnects++
	return n.recoverOK
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.ReadIntervalSeconds = 0.005
	cfg.NetworkCheckIntervalSeconds = 3600
	cfg.MaxErrors = 4
	cfg.ErrorPatternThreshold = 2
	return cfg
}

func runUntil(t *testing.T, s *Supervisor, stop func() bool) error {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(ctx) }()

	deadline := time.After(5 * time.Second)
	for {
		select {
		case err := <-errCh:
			return err
		case <-deadline:
			cancel()
			t.Fatalf("condition not reached before deadline")
		case <-time.After(2 * time.Millisecond):
			if stop != nil && stop() {
				cancel()
				return <-errCh
			}
		}
	}
}

func TestRunDeliversReadings(t *testing.T) {
	probe := &fakeProbe{script: []probeStep{{celsius: 203.2}}}
	out := &fakeOutput{}
	led := &fakeIndicator{}
	s := New(testConfig(), probe, out, netmon.AlwaysOnline{}, led)

	err := runUntil(t, s, func() bool { return out.readingCount() >= 3 })
	if err != nil {
		t.Fatalf("Run returned %v, want nil on cancellation", err)
	}

	if out.readingCount() < 3 {
		t.Errorf("delivered %d readings, want at least 3", out.readingCount())
	}
	events := out.events()
	if len(events) < 2 || events[0] != "startup" || events[len(events)-1] != "shutdown" {
		t.Errorf("status events = %v, want startup first and shutdown last", events)
	}
	if led.count("connected") != 1 {
		t.Errorf("connected signal shown %d times, want 1", led.count("connected"))
	}
	if led.count("pulse") == 0 {
		t.Error("no success pulses recorded")
	}
	if !out.closed {
		t.Error("output not closed on shutdown")
	}
}

func TestRunEscalatesToShutdownAtCeiling(t *testing.T) {
	probe := &fakeProbe{script: []probeStep{{err: sensor.ErrProbeUnavailable}}}
	out := &fakeOutput{}
	led := &fakeIndicator{}
	s := New(testConfig(), probe, out, netmon.AlwaysOnline{}, led)

	err := runUntil(t, s, nil)
	if !errors.Is(err, ErrTooManyFailures) {
		t.Fatalf("Run returned %v, want ErrTooManyFailures", err)
	}

	events := out.events()
	shutdowns := 0
	for _, e := range events {
		if e == "error_shutdown" {
			shutdowns++
		}
	}
	if shutdowns != 1 {
		t.Errorf("error_shutdown sent %d times, want exactly 1 (events %v)", shutdowns, events)
	}
	if led.count("error") == 0 {
		t.Error("error pattern never shown despite repeated failures")
	}
	if !out.closed {
		t.Error("output not closed on terminal shutdown")
	}
}

func TestRunRecoveryClearsFailures(t *testing.T) {
	// Two failures reach the pattern threshold, then the probe recovers;
	// the ceiling of four must never be hit.
	probe := &fakeProbe{script: []probeStep{
		{err: sensor.ErrProbeUnavailable},
		{err: sensor.ErrProbeUnavailable},
		{celsius: 190},
	}}
	out := &fakeOutput{}
	led := &fakeIndicator{}
	s := New(testConfig(), probe, out, netmon.AlwaysOnline{}, led)

	err := runUntil(t, s, func() bool { return out.readingCount() >= 5 })
	if err != nil {
		t.Fatalf("Run returned %v, want nil after recovery", err)
	}
	if led.count("error") == 0 {
		t.Error("error pattern not shown at threshold")
	}
	if led.count("stop") == 0 {
		t.Error("error pattern not stopped after recovery")
	}
}

func TestRunInvalidReadingCountsAsFailure(t *testing.T) {
	probe := &fakeProbe{script: []probeStep{{celsius: 1200}}}
	out := &fakeOutput{}
	s := New(testConfig(), probe, out, netmon.AlwaysOnline{}, &fakeIndicator{})

	err := runUntil(t, s, nil)
	if !errors.Is(err, ErrTooManyFailures) {
		t.Fatalf("Run returned %v, want ErrTooManyFailures for implausible readings", err)
	}
	if out.readingCount() != 0 {
		t.Errorf("%d invalid readings delivered, want 0", out.readingCount())
	}
}

func TestRunOutputFailureCountsTowardCeiling(t *testing.T) {
	probe := &fakeProbe{script: []probeStep{{celsius: 200}}}
	out := &fakeOutput{sendErr: errors.New("broker gone")}
	s := New(testConfig(), probe, out, netmon.AlwaysOnline{}, &fakeIndicator{})

	err := runUntil(t, s, nil)
	if !errors.Is(err, ErrTooManyFailures) {
		t.Fatalf("Run returned %v, want ErrTooManyFailures", err)
	}
}

func TestRunStartupNetworkFailure(t *testing.T) {
	out := &fakeOutput{needsNetwork: true}
	s := New(testConfig(), &fakeProbe{script: []probeStep{{celsius: 20}}}, out, offlineNet{}, &fakeIndicator{})

	err := s.Run(context.Background())
	if !errors.Is(err, ErrNetworkUnavailable) {
		t.Fatalf("Run returned %v, want ErrNetworkUnavailable", err)
	}
	if out.inited {
		t.Error("output initialized despite missing connectivity")
	}
}

func TestRunInitFailure(t *testing.T) {
	out := &fakeOutput{initErr: errors.New("bind failed")}
	led := &fakeIndicator{}
	s := New(testConfig(), &fakeProbe{script: []probeStep{{celsius: 20}}}, out, netmon.AlwaysOnline{}, led)

	err := s.Run(context.Background())
	if err == nil {
		t.Fatal("Run succeeded despite output init failure")
	}
	if led.count("error") != 1 {
		t.Errorf("error signal shown %d times, want 1", led.count("error"))
	}
}

func TestRunNetworkRecovery(t *testing.T) {
	cfg := testConfig()
	cfg.NetworkCheckIntervalSeconds = 0.005

	probe := &fakeProbe{script: []probeStep{{celsius: 200}}}
	out := &fakeOutput{needsNetwork: true}
	net := &flakyNet{connected: []bool{false, true}, recoverOK: true}
	led := &fakeIndicator{}
	s := New(cfg, probe, out, net, led)

	// Keep running past the recovery so the trace shows what the
	// indicator does on the healthy iterations that follow.
	err := runUntil(t, s, func() bool {
		net.mu.Lock()
		defer net.mu.Unlock()
		return net.reconnects >= 1 && out.readingCount() >= 5
	})
	if err != nil {
		t.Fatalf("Run returned %v, want nil", err)
	}

	net.mu.Lock()
	reconnects := net.reconnects
	net.mu.Unlock()
	if reconnects < 1 {
		t.Error("no reconnect attempted after connectivity loss")
	}
	if led.count("error") == 0 {
		t.Error("error signal not shown during network loss")
	}
	if !led.clearedAfterError() {
		t.Errorf("error pattern never cleared after successful recovery (calls %v)", led.calls)
	}
}

type offlineNet struct{}

func (offlineNet) IsConnected() bool         { return false }
func (offlineNet) EnsureConnected(bool) bool { return false }
