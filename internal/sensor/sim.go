package sensor

import (
	"math"
	"sync"
	"time"
)

// SimProbe generates a deterministic roast-like temperature curve: a ramp
// from ambient toward a plateau with a small periodic wobble. It lets the
// daemon and the probe tool run end to end without thermocouple hardware.
type SimProbe struct {
	// Ambient is the starting temperature in Celsius.
	Ambient float64
	// Peak is the asymptotic chamber temperature in Celsius.
	Peak float64
	// RampTime controls how quickly the curve approaches Peak.
	RampTime time.Duration

	mu      sync.Mutex
	started time.Time
}

// NewSimProbe returns a simulator with typical drum-roast parameters.
func NewSimProbe() *SimProbe {
	return &SimProbe{
		Ambient:  21.0,
		Peak:     225.0,
		RampTime: 8 * time.Minute,
	}
}

// Read implements Probe. Never fails.
func (p *SimProbe) Read() (Reading, error) {
	p.mu.Lock()
	if p.started.IsZero() {
		p.started = time.Now()
	}
	elapsed := time.Since(p.started)
	p.mu.Unlock()

	// First-order approach to Peak plus a gentle wobble so plots look alive
	progress := 1 - math.Exp(-elapsed.Seconds()/p.RampTime.Seconds())
	wobble := 0.8 * math.Sin(elapsed.Seconds()/7)
	celsius := p.Ambient + (p.Peak-p.Ambient)*progress + wobble

	return NewReading(celsius), nil
}
