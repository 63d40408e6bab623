package output

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/muurk/roastlink/internal/netmon"
	"github.com/muurk/roastlink/internal/sensor"
)

// Console prints readings as human-readable lines. The zero dependency
// channel: works with no network, mostly used on the bench.
type Console struct {
	unit string
	w    io.Writer
}

// NewConsole returns a console output writing to stdout.
func NewConsole(unit string) *Console {
	return &Console{unit: unit, w: os.Stdout}
}

// Name implements Output.
func (c *Console) Name() string { return "console" }

// RequiresNetwork implements Output.
func (c *Console) RequiresNetwork() bool { return false }

// Init implements Output. Nothing to bring up.
func (c *Console) Init(netmon.Manager) error { return nil }

// SendReading implements Output.
func (c *Console) SendReading(r sensor.Reading) error {
	if !r.Valid {
		_, err := fmt.Fprintln(c.w, "⚠ invalid temperature reading")
		return err
	}
	_, err := fmt.Fprintf(c.w, "✓ Temp: %.1f°C (%.1f°F)\n", r.Celsius, r.Fahrenheit)
	return err
}

// SendStatus implements Output. Keys are sorted so output is stable.
func (c *Console) SendStatus(status map[string]any) error {
	keys := make([]string, 0, len(status))
	for k := range status {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %v", k, status[k]))
	}
	_, err := fmt.Fprintf(c.w, "Status: %s\n", strings.Join(parts, ", "))
	return err
}

// Close implements Output.
func (c *Console) Close() {}
