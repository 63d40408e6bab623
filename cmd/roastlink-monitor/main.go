// Roastlink-monitor is a coffee-roast temperature monitor daemon.
//
// It samples a thermocouple probe on a fixed cadence and delivers readings
// to one of three outputs: a hand-rolled WebSocket server that Artisan
// Scope polls, an MQTT broker, or the console. A supervisor loop watches
// network health and shuts the daemon down deliberately when failures
// persist.
//
// Usage:
//
//	roastlink-monitor run [flags]
//
// See 'roastlink-monitor run --help' for available options.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/muurk/roastlink/internal/config"
	"github.com/muurk/roastlink/internal/logging"
	"github.com/muurk/roastlink/internal/netmon"
	"github.com/muurk/roastlink/internal/output"
	"github.com/muurk/roastlink/internal/sensor"
	"github.com/muurk/roastlink/internal/statusled"
	"github.com/muurk/roastlink/internal/supervisor"
	"github.com/muurk/roastlink/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "roastlink-monitor",
	Short: "Roastlink temperature monitor",
	Long: `A coffee-roast temperature monitor bridging a thermocouple probe to
Artisan Scope over WebSocket, with MQTT and console output modes.

The monitor samples the probe on a fixed interval, keeps the latest
reading, and answers Artisan's {"id":N} polls with both temperature
channels. Sustained sensor or network failure escalates through a status
indicator to a deliberate shutdown.

For poking at a running monitor, use the separate 'roastlink-probe' utility.`,
	Version: version.Version,
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(versionCmd)
}

// Run command and flags
var (
	configPath string
	outputMode string
	unit       string
	host       string
	port       int
	logLevel   string
	simulate   bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the monitor daemon",
	Long: `Start the monitor loop: sample the probe, deliver readings to the
configured output, and keep the status indicator honest.

Settings come from the YAML config file when one is given; flags set
explicitly on the command line override it. Without hardware attached,
--simulate substitutes a deterministic roast curve for the probe.`,
	Example: `  # Serve Artisan on the default port with simulated readings
  roastlink-monitor run --simulate

  # Run from a config file, overriding the listen port
  roastlink-monitor run --config /etc/roastlink.yaml --port 9001

  # Print readings to the console in Fahrenheit
  roastlink-monitor run --simulate --output console --unit F

  # Publish to an MQTT broker configured in the file
  roastlink-monitor run --config roastlink.yaml --output mqtt --log-level debug`,
	RunE: runMonitor,
}

func init() {
	runCmd.Flags().StringVar(&configPath, "config", "", "Path to YAML config file (optional)")
	runCmd.Flags().StringVar(&outputMode, "output", "", "Output channel: console, mqtt, or artisan")
	runCmd.Flags().StringVar(&unit, "unit", "", "Preferred temperature unit: C or F")
	runCmd.Flags().StringVar(&host, "host", "", "WebSocket listen host (empty = all interfaces)")
	runCmd.Flags().IntVar(&port, "port", 0, "WebSocket listen port")
	runCmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&simulate, "simulate", false, "Use the roast-curve simulator instead of probe hardware")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	if err := logging.Initialize(logLevel); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer logging.Sync()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	applyFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	probe, err := buildProbe(cfg)
	if err != nil {
		return err
	}

	out, err := output.New(cfg)
	if err != nil {
		return err
	}

	var mgr netmon.Manager = netmon.AlwaysOnline{}
	if cfg.NetworkProbeAddr != "" {
		mgr = netmon.NewDialManager(cfg.NetworkProbeAddr)
	}

	led := statusled.New(statusled.ConsoleDriver{})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return supervisor.New(cfg, probe, out, mgr, led).Run(ctx)
}

// applyFlags layers explicitly-set flags over the file values.
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("output") {
		cfg.Output = outputMode
	}
	if cmd.Flags().Changed("unit") {
		cfg.Unit = unit
	}
	if cmd.Flags().Changed("host") {
		cfg.Server.Host = host
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port = port
	}
	if cmd.Flags().Changed("simulate") {
		cfg.Simulate = simulate
	}
}

func buildProbe(cfg *config.Config) (sensor.Probe, error) {
	if cfg.Simulate {
		return sensor.NewSimProbe(), nil
	}
	// No thermocouple driver is compiled into this build; the simulator is
	// the only probe until one lands.
	return nil, fmt.Errorf("no probe hardware support in this build; run with --simulate")
}

// Version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("roastlink-monitor %s (commit: %s)\n", version.Version, version.Commit)
	},
}
