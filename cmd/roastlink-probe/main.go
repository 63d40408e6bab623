// Roastlink-probe pokes a running roastlink monitor the way Artisan Scope
// would.
//
// 'request' performs a single id/data exchange and prints the result;
// 'watch' keeps a live terminal view of the temperature open.
//
// Usage:
//
//	roastlink-probe request [flags]
//	roastlink-probe watch [flags]
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/muurk/roastlink/internal/protocol"
	"github.com/muurk/roastlink/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "roastlink-probe",
	Short: "Roastlink monitor test client",
	Long: `A WebSocket client for exercising a running roastlink monitor.

It speaks the same request envelope Artisan Scope does, so a successful
exchange here means Artisan will read the monitor too.`,
	Version: version.Version,
}

var (
	addr      string
	requestID int64
	timeout   time.Duration
)

func init() {
	rootCmd.PersistentFlags().StringVar(&addr, "addr", "localhost:8765", "Monitor address (host:port)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Second, "Per-exchange timeout")
	rootCmd.AddCommand(requestCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(versionCmd)
}

var (
	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262"))
	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#43BF6D")).
			Bold(true)
	errStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5555"))
)

var requestCmd = &cobra.Command{
	Use:   "request",
	Short: "Perform one request/response exchange",
	Example: `  # Ask the local monitor for the current reading
  roastlink-probe request

  # Query a remote monitor with a specific correlation id
  roastlink-probe request --addr 10.0.0.12:8765 --id 42`,
	RunE: runRequest,
}

func init() {
	requestCmd.Flags().Int64Var(&requestID, "id", 1, "Correlation id for the exchange")
}

func runRequest(cmd *cobra.Command, args []string) error {
	conn, err := dial(addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	resp, err := exchange(conn, requestID, timeout)
	if err != nil {
		return err
	}

	if resp.ID != requestID {
		return fmt.Errorf("response id %d does not match request id %d", resp.ID, requestID)
	}

	fmt.Printf("%s %s\n",
		labelStyle.Render("temp1:"),
		valueStyle.Render(fmt.Sprintf("%.2f", resp.Data.Temp1)))
	fmt.Printf("%s %s\n",
		labelStyle.Render("temp2:"),
		valueStyle.Render(fmt.Sprintf("%.2f", resp.Data.Temp2)))
	return nil
}

// dial opens the WebSocket connection Artisan would.
func dial(addr string) (*websocket.Conn, error) {
	url := fmt.Sprintf("ws://%s/", addr)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", url, err)
	}
	return conn, nil
}

// exchange sends one request envelope and waits for its response.
func exchange(conn *websocket.Conn, id int64, timeout time.Duration) (*protocol.Response, error) {
	deadline := time.Now().Add(timeout)
	if err := conn.SetWriteDeadline(deadline); err != nil {
		return nil, err
	}
	if err := conn.WriteJSON(protocol.Request{ID: id}); err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	if err := conn.SetReadDeadline(deadline); err != nil {
		return nil, err
	}
	var resp protocol.Response
	if err := conn.ReadJSON(&resp); err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return &resp, nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("roastlink-probe %s (commit: %s)\n", version.Version, version.Commit)
	},
}
