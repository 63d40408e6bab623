package main

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/muurk/roastlink/internal/protocol"
)

var watchInterval time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Live terminal view of the monitor's readings",
	Long: `Poll the monitor on an interval and render the readings in place,
roughly what Artisan's device panel shows. Press q to quit.`,
	Example: `  # Watch the local monitor at the default 1s cadence
  roastlink-probe watch

  # Watch a remote monitor, polling twice a second
  roastlink-probe watch --addr 10.0.0.12:8765 --interval 500ms`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().DurationVar(&watchInterval, "interval", time.Second, "Polling interval")
}

func runWatch(cmd *cobra.Command, args []string) error {
	conn, err := dial(addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	model := newWatchModel(conn, watchInterval)
	_, err = tea.NewProgram(model).Run()
	return err
}

var (
	watchTitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7D56F4")).
			Bold(true)
	watchTempStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#43BF6D")).
			Bold(true)
	watchMetaStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262"))
	watchBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#7D56F4")).
			Padding(0, 2)
)

type readingMsg struct {
	resp *protocol.Response
}

type exchangeErrMsg struct {
	err error
}

type pollTickMsg struct{}

// watchModel polls the monitor from a tea command so the event loop never
// blocks on the network.
type watchModel struct {
	conn     *websocket.Conn
	interval time.Duration

	nextID    int64
	exchanges int
	last      *protocol.Response
	lastAt    time.Time
	err       error
}

func newWatchModel(conn *websocket.Conn, interval time.Duration) watchModel {
	return watchModel{conn: conn, interval: interval, nextID: 1}
}

// Init implements tea.Model
func (m watchModel) Init() tea.Cmd {
	return m.poll()
}

// Update implements tea.Model
func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}

	case readingMsg:
		m.last = msg.resp
		m.lastAt = time.Now()
		m.err = nil
		m.exchanges++
		m.nextID++
		return m, m.tick()

	case exchangeErrMsg:
		m.err = msg.err
		return m, tea.Quit

	case pollTickMsg:
		return m, m.poll()
	}
	return m, nil
}

// View implements tea.Model
func (m watchModel) View() string {
	var body string
	switch {
	case m.err != nil:
		body = errStyle.Render(fmt.Sprintf("exchange failed: %v", m.err))
	case m.last == nil:
		body = watchMetaStyle.Render("waiting for first reading...")
	default:
		body = fmt.Sprintf("%s\n%s  %s\n%s  %s",
			watchTitleStyle.Render("roastlink"),
			watchTempStyle.Render(fmt.Sprintf("temp1 %8.2f", m.last.Data.Temp1)),
			watchTempStyle.Render(fmt.Sprintf("temp2 %8.2f", m.last.Data.Temp2)),
			watchMetaStyle.Render(fmt.Sprintf("%d exchanges", m.exchanges)),
			watchMetaStyle.Render(m.lastAt.Format("15:04:05")),
		)
	}
	return watchBoxStyle.Render(body) + "\n" + watchMetaStyle.Render("q to quit") + "\n"
}

func (m watchModel) poll() tea.Cmd {
	conn, id := m.conn, m.nextID
	return func() tea.Msg {
		resp, err := exchange(conn, id, timeout)
		if err != nil {
			return exchangeErrMsg{err: err}
		}
		return readingMsg{resp: resp}
	}
}

func (m watchModel) tick() tea.Cmd {
	return tea.Tick(m.interval, func(time.Time) tea.Msg {
		return pollTickMsg{}
	})
}
