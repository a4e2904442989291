package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/golang/geo/r3"
	"go.uber.org/zap"

	"github.com/NimbleMarkets/ntcharts/canvas/runes"
	"github.com/NimbleMarkets/ntcharts/linechart/streamlinechart"

	"github.com/gwillem/simbot/pkg/robot"
	"github.com/gwillem/simbot/pkg/teleop"
)

type TeleoperateCommand struct {
	Hz      int     `long:"hz" default:"30" description:"Control loop frequency"`
	Step    float64 `long:"step" default:"10" description:"Throttle and turn change per key press"`
	Nudge   float64 `long:"nudge" default:"0.01" description:"Gripper move per key press, in meters"`
	LogFile string  `long:"log-file" description:"Write logs to this file instead of discarding them"`
}

const (
	headerHeight = 2 // title + blank line
	legendHeight = 3 // legend row + pose row + blank
	footerHeight = 7 // log box height
	maxLogs      = 5 // number of log messages to show
	borderSize   = 2 // chart border
)

// Wheel colors
var wheelColors = map[string]string{
	"left":  "46", // green
	"right": "51", // cyan
}

var wheelOrder = []string{"left", "right"}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	chartStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type teleopModel struct {
	ctrl      *teleop.Controller
	chart     *streamlinechart.Model
	wheels    robot.WheelCalibration
	stepped   bool // synchronous simulation
	step      float64
	nudge     float64
	width     int      // terminal width
	height    int      // terminal height
	logs      []string // last N log messages
	state     teleop.State
	quitting  bool
	lastSpeed [2]float64 // previous wheel speeds to detect movement
	hasSpeed  bool
}

func (m *teleopModel) addLog(msg string) {
	m.logs = append(m.logs, msg)
	if len(m.logs) > maxLogs {
		m.logs = m.logs[len(m.logs)-maxLogs:]
	}
}

// hasMovement checks if a wheel speed has changed from the last state
func (m *teleopModel) hasMovement(left, right float64) bool {
	if !m.hasSpeed {
		return true // first reading, consider it movement
	}
	return left != m.lastSpeed[0] || right != m.lastSpeed[1]
}

// Messages from the controller
type stateMsg teleop.State
type logMsg string

func waitForState(ctrl *teleop.Controller) tea.Cmd {
	return func() tea.Msg {
		return stateMsg(<-ctrl.States())
	}
}

func waitForLog(ctrl *teleop.Controller) tea.Cmd {
	return func() tea.Msg {
		return logMsg(<-ctrl.Logs())
	}
}

// chartSize calculates the size of the chart based on terminal dimensions
func (m *teleopModel) chartSize() (width, height int) {
	if m.width == 0 || m.height == 0 {
		return 80, 20 // default size before we know terminal size
	}
	width = m.width - borderSize - 2
	if width < 40 {
		width = 40
	}
	height = m.height - headerHeight - legendHeight - footerHeight - borderSize
	if height < 10 {
		height = 10
	}
	return width, height
}

func (m *teleopModel) resizeChart() {
	w, h := m.chartSize()
	m.chart.Resize(w, h)
}

func initialTeleopModel(ctrl *teleop.Controller, wheels robot.WheelCalibration, stepped bool, step, nudge float64) teleopModel {
	maxSpeed := wheels.MaxSpeed
	if maxSpeed <= 0 {
		maxSpeed = 1
	}
	chart := streamlinechart.New(80, 20,
		streamlinechart.WithYRange(-maxSpeed, maxSpeed),
	)
	for _, name := range wheelOrder {
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(wheelColors[name]))
		chart.SetDataSetStyles(name, runes.ThinLineStyle, style)
	}

	return teleopModel{
		ctrl:    ctrl,
		chart:   &chart,
		wheels:  wheels,
		stepped: stepped,
		step:    step,
		nudge:   nudge,
	}
}

func (m teleopModel) Init() tea.Cmd {
	return tea.Batch(
		waitForState(m.ctrl),
		waitForLog(m.ctrl),
	)
}

// nudgeKeys maps keys to gripper moves in (left, away, up) units.
var nudgeKeys = map[string]r3.Vector{
	"j": {X: 1},
	"l": {X: -1},
	"i": {Y: 1},
	"k": {Y: -1},
	"u": {Z: 1},
	"o": {Z: -1},
}

func (m teleopModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeChart()
		return m, nil

	case tea.KeyMsg:
		cmd := m.ctrl.Command()
		switch key := msg.String(); key {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "w", "up":
			cmd.Throttle += m.step
		case "s", "down":
			cmd.Throttle -= m.step
		case "a", "left":
			cmd.Turn -= m.step
		case "d", "right":
			cmd.Turn += m.step
		case " ":
			m.ctrl.Halt()
			return m, nil
		default:
			if dir, ok := nudgeKeys[key]; ok {
				m.ctrl.Nudge(dir.Mul(m.nudge))
			}
			return m, nil
		}
		m.ctrl.SetCommand(cmd)
		return m, nil

	case stateMsg:
		state := teleop.State(msg)
		if state.Error == nil {
			m.state = state
			// Only update chart if there's movement (freeze when idle)
			if m.hasMovement(state.LeftSpeed, state.RightSpeed) {
				m.chart.PushDataSet("left", state.LeftSpeed)
				m.chart.PushDataSet("right", state.RightSpeed)
				m.chart.DrawAll()
				m.lastSpeed = [2]float64{state.LeftSpeed, state.RightSpeed}
				m.hasSpeed = true
			}
		}
		return m, waitForState(m.ctrl)

	case logMsg:
		m.addLog(string(msg))
		return m, waitForLog(m.ctrl)
	}

	return m, nil
}

func (m teleopModel) View() string {
	if m.quitting {
		return "Teleoperation stopped.\n"
	}

	var sb strings.Builder

	// Header
	sb.WriteString(titleStyle.Render("simbot Teleoperate"))
	sb.WriteString(fmt.Sprintf(" - %d Hz", m.ctrl.Hz()))
	if m.stepped {
		sb.WriteString(" stepped")
	}
	cmd := m.ctrl.Command()
	sb.WriteString(statusStyle.Render(fmt.Sprintf("  throttle %+.0f turn %+.0f", cmd.Throttle, cmd.Turn)))
	sb.WriteString("\n\n")

	// Chart
	sb.WriteString(chartStyle.Render(m.chart.View()))
	sb.WriteString("\n")

	// Legend
	sb.WriteString(m.renderLegend())
	sb.WriteString("\n")
	sb.WriteString(m.renderPose())
	sb.WriteString("\n")

	// Log box
	logStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Width(max(m.width-4, 20)).
		Foreground(lipgloss.Color("9")) // bright red

	var logLines string
	if len(m.logs) == 0 {
		logLines = statusStyle.Render("w/s throttle, a/d turn, space halt, i/k/j/l/u/o gripper, q quit")
	} else {
		logLines = strings.Join(m.logs, "\n")
	}
	sb.WriteString(logStyle.Render(logLines))
	sb.WriteString("\n")

	return sb.String()
}

func (m teleopModel) renderLegend() string {
	speeds := map[string]float64{"left": m.state.LeftSpeed, "right": m.state.RightSpeed}
	var items []string
	for _, name := range wheelOrder {
		colorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(wheelColors[name])).Bold(true)
		speed := speeds[name]
		items = append(items, colorStyle.Render("━━")+" "+fmt.Sprintf("%s %+.2f rad/s (%+.0f%%)", name, speed, m.wheels.Normalize(speed)))
	}
	return strings.Join(items, "  ")
}

func (m teleopModel) renderPose() string {
	if !m.state.HasPose {
		return statusStyle.Render("gripper target: waiting for pose")
	}
	return statusStyle.Render(fmt.Sprintf("gripper target: pos %s  rot %s",
		formatVector(m.state.Pose.Position), formatVector(m.state.Pose.Orientation)))
}

func (c *TeleoperateCommand) Execute(args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("%w. Run 'simbot setup' first", err)
	}

	// The TUI owns the terminal, so logs go to a file or nowhere.
	logger := zap.NewNop()
	if c.LogFile != "" {
		if logger, err = newLogger(c.LogFile); err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fmt.Printf("Connecting to %s...\n", cfg.Remote().Addr())
	r, err := connect(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer r.Close()

	ctrl := teleop.NewController(r, r.Gripper(), teleop.Config{
		Hz:      c.Hz,
		Wheels:  cfg.Wheels,
		Tracked: r.Gripper().Target(),
	})

	// Start controller in background; it stops the simulation when ctx ends.
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := ctrl.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("controller stopped", zap.Error(err))
		}
	}()

	p := tea.NewProgram(initialTeleopModel(ctrl, cfg.Wheels, r.Synchronous(), c.Step, c.Nudge), tea.WithAltScreen())
	_, err = p.Run()
	cancel()
	<-done
	if err != nil {
		return fmt.Errorf("run teleoperation UI: %w", err)
	}
	return nil
}
