package main

import (
	"fmt"
	"math"
	"strings"

	"github.com/1F47E/qr-navigator/pkg/models"
	"github.com/1F47E/qr-navigator/pkg/workflow"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	// Styles
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF79C6")).
			Background(lipgloss.Color("#282A36")).
			Padding(0, 1).
			MarginTop(1).
			MarginBottom(1)

	subtitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#8BE9FD"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#50FA7B"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5555"))

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F1FA8C"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6272A4"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#BD93F9")).
			Padding(1, 2).
			MarginTop(1)

	statStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFB86C"))
)

const (
	maxMessages = 5
	mapWidth    = 40
	mapHeight   = 12
)

type sessionMsg workflow.Session
type previewMsg bool
type menuMsg struct{}
type destinationsMsg []string
type lineMsg models.LineState
type poseMsg models.Pose
type logMsg string

// teaView forwards controller output into the bubbletea program. Log lines
// written before the program is attached are kept in pending.
type teaView struct {
	program *tea.Program
	pending []string
}

func (v *teaView) ShowPreview(visible bool)       { v.program.Send(previewMsg(visible)) }
func (v *teaView) RevealMenu()                    { v.program.Send(menuMsg{}) }
func (v *teaView) SetDestinations(names []string) { v.program.Send(destinationsMsg(names)) }
func (v *teaView) DrawLine(line models.LineState) { v.program.Send(lineMsg(line)) }
func (v *teaView) MoveOverview(pose models.Pose)  { v.program.Send(poseMsg(pose)) }

// Write turns session log output into activity lines
func (v *teaView) Write(p []byte) (int, error) {
	for _, line := range strings.Split(strings.TrimRight(string(p), "\n"), "\n") {
		if line == "" {
			continue
		}
		if v.program == nil {
			v.pending = append(v.pending, line)
			continue
		}
		v.program.Send(logMsg(line))
	}
	return len(p), nil
}

type model struct {
	ctrl    *workflow.Controller
	session workflow.Session
	spinner spinner.Model
	input   textinput.Model

	preview      bool
	menu         bool
	destinations []string
	cursor       int
	line         models.LineState
	pose         *models.Pose

	messages []string
	width    int
	height   int
}

func initialModel(ctrl *workflow.Controller, messages []string) model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF79C6"))

	ti := textinput.New()
	ti.Placeholder = "Search destinations"
	ti.CharLimit = 64
	ti.Width = 40

	m := model{
		ctrl:    ctrl,
		session: ctrl.Snapshot(),
		spinner: s,
		input:   ti,
		width:   80,
		height:  24,
	}
	if len(messages) > maxMessages {
		messages = messages[len(messages)-maxMessages:]
	}
	m.messages = messages
	return m
}

func (m model) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case sessionMsg:
		m.session = workflow.Session(msg)
		return m, nil

	case previewMsg:
		m.preview = bool(msg)
		return m, nil

	case menuMsg:
		m.menu = true
		return m, m.input.Focus()

	case destinationsMsg:
		m.destinations = []string(msg)
		if m.cursor >= len(m.destinations) {
			m.cursor = 0
		}
		return m, nil

	case lineMsg:
		m.line = models.LineState(msg)
		if !m.line.Visible {
			m.pose = nil
		}
		return m, nil

	case poseMsg:
		pose := models.Pose(msg)
		m.pose = &pose
		return m, nil

	case logMsg:
		m.messages = append(m.messages, string(msg))
		if len(m.messages) > maxMessages {
			m.messages = m.messages[1:]
		}
		return m, nil
	}

	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}

	if !m.menu {
		switch msg.String() {
		case "q", "esc":
			return m, tea.Quit
		case "s", "enter":
			_ = m.ctrl.StartScan()
		case "c":
			_ = m.ctrl.CancelScan()
		}
		return m, nil
	}

	switch msg.String() {
	case "esc":
		return m, tea.Quit
	case "up", "ctrl+p":
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil
	case "down", "ctrl+n":
		if m.cursor < len(m.destinations)-1 {
			m.cursor++
		}
		return m, nil
	case "enter":
		if len(m.destinations) > 0 {
			_ = m.ctrl.Select(m.cursor)
		}
		return m, nil
	}

	before := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if after := m.input.Value(); after != before {
		m.ctrl.InputChanged(after)
	}
	return m, cmd
}

func (m model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("📍 QR Navigator"))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("State: ") + statStyle.Render(m.session.State.String()))
	b.WriteString("\n\n")

	if !m.menu {
		b.WriteString(subtitleStyle.Render("Scan"))
		b.WriteString("\n\n")
		if m.preview {
			b.WriteString(fmt.Sprintf("%s Looking for code %s...\n", m.spinner.View(), statStyle.Render(m.session.Trigger)))
			if last := m.session.Scan.LastDecoded; last != "" {
				b.WriteString(dimStyle.Render(fmt.Sprintf("  last read: %q", last)))
				b.WriteString("\n")
			}
		} else {
			b.WriteString(infoStyle.Render("Press 's' to scan the destination menu code"))
			b.WriteString("\n")
		}
	} else {
		b.WriteString(subtitleStyle.Render("Destinations"))
		b.WriteString("\n\n")
		b.WriteString(m.input.View())
		b.WriteString("\n\n")
		b.WriteString(m.renderList())
		b.WriteString(m.renderLine())
	}

	if len(m.messages) > 0 {
		b.WriteString("\n\n")
		b.WriteString(dimStyle.Render("Recent activity:"))
		b.WriteString("\n")
		for _, msg := range m.messages {
			style := dimStyle
			if strings.Contains(msg, "error:") {
				style = errorStyle
			}
			b.WriteString(style.Render("• " + msg))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	if m.menu {
		b.WriteString(dimStyle.Render("Type to search • ↑/↓ choose • enter select • esc quit"))
	} else {
		b.WriteString(dimStyle.Render("s scan • c cancel • q quit"))
	}
	return b.String()
}

func (m model) renderList() string {
	if len(m.destinations) == 0 {
		if m.input.Value() == "" {
			return dimStyle.Render("  (type to search)") + "\n"
		}
		return dimStyle.Render("  (no matches)") + "\n"
	}
	var b strings.Builder
	for i, name := range m.destinations {
		if i == m.cursor {
			b.WriteString(successStyle.Render("> " + name))
		} else {
			b.WriteString("  " + name)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (m model) renderLine() string {
	if !m.line.HasTarget {
		return ""
	}
	if !m.line.Visible {
		return boxStyle.Render(dimStyle.Render("Line hidden. Select the destination again to show it."))
	}
	if len(m.line.Corners) == 0 {
		return boxStyle.Render(errorStyle.Render(fmt.Sprintf("No walkable route to %s", m.line.Target)))
	}

	var length float64
	for i := 1; i < len(m.line.Corners); i++ {
		length += m.line.Corners[i-1].DistanceTo(m.line.Corners[i])
	}
	content := successStyle.Render("Navigation Line\n\n") +
		fmt.Sprintf("Target: %s\n", statStyle.Render(m.line.Target.String())) +
		fmt.Sprintf("Corners: %s  Length: %s\n\n", statStyle.Render(fmt.Sprintf("%d", len(m.line.Corners))), statStyle.Render(fmt.Sprintf("%.2f", length))) +
		renderMap(m.line.Corners)
	if m.pose != nil {
		content += "\n\n" + dimStyle.Render(fmt.Sprintf("Overview camera %s yaw %.0f° pitch %.0f°", m.pose.Position, m.pose.Yaw, m.pose.Pitch))
	}
	return boxStyle.Render(content)
}

// renderMap draws the corners top-down on the XZ plane
func renderMap(corners []models.Vec3) string {
	minX, maxX := math.Inf(1), math.Inf(-1)
	minZ, maxZ := math.Inf(1), math.Inf(-1)
	for _, c := range corners {
		minX, maxX = math.Min(minX, c.X), math.Max(maxX, c.X)
		minZ, maxZ = math.Min(minZ, c.Z), math.Max(maxZ, c.Z)
	}
	spanX := math.Max(maxX-minX, 1e-9)
	spanZ := math.Max(maxZ-minZ, 1e-9)

	grid := make([][]rune, mapHeight)
	for i := range grid {
		grid[i] = []rune(strings.Repeat("·", mapWidth))
	}
	cell := func(p models.Vec3) (int, int) {
		col := int(math.Round((p.X - minX) / spanX * (mapWidth - 1)))
		// +Z points up the screen
		row := mapHeight - 1 - int(math.Round((p.Z-minZ)/spanZ*(mapHeight-1)))
		return col, row
	}

	for i := 1; i < len(corners); i++ {
		a, b := corners[i-1], corners[i]
		steps := mapWidth + mapHeight
		for s := 0; s <= steps; s++ {
			t := float64(s) / float64(steps)
			col, row := cell(models.Vec3{X: a.X + (b.X-a.X)*t, Z: a.Z + (b.Z-a.Z)*t})
			grid[row][col] = '•'
		}
	}
	col, row := cell(corners[0])
	grid[row][col] = 'S'
	col, row = cell(corners[len(corners)-1])
	grid[row][col] = 'T'

	lines := make([]string, mapHeight)
	for i, r := range grid {
		lines[i] = string(r)
	}
	return strings.Join(lines, "\n")
}
