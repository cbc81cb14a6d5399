package tui

import (
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/satindergrewal/ison/internal/audio"
	"github.com/satindergrewal/ison/internal/ui"
)

// PitchStep is how far +/- move the pitch.
const PitchStep = 0.05

// RefreshInterval is how often the view picks up changes made by other
// sessions and the web page.
const RefreshInterval = 500 * time.Millisecond

type refreshMsg struct{}

func refresh() tea.Cmd {
	return tea.Tick(RefreshInterval, func(time.Time) tea.Msg { return refreshMsg{} })
}

type styles struct {
	title   lipgloss.Style
	scale   lipgloss.Style
	active  lipgloss.Style
	button  lipgloss.Style
	playing lipgloss.Style
	status  lipgloss.Style
	help    lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		title:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("#C9A227")),
		scale:   r.NewStyle().Faint(true).Padding(0, 1),
		active:  r.NewStyle().Bold(true).Underline(true).Padding(0, 1),
		button:  r.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1),
		playing: r.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1).BorderForeground(lipgloss.Color("#C9A227")).Bold(true),
		status:  r.NewStyle().Foreground(lipgloss.Color("#E06C75")),
		help:    r.NewStyle().Faint(true),
	}
}

// Model is a terminal control surface over a shared Binder.
type Model struct {
	binder *ui.Binder
	styles styles
	status string
}

// New creates a model rendering with r.
func New(b *ui.Binder, r *lipgloss.Renderer) Model {
	return Model{binder: b, styles: newStyles(r)}
}

func (m Model) Init() tea.Cmd {
	return refresh()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var key tea.KeyMsg
	switch msg := msg.(type) {
	case refreshMsg:
		return m, refresh()
	case tea.KeyMsg:
		key = msg
	default:
		return m, nil
	}

	var err error
	switch k := key.String(); k {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "1", "2", "3", "4", "5", "6", "7":
		err = m.binder.PressKey(int(k[0] - '0'))
	case "tab", "right":
		err = m.binder.CycleScale(1)
	case "shift+tab", "left":
		err = m.binder.CycleScale(-1)
	case "s", " ":
		m.binder.Stop()
	case "+", "=", "up":
		err = m.binder.NudgePitch(PitchStep)
	case "-", "down":
		err = m.binder.NudgePitch(-PitchStep)
	default:
		return m, nil
	}

	m.status = ""
	if errors.Is(err, audio.ErrSampleNotReady) {
		m.status = "sample not loaded"
	} else if err != nil {
		m.status = err.Error()
	}
	return m, nil
}

func (m Model) View() string {
	v := m.binder.View()
	var b strings.Builder

	b.WriteString(m.styles.title.Render("Ison"))
	b.WriteString("\n\n")

	scales := make([]string, len(v.Scales))
	for i, s := range v.Scales {
		if s == v.Selected {
			scales[i] = m.styles.active.Render(s)
		} else {
			scales[i] = m.styles.scale.Render(s)
		}
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, scales...))
	b.WriteString("\n")

	buttons := make([]string, len(v.Buttons))
	for i, btn := range v.Buttons {
		label := fmt.Sprintf("%d %s", btn.Key, btn.Note)
		if btn.Note == v.Playing {
			buttons[i] = m.styles.playing.Render(label)
		} else {
			buttons[i] = m.styles.button.Render(label)
		}
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, buttons...))
	b.WriteString("\n")

	playing := "stopped"
	if v.Playing != "" {
		playing = "playing " + v.Playing
	}
	fmt.Fprintf(&b, "pitch %.2f  %s\n", v.Pitch, playing)
	if m.status != "" {
		b.WriteString(m.styles.status.Render(m.status))
		b.WriteString("\n")
	}
	b.WriteString(m.styles.help.Render("1-7 play · tab scale · s stop · +/- pitch · q quit"))
	return b.String()
}
