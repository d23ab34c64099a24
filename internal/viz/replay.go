package viz

import (
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/san-kum/trajopt/internal/dynamo"
)

const (
	canvasWidth  = 60
	canvasHeight = 18
	frameRate    = 30
	trailLength  = 60
)

// Replay animates a state sequence, either the knots of a solved
// trajectory or the samples of a closed-loop simulation.
type Replay struct {
	model    string
	states   []dynamo.State
	controls []dynamo.Control
	times    []float64
	stride   int
	frame    int
	running  bool
	canvas   *Canvas
	scale    float64
	styles   Styles
}

// NewReplay builds a replay of states sampled at times. controls may be
// shorter than states or nil.
func NewReplay(model string, states []dynamo.State, controls []dynamo.Control, times []float64, theme Theme) Replay {
	stride := 1
	if len(times) > 1 {
		dt := times[1] - times[0]
		if dt > 0 {
			stride = max(1, int(math.Round(1/(frameRate*dt))))
		}
	}
	reach := 1.0
	for _, x := range states {
		if len(x) > 0 {
			reach = math.Max(reach, math.Abs(x[0]))
		}
	}
	return Replay{
		model:    model,
		states:   states,
		controls: controls,
		times:    times,
		stride:   stride,
		running:  true,
		canvas:   NewCanvas(canvasWidth, canvasHeight),
		scale:    reach,
		styles:   NewStyles(theme),
	}
}

func (m Replay) Init() tea.Cmd {
	return tea.Tick(time.Second/frameRate, func(t time.Time) tea.Msg { return TickMsg(t) })
}

func (m Replay) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case " ":
			m.running = !m.running
		case "r":
			m.frame = 0
			m.running = true
		case "[":
			m.running = false
			m.frame = max(0, m.frame-1)
		case "]":
			m.running = false
			m.frame = min(len(m.states)-1, m.frame+1)
		case "t":
			m.styles = NewStyles(NextTheme(m.styles.Theme))
		}
	case TickMsg:
		if m.running {
			m.frame += m.stride
			if m.frame >= len(m.states)-1 {
				m.frame = max(0, len(m.states)-1)
				m.running = false
			}
		}
		return m, m.Init()
	}
	return m, nil
}

// Frame is the index of the displayed state.
func (m Replay) Frame() int { return m.frame }

func (m Replay) Running() bool { return m.running }

func (m Replay) draw() {
	m.canvas.Clear()
	if len(m.states) == 0 {
		return
	}
	switch m.model {
	case "pendulum":
		m.drawPendulum()
	case "cartpole":
		m.drawCartpole()
	case "double_integrator":
		m.drawSlider()
	default:
		m.drawGeneric()
	}
}

func (m Replay) drawPendulum() {
	cw, ch := m.canvas.Pixels()
	cx, cy := cw/2, ch/2
	length := float64(ch) * 0.4
	bob := func(x dynamo.State) (int, int) {
		return cx + int(length*math.Sin(x[0])), cy + int(length*math.Cos(x[0]))
	}
	var xs, ys []int
	for i := max(0, m.frame-trailLength); i <= m.frame; i++ {
		x, y := bob(m.states[i])
		xs, ys = append(xs, x), append(ys, y)
	}
	m.canvas.Polyline(xs, ys)
	bx, by := xs[len(xs)-1], ys[len(ys)-1]
	m.canvas.Set(cx, cy)
	m.canvas.DrawLine(cx, cy, bx, by)
	m.canvas.Block(bx, by, 1, 1)
}

func (m Replay) drawCartpole() {
	x := m.states[m.frame]
	if len(x) < 4 {
		return
	}
	cw, ch := m.canvas.Pixels()
	groundY := ch - 12
	cartX := cw/2 + int(x[0]/m.scale*float64(cw/2-8))
	m.canvas.DrawLine(0, groundY+4, cw, groundY+4)
	m.canvas.Block(cartX, groundY+2, 6, 2)
	poleLen := float64(ch) * 0.6
	px, py := cartX+int(poleLen*math.Sin(x[2])), groundY-int(poleLen*math.Cos(x[2]))
	m.canvas.DrawLine(cartX, groundY, px, py)
	m.canvas.Block(px, py, 1, 1)
}

func (m Replay) drawSlider() {
	cw, ch := m.canvas.Pixels()
	cy := ch / 2
	m.canvas.DrawLine(0, cy+5, cw, cy+5)
	m.canvas.DrawLine(cw/2, cy+3, cw/2, cy+7)
	for i := max(0, m.frame-trailLength); i < m.frame; i += 4 {
		m.canvas.Set(cw/2+int(m.states[i][0]/m.scale*float64(cw/2-8)), cy+5)
	}
	mx := cw/2 + int(m.states[m.frame][0]/m.scale*float64(cw/2-8))
	m.canvas.Block(mx, cy, 4, 4)
}

func (m Replay) drawGeneric() {
	x := m.states[m.frame]
	cw, ch := m.canvas.Pixels()
	cy := ch / 2
	barWidth, gap := 8, 4
	startX := (cw - len(x)*(barWidth+gap)) / 2
	for i, v := range x {
		h := int(math.Max(-float64(cy), math.Min(float64(cy), v*10)))
		bx := startX + i*(barWidth+gap)
		lo, hi := cy-h, cy
		if h < 0 {
			lo, hi = cy, cy-h
		}
		for y := lo; y <= hi; y++ {
			m.canvas.DrawLine(bx, y, bx+barWidth-1, y)
		}
	}
}

func (m Replay) View() string {
	m.draw()
	st := m.styles
	canvasView := lipgloss.NewStyle().Padding(1, 2).Render(m.canvas.String())

	var s strings.Builder
	s.WriteString(st.Header.Render(strings.ToUpper(m.model)) + "\n")
	status := st.Good.Render("PLAYING")
	if !m.running {
		status = st.Warn.Render("PAUSED")
	}
	s.WriteString(status + "\n\n")
	if len(m.states) > 0 {
		if m.frame < len(m.times) {
			s.WriteString(st.Row("Time", fmt.Sprintf("%.2fs", m.times[m.frame])))
		}
		s.WriteString(st.Row("Frame", fmt.Sprintf("%d/%d", m.frame, len(m.states)-1)))
		for i, v := range m.states[m.frame] {
			s.WriteString(st.Row(fmt.Sprintf("x%d", i), fmt.Sprintf("%+.3f", v)))
		}
		if m.frame < len(m.controls) {
			for i, v := range m.controls[m.frame] {
				s.WriteString(st.Row(fmt.Sprintf("u%d", i), fmt.Sprintf("%+.3f", v)))
			}
		}
	}
	s.WriteString(st.Help.Render("SP:Pause R:Restart [ ]:Step\nT:Theme  Q:Quit"))
	stats := st.Panel.Width(32).Render(s.String())
	return lipgloss.JoinHorizontal(lipgloss.Top, canvasView, stats)
}
