package viz

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/san-kum/trajopt/internal/solver"
)

type TickMsg time.Time

// StatsMsg carries one solver iteration.
type StatsMsg solver.Stats

// DoneMsg ends a solve.
type DoneMsg struct {
	Result *solver.Result
	Err    error
}

// Feed returns an observer that forwards iterations to ch until ctx is
// done.
func Feed(ctx context.Context, ch chan<- solver.Stats) solver.Observer {
	return solver.ObserverFunc(func(s solver.Stats) {
		select {
		case ch <- s:
		case <-ctx.Done():
		}
	})
}

// Progress follows a solve running in another goroutine.
type Progress struct {
	title     string
	maxIter   int
	stats     <-chan solver.Stats
	done      <-chan DoneMsg
	cancel    context.CancelFunc
	history   []solver.Stats
	result    *solver.Result
	err       error
	finished  bool
	cancelled bool
	frame     int
	styles    Styles
}

func NewProgress(title string, maxIter int, stats <-chan solver.Stats, done <-chan DoneMsg, cancel context.CancelFunc, theme Theme) Progress {
	return Progress{
		title:   title,
		maxIter: maxIter,
		stats:   stats,
		done:    done,
		cancel:  cancel,
		styles:  NewStyles(theme),
	}
}

func tick() tea.Cmd {
	return tea.Tick(time.Second/12, func(t time.Time) tea.Msg { return TickMsg(t) })
}

func (m Progress) listen() tea.Cmd {
	return func() tea.Msg {
		s, ok := <-m.stats
		if !ok {
			return nil
		}
		return StatsMsg(s)
	}
}

func (m Progress) wait() tea.Cmd {
	return func() tea.Msg { return <-m.done }
}

func (m Progress) Init() tea.Cmd {
	return tea.Batch(m.listen(), m.wait(), tick())
}

func (m Progress) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			if !m.finished {
				m.cancelled = true
				if m.cancel != nil {
					m.cancel()
				}
			}
			return m, tea.Quit
		case "t":
			m.styles = NewStyles(NextTheme(m.styles.Theme))
		}
	case StatsMsg:
		m.history = append(m.history, solver.Stats(msg))
		return m, m.listen()
	case DoneMsg:
		m.finished = true
		m.result, m.err = msg.Result, msg.Err
		if msg.Result != nil && len(msg.Result.History) > len(m.history) {
			m.history = msg.Result.History
		}
		return m, tea.Quit
	case TickMsg:
		if m.finished {
			return m, nil
		}
		m.frame++
		return m, tick()
	}
	return m, nil
}

// Outcome reports the solve result once the program has exited.
func (m Progress) Outcome() (*solver.Result, error) { return m.result, m.err }

// Cancelled reports whether the user stopped the solve.
func (m Progress) Cancelled() bool { return m.cancelled }

func (m Progress) History() []solver.Stats { return m.history }

func (m Progress) status() string {
	st := m.styles
	switch {
	case m.err != nil:
		return st.Bad.Render("FAILED: " + m.err.Error())
	case m.finished && m.result != nil && m.result.Converged:
		return st.Good.Render("CONVERGED (" + string(m.result.Reason) + ")")
	case m.finished && m.result != nil:
		return st.Warn.Render("STOPPED (" + string(m.result.Reason) + ")")
	case m.cancelled:
		return st.Warn.Render("CANCELLED")
	}
	return st.Value.Render(AnimatedSpinner(m.frame) + " SOLVING")
}

func (m Progress) View() string {
	st := m.styles
	var s strings.Builder
	s.WriteString(st.Header.Render(strings.ToUpper(m.title)) + "\n")
	s.WriteString(m.status() + "\n\n")

	if n := len(m.history); n > 0 {
		last := m.history[n-1]
		if m.maxIter > 0 {
			frac := float64(last.Iteration+1) / float64(m.maxIter)
			s.WriteString(st.Row("Iteration", fmt.Sprintf("%d/%d ", last.Iteration, m.maxIter)+st.ProgressBar(frac, 20)))
		} else {
			s.WriteString(st.Row("Iteration", fmt.Sprintf("%d", last.Iteration)))
		}
		if last.Outer > 0 {
			s.WriteString(st.Row("Outer", fmt.Sprintf("%d", last.Outer)))
		}
		s.WriteString(st.Row("Cost", fmt.Sprintf("%.6g", last.Cost)))
		s.WriteString(st.Row("Expected", fmt.Sprintf("%.3g", last.Expected)))
		s.WriteString(st.Row("Step", fmt.Sprintf("α=%.3g z=%.3g", last.Alpha, last.Ratio)))
		s.WriteString(st.Row("Damping", fmt.Sprintf("%.3g (%d restarts)", last.Damping, last.Restarts)))
		if last.Violation > 0 {
			s.WriteString(st.Row("Violation", fmt.Sprintf("%.3g", last.Violation)))
		}
		s.WriteString(st.Row("Elapsed", last.Elapsed.Round(time.Millisecond).String()))
	}

	if chart := CostChart(m.history, 40, 8); chart != "" {
		s.WriteString(st.Graph.Render(chart) + "\n")
	}
	s.WriteString(st.Help.Render("Q:Quit  T:Theme"))
	return lipgloss.NewStyle().Padding(1, 2).Render(s.String())
}
