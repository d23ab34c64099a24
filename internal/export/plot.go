// Package export renders solver runs as static figures.
package export

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/san-kum/trajopt/internal/ddp"
	"github.com/san-kum/trajopt/internal/solver"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

var ErrNoData = errors.New("export: nothing to plot")

const (
	Width  = 8 * vg.Inch
	Height = 5 * vg.Inch
	dpi    = 150
)

// Convergence plots cost and predicted decrease per iteration on a log
// scale. Non-positive samples are dropped.
func Convergence(history []solver.Stats) (*plot.Plot, error) {
	var cost, expected plotter.XYs
	for _, s := range history {
		if s.Cost > 0 && !math.IsInf(s.Cost, 0) {
			cost = append(cost, plotter.XY{X: float64(s.Iteration), Y: s.Cost})
		}
		if s.Expected > 0 && !math.IsInf(s.Expected, 0) {
			expected = append(expected, plotter.XY{X: float64(s.Iteration), Y: s.Expected})
		}
	}
	if len(cost) == 0 {
		return nil, ErrNoData
	}

	p := plot.New()
	p.Title.Text = "Convergence"
	p.X.Label.Text = "iteration"
	p.Y.Label.Text = "value"
	p.Y.Scale = plot.LogScale{}
	p.Y.Tick.Marker = plot.LogTicks{Prec: -1}
	style(p)

	if err := addLine(p, "cost", cost, 0); err != nil {
		return nil, err
	}
	if len(expected) > 0 {
		if err := addLine(p, "expected decrease", expected, 1); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// States plots every state coordinate against time.
func States(tr ddp.Trajectory, dt float64) (*plot.Plot, error) {
	if len(tr.X) == 0 {
		return nil, ErrNoData
	}
	p := plot.New()
	p.Title.Text = "State trajectory"
	p.X.Label.Text = "time (s)"
	p.Y.Label.Text = "x"
	style(p)

	for i := range tr.X[0] {
		pts := make(plotter.XYs, len(tr.X))
		for k, x := range tr.X {
			pts[k] = plotter.XY{X: float64(k) * dt, Y: x[i]}
		}
		if err := addLine(p, fmt.Sprintf("x%d", i), pts, i); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Controls plots every control coordinate against time. Under a
// zero-order hold the controls are drawn as steps.
func Controls(tr ddp.Trajectory, dt float64, hold bool) (*plot.Plot, error) {
	if len(tr.U) == 0 {
		return nil, ErrNoData
	}
	p := plot.New()
	p.Title.Text = "Controls"
	p.X.Label.Text = "time (s)"
	p.Y.Label.Text = "u"
	style(p)

	for i := range tr.U[0] {
		var pts plotter.XYs
		for k, u := range tr.U {
			t := float64(k) * dt
			pts = append(pts, plotter.XY{X: t, Y: u[i]})
			if !hold {
				pts = append(pts, plotter.XY{X: t + dt, Y: u[i]})
			}
		}
		if err := addLine(p, fmt.Sprintf("u%d", i), pts, i); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func addLine(p *plot.Plot, name string, pts plotter.XYs, idx int) error {
	line, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	line.LineStyle.Width = vg.Points(2)
	line.LineStyle.Color = plotutil.Color(idx)
	p.Add(line)
	p.Legend.Add(name, line)
	return nil
}

func style(p *plot.Plot) {
	p.Title.TextStyle.Font.Size = vg.Points(16)
	p.Title.Padding = vg.Points(8)
	p.X.Label.TextStyle.Font.Size = vg.Points(12)
	p.Y.Label.TextStyle.Font.Size = vg.Points(12)
	p.Legend.Top = true
	p.Add(plotter.NewGrid())
}

// WritePNG draws p onto a raster canvas and encodes it to w.
func WritePNG(w io.Writer, p *plot.Plot, width, height vg.Length) error {
	c := vgimg.NewWith(vgimg.UseWH(width, height), vgimg.UseDPI(dpi))
	p.Draw(draw.New(c))

	bw := bufio.NewWriter(w)
	if _, err := (vgimg.PngCanvas{Canvas: c}).WriteTo(bw); err != nil {
		return fmt.Errorf("export: write png: %w", err)
	}
	return bw.Flush()
}

// Save writes p to path. PNG files go through WritePNG; any other
// extension gonum/plot understands (svg, pdf, eps) is passed through.
func Save(p *plot.Plot, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if strings.ToLower(filepath.Ext(path)) != ".png" {
		return p.Save(Width, Height, path)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WritePNG(f, p, Width, Height); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Figures saves the convergence, state and control plots of a run into
// dir with the given extension and returns the written paths.
func Figures(dir, ext string, tr ddp.Trajectory, dt float64, hold bool, history []solver.Stats) ([]string, error) {
	ext = strings.TrimPrefix(ext, ".")
	type figure struct {
		name string
		make func() (*plot.Plot, error)
	}
	figures := []figure{
		{"convergence", func() (*plot.Plot, error) { return Convergence(history) }},
		{"states", func() (*plot.Plot, error) { return States(tr, dt) }},
		{"controls", func() (*plot.Plot, error) { return Controls(tr, dt, hold) }},
	}

	var written []string
	for _, f := range figures {
		p, err := f.make()
		if errors.Is(err, ErrNoData) {
			continue
		}
		if err != nil {
			return written, fmt.Errorf("%s: %w", f.name, err)
		}
		path := filepath.Join(dir, f.name+"."+ext)
		if err := Save(p, path); err != nil {
			return written, fmt.Errorf("%s: %w", f.name, err)
		}
		written = append(written, path)
	}
	return written, nil
}
