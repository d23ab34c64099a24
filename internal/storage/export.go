package storage

import (
	"encoding/json"
	"io"

	"github.com/san-kum/trajopt/internal/ddp"
	"github.com/san-kum/trajopt/internal/solver"
)

type ExportData struct {
	RunMetadata
	Times      []float64       `json:"times"`
	States     [][]float64     `json:"states"`
	Controls   [][]float64     `json:"controls"`
	Iterations []IterationData `json:"history,omitempty"`
}

type IterationData struct {
	Iteration int     `json:"iteration"`
	Cost      float64 `json:"cost"`
	Expected  float64 `json:"expected"`
	Alpha     float64 `json:"alpha"`
	Damping   float64 `json:"damping"`
	Accepted  bool    `json:"accepted"`
}

// ExportJSON writes a stored run as a single JSON document.
func ExportJSON(w io.Writer, meta RunMetadata, tr ddp.Trajectory, times []float64, history []solver.Stats) error {
	data := ExportData{
		RunMetadata: meta,
		Times:       times,
		States:      make([][]float64, len(tr.X)),
		Controls:    make([][]float64, len(tr.U)),
	}

	for i, s := range tr.X {
		data.States[i] = s
	}
	for i, c := range tr.U {
		data.Controls[i] = c
	}
	for _, st := range history {
		data.Iterations = append(data.Iterations, IterationData{
			Iteration: st.Iteration,
			Cost:      st.Cost,
			Expected:  st.Expected,
			Alpha:     st.Alpha,
			Damping:   st.Damping,
			Accepted:  st.Accepted,
		})
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}
