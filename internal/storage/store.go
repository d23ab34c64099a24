package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/san-kum/trajopt/internal/config"
	"github.com/san-kum/trajopt/internal/ddp"
	"github.com/san-kum/trajopt/internal/dynamo"
	"github.com/san-kum/trajopt/internal/solver"
)

var (
	// ErrRunNotFound indicates that no stored run matches an id.
	ErrRunNotFound = errors.New("storage: run not found")

	// ErrAmbiguousRun indicates that an id prefix matches several runs.
	ErrAmbiguousRun = errors.New("storage: run id prefix is ambiguous")
)

const (
	metadataFile   = "metadata.json"
	trajectoryFile = "trajectory.csv"
	iterationsFile = "iterations.csv"
	configFile     = "config.yaml"
)

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID         string             `json:"id"`
	Model      string             `json:"model"`
	Preset     string             `json:"preset,omitempty"`
	Timestamp  time.Time          `json:"timestamp"`
	Pass       string             `json:"pass"`
	Integrator string             `json:"integrator"`
	Knots      int                `json:"knots"`
	Dt         float64            `json:"dt"`
	StateDim   int                `json:"state_dim"`
	ControlDim int                `json:"control_dim"`
	Hold       bool               `json:"hold"`
	Cost       float64            `json:"cost"`
	Iterations int                `json:"iterations"`
	Outer      int                `json:"outer"`
	Converged  bool               `json:"converged"`
	Reason     string             `json:"reason"`
	Violation  float64            `json:"violation"`
	Elapsed    float64            `json:"elapsed_seconds"`
	Metrics    map[string]float64 `json:"metrics,omitempty"`
}

// Run is everything persisted for one solve. Config is optional.
type Run struct {
	Meta   RunMetadata
	Config *config.Config
	Result *solver.Result
}

// Save writes a run under a fresh id and returns the id.
func (s *Store) Save(run Run) (string, error) {
	res := run.Result
	if res == nil || len(res.Trajectory.X) == 0 {
		return "", fmt.Errorf("storage: nothing to save")
	}

	meta := run.Meta
	meta.ID = uuid.NewString()
	if meta.Timestamp.IsZero() {
		meta.Timestamp = time.Now()
	}
	meta.Knots = len(res.Trajectory.X)
	meta.StateDim = len(res.Trajectory.X[0])
	if len(res.Trajectory.U) > 0 {
		meta.ControlDim = len(res.Trajectory.U[0])
	}
	meta.Hold = res.Hold
	meta.Cost = res.Cost
	meta.Iterations = res.Iterations
	meta.Outer = res.Outer
	meta.Converged = res.Converged
	meta.Reason = string(res.Reason)
	meta.Violation = res.Violation
	if n := len(res.History); n > 0 {
		meta.Elapsed = res.History[n-1].Elapsed.Seconds()
	}

	runDir := filepath.Join(s.baseDir, meta.ID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(runDir, metadataFile), meta); err != nil {
		return "", err
	}
	if err := writeTrajectory(filepath.Join(runDir, trajectoryFile), res.Trajectory, meta.Dt); err != nil {
		return "", err
	}
	if err := writeHistory(filepath.Join(runDir, iterationsFile), res.History); err != nil {
		return "", err
	}
	if run.Config != nil {
		if err := config.Save(filepath.Join(runDir, configFile), run.Config); err != nil {
			return "", err
		}
	}
	return meta.ID, nil
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func writeCSV(path string, header []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return err
	}
	if err := w.WriteAll(rows); err != nil {
		return err
	}
	return w.Error()
}

func writeTrajectory(path string, tr ddp.Trajectory, dt float64) error {
	n := len(tr.X[0])
	m := 0
	if len(tr.U) > 0 {
		m = len(tr.U[0])
	}
	header := []string{"knot", "time"}
	for i := 0; i < n; i++ {
		header = append(header, fmt.Sprintf("x%d", i))
	}
	for i := 0; i < m; i++ {
		header = append(header, fmt.Sprintf("u%d", i))
	}

	rows := make([][]string, len(tr.X))
	for k, x := range tr.X {
		row := []string{strconv.Itoa(k), formatFloat(float64(k) * dt)}
		for _, v := range x {
			row = append(row, formatFloat(v))
		}
		for i := 0; i < m; i++ {
			if k < len(tr.U) {
				row = append(row, formatFloat(tr.U[k][i]))
			} else {
				row = append(row, "")
			}
		}
		rows[k] = row
	}
	return writeCSV(path, header, rows)
}

var historyHeader = []string{
	"iteration", "outer", "cost", "expected", "alpha", "ratio",
	"damping", "restarts", "searches", "accepted", "violation", "elapsed",
}

func writeHistory(path string, history []solver.Stats) error {
	rows := make([][]string, len(history))
	for i, st := range history {
		rows[i] = []string{
			strconv.Itoa(st.Iteration),
			strconv.Itoa(st.Outer),
			formatFloat(st.Cost),
			formatFloat(st.Expected),
			formatFloat(st.Alpha),
			formatFloat(st.Ratio),
			formatFloat(st.Damping),
			strconv.Itoa(st.Restarts),
			strconv.Itoa(st.Searches),
			strconv.FormatBool(st.Accepted),
			formatFloat(st.Violation),
			formatFloat(st.Elapsed.Seconds()),
		}
	}
	return writeCSV(path, historyHeader, rows)
}

// List returns every stored run, oldest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].Timestamp.Before(runs[j].Timestamp)
	})
	return runs, nil
}

// Resolve expands a unique id prefix into a full run id.
func (s *Store) Resolve(prefix string) (string, error) {
	runs, err := s.List()
	if err != nil {
		return "", err
	}
	match := ""
	for _, r := range runs {
		if r.ID == prefix {
			return r.ID, nil
		}
		if strings.HasPrefix(r.ID, prefix) {
			if match != "" {
				return "", fmt.Errorf("%w: %s", ErrAmbiguousRun, prefix)
			}
			match = r.ID
		}
	}
	if match == "" {
		return "", fmt.Errorf("%w: %s", ErrRunNotFound, prefix)
	}
	return match, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}

	return &meta, nil
}

// LoadConfig returns the configuration saved with a run.
func (s *Store) LoadConfig(runID string) (*config.Config, error) {
	return config.Load(filepath.Join(s.baseDir, runID, configFile))
}

func (s *Store) readCSV(runID, name string) ([][]string, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, name))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("storage: %s of run %s is empty", name, runID)
	}
	return records[1:], nil
}

func parseFloats(fields []string) ([]float64, error) {
	out := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// LoadTrajectory reads the solved trajectory and its knot times.
func (s *Store) LoadTrajectory(runID string) (ddp.Trajectory, []float64, error) {
	meta, err := s.Load(runID)
	if err != nil {
		return ddp.Trajectory{}, nil, err
	}
	records, err := s.readCSV(runID, trajectoryFile)
	if err != nil {
		return ddp.Trajectory{}, nil, err
	}

	n, m := meta.StateDim, meta.ControlDim
	var tr ddp.Trajectory
	times := make([]float64, 0, len(records))
	for i, rec := range records {
		if len(rec) != 2+n+m {
			return ddp.Trajectory{}, nil, fmt.Errorf("storage: row %d has %d fields, want %d", i+1, len(rec), 2+n+m)
		}
		t, err := strconv.ParseFloat(rec[1], 64)
		if err != nil {
			return ddp.Trajectory{}, nil, fmt.Errorf("storage: row %d: %w", i+1, err)
		}
		x, err := parseFloats(rec[2 : 2+n])
		if err != nil {
			return ddp.Trajectory{}, nil, fmt.Errorf("storage: row %d: %w", i+1, err)
		}
		times = append(times, t)
		tr.X = append(tr.X, dynamo.State(x))

		if m == 0 || rec[2+n] == "" {
			continue
		}
		u, err := parseFloats(rec[2+n:])
		if err != nil {
			return ddp.Trajectory{}, nil, fmt.Errorf("storage: row %d: %w", i+1, err)
		}
		tr.U = append(tr.U, dynamo.Control(u))
	}
	return tr, times, nil
}

// LoadHistory reads the per-iteration statistics of a run.
func (s *Store) LoadHistory(runID string) ([]solver.Stats, error) {
	records, err := s.readCSV(runID, iterationsFile)
	if err != nil {
		return nil, err
	}

	history := make([]solver.Stats, 0, len(records))
	for i, rec := range records {
		if len(rec) != len(historyHeader) {
			return nil, fmt.Errorf("storage: iteration row %d has %d fields", i+1, len(rec))
		}
		st, err := parseStats(rec)
		if err != nil {
			return nil, fmt.Errorf("storage: iteration row %d: %w", i+1, err)
		}
		history = append(history, st)
	}
	return history, nil
}

func parseStats(rec []string) (solver.Stats, error) {
	var st solver.Stats
	ints := []*int{&st.Iteration, &st.Outer}
	for i, dst := range ints {
		v, err := strconv.Atoi(rec[i])
		if err != nil {
			return st, err
		}
		*dst = v
	}
	floats, err := parseFloats([]string{rec[2], rec[3], rec[4], rec[5], rec[6], rec[10], rec[11]})
	if err != nil {
		return st, err
	}
	st.Cost, st.Expected, st.Alpha, st.Ratio, st.Damping, st.Violation = floats[0], floats[1], floats[2], floats[3], floats[4], floats[5]
	st.Elapsed = time.Duration(floats[6] * float64(time.Second))

	if st.Restarts, err = strconv.Atoi(rec[7]); err != nil {
		return st, err
	}
	if st.Searches, err = strconv.Atoi(rec[8]); err != nil {
		return st, err
	}
	if st.Accepted, err = strconv.ParseBool(rec[9]); err != nil {
		return st, err
	}
	return st, nil
}
