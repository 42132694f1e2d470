// Package storage keeps finished runs on disk, one directory per run.
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
	"time"

	"github.com/google/uuid"

	"github.com/san-kum/simcheck/internal/config"
	"github.com/san-kum/simcheck/internal/dynamo"
	"github.com/san-kum/simcheck/internal/harness"
	"github.com/san-kum/simcheck/internal/sim"
)

const (
	metadataFile   = "metadata.json"
	configFile     = "config.yaml"
	trajectoryFile = "trajectory.csv"
	reportFile     = "report.json"
	studyFile      = "study.json"
)

var ErrRunNotFound = errors.New("storage: run not found")

type Store struct {
	baseDir string
	now     func() time.Time
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir, now: time.Now}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

func (s *Store) Dir(runID string) string {
	return filepath.Join(s.baseDir, runID)
}

type RunMetadata struct {
	ID         string    `json:"id"`
	System     string    `json:"system"`
	Timestamp  time.Time `json:"timestamp"`
	Integrator string    `json:"integrator,omitempty"`
	Adaptive   bool      `json:"adaptive,omitempty"`
	Dt         float64   `json:"dt,omitempty"`
	Duration   float64   `json:"duration,omitempty"`
	Seed       uint64    `json:"seed,omitempty"`
	Status     string    `json:"status,omitempty"`
	Error      string    `json:"error,omitempty"`
	Steps      int       `json:"steps,omitempty"`
	Rejected   int       `json:"rejected,omitempty"`
	Samples    int       `json:"samples,omitempty"`
	// Passed is nil when no report was produced.
	Passed *bool `json:"passed,omitempty"`
}

func (s *Store) create(cfg *config.Config) (RunMetadata, string, error) {
	meta := RunMetadata{
		ID:        uuid.NewString(),
		System:    cfg.System,
		Timestamp: s.now().UTC(),
	}
	dir := s.Dir(meta.ID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return meta, "", err
	}
	if err := config.Save(filepath.Join(dir, configFile), cfg); err != nil {
		return meta, "", err
	}
	return meta, dir, nil
}

// Save stores a trajectory run. res may be a failed run with a partial
// trajectory; report may be nil.
func (s *Store) Save(cfg *config.Config, res *sim.Result, report *harness.Report) (string, error) {
	meta, dir, err := s.create(cfg)
	if err != nil {
		return "", err
	}
	meta.Integrator = cfg.Integrator
	meta.Adaptive = cfg.Adaptive
	meta.Dt = cfg.Dt
	meta.Duration = cfg.Duration

	if res != nil {
		meta.Status = res.Status.String()
		meta.Steps = res.Steps
		meta.Rejected = res.Rejected
		if res.Err != nil {
			meta.Error = res.Err.Error()
		}
		if res.Trajectory != nil {
			meta.Samples = res.Trajectory.Len()
			if err := writeTrajectory(filepath.Join(dir, trajectoryFile), res.Trajectory); err != nil {
				return "", err
			}
		}
	}

	if report != nil {
		passed := report.Passed()
		meta.Passed = &passed
		if err := writeJSON(filepath.Join(dir, reportFile), report); err != nil {
			return "", err
		}
	}

	if err := writeJSON(filepath.Join(dir, metadataFile), meta); err != nil {
		return "", err
	}
	return meta.ID, nil
}

// SaveStudy stores a run without a trajectory, such as a Monte Carlo
// convergence study, as study.json.
func (s *Store) SaveStudy(cfg *config.Config, study any) (string, error) {
	meta, dir, err := s.create(cfg)
	if err != nil {
		return "", err
	}
	meta.Seed = cfg.MonteCarlo.Seed
	if err := writeJSON(filepath.Join(dir, studyFile), study); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(dir, metadataFile), meta); err != nil {
		return "", err
	}
	return meta.ID, nil
}

// List returns stored runs, oldest first. Directories without readable
// metadata are skipped.
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
		var meta RunMetadata
		if err := readJSON(filepath.Join(s.baseDir, entry.Name(), metadataFile), &meta); err != nil {
			continue
		}
		runs = append(runs, meta)
	}

	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.Before(runs[j].Timestamp) })
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	var meta RunMetadata
	if err := readJSON(filepath.Join(s.Dir(runID), metadataFile), &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

func (s *Store) LoadConfig(runID string) (*config.Config, error) {
	cfg, err := config.Load(filepath.Join(s.Dir(runID), configFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return cfg, err
}

func (s *Store) LoadReport(runID string) (*harness.Report, error) {
	var report harness.Report
	if err := readJSON(filepath.Join(s.Dir(runID), reportFile), &report); err != nil {
		return nil, err
	}
	return &report, nil
}

func (s *Store) LoadStudy(runID string, v any) error {
	return readJSON(filepath.Join(s.Dir(runID), studyFile), v)
}

func (s *Store) LoadTrajectory(runID string) (*dynamo.Trajectory, error) {
	path := filepath.Join(s.Dir(runID), trajectoryFile)
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s has no trajectory", ErrRunNotFound, runID)
		}
		return nil, err
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if len(records) < 1 {
		return dynamo.NewTrajectory(0), nil
	}

	traj := dynamo.NewTrajectory(len(records) - 1)
	for i, record := range records[1:] {
		row := make([]float64, len(record))
		for j, field := range record {
			if row[j], err = strconv.ParseFloat(field, 64); err != nil {
				return nil, fmt.Errorf("%s line %d: %w", path, i+2, err)
			}
		}
		if err := traj.Append(row[0], dynamo.State(row[1:])); err != nil {
			return nil, fmt.Errorf("%s line %d: %w", path, i+2, err)
		}
	}
	return traj, nil
}

func writeTrajectory(path string, traj *dynamo.Trajectory) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if traj.Len() > 0 {
		header := []string{"time"}
		for i := range traj.At(0).X {
			header = append(header, fmt.Sprintf("x%d", i))
		}
		if err := w.Write(header); err != nil {
			return err
		}
	}

	for i := 0; i < traj.Len(); i++ {
		smp := traj.At(i)
		row := make([]string, 0, len(smp.X)+1)
		// shortest round-trip formatting keeps reloads bit-exact
		row = append(row, strconv.FormatFloat(smp.T, 'g', -1, 64))
		for _, v := range smp.X {
			row = append(row, strconv.FormatFloat(v, 'g', -1, 64))
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

func writeJSON(path string, v any) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrRunNotFound, filepath.Base(filepath.Dir(path)))
		}
		return err
	}
	return json.Unmarshal(data, v)
}
