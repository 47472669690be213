package lake

import (
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"retailcli/internal/config"
	"retailcli/internal/errors"
)

// RunManifest tracks the datasets produced and the stages executed by one
// pipeline run. It is persisted alongside the reports so a later run, or an
// operator, can see what the last run produced.
type RunManifest struct {
	mu sync.RWMutex `json:"-"`

	RunID     string    `json:"run_id"`
	RunDate   string    `json:"run_date"`
	StartTime time.Time `json:"start_time"`

	Datasets map[string]*DatasetInfo `json:"datasets"`
	Stages   []StageExecution        `json:"stages"`

	Status      string    `json:"status"` // "pending", "running", "completed", "failed"
	TotalStages int       `json:"total_stages"`
	LastUpdated time.Time `json:"last_updated"`
	Error       string    `json:"error,omitempty"`
}

// DatasetInfo records one dataset written during the run. Checksums map
// each file name to a short content digest so a later run can tell whether
// a snapshot changed underneath it.
type DatasetInfo struct {
	Layer     string            `json:"layer"`
	Location  string            `json:"location"`
	FileCount int               `json:"file_count"`
	RowCount  int64             `json:"row_count"`
	TotalSize int64             `json:"total_size"`
	Files     []string          `json:"files,omitempty"`
	Checksums map[string]string `json:"checksums,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	CreatedBy string            `json:"created_by"`
}

// StageExecution tracks the execution of a single stage.
type StageExecution struct {
	StageID   string                 `json:"stage_id"`
	StageName string                 `json:"stage_name"`
	StartTime time.Time              `json:"start_time"`
	EndTime   time.Time              `json:"end_time"`
	Duration  string                 `json:"duration"`
	Status    string                 `json:"status"` // "running", "completed", "failed"
	Outputs   []string               `json:"outputs,omitempty"`
	Error     string                 `json:"error,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// NewRunManifest creates a manifest for one pipeline run.
func NewRunManifest(runID, runDate string, totalStages int) *RunManifest {
	now := time.Now()
	return &RunManifest{
		RunID:       runID,
		RunDate:     runDate,
		StartTime:   now,
		Datasets:    make(map[string]*DatasetInfo),
		Stages:      []StageExecution{},
		Status:      "pending",
		TotalStages: totalStages,
		LastUpdated: now,
	}
}

// MarkRunning flags the run as started.
func (m *RunManifest) MarkRunning() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Status = "running"
	m.LastUpdated = time.Now()
}

// MarkCompleted flags the run as finished unless a stage already failed it.
func (m *RunManifest) MarkCompleted() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Status != "failed" {
		m.Status = "completed"
	}
	m.LastUpdated = time.Now()
}

// HasDataset checks whether a dataset was recorded.
func (m *RunManifest) HasDataset(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, exists := m.Datasets[name]
	return exists
}

// GetDataset returns information about a recorded dataset.
func (m *RunManifest) GetDataset(name string) (*DatasetInfo, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	info, exists := m.Datasets[name]
	return info, exists
}

// AddDataset records a newly written dataset.
func (m *RunManifest) AddDataset(name string, info *DatasetInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	info.CreatedAt = time.Now()
	m.Datasets[name] = info
	m.LastUpdated = time.Now()
}

// RecordFiles records the given files as one dataset, sizing and hashing
// each so the manifest doubles as an integrity record for the layer. The
// files must already exist; call it after the snapshot writes publish.
func (m *RunManifest) RecordFiles(name, layer, location, createdBy string, rowCount int64, paths ...string) error {
	var totalSize int64
	fileNames := make([]string, 0, len(paths))
	checksums := make(map[string]string, len(paths))

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return errors.NewStorageError(fmt.Sprintf("stat dataset file %s", filepath.Base(path)), err)
		}
		sum, err := FileChecksum(path)
		if err != nil {
			return err
		}
		base := filepath.Base(path)
		totalSize += info.Size()
		fileNames = append(fileNames, base)
		checksums[base] = sum
	}

	m.AddDataset(name, &DatasetInfo{
		Layer:     layer,
		Location:  location,
		FileCount: len(fileNames),
		RowCount:  rowCount,
		TotalSize: totalSize,
		Files:     fileNames,
		Checksums: checksums,
		CreatedBy: createdBy,
	})
	return nil
}

// FileChecksum returns a short hex SHA-256 digest of the file contents.
func FileChecksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errors.NewStorageError(fmt.Sprintf("open %s for checksum", filepath.Base(path)), err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", errors.NewStorageError(fmt.Sprintf("checksum %s", filepath.Base(path)), err)
	}
	return fmt.Sprintf("%x", h.Sum(nil))[:12], nil
}

// RecordStageStart records the start of a stage execution. On retry the
// existing entry is reset instead of duplicated.
func (m *RunManifest) RecordStageStart(stageID, stageName string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, stage := range m.Stages {
		if stage.StageID == stageID {
			m.Stages[i].StartTime = time.Now()
			m.Stages[i].Status = "running"
			m.Stages[i].Error = ""
			m.LastUpdated = time.Now()
			return
		}
	}

	m.Stages = append(m.Stages, StageExecution{
		StageID:   stageID,
		StageName: stageName,
		StartTime: time.Now(),
		Status:    "running",
	})
	m.LastUpdated = time.Now()
}

// RecordStageCompletion records the completion of a stage.
func (m *RunManifest) RecordStageCompletion(stageID string, outputs []string, metadata map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, stage := range m.Stages {
		if stage.StageID == stageID {
			m.Stages[i].EndTime = time.Now()
			m.Stages[i].Duration = time.Since(stage.StartTime).String()
			m.Stages[i].Status = "completed"
			m.Stages[i].Outputs = outputs
			m.Stages[i].Metadata = metadata
			break
		}
	}
	m.LastUpdated = time.Now()
}

// RecordStageFailure records a stage failure and fails the run.
func (m *RunManifest) RecordStageFailure(stageID string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, stage := range m.Stages {
		if stage.StageID == stageID {
			m.Stages[i].EndTime = time.Now()
			m.Stages[i].Duration = time.Since(stage.StartTime).String()
			m.Stages[i].Status = "failed"
			m.Stages[i].Error = err.Error()
			break
		}
	}
	m.Status = "failed"
	m.Error = fmt.Sprintf("stage %s failed: %v", stageID, err)
	m.LastUpdated = time.Now()
}

// IsStageCompleted checks whether a stage has completed.
func (m *RunManifest) IsStageCompleted(stageID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, stage := range m.Stages {
		if stage.StageID == stageID && stage.Status == "completed" {
			return true
		}
	}
	return false
}

// ScanDataset scans a directory and records the matching files as a dataset.
func (m *RunManifest) ScanDataset(name, layer, location, pattern, createdBy string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := os.Stat(location); os.IsNotExist(err) {
		return fmt.Errorf("directory does not exist: %s", location)
	}

	matches, err := filepath.Glob(filepath.Join(location, pattern))
	if err != nil {
		return fmt.Errorf("failed to scan directory: %w", err)
	}

	var totalSize int64
	fileNames := make([]string, 0, len(matches))
	checksums := make(map[string]string, len(matches))
	for _, match := range matches {
		info, err := os.Stat(match)
		if err != nil || info.IsDir() {
			continue
		}
		base := filepath.Base(match)
		if sum, err := FileChecksum(match); err == nil {
			checksums[base] = sum
		}
		totalSize += info.Size()
		fileNames = append(fileNames, base)
	}

	m.Datasets[name] = &DatasetInfo{
		Layer:     layer,
		Location:  location,
		FileCount: len(fileNames),
		TotalSize: totalSize,
		Files:     fileNames,
		Checksums: checksums,
		CreatedAt: time.Now(),
		CreatedBy: createdBy,
	}
	m.LastUpdated = time.Now()
	return nil
}

// Progress returns the completed share of stages as a percentage.
func (m *RunManifest) Progress() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.TotalStages == 0 {
		return 0
	}

	completed := 0
	for _, stage := range m.Stages {
		if stage.Status == "completed" {
			completed++
		}
	}
	return (completed * 100) / m.TotalStages
}

// Save persists the manifest next to the run reports.
func (m *RunManifest) Save(s *Store) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return s.WriteJSON(s.ReportPath(config.RunManifestFile), m)
}

// LoadRunManifest loads a manifest written by a previous run.
func LoadRunManifest(s *Store) (*RunManifest, error) {
	var manifest RunManifest
	if err := s.ReadJSON(s.ReportPath(config.RunManifestFile), &manifest); err != nil {
		return nil, err
	}
	return &manifest, nil
}
