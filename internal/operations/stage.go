package operations

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Stage represents a single stage in a pipeline run
type Stage interface {
	// ID returns the unique identifier for this stage
	ID() string

	// Name returns the human-readable name for this stage
	Name() string

	// Execute runs the stage with the given context and run state
	Execute(ctx context.Context, state *RunState) error

	// Validate checks if the stage can be executed with the current state
	Validate(state *RunState) error

	// Dependencies returns the IDs of stages that must complete before this stage
	Dependencies() []string
}

// StageStatus represents the current status of a stage
type StageStatus string

const (
	StageStatusPending   StageStatus = "pending"
	StageStatusActive    StageStatus = "active"
	StageStatusCompleted StageStatus = "completed"
	StageStatusFailed    StageStatus = "failed"
	StageStatusSkipped   StageStatus = "skipped"
)

// StageState represents the runtime state of a stage
type StageState struct {
	mu        sync.RWMutex
	ID        string                 `json:"id"`
	Name      string                 `json:"name"`
	Status    StageStatus            `json:"status"`
	StartTime *time.Time             `json:"start_time,omitempty"`
	EndTime   *time.Time             `json:"end_time,omitempty"`
	Progress  float64                `json:"progress"`
	Message   string                 `json:"message"`
	Error     error                  `json:"-"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// NewStageState creates a new stage state with default values
func NewStageState(id, name string) *StageState {
	return &StageState{
		ID:       id,
		Name:     name,
		Status:   StageStatusPending,
		Progress: 0,
		Metadata: make(map[string]interface{}),
	}
}

// Start marks the stage as active and sets the start time
func (s *StageState) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.StartTime = &now
	s.Status = StageStatusActive
	s.Progress = 0
}

// Complete marks the stage as completed and sets the end time
func (s *StageState) Complete() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.EndTime = &now
	s.Status = StageStatusCompleted
	s.Progress = 100
}

// Fail marks the stage as failed with the given error
func (s *StageState) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.EndTime = &now
	s.Status = StageStatusFailed
	s.Error = err
	if err != nil {
		s.Message = err.Error()
	}
}

// Skip marks the stage as skipped with the given reason
func (s *StageState) Skip(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.EndTime = &now
	s.Status = StageStatusSkipped
	s.Message = reason
}

// UpdateProgress updates the stage progress and message
func (s *StageState) UpdateProgress(progress float64, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Progress = progress
	s.Message = message
}

// SetMetadata records a metadata entry for the stage
func (s *StageState) SetMetadata(key string, value interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Metadata == nil {
		s.Metadata = make(map[string]interface{})
	}
	s.Metadata[key] = value
}

// GetMetadata retrieves a metadata entry recorded by the stage
func (s *StageState) GetMetadata(key string) (interface{}, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	val, ok := s.Metadata[key]
	return val, ok
}

// MetadataCopy returns a snapshot of the stage metadata
func (s *StageState) MetadataCopy() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]interface{}, len(s.Metadata))
	for k, v := range s.Metadata {
		out[k] = v
	}
	return out
}

// Duration returns the duration of the stage execution
func (s *StageState) Duration() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.StartTime == nil {
		return 0
	}
	if s.EndTime != nil {
		return s.EndTime.Sub(*s.StartTime)
	}
	return time.Since(*s.StartTime)
}

// BaseStage provides common functionality for Stage implementations
type BaseStage struct {
	id           string
	name         string
	dependencies []string
}

// NewBaseStage creates a new base stage
func NewBaseStage(id, name string, dependencies []string) BaseStage {
	if dependencies == nil {
		dependencies = []string{}
	}
	return BaseStage{
		id:           id,
		name:         name,
		dependencies: dependencies,
	}
}

// ID returns the stage ID
func (b *BaseStage) ID() string {
	if b == nil {
		return ""
	}
	return b.id
}

// Name returns the stage name
func (b *BaseStage) Name() string {
	if b == nil {
		return ""
	}
	return b.name
}

// Dependencies returns the stage dependencies
func (b *BaseStage) Dependencies() []string {
	if b == nil {
		return nil
	}
	return b.dependencies
}

// Validate provides a default validation that always passes
func (b *BaseStage) Validate(state *RunState) error {
	if b == nil {
		return fmt.Errorf("BaseStage is nil")
	}
	return nil
}
