package operations

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunStateLifecycle(t *testing.T) {
	runDate := time.Date(2025, 7, 15, 0, 0, 0, 0, time.UTC)
	state := NewRunState("run-1", runDate)

	assert.Equal(t, "run-1", state.ID)
	assert.Equal(t, runDate, state.RunDate)
	assert.Equal(t, RunStatusPending, state.Status)
	assert.Nil(t, state.EndTime)

	state.Start()
	assert.Equal(t, RunStatusRunning, state.Status)

	state.Complete()
	assert.Equal(t, RunStatusCompleted, state.Status)
	require.NotNil(t, state.EndTime)
	assert.GreaterOrEqual(t, state.Duration(), time.Duration(0))
}

func TestRunStateFail(t *testing.T) {
	state := NewRunState("run-1", time.Now())
	state.Start()

	cause := errors.New("disk full")
	state.Fail(cause)

	assert.Equal(t, RunStatusFailed, state.Status)
	assert.Equal(t, cause, state.Error)
	require.NotNil(t, state.EndTime)
}

func TestRunStateCancel(t *testing.T) {
	state := NewRunState("run-1", time.Now())
	state.Start()
	state.Cancel()

	assert.Equal(t, RunStatusCancelled, state.Status)
	require.NotNil(t, state.EndTime)
}

func TestRunStateContext(t *testing.T) {
	state := NewRunState("run-1", time.Now())

	_, ok := state.GetContext("missing")
	assert.False(t, ok)

	state.SetContext("rows", 42)
	val, ok := state.GetContext("rows")
	require.True(t, ok)
	assert.Equal(t, 42, val)
}

func TestRunStateStageAccessors(t *testing.T) {
	state := NewRunState("run-1", time.Now())
	state.SetStage("a", NewStageState("a", "Stage A"))
	state.SetStage("b", NewStageState("b", "Stage B"))
	state.SetStage("c", NewStageState("c", "Stage C"))

	assert.False(t, state.IsComplete())
	assert.False(t, state.HasFailures())

	state.GetStage("a").Start()
	assert.Len(t, state.GetActiveStages(), 1)

	state.GetStage("a").Complete()
	state.GetStage("b").Fail(errors.New("boom"))
	state.GetStage("c").Skip("dependency b failed")

	assert.Len(t, state.GetCompletedStages(), 1)
	assert.Len(t, state.GetFailedStages(), 1)
	assert.True(t, state.IsComplete())
	assert.True(t, state.HasFailures())

	assert.Nil(t, state.GetStage("ghost"))
}

func TestRunStateClone(t *testing.T) {
	state := NewRunState("run-1", time.Date(2025, 7, 15, 0, 0, 0, 0, time.UTC))
	state.Start()
	state.SetContext("key", "value")

	st := NewStageState("a", "Stage A")
	st.SetMetadata("rows", 10)
	st.Complete()
	state.SetStage("a", st)

	clone := state.Clone()
	assert.Equal(t, state.ID, clone.ID)
	assert.Equal(t, state.Status, clone.Status)
	assert.Equal(t, state.RunDate, clone.RunDate)

	val, ok := clone.GetContext("key")
	require.True(t, ok)
	assert.Equal(t, "value", val)

	// Stage states are copies: mutating the clone leaves the original alone.
	clone.GetStage("a").SetMetadata("rows", 99)
	orig, _ := state.GetStage("a").GetMetadata("rows")
	assert.Equal(t, 10, orig)

	// New context entries on the clone do not leak back.
	clone.SetContext("other", 1)
	_, ok = state.GetContext("other")
	assert.False(t, ok)
}
