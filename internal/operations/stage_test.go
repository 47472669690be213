package operations

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStageStateTransitions(t *testing.T) {
	st := NewStageState("silver", "Silver Cleaning")
	assert.Equal(t, StageStatusPending, st.Status)
	assert.Nil(t, st.StartTime)

	st.Start()
	assert.Equal(t, StageStatusActive, st.Status)
	require.NotNil(t, st.StartTime)

	st.UpdateProgress(40, "cleaning batches")
	assert.Equal(t, 40.0, st.Progress)
	assert.Equal(t, "cleaning batches", st.Message)

	st.Complete()
	assert.Equal(t, StageStatusCompleted, st.Status)
	assert.Equal(t, 100.0, st.Progress)
	require.NotNil(t, st.EndTime)
}

func TestStageStateFailSetsMessage(t *testing.T) {
	st := NewStageState("facts", "Fact Assembly")
	st.Start()

	cause := errors.New("write facts: disk full")
	st.Fail(cause)

	assert.Equal(t, StageStatusFailed, st.Status)
	assert.Equal(t, cause, st.Error)
	assert.Equal(t, "write facts: disk full", st.Message)
	require.NotNil(t, st.EndTime)
}

func TestStageStateSkip(t *testing.T) {
	st := NewStageState("quality", "Quality Evaluation")
	st.Skip("dependency facts failed")

	assert.Equal(t, StageStatusSkipped, st.Status)
	assert.Equal(t, "dependency facts failed", st.Message)
	require.NotNil(t, st.EndTime)
}

func TestStageStateMetadata(t *testing.T) {
	st := NewStageState("silver", "Silver Cleaning")

	_, ok := st.GetMetadata("rows_in")
	assert.False(t, ok)

	st.SetMetadata("rows_in", 120)
	st.SetMetadata(MetadataKeyOutputs, []string{"silver/sales.csv"})

	val, ok := st.GetMetadata("rows_in")
	require.True(t, ok)
	assert.Equal(t, 120, val)

	snapshot := st.MetadataCopy()
	assert.Len(t, snapshot, 2)

	// The copy is detached from the live metadata map.
	snapshot["rows_in"] = 999
	val, _ = st.GetMetadata("rows_in")
	assert.Equal(t, 120, val)
}

func TestStageStateDuration(t *testing.T) {
	st := NewStageState("bronze", "Bronze Ingestion")
	assert.Equal(t, time.Duration(0), st.Duration())

	st.Start()
	st.Complete()
	assert.GreaterOrEqual(t, st.Duration(), time.Duration(0))
}

func TestBaseStage(t *testing.T) {
	base := NewBaseStage("dimensions", "Dimension Build", []string{"silver"})

	assert.Equal(t, "dimensions", base.ID())
	assert.Equal(t, "Dimension Build", base.Name())
	assert.Equal(t, []string{"silver"}, base.Dependencies())
	assert.NoError(t, base.Validate(nil))
}

func TestBaseStageNilDependencies(t *testing.T) {
	base := NewBaseStage("bronze", "Bronze Ingestion", nil)
	deps := base.Dependencies()
	require.NotNil(t, deps)
	assert.Empty(t, deps)
}
