package trainer

import (
	"testing"

	"pixeltrain/platform/schema"

	"github.com/stretchr/testify/assert"
)

func TestParseJobState(t *testing.T) {
	cases := map[string]JobState{
		"IN_QUEUE":    StateQueued,
		"QUEUED":      StateQueued,
		"PENDING":     StateQueued,
		"IN_PROGRESS": StateRunning,
		"RUNNING":     StateRunning,
		"TRAINING":    StateRunning,
		"COMPLETED":   StateCompleted,
		"COMPLETE":    StateCompleted,
		"SUCCESS":     StateCompleted,
		"FAILED":      StateFailed,
		"ERROR":       StateFailed,
		"CANCELLED":   StateCancelled,
		"CANCELED":    StateCancelled,
		"TIMED_OUT":   StateTimedOut,
		"TIMEOUT":     StateTimedOut,

		"completed":     StateCompleted,
		" in_progress ": StateRunning,
		"Failed":        StateFailed,

		"":             StateUnknown,
		"REBALANCING":  StateUnknown,
		"COMPLETEDISH": StateUnknown,
	}

	for input, expected := range cases {
		assert.Equal(t, expected, ParseJobState(input), "input %q", input)
	}
}

func TestModelStatus(t *testing.T) {
	cases := map[JobState]string{
		StateQueued:    schema.Training,
		StateRunning:   schema.Training,
		StateCompleted: schema.Training,
		StateFailed:    schema.Failed,
		StateTimedOut:  schema.Failed,
		StateCancelled: schema.Cancelled,
		StateUnknown:   "",
	}

	for state, expected := range cases {
		assert.Equal(t, expected, state.ModelStatus(), "state %v", state)
	}
}

func TestJobStateString(t *testing.T) {
	assert.Equal(t, "queued", StateQueued.String())
	assert.Equal(t, "timed_out", StateTimedOut.String())
	assert.Equal(t, "unknown", StateUnknown.String())
	assert.Equal(t, "unknown", JobState(42).String())
}
