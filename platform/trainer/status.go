package trainer

import (
	"strings"

	"pixeltrain/platform/schema"
)

// JobState is the closed vocabulary of provider job states. The provider
// reports free-form strings; ParseJobState maps them totally onto this enum
// so that an unrecognized value is always StateUnknown, never silently
// coerced into something else.
type JobState int

const (
	StateUnknown JobState = iota
	StateQueued
	StateRunning
	StateCompleted
	StateFailed
	StateCancelled
	StateTimedOut
)

func (s JobState) String() string {
	switch s {
	case StateQueued:
		return "queued"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	case StateTimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

func ParseJobState(providerStatus string) JobState {
	switch strings.ToUpper(strings.TrimSpace(providerStatus)) {
	case "IN_QUEUE", "QUEUED", "PENDING":
		return StateQueued
	case "IN_PROGRESS", "RUNNING", "TRAINING":
		return StateRunning
	case "COMPLETED", "COMPLETE", "SUCCESS":
		return StateCompleted
	case "FAILED", "ERROR":
		return StateFailed
	case "CANCELLED", "CANCELED":
		return StateCancelled
	case "TIMED_OUT", "TIMEOUT":
		return StateTimedOut
	default:
		return StateUnknown
	}
}

// ModelStatus translates a provider job state into the local model status
// vocabulary. Queued and running jobs are still training from the platform's
// point of view. Completed is reported as training as well: the transition
// out of training happens only through the training-finished webhook, which
// carries the artifact location. Unknown maps to empty, meaning no change.
func (s JobState) ModelStatus() string {
	switch s {
	case StateQueued, StateRunning, StateCompleted:
		return schema.Training
	case StateFailed, StateTimedOut:
		return schema.Failed
	case StateCancelled:
		return schema.Cancelled
	default:
		return ""
	}
}
