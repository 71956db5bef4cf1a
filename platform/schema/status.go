package schema

import "fmt"

const (
	Pending   = "pending"
	Training  = "training"
	Deploying = "deploying"
	Completed = "completed"
	Failed    = "failed"
	Cancelled = "cancelled"
)

func CheckValidStatus(status string) error {
	switch status {
	case Pending, Training, Deploying, Completed, Failed, Cancelled:
		return nil
	default:
		return fmt.Errorf("invalid model status '%v'", status)
	}
}

// Terminal states never regress: once a model is completed, failed, or
// cancelled, no poll result or webhook may move it to another status.
func IsTerminalStatus(status string) bool {
	switch status {
	case Completed, Failed, Cancelled:
		return true
	default:
		return false
	}
}
