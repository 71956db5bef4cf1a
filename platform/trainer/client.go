package trainer

import (
	"errors"
	"fmt"
)

var ErrJobNotFound = errors.New("training provider returned status 404")

type TrainingRequest struct {
	DatasetBucketPath string `json:"dataset_bucket_path"`
	ModelBucketPath   string `json:"model_bucket_path"`
	Steps             int    `json:"steps"`
	ModelType         string `json:"model_type"`
	LogBucketPath     string `json:"log_bucket_path"`
	CallbackUrl       string `json:"callback_url"`
}

type JobProgress struct {
	Step            int     `json:"step"`
	TotalSteps      int     `json:"total_steps"`
	ProgressPercent float64 `json:"progress_percent"`
}

type JobStatusResponse struct {
	State    JobState
	Progress JobProgress
}

// Client is the interface to the external GPU training provider. All
// operations are single synchronous HTTP calls with no retry; the lifecycle
// controller decides what to do with failures.
type Client interface {
	StartTraining(req TrainingRequest) (string, error)

	JobStatus(jobId string) (JobStatusResponse, error)

	CancelJob(jobId string) error
}

func CheckJobId(jobId string) error {
	if jobId == "" {
		return fmt.Errorf("missing training run id")
	}
	return nil
}
