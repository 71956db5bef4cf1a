package lifecycle

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"pixeltrain/platform/deploy"
	"pixeltrain/platform/metrics"
	"pixeltrain/platform/schema"
	"pixeltrain/platform/storage"
	"pixeltrain/platform/trainer"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrNoActiveTraining = errors.New("model has no active training to cancel")
	ErrNotTraining      = errors.New("model is not currently training")
	ErrStateConflict    = errors.New("model status changed concurrently")
	ErrArtifactNotReady = errors.New("model artifact is not available yet")
	ErrArtifactMissing  = errors.New("model artifact no longer exists in storage")
)

// Controller owns every status change of a model. User actions (start,
// cancel, delete), client polling, and provider webhooks all go through it;
// nothing else writes the status, run id, artifact, or endpoint columns.
type Controller struct {
	db       *gorm.DB
	trainer  trainer.Client
	store    storage.ObjectStore
	deployer deploy.Trigger

	bucket          string
	callbackBaseUrl string
}

func NewController(db *gorm.DB, trainerClient trainer.Client, store storage.ObjectStore, deployer deploy.Trigger, bucket, callbackBaseUrl string) *Controller {
	return &Controller{
		db:              db,
		trainer:         trainerClient,
		store:           store,
		deployer:        deployer,
		bucket:          bucket,
		callbackBaseUrl: callbackBaseUrl,
	}
}

// transition performs a compare-and-swap status update: the row is only
// updated if it is still in the expected status, so concurrent writers cannot
// overwrite each other's transitions. Returns false if another writer won.
func (c *Controller) transition(modelId uuid.UUID, from, to string, extraUpdates map[string]interface{}) (bool, error) {
	updates := map[string]interface{}{"status": to}
	for key, value := range extraUpdates {
		updates[key] = value
	}
	if schema.IsTerminalStatus(to) {
		updates["completed_at"] = time.Now()
	}

	result := c.db.Model(&schema.Model{}).Where("id = ? AND status = ?", modelId, from).Updates(updates)
	if result.Error != nil {
		slog.Error("sql error updating model status", "model_id", modelId, "from", from, "to", to, "error", result.Error)
		return false, schema.ErrDbAccessFailed
	}
	if result.RowsAffected == 0 {
		return false, nil
	}

	metrics.RecordTransition(from, to)
	slog.Info("model status transition", "model_id", modelId, "from", from, "to", to)

	return true, nil
}

type StartTrainingParams struct {
	Name          string
	Description   string
	Type          string
	Resolution    int
	TrainingSteps int
	EstimatedTime int
	DatasetId     uuid.UUID
}

// StartTraining creates the model row and launches the provider job. Dataset
// validation and row creation share one transaction, so a missing or foreign
// dataset aborts before any row or job exists.
func (c *Controller) StartTraining(user schema.User, params StartTrainingParams) (schema.Model, error) {
	model := schema.Model{
		Id:            uuid.New(),
		Name:          params.Name,
		Description:   params.Description,
		Type:          params.Type,
		Resolution:    params.Resolution,
		TrainingSteps: params.TrainingSteps,
		EstimatedTime: params.EstimatedTime,
		Status:        schema.Pending,
		CreatedAt:     time.Now(),
		DatasetId:     params.DatasetId,
		UserId:        user.Id,
	}

	var dataset schema.Dataset
	err := c.db.Transaction(func(txn *gorm.DB) error {
		var txnErr error
		dataset, txnErr = schema.GetDatasetForUser(params.DatasetId, user.Id, txn)
		if txnErr != nil {
			return txnErr
		}

		result := txn.Create(&model)
		if result.Error != nil {
			slog.Error("sql error creating model", "model_id", model.Id, "error", result.Error)
			return schema.ErrDbAccessFailed
		}

		return nil
	})
	if err != nil {
		return schema.Model{}, err
	}

	trainReq := trainer.TrainingRequest{
		DatasetBucketPath: dataset.ArchiveUri,
		ModelBucketPath:   storage.BucketURI(c.bucket, storage.ModelArtifactKey(user.Id, model.Id)),
		Steps:             params.TrainingSteps,
		ModelType:         params.Type,
		LogBucketPath:     storage.BucketURI(c.bucket, storage.TrainingLogKey(user.Id, model.Id)),
		CallbackUrl:       c.trainingFinishedCallback(model.Id),
	}

	jobId, err := c.trainer.StartTraining(trainReq)
	if err != nil {
		slog.Error("error starting training job", "model_id", model.Id, "error", err)
		if _, casErr := c.transition(model.Id, schema.Pending, schema.Failed, nil); casErr != nil {
			slog.Error("error marking model failed after start failure", "model_id", model.Id, "error", casErr)
		}
		return schema.Model{}, fmt.Errorf("error starting training: %w", err)
	}

	ok, err := c.transition(model.Id, schema.Pending, schema.Training, map[string]interface{}{"training_run_id": jobId})
	if err != nil {
		return schema.Model{}, err
	}
	if !ok {
		// The model was deleted or otherwise moved while the job was being
		// started. The job is orphaned; cancel it best-effort.
		slog.Warn("model status changed while starting training, cancelling job", "model_id", model.Id, "job_id", jobId)
		if cancelErr := c.trainer.CancelJob(jobId); cancelErr != nil {
			slog.Error("error cancelling orphaned training job", "job_id", jobId, "error", cancelErr)
		}
		return schema.Model{}, ErrStateConflict
	}

	metrics.RecordTrainingStart()

	model.Status = schema.Training
	model.TrainingRunId = jobId

	return model, nil
}

type StatusInfo struct {
	Status   string              `json:"status"`
	Progress trainer.JobProgress `json:"progress"`
}

// PollStatus reports a model's current status, consulting the provider only
// while the model is training. Terminal statuses are answered locally and
// never regress, and a provider 404 for an archived job falls back to the
// stored status. A provider-reported failure is the only transition polling
// persists; completion is owned by the webhooks.
func (c *Controller) PollStatus(user schema.User, modelId uuid.UUID) (StatusInfo, error) {
	model, err := schema.GetModelForUser(modelId, user.Id, c.db)
	if err != nil {
		return StatusInfo{}, err
	}

	if model.Status != schema.Training {
		return StatusInfo{Status: model.Status}, nil
	}

	jobStatus, err := c.trainer.JobStatus(model.TrainingRunId)
	if err != nil {
		if errors.Is(err, trainer.ErrJobNotFound) {
			// The provider archives finished jobs; the stored status is the
			// authoritative answer.
			slog.Info("training job archived by provider, using stored status", "model_id", modelId, "job_id", model.TrainingRunId)
			return StatusInfo{Status: model.Status}, nil
		}
		return StatusInfo{}, fmt.Errorf("error polling training status: %w", err)
	}

	reported := jobStatus.State.ModelStatus()
	if reported == "" {
		slog.Warn("unrecognized provider job state, leaving status unchanged", "model_id", modelId, "state", jobStatus.State.String())
		return StatusInfo{Status: model.Status, Progress: jobStatus.Progress}, nil
	}

	if reported == schema.Failed || reported == schema.Cancelled {
		if _, err := c.transition(modelId, schema.Training, reported, nil); err != nil {
			return StatusInfo{}, err
		}
	}

	return StatusInfo{Status: reported, Progress: jobStatus.Progress}, nil
}

// Cancel stops an in-flight training job. The provider call is best-effort:
// the model moves to cancelled even if the provider rejects the cancellation.
func (c *Controller) Cancel(user schema.User, modelId uuid.UUID) error {
	model, err := schema.GetModelForUser(modelId, user.Id, c.db)
	if err != nil {
		return err
	}

	if model.TrainingRunId == "" {
		return ErrNoActiveTraining
	}
	if model.Status != schema.Training {
		return ErrNotTraining
	}

	if err := c.trainer.CancelJob(model.TrainingRunId); err != nil {
		slog.Error("error cancelling training job, proceeding with cancellation", "model_id", modelId, "job_id", model.TrainingRunId, "error", err)
	}

	ok, err := c.transition(modelId, schema.Training, schema.Cancelled, nil)
	if err != nil {
		return err
	}
	if !ok {
		return ErrStateConflict
	}

	return nil
}

func (c *Controller) trainingFinishedCallback(modelId uuid.UUID) string {
	return fmt.Sprintf("%v/models/%v/training-finished", c.callbackBaseUrl, modelId)
}

func (c *Controller) deploymentFinishedCallback(modelId uuid.UUID) string {
	return fmt.Sprintf("%v/models/%v/deployment-finished", c.callbackBaseUrl, modelId)
}
