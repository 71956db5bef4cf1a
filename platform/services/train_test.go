package services

import (
	"fmt"
	"testing"

	"pixeltrain/platform/schema"
	"pixeltrain/platform/storage"
	"pixeltrain/platform/trainer"

	"github.com/google/uuid"
)

func TestStartTraining(t *testing.T) {
	env := setupTestEnv(t)

	c, err := env.newUser("abc")
	if err != nil {
		t.Fatal(err)
	}

	datasetId := env.uploadDataset(t, &c, "portraits", 24)

	model, err := c.startTraining(map[string]interface{}{
		"name": "my-model", "type": "subject", "dataset_id": datasetId,
	})
	if err != nil {
		t.Fatal(err)
	}

	if model.Status != schema.Training {
		t.Fatalf("expected model to be training, got %v", model.Status)
	}
	if model.TrainingSteps != 1000 || model.Resolution != 1024 {
		t.Fatalf("expected preset defaults to be applied: %+v", model)
	}
	if model.EstimatedTime != 33 {
		t.Fatalf("incorrect estimated time: %d", model.EstimatedTime)
	}

	row := env.getModel(t, model.ModelId.String())
	if row.Status != schema.Training || row.TrainingRunId != "job-1" {
		t.Fatalf("incorrect model row: status %v run id %v", row.Status, row.TrainingRunId)
	}
	if row.CompletedAt != nil {
		t.Fatal("completed_at should not be set while training")
	}

	if len(env.trainer.requests) != 1 {
		t.Fatalf("expected one training job, got %d", len(env.trainer.requests))
	}

	userId := uuid.MustParse(c.userId)
	req := env.trainer.requests[0]
	expected := trainer.TrainingRequest{
		DatasetBucketPath: storage.BucketURI(testBucket, storage.DatasetKey(userId, uuid.MustParse(datasetId))),
		ModelBucketPath:   storage.BucketURI(testBucket, storage.ModelArtifactKey(userId, model.ModelId)),
		Steps:             1000,
		ModelType:         "subject",
		LogBucketPath:     storage.BucketURI(testBucket, storage.TrainingLogKey(userId, model.ModelId)),
		CallbackUrl:       fmt.Sprintf("%v/models/%v/training-finished", callbackBase, model.ModelId),
	}
	if req != expected {
		t.Fatalf("incorrect training request:\ngot      %+v\nexpected %+v", req, expected)
	}
}

func TestStartTrainingValidation(t *testing.T) {
	env := setupTestEnv(t)

	c, err := env.newUser("abc")
	if err != nil {
		t.Fatal(err)
	}

	datasetId := env.uploadDataset(t, &c, "portraits", 24)

	for _, body := range []map[string]interface{}{
		{"type": "subject", "dataset_id": datasetId},
		{"name": "m", "type": "hologram", "dataset_id": datasetId},
		{"name": "m", "type": "subject", "dataset_id": datasetId, "training_steps": 50},
		{"name": "m", "type": "subject", "dataset_id": datasetId, "resolution": 1000},
		{"name": "m", "type": "subject"},
	} {
		code, err := c.Post("/train").Json(body).Status()
		if err != nil {
			t.Fatal(err)
		}
		if code != 422 {
			t.Fatalf("expected status 422 for body %+v, got %d", body, code)
		}
	}

	if len(env.trainer.requests) != 0 {
		t.Fatalf("no training job should be started: %+v", env.trainer.requests)
	}
}

func TestStartTrainingMissingDataset(t *testing.T) {
	env := setupTestEnv(t)

	c, err := env.newUser("abc")
	if err != nil {
		t.Fatal(err)
	}

	body := map[string]interface{}{
		"name": "my-model", "type": "subject", "dataset_id": uuid.New().String(),
	}
	code, err := c.Post("/train").Json(body).Status()
	if err != nil {
		t.Fatal(err)
	}
	if code != 404 {
		t.Fatalf("expected status 404 for missing dataset, got %d", code)
	}

	var count int64
	if err := env.db.Model(&schema.Model{}).Count(&count).Error; err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Fatalf("no model row should be created, found %d", count)
	}
	if len(env.trainer.requests) != 0 {
		t.Fatal("no training job should be started")
	}
}

func TestStartTrainingForeignDataset(t *testing.T) {
	env := setupTestEnv(t)

	owner, err := env.newUser("owner")
	if err != nil {
		t.Fatal(err)
	}
	other, err := env.newUser("other")
	if err != nil {
		t.Fatal(err)
	}

	datasetId := env.uploadDataset(t, &owner, "portraits", 24)

	body := map[string]interface{}{
		"name": "my-model", "type": "subject", "dataset_id": datasetId,
	}
	code, err := other.Post("/train").Json(body).Status()
	if err != nil {
		t.Fatal(err)
	}
	if code != 404 {
		t.Fatalf("expected status 404 for another user's dataset, got %d", code)
	}
	if len(env.trainer.requests) != 0 {
		t.Fatal("no training job should be started")
	}
}

func TestStartTrainingProviderFailure(t *testing.T) {
	env := setupTestEnv(t)

	c, err := env.newUser("abc")
	if err != nil {
		t.Fatal(err)
	}

	datasetId := env.uploadDataset(t, &c, "portraits", 24)

	env.trainer.failStart = true

	body := map[string]interface{}{
		"name": "my-model", "type": "subject", "dataset_id": datasetId,
	}
	code, err := c.Post("/train").Json(body).Status()
	if err != nil {
		t.Fatal(err)
	}
	if code != 502 {
		t.Fatalf("expected status 502 when the provider rejects the job, got %d", code)
	}

	models, err := c.listModels()
	if err != nil {
		t.Fatal(err)
	}
	if len(models) != 1 || models[0].Status != schema.Failed {
		t.Fatalf("expected a single failed model: %+v", models)
	}
	if models[0].CompletedAt == nil {
		t.Fatal("failed model should have completed_at set")
	}
}

func TestPollStatus(t *testing.T) {
	env := setupTestEnv(t)

	c, err := env.newUser("abc")
	if err != nil {
		t.Fatal(err)
	}

	model := env.startTraining(t, &c, "my-model", "subject")

	env.trainer.progress = trainer.JobProgress{Step: 250, TotalSteps: 1000, ProgressPercent: 25}

	status, err := c.trainStatus(model.ModelId.String())
	if err != nil {
		t.Fatal(err)
	}
	if status.Status != schema.Training {
		t.Fatalf("expected training status, got %v", status.Status)
	}
	if status.Progress.Step != 250 || status.Progress.ProgressPercent != 25 {
		t.Fatalf("incorrect progress: %+v", status.Progress)
	}
}

func TestPollStatusPersistsFailure(t *testing.T) {
	env := setupTestEnv(t)

	c, err := env.newUser("abc")
	if err != nil {
		t.Fatal(err)
	}

	model := env.startTraining(t, &c, "my-model", "subject")

	env.trainer.setJobStatus("job-1", "FAILED")

	status, err := c.trainStatus(model.ModelId.String())
	if err != nil {
		t.Fatal(err)
	}
	if status.Status != schema.Failed {
		t.Fatalf("expected failed status, got %v", status.Status)
	}

	row := env.getModel(t, model.ModelId.String())
	if row.Status != schema.Failed {
		t.Fatalf("failure should be persisted, row status is %v", row.Status)
	}
	if row.CompletedAt == nil {
		t.Fatal("failed model should have completed_at set")
	}

	// A terminal status never regresses, even if the provider later claims
	// the job is running again.
	env.trainer.setJobStatus("job-1", "IN_PROGRESS")

	status, err = c.trainStatus(model.ModelId.String())
	if err != nil {
		t.Fatal(err)
	}
	if status.Status != schema.Failed {
		t.Fatalf("terminal status regressed to %v", status.Status)
	}
}

func TestPollStatusArchivedJob(t *testing.T) {
	env := setupTestEnv(t)

	c, err := env.newUser("abc")
	if err != nil {
		t.Fatal(err)
	}

	model := env.startTraining(t, &c, "my-model", "subject")

	env.trainer.archiveJob("job-1")

	status, err := c.trainStatus(model.ModelId.String())
	if err != nil {
		t.Fatal(err)
	}
	if status.Status != schema.Training {
		t.Fatalf("archived job should fall back to the stored status, got %v", status.Status)
	}
}

func TestPollStatusUnknownProviderState(t *testing.T) {
	env := setupTestEnv(t)

	c, err := env.newUser("abc")
	if err != nil {
		t.Fatal(err)
	}

	model := env.startTraining(t, &c, "my-model", "subject")

	env.trainer.setJobStatus("job-1", "REBALANCING")

	status, err := c.trainStatus(model.ModelId.String())
	if err != nil {
		t.Fatal(err)
	}
	if status.Status != schema.Training {
		t.Fatalf("unknown provider state should leave the status unchanged, got %v", status.Status)
	}

	row := env.getModel(t, model.ModelId.String())
	if row.Status != schema.Training {
		t.Fatalf("row status changed to %v", row.Status)
	}
}

func TestCancelTraining(t *testing.T) {
	env := setupTestEnv(t)

	c, err := env.newUser("abc")
	if err != nil {
		t.Fatal(err)
	}

	model := env.startTraining(t, &c, "my-model", "subject")

	if err := c.cancelTraining(model.ModelId.String()); err != nil {
		t.Fatal(err)
	}

	if len(env.trainer.cancelled) != 1 || env.trainer.cancelled[0] != "job-1" {
		t.Fatalf("expected the provider job to be cancelled: %+v", env.trainer.cancelled)
	}

	row := env.getModel(t, model.ModelId.String())
	if row.Status != schema.Cancelled {
		t.Fatalf("expected cancelled status, got %v", row.Status)
	}
	if row.CompletedAt == nil {
		t.Fatal("cancelled model should have completed_at set")
	}

	// A second cancel finds the model out of training.
	code, err := c.Post(fmt.Sprintf("/train/%v/cancel", model.ModelId)).Status()
	if err != nil {
		t.Fatal(err)
	}
	if code != 422 {
		t.Fatalf("expected status 422 for repeated cancel, got %d", code)
	}
}

func TestCancelProceedsWhenProviderFails(t *testing.T) {
	env := setupTestEnv(t)

	c, err := env.newUser("abc")
	if err != nil {
		t.Fatal(err)
	}

	model := env.startTraining(t, &c, "my-model", "subject")

	env.trainer.failCancel = true

	if err := c.cancelTraining(model.ModelId.String()); err != nil {
		t.Fatal(err)
	}

	row := env.getModel(t, model.ModelId.String())
	if row.Status != schema.Cancelled {
		t.Fatalf("cancellation should proceed past a provider error, row status is %v", row.Status)
	}
}

func TestCancelWrongOwner(t *testing.T) {
	env := setupTestEnv(t)

	owner, err := env.newUser("owner")
	if err != nil {
		t.Fatal(err)
	}
	other, err := env.newUser("other")
	if err != nil {
		t.Fatal(err)
	}

	model := env.startTraining(t, &owner, "my-model", "subject")

	code, err := other.Post(fmt.Sprintf("/train/%v/cancel", model.ModelId)).Status()
	if err != nil {
		t.Fatal(err)
	}
	if code != 404 {
		t.Fatalf("expected status 404, got %d", code)
	}

	row := env.getModel(t, model.ModelId.String())
	if row.Status != schema.Training {
		t.Fatalf("model should still be training, got %v", row.Status)
	}
}
