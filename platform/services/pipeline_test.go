package services

import (
	"fmt"
	"testing"

	"pixeltrain/platform/storage"

	"github.com/google/uuid"
)

// uploadDataset runs the presign-then-commit flow, marking the archive object
// as uploaded in place of the client's direct PUT.
func (t *testEnv) uploadDataset(tt *testing.T, c *client, name string, imageCount int) string {
	upload, err := c.datasetUploadUrl()
	if err != nil {
		tt.Fatal(err)
	}

	t.store.put(uploadKey(upload.UploadUrl))

	dataset, err := c.commitDataset(upload.DatasetId.String(), name, imageCount)
	if err != nil {
		tt.Fatal(err)
	}

	return dataset.DatasetId.String()
}

// startTraining creates a dataset and launches a training run for it.
func (t *testEnv) startTraining(tt *testing.T, c *client, name, modelType string) modelInfoResponse {
	datasetId := t.uploadDataset(tt, c, name+"-dataset", 12)

	model, err := c.startTraining(map[string]interface{}{
		"name": name, "type": modelType, "dataset_id": datasetId,
	})
	if err != nil {
		tt.Fatal(err)
	}

	return model
}

func (t *testEnv) webhook(path string, body interface{}, secret string) (int, error) {
	r := newHttpTestRequest(t.api, "POST", path).Json(body)
	if secret != "" {
		r = r.Header("Authorization", secret)
	}
	return r.Status()
}

func (t *testEnv) artifactUri(c *client, modelId string) string {
	key := storage.ModelArtifactKey(uuid.MustParse(c.userId), uuid.MustParse(modelId))
	return storage.BucketURI(testBucket, key)
}

// finishTraining delivers the training-finished webhook for a model, placing
// the artifact object in storage first. Returns the artifact uri reported to
// the platform.
func (t *testEnv) finishTraining(tt *testing.T, c *client, modelId string) string {
	key := storage.ModelArtifactKey(uuid.MustParse(c.userId), uuid.MustParse(modelId))
	t.store.put(key)

	uri := storage.BucketURI(testBucket, key)

	code, err := t.webhook(
		fmt.Sprintf("/webhooks/models/%v/training-finished", modelId),
		map[string]string{"model_path": uri},
		webhookSecret,
	)
	if err != nil {
		tt.Fatal(err)
	}
	if code != 200 {
		tt.Fatalf("training-finished webhook returned status %d", code)
	}

	return uri
}

func (t *testEnv) finishDeployment(tt *testing.T, modelId, endpointUrl string) {
	code, err := t.webhook(
		fmt.Sprintf("/webhooks/models/%v/deployment-finished", modelId),
		map[string]string{"endpoint_url": endpointUrl},
		webhookSecret,
	)
	if err != nil {
		tt.Fatal(err)
	}
	if code != 200 {
		tt.Fatalf("deployment-finished webhook returned status %d", code)
	}
}

// deployModel walks a freshly started model through both webhooks so tests
// can begin from a completed model.
func (t *testEnv) deployModel(tt *testing.T, c *client, modelId, endpointUrl string) {
	t.finishTraining(tt, c, modelId)
	t.finishDeployment(tt, modelId, endpointUrl)
}
