package lifecycle

import (
	"fmt"
	"log/slog"

	"pixeltrain/platform/schema"
	"pixeltrain/platform/storage"

	"github.com/google/uuid"
)

// TrainingFinished handles the provider's training-completion callback. The
// artifact location is written exactly once, by this transition; a replayed
// or late webhook finds the model past training and is rejected as a
// conflict. On success the deploy pipeline is dispatched; a dispatch failure
// is logged but not surfaced, since the artifact is already durably stored.
func (c *Controller) TrainingFinished(modelId uuid.UUID, artifactUri string) error {
	if _, err := storage.ObjectKey(artifactUri); err != nil {
		return fmt.Errorf("invalid artifact location: %w", err)
	}

	model, err := schema.GetModel(modelId, c.db)
	if err != nil {
		return err
	}

	ok, err := c.transition(modelId, schema.Training, schema.Deploying, map[string]interface{}{"artifact_uri": artifactUri})
	if err != nil {
		return err
	}
	if !ok {
		slog.Warn("training-finished webhook for model not in training", "model_id", modelId, "status", model.Status)
		return ErrStateConflict
	}

	if err := c.deployer.Dispatch(artifactUri, c.deploymentFinishedCallback(modelId)); err != nil {
		slog.Error("error dispatching deployment, artifact is stored and deployment can be retried", "model_id", modelId, "error", err)
	}

	return nil
}

// DeploymentFinished handles the deploy pipeline's completion callback,
// recording the inference endpoint and finishing the pipeline.
func (c *Controller) DeploymentFinished(modelId uuid.UUID, endpointUri string) error {
	model, err := schema.GetModel(modelId, c.db)
	if err != nil {
		return err
	}

	ok, err := c.transition(modelId, schema.Deploying, schema.Completed, map[string]interface{}{"endpoint_uri": endpointUri})
	if err != nil {
		return err
	}
	if !ok {
		slog.Warn("deployment-finished webhook for model not in deploying", "model_id", modelId, "status", model.Status)
		return ErrStateConflict
	}

	return nil
}
