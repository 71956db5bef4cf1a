package lifecycle

import (
	"context"
	"log/slog"

	"pixeltrain/platform/metrics"
	"pixeltrain/platform/schema"
	"pixeltrain/platform/storage"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type cleanupStep struct {
	name string
	run  func() error
}

// runCleanup executes compensating actions in order, logging a typed outcome
// for each. A failed step never stops the remaining steps; deletion of the
// local records must always proceed.
func runCleanup(modelId uuid.UUID, steps []cleanupStep) {
	for _, step := range steps {
		if err := step.run(); err != nil {
			slog.Error("cleanup step failed, continuing", "model_id", modelId, "step", step.name, "error", err)
		} else {
			slog.Info("cleanup step succeeded", "model_id", modelId, "step", step.name)
		}
	}
}

// Delete removes a model and its dataset. External resources (the provider
// job, the artifact and archive objects) are released best-effort before the
// rows are deleted; their failures are logged, never surfaced.
func (c *Controller) Delete(ctx context.Context, user schema.User, modelId uuid.UUID) error {
	model, err := schema.GetModelForUser(modelId, user.Id, c.db)
	if err != nil {
		return err
	}

	dataset, err := schema.GetDatasetForUser(model.DatasetId, user.Id, c.db)
	if err != nil && err != schema.ErrDatasetNotFound {
		return err
	}
	hasDataset := err == nil

	var steps []cleanupStep

	if model.Status == schema.Training && model.TrainingRunId != "" {
		steps = append(steps, cleanupStep{
			name: "cancel training job",
			run: func() error {
				return c.trainer.CancelJob(model.TrainingRunId)
			},
		})
	}

	if model.ArtifactUri != "" {
		steps = append(steps, cleanupStep{
			name: "delete model artifact",
			run: func() error {
				key, err := storage.ObjectKey(model.ArtifactUri)
				if err != nil {
					return err
				}
				return c.store.Delete(ctx, key)
			},
		})
	}

	steps = append(steps, cleanupStep{
		name: "delete training log",
		run: func() error {
			return c.store.Delete(ctx, storage.TrainingLogKey(user.Id, model.Id))
		},
	})

	if hasDataset {
		steps = append(steps, cleanupStep{
			name: "delete dataset archive",
			run: func() error {
				key, err := storage.ObjectKey(dataset.ArchiveUri)
				if err != nil {
					return err
				}
				return c.store.Delete(ctx, key)
			},
		})
	}

	runCleanup(modelId, steps)

	err = c.db.Transaction(func(txn *gorm.DB) error {
		result := txn.Delete(&schema.Model{}, "id = ?", model.Id)
		if result.Error != nil {
			slog.Error("sql error deleting model", "model_id", model.Id, "error", result.Error)
			return schema.ErrDbAccessFailed
		}

		if hasDataset {
			result := txn.Delete(&schema.Dataset{}, "id = ?", dataset.Id)
			if result.Error != nil {
				slog.Error("sql error deleting dataset", "dataset_id", dataset.Id, "error", result.Error)
				return schema.ErrDbAccessFailed
			}
		}

		return nil
	})
	if err != nil {
		return err
	}

	metrics.RecordTransition(model.Status, "deleted")

	return nil
}
