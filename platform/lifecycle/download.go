package lifecycle

import (
	"context"
	"fmt"
	"time"

	"pixeltrain/platform/schema"
	"pixeltrain/platform/storage"

	"github.com/google/uuid"
)

const downloadUrlExpiry = 15 * time.Minute

// DownloadUrl resolves a model's stored artifact reference into a
// time-limited retrieval URL. Ownership, artifact presence, and object
// existence are all verified first; each failure mode is a typed error.
func (c *Controller) DownloadUrl(ctx context.Context, user schema.User, modelId uuid.UUID) (string, error) {
	model, err := schema.GetModelForUser(modelId, user.Id, c.db)
	if err != nil {
		return "", err
	}

	if model.ArtifactUri == "" {
		return "", ErrArtifactNotReady
	}

	key, err := storage.ObjectKey(model.ArtifactUri)
	if err != nil {
		return "", fmt.Errorf("invalid stored artifact location: %w", err)
	}

	exists, err := c.store.Exists(ctx, key)
	if err != nil {
		return "", fmt.Errorf("error checking artifact existence: %w", err)
	}
	if !exists {
		return "", ErrArtifactMissing
	}

	return c.store.PresignDownload(ctx, key, downloadUrlExpiry)
}

// TrainingLogUrl presigns the training log written by the provider job.
func (c *Controller) TrainingLogUrl(ctx context.Context, user schema.User, modelId uuid.UUID) (string, error) {
	model, err := schema.GetModelForUser(modelId, user.Id, c.db)
	if err != nil {
		return "", err
	}

	key := storage.TrainingLogKey(user.Id, model.Id)

	exists, err := c.store.Exists(ctx, key)
	if err != nil {
		return "", fmt.Errorf("error checking training log existence: %w", err)
	}
	if !exists {
		return "", ErrArtifactMissing
	}

	return c.store.PresignDownload(ctx, key, downloadUrlExpiry)
}
