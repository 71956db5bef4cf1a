package storage

import (
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"
)

const uriScheme = "r2://"

// BucketURI builds the canonical URI stored on model and dataset rows, e.g.
// r2://my-bucket/user/models/model-123.safetensors.
func BucketURI(bucket, key string) string {
	return uriScheme + bucket + "/" + key
}

// ObjectKey extracts the storage key from a bucket URI by stripping the
// scheme and the leading bucket segment. It is the inverse of BucketURI, so
// a stored artifact URI round-trips to the key used for presigning and
// deletion.
func ObjectKey(uri string) (string, error) {
	rest, ok := strings.CutPrefix(uri, uriScheme)
	if !ok {
		return "", fmt.Errorf("uri '%v' does not have scheme %v", uri, uriScheme)
	}

	bucket, key, found := strings.Cut(rest, "/")
	if !found || bucket == "" || key == "" {
		return "", fmt.Errorf("uri '%v' is missing a bucket or object key", uri)
	}

	if err := ValidateKey(key); err != nil {
		return "", err
	}

	return key, nil
}

func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("object key cannot be empty")
	}
	if strings.HasPrefix(key, "/") {
		return fmt.Errorf("object key '%v' cannot be absolute", key)
	}
	for _, part := range strings.Split(key, "/") {
		if part == ".." {
			return fmt.Errorf("object key '%v' cannot contain '..'", key)
		}
	}
	return nil
}

func DatasetKey(userId, datasetId uuid.UUID) string {
	return path.Join(userId.String(), "datasets", datasetId.String()+".zip")
}

func ModelArtifactKey(userId, modelId uuid.UUID) string {
	return path.Join(userId.String(), "models", fmt.Sprintf("model-%v.safetensors", modelId))
}

func TrainingLogKey(userId, modelId uuid.UUID) string {
	return path.Join(userId.String(), "logs", fmt.Sprintf("training-%v.log", modelId))
}
