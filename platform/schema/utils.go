package schema

import (
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrModelNotFound   = errors.New("model not found")
	ErrDatasetNotFound = errors.New("dataset not found")
	ErrPaymentNotFound = errors.New("payment not found")
	ErrDbAccessFailed  = errors.New("db access failed")
)

func GetUser(userId uuid.UUID, db *gorm.DB) (User, error) {
	var user User

	result := db.First(&user, "id = ?", userId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return user, ErrUserNotFound
		}
		slog.Error("sql error in get user", "user_id", userId, "error", result.Error)
		return user, ErrDbAccessFailed
	}

	return user, nil
}

func GetModel(modelId uuid.UUID, db *gorm.DB) (Model, error) {
	var model Model

	result := db.First(&model, "id = ?", modelId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return model, ErrModelNotFound
		}
		slog.Error("sql error in get model", "model_id", modelId, "error", result.Error)
		return model, ErrDbAccessFailed
	}

	return model, nil
}

// GetModelForUser scopes the lookup to the requesting user. A model owned by
// another user yields ErrModelNotFound, identical to a missing model, so that
// callers cannot distinguish "not found" from "not yours".
func GetModelForUser(modelId, userId uuid.UUID, db *gorm.DB) (Model, error) {
	var model Model

	result := db.First(&model, "id = ? and user_id = ?", modelId, userId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return model, ErrModelNotFound
		}
		slog.Error("sql error in get model for user", "model_id", modelId, "user_id", userId, "error", result.Error)
		return model, ErrDbAccessFailed
	}

	return model, nil
}

func GetDatasetForUser(datasetId, userId uuid.UUID, db *gorm.DB) (Dataset, error) {
	var dataset Dataset

	result := db.First(&dataset, "id = ? and user_id = ?", datasetId, userId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return dataset, ErrDatasetNotFound
		}
		slog.Error("sql error in get dataset for user", "dataset_id", datasetId, "user_id", userId, "error", result.Error)
		return dataset, ErrDbAccessFailed
	}

	return dataset, nil
}
