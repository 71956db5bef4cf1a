package services

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"pixeltrain/platform/auth"
	"pixeltrain/platform/lifecycle"
	"pixeltrain/platform/schema"
	"pixeltrain/utils"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"gorm.io/gorm"
)

type ModelService struct {
	db         *gorm.DB
	controller *lifecycle.Controller
	userAuth   auth.IdentityProvider
}

func (s *ModelService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(s.userAuth.AuthMiddleware()...)

	r.Get("/", s.List)

	r.Route("/{model_id}", func(r chi.Router) {
		r.Get("/", s.Info)
		r.Delete("/", s.Delete)
		r.Get("/download", s.Download)
		r.Get("/logs", s.Logs)
	})

	return r
}

type modelInfoResponse struct {
	ModelId       uuid.UUID  `json:"model_id"`
	Name          string     `json:"name"`
	Description   string     `json:"description"`
	Type          string     `json:"type"`
	Resolution    int        `json:"resolution"`
	TrainingSteps int        `json:"training_steps"`
	EstimatedTime int        `json:"estimated_time_minutes"`
	Status        string     `json:"status"`
	Thumbnail     string     `json:"thumbnail,omitempty"`
	DatasetId     uuid.UUID  `json:"dataset_id"`
	CreatedAt     time.Time  `json:"created_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

func modelInfo(model schema.Model) modelInfoResponse {
	return modelInfoResponse{
		ModelId:       model.Id,
		Name:          model.Name,
		Description:   model.Description,
		Type:          model.Type,
		Resolution:    model.Resolution,
		TrainingSteps: model.TrainingSteps,
		EstimatedTime: model.EstimatedTime,
		Status:        model.Status,
		Thumbnail:     model.Thumbnail,
		DatasetId:     model.DatasetId,
		CreatedAt:     model.CreatedAt,
		CompletedAt:   model.CompletedAt,
	}
}

type listModelsResponse struct {
	Models []modelInfoResponse `json:"models"`
}

func (s *ModelService) List(w http.ResponseWriter, r *http.Request) {
	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	var models []schema.Model
	result := s.db.Order("created_at desc").Find(&models, "user_id = ?", user.Id)
	if result.Error != nil {
		slog.Error("sql error listing models", "user_id", user.Id, "error", result.Error)
		http.Error(w, fmt.Sprintf("error listing models: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	utils.WriteJsonResponse(w, listModelsResponse{Models: lo.Map(models, func(model schema.Model, _ int) modelInfoResponse {
		return modelInfo(model)
	})})
}

func (s *ModelService) Info(w http.ResponseWriter, r *http.Request) {
	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	modelId, err := utils.URLParamUUID(r, "model_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	model, err := schema.GetModelForUser(modelId, user.Id, s.db)
	if err != nil {
		err = lifecycleError(err)
		http.Error(w, err.Error(), GetResponseCode(err))
		return
	}

	utils.WriteJsonResponse(w, modelInfo(model))
}

func (s *ModelService) Delete(w http.ResponseWriter, r *http.Request) {
	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	modelId, err := utils.URLParamUUID(r, "model_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	err = s.controller.Delete(r.Context(), user, modelId)
	if err != nil {
		err = lifecycleError(err)
		http.Error(w, fmt.Sprintf("error deleting model: %v", err), GetResponseCode(err))
		return
	}

	slog.Info("model deleted", "model_id", modelId, "user_id", user.Id)

	utils.WriteSuccess(w)
}

type downloadResponse struct {
	DownloadUrl string `json:"download_url"`
}

func (s *ModelService) Download(w http.ResponseWriter, r *http.Request) {
	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	modelId, err := utils.URLParamUUID(r, "model_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	url, err := s.controller.DownloadUrl(r.Context(), user, modelId)
	if err != nil {
		err = lifecycleError(err)
		http.Error(w, fmt.Sprintf("error resolving download: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteJsonResponse(w, downloadResponse{DownloadUrl: url})
}

func (s *ModelService) Logs(w http.ResponseWriter, r *http.Request) {
	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	modelId, err := utils.URLParamUUID(r, "model_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	url, err := s.controller.TrainingLogUrl(r.Context(), user, modelId)
	if err != nil {
		err = lifecycleError(err)
		http.Error(w, fmt.Sprintf("error resolving training log: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteJsonResponse(w, downloadResponse{DownloadUrl: url})
}
