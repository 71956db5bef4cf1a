package services

import (
	"log/slog"
	"net/http"

	"pixeltrain/platform/auth"
	"pixeltrain/platform/config"
	"pixeltrain/platform/lifecycle"
	"pixeltrain/utils"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TrainService struct {
	db         *gorm.DB
	controller *lifecycle.Controller
	userAuth   auth.IdentityProvider
	presets    config.Presets
}

func (s *TrainService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(s.userAuth.AuthMiddleware()...)

	r.Post("/", s.Start)

	r.Route("/{model_id}", func(r chi.Router) {
		r.Get("/status", s.Status)
		r.Post("/cancel", s.Cancel)
	})

	return r
}

type startTrainingRequest struct {
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	Type          string    `json:"type"`
	Resolution    int       `json:"resolution"`
	TrainingSteps int       `json:"training_steps"`
	DatasetId     uuid.UUID `json:"dataset_id"`
}

func (s *TrainService) Start(w http.ResponseWriter, r *http.Request) {
	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	var params startTrainingRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if params.Name == "" {
		http.Error(w, "name is required", http.StatusUnprocessableEntity)
		return
	}
	if params.DatasetId == uuid.Nil {
		http.Error(w, "dataset_id is required", http.StatusUnprocessableEntity)
		return
	}

	preset, err := s.presets.Get(params.Type)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	if params.TrainingSteps == 0 {
		params.TrainingSteps = preset.DefaultTrainingSteps
	}
	if err := config.ValidateTrainingSteps(params.TrainingSteps); err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	if params.Resolution == 0 {
		params.Resolution = preset.DefaultResolution
	}
	if err := config.ValidateResolution(params.Resolution); err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	slog.Info("starting training", "user_id", user.Id, "dataset_id", params.DatasetId, "type", params.Type, "steps", params.TrainingSteps)

	model, err := s.controller.StartTraining(user, lifecycle.StartTrainingParams{
		Name:          params.Name,
		Description:   params.Description,
		Type:          params.Type,
		Resolution:    params.Resolution,
		TrainingSteps: params.TrainingSteps,
		EstimatedTime: preset.EstimatedMinutes(params.TrainingSteps),
		DatasetId:     params.DatasetId,
	})
	if err != nil {
		err = lifecycleError(err)
		http.Error(w, err.Error(), GetResponseCode(err))
		return
	}

	utils.WriteJsonResponse(w, modelInfo(model))
}

func (s *TrainService) Status(w http.ResponseWriter, r *http.Request) {
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

	status, err := s.controller.PollStatus(user, modelId)
	if err != nil {
		err = lifecycleError(err)
		http.Error(w, err.Error(), GetResponseCode(err))
		return
	}

	utils.WriteJsonResponse(w, status)
}

func (s *TrainService) Cancel(w http.ResponseWriter, r *http.Request) {
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

	err = s.controller.Cancel(user, modelId)
	if err != nil {
		err = lifecycleError(err)
		http.Error(w, err.Error(), GetResponseCode(err))
		return
	}

	slog.Info("training cancelled", "model_id", modelId, "user_id", user.Id)

	utils.WriteSuccess(w)
}
