package services

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"pixeltrain/platform/auth"
	"pixeltrain/platform/lifecycle"
	"pixeltrain/platform/metrics"
	"pixeltrain/platform/schema"
	"pixeltrain/utils"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// WebhookService receives the provider's lifecycle callbacks. Every route is
// behind the shared-secret check, so no payload is even parsed for an
// unauthenticated request.
type WebhookService struct {
	controller *lifecycle.Controller
	variables  Variables
}

func (s *WebhookService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(auth.WebhookAuth(s.variables.WebhookSecret, metrics.RecordWebhookRejection))

		r.Post("/models/{model_id}/training-finished", s.TrainingFinished)
		r.Post("/models/{model_id}/deployment-finished", s.DeploymentFinished)
	})

	return r
}

type webhookResponse struct {
	Success bool      `json:"success"`
	Message string    `json:"message"`
	ModelId uuid.UUID `json:"model_id"`
	Status  string    `json:"status"`
}

func webhookError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, schema.ErrModelNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, lifecycle.ErrStateConflict):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

type trainingFinishedRequest struct {
	ModelPath string `json:"model_path"`
}

func (s *WebhookService) TrainingFinished(w http.ResponseWriter, r *http.Request) {
	modelId, err := utils.URLParamUUID(r, "model_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var params trainingFinishedRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if params.ModelPath == "" {
		http.Error(w, "model_path is required", http.StatusBadRequest)
		return
	}

	slog.Info("received training-finished webhook", "model_id", modelId, "model_path", params.ModelPath)

	err = s.controller.TrainingFinished(modelId, params.ModelPath)
	if err != nil {
		webhookError(w, err)
		return
	}

	utils.WriteJsonResponse(w, webhookResponse{
		Success: true,
		Message: fmt.Sprintf("model %v moved to deploying", modelId),
		ModelId: modelId,
		Status:  schema.Deploying,
	})
}

type deploymentFinishedRequest struct {
	EndpointUrl string `json:"endpoint_url"`
}

func (s *WebhookService) DeploymentFinished(w http.ResponseWriter, r *http.Request) {
	modelId, err := utils.URLParamUUID(r, "model_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var params deploymentFinishedRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if params.EndpointUrl == "" {
		http.Error(w, "endpoint_url is required", http.StatusBadRequest)
		return
	}

	slog.Info("received deployment-finished webhook", "model_id", modelId, "endpoint_url", params.EndpointUrl)

	err = s.controller.DeploymentFinished(modelId, params.EndpointUrl)
	if err != nil {
		webhookError(w, err)
		return
	}

	utils.WriteJsonResponse(w, webhookResponse{
		Success: true,
		Message: fmt.Sprintf("model %v completed", modelId),
		ModelId: modelId,
		Status:  schema.Completed,
	})
}
