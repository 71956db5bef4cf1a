package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"pixeltrain/platform/auth"
	"pixeltrain/platform/config"
	"pixeltrain/platform/metrics"
	"pixeltrain/platform/schema"
	"pixeltrain/utils"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"
)

// GenerateService proxies generation requests to a completed model's
// inference endpoint. It is the only surface reachable with an API key, so
// programmatic clients never hold a session token.
type GenerateService struct {
	db       *gorm.DB
	userAuth auth.IdentityProvider
	presets  config.Presets
}

func (s *GenerateService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(eitherUserOrApiKeyAuthMiddleware(s.db, s.userAuth.AuthMiddleware()))

	r.Post("/{model_id}", s.Generate)

	return r
}

func (s *GenerateService) Generate(w http.ResponseWriter, r *http.Request) {
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

	if model.Status != schema.Completed || model.EndpointUri == "" {
		http.Error(w, "model is not deployed for generation", http.StatusUnprocessableEntity)
		return
	}

	var params config.GenerationParams
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	preset, err := s.presets.Get(model.Type)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	params.ApplyDefaults(preset)
	if err := params.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	body, err := json.Marshal(params)
	if err != nil {
		http.Error(w, fmt.Sprintf("error serializing generation request: %v", err), http.StatusInternalServerError)
		return
	}

	res, err := http.Post(model.EndpointUri, "application/json", bytes.NewReader(body))
	if err != nil {
		slog.Error("error calling inference endpoint", "model_id", modelId, "error", err)
		http.Error(w, "error reaching inference endpoint", http.StatusBadGateway)
		return
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		data, readErr := io.ReadAll(res.Body)
		if readErr == nil {
			slog.Error("inference endpoint returned error", "model_id", modelId, "code", res.StatusCode, "response", string(data))
		}
		http.Error(w, fmt.Sprintf("inference endpoint returned status %d", res.StatusCode), http.StatusBadGateway)
		return
	}

	metrics.RecordGeneration(params.Count)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, res.Body); err != nil {
		slog.Error("error streaming generation response", "model_id", modelId, "error", err)
	}
}
