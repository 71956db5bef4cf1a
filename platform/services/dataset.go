package services

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"pixeltrain/platform/auth"
	"pixeltrain/platform/schema"
	"pixeltrain/platform/storage"
	"pixeltrain/utils"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const uploadUrlExpiry = 30 * time.Minute

// DatasetService manages packaged image datasets. Archives never pass
// through the platform: the client uploads the zip directly to a presigned
// URL, then commits the dataset record once the upload is done.
type DatasetService struct {
	db        *gorm.DB
	store     storage.ObjectStore
	userAuth  auth.IdentityProvider
	variables Variables
}

func (s *DatasetService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(s.userAuth.AuthMiddleware()...)

	r.Post("/upload-url", s.UploadUrl)
	r.Post("/", s.Commit)
	r.Get("/", s.List)
	r.Get("/{dataset_id}", s.Info)

	return r
}

type uploadUrlResponse struct {
	DatasetId uuid.UUID `json:"dataset_id"`
	UploadUrl string    `json:"upload_url"`
}

// UploadUrl reserves a dataset id and presigns the PUT for its archive. No
// row is created until the client commits; an abandoned upload leaves only
// an unreferenced object.
func (s *DatasetService) UploadUrl(w http.ResponseWriter, r *http.Request) {
	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	datasetId := uuid.New()
	key := storage.DatasetKey(user.Id, datasetId)

	url, err := s.store.PresignUpload(r.Context(), key, "application/zip", uploadUrlExpiry)
	if err != nil {
		slog.Error("error presigning dataset upload", "dataset_id", datasetId, "error", err)
		http.Error(w, "error creating upload url", http.StatusInternalServerError)
		return
	}

	utils.WriteJsonResponse(w, uploadUrlResponse{DatasetId: datasetId, UploadUrl: url})
}

type commitDatasetRequest struct {
	DatasetId  uuid.UUID `json:"dataset_id"`
	Name       string    `json:"name"`
	ImageCount int       `json:"image_count"`
}

type datasetInfoResponse struct {
	DatasetId  uuid.UUID `json:"dataset_id"`
	Name       string    `json:"name"`
	ImageCount int       `json:"image_count"`
	CreatedAt  time.Time `json:"created_at"`
}

// Commit records an uploaded dataset. The archive must already exist in
// storage under the reserved key.
func (s *DatasetService) Commit(w http.ResponseWriter, r *http.Request) {
	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	var params commitDatasetRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if params.DatasetId == uuid.Nil || params.Name == "" {
		http.Error(w, "dataset_id and name are required", http.StatusUnprocessableEntity)
		return
	}
	if params.ImageCount <= 0 {
		http.Error(w, "image_count must be positive", http.StatusUnprocessableEntity)
		return
	}

	key := storage.DatasetKey(user.Id, params.DatasetId)

	exists, err := s.store.Exists(r.Context(), key)
	if err != nil {
		slog.Error("error checking dataset archive", "dataset_id", params.DatasetId, "error", err)
		http.Error(w, "error checking dataset archive", http.StatusInternalServerError)
		return
	}
	if !exists {
		http.Error(w, "dataset archive has not been uploaded", http.StatusUnprocessableEntity)
		return
	}

	dataset := schema.Dataset{
		Id:         params.DatasetId,
		Name:       params.Name,
		ArchiveUri: storage.BucketURI(s.variables.Bucket, key),
		ImageCount: params.ImageCount,
		CreatedAt:  time.Now(),
		UserId:     user.Id,
	}

	result := s.db.Create(&dataset)
	if result.Error != nil {
		slog.Error("sql error creating dataset", "dataset_id", dataset.Id, "error", result.Error)
		http.Error(w, fmt.Sprintf("error creating dataset: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	slog.Info("dataset committed", "dataset_id", dataset.Id, "user_id", user.Id, "images", dataset.ImageCount)

	utils.WriteJsonResponse(w, datasetInfo(dataset))
}

func datasetInfo(dataset schema.Dataset) datasetInfoResponse {
	return datasetInfoResponse{
		DatasetId:  dataset.Id,
		Name:       dataset.Name,
		ImageCount: dataset.ImageCount,
		CreatedAt:  dataset.CreatedAt,
	}
}

type listDatasetsResponse struct {
	Datasets []datasetInfoResponse `json:"datasets"`
}

func (s *DatasetService) List(w http.ResponseWriter, r *http.Request) {
	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	var datasets []schema.Dataset
	result := s.db.Order("created_at desc").Find(&datasets, "user_id = ?", user.Id)
	if result.Error != nil {
		slog.Error("sql error listing datasets", "user_id", user.Id, "error", result.Error)
		http.Error(w, fmt.Sprintf("error listing datasets: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	infos := make([]datasetInfoResponse, 0, len(datasets))
	for _, dataset := range datasets {
		infos = append(infos, datasetInfo(dataset))
	}

	utils.WriteJsonResponse(w, listDatasetsResponse{Datasets: infos})
}

func (s *DatasetService) Info(w http.ResponseWriter, r *http.Request) {
	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	datasetId, err := utils.URLParamUUID(r, "dataset_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	dataset, err := schema.GetDatasetForUser(datasetId, user.Id, s.db)
	if err != nil {
		if errors.Is(err, schema.ErrDatasetNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, fmt.Sprintf("error getting dataset: %v", err), http.StatusInternalServerError)
		return
	}

	utils.WriteJsonResponse(w, datasetInfo(dataset))
}
