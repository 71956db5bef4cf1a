package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"pixeltrain/platform/auth"
	"pixeltrain/platform/schema"
	"pixeltrain/utils"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

func removeApiKeyPrefix(input string) (string, error) {
	expectedPrefix := apiKeyPrefix + "_"
	if strings.HasPrefix(input, expectedPrefix) {
		trimmed := strings.TrimPrefix(input, expectedPrefix)
		return trimmed, nil
	}
	return "", fmt.Errorf("input string must start with the prefix '%s_'", apiKeyPrefix)
}

func generateApiKey() (string, string, error) {
	secret, err := generateRandomString(32)
	if err != nil {
		return "", "", err
	}

	secretHash := hashSecret(secret)

	fullKey := fmt.Sprintf("%s_%s", apiKeyPrefix, secret)
	return fullKey, secretHash, nil
}

func generateRandomString(n int) (string, error) {
	bytes := make([]byte, n)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	str := base64.RawURLEncoding.EncodeToString(bytes)
	if len(str) < n {
		return "", errors.New("insufficient length in generated string")
	}
	return str[:n], nil
}

func hashSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

func validateApiKey(db *gorm.DB, r *http.Request) (uuid.UUID, time.Time, error) {
	fullKey := r.Header.Get("X-API-Key")

	if fullKey == "" {
		return uuid.Nil, time.Time{}, ErrMissingAPIKey
	}

	secret, err := removeApiKeyPrefix(fullKey)
	if err != nil {
		return uuid.Nil, time.Time{}, ErrInvalidAPIKey
	}

	hashedKey := hashSecret(secret)

	var record schema.UserAPIKey
	if err := db.Where("hashkey = ?", hashedKey).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return uuid.Nil, time.Time{}, ErrInvalidAPIKey
		}
		return uuid.Nil, time.Time{}, fmt.Errorf("database error: %w", err)
	}

	var expiry time.Time
	if record.ExpiryTime != nil {
		expiry = *record.ExpiryTime
		if time.Now().After(expiry) {
			return uuid.Nil, time.Time{}, ErrExpiredAPIKey
		}
	}

	now := time.Now()
	result := db.Model(&schema.UserAPIKey{}).Where("id = ?", record.Id).Update("last_used_at", now)
	if result.Error != nil {
		slog.Error("sql error updating api key last used time", "key_id", record.Id, "error", result.Error)
	}

	return record.CreatedBy, expiry, nil
}

// eitherUserOrApiKeyAuthMiddleware accepts either a session token or an
// X-API-Key header, loading the owning user into the request context in both
// cases.
func eitherUserOrApiKeyAuthMiddleware(
	db *gorm.DB,
	userAuthMiddlewares chi.Middlewares,
) func(http.Handler) http.Handler {

	userAuthChain := chi.Chain(userAuthMiddlewares...)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			apiKey := r.Header.Get("X-API-Key")

			if apiKey != "" {
				userID, expiry, err := validateApiKey(db, r)

				if err != nil {
					switch {
					case errors.Is(err, ErrMissingAPIKey):
						http.Error(w, err.Error(), http.StatusBadRequest)
					case errors.Is(err, ErrInvalidAPIKey):
						http.Error(w, err.Error(), http.StatusUnauthorized)
					case errors.Is(err, ErrExpiredAPIKey):
						http.Error(w, err.Error(), http.StatusForbidden)
					default:
						http.Error(w, "Internal Server Error", http.StatusInternalServerError)
					}
					return
				}

				user, err := schema.GetUser(userID, db)
				if err != nil {
					http.Error(w, fmt.Sprintf("unable to get user: %v", err), http.StatusInternalServerError)
					return
				}

				reqCtx := r.Context()
				reqCtx = context.WithValue(reqCtx, auth.UserRequestContextKey, user)
				reqCtx = context.WithValue(reqCtx, auth.ContextAPIKeyExpiry, expiry)

				next.ServeHTTP(w, r.WithContext(reqCtx))
				return
			}

			finalHandler := userAuthChain.Handler(next)

			finalHandler.ServeHTTP(w, r)
		})
	}
}

type APIKeyService struct {
	db       *gorm.DB
	userAuth auth.IdentityProvider
}

func (s *APIKeyService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(s.userAuth.AuthMiddleware()...)

	r.Post("/", s.Create)
	r.Get("/", s.List)
	r.Delete("/{key_id}", s.Delete)

	return r
}

type createApiKeyRequest struct {
	Name       string     `json:"name"`
	ExpiryTime *time.Time `json:"expiry_time,omitempty"`
}

type createApiKeyResponse struct {
	KeyId  uuid.UUID `json:"key_id"`
	ApiKey string    `json:"api_key"`
}

func (s *APIKeyService) Create(w http.ResponseWriter, r *http.Request) {
	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	var params createApiKeyRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if params.Name == "" {
		http.Error(w, "name is required", http.StatusUnprocessableEntity)
		return
	}
	if params.ExpiryTime != nil && params.ExpiryTime.Before(time.Now()) {
		http.Error(w, "expiry_time must be in the future", http.StatusUnprocessableEntity)
		return
	}

	fullKey, secretHash, err := generateApiKey()
	if err != nil {
		slog.Error("error generating api key", "error", err)
		http.Error(w, "error generating api key", http.StatusInternalServerError)
		return
	}

	record := schema.UserAPIKey{
		Id:         uuid.New(),
		Name:       params.Name,
		HashKey:    secretHash,
		Preview:    fullKey[len(fullKey)-4:],
		CreatedAt:  time.Now(),
		ExpiryTime: params.ExpiryTime,
		CreatedBy:  user.Id,
	}

	result := s.db.Create(&record)
	if result.Error != nil {
		slog.Error("sql error creating api key", "error", result.Error)
		http.Error(w, fmt.Sprintf("error creating api key: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	utils.WriteJsonResponse(w, createApiKeyResponse{KeyId: record.Id, ApiKey: fullKey})
}

type apiKeyInfo struct {
	KeyId      uuid.UUID  `json:"key_id"`
	Name       string     `json:"name"`
	Preview    string     `json:"preview"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	ExpiryTime *time.Time `json:"expiry_time,omitempty"`
}

type listApiKeysResponse struct {
	Keys []apiKeyInfo `json:"keys"`
}

func (s *APIKeyService) List(w http.ResponseWriter, r *http.Request) {
	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	var records []schema.UserAPIKey
	result := s.db.Order("created_at desc").Find(&records, "created_by = ?", user.Id)
	if result.Error != nil {
		slog.Error("sql error listing api keys", "user_id", user.Id, "error", result.Error)
		http.Error(w, fmt.Sprintf("error listing api keys: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	keys := make([]apiKeyInfo, 0, len(records))
	for _, record := range records {
		keys = append(keys, apiKeyInfo{
			KeyId:      record.Id,
			Name:       record.Name,
			Preview:    record.Preview,
			CreatedAt:  record.CreatedAt,
			LastUsedAt: record.LastUsedAt,
			ExpiryTime: record.ExpiryTime,
		})
	}

	utils.WriteJsonResponse(w, listApiKeysResponse{Keys: keys})
}

func (s *APIKeyService) Delete(w http.ResponseWriter, r *http.Request) {
	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	keyId, err := utils.URLParamUUID(r, "key_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	result := s.db.Delete(&schema.UserAPIKey{}, "id = ? AND created_by = ?", keyId, user.Id)
	if result.Error != nil {
		slog.Error("sql error deleting api key", "key_id", keyId, "error", result.Error)
		http.Error(w, fmt.Sprintf("error deleting api key: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}
	if result.RowsAffected == 0 {
		http.Error(w, "api key not found", http.StatusNotFound)
		return
	}

	utils.WriteSuccess(w)
}
