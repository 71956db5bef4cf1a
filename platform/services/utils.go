package services

import (
	"errors"
	"log/slog"
	"net/http"

	"pixeltrain/platform/lifecycle"
	"pixeltrain/platform/schema"
)

const apiKeyPrefix = "ak"

var (
	ErrMissingAPIKey = errors.New("API key is missing")
	ErrInvalidAPIKey = errors.New("API key is invalid")
	ErrExpiredAPIKey = errors.New("API key has expired")
)

type codedError struct {
	err  error
	code int
}

func (e *codedError) Error() string {
	return e.err.Error()
}

func (e *codedError) Unwrap() error {
	return e.err
}

func CodedError(err error, code int) error {
	return &codedError{err: err, code: code}
}

func GetResponseCode(err error) int {
	var cerr *codedError
	if errors.As(err, &cerr) {
		return cerr.code
	}
	slog.Error("non coded error passed to GetResponseCode", "error", err)
	return http.StatusInternalServerError
}

// lifecycleError attaches response codes to the controller's typed errors.
// Owner-scoped lookups already conflate "not found" with "not yours", so a
// 404 here never leaks existence.
func lifecycleError(err error) error {
	switch {
	case errors.Is(err, schema.ErrModelNotFound),
		errors.Is(err, schema.ErrDatasetNotFound),
		errors.Is(err, lifecycle.ErrArtifactMissing):
		return CodedError(err, http.StatusNotFound)
	case errors.Is(err, lifecycle.ErrNoActiveTraining),
		errors.Is(err, lifecycle.ErrNotTraining),
		errors.Is(err, lifecycle.ErrArtifactNotReady):
		return CodedError(err, http.StatusUnprocessableEntity)
	case errors.Is(err, lifecycle.ErrStateConflict):
		return CodedError(err, http.StatusConflict)
	case errors.Is(err, schema.ErrDbAccessFailed):
		return CodedError(err, http.StatusInternalServerError)
	default:
		return CodedError(err, http.StatusBadGateway)
	}
}

type Variables struct {
	Bucket string

	WebhookSecret string

	StripeSecretKey     string
	StripeWebhookSecret string
	CheckoutSuccessUrl  string
	CheckoutCancelUrl   string
}
