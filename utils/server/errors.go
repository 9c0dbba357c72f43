package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/kris-hansen/analyst/utils/executor"
	"github.com/kris-hansen/analyst/utils/fileutil"
	"github.com/kris-hansen/analyst/utils/input"
	"github.com/kris-hansen/analyst/utils/models"
	"github.com/kris-hansen/analyst/utils/prompts"
	"github.com/kris-hansen/analyst/utils/storage"
	"github.com/kris-hansen/analyst/utils/workflow"
)

// statusFor maps an operation error to an HTTP status
func statusFor(err error) int {
	var missing *prompts.MissingKeyError
	var providerErr *models.ProviderError
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, fileutil.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, workflow.ErrInvalidInput),
		errors.Is(err, input.ErrUnsupportedType),
		errors.Is(err, executor.ErrEmptyCode),
		errors.Is(err, models.ErrNoProvider),
		errors.Is(err, models.ErrNotConfigured):
		return http.StatusBadRequest
	case errors.Is(err, workflow.ErrPrerequisite),
		errors.Is(err, workflow.ErrNotInitialized),
		errors.Is(err, executor.ErrSandboxDisabled):
		return http.StatusConflict
	case errors.As(err, &missing):
		return http.StatusUnprocessableEntity
	case errors.As(err, &providerErr), errors.Is(err, models.ErrEmptyResponse):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= 500 {
		log.Error().Err(err).Int("status", status).Msg("request failed")
	}
	writeJSON(w, status, ErrorResponse{Success: false, Error: err.Error()})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, ErrorResponse{Success: false, Error: msg})
}
