package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/cloo-solutions/studyrag/internal/domain"
	"github.com/rs/zerolog/log"
)

// SuccessResponse wraps successful API responses
type SuccessResponse struct {
	Data interface{} `json:"data"`
}

// ErrorResponse represents an error API response
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// JSON writes a JSON response with the given status code
func JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			log.Warn().Err(err).Msg("failed to encode response")
		}
	}
}

// Success writes a successful JSON response
func Success(w http.ResponseWriter, status int, data interface{}) {
	JSON(w, status, SuccessResponse{Data: data})
}

// Error writes an error JSON response
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, ErrorResponse{Error: message})
}

// DomainErrorToHTTP maps domain errors, wrapped or not, to HTTP status codes
func DomainErrorToHTTP(err error) int {
	if err == nil {
		return http.StatusOK
	}

	var domainErr *domain.DomainError
	if !errors.As(err, &domainErr) {
		return http.StatusInternalServerError
	}

	switch domainErr.Code {
	case domain.ErrCodeValidation, domain.ErrCodeInvalidOperation:
		return http.StatusBadRequest
	case domain.ErrCodeNotFound, domain.ErrCodeNoEvidence:
		return http.StatusNotFound
	case domain.ErrCodeAlreadyExists, domain.ErrCodeStale:
		return http.StatusConflict
	case domain.ErrCodeExtractionEmpty:
		return http.StatusUnprocessableEntity
	case domain.ErrCodeUngrounded, domain.ErrCodeUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// HandleError writes an appropriate error response based on the error type.
// Server side failures are logged and answered with a generic message.
func HandleError(w http.ResponseWriter, err error) {
	status := DomainErrorToHTTP(err)

	var domainErr *domain.DomainError
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Int("status", status).Msg("request failed")
	}
	if errors.As(err, &domainErr) && domainErr.Code != domain.ErrCodeInternalError {
		JSON(w, status, ErrorResponse{Error: domainErr.Message, Code: domainErr.Code})
		return
	}
	JSON(w, status, ErrorResponse{Error: "internal server error", Code: domain.ErrCodeInternalError})
}
