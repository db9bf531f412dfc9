package server

import (
	"errors"
	"net/http"

	"github.com/fmueller/moji/internal/pipeline"
	"github.com/gin-gonic/gin"
)

type errorKind string

const (
	kindBadRequest  errorKind = "bad_request"
	kindValidation  errorKind = "validation"
	kindTooLarge    errorKind = "payload_too_large"
	kindUnprocessed errorKind = "unprocessable_audio"
	kindUnavailable errorKind = "service_unavailable"
	kindInternal    errorKind = "internal"
)

// apiError is the JSON body of every non-2xx response.
type apiError struct {
	Kind      errorKind `json:"kind"`
	Message   string    `json:"message"`
	Stage     string    `json:"stage,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
}

func (e *apiError) status() int {
	switch e.Kind {
	case kindBadRequest:
		return http.StatusBadRequest
	case kindValidation:
		return http.StatusUnprocessableEntity
	case kindTooLarge:
		return http.StatusRequestEntityTooLarge
	case kindUnprocessed:
		return http.StatusUnprocessableEntity
	case kindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// fromPipelineError maps a transcription failure to a client-facing error.
// Only conversion failures are blamed on the upload.
func fromPipelineError(err error) *apiError {
	var pipelineErr *pipeline.Error
	stage := ""
	if errors.As(err, &pipelineErr) {
		stage = string(pipelineErr.Stage)
	}

	switch {
	case errors.Is(err, pipeline.ErrConversion):
		return &apiError{Kind: kindUnprocessed, Message: "the uploaded file could not be decoded as audio", Stage: stage}
	case errors.Is(err, pipeline.ErrModelLoad):
		return &apiError{Kind: kindUnavailable, Message: "the speech recognition model is unavailable", Stage: stage}
	case errors.Is(err, pipeline.ErrInference):
		return &apiError{Kind: kindInternal, Message: "speech recognition failed", Stage: stage}
	default:
		return &apiError{Kind: kindInternal, Message: "internal server error", Stage: stage}
	}
}

func abortWithError(c *gin.Context, apiErr *apiError) {
	apiErr.RequestID = requestIDFrom(c)
	c.AbortWithStatusJSON(apiErr.status(), apiErr)
}
