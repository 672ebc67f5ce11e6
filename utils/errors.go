package utils

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Pipeline error taxonomy. Stage errors wrap one of these with %w.
var (
	ErrUnsupportedFileType      = errors.New("unsupported file type")
	ErrExtractionFailed         = errors.New("extraction failed")
	ErrDocumentNotFound         = errors.New("document not found")
	ErrIndexBuildFailed         = errors.New("index build failed")
	ErrGenerationParseFailed    = errors.New("could not understand AI response")
	ErrGenerationUpstreamFailed = errors.New("generation upstream failed")
	ErrJobFailed                = errors.New("job failed")
	ErrJobNotFound              = errors.New("job not found")
	ErrInvalidScope             = errors.New("invalid scope")
	ErrInvalidRequest           = errors.New("invalid request")
)

// IsPermanent reports whether retrying the same input can never succeed.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrUnsupportedFileType) || errors.Is(err, ErrExtractionFailed)
}

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	ErrorCode string      `json:"error_code"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
}

// RespondWithError sends a standardized error response
func RespondWithError(c *gin.Context, statusCode int, errorCode, message string, details interface{}) {
	c.JSON(statusCode, ErrorResponse{
		ErrorCode: errorCode,
		Message:   message,
		Details:   details,
	})
}

// RespondWithBadRequest sends a 400 Bad Request error
func RespondWithBadRequest(c *gin.Context, message string, details interface{}) {
	RespondWithError(c, http.StatusBadRequest, "bad_request", message, details)
}

// RespondWithInternalError sends a 500 Internal Server Error
func RespondWithInternalError(c *gin.Context, message string, details interface{}) {
	RespondWithError(c, http.StatusInternalServerError, "internal_error", message, details)
}

// RespondWithPipelineError maps a taxonomy error onto a status code.
func RespondWithPipelineError(c *gin.Context, err error) {
	status, code := StatusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	RespondWithError(c, status, code, msg, nil)
}

// StatusFor returns the HTTP status and error code for err.
func StatusFor(err error) (int, string) {
	switch {
	case errors.Is(err, ErrDocumentNotFound), errors.Is(err, ErrJobNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, ErrUnsupportedFileType):
		return http.StatusUnsupportedMediaType, "unsupported_file_type"
	case errors.Is(err, ErrInvalidScope):
		return http.StatusBadRequest, "invalid_scope"
	case errors.Is(err, ErrInvalidRequest):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, ErrExtractionFailed):
		return http.StatusUnprocessableEntity, "extraction_failed"
	case errors.Is(err, ErrGenerationParseFailed):
		return http.StatusUnprocessableEntity, "generation_parse_failed"
	case errors.Is(err, ErrGenerationUpstreamFailed):
		return http.StatusBadGateway, "generation_upstream_failed"
	case errors.Is(err, ErrIndexBuildFailed):
		return http.StatusInternalServerError, "index_build_failed"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
